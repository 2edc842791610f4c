package domain

// SnapshotLine — одна строка ревалидированной корзины: количество из корзины,
// цена на момент добавления и актуальные цена/сток из каталога.
type SnapshotLine struct {
	ProductID         string
	Title             string
	Qty               int32
	CartPriceMinor    int64
	CurrentPriceMinor int64
	CurrentStock      int32
}

// CheckoutSnapshot — эфемерный снимок корзины на момент checkout. Никогда не
// персистится: либо превращается в Order, либо отбрасывается вместе с отказом.
type CheckoutSnapshot struct {
	Lines             []SnapshotLine
	CartTotalMinor    int64
	CurrentTotalMinor int64
}

// DriftPct возвращает относительный дрейф суммы корзины к актуальной сумме.
func (s CheckoutSnapshot) DriftPct() float64 {
	if s.CartTotalMinor == 0 {
		return 0
	}
	diff := s.CurrentTotalMinor - s.CartTotalMinor
	if diff < 0 {
		diff = -diff
	}
	return float64(diff) / float64(s.CartTotalMinor)
}

// ChangedLines возвращает позиции, у которых цена разошлась с ценой добавления.
func (s CheckoutSnapshot) ChangedLines() []LineChange {
	var changes []LineChange
	for _, line := range s.Lines {
		if line.CartPriceMinor != line.CurrentPriceMinor {
			changes = append(changes, LineChange{
				ProductID:     line.ProductID,
				OldPriceMinor: line.CartPriceMinor,
				NewPriceMinor: line.CurrentPriceMinor,
			})
		}
	}
	return changes
}

// StockShortfalls возвращает позиции, для которых qty превышает актуальный
// сток. Это рекомендательная проверка: резервирование происходит позже,
// при записи платежа.
func (s CheckoutSnapshot) StockShortfalls() []Shortfall {
	var shortfalls []Shortfall
	for _, line := range s.Lines {
		if line.Qty > line.CurrentStock {
			shortfalls = append(shortfalls, Shortfall{
				ProductID: line.ProductID,
				Requested: line.Qty,
				Available: line.CurrentStock,
			})
		}
	}
	return shortfalls
}
