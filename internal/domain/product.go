package domain

// Product — типизированная проекция товара, которую потребляет core:
// актуальная цена, остаток и признак доступности. CRUD каталога живёт вне
// этого сервиса.
type Product struct {
	ID          string
	Title       string
	PriceMinor  int64
	Stock       int32
	Purchasable bool
}

// Available сообщает, можно ли вообще класть товар в заказ.
func (p Product) Available() bool {
	return p.ID != "" && p.Purchasable
}
