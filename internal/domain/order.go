package domain

import "time"

// OrderStatus описывает жизненный цикл заказа.
type OrderStatus string

const (
	// OrderStatusPending — заказ создан, оплата ещё не подтверждена.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusConfirmed — оплата записана, сток списан, счёт выставлен.
	OrderStatusConfirmed OrderStatus = "confirmed"
	// OrderStatusProcessing — заказ собирается на складе.
	OrderStatusProcessing OrderStatus = "processing"
	// OrderStatusShipped — заказ передан в доставку.
	OrderStatusShipped OrderStatus = "shipped"
	// OrderStatusDelivered — заказ доставлен клиенту. Терминальный статус.
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCancelled — заказ отменён. Терминальный статус; заказ никогда
	// не удаляется физически.
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Valid проверяет, что статус принадлежит фиксированному набору.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusProcessing,
		OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	default:
		return false
	}
}

// Terminal сообщает, завершён ли жизненный цикл заказа.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// HoldsStock сообщает, списан ли под заказ сток в этом статусе.
// Отмена из такого статуса обязана вернуть сток ровно один раз.
func (s OrderStatus) HoldsStock() bool {
	switch s {
	case OrderStatusConfirmed, OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered:
		return true
	default:
		return false
	}
}

// OrderLine — одна позиция заказа. Цена фиксируется в момент создания заказа
// и больше никогда не меняется: история цен сохраняется по построению.
type OrderLine struct {
	OrderID    string
	ProductID  string
	Qty        int32
	PriceMinor int64
}

// Order агрегирует шапку заказа и его позиции.
type Order struct {
	ID         string
	CustomerID string
	// Reference — клиентский уникальный идентификатор заказа,
	// отличный от внутреннего ID.
	Reference string
	Status    OrderStatus
	Currency  string
	// TotalMinor фиксируется при создании из Σ qty*price и не пересчитывается.
	TotalMinor int64
	// InvoiceNo присваивается только при записи платежа; у неоплаченного
	// заказа счёта нет.
	InvoiceNo     string
	TrackingNotes string
	Lines         []OrderLine
	Version       int64
	OrderDate     time.Time
	UpdatedAt     time.Time
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.CustomerID == "" {
		errs = append(errs, ErrCustomerRequired)
	}
	if o.Currency == "" {
		errs = append(errs, ErrCurrencyRequired)
	}
	if len(o.Lines) == 0 {
		errs = append(errs, ErrLinesRequired)
	}
	if o.TotalMinor < 0 {
		errs = append(errs, ErrTotalNegative)
	}

	// Сверяем сумму заказа с суммой позиций: qty * price.
	var calc int64
	for _, line := range o.Lines {
		if line.Qty <= 0 {
			errs = append(errs, ErrLineQtyInvalid)
		}
		if line.PriceMinor < 0 {
			errs = append(errs, ErrLinePriceInvalid)
		}
		calc += int64(line.Qty) * line.PriceMinor
	}
	if calc != o.TotalMinor {
		errs = append(errs, ErrTotalMismatch)
	}

	return errs
}

// Paid сообщает, записан ли по заказу платёж.
func (o *Order) Paid() bool {
	return o.InvoiceNo != ""
}
