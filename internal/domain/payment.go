package domain

import "time"

// PaymentStatus описывает состояние записанного платежа.
type PaymentStatus string

const (
	// PaymentStatusCompleted — провайдер подтвердил списание, запись зафиксирована.
	PaymentStatusCompleted PaymentStatus = "completed"
	// PaymentStatusFailed — провайдер отклонил платёж.
	PaymentStatusFailed PaymentStatus = "failed"
)

// Payment описывает платёж, связанный с заказом. Ключевой инвариант
// идемпотентности: не более одной успешной записи на order_id и на
// transaction_ref.
type Payment struct {
	ID             string
	OrderID        string
	CustomerID     string
	AmountMinor    int64
	Currency       string
	TransactionRef string
	Status         PaymentStatus
	Method         string
	CreatedAt      time.Time
}

// Validate проверяет корректность полей платежа и возвращает ошибки, если они есть.
func (p *Payment) Validate() []error {
	var errs []error

	if p.OrderID == "" {
		errs = append(errs, ErrOrderIDRequired)
	}
	if p.TransactionRef == "" {
		errs = append(errs, ErrTransactionRefRequired)
	}
	if p.AmountMinor < 0 {
		errs = append(errs, ErrPaymentAmountNegative)
	}

	return errs
}
