package domain

import (
	"errors"
	"fmt"
)

var (
	// Ошибка отсутствующего идентификатора клиента.
	ErrCustomerRequired = errors.New("customer_id is required")
	// Ошибка отсутствующего кода валюты.
	ErrCurrencyRequired = errors.New("currency is required")
	// Ошибка отсутствия хотя бы одной позиции в заказе.
	ErrLinesRequired = errors.New("order must contain at least one line")
	// Ошибка отрицательной суммы заказа.
	ErrTotalNegative = errors.New("total_minor must be non-negative")
	// Ошибка при некорректном количестве в позиции (<= 0).
	ErrLineQtyInvalid = errors.New("order line qty must be greater than zero")
	// Ошибка, если цена позиции отрицательная.
	ErrLinePriceInvalid = errors.New("order line price must be non-negative")
	// Ошибка несоответствия суммы заказа и сумм позиций.
	ErrTotalMismatch = errors.New("order total does not match lines sum")
	// Ошибка отсутствующего идентификатора владельца корзины.
	ErrOwnerIDRequired = errors.New("cart owner id is required")
	// Ошибка неизвестного типа владельца корзины.
	ErrOwnerKindInvalid = errors.New("cart owner kind is invalid")
	// Ошибка некорректного количества в строке корзины (< 1).
	ErrCartQtyInvalid = errors.New("cart line qty must be at least 1")
	// Ошибка отсутствующего идентификатора заказа.
	ErrOrderIDRequired = errors.New("order_id is required")
	// Ошибка отсутствующей ссылки на транзакцию платёжного провайдера.
	ErrTransactionRefRequired = errors.New("transaction_ref is required")
	// Ошибка отрицательной суммы платежа.
	ErrPaymentAmountNegative = errors.New("payment amount must be non-negative")

	// ErrCartLineNotFound возвращается, если в корзине нет строки с таким товаром.
	ErrCartLineNotFound = errors.New("cart line not found")
	// ErrCartEmpty возвращается при попытке checkout пустой корзины.
	ErrCartEmpty = errors.New("cart is empty")
	// ErrGuestCheckout возвращается, когда checkout пытается выполнить гость.
	ErrGuestCheckout = errors.New("guest checkout is not allowed")
	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderVersionConflict сигнализирует о конфликте версий при сохранении.
	ErrOrderVersionConflict = errors.New("order version conflict")
	// ErrProductNotFound возвращается, если товар отсутствует в каталоге.
	ErrProductNotFound = errors.New("product not found")

	// ErrPaymentAlreadyProcessed — идемпотентный повтор: платёж с таким
	// transaction_ref или order_id уже записан. Для вызывающей стороны это
	// эквивалент успеха, а не ошибка.
	ErrPaymentAlreadyProcessed = errors.New("payment already processed")
	// ErrAmountMismatch — сумма, подтверждённая провайдером, не совпала с суммой заказа.
	ErrAmountMismatch = errors.New("paid amount does not match order total")
	// ErrCurrencyMismatch — валюта платежа не совпала с валютой заказа.
	ErrCurrencyMismatch = errors.New("payment currency does not match order currency")
	// ErrPaymentNotApproved — провайдер вернул статус, отличный от успешного.
	ErrPaymentNotApproved = errors.New("payment was not approved by the provider")
	// ErrGatewayUnavailable — платёжный провайдер недоступен; повтор на стороне вызывающего.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")

	// ErrStatusInvalid возвращается при попытке перевести заказ в неизвестный статус.
	ErrStatusInvalid = errors.New("order status is not in the allowed set")
	// ErrRestoreNotPermitted — возврат стока запрещён текущим статусом заказа.
	ErrRestoreNotPermitted = errors.New("stock restore is not permitted for order status")

	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

// LineChange фиксирует изменение цены одной позиции между добавлением в
// корзину и checkout.
type LineChange struct {
	ProductID     string
	OldPriceMinor int64
	NewPriceMinor int64
}

// PriceDriftError возвращается, когда совокупный дрейф цен превышает порог.
// Несёт старую и новую сумму, чтобы UI показал точную разницу.
type PriceDriftError struct {
	OldTotalMinor int64
	NewTotalMinor int64
	Changes       []LineChange
}

func (e *PriceDriftError) Error() string {
	return fmt.Sprintf("price drift too large: old_total=%d new_total=%d changed_lines=%d",
		e.OldTotalMinor, e.NewTotalMinor, len(e.Changes))
}

// DriftPct возвращает относительный дрейф в долях от старой суммы.
func (e *PriceDriftError) DriftPct() float64 {
	if e.OldTotalMinor == 0 {
		return 0
	}
	diff := e.NewTotalMinor - e.OldTotalMinor
	if diff < 0 {
		diff = -diff
	}
	return float64(diff) / float64(e.OldTotalMinor)
}

// Shortfall описывает нехватку стока по одной позиции.
type Shortfall struct {
	ProductID string
	Requested int32
	Available int32
}

// StockError возвращается, когда сток не покрывает запрошенные количества.
// Список Shortfalls позволяет показать, какие именно строки нужно поправить.
type StockError struct {
	Shortfalls []Shortfall
}

func (e *StockError) Error() string {
	return fmt.Sprintf("insufficient stock for %d line(s)", len(e.Shortfalls))
}

// ProductUnavailableError возвращается, когда товар из корзины исчез из
// каталога или стал недоступен для покупки.
type ProductUnavailableError struct {
	ProductID string
}

func (e *ProductUnavailableError) Error() string {
	return fmt.Sprintf("product %s is unavailable", e.ProductID)
}

// ConsistencyFaultError фиксирует расхождение: провайдер подтвердил списание,
// но запись платежа не зафиксирована (например, сток исчез между checkout и
// оплатой). Требует ручной сверки и никогда не гасится молча.
type ConsistencyFaultError struct {
	OrderID        string
	TransactionRef string
	Cause          error
}

func (e *ConsistencyFaultError) Error() string {
	return fmt.Sprintf("payment verified but not recorded for order %s (ref %s): %v",
		e.OrderID, e.TransactionRef, e.Cause)
}

func (e *ConsistencyFaultError) Unwrap() error {
	return e.Cause
}

// IsAlreadyProcessed проверяет, является ли ошибка идемпотентным повтором платежа.
func IsAlreadyProcessed(err error) bool {
	return errors.Is(err, ErrPaymentAlreadyProcessed)
}

// IsVersionConflict проверяет, является ли ошибка конфликтом версий.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrOrderVersionConflict)
}

// AsStockError извлекает StockError из цепочки ошибок.
func AsStockError(err error) (*StockError, bool) {
	var se *StockError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// AsPriceDriftError извлекает PriceDriftError из цепочки ошибок.
func AsPriceDriftError(err error) (*PriceDriftError, bool) {
	var pe *PriceDriftError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
