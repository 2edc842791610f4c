package domain

import "time"

// CartRepository описывает требования к хранилищу корзин.
type CartRepository interface {
	// AddLine — upsert-with-add: если строка (owner, product_id) существует,
	// количества суммируются, иначе строка создаётся.
	AddLine(line CartLine) error
	// SetQty перезаписывает количество; qty <= 0 означает удаление строки.
	SetQty(owner CartOwner, productID string, qty int32) error
	// RemoveLine удаляет строку. Отсутствующая строка — ErrCartLineNotFound.
	RemoveLine(owner CartOwner, productID string) error
	// ListLines возвращает все строки владельца.
	ListLines(owner CartOwner) ([]CartLine, error)
	// EmptyCart удаляет все строки владельца.
	EmptyCart(owner CartOwner) error
	// MergeGuestIntoCustomer переносит гостевую корзину клиенту, суммируя
	// количества по совпадающим товарам. Повторный вызов — no-op: перенос
	// каждой строки выполняется единым upsert, а не read-then-write.
	MergeGuestIntoCustomer(guest, customer CartOwner) error
	// DeleteStaleGuestLines удаляет гостевые строки старше before, не более
	// limit за вызов. Возвращает число удалённых строк.
	DeleteStaleGuestLines(before time.Time, limit int) (int, error)
}

// ProductRepository — проекция каталога, которую потребляет core: чтение
// цены/остатка и условные изменения счётчика стока.
type ProductRepository interface {
	// Get возвращает товар или ErrProductNotFound.
	Get(id string) (Product, error)
	// DecrementStock выполняет условное списание: сток уменьшается только
	// если текущий остаток >= n. Возвращает число затронутых строк;
	// 0 означает, что списание отклонено, а не обнулено.
	DecrementStock(id string, n int32) (int64, error)
	// IncrementStock возвращает n единиц в сток (компенсация).
	IncrementStock(id string, n int32) error
}

// OrderRepository описывает требования к хранилищу заказов и платежей.
type OrderRepository interface {
	// Create сохраняет шапку заказа и его позиции одной логической единицей.
	Create(order Order) error
	// Get возвращает заказ с позициями или ErrOrderNotFound.
	Get(id string) (Order, error)
	// GetByReference ищет заказ по клиентскому reference.
	GetByReference(reference string) (Order, error)
	// ListByCustomer возвращает заказы клиента с опциональным лимитом.
	ListByCustomer(customerID string, limit int) ([]Order, error)
	// Save применяет обновления шапки заказа с учётом optimistic locking.
	Save(order Order) error
	// RecordPayment атомарно: вставляет платёж, штампует заказ
	// confirmed+invoice_no и условно списывает сток по каждой позиции.
	// Любая неудача откатывает всё; нулевое списание по строке — StockError;
	// нарушение уникальности по order_id/transaction_ref —
	// ErrPaymentAlreadyProcessed.
	RecordPayment(payment Payment, invoiceNo string, decrement []OrderLine) error
	// FindPayment ищет платёж по order_id ИЛИ transaction_ref —
	// дешёвый префильтр идемпотентности; гонку закрывает unique constraint.
	FindPayment(orderID, transactionRef string) (Payment, bool, error)
}
