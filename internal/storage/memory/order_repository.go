package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

// orderRepositoryInMemory — in-memory реализация OrderRepository.
// Для RecordPayment требуется доступ к каталогу, чтобы воспроизвести
// семантику «платёж + счёт + списание стока — одной единицей».
type orderRepositoryInMemory struct {
	mu       sync.RWMutex
	orders   map[string]domain.Order
	payments map[string]domain.Payment // ключ — pay_id
	products domain.ProductRepository
}

// NewOrderRepository возвращает in-memory репозиторий для локальной
// разработки и тестов. products нужен для условного списания стока в
// RecordPayment; допускается nil, если платежи записываются без списания.
func NewOrderRepository(products domain.ProductRepository) domain.OrderRepository {
	return &orderRepositoryInMemory{
		orders:   make(map[string]domain.Order),
		payments: make(map[string]domain.Payment),
		products: products,
	}
}

func cloneOrder(o domain.Order) domain.Order {
	lines := make([]domain.OrderLine, len(o.Lines))
	copy(lines, o.Lines)
	o.Lines = lines
	return o
}

// Create сохраняет новый заказ вместе с позициями, если ID и reference свободны.
func (r *orderRepositoryInMemory) Create(order domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.orders[order.ID]; exists {
		return domain.ErrOrderVersionConflict
	}
	for _, existing := range r.orders {
		if existing.Reference == order.Reference {
			return domain.ErrOrderVersionConflict
		}
	}
	r.orders[order.ID] = cloneOrder(order)
	return nil
}

// Get возвращает копию заказа или ErrOrderNotFound.
func (r *orderRepositoryInMemory) Get(id string) (domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return cloneOrder(order), nil
}

// GetByReference ищет заказ по клиентскому reference.
func (r *orderRepositoryInMemory) GetByReference(reference string) (domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, order := range r.orders {
		if order.Reference == reference {
			return cloneOrder(order), nil
		}
	}
	return domain.Order{}, domain.ErrOrderNotFound
}

// ListByCustomer возвращает заказы клиента, ограничивая выборку limit (если >0).
func (r *orderRepositoryInMemory) ListByCustomer(customerID string, limit int) ([]domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Order, 0, len(r.orders))
	for _, order := range r.orders {
		if order.CustomerID != customerID {
			continue
		}
		result = append(result, cloneOrder(order))
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].OrderDate.Equal(result[j].OrderDate) {
			return result[i].OrderDate.After(result[j].OrderDate)
		}
		return result[i].ID > result[j].ID
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}

	return result, nil
}

// Save перезаписывает шапку заказа, проверяя версию (optimistic locking).
// Позиции заказа неизменяемы и не перезаписываются.
func (r *orderRepositoryInMemory) Save(order domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.orders[order.ID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if current.Version != order.Version {
		return domain.ErrOrderVersionConflict
	}

	current.Status = order.Status
	current.TrackingNotes = order.TrackingNotes
	current.InvoiceNo = order.InvoiceNo
	current.UpdatedAt = order.UpdatedAt
	current.Version++
	r.orders[order.ID] = current
	return nil
}

// RecordPayment воспроизводит транзакционную семантику PostgreSQL-реализации:
// платёж, счёт и списание стока фиксируются все вместе или никак.
func (r *orderRepositoryInMemory) RecordPayment(payment domain.Payment, invoiceNo string, decrement []domain.OrderLine) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[payment.OrderID]
	if !ok {
		return domain.ErrOrderNotFound
	}

	// Unique constraint по order_id и transaction_ref.
	for _, existing := range r.payments {
		if existing.OrderID == payment.OrderID || existing.TransactionRef == payment.TransactionRef {
			return domain.ErrPaymentAlreadyProcessed
		}
	}

	// Условные списания; на первом отказе возвращаем уже списанное.
	done := make([]domain.OrderLine, 0, len(decrement))
	for _, line := range decrement {
		affected, err := r.decrement(line.ProductID, line.Qty)
		if err != nil || affected == 0 {
			for _, dl := range done {
				_ = r.products.IncrementStock(dl.ProductID, dl.Qty)
			}
			if err != nil {
				return err
			}
			return &domain.StockError{Shortfalls: []domain.Shortfall{{
				ProductID: line.ProductID,
				Requested: line.Qty,
				Available: r.availableStock(line.ProductID),
			}}}
		}
		done = append(done, line)
	}

	if payment.ID == "" {
		payment.ID = payment.TransactionRef
	}
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = time.Now().UTC()
	}
	payment.Status = domain.PaymentStatusCompleted
	r.payments[payment.ID] = payment

	order.Status = domain.OrderStatusConfirmed
	order.InvoiceNo = invoiceNo
	order.UpdatedAt = time.Now().UTC()
	order.Version++
	r.orders[order.ID] = order
	return nil
}

// FindPayment ищет платёж по order_id ИЛИ transaction_ref.
func (r *orderRepositoryInMemory) FindPayment(orderID, transactionRef string) (domain.Payment, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.payments {
		if (orderID != "" && p.OrderID == orderID) ||
			(transactionRef != "" && p.TransactionRef == transactionRef) {
			return p, true, nil
		}
	}
	return domain.Payment{}, false, nil
}

func (r *orderRepositoryInMemory) decrement(productID string, qty int32) (int64, error) {
	if r.products == nil {
		return 1, nil
	}
	return r.products.DecrementStock(productID, qty)
}

func (r *orderRepositoryInMemory) availableStock(productID string) int32 {
	if r.products == nil {
		return 0
	}
	p, err := r.products.Get(productID)
	if err != nil {
		return 0
	}
	return p.Stock
}

var _ domain.OrderRepository = (*orderRepositoryInMemory)(nil)
