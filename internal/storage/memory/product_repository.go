package memory

import (
	"sync"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

// ProductRepositoryInMemory — in-memory проекция каталога со счётчиком стока.
// Экспортируемый тип: тестам и dev-окружению нужен Seed.
type ProductRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string]domain.Product
}

// NewProductRepository возвращает in-memory репозиторий товаров.
func NewProductRepository() *ProductRepositoryInMemory {
	return &ProductRepositoryInMemory{
		items: make(map[string]domain.Product),
	}
}

// Seed кладёт товар в каталог (для тестов и локальной разработки).
func (r *ProductRepositoryInMemory) Seed(p domain.Product) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[p.ID] = p
}

// Get возвращает товар или ErrProductNotFound.
func (r *ProductRepositoryInMemory) Get(id string) (domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.items[id]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return p, nil
}

// DecrementStock выполняет условное списание под блокировкой: сток
// уменьшается только если остатка хватает. 0 затронутых строк — отказ.
func (r *ProductRepositoryInMemory) DecrementStock(id string, n int32) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.items[id]
	if !ok {
		return 0, domain.ErrProductNotFound
	}
	if p.Stock < n {
		return 0, nil
	}
	p.Stock -= n
	r.items[id] = p
	return 1, nil
}

// IncrementStock возвращает n единиц в сток.
func (r *ProductRepositoryInMemory) IncrementStock(id string, n int32) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.items[id]
	if !ok {
		return domain.ErrProductNotFound
	}
	p.Stock += n
	r.items[id] = p
	return nil
}

var _ domain.ProductRepository = (*ProductRepositoryInMemory)(nil)
