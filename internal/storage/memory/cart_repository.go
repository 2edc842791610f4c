package memory

import (
	"sync"
	"time"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

type cartKey struct {
	kind      domain.OwnerKind
	ownerID   string
	productID string
}

// cartRepositoryInMemory — in-memory реализация CartRepository для локальной
// разработки и тестов.
type cartRepositoryInMemory struct {
	mu    sync.RWMutex
	lines map[cartKey]domain.CartLine
}

// NewCartRepository возвращает in-memory репозиторий корзин.
func NewCartRepository() domain.CartRepository {
	return &cartRepositoryInMemory{
		lines: make(map[cartKey]domain.CartLine),
	}
}

func keyOf(owner domain.CartOwner, productID string) cartKey {
	return cartKey{kind: owner.Kind, ownerID: owner.ID, productID: productID}
}

// AddLine суммирует количество с существующей строкой или создаёт новую.
func (r *cartRepositoryInMemory) AddLine(line domain.CartLine) error {
	if err := line.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := keyOf(line.Owner, line.ProductID)
	if existing, ok := r.lines[key]; ok {
		existing.Qty += line.Qty
		// Цена добавления фиксируется первой строкой.
		r.lines[key] = existing
		return nil
	}
	r.lines[key] = line
	return nil
}

// SetQty перезаписывает количество; qty <= 0 означает удаление строки.
func (r *cartRepositoryInMemory) SetQty(owner domain.CartOwner, productID string, qty int32) error {
	if err := owner.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := keyOf(owner, productID)
	line, ok := r.lines[key]
	if !ok {
		return domain.ErrCartLineNotFound
	}
	if qty <= 0 {
		delete(r.lines, key)
		return nil
	}
	line.Qty = qty
	r.lines[key] = line
	return nil
}

// RemoveLine удаляет строку корзины.
func (r *cartRepositoryInMemory) RemoveLine(owner domain.CartOwner, productID string) error {
	if err := owner.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := keyOf(owner, productID)
	if _, ok := r.lines[key]; !ok {
		return domain.ErrCartLineNotFound
	}
	delete(r.lines, key)
	return nil
}

// ListLines возвращает копии всех строк владельца.
func (r *cartRepositoryInMemory) ListLines(owner domain.CartOwner) ([]domain.CartLine, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.CartLine, 0)
	for key, line := range r.lines {
		if key.kind == owner.Kind && key.ownerID == owner.ID {
			result = append(result, line)
		}
	}
	return result, nil
}

// EmptyCart удаляет все строки владельца.
func (r *cartRepositoryInMemory) EmptyCart(owner domain.CartOwner) error {
	if err := owner.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for key := range r.lines {
		if key.kind == owner.Kind && key.ownerID == owner.ID {
			delete(r.lines, key)
		}
	}
	return nil
}

// MergeGuestIntoCustomer переносит строки гостя клиенту, суммируя количества
// по совпадающим товарам. Перенос и удаление выполняются под одной
// блокировкой, повторный вызов по опустевшему гостю — no-op.
func (r *cartRepositoryInMemory) MergeGuestIntoCustomer(guest, customer domain.CartOwner) error {
	if err := guest.Validate(); err != nil {
		return err
	}
	if err := customer.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for key, line := range r.lines {
		if key.kind != guest.Kind || key.ownerID != guest.ID {
			continue
		}

		target := keyOf(customer, key.productID)
		if existing, ok := r.lines[target]; ok {
			existing.Qty += line.Qty
			r.lines[target] = existing
		} else {
			line.Owner = customer
			r.lines[target] = line
		}
		delete(r.lines, key)
	}
	return nil
}

// DeleteStaleGuestLines удаляет гостевые строки старше before.
func (r *cartRepositoryInMemory) DeleteStaleGuestLines(before time.Time, limit int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if limit <= 0 {
		limit = 100
	}

	deleted := 0
	for key, line := range r.lines {
		if key.kind != domain.OwnerKindGuest {
			continue
		}
		if !line.AddedAt.Before(before) {
			continue
		}
		delete(r.lines, key)
		deleted++
		if deleted >= limit {
			break
		}
	}
	return deleted, nil
}

var _ domain.CartRepository = (*cartRepositoryInMemory)(nil)
