package cart

import (
	"encoding/json"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

// Service реализует операции над корзиной поверх CartRepository.
// Владелец (гость или клиент) резолвится на транспортном уровне и
// приходит сюда уже типизированным.
type Service struct {
	carts    domain.CartRepository
	products domain.ProductRepository
	outbox   domain.OutboxRepository
	logger   *log.Entry
}

// NewService создаёт сервис корзины. Outbox опционален: без него события
// merge просто не публикуются.
func NewService(carts domain.CartRepository, products domain.ProductRepository, outbox domain.OutboxRepository, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.WithField("component", "cart-service")
	}
	return &Service{carts: carts, products: products, outbox: outbox, logger: logger}
}

// Add добавляет товар в корзину владельца. Повторное добавление того же
// товара суммирует количество. Цена фиксируется на момент добавления —
// от неё потом считается дрейф на checkout.
func (s *Service) Add(owner domain.CartOwner, productID string, qty int32) error {
	if err := owner.Validate(); err != nil {
		return err
	}
	if qty < 1 {
		return domain.ErrCartQtyInvalid
	}

	product, err := s.products.Get(productID)
	if err != nil {
		return err
	}
	if !product.Available() {
		return &domain.ProductUnavailableError{ProductID: productID}
	}

	line := domain.CartLine{
		Owner:      owner,
		ProductID:  productID,
		Qty:        qty,
		PriceMinor: product.PriceMinor,
		AddedAt:    time.Now().UTC(),
	}
	if err := s.carts.AddLine(line); err != nil {
		return fmt.Errorf("add cart line: %w", err)
	}

	return nil
}

// SetQty перезаписывает количество; qty <= 0 означает удаление строки.
func (s *Service) SetQty(owner domain.CartOwner, productID string, qty int32) error {
	if err := owner.Validate(); err != nil {
		return err
	}
	return s.carts.SetQty(owner, productID, qty)
}

// Remove удаляет строку из корзины.
func (s *Service) Remove(owner domain.CartOwner, productID string) error {
	if err := owner.Validate(); err != nil {
		return err
	}
	return s.carts.RemoveLine(owner, productID)
}

// List возвращает все строки корзины владельца.
func (s *Service) List(owner domain.CartOwner) ([]domain.CartLine, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	return s.carts.ListLines(owner)
}

// Empty удаляет все строки корзины владельца.
func (s *Service) Empty(owner domain.CartOwner) error {
	if err := owner.Validate(); err != nil {
		return err
	}
	return s.carts.EmptyCart(owner)
}

// MergeOnLogin переносит гостевую корзину в корзину клиента. Вызывается из
// login-потока как best-effort: ошибка merge логируется, но логин из-за
// неё не падает. Повторный вызов с уже пустой гостевой корзиной — no-op.
func (s *Service) MergeOnLogin(sessionID, customerID string) {
	guest := domain.GuestOwner(sessionID)
	customer := domain.CustomerOwner(customerID)

	if err := guest.Validate(); err != nil {
		s.logger.WithError(err).Warn("cart merge skipped: invalid guest owner")
		return
	}
	if err := customer.Validate(); err != nil {
		s.logger.WithError(err).Warn("cart merge skipped: invalid customer owner")
		return
	}

	if err := s.carts.MergeGuestIntoCustomer(guest, customer); err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"session_id":  sessionID,
			"customer_id": customerID,
		}).Warn("guest cart merge failed")
		return
	}

	s.logger.WithFields(log.Fields{
		"session_id":  sessionID,
		"customer_id": customerID,
	}).Info("guest cart merged into customer cart")

	s.emitMerged(sessionID, customerID)
}

// Merge — вариант merge для явного вызова из API, ошибка возвращается.
func (s *Service) Merge(sessionID, customerID string) error {
	guest := domain.GuestOwner(sessionID)
	customer := domain.CustomerOwner(customerID)

	if err := guest.Validate(); err != nil {
		return err
	}
	if err := customer.Validate(); err != nil {
		return err
	}

	if err := s.carts.MergeGuestIntoCustomer(guest, customer); err != nil {
		return fmt.Errorf("merge guest cart: %w", err)
	}

	s.emitMerged(sessionID, customerID)
	return nil
}

func (s *Service) emitMerged(sessionID, customerID string) {
	if s.outbox == nil {
		return
	}

	payload, err := json.Marshal(map[string]interface{}{
		"session_id":  sessionID,
		"customer_id": customerID,
		"merged_at":   time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		s.logger.WithError(err).Error("marshal merge event failed")
		return
	}

	msg := domain.OutboxMessage{
		AggregateType: "cart",
		AggregateID:   customerID,
		EventType:     domain.EventCartMerged,
		Payload:       payload,
	}
	if _, err := s.outbox.Enqueue(msg); err != nil {
		s.logger.WithError(err).Error("enqueue merge event failed")
	}
}
