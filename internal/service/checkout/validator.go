package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
	"github.com/vladislavdragonenkov/checkout/internal/metrics"
	"github.com/vladislavdragonenkov/checkout/internal/service/order"
)

// DriftThreshold — относительный порог суммарного дрейфа цен, выше которого
// checkout отклоняется. Дрейф не выше порога молча принимается: заказ
// создаётся по актуальным ценам.
const DriftThreshold = 0.05

// Validator ревалидирует корзину и превращает её в заказ. Снимок корзины
// эфемерен: он либо становится заказом, либо уходит вместе с отказом.
type Validator struct {
	carts    domain.CartRepository
	products domain.ProductRepository
	ledger   *order.Ledger
	outbox   domain.OutboxRepository
	metrics  *metrics.CheckoutMetrics
	currency string
	logger   *log.Entry
}

// NewValidator создаёт checkout-валидатор. outbox и metrics опциональны.
func NewValidator(
	carts domain.CartRepository,
	products domain.ProductRepository,
	ledger *order.Ledger,
	outbox domain.OutboxRepository,
	m *metrics.CheckoutMetrics,
	currency string,
	logger *log.Entry,
) *Validator {
	if logger == nil {
		logger = log.WithField("component", "checkout-validator")
	}
	return &Validator{
		carts:    carts,
		products: products,
		ledger:   ledger,
		outbox:   outbox,
		metrics:  m,
		currency: currency,
		logger:   logger,
	}
}

// Checkout выполняет полный цикл: гость отклоняется, корзина ревалидируется
// против каталога, дрейф цен сверяется с порогом, советующая проверка стока
// собирает нехватки, и только затем создаётся pending-заказ по актуальным
// ценам. Успешный checkout опустошает корзину.
func (v *Validator) Checkout(ctx context.Context, owner domain.CartOwner) (domain.Order, error) {
	started := time.Now()
	if v.metrics != nil {
		v.metrics.RecordCheckoutStarted()
	}

	created, err := v.checkout(ctx, owner)
	if err != nil {
		v.recordRejection(owner, err)
		return domain.Order{}, err
	}

	if v.metrics != nil {
		v.metrics.RecordCheckoutCompleted()
		v.metrics.RecordCheckoutDuration(time.Since(started))
	}
	v.emitEvent(domain.EventCheckoutCompleted, created.CustomerID, map[string]interface{}{
		"order_id":    created.ID,
		"reference":   created.Reference,
		"total_minor": created.TotalMinor,
	})

	return created, nil
}

func (v *Validator) checkout(ctx context.Context, owner domain.CartOwner) (domain.Order, error) {
	if err := owner.Validate(); err != nil {
		return domain.Order{}, err
	}
	if owner.IsGuest() {
		return domain.Order{}, domain.ErrGuestCheckout
	}
	if err := ctx.Err(); err != nil {
		return domain.Order{}, err
	}

	cartLines, err := v.carts.ListLines(owner)
	if err != nil {
		return domain.Order{}, fmt.Errorf("list cart lines: %w", err)
	}
	if len(cartLines) == 0 {
		return domain.Order{}, domain.ErrCartEmpty
	}

	snapshot, err := v.buildSnapshot(cartLines)
	if err != nil {
		return domain.Order{}, err
	}

	drift := snapshot.DriftPct()
	if v.metrics != nil {
		v.metrics.RecordPriceDrift(drift)
	}
	if drift > DriftThreshold {
		return domain.Order{}, &domain.PriceDriftError{
			OldTotalMinor: snapshot.CartTotalMinor,
			NewTotalMinor: snapshot.CurrentTotalMinor,
			Changes:       snapshot.ChangedLines(),
		}
	}

	if shortfalls := snapshot.StockShortfalls(); len(shortfalls) > 0 {
		return domain.Order{}, &domain.StockError{Shortfalls: shortfalls}
	}

	// Заказ создаётся по АКТУАЛЬНЫМ ценам: принятый дрейф оплачивает клиент.
	orderLines := make([]domain.OrderLine, len(snapshot.Lines))
	for i, line := range snapshot.Lines {
		orderLines[i] = domain.OrderLine{
			ProductID:  line.ProductID,
			Qty:        line.Qty,
			PriceMinor: line.CurrentPriceMinor,
		}
	}

	created, err := v.ledger.CreateOrder(ctx, owner.ID, v.currency, orderLines)
	if err != nil {
		return domain.Order{}, err
	}

	if err := v.carts.EmptyCart(owner); err != nil {
		// Заказ уже создан; непустая корзина — косметика, не повод падать.
		v.logger.WithError(err).WithField("customer_id", owner.ID).
			Warn("failed to empty cart after checkout")
	}

	return created, nil
}

// buildSnapshot ревалидирует каждую строку корзины против каталога.
func (v *Validator) buildSnapshot(cartLines []domain.CartLine) (domain.CheckoutSnapshot, error) {
	snapshot := domain.CheckoutSnapshot{
		Lines: make([]domain.SnapshotLine, 0, len(cartLines)),
	}

	for _, line := range cartLines {
		product, err := v.products.Get(line.ProductID)
		if err != nil {
			if errors.Is(err, domain.ErrProductNotFound) {
				return domain.CheckoutSnapshot{}, &domain.ProductUnavailableError{ProductID: line.ProductID}
			}
			return domain.CheckoutSnapshot{}, fmt.Errorf("load product %s: %w", line.ProductID, err)
		}
		if !product.Available() {
			return domain.CheckoutSnapshot{}, &domain.ProductUnavailableError{ProductID: line.ProductID}
		}

		snapshot.Lines = append(snapshot.Lines, domain.SnapshotLine{
			ProductID:         line.ProductID,
			Title:             product.Title,
			Qty:               line.Qty,
			CartPriceMinor:    line.PriceMinor,
			CurrentPriceMinor: product.PriceMinor,
			CurrentStock:      product.Stock,
		})
		snapshot.CartTotalMinor += int64(line.Qty) * line.PriceMinor
		snapshot.CurrentTotalMinor += int64(line.Qty) * product.PriceMinor
	}

	return snapshot, nil
}

func (v *Validator) recordRejection(owner domain.CartOwner, err error) {
	reason := rejectionReason(err)
	if v.metrics != nil {
		v.metrics.RecordCheckoutRejected(reason)
	}
	v.logger.WithError(err).WithFields(log.Fields{
		"owner_kind": string(owner.Kind),
		"owner_id":   owner.ID,
		"reason":     reason,
	}).Info("checkout rejected")
	v.emitEvent(domain.EventCheckoutRejected, owner.ID, map[string]interface{}{
		"reason": reason,
	})
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrGuestCheckout):
		return "guest"
	case errors.Is(err, domain.ErrCartEmpty):
		return "empty_cart"
	default:
	}

	var unavailable *domain.ProductUnavailableError
	if errors.As(err, &unavailable) {
		return "product_unavailable"
	}
	if _, ok := domain.AsPriceDriftError(err); ok {
		return "price_drift"
	}
	if _, ok := domain.AsStockError(err); ok {
		return "stock"
	}
	return "internal"
}

func (v *Validator) emitEvent(eventType, aggregateID string, payload map[string]interface{}) {
	if v.outbox == nil {
		return
	}
	payload["ts"] = time.Now().UTC().Format(time.RFC3339Nano)

	data, err := json.Marshal(payload)
	if err != nil {
		v.logger.WithError(err).WithField("event", eventType).Error("marshal event failed")
		return
	}

	msg := domain.OutboxMessage{
		AggregateType: "checkout",
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       data,
	}
	if _, err := v.outbox.Enqueue(msg); err != nil {
		v.logger.WithError(err).WithField("event", eventType).Error("enqueue event failed")
		return
	}
	if v.metrics != nil {
		v.metrics.RecordOutboxEvent()
	}
}
