package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
	"github.com/vladislavdragonenkov/checkout/internal/metrics"
)

const (
	maxStatusRetries = 3
	retryBaseDelay   = 10 * time.Millisecond
)

// StockRestorer возвращает сток по позициям заказа при отмене.
type StockRestorer interface {
	Restore(ctx context.Context, orderID string) error
}

// Ledger — единственная точка создания заказов и записи платежей.
// Все деньги проходят через него: checkout создаёт заказ, платёжный
// процессор записывает оплату, админ двигает статус.
type Ledger struct {
	orders   domain.OrderRepository
	restorer StockRestorer
	outbox   domain.OutboxRepository
	metrics  *metrics.CheckoutMetrics
	logger   *log.Entry
}

// NewLedger создаёт Ledger. outbox, restorer и metrics опциональны: nil
// отключает соответствующий побочный эффект, основной поток не меняется.
func NewLedger(
	orders domain.OrderRepository,
	restorer StockRestorer,
	outbox domain.OutboxRepository,
	m *metrics.CheckoutMetrics,
	logger *log.Entry,
) *Ledger {
	if logger == nil {
		logger = log.WithField("component", "order-ledger")
	}
	return &Ledger{
		orders:   orders,
		restorer: restorer,
		outbox:   outbox,
		metrics:  m,
		logger:   logger,
	}
}

// CreateOrder создаёт заказ в статусе pending из готовых позиций.
// Reference генерируется из монотонных часов и случайного суффикса;
// настоящую уникальность гарантирует unique constraint в хранилище.
func (l *Ledger) CreateOrder(ctx context.Context, customerID, currency string, lines []domain.OrderLine) (domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return domain.Order{}, err
	}

	now := time.Now().UTC()
	order := domain.Order{
		ID:         uuid.NewString(),
		CustomerID: customerID,
		Reference:  newReference("ORD"),
		Status:     domain.OrderStatusPending,
		Currency:   currency,
		Version:    0,
		OrderDate:  now,
		UpdatedAt:  now,
	}

	order.Lines = make([]domain.OrderLine, len(lines))
	for i, line := range lines {
		line.OrderID = order.ID
		order.Lines[i] = line
		order.TotalMinor += int64(line.Qty) * line.PriceMinor
	}

	if errs := order.ValidateInvariants(); len(errs) > 0 {
		return domain.Order{}, errors.Join(errs...)
	}

	if err := l.orders.Create(order); err != nil {
		return domain.Order{}, fmt.Errorf("create order: %w", err)
	}

	l.logger.WithFields(log.Fields{
		"order_id":    order.ID,
		"reference":   order.Reference,
		"customer_id": customerID,
		"total_minor": order.TotalMinor,
	}).Info("order created")

	l.emitEvent(order.ID, domain.EventOrderCreated, map[string]interface{}{
		"reference":   order.Reference,
		"customer_id": customerID,
		"total_minor": order.TotalMinor,
		"currency":    currency,
		"lines":       len(order.Lines),
	})

	return order, nil
}

// RecordPayment записывает оплату заказа. Сумма и валюта сверяются с заказом
// без допуска: расхождение в одну минорную единицу — это отказ. Повтор по
// тому же transaction_ref или заказу возвращает ErrPaymentAlreadyProcessed —
// для вызывающей стороны это эквивалент успеха.
func (l *Ledger) RecordPayment(ctx context.Context, orderID string, amountMinor int64, currency, transactionRef, method string) (domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return domain.Order{}, err
	}
	if transactionRef == "" {
		return domain.Order{}, domain.ErrTransactionRefRequired
	}

	order, err := l.orders.Get(orderID)
	if err != nil {
		return domain.Order{}, err
	}

	// Дешёвый префильтр; настоящую гонку закрывает unique constraint.
	if _, found, err := l.orders.FindPayment(orderID, transactionRef); err != nil {
		return domain.Order{}, fmt.Errorf("find payment: %w", err)
	} else if found {
		if l.metrics != nil {
			l.metrics.RecordPaymentDuplicate()
		}
		return order, domain.ErrPaymentAlreadyProcessed
	}

	if amountMinor != order.TotalMinor {
		return domain.Order{}, domain.ErrAmountMismatch
	}
	if currency != order.Currency {
		return domain.Order{}, domain.ErrCurrencyMismatch
	}

	payment := domain.Payment{
		ID:             uuid.NewString(),
		OrderID:        orderID,
		CustomerID:     order.CustomerID,
		AmountMinor:    amountMinor,
		Currency:       currency,
		TransactionRef: transactionRef,
		Status:         domain.PaymentStatusCompleted,
		Method:         method,
		CreatedAt:      time.Now().UTC(),
	}
	if errs := payment.Validate(); len(errs) > 0 {
		return domain.Order{}, errors.Join(errs...)
	}

	invoiceNo := newReference("INV")
	if err := l.orders.RecordPayment(payment, invoiceNo, order.Lines); err != nil {
		if domain.IsAlreadyProcessed(err) {
			if l.metrics != nil {
				l.metrics.RecordPaymentDuplicate()
			}
			return order, domain.ErrPaymentAlreadyProcessed
		}
		return domain.Order{}, err
	}

	if l.metrics != nil {
		l.metrics.RecordPaymentRecorded()
	}
	l.logger.WithFields(log.Fields{
		"order_id":        orderID,
		"transaction_ref": transactionRef,
		"invoice_no":      invoiceNo,
		"amount_minor":    amountMinor,
	}).Info("payment recorded")

	l.emitEvent(orderID, domain.EventPaymentRecorded, map[string]interface{}{
		"transaction_ref": transactionRef,
		"invoice_no":      invoiceNo,
		"amount_minor":    amountMinor,
		"currency":        currency,
	})

	return l.orders.Get(orderID)
}

// UpdateStatus — административный перевод заказа в новый статус. Из
// терминального статуса выхода нет. Переход в cancelled из статуса, в
// котором сток удержан, сначала сохраняет cancelled и только потом
// возвращает сток: до сохранения заказ целиком повторяем, а после него
// гейт по прежнему статусу гарантирует, что возврат не выполнится дважды.
// Неудачный возврат оставляет сток заниженным (перепродажа невозможна) и
// фиксируется событием stock.restore_failed для ручной сверки.
func (l *Ledger) UpdateStatus(ctx context.Context, orderID string, newStatus domain.OrderStatus, notes string) (domain.Order, error) {
	if !newStatus.Valid() {
		return domain.Order{}, domain.ErrStatusInvalid
	}

	for attempt := 0; attempt < maxStatusRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return domain.Order{}, err
		}

		order, err := l.orders.Get(orderID)
		if err != nil {
			return domain.Order{}, err
		}

		if order.Status == newStatus {
			return order, nil
		}
		if order.Status.Terminal() {
			return domain.Order{}, domain.ErrStatusInvalid
		}

		needRestore := newStatus == domain.OrderStatusCancelled && order.Status.HoldsStock()
		if needRestore && l.restorer == nil {
			return domain.Order{}, domain.ErrRestoreNotPermitted
		}

		prevStatus := order.Status
		order.Status = newStatus
		if notes != "" {
			order.TrackingNotes = notes
		}
		order.UpdatedAt = time.Now().UTC()

		if err := l.orders.Save(order); err != nil {
			// Сток ещё не трогали: конфликт версий можно спокойно повторить.
			if domain.IsVersionConflict(err) && attempt < maxStatusRetries-1 {
				l.logger.WithFields(log.Fields{
					"order_id": orderID,
					"attempt":  attempt + 1,
				}).Warn("version conflict detected, retrying status update")
				time.Sleep(retryBaseDelay * time.Duration(1<<uint(attempt)))
				continue
			}
			return domain.Order{}, fmt.Errorf("save order status: %w", err)
		}

		restored := false
		if needRestore {
			if err := l.restorer.Restore(ctx, orderID); err != nil {
				// Заказ уже отменён, откатывать статус поздно. Заниженный
				// сток безопаснее задвоенного: перепродажи не будет, а
				// расхождение уходит на ручную сверку.
				l.logger.WithError(err).WithField("order_id", orderID).
					Error("cancel persisted but stock restore failed")
				l.emitEvent(orderID, domain.EventStockRestoreFailed, map[string]interface{}{
					"cause": err.Error(),
				})
			} else {
				restored = true
				if l.metrics != nil {
					l.metrics.RecordStockRestored()
				}
			}
		}

		l.logger.WithFields(log.Fields{
			"order_id": orderID,
			"from":     string(prevStatus),
			"to":       string(newStatus),
		}).Info("order status updated")

		event := domain.EventOrderStatusChanged
		if newStatus == domain.OrderStatusCancelled {
			event = domain.EventOrderCancelled
		}
		payload := map[string]interface{}{
			"from": string(prevStatus),
			"to":   string(newStatus),
		}
		if restored {
			payload["stock_restored"] = true
		}
		l.emitEvent(orderID, event, payload)
		if restored {
			l.emitEvent(orderID, domain.EventStockRestored, map[string]interface{}{
				"reason": "order cancelled",
			})
		}

		return l.orders.Get(orderID)
	}

	return domain.Order{}, domain.ErrOrderVersionConflict
}

// Timeline строит клиентское представление прогресса заказа.
func (l *Ledger) Timeline(orderID string) ([]domain.TimelineStep, error) {
	order, err := l.orders.Get(orderID)
	if err != nil {
		return nil, err
	}
	return domain.BuildTimeline(order.Status, order.OrderDate, order.UpdatedAt), nil
}

// Get возвращает заказ по идентификатору.
func (l *Ledger) Get(orderID string) (domain.Order, error) {
	return l.orders.Get(orderID)
}

// GetByReference возвращает заказ по клиентскому reference.
func (l *Ledger) GetByReference(reference string) (domain.Order, error) {
	return l.orders.GetByReference(reference)
}

// List возвращает заказы клиента, свежие первыми.
func (l *Ledger) List(customerID string, limit int) ([]domain.Order, error) {
	return l.orders.ListByCustomer(customerID, limit)
}

func (l *Ledger) emitEvent(orderID, eventType string, payload map[string]interface{}) {
	if l.outbox == nil {
		return
	}
	if payload == nil {
		payload = make(map[string]interface{})
	}
	payload["order_id"] = orderID
	payload["ts"] = time.Now().UTC().Format(time.RFC3339Nano)

	data, err := json.Marshal(payload)
	if err != nil {
		l.logger.WithError(err).WithFields(log.Fields{
			"order_id": orderID,
			"event":    eventType,
		}).Error("marshal event failed")
		return
	}

	msg := domain.OutboxMessage{
		AggregateType: "order",
		AggregateID:   orderID,
		EventType:     eventType,
		Payload:       data,
	}
	if _, err := l.outbox.Enqueue(msg); err != nil {
		l.logger.WithError(err).WithFields(log.Fields{
			"order_id": orderID,
			"event":    eventType,
		}).Error("enqueue event failed")
		return
	}
	if l.metrics != nil {
		l.metrics.RecordOutboxEvent()
	}
}

// newReference генерирует человекочитаемый идентификатор вида
// PREFIX-<unix-millis>-<6 символов uuid>.
func newReference(prefix string) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return fmt.Sprintf("%s-%d-%s", prefix, time.Now().UnixMilli(), suffix)
}
