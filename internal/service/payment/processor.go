package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
	"github.com/vladislavdragonenkov/checkout/internal/metrics"
	"github.com/vladislavdragonenkov/checkout/internal/service/order"
)

// Processor связывает платёжного провайдера и Ledger: подтверждает
// транзакцию у провайдера и записывает оплату в заказ. Сам провайдер
// скрыт за портом domain.PaymentGateway.
type Processor struct {
	gateway domain.PaymentGateway
	ledger  *order.Ledger
	outbox  domain.OutboxRepository
	metrics *metrics.CheckoutMetrics
	logger  *log.Entry
}

// NewProcessor создаёт платёжный процессор. outbox и metrics опциональны.
func NewProcessor(
	gateway domain.PaymentGateway,
	ledger *order.Ledger,
	outbox domain.OutboxRepository,
	m *metrics.CheckoutMetrics,
	logger *log.Entry,
) *Processor {
	if logger == nil {
		logger = log.WithField("component", "payment-processor")
	}
	return &Processor{
		gateway: gateway,
		ledger:  ledger,
		outbox:  outbox,
		metrics: m,
		logger:  logger,
	}
}

// Initialize создаёт транзакцию у провайдера на полную сумму заказа.
func (p *Processor) Initialize(ctx context.Context, orderID, email string) (domain.GatewayInit, error) {
	if err := ctx.Err(); err != nil {
		return domain.GatewayInit{}, err
	}

	ord, err := p.ledger.Get(orderID)
	if err != nil {
		return domain.GatewayInit{}, err
	}

	init, err := p.gateway.Initialize(email, ord.TotalMinor, ord.Reference, map[string]string{
		"order_id": ord.ID,
		"currency": ord.Currency,
	})
	if err != nil {
		return domain.GatewayInit{}, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	return init, nil
}

// VerifyAndRecord подтверждает транзакцию у провайдера и записывает оплату.
// Ошибки транспорта провайдера оборачиваются в ErrGatewayUnavailable — их
// можно повторять. Повтор уже записанного платежа возвращает заказ и
// ErrPaymentAlreadyProcessed: для клиента это успех. Если провайдер
// подтвердил списание, а запись упала на стоке, наружу уходит
// ConsistencyFaultError — это повод для ручной сверки, а не для retry.
func (p *Processor) VerifyAndRecord(ctx context.Context, orderID, transactionRef, method string) (domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return domain.Order{}, err
	}
	if transactionRef == "" {
		return domain.Order{}, domain.ErrTransactionRefRequired
	}

	verification, err := p.gateway.Verify(transactionRef)
	if err != nil {
		return domain.Order{}, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	if !strings.EqualFold(verification.Status, domain.GatewayStatusSuccess) {
		return domain.Order{}, domain.ErrPaymentNotApproved
	}

	if method == "" {
		method = verification.Channel
	}

	ord, err := p.ledger.RecordPayment(ctx, orderID, verification.AmountMinor, verification.Currency, transactionRef, method)
	if err != nil {
		if domain.IsAlreadyProcessed(err) {
			return ord, err
		}
		if _, isStock := domain.AsStockError(err); isStock {
			// Деньги у провайдера списаны, заказ не оплачен: фиксируем
			// расхождение как инцидент и отдаём его наверх.
			fault := &domain.ConsistencyFaultError{
				OrderID:        orderID,
				TransactionRef: transactionRef,
				Cause:          err,
			}
			if p.metrics != nil {
				p.metrics.RecordConsistencyFault()
			}
			p.logger.WithError(err).WithFields(log.Fields{
				"order_id":        orderID,
				"transaction_ref": transactionRef,
			}).Error("payment verified but recording failed")
			p.emitUnreconciled(orderID, transactionRef, err)
			return domain.Order{}, fault
		}
		return domain.Order{}, err
	}

	return ord, nil
}

func (p *Processor) emitUnreconciled(orderID, transactionRef string, cause error) {
	if p.outbox == nil {
		return
	}

	payload, err := json.Marshal(map[string]interface{}{
		"order_id":        orderID,
		"transaction_ref": transactionRef,
		"cause":           cause.Error(),
		"ts":              time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		p.logger.WithError(err).Error("marshal unreconciled event failed")
		return
	}

	msg := domain.OutboxMessage{
		AggregateType: "payment",
		AggregateID:   orderID,
		EventType:     domain.EventPaymentUnreconciled,
		Payload:       payload,
	}
	if _, err := p.outbox.Enqueue(msg); err != nil {
		p.logger.WithError(err).Error("enqueue unreconciled event failed")
	}
}
