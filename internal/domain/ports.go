package domain

import "time"

// GatewayInit — результат инициализации транзакции у платёжного провайдера.
type GatewayInit struct {
	AuthorizationURL string
	AccessCode       string
}

// GatewayVerification — подтверждённые провайдером данные транзакции.
type GatewayVerification struct {
	Status            string
	AmountMinor       int64
	Currency          string
	Channel           string
	AuthorizationCode string
}

// GatewayStatusSuccess — статус успешно завершённой транзакции у провайдера.
const GatewayStatusSuccess = "success"

// PaymentGateway описывает взаимодействие с платёжным провайдером.
// Core потребляет только verify-ответ; retry и TLS — забота адаптера.
type PaymentGateway interface {
	// Initialize создаёт транзакцию и возвращает ссылку на страницу оплаты.
	Initialize(email string, amountMinor int64, reference string, metadata map[string]string) (GatewayInit, error)
	// Verify запрашивает итоговый статус транзакции по reference.
	Verify(reference string) (GatewayVerification, error)
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(msg OutboxMessage) (OutboxMessage, error)
	PullPending(limit int) ([]OutboxMessage, error)
	Stats() (OutboxStats, error)
	MarkSent(id string) error
	MarkFailed(id string) error
}

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// Каталог типов событий, которые сервисы кладут в outbox. Единственный
// источник значений для поля OutboxMessage.EventType.
const (
	EventCartMerged = "cart.merged"

	EventCheckoutCompleted = "checkout.completed"
	EventCheckoutRejected  = "checkout.rejected"

	EventOrderCreated       = "order.created"
	EventOrderStatusChanged = "order.status_changed"
	EventOrderCancelled     = "order.cancelled"

	EventPaymentRecorded     = "payment.recorded"
	EventPaymentUnreconciled = "payment.unreconciled"

	EventStockRestored      = "stock.restored"
	EventStockRestoreFailed = "stock.restore_failed"
)

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}
