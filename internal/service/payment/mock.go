package payment

import (
	"fmt"
	"sync"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

// MockGateway — конфигурируемая заглушка платёжного провайдера для тестов и
// dev-окружения. По умолчанию подтверждает транзакцию на сумму из Initialize.
type MockGateway struct {
	mu sync.Mutex

	InitErr    error
	VerifyErr  error
	Status     string
	AmountOver int64 // надбавка к сумме в verify-ответе, для сценариев расхождения

	InitCalls   int
	VerifyCalls int

	initialized map[string]domain.GatewayInit
	amounts     map[string]int64
	currencies  map[string]string
}

// NewMockGateway возвращает mock с успешным сценарием по умолчанию.
func NewMockGateway() *MockGateway {
	return &MockGateway{
		Status:      domain.GatewayStatusSuccess,
		initialized: make(map[string]domain.GatewayInit),
		amounts:     make(map[string]int64),
		currencies:  make(map[string]string),
	}
}

// Initialize запоминает транзакцию и возвращает фиктивную платёжную ссылку.
func (m *MockGateway) Initialize(email string, amountMinor int64, reference string, metadata map[string]string) (domain.GatewayInit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.InitCalls++
	if m.InitErr != nil {
		return domain.GatewayInit{}, m.InitErr
	}

	init := domain.GatewayInit{
		AuthorizationURL: fmt.Sprintf("https://gateway.test/pay/%s", reference),
		AccessCode:       "access-" + reference,
	}
	m.initialized[reference] = init
	m.amounts[reference] = amountMinor
	if currency, ok := metadata["currency"]; ok {
		m.currencies[reference] = currency
	}
	return init, nil
}

// Verify возвращает настроенный статус и сумму, запомненную в Initialize.
func (m *MockGateway) Verify(reference string) (domain.GatewayVerification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.VerifyCalls++
	if m.VerifyErr != nil {
		return domain.GatewayVerification{}, m.VerifyErr
	}

	return domain.GatewayVerification{
		Status:            m.Status,
		AmountMinor:       m.amounts[reference] + m.AmountOver,
		Currency:          m.currencies[reference],
		Channel:           "card",
		AuthorizationCode: "auth-" + reference,
	}, nil
}

// SetVerifyAmount напрямую задаёт сумму verify-ответа для reference.
func (m *MockGateway) SetVerifyAmount(reference string, amountMinor int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.amounts[reference] = amountMinor
}

// SetVerifyCurrency напрямую задаёт валюту verify-ответа для reference.
func (m *MockGateway) SetVerifyCurrency(reference, currency string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.currencies[reference] = currency
}

var _ domain.PaymentGateway = (*MockGateway)(nil)
