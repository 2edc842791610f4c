package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics содержит метрики конвейера checkout → оплата → fulfillment.
type CheckoutMetrics struct {
	// Счётчики checkout
	checkoutStarted   prometheus.Counter
	checkoutCompleted prometheus.Counter
	checkoutRejected  *prometheus.CounterVec

	// Счётчики платежей
	paymentsRecorded  prometheus.Counter
	paymentsDuplicate prometheus.Counter
	consistencyFaults prometheus.Counter

	// Счётчики fulfillment
	fulfillmentFailed prometheus.Counter
	stockRestored     prometheus.Counter

	// Гистограммы
	checkoutDuration prometheus.Histogram
	priceDriftPct    prometheus.Histogram

	// События outbox
	outboxEvents prometheus.Counter
}

// NewCheckoutMetrics создаёт метрики с дефолтным registerer.
func NewCheckoutMetrics() *CheckoutMetrics {
	return newCheckoutMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func newCheckoutMetricsWithRegisterer(registerer prometheus.Registerer) *CheckoutMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &CheckoutMetrics{
		checkoutStarted: registerCounter(registerer, prometheus.CounterOpts{
			Name: "checkout_started_total",
			Help: "Total number of checkout attempts",
		}),
		checkoutCompleted: registerCounter(registerer, prometheus.CounterOpts{
			Name: "checkout_completed_total",
			Help: "Total number of checkouts that produced an order",
		}),
		checkoutRejected: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "checkout_rejected_total",
			Help: "Total number of rejected checkouts grouped by reason",
		}, []string{"reason"}),
		paymentsRecorded: registerCounter(registerer, prometheus.CounterOpts{
			Name: "checkout_payments_recorded_total",
			Help: "Total number of payments recorded",
		}),
		paymentsDuplicate: registerCounter(registerer, prometheus.CounterOpts{
			Name: "checkout_payments_duplicate_total",
			Help: "Total number of idempotent payment replays detected",
		}),
		consistencyFaults: registerCounter(registerer, prometheus.CounterOpts{
			Name: "checkout_consistency_faults_total",
			Help: "Total number of verified charges that failed to record",
		}),
		fulfillmentFailed: registerCounter(registerer, prometheus.CounterOpts{
			Name: "checkout_fulfillment_failed_total",
			Help: "Total number of fulfillment attempts rejected by stock",
		}),
		stockRestored: registerCounter(registerer, prometheus.CounterOpts{
			Name: "checkout_stock_restored_total",
			Help: "Total number of orders whose stock was restored on cancel",
		}),
		checkoutDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "checkout_duration_seconds",
			Help:    "Duration of checkout validation in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		priceDriftPct: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "checkout_price_drift_ratio",
			Help:    "Observed relative price drift between cart and checkout",
			Buckets: []float64{0.001, 0.005, 0.01, 0.02, 0.03, 0.05, 0.1, 0.25, 0.5},
		}),
		outboxEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "checkout_outbox_events_total",
			Help: "Total number of outbox events enqueued",
		}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogram(registerer prometheus.Registerer, opts prometheus.HistogramOpts) prometheus.Histogram {
	collector := prometheus.NewHistogram(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Histogram)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram %q: %v", opts.Name, err))
	}
	return collector
}

// RecordCheckoutStarted увеличивает счётчик начатых checkout.
func (m *CheckoutMetrics) RecordCheckoutStarted() {
	m.checkoutStarted.Inc()
}

// RecordCheckoutCompleted увеличивает счётчик успешных checkout.
func (m *CheckoutMetrics) RecordCheckoutCompleted() {
	m.checkoutCompleted.Inc()
}

// RecordCheckoutRejected увеличивает счётчик отклонённых checkout по причине.
func (m *CheckoutMetrics) RecordCheckoutRejected(reason string) {
	m.checkoutRejected.WithLabelValues(reason).Inc()
}

// RecordPaymentRecorded увеличивает счётчик записанных платежей.
func (m *CheckoutMetrics) RecordPaymentRecorded() {
	m.paymentsRecorded.Inc()
}

// RecordPaymentDuplicate увеличивает счётчик идемпотентных повторов.
func (m *CheckoutMetrics) RecordPaymentDuplicate() {
	m.paymentsDuplicate.Inc()
}

// RecordConsistencyFault увеличивает счётчик расхождений провайдер/запись.
func (m *CheckoutMetrics) RecordConsistencyFault() {
	m.consistencyFaults.Inc()
}

// RecordFulfillmentFailed увеличивает счётчик отказов по стоку.
func (m *CheckoutMetrics) RecordFulfillmentFailed() {
	m.fulfillmentFailed.Inc()
}

// RecordStockRestored увеличивает счётчик возвратов стока.
func (m *CheckoutMetrics) RecordStockRestored() {
	m.stockRestored.Inc()
}

// RecordCheckoutDuration записывает длительность checkout.
func (m *CheckoutMetrics) RecordCheckoutDuration(duration time.Duration) {
	m.checkoutDuration.Observe(duration.Seconds())
}

// RecordPriceDrift записывает наблюдённый относительный дрейф цен.
func (m *CheckoutMetrics) RecordPriceDrift(ratio float64) {
	m.priceDriftPct.Observe(ratio)
}

// RecordOutboxEvent увеличивает счётчик событий outbox.
func (m *CheckoutMetrics) RecordOutboxEvent() {
	m.outboxEvents.Inc()
}
