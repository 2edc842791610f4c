package app

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/checkout/internal/health"
	"github.com/vladislavdragonenkov/checkout/internal/metrics"
	"github.com/vladislavdragonenkov/checkout/internal/service/cart"
	"github.com/vladislavdragonenkov/checkout/internal/service/checkout"
	"github.com/vladislavdragonenkov/checkout/internal/service/fulfillment"
	"github.com/vladislavdragonenkov/checkout/internal/service/httpapi"
	"github.com/vladislavdragonenkov/checkout/internal/service/order"
	"github.com/vladislavdragonenkov/checkout/internal/service/outbox"
	"github.com/vladislavdragonenkov/checkout/internal/service/payment"
	"github.com/vladislavdragonenkov/checkout/internal/version"

	kafkamsg "github.com/vladislavdragonenkov/checkout/internal/messaging/kafka"
)

// outboxBacklogThreshold — размер очереди outbox, выше которого health
// репортит degraded: события копятся быстрее, чем публикуются.
const outboxBacklogThreshold = 1000

// Run собирает зависимости и запускает сервис до отмены ctx.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	deps, err := initRuntimeDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if deps.closeFn != nil {
		defer func() {
			if err := deps.closeFn(); err != nil {
				logger.WithError(err).Warn("failed to close storage")
			}
		}()
	}

	checkoutMetrics := metrics.NewCheckoutMetrics()

	restorer := fulfillment.NewEngine(deps.orders, deps.products, checkoutMetrics, logger.WithField("layer", "fulfillment"))
	ledger := order.NewLedger(deps.orders, restorer, deps.outboxRepo, checkoutMetrics, logger.WithField("layer", "order"))
	cartSvc := cart.NewService(deps.carts, deps.products, deps.outboxRepo, logger.WithField("layer", "cart"))
	validator := checkout.NewValidator(deps.carts, deps.products, ledger, deps.outboxRepo, checkoutMetrics, cfg.Currency, logger.WithField("layer", "checkout"))

	// NOTE: mock-провайдер для разработки и демо; в production сюда
	// подключается реальный адаптер платёжного провайдера.
	gateway := payment.NewMockGateway()
	processor := payment.NewProcessor(gateway, ledger, deps.outboxRepo, checkoutMetrics, logger.WithField("layer", "payment"))

	// Kafka опционален: без брокера события остаются в outbox.
	kafkaProducer, _ := initKafkaProducer(cfg.KafkaBrokers, logger)
	defer closeKafkaProducer(kafkaProducer, logger)

	v, _, _ := version.Info()
	healthHandler := health.NewHandler(v)
	if deps.storageChecker != nil {
		healthHandler.RegisterChecker("storage", deps.storageChecker)
	}
	healthHandler.RegisterChecker("kafka", health.StatusFunc(func() health.Check {
		if kafkaProducer == nil {
			return health.Check{
				Name:    "kafka",
				Status:  health.StatusDegraded,
				Message: "producer not configured, events stay in outbox",
			}
		}
		return health.Check{Name: "kafka", Status: health.StatusHealthy}
	}))
	healthHandler.RegisterChecker("outbox", health.NewBacklogChecker("outbox", outboxBacklogThreshold, func() (int, error) {
		stats, err := deps.outboxRepo.Stats()
		if err != nil {
			return 0, err
		}
		return stats.PendingCount, nil
	}))

	var wg sync.WaitGroup

	if kafkaProducer != nil {
		publisher := kafkamsg.NewOutboxPublisher(kafkaProducer, cfg.KafkaTopic)
		worker := outbox.NewWorker(
			deps.outboxRepo,
			publisher,
			outbox.WithLogger(logger.WithField("layer", "outbox")),
			outbox.WithPollInterval(cfg.OutboxPollInterval),
			outbox.WithBatchSize(cfg.OutboxBatchSize),
			outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
			outbox.WithRetryBaseDelay(cfg.OutboxRetryDelay),
		)
		wg.Add(1)
		go func() {
			defer wg.Done()
			worker.Run(ctx)
		}()
	}

	cleanup := cart.NewCleanupWorker(
		deps.carts,
		cart.WithLogger(logger.WithField("layer", "cart-cleanup")),
		cart.WithInterval(cfg.CartCleanupInterval),
		cart.WithBatchSize(cfg.CartCleanupBatchSize),
		cart.WithTTL(cfg.GuestCartTTL),
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		cleanup.Run(ctx)
	}()

	apiHandler := httpapi.NewHandler(cartSvc, validator, ledger, processor, restorer, healthHandler, logger.WithField("layer", "http"))
	apiSrv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      apiHandler.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, healthHandler)

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("HTTP API слушает %s", cfg.HTTPAddr)
		errCh <- apiSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем сервис")
		shutdownHTTP(apiSrv, logger)
		shutdownHTTP(metricsSrv, logger)
		wg.Wait()
		return ctx.Err()
	case err := <-errCh:
		shutdownHTTP(metricsSrv, logger)
		wg.Wait()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// startMetricsServer запускает HTTP-обработчик /metrics для Prometheus.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler http.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/livez", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		logger.Infof("health checks: %s/healthz, %s/livez", addr, addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http shutdown with error")
	}
}
