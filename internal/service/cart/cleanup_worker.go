package cart

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

const (
	defaultCleanupInterval  = 30 * time.Minute
	defaultCleanupBatchSize = 500
	defaultGuestCartTTL     = 7 * 24 * time.Hour
)

var (
	cartCleanupRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_cart_cleanup_runs_total",
		Help: "Total number of stale guest cart cleanup runs grouped by result.",
	}, []string{"result"})
	cartCleanupDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checkout_cart_cleanup_deleted_total",
		Help: "Total number of deleted stale guest cart lines.",
	})
	cartCleanupLastDeleted = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "checkout_cart_cleanup_last_deleted",
		Help: "Number of deleted guest cart lines during the last cleanup run.",
	})
)

// CleanupOptions задаёт параметры воркера очистки гостевых корзин.
type CleanupOptions struct {
	Logger    *log.Entry
	Interval  time.Duration
	BatchSize int
	TTL       time.Duration
}

// CleanupOption настраивает CleanupWorker.
type CleanupOption func(*CleanupOptions)

// WithLogger задаёт logger для воркера.
func WithLogger(logger *log.Entry) CleanupOption {
	return func(opts *CleanupOptions) {
		opts.Logger = logger
	}
}

// WithInterval задаёт интервал между cleanup-циклами.
func WithInterval(interval time.Duration) CleanupOption {
	return func(opts *CleanupOptions) {
		opts.Interval = interval
	}
}

// WithBatchSize задаёт размер batch для одного удаления.
func WithBatchSize(batchSize int) CleanupOption {
	return func(opts *CleanupOptions) {
		opts.BatchSize = batchSize
	}
}

// WithTTL задаёт возраст, после которого гостевая строка считается брошенной.
func WithTTL(ttl time.Duration) CleanupOption {
	return func(opts *CleanupOptions) {
		opts.TTL = ttl
	}
}

// CleanupWorker периодически удаляет брошенные гостевые корзины. Клиентские
// корзины не трогает: только гостевые строки старше TTL.
type CleanupWorker struct {
	repo      domain.CartRepository
	logger    *log.Entry
	interval  time.Duration
	batchSize int
	ttl       time.Duration
}

// NewCleanupWorker создаёт воркер очистки гостевых корзин.
func NewCleanupWorker(repo domain.CartRepository, options ...CleanupOption) *CleanupWorker {
	opts := CleanupOptions{
		Interval:  defaultCleanupInterval,
		BatchSize: defaultCleanupBatchSize,
		TTL:       defaultGuestCartTTL,
	}
	for _, option := range options {
		option(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "cart-cleanup-worker")
	}

	if opts.Interval <= 0 {
		opts.Interval = defaultCleanupInterval
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultCleanupBatchSize
	}
	if opts.TTL <= 0 {
		opts.TTL = defaultGuestCartTTL
	}

	return &CleanupWorker{
		repo:      repo,
		logger:    logger,
		interval:  opts.Interval,
		batchSize: opts.BatchSize,
		ttl:       opts.TTL,
	}
}

// Run запускает периодическую очистку до отмены ctx.
func (w *CleanupWorker) Run(ctx context.Context) {
	if w.repo == nil {
		w.logger.Warn("cart cleanup worker is disabled: repo is nil")
		return
	}

	w.cleanup(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.cleanup(ctx)
		}
	}
}

func (w *CleanupWorker) cleanup(ctx context.Context) {
	deleted, err := w.DeleteStale(ctx, time.Now().UTC().Add(-w.ttl))
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		cartCleanupRunsTotal.WithLabelValues("error").Inc()
		w.logger.WithError(err).Warn("guest cart cleanup run failed")
		return
	}

	cartCleanupRunsTotal.WithLabelValues("ok").Inc()
	cartCleanupLastDeleted.Set(float64(deleted))
	if deleted > 0 {
		w.logger.WithField("deleted", deleted).Info("guest cart cleanup completed")
	}
}

// DeleteStale удаляет все гостевые строки старше before порциями batchSize.
func (w *CleanupWorker) DeleteStale(ctx context.Context, before time.Time) (int, error) {
	if before.IsZero() {
		before = time.Now().UTC().Add(-w.ttl)
	}

	totalDeleted := 0
	for {
		if err := ctx.Err(); err != nil {
			return totalDeleted, err
		}

		deleted, err := w.repo.DeleteStaleGuestLines(before, w.batchSize)
		if err != nil {
			return totalDeleted, err
		}

		totalDeleted += deleted
		if deleted > 0 {
			cartCleanupDeletedTotal.Add(float64(deleted))
		}

		if deleted < w.batchSize {
			break
		}
	}

	return totalDeleted, nil
}
