package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
	"github.com/vladislavdragonenkov/checkout/internal/health"
	"github.com/vladislavdragonenkov/checkout/internal/storage/memory"
	"github.com/vladislavdragonenkov/checkout/internal/storage/postgres"
)

// runtimeDependencies содержит хранилища, выбранные по конфигурации.
type runtimeDependencies struct {
	carts          domain.CartRepository
	products       domain.ProductRepository
	orders         domain.OrderRepository
	outboxRepo     domain.OutboxRepository
	storageChecker health.Checker
	closeFn        func() error
}

// initRuntimeDependencies создаёт репозитории по выбранному драйверу хранилища.
func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*runtimeDependencies, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}

	switch cfg.StorageDriver {
	case StorageDriverMemory, "":
		products := memory.NewProductRepository()
		seedDemoCatalog(products)
		logger.Info("using in-memory storage")
		return &runtimeDependencies{
			carts:      memory.NewCartRepository(),
			products:   products,
			orders:     memory.NewOrderRepository(products),
			outboxRepo: memory.NewOutboxRepository(),
		}, nil

	case StorageDriverPostgres:
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("postgres storage driver requires a DSN")
		}

		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		if cfg.PostgresAutoMigrate {
			if err := store.EnsureSchema(ctx); err != nil {
				_ = store.Close()
				return nil, fmt.Errorf("apply migrations: %w", err)
			}
		}
		logger.Info("using postgres storage")

		return &runtimeDependencies{
			carts:      postgres.NewCartRepository(store),
			products:   postgres.NewProductRepository(store),
			orders:     postgres.NewOrderRepository(store),
			outboxRepo: postgres.NewOutboxRepository(store),
			storageChecker: health.NewSimpleChecker("postgres", func() error {
				return store.Ping(context.Background())
			}),
			closeFn: store.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", cfg.StorageDriver)
	}
}

// seedDemoCatalog наполняет in-memory каталог демо-товарами.
// NOTE: in-memory режим предназначен для разработки и демо; в production
// каталог живёт в postgres.
func seedDemoCatalog(products *memory.ProductRepositoryInMemory) {
	products.Seed(domain.Product{ID: "demo-widget", Title: "Demo Widget", PriceMinor: 1999, Stock: 100, Purchasable: true})
	products.Seed(domain.Product{ID: "demo-gadget", Title: "Demo Gadget", PriceMinor: 4999, Stock: 25, Purchasable: true})
	products.Seed(domain.Product{ID: "demo-gizmo", Title: "Demo Gizmo", PriceMinor: 999, Stock: 0, Purchasable: true})
}
