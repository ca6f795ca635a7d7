// Package app wires the fulfillment engine from configuration for the binaries.
package app

import (
	"context"
	"fmt"
	"github.com/ariefcatur/storefront-fulfillment/internal/config"
	"github.com/ariefcatur/storefront-fulfillment/internal/fulfillment"
	"github.com/ariefcatur/storefront-fulfillment/internal/inventory"
	kafkax "github.com/ariefcatur/storefront-fulfillment/internal/kafka"
	"github.com/ariefcatur/storefront-fulfillment/internal/memstore"
	"github.com/ariefcatur/storefront-fulfillment/internal/orders"
	"github.com/ariefcatur/storefront-fulfillment/internal/postgres"
	"github.com/ariefcatur/storefront-fulfillment/internal/redisx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"os"
)

// App holds the engine and the clients it owns.
type App struct {
	Service  *fulfillment.Service
	Redis    *redis.Client
	Producer *kafkax.Producer

	closers []func()
}

// New connects the store selected by cfg.StoreDriver, the redis cache and the
// kafka producer, and builds the engine on top of them.
func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	a := &App{}

	var (
		ledger  orders.StockLedger
		catalog orders.CatalogReader
		store   orders.Store
	)
	seed, err := loadSeed(cfg.CatalogSeedFile)
	if err != nil {
		return nil, err
	}

	switch cfg.StoreDriver {
	case "memory":
		c := memstore.NewCatalog(seed...)
		ledger, catalog, store = c, c, memstore.NewOrders()
		log.Warn("using in-memory store; data is lost on restart", zap.Int("catalog_items", len(seed)))
	default:
		db, err := postgres.Connect(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("db connect: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		if err := postgres.Migrate(ctx, db); err != nil {
			a.Close()
			return nil, err
		}
		stock := &orders.StockRepo{DB: db}
		for _, it := range seed {
			if err := stock.Upsert(ctx, it); err != nil {
				a.Close()
				return nil, err
			}
		}
		ledger, catalog, store = stock, stock, &orders.Repo{DB: db}
	}

	a.Redis = redisx.New(cfg.RedisAddr)
	a.closers = append(a.closers, func() { _ = a.Redis.Close() })

	a.Producer = kafkax.NewProducer(cfg.KafkaBrokers, 1024, log.Named("producer"))
	a.Producer.Start()
	a.closers = append(a.closers, func() {
		a.Producer.Close()
		a.Producer.WaitClosed()
	})

	a.Service = fulfillment.New(fulfillment.Deps{
		Store:                  store,
		Coordinator:            inventory.NewCoordinator(ledger, catalog, log.Named("inventory")),
		Publisher:              &kafkax.EnvelopePublisher{Producer: a.Producer},
		Cache:                  redisx.NewOrderCache(a.Redis, cfg.OrderCacheTTL),
		Log:                    log.Named("fulfillment"),
		ServiceName:            cfg.ServiceName,
		Currency:               cfg.DefaultCurrency,
		VerifyPaymentReference: cfg.VerifyPaymentReference,
	})
	return a, nil
}

// Close releases clients in reverse order of creation.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func loadSeed(path string) ([]orders.CatalogItem, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog seed: %w", err)
	}
	defer f.Close()
	return memstore.DecodeCatalog(f)
}
