package initializer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/amirasaad/checkoutflow/infra"
	infra_eventbus "github.com/amirasaad/checkoutflow/infra/eventbus"
	"github.com/amirasaad/checkoutflow/infra/provider/mocksettlement"
	"github.com/amirasaad/checkoutflow/infra/provider/stripesettlement"
	fundingrepo "github.com/amirasaad/checkoutflow/infra/repository/funding"
	"github.com/amirasaad/checkoutflow/infra/sessionstore"
	fundingfixtures "github.com/amirasaad/checkoutflow/internal/fixtures/funding"
	"github.com/amirasaad/checkoutflow/pkg/app"
	"github.com/amirasaad/checkoutflow/pkg/checkout"
	"github.com/amirasaad/checkoutflow/pkg/config"
	"github.com/amirasaad/checkoutflow/pkg/eventbus"
	"github.com/amirasaad/checkoutflow/pkg/funding"
	"github.com/amirasaad/checkoutflow/pkg/money"
	"github.com/amirasaad/checkoutflow/pkg/provider/settlement"
	checkoutsvc "github.com/amirasaad/checkoutflow/pkg/service/checkout"
)

// InitializeDependencies initializes all the application dependencies. The
// returned cleanup closes every connection that was opened.
func InitializeDependencies(cfg *config.App) (
	deps *app.Deps,
	cleanup func(),
	err error,
) {
	logger := NewLogger(cfg.Log, os.Stdout)
	slog.SetDefault(logger)
	deps = &app.Deps{Logger: logger}

	var closers []io.Closer
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if cerr := closers[i].Close(); cerr != nil {
				logger.Warn("Failed to close dependency", "error", cerr)
			}
		}
	}
	defer func() {
		if err != nil {
			closeAll()
		}
	}()

	store, err := initSessionStore(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	deps.Store = store
	if c, ok := store.(io.Closer); ok {
		closers = append(closers, c)
	}

	deps.Settler, err = initSettler(cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	sources, repo, err := initFunding(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	deps.Sources = sources
	if repo != nil {
		deps.Debiter = repo
	}

	bus, err := initEventBus(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	deps.EventBus = bus
	if c, ok := bus.(io.Closer); ok {
		closers = append(closers, c)
	}

	return deps, closeAll, nil
}

func initSessionStore(cfg *config.App, logger *slog.Logger) (checkout.Store, error) {
	switch strings.ToLower(cfg.Checkout.Store) {
	case "", "memory":
		logger.Info("Using in-memory session store")
		return sessionstore.NewMemoryStore(), nil
	case "redis":
		store, err := sessionstore.NewRedisStore(cfg.Redis, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create Redis session store: %w", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("failed to reach Redis session store: %w", err)
		}
		logger.Info("Using Redis session store", "key_prefix", cfg.Redis.KeyPrefix)
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported session store %q", cfg.Checkout.Store)
	}
}

func initSettler(cfg *config.App, logger *slog.Logger) (settlement.Settler, error) {
	switch strings.ToLower(cfg.Checkout.Settler) {
	case "", "mock":
		logger.Warn("Using mock settlement; no real payments will be made")
		return mocksettlement.New(500*time.Millisecond, logger), nil
	case "stripe":
		if cfg.PaymentProviders == nil || cfg.PaymentProviders.Stripe == nil || cfg.PaymentProviders.Stripe.ApiKey == "" {
			return nil, fmt.Errorf("stripe settlement requires PAYMENT_PROVIDER_STRIPE_API_KEY")
		}
		logger.Info("Using Stripe settlement")
		return stripesettlement.New(cfg.PaymentProviders.Stripe, logger), nil
	default:
		return nil, fmt.Errorf("unsupported settler %q", cfg.Checkout.Settler)
	}
}

// initFunding uses the funding_sources table when a database is configured
// and a fixed demo set otherwise.
func initFunding(cfg *config.App, logger *slog.Logger) (checkoutsvc.Sources, *fundingrepo.Repository, error) {
	if cfg.DB == nil || cfg.DB.Url == "" {
		code := cfg.Checkout.Currency()
		sources, err := DemoSources(code)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load demo funding sources: %w", err)
		}
		logger.Info("Using demo funding sources", "currency", code, "count", len(sources))
		return checkoutsvc.Shared{Provider: funding.NewStatic(sources...)}, nil, nil
	}

	db, err := infra.NewDBConnection(cfg.DB, cfg.Env)
	if err != nil {
		logger.Error("Failed to initialize database", "error", err)
		return nil, nil, err
	}
	repo := fundingrepo.New(db)
	if err := repo.Migrate(context.Background()); err != nil {
		return nil, nil, fmt.Errorf("failed to migrate funding sources: %w", err)
	}
	return repo, repo, nil
}

// DemoSources loads the demo funding sources in code, from the CSV named by
// CHECKOUT_DEMO_SOURCES or the embedded fixture. The card id is a Stripe
// test payment method so the demo also settles against Stripe.
func DemoSources(code money.Code) ([]funding.Source, error) {
	return fundingfixtures.LoadSourcesCSV(config.GetEnv("CHECKOUT_DEMO_SOURCES", ""), code)
}

// initEventBus picks the bus named by EVENTBUS_DRIVER. A broker that cannot
// be reached falls back to the in-memory bus so checkout keeps working.
func initEventBus(cfg *config.App, logger *slog.Logger) (eventbus.Bus, error) {
	driver := ""
	if cfg.EventBus != nil {
		driver = strings.ToLower(strings.TrimSpace(cfg.EventBus.Driver))
	}
	types := checkout.LifecycleEventTypes()

	switch driver {
	case "", "memory":
		return infra_eventbus.NewWithMemory(logger), nil
	case "redis":
		if cfg.Redis == nil || cfg.Redis.URL == "" {
			return nil, fmt.Errorf("redis event bus requires REDIS_URL")
		}
		bus, err := infra_eventbus.NewWithRedis(cfg.Redis.URL, cfg.EventBus.Redis, types, logger)
		if err != nil {
			logger.Warn("Redis event bus unavailable, falling back to memory", "error", err)
			return infra_eventbus.NewWithMemory(logger), nil
		}
		return bus, nil
	case "kafka":
		if cfg.EventBus.Kafka == nil || strings.TrimSpace(cfg.EventBus.Kafka.Brokers) == "" {
			return nil, fmt.Errorf("kafka event bus requires EVENTBUS_KAFKA_BROKERS")
		}
		bus, err := infra_eventbus.NewWithKafka(cfg.EventBus.Kafka, types, logger)
		if err != nil {
			logger.Warn("Kafka event bus unavailable, falling back to memory", "error", err)
			return infra_eventbus.NewWithMemory(logger), nil
		}
		return bus, nil
	default:
		return nil, fmt.Errorf("unsupported event bus driver %q", driver)
	}
}
