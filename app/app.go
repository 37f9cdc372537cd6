// Package app assembles the services shared by the API server and the
// gatewayctl CLI from a loaded configuration.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"multigateway-api/config"
	"multigateway-api/database"
	"multigateway-api/queue"
	"multigateway-api/services/auth"
	"multigateway-api/services/billing"
	"multigateway-api/services/events"
	"multigateway-api/services/idempotency"
	"multigateway-api/services/payment"
	"multigateway-api/services/payment/registry"
)

const (
	ServiceName = "multigateway-api"
	JobQueue    = "gateway_jobs"
)

type App struct {
	Config   *config.Config
	Logger   *zap.Logger
	Registry *registry.Registry
	Gateways map[string]payment.Gateway
	Store    database.Store
	// Redis and Queue are nil when REDIS_URL is not set.
	Redis   *redis.Client
	Queue   *queue.Queue
	Events  events.Publisher
	Billing *billing.Service
	// JWT is nil when JWT_SECRET is not set.
	JWT *auth.JWTService
}

// New connects every configured dependency. Call Close when done.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger}

	a.Registry = registry.Default(logger)
	a.Registry.AllowLive = cfg.Gateways.AllowLive
	gateways, err := a.Registry.LoadAll(cfg.Gateways.Settings)
	if err != nil {
		return nil, fmt.Errorf("loading gateways: %w", err)
	}
	a.Gateways = gateways

	a.Store, err = database.Open(cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("opening %s store: %w", cfg.Database.Driver, err)
	}

	var idem idempotency.Store = idempotency.NewMemoryStore(idempotency.DefaultTTL)
	if cfg.Redis.URL != "" {
		a.Redis, err = queue.Connect(cfg.Redis.URL)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Queue = queue.NewQueue(a.Redis, JobQueue, logger)
		idem = idempotency.NewRedisStore(a.Redis, idempotency.DefaultTTL)
	} else {
		logger.Warn("REDIS_URL not set: idempotency keys are kept in memory and async jobs are disabled")
	}

	if cfg.Kafka.Brokers != "" {
		publisher, err := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Events = publisher
	} else {
		a.Events = events.NewLogPublisher(logger)
	}

	if cfg.Auth.JWTSecret != "" {
		a.JWT, err = auth.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer)
		if err != nil {
			a.Close()
			return nil, err
		}
	}

	billingCfg := billing.Config{
		Gateways:    gateways,
		Store:       a.Store,
		Idempotency: idem,
		Events:      a.Events,
		PANHashKey:  []byte(cfg.PANHashKey),
		Logger:      logger,
		Currencies:  a.Registry.DefaultCurrencies(),
	}
	// A nil *queue.Queue must not become a non-nil interface.
	if a.Queue != nil {
		billingCfg.Queue = a.Queue
	}
	a.Billing = billing.NewService(billingCfg)

	return a, nil
}

// Migrate applies the schema when the store has one.
func (a *App) Migrate(ctx context.Context) error {
	m, ok := a.Store.(database.Migrator)
	if !ok {
		return nil
	}
	return m.Migrate(ctx)
}

// Close releases every connection opened by New.
func (a *App) Close() error {
	var errs []error
	if a.Events != nil {
		errs = append(errs, a.Events.Close())
	}
	if a.Store != nil {
		errs = append(errs, a.Store.Close())
	}
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	return errors.Join(errs...)
}
