package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"multigateway-api/app"
	"multigateway-api/config"
	"multigateway-api/handlers"
	"multigateway-api/logging"
	"multigateway-api/middleware"
	"multigateway-api/tracing"
	"multigateway-api/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Environment)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server exited with error", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx := context.Background()

	shutdownTracing, err := tracing.Init(ctx, app.ServiceName, cfg.Tracing.Endpoint)
	if err != nil {
		return fmt.Errorf("initializing tracing: %w", err)
	}
	defer func() {
		tctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(tctx); err != nil {
			logger.Warn("tracing shutdown failed", zap.Error(err))
		}
	}()

	a, err := app.New(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	migrateCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	err = a.Migrate(migrateCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("migrating schema: %w", err)
	}

	logger.Info("gateways loaded", zap.Strings("gateways", a.Billing.GatewayNames()))

	var paymentWorker *worker.Worker
	if a.Queue != nil {
		paymentWorker = worker.NewWorker(a.Queue, a.Billing, logger, worker.Options{})
		paymentWorker.Start(cfg.Redis.WorkerConcurrency)
		logger.Info("started payment worker", zap.Int("concurrency", cfg.Redis.WorkerConcurrency))
	}

	checks := map[string]handlers.Check{"database": a.Store.Ping}
	if a.Redis != nil {
		checks["redis"] = func(ctx context.Context) error { return a.Redis.Ping(ctx).Err() }
	}

	routerCfg := handlers.RouterConfig{
		Gateways:     handlers.NewGatewayHandler(a.Registry, a.Billing.GatewayNames()),
		Transactions: handlers.NewTransactionHandler(a.Billing, logger),
		Health:       handlers.NewHealthHandler(checks),
		CORSOrigins:  cfg.Server.CORSOrigins,
		Logger:       logger,
	}
	if a.JWT != nil {
		routerCfg.Auth = middleware.AuthMiddleware(a.JWT, logger)
		if cfg.Auth.InternalSecret != "" {
			routerCfg.Internal = handlers.NewInternalHandler(a.JWT, cfg.Auth.InternalSecret, logger)
		}
	} else {
		logger.Warn("JWT_SECRET not set: /api is served without authentication")
	}
	if a.Redis != nil {
		limiter := middleware.NewRateLimiter(a.Redis, middleware.RateLimitConfig{
			Requests:   cfg.Server.RateLimitPerMinute,
			Window:     time.Minute,
			TrustProxy: cfg.Server.TrustProxyHeaders,
		}, logger)
		routerCfg.RateLimit = limiter.Middleware
	}

	srv := &http.Server{
		Addr:           fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:        handlers.NewRouter(routerCfg),
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   90 * time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
		close(serverErr)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info("shutdown signal received, gracefully shutting down")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server forced to shutdown", zap.Error(err))
	}

	if paymentWorker != nil {
		logger.Info("stopping payment worker")
		paymentWorker.Stop()
	}

	logger.Info("server exited properly")
	return nil
}
