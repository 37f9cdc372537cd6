package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"multigateway-api/metrics"
	"multigateway-api/middleware"
	"multigateway-api/tracing"
)

type RouterConfig struct {
	Gateways     *GatewayHandler
	Transactions *TransactionHandler
	Health       *HealthHandler
	// Internal is optional; without it /internal routes are not mounted.
	Internal *InternalHandler
	// Auth and RateLimit wrap the /api subrouter when set.
	Auth        func(http.Handler) http.Handler
	RateLimit   func(http.Handler) http.Handler
	CORSOrigins []string
	Logger      *zap.Logger
}

// NewRouter wires the HTTP API.
func NewRouter(cfg RouterConfig) *mux.Router {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := mux.NewRouter()
	router.Use(tracing.Middleware)
	router.Use(metrics.Middleware)
	router.Use(middleware.LoggingMiddleware(logger))
	router.Use(middleware.SecurityHeadersMiddleware)
	router.Use(middleware.CORSMiddleware(cfg.CORSOrigins))

	router.Handle("/metrics", metrics.Handler()).Methods("GET")
	if cfg.Health != nil {
		router.HandleFunc("/health", cfg.Health.Health).Methods("GET")
	}

	api := router.PathPrefix("/api").Subrouter()
	if cfg.Auth != nil {
		api.Use(cfg.Auth)
	}
	if cfg.RateLimit != nil {
		api.Use(cfg.RateLimit)
	}

	api.HandleFunc("/gateways", cfg.Gateways.ListGateways).Methods("GET", "OPTIONS")
	api.HandleFunc("/gateways/{gateway}/{action}", cfg.Transactions.Process).Methods("POST", "OPTIONS")
	api.HandleFunc("/transactions", cfg.Transactions.ListTransactions).Methods("GET", "OPTIONS")
	api.HandleFunc("/transactions/{id}", cfg.Transactions.GetTransaction).Methods("GET", "OPTIONS")

	if cfg.Internal != nil {
		internal := router.PathPrefix("/internal").Subrouter()
		internal.HandleFunc("/tokens", cfg.Internal.RequireInternalSecret(cfg.Internal.IssueToken)).Methods("POST")
	}

	return router
}
