package payment

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"multigateway-api/models"
	"multigateway-api/types"
)

// Gateway is the uniform transaction API every processor adapter implements.
//
// A decline is reported as a Response with Success set to false and a nil
// error. The error return is reserved for transport failures, unreadable
// replies and requests that could not be built.
type Gateway interface {
	Name() string
	Purchase(ctx context.Context, money int64, source models.PaymentSource, opts *types.TransactionOptions) (*models.Response, error)
	Authorize(ctx context.Context, money int64, source models.PaymentSource, opts *types.TransactionOptions) (*models.Response, error)
	Capture(ctx context.Context, money int64, authorization string, opts *types.TransactionOptions) (*models.Response, error)
	Refund(ctx context.Context, money int64, authorization string, opts *types.TransactionOptions) (*models.Response, error)
	Void(ctx context.Context, authorization string, opts *types.TransactionOptions) (*models.Response, error)
	Store(ctx context.Context, card *models.CreditCard, opts *types.TransactionOptions) (*models.Response, error)
	Unstore(ctx context.Context, authorization string, opts *types.TransactionOptions) (*models.Response, error)
	Verify(ctx context.Context, card *models.CreditCard, opts *types.TransactionOptions) (*models.Response, error)
}

// Modes select the processor environment.
const (
	ModeTest = "test"
	ModeLive = "live"
)

const DefaultTimeout = 30 * time.Second

// Config is shared by every adapter constructor.
type Config struct {
	Mode        string
	Credentials map[string]string
	// Endpoint overrides the processor URL chosen by Mode.
	Endpoint   string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Test reports whether the adapter targets the processor sandbox.
func (c Config) Test() bool {
	return c.Mode != ModeLive
}

// Credential returns a credential value or "".
func (c Config) Credential(key string) string {
	if c.Credentials == nil {
		return ""
	}
	return c.Credentials[key]
}

// RequireCredentials fails when any of keys is missing.
func (c Config) RequireCredentials(gateway string, keys ...string) error {
	for _, k := range keys {
		if c.Credential(k) == "" {
			return &MissingCredentialError{Gateway: gateway, Key: k}
		}
	}
	return nil
}

// EndpointFor returns the override endpoint or the sandbox/live URL.
func (c Config) EndpointFor(sandbox, live string) string {
	if c.Endpoint != "" {
		return c.Endpoint
	}
	if c.Test() {
		return sandbox
	}
	return live
}

// LoggerOrNop returns the configured logger or a no-op logger.
func (c Config) LoggerOrNop() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

// NewHTTPClient returns the configured client or a pooled default.
func (c Config) NewHTTPClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 20,
		MaxConnsPerHost:     100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	return &http.Client{
		Timeout:   DefaultTimeout,
		Transport: transport,
	}
}
