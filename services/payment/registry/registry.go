// Package registry maps gateway names to adapter constructors and builds
// configured gateways from settings.
package registry

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"

	"go.uber.org/zap"

	"multigateway-api/models"
	"multigateway-api/services/payment"
	"multigateway-api/services/payment/authorizenet"
	"multigateway-api/services/payment/bogus"
	"multigateway-api/services/payment/cybersource"
	"multigateway-api/services/payment/epx"
	"multigateway-api/services/payment/redsys"
)

var (
	ErrGatewayNotRegistered = errors.New("gateway not registered")
	ErrGatewayDisabled      = errors.New("gateway disabled")
	ErrLiveBlocked          = errors.New("live mode is not allowed")
	ErrDuplicateGateway     = errors.New("gateway already registered")
)

// GatewayError ties a registry failure to the gateway name that caused it.
type GatewayError struct {
	Gateway string
	Err     error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway %q: %v", e.Gateway, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// Factory constructs an adapter from its configuration.
type Factory func(cfg payment.Config) (payment.Gateway, error)

// Entry describes a registered gateway.
type Entry struct {
	Name               string          `json:"name"`
	DisplayName        string          `json:"display_name"`
	Homepage           string          `json:"homepage,omitempty"`
	DefaultCurrency    string          `json:"default_currency"`
	SupportedCountries []string        `json:"supported_countries,omitempty"`
	Actions            []models.Action `json:"actions"`
	Factory            Factory         `json:"-"`
}

// Supports reports whether the gateway implements action.
func (e Entry) Supports(action models.Action) bool {
	for _, a := range e.Actions {
		if a == action {
			return true
		}
	}
	return false
}

// Settings is the per-gateway configuration loaded from the gateways file.
type Settings struct {
	Mode        string            `mapstructure:"mode" json:"mode"`
	Enabled     bool              `mapstructure:"enabled" json:"enabled"`
	Endpoint    string            `mapstructure:"endpoint" json:"endpoint,omitempty"`
	Credentials map[string]string `mapstructure:"credentials" json:"-"`
}

// Registry holds gateway entries. The zero value is not usable; call New.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Entry

	// AllowLive permits building gateways whose Mode is live.
	AllowLive  bool
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// New returns an empty registry.
func New(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		entries: make(map[string]Entry),
		Logger:  logger,
	}
}

// Default returns a registry with every built-in adapter registered.
func Default(logger *zap.Logger) *Registry {
	r := New(logger)
	for _, e := range builtins() {
		if err := r.Register(e); err != nil {
			panic(err)
		}
	}
	return r
}

// Register adds an entry. Names must be unique.
func (r *Registry) Register(e Entry) error {
	if e.Name == "" || e.Factory == nil {
		return fmt.Errorf("registry: entry needs a name and a factory")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[e.Name]; ok {
		return &GatewayError{Gateway: e.Name, Err: ErrDuplicateGateway}
	}
	r.entries[e.Name] = e
	return nil
}

// Lookup returns the entry registered under name.
func (r *Registry) Lookup(name string) (Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return Entry{}, &GatewayError{Gateway: name, Err: ErrGatewayNotRegistered}
	}
	return e, nil
}

// List returns all entries sorted by name.
func (r *Registry) List() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Build constructs the named gateway. Live mode is refused unless AllowLive
// is set.
func (r *Registry) Build(name string, s Settings) (payment.Gateway, error) {
	e, err := r.Lookup(name)
	if err != nil {
		return nil, err
	}
	mode := s.Mode
	if mode == "" {
		mode = payment.ModeTest
	}
	if mode != payment.ModeTest && mode != payment.ModeLive {
		return nil, &GatewayError{Gateway: name, Err: fmt.Errorf("unknown mode %q", s.Mode)}
	}
	if mode == payment.ModeLive && !r.AllowLive {
		return nil, &GatewayError{Gateway: name, Err: ErrLiveBlocked}
	}

	gw, err := e.Factory(payment.Config{
		Mode:        mode,
		Credentials: s.Credentials,
		Endpoint:    s.Endpoint,
		HTTPClient:  r.HTTPClient,
		Logger:      r.Logger,
	})
	if err != nil {
		return nil, &GatewayError{Gateway: name, Err: err}
	}
	return gw, nil
}

// LoadAll builds every enabled gateway in settings. Disabled entries are
// skipped. The first failure aborts the load.
func (r *Registry) LoadAll(settings map[string]Settings) (map[string]payment.Gateway, error) {
	names := make([]string, 0, len(settings))
	for name := range settings {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make(map[string]payment.Gateway, len(settings))
	for _, name := range names {
		s := settings[name]
		if !s.Enabled {
			r.Logger.Debug("skipping disabled gateway", zap.String("gateway", name))
			continue
		}
		gw, err := r.Build(name, s)
		if err != nil {
			return nil, err
		}
		r.Logger.Info("gateway loaded",
			zap.String("gateway", name),
			zap.String("mode", modeOf(s)),
		)
		out[name] = gw
	}
	return out, nil
}

func modeOf(s Settings) string {
	if s.Mode == "" {
		return payment.ModeTest
	}
	return s.Mode
}

func builtins() []Entry {
	withoutUnstore := []models.Action{
		models.ActionPurchase, models.ActionAuthorize, models.ActionCapture, models.ActionRefund,
		models.ActionVoid, models.ActionStore, models.ActionVerify,
	}
	return []Entry{
		{
			Name:               authorizenet.Name,
			DisplayName:        "Authorize.Net",
			Homepage:           "https://www.authorize.net/",
			DefaultCurrency:    "USD",
			SupportedCountries: []string{"AU", "CA", "US"},
			Actions:            models.Actions,
			Factory: func(cfg payment.Config) (payment.Gateway, error) {
				return authorizenet.NewClient(cfg)
			},
		},
		{
			Name:            bogus.Name,
			DisplayName:     "Bogus",
			DefaultCurrency: "USD",
			Actions:         models.Actions,
			Factory: func(cfg payment.Config) (payment.Gateway, error) {
				return bogus.New(cfg)
			},
		},
		{
			Name:               cybersource.Name,
			DisplayName:        "CyberSource",
			Homepage:           "https://www.cybersource.com",
			DefaultCurrency:    "USD",
			SupportedCountries: []string{"US", "AE", "BR", "CA", "CN", "DK", "FI", "FR", "DE", "IN", "JP", "MX", "NO", "SE", "GB", "SG", "LB", "PK"},
			Actions:            models.Actions,
			Factory: func(cfg payment.Config) (payment.Gateway, error) {
				return cybersource.New(cfg)
			},
		},
		{
			Name:               epx.Name,
			DisplayName:        "EPX",
			Homepage:           "https://epx.com/",
			DefaultCurrency:    "USD",
			SupportedCountries: []string{"US", "CA"},
			Actions:            withoutUnstore,
			Factory: func(cfg payment.Config) (payment.Gateway, error) {
				return epx.New(cfg)
			},
		},
		{
			Name:               redsys.Name,
			DisplayName:        "Redsys",
			Homepage:           "http://www.redsys.es/",
			DefaultCurrency:    "EUR",
			SupportedCountries: []string{"ES"},
			Actions:            withoutUnstore,
			Factory: func(cfg payment.Config) (payment.Gateway, error) {
				return redsys.New(cfg)
			},
		},
	}
}

// DefaultCurrencies maps every registered gateway to its default currency.
func (r *Registry) DefaultCurrencies() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string, len(r.entries))
	for name, e := range r.entries {
		out[name] = e.DefaultCurrency
	}
	return out
}
