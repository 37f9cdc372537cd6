package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"multigateway-api/config"
	"multigateway-api/database"
	"multigateway-api/services/payment/registry"
)

func memoryConfig() *config.Config {
	return &config.Config{
		Database: database.DatabaseConfig{Driver: database.DriverMemory},
		Gateways: config.GatewaysConfig{Settings: map[string]registry.Settings{
			"bogus":  {Mode: "test", Enabled: true},
			"redsys": {Mode: "test", Enabled: false},
		}},
	}
}

func TestNewWithMemoryStore(t *testing.T) {
	a, err := New(memoryConfig(), zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	assert.Contains(t, a.Gateways, "bogus")
	assert.NotContains(t, a.Gateways, "redsys")
	assert.Nil(t, a.Redis)
	assert.Nil(t, a.Queue)
	assert.Nil(t, a.JWT)
	assert.NoError(t, a.Migrate(context.Background()))
	assert.NoError(t, a.Billing.Ping(context.Background()))
}

func TestNewWithJWT(t *testing.T) {
	cfg := memoryConfig()
	cfg.Auth.JWTSecret = "secret"
	a, err := New(cfg, zap.NewNop())
	require.NoError(t, err)
	defer a.Close()
	assert.NotNil(t, a.JWT)
}

func TestNewRejectsLiveGatewaysByDefault(t *testing.T) {
	cfg := memoryConfig()
	cfg.Gateways.Settings["bogus"] = registry.Settings{Mode: "live", Enabled: true}
	_, err := New(cfg, zap.NewNop())
	assert.ErrorIs(t, err, registry.ErrLiveBlocked)
}

func TestNewRejectsMissingCredentials(t *testing.T) {
	cfg := memoryConfig()
	cfg.Gateways.Settings["authorize_net"] = registry.Settings{Mode: "test", Enabled: true}
	_, err := New(cfg, zap.NewNop())
	assert.Error(t, err)
}
