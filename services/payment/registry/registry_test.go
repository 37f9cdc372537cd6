package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"multigateway-api/models"
	"multigateway-api/services/payment"
	"multigateway-api/services/payment/bogus"
)

func TestListIsSorted(t *testing.T) {
	r := Default(nil)
	var names []string
	for _, e := range r.List() {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{"authorize_net", "bogus", "cybersource", "epx", "redsys"}, names)
}

func TestBuildUnknownGateway(t *testing.T) {
	r := Default(nil)
	_, err := r.Build("nope", Settings{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGatewayNotRegistered)

	var gwErr *GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, "nope", gwErr.Gateway)
}

func TestBuildBlocksLiveMode(t *testing.T) {
	r := Default(nil)
	_, err := r.Build(bogus.Name, Settings{Mode: payment.ModeLive})
	assert.ErrorIs(t, err, ErrLiveBlocked)

	r.AllowLive = true
	gw, err := r.Build(bogus.Name, Settings{Mode: payment.ModeLive})
	require.NoError(t, err)
	resp, err := gw.Purchase(context.Background(), 100, &models.CreditCard{Number: "1"}, nil)
	require.NoError(t, err)
	assert.False(t, resp.Test)
}

func TestBuildRejectsUnknownMode(t *testing.T) {
	_, err := Default(nil).Build(bogus.Name, Settings{Mode: "staging"})
	require.Error(t, err)
}

func TestBuildMissingCredentials(t *testing.T) {
	_, err := Default(nil).Build("authorize_net", Settings{})
	var missing *payment.MissingCredentialError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "login", missing.Key)
}

func TestLoadAllSkipsDisabled(t *testing.T) {
	r := Default(nil)
	gateways, err := r.LoadAll(map[string]Settings{
		"bogus":         {Enabled: true},
		"authorize_net": {Enabled: false},
	})
	require.NoError(t, err)
	require.Len(t, gateways, 1)
	assert.Equal(t, bogus.Name, gateways["bogus"].Name())
}

func TestLoadAllFailsOnBadEntry(t *testing.T) {
	_, err := Default(nil).LoadAll(map[string]Settings{
		"redsys": {Enabled: true},
	})
	assert.Error(t, err)
}

func TestRegisterDuplicate(t *testing.T) {
	r := Default(nil)
	err := r.Register(Entry{Name: bogus.Name, Factory: func(payment.Config) (payment.Gateway, error) { return nil, nil }})
	assert.ErrorIs(t, err, ErrDuplicateGateway)
}

func TestEntrySupports(t *testing.T) {
	e, err := Default(nil).Lookup("epx")
	require.NoError(t, err)
	assert.True(t, e.Supports(models.ActionStore))
	assert.False(t, e.Supports(models.ActionUnstore))
}
