package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"multigateway-api/database"
	"multigateway-api/middleware"
	"multigateway-api/models"
	"multigateway-api/services/auth"
	"multigateway-api/services/billing"
	"multigateway-api/services/idempotency"
	"multigateway-api/services/payment"
	"multigateway-api/services/payment/registry"
)

const internalSecret = "internal-test-secret"

type testServer struct {
	router http.Handler
	jwt    *auth.JWTService
}

func newTestServer(t *testing.T, withAuth bool) *testServer {
	t.Helper()
	reg := registry.Default(zap.NewNop())
	gateways, err := reg.LoadAll(map[string]registry.Settings{
		"bogus": {Mode: payment.ModeTest, Enabled: true},
	})
	require.NoError(t, err)

	svc := billing.NewService(billing.Config{
		Gateways:   gateways,
		Retry:      payment.RetryPolicy{MaxAttempts: 1},
		Currencies: reg.DefaultCurrencies(),
		PANHashKey: []byte("k"),
	})

	jwtService, err := auth.NewJWTService("handler-test-secret", "test")
	require.NoError(t, err)

	cfg := RouterConfig{
		Gateways:     NewGatewayHandler(reg, svc.GatewayNames()),
		Transactions: NewTransactionHandler(svc, nil),
		Health:       NewHealthHandler(map[string]Check{"database": svc.Ping}),
		Internal:     NewInternalHandler(jwtService, internalSecret, nil),
	}
	if withAuth {
		cfg.Auth = middleware.AuthMiddleware(jwtService, nil)
	}
	return &testServer{router: NewRouter(cfg), jwt: jwtService}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func cardBody(number string, amount int64) map[string]interface{} {
	return map[string]interface{}{
		"amount": amount,
		"card": map[string]interface{}{
			"number": number,
			"month":  12,
			"year":   time.Now().Year() + 2,
			"cvv":    "123",
		},
	}
}

type resultEnvelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    struct {
		Transaction models.Transaction `json:"transaction"`
		Response    models.Response    `json:"response"`
		Replayed    bool               `json:"replayed"`
	} `json:"data"`
}

func decodeResult(t *testing.T, rec *httptest.ResponseRecorder) resultEnvelope {
	t.Helper()
	var env resultEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestPurchaseApproved(t *testing.T) {
	s := newTestServer(t, false)
	rec := s.do(t, http.MethodPost, "/api/gateways/bogus/purchase", cardBody("4111111111111111", 1000), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	env := decodeResult(t, rec)
	assert.Equal(t, "success", env.Status)
	assert.True(t, env.Data.Response.Success)
	assert.Equal(t, "411111XXXXXX1111", env.Data.Transaction.MaskedCard)
	assert.Equal(t, "USD", env.Data.Transaction.Currency)
	assert.NotContains(t, rec.Body.String(), "4111111111111111")
}

func TestPurchaseDeclinedIsNotAnHTTPError(t *testing.T) {
	s := newTestServer(t, false)
	rec := s.do(t, http.MethodPost, "/api/gateways/bogus/purchase", cardBody("4000000000000002", 1000), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	env := decodeResult(t, rec)
	assert.Equal(t, "declined", env.Status)
	assert.False(t, env.Data.Response.Success)
	assert.Equal(t, models.ErrorCardDeclined, env.Data.Response.ErrorCode)
}

func TestProcessErrors(t *testing.T) {
	s := newTestServer(t, false)

	tests := []struct {
		name   string
		path   string
		body   interface{}
		status int
	}{
		{"network failure", "/api/gateways/bogus/purchase", cardBody("4000000000000093", 1000), http.StatusBadGateway},
		{"negative amount", "/api/gateways/bogus/purchase", cardBody("4111111111111111", -1), http.StatusBadRequest},
		{"bad luhn", "/api/gateways/bogus/purchase", cardBody("4111111111111112", 100), http.StatusBadRequest},
		{"unknown gateway", "/api/gateways/nope/purchase", cardBody("4111111111111111", 100), http.StatusNotFound},
		{"unknown action", "/api/gateways/bogus/settle", cardBody("4111111111111111", 100), http.StatusNotFound},
		{"missing authorization", "/api/gateways/bogus/capture", map[string]interface{}{"amount": 100}, http.StatusBadRequest},
		{"unknown field", "/api/gateways/bogus/void", map[string]interface{}{"authorization": "53433", "bogus": true}, http.StatusBadRequest},
		{"card and token", "/api/gateways/bogus/purchase", map[string]interface{}{
			"amount": 100, "token": "tok_1111", "card": map[string]interface{}{"number": "4111111111111111"},
		}, http.StatusBadRequest},
		{"async without queue", "/api/gateways/bogus/void", map[string]interface{}{"authorization": "53433", "async": true}, http.StatusServiceUnavailable},
		{"async purchase", "/api/gateways/bogus/purchase", map[string]interface{}{"amount": 100, "token": "tok_1111", "async": true}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, tt.path, tt.body, nil)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}

func TestIdempotentReplay(t *testing.T) {
	s := newTestServer(t, false)
	headers := map[string]string{"Idempotency-Key": "order-42"}

	first := s.do(t, http.MethodPost, "/api/gateways/bogus/purchase", cardBody("4111111111111111", 500), headers)
	require.Equal(t, http.StatusOK, first.Code)
	second := s.do(t, http.MethodPost, "/api/gateways/bogus/purchase", cardBody("4111111111111111", 500), headers)
	require.Equal(t, http.StatusOK, second.Code)

	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	assert.Equal(t, decodeResult(t, first).Data.Transaction.ID, decodeResult(t, second).Data.Transaction.ID)
}

func TestGetAndListTransactions(t *testing.T) {
	s := newTestServer(t, false)
	body := cardBody("4111111111111111", 700)
	body["order_id"] = "INV-7"
	rec := s.do(t, http.MethodPost, "/api/gateways/bogus/authorize", body, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	id := decodeResult(t, rec).Data.Transaction.ID

	rec = s.do(t, http.MethodGet, "/api/transactions/"+id, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got struct {
		Data models.Transaction `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "INV-7", got.Data.OrderID)
	assert.Equal(t, models.ActionAuthorize, got.Data.Action)

	rec = s.do(t, http.MethodGet, "/api/transactions?order_id=INV-7&limit=5", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Data []models.Transaction `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Data, 1)
	assert.Equal(t, id, list.Data[0].ID)

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/transactions/missing", nil, nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/api/transactions?limit=x", nil, nil).Code)
}

func TestListGateways(t *testing.T) {
	s := newTestServer(t, false)
	rec := s.do(t, http.MethodGet, "/api/gateways", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var env struct {
		Data []struct {
			Name    string `json:"name"`
			Enabled bool   `json:"enabled"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))

	enabled := map[string]bool{}
	for _, g := range env.Data {
		enabled[g.Name] = g.Enabled
	}
	assert.True(t, enabled["bogus"])
	assert.Contains(t, enabled, "authorize_net")
	assert.False(t, enabled["authorize_net"])
}

func TestAuthRestrictsGateways(t *testing.T) {
	s := newTestServer(t, true)

	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/api/gateways", nil, nil).Code)

	token, err := s.jwt.GenerateToken(models.Merchant{ID: "m_1", Gateways: []string{"epx"}}, time.Hour)
	require.NoError(t, err)
	headers := map[string]string{"Authorization": "Bearer " + token.Token}

	rec := s.do(t, http.MethodPost, "/api/gateways/bogus/purchase", cardBody("4111111111111111", 100), headers)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	token, err = s.jwt.GenerateToken(models.Merchant{ID: "m_2"}, time.Hour)
	require.NoError(t, err)
	headers["Authorization"] = "Bearer " + token.Token
	rec = s.do(t, http.MethodPost, "/api/gateways/bogus/purchase", cardBody("4111111111111111", 100), headers)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, false)
	rec := s.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	h := NewHealthHandler(map[string]Check{
		"redis": func(context.Context) error { return errors.New("down") },
	})
	rec = httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"redis":"error"`)
}

func TestIssueToken(t *testing.T) {
	s := newTestServer(t, false)
	body := map[string]interface{}{"merchant_id": "m_9", "gateways": []string{"bogus"}}

	rec := s.do(t, http.MethodPost, "/internal/tokens", body, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodPost, "/internal/tokens", body, map[string]string{"X-Internal-Secret": internalSecret})
	require.Equal(t, http.StatusOK, rec.Code)

	var env struct {
		Data models.TokenResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	merchant, err := s.jwt.ValidateToken(env.Data.Token)
	require.NoError(t, err)
	assert.Equal(t, "m_9", merchant.ID)
	assert.Equal(t, []string{"bogus"}, merchant.Gateways)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{payment.InvalidRequest("x"), http.StatusBadRequest},
		{payment.ErrInvalidAmount, http.StatusBadRequest},
		{payment.Unsupported("epx", models.ActionUnstore), http.StatusUnprocessableEntity},
		{idempotency.ErrInProgress, http.StatusConflict},
		{database.ErrNotFound, http.StatusNotFound},
		{fmt.Errorf("call: %w", payment.ErrTimeout), http.StatusBadGateway},
		{&payment.ResponseError{StatusCode: 400}, http.StatusBadGateway},
		{billing.ErrQueueUnavailable, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.status, statusFor(tt.err), tt.err.Error())
	}
}
