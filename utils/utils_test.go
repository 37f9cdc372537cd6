package utils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"multigateway-api/models"
)

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		cents    int64
		currency string
		want     string
	}{
		{1000, "USD", "10.00"},
		{1, "USD", "0.01"},
		{0, "EUR", "0.00"},
		{123456, "eur", "1234.56"},
		{1000, "JPY", "1000"},
		{500, "krw", "500"},
	}
	for _, tt := range tests {
		got, err := FormatAmount(tt.cents, tt.currency)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := FormatAmount(-1, "USD")
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestCurrencyNumeric(t *testing.T) {
	code, ok := CurrencyNumeric("eur")
	assert.True(t, ok)
	assert.Equal(t, "978", code)

	_, ok = CurrencyNumeric("XXX")
	assert.False(t, ok)
}

func TestHashPAN(t *testing.T) {
	a := HashPAN([]byte("key"), "4111111111111111")
	assert.Len(t, a, 64)
	assert.Equal(t, a, HashPAN([]byte("key"), "4111111111111111"))
	assert.NotEqual(t, a, HashPAN([]byte("other"), "4111111111111111"))
	assert.NotContains(t, a, "4111")
}

func TestGenerateRandomDigits(t *testing.T) {
	d := GenerateRandomDigits(12)
	assert.Regexp(t, `^[0-9]{12}$`, d)
}

func TestSendErrorResponse(t *testing.T) {
	rec := httptest.NewRecorder()
	SendErrorResponse(rec, http.StatusBadRequest, "bad")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var resp models.APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "bad", resp.Message)
}
