package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCreditCardValidate(t *testing.T) {
	now := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		card CreditCard
		want error
	}{
		{"valid", CreditCard{Number: "4111 1111 1111 1111", Month: 3, Year: 2026}, nil},
		{"too short", CreditCard{Number: "41111", Month: 1, Year: 2030}, ErrCardNumberLength},
		{"letters", CreditCard{Number: "4111abcd11111111", Month: 1, Year: 2030}, ErrCardNumberLength},
		{"luhn", CreditCard{Number: "4111111111111112", Month: 1, Year: 2030}, ErrCardLuhn},
		{"bad month", CreditCard{Number: "4111111111111111", Month: 13, Year: 2030}, ErrCardExpiry},
		{"expired", CreditCard{Number: "4111111111111111", Month: 2, Year: 2026}, ErrCardExpired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.card.Validate(now))
		})
	}
}

func TestCreditCardExpiredAtEndOfMonth(t *testing.T) {
	card := CreditCard{Month: 2, Year: 2028}
	assert.False(t, card.Expired(time.Date(2028, 2, 29, 23, 59, 0, 0, time.UTC)))
	assert.True(t, card.Expired(time.Date(2028, 3, 1, 0, 0, 0, 0, time.UTC)))
}

func TestBrandOf(t *testing.T) {
	tests := map[string]string{
		"4111111111111111": BrandVisa,
		"5555555555554444": BrandMaster,
		"2223000048400011": BrandMaster,
		"378282246310005":  BrandAmericanExpress,
		"6011111111111117": BrandDiscover,
		"30569309025904":   BrandDinersClub,
		"3530111333300000": BrandJCB,
		"6759649826438453": BrandMaestro,
		"1234":             "",
	}
	for number, want := range tests {
		assert.Equal(t, want, BrandOf(number), number)
	}

	card := CreditCard{Number: "4111111111111111", Brand: BrandMaster}
	assert.Equal(t, BrandMaster, card.DetectBrand())
}

func TestCardFormatting(t *testing.T) {
	card := CreditCard{Number: "4111-1111-1111-1111", Month: 7, Year: 2031, FirstName: "Ada", LastName: "Lovelace"}

	assert.Equal(t, "411111XXXXXX1111", card.Display())
	assert.Equal(t, "1111", card.LastDigits())
	assert.Equal(t, "411111", card.FirstDigits())
	assert.Equal(t, "0731", card.ExpiryMMYY())
	assert.Equal(t, "3107", card.ExpiryYYMM())
	assert.Equal(t, "2031-07", card.ExpiryYYYYMM())
	assert.Equal(t, "Ada Lovelace", card.Name())
	assert.False(t, card.CardPresent())

	card.Track2 = ";4111111111111111=31071010000000000000?"
	assert.True(t, card.CardPresent())
}

func TestAVSResult(t *testing.T) {
	r := NewAVSResult("A")
	assert.Equal(t, MatchYes, r.StreetMatch)
	assert.Equal(t, MatchNo, r.PostalMatch)
	assert.NotEmpty(t, r.Message)

	r = NewAVSResult("G")
	assert.Equal(t, MatchUnsupported, r.StreetMatch)
	assert.Equal(t, MatchUnsupported, r.PostalMatch)

	assert.True(t, NewAVSResult("").Empty())
	assert.True(t, NewAVSResult("?").Empty())

	assert.Equal(t, "D", AVSFromMatches(MatchYes, MatchYes).Code)
	assert.Equal(t, "Z", AVSFromMatches(MatchNo, MatchYes).Code)
	assert.True(t, AVSFromMatches("", "").Empty())
}

func TestCVVResult(t *testing.T) {
	assert.Equal(t, "CVV matches", NewCVVResult("M").Message)
	assert.True(t, NewCVVResult("Q").Empty())
}

func TestActions(t *testing.T) {
	assert.True(t, ActionVerify.IsValid())
	assert.False(t, Action("settle").IsValid())

	assert.True(t, ActionCapture.TakesAmount())
	assert.False(t, ActionVoid.TakesAmount())

	assert.True(t, ActionUnstore.ReferencesAuthorization())
	assert.False(t, ActionStore.ReferencesAuthorization())
}

func TestMerchantAllowsGateway(t *testing.T) {
	var nilMerchant *Merchant
	assert.False(t, nilMerchant.AllowsGateway("bogus"))

	assert.True(t, (&Merchant{ID: "m"}).AllowsGateway("epx"))
	assert.True(t, (&Merchant{ID: "m", Gateways: []string{"*"}}).AllowsGateway("epx"))

	restricted := &Merchant{ID: "m", Gateways: []string{"bogus"}}
	assert.True(t, restricted.AllowsGateway("bogus"))
	assert.False(t, restricted.AllowsGateway("epx"))
}

func TestResponseParam(t *testing.T) {
	var r *Response
	assert.Equal(t, "", r.Param("x"))
	r = &Response{Params: map[string]string{"x": "1"}}
	assert.Equal(t, "1", r.Param("x"))
}
