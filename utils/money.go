package utils

import (
	"errors"
	"strconv"
	"strings"
)

// ErrInvalidAmount is returned for negative amounts.
var ErrInvalidAmount = errors.New("amount must not be negative")

var zeroDecimalCurrencies = map[string]bool{
	"CLP": true,
	"ISK": true,
	"JPY": true,
	"KRW": true,
	"PYG": true,
	"UGX": true,
	"VND": true,
	"XAF": true,
	"XOF": true,
}

var currencyNumeric = map[string]string{
	"AUD": "036",
	"BRL": "986",
	"CAD": "124",
	"CHF": "756",
	"CLP": "152",
	"CZK": "203",
	"DKK": "208",
	"EUR": "978",
	"GBP": "826",
	"HUF": "348",
	"ISK": "352",
	"JPY": "392",
	"KRW": "410",
	"MXN": "484",
	"NOK": "578",
	"NZD": "554",
	"PLN": "985",
	"RON": "946",
	"SEK": "752",
	"USD": "840",
}

// IsZeroDecimal reports whether the currency has no minor unit.
func IsZeroDecimal(currency string) bool {
	return zeroDecimalCurrencies[strings.ToUpper(currency)]
}

// FormatAmount renders minor units as a decimal string, e.g. 1000 USD -> "10.00"
// and 1000 JPY -> "1000".
func FormatAmount(cents int64, currency string) (string, error) {
	if cents < 0 {
		return "", ErrInvalidAmount
	}
	if IsZeroDecimal(currency) {
		return strconv.FormatInt(cents, 10), nil
	}
	whole := cents / 100
	frac := cents % 100
	s := strconv.FormatInt(whole, 10) + "."
	if frac < 10 {
		s += "0"
	}
	return s + strconv.FormatInt(frac, 10), nil
}

// CurrencyNumeric maps an ISO 4217 alpha code to its numeric code.
func CurrencyNumeric(currency string) (string, bool) {
	code, ok := currencyNumeric[strings.ToUpper(currency)]
	return code, ok
}
