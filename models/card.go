package models

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Card brands.
const (
	BrandVisa            = "visa"
	BrandMaster          = "master"
	BrandAmericanExpress = "american_express"
	BrandDiscover        = "discover"
	BrandDinersClub      = "diners_club"
	BrandJCB             = "jcb"
	BrandMaestro         = "maestro"
)

// PaymentSource is what a purchase or authorization is charged against:
// either a raw card or a token returned by a previous Store.
type PaymentSource interface {
	paymentSource()
}

// StoredToken is an opaque reference to a card vaulted at the processor.
type StoredToken string

func (StoredToken) paymentSource() {}

// CreditCard is a card-not-present card or, when track data is set, a swiped card.
type CreditCard struct {
	Number            string `json:"number"`
	Month             int    `json:"month"`
	Year              int    `json:"year"`
	FirstName         string `json:"first_name,omitempty"`
	LastName          string `json:"last_name,omitempty"`
	VerificationValue string `json:"cvv,omitempty"`
	Brand             string `json:"brand,omitempty"`
	Track1            string `json:"track1,omitempty"`
	Track2            string `json:"track2,omitempty"`
}

func (*CreditCard) paymentSource() {}

// Validation errors returned by CreditCard.Validate.
var (
	ErrCardNumberLength = errors.New("card number must be 12-19 digits")
	ErrCardLuhn         = errors.New("card number fails luhn check")
	ErrCardExpiry       = errors.New("invalid expiry date")
	ErrCardExpired      = errors.New("card is expired")
)

// NormalizeNumber strips spaces and dashes from a card number.
func NormalizeNumber(number string) string {
	return strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' {
			return -1
		}
		return r
	}, number)
}

// Validate checks number length, Luhn and expiry against now.
func (c *CreditCard) Validate(now time.Time) error {
	number := NormalizeNumber(c.Number)
	if len(number) < 12 || len(number) > 19 || !isDigits(number) {
		return ErrCardNumberLength
	}
	if !LuhnValid(number) {
		return ErrCardLuhn
	}
	if c.Month < 1 || c.Month > 12 || c.Year < 1000 {
		return ErrCardExpiry
	}
	if c.Expired(now) {
		return ErrCardExpired
	}
	return nil
}

// Valid reports whether Validate passes at the current time.
func (c *CreditCard) Valid() bool {
	return c.Validate(time.Now()) == nil
}

// Expired reports whether the card is past the last day of its expiry month.
func (c *CreditCard) Expired(now time.Time) bool {
	endOfMonth := time.Date(c.Year, time.Month(c.Month)+1, 1, 0, 0, 0, 0, time.UTC)
	return !now.UTC().Before(endOfMonth)
}

// CardPresent reports whether magnetic stripe data was captured.
func (c *CreditCard) CardPresent() bool {
	return c.Track1 != "" || c.Track2 != ""
}

// Name returns the cardholder name.
func (c *CreditCard) Name() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// LastDigits returns the last four digits of the number.
func (c *CreditCard) LastDigits() string {
	number := NormalizeNumber(c.Number)
	if len(number) <= 4 {
		return number
	}
	return number[len(number)-4:]
}

// FirstDigits returns the first six digits of the number.
func (c *CreditCard) FirstDigits() string {
	number := NormalizeNumber(c.Number)
	if len(number) <= 6 {
		return number
	}
	return number[:6]
}

// Display masks the number, keeping the first 6 and last 4 digits.
func (c *CreditCard) Display() string {
	return MaskPAN(c.Number)
}

// MaskPAN keeps the first 6 and last 4 digits of a PAN.
func MaskPAN(pan string) string {
	pan = NormalizeNumber(pan)
	if len(pan) < 10 {
		return strings.Repeat("X", len(pan))
	}
	return pan[:6] + strings.Repeat("X", len(pan)-10) + pan[len(pan)-4:]
}

// ExpiryMMYY formats the expiry as MMYY.
func (c *CreditCard) ExpiryMMYY() string {
	return fmt.Sprintf("%02d%02d", c.Month, c.Year%100)
}

// ExpiryYYMM formats the expiry as YYMM.
func (c *CreditCard) ExpiryYYMM() string {
	return fmt.Sprintf("%02d%02d", c.Year%100, c.Month)
}

// ExpiryYYYYMM formats the expiry as YYYY-MM.
func (c *CreditCard) ExpiryYYYYMM() string {
	return fmt.Sprintf("%04d-%02d", c.Year, c.Month)
}

// DetectBrand returns the explicit Brand or one inferred from the IIN.
func (c *CreditCard) DetectBrand() string {
	if c.Brand != "" {
		return c.Brand
	}
	return BrandOf(c.Number)
}

// BrandOf infers a card brand from the number's IIN ranges. It returns an
// empty string when no range matches.
func BrandOf(number string) string {
	number = NormalizeNumber(number)
	n := len(number)
	if n < 12 || !isDigits(number) {
		return ""
	}
	prefix := func(digits int) int {
		v, _ := strconv.Atoi(number[:digits])
		return v
	}

	switch {
	case number[0] == '4' && (n == 13 || n == 16 || n == 19):
		return BrandVisa
	case n == 16 && (between(prefix(2), 51, 55) || between(prefix(4), 2221, 2720)):
		return BrandMaster
	case n == 15 && (prefix(2) == 34 || prefix(2) == 37):
		return BrandAmericanExpress
	case n >= 16 && (prefix(4) == 6011 || prefix(2) == 65 || between(prefix(3), 644, 649) || between(prefix(6), 622126, 622925)):
		return BrandDiscover
	case n >= 14 && (between(prefix(3), 300, 305) || prefix(2) == 36 || prefix(2) == 38 || prefix(2) == 39):
		return BrandDinersClub
	case n >= 16 && between(prefix(4), 3528, 3589):
		return BrandJCB
	case prefix(2) == 50 || between(prefix(2), 56, 58) || number[0] == '6':
		return BrandMaestro
	}
	return ""
}

// LuhnValid runs the mod-10 check over an all-digit string.
func LuhnValid(number string) bool {
	if number == "" || !isDigits(number) {
		return false
	}
	sum := 0
	double := false
	for i := len(number) - 1; i >= 0; i-- {
		d := int(number[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

func between(v, lo, hi int) bool {
	return v >= lo && v <= hi
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
