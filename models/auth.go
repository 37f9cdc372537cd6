package models

import "time"

// Merchant is the API caller identified by a bearer token.
type Merchant struct {
	ID string `json:"id"`
	// Gateways restricts which gateways the merchant may call. Empty means all.
	Gateways []string `json:"gateways,omitempty"`
}

// AllowsGateway reports whether the merchant may use gateway.
func (m *Merchant) AllowsGateway(gateway string) bool {
	if m == nil {
		return false
	}
	if len(m.Gateways) == 0 {
		return true
	}
	for _, g := range m.Gateways {
		if g == gateway || g == "*" {
			return true
		}
	}
	return false
}

// TokenResponse is returned when a merchant token is issued.
type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Merchant  Merchant  `json:"merchant"`
}
