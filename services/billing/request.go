package billing

import (
	"encoding/json"
	"fmt"
	"strings"

	"multigateway-api/models"
	"multigateway-api/types"
)

// Request is one call to a gateway verb.
type Request struct {
	Gateway        string                    `json:"gateway"`
	Action         models.Action             `json:"action"`
	Amount         int64                     `json:"amount"`
	Source         models.PaymentSource      `json:"-"`
	Authorization  string                    `json:"authorization,omitempty"`
	Options        *types.TransactionOptions `json:"options,omitempty"`
	IdempotencyKey string                    `json:"idempotency_key,omitempty"`
	// MerchantID scopes the idempotency key. Empty for CLI and
	// unauthenticated callers.
	MerchantID string `json:"merchant_id,omitempty"`
}

// idempotencyScope namespaces the client's key by merchant, gateway and
// action so a reused key never replays an unrelated transaction.
func (r Request) idempotencyScope() string {
	if r.IdempotencyKey == "" {
		return ""
	}
	return strings.Join([]string{r.MerchantID, r.Gateway, string(r.Action), r.IdempotencyKey}, "|")
}

// Result is what Execute returns. Replayed is set when the response came
// from an earlier request with the same idempotency key.
type Result struct {
	Transaction *models.Transaction `json:"transaction"`
	Response    *models.Response    `json:"response"`
	Replayed    bool                `json:"replayed,omitempty"`
}

// card returns the raw card behind the request, if any.
func (r Request) card() *models.CreditCard {
	c, _ := r.Source.(*models.CreditCard)
	return c
}

// jobPayload is the queued form of a Request. Only verbs that reference an
// earlier authorization are queued, so no card data is ever serialized.
type jobPayload struct {
	Gateway        string                    `json:"gateway"`
	Action         models.Action             `json:"action"`
	Amount         int64                     `json:"amount"`
	Authorization  string                    `json:"authorization"`
	Options        *types.TransactionOptions `json:"options,omitempty"`
	IdempotencyKey string                    `json:"idempotency_key,omitempty"`
	MerchantID     string                    `json:"merchant_id,omitempty"`
}

func payloadFor(r Request) jobPayload {
	return jobPayload{
		Gateway:        r.Gateway,
		Action:         r.Action,
		Amount:         r.Amount,
		Authorization:  r.Authorization,
		Options:        r.Options,
		IdempotencyKey: r.IdempotencyKey,
		MerchantID:     r.MerchantID,
	}
}

func decodePayload(data []byte) (Request, error) {
	var p jobPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return Request{}, fmt.Errorf("invalid job payload: %w", err)
	}
	return Request{
		Gateway:        p.Gateway,
		Action:         p.Action,
		Amount:         p.Amount,
		Authorization:  p.Authorization,
		Options:        p.Options,
		IdempotencyKey: p.IdempotencyKey,
		MerchantID:     p.MerchantID,
	}, nil
}
