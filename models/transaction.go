package models

import "time"

// Action is one of the uniform gateway verbs.
type Action string

const (
	ActionPurchase  Action = "purchase"
	ActionAuthorize Action = "authorize"
	ActionCapture   Action = "capture"
	ActionRefund    Action = "refund"
	ActionVoid      Action = "void"
	ActionStore     Action = "store"
	ActionUnstore   Action = "unstore"
	ActionVerify    Action = "verify"
)

// Actions lists every verb in a stable order.
var Actions = []Action{
	ActionPurchase,
	ActionAuthorize,
	ActionCapture,
	ActionRefund,
	ActionVoid,
	ActionStore,
	ActionUnstore,
	ActionVerify,
}

// IsValid reports whether a is a known verb.
func (a Action) IsValid() bool {
	for _, known := range Actions {
		if a == known {
			return true
		}
	}
	return false
}

// TakesAmount reports whether the verb carries money.
func (a Action) TakesAmount() bool {
	switch a {
	case ActionPurchase, ActionAuthorize, ActionCapture, ActionRefund:
		return true
	}
	return false
}

// ReferencesAuthorization reports whether the verb operates on an earlier
// authorization token instead of a payment source.
func (a Action) ReferencesAuthorization() bool {
	switch a {
	case ActionCapture, ActionRefund, ActionVoid, ActionUnstore:
		return true
	}
	return false
}

// Transaction is the persisted record of one gateway call.
type Transaction struct {
	ID                   string    `json:"id"`
	Gateway              string    `json:"gateway"`
	Action               Action    `json:"action"`
	Amount               int64     `json:"amount"`
	Currency             string    `json:"currency"`
	MaskedCard           string    `json:"masked_card,omitempty"`
	OrderID              string    `json:"order_id,omitempty"`
	Authorization        string    `json:"authorization,omitempty"`
	Success              bool      `json:"success"`
	Message              string    `json:"message"`
	ErrorCode            string    `json:"error_code,omitempty"`
	AVSCode              string    `json:"avs_code,omitempty"`
	CVVCode              string    `json:"cvv_code,omitempty"`
	NetworkTransactionID string    `json:"network_transaction_id,omitempty"`
	FraudReview          bool      `json:"fraud_review"`
	Test                 bool      `json:"test"`
	IdempotencyKey       string    `json:"idempotency_key,omitempty"`
	CreatedAt            time.Time `json:"created_at"`
}

// TransactionFilter narrows ListTransactions.
type TransactionFilter struct {
	Gateway string
	OrderID string
	Limit   int
}

// StoredCard records a card vaulted at a processor by Store.
type StoredCard struct {
	Token       string    `json:"token"`
	Gateway     string    `json:"gateway"`
	MaskedCard  string    `json:"masked_card"`
	Brand       string    `json:"brand,omitempty"`
	Fingerprint string    `json:"fingerprint"`
	ExpMonth    int       `json:"exp_month"`
	ExpYear     int       `json:"exp_year"`
	CustomerID  string    `json:"customer_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// TransactionEvent is published after every recorded transaction.
type TransactionEvent struct {
	Type        string      `json:"type"`
	Transaction Transaction `json:"transaction"`
	OccurredAt  time.Time   `json:"occurred_at"`
}

// Event types.
const (
	EventTransactionSucceeded = "transaction.succeeded"
	EventTransactionFailed    = "transaction.failed"
)
