// Package idempotency reserves client-supplied idempotency keys so a
// repeated request replays the first outcome instead of charging twice.
package idempotency

import (
	"context"
	"errors"
	"time"

	"multigateway-api/models"
)

var (
	// ErrInProgress is returned when another request holds the key.
	ErrInProgress = errors.New("request with this idempotency key is in progress")
	ErrEmptyKey   = errors.New("idempotency key is empty")
)

const DefaultTTL = 24 * time.Hour

// Record states.
const (
	StatePending   = "pending"
	StateCompleted = "completed"
)

// Record is what a key resolves to once reserved.
type Record struct {
	State         string           `json:"state"`
	TransactionID string           `json:"transaction_id,omitempty"`
	Response      *models.Response `json:"response,omitempty"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// Store is implemented by the memory and redis backends.
//
// Reserve returns (nil, nil) when the caller now owns the key, the completed
// Record when the key already finished, and ErrInProgress otherwise.
type Store interface {
	Reserve(ctx context.Context, key string) (*Record, error)
	Complete(ctx context.Context, key string, rec Record) error
	Release(ctx context.Context, key string) error
}
