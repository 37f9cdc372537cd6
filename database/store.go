package database

import (
	"context"

	"multigateway-api/models"
)

// Store persists the transaction log and vaulted card references.
type Store interface {
	SaveTransaction(ctx context.Context, tx *models.Transaction) error
	GetTransaction(ctx context.Context, id string) (*models.Transaction, error)
	ListTransactions(ctx context.Context, filter models.TransactionFilter) ([]models.Transaction, error)
	SaveStoredCard(ctx context.Context, card *models.StoredCard) error
	GetStoredCard(ctx context.Context, gateway, token string) (*models.StoredCard, error)
	DeleteStoredCard(ctx context.Context, gateway, token string) error
	Ping(ctx context.Context) error
	Close() error
}

const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}

// Migrator is implemented by stores that need a schema.
type Migrator interface {
	Migrate(ctx context.Context) error
}
