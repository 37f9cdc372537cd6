package database

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"multigateway-api/models"
)

// MemoryStore is the in-process Store used in development and tests.
type MemoryStore struct {
	mu           sync.RWMutex
	transactions map[string]models.Transaction
	cards        map[string]models.StoredCard
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		transactions: make(map[string]models.Transaction),
		cards:        make(map[string]models.StoredCard),
	}
}

func cardKey(gateway, token string) string {
	return gateway + "\x00" + token
}

func (m *MemoryStore) SaveTransaction(_ context.Context, tx *models.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.transactions[tx.ID]; ok {
		return fmt.Errorf("transaction %s: %w", tx.ID, ErrConflict)
	}
	m.transactions[tx.ID] = *tx
	return nil
}

func (m *MemoryStore) GetTransaction(_ context.Context, id string) (*models.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tx, ok := m.transactions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &tx, nil
}

func (m *MemoryStore) ListTransactions(_ context.Context, filter models.TransactionFilter) ([]models.Transaction, error) {
	m.mu.RLock()
	out := make([]models.Transaction, 0)
	for _, tx := range m.transactions {
		if filter.Gateway != "" && tx.Gateway != filter.Gateway {
			continue
		}
		if filter.OrderID != "" && tx.OrderID != filter.OrderID {
			continue
		}
		out = append(out, tx)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit := normalizeLimit(filter.Limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) SaveStoredCard(_ context.Context, card *models.StoredCard) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := cardKey(card.Gateway, card.Token)
	if _, ok := m.cards[key]; ok {
		return fmt.Errorf("stored card %s/%s: %w", card.Gateway, card.Token, ErrConflict)
	}
	m.cards[key] = *card
	return nil
}

func (m *MemoryStore) GetStoredCard(_ context.Context, gateway, token string) (*models.StoredCard, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	card, ok := m.cards[cardKey(gateway, token)]
	if !ok {
		return nil, ErrNotFound
	}
	return &card, nil
}

func (m *MemoryStore) DeleteStoredCard(_ context.Context, gateway, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := cardKey(gateway, token)
	if _, ok := m.cards[key]; !ok {
		return ErrNotFound
	}
	delete(m.cards, key)
	return nil
}

func (m *MemoryStore) Ping(context.Context) error { return nil }
func (m *MemoryStore) Close() error               { return nil }

// Migrate is a no-op; the memory store needs no schema.
func (m *MemoryStore) Migrate(context.Context) error { return nil }
