// Package events publishes a record of every processed transaction.
package events

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"multigateway-api/models"
)

// Publisher delivers transaction events. Implementations must be safe for
// concurrent use.
type Publisher interface {
	Publish(ctx context.Context, event models.TransactionEvent) error
	Close() error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, models.TransactionEvent) error { return nil }
func (NopPublisher) Close() error                                           { return nil }

// LogPublisher writes events to the log. Used when no broker is configured.
type LogPublisher struct {
	logger *zap.Logger
}

func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logger.With(zap.String("component", "events"))}
}

func (p *LogPublisher) Publish(_ context.Context, event models.TransactionEvent) error {
	tx := event.Transaction
	p.logger.Info("transaction event",
		zap.String("type", event.Type),
		zap.String("transaction_id", tx.ID),
		zap.String("gateway", tx.Gateway),
		zap.String("action", string(tx.Action)),
		zap.Bool("success", tx.Success),
	)
	return nil
}

func (p *LogPublisher) Close() error { return nil }

// MemoryPublisher collects events for tests.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []models.TransactionEvent
}

func (p *MemoryPublisher) Publish(_ context.Context, event models.TransactionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *MemoryPublisher) Close() error { return nil }

// Events returns a copy of everything published so far.
func (p *MemoryPublisher) Events() []models.TransactionEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]models.TransactionEvent, len(p.events))
	copy(out, p.events)
	return out
}

// EventFor builds the event published for a recorded transaction.
func EventFor(tx models.Transaction) models.TransactionEvent {
	eventType := models.EventTransactionSucceeded
	if !tx.Success {
		eventType = models.EventTransactionFailed
	}
	return models.TransactionEvent{
		Type:        eventType,
		Transaction: tx,
		OccurredAt:  tx.CreatedAt,
	}
}
