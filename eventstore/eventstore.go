package eventstore

import (
	"context"

	"example.com/taskboard/domain"
)

// EventStore is the durable, append-only log of domain events with
// per-aggregate optimistic concurrency.
type EventStore interface {
	// Append atomically appends a batch of events, assigning versions
	// expectedVersion+1 .. expectedVersion+len(events) in list order. It
	// fails with a *domain.ConcurrencyConflictError when the stored max
	// version for the aggregate differs from expectedVersion; in that case
	// nothing is written.
	Append(ctx context.Context, aggregateID, aggregateKind string, events []domain.Event, expectedVersion int) error

	// ReadHistory returns the aggregate's events in ascending version order.
	// An unknown aggregate yields an empty slice, not an error.
	ReadHistory(ctx context.Context, aggregateID string) ([]domain.Event, error)

	// ReadAllByKind returns events across all aggregates in ascending
	// recorded_at order, optionally filtered by aggregate kind (empty kind
	// means all). Used for full read-model rebuilds.
	ReadAllByKind(ctx context.Context, aggregateKind string) ([]domain.Event, error)
}
