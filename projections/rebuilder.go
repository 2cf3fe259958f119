package projections

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"example.com/taskboard/domain"
	"example.com/taskboard/eventstore"
	"example.com/taskboard/models"
)

// Rebuilder rebuilds the entire task read model from the event log. It runs
// at process start, which makes the read model consistent with the log even
// after a crash mid-projection; the log stays the sole source of truth.
type Rebuilder struct {
	db        *gorm.DB
	store     eventstore.EventStore
	projector *TaskProjector
}

// NewRebuilder creates a new rebuilder
func NewRebuilder(db *gorm.DB, store eventstore.EventStore, projector *TaskProjector) *Rebuilder {
	return &Rebuilder{db: db, store: store, projector: projector}
}

// Rebuild truncates the read model and replays the full task event history
// through the projector. Cross-aggregate order does not matter: each row is
// independently upserted in per-aggregate version order.
func (r *Rebuilder) Rebuild(ctx context.Context) error {
	if err := r.db.WithContext(ctx).
		Session(&gorm.Session{AllowGlobalUpdate: true}).
		Delete(&models.TaskReadModel{}).Error; err != nil {
		return fmt.Errorf("failed to truncate read model: %w", err)
	}

	events, err := r.store.ReadAllByKind(ctx, domain.AggregateKindTask)
	if err != nil {
		return fmt.Errorf("failed to read event history: %w", err)
	}

	for _, event := range events {
		if err := r.projector.HandleEvent(ctx, event); err != nil {
			return fmt.Errorf("failed to project event %s v%d for %s: %w",
				event.Kind, event.Version, event.AggregateID, err)
		}
	}

	log.Info().Int("events", len(events)).Msg("Read model rebuilt from history")
	return nil
}

// RebuildAggregate re-derives a single task's row from its history. Handy for
// repairing one row without truncating the whole read model.
func (r *Rebuilder) RebuildAggregate(ctx context.Context, aggregateID string) error {
	if err := r.db.WithContext(ctx).
		Where("aggregate_id = ?", aggregateID).
		Delete(&models.TaskReadModel{}).Error; err != nil {
		return fmt.Errorf("failed to remove read model row: %w", err)
	}

	events, err := r.store.ReadHistory(ctx, aggregateID)
	if err != nil {
		return fmt.Errorf("failed to read event history: %w", err)
	}
	if len(events) == 0 {
		return domain.ErrNotFound
	}

	for _, event := range events {
		if err := r.projector.HandleEvent(ctx, event); err != nil {
			return fmt.Errorf("failed to project event %s v%d for %s: %w",
				event.Kind, event.Version, event.AggregateID, err)
		}
	}

	log.Info().Str("aggregateID", aggregateID).Int("events", len(events)).Msg("Read model row rebuilt")
	return nil
}
