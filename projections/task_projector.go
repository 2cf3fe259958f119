package projections

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"example.com/taskboard/domain"
	"example.com/taskboard/models"
)

// TaskProjector maintains the denormalized task read model. Every mutation
// writes absolute field values plus the event's own version, so reprocessing
// an event is idempotent. Events at or below the row's stored version are
// skipped, which keeps the row monotonic even if delivery order is ever
// violated.
type TaskProjector struct {
	db *gorm.DB
}

// NewTaskProjector creates a new task projector
func NewTaskProjector(db *gorm.DB) *TaskProjector {
	return &TaskProjector{db: db}
}

// HandleEvent projects a single event into the read model
func (p *TaskProjector) HandleEvent(ctx context.Context, event domain.Event) error {
	switch payload := event.Payload.(type) {
	case domain.CreatedPayload:
		return p.onCreated(ctx, event, payload)
	case domain.UpdatedPayload:
		return p.onUpdated(ctx, event, payload)
	case domain.CompletedPayload:
		return p.onCompleted(ctx, event, payload)
	case domain.ReopenedPayload:
		return p.onReopened(ctx, event)
	case domain.DeletedPayload:
		return p.onDeleted(ctx, event)
	default:
		return fmt.Errorf("unexpected payload %T for event kind %s", event.Payload, event.Kind)
	}
}

func (p *TaskProjector) onCreated(ctx context.Context, event domain.Event, payload domain.CreatedPayload) error {
	row := models.TaskReadModel{
		AggregateID: event.AggregateID,
		Title:       payload.Title,
		Description: payload.Description,
		Status:      string(domain.StatusTodo),
		CreatedBy:   payload.ActorID,
		CreatedAt:   event.RecordedAt,
		Version:     event.Version,
	}

	// Upsert keyed by aggregate id; the version guard on the conflict branch
	// rejects replays of an event the row has already seen.
	err := p.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "aggregate_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"title", "description", "status", "created_by", "created_at", "version",
		}),
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Expr{SQL: "task_read_models.version < ?", Vars: []interface{}{event.Version}},
		}},
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to project %s: %w", event.Kind, err)
	}

	return nil
}

func (p *TaskProjector) onUpdated(ctx context.Context, event domain.Event, payload domain.UpdatedPayload) error {
	updates := map[string]interface{}{
		"updated_at": event.RecordedAt,
		"version":    event.Version,
	}
	if payload.Title != nil {
		updates["title"] = *payload.Title
	}
	if payload.Description != nil {
		updates["description"] = *payload.Description
	}

	return p.applyUpdate(ctx, event, updates)
}

func (p *TaskProjector) onCompleted(ctx context.Context, event domain.Event, payload domain.CompletedPayload) error {
	return p.applyUpdate(ctx, event, map[string]interface{}{
		"status":       string(domain.StatusDone),
		"completed_at": payload.CompletedAt,
		"updated_at":   event.RecordedAt,
		"version":      event.Version,
	})
}

func (p *TaskProjector) onReopened(ctx context.Context, event domain.Event) error {
	return p.applyUpdate(ctx, event, map[string]interface{}{
		"status":       string(domain.StatusTodo),
		"completed_at": nil,
		"updated_at":   event.RecordedAt,
		"version":      event.Version,
	})
}

func (p *TaskProjector) onDeleted(ctx context.Context, event domain.Event) error {
	return p.applyUpdate(ctx, event, map[string]interface{}{
		"status":     string(domain.StatusDeleted),
		"updated_at": event.RecordedAt,
		"version":    event.Version,
	})
}

// applyUpdate writes absolute values to the row, guarded so the stored
// version only ever moves forward.
func (p *TaskProjector) applyUpdate(ctx context.Context, event domain.Event, updates map[string]interface{}) error {
	result := p.db.WithContext(ctx).
		Model(&models.TaskReadModel{}).
		Where("aggregate_id = ? AND version < ?", event.AggregateID, event.Version).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to project %s: %w", event.Kind, result.Error)
	}

	if result.RowsAffected == 0 {
		log.Debug().
			Str("eventKind", event.Kind).
			Str("aggregateID", event.AggregateID).
			Int("version", event.Version).
			Msg("Skipping stale or unknown event")
	}

	return nil
}
