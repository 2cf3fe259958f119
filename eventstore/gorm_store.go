package eventstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"example.com/taskboard/domain"
	"example.com/taskboard/models"
)

// GormEventStore implements EventStore on a relational database via GORM.
// The check-version-then-append runs inside a single transaction, so a batch
// is committed entirely or not at all.
type GormEventStore struct {
	db *gorm.DB
}

// NewGormEventStore creates a new GORM event store
func NewGormEventStore(db *gorm.DB) *GormEventStore {
	return &GormEventStore{db: db}
}

// Append appends a batch of events under the expected version
func (s *GormEventStore) Append(ctx context.Context, aggregateID, aggregateKind string, events []domain.Event, expectedVersion int) error {
	if len(events) == 0 {
		return nil
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var currentVersion int64
		if err := tx.Model(&models.Event{}).
			Where("aggregate_id = ?", aggregateID).
			Select("COALESCE(MAX(version), 0)").
			Scan(&currentVersion).Error; err != nil {
			return fmt.Errorf("failed to read current version: %w", err)
		}

		if int(currentVersion) != expectedVersion {
			return &domain.ConcurrencyConflictError{
				AggregateID: aggregateID,
				Expected:    expectedVersion,
				Actual:      int(currentVersion),
			}
		}

		for i, event := range events {
			payload, err := json.Marshal(event.Payload)
			if err != nil {
				return fmt.Errorf("failed to marshal event payload: %w", err)
			}

			metadata, err := json.Marshal(event.Metadata)
			if err != nil {
				return fmt.Errorf("failed to marshal event metadata: %w", err)
			}

			eventID := event.ID
			if eventID == "" {
				eventID = uuid.New().String()
			}

			dbEvent := models.Event{
				EventID:       eventID,
				AggregateID:   aggregateID,
				AggregateKind: aggregateKind,
				EventKind:     event.Kind,
				Payload:       payload,
				Metadata:      metadata,
				Version:       expectedVersion + i + 1,
				RecordedAt:    event.RecordedAt,
			}

			if err := tx.Create(&dbEvent).Error; err != nil {
				return fmt.Errorf("failed to append event: %w", err)
			}

			log.Info().
				Str("aggregateID", aggregateID).
				Str("eventKind", event.Kind).
				Int("version", dbEvent.Version).
				Msg("Event appended")
		}

		return nil
	})
	if err != nil {
		if domain.IsConcurrencyConflict(err) {
			return err
		}
		// A unique violation on (aggregate_id, version) means a concurrent
		// writer won between our version check and the insert.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return &domain.ConcurrencyConflictError{
				AggregateID: aggregateID,
				Expected:    expectedVersion,
				Actual:      expectedVersion + 1,
			}
		}
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}

	return nil
}

// ReadHistory returns all events for an aggregate in ascending version order
func (s *GormEventStore) ReadHistory(ctx context.Context, aggregateID string) ([]domain.Event, error) {
	var dbEvents []models.Event
	if err := s.db.WithContext(ctx).
		Where("aggregate_id = ?", aggregateID).
		Order("version ASC").
		Find(&dbEvents).Error; err != nil {
		return nil, fmt.Errorf("%w: failed to read history: %v", domain.ErrStoreUnavailable, err)
	}

	return toDomainEvents(dbEvents)
}

// ReadAllByKind returns all events ordered by recording time, optionally
// filtered by aggregate kind
func (s *GormEventStore) ReadAllByKind(ctx context.Context, aggregateKind string) ([]domain.Event, error) {
	query := s.db.WithContext(ctx).Order("recorded_at ASC, id ASC")
	if aggregateKind != "" {
		query = query.Where("aggregate_kind = ?", aggregateKind)
	}

	var dbEvents []models.Event
	if err := query.Find(&dbEvents).Error; err != nil {
		return nil, fmt.Errorf("%w: failed to read events: %v", domain.ErrStoreUnavailable, err)
	}

	return toDomainEvents(dbEvents)
}

func toDomainEvents(dbEvents []models.Event) ([]domain.Event, error) {
	events := make([]domain.Event, 0, len(dbEvents))
	for _, dbEvent := range dbEvents {
		payload, err := domain.UnmarshalPayload(dbEvent.EventKind, dbEvent.Payload)
		if err != nil {
			return nil, err
		}

		var metadata domain.Metadata
		if len(dbEvent.Metadata) > 0 {
			if err := json.Unmarshal(dbEvent.Metadata, &metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal event metadata: %w", err)
			}
		}

		events = append(events, domain.Event{
			ID:            dbEvent.EventID,
			AggregateID:   dbEvent.AggregateID,
			AggregateKind: dbEvent.AggregateKind,
			Kind:          dbEvent.EventKind,
			Version:       dbEvent.Version,
			RecordedAt:    dbEvent.RecordedAt,
			Payload:       payload,
			Metadata:      metadata,
		})
	}

	return events, nil
}
