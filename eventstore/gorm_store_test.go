package eventstore

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"example.com/taskboard/domain"
	"example.com/taskboard/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Event{}))

	return db
}

func newEvent(aggregateID string, version int, payload domain.Payload, recordedAt time.Time) domain.Event {
	return domain.Event{
		AggregateID:   aggregateID,
		AggregateKind: domain.AggregateKindTask,
		Kind:          payload.Kind(),
		Version:       version,
		RecordedAt:    recordedAt,
		Payload:       payload,
		Metadata:      domain.Metadata{ActorID: "alice"},
	}
}

func TestGormEventStore_AppendAndReadHistory(t *testing.T) {
	store := NewGormEventStore(newTestDB(t))
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	desc := "write it down"
	events := []domain.Event{
		newEvent("task-1", 1, domain.CreatedPayload{Title: "Write spec", Description: &desc, ActorID: "alice"}, now),
		newEvent("task-1", 2, domain.CompletedPayload{CompletedAt: now.Add(time.Hour), ActorID: "alice"}, now.Add(time.Hour)),
	}

	require.NoError(t, store.Append(ctx, "task-1", domain.AggregateKindTask, events, 0))

	history, err := store.ReadHistory(ctx, "task-1")
	require.NoError(t, err)
	require.Len(t, history, 2)

	assert.Equal(t, 1, history[0].Version)
	assert.Equal(t, domain.TaskCreated, history[0].Kind)
	created, ok := history[0].Payload.(domain.CreatedPayload)
	require.True(t, ok)
	assert.Equal(t, "Write spec", created.Title)
	require.NotNil(t, created.Description)
	assert.Equal(t, desc, *created.Description)
	assert.Equal(t, "alice", history[0].Metadata.ActorID)

	assert.Equal(t, 2, history[1].Version)
	completed, ok := history[1].Payload.(domain.CompletedPayload)
	require.True(t, ok)
	assert.Equal(t, now.Add(time.Hour), completed.CompletedAt.UTC())
}

func TestGormEventStore_ReadHistoryUnknownAggregate(t *testing.T) {
	store := NewGormEventStore(newTestDB(t))

	history, err := store.ReadHistory(context.Background(), "missing")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestGormEventStore_AppendEmptyBatchIsNoop(t *testing.T) {
	store := NewGormEventStore(newTestDB(t))
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "task-1", domain.AggregateKindTask, nil, 0))

	history, err := store.ReadHistory(ctx, "task-1")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestGormEventStore_StaleExpectedVersionConflicts(t *testing.T) {
	store := NewGormEventStore(newTestDB(t))
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, store.Append(ctx, "task-1", domain.AggregateKindTask, []domain.Event{
		newEvent("task-1", 1, domain.CreatedPayload{Title: "First", ActorID: "alice"}, now),
	}, 0))
	require.NoError(t, store.Append(ctx, "task-1", domain.AggregateKindTask, []domain.Event{
		newEvent("task-1", 2, domain.CompletedPayload{CompletedAt: now, ActorID: "alice"}, now),
	}, 1))

	// both writers loaded version 1; the second append must lose
	err := store.Append(ctx, "task-1", domain.AggregateKindTask, []domain.Event{
		newEvent("task-1", 2, domain.ReopenedPayload{ActorID: "bob"}, now),
	}, 1)
	require.Error(t, err)
	require.True(t, domain.IsConcurrencyConflict(err))

	var conflict *domain.ConcurrencyConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, 1, conflict.Expected)
	assert.Equal(t, 2, conflict.Actual)

	// the losing batch must leave the history unchanged
	history, readErr := store.ReadHistory(ctx, "task-1")
	require.NoError(t, readErr)
	require.Len(t, history, 2)
	assert.Equal(t, domain.TaskCompleted, history[1].Kind)
}

func TestGormEventStore_ConflictWritesNothingFromBatch(t *testing.T) {
	store := NewGormEventStore(newTestDB(t))
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, store.Append(ctx, "task-1", domain.AggregateKindTask, []domain.Event{
		newEvent("task-1", 1, domain.CreatedPayload{Title: "First", ActorID: "alice"}, now),
	}, 0))

	batch := []domain.Event{
		newEvent("task-1", 1, domain.UpdatedPayload{}, now),
		newEvent("task-1", 2, domain.CompletedPayload{CompletedAt: now, ActorID: "bob"}, now),
	}
	err := store.Append(ctx, "task-1", domain.AggregateKindTask, batch, 0)
	require.True(t, domain.IsConcurrencyConflict(err))

	history, readErr := store.ReadHistory(ctx, "task-1")
	require.NoError(t, readErr)
	assert.Len(t, history, 1)
}

func TestGormEventStore_AppendAssignsContiguousVersions(t *testing.T) {
	store := NewGormEventStore(newTestDB(t))
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, store.Append(ctx, "task-1", domain.AggregateKindTask, []domain.Event{
		newEvent("task-1", 1, domain.CreatedPayload{Title: "First", ActorID: "alice"}, now),
	}, 0))

	title := "Renamed"
	require.NoError(t, store.Append(ctx, "task-1", domain.AggregateKindTask, []domain.Event{
		newEvent("task-1", 2, domain.UpdatedPayload{Title: &title}, now.Add(time.Minute)),
		newEvent("task-1", 3, domain.CompletedPayload{CompletedAt: now.Add(2 * time.Minute), ActorID: "alice"}, now.Add(2*time.Minute)),
	}, 1))

	history, err := store.ReadHistory(ctx, "task-1")
	require.NoError(t, err)
	require.Len(t, history, 3)
	for i, event := range history {
		assert.Equal(t, i+1, event.Version)
	}
}

func TestGormEventStore_ReadAllByKind(t *testing.T) {
	store := NewGormEventStore(newTestDB(t))
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, store.Append(ctx, "task-b", domain.AggregateKindTask, []domain.Event{
		newEvent("task-b", 1, domain.CreatedPayload{Title: "B", ActorID: "bob"}, base.Add(2*time.Second)),
	}, 0))
	require.NoError(t, store.Append(ctx, "task-a", domain.AggregateKindTask, []domain.Event{
		newEvent("task-a", 1, domain.CreatedPayload{Title: "A", ActorID: "alice"}, base),
	}, 0))

	all, err := store.ReadAllByKind(ctx, domain.AggregateKindTask)
	require.NoError(t, err)
	require.Len(t, all, 2)
	// ascending recorded_at across aggregates
	assert.Equal(t, "task-a", all[0].AggregateID)
	assert.Equal(t, "task-b", all[1].AggregateID)

	none, err := store.ReadAllByKind(ctx, "Project")
	require.NoError(t, err)
	assert.Empty(t, none)

	unfiltered, err := store.ReadAllByKind(ctx, "")
	require.NoError(t, err)
	assert.Len(t, unfiltered, 2)
}
