package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"example.com/taskboard/domain"
)

// Mock event store for testing
type MockEventStore struct {
	mock.Mock
}

func (m *MockEventStore) Append(ctx context.Context, aggregateID, aggregateKind string, events []domain.Event, expectedVersion int) error {
	args := m.Called(ctx, aggregateID, aggregateKind, events, expectedVersion)
	return args.Error(0)
}

func (m *MockEventStore) ReadHistory(ctx context.Context, aggregateID string) ([]domain.Event, error) {
	args := m.Called(ctx, aggregateID)
	return args.Get(0).([]domain.Event), args.Error(1)
}

func (m *MockEventStore) ReadAllByKind(ctx context.Context, aggregateKind string) ([]domain.Event, error) {
	args := m.Called(ctx, aggregateKind)
	return args.Get(0).([]domain.Event), args.Error(1)
}

func TestTaskRepository_FindByIDAbsent(t *testing.T) {
	store := new(MockEventStore)
	store.On("ReadHistory", mock.Anything, "missing").Return([]domain.Event{}, nil)

	repo := NewTaskRepository(store)
	task, err := repo.FindByID(context.Background(), "missing")

	require.NoError(t, err)
	assert.Nil(t, task)
	store.AssertExpectations(t)
}

func TestTaskRepository_FindByIDReplaysHistory(t *testing.T) {
	source := domain.NewTask("task-1")
	require.NoError(t, source.Create("Load me", "alice", nil))
	require.NoError(t, source.Complete("alice"))
	history := source.UncommittedEvents()

	store := new(MockEventStore)
	store.On("ReadHistory", mock.Anything, "task-1").Return(history, nil)

	repo := NewTaskRepository(store)
	task, err := repo.FindByID(context.Background(), "task-1")

	require.NoError(t, err)
	require.NotNil(t, task)
	assert.Equal(t, 2, task.Version())
	assert.Equal(t, domain.StatusDone, task.State().Status)
	assert.Empty(t, task.UncommittedEvents())
}

func TestTaskRepository_SaveNoopWithoutStagedEvents(t *testing.T) {
	store := new(MockEventStore)
	repo := NewTaskRepository(store)

	task := domain.NewTask("task-1")
	require.NoError(t, repo.Save(context.Background(), task))

	store.AssertNotCalled(t, "Append")
}

func TestTaskRepository_SaveUsesExpectedVersion(t *testing.T) {
	history := domain.NewTask("task-1")
	require.NoError(t, history.Create("Saved before", "alice", nil))
	persisted := history.UncommittedEvents()

	store := new(MockEventStore)
	store.On("ReadHistory", mock.Anything, "task-1").Return(persisted, nil)
	store.On("Append", mock.Anything, "task-1", domain.AggregateKindTask, mock.AnythingOfType("[]domain.Event"), 1).
		Return(nil)

	repo := NewTaskRepository(store)
	task, err := repo.FindByID(context.Background(), "task-1")
	require.NoError(t, err)

	require.NoError(t, task.Complete("alice"))
	require.NoError(t, repo.Save(context.Background(), task))

	assert.Empty(t, task.UncommittedEvents(), "staged events are cleared on success")
	store.AssertExpectations(t)
}

func TestTaskRepository_SaveConflictKeepsStagedEvents(t *testing.T) {
	conflict := &domain.ConcurrencyConflictError{AggregateID: "task-1", Expected: 0, Actual: 1}

	store := new(MockEventStore)
	store.On("Append", mock.Anything, "task-1", domain.AggregateKindTask, mock.AnythingOfType("[]domain.Event"), 0).
		Return(conflict)

	repo := NewTaskRepository(store)
	task := domain.NewTask("task-1")
	require.NoError(t, task.Create("Racing", "alice", nil))

	err := repo.Save(context.Background(), task)
	require.Error(t, err)
	assert.True(t, domain.IsConcurrencyConflict(err))
	assert.Len(t, task.UncommittedEvents(), 1, "conflict must not clear the staged batch")
}
