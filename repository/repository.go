package repository

import (
	"context"

	"example.com/taskboard/domain"
	"example.com/taskboard/eventstore"
)

// TaskRepository loads task aggregates by replaying their event history and
// persists newly produced events under the aggregate's expected version.
type TaskRepository struct {
	store eventstore.EventStore
}

// NewTaskRepository creates a new task repository
func NewTaskRepository(store eventstore.EventStore) *TaskRepository {
	return &TaskRepository{store: store}
}

// FindByID rebuilds the aggregate from its history. An aggregate with no
// events does not exist: (nil, nil), not an error.
func (r *TaskRepository) FindByID(ctx context.Context, id string) (*domain.Task, error) {
	events, err := r.store.ReadHistory(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, nil
	}

	task := domain.NewTask(id)
	task.LoadFromHistory(events)
	return task, nil
}

// Save appends the aggregate's uncommitted events in the order produced.
// The expected version is the version the aggregate was at before the staged
// batch. On a concurrency conflict the staged events stay put and the caller
// must reload before retrying.
func (r *TaskRepository) Save(ctx context.Context, task *domain.Task) error {
	events := task.UncommittedEvents()
	if len(events) == 0 {
		return nil
	}

	expectedVersion := task.Version() - len(events)
	if err := r.store.Append(ctx, task.ID(), domain.AggregateKindTask, events, expectedVersion); err != nil {
		return err
	}

	task.MarkCommitted()
	return nil
}
