package domain

import (
	"time"

	"github.com/google/uuid"
)

// TaskStatus is the lifecycle status of a task.
type TaskStatus string

const (
	StatusTodo       TaskStatus = "todo"
	StatusInProgress TaskStatus = "in_progress"
	StatusDone       TaskStatus = "done"
	StatusDeleted    TaskStatus = "deleted"
)

// TaskState is the derived state of a task aggregate.
type TaskState struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description *string    `json:"description,omitempty"`
	Status      TaskStatus `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	CreatedBy   string     `json:"created_by"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Version     int        `json:"version"`
}

// TaskUpdates carries the updatable fields of a task; nil means "keep".
type TaskUpdates struct {
	Title       *string
	Description *string
}

// Task is the event-sourced aggregate for a single task. State is never
// stored directly: it is always a fold over the ordered event history. A nil
// state means the task does not exist yet.
type Task struct {
	id          string
	state       *TaskState
	version     int
	uncommitted []Event
}

// NewTask creates an empty aggregate for the given id.
func NewTask(id string) *Task {
	return &Task{id: id}
}

// ID returns the aggregate id.
func (t *Task) ID() string {
	return t.id
}

// Version returns the version of the last applied event, committed or not.
func (t *Task) Version() int {
	return t.version
}

// State returns a copy of the derived state, or nil when the task is absent.
func (t *Task) State() *TaskState {
	if t.state == nil {
		return nil
	}
	state := *t.state
	return &state
}

// LoadFromHistory replays persisted events in ascending version order.
// Replayed events are not staged as uncommitted. Replaying an empty history
// leaves the aggregate absent.
func (t *Task) LoadFromHistory(events []Event) {
	for _, event := range events {
		t.apply(event)
	}
}

// Create starts the task lifecycle.
func (t *Task) Create(title, actorID string, description *string) error {
	if t.state != nil {
		return ErrAlreadyExists
	}

	t.record(CreatedPayload{Title: title, Description: description, ActorID: actorID}, actorID)
	return nil
}

// Update merges the non-nil fields into the task.
func (t *Task) Update(updates TaskUpdates, actorID string) error {
	if err := t.ensureActive(); err != nil {
		return err
	}

	t.record(UpdatedPayload{Title: updates.Title, Description: updates.Description}, actorID)
	return nil
}

// Complete marks the task done.
func (t *Task) Complete(actorID string) error {
	if err := t.ensureActive(); err != nil {
		return err
	}
	if t.state.Status == StatusDone {
		return ErrAlreadyCompleted
	}

	t.record(CompletedPayload{CompletedAt: time.Now().UTC(), ActorID: actorID}, actorID)
	return nil
}

// Reopen returns a completed task to todo.
func (t *Task) Reopen(actorID string) error {
	if err := t.ensureActive(); err != nil {
		return err
	}
	if t.state.Status != StatusDone {
		return ErrNotCompleted
	}

	t.record(ReopenedPayload{ActorID: actorID}, actorID)
	return nil
}

// Delete terminally deletes the task. The history remains replayable but no
// further mutating operation succeeds.
func (t *Task) Delete(actorID string, reason *string) error {
	if err := t.ensureActive(); err != nil {
		return err
	}

	t.record(DeletedPayload{ActorID: actorID, Reason: reason}, actorID)
	return nil
}

// UncommittedEvents returns a snapshot of the staged events, in the exact
// order they were produced. This is the batch the repository must persist.
func (t *Task) UncommittedEvents() []Event {
	events := make([]Event, len(t.uncommitted))
	copy(events, t.uncommitted)
	return events
}

// MarkCommitted clears the staged events after a successful save.
func (t *Task) MarkCommitted() {
	t.uncommitted = nil
}

// record builds the event for a payload, applies it and stages it as
// uncommitted. New events and replayed events go through the same fold.
func (t *Task) record(payload Payload, actorID string) {
	event := Event{
		ID:            uuid.New().String(),
		AggregateID:   t.id,
		AggregateKind: AggregateKindTask,
		Kind:          payload.Kind(),
		Version:       t.version + 1,
		RecordedAt:    time.Now().UTC(),
		Payload:       payload,
		Metadata:      Metadata{ActorID: actorID},
	}

	t.apply(event)
	t.uncommitted = append(t.uncommitted, event)
}

// apply is the single fold function deriving state from events. It must stay
// pure: the same event sequence always produces the same state.
func (t *Task) apply(event Event) {
	switch payload := event.Payload.(type) {
	case CreatedPayload:
		t.state = &TaskState{
			ID:          t.id,
			Title:       payload.Title,
			Description: payload.Description,
			Status:      StatusTodo,
			CreatedAt:   event.RecordedAt,
			CreatedBy:   payload.ActorID,
			Version:     event.Version,
		}

	case UpdatedPayload:
		if t.state != nil {
			if payload.Title != nil {
				t.state.Title = *payload.Title
			}
			if payload.Description != nil {
				t.state.Description = payload.Description
			}
			t.touch(event)
		}

	case CompletedPayload:
		if t.state != nil {
			completedAt := payload.CompletedAt
			t.state.Status = StatusDone
			t.state.CompletedAt = &completedAt
			t.touch(event)
		}

	case ReopenedPayload:
		if t.state != nil {
			t.state.Status = StatusTodo
			t.state.CompletedAt = nil
			t.touch(event)
		}

	case DeletedPayload:
		if t.state != nil {
			t.state.Status = StatusDeleted
			t.touch(event)
		}
	}

	t.version = event.Version
}

func (t *Task) touch(event Event) {
	recordedAt := event.RecordedAt
	t.state.UpdatedAt = &recordedAt
	t.state.Version = event.Version
}

func (t *Task) ensureActive() error {
	if t.state == nil {
		return ErrNotFound
	}
	if t.state.Status == StatusDeleted {
		return ErrInvalidState
	}
	return nil
}
