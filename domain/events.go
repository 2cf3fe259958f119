package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Aggregate kinds
const (
	AggregateKindTask = "Task"
)

// Event kind constants
const (
	TaskCreated   = "TaskCreated"
	TaskUpdated   = "TaskUpdated"
	TaskCompleted = "TaskCompleted"
	TaskReopened  = "TaskReopened"
	TaskDeleted   = "TaskDeleted"
)

// TaskEventKinds lists every task event kind, in no particular order. The
// composition root uses it to build the event bus subscription table.
func TaskEventKinds() []string {
	return []string{TaskCreated, TaskUpdated, TaskCompleted, TaskReopened, TaskDeleted}
}

// Metadata carries attribution for an event. It is never used for state
// derivation.
type Metadata struct {
	ActorID string `json:"actor_id,omitempty"`
}

// Payload is the tagged union of event payloads. There is exactly one variant
// per event kind; the aggregate's fold function matches them exhaustively, so
// an unknown kind cannot slip through silently.
type Payload interface {
	Kind() string
	isPayload()
}

// CreatedPayload records the initial task fields.
type CreatedPayload struct {
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
	ActorID     string  `json:"actor_id"`
}

// UpdatedPayload carries only the fields that changed; nil means "keep".
type UpdatedPayload struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
}

// CompletedPayload marks the task done.
type CompletedPayload struct {
	CompletedAt time.Time `json:"completed_at"`
	ActorID     string    `json:"actor_id"`
}

// ReopenedPayload returns a completed task to todo.
type ReopenedPayload struct {
	ActorID string `json:"actor_id"`
}

// DeletedPayload terminally deletes the task.
type DeletedPayload struct {
	ActorID string  `json:"actor_id"`
	Reason  *string `json:"reason,omitempty"`
}

func (CreatedPayload) Kind() string   { return TaskCreated }
func (UpdatedPayload) Kind() string   { return TaskUpdated }
func (CompletedPayload) Kind() string { return TaskCompleted }
func (ReopenedPayload) Kind() string  { return TaskReopened }
func (DeletedPayload) Kind() string   { return TaskDeleted }

func (CreatedPayload) isPayload()   {}
func (UpdatedPayload) isPayload()   {}
func (CompletedPayload) isPayload() {}
func (ReopenedPayload) isPayload()  {}
func (DeletedPayload) isPayload()   {}

// Event is the immutable record of one state transition for one aggregate.
// Versions are 1-based, strictly increasing and contiguous per aggregate.
type Event struct {
	ID            string    `json:"id"`
	AggregateID   string    `json:"aggregate_id"`
	AggregateKind string    `json:"aggregate_kind"`
	Kind          string    `json:"kind"`
	Version       int       `json:"version"`
	RecordedAt    time.Time `json:"recorded_at"`
	Payload       Payload   `json:"payload"`
	Metadata      Metadata  `json:"metadata"`
}

// UnmarshalPayload decodes a stored payload back into its typed variant.
func UnmarshalPayload(kind string, data []byte) (Payload, error) {
	switch kind {
	case TaskCreated:
		var p CreatedPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s payload: %w", kind, err)
		}
		return p, nil
	case TaskUpdated:
		var p UpdatedPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s payload: %w", kind, err)
		}
		return p, nil
	case TaskCompleted:
		var p CompletedPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s payload: %w", kind, err)
		}
		return p, nil
	case TaskReopened:
		var p ReopenedPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s payload: %w", kind, err)
		}
		return p, nil
	case TaskDeleted:
		var p DeletedPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s payload: %w", kind, err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown event kind: %s", kind)
	}
}
