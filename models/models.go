package models

import (
	"time"
)

// Event is a persisted domain event. Rows are append-only and never updated
// or deleted; the unique index on (aggregate_id, version) backstops the
// optimistic concurrency check under races.
type Event struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	EventID       string    `gorm:"uniqueIndex" json:"event_id"`
	AggregateID   string    `gorm:"uniqueIndex:idx_events_aggregate_version" json:"aggregate_id"`
	AggregateKind string    `gorm:"index" json:"aggregate_kind"`
	EventKind     string    `json:"event_kind"`
	Payload       []byte    `json:"payload"`
	Metadata      []byte    `json:"metadata"`
	Version       int       `gorm:"uniqueIndex:idx_events_aggregate_version" json:"version"`
	RecordedAt    time.Time `gorm:"index" json:"recorded_at"`
	CreatedAt     time.Time `json:"created_at"`
}

// TaskReadModel is the denormalized row projected from task events. Every
// column holds absolute values stamped with the version of the last applied
// event; timestamps come from the events, not from GORM.
type TaskReadModel struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	AggregateID string     `gorm:"uniqueIndex" json:"aggregate_id"`
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	Status      string     `gorm:"index" json:"status"`
	CreatedBy   string     `gorm:"index" json:"created_by"`
	CreatedAt   time.Time  `gorm:"autoCreateTime:false" json:"created_at"`
	UpdatedAt   *time.Time `gorm:"autoUpdateTime:false" json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at"`
	Version     int        `json:"version"`
}
