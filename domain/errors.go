package domain

import (
	"errors"
	"fmt"
)

// Business-rule and infrastructure errors surfaced by the core. Command
// handlers return these unmodified; the API layer maps them to HTTP statuses.
var (
	ErrNotFound         = errors.New("task not found")
	ErrAlreadyExists    = errors.New("task already exists")
	ErrInvalidState     = errors.New("task is deleted")
	ErrAlreadyCompleted = errors.New("task already completed")
	ErrNotCompleted     = errors.New("only completed tasks can be reopened")
	ErrStoreUnavailable = errors.New("event store unavailable")
)

// ConcurrencyConflictError reports a failed optimistic-concurrency check at
// append time. The caller must reload the aggregate before retrying.
type ConcurrencyConflictError struct {
	AggregateID string
	Expected    int
	Actual      int
}

func (e *ConcurrencyConflictError) Error() string {
	return fmt.Sprintf("concurrency conflict for aggregate %s: expected version %d, current is %d",
		e.AggregateID, e.Expected, e.Actual)
}

// IsConcurrencyConflict reports whether err is (or wraps) a concurrency conflict.
func IsConcurrencyConflict(err error) bool {
	var conflict *ConcurrencyConflictError
	return errors.As(err, &conflict)
}
