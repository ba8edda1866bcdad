// Package optimistic applies a local state change before the remote write
// lands and restores the previous state if the write fails.
package optimistic

import (
	"context"
	"errors"
)

var ErrIncompleteMutation = errors.New("optimistic: Apply and Commit are required")

// Mutation describes one optimistic update over a local snapshot of type T.
type Mutation[T any] struct {
	// Apply performs the local change and returns the state it replaced
	Apply func() T
	// Commit performs the remote write
	Commit func(ctx context.Context) error
	// Rollback restores the snapshot returned by Apply
	Rollback func(previous T)
	// OnError is told about a failed commit after rollback, typically to raise a toast
	OnError func(err error)
}

// Run applies, commits and on failure rolls back. The commit error is returned unchanged.
func (m Mutation[T]) Run(ctx context.Context) error {
	if m.Apply == nil || m.Commit == nil {
		return ErrIncompleteMutation
	}

	previous := m.Apply()

	if err := m.Commit(ctx); err != nil {
		if m.Rollback != nil {
			m.Rollback(previous)
		}
		if m.OnError != nil {
			m.OnError(err)
		}
		return err
	}
	return nil
}
