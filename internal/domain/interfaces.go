package domain

import (
	"context"

	"prokat/internal/models"
)

// Store is the record store collaborator: JSON documents addressed by key.
// Get returns (nil, nil) when the key does not exist.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, data []byte) error

	// Update runs an atomic read-modify-write cycle for key. fn receives the
	// current document (nil when absent) and returns the replacement. An error
	// from fn aborts the cycle without writing. Implementations retry on
	// concurrent modification and return repository.ErrTooManyRetries when the key
	// keeps changing underneath.
	Update(ctx context.Context, key string, fn func(old []byte) ([]byte, error)) error
}

// Recorder receives booking mutation events for the audit journal.
// Implementations must not block the caller.
type Recorder interface {
	Record(event models.AuditEvent)
}
