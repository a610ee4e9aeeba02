package repository

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"prokat/internal/domain"

	"github.com/rs/zerolog"
)

// fnAbort marks errors raised by the caller's mutation function so the
// failover layer does not mistake them for a store outage.
type fnAbort struct{ err error }

func (e *fnAbort) Error() string { return e.err.Error() }
func (e *fnAbort) Unwrap() error { return e.err }

func abortedBy(err error) (error, bool) {
	var a *fnAbort
	if errors.As(err, &a) {
		return a.err, true
	}
	return err, false
}

type FailoverRecordStore struct {
	primary   domain.Store
	fallback  domain.Store
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck time.Time
}

func NewFailoverRecordStore(primary, fallback domain.Store, logger *zerolog.Logger) *FailoverRecordStore {
	return &FailoverRecordStore{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (r *FailoverRecordStore) Get(ctx context.Context, key string) ([]byte, error) {
	if !r.isDown.Load() {
		data, err := r.primary.Get(ctx, key)
		if err == nil {
			return data, nil
		}
		r.logger.Error().Err(err).Msg("Primary record store failed, falling back to memory")
		r.isDown.Store(true)
		r.lastCheck = time.Now()
	}

	// Try to recover after 1 minute
	if r.isDown.Load() && time.Since(r.lastCheck) > time.Minute {
		data, err := r.primary.Get(ctx, key)
		if err == nil {
			r.isDown.Store(false)
			return data, nil
		}
		r.lastCheck = time.Now()
	}

	return r.fallback.Get(ctx, key)
}

func (r *FailoverRecordStore) Set(ctx context.Context, key string, data []byte) error {
	if !r.isDown.Load() {
		err := r.primary.Set(ctx, key, data)
		if err == nil {
			return nil
		}
		r.logger.Error().Err(err).Msg("Primary record store failed, falling back to memory")
		r.isDown.Store(true)
		r.lastCheck = time.Now()
	}

	return r.fallback.Set(ctx, key, data)
}

func (r *FailoverRecordStore) Update(ctx context.Context, key string, fn func(old []byte) ([]byte, error)) error {
	if !r.isDown.Load() {
		err := r.primary.Update(ctx, key, fn)
		if err == nil {
			return nil
		}
		if inner, aborted := abortedBy(err); aborted {
			// The mutation function rejected the update; the store is healthy.
			return inner
		}
		r.logger.Error().Err(err).Msg("Primary record store failed, falling back to memory")
		r.isDown.Store(true)
		r.lastCheck = time.Now()
	}

	err := r.fallback.Update(ctx, key, fn)
	if inner, aborted := abortedBy(err); aborted {
		return inner
	}
	return err
}
