package worker

import (
	"context"
	"time"

	"prokat/internal/database"
	"prokat/internal/metrics"
	"prokat/internal/models"

	"github.com/rs/zerolog"
)

// AuditWorker drains booking mutation events into the SQLite audit journal.
// Record never blocks the request path: when the queue is full the event is
// dropped and counted.
type AuditWorker struct {
	db          *database.DB
	retryPolicy RetryPolicy
	queue       chan models.AuditEvent
	logger      *zerolog.Logger
}

// NewAuditWorker builds a worker with sane defaults.
func NewAuditWorker(db *database.DB, queueSize int, retry RetryPolicy, logger *zerolog.Logger) *AuditWorker {
	if queueSize <= 0 {
		queueSize = models.AuditQueueSize
	}
	if retry.MaxRetries == 0 {
		retry.MaxRetries = 5
	}
	if retry.InitialDelay == 0 {
		retry.InitialDelay = 2 * time.Second
	}
	if retry.MaxDelay == 0 {
		retry.MaxDelay = 1 * time.Minute
	}
	if retry.BackoffFactor == 0 {
		retry.BackoffFactor = 2
	}

	return &AuditWorker{
		db:          db,
		retryPolicy: retry,
		queue:       make(chan models.AuditEvent, queueSize),
		logger:      logger,
	}
}

// Record implements domain.Recorder.
func (w *AuditWorker) Record(event models.AuditEvent) {
	select {
	case w.queue <- event:
	default:
		metrics.IncAuditDropped()
		w.logger.Warn().Str("booking_id", event.BookingID).Msg("audit queue full, dropping event")
	}
}

// Run consumes the queue until ctx is cancelled, then drains what is left.
func (w *AuditWorker) Run(ctx context.Context) {
	w.logger.Info().Msg("Audit worker started")

	for {
		select {
		case <-ctx.Done():
			w.drain()
			w.logger.Info().Msg("Audit worker stopped")
			return
		case event := <-w.queue:
			w.write(ctx, event)
		}
	}
}

func (w *AuditWorker) drain() {
	// Shutdown context is gone; give the remaining inserts a bounded window.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for {
		select {
		case event := <-w.queue:
			if err := w.db.InsertAuditEvent(ctx, &event); err != nil {
				w.logger.Error().Err(err).Str("booking_id", event.BookingID).Msg("failed to flush audit event on shutdown")
			}
		default:
			return
		}
	}
}

func (w *AuditWorker) write(ctx context.Context, event models.AuditEvent) {
	var lastErr error
	for attempt := 1; attempt <= w.retryPolicy.MaxRetries; attempt++ {
		lastErr = w.db.InsertAuditEvent(ctx, &event)
		if lastErr == nil {
			return
		}

		delay := w.retryPolicy.NextDelay(attempt)
		w.logger.Warn().Err(lastErr).Int("attempt", attempt).Dur("delay", delay).Msg("audit insert failed, retrying")

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}

	w.logger.Error().Err(lastErr).Str("booking_id", event.BookingID).Msg("audit event dropped after retries")
	metrics.IncAuditDropped()
}
