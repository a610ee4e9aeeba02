package booking

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"prokat/internal/domain"
	"prokat/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Engine enforces the per-item no-overlap invariant and manages the booking
// lifecycle. The whole collection lives in the record store as one JSON
// document under models.BookingsKey; every mutation goes through the store's
// atomic read-modify-write cycle so concurrent writers re-check against each
// other's results.
type Engine struct {
	store    domain.Store
	recorder domain.Recorder
	logger   *zerolog.Logger
	now      func() time.Time
}

func NewEngine(store domain.Store, recorder domain.Recorder, logger *zerolog.Logger) *Engine {
	return &Engine{
		store:    store,
		recorder: recorder,
		logger:   logger,
		now:      time.Now,
	}
}

// CreateRequest carries the client-supplied fields for a new booking.
type CreateRequest struct {
	ItemID        string          `json:"itemId"`
	CustomerName  string          `json:"customerName"`
	CustomerEmail string          `json:"customerEmail"`
	CustomerPhone string          `json:"customerPhone"`
	StartDate     string          `json:"startDate"`
	EndDate       string          `json:"endDate"`
	TotalPrice    json.RawMessage `json:"totalPrice"`
	Status        string          `json:"status"`
}

// Patch carries the fields of an update. Nil pointers are left untouched.
type Patch struct {
	Status        *string         `json:"status"`
	StartDate     *string         `json:"startDate"`
	EndDate       *string         `json:"endDate"`
	CustomerName  *string         `json:"customerName"`
	CustomerEmail *string         `json:"customerEmail"`
	CustomerPhone *string         `json:"customerPhone"`
	TotalPrice    json.RawMessage `json:"totalPrice"`
}

// List returns the stored bookings, optionally filtered by item, in store order.
func (e *Engine) List(ctx context.Context, itemID string) ([]models.Booking, error) {
	data, err := e.store.Get(ctx, models.BookingsKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read bookings: %w", err)
	}

	bookings, err := decodeCollection(data)
	if err != nil {
		return nil, err
	}

	if itemID == "" {
		return bookings, nil
	}

	filtered := make([]models.Booking, 0, len(bookings))
	for _, b := range bookings {
		if b.ItemID == itemID {
			filtered = append(filtered, b)
		}
	}
	return filtered, nil
}

// Create validates the request, checks for overlaps against all non-cancelled
// bookings of the item and appends the new booking to the collection.
func (e *Engine) Create(ctx context.Context, req CreateRequest) (*models.Booking, error) {
	if strings.TrimSpace(req.ItemID) == "" ||
		strings.TrimSpace(req.StartDate) == "" ||
		strings.TrimSpace(req.EndDate) == "" {
		return nil, validationErr("missing required field")
	}

	start, end, err := parseRange(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}

	status := req.Status
	if status == "" {
		status = models.StatusPending
	}

	created := models.Booking{
		ID:            uuid.NewString(),
		ItemID:        req.ItemID,
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		CustomerPhone: req.CustomerPhone,
		StartDate:     req.StartDate,
		EndDate:       req.EndDate,
		TotalPrice:    req.TotalPrice,
		Status:        status,
		CreatedAt:     e.now(),
	}

	err = e.store.Update(ctx, models.BookingsKey, func(old []byte) ([]byte, error) {
		bookings, err := decodeCollection(old)
		if err != nil {
			return nil, err
		}

		if e.findOverlap(bookings, req.ItemID, start, end, "") {
			return nil, conflictErr("item already booked for selected dates")
		}

		return json.Marshal(append(bookings, created))
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info().
		Str("booking_id", created.ID).
		Str("item_id", created.ItemID).
		Str("start", created.StartDate).
		Str("end", created.EndDate).
		Msg("booking created")
	e.record(models.AuditEventCreated, &created)

	return &created, nil
}

// Update applies a partial patch to an existing booking. Supplying either
// date re-validates the merged range and re-runs the overlap check against
// all other non-cancelled bookings of the item. A status-only change does not.
func (e *Engine) Update(ctx context.Context, id string, patch Patch) (*models.Booking, error) {
	if strings.TrimSpace(id) == "" {
		return nil, validationErr("missing required field")
	}

	var updated models.Booking
	err := e.store.Update(ctx, models.BookingsKey, func(old []byte) ([]byte, error) {
		bookings, err := decodeCollection(old)
		if err != nil {
			return nil, err
		}

		idx := -1
		for i := range bookings {
			if bookings[i].ID == id {
				idx = i
				break
			}
		}
		if idx == -1 {
			return nil, notFoundErr("booking not found")
		}

		b := bookings[idx]
		if patch.CustomerName != nil {
			b.CustomerName = *patch.CustomerName
		}
		if patch.CustomerEmail != nil {
			b.CustomerEmail = *patch.CustomerEmail
		}
		if patch.CustomerPhone != nil {
			b.CustomerPhone = *patch.CustomerPhone
		}
		if patch.TotalPrice != nil {
			b.TotalPrice = patch.TotalPrice
		}
		if patch.Status != nil {
			b.Status = *patch.Status
		}

		if patch.StartDate != nil || patch.EndDate != nil {
			if patch.StartDate != nil {
				b.StartDate = *patch.StartDate
			}
			if patch.EndDate != nil {
				b.EndDate = *patch.EndDate
			}

			start, end, err := parseRange(b.StartDate, b.EndDate)
			if err != nil {
				return nil, err
			}

			if e.findOverlap(bookings, b.ItemID, start, end, b.ID) {
				return nil, conflictErr("item already booked for selected dates")
			}
		}

		bookings[idx] = b
		updated = b
		return json.Marshal(bookings)
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info().Str("booking_id", updated.ID).Str("item_id", updated.ItemID).Msg("booking updated")
	e.record(models.AuditEventUpdated, &updated)

	return &updated, nil
}

// Delete removes a booking from the collection. Deleting an unknown id is a
// no-op that still succeeds, so retries stay idempotent.
func (e *Engine) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return validationErr("missing required field")
	}

	var removed *models.Booking
	err := e.store.Update(ctx, models.BookingsKey, func(old []byte) ([]byte, error) {
		bookings, err := decodeCollection(old)
		if err != nil {
			return nil, err
		}

		remaining := make([]models.Booking, 0, len(bookings))
		for _, b := range bookings {
			if b.ID == id {
				deleted := b
				removed = &deleted
				continue
			}
			remaining = append(remaining, b)
		}
		return json.Marshal(remaining)
	})
	if err != nil {
		return err
	}

	if removed != nil {
		e.logger.Info().Str("booking_id", removed.ID).Str("item_id", removed.ItemID).Msg("booking deleted")
		e.record(models.AuditEventDeleted, removed)
	}
	return nil
}

// findOverlap reports whether [start, end] overlaps any non-cancelled booking
// of the item, skipping excludeID. Boundaries are inclusive on both ends: a
// booking ending the day another starts conflicts, no same-day turnover.
func (e *Engine) findOverlap(bookings []models.Booking, itemID string, start, end time.Time, excludeID string) bool {
	for i := range bookings {
		b := &bookings[i]
		if b.ItemID != itemID || !b.Active() || b.ID == excludeID {
			continue
		}

		bStart, bEnd, err := b.Range()
		if err != nil {
			e.logger.Warn().Str("booking_id", b.ID).Err(err).Msg("stored booking has unparseable dates, skipping in overlap check")
			continue
		}

		if !bStart.After(end) && !bEnd.Before(start) {
			return true
		}
	}
	return false
}

func (e *Engine) record(eventType string, b *models.Booking) {
	if e.recorder == nil {
		return
	}

	payload, err := json.Marshal(b)
	if err != nil {
		e.logger.Error().Err(err).Str("booking_id", b.ID).Msg("failed to marshal audit payload")
		return
	}

	e.recorder.Record(models.AuditEvent{
		EventType: eventType,
		BookingID: b.ID,
		ItemID:    b.ItemID,
		Payload:   string(payload),
		CreatedAt: e.now(),
	})
}

func parseRange(startDate, endDate string) (time.Time, time.Time, error) {
	start, err := time.Parse(models.DateLayout, startDate)
	if err != nil {
		return time.Time{}, time.Time{}, validationErr("invalid date format; expected YYYY-MM-DD")
	}
	end, err := time.Parse(models.DateLayout, endDate)
	if err != nil {
		return time.Time{}, time.Time{}, validationErr("invalid date format; expected YYYY-MM-DD")
	}
	if !end.After(start) {
		return time.Time{}, time.Time{}, validationErr("end date must be after start date")
	}
	return start, end, nil
}

func decodeCollection(data []byte) ([]models.Booking, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var bookings []models.Booking
	if err := json.Unmarshal(data, &bookings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal bookings collection: %w", err)
	}
	return bookings, nil
}
