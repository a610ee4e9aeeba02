package models

import "time"

// AuditEvent is one entry of the booking mutation journal.
type AuditEvent struct {
	ID        int64     `json:"id"`
	EventType string    `json:"event_type"` // booking_created, booking_updated, booking_deleted
	BookingID string    `json:"booking_id"`
	ItemID    string    `json:"item_id"`
	Payload   string    `json:"payload"` // JSON snapshot of the booking after the mutation
	CreatedAt time.Time `json:"created_at"`
}
