package models

const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
	StatusCompleted = "completed"
)

const (
	// BookingsKey is the record store key holding the serialized booking collection.
	BookingsKey = "bookings"

	// AuditQueueSize размер очереди воркера аудита
	AuditQueueSize = 1000

	// UpdateMaxRetries максимум повторов read-modify-write цикла при конфликте версий
	UpdateMaxRetries = 5
)

const (
	AuditEventCreated = "booking_created"
	AuditEventUpdated = "booking_updated"
	AuditEventDeleted = "booking_deleted"
)
