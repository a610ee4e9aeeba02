package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"prokat/internal/models"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"
)

// DB is the SQLite-backed audit journal. The booking collection itself lives
// in the record store; this keeps the append-only mutation history the admin
// back office reads.
type DB struct {
	*sql.DB
	logger *zerolog.Logger
}

func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %v", err)
	}

	sqlDB, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %v", err)
	}

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %v", err)
	}

	db := &DB{DB: sqlDB, logger: logger}
	if err := db.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %v", err)
	}

	return db, nil
}

func (db *DB) createTables() error {
	query := `CREATE TABLE IF NOT EXISTS audit_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		event_type TEXT NOT NULL,
		booking_id TEXT NOT NULL,
		item_id TEXT NOT NULL,
		payload TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_audit_booking ON audit_events(booking_id);
	CREATE INDEX IF NOT EXISTS idx_audit_created ON audit_events(created_at);`

	if _, err := db.Exec(query); err != nil {
		return fmt.Errorf("error executing query %s: %v", query, err)
	}
	return nil
}

func (db *DB) InsertAuditEvent(ctx context.Context, event *models.AuditEvent) error {
	query := `INSERT INTO audit_events (event_type, booking_id, item_id, payload, created_at)
              VALUES (?, ?, ?, ?, ?)`
	result, err := db.ExecContext(ctx, query,
		event.EventType,
		event.BookingID,
		event.ItemID,
		event.Payload,
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	event.ID = id

	return nil
}

func (db *DB) GetEventsByBooking(ctx context.Context, bookingID string) ([]models.AuditEvent, error) {
	query := `SELECT id, event_type, booking_id, item_id, payload, created_at
              FROM audit_events WHERE booking_id = ? ORDER BY created_at ASC, id ASC`
	rows, err := db.QueryContext(ctx, query, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to get audit events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func (db *DB) GetRecentEvents(ctx context.Context, limit int) ([]models.AuditEvent, error) {
	query := `SELECT id, event_type, booking_id, item_id, payload, created_at
              FROM audit_events ORDER BY created_at DESC, id DESC LIMIT ?`
	rows, err := db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent audit events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func (db *DB) PruneEventsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := db.ExecContext(ctx, `DELETE FROM audit_events WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune audit events: %w", err)
	}
	rows, _ := result.RowsAffected()
	return rows, nil
}

func scanEvents(rows *sql.Rows) ([]models.AuditEvent, error) {
	var events []models.AuditEvent
	for rows.Next() {
		var e models.AuditEvent
		err := rows.Scan(&e.ID, &e.EventType, &e.BookingID, &e.ItemID, &e.Payload, &e.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit events: %w", err)
	}
	return events, nil
}
