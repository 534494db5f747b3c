// Package history persists every published telemetry snapshot (and its
// synthesized-command counterpart) to SQLite, giving the bridge a local
// record of device state independent of the InfluxDB sink: one processed
// telemetry snapshot per row, keyed by device serial.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Snapshot sources.
const (
	SourceDevice = "device"
	SourceSynth  = "synth"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

// Entry is one recorded telemetry snapshot.
type Entry struct {
	ID           int64          `json:"id"`
	DeviceSerial string         `json:"device_serial"`
	Snapshot     map[string]any `json:"snapshot"`
	Source       string         `json:"source"`
	CreatedAt    time.Time      `json:"created_at"`
}

// Repository stores and retrieves telemetry history.
type Repository interface {
	Record(ctx context.Context, deviceSerial string, snapshot map[string]any, source string) error
	Recent(ctx context.Context, deviceSerial string, limit int) ([]Entry, error)
	Prune(ctx context.Context, olderThan time.Duration) (int64, error)
}

// SQLiteRepository implements Repository against the telemetry_history
// table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository builds a repository over an already-migrated
// database connection.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Record inserts one telemetry snapshot for deviceSerial.
func (r *SQLiteRepository) Record(ctx context.Context, deviceSerial string, snapshot map[string]any, source string) error {
	if deviceSerial == "" {
		return fmt.Errorf("history: device serial is required")
	}
	if source == "" {
		source = SourceDevice
	}

	snapshotJSON, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("history: marshalling snapshot: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO telemetry_history (device_serial, snapshot, source, created_at)
		 VALUES (?, ?, ?, ?)`,
		deviceSerial, string(snapshotJSON), source, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("history: inserting telemetry snapshot: %w", err)
	}
	return nil
}

// Recent returns the most recent entries for deviceSerial, newest first.
func (r *SQLiteRepository) Recent(ctx context.Context, deviceSerial string, limit int) ([]Entry, error) {
	if deviceSerial == "" {
		return nil, fmt.Errorf("history: device serial is required")
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, device_serial, snapshot, source, created_at
		 FROM telemetry_history
		 WHERE device_serial = ?
		 ORDER BY created_at DESC
		 LIMIT ?`,
		deviceSerial, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("history: querying telemetry history: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		var e Entry
		var snapshotJSON, createdAt string

		if err := rows.Scan(&e.ID, &e.DeviceSerial, &snapshotJSON, &e.Source, &createdAt); err != nil {
			return nil, fmt.Errorf("history: scanning telemetry history row: %w", err)
		}
		if err := json.Unmarshal([]byte(snapshotJSON), &e.Snapshot); err != nil {
			return nil, fmt.Errorf("history: unmarshalling snapshot: %w", err)
		}
		ts, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("history: parsing created_at %q: %w", createdAt, err)
		}
		e.CreatedAt = ts

		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: iterating telemetry history: %w", err)
	}

	return entries, nil
}

// Prune deletes entries older than olderThan, returning the number of
// rows removed.
func (r *SQLiteRepository) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("history: olderThan must be positive")
	}

	cutoff := time.Now().UTC().Add(-olderThan).Format(time.RFC3339)
	result, err := r.db.ExecContext(ctx, "DELETE FROM telemetry_history WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("history: deleting telemetry history: %w", err)
	}
	return result.RowsAffected()
}
