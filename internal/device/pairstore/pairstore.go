// Package pairstore remembers paired devices across restarts in SQLite.
package pairstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const defaultBusyTimeout = 5 * time.Second

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS paired_devices (
		device_type TEXT NOT NULL,
		address TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		paired_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (device_type, address)
	)`,
}

// Record is one remembered pairing.
type Record struct {
	DeviceType string
	Address    string
	Name       string
	PairedAt   time.Time
}

// Store persists pairings. It is safe for concurrent use.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates the store at path. The special path ":memory:" keeps
// everything in memory.
func Open(ctx context.Context, path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("pairstore: ensure directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("pairstore: open sqlite store: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		fmt.Sprintf("PRAGMA busy_timeout = %d", int(defaultBusyTimeout.Milliseconds())),
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("pairstore: apply pragma %q: %w", pragma, err)
		}
	}
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("pairstore: apply schema: %w", err)
		}
	}

	return &Store{db: db, path: path}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save records a pairing, replacing any previous one for the same device.
func (s *Store) Save(ctx context.Context, rec Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO paired_devices (device_type, address, name, paired_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(device_type, address) DO UPDATE SET
			name = excluded.name,
			paired_at = excluded.paired_at
	`, rec.DeviceType, rec.Address, rec.Name, pairedAt(rec).Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("pairstore: save %s/%s: %w", rec.DeviceType, rec.Address, err)
	}
	return nil
}

// Delete forgets a pairing. Deleting an unknown pairing is not an error.
func (s *Store) Delete(ctx context.Context, deviceType, address string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM paired_devices WHERE device_type = ? AND address = ?`,
		deviceType, address,
	); err != nil {
		return fmt.Errorf("pairstore: delete %s/%s: %w", deviceType, address, err)
	}
	return nil
}

// List returns the pairings of deviceType ordered by address.
func (s *Store) List(ctx context.Context, deviceType string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT device_type, address, name, paired_at
		FROM paired_devices
		WHERE device_type = ?
		ORDER BY address
	`, deviceType)
	if err != nil {
		return nil, fmt.Errorf("pairstore: list %s: %w", deviceType, err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		var ts string
		if err := rows.Scan(&rec.DeviceType, &rec.Address, &rec.Name, &ts); err != nil {
			return nil, fmt.Errorf("pairstore: scan: %w", err)
		}
		if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			rec.PairedAt = parsed
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func pairedAt(rec Record) time.Time {
	if rec.PairedAt.IsZero() {
		return time.Now().UTC()
	}
	return rec.PairedAt.UTC()
}
