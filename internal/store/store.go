package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/rescuemate/alertsync/internal/domain/alert"
	apperrors "github.com/rescuemate/alertsync/internal/pkg/errors"
)

// SchemaVersion is the current schema version. Every schema change must bump
// this; on open, a mismatch with an existing installation destroys and
// recreates all collections (no data is migrated across versions).
const SchemaVersion = 6

// Store is the durable source of truth shared by the foreground and
// background processes. It holds three independent collections: alerts,
// the outbound sync queue, and configuration.
type Store struct {
	sql *sql.DB
}

// Open opens (or creates) the store at path and brings the schema to
// SchemaVersion, resetting all collections if a previous version existed.
func Open(path string) (*Store, error) {
	return open(path, SchemaVersion)
}

func open(path string, version int) (*Store, error) {
	d, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, apperrors.Storage("failed to open store", err)
	}
	if _, err := d.Exec(`PRAGMA journal_mode=WAL;`); err != nil {
		_ = d.Close()
		return nil, apperrors.Storage("failed to enable WAL", err)
	}
	s := &Store{sql: d}
	if err := s.migrate(version); err != nil {
		_ = d.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.sql.Close() }

func (s *Store) migrate(version int) error {
	var current int
	if err := s.sql.QueryRow(`PRAGMA user_version`).Scan(&current); err != nil {
		return apperrors.Storage("failed to read schema version", err)
	}

	// Deliberately dumb migration policy: any prior version is wiped whole
	// rather than transformed.
	if current != 0 && current != version {
		if _, err := s.sql.Exec(`
DROP TABLE IF EXISTS alerts;
DROP TABLE IF EXISTS sync_queue;
DROP TABLE IF EXISTS configuration;
`); err != nil {
			return apperrors.Storage("failed to reset previous schema", err)
		}
	}

	if _, err := s.sql.Exec(`
CREATE TABLE IF NOT EXISTS alerts (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    severity TEXT NOT NULL,
    timestamp TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS sync_queue (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    id TEXT NOT NULL UNIQUE,
    title TEXT NOT NULL,
    severity TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS configuration (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`); err != nil {
		return apperrors.Storage("failed to create collections", err)
	}

	if _, err := s.sql.Exec(fmt.Sprintf(`PRAGMA user_version = %d`, version)); err != nil {
		return apperrors.Storage("failed to record schema version", err)
	}
	return nil
}

// Alerts collection

// PutAlert inserts or replaces an alert by id. Idempotent.
func (s *Store) PutAlert(ctx context.Context, a alert.Alert) error {
	_, err := s.sql.ExecContext(ctx, `
INSERT INTO alerts (id, title, severity, timestamp) VALUES (?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  title=excluded.title,
  severity=excluded.severity,
  timestamp=excluded.timestamp
`, a.ID, a.Title, a.Severity, a.Timestamp)
	if err != nil {
		return apperrors.Storage("failed to put alert", err)
	}
	return nil
}

// PutAlerts upserts a batch of alerts in one transaction.
func (s *Store) PutAlerts(ctx context.Context, alerts []alert.Alert) error {
	tx, err := s.sql.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.Storage("failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO alerts (id, title, severity, timestamp) VALUES (?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  title=excluded.title,
  severity=excluded.severity,
  timestamp=excluded.timestamp
`)
	if err != nil {
		return apperrors.Storage("failed to prepare upsert", err)
	}
	defer stmt.Close()

	for _, a := range alerts {
		if _, err := stmt.ExecContext(ctx, a.ID, a.Title, a.Severity, a.Timestamp); err != nil {
			return apperrors.Storage("failed to put alert", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return apperrors.Storage("failed to commit alerts", err)
	}
	return nil
}

// AllAlerts returns every cached alert in key (id) order.
func (s *Store) AllAlerts(ctx context.Context) ([]alert.Alert, error) {
	rows, err := s.sql.QueryContext(ctx, `SELECT id, title, severity, timestamp FROM alerts ORDER BY id`)
	if err != nil {
		return nil, apperrors.Storage("failed to list alerts", err)
	}
	defer rows.Close()

	var out []alert.Alert
	for rows.Next() {
		var a alert.Alert
		if err := rows.Scan(&a.ID, &a.Title, &a.Severity, &a.Timestamp); err != nil {
			return nil, apperrors.Storage("failed to scan alert", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Storage("failed to read alerts", err)
	}
	return out, nil
}

// DeleteAlert removes an alert by id. No error when absent.
func (s *Store) DeleteAlert(ctx context.Context, id string) error {
	if _, err := s.sql.ExecContext(ctx, `DELETE FROM alerts WHERE id=?`, id); err != nil {
		return apperrors.Storage("failed to delete alert", err)
	}
	return nil
}

// ClearAlerts removes every cached alert.
func (s *Store) ClearAlerts(ctx context.Context) error {
	if _, err := s.sql.ExecContext(ctx, `DELETE FROM alerts`); err != nil {
		return apperrors.Storage("failed to clear alerts", err)
	}
	return nil
}

// Sync queue collection

// Enqueue appends a pending report. Unlike alert writes this is a strict
// insert: a duplicate queue id is a Conflict, never a silent overwrite.
func (s *Store) Enqueue(ctx context.Context, item alert.QueueItem) error {
	_, err := s.sql.ExecContext(ctx,
		`INSERT INTO sync_queue (id, title, severity) VALUES (?, ?, ?)`,
		item.ID, item.Data.Title, item.Data.Severity)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return apperrors.Conflict(fmt.Sprintf("queue item %s already exists", item.ID))
		}
		return apperrors.Storage("failed to enqueue report", err)
	}
	return nil
}

// Queue returns pending reports in insertion order.
func (s *Store) Queue(ctx context.Context) ([]alert.QueueItem, error) {
	rows, err := s.sql.QueryContext(ctx, `SELECT id, title, severity FROM sync_queue ORDER BY seq`)
	if err != nil {
		return nil, apperrors.Storage("failed to list queue", err)
	}
	defer rows.Close()

	var out []alert.QueueItem
	for rows.Next() {
		var item alert.QueueItem
		if err := rows.Scan(&item.ID, &item.Data.Title, &item.Data.Severity); err != nil {
			return nil, apperrors.Storage("failed to scan queue item", err)
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Storage("failed to read queue", err)
	}
	return out, nil
}

// Dequeue removes a confirmed report by id. Idempotent, no error when absent.
func (s *Store) Dequeue(ctx context.Context, id string) error {
	if _, err := s.sql.ExecContext(ctx, `DELETE FROM sync_queue WHERE id=?`, id); err != nil {
		return apperrors.Storage("failed to dequeue report", err)
	}
	return nil
}

// ClearQueue removes every pending report.
func (s *Store) ClearQueue(ctx context.Context) error {
	if _, err := s.sql.ExecContext(ctx, `DELETE FROM sync_queue`); err != nil {
		return apperrors.Storage("failed to clear queue", err)
	}
	return nil
}

// Configuration collection

// SetConfig stores a key/value pair, replacing any previous value.
func (s *Store) SetConfig(ctx context.Context, key, value string) error {
	_, err := s.sql.ExecContext(ctx, `
INSERT INTO configuration (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value=excluded.value
`, key, value)
	if err != nil {
		return apperrors.Storage("failed to set config", err)
	}
	return nil
}

// GetConfig returns the value for key, or "" and false when unset.
func (s *Store) GetConfig(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.sql.QueryRowContext(ctx, `SELECT value FROM configuration WHERE key=?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, apperrors.Storage("failed to get config", err)
	}
	return value, true, nil
}

// DeleteConfig removes a key. Idempotent.
func (s *Store) DeleteConfig(ctx context.Context, key string) error {
	if _, err := s.sql.ExecContext(ctx, `DELETE FROM configuration WHERE key=?`, key); err != nil {
		return apperrors.Storage("failed to delete config", err)
	}
	return nil
}

// ClearConfig removes every configuration entry.
func (s *Store) ClearConfig(ctx context.Context) error {
	if _, err := s.sql.ExecContext(ctx, `DELETE FROM configuration`); err != nil {
		return apperrors.Storage("failed to clear config", err)
	}
	return nil
}
