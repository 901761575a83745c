// Package state records every sync pass in a sqlite history file.
package state

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Ning0612/Comicshelf/internal/domain"
)

// Manager handles sync history persistence
type Manager struct {
	db *sql.DB
}

// Record represents a single sync pass
type Record struct {
	ID         int64
	Provider   string
	Folder     string
	StartTime  time.Time
	EndTime    time.Time
	Status     string // "success", "failed", "partial"
	Scanned    int
	Downloaded int
	Skipped    int
	Failed     int
	Bytes      int64
	Error      string
}

// Duration returns how long the pass ran
func (r Record) Duration() time.Duration {
	return r.EndTime.Sub(r.StartTime)
}

// RecordFromOutcome flattens an outcome into a history row. Item errors
// are joined into Error, one per line.
func RecordFromOutcome(o domain.SyncOutcome) Record {
	r := Record{
		Provider:   o.Provider,
		Folder:     o.Folder,
		StartTime:  o.Started,
		EndTime:    o.Finished,
		Status:     o.Status(),
		Scanned:    o.Scanned,
		Downloaded: o.Downloaded,
		Skipped:    o.Skipped,
		Failed:     len(o.Errors),
		Bytes:      o.Bytes,
	}

	var msgs []string
	if o.Err != nil {
		msgs = append(msgs, o.Err.Error())
	}
	for _, e := range o.Errors {
		msgs = append(msgs, e.Error())
	}
	r.Error = strings.Join(msgs, "\n")
	return r
}

// NewManager opens (or creates) the history database at path
func NewManager(path string) (*Manager, error) {
	if path == "" {
		return nil, fmt.Errorf("history path cannot be empty")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection avoids "database is locked" between the CLI and a scheduled sync
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode and busy timeout: %w", err)
	}

	manager := &Manager{db: db}
	if err := manager.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return manager, nil
}

func (m *Manager) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sync_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		provider TEXT NOT NULL,
		folder TEXT NOT NULL DEFAULT '',
		start_time TIMESTAMP NOT NULL,
		end_time TIMESTAMP NOT NULL,
		status TEXT NOT NULL,
		scanned INTEGER DEFAULT 0,
		downloaded INTEGER DEFAULT 0,
		skipped INTEGER DEFAULT 0,
		failed INTEGER DEFAULT 0,
		bytes INTEGER DEFAULT 0,
		error TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_sync_runs_provider_time ON sync_runs(provider, start_time DESC);
	CREATE INDEX IF NOT EXISTS idx_sync_runs_status ON sync_runs(status);
	`

	_, err := m.db.Exec(schema)
	return err
}

// Save records a sync pass
func (m *Manager) Save(record Record) error {
	switch record.Status {
	case "success", "failed", "partial":
	default:
		return fmt.Errorf("invalid status: %s (must be 'success', 'failed', or 'partial')", record.Status)
	}
	if record.Provider == "" {
		return fmt.Errorf("provider cannot be empty")
	}

	query := `
		INSERT INTO sync_runs (provider, folder, start_time, end_time, status, scanned, downloaded, skipped, failed, bytes, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := m.db.Exec(query,
		record.Provider,
		record.Folder,
		record.StartTime,
		record.EndTime,
		record.Status,
		record.Scanned,
		record.Downloaded,
		record.Skipped,
		record.Failed,
		record.Bytes,
		record.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to save sync record: %w", err)
	}
	return nil
}

// SaveOutcome records the outcome of a finished pass
func (m *Manager) SaveOutcome(o domain.SyncOutcome) error {
	return m.Save(RecordFromOutcome(o))
}

const selectColumns = `SELECT id, provider, folder, start_time, end_time, status, scanned, downloaded, skipped, failed, bytes, error FROM sync_runs`

// History retrieves the most recent passes for a provider.
// An empty provider returns passes of every provider.
func (m *Manager) History(provider string, limit int) ([]Record, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}

	var (
		rows *sql.Rows
		err  error
	)
	if provider == "" {
		rows, err = m.db.Query(selectColumns+` ORDER BY start_time DESC, id DESC LIMIT ?`, limit)
	} else {
		rows, err = m.db.Query(selectColumns+` WHERE provider = ? ORDER BY start_time DESC, id DESC LIMIT ?`, provider, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating records: %w", err)
	}
	return records, nil
}

// LastSuccess retrieves the last successful pass for a provider, or nil
func (m *Manager) LastSuccess(provider string) (*Record, error) {
	row := m.db.QueryRow(selectColumns+` WHERE provider = ? AND status = 'success' ORDER BY start_time DESC, id DESC LIMIT 1`, provider)

	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query last success: %w", err)
	}
	return &record, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (Record, error) {
	var r Record
	err := s.Scan(
		&r.ID,
		&r.Provider,
		&r.Folder,
		&r.StartTime,
		&r.EndTime,
		&r.Status,
		&r.Scanned,
		&r.Downloaded,
		&r.Skipped,
		&r.Failed,
		&r.Bytes,
		&r.Error,
	)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return r, fmt.Errorf("failed to scan record: %w", err)
	}
	return r, err
}

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
