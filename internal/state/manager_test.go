package state

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Ning0612/Comicshelf/internal/domain"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	manager, err := NewManager(filepath.Join(t.TempDir(), "state", "history.db"))
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}
	t.Cleanup(func() { manager.Close() })
	return manager
}

func TestNewManager(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history.db")

	manager, err := NewManager(path)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}
	defer manager.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("Database file was not created")
	}
}

func TestNewManager_EmptyPath(t *testing.T) {
	if _, err := NewManager(""); err == nil {
		t.Error("Expected error for empty path, got nil")
	}
}

func TestSaveOutcome(t *testing.T) {
	manager := newTestManager(t)

	started := time.Now().Add(-2 * time.Minute)
	outcome := domain.SyncOutcome{
		Provider:   "gdrive",
		Folder:     "Comics",
		Phase:      domain.PhaseCompleted,
		Scanned:    4,
		Downloaded: 2,
		Skipped:    1,
		Bytes:      1024,
		Errors:     []domain.ItemError{{Name: "bad.cbz", Err: domain.ErrChecksumMismatch}},
		Started:    started,
		Finished:   started.Add(90 * time.Second),
	}
	if err := manager.SaveOutcome(outcome); err != nil {
		t.Fatalf("SaveOutcome() error = %v", err)
	}

	history, err := manager.History("gdrive", 10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(history))
	}

	r := history[0]
	if r.Status != "partial" {
		t.Errorf("Status = %s, want partial", r.Status)
	}
	if r.Folder != "Comics" || r.Scanned != 4 || r.Downloaded != 2 || r.Skipped != 1 || r.Failed != 1 || r.Bytes != 1024 {
		t.Errorf("record = %+v", r)
	}
	if !strings.Contains(r.Error, "bad.cbz") {
		t.Errorf("Error = %q, want item error", r.Error)
	}
	if d := r.Duration().Round(time.Second); d != 90*time.Second {
		t.Errorf("Duration() = %s, want 1m30s", d)
	}
}

func TestRecordFromOutcome_Failed(t *testing.T) {
	r := RecordFromOutcome(domain.SyncOutcome{
		Provider: "onedrive",
		Phase:    domain.PhaseFailed,
		Err:      &domain.AuthError{Provider: "onedrive", Err: domain.ErrNotAuthenticated},
	})
	if r.Status != "failed" {
		t.Errorf("Status = %s, want failed", r.Status)
	}
	if !strings.Contains(r.Error, "not authenticated") {
		t.Errorf("Error = %q", r.Error)
	}
}

func TestLastSuccess(t *testing.T) {
	manager := newTestManager(t)
	now := time.Now()

	records := []Record{
		{Provider: "gdrive", StartTime: now.Add(-30 * time.Minute), EndTime: now.Add(-29 * time.Minute), Status: "success", Downloaded: 5},
		{Provider: "gdrive", StartTime: now.Add(-20 * time.Minute), EndTime: now.Add(-19 * time.Minute), Status: "failed", Error: "network error"},
		{Provider: "gdrive", StartTime: now.Add(-10 * time.Minute), EndTime: now.Add(-9 * time.Minute), Status: "success", Downloaded: 10},
		{Provider: "s3", StartTime: now.Add(-5 * time.Minute), EndTime: now.Add(-4 * time.Minute), Status: "success", Downloaded: 99},
	}
	for _, record := range records {
		if err := manager.Save(record); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}

	last, err := manager.LastSuccess("gdrive")
	if err != nil {
		t.Fatalf("LastSuccess() error = %v", err)
	}
	if last == nil || last.Downloaded != 10 {
		t.Errorf("LastSuccess() = %+v, want the 10-file pass", last)
	}

	none, err := manager.LastSuccess("onedrive")
	if err != nil || none != nil {
		t.Errorf("LastSuccess(onedrive) = %+v, %v, want nil", none, err)
	}
}

func TestHistory_AllProvidersAndLimit(t *testing.T) {
	manager := newTestManager(t)
	now := time.Now()

	for i, provider := range []string{"gdrive", "s3", "gdrive", "local", "gdrive"} {
		record := Record{
			Provider:   provider,
			StartTime:  now.Add(time.Duration(-i*10) * time.Minute),
			EndTime:    now.Add(time.Duration(-i*10+1) * time.Minute),
			Status:     "success",
			Downloaded: i,
		}
		if err := manager.Save(record); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}

	all, err := manager.History("", 100)
	if err != nil || len(all) != 5 {
		t.Fatalf("History(all) = %d records, %v", len(all), err)
	}
	if all[0].Downloaded != 0 {
		t.Errorf("most recent record = %+v", all[0])
	}

	gdrive, err := manager.History("gdrive", 2)
	if err != nil || len(gdrive) != 2 {
		t.Fatalf("History(gdrive, 2) = %d records, %v", len(gdrive), err)
	}
	if gdrive[0].Downloaded != 0 || gdrive[1].Downloaded != 2 {
		t.Errorf("History(gdrive) = %+v", gdrive)
	}
}

func TestSave_Validation(t *testing.T) {
	manager := newTestManager(t)

	tests := []struct {
		name   string
		record Record
	}{
		{"invalid status", Record{Provider: "gdrive", StartTime: time.Now(), EndTime: time.Now(), Status: "invalid_status"}},
		{"missing provider", Record{StartTime: time.Now(), EndTime: time.Now(), Status: "success"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := manager.Save(tt.record); err == nil {
				t.Error("Expected error, got nil")
			}
		})
	}
}

func TestHistory_InvalidLimit(t *testing.T) {
	manager := newTestManager(t)

	for _, limit := range []int{0, -1} {
		if _, err := manager.History("gdrive", limit); err == nil {
			t.Errorf("Expected error for limit=%d, got nil", limit)
		}
	}
}

func TestScanRecord_NoRows(t *testing.T) {
	manager := newTestManager(t)
	_, err := scanRecord(manager.db.QueryRow(selectColumns + ` WHERE id = -1`))
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("scanRecord() error = %v, want sql.ErrNoRows", err)
	}
}
