package testutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const pollEvery = 10 * time.Millisecond

// CreateTestFile writes content to dir/name and returns the full path.
// name may contain slashes; missing folders are created.
func CreateTestFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()

	full := filepath.Join(dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", name, err)
	}
	if err := os.WriteFile(full, content, 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return full
}

// SetModTime pins both timestamps of path to mtime
func SetModTime(t *testing.T, path string, mtime time.Time) {
	t.Helper()
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatalf("chtimes %s: %v", path, err)
	}
}

// WaitForCondition polls cond until it holds or timeout passes. cond is
// always checked once more at the deadline.
func WaitForCondition(timeout time.Duration, cond func() bool) bool {
	deadline := time.After(timeout)
	for !cond() {
		select {
		case <-deadline:
			return cond()
		case <-time.After(pollEvery):
		}
	}
	return true
}

// AssertEventually fails the test if cond stays false for timeout
func AssertEventually(t *testing.T, timeout time.Duration, cond func() bool, what string) {
	t.Helper()
	if !WaitForCondition(timeout, cond) {
		t.Fatalf("%s: still false after %v", what, timeout)
	}
}
