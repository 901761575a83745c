package lock

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Ning0612/Comicshelf/internal/domain"
)

// DefaultStaleTimeout bounds how long a lock written by another host is honoured
const DefaultStaleTimeout = 30 * time.Minute

// Info describes the lock holder
type Info struct {
	PID       int       `json:"pid"`
	Hostname  string    `json:"hostname"`
	StartTime time.Time `json:"start_time"`
	Owner     string    `json:"owner,omitempty"`
}

// FileLock is a lock file guarding one library directory against
// concurrent sync passes, including passes from other processes.
type FileLock struct {
	path         string
	staleTimeout time.Duration
	held         *Info
}

// New creates a lock at path, creating its directory if needed
func New(path string) (*FileLock, error) {
	if path == "" {
		return nil, fmt.Errorf("lock path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}
	return &FileLock{path: path, staleTimeout: DefaultStaleTimeout}, nil
}

// Path returns the lock file location
func (l *FileLock) Path() string {
	return l.path
}

// SetStaleTimeout sets the cross-host staleness timeout
func (l *FileLock) SetStaleTimeout(d time.Duration) {
	l.staleTimeout = d
}

// Acquire takes the lock for owner. Acquiring a lock this instance
// already holds is a no-op. A live holder yields a *Error wrapping
// domain.ErrSyncInProgress.
func (l *FileLock) Acquire(owner string) error {
	if l.held != nil {
		if existing, err := l.read(); err == nil && l.ownedBy(existing) {
			return nil
		}
		l.held = nil
	}

	if existing, err := l.read(); err == nil {
		if !l.isStale(existing) {
			return &Error{Holder: existing, Reason: "lock is held by another process"}
		}
		if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove stale lock: %w", err)
		}
	}

	hostname, _ := os.Hostname()
	info := &Info{
		PID:       os.Getpid(),
		Hostname:  hostname,
		StartTime: time.Now(),
		Owner:     owner,
	}

	// O_EXCL makes creation atomic across processes
	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if os.IsExist(err) {
			existing, readErr := l.read()
			if readErr != nil {
				return fmt.Errorf("lock acquisition race: %w", err)
			}
			return &Error{Holder: existing, Reason: "lock acquired by another process during acquisition"}
		}
		return fmt.Errorf("failed to create lock file: %w", err)
	}

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	encErr := enc.Encode(info)
	closeErr := file.Close()
	if encErr != nil || closeErr != nil {
		os.Remove(l.path)
		return fmt.Errorf("failed to write lock info: %w", errors.Join(encErr, closeErr))
	}

	l.held = info
	return nil
}

// Release drops the lock if this instance holds it
func (l *FileLock) Release() error {
	if l.held == nil {
		return nil
	}

	existing, err := l.read()
	if err != nil {
		l.held = nil
		return nil
	}

	if !l.ownedBy(existing) {
		l.held = nil
		return fmt.Errorf("lock was taken over by PID %d", existing.PID)
	}

	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove lock file: %w", err)
	}

	l.held = nil
	return nil
}

// IsLocked reports whether a live holder exists
func (l *FileLock) IsLocked() bool {
	info, err := l.read()
	if err != nil {
		return false
	}
	return !l.isStale(info)
}

// Holder returns the live holder's info
func (l *FileLock) Holder() (*Info, error) {
	info, err := l.read()
	if err != nil {
		return nil, err
	}
	if l.isStale(info) {
		return nil, fmt.Errorf("lock is stale")
	}
	return info, nil
}

// ForceRelease removes the lock file regardless of holder
func (l *FileLock) ForceRelease() error {
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to force remove lock: %w", err)
	}
	l.held = nil
	return nil
}

func (l *FileLock) read() (*Info, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, err
	}

	var info Info
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("invalid lock file format: %w", err)
	}
	return &info, nil
}

// isStale reports a dead holder on this host, or an expired holder on another.
// A live local process keeps its lock regardless of age.
func (l *FileLock) isStale(info *Info) bool {
	hostname, _ := os.Hostname()
	if info.Hostname == hostname {
		return !Alive(info.PID)
	}
	return time.Since(info.StartTime) > l.staleTimeout
}

func (l *FileLock) ownedBy(info *Info) bool {
	if l.held == nil {
		return false
	}
	hostname, _ := os.Hostname()
	return info.PID == os.Getpid() &&
		info.Hostname == hostname &&
		l.held.StartTime.Equal(info.StartTime)
}

// Error reports a lock held by someone else
type Error struct {
	Holder *Info
	Reason string
}

func (e *Error) Error() string {
	if e.Holder != nil {
		return fmt.Sprintf("cannot acquire lock: %s (held by PID %d on %s since %s, owner: %s)",
			e.Reason,
			e.Holder.PID,
			e.Holder.Hostname,
			e.Holder.StartTime.Format(time.RFC3339),
			e.Holder.Owner,
		)
	}
	return fmt.Sprintf("cannot acquire lock: %s", e.Reason)
}

// Unwrap lets callers match domain.ErrSyncInProgress
func (e *Error) Unwrap() error {
	return domain.ErrSyncInProgress
}

// IsLockError checks if an error is, or wraps, a lock Error
func IsLockError(err error) bool {
	var lockErr *Error
	return errors.As(err, &lockErr)
}
