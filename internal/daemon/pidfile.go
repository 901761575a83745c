// Package daemon tracks the process running a scheduled sync.
package daemon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Ning0612/Comicshelf/internal/lock"
)

// ErrAlreadyRunning is returned by Write when a live process owns the file
var ErrAlreadyRunning = errors.New("scheduled sync already running")

// ErrNotRunning is returned when no PID file exists
var ErrNotRunning = errors.New("no scheduled sync running")

// PIDFile manages the process ID file of a scheduled sync
type PIDFile struct {
	path string
}

// NewPIDFile creates a new PID file manager
func NewPIDFile(path string) *PIDFile {
	return &PIDFile{path: path}
}

// PathFor returns the PID file of the scheduled sync for provider
func PathFor(stateDir, provider string) string {
	return filepath.Join(stateDir, "sync-"+provider+".pid")
}

// Path returns the file location
func (p *PIDFile) Path() string {
	return p.path
}

// Write records the current process, replacing a stale file
func (p *PIDFile) Write() error {
	if _, err := os.Stat(p.path); err == nil {
		if running, _ := p.IsRunning(); running {
			return fmt.Errorf("%w (PID file: %s)", ErrAlreadyRunning, p.path)
		}
		os.Remove(p.path)
	}

	if err := os.MkdirAll(filepath.Dir(p.path), 0755); err != nil {
		return fmt.Errorf("failed to create PID directory: %w", err)
	}
	content := fmt.Sprintf("%d\n", os.Getpid())
	if err := os.WriteFile(p.path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}
	return nil
}

// Read returns the recorded PID
func (p *PIDFile) Read() (int, error) {
	content, err := os.ReadFile(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, ErrNotRunning
		}
		return 0, fmt.Errorf("failed to read PID file: %w", err)
	}

	pidStr := strings.TrimSpace(string(content))
	pid, err := strconv.Atoi(pidStr)
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid PID in file: %q", pidStr)
	}
	return pid, nil
}

// Remove deletes the file; a missing file is not an error
func (p *PIDFile) Remove() error {
	if err := os.Remove(p.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove PID file: %w", err)
	}
	return nil
}

// IsRunning reports whether the recorded process is alive
func (p *PIDFile) IsRunning() (bool, error) {
	pid, err := p.Read()
	if err != nil {
		return false, err
	}
	return lock.Alive(pid), nil
}

// Kill asks the recorded process to stop
func (p *PIDFile) Kill() error {
	pid, err := p.Read()
	if err != nil {
		return err
	}
	if !lock.Alive(pid) {
		p.Remove()
		return ErrNotRunning
	}
	return lock.Terminate(pid)
}
