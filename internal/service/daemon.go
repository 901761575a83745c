package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Ning0612/Comicshelf/internal/daemon"
	"github.com/Ning0612/Comicshelf/internal/domain"
	"github.com/Ning0612/Comicshelf/internal/progress"
	"github.com/Ning0612/Comicshelf/internal/scheduler"
	"github.com/Ning0612/Comicshelf/internal/state"
)

// LastSuccessReader looks up the most recent successful pass
type LastSuccessReader interface {
	LastSuccess(provider string) (*state.Record, error)
}

// DaemonService repeats a reconciler pass on a fixed interval
type DaemonService struct {
	mu         sync.RWMutex
	reconciler *Reconciler
	scheduler  scheduler.Scheduler
	pidFile    *daemon.PIDFile
	history    LastSuccessReader
	reporter   progress.Reporter
	onOutcome  func(domain.SyncOutcome)
	last       *domain.SyncOutcome
}

// DaemonStatus represents the current daemon status
type DaemonStatus struct {
	Running        bool
	SchedulerStats *scheduler.Status
	LastOutcome    *domain.SyncOutcome
	LastSuccess    *state.Record
}

// DaemonOption configures a DaemonService
type DaemonOption func(*DaemonService)

// WithPIDFile claims pidFile for as long as the daemon runs
func WithPIDFile(p *daemon.PIDFile) DaemonOption {
	return func(d *DaemonService) { d.pidFile = p }
}

// WithLastSuccess lets Status report the last successful pass
func WithLastSuccess(h LastSuccessReader) DaemonOption {
	return func(d *DaemonService) { d.history = h }
}

// WithReporter receives progress of every pass
func WithReporter(r progress.Reporter) DaemonOption {
	return func(d *DaemonService) { d.reporter = r }
}

// WithOutcomeHandler is called after every pass
func WithOutcomeHandler(fn func(domain.SyncOutcome)) DaemonOption {
	return func(d *DaemonService) { d.onOutcome = fn }
}

// NewDaemonService creates a new daemon service
func NewDaemonService(r *Reconciler, opts ...DaemonOption) (*DaemonService, error) {
	if r == nil {
		return nil, fmt.Errorf("reconciler cannot be nil")
	}
	d := &DaemonService{reconciler: r, reporter: progress.NullReporter{}}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Start runs a pass immediately and then every interval
func (d *DaemonService) Start(ctx context.Context, interval time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.scheduler != nil {
		return fmt.Errorf("daemon is already running")
	}

	sched, err := scheduler.NewIntervalScheduler(scheduler.Config{
		Interval:   interval,
		RunOnStart: true,
	}, scheduler.RunnerFunc(d.runOnce))
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	if d.pidFile != nil {
		if err := d.pidFile.Write(); err != nil {
			return err
		}
	}

	if err := sched.Start(ctx); err != nil {
		if d.pidFile != nil {
			d.pidFile.Remove()
		}
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	d.scheduler = sched
	return nil
}

// runOnce runs one pass for the scheduler. Partial passes count as failures.
func (d *DaemonService) runOnce(ctx context.Context) error {
	outcome := d.reconciler.Run(ctx, d.reporter)

	d.mu.Lock()
	d.last = &outcome
	handler := d.onOutcome
	d.mu.Unlock()

	if handler != nil {
		handler(outcome)
	}

	switch {
	case outcome.Phase == domain.PhaseFailed:
		return outcome.Err
	case len(outcome.Errors) > 0:
		return fmt.Errorf("%d of %d files failed", len(outcome.Errors), outcome.Scanned)
	}
	return nil
}

// Done is closed when the scheduling loop exits. It is nil before Start.
func (d *DaemonService) Done() <-chan struct{} {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.scheduler == nil {
		return nil
	}
	return d.scheduler.Done()
}

// Stop stops the daemon after the running pass finishes
func (d *DaemonService) Stop() error {
	d.mu.Lock()
	sched := d.scheduler
	d.scheduler = nil
	d.mu.Unlock()

	if sched == nil {
		return fmt.Errorf("daemon is not running")
	}

	// the loop may already have exited on context cancellation
	var stopErr error
	select {
	case <-sched.Done():
	default:
		stopErr = sched.Stop()
	}

	if d.pidFile != nil {
		if err := d.pidFile.Remove(); err != nil && stopErr == nil {
			stopErr = err
		}
	}
	return stopErr
}

// Status returns the current daemon status
func (d *DaemonService) Status() *DaemonStatus {
	d.mu.RLock()
	defer d.mu.RUnlock()

	status := &DaemonStatus{
		Running:     d.scheduler != nil,
		LastOutcome: d.last,
	}
	if d.scheduler != nil {
		status.SchedulerStats = d.scheduler.Status()
		status.Running = status.SchedulerStats.Running
	}
	if d.history != nil {
		if rec, err := d.history.LastSuccess(string(d.reconciler.opts.Provider)); err == nil {
			status.LastSuccess = rec
		}
	}
	return status
}
