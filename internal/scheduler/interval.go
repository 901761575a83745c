package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Ning0612/Comicshelf/internal/logger"
)

var (
	errAlreadyStarted = errors.New("scheduler is already running")
	errRestart        = errors.New("scheduler cannot be restarted after stop")
	errNotStarted     = errors.New("scheduler is not running")
)

type loopState int

const (
	stateIdle loopState = iota
	stateRunning
	stateStopped
)

// IntervalScheduler runs passes one at a time. The wait for the next
// pass starts when the previous one returns, so a slow pass delays the
// schedule instead of stacking up behind it.
type IntervalScheduler struct {
	interval   time.Duration
	runOnStart bool
	runner     SyncRunner

	mu     sync.Mutex
	state  loopState
	status Status

	quit     chan struct{}
	quitOnce sync.Once
	done     chan struct{}
}

// NewIntervalScheduler validates config and returns an idle scheduler
func NewIntervalScheduler(config Config, runner SyncRunner) (*IntervalScheduler, error) {
	switch {
	case config.Interval <= 0:
		return nil, fmt.Errorf("interval must be positive, got %v", config.Interval)
	case runner == nil:
		return nil, errors.New("sync runner cannot be nil")
	}
	return &IntervalScheduler{
		interval:   config.Interval,
		runOnStart: config.RunOnStart,
		runner:     runner,
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
	}, nil
}

// Start launches the loop. A scheduler runs at most once.
func (s *IntervalScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case stateRunning:
		return errAlreadyStarted
	case stateStopped:
		return errRestart
	}

	first := s.interval
	if s.runOnStart {
		first = 0
	}
	s.state = stateRunning
	s.status.Running = true
	s.status.NextRunTime = time.Now().Add(first)

	go s.loop(ctx, first)
	return nil
}

func (s *IntervalScheduler) loop(ctx context.Context, wait time.Duration) {
	defer func() {
		s.mu.Lock()
		s.state = stateStopped
		s.status.Running = false
		s.mu.Unlock()
		close(s.done)
	}()

	timer := time.NewTimer(wait)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.quit:
			return
		case <-timer.C:
		}

		if ctx.Err() != nil {
			return
		}
		s.pass(ctx)
		timer.Reset(s.interval)
	}
}

// pass runs the runner once and folds the result into status
func (s *IntervalScheduler) pass(ctx context.Context) {
	started := time.Now()
	s.mu.Lock()
	s.status.LastRunTime = started
	s.status.TotalRuns++
	s.mu.Unlock()

	err := s.runner.RunSync(ctx)
	next := time.Now().Add(s.interval)

	s.mu.Lock()
	s.status.NextRunTime = next
	if err != nil {
		s.status.FailedRuns++
		s.status.LastError = err.Error()
	} else {
		s.status.SuccessfulRuns++
		s.status.LastError = ""
	}
	s.mu.Unlock()

	log := logger.With("took", time.Since(started).Round(time.Millisecond), "next_run", next.Format(time.RFC3339))
	if err != nil {
		log.Warn("Scheduled sync failed", "error", err)
		return
	}
	log.Debug("Scheduled sync finished")
}

// Stop ends the loop, waiting for a pass in flight to return
func (s *IntervalScheduler) Stop() error {
	s.mu.Lock()
	state := s.state
	s.mu.Unlock()
	switch state {
	case stateIdle:
		return errNotStarted
	case stateStopped:
		<-s.done
		return nil
	}

	s.quitOnce.Do(func() { close(s.quit) })
	<-s.done
	return nil
}

// Done is closed once the loop has exited, by Stop or by context cancellation
func (s *IntervalScheduler) Done() <-chan struct{} {
	return s.done
}

// Status returns a snapshot of the counters
func (s *IntervalScheduler) Status() *Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.status
	return &snapshot
}

var _ Scheduler = (*IntervalScheduler)(nil)
