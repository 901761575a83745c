// Package scheduler repeats sync passes on a fixed interval.
package scheduler

import (
	"context"
	"time"
)

// Scheduler drives repeated passes until stopped or its context ends
type Scheduler interface {
	Start(ctx context.Context) error
	// Stop waits for a pass in flight before returning
	Stop() error
	Done() <-chan struct{}
	Status() *Status
}

// Status is a snapshot of pass counters. A pass counts as failed when
// the runner returns an error, including a partial pass.
type Status struct {
	Running        bool
	LastRunTime    time.Time
	NextRunTime    time.Time
	TotalRuns      int
	SuccessfulRuns int
	FailedRuns     int
	LastError      string
}

// Config sets the pass cadence
type Config struct {
	// Interval is measured from the end of one pass to the start of the next
	Interval time.Duration

	// RunOnStart runs the first pass immediately instead of after one interval
	RunOnStart bool
}

// SyncRunner runs one pass. The scheduler never calls it concurrently.
type SyncRunner interface {
	RunSync(ctx context.Context) error
}

// RunnerFunc lets a plain function serve as a SyncRunner
type RunnerFunc func(ctx context.Context) error

func (f RunnerFunc) RunSync(ctx context.Context) error { return f(ctx) }
