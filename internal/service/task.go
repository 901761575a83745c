package service

import (
	"context"

	"github.com/Ning0612/Comicshelf/internal/domain"
	"github.com/Ning0612/Comicshelf/internal/progress"
)

// updateBuffer is how many progress updates may queue before byte-level
// updates start being dropped
const updateBuffer = 64

// Task is a sync pass running in its own goroutine. Drain Updates until
// it is closed, then Wait for the outcome.
type Task struct {
	updates chan progress.Update
	done    chan struct{}
	cancel  context.CancelFunc
	outcome domain.SyncOutcome
}

// Start runs one pass in the background
func (r *Reconciler) Start(ctx context.Context) *Task {
	ctx, cancel := context.WithCancel(ctx)
	t := &Task{
		updates: make(chan progress.Update, updateBuffer),
		done:    make(chan struct{}),
		cancel:  cancel,
	}

	reporter := progress.NewCallbackReporter(func(u progress.Update) {
		if u.Stage == progress.StageTransfer {
			// byte counts are superseded by the next one; never block on them
			select {
			case t.updates <- u:
			default:
			}
			return
		}
		select {
		case t.updates <- u:
		case <-ctx.Done():
		}
	})

	go func() {
		defer close(t.done)
		defer close(t.updates)
		defer cancel()
		t.outcome = r.Run(ctx, reporter)
	}()
	return t
}

// Updates streams progress in processing order. It is closed when the pass ends.
func (t *Task) Updates() <-chan progress.Update {
	return t.updates
}

// Cancel asks the pass to stop; Wait still returns its outcome
func (t *Task) Cancel() {
	t.cancel()
}

// Done is closed when the pass has finished
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the pass ends and returns its outcome
func (t *Task) Wait() domain.SyncOutcome {
	<-t.done
	return t.outcome
}
