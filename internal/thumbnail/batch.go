package thumbnail

import (
	"context"
	"sync"

	"github.com/Ning0612/Comicshelf/internal/logger"
)

// Generator produces one thumbnail. *Cache implements it.
type Generator interface {
	GetOrCreate(ctx context.Context, archivePath string, size int) (*Result, error)
}

// Event reports one processed file of a batch. Exactly one of Result and
// Err is set.
type Event struct {
	BatchID uint64
	Path    string
	Result  *Result
	Err     error
	Done    int
	Total   int
}

// Batch is one background pass over a file list
type Batch struct {
	ID     uint64
	events chan Event
	cancel context.CancelFunc
	done   chan struct{}
}

// Events streams results in file order. It is closed when the batch
// finishes or is cancelled.
func (b *Batch) Events() <-chan Event {
	return b.events
}

// Cancel stops the batch after the file in progress
func (b *Batch) Cancel() {
	b.cancel()
}

// Wait blocks until the batch goroutine has exited
func (b *Batch) Wait() {
	<-b.done
}

// Batcher runs at most one current batch. Starting a new batch cancels
// the previous one.
type Batcher struct {
	gen Generator

	mu      sync.Mutex
	current *Batch
	seq     uint64
}

// NewBatcher creates a batcher over gen
func NewBatcher(gen Generator) *Batcher {
	return &Batcher{gen: gen}
}

// Start cancels any in-flight batch and begins thumbnailing files
func (b *Batcher) Start(ctx context.Context, files []string, size int) *Batch {
	b.mu.Lock()
	if b.current != nil {
		b.current.cancel()
	}
	b.seq++
	ctx, cancel := context.WithCancel(ctx)
	batch := &Batch{
		ID:     b.seq,
		events: make(chan Event),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	b.current = batch
	b.mu.Unlock()

	go batch.run(ctx, b.gen, append([]string(nil), files...), size)
	return batch
}

// IsCurrent reports whether id is the most recently started batch
func (b *Batcher) IsCurrent(id uint64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current != nil && b.current.ID == id
}

func (batch *Batch) run(ctx context.Context, gen Generator, files []string, size int) {
	defer close(batch.done)
	defer close(batch.events)
	defer batch.cancel()

	log := logger.Get().With("batch", batch.ID)
	log.Debug("thumbnail batch started", "files", len(files))

	for i, path := range files {
		if ctx.Err() != nil {
			log.Debug("thumbnail batch superseded", "done", i, "total", len(files))
			return
		}

		res, err := gen.GetOrCreate(ctx, path, size)
		ev := Event{BatchID: batch.ID, Path: path, Done: i + 1, Total: len(files)}
		if err != nil {
			ev.Err = err
			log.Debug("no thumbnail", "archive", path, "error", err)
		} else {
			ev.Result = res
		}

		select {
		case batch.events <- ev:
		case <-ctx.Done():
			return
		}
	}
	log.Debug("thumbnail batch finished", "total", len(files))
}
