package progress

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// Stage names the step a sync item is in
type Stage int

const (
	StageChecking Stage = iota
	StageDownloading
	StageTransfer
	StageDownloaded
	StageSkipped
	StageFailed
)

// String returns the verb used in status messages
func (s Stage) String() string {
	switch s {
	case StageChecking:
		return "checking"
	case StageDownloading, StageTransfer:
		return "downloading"
	case StageDownloaded:
		return "downloaded"
	case StageSkipped:
		return "skipped"
	case StageFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Update is one progress tick of a sync pass. Processed counts items
// started so far, so the first item reports 1.
type Update struct {
	Stage          Stage
	Processed      int
	Total          int
	Name           string
	Message        string
	CurrentBytes   int64
	CurrentTotal   int64
	BytesPerSecond float64
	Err            error
}

// Message formats the status line for an item, e.g. "3/10 checking Vol 03.cbz"
func Message(processed, total int, stage Stage, name string) string {
	return fmt.Sprintf("%d/%d %s %s", processed, total, stage, name)
}

// Reporter receives per-item sync progress
type Reporter interface {
	// SetTotal sets the number of items in the pass
	SetTotal(total int)
	// Item reports that item number processed (1-based) entered stage
	Item(processed int, stage Stage, name string, size int64)
	// Transferred reports bytes received so far for the current item
	Transferred(bytes int64)
	// Failed reports an isolated item failure
	Failed(processed int, name string, err error)
}

// Callback receives progress updates
type Callback func(update Update)

// CallbackReporter implements Reporter with a callback function.
// The callback runs outside the reporter's lock.
type CallbackReporter struct {
	callback Callback

	mu           sync.Mutex
	total        int
	processed    int
	currentName  string
	currentTotal int64
	startTime    time.Time
}

// NewCallbackReporter creates a new CallbackReporter
func NewCallbackReporter(callback Callback) *CallbackReporter {
	return &CallbackReporter{callback: callback}
}

// SetTotal sets the number of items in the pass
func (r *CallbackReporter) SetTotal(total int) {
	r.mu.Lock()
	r.total = total
	r.mu.Unlock()
}

// Item emits a status-line update for an item
func (r *CallbackReporter) Item(processed int, stage Stage, name string, size int64) {
	r.mu.Lock()
	r.processed = processed
	r.currentName = name
	if stage == StageDownloading {
		r.currentTotal = size
		r.startTime = time.Now()
	}
	update := Update{
		Stage:        stage,
		Processed:    processed,
		Total:        r.total,
		Name:         name,
		Message:      Message(processed, r.total, stage, name),
		CurrentTotal: size,
	}
	r.mu.Unlock()

	r.emit(update)
}

// Transferred emits a byte-level update for the current download
func (r *CallbackReporter) Transferred(bytes int64) {
	r.mu.Lock()
	var bps float64
	if elapsed := time.Since(r.startTime).Seconds(); elapsed > 0 {
		bps = float64(bytes) / elapsed
	}
	update := Update{
		Stage:          StageTransfer,
		Processed:      r.processed,
		Total:          r.total,
		Name:           r.currentName,
		Message:        Message(r.processed, r.total, StageDownloading, r.currentName),
		CurrentBytes:   bytes,
		CurrentTotal:   r.currentTotal,
		BytesPerSecond: bps,
	}
	r.mu.Unlock()

	r.emit(update)
}

// Failed emits an item failure
func (r *CallbackReporter) Failed(processed int, name string, err error) {
	r.mu.Lock()
	update := Update{
		Stage:     StageFailed,
		Processed: processed,
		Total:     r.total,
		Name:      name,
		Message:   Message(processed, r.total, StageFailed, name),
		Err:       err,
	}
	r.mu.Unlock()

	r.emit(update)
}

func (r *CallbackReporter) emit(u Update) {
	if r.callback != nil {
		r.callback(u)
	}
}

// Reader wraps an io.Reader and reports the running byte count
type Reader struct {
	reader      io.Reader
	reporter    Reporter
	transferred int64
}

// NewReader creates a new progress-tracking reader
func NewReader(r io.Reader, reporter Reporter) *Reader {
	return &Reader{reader: r, reporter: reporter}
}

// Read implements io.Reader
func (pr *Reader) Read(p []byte) (int, error) {
	n, err := pr.reader.Read(p)
	if n > 0 {
		pr.transferred += int64(n)
		if pr.reporter != nil {
			pr.reporter.Transferred(pr.transferred)
		}
	}
	return n, err
}

// N returns the number of bytes read so far
func (pr *Reader) N() int64 {
	return pr.transferred
}

// NullReporter is a no-op reporter
type NullReporter struct{}

func (NullReporter) SetTotal(total int)                                       {}
func (NullReporter) Item(processed int, stage Stage, name string, size int64) {}
func (NullReporter) Transferred(bytes int64)                                  {}
func (NullReporter) Failed(processed int, name string, err error)             {}

// FormatBytes formats bytes into human-readable string
func FormatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/GB)
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/MB)
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/KB)
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

// FormatSpeed formats bytes per second into human-readable string
func FormatSpeed(bytesPerSecond float64) string {
	return FormatBytes(int64(bytesPerSecond)) + "/s"
}

// Bar renders a fixed-width bar for done out of total, e.g. "[==>  ]  50.0%"
func Bar(done, total int64, width int) string {
	if total <= 0 || width <= 0 {
		return ""
	}

	ratio := float64(done) / float64(total)
	if ratio > 1 {
		ratio = 1
	}
	filled := int(ratio * float64(width))

	var b strings.Builder
	b.Grow(width)
	for i := 0; i < width; i++ {
		switch {
		case i < filled:
			b.WriteByte('=')
		case i == filled:
			b.WriteByte('>')
		default:
			b.WriteByte(' ')
		}
	}

	return fmt.Sprintf("[%s] %5.1f%%", b.String(), ratio*100)
}
