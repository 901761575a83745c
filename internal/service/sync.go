// Package service runs sync passes from a remote provider into the library.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/oauth2"

	"github.com/Ning0612/Comicshelf/internal/adapter"
	"github.com/Ning0612/Comicshelf/internal/config"
	"github.com/Ning0612/Comicshelf/internal/core/checksum"
	"github.com/Ning0612/Comicshelf/internal/core/diff"
	"github.com/Ning0612/Comicshelf/internal/domain"
	"github.com/Ning0612/Comicshelf/internal/lock"
	"github.com/Ning0612/Comicshelf/internal/logger"
	"github.com/Ning0612/Comicshelf/internal/metrics"
	"github.com/Ning0612/Comicshelf/internal/progress"
	"github.com/Ning0612/Comicshelf/internal/walker"
)

// DefaultDownloadTimeout bounds a single file download
const DefaultDownloadTimeout = 10 * time.Minute

// Options select what one pass syncs and how it treats failures
type Options struct {
	Provider        domain.ProviderType
	LibraryDir      string
	FolderID        string // empty means the provider root
	FolderName      string
	Recursive       bool
	Extensions      []string
	Ignore          []string // doublestar patterns matched against the remote path
	AbortOnError    bool
	ListTimeout     time.Duration
	DownloadTimeout time.Duration
}

// OptionsFromConfig combines the library and sync sections with a saved selection
func OptionsFromConfig(cfg *config.Config, provider domain.ProviderType, sel domain.SyncSelection) Options {
	return Options{
		Provider:        provider,
		LibraryDir:      cfg.Library.Dir,
		FolderID:        sel.FolderID,
		FolderName:      sel.FolderName,
		Recursive:       sel.Recursive,
		Extensions:      cfg.Sync.Extensions,
		Ignore:          cfg.Sync.Ignore,
		AbortOnError:    cfg.Sync.AbortOnError,
		ListTimeout:     cfg.Sync.ListTimeout,
		DownloadTimeout: cfg.Sync.DownloadTimeout,
	}
}

// HistoryRecorder stores the outcome of finished passes
type HistoryRecorder interface {
	SaveOutcome(o domain.SyncOutcome) error
}

// Reconciler downloads missing or changed remote archives into a flat
// library directory. It never deletes or modifies anything remotely.
type Reconciler struct {
	opts    Options
	creds   adapter.Credentials
	connect adapter.Connector
	lock    *lock.FileLock
	history HistoryRecorder
}

// ReconcilerOption configures a Reconciler
type ReconcilerOption func(*Reconciler)

// WithLock guards every pass with a library-scoped lock
func WithLock(l *lock.FileLock) ReconcilerOption {
	return func(r *Reconciler) { r.lock = l }
}

// WithHistory records every finished pass
func WithHistory(h HistoryRecorder) ReconcilerOption {
	return func(r *Reconciler) { r.history = h }
}

// NewReconciler validates opts and returns a reconciler
func NewReconciler(opts Options, creds adapter.Credentials, connect adapter.Connector, ropts ...ReconcilerOption) (*Reconciler, error) {
	if opts.LibraryDir == "" {
		return nil, fmt.Errorf("%w: library directory cannot be empty", domain.ErrConfigInvalid)
	}
	if len(opts.Extensions) == 0 {
		return nil, fmt.Errorf("%w: no extensions to sync", domain.ErrConfigInvalid)
	}
	if creds == nil || connect == nil {
		return nil, fmt.Errorf("credentials and connector are required")
	}
	for _, pattern := range opts.Ignore {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("%w: bad ignore pattern %q", domain.ErrConfigInvalid, pattern)
		}
	}
	if opts.DownloadTimeout <= 0 {
		opts.DownloadTimeout = DefaultDownloadTimeout
	}
	if opts.ListTimeout <= 0 {
		opts.ListTimeout = walker.DefaultListTimeout
	}

	r := &Reconciler{opts: opts, creds: creds, connect: connect}
	for _, opt := range ropts {
		opt(r)
	}
	return r, nil
}

// Options returns the options the reconciler runs with
func (r *Reconciler) Options() Options {
	return r.opts
}

// Run performs one pass and returns its outcome. The outcome's Phase is
// PhaseCompleted or PhaseFailed; Err is set for the latter.
func (r *Reconciler) Run(ctx context.Context, reporter progress.Reporter) (outcome domain.SyncOutcome) {
	if reporter == nil {
		reporter = progress.NullReporter{}
	}
	provider := string(r.opts.Provider)
	log := logger.Get().With("provider", provider)

	outcome = domain.SyncOutcome{
		Provider: provider,
		Folder:   r.folderLabel(),
		Started:  time.Now(),
	}
	defer func() { r.finish(log, &outcome) }()

	fail := func(err error) domain.SyncOutcome {
		outcome.Phase = domain.PhaseFailed
		outcome.Err = err
		return outcome
	}

	if r.lock != nil {
		if err := r.lock.Acquire(provider); err != nil {
			return fail(err)
		}
		defer func() {
			if err := r.lock.Release(); err != nil {
				log.Error("Failed to release library lock", "error", err)
			}
		}()
	}

	outcome.Phase = domain.PhaseAuthenticating
	p, err := r.authenticate(ctx)
	if err != nil {
		return fail(err)
	}
	outcome.Account = AccountLabel(ctx, p, r.opts.ListTimeout)
	log.Debug("Connected", "account", outcome.Account)

	outcome.Phase = domain.PhaseEnumerating
	files, err := walker.Collect(walker.IterMatchingFiles(ctx, p, r.opts.FolderID, r.opts.Recursive, r.opts.Extensions,
		walker.WithListTimeout(r.opts.ListTimeout)))
	if err != nil {
		return fail(fmt.Errorf("enumerate %s: %w", outcome.Folder, err))
	}
	outcome.Scanned = len(files)
	reporter.SetTotal(len(files))
	log.Info("Enumerated remote archives", "folder", outcome.Folder, "count", len(files))

	outcome.Phase = domain.PhaseDownloading
	for i, node := range files {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		processed := i + 1
		reporter.Item(processed, progress.StageChecking, node.Name, node.Size)

		downloaded, n, err := r.syncFile(ctx, p, node, processed, reporter)
		switch {
		case err == nil && downloaded:
			outcome.Downloaded++
			outcome.Bytes += n
			metrics.RecordSyncFile(provider, "downloaded")
			metrics.RecordSyncBytes(provider, n)
			reporter.Item(processed, progress.StageDownloaded, node.Name, n)
		case err == nil:
			outcome.Skipped++
			metrics.RecordSyncFile(provider, "skipped")
			reporter.Item(processed, progress.StageSkipped, node.Name, node.Size)
		default:
			metrics.RecordSyncFile(provider, "failed")
			reporter.Failed(processed, node.Name, err)
			if r.opts.AbortOnError || isFatal(ctx, err) {
				return fail(fmt.Errorf("%s: %w", node.Name, err))
			}
			log.Warn("Skipping file after error", "name", node.Name, "error", err)
			outcome.Errors = append(outcome.Errors, domain.ItemError{Name: node.Name, Err: err})
		}
	}

	outcome.Phase = domain.PhaseCompleted
	return outcome
}

func (r *Reconciler) folderLabel() string {
	switch {
	case r.opts.FolderName != "":
		return r.opts.FolderName
	case r.opts.FolderID != "":
		return r.opts.FolderID
	default:
		return "/"
	}
}

// authenticate obtains a token and connects. Credential failures are
// reported as AuthError so the caller can prompt for a new login.
func (r *Reconciler) authenticate(ctx context.Context) (adapter.Provider, error) {
	provider := string(r.opts.Provider)

	token, err := r.tokenSilent(ctx)
	if err != nil {
		var netErr *domain.NetworkError
		if domain.IsAuthError(err) || errors.As(err, &netErr) {
			return nil, err
		}
		return nil, &domain.AuthError{Provider: provider, Err: err}
	}
	if token == nil {
		return nil, &domain.AuthError{Provider: provider, Err: domain.ErrNotAuthenticated}
	}

	p, err := r.connect(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", provider, err)
	}
	return p, nil
}

// tokenSilent loads or refreshes the token within ListTimeout. A stalled
// refresh endpoint is a network timeout, not a credential problem.
func (r *Reconciler) tokenSilent(parent context.Context) (*oauth2.Token, error) {
	ctx, cancel := context.WithTimeout(parent, r.opts.ListTimeout)
	defer cancel()

	token, err := r.creds.TokenSilent(ctx)
	if err != nil && parent.Err() == nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, &domain.NetworkError{
			Op:  "refresh " + string(r.opts.Provider) + " token",
			Err: fmt.Errorf("%w after %s", domain.ErrTimeout, r.opts.ListTimeout),
		}
	}
	return token, err
}

// AccountLabel asks p who is signed in, falling back to
// DefaultAccountLabel when the lookup fails or outlives timeout
func AccountLabel(parent context.Context, p adapter.Provider, timeout time.Duration) string {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	labels := make(chan string, 1)
	go func() { labels <- p.AccountLabel(ctx) }()

	select {
	case label := <-labels:
		if label != "" && ctx.Err() == nil {
			return label
		}
	case <-ctx.Done():
	}
	logger.Get().Debug("Account lookup gave up", "timeout", timeout)
	return domain.DefaultAccountLabel
}

// expectedDigest picks the strongest content digest the listing carried.
// MD5 wins when both are present; an empty digest skips verification.
func expectedDigest(node domain.RemoteNode) (checksum.Algorithm, string) {
	if node.MD5 == "" && node.SHA1 != "" {
		return checksum.SHA1, node.SHA1
	}
	return checksum.MD5, node.MD5
}

// syncFile handles one remote file. It reports whether bytes were downloaded.
func (r *Reconciler) syncFile(ctx context.Context, p adapter.Provider, node domain.RemoteNode, processed int, reporter progress.Reporter) (bool, int64, error) {
	ignored, err := isIgnored(node.Path, r.opts.Ignore)
	if err != nil {
		return false, 0, err
	}
	if ignored {
		logger.Get().Debug("Ignored by pattern", "path", node.Path)
		return false, 0, nil
	}

	dest, err := Destination(r.opts.LibraryDir, node.Name)
	if err != nil {
		return false, 0, err
	}

	decision, reason := diff.Compare(node, diff.StatLocal(dest))
	if decision == diff.Skip {
		logger.Get().Debug("Up to date", "name", node.Name, "reason", reason)
		return false, 0, nil
	}

	reporter.Item(processed, progress.StageDownloading, node.Name, node.Size)
	logger.Get().Debug("Downloading", "name", node.Name, "reason", reason, "size", node.Size)

	n, err := r.download(ctx, p, node, dest, reporter)
	if err != nil {
		return false, 0, err
	}
	return true, n, nil
}

// download streams node into dest through a temp file in the same
// directory, so dest is either the old file or the complete new one.
func (r *Reconciler) download(parent context.Context, p adapter.Provider, node domain.RemoteNode, dest string, reporter progress.Reporter) (int64, error) {
	ctx, cancel := context.WithTimeout(parent, r.opts.DownloadTimeout)
	defer cancel()

	op := "download " + node.Name
	timeoutErr := func(err error) error {
		if parent.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			return &domain.NetworkError{Op: op, Err: fmt.Errorf("%w after %s", domain.ErrTimeout, r.opts.DownloadTimeout)}
		}
		return err
	}

	body, err := p.Download(ctx, node.ID)
	if err != nil {
		return 0, timeoutErr(err)
	}
	defer body.Close()

	verifier, err := checksum.NewVerifier(expectedDigest(node))
	if err != nil {
		return 0, err
	}

	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, fmt.Errorf("failed to create library directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(dest)+".*.part")
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			os.Remove(tmpPath)
		}
	}()

	reader := progress.NewReader(body, reporter)
	_, copyErr := io.Copy(io.MultiWriter(tmp, verifier), reader)
	closeErr := tmp.Close()
	if copyErr != nil {
		if ctx.Err() != nil {
			return 0, timeoutErr(ctx.Err())
		}
		return 0, &domain.NetworkError{Op: op, Err: copyErr}
	}
	if closeErr != nil {
		return 0, fmt.Errorf("failed to write %s: %w", dest, closeErr)
	}

	n := reader.N()
	if node.Size > 0 && n != node.Size {
		return 0, &domain.NetworkError{Op: op, Err: fmt.Errorf("%w: got %d of %d bytes", io.ErrUnexpectedEOF, n, node.Size)}
	}
	if err := verifier.Verify(); err != nil {
		return 0, fmt.Errorf("%s: %w", node.Name, err)
	}

	if err := os.Rename(tmpPath, dest); err != nil {
		return 0, fmt.Errorf("failed to move download into place: %w", err)
	}
	committed = true
	return n, nil
}

func (r *Reconciler) finish(log logger.Logger, outcome *domain.SyncOutcome) {
	outcome.Finished = time.Now()
	status := outcome.Status()
	duration := outcome.Finished.Sub(outcome.Started)

	metrics.RecordSyncRun(outcome.Provider, status, duration)

	if outcome.Phase == domain.PhaseFailed {
		log.Error("Sync failed", "folder", outcome.Folder, "error", outcome.Err)
	} else {
		log.Info("Sync completed",
			"folder", outcome.Folder,
			"scanned", outcome.Scanned,
			"downloaded", outcome.Downloaded,
			"skipped", outcome.Skipped,
			"errors", len(outcome.Errors),
			"bytes", outcome.Bytes,
			"duration", duration.Round(time.Millisecond),
		)
	}

	if r.history != nil {
		if err := r.history.SaveOutcome(*outcome); err != nil {
			log.Warn("Failed to record sync history", "error", err)
		}
	}
}

// Destination maps a remote name to its flat library path. Names that
// would escape the library or create subdirectories are rejected.
func Destination(libraryDir, name string) (string, error) {
	switch {
	case name == "", name == ".", name == "..",
		strings.ContainsAny(name, `/\`),
		strings.ContainsRune(name, 0):
		return "", fmt.Errorf("%w: %q", domain.ErrUnsafeName, name)
	}
	return filepath.Join(libraryDir, name), nil
}

func isIgnored(path string, patterns []string) (bool, error) {
	for _, pattern := range patterns {
		matched, err := doublestar.Match(pattern, path)
		if err != nil {
			return false, err
		}
		if matched {
			return true, nil
		}
	}
	return false, nil
}

// isFatal reports item errors that no later item can avoid
func isFatal(ctx context.Context, err error) bool {
	return ctx.Err() != nil || domain.IsAuthError(err)
}
