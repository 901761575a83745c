package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"github.com/Ning0612/Comicshelf/internal/adapter"
	"github.com/Ning0612/Comicshelf/internal/core/checksum"
	"github.com/Ning0612/Comicshelf/internal/domain"
	"github.com/Ning0612/Comicshelf/internal/lock"
	"github.com/Ning0612/Comicshelf/internal/progress"
	"github.com/Ning0612/Comicshelf/internal/testutil"
)

type fakeCreds struct {
	token *oauth2.Token
	err   error
}

func (c fakeCreds) TokenSilent(ctx context.Context) (*oauth2.Token, error) { return c.token, c.err }
func (c fakeCreds) Login(ctx context.Context) (*oauth2.Token, error)       { return c.token, c.err }

var validCreds = fakeCreds{token: &oauth2.Token{AccessToken: "t"}}

func connectTo(p adapter.Provider) adapter.Connector {
	return func(ctx context.Context, token *oauth2.Token) (adapter.Provider, error) {
		return p, nil
	}
}

type recordingHistory struct {
	mu       sync.Mutex
	outcomes []domain.SyncOutcome
}

func (h *recordingHistory) SaveOutcome(o domain.SyncOutcome) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.outcomes = append(h.outcomes, o)
	return nil
}

func testOptions(libraryDir string) Options {
	return Options{
		Provider:   domain.ProviderLocal,
		LibraryDir: libraryDir,
		Recursive:  true,
		Extensions: []string{".cbr", ".cbz"},
	}
}

func newTestReconciler(t *testing.T, opts Options, p adapter.Provider, ropts ...ReconcilerOption) *Reconciler {
	t.Helper()
	r, err := NewReconciler(opts, validCreds, connectTo(p), ropts...)
	if err != nil {
		t.Fatalf("NewReconciler() error = %v", err)
	}
	return r
}

func TestRun_SkipBySize(t *testing.T) {
	remote := bytes.Repeat([]byte("r"), 100)

	tests := []struct {
		name          string
		localSize     int
		wantDownloads int
	}{
		{"same size is kept", 100, 0},
		{"different size is replaced", 50, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lib := t.TempDir()
			testutil.CreateTestFile(t, lib, "a.cbz", bytes.Repeat([]byte("l"), tt.localSize))

			p := testutil.NewFakeProvider()
			p.AddFile("root", "a", "a.cbz", remote)

			outcome := newTestReconciler(t, testOptions(lib), p).Run(context.Background(), nil)
			if outcome.Phase != domain.PhaseCompleted {
				t.Fatalf("Phase = %s, err = %v", outcome.Phase, outcome.Err)
			}
			if outcome.Downloaded != tt.wantDownloads || len(p.Downloads()) != tt.wantDownloads {
				t.Errorf("Downloaded = %d, provider downloads = %v, want %d", outcome.Downloaded, p.Downloads(), tt.wantDownloads)
			}

			data, _ := os.ReadFile(filepath.Join(lib, "a.cbz"))
			if tt.wantDownloads == 1 && !bytes.Equal(data, remote) {
				t.Error("library file was not overwritten with remote bytes")
			}
		})
	}
}

func TestRun_UnknownRemoteSizeTrustsLocal(t *testing.T) {
	lib := t.TempDir()
	testutil.CreateTestFile(t, lib, "a.cbz", []byte("local"))

	p := testutil.NewFakeProvider()
	p.AddNode("root", domain.RemoteNode{ID: "a", Name: "a.cbz"}, []byte("remote bytes"))

	outcome := newTestReconciler(t, testOptions(lib), p).Run(context.Background(), nil)
	if outcome.Downloaded != 0 || outcome.Skipped != 1 {
		t.Errorf("outcome = %+v, want one skip", outcome)
	}
}

func TestRun_RecursiveEndToEnd(t *testing.T) {
	lib := t.TempDir()
	comic := bytes.Repeat([]byte{0x42}, 500000)

	p := testutil.NewFakeProvider()
	p.AddFolder("root", "batman", "Batman")
	p.AddFile("batman", "001", "001.cbz", comic)
	p.AddFile("batman", "002", "002.txt", []byte("notes"))

	r := newTestReconciler(t, testOptions(lib), p)
	outcome := r.Run(context.Background(), nil)

	if outcome.Phase != domain.PhaseCompleted {
		t.Fatalf("Phase = %s, err = %v", outcome.Phase, outcome.Err)
	}
	if outcome.Scanned != 1 || outcome.Downloaded != 1 || outcome.Bytes != 500000 {
		t.Errorf("outcome = %+v", outcome)
	}
	if got := p.Downloads(); !reflect.DeepEqual(got, []string{"001"}) {
		t.Errorf("downloads = %v, want [001]", got)
	}

	data, err := os.ReadFile(filepath.Join(lib, "001.cbz"))
	if err != nil || !bytes.Equal(data, comic) {
		t.Fatalf("library file = %d bytes, %v", len(data), err)
	}
	if _, err := os.Stat(filepath.Join(lib, "002.txt")); !os.IsNotExist(err) {
		t.Error("non-comic file should not be downloaded")
	}
	if _, err := os.Stat(filepath.Join(lib, "Batman")); !os.IsNotExist(err) {
		t.Error("remote folders must not be recreated in the flat library")
	}

	// a second pass with no remote changes downloads nothing
	p.ResetCounters()
	again := r.Run(context.Background(), nil)
	if again.Downloaded != 0 || again.Skipped != 1 || len(p.Downloads()) != 0 {
		t.Errorf("second pass = %+v, downloads %v", again, p.Downloads())
	}
}

func TestRun_NonRecursive(t *testing.T) {
	lib := t.TempDir()
	p := testutil.NewFakeProvider()
	p.AddFolder("root", "A", "folderA")
	p.AddFile("A", "x", "x.cbz", []byte("x"))
	p.AddFile("root", "y", "y.cbr", []byte("y"))

	opts := testOptions(lib)
	opts.Recursive = false
	outcome := newTestReconciler(t, opts, p).Run(context.Background(), nil)

	if outcome.Downloaded != 1 {
		t.Fatalf("outcome = %+v", outcome)
	}
	if got := p.Downloads(); !reflect.DeepEqual(got, []string{"y"}) {
		t.Errorf("downloads = %v, want [y]", got)
	}
}

func TestRun_AuthFailure(t *testing.T) {
	tests := []struct {
		name  string
		creds fakeCreds
	}{
		{"no token stored", fakeCreds{err: domain.ErrNotAuthenticated}},
		{"nil token", fakeCreds{}},
		{"already an auth error", fakeCreds{err: &domain.AuthError{Provider: "gdrive", Err: errors.New("revoked")}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testutil.NewFakeProvider()
			history := &recordingHistory{}
			r, err := NewReconciler(testOptions(t.TempDir()), tt.creds, connectTo(p), WithHistory(history))
			if err != nil {
				t.Fatal(err)
			}

			outcome := r.Run(context.Background(), nil)
			if outcome.Phase != domain.PhaseFailed || !domain.IsAuthError(outcome.Err) {
				t.Errorf("outcome = %s, %v, want auth failure", outcome.Phase, outcome.Err)
			}
			if len(p.ListCalls()) != 0 {
				t.Error("provider should not be listed without a credential")
			}
			if len(history.outcomes) != 1 || history.outcomes[0].Status() != "failed" {
				t.Errorf("history = %+v", history.outcomes)
			}
		})
	}
}

func TestRun_ConnectFailure(t *testing.T) {
	connectErr := &domain.AuthError{Provider: "s3", Err: errors.New("no credentials")}
	r, err := NewReconciler(testOptions(t.TempDir()), validCreds,
		func(ctx context.Context, token *oauth2.Token) (adapter.Provider, error) { return nil, connectErr })
	if err != nil {
		t.Fatal(err)
	}

	outcome := r.Run(context.Background(), nil)
	if outcome.Phase != domain.PhaseFailed || !errors.Is(outcome.Err, connectErr) {
		t.Errorf("outcome = %s, %v", outcome.Phase, outcome.Err)
	}
}

func TestRun_EnumerationFailure(t *testing.T) {
	lib := t.TempDir()
	p := testutil.NewFakeProvider()
	p.AddFile("root", "a", "a.cbz", []byte("a"))
	p.AddFolder("root", "f", "Broken")
	p.FailList("f", &domain.NetworkError{Op: "list", Err: errors.New("HTTP 500")})

	outcome := newTestReconciler(t, testOptions(lib), p).Run(context.Background(), nil)
	if outcome.Phase != domain.PhaseFailed {
		t.Fatalf("Phase = %s, want failed", outcome.Phase)
	}
	var netErr *domain.NetworkError
	if !errors.As(outcome.Err, &netErr) {
		t.Errorf("Err = %v, want NetworkError", outcome.Err)
	}
	if len(p.Downloads()) != 0 {
		t.Error("nothing should be downloaded when enumeration fails")
	}
}

func TestRun_ItemFailurePolicy(t *testing.T) {
	setup := func() *testutil.FakeProvider {
		p := testutil.NewFakeProvider()
		p.AddFile("root", "a", "a.cbz", []byte("aaa"))
		p.AddFile("root", "b", "b.cbz", []byte("bbb"))
		p.AddFile("root", "c", "c.cbz", []byte("ccc"))
		p.FailDownload("b", &domain.NetworkError{Op: "download b", Err: errors.New("reset")})
		return p
	}

	t.Run("isolate", func(t *testing.T) {
		lib := t.TempDir()
		p := setup()
		outcome := newTestReconciler(t, testOptions(lib), p).Run(context.Background(), nil)

		if outcome.Phase != domain.PhaseCompleted || outcome.Status() != "partial" {
			t.Fatalf("outcome = %s/%s, err %v", outcome.Phase, outcome.Status(), outcome.Err)
		}
		if outcome.Downloaded != 2 || len(outcome.Errors) != 1 || outcome.Errors[0].Name != "b.cbz" {
			t.Errorf("outcome = %+v", outcome)
		}
		if _, err := os.Stat(filepath.Join(lib, "c.cbz")); err != nil {
			t.Error("files after the failure should still be downloaded")
		}
	})

	t.Run("abort", func(t *testing.T) {
		lib := t.TempDir()
		p := setup()
		opts := testOptions(lib)
		opts.AbortOnError = true
		outcome := newTestReconciler(t, opts, p).Run(context.Background(), nil)

		if outcome.Phase != domain.PhaseFailed || !strings.Contains(outcome.Err.Error(), "b.cbz") {
			t.Fatalf("outcome = %s, %v", outcome.Phase, outcome.Err)
		}
		if outcome.Downloaded != 1 {
			t.Errorf("Downloaded = %d, want 1", outcome.Downloaded)
		}
		if _, err := os.Stat(filepath.Join(lib, "a.cbz")); err != nil {
			t.Error("files written before the failure stay in place")
		}
		if _, err := os.Stat(filepath.Join(lib, "c.cbz")); !os.IsNotExist(err) {
			t.Error("no file after the failure should be downloaded")
		}
	})
}

func TestRun_AuthErrorDuringDownloadAborts(t *testing.T) {
	p := testutil.NewFakeProvider()
	p.AddFile("root", "a", "a.cbz", []byte("a"))
	p.AddFile("root", "b", "b.cbz", []byte("b"))
	p.FailDownload("a", &domain.AuthError{Provider: "gdrive", Err: domain.ErrNotAuthenticated})

	outcome := newTestReconciler(t, testOptions(t.TempDir()), p).Run(context.Background(), nil)
	if outcome.Phase != domain.PhaseFailed || !domain.IsAuthError(outcome.Err) {
		t.Errorf("outcome = %s, %v", outcome.Phase, outcome.Err)
	}
	if len(p.Downloads()) != 1 {
		t.Errorf("downloads = %v, want only the first", p.Downloads())
	}
}

func TestRun_IntegrityChecks(t *testing.T) {
	tests := []struct {
		name    string
		node    domain.RemoteNode
		data    []byte
		wantErr error
	}{
		{
			name:    "md5 mismatch",
			node:    domain.RemoteNode{ID: "a", Name: "a.cbz", Size: 4, MD5: "00000000000000000000000000000000"},
			data:    []byte("data"),
			wantErr: domain.ErrChecksumMismatch,
		},
		{
			name:    "sha1 mismatch",
			node:    domain.RemoteNode{ID: "a", Name: "a.cbz", Size: 4, SHA1: "0000000000000000000000000000000000000000"},
			data:    []byte("data"),
			wantErr: domain.ErrChecksumMismatch,
		},
		{
			name:    "short body",
			node:    domain.RemoteNode{ID: "a", Name: "a.cbz", Size: 10},
			data:    []byte("data"),
			wantErr: io.ErrUnexpectedEOF,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lib := t.TempDir()
			p := testutil.NewFakeProvider()
			p.AddNode("root", tt.node, tt.data)

			outcome := newTestReconciler(t, testOptions(lib), p).Run(context.Background(), nil)
			if len(outcome.Errors) != 1 || !errors.Is(outcome.Errors[0].Err, tt.wantErr) {
				t.Fatalf("Errors = %v, want %v", outcome.Errors, tt.wantErr)
			}

			entries, _ := os.ReadDir(lib)
			if len(entries) != 0 {
				t.Errorf("library should be untouched, found %v", entries)
			}
		})
	}
}

func TestRun_VerifiesSHA1WhenNoMD5(t *testing.T) {
	lib := t.TempDir()
	p := testutil.NewFakeProvider()
	p.AddNode("root", domain.RemoteNode{ID: "a", Name: "a.cbz", Size: 4, SHA1: "A17C9AAA61E80A1BF71D0D850AF4E5BAA9800BBD"}, []byte("data"))

	outcome := newTestReconciler(t, testOptions(lib), p).Run(context.Background(), nil)
	if outcome.Downloaded != 1 || len(outcome.Errors) != 0 {
		t.Fatalf("outcome = %+v", outcome)
	}
}

func TestExpectedDigest(t *testing.T) {
	tests := []struct {
		name     string
		node     domain.RemoteNode
		wantAlgo checksum.Algorithm
		want     string
	}{
		{"md5 only", domain.RemoteNode{MD5: "m"}, checksum.MD5, "m"},
		{"sha1 only", domain.RemoteNode{SHA1: "s"}, checksum.SHA1, "s"},
		{"md5 preferred", domain.RemoteNode{MD5: "m", SHA1: "s"}, checksum.MD5, "m"},
		{"none", domain.RemoteNode{}, checksum.MD5, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			algo, digest := expectedDigest(tt.node)
			if algo != tt.wantAlgo || digest != tt.want {
				t.Errorf("expectedDigest() = %s %q, want %s %q", algo, digest, tt.wantAlgo, tt.want)
			}
		})
	}
}

func TestRun_UnsafeAndIgnoredNames(t *testing.T) {
	lib := t.TempDir()
	p := testutil.NewFakeProvider()
	p.AddFile("root", "evil", `..\evil.cbz`, []byte("x"))
	p.AddFolder("root", "extras", "extras")
	p.AddFile("extras", "e", "bonus.cbz", []byte("e"))
	p.AddFile("root", "ok", "ok.cbz", []byte("ok"))

	opts := testOptions(lib)
	opts.Ignore = []string{"extras/**"}
	outcome := newTestReconciler(t, opts, p).Run(context.Background(), nil)

	if outcome.Phase != domain.PhaseCompleted {
		t.Fatalf("Phase = %s, err = %v", outcome.Phase, outcome.Err)
	}
	if len(outcome.Errors) != 1 || !errors.Is(outcome.Errors[0].Err, domain.ErrUnsafeName) {
		t.Errorf("Errors = %v, want one ErrUnsafeName", outcome.Errors)
	}
	if outcome.Downloaded != 1 || outcome.Skipped != 1 {
		t.Errorf("outcome = %+v", outcome)
	}
	if got := p.Downloads(); !reflect.DeepEqual(got, []string{"ok"}) {
		t.Errorf("downloads = %v, want [ok]", got)
	}
}

// slowProvider never finishes a download until its context ends
type slowProvider struct {
	*testutil.FakeProvider
}

type blockingReader struct {
	ctx context.Context
}

func (r blockingReader) Read(p []byte) (int, error) {
	<-r.ctx.Done()
	return 0, r.ctx.Err()
}

func (s slowProvider) Download(ctx context.Context, id string) (io.ReadCloser, error) {
	return io.NopCloser(blockingReader{ctx: ctx}), nil
}

func TestRun_DownloadTimeout(t *testing.T) {
	lib := t.TempDir()
	fake := testutil.NewFakeProvider()
	fake.AddFile("root", "a", "a.cbz", []byte("a"))
	fake.AddFile("root", "b", "b.cbz", []byte("b"))

	opts := testOptions(lib)
	opts.DownloadTimeout = 30 * time.Millisecond
	outcome := newTestReconciler(t, opts, slowProvider{fake}).Run(context.Background(), nil)

	if outcome.Phase != domain.PhaseCompleted {
		t.Fatalf("a timeout is an item error, got %s: %v", outcome.Phase, outcome.Err)
	}
	if len(outcome.Errors) != 2 {
		t.Fatalf("Errors = %v, want 2", outcome.Errors)
	}
	for _, e := range outcome.Errors {
		if !errors.Is(e.Err, domain.ErrTimeout) {
			t.Errorf("%s: error = %v, want ErrTimeout", e.Name, e.Err)
		}
	}
}

func TestRun_Cancelled(t *testing.T) {
	fake := testutil.NewFakeProvider()
	fake.AddFile("root", "a", "a.cbz", []byte("a"))

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	outcome := newTestReconciler(t, testOptions(t.TempDir()), slowProvider{fake}).Run(ctx, nil)
	if outcome.Phase != domain.PhaseFailed || !errors.Is(outcome.Err, context.Canceled) {
		t.Errorf("outcome = %s, %v, want cancelled failure", outcome.Phase, outcome.Err)
	}
}

// stalledLabelProvider hangs on the account lookup until its context ends
type stalledLabelProvider struct {
	*testutil.FakeProvider
}

func (s stalledLabelProvider) AccountLabel(ctx context.Context) string {
	<-ctx.Done()
	return ""
}

// stalledCreds hangs on token refresh until its context ends
type stalledCreds struct{}

func (stalledCreds) TokenSilent(ctx context.Context) (*oauth2.Token, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}
func (stalledCreds) Login(ctx context.Context) (*oauth2.Token, error) { return nil, ctx.Err() }

func runWithin(t *testing.T, limit time.Duration, r *Reconciler) domain.SyncOutcome {
	t.Helper()
	done := make(chan domain.SyncOutcome, 1)
	go func() { done <- r.Run(context.Background(), nil) }()
	select {
	case outcome := <-done:
		return outcome
	case <-time.After(limit):
		t.Fatalf("Run() still blocked after %v", limit)
		return domain.SyncOutcome{}
	}
}

func TestRun_StalledAccountLookupFallsBack(t *testing.T) {
	lib := t.TempDir()
	fake := testutil.NewFakeProvider()
	fake.AddFile("root", "a", "a.cbz", []byte("a"))

	opts := testOptions(lib)
	opts.ListTimeout = 50 * time.Millisecond
	opts.DownloadTimeout = 50 * time.Millisecond
	outcome := runWithin(t, 3*time.Second, newTestReconciler(t, opts, stalledLabelProvider{fake}))

	if outcome.Phase != domain.PhaseCompleted || outcome.Downloaded != 1 {
		t.Fatalf("outcome = %s, downloaded %d, err %v", outcome.Phase, outcome.Downloaded, outcome.Err)
	}
	if outcome.Account != domain.DefaultAccountLabel {
		t.Errorf("Account = %q, want %q", outcome.Account, domain.DefaultAccountLabel)
	}
}

func TestRun_StalledTokenRefreshTimesOut(t *testing.T) {
	opts := testOptions(t.TempDir())
	opts.ListTimeout = 50 * time.Millisecond
	r, err := NewReconciler(opts, stalledCreds{}, connectTo(testutil.NewFakeProvider()))
	if err != nil {
		t.Fatal(err)
	}

	outcome := runWithin(t, 3*time.Second, r)
	if outcome.Phase != domain.PhaseFailed || !errors.Is(outcome.Err, domain.ErrTimeout) {
		t.Fatalf("outcome = %s, %v, want ErrTimeout", outcome.Phase, outcome.Err)
	}
	if domain.IsAuthError(outcome.Err) {
		t.Error("a refresh timeout should not ask for a new login")
	}
}

func TestRun_ProgressMessages(t *testing.T) {
	lib := t.TempDir()
	testutil.CreateTestFile(t, lib, "b.cbz", []byte("bb"))

	p := testutil.NewFakeProvider()
	p.AddFile("root", "a", "a.cbz", []byte("aa"))
	p.AddFile("root", "b", "b.cbz", []byte("bb"))

	var mu sync.Mutex
	var messages []string
	reporter := progress.NewCallbackReporter(func(u progress.Update) {
		if u.Stage == progress.StageTransfer {
			return
		}
		mu.Lock()
		messages = append(messages, u.Message)
		mu.Unlock()
	})

	newTestReconciler(t, testOptions(lib), p).Run(context.Background(), reporter)

	want := []string{
		"1/2 checking a.cbz",
		"1/2 downloading a.cbz",
		"1/2 downloaded a.cbz",
		"2/2 checking b.cbz",
		"2/2 skipped b.cbz",
	}
	if !reflect.DeepEqual(messages, want) {
		t.Errorf("messages = %q\nwant %q", messages, want)
	}
}

func TestRun_LockHeldElsewhere(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "library.lock")
	other, _ := lock.New(lockPath)
	if err := other.Acquire("other"); err != nil {
		t.Fatal(err)
	}
	defer other.Release()

	mine, _ := lock.New(lockPath)
	p := testutil.NewFakeProvider()
	outcome := newTestReconciler(t, testOptions(t.TempDir()), p, WithLock(mine)).Run(context.Background(), nil)

	if outcome.Phase != domain.PhaseFailed || !errors.Is(outcome.Err, domain.ErrSyncInProgress) {
		t.Errorf("outcome = %s, %v, want ErrSyncInProgress", outcome.Phase, outcome.Err)
	}
	if len(p.ListCalls()) != 0 {
		t.Error("provider must not be touched without the lock")
	}
}

func TestRun_ReleasesLockAndRecordsHistory(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "library.lock")
	l, _ := lock.New(lockPath)
	history := &recordingHistory{}

	p := testutil.NewFakeProvider()
	p.AddFile("root", "a", "a.cbz", []byte("a"))
	opts := testOptions(t.TempDir())
	opts.FolderName = "Comics"

	outcome := newTestReconciler(t, opts, p, WithLock(l), WithHistory(history)).Run(context.Background(), nil)
	if outcome.Phase != domain.PhaseCompleted {
		t.Fatal(outcome.Err)
	}
	if _, err := os.Stat(lockPath); !os.IsNotExist(err) {
		t.Error("lock file should be removed after the pass")
	}
	if len(history.outcomes) != 1 {
		t.Fatalf("history = %v", history.outcomes)
	}
	h := history.outcomes[0]
	if h.Folder != "Comics" || h.Account != "Test User <test@example.com>" || h.Finished.IsZero() || h.Status() != "success" {
		t.Errorf("recorded outcome = %+v", h)
	}
}

func TestNewReconciler_Validation(t *testing.T) {
	p := testutil.NewFakeProvider()
	tests := []struct {
		name   string
		modify func(*Options)
	}{
		{"no library", func(o *Options) { o.LibraryDir = "" }},
		{"no extensions", func(o *Options) { o.Extensions = nil }},
		{"bad ignore pattern", func(o *Options) { o.Ignore = []string{"[unclosed"} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := testOptions(t.TempDir())
			tt.modify(&opts)
			if _, err := NewReconciler(opts, validCreds, connectTo(p)); !errors.Is(err, domain.ErrConfigInvalid) {
				t.Errorf("NewReconciler() error = %v, want ErrConfigInvalid", err)
			}
		})
	}

	r := newTestReconciler(t, testOptions(t.TempDir()), p)
	if r.Options().DownloadTimeout != DefaultDownloadTimeout {
		t.Errorf("DownloadTimeout = %s, want default", r.Options().DownloadTimeout)
	}
}

func TestDestination(t *testing.T) {
	lib := filepath.Join("lib")
	tests := []struct {
		name    string
		wantErr bool
	}{
		{"Vol 01.cbz", false},
		{"..cbz", false},
		{"", true},
		{".", true},
		{"..", true},
		{"a/b.cbz", true},
		{`a\b.cbz`, true},
		{"nul\x00.cbz", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Destination(lib, tt.name)
			if tt.wantErr {
				if !errors.Is(err, domain.ErrUnsafeName) {
					t.Errorf("Destination(%q) error = %v, want ErrUnsafeName", tt.name, err)
				}
				return
			}
			if err != nil || got != filepath.Join(lib, tt.name) {
				t.Errorf("Destination(%q) = %q, %v", tt.name, got, err)
			}
		})
	}
}
