package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Ning0612/Comicshelf/internal/domain"
	"github.com/Ning0612/Comicshelf/internal/logger"
	"github.com/Ning0612/Comicshelf/internal/progress"
	"github.com/Ning0612/Comicshelf/internal/testutil"
)

// writeConfig creates a config whose every path lives under a temp dir
// and whose local provider serves remote
func writeConfig(t *testing.T, remote string) (path, libraryDir string) {
	t.Helper()
	base := t.TempDir()
	libraryDir = filepath.Join(base, "library")

	content := fmt.Sprintf(`
library:
  dir: %q
cache:
  dir: %q
  scratch_dir: %q
sync:
  state_dir: %q
logging:
  level: error
providers:
  local:
    root: %q
`, libraryDir, filepath.Join(base, "thumbs"), filepath.Join(base, "scratch"), filepath.Join(base, "state"), remote)

	path = testutil.CreateTestFile(t, base, "config.yaml", []byte(content))
	return path, libraryDir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	logger.Shutdown()
	return out.String(), err
}

func TestSyncLocalThenListAndHistory(t *testing.T) {
	remote := t.TempDir()
	if err := os.MkdirAll(filepath.Join(remote, "Batman"), 0755); err != nil {
		t.Fatal(err)
	}
	testutil.CreateTestFile(t, filepath.Join(remote, "Batman"), "Batman 001.cbz", bytes.Repeat([]byte("b"), 2048))
	testutil.CreateTestFile(t, remote, "notes.txt", []byte("not a comic"))
	configFile, lib := writeConfig(t, remote)

	out, err := execute(t, "--config", configFile, "sync", "local", "--quiet")
	if err != nil {
		t.Fatalf("sync error = %v\n%s", err, out)
	}
	if !strings.Contains(out, "1 new") {
		t.Errorf("sync output = %q", out)
	}
	if _, err := os.Stat(filepath.Join(lib, "Batman 001.cbz")); err != nil {
		t.Fatalf("archive not in library: %v", err)
	}
	if _, err := os.Stat(filepath.Join(lib, "notes.txt")); !os.IsNotExist(err) {
		t.Error("non-comic file should not be synced")
	}

	out, err = execute(t, "--config", configFile, "sync", "local")
	if err != nil {
		t.Fatalf("second sync error = %v", err)
	}
	if !strings.Contains(out, "1/1 skipped Batman 001.cbz") || !strings.Contains(out, "0 new") {
		t.Errorf("second sync output = %q", out)
	}

	out, err = execute(t, "--config", configFile, "library", "--filter", "batman")
	if err != nil || !strings.Contains(out, "Batman 001.cbz") || !strings.Contains(out, "2.0 KiB") {
		t.Errorf("library output = %q, %v", out, err)
	}

	out, err = execute(t, "--config", configFile, "history", "--provider", "local")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Count(out, "success") != 2 {
		t.Errorf("history output = %q", out)
	}
}

func TestSyncFolderSelection(t *testing.T) {
	remote := t.TempDir()
	for _, dir := range []string{"Marvel", "DC"} {
		if err := os.MkdirAll(filepath.Join(remote, dir), 0755); err != nil {
			t.Fatal(err)
		}
		testutil.CreateTestFile(t, filepath.Join(remote, dir), dir+".cbr", []byte(dir))
	}
	configFile, lib := writeConfig(t, remote)

	if out, err := execute(t, "--config", configFile, "sync", "local", "--folder", "DC", "-q"); err != nil {
		t.Fatalf("sync error = %v\n%s", err, out)
	}
	// the folder is remembered without passing it again
	if out, err := execute(t, "--config", configFile, "sync", "local", "-q"); err != nil {
		t.Fatalf("sync error = %v\n%s", err, out)
	}

	if _, err := os.Stat(filepath.Join(lib, "DC.cbr")); err != nil {
		t.Error("selected folder should be synced")
	}
	if _, err := os.Stat(filepath.Join(lib, "Marvel.cbr")); !os.IsNotExist(err) {
		t.Error("other folders should not be synced")
	}

	if _, err := execute(t, "--config", configFile, "sync", "local", "--folder", "Image"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("unknown folder error = %v, want ErrNotFound", err)
	}
}

func TestSyncRejectsUnknownProvider(t *testing.T) {
	configFile, _ := writeConfig(t, t.TempDir())
	if _, err := execute(t, "--config", configFile, "sync", "dropbox"); err == nil {
		t.Error("unknown provider should fail")
	}
	if _, err := execute(t, "--config", configFile, "sync", "s3"); !errors.Is(err, domain.ErrProviderNotConfigured) {
		t.Errorf("unconfigured provider error = %v", err)
	}
}

func TestThumbsAndPrune(t *testing.T) {
	configFile, lib := writeConfig(t, t.TempDir())
	if err := os.MkdirAll(lib, 0755); err != nil {
		t.Fatal(err)
	}
	cover := testutil.PNG(t, 40, 60, color.White)
	archive := testutil.WriteCBZ(t, lib, "Saga 01.cbz", testutil.Entry{Name: "01.png", Data: cover})

	out, err := execute(t, "--config", configFile, "thumbs", "--size", "32")
	if err != nil || !strings.Contains(out, "1 generated, 0 cached, 0 failed") {
		t.Fatalf("thumbs output = %q, %v", out, err)
	}
	out, _ = execute(t, "--config", configFile, "thumbs", "--size", "32")
	if !strings.Contains(out, "0 generated, 1 cached") {
		t.Errorf("second thumbs output = %q", out)
	}

	if err := os.Remove(archive); err != nil {
		t.Fatal(err)
	}
	out, err = execute(t, "--config", configFile, "thumbs", "--prune")
	if err != nil || !strings.Contains(out, "removed 1 stale thumbnails") {
		t.Errorf("prune output = %q, %v", out, err)
	}
}

func TestExtract(t *testing.T) {
	configFile, _ := writeConfig(t, t.TempDir())
	dir := t.TempDir()
	archive := testutil.WriteCBZ(t, dir, "a.cbz",
		testutil.Entry{Name: "b.png", Data: testutil.PNG(t, 4, 4, color.Black)},
		testutil.Entry{Name: "A.png", Data: testutil.PNG(t, 4, 4, color.Black)},
		testutil.Entry{Name: "info.txt", Data: []byte("x")},
	)

	out, err := execute(t, "--config", configFile, "extract", archive)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 || filepath.Base(lines[0]) != "A.png" || filepath.Base(lines[1]) != "b.png" {
		t.Errorf("extract output = %q", out)
	}

	coverPath := filepath.Join(dir, "cover.png")
	if _, err := execute(t, "--config", configFile, "extract", archive, "--cover", coverPath); err != nil {
		t.Fatal(err)
	}
	if info, err := os.Stat(coverPath); err != nil || info.Size() == 0 {
		t.Errorf("cover not written: %v", err)
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{5 << 20, "5.0 MiB"},
		{3 << 30, "3.0 GiB"},
	}
	for _, tt := range tests {
		if got := formatBytes(tt.n); got != tt.want {
			t.Errorf("formatBytes(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestOutcomeError(t *testing.T) {
	failed := domain.SyncOutcome{Phase: domain.PhaseFailed, Err: domain.ErrSyncInProgress}
	if !errors.Is(outcomeError(failed), domain.ErrSyncInProgress) {
		t.Error("failed pass should return its error")
	}

	partial := domain.SyncOutcome{Phase: domain.PhaseCompleted, Scanned: 3, Errors: []domain.ItemError{{Name: "a", Err: domain.ErrUnsafeName}}}
	if err := outcomeError(partial); err == nil || err.Error() != "1 of 3 files failed" {
		t.Errorf("partial pass error = %v", err)
	}

	if outcomeError(domain.SyncOutcome{Phase: domain.PhaseCompleted}) != nil {
		t.Error("clean pass should not error")
	}
}

func TestPrintUpdate(t *testing.T) {
	updates := []progress.Update{
		{Stage: progress.StageChecking, Message: "1/2 checking a.cbz"},
		{Stage: progress.StageSkipped, Message: "1/2 skipped a.cbz"},
		{Stage: progress.StageTransfer, Message: "2/2 downloading b.cbz", CurrentBytes: 512, CurrentTotal: 2048},
		{Stage: progress.StageFailed, Message: "2/2 failed b.cbz", Err: domain.ErrChecksumMismatch},
	}

	var plain bytes.Buffer
	for _, u := range updates {
		printUpdate(&plain, u, false)
	}
	if want := "1/2 skipped a.cbz\n2/2 failed b.cbz: checksum mismatch\n"; plain.String() != want {
		t.Errorf("plain output = %q, want %q", plain.String(), want)
	}

	var live bytes.Buffer
	for _, u := range updates {
		printUpdate(&live, u, true)
	}
	if !strings.Contains(live.String(), "\r\033[K  512 B / 2.0 KiB") {
		t.Errorf("live output should redraw byte progress: %q", live.String())
	}

	if interactive(&plain) {
		t.Error("a buffer is not a terminal")
	}
}
