package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Ning0612/Comicshelf/internal/adapter"
	"github.com/Ning0612/Comicshelf/internal/daemon"
	"github.com/Ning0612/Comicshelf/internal/domain"
	"github.com/Ning0612/Comicshelf/internal/lock"
	"github.com/Ning0612/Comicshelf/internal/logger"
	"github.com/Ning0612/Comicshelf/internal/metrics"
	"github.com/Ning0612/Comicshelf/internal/progress"
	"github.com/Ning0612/Comicshelf/internal/service"
	"github.com/Ning0612/Comicshelf/internal/state"
	"github.com/Ning0612/Comicshelf/internal/store"
)

type syncFlags struct {
	folder      string
	recursive   bool
	every       time.Duration
	metricsAddr string
	stop        bool
	quiet       bool
}

func newSyncCmd() *cobra.Command {
	var f syncFlags

	cmd := &cobra.Command{
		Use:   "sync <provider>",
		Short: "Download new or changed archives into the library",
		Long: `Downloads every .cbr/.cbz under the selected remote folder into the
library directory. Existing files with the same size are kept. Nothing
is ever deleted or modified remotely.

The folder and recursion choice are remembered per provider.`,
		Example: `  comicshelf sync gdrive --folder Comics/Manga
  comicshelf sync onedrive --every 30m --metrics-addr :9090
  comicshelf sync onedrive --stop`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := parseProvider(args[0])
			if err != nil {
				return err
			}
			if f.stop {
				return stopDaemon(cmd.OutOrStdout(), t)
			}
			return runSync(cmd, t, f)
		},
	}

	cmd.Flags().StringVar(&f.folder, "folder", "", "Remote folder path to sync, e.g. Comics/Manga (saved for next time)")
	cmd.Flags().BoolVarP(&f.recursive, "recursive", "r", true, "Include subfolders (saved for next time)")
	cmd.Flags().DurationVar(&f.every, "every", 0, "Keep running and sync on this interval, e.g. 30m")
	cmd.Flags().StringVar(&f.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	cmd.Flags().BoolVar(&f.stop, "stop", false, "Stop a scheduled sync of this provider")
	cmd.Flags().BoolVarP(&f.quiet, "quiet", "q", false, "Only print the summary")
	return cmd
}

func runSync(cmd *cobra.Command, t domain.ProviderType, f syncFlags) error {
	ctx := cmd.Context()
	log := logger.Get().With("provider", string(t))

	backend, err := adapter.Open(cfg, t)
	if err != nil {
		return err
	}

	selections, err := store.Open(cfg.SelectionPath())
	if err != nil {
		return err
	}
	defer selections.Close()

	sel, found, err := selections.Get(t)
	if err != nil {
		return err
	}
	if !found {
		sel.Recursive = cfg.Sync.Recursive
	}
	if cmd.Flags().Changed("recursive") {
		sel.Recursive = f.recursive
	}
	if cmd.Flags().Changed("folder") {
		if sel, err = selectFolder(ctx, backend, sel, f.folder); err != nil {
			return err
		}
	}
	if err := selections.Put(t, sel); err != nil {
		return err
	}

	libLock, err := lock.New(cfg.LockPath())
	if err != nil {
		return err
	}
	history, err := state.NewManager(cfg.HistoryPath())
	if err != nil {
		return err
	}
	defer history.Close()

	r, err := service.NewReconciler(service.OptionsFromConfig(cfg, t, sel), backend.Credentials, backend.Connect,
		service.WithLock(libLock),
		service.WithHistory(history))
	if err != nil {
		return err
	}

	if f.metricsAddr != "" {
		srv := &http.Server{Addr: f.metricsAddr, Handler: metrics.Handler()}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("Metrics server failed", "addr", f.metricsAddr, "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
		log.Info("Serving metrics", "addr", f.metricsAddr)
	}

	out := cmd.OutOrStdout()
	live := interactive(out)
	rememberAccount := func(o domain.SyncOutcome) {
		if o.Account == "" || o.Account == sel.AccountLabel {
			return
		}
		sel.AccountLabel = o.Account
		if err := selections.Put(t, sel); err != nil {
			log.Warn("Failed to save account label", "error", err)
		}
	}

	if f.every > 0 {
		return runScheduled(ctx, out, live, r, history, t, f, rememberAccount)
	}

	task := r.Start(ctx)
	for u := range task.Updates() {
		if !f.quiet {
			printUpdate(out, u, live)
		}
	}
	outcome := task.Wait()
	rememberAccount(outcome)
	printOutcome(out, outcome)
	return outcomeError(outcome)
}

// selectFolder resolves folderPath on the provider and stores it in sel
func selectFolder(ctx context.Context, backend *adapter.Backend, sel domain.SyncSelection, folderPath string) (domain.SyncSelection, error) {
	tokenCtx, cancel := context.WithTimeout(ctx, cfg.Sync.ListTimeout)
	token, err := backend.Credentials.TokenSilent(tokenCtx)
	cancel()
	if err != nil {
		return sel, fmt.Errorf("sign in first with 'comicshelf auth %s': %w", backend.Type, err)
	}
	p, err := backend.Connect(ctx, token)
	if err != nil {
		return sel, err
	}
	id, err := adapter.ResolveFolder(ctx, p, folderPath)
	if err != nil {
		return sel, err
	}

	sel.FolderID = id
	sel.FolderName = folderPath
	sel.AccountLabel = service.AccountLabel(ctx, p, cfg.Sync.ListTimeout)
	return sel, nil
}

func runScheduled(ctx context.Context, out io.Writer, live bool, r *service.Reconciler, history *state.Manager,
	t domain.ProviderType, f syncFlags, onOutcome func(domain.SyncOutcome)) error {

	reporter := progress.Reporter(progress.NullReporter{})
	if !f.quiet {
		reporter = progress.NewCallbackReporter(func(u progress.Update) { printUpdate(out, u, live) })
	}

	d, err := service.NewDaemonService(r,
		service.WithPIDFile(daemon.NewPIDFile(daemon.PathFor(cfg.Sync.StateDir, string(t)))),
		service.WithLastSuccess(history),
		service.WithReporter(reporter),
		service.WithOutcomeHandler(func(o domain.SyncOutcome) {
			onOutcome(o)
			printOutcome(out, o)
		}),
	)
	if err != nil {
		return err
	}
	if err := d.Start(ctx, f.every); err != nil {
		return err
	}
	fmt.Fprintf(out, "Syncing %s every %s (Ctrl+C to stop)\n", t, f.every)

	select {
	case <-ctx.Done():
	case <-d.Done():
	}
	if err := d.Stop(); err != nil {
		return err
	}

	if s := d.Status(); s.LastSuccess != nil {
		fmt.Fprintf(out, "Last successful sync: %s\n", s.LastSuccess.EndTime.Local().Format(time.RFC1123))
	}
	return nil
}

func stopDaemon(out io.Writer, t domain.ProviderType) error {
	pid := daemon.NewPIDFile(daemon.PathFor(cfg.Sync.StateDir, string(t)))
	if err := pid.Kill(); err != nil {
		if errors.Is(err, daemon.ErrNotRunning) {
			return fmt.Errorf("no scheduled sync of %s is running", t)
		}
		return err
	}
	fmt.Fprintf(out, "Stopped scheduled sync of %s\n", t)
	return nil
}

// interactive reports whether w is a terminal, where the byte progress
// of the current download can be redrawn in place
func interactive(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func printUpdate(w io.Writer, u progress.Update, live bool) {
	redraw := ""
	if live {
		redraw = "\r\033[K"
	}
	switch u.Stage {
	case progress.StageTransfer:
		if live && u.CurrentTotal > 0 {
			fmt.Fprintf(w, "%s  %s / %s (%s/s)", redraw, formatBytes(u.CurrentBytes), formatBytes(u.CurrentTotal), formatBytes(int64(u.BytesPerSecond)))
		}
	case progress.StageDownloaded:
		fmt.Fprintf(w, "%s%s (%s)\n", redraw, u.Message, formatBytes(u.CurrentTotal))
	case progress.StageFailed:
		fmt.Fprintf(w, "%s%s: %v\n", redraw, u.Message, u.Err)
	case progress.StageChecking:
		// superseded by downloading or skipped
	default:
		fmt.Fprintf(w, "%s\n", u.Message)
	}
}

func printOutcome(w io.Writer, o domain.SyncOutcome) {
	if o.Phase == domain.PhaseFailed {
		fmt.Fprintf(w, "Sync of %s failed: %v\n", o.Folder, o.Err)
		if domain.IsAuthError(o.Err) {
			fmt.Fprintf(w, "Run 'comicshelf auth %s' to sign in again.\n", o.Provider)
		}
		return
	}
	fmt.Fprintf(w, "%s %s: %d new (%s), %d up to date, %d failed in %s\n",
		o.Account, o.Folder, o.Downloaded, formatBytes(o.Bytes), o.Skipped, len(o.Errors),
		o.Finished.Sub(o.Started).Round(time.Millisecond))
	for _, e := range o.Errors {
		fmt.Fprintf(w, "  %s\n", e.Error())
	}
}

func outcomeError(o domain.SyncOutcome) error {
	switch {
	case o.Phase == domain.PhaseFailed:
		return o.Err
	case len(o.Errors) > 0:
		return fmt.Errorf("%d of %d files failed", len(o.Errors), o.Scanned)
	}
	return nil
}
