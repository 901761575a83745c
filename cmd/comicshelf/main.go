// Command comicshelf syncs comic archives from cloud storage into a local
// library and builds thumbnails of the library.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Ning0612/Comicshelf/internal/config"
	"github.com/Ning0612/Comicshelf/internal/domain"
	"github.com/Ning0612/Comicshelf/internal/logger"
)

var (
	version = "dev"
	commit  = "none"
)

var (
	configPath string
	logLevel   string
	cfg        *config.Config
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	logger.Shutdown()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "comicshelf",
		Short: "Comic library with cloud sync and thumbnails",
		Long: `comicshelf downloads .cbr/.cbz archives from Google Drive, OneDrive,
S3 or a local folder into a flat library directory, and renders cover
thumbnails of the library.`,
		Version:           fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage:      true,
		PersistentPreRunE: setup,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: search standard locations)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override logging.level (debug, info, warn, error)")

	rootCmd.AddCommand(
		newSyncCmd(),
		newAuthCmd(),
		newLibraryCmd(),
		newThumbsCmd(),
		newExtractCmd(),
		newHistoryCmd(),
	)
	return rootCmd
}

// setup loads configuration and starts the global logger. main shuts
// the logger down after the command returns.
func setup(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg = loaded

	level := cfg.Logging.Level
	if logLevel != "" {
		level = logLevel
	}
	return logger.Init(logger.ConfigFrom(logger.Options{
		Level:      level,
		Format:     cfg.Logging.Format,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		MaxBackups: cfg.Logging.MaxBackups,
		Compress:   cfg.Logging.Compress,
	}))
}

// parseProvider validates a provider argument
func parseProvider(arg string) (domain.ProviderType, error) {
	t := domain.ProviderType(arg)
	if !t.IsValid() {
		return "", fmt.Errorf("unknown provider %q (want gdrive, onedrive, s3 or local)", arg)
	}
	return t, nil
}

// formatBytes renders n with a binary unit, e.g. "1.5 MiB"
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
