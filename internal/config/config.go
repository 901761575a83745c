package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Ning0612/Comicshelf/internal/domain"
)

// Config represents the complete configuration for comicshelf.
// Each component receives only the section it needs.
type Config struct {
	Library   LibraryConfig   `mapstructure:"library"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Tools     ToolsConfig     `mapstructure:"tools"`
	Sync      SyncConfig      `mapstructure:"sync"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Providers ProvidersConfig `mapstructure:"providers"`
}

// LibraryConfig locates the local library directory
type LibraryConfig struct {
	Dir string `mapstructure:"dir"`
}

// CacheConfig controls the thumbnail cache and scratch areas
type CacheConfig struct {
	Dir        string `mapstructure:"dir"`
	ScratchDir string `mapstructure:"scratch_dir"`
	ThumbSize  int    `mapstructure:"thumb_size"`
}

// ToolsConfig overrides discovery of the external archive tools
type ToolsConfig struct {
	Unar string `mapstructure:"unar"`
	Lsar string `mapstructure:"lsar"`
}

// SyncConfig controls the reconciler
type SyncConfig struct {
	Extensions      []string      `mapstructure:"extensions"`
	Ignore          []string      `mapstructure:"ignore"`
	Recursive       bool          `mapstructure:"recursive"`
	AbortOnError    bool          `mapstructure:"abort_on_error"`
	ListTimeout     time.Duration `mapstructure:"list_timeout"`
	DownloadTimeout time.Duration `mapstructure:"download_timeout"`
	MaxAttempts     int           `mapstructure:"max_attempts"`
	StateDir        string        `mapstructure:"state_dir"`
}

// LoggingConfig mirrors logger.Config in a YAML-friendly shape
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
}

// ProvidersConfig holds one section per storage backend
type ProvidersConfig struct {
	GDrive   GDriveConfig   `mapstructure:"gdrive"`
	OneDrive OneDriveConfig `mapstructure:"onedrive"`
	S3       S3Config       `mapstructure:"s3"`
	Local    LocalConfig    `mapstructure:"local"`
}

// GDriveConfig holds the OAuth client for Google Drive
type GDriveConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	TokenPath    string `mapstructure:"token_path"`
}

// OneDriveConfig holds the public client registration for Microsoft Graph
type OneDriveConfig struct {
	ClientID  string `mapstructure:"client_id"`
	Tenant    string `mapstructure:"tenant"`
	TokenPath string `mapstructure:"token_path"`
}

// S3Config locates a bucket. Without static keys, credentials come from
// the AWS default chain.
type S3Config struct {
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	Prefix          string `mapstructure:"prefix"`
	Endpoint        string `mapstructure:"endpoint"`
	Profile         string `mapstructure:"profile"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
}

// LocalConfig points at a directory treated as a remote tree
type LocalConfig struct {
	Root string `mapstructure:"root"`
}

// Validate checks if the configuration is complete and consistent
func (c *Config) Validate() error {
	if c.Library.Dir == "" {
		return fmt.Errorf("%w: library.dir cannot be empty", domain.ErrConfigInvalid)
	}
	if c.Cache.Dir == "" {
		return fmt.Errorf("%w: cache.dir cannot be empty", domain.ErrConfigInvalid)
	}
	if c.Cache.ThumbSize <= 0 {
		return fmt.Errorf("%w: cache.thumb_size must be positive, got %d", domain.ErrConfigInvalid, c.Cache.ThumbSize)
	}
	if len(c.Sync.Extensions) == 0 {
		return fmt.Errorf("%w: sync.extensions cannot be empty", domain.ErrConfigInvalid)
	}
	for _, ext := range c.Sync.Extensions {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("%w: extension %q must start with a dot", domain.ErrConfigInvalid, ext)
		}
	}
	if c.Sync.ListTimeout <= 0 || c.Sync.DownloadTimeout <= 0 {
		return fmt.Errorf("%w: sync timeouts must be positive", domain.ErrConfigInvalid)
	}
	if c.Sync.MaxAttempts < 1 {
		return fmt.Errorf("%w: sync.max_attempts must be at least 1", domain.ErrConfigInvalid)
	}
	return nil
}

// ValidateProvider checks that the named provider has enough configuration to connect
func (c *Config) ValidateProvider(t domain.ProviderType) error {
	if !t.IsValid() {
		return fmt.Errorf("%w: unknown provider %q", domain.ErrConfigInvalid, t)
	}
	p := c.Providers
	switch t {
	case domain.ProviderGDrive:
		if p.GDrive.ClientID == "" || p.GDrive.ClientSecret == "" {
			return fmt.Errorf("%w: gdrive needs client_id and client_secret", domain.ErrProviderNotConfigured)
		}
	case domain.ProviderOneDrive:
		if p.OneDrive.ClientID == "" {
			return fmt.Errorf("%w: onedrive needs client_id", domain.ErrProviderNotConfigured)
		}
	case domain.ProviderS3:
		if p.S3.Bucket == "" {
			return fmt.Errorf("%w: s3 needs bucket", domain.ErrProviderNotConfigured)
		}
	case domain.ProviderLocal:
		if p.Local.Root == "" {
			return fmt.Errorf("%w: local needs root", domain.ErrProviderNotConfigured)
		}
	}
	return nil
}

// HistoryPath returns the sqlite file recording sync passes
func (c *Config) HistoryPath() string {
	return filepath.Join(c.Sync.StateDir, "history.db")
}

// SelectionPath returns the bbolt file holding per-provider selections
func (c *Config) SelectionPath() string {
	return filepath.Join(c.Sync.StateDir, "selections.db")
}

// LockPath returns the lock file guarding writes into the library
func (c *Config) LockPath() string {
	return filepath.Join(c.Sync.StateDir, "library.lock")
}

// expandPaths applies ExpandPath to every path-valued field
func (c *Config) expandPaths() {
	for _, p := range []*string{
		&c.Library.Dir,
		&c.Cache.Dir,
		&c.Cache.ScratchDir,
		&c.Sync.StateDir,
		&c.Logging.File,
		&c.Providers.GDrive.TokenPath,
		&c.Providers.OneDrive.TokenPath,
		&c.Providers.Local.Root,
	} {
		if *p != "" {
			*p = ExpandPath(*p)
		}
	}
}

// ExpandPath expands ~ and environment variables in a path
func ExpandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err == nil {
			if len(path) > 1 && (path[1] == '/' || path[1] == filepath.Separator) {
				path = filepath.Join(home, path[2:])
			} else if len(path) == 1 {
				path = home
			}
		}
	}
	path = os.ExpandEnv(path)
	return filepath.Clean(path)
}
