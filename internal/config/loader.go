package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Ning0612/Comicshelf/internal/domain"
)

// AppName names the per-user config, cache and state directories
const AppName = "comicshelf"

// EnvPrefix is prepended to environment overrides, e.g. COMICSHELF_LIBRARY_DIR
const EnvPrefix = "COMICSHELF"

// DefaultConfigPaths returns the default paths to search for config files
func DefaultConfigPaths() []string {
	paths := []string{
		".",
		"./configs",
	}

	if configDir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(configDir, AppName))
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(homeDir, ".config", AppName))
	}

	return paths
}

// setDefaults registers a default for every key so that env overrides
// reach Unmarshal even when the key is absent from the file
func setDefaults(v *viper.Viper) {
	home, _ := os.UserHomeDir()
	cacheRoot, err := os.UserCacheDir()
	if err != nil {
		cacheRoot = filepath.Join(home, ".cache")
	}
	configRoot, err := os.UserConfigDir()
	if err != nil {
		configRoot = filepath.Join(home, ".config")
	}

	v.SetDefault("library.dir", filepath.Join(home, "ComicLibrary"))

	v.SetDefault("cache.dir", filepath.Join(cacheRoot, AppName, "thumbnails"))
	v.SetDefault("cache.scratch_dir", filepath.Join(os.TempDir(), AppName))
	v.SetDefault("cache.thumb_size", 256)

	v.SetDefault("tools.unar", "")
	v.SetDefault("tools.lsar", "")

	v.SetDefault("sync.extensions", []string{".cbr", ".cbz"})
	v.SetDefault("sync.ignore", []string{})
	v.SetDefault("sync.recursive", true)
	v.SetDefault("sync.abort_on_error", false)
	v.SetDefault("sync.list_timeout", 30*time.Second)
	v.SetDefault("sync.download_timeout", 10*time.Minute)
	v.SetDefault("sync.max_attempts", 4)
	v.SetDefault("sync.state_dir", filepath.Join(configRoot, AppName))

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size_mb", 10)
	v.SetDefault("logging.max_age_days", 30)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.compress", true)

	v.SetDefault("providers.gdrive.client_id", "")
	v.SetDefault("providers.gdrive.client_secret", "")
	v.SetDefault("providers.gdrive.token_path", filepath.Join(configRoot, AppName, "gdrive-token.json"))
	v.SetDefault("providers.onedrive.client_id", "")
	v.SetDefault("providers.onedrive.tenant", "common")
	v.SetDefault("providers.onedrive.token_path", filepath.Join(configRoot, AppName, "onedrive-token.json"))
	v.SetDefault("providers.s3.bucket", "")
	v.SetDefault("providers.s3.region", "")
	v.SetDefault("providers.s3.prefix", "")
	v.SetDefault("providers.s3.endpoint", "")
	v.SetDefault("providers.s3.profile", "")
	v.SetDefault("providers.s3.access_key_id", "")
	v.SetDefault("providers.s3.secret_access_key", "")
	v.SetDefault("providers.local.root", "")
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads and parses a configuration file.
// If path is empty, searches default locations for config.yaml and
// falls back to defaults when none is found.
func Load(path string) (*Config, error) {
	v := newViper()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		for _, p := range DefaultConfigPaths() {
			v.AddConfigPath(p)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		missing := errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)
		switch {
		case missing && path == "":
			// defaults only
		case missing:
			return nil, domain.ErrConfigNotFound
		default:
			return nil, fmt.Errorf("%w: %v", domain.ErrConfigInvalid, err)
		}
	}

	return decode(v)
}

// LoadFromString parses configuration from a YAML string
func LoadFromString(yamlContent string) (*Config, error) {
	v := newViper()
	v.SetConfigType("yaml")

	if err := v.ReadConfig(strings.NewReader(yamlContent)); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConfigInvalid, err)
	}

	return decode(v)
}

// Default returns the configuration used when no file exists
func Default() *Config {
	cfg, err := decode(newViper())
	if err != nil {
		// defaults are static and always valid
		panic(err)
	}
	return cfg
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConfigInvalid, err)
	}

	for i, ext := range cfg.Sync.Extensions {
		cfg.Sync.Extensions[i] = strings.ToLower(ext)
	}
	cfg.expandPaths()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
