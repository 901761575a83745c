package logger

import (
	"io"
	"strings"
)

// Logger is the logging interface used across comicshelf
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	With(args ...any) Logger
	Sync() error     // flush buffered output
	Shutdown() error // close owned writers
}

// Level is a log severity
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = [...]string{LevelDebug: "debug", LevelInfo: "info", LevelWarn: "warn", LevelError: "error"}

func (l Level) String() string {
	if l < LevelDebug || l > LevelError {
		return "unknown"
	}
	return levelNames[l]
}

// ParseLevel accepts any case and "warning". Unknown names fall back to info.
func ParseLevel(s string) Level {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "warning" {
		return LevelWarn
	}
	for l, name := range levelNames {
		if name == s {
			return Level(l)
		}
	}
	return LevelInfo
}

// Format is the record encoding
type Format int

const (
	FormatText Format = iota
	FormatJSON
)

func (f Format) String() string {
	if f == FormatJSON {
		return "json"
	}
	return "text"
}

// ParseFormat returns FormatJSON for "json" in any case, else FormatText
func ParseFormat(s string) Format {
	if strings.EqualFold(strings.TrimSpace(s), "json") {
		return FormatJSON
	}
	return FormatText
}

// Output is a log destination
type Output int

const (
	OutputStdout Output = iota
	OutputStderr
	OutputFile
)

// Config describes how the global logger is built
type Config struct {
	Level   Level
	Format  Format
	Outputs []OutputConfig
	File    FileConfig
}

// OutputConfig selects one destination. Writer overrides the
// standard stream, mainly for tests.
type OutputConfig struct {
	Type   Output
	Writer io.Writer
}

// FileConfig controls the rotated log file
type FileConfig struct {
	Enabled    bool
	Path       string
	MaxSizeMB  int
	MaxAgeDays int
	MaxBackups int
	Compress   bool
}

// Options is the flat, config-file shaped description of a logger
type Options struct {
	Level      string
	Format     string
	File       string
	MaxSizeMB  int
	MaxAgeDays int
	MaxBackups int
	Compress   bool
}

// ConfigFrom builds a Config that writes to stderr and, when File is
// set, to a rotated file as well
func ConfigFrom(o Options) Config {
	cfg := Config{
		Level:   ParseLevel(o.Level),
		Format:  ParseFormat(o.Format),
		Outputs: []OutputConfig{{Type: OutputStderr}},
	}
	if o.File != "" {
		cfg.Outputs = append(cfg.Outputs, OutputConfig{Type: OutputFile})
		cfg.File = FileConfig{
			Enabled:    true,
			Path:       o.File,
			MaxSizeMB:  o.MaxSizeMB,
			MaxAgeDays: o.MaxAgeDays,
			MaxBackups: o.MaxBackups,
			Compress:   o.Compress,
		}
	}
	return cfg
}
