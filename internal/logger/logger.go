package logger

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// global holds the process logger. Nil means Init has not run.
var global atomic.Pointer[Logger]

var errInitialized = errors.New("logger already initialized; call Shutdown() before re-initializing")

// Init builds the global logger. It must be paired with Shutdown.
func Init(config Config) error {
	l, err := NewSlogLogger(config)
	if err != nil {
		return fmt.Errorf("failed to create slog logger: %w", err)
	}

	var iface Logger = l
	if !global.CompareAndSwap(nil, &iface) {
		l.Shutdown()
		return errInitialized
	}
	return nil
}

// Get returns the global logger, or a NullLogger before Init
func Get() Logger {
	if p := global.Load(); p != nil {
		return *p
	}
	return &NullLogger{}
}

// With returns a child of the global logger carrying args
func With(args ...any) Logger {
	return Get().With(args...)
}

// Sync flushes the global logger
func Sync() error {
	return Get().Sync()
}

// Shutdown closes the global logger's writers and resets it
func Shutdown() error {
	p := global.Swap(nil)
	if p == nil {
		return nil
	}
	return (*p).Shutdown()
}

// NullLogger discards everything
type NullLogger struct{}

func (*NullLogger) Debug(string, ...any) {}
func (*NullLogger) Info(string, ...any)  {}
func (*NullLogger) Warn(string, ...any)  {}
func (*NullLogger) Error(string, ...any) {}
func (n *NullLogger) With(...any) Logger { return n }
func (*NullLogger) Sync() error          { return nil }
func (*NullLogger) Shutdown() error      { return nil }
