// Package timeouts holds the deadlines handlers put on database work.
//
// Values are process-wide and set once at startup with Configure. Handlers
// read them per request, so tests may change them with Configure and Reset.
package timeouts

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Default timeout values (used if Configure is not called).
const (
	DefaultPing   = 2 * time.Second
	DefaultShort  = 5 * time.Second
	DefaultMedium = 10 * time.Second
)

// Config holds timeout configuration values.
type Config struct {
	Ping   time.Duration // health check pings
	Short  time.Duration // single-record reads and writes
	Medium time.Duration // list queries and template saves
}

func defaults() Config {
	return Config{Ping: DefaultPing, Short: DefaultShort, Medium: DefaultMedium}
}

var current atomic.Pointer[Config]

func init() { Reset() }

func load() Config { return *current.Load() }

// Ping returns the timeout for health checks.
func Ping() time.Duration { return load().Ping }

// Short returns the timeout for single-record reads and writes.
func Short() time.Duration { return load().Short }

// Medium returns the timeout for list queries and template saves.
func Medium() time.Duration { return load().Medium }

// Configure sets custom timeout values and returns the values now in effect.
// Zero or negative fields keep their current value.
func Configure(cfg Config) Config {
	next := load()
	if cfg.Ping > 0 {
		next.Ping = cfg.Ping
	}
	if cfg.Short > 0 {
		next.Short = cfg.Short
	}
	if cfg.Medium > 0 {
		next.Medium = cfg.Medium
	}
	current.Store(&next)
	return next
}

// Reset restores all timeouts to defaults.
func Reset() {
	d := defaults()
	current.Store(&d)
}

// Current returns the timeouts in effect.
func Current() Config { return load() }

// WithTimeout derives a context that expires after timeout. The returned
// cancel logs a warning when the deadline, rather than the caller, ended the
// operation.
func WithTimeout(parent context.Context, timeout time.Duration, log *zap.Logger, operation string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(parent, timeout)
	return ctx, func() {
		if log != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			log.Warn("operation timed out",
				zap.String("operation", operation),
				zap.Duration("timeout", timeout))
		}
		cancel()
	}
}
