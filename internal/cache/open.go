package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Drivers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverBadger = "badger"
)

// Options selects and tunes the cache provider.
type Options struct {
	Driver          string
	Path            string
	ConnectAttempts int
	ConnectDelay    time.Duration
	MemoryCapacity  int
	MemoryTTL       time.Duration
}

// Open builds the configured provider behind a Helper. Persistent drivers
// connect in the background; Open does not wait for them.
func Open(ctx context.Context, opts Options, logger *slog.Logger) (*Helper, error) {
	var p Provider
	dial := DialOptions{Attempts: opts.ConnectAttempts, Delay: opts.ConnectDelay}

	switch opts.Driver {
	case DriverMemory:
		p = NewMemory(opts.MemoryCapacity, opts.MemoryTTL)
	case DriverSQLite:
		p = Dial(ctx, func(ctx context.Context) (Provider, error) {
			return OpenSQLite(ctx, opts.Path)
		}, dial, logger)
	case DriverBadger:
		p = Dial(ctx, func(ctx context.Context) (Provider, error) {
			return OpenBadger(ctx, opts.Path)
		}, dial, logger)
	default:
		return nil, fmt.Errorf("cache: unknown driver %q", opts.Driver)
	}

	logger.Info("cache: provider selected", slog.String("driver", opts.Driver), slog.String("path", opts.Path))

	return NewHelper(p, logger, WithFallback(func() Provider {
		return NewMemory(opts.MemoryCapacity, opts.MemoryTTL)
	})), nil
}
