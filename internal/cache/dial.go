package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Opener connects to a backing store and returns it ready for use.
type Opener func(ctx context.Context) (Provider, error)

// DialOptions bounds the connection attempts made by Dial.
type DialOptions struct {
	Attempts int
	Delay    time.Duration
}

type pendingOp func(ctx context.Context, p Provider) error

// Conn is a Provider whose backend connects in the background. Until the
// backend is live, mutations are buffered and replayed in order once it
// connects; reads wait for the connection to settle. If every attempt
// fails the Conn reports EventBroken and all later calls return ErrBroken.
type Conn struct {
	logger *slog.Logger

	mu      sync.Mutex
	backend Provider
	err     error
	closed  bool
	queue   []pendingOp

	ready  chan struct{}
	events chan Event
}

// Dial starts connecting with open and returns immediately.
func Dial(ctx context.Context, open Opener, opts DialOptions, logger *slog.Logger) *Conn {
	if opts.Attempts <= 0 {
		opts.Attempts = 1
	}
	c := &Conn{
		logger: logger,
		ready:  make(chan struct{}),
		events: make(chan Event, 2),
	}
	go c.connect(ctx, open, opts)
	return c
}

func (c *Conn) connect(ctx context.Context, open Opener, opts DialOptions) {
	var lastErr error
	for attempt := 1; attempt <= opts.Attempts; attempt++ {
		p, err := open(ctx)
		if err == nil {
			c.establish(ctx, p)
			return
		}
		lastErr = err
		c.logger.Warn("cache: connect failed",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", opts.Attempts),
			slog.String("error", err.Error()))

		if attempt == opts.Attempts {
			break
		}
		select {
		case <-ctx.Done():
			c.fail(ctx.Err())
			return
		case <-time.After(opts.Delay):
		}
	}
	c.fail(lastErr)
}

func (c *Conn) establish(ctx context.Context, p Provider) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = p.Close()
		return
	}
	for _, op := range c.queue {
		if err := op(ctx, p); err != nil {
			c.logger.Warn("cache: buffered write failed", slog.String("error", err.Error()))
		}
	}
	c.logger.Info("cache: connected", slog.Int("replayed", len(c.queue)))
	c.queue = nil
	c.backend = p
	close(c.ready)
	c.mu.Unlock()

	c.events <- Event{Kind: EventConnected}
}

func (c *Conn) fail(cause error) {
	c.mu.Lock()
	c.err = fmt.Errorf("%w: %v", ErrBroken, cause)
	c.queue = nil
	close(c.ready)
	err := c.err
	c.mu.Unlock()

	c.events <- Event{Kind: EventBroken, Err: err}
}

// mutate applies op now when connected, or buffers it until then.
func (c *Conn) mutate(ctx context.Context, op pendingOp) error {
	c.mu.Lock()
	if c.err != nil {
		err := c.err
		c.mu.Unlock()
		return err
	}
	if c.backend == nil {
		c.queue = append(c.queue, op)
		c.mu.Unlock()
		return nil
	}
	p := c.backend
	c.mu.Unlock()
	return op(ctx, p)
}

// await blocks until the connection is live or broken.
func (c *Conn) await(ctx context.Context) (Provider, error) {
	select {
	case <-c.ready:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	return c.backend, nil
}

func (c *Conn) Get(ctx context.Context, key string) (string, bool, error) {
	p, err := c.await(ctx)
	if err != nil {
		return "", false, err
	}
	return p.Get(ctx, key)
}

func (c *Conn) GetField(ctx context.Context, key, field string) (string, bool, error) {
	p, err := c.await(ctx)
	if err != nil {
		return "", false, err
	}
	return p.GetField(ctx, key, field)
}

func (c *Conn) GetAll(ctx context.Context, key string) (map[string]string, error) {
	p, err := c.await(ctx)
	if err != nil {
		return nil, err
	}
	return p.GetAll(ctx, key)
}

func (c *Conn) Add(ctx context.Context, key, value string) error {
	return c.mutate(ctx, func(ctx context.Context, p Provider) error {
		return p.Add(ctx, key, value)
	})
}

func (c *Conn) AddField(ctx context.Context, key, field, value string) error {
	return c.mutate(ctx, func(ctx context.Context, p Provider) error {
		return p.AddField(ctx, key, field, value)
	})
}

func (c *Conn) AddAll(ctx context.Context, key string, values map[string]string) error {
	return c.mutate(ctx, func(ctx context.Context, p Provider) error {
		return p.AddAll(ctx, key, values)
	})
}

// Remove reports true for a buffered removal since its outcome is not yet known.
func (c *Conn) Remove(ctx context.Context, keys ...string) (bool, error) {
	var removed atomic.Bool
	removed.Store(true)
	err := c.mutate(ctx, func(ctx context.Context, p Provider) error {
		ok, err := p.Remove(ctx, keys...)
		removed.Store(ok)
		return err
	})
	return removed.Load(), err
}

func (c *Conn) RemoveField(ctx context.Context, key, field string) (bool, error) {
	var removed atomic.Bool
	removed.Store(true)
	err := c.mutate(ctx, func(ctx context.Context, p Provider) error {
		ok, err := p.RemoveField(ctx, key, field)
		removed.Store(ok)
		return err
	})
	return removed.Load(), err
}

func (c *Conn) Exists(ctx context.Context, key string) (bool, error) {
	p, err := c.await(ctx)
	if err != nil {
		return false, err
	}
	return p.Exists(ctx, key)
}

func (c *Conn) ExistsField(ctx context.Context, key, field string) (bool, error) {
	p, err := c.await(ctx)
	if err != nil {
		return false, err
	}
	return p.ExistsField(ctx, key, field)
}

func (c *Conn) Events() <-chan Event { return c.events }

// Close closes the backend if it connected. A backend that connects after
// Close is closed immediately.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.backend != nil {
		return c.backend.Close()
	}
	return nil
}
