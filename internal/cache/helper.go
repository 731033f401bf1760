package cache

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"sync"

	"github.com/starford/travelogue/internal/apperr"
	"github.com/starford/travelogue/internal/metrics"
)

type opKind string

const (
	opAdd         opKind = "add"
	opAddField    opKind = "add_field"
	opAddAll      opKind = "add_all"
	opRemove      opKind = "remove"
	opRemoveField opKind = "remove_field"
)

// action is a mutation recorded before the provider connected.
type action struct {
	op     opKind
	key    string
	field  string
	value  string
	values map[string]string
	keys   []string
}

func (a action) apply(ctx context.Context, p Provider) error {
	switch a.op {
	case opAdd:
		return p.Add(ctx, a.key, a.value)
	case opAddField:
		return p.AddField(ctx, a.key, a.field, a.value)
	case opAddAll:
		return p.AddAll(ctx, a.key, a.values)
	case opRemove:
		_, err := p.Remove(ctx, a.keys...)
		return err
	case opRemoveField:
		_, err := p.RemoveField(ctx, a.key, a.field)
		return err
	}
	return fmt.Errorf("cache: unknown action %q", a.op)
}

// HelperOption configures a Helper.
type HelperOption func(*Helper)

// WithFallback sets the constructor for the provider used after the
// wrapped provider breaks. The default is an in-memory provider.
func WithFallback(fn func() Provider) HelperOption {
	return func(h *Helper) {
		h.fallback = fn
	}
}

// Helper wraps a Provider and hides its connection state.
//
// Mutations issued before the provider reports EventConnected are
// forwarded (the provider buffers them itself) and also recorded. On
// EventConnected the record is dropped. On EventBroken the Helper swaps to
// the fallback provider for the rest of the process and replays the record
// against it in the original order.
//
// The record is kept only for that replay: a live provider queues its own
// writes until it connects, so nothing is applied twice.
type Helper struct {
	logger   *slog.Logger
	fallback func() Provider

	mu         sync.Mutex
	original   Provider
	provider   Provider
	connected  bool
	failedOver bool
	pending    []action

	stop     chan struct{}
	stopOnce sync.Once
	watching sync.WaitGroup
}

// NewHelper wraps p and starts watching its lifecycle events.
func NewHelper(p Provider, logger *slog.Logger, opts ...HelperOption) *Helper {
	h := &Helper{
		logger:   logger,
		original: p,
		provider: p,
		stop:     make(chan struct{}),
		fallback: func() Provider { return NewMemory(0, 0) },
	}
	for _, opt := range opts {
		opt(h)
	}
	h.watching.Add(1)
	go h.watch(p.Events())
	return h
}

func (h *Helper) watch(events <-chan Event) {
	defer h.watching.Done()
	for {
		select {
		case <-h.stop:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			switch ev.Kind {
			case EventConnected:
				h.onConnected()
			case EventBroken:
				h.onBroken(ev.Err)
				return
			}
		}
	}
}

func (h *Helper) onConnected() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.failedOver {
		return
	}
	h.connected = true
	h.logger.Info("cache: provider connected", slog.Int("dropped_pending", len(h.pending)))
	h.pending = nil
}

func (h *Helper) onBroken(cause error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.failedOver {
		return
	}
	msg := "unknown"
	if cause != nil {
		msg = cause.Error()
	}
	h.logger.Error("cache: provider broken, switching to in-memory cache",
		slog.String("error", msg),
		slog.Int("pending", len(h.pending)))

	mem := h.fallback()
	ctx := context.Background()
	for _, a := range h.pending {
		if err := a.apply(ctx, mem); err != nil {
			h.logger.Error("cache: replay failed", slog.String("op", string(a.op)), slog.String("key", a.key), slog.String("error", err.Error()))
		}
	}
	metrics.CacheFailovers.Inc()
	metrics.CacheReplayedWrites.Add(float64(len(h.pending)))

	h.pending = nil
	h.provider = mem
	h.failedOver = true
	h.connected = true
}

// current returns the provider calls should go to.
func (h *Helper) current() Provider {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.provider
}

// mutate forwards a and records it while the provider is not yet connected.
func (h *Helper) mutate(a action, fn func(Provider) error) error {
	h.mu.Lock()
	p := h.provider
	queued := !h.connected
	if queued {
		h.pending = append(h.pending, a)
	}
	h.mu.Unlock()

	err := fn(p)
	if err != nil && queued {
		h.logger.Debug("cache: write before connect deferred",
			slog.String("op", string(a.op)),
			slog.String("key", a.key),
			slog.String("error", err.Error()))
		return nil
	}
	return err
}

// Connected reports whether calls reach a live provider.
func (h *Helper) Connected() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.connected
}

// FailedOver reports whether the in-memory fallback is in use.
func (h *Helper) FailedOver() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.failedOver
}

// Pending returns the number of recorded pre-connect writes.
func (h *Helper) Pending() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.pending)
}

func (h *Helper) Get(ctx context.Context, key string) (string, bool, error) {
	return h.current().Get(ctx, key)
}

func (h *Helper) GetField(ctx context.Context, key, field string) (string, bool, error) {
	return h.current().GetField(ctx, key, field)
}

func (h *Helper) GetAll(ctx context.Context, key string) (map[string]string, error) {
	return h.current().GetAll(ctx, key)
}

func (h *Helper) Exists(ctx context.Context, key string) (bool, error) {
	return h.current().Exists(ctx, key)
}

func (h *Helper) ExistsField(ctx context.Context, key, field string) (bool, error) {
	return h.current().ExistsField(ctx, key, field)
}

func (h *Helper) Add(ctx context.Context, key, value string) error {
	a := action{op: opAdd, key: key, value: value}
	return h.mutate(a, func(p Provider) error { return p.Add(ctx, key, value) })
}

func (h *Helper) AddField(ctx context.Context, key, field, value string) error {
	a := action{op: opAddField, key: key, field: field, value: value}
	return h.mutate(a, func(p Provider) error { return p.AddField(ctx, key, field, value) })
}

// AddAll copies values so later changes by the caller do not leak into
// a recorded action.
func (h *Helper) AddAll(ctx context.Context, key string, values map[string]string) error {
	values = maps.Clone(values)
	a := action{op: opAddAll, key: key, values: values}
	return h.mutate(a, func(p Provider) error { return p.AddAll(ctx, key, values) })
}

// Remove deletes whole keys. An empty key list or an empty key is
// rejected without contacting the provider.
func (h *Helper) Remove(ctx context.Context, keys ...string) (bool, error) {
	if len(keys) == 0 {
		h.logger.Error("cache: remove called without keys")
		return false, apperr.ErrInvalidKey
	}
	for _, k := range keys {
		if k == "" {
			h.logger.Error("cache: remove called with empty key", slog.Any("keys", keys))
			return false, apperr.ErrInvalidKey
		}
	}
	keys = append([]string(nil), keys...)
	var removed bool
	err := h.mutate(action{op: opRemove, keys: keys}, func(p Provider) error {
		var err error
		removed, err = p.Remove(ctx, keys...)
		return err
	})
	return removed, err
}

// RemoveField deletes one hash field. An empty key or field is rejected
// without contacting the provider.
func (h *Helper) RemoveField(ctx context.Context, key, field string) (bool, error) {
	if key == "" || field == "" {
		h.logger.Error("cache: remove field called with empty argument",
			slog.String("key", key),
			slog.String("field", field))
		return false, apperr.ErrInvalidKey
	}
	var removed bool
	err := h.mutate(action{op: opRemoveField, key: key, field: field}, func(p Provider) error {
		var err error
		removed, err = p.RemoveField(ctx, key, field)
		return err
	})
	return removed, err
}

// Close stops event watching and closes every provider the helper used.
func (h *Helper) Close() error {
	h.stopOnce.Do(func() { close(h.stop) })
	h.watching.Wait()

	h.mu.Lock()
	defer h.mu.Unlock()
	err := h.original.Close()
	if h.provider != h.original {
		if cerr := h.provider.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
