// Package cache defines the key/hash store contract used to persist the
// library, and the Helper that shields callers from connection state.
package cache

import (
	"context"
	"errors"
)

// ErrBroken is returned by a provider that permanently failed to connect.
var ErrBroken = errors.New("cache: provider broken")

// EventKind identifies a provider lifecycle event.
type EventKind int

const (
	// EventConnected fires once the provider is live.
	EventConnected EventKind = iota + 1
	// EventBroken fires when the provider can never become live.
	EventBroken
)

func (k EventKind) String() string {
	switch k {
	case EventConnected:
		return "connected"
	case EventBroken:
		return "broken"
	default:
		return "unknown"
	}
}

// Event is a provider lifecycle notification.
type Event struct {
	Kind EventKind
	Err  error
}

// Provider is a key/value store where a key holds either a plain value or
// a hash of fields. Lookups of absent keys and fields are not errors.
type Provider interface {
	// Get returns the plain value stored at key.
	Get(ctx context.Context, key string) (string, bool, error)
	// GetField returns one hash field.
	GetField(ctx context.Context, key, field string) (string, bool, error)
	// GetAll returns every field of the hash at key, or nil when absent.
	GetAll(ctx context.Context, key string) (map[string]string, error)

	// Add replaces whatever is stored at key with a plain value.
	Add(ctx context.Context, key, value string) error
	// AddField upserts one hash field.
	AddField(ctx context.Context, key, field, value string) error
	// AddAll upserts many hash fields at once.
	AddAll(ctx context.Context, key string, values map[string]string) error

	// Remove deletes whole keys and reports whether anything was removed.
	Remove(ctx context.Context, keys ...string) (bool, error)
	// RemoveField deletes one hash field.
	RemoveField(ctx context.Context, key, field string) (bool, error)

	Exists(ctx context.Context, key string) (bool, error)
	ExistsField(ctx context.Context, key, field string) (bool, error)

	// Events delivers lifecycle notifications. Each kind is sent at most once.
	Events() <-chan Event
	Close() error
}

// connectedEvents returns an event channel that already reports a live provider.
func connectedEvents() chan Event {
	ch := make(chan Event, 1)
	ch <- Event{Kind: EventConnected}
	return ch
}
