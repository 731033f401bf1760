package cache

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/viccon/sturdyc"
)

const (
	defaultMemoryCapacity = 10000
	defaultMemoryTTL      = 30 * 24 * time.Hour
	memoryShards          = 16
	memoryEvictPercent    = 10
)

type memoryEntry struct {
	value  string
	plain  bool
	fields map[string]string
}

// Memory is an in-process Provider backed by sturdyc. Stored field maps
// are never mutated in place; writers replace them.
type Memory struct {
	mu     sync.Mutex
	client *sturdyc.Client[memoryEntry]
	events chan Event
}

// NewMemory creates an in-memory provider. Zero values select defaults.
func NewMemory(capacity int, ttl time.Duration) *Memory {
	if capacity <= 0 {
		capacity = defaultMemoryCapacity
	}
	if ttl <= 0 {
		ttl = defaultMemoryTTL
	}
	return &Memory{
		client: sturdyc.New[memoryEntry](capacity, memoryShards, ttl, memoryEvictPercent),
		events: connectedEvents(),
	}
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	e, ok := m.client.Get(key)
	if !ok || !e.plain {
		return "", false, nil
	}
	return e.value, true, nil
}

func (m *Memory) GetField(_ context.Context, key, field string) (string, bool, error) {
	e, ok := m.client.Get(key)
	if !ok || e.plain {
		return "", false, nil
	}
	v, ok := e.fields[field]
	return v, ok, nil
}

func (m *Memory) GetAll(_ context.Context, key string) (map[string]string, error) {
	e, ok := m.client.Get(key)
	if !ok || e.plain || len(e.fields) == 0 {
		return nil, nil
	}
	return maps.Clone(e.fields), nil
}

func (m *Memory) Add(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.client.Set(key, memoryEntry{value: value, plain: true})
	return nil
}

func (m *Memory) AddField(ctx context.Context, key, field, value string) error {
	return m.AddAll(ctx, key, map[string]string{field: value})
}

func (m *Memory) AddAll(_ context.Context, key string, values map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	fields := make(map[string]string, len(values))
	if e, ok := m.client.Get(key); ok && !e.plain {
		maps.Copy(fields, e.fields)
	}
	maps.Copy(fields, values)
	m.client.Set(key, memoryEntry{fields: fields})
	return nil
}

func (m *Memory) Remove(_ context.Context, keys ...string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := false
	for _, key := range keys {
		if _, ok := m.client.Get(key); ok {
			m.client.Delete(key)
			removed = true
		}
	}
	return removed, nil
}

func (m *Memory) RemoveField(_ context.Context, key, field string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.client.Get(key)
	if !ok || e.plain {
		return false, nil
	}
	if _, ok := e.fields[field]; !ok {
		return false, nil
	}
	fields := maps.Clone(e.fields)
	delete(fields, field)
	if len(fields) == 0 {
		m.client.Delete(key)
		return true, nil
	}
	m.client.Set(key, memoryEntry{fields: fields})
	return true, nil
}

func (m *Memory) Exists(_ context.Context, key string) (bool, error) {
	_, ok := m.client.Get(key)
	return ok, nil
}

func (m *Memory) ExistsField(_ context.Context, key, field string) (bool, error) {
	e, ok := m.client.Get(key)
	if !ok || e.plain {
		return false, nil
	}
	_, ok = e.fields[field]
	return ok, nil
}

func (m *Memory) Events() <-chan Event { return m.events }

// Len returns the number of stored keys.
func (m *Memory) Len() int {
	return m.client.Size()
}

func (m *Memory) Close() error { return nil }
