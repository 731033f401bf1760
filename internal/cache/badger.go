package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// Key prefixes for BadgerDB storage.
const (
	plainPrefix = "v\x00"
	hashPrefix  = "h\x00"
)

// InMemoryPath opens a Badger provider without touching disk.
const InMemoryPath = ":memory:"

// Badger is a Provider persisted in a BadgerDB directory.
type Badger struct {
	db     *badger.DB
	events chan Event
}

// OpenBadger opens the database at dir. InMemoryPath keeps data in RAM.
func OpenBadger(_ context.Context, dir string) (*Badger, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == InMemoryPath {
		opts = badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("cache: open badger: %w", err)
	}
	return &Badger{db: db, events: connectedEvents()}, nil
}

func plainKey(key string) []byte { return []byte(plainPrefix + key) }

func fieldPrefix(key string) []byte { return []byte(hashPrefix + key + "\x00") }

func fieldKey(key, field string) []byte { return append(fieldPrefix(key), field...) }

func (b *Badger) Get(_ context.Context, key string) (string, bool, error) {
	return b.read(plainKey(key))
}

func (b *Badger) GetField(_ context.Context, key, field string) (string, bool, error) {
	return b.read(fieldKey(key, field))
}

func (b *Badger) read(k []byte) (string, bool, error) {
	var out []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(k)
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("cache: badger get: %w", err)
	}
	return string(out), true, nil
}

func (b *Badger) GetAll(_ context.Context, key string) (map[string]string, error) {
	prefix := fieldPrefix(key)
	var out map[string]string
	err := b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			v, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if out == nil {
				out = make(map[string]string)
			}
			out[string(item.Key()[len(prefix):])] = string(v)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("cache: badger get all: %w", err)
	}
	return out, nil
}

func (b *Badger) Add(_ context.Context, key, value string) error {
	return b.db.Update(func(txn *badger.Txn) error {
		if err := deleteFields(txn, key); err != nil {
			return err
		}
		return txn.Set(plainKey(key), []byte(value))
	})
}

func (b *Badger) AddField(ctx context.Context, key, field, value string) error {
	return b.AddAll(ctx, key, map[string]string{field: value})
}

func (b *Badger) AddAll(_ context.Context, key string, values map[string]string) error {
	return b.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(plainKey(key)); err != nil {
			return err
		}
		for f, v := range values {
			if err := txn.Set(fieldKey(key, f), []byte(v)); err != nil {
				return fmt.Errorf("set field %s: %w", f, err)
			}
		}
		return nil
	})
}

func (b *Badger) Remove(ctx context.Context, keys ...string) (bool, error) {
	removed := false
	for _, key := range keys {
		ok, err := b.Exists(ctx, key)
		if err != nil {
			return removed, err
		}
		if !ok {
			continue
		}
		err = b.db.Update(func(txn *badger.Txn) error {
			if err := txn.Delete(plainKey(key)); err != nil {
				return err
			}
			return deleteFields(txn, key)
		})
		if err != nil {
			return removed, fmt.Errorf("cache: badger remove: %w", err)
		}
		removed = true
	}
	return removed, nil
}

func (b *Badger) RemoveField(ctx context.Context, key, field string) (bool, error) {
	ok, err := b.ExistsField(ctx, key, field)
	if err != nil || !ok {
		return false, err
	}
	err = b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(fieldKey(key, field))
	})
	if err != nil {
		return false, fmt.Errorf("cache: badger remove field: %w", err)
	}
	return true, nil
}

func (b *Badger) Exists(ctx context.Context, key string) (bool, error) {
	if _, ok, err := b.read(plainKey(key)); err != nil || ok {
		return ok, err
	}
	prefix := fieldPrefix(key)
	found := false
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		it.Seek(prefix)
		found = it.ValidForPrefix(prefix)
		return nil
	})
	return found, err
}

func (b *Badger) ExistsField(_ context.Context, key, field string) (bool, error) {
	_, ok, err := b.read(fieldKey(key, field))
	return ok, err
}

func (b *Badger) Events() <-chan Event { return b.events }

// Close closes the underlying database.
func (b *Badger) Close() error {
	return b.db.Close()
}

// deleteFields removes every hash field of key inside txn.
func deleteFields(txn *badger.Txn, key string) error {
	prefix := fieldPrefix(key)
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	var doomed [][]byte
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		doomed = append(doomed, it.Item().KeyCopy(nil))
	}
	it.Close()
	for _, k := range doomed {
		if err := txn.Delete(k); err != nil {
			return err
		}
	}
	return nil
}
