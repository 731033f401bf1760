package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// Plain values live in the row whose field is empty.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS entries (
	key        TEXT NOT NULL,
	field      TEXT NOT NULL DEFAULT '',
	value      TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (key, field)
);
`

// SQLite is a Provider persisted in a SQLite database file.
type SQLite struct {
	conn   *sql.DB
	events chan Event
}

// OpenSQLite opens (or creates) the database and applies the schema.
func OpenSQLite(ctx context.Context, dsn string) (*SQLite, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cache: open sqlite: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("cache: ping sqlite: %w", err)
	}
	if _, err := conn.ExecContext(ctx, schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("cache: apply schema: %w", err)
	}
	return &SQLite{conn: conn, events: connectedEvents()}, nil
}

func (s *SQLite) Get(ctx context.Context, key string) (string, bool, error) {
	return s.value(ctx, key, "")
}

func (s *SQLite) GetField(ctx context.Context, key, field string) (string, bool, error) {
	return s.value(ctx, key, field)
}

func (s *SQLite) value(ctx context.Context, key, field string) (string, bool, error) {
	var v string
	err := s.conn.QueryRowContext(ctx, `SELECT value FROM entries WHERE key = ? AND field = ?`, key, field).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("cache: get %s: %w", key, err)
	}
	return v, true, nil
}

func (s *SQLite) GetAll(ctx context.Context, key string) (map[string]string, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT field, value FROM entries WHERE key = ? AND field <> ''`, key)
	if err != nil {
		return nil, fmt.Errorf("cache: get all %s: %w", key, err)
	}
	defer rows.Close()

	var out map[string]string
	for rows.Next() {
		var f, v string
		if err := rows.Scan(&f, &v); err != nil {
			return nil, err
		}
		if out == nil {
			out = make(map[string]string)
		}
		out[f] = v
	}
	return out, rows.Err()
}

func (s *SQLite) Add(ctx context.Context, key, value string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM entries WHERE key = ?`, key); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO entries (key, field, value) VALUES (?, '', ?)`, key, value)
		return err
	})
}

func (s *SQLite) AddField(ctx context.Context, key, field, value string) error {
	return s.AddAll(ctx, key, map[string]string{field: value})
}

func (s *SQLite) AddAll(ctx context.Context, key string, values map[string]string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		// A hash write replaces a plain value at the same key.
		if _, err := tx.ExecContext(ctx, `DELETE FROM entries WHERE key = ? AND field = ''`, key); err != nil {
			return err
		}
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO entries (key, field, value, updated_at)
			VALUES (?, ?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT(key, field) DO UPDATE SET
				value      = excluded.value,
				updated_at = excluded.updated_at
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for f, v := range values {
			if _, err := stmt.ExecContext(ctx, key, f, v); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SQLite) Remove(ctx context.Context, keys ...string) (bool, error) {
	if len(keys) == 0 {
		return false, nil
	}
	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = k
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(keys)), ",")
	res, err := s.conn.ExecContext(ctx, `DELETE FROM entries WHERE key IN (`+placeholders+`)`, args...)
	if err != nil {
		return false, fmt.Errorf("cache: remove: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *SQLite) RemoveField(ctx context.Context, key, field string) (bool, error) {
	res, err := s.conn.ExecContext(ctx, `DELETE FROM entries WHERE key = ? AND field = ?`, key, field)
	if err != nil {
		return false, fmt.Errorf("cache: remove field: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *SQLite) Exists(ctx context.Context, key string) (bool, error) {
	var one int
	err := s.conn.QueryRowContext(ctx, `SELECT 1 FROM entries WHERE key = ? LIMIT 1`, key).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache: exists %s: %w", key, err)
	}
	return true, nil
}

func (s *SQLite) ExistsField(ctx context.Context, key, field string) (bool, error) {
	_, ok, err := s.value(ctx, key, field)
	return ok, err
}

func (s *SQLite) Events() <-chan Event { return s.events }

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.conn.Close()
}

func (s *SQLite) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("cache: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if err := fn(tx); err != nil {
		return fmt.Errorf("cache: write: %w", err)
	}
	return tx.Commit()
}
