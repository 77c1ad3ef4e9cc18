// Package sqlitestore adapts the teacher's sqlite connection actor
// (internal/svc/sqlite/sqlite_service.go's connect/query/exec/begin/
// commit/rollback/close protocol) from a mailbox protocol into direct Go
// method calls implementing the storage.Storage contract.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"mycelia/internal/storage"
)

// Store is a storage.Storage backed by a single sqlite database file. Each
// namespace becomes a table with a text primary key and a JSON blob column,
// so the generic Record/filter vocabulary never needs per-namespace schema
// migrations the way the teacher's connection actor left entirely to the
// caller's raw SQL.
type Store struct {
	db *sqlx.DB
}

// Open mirrors the teacher's "connect" message: a bare DSN in, a live
// connection out.
func Open(dsn string) (*Store, error) {
	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: open %s: %w", dsn, err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("sqlitestore: ping %s: %w", dsn, err)
	}
	return &Store{db: db}, nil
}

func tableName(namespace string) string { return "ns_" + namespace }

func (s *Store) ensureTable(ctx context.Context, namespace string) error {
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s (key TEXT PRIMARY KEY, data TEXT NOT NULL)`, tableName(namespace)))
	return err
}

func (s *Store) Get(ctx context.Context, namespace, key string) (storage.Record, error) {
	if err := s.ensureTable(ctx, namespace); err != nil {
		return nil, err
	}
	var data string
	err := s.db.GetContext(ctx, &data,
		fmt.Sprintf(`SELECT data FROM %s WHERE key = ?`, tableName(namespace)), key)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("sqlitestore: %s/%s: %w", namespace, key, sql.ErrNoRows)
	}
	if err != nil {
		return nil, err
	}
	return decodeRecord(data)
}

func (s *Store) Put(ctx context.Context, namespace, key string, record storage.Record) error {
	if err := s.ensureTable(ctx, namespace); err != nil {
		return err
	}
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (key, data) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET data = excluded.data`, tableName(namespace)), key, string(data))
	return err
}

func (s *Store) Delete(ctx context.Context, namespace, key string) error {
	if err := s.ensureTable(ctx, namespace); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE key = ?`, tableName(namespace)), key)
	return err
}

// Query scans every row in namespace and keeps the ones matching filter by
// equality on each field present in filter — an in-memory scan, as the
// contract's doc comment allows, since filter semantics are deliberately
// not SQL.
func (s *Store) Query(ctx context.Context, namespace string, filter storage.Record) ([]storage.Record, error) {
	if err := s.ensureTable(ctx, namespace); err != nil {
		return nil, err
	}
	var rows []string
	if err := s.db.SelectContext(ctx, &rows, fmt.Sprintf(`SELECT data FROM %s`, tableName(namespace))); err != nil {
		return nil, err
	}
	out := make([]storage.Record, 0, len(rows))
	for _, raw := range rows {
		rec, err := decodeRecord(raw)
		if err != nil {
			return nil, err
		}
		if matches(rec, filter) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *Store) Namespaces(ctx context.Context) ([]string, error) {
	var names []string
	err := s.db.SelectContext(ctx, &names,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name LIKE 'ns_%'`)
	if err != nil {
		return nil, err
	}
	for i, n := range names {
		names[i] = n[len("ns_"):]
	}
	return names, nil
}

// Transaction mirrors the teacher's begin/commit-or-rollback pairing,
// wrapping sqlx.Tx in a nested Store so fn sees the same Storage interface.
func (s *Store) Transaction(ctx context.Context, fn storage.TxFunc) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	txStore := &txStore{tx: tx}
	if err := fn(ctx, txStore); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *Store) Close() error { return s.db.Close() }

func decodeRecord(raw string) (storage.Record, error) {
	var rec storage.Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func matches(rec, filter storage.Record) bool {
	for k, v := range filter {
		if rec[k] != v {
			return false
		}
	}
	return true
}

// txStore scopes Get/Put/Delete/Query to one in-flight sqlx.Tx; nested
// Transaction calls and Close are refused since a transaction is not its
// own connection to tear down.
type txStore struct {
	tx *sqlx.Tx
}

func (t *txStore) ensureTable(ctx context.Context, namespace string) error {
	_, err := t.tx.ExecContext(ctx, fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s (key TEXT PRIMARY KEY, data TEXT NOT NULL)`, tableName(namespace)))
	return err
}

func (t *txStore) Get(ctx context.Context, namespace, key string) (storage.Record, error) {
	if err := t.ensureTable(ctx, namespace); err != nil {
		return nil, err
	}
	var data string
	err := t.tx.GetContext(ctx, &data, fmt.Sprintf(`SELECT data FROM %s WHERE key = ?`, tableName(namespace)), key)
	if err != nil {
		return nil, err
	}
	return decodeRecord(data)
}

func (t *txStore) Put(ctx context.Context, namespace, key string, record storage.Record) error {
	if err := t.ensureTable(ctx, namespace); err != nil {
		return err
	}
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	_, err = t.tx.ExecContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (key, data) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET data = excluded.data`, tableName(namespace)), key, string(data))
	return err
}

func (t *txStore) Delete(ctx context.Context, namespace, key string) error {
	if err := t.ensureTable(ctx, namespace); err != nil {
		return err
	}
	_, err := t.tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE key = ?`, tableName(namespace)), key)
	return err
}

func (t *txStore) Query(ctx context.Context, namespace string, filter storage.Record) ([]storage.Record, error) {
	if err := t.ensureTable(ctx, namespace); err != nil {
		return nil, err
	}
	var rows []string
	if err := t.tx.SelectContext(ctx, &rows, fmt.Sprintf(`SELECT data FROM %s`, tableName(namespace))); err != nil {
		return nil, err
	}
	out := make([]storage.Record, 0, len(rows))
	for _, raw := range rows {
		rec, err := decodeRecord(raw)
		if err != nil {
			return nil, err
		}
		if matches(rec, filter) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (t *txStore) Namespaces(context.Context) ([]string, error) {
	return nil, fmt.Errorf("sqlitestore: Namespaces unavailable within a transaction")
}

func (t *txStore) Transaction(context.Context, storage.TxFunc) error {
	return fmt.Errorf("sqlitestore: nested transactions unsupported")
}

func (t *txStore) Close() error { return fmt.Errorf("sqlitestore: Close unavailable within a transaction") }
