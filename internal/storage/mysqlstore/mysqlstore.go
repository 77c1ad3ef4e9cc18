// Package mysqlstore adapts the teacher's mysql connection actor
// (internal/svc/mysql/mysql_service.go's connect/query/exec/begin/commit/
// rollback/close protocol) from a mailbox protocol into direct Go method
// calls implementing the storage.Storage contract.
package mysqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"mycelia/internal/storage"
)

// Store is a storage.Storage backed by a MySQL database; layout and
// semantics mirror sqlitestore.Store (one table per namespace, JSON blob
// records, in-memory filter scan) — the two backends are adapted from
// sibling teacher files and intentionally share shape.
type Store struct {
	db *sqlx.DB
}

func Open(dsn string) (*Store, error) {
	db, err := sqlx.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("mysqlstore: open: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("mysqlstore: ping: %w", err)
	}
	return &Store{db: db}, nil
}

func tableName(namespace string) string { return "ns_" + namespace }

func (s *Store) ensureTable(ctx context.Context, namespace string) error {
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s (
			`+"`key`"+` VARCHAR(255) PRIMARY KEY,
			data LONGTEXT NOT NULL
		)`, tableName(namespace)))
	return err
}

func (s *Store) Get(ctx context.Context, namespace, key string) (storage.Record, error) {
	if err := s.ensureTable(ctx, namespace); err != nil {
		return nil, err
	}
	var data string
	err := s.db.GetContext(ctx, &data,
		fmt.Sprintf("SELECT data FROM %s WHERE `key` = ?", tableName(namespace)), key)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("mysqlstore: %s/%s: %w", namespace, key, sql.ErrNoRows)
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
		"INSERT INTO %s (`key`, data) VALUES (?, ?) ON DUPLICATE KEY UPDATE data = VALUES(data)",
		tableName(namespace)), key, string(data))
	return err
}

func (s *Store) Delete(ctx context.Context, namespace, key string) error {
	if err := s.ensureTable(ctx, namespace); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE `key` = ?", tableName(namespace)), key)
	return err
}

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
		`SELECT table_name FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name LIKE 'ns\_%' ESCAPE '\\'`)
	if err != nil {
		return nil, err
	}
	for i, n := range names {
		names[i] = n[len("ns_"):]
	}
	return names, nil
}

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

type txStore struct {
	tx *sqlx.Tx
}

func (t *txStore) ensureTable(ctx context.Context, namespace string) error {
	_, err := t.tx.ExecContext(ctx, fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (`key` VARCHAR(255) PRIMARY KEY, data LONGTEXT NOT NULL)", tableName(namespace)))
	return err
}

func (t *txStore) Get(ctx context.Context, namespace, key string) (storage.Record, error) {
	if err := t.ensureTable(ctx, namespace); err != nil {
		return nil, err
	}
	var data string
	err := t.tx.GetContext(ctx, &data, fmt.Sprintf("SELECT data FROM %s WHERE `key` = ?", tableName(namespace)), key)
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
		"INSERT INTO %s (`key`, data) VALUES (?, ?) ON DUPLICATE KEY UPDATE data = VALUES(data)",
		tableName(namespace)), key, string(data))
	return err
}

func (t *txStore) Delete(ctx context.Context, namespace, key string) error {
	if err := t.ensureTable(ctx, namespace); err != nil {
		return err
	}
	_, err := t.tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE `key` = ?", tableName(namespace)), key)
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
	return nil, fmt.Errorf("mysqlstore: Namespaces unavailable within a transaction")
}

func (t *txStore) Transaction(context.Context, storage.TxFunc) error {
	return fmt.Errorf("mysqlstore: nested transactions unsupported")
}

func (t *txStore) Close() error { return fmt.Errorf("mysqlstore: Close unavailable within a transaction") }
