// Package storage defines the Storage contract the kernel's core treats as
// an external, abstract collaborator (§4.17): the core never imports a
// concrete backend, only this interface. Concrete backends live in
// sibling packages (sqlitestore, mysqlstore).
package storage

import "context"

// Record is a loosely-typed row: column name to Go value, the same shape
// sqlx.MapScan produces and the shape callers building on the Storage
// contract should expect back from Query.
type Record map[string]any

// TxFunc runs within a Transaction; returning an error rolls the
// transaction back, returning nil commits it.
type TxFunc func(ctx context.Context, tx Storage) error

// Storage is the CRUD+namespace+query+transaction contract every concrete
// backend implements. It is deliberately storage-agnostic: no SQL leaks
// through the interface, only namespace/key/record vocabulary, so a
// non-relational backend could implement it just as well as sqlite/mysql.
type Storage interface {
	// Get fetches one record by key within namespace.
	Get(ctx context.Context, namespace, key string) (Record, error)
	// Put upserts a record by key within namespace.
	Put(ctx context.Context, namespace, key string, record Record) error
	// Delete removes a record by key within namespace.
	Delete(ctx context.Context, namespace, key string) error
	// Query returns every record in namespace matching filter (an
	// equality-only filter on record fields; backends may translate this
	// into a WHERE clause or an in-memory scan).
	Query(ctx context.Context, namespace string, filter Record) ([]Record, error)
	// Namespaces lists every known namespace (table/collection) the backend
	// currently holds.
	Namespaces(ctx context.Context) ([]string, error)
	// Transaction runs fn against a Storage scoped to one transaction.
	Transaction(ctx context.Context, fn TxFunc) error
	// Close releases any underlying connection/handle.
	Close() error
}
