// Package keystore provides the typed key-value operations the state mirror
// performs against its backing store: entity snapshots under composite keys
// plus one index set per entity kind for enumeration and cascading deletion.
package keystore

import "context"

// Store is the contract the cache synchronizers and the shard coordinator
// share. Absence of a key is reported as ok=false, never as an error; the
// mirror treats "not cached" as a normal state.
type Store interface {
	// Get retrieves the raw snapshot stored under key.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	// Set stores a snapshot, overwriting any prior value.
	Set(ctx context.Context, key string, value []byte) error
	// Delete removes a key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// AddIndex records a composite key as live in an index set.
	AddIndex(ctx context.Context, indexKey, member string) error
	// RemoveIndex drops a composite key from an index set.
	RemoveIndex(ctx context.Context, indexKey, member string) error
	// ScanIndex enumerates every member of an index set using a cursor with
	// the given batch size, so large sets never require one blocking read.
	ScanIndex(ctx context.Context, indexKey string, batchSize int64) ([]string, error)
	// IndexSize reports the cardinality of an index set.
	IndexSize(ctx context.Context, indexKey string) (int64, error)
}
