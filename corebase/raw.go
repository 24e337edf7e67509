// Package corebase provides the storage-agnostic execution engine shared
// by every storeapi.Store backend: the §4.3 AnyOf/NotEqual/cursor-loop
// rules (every query walks a cursor; there is no bulk fast path), auto-increment bookkeeping, and unique-constraint
// enforcement. Concrete backends (boltstore, sqlitestore) only need to
// supply RawTx — ordered byte-keyed buckets with a seekable cursor — and
// get the rest of the Core Store Adapter contract for free, the way the
// upstream base.Driver gives every SQL driver a shared implementation of
// the operations that don't vary per dialect.
package corebase

// RawCursor walks one bucket's keys in byte order.
type RawCursor interface {
	// Seek positions the cursor at the first key >= target (forward) or
	// <= target (reverse); it reports whether a key under the cursor
	// exists after the seek.
	Seek(target []byte) bool
	First() bool
	Last() bool
	Next() bool
	Prev() bool
	Valid() bool
	Key() []byte
	Value() []byte
	Close() error
}

// RawBucket is one ordered keyspace: a table's primary store, or one of
// its index buckets.
type RawBucket interface {
	Get(key []byte) ([]byte, bool, error)
	Put(key, value []byte) error
	Delete(key []byte) error
	Cursor(reverse bool) (RawCursor, error)
	// NextSequence returns a monotonically increasing integer, for
	// auto-increment primary keys. Only called on primary buckets whose
	// IndexSpec.AutoIncrement is set.
	NextSequence() (uint64, error)
}

// RawTx is the minimal per-backend surface corebase drives. table is the
// primary keyspace; index (possibly "") is a secondary index's keyspace,
// keyed by the order-preserving encoding of the index value concatenated
// with the encoded primary key (so duplicates sort next to each other and
// still resolve to a unique raw key).
type RawTx interface {
	Writable() bool
	Bucket(table string) (RawBucket, error)
	IndexBucket(table, index string) (RawBucket, error)
	Commit() error
	Rollback() error
}
