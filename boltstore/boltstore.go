// Package boltstore is the bbolt-backed storeapi.Store: one top-level
// bucket per table, holding the record keyspace directly, plus one nested
// sub-bucket per secondary index under a reserved "__indexes__" bucket.
// bbolt's own Cursor already walks keys in byte order and supports Seek,
// so corebase.RawCursor maps onto it almost directly — the same way the
// upstream base.Driver lets each SQL dialect driver be a thin adapter over
// a shared engine.
package boltstore

import (
	"context"
	"os"

	bolt "go.etcd.io/bbolt"

	"github.com/latticedb/lattice/corebase"
	"github.com/latticedb/lattice/lerr"
	"github.com/latticedb/lattice/schema"
	"github.com/latticedb/lattice/storeapi"
)

const indexesBucket = "__indexes__"

func init() {
	storeapi.Register("bolt", Open)
}

// boltStore is the RawStore bbolt implementation; corebase.Store wraps it.
type boltStore struct {
	db   *bolt.DB
	path string
}

// Open opens (creating if absent) a bbolt database at path and returns a
// ready storeapi.Store.
func Open(path string) (storeapi.Store, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, lerr.Wrap(lerr.KindOpenFailed, "boltstore: open failed", err)
	}
	return corebase.NewStore(&boltStore{db: db, path: path}), nil
}

func (s *boltStore) Capabilities() storeapi.Capabilities {
	return storeapi.Capabilities{BulkGetRange: true, EarlyCommit: true, Durability: true}
}

func (s *boltStore) Close() error { return s.db.Close() }

func (s *boltStore) Delete() error {
	if err := s.db.Close(); err != nil {
		return err
	}
	return os.Remove(s.path)
}

// ApplyRawSchema materializes an AddTable/DeleteTable/AddIndex/DeleteIndex
// diff: creating or removing the table's top-level bucket and its index
// sub-buckets. ChangePrimaryKey is handled like AddTable: it only ensures
// the table bucket and its index sub-buckets exist; records already
// stored under the old primary key are left in place.
func (s *boltStore) ApplyRawSchema(ctx context.Context, changes []schema.Change, full schema.DatabaseSchema) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, ch := range changes {
			switch ch.Type {
			case schema.AddTable, schema.ChangePrimaryKey:
				tb, err := tx.CreateBucketIfNotExists([]byte(ch.TableName))
				if err != nil {
					return err
				}
				if _, err := tb.CreateBucketIfNotExists([]byte(indexesBucket)); err != nil {
					return err
				}
				ts := full[ch.TableName]
				for _, idx := range ts.Indexes {
					if _, err := tb.Bucket([]byte(indexesBucket)).CreateBucketIfNotExists([]byte(idx.Name)); err != nil {
						return err
					}
				}
			case schema.DeleteTable:
				if err := tx.DeleteBucket([]byte(ch.TableName)); err != nil && err != bolt.ErrBucketNotFound {
					return err
				}
			case schema.AddIndex:
				tb := tx.Bucket([]byte(ch.TableName))
				if tb == nil {
					continue
				}
				ib, err := tb.CreateBucketIfNotExists([]byte(indexesBucket))
				if err != nil {
					return err
				}
				if _, err := ib.CreateBucketIfNotExists([]byte(ch.Index.Name)); err != nil {
					return err
				}
			case schema.DeleteIndex:
				tb := tx.Bucket([]byte(ch.TableName))
				if tb == nil {
					continue
				}
				ib := tb.Bucket([]byte(indexesBucket))
				if ib == nil {
					continue
				}
				if err := ib.DeleteBucket([]byte(ch.IndexName)); err != nil && err != bolt.ErrBucketNotFound {
					return err
				}
			}
		}
		return nil
	})
}

func (s *boltStore) BeginRaw(ctx context.Context, writable bool) (corebase.RawTx, error) {
	tx, err := s.db.Begin(writable)
	if err != nil {
		return nil, err
	}
	return &rawTx{tx: tx, writable: writable}, nil
}
