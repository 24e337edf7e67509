package boltstore

import (
	bolt "go.etcd.io/bbolt"

	"github.com/latticedb/lattice/corebase"
	"github.com/latticedb/lattice/lerr"
)

func boltBucketNotFound(name string) error {
	return lerr.New(lerr.KindNotFound, "boltstore: bucket not found: "+name)
}

// rawTx adapts a bbolt transaction to corebase.RawTx.
type rawTx struct {
	tx       *bolt.Tx
	writable bool
}

func (t *rawTx) Writable() bool { return t.writable }

func (t *rawTx) Bucket(table string) (corebase.RawBucket, error) {
	b := t.tx.Bucket([]byte(table))
	if b == nil {
		return nil, boltBucketNotFound(table)
	}
	return &rawBucket{b: b}, nil
}

func (t *rawTx) IndexBucket(table, index string) (corebase.RawBucket, error) {
	tb := t.tx.Bucket([]byte(table))
	if tb == nil {
		return nil, boltBucketNotFound(table)
	}
	indexes := tb.Bucket([]byte(indexesBucket))
	if indexes == nil {
		return nil, boltBucketNotFound(table + "." + indexesBucket)
	}
	ib := indexes.Bucket([]byte(index))
	if ib == nil {
		return nil, boltBucketNotFound(table + "." + index)
	}
	return &rawBucket{b: ib}, nil
}

func (t *rawTx) Commit() error   { return t.tx.Commit() }
func (t *rawTx) Rollback() error { return t.tx.Rollback() }

// rawBucket adapts a bbolt bucket to corebase.RawBucket.
type rawBucket struct {
	b *bolt.Bucket
}

func (rb *rawBucket) Get(key []byte) ([]byte, bool, error) {
	v := rb.b.Get(key)
	if v == nil {
		return nil, false, nil
	}
	// bbolt's Get returns a slice valid only for the transaction's
	// lifetime; copy it out before it outlives the cursor/transaction.
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

func (rb *rawBucket) Put(key, value []byte) error {
	return rb.b.Put(key, value)
}

func (rb *rawBucket) Delete(key []byte) error {
	return rb.b.Delete(key)
}

func (rb *rawBucket) NextSequence() (uint64, error) {
	return rb.b.NextSequence()
}

func (rb *rawBucket) Cursor(reverse bool) (corebase.RawCursor, error) {
	return &rawCursor{c: rb.b.Cursor(), reverse: reverse}, nil
}

// rawCursor adapts a bbolt cursor to corebase.RawCursor, tracking the
// current (key, value) pair since bbolt's Cursor doesn't expose a
// stand-alone Valid() check beyond "last call returned a nil key".
type rawCursor struct {
	c       *bolt.Cursor
	reverse bool
	key     []byte
	val     []byte
}

func (rc *rawCursor) set(k, v []byte) bool {
	rc.key, rc.val = k, v
	return k != nil
}

func (rc *rawCursor) Seek(target []byte) bool {
	k, v := rc.c.Seek(target)
	if rc.reverse {
		// bbolt's Seek lands at the first key >= target; a reverse scan
		// wants <= target, so step back one when it overshot.
		if k == nil {
			return rc.set(rc.c.Last())
		}
		if string(k) != string(target) {
			k, v = rc.c.Prev()
		}
	}
	return rc.set(k, v)
}

func (rc *rawCursor) First() bool { return rc.set(rc.c.First()) }
func (rc *rawCursor) Last() bool  { return rc.set(rc.c.Last()) }

// Next/Prev keep their absolute (ascending/descending) meaning regardless
// of the scan's reverse flag; corebase's iterator is the one that decides
// which of the two to call for "advance in the scan direction".
func (rc *rawCursor) Next() bool { return rc.set(rc.c.Next()) }
func (rc *rawCursor) Prev() bool { return rc.set(rc.c.Prev()) }

func (rc *rawCursor) Valid() bool  { return rc.key != nil }
func (rc *rawCursor) Key() []byte  { return rc.key }
func (rc *rawCursor) Value() []byte { return rc.val }
func (rc *rawCursor) Close() error { return nil }
