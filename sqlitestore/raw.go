package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/latticedb/lattice/corebase"
)

type rawTx struct {
	ctx      context.Context
	tx       *sql.Tx
	writable bool
}

func (t *rawTx) Writable() bool { return t.writable }

func (t *rawTx) Bucket(table string) (corebase.RawBucket, error) {
	name, err := sanitizeTableRef(tableName(table))
	if err != nil {
		return nil, err
	}
	return &rawBucket{ctx: t.ctx, tx: t.tx, table: name}, nil
}

func (t *rawTx) IndexBucket(table, index string) (corebase.RawBucket, error) {
	name, err := sanitizeTableRef(indexTableName(table, index))
	if err != nil {
		return nil, err
	}
	return &rawBucket{ctx: t.ctx, tx: t.tx, table: name}, nil
}

func (t *rawTx) Commit() error   { return t.tx.Commit() }
func (t *rawTx) Rollback() error { return t.tx.Rollback() }

// rawBucket is one (bkey, bval) SQLite table, queried with `bkey` as an
// ordinary BLOB primary key so SQLite's own index gives byte-lexicographic
// ordering for free.
type rawBucket struct {
	ctx   context.Context
	tx    *sql.Tx
	table string
}

func (rb *rawBucket) Get(key []byte) ([]byte, bool, error) {
	row := rb.tx.QueryRowContext(rb.ctx,
		fmt.Sprintf(`SELECT bval FROM "%s" WHERE bkey = ?`, rb.table), key)
	var val []byte
	if err := row.Scan(&val); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, err
	}
	return val, true, nil
}

func (rb *rawBucket) Put(key, value []byte) error {
	_, err := rb.tx.ExecContext(rb.ctx,
		fmt.Sprintf(`INSERT INTO "%s" (bkey, bval) VALUES (?, ?)
			ON CONFLICT(bkey) DO UPDATE SET bval = excluded.bval`, rb.table),
		key, value)
	return err
}

func (rb *rawBucket) Delete(key []byte) error {
	_, err := rb.tx.ExecContext(rb.ctx, fmt.Sprintf(`DELETE FROM "%s" WHERE bkey = ?`, rb.table), key)
	return err
}

// NextSequence emulates bbolt's per-bucket monotonic counter with a
// side-table keyed by bucket name, since SQLite's own ROWID autoincrement
// is tied to a single table's own rows, not an externally addressable
// counter independent of inserts.
func (rb *rawBucket) NextSequence() (uint64, error) {
	if _, err := rb.tx.ExecContext(rb.ctx,
		`CREATE TABLE IF NOT EXISTS "__sequences__" (name TEXT PRIMARY KEY, value INTEGER NOT NULL)`); err != nil {
		return 0, err
	}
	if _, err := rb.tx.ExecContext(rb.ctx,
		`INSERT INTO "__sequences__" (name, value) VALUES (?, 1)
			ON CONFLICT(name) DO UPDATE SET value = value + 1`, rb.table); err != nil {
		return 0, err
	}
	row := rb.tx.QueryRowContext(rb.ctx, `SELECT value FROM "__sequences__" WHERE name = ?`, rb.table)
	var v int64
	if err := row.Scan(&v); err != nil {
		return 0, err
	}
	return uint64(v), nil
}

func (rb *rawBucket) Cursor(reverse bool) (corebase.RawCursor, error) {
	return &rawCursor{ctx: rb.ctx, tx: rb.tx, table: rb.table, reverse: reverse}, nil
}

// rawCursor steps through rb.table in key order by reissuing a small
// `WHERE bkey > ?/< ? ORDER BY bkey LIMIT 1` query per Next/Prev call,
// since database/sql exposes no standalone forward+backward cursor handle.
type rawCursor struct {
	ctx     context.Context
	tx      *sql.Tx
	table   string
	reverse bool

	key, val []byte
	valid    bool
}

func (rc *rawCursor) load(cmp, order string, arg []byte, inclusive bool) bool {
	op := cmp
	if inclusive {
		op += "="
	}
	var row *sql.Row
	if arg == nil {
		row = rc.tx.QueryRowContext(rc.ctx,
			fmt.Sprintf(`SELECT bkey, bval FROM "%s" ORDER BY bkey %s LIMIT 1`, rc.table, order))
	} else {
		row = rc.tx.QueryRowContext(rc.ctx,
			fmt.Sprintf(`SELECT bkey, bval FROM "%s" WHERE bkey %s ? ORDER BY bkey %s LIMIT 1`, rc.table, op, order),
			arg)
	}
	var k, v []byte
	if err := row.Scan(&k, &v); err != nil {
		rc.valid = false
		return false
	}
	rc.key, rc.val, rc.valid = k, v, true
	return true
}

func (rc *rawCursor) First() bool { return rc.load("", "ASC", nil, false) }
func (rc *rawCursor) Last() bool  { return rc.load("", "DESC", nil, false) }

func (rc *rawCursor) Seek(target []byte) bool {
	if rc.reverse {
		return rc.load("<", "DESC", target, true)
	}
	return rc.load(">", "ASC", target, true)
}

func (rc *rawCursor) Next() bool {
	if !rc.valid {
		return rc.First()
	}
	return rc.load(">", "ASC", rc.key, false)
}

func (rc *rawCursor) Prev() bool {
	if !rc.valid {
		return rc.Last()
	}
	return rc.load("<", "DESC", rc.key, false)
}

func (rc *rawCursor) Valid() bool   { return rc.valid }
func (rc *rawCursor) Key() []byte   { return rc.key }
func (rc *rawCursor) Value() []byte { return rc.val }
func (rc *rawCursor) Close() error  { return nil }
