// Package sqlitestore is the mattn/go-sqlite3-backed storeapi.Store. It
// emulates an ordered byte-keyed bucket on top of relational tables shaped
// (bkey BLOB PRIMARY KEY, bval BLOB) — one table per primary keyspace,
// one shadow table per secondary index — and steps a cursor with
// `WHERE bkey > ? ORDER BY bkey LIMIT 1` queries rather than a true
// persistent server-side cursor. That is a reasonable simplification for a
// reference backend: database/sql has no notion of a long-lived ordered
// cursor the way bbolt does, so every Next()/Prev() reissues a small
// indexed query instead (see DESIGN.md).
package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/latticedb/lattice/corebase"
	"github.com/latticedb/lattice/lerr"
	"github.com/latticedb/lattice/schema"
	"github.com/latticedb/lattice/storeapi"
)

func init() {
	storeapi.Register("sqlite", Open)
}

type sqliteStore struct {
	db   *sql.DB
	path string
}

// Open opens (creating if absent) a SQLite database file at path.
func Open(path string) (storeapi.Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, lerr.Wrap(lerr.KindOpenFailed, "sqlitestore: open failed", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, lerr.Wrap(lerr.KindOpenFailed, "sqlitestore: WAL pragma failed", err)
	}
	return corebase.NewStore(&sqliteStore{db: db, path: path}), nil
}

func (s *sqliteStore) Capabilities() storeapi.Capabilities {
	return storeapi.Capabilities{BulkGetRange: true, EarlyCommit: false, Durability: true}
}

func (s *sqliteStore) Close() error { return s.db.Close() }

func (s *sqliteStore) Delete() error {
	if err := s.db.Close(); err != nil {
		return err
	}
	return os.Remove(s.path)
}

// tableName and indexTableName map a table/index to its backing SQL table
// name. Index tables are namespaced to avoid clashing with a table whose
// name happens to coincide with another table's index name.
func tableName(table string) string { return "t_" + table }
func indexTableName(table, index string) string {
	return "ix_" + table + "__" + index
}

func (s *sqliteStore) ApplyRawSchema(ctx context.Context, changes []schema.Change, full schema.DatabaseSchema) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, ch := range changes {
		switch ch.Type {
		case schema.AddTable, schema.ChangePrimaryKey:
			if err := createBucketTable(tx, tableName(ch.TableName)); err != nil {
				return err
			}
			for _, idx := range full[ch.TableName].Indexes {
				if err := createBucketTable(tx, indexTableName(ch.TableName, idx.Name)); err != nil {
					return err
				}
			}
		case schema.DeleteTable:
			if _, err := tx.Exec(fmt.Sprintf(`DROP TABLE IF EXISTS "%s"`, tableName(ch.TableName))); err != nil {
				return err
			}
		case schema.AddIndex:
			if err := createBucketTable(tx, indexTableName(ch.TableName, ch.Index.Name)); err != nil {
				return err
			}
		case schema.DeleteIndex:
			if _, err := tx.Exec(fmt.Sprintf(`DROP TABLE IF EXISTS "%s"`, indexTableName(ch.TableName, ch.IndexName))); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

func createBucketTable(tx *sql.Tx, name string) error {
	stmt := fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS "%s" (bkey BLOB PRIMARY KEY, bval BLOB) WITHOUT ROWID`, name)
	_, err := tx.Exec(stmt)
	return err
}

func (s *sqliteStore) BeginRaw(ctx context.Context, writable bool) (corebase.RawTx, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: !writable})
	if err != nil {
		return nil, err
	}
	return &rawTx{ctx: ctx, tx: tx, writable: writable}, nil
}

// sanitizeTableRef is a defensive guard against SQL injection through a
// table/index name: index names are parsed schema identifiers (see
// schema.isIdentifier), but table names are not checked by the parser,
// and the bucket-table name is interpolated into DDL/DML text since
// database/sql cannot parameterize identifiers.
func sanitizeTableRef(name string) (string, error) {
	if strings.ContainsAny(name, `"`+"`"+"';\x00") {
		return "", lerr.New(lerr.KindData, "sqlitestore: invalid table reference: "+name)
	}
	return name, nil
}
