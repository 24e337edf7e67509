package table

import (
	"github.com/latticedb/lattice/keyrange"
	"github.com/latticedb/lattice/storeapi"
)

// ChangeKind classifies a committed mutation for a Change subscriber.
type ChangeKind string

const (
	Created ChangeKind = "created"
	Updated ChangeKind = "updated"
	Deleted ChangeKind = "deleted"
)

// Change describes one mutation: enough for a subscriber outside this
// package to rebuild spec.md §6's `changes` event payload without this
// package importing latticedb.
type Change struct {
	Table  string
	Key    keyrange.Key
	Kind   ChangeKind
	Obj    storeapi.Record
	OldObj storeapi.Record
}

// OnChange is invoked synchronously, once per mutation, right after the
// backend write that produced it succeeds; the enclosing transaction has
// not committed at that point and can still roll back.
type OnChange func(Change)

// SetOnChange attaches a change callback to t, overriding any previous
// one. Nothing in this module attaches one: latticedb's Tx.Table and
// ImplicitTable do not call it, so their Tables report no changes. A
// Table with no callback attached pays nothing extra.
func (t *Table) SetOnChange(fn OnChange) { t.onChange = fn }

func (t *Table) emit(key keyrange.Key, kind ChangeKind, obj, oldObj storeapi.Record) {
	if t.onChange == nil {
		return
	}
	t.onChange(Change{Table: t.bound.TableName(), Key: key, Kind: kind, Obj: obj, OldObj: oldObj})
}
