package schema

import "sort"

// ChangeType tags a SchemaChange variant (spec.md §3).
type ChangeType int

const (
	AddTable ChangeType = iota
	DeleteTable
	AddIndex
	DeleteIndex
	ChangePrimaryKey
)

// Change is one step of a schema diff.
type Change struct {
	Type      ChangeType
	TableName string
	Index     IndexSpec // AddIndex
	IndexName string    // DeleteIndex
}

// Diff compares an old and new DatabaseSchema and returns an ordered
// sequence of Change, per spec.md §4.1: tables-deleted first, then for
// each table in new: add-table if absent, else compare primary keys
// (mismatch is a fatal ChangePrimaryKey), then deleted-indexes, then
// added-indexes. Table and index iteration order is made stable by
// sorting names, since Go map iteration order is not.
func Diff(old, new DatabaseSchema) []Change {
	var changes []Change

	for _, name := range sortedKeys(old) {
		if _, ok := new[name]; !ok {
			changes = append(changes, Change{Type: DeleteTable, TableName: name})
		}
	}

	for _, name := range sortedKeys(new) {
		newTable := new[name]
		oldTable, existed := old[name]
		if !existed {
			changes = append(changes, Change{Type: AddTable, TableName: name})
			continue
		}

		if !samePrimaryKey(oldTable.PrimaryKey, newTable.PrimaryKey) {
			changes = append(changes, Change{Type: ChangePrimaryKey, TableName: name})
			continue
		}

		oldIdx := indexByName(oldTable.Indexes)
		newIdx := indexByName(newTable.Indexes)

		for _, idxName := range sortedIndexNames(oldTable.Indexes) {
			if _, ok := newIdx[idxName]; !ok {
				changes = append(changes, Change{Type: DeleteIndex, TableName: name, IndexName: idxName})
			}
		}
		for _, idxName := range sortedIndexNames(newTable.Indexes) {
			spec, ok := oldIdx[idxName]
			if !ok {
				changes = append(changes, Change{Type: AddIndex, TableName: name, Index: newIdx[idxName]})
				continue
			}
			if !sameIndex(spec, newIdx[idxName]) {
				changes = append(changes, Change{Type: DeleteIndex, TableName: name, IndexName: idxName})
				changes = append(changes, Change{Type: AddIndex, TableName: name, Index: newIdx[idxName]})
			}
		}
	}

	return changes
}

func samePrimaryKey(a, b IndexSpec) bool {
	return a.Outbound == b.Outbound && a.AutoIncrement == b.AutoIncrement && equalPaths(a.KeyPath, b.KeyPath)
}

func sameIndex(a, b IndexSpec) bool {
	return a.Unique == b.Unique && a.Compound == b.Compound && equalPaths(a.KeyPath, b.KeyPath)
}

func equalPaths(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func indexByName(specs []IndexSpec) map[string]IndexSpec {
	out := make(map[string]IndexSpec, len(specs))
	for _, s := range specs {
		out[s.Name] = s
	}
	return out
}

func sortedKeys(d DatabaseSchema) []string {
	out := make([]string, 0, len(d))
	for k := range d {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedIndexNames(specs []IndexSpec) []string {
	out := make([]string, 0, len(specs))
	for _, s := range specs {
		out = append(out, s.Name)
	}
	sort.Strings(out)
	return out
}
