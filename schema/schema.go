// Package schema implements the schema model of spec.md §3–§4.1: parsed
// table definitions (primary key + ordered secondary indexes) and the
// diff algorithm that drives migrations. The token-grammar parser replaces
// the teacher's Prisma-schema parser (this store has no relational
// columns, only an index list per table) but keeps its "parse into a
// typed model, validate, diff against the previous version" shape.
package schema

import "github.com/latticedb/lattice/lerr"

// IndexSpec describes one index — primary or secondary — per spec.md §3.
type IndexSpec struct {
	Name          string   // empty for the outbound primary key
	KeyPath       []string // absent (nil), single property, or ordered compound path
	IsPrimaryKey  bool
	AutoIncrement bool
	Unique        bool
	Outbound      bool // primary key stored outside the record
	Compound      bool
}

// Validate enforces the IndexSpec invariants from spec.md §3.
func (s IndexSpec) Validate() error {
	if s.Compound && len(s.KeyPath) < 2 {
		return lerr.New(lerr.KindSchema, "compound index must have at least 2 key path components")
	}
	if s.Outbound && len(s.KeyPath) != 0 {
		return lerr.New(lerr.KindSchema, "outbound key must have an absent key path")
	}
	if s.AutoIncrement && len(s.KeyPath) > 1 {
		return lerr.New(lerr.KindSchema, "auto-increment key must be absent or a single numeric property")
	}
	if !s.IsPrimaryKey && s.Name == "" {
		return lerr.New(lerr.KindSchema, "empty index name is only allowed for the primary key")
	}
	return nil
}

// TableSchema is a table's primary key plus its ordered secondary indexes.
type TableSchema struct {
	Name       string
	PrimaryKey IndexSpec
	Indexes    []IndexSpec
}

// IndexByName returns the named index (or the primary key for an empty
// name), and whether it was found.
func (t TableSchema) IndexByName(name string) (IndexSpec, bool) {
	if name == "" {
		return t.PrimaryKey, true
	}
	for _, idx := range t.Indexes {
		if idx.Name == name {
			return idx, true
		}
	}
	return IndexSpec{}, false
}

// Validate checks index-name uniqueness and each IndexSpec's own invariants.
func (t TableSchema) Validate() error {
	if t.Name == "" {
		return lerr.New(lerr.KindSchema, "table name cannot be empty")
	}
	if err := t.PrimaryKey.Validate(); err != nil {
		return err
	}
	seen := map[string]bool{}
	for _, idx := range t.Indexes {
		if seen[idx.Name] {
			return lerr.New(lerr.KindSchema, "duplicate index name: "+idx.Name)
		}
		seen[idx.Name] = true
		if err := idx.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// DatabaseSchema maps table name to TableSchema.
type DatabaseSchema map[string]TableSchema

// Clone returns a shallow copy of the schema map (TableSchema values are
// themselves immutable once parsed, so a shallow copy is sufficient for
// the "schemas are immutable after a version is defined" lifecycle rule).
func (d DatabaseSchema) Clone() DatabaseSchema {
	out := make(DatabaseSchema, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}
