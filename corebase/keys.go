package corebase

import (
	"github.com/latticedb/lattice/keyrange"
	"github.com/latticedb/lattice/lerr"
	"github.com/latticedb/lattice/schema"
	"github.com/latticedb/lattice/storeapi"
)

// fieldValue reads one top-level property out of a record by name; a
// dotted name is looked up literally, not as a path. The grammar only allows flat property names (§3's IndexSpec.keyPath is
// "a property name", not a JSON-pointer path), so a single map lookup
// suffices.
func fieldValue(rec storeapi.Record, field string) (any, bool) {
	v, ok := rec[field]
	return v, ok
}

// indexKeyOf computes idx's key for rec. ok is false when a non-compound
// component is absent from the record (the record is simply not indexed
// under this index, matching IndexedDB's "missing key path" semantics).
func indexKeyOf(rec storeapi.Record, idx schema.IndexSpec) (keyrange.Key, bool, error) {
	if idx.Outbound {
		return nil, false, nil
	}
	if len(idx.KeyPath) == 0 {
		return nil, false, nil
	}
	if len(idx.KeyPath) == 1 {
		raw, ok := fieldValue(rec, idx.KeyPath[0])
		if !ok {
			return nil, false, nil
		}
		k, err := keyrange.NewKey(raw)
		if err != nil {
			return nil, false, err
		}
		return k, true, nil
	}
	parts := make([]keyrange.Key, 0, len(idx.KeyPath))
	for _, field := range idx.KeyPath {
		raw, ok := fieldValue(rec, field)
		if !ok {
			return nil, false, nil
		}
		k, err := keyrange.NewKey(raw)
		if err != nil {
			return nil, false, err
		}
		parts = append(parts, k)
	}
	compound, err := keyrange.NewKey(parts)
	if err != nil {
		return nil, false, err
	}
	return compound, true, nil
}

// setFieldValue writes an auto-assigned inbound primary key back into rec.
func setFieldValue(rec storeapi.Record, field string, v any) {
	rec[field] = v
}

// primaryKeyOf resolves rec's primary key when the primary key is inbound
// (stored as one of the record's own properties).
func primaryKeyOf(rec storeapi.Record, pk schema.IndexSpec) (keyrange.Key, bool, error) {
	if pk.Outbound {
		return nil, false, nil
	}
	return indexKeyOf(rec, pk)
}

// indexBucketKey builds the raw byte key for one secondary-index bucket
// entry: the order-preserving encoding of the index value, concatenated
// with the primary key's own encoding so duplicate index values still
// resolve to distinct, uniquely-ordered raw keys.
func indexBucketKey(indexValue, primaryKey keyrange.Key) []byte {
	out := make([]byte, 0, 32)
	out = append(out, keyrange.Encode(indexValue)...)
	out = append(out, keyrange.Encode(primaryKey)...)
	return out
}

// splitIndexBucketKey decodes an index bucket's raw key back into its
// index-value and primary-key components, given the index's keyPath
// arity (1 for a plain index, len(keyPath) for a compound one) and the
// primary key's arity likewise.
func splitIndexBucketKey(raw []byte, indexArity, primaryArity int) (indexValue, primaryKey keyrange.Key, err error) {
	idxParts, consumed, err := keyrange.DecodeN(raw, indexArity)
	if err != nil {
		return nil, nil, err
	}
	pkParts, _, err := keyrange.DecodeN(raw[consumed:], primaryArity)
	if err != nil {
		return nil, nil, err
	}
	indexValue = singleOrCompound(idxParts)
	primaryKey = singleOrCompound(pkParts)
	return indexValue, primaryKey, nil
}

func singleOrCompound(parts []keyrange.Key) keyrange.Key {
	if len(parts) == 1 {
		return parts[0]
	}
	return keyrange.Key(parts)
}

func primaryArity(pk schema.IndexSpec) int {
	if len(pk.KeyPath) == 0 {
		return 1 // outbound or bare auto-increment key is always scalar
	}
	return len(pk.KeyPath)
}

func indexArity(idx schema.IndexSpec) int {
	if len(idx.KeyPath) == 0 {
		return 1
	}
	return len(idx.KeyPath)
}

func errNotFound(table string) error {
	return lerr.New(lerr.KindNotFound, "table not found: "+table)
}

func errInvalidTable(table string) error {
	return lerr.New(lerr.KindInvalidTable, "invalid table: "+table)
}
