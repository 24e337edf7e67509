package latticedb

import (
	"context"

	goccyjson "github.com/goccy/go-json"

	"github.com/latticedb/lattice/keyrange"
	"github.com/latticedb/lattice/lerr"
	"github.com/latticedb/lattice/schema"
	"github.com/latticedb/lattice/storeapi"
)

// metaTable is the reserved table the orchestrator uses to persist the
// schema version it last successfully applied, per spec.md §4.10. It
// never appears in a caller's own Stores() definitions. schema.ParseTable
// only rejects an empty table name, so a caller-declared table of the same
// name is not refused.
const metaTable = "__lattice_meta__"

const metaStateKey = "state"

// metaSchema describes the reserved table's own (trivial) shape: one row
// keyed by a constant sentinel key.
var metaSchema = schema.TableSchema{
	Name:       metaTable,
	PrimaryKey: schema.IndexSpec{IsPrimaryKey: true, Unique: true, KeyPath: []string{"key"}},
}

// metaState is the persisted snapshot: the last version fully applied and
// the user schema that was live at that version, so the next Open call can
// diff against exactly what was last materialized rather than trusting an
// in-memory value that does not survive a process restart.
type metaState struct {
	Version int                    `json:"version"`
	Schema  schema.DatabaseSchema  `json:"schema"`
}

// loadMetaState reads the persisted state from tx, or a zero-value state
// (version 0, empty schema) if this is the first time this store has ever
// been opened.
func loadMetaState(ctx context.Context, tx storeapi.Tx) (metaState, error) {
	rec, ok, err := tx.Get(ctx, metaTable, metaStateKey)
	if err != nil {
		return metaState{}, err
	}
	if !ok {
		return metaState{Version: 0, Schema: schema.DatabaseSchema{}}, nil
	}
	blob, _ := rec["blob"].(string)
	var st metaState
	if blob != "" {
		if err := goccyjson.Unmarshal([]byte(blob), &st); err != nil {
			return metaState{}, lerr.Wrap(lerr.KindData, "corrupt __lattice_meta__ snapshot", err)
		}
	}
	return st, nil
}

// storeMetaState writes the new version/schema snapshot inside tx, the
// same transaction any upgrade callbacks ran in, so the bump is atomic
// with the upgrade's own writes. The schema DDL is not part of tx: the
// backend applies it beforehand in a transaction of its own.
func storeMetaState(ctx context.Context, tx storeapi.Tx, st metaState) error {
	blob, err := goccyjson.Marshal(st)
	if err != nil {
		return err
	}
	rec := storeapi.Record{"key": metaStateKey, "blob": string(blob)}
	_, err = tx.Mutate(ctx, storeapi.MutateRequest{
		Kind:   storeapi.MutatePut,
		Table:  metaTable,
		Values: []storeapi.Record{rec},
		Keys:   []keyrange.Key{metaStateKey},
	})
	return err
}

// withMeta returns full with metaTable's own schema merged in, so a
// corebase Tx begun after ApplySchema(full) can address metaTable
// directly without it ever being exposed through txctx.Context.Bind.
func withMeta(full schema.DatabaseSchema) schema.DatabaseSchema {
	out := full.Clone()
	out[metaTable] = metaSchema
	return out
}
