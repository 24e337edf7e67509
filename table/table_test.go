package table_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latticedb/lattice/boltstore"
	"github.com/latticedb/lattice/keyrange"
	"github.com/latticedb/lattice/query"
	"github.com/latticedb/lattice/schema"
	"github.com/latticedb/lattice/storeapi"
	"github.com/latticedb/lattice/table"
	"github.com/latticedb/lattice/txctx"
)

func openTable(t *testing.T, def string) (*txctx.Context, *table.Table) {
	t.Helper()
	ctx := context.Background()
	store, err := boltstore.Open(filepath.Join(t.TempDir(), "table.bolt"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ts, err := schema.ParseTable("items", def)
	require.NoError(t, err)
	full := schema.DatabaseSchema{"items": ts}
	require.NoError(t, store.ApplySchema(ctx, schema.Diff(schema.DatabaseSchema{}, full), full))

	tx, err := store.Begin(ctx, []string{"items"}, true, storeapi.DurabilityDefault)
	require.NoError(t, err)
	c := txctx.New(tx, full, txctx.ReadWrite, storeapi.DurabilityDefault)
	bound, err := c.Bind("items")
	require.NoError(t, err)
	return c, table.New(bound, table.NewHooks())
}

func TestTable_AddAndGet(t *testing.T) {
	ctx := context.Background()
	_, tbl := openTable(t, "++id, name")

	key, err := tbl.Add(ctx, storeapi.Record{"name": "widget"})
	require.NoError(t, err)

	rec, ok, err := tbl.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "widget", rec["name"])
}

func TestTable_Update_AbsentKeyReturnsZeroNotError(t *testing.T) {
	ctx := context.Background()
	_, tbl := openTable(t, "++id, name")

	n, err := tbl.Update(ctx, int64(999), storeapi.Record{"name": "x"})
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestTable_Update_MergesIntoExistingRecord(t *testing.T) {
	ctx := context.Background()
	_, tbl := openTable(t, "++id, name, age")

	key, err := tbl.Add(ctx, storeapi.Record{"name": "a", "age": int64(1)})
	require.NoError(t, err)

	n, err := tbl.Update(ctx, key, storeapi.Record{"age": int64(2)})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	rec, _, err := tbl.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "a", rec["name"])
	assert.EqualValues(t, 2, rec["age"])
}

func TestTable_Upsert_InsertsWhenAbsent(t *testing.T) {
	ctx := context.Background()
	_, tbl := openTable(t, "++id, name")

	err := tbl.Upsert(ctx, int64(42), storeapi.Record{"name": "fresh"})
	require.NoError(t, err)

	rec, ok, err := tbl.Get(ctx, int64(42))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "fresh", rec["name"])
}

func TestTable_Delete_AbsentKeyIsNotAnError(t *testing.T) {
	ctx := context.Background()
	_, tbl := openTable(t, "++id, name")

	err := tbl.Delete(ctx, int64(123))
	require.NoError(t, err)
}

func TestTable_BulkAdd_ConstraintFailureSurfacesIndices(t *testing.T) {
	ctx := context.Background()
	_, tbl := openTable(t, "++id, &email")

	_, err := tbl.Add(ctx, storeapi.Record{"email": "dup@x"})
	require.NoError(t, err)

	_, err = tbl.BulkAdd(ctx, []storeapi.Record{
		{"email": "new@x"},
		{"email": "dup@x"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "indices: 1")
}

func TestTable_Hooks_ReadingTransformsRecordsOnTheWayOut(t *testing.T) {
	ctx := context.Background()
	_, tbl := openTable(t, "++id, name")

	tbl.Hooks().OnReading(func(obj storeapi.Record) (storeapi.Record, bool) {
		out := storeapi.Record{}
		for k, v := range obj {
			out[k] = v
		}
		out["derived"] = true
		return out, true
	})

	key, err := tbl.Add(ctx, storeapi.Record{"name": "x"})
	require.NoError(t, err)

	rec, ok, err := tbl.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, true, rec["derived"])

	recs, err := tbl.ToCollection().ToArray(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, true, recs[0]["derived"])
}

func TestTable_Hooks_DeletingCanVetoDelete(t *testing.T) {
	ctx := context.Background()
	_, tbl := openTable(t, "++id, name")

	boom := assert.AnError
	tbl.Hooks().OnDeleting(func(key keyrange.Key, obj storeapi.Record) error { return boom })

	key, err := tbl.Add(ctx, storeapi.Record{"name": "protected"})
	require.NoError(t, err)

	err = tbl.Delete(ctx, key)
	require.ErrorIs(t, err, boom)

	_, ok, err := tbl.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTable_ToCollection_FullScan(t *testing.T) {
	ctx := context.Background()
	_, tbl := openTable(t, "++id, name")

	for _, n := range []string{"a", "b", "c"} {
		_, err := tbl.Add(ctx, storeapi.Record{"name": n})
		require.NoError(t, err)
	}

	recs, err := tbl.ToCollection().ToArray(ctx)
	require.NoError(t, err)
	assert.Len(t, recs, 3)
}

func TestTable_InAnyRange_HonorsInclusivityAcrossSeveralBounds(t *testing.T) {
	ctx := context.Background()
	_, tbl := openTable(t, "++id, score")

	for _, n := range []int64{1, 5, 10, 15, 20, 25} {
		_, err := tbl.Add(ctx, storeapi.Record{"score": n})
		require.NoError(t, err)
	}

	bounds := []query.RangeBound{
		{Lo: int64(1), Hi: int64(5)},
		{Lo: int64(20), Hi: int64(25)},
	}

	inclusive, err := tbl.Where("score").InAnyRange(bounds, true, true)
	require.NoError(t, err)
	recs, err := inclusive.ToArray(ctx)
	require.NoError(t, err)
	assert.Len(t, recs, 4) // 1, 5, 20, 25

	exclusive, err := tbl.Where("score").InAnyRange(bounds, false, false)
	require.NoError(t, err)
	recs, err = exclusive.ToArray(ctx)
	require.NoError(t, err)
	assert.Empty(t, recs) // each bound's endpoints are its only members

	singleInclusive, err := tbl.Where("score").InAnyRange(bounds[:1], true, true)
	require.NoError(t, err)
	recs, err = singleInclusive.ToArray(ctx)
	require.NoError(t, err)
	assert.Len(t, recs, 2) // 1, 5

	singleExclusive, err := tbl.Where("score").InAnyRange(bounds[:1], false, false)
	require.NoError(t, err)
	recs, err = singleExclusive.ToArray(ctx)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestTable_OrClause_SupportsFullPredicateSet(t *testing.T) {
	ctx := context.Background()
	_, tbl := openTable(t, "++id, name, age")

	_, err := tbl.Add(ctx, storeapi.Record{"name": "amy", "age": int64(10)})
	require.NoError(t, err)
	_, err = tbl.Add(ctx, storeapi.Record{"name": "bob", "age": int64(20)})
	require.NoError(t, err)
	_, err = tbl.Add(ctx, storeapi.Record{"name": "carl", "age": int64(30)})
	require.NoError(t, err)

	col := tbl.Where("age").Equals(int64(10)).Or("name").StartsWith("b")
	recs, err := col.ToArray(ctx)
	require.NoError(t, err)
	assert.Len(t, recs, 2) // amy (age), bob (name prefix)

	between, err := tbl.Where("age").Equals(int64(10)).Or("age").Between(int64(20), int64(30), true, true)
	require.NoError(t, err)
	recs, err = between.ToArray(ctx)
	require.NoError(t, err)
	assert.Len(t, recs, 3) // amy, bob, carl

	ic, err := tbl.Where("age").Equals(int64(999)).Or("name").EqualsIgnoreCase("BOB")
	require.NoError(t, err)
	recs, err = ic.ToArray(ctx)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
	assert.Equal(t, "bob", recs[0]["name"])
}
