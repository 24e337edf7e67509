// Package lattice_test holds a backend-agnostic conformance suite
// exercising the universal invariants and end-to-end scenarios of
// spec.md §8 against any storeapi.Store, grounded in the teacher's
// test/driver_conformance_tests*.go pattern: one shared scenario function
// run once per registered driver rather than duplicated per-package.
package lattice_test

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latticedb/lattice/schema"
	"github.com/latticedb/lattice/storeapi"
	"github.com/latticedb/lattice/table"
	"github.com/latticedb/lattice/txctx"
)

// RunConformance runs every scenario in this package against a store
// built fresh (empty) by newStore, once per scenario so state never
// leaks between them.
func RunConformance(t *testing.T, newStore func(t *testing.T) storeapi.Store) {
	t.Helper()
	scenarios := map[string]func(*testing.T, storeapi.Store){
		"S1_AddAndGet":              scenarioAddAndGet,
		"S2_UniqueConstraint":       scenarioUniqueConstraint,
		"S3_RangeQuery":             scenarioRangeQuery,
		"S4_OrDedup":                scenarioOrDedup,
		"S5_CompoundIndexEquals":    scenarioCompoundIndexEquals,
		"S6_CaseInsensitive":        scenarioCaseInsensitive,
		"S7_Modify":                 scenarioModify,
		"S8_TransactionAtomicity":   scenarioTransactionAtomicity,
		"S9_OutboundPrimaryKey":     scenarioOutboundPrimaryKey,
		"Invariant1_GetAfterAdd":    invariantGetAfterAdd,
		"Invariant10_BulkAtomicity": invariantBulkAddAtomicity,
	}
	for name, fn := range scenarios {
		t.Run(name, func(t *testing.T) {
			fn(t, newStore(t))
		})
	}
}

// usersSchema returns the database schema holding the "users" table from
// spec.md's S1: ++id, name, &email, age.
func usersSchema() schema.DatabaseSchema {
	ts, err := schema.ParseTable("users", "++id, name, &email, age")
	if err != nil {
		panic(err)
	}
	return schema.DatabaseSchema{"users": ts}
}

func openUsers(t *testing.T, store storeapi.Store) (*txctx.Context, *table.Table) {
	t.Helper()
	full := usersSchema()
	require.NoError(t, store.ApplySchema(context.Background(), schema.Diff(schema.DatabaseSchema{}, full), full))
	tx, err := store.Begin(context.Background(), []string{"users"}, true, storeapi.DurabilityDefault)
	require.NoError(t, err)
	c := txctx.New(tx, full, txctx.ReadWrite, storeapi.DurabilityDefault)
	bound, err := c.Bind("users")
	require.NoError(t, err)
	return c, table.New(bound, table.NewHooks())
}

func scenarioAddAndGet(t *testing.T, store storeapi.Store) {
	ctx := context.Background()
	_, tbl := openUsers(t, store)

	key, err := tbl.Add(ctx, storeapi.Record{"name": "Alice", "email": "a@x", "age": int64(30)})
	require.NoError(t, err)
	assert.Equal(t, int64(1), key)

	rec, ok, err := tbl.Get(ctx, int64(1))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Alice", rec["name"])
	assert.Equal(t, "a@x", rec["email"])
	assert.EqualValues(t, 30, rec["age"])
}

func scenarioUniqueConstraint(t *testing.T, store storeapi.Store) {
	ctx := context.Background()
	_, tbl := openUsers(t, store)

	_, err := tbl.Add(ctx, storeapi.Record{"name": "Alice", "email": "a@x", "age": int64(30)})
	require.NoError(t, err)

	_, err = tbl.Add(ctx, storeapi.Record{"name": "A2", "email": "a@x", "age": int64(31)})
	require.Error(t, err)

	n, err := tbl.ToCollection().Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func scenarioRangeQuery(t *testing.T, store storeapi.Store) {
	ctx := context.Background()
	_, tbl := openUsers(t, store)

	for age := 20; age < 70; age++ {
		_, err := tbl.Add(ctx, storeapi.Record{"name": "user", "email": "u" + strconv.Itoa(age) + "@x", "age": int64(age)})
		require.NoError(t, err)
	}

	col, err := tbl.Where("age").Between(int64(25), int64(30), true, false)
	require.NoError(t, err)
	recs, err := col.ToArray(ctx)
	require.NoError(t, err)
	var ages []int64
	for _, r := range recs {
		ages = append(ages, r["age"].(int64))
	}
	assert.Equal(t, []int64{25, 26, 27, 28, 29}, ages)
}

func scenarioOrDedup(t *testing.T, store storeapi.Store) {
	ctx := context.Background()
	_, tbl := openUsers(t, store)

	_, err := tbl.Add(ctx, storeapi.Record{"name": "user5x", "email": "a@x", "age": int64(25)})
	require.NoError(t, err)
	_, err = tbl.Add(ctx, storeapi.Record{"name": "user5y", "email": "b@x", "age": int64(35)})
	require.NoError(t, err)
	_, err = tbl.Add(ctx, storeapi.Record{"name": "other", "email": "c@x", "age": int64(40)})
	require.NoError(t, err)

	col := tbl.Where("age").Equals(int64(25)).Or("name").StartsWith("user5")
	keys, err := col.PrimaryKeys(ctx)
	require.NoError(t, err)
	seen := map[any]bool{}
	for _, k := range keys {
		assert.False(t, seen[k], "duplicate primary key in or-union: %v", k)
		seen[k] = true
	}
	assert.Len(t, keys, 2)

	// Above, the age==25 branch and the name-prefix branch both match
	// user5x, and the union dedups it down to two distinct records. Here an
	// or-branch on a different index (email) adds user5y to the age==25
	// match, again two distinct records.
	byEmail := tbl.Where("age").Equals(int64(25)).Or("email").Equals("b@x")
	recs, err := byEmail.ToArray(ctx)
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

// scenarioOutboundPrimaryKey exercises a table whose primary key is
// outbound and not auto-increment (schema ",name") — the key must be
// supplied explicitly to Add/Put rather than embedded in the record,
// per spec.md §4.3.
func scenarioOutboundPrimaryKey(t *testing.T, store storeapi.Store) {
	ctx := context.Background()
	ts, err := schema.ParseTable("settings", ",name")
	require.NoError(t, err)
	full := schema.DatabaseSchema{"settings": ts}
	require.NoError(t, store.ApplySchema(ctx, schema.Diff(schema.DatabaseSchema{}, full), full))
	tx, err := store.Begin(ctx, []string{"settings"}, true, storeapi.DurabilityDefault)
	require.NoError(t, err)
	c := txctx.New(tx, full, txctx.ReadWrite, storeapi.DurabilityDefault)
	bound, err := c.Bind("settings")
	require.NoError(t, err)
	tbl := table.New(bound, table.NewHooks())

	key, err := tbl.Add(ctx, storeapi.Record{"name": "theme"}, "ui.theme")
	require.NoError(t, err)
	assert.Equal(t, "ui.theme", key)

	rec, ok, err := tbl.Get(ctx, "ui.theme")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "theme", rec["name"])

	_, err = tbl.Add(ctx, storeapi.Record{"name": "other"})
	require.Error(t, err, "Add must fail without an explicit key for an outbound primary key")

	_, err = tbl.Put(ctx, storeapi.Record{"name": "theme-dark"}, "ui.theme")
	require.NoError(t, err)
	rec, ok, err = tbl.Get(ctx, "ui.theme")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "theme-dark", rec["name"])
}

func scenarioCompoundIndexEquals(t *testing.T, store storeapi.Store) {
	ctx := context.Background()
	full, err := schema.ParseTable("people", "++id, [firstName+lastName]")
	require.NoError(t, err)
	dbSchema := schema.DatabaseSchema{"people": full}
	require.NoError(t, store.ApplySchema(ctx, schema.Diff(schema.DatabaseSchema{}, dbSchema), dbSchema))
	tx, err := store.Begin(ctx, []string{"people"}, true, storeapi.DurabilityDefault)
	require.NoError(t, err)
	c := txctx.New(tx, dbSchema, txctx.ReadWrite, storeapi.DurabilityDefault)
	bound, err := c.Bind("people")
	require.NoError(t, err)
	tbl := table.New(bound, table.NewHooks())

	seed := []storeapi.Record{
		{"firstName": "John", "lastName": "Doe"},
		{"firstName": "Jane", "lastName": "Doe"},
		{"firstName": "John", "lastName": "Smith"},
	}
	for _, r := range seed {
		_, err := tbl.Add(ctx, r)
		require.NoError(t, err)
	}

	col := tbl.Where("[firstName+lastName]").Equals([]any{"John", "Doe"})
	recs, err := col.ToArray(ctx)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func scenarioCaseInsensitive(t *testing.T, store storeapi.Store) {
	ctx := context.Background()
	full, err := schema.ParseTable("users", "++id, name")
	require.NoError(t, err)
	dbSchema := schema.DatabaseSchema{"users": full}
	require.NoError(t, store.ApplySchema(ctx, schema.Diff(schema.DatabaseSchema{}, dbSchema), dbSchema))
	tx, err := store.Begin(ctx, []string{"users"}, true, storeapi.DurabilityDefault)
	require.NoError(t, err)
	c := txctx.New(tx, dbSchema, txctx.ReadWrite, storeapi.DurabilityDefault)
	bound, err := c.Bind("users")
	require.NoError(t, err)
	tbl := table.New(bound, table.NewHooks())

	for _, name := range []string{"Alice", "ALICE", "alice", "bob"} {
		_, err := tbl.Add(ctx, storeapi.Record{"name": name})
		require.NoError(t, err)
	}

	col, err := tbl.Where("name").EqualsIgnoreCase("alice")
	require.NoError(t, err)
	n, err := col.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	col2, err := tbl.Where("name").StartsWithIgnoreCase("AL")
	require.NoError(t, err)
	n2, err := col2.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n2)
}

func scenarioModify(t *testing.T, store storeapi.Store) {
	ctx := context.Background()
	_, tbl := openUsers(t, store)

	for age := 20; age < 30; age++ {
		_, err := tbl.Add(ctx, storeapi.Record{"name": "user", "email": "u" + strconv.Itoa(age) + "@x", "age": int64(age)})
		require.NoError(t, err)
	}

	col, err := tbl.Where("age").Between(int64(20), int64(25), true, true)
	require.NoError(t, err)
	n, err := col.Modify(ctx, storeapi.Record{"flagged": true}, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 6, n)

	flagged := tbl.Filter(func(rec storeapi.Record) bool {
		v, _ := rec["flagged"].(bool)
		return v
	})
	count, err := flagged.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 6, count)
}

func scenarioTransactionAtomicity(t *testing.T, store storeapi.Store) {
	ctx := context.Background()
	c, tbl := openUsers(t, store)
	require.NoError(t, c.Commit())

	before := mustCount(t, store)

	c2, err := store.Begin(ctx, []string{"users"}, true, storeapi.DurabilityDefault)
	require.NoError(t, err)
	txc := txctx.New(c2, usersSchema(), txctx.ReadWrite, storeapi.DurabilityDefault)
	bound, err := txc.Bind("users")
	require.NoError(t, err)
	scopedTbl := table.New(bound, table.NewHooks())
	_, err = scopedTbl.Add(ctx, storeapi.Record{"name": "X", "email": "x"})
	require.NoError(t, err)
	require.NoError(t, txc.Abort())

	after := mustCount(t, store)
	assert.Equal(t, before, after)
	_ = tbl
}

func mustCount(t *testing.T, store storeapi.Store) int64 {
	t.Helper()
	ctx := context.Background()
	tx, err := store.Begin(ctx, []string{"users"}, false, storeapi.DurabilityDefault)
	require.NoError(t, err)
	defer tx.Rollback()
	n, err := tx.Count(ctx, storeapi.QueryRequest{Table: "users"})
	require.NoError(t, err)
	return n
}

func invariantGetAfterAdd(t *testing.T, store storeapi.Store) {
	ctx := context.Background()
	_, tbl := openUsers(t, store)
	key, err := tbl.Add(ctx, storeapi.Record{"name": "Bob", "email": "bob@x", "age": int64(40)})
	require.NoError(t, err)
	rec, ok, err := tbl.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Bob", rec["name"])
}

func invariantBulkAddAtomicity(t *testing.T, store storeapi.Store) {
	ctx := context.Background()
	_, tbl := openUsers(t, store)
	_, err := tbl.Add(ctx, storeapi.Record{"name": "first", "email": "dup@x", "age": int64(1)})
	require.NoError(t, err)

	_, err = tbl.BulkAdd(ctx, []storeapi.Record{
		{"name": "ok", "email": "ok@x", "age": int64(2)},
		{"name": "dup", "email": "dup@x", "age": int64(3)},
	})
	require.Error(t, err)

	col := tbl.Filter(func(rec storeapi.Record) bool { return rec["email"] == "ok@x" })
	recs, err := col.ToArray(ctx)
	require.NoError(t, err)
	assert.Len(t, recs, 1, "the non-conflicting half of a failed bulk batch must still persist")
}
