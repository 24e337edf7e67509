package latticedb_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latticedb/lattice/latticedb"
	"github.com/latticedb/lattice/storeapi"
	"github.com/latticedb/lattice/txctx"

	_ "github.com/latticedb/lattice/boltstore"
)

func newTestDB(t *testing.T, name string) *latticedb.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), name+".lattice")
	return latticedb.New(name, latticedb.WithPath(path))
}

func TestOpen_FirstOpenEmitsReady(t *testing.T) {
	db := newTestDB(t, "v1")
	db.Version(1).Stores(map[string]string{"users": "++id, name, &email"})

	var gotReady bool
	db.On(latticedb.EventReady, func(any) error { gotReady = true; return nil })

	require.NoError(t, db.Open(context.Background()))
	defer db.Close()

	assert.True(t, gotReady)
	assert.Equal(t, 1, db.CurrentVersion())
}

func TestOpen_UpgradeAcrossVersionsRunsUpgradeFuncAndEmitsVersionChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "upgrade.lattice")

	db1 := latticedb.New("upgrade", latticedb.WithPath(path))
	db1.Version(1).Stores(map[string]string{"users": "++id, name"})
	require.NoError(t, db1.Open(context.Background()))
	ut, err := db1.Table("users").Add(context.Background(), storeapi.Record{"name": "Alice"})
	require.NoError(t, err)
	require.NotNil(t, ut)
	require.NoError(t, db1.Close())

	db2 := latticedb.New("upgrade", latticedb.WithPath(path))
	db2.Version(1).Stores(map[string]string{"users": "++id, name"})

	var upgraded bool
	db2.Version(2).Stores(map[string]string{"users": "++id, name, age"}).Upgrade(func(tx *latticedb.UpgradeContext) error {
		upgraded = true
		tbl, err := tx.Table("users")
		if err != nil {
			return err
		}
		_, err = tbl.Add(context.Background(), storeapi.Record{"name": "Bob", "age": int64(22)})
		return err
	})

	var gotVersionChange bool
	db2.On(latticedb.EventVersionChange, func(any) error { gotVersionChange = true; return nil })

	require.NoError(t, db2.Open(context.Background()))
	defer db2.Close()

	assert.True(t, upgraded)
	assert.True(t, gotVersionChange)
	assert.Equal(t, 2, db2.CurrentVersion())

	rec, ok, err := db2.Table("users").Get(context.Background(), int64(1))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Alice", rec["name"])
}

func TestOpen_RejectsPrimaryKeyChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pkchange.lattice")

	db1 := latticedb.New("pkchange", latticedb.WithPath(path))
	db1.Version(1).Stores(map[string]string{"users": "++id, name"})
	require.NoError(t, db1.Open(context.Background()))
	require.NoError(t, db1.Close())

	db2 := latticedb.New("pkchange", latticedb.WithPath(path))
	db2.Version(1).Stores(map[string]string{"users": "++id, name"})
	db2.Version(2).Stores(map[string]string{"users": "++newId, name"})

	err := db2.Open(context.Background())
	require.Error(t, err)
}

func TestImplicitTable_EachCallIsItsOwnTransaction(t *testing.T) {
	db := newTestDB(t, "implicit")
	db.Version(1).Stores(map[string]string{"users": "++id, name"})
	require.NoError(t, db.Open(context.Background()))
	defer db.Close()

	ctx := context.Background()
	key, err := db.Table("users").Add(ctx, storeapi.Record{"name": "Alice"})
	require.NoError(t, err)

	rec, ok, err := db.Table("users").Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Alice", rec["name"])

	n, err := db.Table("users").ToCollection().Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestTransaction_RollsBackOnError(t *testing.T) {
	db := newTestDB(t, "txn")
	db.Version(1).Stores(map[string]string{"users": "++id, name"})
	require.NoError(t, db.Open(context.Background()))
	defer db.Close()

	ctx := context.Background()
	boom := assert.AnError
	err := db.Transaction(ctx, txctx.ReadWrite, []string{"users"}, func(ctx context.Context, tx *latticedb.Tx) error {
		tbl, err := tx.Table("users")
		require.NoError(t, err)
		_, err = tbl.Add(ctx, storeapi.Record{"name": "Ghost"})
		require.NoError(t, err)
		return boom
	})
	require.ErrorIs(t, err, boom)

	n, err := db.Table("users").ToCollection().Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)
}
