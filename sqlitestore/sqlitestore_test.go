package sqlitestore_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	lattice_test "github.com/latticedb/lattice/lattice_test"
	"github.com/latticedb/lattice/sqlitestore"
	"github.com/latticedb/lattice/storeapi"
)

func TestConformance(t *testing.T) {
	lattice_test.RunConformance(t, func(t *testing.T) storeapi.Store {
		path := filepath.Join(t.TempDir(), "conformance.sqlite")
		store, err := sqlitestore.Open(path)
		require.NoError(t, err)
		t.Cleanup(func() { _ = store.Close() })
		return store
	})
}
