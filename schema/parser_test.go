package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTable_Basic(t *testing.T) {
	tbl, err := ParseTable("users", "++id, name, &email, age")
	require.NoError(t, err)

	assert.True(t, tbl.PrimaryKey.AutoIncrement)
	assert.Equal(t, []string{"id"}, tbl.PrimaryKey.KeyPath)
	assert.True(t, tbl.PrimaryKey.IsPrimaryKey)
	assert.True(t, tbl.PrimaryKey.Unique)

	require.Len(t, tbl.Indexes, 3)
	assert.Equal(t, "name", tbl.Indexes[0].Name)
	assert.False(t, tbl.Indexes[0].Unique)

	assert.Equal(t, "email", tbl.Indexes[1].Name)
	assert.True(t, tbl.Indexes[1].Unique)

	assert.Equal(t, "age", tbl.Indexes[2].Name)
}

func TestParseTable_Compound(t *testing.T) {
	tbl, err := ParseTable("people", "++id, [firstName+lastName]")
	require.NoError(t, err)

	require.Len(t, tbl.Indexes, 1)
	idx := tbl.Indexes[0]
	assert.True(t, idx.Compound)
	assert.Equal(t, []string{"firstName", "lastName"}, idx.KeyPath)
	assert.Equal(t, "[firstName+lastName]", idx.Name)
}

func TestParseTable_OutboundPrimaryKey(t *testing.T) {
	tbl, err := ParseTable("logs", ", level")
	require.NoError(t, err)
	assert.True(t, tbl.PrimaryKey.Outbound)
	assert.Nil(t, tbl.PrimaryKey.KeyPath)
}

func TestParseTable_Errors(t *testing.T) {
	cases := map[string]string{
		"empty schema":             "",
		"empty compound body":      "++id, []",
		"compound too short":       "++id, [firstName]",
		"invalid compound ident":   "++id, [first-Name+lastName]",
		"empty secondary name":     "++id, ",
		"invalid identifier":       "++id, 1bad",
	}
	for name, def := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseTable("t", def)
			assert.Error(t, err)
		})
	}
}

func TestParseDatabase(t *testing.T) {
	db, err := ParseDatabase(map[string]string{
		"users": "++id, name, &email",
	})
	require.NoError(t, err)
	require.Contains(t, db, "users")
	assert.Equal(t, "users", db["users"].Name)
}
