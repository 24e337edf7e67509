package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, defs map[string]string) DatabaseSchema {
	t.Helper()
	db, err := ParseDatabase(defs)
	require.NoError(t, err)
	return db
}

func TestDiff_AddAndDeleteTable(t *testing.T) {
	old := mustParse(t, map[string]string{"users": "++id, name"})
	new := mustParse(t, map[string]string{"posts": "++id, title"})

	changes := Diff(old, new)
	require.Len(t, changes, 2)
	assert.Equal(t, DeleteTable, changes[0].Type)
	assert.Equal(t, "users", changes[0].TableName)
	assert.Equal(t, AddTable, changes[1].Type)
	assert.Equal(t, "posts", changes[1].TableName)
}

func TestDiff_AddAndDeleteIndex(t *testing.T) {
	old := mustParse(t, map[string]string{"users": "++id, name, age"})
	new := mustParse(t, map[string]string{"users": "++id, name, &email"})

	changes := Diff(old, new)
	require.Len(t, changes, 2)
	assert.Equal(t, DeleteIndex, changes[0].Type)
	assert.Equal(t, "age", changes[0].IndexName)
	assert.Equal(t, AddIndex, changes[1].Type)
	assert.Equal(t, "email", changes[1].Index.Name)
}

func TestDiff_ChangePrimaryKeyIsFatal(t *testing.T) {
	old := mustParse(t, map[string]string{"users": "++id, name"})
	new := mustParse(t, map[string]string{"users": "id, name"})

	changes := Diff(old, new)
	require.Len(t, changes, 1)
	assert.Equal(t, ChangePrimaryKey, changes[0].Type)
}

func TestDiff_NoChanges(t *testing.T) {
	old := mustParse(t, map[string]string{"users": "++id, &email"})
	new := mustParse(t, map[string]string{"users": "++id, &email"})
	assert.Empty(t, Diff(old, new))
}

func TestDiff_IndexUniqueChangeIsDropAndAdd(t *testing.T) {
	old := mustParse(t, map[string]string{"users": "++id, email"})
	new := mustParse(t, map[string]string{"users": "++id, &email"})

	changes := Diff(old, new)
	require.Len(t, changes, 2)
	assert.Equal(t, DeleteIndex, changes[0].Type)
	assert.Equal(t, AddIndex, changes[1].Type)
	assert.True(t, changes[1].Index.Unique)
}
