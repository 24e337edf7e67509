package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latticedb/lattice/keyrange"
	"github.com/latticedb/lattice/storeapi"
)

// fakeExecutor is a bare stand-in for table.Table satisfying Executor,
// mirroring the teacher's mockDatabase pattern (select_query_test.go) of a
// minimal struct implementing the interface under test without a live
// backend. Query/Count/Mutate are never exercised by the tests below,
// which only inspect what Collection.request builds.
type fakeExecutor struct {
	name string
	pk   []string
}

func (f *fakeExecutor) TableName() string        { return f.name }
func (f *fakeExecutor) PrimaryKeyPath() []string { return f.pk }
func (f *fakeExecutor) Outbound() bool           { return false }
func (f *fakeExecutor) Query(context.Context, storeapi.QueryRequest) (storeapi.QueryResult, error) {
	return storeapi.QueryResult{}, nil
}
func (f *fakeExecutor) Count(context.Context, storeapi.QueryRequest) (int64, error) { return 0, nil }
func (f *fakeExecutor) Mutate(context.Context, storeapi.MutateRequest) (storeapi.MutateResult, error) {
	return storeapi.MutateResult{}, nil
}

func newTestCollection() Collection {
	return newCollection(&fakeExecutor{name: "users", pk: []string{"id"}}, "age", keyrange.Above(int64(10), false))
}

func TestCollection_Request_ForwardsLimitOffsetWithoutFilterOrUntil(t *testing.T) {
	c := newTestCollection().Limit(5).Offset(2)
	req := c.request(true)
	require.NotNil(t, req.Limit)
	require.NotNil(t, req.Offset)
	assert.Equal(t, 5, *req.Limit)
	assert.Equal(t, 2, *req.Offset)
}

func TestCollection_Request_WithheldWhenFilterSet(t *testing.T) {
	c := newTestCollection().Limit(5).Offset(2).Filter(func(keyrange.Key, storeapi.Record) bool { return true })
	req := c.request(true)
	assert.Nil(t, req.Limit)
	assert.Nil(t, req.Offset)
}

func TestCollection_Request_WithheldWhenUntilSet(t *testing.T) {
	c := newTestCollection().Limit(5).Offset(2).Until(func(keyrange.Key, storeapi.Record) bool { return true })
	req := c.request(true)
	assert.Nil(t, req.Limit)
	assert.Nil(t, req.Offset)
}

func TestCollection_Request_ForwardedAgainWhenAlgorithmOwnsFiltering(t *testing.T) {
	c := newTestCollection().Limit(5).Offset(2).Filter(func(keyrange.Key, storeapi.Record) bool { return true })
	c.algorithm = func(keyrange.Key) storeapi.Step { return storeapi.Step{Outcome: storeapi.StepCollect} }
	req := c.request(true)
	require.NotNil(t, req.Limit)
	require.NotNil(t, req.Offset)
	assert.Equal(t, 5, *req.Limit)
	assert.Equal(t, 2, *req.Offset)
}

func TestCollection_Request_CarriesIndexRangeReverseUniqueRaw(t *testing.T) {
	c := newTestCollection().Reverse().Unique().Raw()
	req := c.request(false)
	assert.Equal(t, "users", req.Table)
	assert.Equal(t, "age", req.Index)
	assert.Equal(t, keyrange.RangeKind, req.Range.Kind)
	assert.False(t, req.Values)
	assert.True(t, req.Reverse)
	assert.True(t, req.Unique)
	assert.True(t, req.Raw)
}

func TestCollection_Unique_DoesNotMutateReceiver(t *testing.T) {
	base := newTestCollection()
	withUnique := base.Unique()
	assert.False(t, base.unique)
	assert.True(t, withUnique.unique)
}

func TestCollection_Reverse_TogglesAndRoundTrips(t *testing.T) {
	base := newTestCollection()
	once := base.Reverse()
	twice := once.Reverse()
	assert.False(t, base.reverse)
	assert.True(t, once.reverse)
	assert.False(t, twice.reverse, "reverse().reverse() must restore the original direction")
}

func TestCollection_CloneIndependence(t *testing.T) {
	base := newTestCollection()
	limited := base.Limit(1)
	offset := base.Offset(1)
	raw := base.Raw()

	assert.Nil(t, base.limit)
	assert.Nil(t, base.offset)
	assert.False(t, base.raw)

	require.NotNil(t, limited.limit)
	assert.Equal(t, 1, *limited.limit)
	require.NotNil(t, offset.offset)
	assert.Equal(t, 1, *offset.offset)
	assert.True(t, raw.raw)
}

func TestCollection_Filter_ANDsSuccessively(t *testing.T) {
	base := newTestCollection()
	calls := 0
	f1 := func(keyrange.Key, storeapi.Record) bool { calls++; return true }
	f2 := func(keyrange.Key, storeapi.Record) bool { calls++; return false }

	combined := base.Filter(f1).Filter(f2)
	require.NotNil(t, combined.filter)
	assert.False(t, combined.filter(nil, storeapi.Record{}))
	assert.Equal(t, 2, calls, "both predicates must run when ANDed")
}

func TestCollection_Or_AppendsWithoutMutatingBase(t *testing.T) {
	base := newTestCollection()
	withOr := base.Or("name").Equals("Alice")
	assert.Nil(t, base.or)
	require.Len(t, withOr.or, 1)
	assert.Equal(t, "name", withOr.or[0].index)
}
