package scriptfilter_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latticedb/lattice/scriptfilter"
	"github.com/latticedb/lattice/storeapi"
)

func TestCompile_InvalidExpressionFails(t *testing.T) {
	_, err := scriptfilter.Compile("this is not ( valid js")
	require.Error(t, err)
}

func TestEval_BooleanExpressionOverFields(t *testing.T) {
	pred, err := scriptfilter.Compile("age >= 18 && name.length > 0")
	require.NoError(t, err)

	ok, err := pred.Eval(storeapi.Record{"age": int64(20), "name": "Alice"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = pred.Eval(storeapi.Record{"age": int64(10), "name": "Bob"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPredicate_ReusableAcrossRecords(t *testing.T) {
	pred, err := scriptfilter.Compile("status == \"active\"")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		ok, err := pred.Eval(storeapi.Record{"status": "active"})
		require.NoError(t, err)
		assert.True(t, ok)
	}

	ok, err := pred.Eval(storeapi.Record{"status": "inactive"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAsRecordFilter_MatchesQueryRecordFilterSignature(t *testing.T) {
	pred, err := scriptfilter.Compile("n > 1")
	require.NoError(t, err)

	filter := pred.AsRecordFilter()
	assert.True(t, filter(int64(1), storeapi.Record{"n": int64(2)}))
	assert.False(t, filter(int64(2), storeapi.Record{"n": int64(1)}))
}
