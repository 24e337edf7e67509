package keyrange_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latticedb/lattice/keyrange"
)

func TestEncodeDecode_RoundTrips(t *testing.T) {
	cases := []keyrange.Key{
		int64(42), float64(3.5), "hello", true, false, []byte{1, 2, 3},
		time.Unix(0, 1700000000000000000),
	}
	for _, k := range cases {
		enc := keyrange.Encode(k)
		dec, n, err := keyrange.Decode(enc)
		require.NoError(t, err)
		assert.Equal(t, len(enc), n)
		if tm, ok := k.(time.Time); ok {
			decTm, ok := dec.(time.Time)
			require.True(t, ok, "decoding a tagTime key must reconstruct a time.Time, not a bare float64")
			assert.True(t, tm.Equal(decTm))
		} else if f, ok := k.(int64); ok {
			assert.Equal(t, float64(f), dec)
		} else {
			assert.Equal(t, k, dec)
		}
	}
}

func TestEncode_NumericOrderAgreesWithByteOrder(t *testing.T) {
	nums := []float64{-100, -1.5, -0.001, 0, 0.001, 1.5, 100}
	for i := 0; i < len(nums)-1; i++ {
		a, b := keyrange.Encode(nums[i]), keyrange.Encode(nums[i+1])
		assert.True(t, bytes.Compare(a, b) < 0, "expected Encode(%v) < Encode(%v)", nums[i], nums[i+1])
	}
}

func TestEncode_StringOrderAgreesWithByteOrder(t *testing.T) {
	strs := []string{"apple", "banana", "cherry"}
	for i := 0; i < len(strs)-1; i++ {
		a, b := keyrange.Encode(strs[i]), keyrange.Encode(strs[i+1])
		assert.True(t, bytes.Compare(a, b) < 0)
	}
}

func TestEncode_TerminatorHandlesPrefixRelationship(t *testing.T) {
	short := keyrange.Encode("ab")
	long := keyrange.Encode("abc")
	assert.True(t, bytes.Compare(short, long) < 0, "a prefix string must sort before its extension")
}

func TestDecodeN_SplitsCompoundEncoding(t *testing.T) {
	a, b := keyrange.Encode("x"), keyrange.Encode(int64(7))
	buf := append(append([]byte{}, a...), b...)
	keys, n, err := keyrange.DecodeN(buf, 2)
	require.NoError(t, err)
	assert.Equal(t, len(buf), n)
	assert.Equal(t, "x", keys[0])
	assert.Equal(t, float64(7), keys[1])
}

func TestDecode_EmptyInputErrors(t *testing.T) {
	_, _, err := keyrange.Decode(nil)
	require.Error(t, err)
}
