package lerr_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latticedb/lattice/lerr"
)

func TestNew_SatisfiesErrorAndKindOf(t *testing.T) {
	err := lerr.New(lerr.KindNotFound, "missing record")
	assert.Equal(t, lerr.KindNotFound, lerr.KindOf(err))
	assert.True(t, lerr.Is(err, lerr.KindNotFound))
	assert.False(t, lerr.Is(err, lerr.KindConstraint))
}

func TestWrap_PreservesCauseViaUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	wrapped := lerr.Wrap(lerr.KindOpenFailed, "cannot open store", cause)

	assert.ErrorIs(t, wrapped, cause)

	var asErr *lerr.Error
	require.True(t, errors.As(wrapped, &asErr))
	assert.Equal(t, lerr.KindOpenFailed, asErr.Kind)
}

func TestKindOf_UnknownErrorIsKindUnknown(t *testing.T) {
	assert.Equal(t, lerr.KindUnknown, lerr.KindOf(errors.New("plain")))
}

func TestIs_FalseForNonLatticeError(t *testing.T) {
	assert.False(t, lerr.Is(errors.New("plain"), lerr.KindData))
}
