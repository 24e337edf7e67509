package middleware

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latticedb/lattice/storeapi"
)

type stubStore struct {
	Passthrough
	begins int
}

func (s *stubStore) Begin(ctx context.Context, tables []string, writable bool, durability storeapi.Durability) (storeapi.Tx, error) {
	s.begins++
	return nil, nil
}

func TestStack_ComposeOrdersAscendingByLevel(t *testing.T) {
	var order []string
	mk := func(name string, level int) Middleware {
		return Middleware{
			Name: name, Level: level,
			Create: func(down storeapi.Store) storeapi.Store {
				order = append(order, name)
				return Passthrough{down}
			},
		}
	}

	s := NewStack()
	s.Register(mk("outer", 20))
	s.Register(mk("inner", 5))
	s.Register(mk("mid", DefaultLevel))

	base := &stubStore{}
	_ = s.Compose(base)

	assert.Equal(t, []string{"inner", "mid", "outer"}, order)
}

func TestStack_RegisterReplacesByName(t *testing.T) {
	s := NewStack()
	s.Register(Middleware{Name: "a", Level: 1, Create: func(down storeapi.Store) storeapi.Store { return down }})
	s.Register(Middleware{Name: "a", Level: 2, Create: func(down storeapi.Store) storeapi.Store { return down }})
	require.Len(t, s.Names(), 1)
}

func TestStack_Unregister(t *testing.T) {
	s := NewStack()
	s.Register(Middleware{Name: "a", Create: func(down storeapi.Store) storeapi.Store { return down }})
	s.Unregister("a")
	assert.Empty(t, s.Names())
}

func TestPassthrough_InheritsUnoverriddenMethods(t *testing.T) {
	base := &stubStore{}
	wrapped := Passthrough{base}
	_, _ = wrapped.Begin(context.Background(), nil, false, storeapi.DurabilityDefault)
	assert.Equal(t, 1, base.begins)
}
