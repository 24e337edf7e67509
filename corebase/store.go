package corebase

import (
	"context"
	"sync"

	"github.com/latticedb/lattice/schema"
	"github.com/latticedb/lattice/storeapi"
)

// RawStore is the backend-specific half corebase.Store drives: opening raw
// transactions and materializing schema changes against the backend's own
// physical layout (bucket/table creation, index bucket creation, ...).
type RawStore interface {
	BeginRaw(ctx context.Context, writable bool) (RawTx, error)
	ApplyRawSchema(ctx context.Context, changes []schema.Change, full schema.DatabaseSchema) error
	Capabilities() storeapi.Capabilities
	Close() error
	Delete() error
}

// Store implements storeapi.Store generically over any RawStore, the same
// way corebase.Tx implements storeapi.Tx generically over any RawTx.
type Store struct {
	mu     sync.RWMutex
	raw    RawStore
	schema schema.DatabaseSchema
}

// NewStore wraps raw, initially describing the schema at version 0 (empty).
func NewStore(raw RawStore) *Store {
	return &Store{raw: raw, schema: schema.DatabaseSchema{}}
}

func (s *Store) Begin(ctx context.Context, tables []string, writable bool, durability storeapi.Durability) (storeapi.Tx, error) {
	s.mu.RLock()
	full := s.schema.Clone()
	s.mu.RUnlock()

	raw, err := s.raw.BeginRaw(ctx, writable)
	if err != nil {
		return nil, err
	}
	return NewTx(raw, full), nil
}

func (s *Store) ApplySchema(ctx context.Context, changes []schema.Change, full schema.DatabaseSchema) error {
	if err := s.raw.ApplyRawSchema(ctx, changes, full); err != nil {
		return err
	}
	s.mu.Lock()
	s.schema = full.Clone()
	s.mu.Unlock()
	return nil
}

func (s *Store) Capabilities() storeapi.Capabilities { return s.raw.Capabilities() }
func (s *Store) Close() error                        { return s.raw.Close() }
func (s *Store) Delete() error                        { return s.raw.Delete() }
