// Package inmem provides an in-memory implementation of the plan store.
//
// This implementation is suitable for development, testing, and
// single-node deployments where persistence across restarts is not
// required.
package inmem

import (
	"context"
	"sync"

	"github.com/latticeplan/htn/plan"
	"github.com/latticeplan/htn/plan/store"
)

// Store is an in-memory implementation of the store.Store interface. It is
// safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	records map[string]*plan.Record
}

// Compile-time check that Store implements store.Store.
var _ store.Store = (*Store)(nil)

// New creates a new in-memory store.
func New() *Store {
	return &Store{records: make(map[string]*plan.Record)}
}

// Save stores or updates a plan record.
func (s *Store) Save(ctx context.Context, record *plan.Record) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *record
	s.records[record.ID] = &cp
	return nil
}

// Get retrieves a plan record by id.
func (s *Store) Get(ctx context.Context, id string) (*plan.Record, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *record
	return &cp, nil
}

// Delete removes a plan record by id.
func (s *Store) Delete(ctx context.Context, id string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.records, id)
	return nil
}
