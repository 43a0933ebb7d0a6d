// Package store defines the persistence layer for Plan Records.
//
// The Store interface abstracts plan record storage, allowing different
// backend implementations. Available implementations:
//
//   - inmem: in-memory store for development and testing
//   - mongo: MongoDB store for production persistence
package store

import (
	"context"
	"errors"

	"github.com/latticeplan/htn/plan"
)

// ErrNotFound is returned when a plan record is not found in the store.
var ErrNotFound = errors.New("plan record not found")

// Store defines the persistence layer for plan records. Implementations
// must be safe for concurrent use.
type Store interface {
	// Save stores or updates a plan record. If a record with the same id
	// already exists, it is replaced.
	Save(ctx context.Context, record *plan.Record) error

	// Get retrieves a plan record by id. Returns ErrNotFound if the record
	// does not exist.
	Get(ctx context.Context, id string) (*plan.Record, error)

	// Delete removes a plan record by id. Returns ErrNotFound if the
	// record does not exist.
	Delete(ctx context.Context, id string) error
}
