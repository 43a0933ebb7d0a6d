// Package shared provides a cluster-replicated variant of the refinement
// engine's blacklist, backed by a Pulse replicated map so a ban for
// (action_name, args) added on one node is visible on every node sharing
// the map. This is an operational kill-switch, not a planning semantic.
// engine.New takes a *blacklist.Set, so the refinement engine does not
// consult a Set from this package.
package shared

import (
	"context"
	"fmt"

	"github.com/latticeplan/htn/blacklist"
)

// Map is the minimal replicated-map contract required by Set.
//
// Map is satisfied by `*rmap.Map` from `goa.design/pulse/rmap`. It is
// defined here to keep Set unit-testable without Redis and to avoid
// coupling callers to a concrete Pulse implementation.
//
// Implementations must be safe for concurrent use.
type Map interface {
	Set(ctx context.Context, key, value string) (string, error)
	Get(key string) (string, bool)
	Keys() []string
}

const entryValue = "1"

// Set is a blacklist backed by a replicated map: Add pushes a ban visible
// to every node sharing the map, and Contains consults the map directly so
// a ban pushed by another node takes effect on this node's very next check.
type Set struct {
	m Map
}

// New constructs a Set backed by m.
func New(m Map) *Set {
	return &Set{m: m}
}

// Add records (actionName, args) as blacklisted across the fleet.
func (s *Set) Add(ctx context.Context, actionName string, args []string) error {
	if _, err := s.m.Set(ctx, blacklist.Encode(actionName, args), entryValue); err != nil {
		return fmt.Errorf("shared blacklist: add %q: %w", actionName, err)
	}
	return nil
}

// Contains reports whether (actionName, args) is blacklisted, as observed
// from this node's replica of the map.
func (s *Set) Contains(actionName string, args []string) bool {
	_, ok := s.m.Get(blacklist.Encode(actionName, args))
	return ok
}

// Len returns the number of blacklisted entries visible to this node.
func (s *Set) Len() int {
	return len(s.m.Keys())
}
