// Package durable adapts the in-process refinement engine to run as a
// Temporal workflow, so a single planning call survives worker restarts and
// replays deterministically from event history. The core engine package is
// unchanged; this package supplies only what crossing the workflow/activity
// process boundary requires: a JSON-native request/response shape, a
// process-wide domain catalogue the workflow consults instead of receiving
// a *registry.Registry over the wire, and shadow action handlers that
// redirect dispatch through workflow.ExecuteActivity.
package durable

import (
	"fmt"
	"sync"

	"github.com/latticeplan/htn/registry"
)

// DomainBuilder constructs a fresh, fully-populated Registry for one domain.
// Builders must be pure and deterministic: the workflow may call one more
// than once across replay, and every call must produce an equivalent
// registry (same method order, same action set).
type DomainBuilder func() *registry.Registry

var (
	catalogueMu sync.Mutex
	catalogue   = map[string]DomainBuilder{}
)

// RegisterDomain makes a domain's registry builder available to
// RefinementWorkflow under name. Call this from an init function or from
// worker start-up, before any workflow referencing name can run.
func RegisterDomain(name string, build DomainBuilder) {
	catalogueMu.Lock()
	defer catalogueMu.Unlock()
	catalogue[name] = build
}

// buildDomain looks up and invokes the builder registered for name.
func buildDomain(name string) (*registry.Registry, error) {
	catalogueMu.Lock()
	build, ok := catalogue[name]
	catalogueMu.Unlock()
	if !ok {
		return nil, fmt.Errorf("durable: no domain registered under %q", name)
	}
	return build(), nil
}

// BuildDomain is the exported form of buildDomain, for callers outside the
// workflow/activity boundary (transport/grpc, cmd/plannerd) that need a
// domain's *registry.Registry for a synchronous, in-process refinement call
// rather than a durable Temporal one.
func BuildDomain(name string) (*registry.Registry, error) {
	return buildDomain(name)
}
