// Package state implements the planner's typed world state: a nested fact
// store keyed by (predicate, subject), an entity-capability lookup, and the
// current time, per spec.md §3/§4.1. State is value-semantic from the
// planner's point of view — every mutating operation returns a new State,
// and the engine never mutates a State reachable from a node's saved_state.
package state

import (
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/latticeplan/htn/isotime"
)

// Facts is a nested mapping from predicate name to the per-subject value
// map. Values are *structpb.Value, which models exactly spec.md §3's
// "opaque value (string, number, boolean, or small structured value)" union
// and round-trips through protojson at the plan-record and transport
// boundaries without a bespoke wire format.
type Facts map[string]map[string]*structpb.Value

// State is the typed world state passed to every task/goal/multigoal method
// and action handler.
type State struct {
	facts        Facts
	capabilities map[string]map[string]struct{}
	currentTime  isotime.Micros
}

// New constructs a State from an initial fact set, entity capability set,
// and current time. The caller's maps are not retained; New copies them.
func New(currentTime isotime.Micros, capabilities map[string][]string, facts Facts) *State {
	capCopy := make(map[string]map[string]struct{}, len(capabilities))
	for entity, tags := range capabilities {
		set := make(map[string]struct{}, len(tags))
		for _, tag := range tags {
			set[tag] = struct{}{}
		}
		capCopy[entity] = set
	}
	factsCopy := make(Facts, len(facts))
	for predicate, bySubject := range facts {
		subCopy := make(map[string]*structpb.Value, len(bySubject))
		for subject, v := range bySubject {
			subCopy[subject] = proto.Clone(v).(*structpb.Value)
		}
		factsCopy[predicate] = subCopy
	}
	return &State{facts: factsCopy, capabilities: capCopy, currentTime: currentTime}
}

// Empty constructs a State with no facts, no capabilities, and current time
// zero (the Unix epoch).
func Empty() *State {
	return New(0, nil, nil)
}

// CurrentTime returns the state's current absolute time.
func (s *State) CurrentTime() isotime.Micros {
	return s.currentTime
}

// WithCurrentTime returns a new State with the current time advanced (or
// set) to t; all facts and capabilities are shared with the receiver, which
// is safe because neither is ever mutated in place.
func (s *State) WithCurrentTime(t isotime.Micros) *State {
	return &State{facts: s.facts, capabilities: s.capabilities, currentTime: t}
}

// Get looks up a fact by (predicate, subject). The boolean return is false
// if the key is missing, matching spec.md §3's "missing keys yield null"
// (callers distinguish "missing" from "explicit null" via the boolean).
func (s *State) Get(predicate string, subject SubjectKey) (*structpb.Value, bool) {
	bySubject, ok := s.facts[predicate]
	if !ok {
		return nil, false
	}
	v, ok := bySubject[subject.String()]
	return v, ok
}

// GetBySubject is the (subject, predicate) lookup flavor spec.md §3
// requires as equivalent to Get; both resolve to the same stored fact.
func (s *State) GetBySubject(subject SubjectKey, predicate string) (*structpb.Value, bool) {
	return s.Get(predicate, subject)
}

// Set returns a new State with the given fact written, leaving the receiver
// untouched. Only the affected predicate's subject map is copied; other
// predicates' maps are shared by reference, which is safe because Set never
// mutates an existing map in place.
func (s *State) Set(predicate string, subject SubjectKey, value *structpb.Value) *State {
	newFacts := make(Facts, len(s.facts)+1)
	for p, m := range s.facts {
		newFacts[p] = m
	}
	oldSub := newFacts[predicate]
	newSub := make(map[string]*structpb.Value, len(oldSub)+1)
	for k, v := range oldSub {
		newSub[k] = v
	}
	newSub[subject.String()] = value
	newFacts[predicate] = newSub
	return &State{facts: newFacts, capabilities: s.capabilities, currentTime: s.currentTime}
}

// Facts returns the predicates and subjects currently recorded, for
// iteration (e.g., multigoal achievement checks, serialization). The
// returned map and its value maps must not be mutated by callers.
func (s *State) Facts() Facts {
	return s.facts
}

// DeepCopy returns an independent State: every stored value is proto-cloned,
// guaranteeing that a handler which (incorrectly) mutates a *structpb.Value
// obtained from Get cannot corrupt a snapshot already attached to a graph
// node. Required before stashing a State in a node's saved_state (spec.md
// §4.1).
func (s *State) DeepCopy() *State {
	factsCopy := make(Facts, len(s.facts))
	for predicate, bySubject := range s.facts {
		subCopy := make(map[string]*structpb.Value, len(bySubject))
		for subject, v := range bySubject {
			subCopy[subject] = proto.Clone(v).(*structpb.Value)
		}
		factsCopy[predicate] = subCopy
	}
	capCopy := make(map[string]map[string]struct{}, len(s.capabilities))
	for entity, tags := range s.capabilities {
		set := make(map[string]struct{}, len(tags))
		for tag := range tags {
			set[tag] = struct{}{}
		}
		capCopy[entity] = set
	}
	return &State{facts: factsCopy, capabilities: capCopy, currentTime: s.currentTime}
}

// Update merges merge's fact sub-maps into a new State, recursively by
// predicate, replacing leaves: for each predicate present in merge, each
// subject's value overwrites (or adds to) the receiver's value for that
// (predicate, subject). Predicates absent from merge are left untouched.
func (s *State) Update(merge Facts) *State {
	newFacts := make(Facts, len(s.facts)+len(merge))
	for p, m := range s.facts {
		newFacts[p] = m
	}
	for predicate, bySubject := range merge {
		base := newFacts[predicate]
		merged := make(map[string]*structpb.Value, len(base)+len(bySubject))
		for k, v := range base {
			merged[k] = v
		}
		for subject, v := range bySubject {
			merged[subject] = proto.Clone(v).(*structpb.Value)
		}
		newFacts[predicate] = merged
	}
	return &State{facts: newFacts, capabilities: s.capabilities, currentTime: s.currentTime}
}

// HasCapability reports whether the named entity carries the given
// capability tag. The refinement engine does not call it.
func (s *State) HasCapability(entityID, capability string) bool {
	tags, ok := s.capabilities[entityID]
	if !ok {
		return false
	}
	_, ok = tags[capability]
	return ok
}

// Capabilities returns the capability tags recorded for entityID, or nil if
// the entity is unknown.
func (s *State) Capabilities(entityID string) []string {
	tags, ok := s.capabilities[entityID]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(tags))
	for tag := range tags {
		out = append(out, tag)
	}
	return out
}
