package durable

import (
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/latticeplan/htn/isotime"
	"github.com/latticeplan/htn/registry"
	"github.com/latticeplan/htn/state"
)

// FactInput is the JSON-native wire form of a single stored fact. Temporal's
// default data converter marshals workflow/activity payloads through
// encoding/json, which cannot carry a *structpb.Value directly; Value holds
// the same union (string, float64, bool, nil, or a nested map/slice of the
// same) as the plain `any` structpb.NewValue accepts.
type FactInput struct {
	Predicate string   `json:"predicate"`
	Subject   []string `json:"subject"`
	Value     any      `json:"value"`
}

// RefinementRequest is RefinementWorkflow's sole argument: everything the
// workflow needs to reconstruct an initial State and root task list without
// requiring a live *registry.Registry or *state.State to cross the process
// boundary.
type RefinementRequest struct {
	PlanID       string               `json:"plan_id"`
	DomainType   string               `json:"domain_type"`
	Root         []registry.ChildSpec `json:"root"`
	InitialFacts []FactInput          `json:"initial_facts"`
	Capabilities map[string][]string  `json:"capabilities"`
	CurrentTime  string               `json:"current_time"`
}

// RefinementResult is RefinementWorkflow's return value: a JSON-native
// projection of the finalized plan.Record, since plan.Record's
// StateSnapshot is already json.RawMessage and round-trips cleanly.
type RefinementResult struct {
	ExecutionStatus  string         `json:"execution_status"`
	SolutionPlan     []ActionResult `json:"solution_plan"`
	PlanningDuration int64          `json:"planning_duration_ms"`
	StateSnapshot    []byte         `json:"planner_state_snapshot,omitempty"`
	FailureReason    string         `json:"failure_reason,omitempty"`
	CompletedAt      string         `json:"completed_at,omitempty"`
}

// ActionResult is the serialized form of one executed action in a
// RefinementResult.
type ActionResult struct {
	Name     string   `json:"name"`
	Args     []string `json:"args"`
	Duration int64    `json:"duration_micros"`
}

// ExecuteActionRequest is the Activity-side payload for dispatching a single
// action handler: the action's name and args, plus a full snapshot of the
// state the handler should see. Sending the whole state on every action
// activity trades payload size for simplicity and determinism; a domain
// with large state should narrow ExecuteActionActivityName's registration
// to only the facts its actions read.
type ExecuteActionRequest struct {
	DomainType   string              `json:"domain_type"`
	ActionName   string              `json:"action_name"`
	Args         []string            `json:"args"`
	Facts        []FactInput         `json:"facts"`
	Capabilities map[string][]string `json:"capabilities"`
	CurrentTime  string              `json:"current_time"`
}

// ExecuteActionResponse is the Activity-side result of dispatching a single
// action. Failed is distinguished from a transport-level error: an action
// that returns (ActionResult, error) from the real handler is an expected
// planning-level failure the workflow's engine backtracks on, not a reason
// for Temporal to retry the activity.
type ExecuteActionResponse struct {
	Failed       bool        `json:"failed"`
	FailureError string      `json:"failure_error,omitempty"`
	Facts        []FactInput `json:"facts,omitempty"`
	Duration     int64       `json:"duration_micros"`
}

// toFactInputs flattens a State's facts into the wire-native slice form.
func toFactInputs(s *state.State) []FactInput {
	var out []FactInput
	for predicate, bySubject := range s.Facts() {
		for encoded, v := range bySubject {
			out = append(out, FactInput{
				Predicate: predicate,
				Subject:   state.DecodeSubjectKey(encoded).Parts,
				Value:     v.AsInterface(),
			})
		}
	}
	return out
}

// factsToState reconstructs a State from a flattened fact slice, capability
// map, and current time.
func factsToState(facts []FactInput, capabilities map[string][]string, currentTime isotime.Micros) (*state.State, error) {
	byPredicate := make(state.Facts, len(facts))
	for _, f := range facts {
		v, err := structpb.NewValue(f.Value)
		if err != nil {
			return nil, err
		}
		key := state.TupleSubject(f.Subject...)
		sub := byPredicate[f.Predicate]
		if sub == nil {
			sub = make(map[string]*structpb.Value)
			byPredicate[f.Predicate] = sub
		}
		sub[key.String()] = v
	}
	return state.New(currentTime, capabilities, byPredicate), nil
}
