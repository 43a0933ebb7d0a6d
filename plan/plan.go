// Package plan implements the Plan Record: the externally visible object a
// refinement run produces, its lifecycle status, the extracted action
// sequence, accumulated planning duration, and a serialized snapshot of the
// final State.
package plan

import (
	"encoding/json"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/latticeplan/htn/graph"
	"github.com/latticeplan/htn/isotime"
	"github.com/latticeplan/htn/state"
)

// Status is the plan's lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusPlanned   Status = "planned"
	StatusExecuting Status = "executing"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Action is the serialized form of one extracted Action node.
type Action struct {
	Name     string   `json:"name"`
	Args     []string `json:"args"`
	Duration int64    `json:"duration_micros"`
}

// Record is the externally visible plan object spec.md §4.8 and §6
// describe: id, execution status, timing, the extracted action sequence,
// and a serialized snapshot of the final State.
type Record struct {
	ID               string          `json:"id"`
	Name             string          `json:"name,omitempty"`
	PersonaID        string          `json:"persona_id,omitempty"`
	DomainType       string          `json:"domain_type,omitempty"`
	ExecutionStatus  Status          `json:"execution_status"`
	RunLazy          bool            `json:"run_lazy"`
	StartedAt        string          `json:"started_at,omitempty"`
	CompletedAt      string          `json:"completed_at,omitempty"`
	SolutionPlan     []Action        `json:"solution_plan"`
	PlanningDuration int64           `json:"planning_duration_ms"`
	StateSnapshot    json.RawMessage `json:"planner_state_snapshot,omitempty"`
	FailureReason    string          `json:"failure_reason,omitempty"`
}

// New constructs a pending Record with the given id; callers typically
// transition it through Planned/Executing before Finalize.
func New(id string) *Record {
	return &Record{ID: id, ExecutionStatus: StatusPending, SolutionPlan: []Action{}}
}

// MarkExecuting transitions the record to executing, the status visible
// when a plan is fetched mid-run (spec.md §4.8).
func (r *Record) MarkExecuting(startedAt isotime.Micros) {
	r.ExecutionStatus = StatusExecuting
	r.StartedAt = isotime.FromMicrosAbs(startedAt)
}

// FinalizeFromGraph populates the record from a terminated engine run: the
// action sequence extracted from g, the accumulated duration in
// milliseconds, the final state's JSON snapshot, and the terminal status.
// A non-nil runErr marks the record failed and records its message as the
// failure reason, matching spec.md §7's "reason string summarizing the
// topmost failed node".
func (r *Record) FinalizeFromGraph(g *graph.Graph, final *state.State, completedAt isotime.Micros, runErr error) error {
	actions := g.ExtractActions(graph.RootID)
	r.SolutionPlan = make([]Action, 0, len(actions))
	var totalMicros int64
	for _, a := range actions {
		if a.Info.ActionName == "" {
			continue
		}
		r.SolutionPlan = append(r.SolutionPlan, Action{
			Name:     a.Info.ActionName,
			Args:     a.Info.Args,
			Duration: int64(a.Duration),
		})
		totalMicros += int64(a.Duration)
	}

	snapshot, err := snapshotState(final)
	if err != nil {
		return err
	}
	r.StateSnapshot = snapshot
	r.PlanningDuration = totalMicros / 1000
	r.CompletedAt = isotime.FromMicrosAbs(completedAt)

	if runErr != nil {
		r.ExecutionStatus = StatusFailed
		r.FailureReason = runErr.Error()
		return nil
	}
	r.ExecutionStatus = StatusCompleted
	return nil
}

func snapshotState(s *state.State) (json.RawMessage, error) {
	type factEntry struct {
		Predicate string           `json:"predicate"`
		Subject   state.SubjectKey `json:"subject"`
		Value     json.RawMessage  `json:"value"`
	}
	var entries []factEntry
	for predicate, bySubject := range s.Facts() {
		for encodedSubject, v := range bySubject {
			valueJSON, err := marshalValue(v)
			if err != nil {
				return nil, err
			}
			entries = append(entries, factEntry{
				Predicate: predicate,
				Subject:   state.DecodeSubjectKey(encodedSubject),
				Value:     valueJSON,
			})
		}
	}
	doc := struct {
		CurrentTime string      `json:"current_time"`
		Facts       []factEntry `json:"facts"`
	}{
		CurrentTime: isotime.FromMicrosAbs(s.CurrentTime()),
		Facts:       entries,
	}
	return json.Marshal(doc)
}

func marshalValue(v *structpb.Value) (json.RawMessage, error) {
	if v == nil {
		return json.RawMessage("null"), nil
	}
	b, err := protojson.Marshal(v)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(b), nil
}
