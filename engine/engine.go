// Package engine implements the planner's refinement loop: the single,
// deterministic step function that picks an open node, dispatches on its
// kind, applies a method or executes an action, and extends or backtracks
// the solution graph until the tree is quiescent.
package engine

import (
	"context"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/latticeplan/htn/backtrack"
	"github.com/latticeplan/htn/blacklist"
	"github.com/latticeplan/htn/graph"
	"github.com/latticeplan/htn/outcome"
	"github.com/latticeplan/htn/planerrors"
	"github.com/latticeplan/htn/registry"
	"github.com/latticeplan/htn/state"
	"github.com/latticeplan/htn/telemetry"
)

// Options configures an Engine. PlanID is used only to stamp outcome
// events; it is not interpreted by the engine.
type Options struct {
	PlanID   string
	Reporter outcome.Reporter
	Logger   telemetry.Logger
	Metrics  telemetry.Metrics
	Tracer   telemetry.Tracer
}

// Engine drives the refinement loop against a single Graph, State, and
// Blacklist. It is not safe for concurrent use; see spec.md §5 — a
// refinement call owns its collaborators exclusively.
type Engine struct {
	graph      *graph.Graph
	reg        *registry.Registry
	state      *state.State
	blacklist  *blacklist.Set
	opts       Options
	frontier   int
	terminated bool
	failed     bool
	iterations int
	backtracks int
}

// New constructs an Engine over an initial State and a Graph that already
// has its root's children attached (the caller wraps the initial task list
// as the root's successors before calling New).
func New(g *graph.Graph, reg *registry.Registry, initial *state.State, bl *blacklist.Set, opts Options) *Engine {
	if opts.Reporter == nil {
		opts.Reporter = outcome.Noop
	}
	if opts.Logger == nil {
		opts.Logger = telemetry.NewNoopLogger()
	}
	if opts.Metrics == nil {
		opts.Metrics = telemetry.NewNoopMetrics()
	}
	if opts.Tracer == nil {
		opts.Tracer = telemetry.NewNoopTracer()
	}
	return &Engine{
		graph:     g,
		reg:       reg,
		state:     initial,
		blacklist: bl,
		opts:      opts,
		frontier:  graph.RootID,
	}
}

// Graph returns the solution graph being built, for callers that need to
// inspect or serialize it after (or during) a run.
func (e *Engine) Graph() *graph.Graph { return e.graph }

// State returns the engine's current state.
func (e *Engine) State() *state.State { return e.state }

// Iterations returns the number of steps taken so far. Exposed for
// diagnostics; the engine imposes no bound of its own (spec.md §4.4).
func (e *Engine) Iterations() int { return e.iterations }

// Backtracks returns the number of times the engine has invoked the
// backtracker so far.
func (e *Engine) Backtracks() int { return e.backtracks }

// Run drives Step to completion. It returns a planerrors.NoApplicableBranch
// error if backtracking exhausted the root without finding a surviving
// branch; a nil return means the graph reached quiescence successfully.
func (e *Engine) Run(ctx context.Context) error {
	for {
		done, err := e.Step(ctx)
		if err != nil {
			return err
		}
		if done {
			break
		}
	}
	if e.failed {
		return planerrors.New(planerrors.NoApplicableBranch, "backtracking exhausted every candidate; no applicable branch remains")
	}
	return nil
}

// Step performs one iteration of the refinement loop (spec.md §4.4). It
// returns done=true once the engine has terminated, either by ascending
// past the root successfully or by exhausting backtracking.
func (e *Engine) Step(ctx context.Context) (done bool, err error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if e.terminated {
		return true, nil
	}
	e.iterations++

	childID, ok := e.graph.FindOpenChild(e.frontier)
	if !ok {
		if e.frontier == graph.RootID {
			e.terminated = true
			return true, nil
		}
		pred, ok := e.graph.FindPredecessor(e.frontier)
		if !ok {
			pred = graph.RootID
		}
		e.frontier = pred
		return false, nil
	}

	node := e.graph.Node(childID)
	if node.SavedState == nil {
		node.SavedState = e.state.DeepCopy()
	} else {
		e.state = node.SavedState
	}

	switch node.Kind {
	case graph.Task:
		e.stepTask(ctx, node)
	case graph.Action:
		e.stepAction(ctx, node)
	case graph.Goal:
		e.stepGoal(ctx, node)
	case graph.Multigoal:
		e.stepMultigoal(ctx, node)
	case graph.VerifyGoal, graph.VerifyMultigoal:
		e.stepVerifier(node)
	default:
		e.backtrackFrom(node.ID)
	}
	return e.terminated, nil
}

func (e *Engine) stepTask(ctx context.Context, node *graph.Node) {
	for len(node.AvailableTaskMethods) > 0 {
		method := node.AvailableTaskMethods[0]
		node.AvailableTaskMethods = node.AvailableTaskMethods[1:]
		node.SelectedMethod++
		children, ok := method(ctx, e.state, node.Info.Args)
		if !ok {
			continue
		}
		e.closeAndExpand(node, toChildSpecs(children))
		return
	}
	e.opts.Logger.Debug(ctx, "task has no applicable method", "task", node.Info.TaskName)
	e.backtrackFrom(node.ID)
}

func (e *Engine) stepGoal(ctx context.Context, node *graph.Node) {
	if goalHolds(e.state, node.Info.GoalPredicate, node.Info.GoalSubject, node.Info.GoalValue) {
		node.Status = graph.Closed
		e.closeAndExpand(node, nil)
		return
	}
	for len(node.AvailableGoalMethods) > 0 {
		method := node.AvailableGoalMethods[0]
		node.AvailableGoalMethods = node.AvailableGoalMethods[1:]
		node.SelectedMethod++
		children, ok := method(ctx, e.state, node.Info.GoalSubject, node.Info.GoalValue)
		if !ok {
			continue
		}
		e.closeAndExpand(node, toChildSpecs(children))
		return
	}
	e.opts.Logger.Debug(ctx, "goal has no applicable method", "predicate", node.Info.GoalPredicate)
	e.backtrackFrom(node.ID)
}

func (e *Engine) stepMultigoal(ctx context.Context, node *graph.Node) {
	remaining := unachievedAtoms(e.state, node.Info.MultigoalAtoms)
	if len(remaining) == 0 {
		node.Status = graph.Closed
		e.closeAndExpand(node, nil)
		return
	}
	for len(node.AvailableMultigoalMethods) > 0 {
		method := node.AvailableMultigoalMethods[0]
		node.AvailableMultigoalMethods = node.AvailableMultigoalMethods[1:]
		node.SelectedMethod++
		children, ok := method(ctx, e.state, remaining)
		if !ok {
			continue
		}
		e.closeAndExpand(node, toChildSpecs(children))
		return
	}
	e.opts.Logger.Debug(ctx, "multigoal has no applicable method", "tag", node.Info.MultigoalTag)
	e.backtrackFrom(node.ID)
}

// closeAndExpand marks node Closed, attaches children (which, for Goal and
// Multigoal parents, implicitly appends the verifier sentinel — see
// graph.Graph.AddChildren), and advances the frontier to node so the next
// step scans its new successors.
func (e *Engine) closeAndExpand(node *graph.Node, children []graph.ChildInfo) {
	node.Status = graph.Closed
	e.graph.AddChildren(node.ID, children)
	e.frontier = node.ID
}

func (e *Engine) stepAction(ctx context.Context, node *graph.Node) {
	if e.blacklist.Contains(node.Info.ActionName, node.Info.Args) {
		e.opts.Logger.Info(ctx, "action blacklisted", "action", node.Info.ActionName)
		e.backtrackFrom(node.ID)
		return
	}
	handler := node.ActionHandler
	if handler == nil {
		e.backtrackFrom(node.ID)
		return
	}

	startTime := e.state.CurrentTime()
	result, err := handler(ctx, e.state, node.Info.Args)
	if err != nil {
		e.opts.Reporter.Report(ctx, outcome.Event{
			PlanID:    e.opts.PlanID,
			Action:    node.Info.ActionName,
			Args:      node.Info.Args,
			StartTime: startTime,
			Outcome:   outcome.Failure,
			Reason:    err.Error(),
		})
		e.opts.Metrics.IncCounter("htn_action_failures_total", 1, "action", node.Info.ActionName)
		e.backtrackFrom(node.ID)
		return
	}

	endTime := startTime + result.Duration
	node.StartTime = startTime
	node.EndTime = endTime
	node.Duration = result.Duration
	node.Status = graph.Closed
	e.state = result.State.WithCurrentTime(endTime)

	e.opts.Reporter.Report(ctx, outcome.Event{
		PlanID:    e.opts.PlanID,
		Action:    node.Info.ActionName,
		Args:      node.Info.Args,
		StartTime: startTime,
		EndTime:   endTime,
		Outcome:   outcome.Success,
	})
	e.opts.Metrics.IncCounter("htn_actions_executed_total", 1, "action", node.Info.ActionName)
	// The frontier does not advance past an Action: its siblings, if any,
	// are still open and must be visited next.
}

func (e *Engine) stepVerifier(node *graph.Node) {
	target := e.graph.Node(node.Info.VerifyTarget)
	satisfied := false
	switch node.Kind {
	case graph.VerifyGoal:
		satisfied = goalHolds(e.state, target.Info.GoalPredicate, target.Info.GoalSubject, target.Info.GoalValue)
	case graph.VerifyMultigoal:
		satisfied = len(unachievedAtoms(e.state, target.Info.MultigoalAtoms)) == 0
	}
	if satisfied {
		node.Status = graph.Closed
		return
	}
	e.backtrackFrom(node.ID)
}

func (e *Engine) backtrackFrom(failedID int) {
	e.backtracks++
	res := backtrack.Backtrack(e.graph, e.frontier, failedID)
	if res.Exhausted {
		e.frontier = graph.RootID
		e.terminated = true
		e.failed = true
		return
	}
	e.frontier = res.FrontierParent
}

func toChildSpecs(specs []registry.ChildSpec) []graph.ChildInfo {
	out := make([]graph.ChildInfo, len(specs))
	copy(out, specs)
	return out
}

// goalHolds tests a single goal atom against state, accepting both the
// legacy (subject, predicate, value) and canonical (predicate, [subject,
// value]) shapes — both resolve to the same stored fact lookup (spec.md
// §4.4, §6).
func goalHolds(s *state.State, predicate string, subject state.SubjectKey, value interface{}) bool {
	got, ok := s.Get(predicate, subject)
	if !ok {
		return false
	}
	return valuesEqual(got, value)
}

func unachievedAtoms(s *state.State, atoms []registry.GoalAtom) []registry.GoalAtom {
	var remaining []registry.GoalAtom
	for _, a := range atoms {
		if !goalHolds(s, a.Predicate, a.Subject, a.Value) {
			remaining = append(remaining, a)
		}
	}
	return remaining
}

// valuesEqual compares a stored *structpb.Value against a Go-native goal
// target value (string, float64, bool, or nil), the shape domain authors
// write goal literals in.
func valuesEqual(got *structpb.Value, want interface{}) bool {
	if want == nil {
		return got == nil || got.GetKind() == nil
	}
	switch w := want.(type) {
	case string:
		return got.GetStringValue() == w
	case bool:
		return got.GetKind() != nil && got.GetBoolValue() == w
	case float64:
		return got.GetNumberValue() == w
	case *structpb.Value:
		return got.String() == w.String()
	default:
		return false
	}
}
