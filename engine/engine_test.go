package engine_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/latticeplan/htn/blacklist"
	"github.com/latticeplan/htn/engine"
	"github.com/latticeplan/htn/graph"
	"github.com/latticeplan/htn/isotime"
	"github.com/latticeplan/htn/registry"
	"github.com/latticeplan/htn/state"
)

// buildMoveDomain registers a minimal single-action "move" domain: a task
// "go" that expands directly into a "move" action. It declares no goal
// methods.
func buildMoveDomain() *registry.Registry {
	r := registry.New()
	r.DeclareTaskMethod("go", func(ctx context.Context, s *state.State, args []string) ([]registry.ChildSpec, bool) {
		return []registry.ChildSpec{{ActionName: "move", Args: args}}, true
	})
	r.DeclareAction("move", func(ctx context.Context, s *state.State, args []string) (registry.ActionResult, error) {
		next := s.Set("at", state.Subject("robot1"), structpb.NewStringValue(args[0]))
		return registry.ActionResult{State: next, Duration: isotime.Micros(1_000_000)}, nil
	})
	return r
}

func TestEngineRunsSingleActionTaskToCompletion(t *testing.T) {
	reg := buildMoveDomain()
	g := graph.New(reg)
	g.AddChildren(graph.RootID, []graph.ChildInfo{{TaskName: "go", Args: []string{"kitchen"}}})

	e := engine.New(g, reg, state.Empty(), blacklist.New(), engine.Options{})
	err := e.Run(context.Background())
	require.NoError(t, err)

	got, ok := e.State().Get("at", state.Subject("robot1"))
	require.True(t, ok)
	assert.Equal(t, "kitchen", got.GetStringValue())
	assert.EqualValues(t, 1_000_000, e.State().CurrentTime())

	actions := g.ExtractActions(graph.RootID)
	require.Len(t, actions, 1)
	assert.Equal(t, "move", actions[0].Info.ActionName)
	assert.EqualValues(t, 1_000_000, actions[0].Duration)
}

func TestEngineBacktracksOnActionFailure(t *testing.T) {
	reg := registry.New()
	attempt := 0
	reg.DeclareTaskMethod("go", func(ctx context.Context, s *state.State, args []string) ([]registry.ChildSpec, bool) {
		return []registry.ChildSpec{{ActionName: "risky", Args: []string{"first"}}}, true
	})
	reg.DeclareTaskMethod("go", func(ctx context.Context, s *state.State, args []string) ([]registry.ChildSpec, bool) {
		return []registry.ChildSpec{{ActionName: "risky", Args: []string{"second"}}}, true
	})
	reg.DeclareAction("risky", func(ctx context.Context, s *state.State, args []string) (registry.ActionResult, error) {
		attempt++
		if args[0] == "first" {
			return registry.ActionResult{}, assertErr("first attempt always fails")
		}
		return registry.ActionResult{State: s.Set("done", state.Subject("x"), structpb.NewBoolValue(true))}, nil
	})

	g := graph.New(reg)
	g.AddChildren(graph.RootID, []graph.ChildInfo{{TaskName: "go"}})

	e := engine.New(g, reg, state.Empty(), blacklist.New(), engine.Options{})
	err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, attempt, "the second task method must be tried after the first action fails")
	assert.Equal(t, 1, e.Backtracks())

	got, ok := e.State().Get("done", state.Subject("x"))
	require.True(t, ok)
	assert.True(t, got.GetBoolValue())
}

func TestEngineNoApplicableBranchFails(t *testing.T) {
	reg := registry.New()
	reg.DeclareTaskMethod("go", func(ctx context.Context, s *state.State, args []string) ([]registry.ChildSpec, bool) {
		return nil, false
	})

	g := graph.New(reg)
	g.AddChildren(graph.RootID, []graph.ChildInfo{{TaskName: "go"}})

	e := engine.New(g, reg, state.Empty(), blacklist.New(), engine.Options{})
	err := e.Run(context.Background())
	require.Error(t, err)
}

func TestEngineGoalAlreadySatisfiedClosesImmediately(t *testing.T) {
	reg := registry.New()
	s := state.Empty().Set("at", state.Subject("robot1"), structpb.NewStringValue("kitchen"))

	g := graph.New(reg)
	g.AddChildren(graph.RootID, []graph.ChildInfo{
		{GoalPredicate: "at", GoalSubject: state.Subject("robot1"), GoalValue: "kitchen"},
	})

	e := engine.New(g, reg, s, blacklist.New(), engine.Options{})
	err := e.Run(context.Background())
	require.NoError(t, err)
}

func TestEngineBlacklistedActionFails(t *testing.T) {
	reg := registry.New()
	reg.DeclareTaskMethod("go", func(ctx context.Context, s *state.State, args []string) ([]registry.ChildSpec, bool) {
		return []registry.ChildSpec{{ActionName: "move", Args: []string{"kitchen"}}}, true
	})
	reg.DeclareAction("move", func(ctx context.Context, s *state.State, args []string) (registry.ActionResult, error) {
		return registry.ActionResult{State: s}, nil
	})

	g := graph.New(reg)
	g.AddChildren(graph.RootID, []graph.ChildInfo{{TaskName: "go"}})

	bl := blacklist.New()
	bl.Add("move", []string{"kitchen"})

	e := engine.New(g, reg, state.Empty(), bl, engine.Options{})
	err := e.Run(context.Background())
	require.Error(t, err, "the only candidate action is blacklisted, so no branch survives")
}

type simpleErr string

func (e simpleErr) Error() string { return string(e) }

func assertErr(msg string) error { return simpleErr(msg) }
