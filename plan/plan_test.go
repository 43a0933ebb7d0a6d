package plan_test

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
	"github.com/latticeplan/htn/plan"
	"github.com/latticeplan/htn/registry"
	"github.com/latticeplan/htn/state"
)

func buildMoveDomain() *registry.Registry {
	r := registry.New()
	r.DeclareTaskMethod("go", func(ctx context.Context, s *state.State, args []string) ([]registry.ChildSpec, bool) {
		return []registry.ChildSpec{{ActionName: "move", Args: args}}, true
	})
	r.DeclareAction("move", func(ctx context.Context, s *state.State, args []string) (registry.ActionResult, error) {
		next := s.Set("at", state.Subject("robot1"), structpb.NewStringValue(args[0]))
		return registry.ActionResult{State: next, Duration: isotime.Micros(2_000_000)}, nil
	})
	return r
}

func TestFinalizeFromGraphSuccessAccumulatesDuration(t *testing.T) {
	reg := buildMoveDomain()
	g := graph.New(reg)
	g.AddChildren(graph.RootID, []graph.ChildInfo{{TaskName: "go", Args: []string{"kitchen"}}})

	e := engine.New(g, reg, state.Empty(), blacklist.New(), engine.Options{})
	require.NoError(t, e.Run(context.Background()))

	r := plan.New("plan-1")
	err := r.FinalizeFromGraph(g, e.State(), e.State().CurrentTime(), nil)
	require.NoError(t, err)

	assert.Equal(t, plan.StatusCompleted, r.ExecutionStatus)
	require.Len(t, r.SolutionPlan, 1)
	assert.Equal(t, "move", r.SolutionPlan[0].Name)
	assert.EqualValues(t, 2_000_000, r.SolutionPlan[0].Duration)
	assert.EqualValues(t, 2000, r.PlanningDuration, "planning_duration_ms is the microsecond total divided by 1000")
	assert.NotEmpty(t, r.StateSnapshot)
}

func TestFinalizeFromGraphFailureSetsReason(t *testing.T) {
	reg := registry.New()
	reg.DeclareTaskMethod("go", func(ctx context.Context, s *state.State, args []string) ([]registry.ChildSpec, bool) {
		return nil, false
	})

	g := graph.New(reg)
	g.AddChildren(graph.RootID, []graph.ChildInfo{{TaskName: "go"}})

	e := engine.New(g, reg, state.Empty(), blacklist.New(), engine.Options{})
	runErr := e.Run(context.Background())
	require.Error(t, runErr)

	r := plan.New("plan-2")
	err := r.FinalizeFromGraph(g, e.State(), e.State().CurrentTime(), runErr)
	require.NoError(t, err)

	assert.Equal(t, plan.StatusFailed, r.ExecutionStatus)
	assert.Equal(t, runErr.Error(), r.FailureReason)
}

func TestMarkExecutingSetsStartedAt(t *testing.T) {
	r := plan.New("plan-3")
	r.MarkExecuting(isotime.Micros(1_000_000))
	assert.Equal(t, plan.StatusExecuting, r.ExecutionStatus)
	assert.NotEmpty(t, r.StartedAt)
}
