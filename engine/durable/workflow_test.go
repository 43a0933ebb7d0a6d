package durable_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/testsuite"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/latticeplan/htn/engine/durable"
	"github.com/latticeplan/htn/registry"
	"github.com/latticeplan/htn/state"
)

const testDomain = "durable-test-move"

func init() {
	durable.RegisterDomain(testDomain, func() *registry.Registry {
		r := registry.New()
		r.DeclareTaskMethod("go", func(ctx context.Context, s *state.State, args []string) ([]registry.ChildSpec, bool) {
			return []registry.ChildSpec{{ActionName: "move", Args: args}}, true
		})
		r.DeclareAction("move", func(ctx context.Context, s *state.State, args []string) (registry.ActionResult, error) {
			next := s.Set("at", state.Subject("robot1"), structpb.NewStringValue(args[0]))
			return registry.ActionResult{State: next, Duration: 2_000_000}, nil
		})
		return r
	})
}

func TestRefinementWorkflowExecutesActionThroughActivity(t *testing.T) {
	suite := &testsuite.WorkflowTestSuite{}
	env := suite.NewTestWorkflowEnvironment()

	activities := &durable.ActionActivities{}
	env.RegisterActivityWithOptions(activities.ExecuteAction, activity.RegisterOptions{Name: durable.ExecuteActionActivityName})
	env.RegisterWorkflow(durable.RefinementWorkflow)

	req := durable.RefinementRequest{
		PlanID:     "plan-durable-1",
		DomainType: testDomain,
		Root: []registry.ChildSpec{
			{TaskName: "go", Args: []string{"kitchen"}},
		},
		CurrentTime: "2026-01-01T00:00:00.000000Z",
	}

	env.ExecuteWorkflow(durable.RefinementWorkflow, req)

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result *durable.RefinementResult
	require.NoError(t, env.GetWorkflowResult(&result))

	assert.Equal(t, "completed", result.ExecutionStatus)
	require.Len(t, result.SolutionPlan, 1)
	assert.Equal(t, "move", result.SolutionPlan[0].Name)
	assert.EqualValues(t, 2_000_000, result.SolutionPlan[0].Duration)
}
