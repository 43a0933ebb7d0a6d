package grpctransport_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/latticeplan/htn/engine/durable"
	grpctransport "github.com/latticeplan/htn/transport/grpc"
	"github.com/latticeplan/htn/plan"
	"github.com/latticeplan/htn/plan/store/inmem"
	"github.com/latticeplan/htn/registry"
	"github.com/latticeplan/htn/state"
)

const testDomain = "grpc-test-move"

func init() {
	durable.RegisterDomain(testDomain, func() *registry.Registry {
		r := registry.New()
		r.DeclareTaskMethod("go", func(ctx context.Context, s *state.State, args []string) ([]registry.ChildSpec, bool) {
			return []registry.ChildSpec{{ActionName: "move", Args: args}}, true
		})
		r.DeclareAction("move", func(ctx context.Context, s *state.State, args []string) (registry.ActionResult, error) {
			next := s.Set("at", state.Subject("robot1"), structpb.NewStringValue(args[0]))
			return registry.ActionResult{State: next, Duration: 1_000_000}, nil
		})
		return r
	})
}

func newTestService(t *testing.T) *grpctransport.Service {
	t.Helper()
	svc, err := grpctransport.NewService(grpctransport.ServiceOptions{Store: inmem.New()})
	require.NoError(t, err)
	return svc
}

func mustStruct(t *testing.T, m map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	require.NoError(t, err)
	return s
}

func TestCreatePlanRunsRefinementAndPersistsRecord(t *testing.T) {
	svc := newTestService(t)

	req := mustStruct(t, map[string]any{
		"domain_type": testDomain,
		"root": []any{
			map[string]any{"task_name": "go", "args": []any{"kitchen"}},
		},
	})

	resp, err := svc.CreatePlan(context.Background(), req)
	require.NoError(t, err)

	fields := resp.GetFields()
	assert.Equal(t, "completed", fields["execution_status"].GetStringValue())

	plans := fields["solution_plan"].GetListValue().GetValues()
	require.Len(t, plans, 1)
	action := plans[0].GetStructValue().GetFields()
	assert.Equal(t, "move", action["name"].GetStringValue())
}

func TestCreatePlanRejectsUnknownDomain(t *testing.T) {
	svc := newTestService(t)
	req := mustStruct(t, map[string]any{"domain_type": "does-not-exist", "root": []any{
		map[string]any{"task_name": "go", "args": []any{"kitchen"}},
	}})

	_, err := svc.CreatePlan(context.Background(), req)
	require.Error(t, err)
}

func TestFetchExecutionStateRoundTripsCreatedPlan(t *testing.T) {
	svc := newTestService(t)

	created, err := svc.CreatePlan(context.Background(), mustStruct(t, map[string]any{
		"plan_id":     "plan-fetch-1",
		"domain_type": testDomain,
		"root": []any{
			map[string]any{"task_name": "go", "args": []any{"kitchen"}},
		},
	}))
	require.NoError(t, err)
	assert.Equal(t, "plan-fetch-1", created.GetFields()["id"].GetStringValue())

	fetched, err := svc.FetchExecutionState(context.Background(), mustStruct(t, map[string]any{
		"plan_id": "plan-fetch-1",
	}))
	require.NoError(t, err)
	assert.Equal(t, "completed", fetched.GetFields()["execution_status"].GetStringValue())
}

func TestFetchExecutionStateNotFound(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.FetchExecutionState(context.Background(), mustStruct(t, map[string]any{
		"plan_id": "does-not-exist",
	}))
	require.Error(t, err)
}

func TestApplyExecutionUpdateMarksExecuting(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.CreatePlan(context.Background(), mustStruct(t, map[string]any{
		"plan_id":     "plan-update-1",
		"domain_type": testDomain,
		"root": []any{
			map[string]any{"task_name": "go", "args": []any{"kitchen"}},
		},
	}))
	require.NoError(t, err)

	updated, err := svc.ApplyExecutionUpdate(context.Background(), mustStruct(t, map[string]any{
		"plan_id":          "plan-update-1",
		"execution_status": string(plan.StatusExecuting),
	}))
	require.NoError(t, err)
	assert.Equal(t, "executing", updated.GetFields()["execution_status"].GetStringValue())
}

func TestRegisterDomainThenListDomainTasks(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.RegisterDomain(context.Background(), mustStruct(t, map[string]any{
		"name":    "household",
		"tasks":   []any{"go", "tidy"},
		"actions": []any{"move", "pick_up"},
	}))
	require.NoError(t, err)

	resp, err := svc.ListDomainTasks(context.Background(), mustStruct(t, map[string]any{
		"name": "household",
	}))
	require.NoError(t, err)

	fields := resp.GetFields()
	assert.Equal(t, "household", fields["name"].GetStringValue())
}
