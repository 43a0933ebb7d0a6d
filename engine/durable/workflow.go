package durable

import (
	"context"
	"time"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/latticeplan/htn/blacklist"
	"github.com/latticeplan/htn/engine"
	"github.com/latticeplan/htn/graph"
	"github.com/latticeplan/htn/isotime"
	"github.com/latticeplan/htn/plan"
	"github.com/latticeplan/htn/planerrors"
	"github.com/latticeplan/htn/registry"
	"github.com/latticeplan/htn/state"
)

func workflowRegisterOptions() workflow.RegisterOptions {
	return workflow.RegisterOptions{Name: RefinementWorkflowName}
}

func activityRegisterOptions() activity.RegisterOptions {
	return activity.RegisterOptions{Name: ExecuteActionActivityName}
}

// defaultActionActivityTimeout bounds how long a single action's activity
// execution may run before Temporal marks it timed out. Domains whose
// actions run longer must wrap RefinementWorkflow with their own queue and
// activity options rather than rely on this default.
const defaultActionActivityTimeout = time.Minute

// RefinementWorkflow is the durable counterpart of engine.Engine.Run: it
// rebuilds the domain's registry from the catalogue entry named by
// req.DomainType, wraps every action with a handler that dispatches through
// workflow.ExecuteActivity instead of running in-process, drives the same
// deterministic refinement loop the in-process engine uses, and returns the
// finalized plan as a RefinementResult.
//
// Determinism: the task/goal/multigoal methods in the rebuilt registry run
// directly inside the workflow, so they must be pure functions of (state,
// args) exactly as the in-process engine requires; only action execution —
// where real side effects happen — is routed to an activity.
func RefinementWorkflow(ctx workflow.Context, req RefinementRequest) (*RefinementResult, error) {
	base, err := buildDomain(req.DomainType)
	if err != nil {
		return nil, err
	}
	shadow := wrapActionsForWorkflow(ctx, base, req.DomainType, req.Capabilities)

	currentTime, err := isotime.ToMicrosAbs(req.CurrentTime)
	if err != nil {
		return nil, err
	}
	initial, err := factsToState(req.InitialFacts, req.Capabilities, currentTime)
	if err != nil {
		return nil, err
	}

	g := graph.New(shadow)
	if _, ok := g.AddChildren(graph.RootID, req.Root); !ok {
		return nil, planerrors.New(planerrors.MalformedMetadata, "durable: root task list could not be classified against the domain registry")
	}

	eng := engine.New(g, shadow, initial, blacklist.New(), engine.Options{PlanID: req.PlanID})
	runErr := eng.Run(context.Background())

	rec := plan.New(req.PlanID)
	completedAt := isotime.Micros(workflow.Now(ctx).UnixMicro())
	if err := rec.FinalizeFromGraph(g, eng.State(), completedAt, runErr); err != nil {
		return nil, err
	}
	return toRefinementResult(rec), nil
}

// wrapActionsForWorkflow clones base and replaces every registered action
// with a shadow handler that dispatches through workflow.ExecuteActivity.
// Task, goal, and multigoal methods are left untouched: they run
// in-process inside the workflow.
func wrapActionsForWorkflow(ctx workflow.Context, base *registry.Registry, domainType string, capabilities map[string][]string) *registry.Registry {
	shadow := base.Clone()
	for _, name := range shadow.ActionNames() {
		shadow.DeclareAction(name, makeShadowActionHandler(ctx, domainType, name, capabilities))
	}
	return shadow
}

// makeShadowActionHandler returns a registry.ActionHandler that ignores the
// context.Context the engine passes it (the engine's own loop runs inside
// the workflow goroutine and carries no blocking semantics) and instead
// drives dispatch through the enclosing workflow.Context, the only handle
// that can cross into an Activity.
func makeShadowActionHandler(ctx workflow.Context, domainType, actionName string, capabilities map[string][]string) registry.ActionHandler {
	return func(_ context.Context, s *state.State, args []string) (registry.ActionResult, error) {
		req := ExecuteActionRequest{
			DomainType:   domainType,
			ActionName:   actionName,
			Args:         args,
			Facts:        toFactInputs(s),
			Capabilities: capabilities,
			CurrentTime:  isotime.FromMicrosAbs(s.CurrentTime()),
		}

		actx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
			StartToCloseTimeout:    defaultActionActivityTimeout,
			ScheduleToStartTimeout: defaultActionActivityTimeout,
			RetryPolicy:            &temporal.RetryPolicy{MaximumAttempts: 3},
		})

		var resp ExecuteActionResponse
		if err := workflow.ExecuteActivity(actx, ExecuteActionActivityName, req).Get(actx, &resp); err != nil {
			return registry.ActionResult{}, planerrors.Wrap(planerrors.InfrastructureFailure, "execute action activity "+actionName, err)
		}
		if resp.Failed {
			return registry.ActionResult{}, planerrors.New(planerrors.ActionFailure, resp.FailureError)
		}

		newState, err := factsToState(resp.Facts, capabilities, s.CurrentTime())
		if err != nil {
			return registry.ActionResult{}, planerrors.Wrap(planerrors.InfrastructureFailure, "decode action result facts for "+actionName, err)
		}
		return registry.ActionResult{State: newState, Duration: isotime.Micros(resp.Duration)}, nil
	}
}

// ActionActivities holds the Activity-side handlers for every action
// registered across every catalogued domain. ExecuteAction looks up the
// real handler by domain and action name and invokes it exactly as the
// in-process engine would, outside the workflow's deterministic replay.
type ActionActivities struct{}

// ExecuteAction runs the real action handler for req.ActionName within
// req.DomainType's registry. A planning-level failure (the handler
// returning a non-nil error) is reported via resp.Failed with a nil Go
// error, so Temporal does not retry what the refinement engine's own
// backtracking is meant to handle; a nil-error return with resp.Failed
// true distinguishes that from a transport/infrastructure failure, which
// is returned as a genuine error so Temporal's retry policy applies.
func (a *ActionActivities) ExecuteAction(ctx context.Context, req ExecuteActionRequest) (ExecuteActionResponse, error) {
	reg, err := buildDomain(req.DomainType)
	if err != nil {
		return ExecuteActionResponse{}, err
	}
	handler, ok := reg.Action(req.ActionName)
	if !ok {
		return ExecuteActionResponse{}, planerrors.Newf(planerrors.InfrastructureFailure, "durable: domain %q has no action %q", req.DomainType, req.ActionName)
	}

	currentTime, err := isotime.ToMicrosAbs(req.CurrentTime)
	if err != nil {
		return ExecuteActionResponse{}, err
	}
	s, err := factsToState(req.Facts, req.Capabilities, currentTime)
	if err != nil {
		return ExecuteActionResponse{}, err
	}

	activity.RecordHeartbeat(ctx, req.ActionName)
	result, err := handler(ctx, s, req.Args)
	if err != nil {
		return ExecuteActionResponse{Failed: true, FailureError: err.Error()}, nil
	}
	return ExecuteActionResponse{Facts: toFactInputs(result.State), Duration: int64(result.Duration)}, nil
}

func toRefinementResult(rec *plan.Record) *RefinementResult {
	actions := make([]ActionResult, len(rec.SolutionPlan))
	for i, a := range rec.SolutionPlan {
		actions[i] = ActionResult{Name: a.Name, Args: a.Args, Duration: a.Duration}
	}
	return &RefinementResult{
		ExecutionStatus:  string(rec.ExecutionStatus),
		SolutionPlan:     actions,
		PlanningDuration: rec.PlanningDuration,
		StateSnapshot:    []byte(rec.StateSnapshot),
		FailureReason:    rec.FailureReason,
		CompletedAt:      rec.CompletedAt,
	}
}
