// Package grpctransport exposes the planner's optional tool command surface
// (spec.md §6: create-plan, register-domain, list-domain-tasks,
// fetch-execution-state, apply-execution-update) as a gRPC service,
// PlannerControlService, whose request and response payloads are
// *structpb.Struct. The well-known protobuf types are an exact structural
// match for spec.md §3's opaque fact value (string, number, boolean, or
// small structured value), so both the fact store and the Plan Record's
// JSON-like external serialization round-trip through structpb without a
// bespoke wire format or a .proto/codegen step.
package grpctransport

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/latticeplan/htn/blacklist"
	"github.com/latticeplan/htn/engine"
	"github.com/latticeplan/htn/engine/durable"
	"github.com/latticeplan/htn/graph"
	"github.com/latticeplan/htn/isotime"
	"github.com/latticeplan/htn/outcome"
	"github.com/latticeplan/htn/plan"
	"github.com/latticeplan/htn/plan/store"
	"github.com/latticeplan/htn/planerrors"
	"github.com/latticeplan/htn/state"
	"github.com/latticeplan/htn/telemetry"
)

// PlannerControlServer is the gRPC-facing interface for the tool command
// surface: five unary RPCs exchanging *structpb.Struct payloads.
type PlannerControlServer interface {
	CreatePlan(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	RegisterDomain(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ListDomainTasks(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	FetchExecutionState(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ApplyExecutionUpdate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// Service implements PlannerControlServer. CreatePlan runs the refinement
// synchronously in-process, via engine.Engine against the *registry.Registry
// engine/durable.BuildDomain constructs for the named domain_type — not a
// durable Temporal workflow; cmd/plannerd wires the durable path separately
// for callers that need a refinement call to survive a process restart.
type Service struct {
	store    store.Store
	reporter outcome.Reporter
	logger   telemetry.Logger
	catalog  *domainCatalog
}

// ServiceOptions configures a Service. Store is required; Reporter and
// Logger default to no-ops.
type ServiceOptions struct {
	Store    store.Store
	Reporter outcome.Reporter
	Logger   telemetry.Logger
}

// NewService constructs a Service with a fresh, empty domain descriptor
// catalogue; populate it via RegisterDomain calls.
func NewService(opts ServiceOptions) (*Service, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("transport/grpc: store is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	reporter := opts.Reporter
	if reporter == nil {
		reporter = outcome.Noop
	}
	return &Service{store: opts.Store, reporter: reporter, logger: logger, catalog: newDomainCatalog()}, nil
}

var _ PlannerControlServer = (*Service)(nil)

// CreatePlan builds the root task list and initial state named in req,
// refines it synchronously against the domain registered under
// "domain_type", persists the finalized plan.Record, and returns it.
func (s *Service) CreatePlan(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	domainType := fields["domain_type"].GetStringValue()
	if domainType == "" {
		return nil, grpcError(planerrors.New(planerrors.MalformedMetadata, "create_plan: domain_type is required"))
	}

	reg, err := durable.BuildDomain(domainType)
	if err != nil {
		return nil, grpcError(planerrors.Wrap(planerrors.MalformedMetadata, "create_plan: unknown domain_type "+domainType, err))
	}

	planID := fields["plan_id"].GetStringValue()
	if planID == "" {
		planID = uuid.New().String()
	}

	currentTime, err := currentTimeFromFields(fields)
	if err != nil {
		return nil, grpcError(err)
	}

	root := childSpecsFromValue(fields["root"])
	if len(root) == 0 {
		return nil, grpcError(planerrors.New(planerrors.MalformedMetadata, "create_plan: root must name at least one task or action"))
	}

	capabilities := stringMapOfSlices(fields["capabilities"])
	initial := stateFromFacts(factInputsFromValue(fields["initial_facts"]), capabilities, currentTime)

	g := graph.New(reg)
	if _, ok := g.AddChildren(graph.RootID, root); !ok {
		return nil, grpcError(planerrors.New(planerrors.MalformedMetadata, "create_plan: root task list could not be classified against the domain registry"))
	}

	rec := plan.New(planID)
	rec.DomainType = domainType
	rec.MarkExecuting(isotime.Micros(time.Now().UnixMicro()))
	if err := s.store.Save(ctx, rec); err != nil {
		return nil, grpcError(planerrors.Wrap(planerrors.InfrastructureFailure, "create_plan: save record", err))
	}

	eng := engine.New(g, reg, initial, blacklist.New(), engine.Options{
		PlanID:   planID,
		Reporter: s.reporter,
		Logger:   s.logger,
	})
	runErr := eng.Run(ctx)

	completedAt := isotime.Micros(time.Now().UnixMicro())
	if err := rec.FinalizeFromGraph(g, eng.State(), completedAt, runErr); err != nil {
		return nil, grpcError(err)
	}

	if err := s.store.Save(ctx, rec); err != nil {
		return nil, grpcError(planerrors.Wrap(planerrors.InfrastructureFailure, "create_plan: save record", err))
	}
	return recordToStruct(rec)
}

// RegisterDomain publishes a domain's task/action names into the in-process
// descriptor catalogue so ListDomainTasks can answer introspection calls
// without a Go build that imports the domain's code. It does not install an
// executable registry — that happens separately, from the process that
// actually hosts the domain, via engine/durable.RegisterDomain.
func (s *Service) RegisterDomain(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	name := fields["name"].GetStringValue()
	if name == "" {
		return nil, grpcError(planerrors.New(planerrors.MalformedMetadata, "register_domain: name is required"))
	}
	desc := DomainDescriptor{
		Name:    name,
		Tasks:   stringSlice(fields["tasks"]),
		Actions: stringSlice(fields["actions"]),
	}
	s.catalog.register(desc)
	return structFromJSON(desc)
}

// ListDomainTasks returns the descriptor published for the domain named by
// req's "name" field.
func (s *Service) ListDomainTasks(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	name := fields["name"].GetStringValue()
	desc, ok := s.catalog.get(name)
	if !ok {
		return nil, grpcError(planerrors.Newf(planerrors.MalformedMetadata, "list_domain_tasks: domain %q is not registered", name))
	}
	return structFromJSON(desc)
}

// FetchExecutionState returns the persisted plan.Record named by req's
// "plan_id" field — visible with execution_status "executing" mid-run, per
// spec.md §4.8.
func (s *Service) FetchExecutionState(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	id := fields["plan_id"].GetStringValue()
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, grpcError(planerrors.Newf(planerrors.MalformedMetadata, "fetch_execution_state: plan %q not found", id))
		}
		return nil, grpcError(planerrors.Wrap(planerrors.InfrastructureFailure, "fetch_execution_state: load record", err))
	}
	return recordToStruct(rec)
}

// ApplyExecutionUpdate transitions a persisted plan.Record to "executing",
// the only externally-applicable transition — "completed"/"failed" are set
// only by FinalizeFromGraph at the end of a refinement call — and
// re-persists it.
func (s *Service) ApplyExecutionUpdate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	id := fields["plan_id"].GetStringValue()
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, grpcError(planerrors.Newf(planerrors.MalformedMetadata, "apply_execution_update: plan %q not found", id))
		}
		return nil, grpcError(planerrors.Wrap(planerrors.InfrastructureFailure, "apply_execution_update: load record", err))
	}

	status := fields["execution_status"].GetStringValue()
	if status != string(plan.StatusExecuting) {
		return nil, grpcError(planerrors.Newf(planerrors.MalformedMetadata, "apply_execution_update: unsupported execution_status %q", status))
	}
	rec.MarkExecuting(isotime.Micros(time.Now().UnixMicro()))

	if err := s.store.Save(ctx, rec); err != nil {
		return nil, grpcError(planerrors.Wrap(planerrors.InfrastructureFailure, "apply_execution_update: save record", err))
	}
	return recordToStruct(rec)
}

func currentTimeFromFields(fields map[string]*structpb.Value) (isotime.Micros, error) {
	iso := fields["current_time"].GetStringValue()
	if iso == "" {
		return isotime.Micros(time.Now().UnixMicro()), nil
	}
	return isotime.ToMicrosAbs(iso)
}

func stateFromFacts(facts []durable.FactInput, capabilities map[string][]string, currentTime isotime.Micros) *state.State {
	byPredicate := make(state.Facts, len(facts))
	for _, f := range facts {
		v, err := structpb.NewValue(f.Value)
		if err != nil {
			continue
		}
		key := state.TupleSubject(f.Subject...)
		sub := byPredicate[f.Predicate]
		if sub == nil {
			sub = make(map[string]*structpb.Value)
			byPredicate[f.Predicate] = sub
		}
		sub[key.String()] = v
	}
	return state.New(currentTime, capabilities, byPredicate)
}
