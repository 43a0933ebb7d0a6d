package durable

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/client"
	temporalotel "go.temporal.io/sdk/contrib/opentelemetry"
	"go.temporal.io/sdk/worker"

	"github.com/latticeplan/htn/telemetry"
)

// RefinementWorkflowName is the Temporal workflow type name RefinementWorkflow
// is registered under.
const RefinementWorkflowName = "HTNRefinement"

// ExecuteActionActivityName is the Temporal activity type name
// ActionActivities.ExecuteAction is registered under.
const ExecuteActionActivityName = "HTNExecuteAction"

// Options configures a durable Engine: the Temporal client (or the options
// to lazily construct one), the default worker task queue, and OTEL
// instrumentation, mirroring the shape the in-process engine.Options uses
// for its own telemetry collaborators.
type Options struct {
	// Client is a pre-configured Temporal client. If nil, ClientOptions
	// constructs one lazily.
	Client client.Client
	// ClientOptions constructs the Temporal client when Client is nil.
	ClientOptions *client.Options

	// TaskQueue is the queue both the refinement workflow and the action
	// activity are registered and started on.
	TaskQueue string
	// WorkerOptions is forwarded directly to worker.New.
	WorkerOptions worker.Options

	Instrumentation InstrumentationOptions

	Logger telemetry.Logger
}

// InstrumentationOptions toggles the Temporal SDK's OTEL interceptors on the
// client and worker, mirroring the in-process engine's Logger/Metrics/Tracer
// wiring at the durable boundary.
type InstrumentationOptions struct {
	DisableTracing bool
	DisableMetrics bool

	TracerOptions  temporalotel.TracerOptions
	MetricsOptions temporalotel.MetricsHandlerOptions
}

// Engine owns a Temporal client and a single worker bound to TaskQueue,
// registered to run RefinementWorkflow and ActionActivities.ExecuteAction.
type Engine struct {
	client      client.Client
	closeClient bool
	taskQueue   string
	worker      worker.Worker
	logger      telemetry.Logger
}

// New constructs a durable Engine: it builds (or adopts) a Temporal client,
// creates a worker for TaskQueue, and registers RefinementWorkflow and
// ActionActivities.ExecuteAction on it. Call Start (or Run) to begin
// polling; the caller decides when the worker goes live.
func New(opts Options) (*Engine, error) {
	if opts.TaskQueue == "" {
		return nil, fmt.Errorf("durable: task queue is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}

	cli := opts.Client
	closeClient := false
	if cli == nil {
		if opts.ClientOptions == nil {
			return nil, fmt.Errorf("durable: client options are required when Client is nil")
		}
		clientOpts := *opts.ClientOptions
		applyInstrumentation(&clientOpts, opts.Instrumentation)
		var err error
		cli, err = client.NewLazyClient(clientOpts)
		if err != nil {
			return nil, fmt.Errorf("durable: create client: %w", err)
		}
		closeClient = true
	}

	w := worker.New(cli, opts.TaskQueue, opts.WorkerOptions)
	w.RegisterWorkflowWithOptions(RefinementWorkflow, workflowRegisterOptions())
	activities := &ActionActivities{}
	w.RegisterActivityWithOptions(activities.ExecuteAction, activityRegisterOptions())

	return &Engine{
		client:      cli,
		closeClient: closeClient,
		taskQueue:   opts.TaskQueue,
		worker:      w,
		logger:      logger,
	}, nil
}

// Run starts the worker and blocks until interrupted, the idiomatic
// entry point for a standalone worker process.
func (e *Engine) Run() error {
	return e.worker.Run(worker.InterruptCh())
}

// Start begins polling without blocking; call Stop to halt the worker and
// Close to release the client.
func (e *Engine) Start() error {
	return e.worker.Start()
}

// Stop halts the worker's polling loop.
func (e *Engine) Stop() {
	e.worker.Stop()
}

// Close releases the Temporal client if this Engine created it.
func (e *Engine) Close() {
	if e.closeClient && e.client != nil {
		e.client.Close()
	}
}

// Client returns the Temporal client backing this engine, for callers that
// need to start workflows or query status directly.
func (e *Engine) Client() client.Client {
	return e.client
}

// StartRefinement launches one RefinementWorkflow execution identified by
// workflowID and returns its run handle.
func (e *Engine) StartRefinement(ctx context.Context, workflowID string, req RefinementRequest) (client.WorkflowRun, error) {
	opts := client.StartWorkflowOptions{
		ID:        workflowID,
		TaskQueue: e.taskQueue,
	}
	return e.client.ExecuteWorkflow(ctx, opts, RefinementWorkflowName, req)
}

func applyInstrumentation(opts *client.Options, inst InstrumentationOptions) {
	interceptors := opts.Interceptors
	if !inst.DisableTracing {
		if tracer, err := temporalotel.NewTracingInterceptor(inst.TracerOptions); err == nil {
			interceptors = append(interceptors, tracer)
		}
	}
	opts.Interceptors = interceptors
	if !inst.DisableMetrics {
		opts.MetricsHandler = temporalotel.NewMetricsHandler(inst.MetricsOptions)
	}
}
