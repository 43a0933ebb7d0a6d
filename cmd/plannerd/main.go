// Command plannerd runs the HTN planner as a gRPC service, optionally
// alongside a Temporal worker that hosts the same refinement engine
// durably.
//
// It exposes PlannerControlService (create-plan, register-domain,
// list-domain-tasks, fetch-execution-state, apply-execution-update) over
// gRPC, synchronously refining plans in-process against whichever example
// domains are linked in. Persistence defaults to an in-memory store and
// upgrades to MongoDB when configured; outcome events are published to
// Redis when configured and discarded otherwise, mirroring the teacher's
// registry daemon's environment-variable wiring.
//
// # Configuration
//
// Environment variables:
//
//	HTN_GRPC_ADDR     - gRPC listen address (default: ":9091")
//	HTN_MONGO_URI     - MongoDB connection string (optional; in-memory store if unset)
//	HTN_MONGO_DATABASE   - MongoDB database name (default: "htn")
//	HTN_MONGO_COLLECTION - MongoDB collection name (default: "plans")
//	HTN_REDIS_ADDR    - Redis address for outcome event publishing (optional)
//	HTN_REDIS_PASSWORD - Redis password (optional)
//	HTN_TEMPORAL_HOST - Temporal frontend address; starting a durable worker
//	                    alongside the gRPC service requires this (optional)
//	HTN_TEMPORAL_TASK_QUEUE - Temporal task queue name (default: "htn-refinement")
package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.temporal.io/sdk/client"
	"google.golang.org/grpc"

	"github.com/latticeplan/htn/engine/durable"
	"github.com/latticeplan/htn/examples/blocksworld"
	"github.com/latticeplan/htn/examples/river"
	"github.com/latticeplan/htn/outcome"
	"github.com/latticeplan/htn/outcome/redisbus"
	"github.com/latticeplan/htn/plan/store"
	"github.com/latticeplan/htn/plan/store/inmem"
	mongostore "github.com/latticeplan/htn/plan/store/mongo"
	"github.com/latticeplan/htn/registry"
	"github.com/latticeplan/htn/telemetry"
	grpctransport "github.com/latticeplan/htn/transport/grpc"
)

func main() {
	registerExampleDomains()

	if err := run(); err != nil {
		log.Fatal(err)
	}
}

// registerExampleDomains installs the sample domains this binary ships with
// into engine/durable's catalogue, so both the synchronous gRPC path and a
// durable Temporal worker can build a registry for domain_type
// "blocksworld" or "river" without per-call wiring.
func registerExampleDomains() {
	durable.RegisterDomain("blocksworld", func() *registry.Registry {
		return blocksworld.Build()
	})
	durable.RegisterDomain("river", func() *registry.Registry {
		return river.Build()
	})
}

func run() error {
	ctx := context.Background()
	logger := telemetry.NewClueLogger()

	planStore, closeStore, err := buildStore(ctx)
	if err != nil {
		return fmt.Errorf("build plan store: %w", err)
	}
	defer closeStore()

	reporter, closeReporter, err := buildReporter()
	if err != nil {
		return fmt.Errorf("build outcome reporter: %w", err)
	}
	defer closeReporter()

	durableEngine, err := maybeStartDurableEngine(logger)
	if err != nil {
		return fmt.Errorf("start durable engine: %w", err)
	}
	if durableEngine != nil {
		defer durableEngine.Stop()
		defer durableEngine.Close()
	}

	svc, err := grpctransport.NewService(grpctransport.ServiceOptions{
		Store:    planStore,
		Reporter: reporter,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("create service: %w", err)
	}

	addr := envOr("HTN_GRPC_ADDR", ":9091")
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	server := grpc.NewServer()
	grpctransport.RegisterPlannerControlServiceServer(server, svc)

	log.Printf("plannerd listening on %s", addr)
	return server.Serve(lis)
}

func buildStore(ctx context.Context) (store.Store, func(), error) {
	uri := os.Getenv("HTN_MONGO_URI")
	if uri == "" {
		return inmem.New(), func() {}, nil
	}

	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, fmt.Errorf("connect mongo: %w", err)
	}
	database := envOr("HTN_MONGO_DATABASE", "htn")
	collection := envOr("HTN_MONGO_COLLECTION", "plans")
	s := mongostore.New(client.Database(database).Collection(collection))
	return s, func() {
		if err := client.Disconnect(ctx); err != nil {
			log.Printf("disconnect mongo: %v", err)
		}
	}, nil
}

func buildReporter() (outcome.Reporter, func(), error) {
	addr := os.Getenv("HTN_REDIS_ADDR")
	if addr == "" {
		return outcome.Noop, func() {}, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: os.Getenv("HTN_REDIS_PASSWORD"),
	})
	pub, err := redisbus.New(redisbus.Options{Client: rdb})
	if err != nil {
		return nil, nil, fmt.Errorf("create redis publisher: %w", err)
	}
	return pub, func() {
		if err := rdb.Close(); err != nil {
			log.Printf("close redis: %v", err)
		}
	}, nil
}

// maybeStartDurableEngine starts a Temporal worker hosting RefinementWorkflow
// alongside the synchronous gRPC service when HTN_TEMPORAL_HOST is set. It
// returns nil, nil when Temporal is not configured, so plannerd runs with
// just the in-process engine by default.
func maybeStartDurableEngine(logger telemetry.Logger) (*durable.Engine, error) {
	host := os.Getenv("HTN_TEMPORAL_HOST")
	if host == "" {
		return nil, nil
	}

	eng, err := durable.New(durable.Options{
		ClientOptions: &client.Options{HostPort: host},
		TaskQueue:     envOr("HTN_TEMPORAL_TASK_QUEUE", "htn-refinement"),
		Logger:        logger,
	})
	if err != nil {
		return nil, err
	}
	if err := eng.Start(); err != nil {
		return nil, fmt.Errorf("start temporal worker: %w", err)
	}
	return eng, nil
}

func envOr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}
