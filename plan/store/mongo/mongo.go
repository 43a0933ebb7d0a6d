// Package mongo provides a MongoDB implementation of the plan store.
//
// This implementation persists plan records to MongoDB for durability
// across restarts, suitable for production deployments, mirroring
// features/run/mongo's upsert-on-every-transition approach.
package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/latticeplan/htn/plan"
	"github.com/latticeplan/htn/plan/store"
)

// Store is a MongoDB implementation of the store.Store interface.
type Store struct {
	collection *mongo.Collection
}

// Compile-time check that Store implements store.Store.
var _ store.Store = (*Store)(nil)

// recordDocument is the MongoDB document representation of a plan.Record.
// StateSnapshot is kept as its already-marshaled JSON text rather than
// decoded into bson, since the snapshot is opaque to the store.
type recordDocument struct {
	ID               string      `bson:"_id"`
	Name             string      `bson:"name,omitempty"`
	PersonaID        string      `bson:"persona_id,omitempty"`
	DomainType       string      `bson:"domain_type,omitempty"`
	ExecutionStatus  string      `bson:"execution_status"`
	RunLazy          bool        `bson:"run_lazy"`
	StartedAt        string      `bson:"started_at,omitempty"`
	CompletedAt      string      `bson:"completed_at,omitempty"`
	SolutionPlan     []actionDoc `bson:"solution_plan"`
	PlanningDuration int64       `bson:"planning_duration_ms"`
	StateSnapshot    string      `bson:"planner_state_snapshot,omitempty"`
	FailureReason    string      `bson:"failure_reason,omitempty"`
}

type actionDoc struct {
	Name     string   `bson:"name"`
	Args     []string `bson:"args"`
	Duration int64    `bson:"duration_micros"`
}

// New creates a new MongoDB store using the provided collection.
func New(collection *mongo.Collection) *Store {
	return &Store{collection: collection}
}

// Save stores or updates a plan record in MongoDB.
func (s *Store) Save(ctx context.Context, record *plan.Record) error {
	doc := toDocument(record)
	opts := options.Replace().SetUpsert(true)
	_, err := s.collection.ReplaceOne(ctx, bson.M{"_id": record.ID}, doc, opts)
	if err != nil {
		return fmt.Errorf("mongodb save plan record %q: %w", record.ID, err)
	}
	return nil
}

// Get retrieves a plan record by id from MongoDB.
func (s *Store) Get(ctx context.Context, id string) (*plan.Record, error) {
	var doc recordDocument
	err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("mongodb get plan record %q: %w", id, err)
	}
	return fromDocument(&doc), nil
}

// Delete removes a plan record by id from MongoDB.
func (s *Store) Delete(ctx context.Context, id string) error {
	result, err := s.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("mongodb delete plan record %q: %w", id, err)
	}
	if result.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func toDocument(r *plan.Record) *recordDocument {
	actions := make([]actionDoc, len(r.SolutionPlan))
	for i, a := range r.SolutionPlan {
		actions[i] = actionDoc{Name: a.Name, Args: a.Args, Duration: a.Duration}
	}
	return &recordDocument{
		ID:               r.ID,
		Name:             r.Name,
		PersonaID:        r.PersonaID,
		DomainType:       r.DomainType,
		ExecutionStatus:  string(r.ExecutionStatus),
		RunLazy:          r.RunLazy,
		StartedAt:        r.StartedAt,
		CompletedAt:      r.CompletedAt,
		SolutionPlan:     actions,
		PlanningDuration: r.PlanningDuration,
		StateSnapshot:    string(r.StateSnapshot),
		FailureReason:    r.FailureReason,
	}
}

func fromDocument(doc *recordDocument) *plan.Record {
	actions := make([]plan.Action, len(doc.SolutionPlan))
	for i, a := range doc.SolutionPlan {
		actions[i] = plan.Action{Name: a.Name, Args: a.Args, Duration: a.Duration}
	}
	return &plan.Record{
		ID:               doc.ID,
		Name:             doc.Name,
		PersonaID:        doc.PersonaID,
		DomainType:       doc.DomainType,
		ExecutionStatus:  plan.Status(doc.ExecutionStatus),
		RunLazy:          doc.RunLazy,
		StartedAt:        doc.StartedAt,
		CompletedAt:      doc.CompletedAt,
		SolutionPlan:     actions,
		PlanningDuration: doc.PlanningDuration,
		StateSnapshot:    []byte(doc.StateSnapshot),
		FailureReason:    doc.FailureReason,
	}
}
