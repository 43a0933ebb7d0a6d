// Package registry implements the planner's Domain Registry: the four
// name-keyed method/action tables the refinement engine consults while
// expanding a solution graph. A Registry is read-only once refinement
// begins; it holds no planning state of its own.
package registry

import (
	"context"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/latticeplan/htn/isotime"
	"github.com/latticeplan/htn/planerrors"
	"github.com/latticeplan/htn/state"
)

type (
	// TaskMethod expands a task into an ordered list of children, or returns
	// (nil, false) to signal inapplicability so the engine tries the next
	// candidate in registration order.
	TaskMethod func(ctx context.Context, s *state.State, args []string) ([]ChildSpec, bool)

	// GoalMethod expands an unsatisfied goal into subgoals, or returns
	// (nil, false) if inapplicable.
	GoalMethod func(ctx context.Context, s *state.State, subject state.SubjectKey, value interface{}) ([]ChildSpec, bool)

	// MultigoalMethod expands the unachieved remainder of a multigoal into a
	// mix of subgoal and task/action children, or returns (nil, false).
	MultigoalMethod func(ctx context.Context, s *state.State, remaining []GoalAtom) ([]ChildSpec, bool)

	// ActionHandler executes a primitive action against the current state.
	// On success it returns the successor state and the action's duration;
	// on failure it returns a reason and a planerrors.ActionFailure-kind error.
	ActionHandler func(ctx context.Context, s *state.State, args []string) (ActionResult, error)
)

// ActionResult is the outcome of a successful action handler invocation.
type ActionResult struct {
	State    *state.State
	Duration isotime.Micros
	Metadata isotime.PlannerMetadata
}

// GoalAtom is a single component goal of a multigoal: a predicate applied to
// a subject with a target value.
type GoalAtom struct {
	Predicate string
	Subject   state.SubjectKey
	Value     interface{}
}

// ChildSpec is the unclassified description of a refinement child as
// produced by a method body; the graph package classifies each one into a
// Task, Goal, Multigoal, or Action node by consulting a Registry.
type ChildSpec struct {
	// TaskName is set when this child is a task invocation.
	TaskName string
	// ActionName is set when this child is a primitive action invocation.
	ActionName string
	// GoalPredicate/GoalSubject/GoalValue are set when this child is a goal.
	GoalPredicate string
	GoalSubject   state.SubjectKey
	GoalValue     interface{}
	// Multigoal is set when this child is a multigoal.
	Multigoal []GoalAtom
	// Args are the positional arguments passed to a task or action.
	Args []string
	// Metadata carries the optional duration/interval/entity-requirement
	// bundle the domain author attached to this refinement step.
	Metadata isotime.PlannerMetadata
}

// Kind classifies a ChildSpec once resolved against a Registry.
type Kind int

const (
	KindTask Kind = iota
	KindGoal
	KindMultigoal
	KindAction
)

// Registry holds the four method/action tables a domain author populates
// before planning begins. Method order is semantics: it defines branch
// order during search and is never sorted or deduplicated.
type Registry struct {
	taskMethods      map[string][]TaskMethod
	goalMethods      map[string][]GoalMethod
	multigoalMethods map[string][]MultigoalMethod
	actions          map[string]ActionHandler

	argSchemas map[string]*jsonschema.Schema
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{
		taskMethods:      make(map[string][]TaskMethod),
		goalMethods:      make(map[string][]GoalMethod),
		multigoalMethods: make(map[string][]MultigoalMethod),
		actions:          make(map[string]ActionHandler),
		argSchemas:       make(map[string]*jsonschema.Schema),
	}
}

// DeclareTaskMethod appends m to the end of taskName's candidate list.
// Declaration order is the engine's branch-trial order; it must never be
// reordered after registration.
func (r *Registry) DeclareTaskMethod(taskName string, m TaskMethod) {
	r.taskMethods[taskName] = append(r.taskMethods[taskName], m)
}

// DeclareGoalMethod appends m to the end of predicate's candidate list.
func (r *Registry) DeclareGoalMethod(predicate string, m GoalMethod) {
	r.goalMethods[predicate] = append(r.goalMethods[predicate], m)
}

// DeclareMultigoalMethod appends m to the end of tag's candidate list.
func (r *Registry) DeclareMultigoalMethod(tag string, m MultigoalMethod) {
	r.multigoalMethods[tag] = append(r.multigoalMethods[tag], m)
}

// DeclareAction registers the handler for actionName. Re-registering the
// same name replaces the prior handler.
func (r *Registry) DeclareAction(actionName string, h ActionHandler) {
	r.actions[actionName] = h
}

// DeclareActionArgSchema attaches a JSON Schema that an action's args (as a
// JSON array of strings) must validate against before dispatch. This is
// optional hardening for domains exposed over the transport boundary, where
// args arrive as untyped external input; purely in-process domains need not
// call it.
func (r *Registry) DeclareActionArgSchema(actionName string, schemaDoc any) error {
	c := jsonschema.NewCompiler()
	resourceName := "action-" + actionName + ".json"
	if err := c.AddResource(resourceName, schemaDoc); err != nil {
		return planerrors.Wrap(planerrors.MalformedMetadata, "add action arg schema resource for "+actionName, err)
	}
	schema, err := c.Compile(resourceName)
	if err != nil {
		return planerrors.Wrap(planerrors.MalformedMetadata, "compile action arg schema for "+actionName, err)
	}
	r.argSchemas[actionName] = schema
	return nil
}

// ValidateActionArgs checks args (already decoded into a generic document,
// typically []any of strings) against the schema registered for
// actionName, if any. A missing schema is not an error: validation is
// opt-in per action.
func (r *Registry) ValidateActionArgs(actionName string, argsDoc any) error {
	schema, ok := r.argSchemas[actionName]
	if !ok {
		return nil
	}
	if err := schema.Validate(argsDoc); err != nil {
		return planerrors.Wrap(planerrors.MalformedMetadata, "validate args for action "+actionName, err)
	}
	return nil
}

// TaskMethods returns taskName's candidate methods in registration order.
func (r *Registry) TaskMethods(taskName string) ([]TaskMethod, bool) {
	m, ok := r.taskMethods[taskName]
	return m, ok
}

// GoalMethods returns predicate's candidate methods in registration order.
func (r *Registry) GoalMethods(predicate string) ([]GoalMethod, bool) {
	m, ok := r.goalMethods[predicate]
	return m, ok
}

// MultigoalMethods returns tag's candidate methods in registration order.
func (r *Registry) MultigoalMethods(tag string) ([]MultigoalMethod, bool) {
	m, ok := r.multigoalMethods[tag]
	return m, ok
}

// Action returns the handler registered for actionName.
func (r *Registry) Action(actionName string) (ActionHandler, bool) {
	h, ok := r.actions[actionName]
	return h, ok
}

// HasTaskMethod reports whether name is a registered task.
func (r *Registry) HasTaskMethod(name string) bool {
	_, ok := r.taskMethods[name]
	return ok
}

// HasGoalMethod reports whether name is a registered goal predicate.
func (r *Registry) HasGoalMethod(name string) bool {
	_, ok := r.goalMethods[name]
	return ok
}

// HasAction reports whether name is a registered action.
func (r *Registry) HasAction(name string) bool {
	_, ok := r.actions[name]
	return ok
}

// ActionNames returns every registered action name, in no particular
// order. Used by callers (e.g. engine/durable) that need to enumerate and
// wrap every action handler uniformly without knowing domain-specific names
// in advance.
func (r *Registry) ActionNames() []string {
	names := make([]string, 0, len(r.actions))
	for name := range r.actions {
		names = append(names, name)
	}
	return names
}

// Clone returns a shallow copy of r: the method tables and action map are
// copied into new top-level maps, but the slices and handlers themselves
// are shared. Mutating the clone's entries (e.g. via DeclareAction to
// override one action) never affects r, since append-on-replace always
// writes a fresh slice or map entry.
func (r *Registry) Clone() *Registry {
	clone := New()
	for name, methods := range r.taskMethods {
		clone.taskMethods[name] = append([]TaskMethod(nil), methods...)
	}
	for name, methods := range r.goalMethods {
		clone.goalMethods[name] = append([]GoalMethod(nil), methods...)
	}
	for name, methods := range r.multigoalMethods {
		clone.multigoalMethods[name] = append([]MultigoalMethod(nil), methods...)
	}
	for name, h := range r.actions {
		clone.actions[name] = h
	}
	for name, schema := range r.argSchemas {
		clone.argSchemas[name] = schema
	}
	return clone
}

// Classify resolves a ChildSpec to a Kind using the fixed resolution order
// from spec.md §4.3: a multigoal payload classifies first, then a
// registered task name, then a registered action name, then a goal
// predicate. An unresolvable spec returns ok=false.
func (r *Registry) Classify(c ChildSpec) (Kind, bool) {
	switch {
	case c.Multigoal != nil:
		return KindMultigoal, true
	case c.TaskName != "" && r.HasTaskMethod(c.TaskName):
		return KindTask, true
	case c.ActionName != "" && r.HasAction(c.ActionName):
		return KindAction, true
	case c.GoalPredicate != "":
		return KindGoal, true
	default:
		return 0, false
	}
}
