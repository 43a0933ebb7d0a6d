package registry_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latticeplan/htn/registry"
	"github.com/latticeplan/htn/state"
)

func TestMethodOrderPreserved(t *testing.T) {
	r := registry.New()
	var order []int
	for i := 0; i < 3; i++ {
		i := i
		r.DeclareTaskMethod("deliver", func(ctx context.Context, s *state.State, args []string) ([]registry.ChildSpec, bool) {
			order = append(order, i)
			return nil, false
		})
	}
	methods, ok := r.TaskMethods("deliver")
	require.True(t, ok)
	require.Len(t, methods, 3)
	for _, m := range methods {
		m(context.Background(), state.Empty(), nil)
	}
	assert.Equal(t, []int{0, 1, 2}, order)
}

func TestClassifyResolutionOrder(t *testing.T) {
	r := registry.New()
	r.DeclareTaskMethod("move", func(ctx context.Context, s *state.State, args []string) ([]registry.ChildSpec, bool) {
		return nil, false
	})
	r.DeclareAction("pickup", func(ctx context.Context, s *state.State, args []string) (registry.ActionResult, error) {
		return registry.ActionResult{State: s}, nil
	})
	r.DeclareGoalMethod("at", func(ctx context.Context, s *state.State, subject state.SubjectKey, value interface{}) ([]registry.ChildSpec, bool) {
		return nil, false
	})

	kind, ok := r.Classify(registry.ChildSpec{Multigoal: []registry.GoalAtom{{}}})
	require.True(t, ok)
	assert.Equal(t, registry.KindMultigoal, kind)

	kind, ok = r.Classify(registry.ChildSpec{TaskName: "move"})
	require.True(t, ok)
	assert.Equal(t, registry.KindTask, kind)

	kind, ok = r.Classify(registry.ChildSpec{ActionName: "pickup"})
	require.True(t, ok)
	assert.Equal(t, registry.KindAction, kind)

	kind, ok = r.Classify(registry.ChildSpec{GoalPredicate: "at"})
	require.True(t, ok)
	assert.Equal(t, registry.KindGoal, kind)

	_, ok = r.Classify(registry.ChildSpec{TaskName: "unregistered"})
	assert.False(t, ok)
}

func TestActionArgSchemaValidation(t *testing.T) {
	r := registry.New()
	r.DeclareAction("move", func(ctx context.Context, s *state.State, args []string) (registry.ActionResult, error) {
		return registry.ActionResult{State: s}, nil
	})
	schema := map[string]interface{}{
		"type":     "array",
		"minItems": 2,
		"maxItems": 2,
		"items":    map[string]interface{}{"type": "string"},
	}
	require.NoError(t, r.DeclareActionArgSchema("move", schema))

	require.NoError(t, r.ValidateActionArgs("move", []interface{}{"robot1", "kitchen"}))

	err := r.ValidateActionArgs("move", []interface{}{"robot1"})
	assert.Error(t, err)

	// Actions without a declared schema validate trivially.
	assert.NoError(t, r.ValidateActionArgs("nonexistent", []interface{}{1, 2, 3}))
}
