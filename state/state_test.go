package state_test

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/latticeplan/htn/state"
)

func TestGetSet(t *testing.T) {
	s := state.Empty()
	_, ok := s.Get("at", state.Subject("robot1"))
	assert.False(t, ok)

	v := structpb.NewStringValue("kitchen")
	s2 := s.Set("at", state.Subject("robot1"), v)

	_, ok = s.Get("at", state.Subject("robot1"))
	assert.False(t, ok, "original state must be untouched")

	got, ok := s2.Get("at", state.Subject("robot1"))
	require.True(t, ok)
	assert.Equal(t, "kitchen", got.GetStringValue())
}

func TestGetBySubjectEquivalence(t *testing.T) {
	s := state.Empty().Set("at", state.Subject("box1"), structpb.NewStringValue("room2"))
	a, aok := s.Get("at", state.Subject("box1"))
	b, bok := s.GetBySubject(state.Subject("box1"), "at")
	require.True(t, aok)
	require.True(t, bok)
	assert.Equal(t, a.GetStringValue(), b.GetStringValue())
}

func TestTupleSubject(t *testing.T) {
	s := state.Empty().Set("adjacent", state.TupleSubject("room1", "room2"), structpb.NewBoolValue(true))
	got, ok := s.Get("adjacent", state.TupleSubject("room1", "room2"))
	require.True(t, ok)
	assert.True(t, got.GetBoolValue())

	_, ok = s.Get("adjacent", state.TupleSubject("room2", "room1"))
	assert.False(t, ok, "tuple order is significant")
}

func TestSetIsolatesOtherPredicates(t *testing.T) {
	s := state.Empty().
		Set("at", state.Subject("r1"), structpb.NewStringValue("a")).
		Set("holding", state.Subject("r1"), structpb.NewStringValue("box1"))

	s2 := s.Set("at", state.Subject("r1"), structpb.NewStringValue("b"))

	at1, _ := s.Get("at", state.Subject("r1"))
	at2, _ := s2.Get("at", state.Subject("r1"))
	assert.Equal(t, "a", at1.GetStringValue())
	assert.Equal(t, "b", at2.GetStringValue())

	holding, ok := s2.Get("holding", state.Subject("r1"))
	require.True(t, ok)
	assert.Equal(t, "box1", holding.GetStringValue())
}

func TestDeepCopyIsolatesMutation(t *testing.T) {
	v := structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
		"x": structpb.NewNumberValue(1),
	}})
	s := state.Empty().Set("config", state.Subject("robot1"), v)
	snapshot := s.DeepCopy()

	stored, ok := s.Get("config", state.Subject("robot1"))
	require.True(t, ok)
	stored.GetStructValue().Fields["x"] = structpb.NewNumberValue(99)

	snapVal, ok := snapshot.Get("config", state.Subject("robot1"))
	require.True(t, ok)
	assert.Equal(t, float64(1), snapVal.GetStructValue().Fields["x"].GetNumberValue(),
		"mutating a value fetched after the snapshot must not corrupt the snapshot")
}

func TestUpdateMergesLeaves(t *testing.T) {
	s := state.Empty().
		Set("at", state.Subject("r1"), structpb.NewStringValue("room1")).
		Set("at", state.Subject("r2"), structpb.NewStringValue("room2"))

	s2 := s.Update(state.Facts{
		"at": {
			state.Subject("r1").String(): structpb.NewStringValue("room3"),
		},
	})

	v1, _ := s2.Get("at", state.Subject("r1"))
	v2, _ := s2.Get("at", state.Subject("r2"))
	assert.Equal(t, "room3", v1.GetStringValue())
	assert.Equal(t, "room2", v2.GetStringValue(), "predicate entries absent from merge survive")
}

func TestCapabilities(t *testing.T) {
	s := state.New(0, map[string][]string{"robot1": {"grasp", "lift"}}, nil)
	assert.True(t, s.HasCapability("robot1", "grasp"))
	assert.False(t, s.HasCapability("robot1", "fly"))
	assert.False(t, s.HasCapability("unknown", "grasp"))
}

func TestCurrentTime(t *testing.T) {
	s := state.New(100, nil, nil)
	assert.EqualValues(t, 100, s.CurrentTime())
	s2 := s.WithCurrentTime(200)
	assert.EqualValues(t, 100, s.CurrentTime())
	assert.EqualValues(t, 200, s2.CurrentTime())
}

// P2: snapshot soundness. Deep-copying a State and then writing arbitrarily
// through Set on the original never changes what the copy observes.
func TestSnapshotSoundnessProperty(t *testing.T) {
	params := gopter.DefaultTestParameters()
	props := gopter.NewProperties(params)

	props.Property("snapshot is unaffected by later Set calls", prop.ForAll(
		func(subject string, before, after float64) bool {
			s := state.Empty().Set("val", state.Subject(subject), structpb.NewNumberValue(before))
			snapshot := s.DeepCopy()
			_ = s.Set("val", state.Subject(subject), structpb.NewNumberValue(after))

			got, ok := snapshot.Get("val", state.Subject(subject))
			return ok && got.GetNumberValue() == before
		},
		gen.AlphaString().SuchThat(func(s string) bool { return s != "" }),
		gen.Float64Range(-1000, 1000),
		gen.Float64Range(-1000, 1000),
	))

	props.TestingRun(t)
}
