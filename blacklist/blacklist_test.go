package blacklist_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/latticeplan/htn/blacklist"
)

func TestContainsAfterAdd(t *testing.T) {
	s := blacklist.New()
	assert.False(t, s.Contains("pickup", []string{"box1"}))

	s.Add("pickup", []string{"box1"})
	assert.True(t, s.Contains("pickup", []string{"box1"}))
	assert.False(t, s.Contains("pickup", []string{"box2"}))
	assert.False(t, s.Contains("putdown", []string{"box1"}))
}

func TestAddIsIdempotent(t *testing.T) {
	s := blacklist.New()
	s.Add("pickup", []string{"box1"})
	s.Add("pickup", []string{"box1"})
	assert.Equal(t, 1, s.Len())
}

func TestArgBoundaryDoesNotCollide(t *testing.T) {
	s := blacklist.New()
	s.Add("move", []string{"a", "b"})
	assert.False(t, s.Contains("move", []string{"ab"}), "differently-split args must not hash to the same entry")
}
