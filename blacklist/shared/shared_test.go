package shared

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMap struct {
	mu      sync.RWMutex
	content map[string]string
}

func newFakeMap() *fakeMap {
	return &fakeMap{content: make(map[string]string)}
}

var _ Map = (*fakeMap)(nil)

func (m *fakeMap) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.content))
	for k := range m.content {
		out = append(out, k)
	}
	return out
}

func (m *fakeMap) Get(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.content[key]
	return v, ok
}

func (m *fakeMap) Set(ctx context.Context, key, value string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	prev := m.content[key]
	m.content[key] = value
	return prev, nil
}

func TestContainsAfterAdd(t *testing.T) {
	ctx := context.Background()
	s := New(newFakeMap())

	require.NoError(t, s.Add(ctx, "move", []string{"kitchen"}))
	assert.True(t, s.Contains("move", []string{"kitchen"}))
	assert.False(t, s.Contains("move", []string{"garage"}))
}

func TestAddVisibleAcrossSharedMap(t *testing.T) {
	ctx := context.Background()
	m := newFakeMap()
	writer := New(m)
	reader := New(m)

	require.NoError(t, writer.Add(ctx, "move", []string{"kitchen"}))
	assert.True(t, reader.Contains("move", []string{"kitchen"}), "a ban pushed by one node is visible to another sharing the map")
}

func TestLenReflectsMapSize(t *testing.T) {
	ctx := context.Background()
	s := New(newFakeMap())
	assert.Equal(t, 0, s.Len())

	require.NoError(t, s.Add(ctx, "move", []string{"kitchen"}))
	require.NoError(t, s.Add(ctx, "move", []string{"garage"}))
	assert.Equal(t, 2, s.Len())
}
