package env

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreCaseInsensitiveLookup(t *testing.T) {
	s := NewStore()
	s.Set("  My   Var ", "hi")

	v, ok := s.Get("my   VAR")
	require.True(t, ok)
	assert.Equal(t, "hi", v)

	v, ok = s.Get("MY VAR")
	require.True(t, ok)
	assert.Equal(t, "hi", v)
}

func TestStoreDisplayNamePreservesCase(t *testing.T) {
	s := NewStore()
	s.Set("userName", "ada")

	display, ok := s.DisplayName("USERNAME")
	require.True(t, ok)
	assert.Equal(t, "userName", display)
}

func TestStoreOverwriteUpdatesDisplayName(t *testing.T) {
	s := NewStore()
	s.Set("x", 1)
	s.Set("X", 2)

	v, ok := s.Get("x")
	require.True(t, ok)
	assert.Equal(t, 2, v)

	display, _ := s.DisplayName("x")
	assert.Equal(t, "X", display)
}

func TestStoreHasUnsetName(t *testing.T) {
	s := NewStore()
	assert.False(t, s.Has("missing"))
}

func TestSharedStoreConcurrentAccess(t *testing.T) {
	s := NewSharedStore()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			s.Set("counter", n)
			s.Get("counter")
		}(i)
	}
	wg.Wait()
	_, ok := s.Get("counter")
	assert.True(t, ok)
}

func TestLocalStackPushPop(t *testing.T) {
	ls := NewLocalStack()
	first := NewStore()
	first.Set("a", 1)

	pending := NewStore()
	pending.Set("name", "Ada")

	fresh := ls.Push(first, pending)
	assert.Equal(t, 1, ls.Depth())

	v, ok := fresh.Get("name")
	require.True(t, ok)
	assert.Equal(t, "Ada", v)

	popped, ok := ls.Pop()
	require.True(t, ok)
	assert.Equal(t, 0, ls.Depth())
	vv, _ := popped.Get("a")
	assert.Equal(t, 1, vv)
}

func TestLocalStackPopEmpty(t *testing.T) {
	ls := NewLocalStack()
	_, ok := ls.Pop()
	assert.False(t, ok)
}
