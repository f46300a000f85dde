package model

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gitter-badger/smashtest/internal/engineerr"
	"github.com/gitter-badger/smashtest/internal/env"
)

func TestResultIsCompleteExactlyOneOutcome(t *testing.T) {
	cases := []struct {
		name string
		r    Result
		want bool
	}{
		{"not run", Result{}, false},
		{"passed", Result{Outcome: Passed}, true},
		{"failed", Result{Outcome: Failed}, true},
		{"skipped", Result{Outcome: Skipped}, true},
		{"passed last time", Result{PassedLastTime: true}, true},
		{"passed and passed last time is not exactly one outcome", Result{Outcome: Passed, PassedLastTime: true}, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, c.r.IsComplete())
		})
	}
}

func TestBranchMarkBranchSetsErrorOnce(t *testing.T) {
	b := &Branch{}

	errA := engineerr.New(engineerr.HookError, "first")
	errB := engineerr.New(engineerr.HookError, "second")

	b.MarkBranch(false, errA)
	b.MarkBranch(false, errB)

	assert.Same(t, errA, b.Result.Error)
	assert.Equal(t, Failed, b.Result.Outcome)
}

func TestEnvironmentLocalFallsThroughPending(t *testing.T) {
	e := NewEnvironment(env.NewStore())
	e.Pending.Set("name", "Ada")

	v, ok := e.Get(Local, "name")
	assert.True(t, ok)
	assert.Equal(t, "Ada", v)

	e.Local.Set("name", "Bea")
	v, ok = e.Get(Local, "name")
	assert.True(t, ok)
	assert.Equal(t, "Ada", v, "pending must shadow local until cleared")
}

func TestEnvironmentPushPopLocalFrame(t *testing.T) {
	e := NewEnvironment(env.NewStore())
	e.Local.Set("outer", 1)
	e.Pending.Set("name", "Ada")

	e.PushLocal()
	assert.Equal(t, 1, e.LocalStack.Depth())
	v, ok := e.Get(Local, "name")
	assert.True(t, ok)
	assert.Equal(t, "Ada", v)
	_, ok = e.Get(Local, "outer")
	assert.False(t, ok, "fresh frame must not see the outer frame's bindings")

	e.PopLocal()
	assert.Equal(t, 0, e.LocalStack.Depth())
	v, ok = e.Get(Local, "outer")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestEnvironmentResetGlobalSeedsFromInit(t *testing.T) {
	e := NewEnvironment(env.NewStore())
	e.Global.Set("stale", true)

	e.ResetGlobal(map[string]interface{}{"seeded": "yes"})

	_, ok := e.Get(Global, "stale")
	assert.False(t, ok)
	v, ok := e.Get(Global, "seeded")
	assert.True(t, ok)
	assert.Equal(t, "yes", v)
}

func TestEnvironmentPersistentSurvivesReset(t *testing.T) {
	shared := env.NewSharedStore()
	e := NewEnvironment(shared)
	e.SetPersistent("counter", 1)

	e.ResetGlobal(nil)
	e.ResetLocal()

	v, ok := e.GetPersistent("counter")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
}
