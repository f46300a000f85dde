// Package smashtest implements the RunInstance subsystem of spec §1:
// the per-thread test execution state machine that walks a Tree one
// branch at a time, threading variable state, expression evaluation,
// and console reporting across steps (§2-§8). TreeBuilder, the
// multi-worker scheduler, the reporter, the CLI, and any browser
// automation library a user expression block may load are external
// collaborators, specified only through the internal/hostapi
// interfaces this package consumes.
package smashtest

import (
	"io"

	"github.com/google/uuid"

	"github.com/gitter-badger/smashtest/internal/console"
	"github.com/gitter-badger/smashtest/internal/env"
	"github.com/gitter-badger/smashtest/internal/hostapi"
	"github.com/gitter-badger/smashtest/internal/model"
	"github.com/gitter-badger/smashtest/internal/scripting"
	"github.com/gitter-badger/smashtest/internal/vars"
)

// Instance is a single RunInstance (spec §1, §3). Every field except
// Env.Persistent is owned exclusively by this Instance; Env.Persistent
// may be a store shared (by reference) with sibling instances the
// Runner owns, per spec §5's concurrency model.
type Instance struct {
	ID uuid.UUID

	Tree   hostapi.Tree
	Runner hostapi.Runner

	Env      *model.Environment
	Eval     *scripting.Evaluator
	Resolver *vars.Resolver
	Console  *console.Printer
	Cancel   *CancelToken

	// StepsRan accumulates every step actually executed, in order,
	// including hooks and re-runs (spec §3 invariant).
	StepsRan []*model.Step

	currBranch    *model.Branch
	overrideDebug bool
}

// New creates an Instance bound to tree and runner. persistent is
// typically a store shared across every Instance the Runner owns
// (env.NewSharedStore()); loader resolves packages for imp() and may
// be nil if the test plan never calls it. out receives the Start:/
// End: console banners, gated by runner.ConsoleOutput().
func New(tree hostapi.Tree, runner hostapi.Runner, persistent *env.Store, loader scripting.ModuleLoader, out io.Writer) *Instance {
	eval := scripting.New(loader)
	return &Instance{
		ID:       uuid.New(),
		Tree:     tree,
		Runner:   runner,
		Env:      model.NewEnvironment(persistent),
		Eval:     eval,
		Resolver: vars.New(eval),
		Console:  console.New(out, runner.ConsoleOutput()),
		Cancel:   &CancelToken{},
	}
}

// Close releases the Instance's expression evaluator. Safe to call
// once, after the Instance will no longer run any branch.
func (i *Instance) Close() {
	i.Eval.Close()
}

// CurrentBranch returns the branch the Instance is currently paused
// or stopped on, or nil if none has been fetched yet.
func (i *Instance) CurrentBranch() *model.Branch {
	return i.currBranch
}
