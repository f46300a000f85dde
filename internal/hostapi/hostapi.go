// Package hostapi declares the external collaborators the engine
// consumes but never implements: the Tree that owns step/branch
// storage and branchification, the Runner that owns multiple
// RunInstances, and the module loader behind imp() (spec §6). Tree
// parsing, the scheduler, the HTML reporter, the CLI, and any browser
// automation library are all out of scope (spec §1) and live on the
// other side of these interfaces.
package hostapi

import "github.com/gitter-badger/smashtest/internal/model"

// Tree is the host-owned store of branches and steps.
type Tree interface {
	// NextBranch returns the next runnable branch, or nil when the
	// tree is exhausted.
	NextBranch() (*model.Branch, error)

	// NextStep returns the next step to execute in branch. If advance
	// is true the cursor moves past the step this call returns. If
	// markSkippedOnFinish is true and no step remains, the branch is
	// marked complete as a side effect.
	NextStep(branch *model.Branch, advance, markSkippedOnFinish bool) *model.Step

	// MarkStep records a step's outcome. finishBranchNow tells the
	// Tree whether this failure should end the branch; continueOnFail
	// is the step's own continuance flag, recorded for the Tree's
	// bookkeeping.
	MarkStep(step *model.Step, branch *model.Branch, isPassed, asExpected bool, err error, finishBranchNow, continueOnFail bool)

	// MarkStepSkipped records that step was skipped without running it.
	MarkStepSkipped(step *model.Step, branch *model.Branch)

	// Branchify synthesizes branches from a single ad-hoc step,
	// resolving function calls against contextBranch's already-run
	// steps. Used by DebugController.InjectStep.
	Branchify(step *model.Step, contextBranch *model.Branch) ([]*model.Branch, error)

	// Root is the sentinel parent for synthesized steps.
	Root() *model.Step
}

// Runner is the host-owned owner of this and possibly other
// RunInstances.
type Runner interface {
	// Persistent is the variable map shared across every RunInstance
	// the Runner owns.
	Persistent() map[string]interface{}
	// GlobalInit seeds Environment.Global at the start of every branch.
	GlobalInit() map[string]interface{}
	// PauseOnFail reports whether a not-passed-as-expected step should
	// pause the instance rather than end the branch.
	PauseOnFail() bool
	// ConsoleOutput reports whether Start:/End: banners should print.
	ConsoleOutput() bool
	// SetPaused mirrors the instance's paused state back to the host
	// for UI purposes.
	SetPaused(paused bool)
}

// ModuleLoader resolves a dash-named external module for imp().
type ModuleLoader interface {
	Load(packageName string) (interface{}, error)
}
