package smashtest

import (
	"errors"
	"time"

	"github.com/gitter-badger/smashtest/internal/model"
)

// ErrNotPaused is returned by every DebugController operation when
// the Instance is not currently paused (spec §4.G: these operations
// are "only valid when isPaused").
var ErrNotPaused = errors.New("smashtest: debug operation requires a paused instance")

func (i *Instance) requirePaused() error {
	if !i.Cancel.IsPaused() {
		return ErrNotPaused
	}
	return nil
}

// RunOneStep implements DebugController.runOneStep: run the next
// not-yet-complete step with overrideDebug, advance the cursor past
// it, and pause again. Reports branchComplete=true once no step
// remains, having first run afterEveryBranch.
func (i *Instance) RunOneStep() (branchComplete bool, err error) {
	if err := i.requirePaused(); err != nil {
		return false, err
	}
	branch := i.currBranch
	if branch == nil {
		return true, nil
	}

	step := i.Tree.NextStep(branch, false, false)
	if step == nil {
		i.runBranchHooks(branch.AfterEveryBranch, branch)
		return true, nil
	}

	i.runStep(step, branch, true)
	i.Tree.NextStep(branch, true, false)
	i.pauseInstance()
	return false, nil
}

// SkipOneStep implements DebugController.skipOneStep: mark the next
// not-yet-complete step skipped without running it, advance past it,
// and pause again.
func (i *Instance) SkipOneStep() (branchComplete bool, err error) {
	if err := i.requirePaused(); err != nil {
		return false, err
	}
	branch := i.currBranch
	if branch == nil {
		return true, nil
	}

	step := i.Tree.NextStep(branch, false, false)
	if step == nil {
		i.runBranchHooks(branch.AfterEveryBranch, branch)
		return true, nil
	}

	i.Tree.MarkStepSkipped(step, branch)
	i.Tree.NextStep(branch, true, false)
	i.pauseInstance()
	return false, nil
}

// RunLastStep implements DebugController.runLastStep: re-run the step
// immediately before the current cursor, with no cursor change.
func (i *Instance) RunLastStep() error {
	if err := i.requirePaused(); err != nil {
		return err
	}
	if i.currBranch == nil {
		return nil
	}
	var last *model.Step
	if next := i.Tree.NextStep(i.currBranch, false, false); next != nil {
		last = previousStep(i.currBranch, next)
	} else if n := len(i.currBranch.Steps); n > 0 {
		last = i.currBranch.Steps[n-1]
	}
	if last == nil {
		return nil
	}
	i.runStep(last, i.currBranch, true)
	return nil
}

// InjectStep implements DebugController.injectStep: branchify step
// against the current stepsRan context so already-defined function
// calls resolve, run the synthesized branch until a step fails or all
// finish, pause, and return the synthesized branch.
func (i *Instance) InjectStep(step *model.Step) (*model.Branch, error) {
	if err := i.requirePaused(); err != nil {
		return nil, err
	}

	synthesized, err := i.Tree.Branchify(step, i.currBranch)
	if err != nil {
		return nil, err
	}
	if len(synthesized) == 0 {
		return nil, errors.New("smashtest: injectStep produced no branch")
	}
	injected := synthesized[0]

	for _, s := range injected.Steps {
		i.runStep(s, injected, true)
		if s.Result.IsFailed() {
			break
		}
	}
	i.pauseInstance()
	return injected, nil
}

// Stop implements DebugController.stop: a terminal, cooperative
// cancellation signal propagated to the current branch's elapsed time.
func (i *Instance) Stop() {
	i.Cancel.Stop()
	if i.currBranch != nil && !i.currBranch.Result.TimeStarted.IsZero() {
		i.currBranch.Result.Elapsed = time.Since(i.currBranch.Result.TimeStarted).Seconds()
	}
}
