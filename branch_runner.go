package smashtest

import (
	"time"

	"github.com/gitter-badger/smashtest/internal/model"
)

// Run drives the overall BranchRunner loop of spec §4.F: pull
// branches from the Tree and run each to completion, honoring a
// pending pause/resume from a prior call.
func (i *Instance) Run() {
	if i.Cancel.IsStopped() {
		return
	}

	resumedMidBranch := false
	if i.Cancel.IsPaused() {
		i.Cancel.Resume()
		i.Runner.SetPaused(false)
		i.overrideDebug = true
		resumedMidBranch = true
	} else {
		branch, err := i.Tree.NextBranch()
		if err != nil || branch == nil {
			return
		}
		i.currBranch = branch
	}

	for i.currBranch != nil {
		i.runBranch(i.currBranch, resumedMidBranch)
		resumedMidBranch = false

		if i.Cancel.IsStopped() || i.Cancel.IsPaused() {
			return
		}

		branch, err := i.Tree.NextBranch()
		if err != nil || branch == nil {
			i.currBranch = nil
			return
		}
		i.currBranch = branch
	}
}

// runBranch implements spec §4.F steps 3-5 for a single branch.
func (i *Instance) runBranch(branch *model.Branch, resumedMidBranch bool) {
	if !resumedMidBranch {
		branch.Result.TimeStarted = time.Now()
		branch.Result.Elapsed = -1 // sentinel: not yet finalized
		i.Env.ResetGlobal(i.Runner.GlobalInit())
		i.Env.ResetLocal()

		if stopped := i.runBranchHooks(branch.BeforeEveryBranch, branch); stopped {
			return
		}
	}

	if !branch.Result.IsFailed() {
		for !branch.IsComplete() {
			step := i.Tree.NextStep(branch, true, true)
			if step == nil {
				break
			}

			override := i.overrideDebug
			i.overrideDebug = false
			i.runStep(step, branch, override)

			if i.Cancel.IsStopped() {
				branch.Result.Elapsed = time.Since(branch.Result.TimeStarted).Seconds()
				return
			}
			if i.Cancel.IsPaused() {
				return
			}
		}
	}

	if stopped := i.runBranchHooks(branch.AfterEveryBranch, branch); stopped {
		return
	}

	if branch.Result.Outcome == model.NotRun {
		branch.MarkBranch(true, nil)
	}
	if branch.Result.Elapsed == -1 {
		branch.Result.TimeEnded = time.Now()
		branch.Result.Elapsed = branch.Result.TimeEnded.Sub(branch.Result.TimeStarted).Seconds()
	}
	i.Console.BranchComplete(branch)
}

// runBranchHooks runs every hook in hooks regardless of a prior
// failure (spec §5: "every after-hook runs even if a prior after-hook
// failed"); a stop aborts the remainder. A failing hook marks branch
// failed via MarkBranch, which honors the first-setter-wins error rule.
func (i *Instance) runBranchHooks(hooks []*model.Step, branch *model.Branch) bool {
	for _, hook := range hooks {
		if i.Cancel.IsStopped() {
			return true
		}
		if err := i.runHookStep(hook, branch); err != nil {
			branch.MarkBranch(false, err)
		}
		if i.Cancel.IsStopped() {
			return true
		}
	}
	return false
}
