// Package model holds the engine's Tree-facing data types: Step,
// Branch, and the per-instance Environment. These are plain data (the
// "read-mostly input from Tree, with writable result fields" of spec
// §3); the behavior that operates on them lives in the root package
// and in vars/scripting/console.
package model

import (
	"time"

	"github.com/gitter-badger/smashtest/internal/engineerr"
)

// Outcome is the tagged result of running a Step or Branch, per the
// sum-typed design spec §9 recommends in place of three independent
// booleans.
type Outcome int

const (
	// NotRun means the step/branch has not finished executing yet.
	NotRun Outcome = iota
	Passed
	Failed
	Skipped
)

func (o Outcome) String() string {
	switch o {
	case Passed:
		return "passed"
	case Failed:
		return "failed"
	case Skipped:
		return "skipped"
	default:
		return "not run"
	}
}

// Result is the shared result shape for both Step and Branch (spec §3).
type Result struct {
	Outcome        Outcome
	AsExpected     bool
	Error          *engineerr.Error
	Log            string
	TimeStarted    time.Time
	TimeEnded      time.Time
	Elapsed        float64 // seconds; -1 sentinel means "never completed a timed run"
	PassedLastTime bool    // Branch-only: a prior run already passed this branch
}

// IsPassed, IsFailed, IsSkipped are the boolean view spec §3 describes;
// Tree.markStep (an external collaborator, spec §6) is specified in
// terms of these booleans, so they are kept as a computed read, not as
// independently settable fields.
func (r Result) IsPassed() bool  { return r.Outcome == Passed }
func (r Result) IsFailed() bool  { return r.Outcome == Failed }
func (r Result) IsSkipped() bool { return r.Outcome == Skipped }

// IsComplete reports whether exactly one of Passed/Failed/Skipped/
// PassedLastTime holds, the Branch completeness invariant of spec §3.
func (r Result) IsComplete() bool {
	n := 0
	if r.Outcome == Passed {
		n++
	}
	if r.Outcome == Failed {
		n++
	}
	if r.Outcome == Skipped {
		n++
	}
	if r.PassedLastTime {
		n++
	}
	return n == 1
}

// VarAssignment is one entry of Step.VarsBeingSet: a variable this
// step sets, and whether it targets the local (vs. global) namespace.
type VarAssignment struct {
	Name    string
	Value   string // a literal or variable-bearing string, not yet resolved
	IsLocal bool
}

// Step is one unit of execution in a Branch (spec §3).
type Step struct {
	// Identity.
	Filename      string
	LineNumber    int
	Line          string // raw text
	Text          string // canonical text
	BranchIndents int

	// Classification flags, immutable for the run.
	IsFunctionCall bool
	IsHook         bool
	IsPackaged     bool
	IsBeforeDebug  bool
	IsAfterDebug   bool
	IsExpectedFail bool

	// Body.
	CodeBlock               string
	HasCodeBlock            bool
	FunctionDeclarationText string

	// OriginalStepInTree is a non-owning back-reference used only to
	// resolve a function call's declaration line (spec §3, §9 "cyclic
	// references... non-owning").
	OriginalStepInTree *Step
	// FunctionDeclarationInTree points at the step that declared the
	// function this step calls, when IsFunctionCall is true.
	FunctionDeclarationInTree *Step

	// Inputs.
	VarsBeingSet []VarAssignment

	// Results, filled by the engine.
	Result Result
}
