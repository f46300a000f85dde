package model

import "github.com/gitter-badger/smashtest/internal/engineerr"

// Branch is a linearized sequence of Steps plus the four optional
// hook sequences (spec §3).
type Branch struct {
	Steps []*Step

	BeforeEveryBranch []*Step
	AfterEveryBranch  []*Step
	BeforeEveryStep   []*Step
	AfterEveryStep    []*Step

	Result Result
}

// IsComplete reports the Branch completeness invariant of spec §3.
func (b *Branch) IsComplete() bool {
	return b.Result.IsComplete()
}

// SetErrorOnce sets Result.Error only if it is not already set, per
// spec §7: "A branch's error is set at most once (first setter wins)".
func (b *Branch) SetErrorOnce(err *engineerr.Error) {
	if b.Result.Error == nil {
		b.Result.Error = err
	}
}

// MarkBranch implements the branch half of spec §7's error
// propagation: a hook error that has no target step falls through to
// the branch.
func (b *Branch) MarkBranch(passed bool, err *engineerr.Error) {
	if passed {
		b.Result.Outcome = Passed
		return
	}
	b.Result.Outcome = Failed
	b.SetErrorOnce(err)
}
