package console

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gitter-badger/smashtest/internal/engineerr"
	"github.com/gitter-badger/smashtest/internal/model"
)

func TestStartStepPrintsLocationSuffix(t *testing.T) {
	var sb strings.Builder
	p := New(&sb, true)

	p.StartStep(&model.Step{Text: "  click the button  ", Filename: "login.step", LineNumber: 12})

	assert.Equal(t, "Start: click the button [login.step:12]\n", sb.String())
}

func TestStartStepSilentWhenDisabled(t *testing.T) {
	var sb strings.Builder
	p := New(&sb, false)

	p.StartStep(&model.Step{Text: "click the button"})

	assert.Empty(t, sb.String())
}

func TestStepStatusCoversAllFourSuffixes(t *testing.T) {
	cases := []struct {
		name   string
		result model.Result
		want   string
	}{
		{"passed as expected", model.Result{Outcome: model.Passed, AsExpected: true}, "passed"},
		{"passed not as expected", model.Result{Outcome: model.Passed, AsExpected: false}, "passed not as expected"},
		{"failed as expected", model.Result{Outcome: model.Failed, AsExpected: true}, "failed as expected"},
		{"failed", model.Result{Outcome: model.Failed, AsExpected: false}, "failed"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			step := &model.Step{Text: "x", Result: c.result}
			assert.Equal(t, c.want, stepStatus(step))
		})
	}
}

func TestEndStepPrintsErrorWhenPresent(t *testing.T) {
	var sb strings.Builder
	p := New(&sb, true)

	step := &model.Step{
		Text: "open the door",
		Result: model.Result{
			Outcome:    model.Failed,
			AsExpected: false,
			Elapsed:    0.25,
			Error:      engineerr.New(engineerr.CodeBlockError, "door is locked"),
		},
	}

	p.EndStep(step)

	out := sb.String()
	assert.Contains(t, out, "End: open the door")
	assert.Contains(t, out, "(failed) 0.250s")
	assert.Contains(t, out, "door is locked")
}

func TestBranchCompletePrintsErrorsOccurred(t *testing.T) {
	var sb strings.Builder
	p := New(&sb, true)

	branch := &model.Branch{Result: model.Result{
		Outcome: model.Failed,
		Error:   engineerr.New(engineerr.HookError, "afterEveryBranch hook failed"),
	}}

	p.BranchComplete(branch)

	out := sb.String()
	assert.Contains(t, out, "Branch complete")
	assert.Contains(t, out, "Errors occurred in branch")
	assert.Contains(t, out, "afterEveryBranch hook failed")
}

func TestBranchCompleteOmitsErrorsWhenNone(t *testing.T) {
	var sb strings.Builder
	p := New(&sb, true)

	p.BranchComplete(&model.Branch{Result: model.Result{Outcome: model.Passed}})

	out := sb.String()
	assert.Contains(t, out, "Branch complete")
	assert.NotContains(t, out, "Errors occurred in branch")
}
