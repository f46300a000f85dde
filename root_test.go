package smashtest

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitter-badger/smashtest/internal/engineerr"
	"github.com/gitter-badger/smashtest/internal/env"
	"github.com/gitter-badger/smashtest/internal/model"
)

// fakeTree is a minimal in-memory hostapi.Tree for exercising
// Instance.Run without a real TreeBuilder.
type fakeTree struct {
	branches      []*model.Branch
	branchIdx     int
	cursors       map[*model.Branch]int
	markedSkipped []*model.Step
	root          model.Step
}

func newFakeTree(branches ...*model.Branch) *fakeTree {
	return &fakeTree{branches: branches, cursors: map[*model.Branch]int{}}
}

func (t *fakeTree) NextBranch() (*model.Branch, error) {
	if t.branchIdx >= len(t.branches) {
		return nil, nil
	}
	b := t.branches[t.branchIdx]
	t.branchIdx++
	return b, nil
}

func (t *fakeTree) NextStep(branch *model.Branch, advance, markSkippedOnFinish bool) *model.Step {
	idx := t.cursors[branch]
	if idx >= len(branch.Steps) {
		return nil
	}
	step := branch.Steps[idx]
	if advance {
		t.cursors[branch] = idx + 1
	}
	return step
}

func (t *fakeTree) MarkStep(step *model.Step, branch *model.Branch, isPassed, asExpected bool, err error, finishBranchNow, continueOnFail bool) {
	if !isPassed && finishBranchNow {
		if ee, ok := err.(*engineerr.Error); ok {
			branch.MarkBranch(false, ee)
		} else {
			branch.MarkBranch(false, engineerr.New(engineerr.CodeBlockError, "unknown error"))
		}
	}
}

func (t *fakeTree) MarkStepSkipped(step *model.Step, branch *model.Branch) {
	step.Result.Outcome = model.Skipped
	t.markedSkipped = append(t.markedSkipped, step)
}

func (t *fakeTree) Branchify(step *model.Step, contextBranch *model.Branch) ([]*model.Branch, error) {
	return []*model.Branch{{Steps: []*model.Step{step}}}, nil
}

func (t *fakeTree) Root() *model.Step { return &t.root }

// fakeRunner is a minimal hostapi.Runner.
type fakeRunner struct {
	persistent    map[string]interface{}
	globalInit    map[string]interface{}
	pauseOnFail   bool
	consoleOutput bool
	paused        bool
}

func (r *fakeRunner) Persistent() map[string]interface{}  { return r.persistent }
func (r *fakeRunner) GlobalInit() map[string]interface{}  { return r.globalInit }
func (r *fakeRunner) PauseOnFail() bool                   { return r.pauseOnFail }
func (r *fakeRunner) ConsoleOutput() bool                 { return r.consoleOutput }
func (r *fakeRunner) SetPaused(paused bool)                { r.paused = paused }

func newTestInstance(tree *fakeTree, runner *fakeRunner) *Instance {
	inst := New(tree, runner, env.NewSharedStore(), nil, &bytes.Buffer{})
	return inst
}

func TestS1SimpleAssignmentAndRead(t *testing.T) {
	tree := newFakeTree()
	runner := &fakeRunner{}
	inst := newTestInstance(tree, runner)
	defer inst.Close()

	setStep := &model.Step{
		Text:         "{{x}}='hi'",
		VarsBeingSet: []model.VarAssignment{{Name: "x", Value: "'hi'", IsLocal: false}},
	}
	sayStep := &model.Step{Text: "say {{x}}"}
	branch := &model.Branch{Steps: []*model.Step{setStep, sayStep}}
	tree.branches = []*model.Branch{branch}

	inst.Run()

	v, ok := inst.Env.GetGlobal("x")
	require.True(t, ok)
	assert.Equal(t, "hi", v)
	assert.True(t, setStep.Result.IsPassed())
	assert.True(t, sayStep.Result.IsPassed())
	assert.Contains(t, sayStep.Result.Log, "say hi")
}

func TestS2ForwardLookup(t *testing.T) {
	tree := newFakeTree()
	runner := &fakeRunner{}
	inst := newTestInstance(tree, runner)
	defer inst.Close()

	readStep := &model.Step{Text: "need {{y}}"}
	setStep := &model.Step{
		Text:         "{{y}}='world'",
		VarsBeingSet: []model.VarAssignment{{Name: "y", Value: "'world'", IsLocal: false}},
	}
	branch := &model.Branch{Steps: []*model.Step{readStep, setStep}}
	tree.branches = []*model.Branch{branch}

	inst.Run()

	assert.True(t, readStep.Result.IsPassed())
	assert.True(t, setStep.Result.IsPassed())
	assert.Contains(t, readStep.Result.Log, "need world")
}

func TestS4ExpectedFailInversion(t *testing.T) {
	tree := newFakeTree()
	runner := &fakeRunner{}
	inst := newTestInstance(tree, runner)
	defer inst.Close()

	step := &model.Step{
		Text:           "boom()",
		IsExpectedFail: true,
		HasCodeBlock:   true,
		CodeBlock:      "throw new Error('boom')",
	}
	branch := &model.Branch{Steps: []*model.Step{step}}
	tree.branches = []*model.Branch{branch}

	inst.Run()

	assert.True(t, step.Result.IsFailed())
	assert.True(t, step.Result.AsExpected)
}

// TestExpectedFailButStepPassed exercises the other half of invariant
// 2: a step that actually succeeds but was marked expected-to-fail
// must still report Outcome=Passed, with AsExpected=false (the
// "passed not as expected" banner), not Outcome=Failed.
func TestExpectedFailButStepPassed(t *testing.T) {
	tree := newFakeTree()
	runner := &fakeRunner{}
	inst := newTestInstance(tree, runner)
	defer inst.Close()

	step := &model.Step{
		Text:           "fine()",
		IsExpectedFail: true,
		HasCodeBlock:   true,
		CodeBlock:      "1 + 1",
	}
	branch := &model.Branch{Steps: []*model.Step{step}}
	tree.branches = []*model.Branch{branch}

	inst.Run()

	assert.True(t, step.Result.IsPassed(), "a step that raised no error must report Passed even when expected to fail")
	assert.False(t, step.Result.AsExpected)
	require.NotNil(t, step.Result.Error)
	assert.Equal(t, engineerr.StepPassedButExpectedToFail, step.Result.Error.Kind)
}

func TestS5PauseOnFail(t *testing.T) {
	tree := newFakeTree()
	runner := &fakeRunner{pauseOnFail: true}
	inst := newTestInstance(tree, runner)
	defer inst.Close()

	step1 := &model.Step{Text: "fails()", HasCodeBlock: true, CodeBlock: "throw new Error('no')"}
	step2 := &model.Step{Text: "never runs yet"}
	branch := &model.Branch{Steps: []*model.Step{step1, step2}}
	tree.branches = []*model.Branch{branch}

	inst.Run()

	assert.True(t, step1.Result.IsFailed())
	assert.False(t, step1.Result.AsExpected)
	assert.True(t, inst.Cancel.IsPaused())
	assert.True(t, runner.paused)
	assert.Equal(t, model.NotRun, step2.Result.Outcome, "step 2 must not have run yet")

	branchComplete, err := inst.RunOneStep()
	require.NoError(t, err)
	assert.False(t, branchComplete)
	assert.True(t, step2.Result.IsPassed())
}

func TestS6Inject(t *testing.T) {
	tree := newFakeTree()
	runner := &fakeRunner{}
	inst := newTestInstance(tree, runner)
	defer inst.Close()

	done := &model.Step{Text: "already ran"}
	branch := &model.Branch{Steps: []*model.Step{done}}
	tree.branches = []*model.Branch{branch}
	tree.cursors[branch] = 1
	inst.currBranch = branch
	inst.StepsRan = append(inst.StepsRan, done)
	inst.Cancel.Pause()
	runner.paused = true

	injectStep := &model.Step{
		Text:         "{z}='abc'",
		VarsBeingSet: []model.VarAssignment{{Name: "z", Value: "'abc'", IsLocal: true}},
	}

	synthesized, err := inst.InjectStep(injectStep)
	require.NoError(t, err)
	require.Len(t, synthesized.Steps, 1)
	assert.True(t, synthesized.Steps[0].Result.IsPassed())

	v, ok := inst.Env.GetLocal("z")
	require.True(t, ok)
	assert.Equal(t, "abc", v)

	assert.True(t, inst.Cancel.IsPaused(), "instance must remain paused after inject")
	assert.Len(t, inst.StepsRan, 2, "stepsRan must have grown by one")
}

// TestS3FunctionCallScope models the function's body as a single
// inline code block carried directly on the call step (rather than as
// separate child steps at a deeper indent), so the call and its
// neighbors sit at the same branchIndents and the push/pop comes from
// step 7's explicit "isFunctionCall -> push" and step 4's
// prevWasCodeBlockFn -> pop, rather than from an indent delta.
func TestS3FunctionCallScope(t *testing.T) {
	tree := newFakeTree()
	runner := &fakeRunner{}
	inst := newTestInstance(tree, runner)
	defer inst.Close()

	before := &model.Step{Text: "setup", BranchIndents: 1}
	call := &model.Step{
		Text:                    `Greet "Ada"`,
		BranchIndents:           1,
		IsFunctionCall:          true,
		FunctionDeclarationText: "Greet {name}",
		HasCodeBlock:            true,
		CodeBlock:               "log(name)",
	}
	after := &model.Step{Text: "teardown", BranchIndents: 1}
	branch := &model.Branch{Steps: []*model.Step{before, call, after}}
	tree.branches = []*model.Branch{branch}

	inst.Run()

	require.True(t, call.Result.IsPassed())
	assert.Contains(t, call.Result.Log, `Function parameter {{name}} is "Ada"`)
	assert.Contains(t, call.Result.Log, "Ada")
	assert.Equal(t, 0, inst.Env.LocalStack.Depth(), "scope must close back to depth 0 once the call's sibling runs")
}

func TestInvariantOneOutcomeIsOneHot(t *testing.T) {
	tree := newFakeTree()
	runner := &fakeRunner{}
	inst := newTestInstance(tree, runner)
	defer inst.Close()

	ok := &model.Step{Text: "fine"}
	bad := &model.Step{Text: "bad()", HasCodeBlock: true, CodeBlock: "throw new Error('x')"}
	branch := &model.Branch{Steps: []*model.Step{ok, bad}}
	tree.branches = []*model.Branch{branch}

	inst.Run()

	for _, s := range []*model.Step{ok, bad} {
		n := 0
		if s.Result.IsPassed() {
			n++
		}
		if s.Result.IsFailed() {
			n++
		}
		if s.Result.IsSkipped() {
			n++
		}
		assert.Equal(t, 1, n, "step %q must have exactly one outcome", s.Text)
	}
}

func TestInvariantPersistentSurvivesAcrossBranchesGlobalDoesNot(t *testing.T) {
	tree := newFakeTree()
	runner := &fakeRunner{}
	inst := newTestInstance(tree, runner)
	defer inst.Close()

	setPersistent := &model.Step{Text: "remember", HasCodeBlock: true, CodeBlock: "setPersistent('seen', true)"}
	setGlobal := &model.Step{
		Text:         "{{flag}}='yes'",
		VarsBeingSet: []model.VarAssignment{{Name: "flag", Value: "'yes'", IsLocal: false}},
	}
	branch1 := &model.Branch{Steps: []*model.Step{setPersistent, setGlobal}}
	branch2 := &model.Branch{Steps: []*model.Step{{Text: "noop"}}}
	tree.branches = []*model.Branch{branch1, branch2}

	inst.Run()

	v, ok := inst.Env.GetPersistent("seen")
	require.True(t, ok)
	assert.Equal(t, true, v)

	_, ok = inst.Env.GetGlobal("flag")
	assert.False(t, ok, "global must reset at the start of the next branch")
}
