package vars

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitter-badger/smashtest/internal/engineerr"
	"github.com/gitter-badger/smashtest/internal/env"
	"github.com/gitter-badger/smashtest/internal/model"
	"github.com/gitter-badger/smashtest/internal/scripting"
)

func newTestEnv() *model.Environment {
	return model.NewEnvironment(env.NewStore())
}

func TestReplaceVarsUsesAlreadyAssignedNamespace(t *testing.T) {
	r := New(nil)
	e := newTestEnv()
	e.SetGlobal("name", "Ada")

	step := &model.Step{Text: "I am {{name}}"}
	branch := &model.Branch{Steps: []*model.Step{step}}

	out, err := r.ReplaceVars("Hello, {{name}}!", step, branch, e)
	require.NoError(t, err)
	assert.Equal(t, "Hello, Ada!", out)
}

func TestReplaceVarsScansForwardForLocalReference(t *testing.T) {
	r := New(nil)
	e := newTestEnv()

	read := &model.Step{Text: "I see {x}", BranchIndents: 0}
	set := &model.Step{
		Text:          "x = 'wonderland'",
		BranchIndents: 0,
		VarsBeingSet:  []model.VarAssignment{{Name: "x", Value: "'wonderland'", IsLocal: true}},
	}
	branch := &model.Branch{Steps: []*model.Step{read, set}}

	out, err := r.ReplaceVars("{x}", read, branch, e)
	require.NoError(t, err)
	assert.Equal(t, "wonderland", out)
}

func TestReplaceVarsLocalScanStopsAtScopeExit(t *testing.T) {
	r := New(nil)
	e := newTestEnv()

	read := &model.Step{Text: "I see {x}", BranchIndents: 1}
	outOfScope := &model.Step{
		Text:          "x = 'too late'",
		BranchIndents: 0,
		VarsBeingSet:  []model.VarAssignment{{Name: "x", Value: "'too late'", IsLocal: true}},
	}
	branch := &model.Branch{Steps: []*model.Step{read, outOfScope}}

	_, err := r.ReplaceVars("{x}", read, branch, e)
	require.Error(t, err)
	engErr, ok := err.(*engineerr.Error)
	require.True(t, ok)
	assert.Equal(t, engineerr.VarNotSet, engErr.Kind)
}

func TestReplaceVarsFailsWithVarNotSet(t *testing.T) {
	r := New(nil)
	e := newTestEnv()
	step := &model.Step{Text: "nothing sets {missing}"}
	branch := &model.Branch{Steps: []*model.Step{step}}

	_, err := r.ReplaceVars("{missing}", step, branch, e)
	require.Error(t, err)
	engErr, ok := err.(*engineerr.Error)
	require.True(t, ok)
	assert.Equal(t, engineerr.VarNotSet, engErr.Kind)
}

func TestReplaceVarsEvaluatesCodeBlockForSetter(t *testing.T) {
	eval := scripting.New(nil)
	t.Cleanup(eval.Close)
	r := New(eval)
	e := newTestEnv()

	read := &model.Step{Text: "I see {{total}}"}
	set := &model.Step{
		Text:         "total = some code",
		HasCodeBlock: true,
		CodeBlock:    "return 2 + 2",
		VarsBeingSet: []model.VarAssignment{{Name: "total", Value: "", IsLocal: false}},
	}
	branch := &model.Branch{Steps: []*model.Step{read, set}}

	out, err := r.ReplaceVars("{{total}}", read, branch, e)
	require.NoError(t, err)
	assert.Equal(t, "4", out)
}

func TestReplaceVarsChainsThroughAnotherReference(t *testing.T) {
	r := New(nil)
	e := newTestEnv()
	e.SetGlobal("first", "Ada")

	read := &model.Step{Text: "{{greeting}}"}
	set := &model.Step{
		Text:         "greeting = 'Hi {{first}}'",
		VarsBeingSet: []model.VarAssignment{{Name: "greeting", Value: "'Hi {{first}}'", IsLocal: false}},
	}
	branch := &model.Branch{Steps: []*model.Step{read, set}}

	out, err := r.ReplaceVars("{{greeting}}", read, branch, e)
	require.NoError(t, err)
	assert.Equal(t, "Hi Ada", out)
}

func TestReplaceVarsSelfReferenceFailsWithInfiniteVarLoop(t *testing.T) {
	r := New(nil)
	e := newTestEnv()

	read := &model.Step{Text: "{{x}}"}
	set := &model.Step{
		Text:         "x = '{{x}}'",
		VarsBeingSet: []model.VarAssignment{{Name: "x", Value: "'{{x}}'", IsLocal: false}},
	}
	branch := &model.Branch{Steps: []*model.Step{read, set}}

	_, err := r.ReplaceVars("{{x}}", read, branch, e)
	require.Error(t, err)
	engErr, ok := err.(*engineerr.Error)
	require.True(t, ok)
	assert.Equal(t, engineerr.InfiniteVarLoop, engErr.Kind)
}

func TestUnquoteAndUnescapeStripsQuotesAndEscapes(t *testing.T) {
	assert.Equal(t, "hello\nworld", unquoteAndUnescape(`'hello\nworld'`))
	assert.Equal(t, "a, b", unquoteAndUnescape(`"a, b"`))
	assert.Equal(t, "bare", unquoteAndUnescape("bare"))
}

func TestScalarToStringHandlesSupportedTypes(t *testing.T) {
	s, ok := scalarToString(42)
	assert.True(t, ok)
	assert.Equal(t, "42", s)

	s, ok = scalarToString(3.5)
	assert.True(t, ok)
	assert.Equal(t, "3.5", s)

	s, ok = scalarToString(true)
	assert.True(t, ok)
	assert.Equal(t, "true", s)

	_, ok = scalarToString([]int{1, 2})
	assert.False(t, ok)
}
