package engineerr

import (
	"testing"

	"github.com/gkampitakis/go-snaps/snaps"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorImplementsErrorInterface(t *testing.T) {
	e := New(VarNotSet, "x is never set")
	e.WithLocation("branch.smash", 12)

	var err error = e
	assert.Equal(t, "VarNotSet: x is never set (branch.smash:12)", err.Error())
}

func TestWithLocationHonorsPresetValues(t *testing.T) {
	e := New(CodeBlockError, "boom")
	e.Filename = "preset.smash"
	e.LineNumber = 99

	e.WithLocation("other.smash", 1)

	assert.Equal(t, "preset.smash", e.Filename)
	assert.Equal(t, 99, e.LineNumber)
}

func TestFormatRendersCaretAtColumn(t *testing.T) {
	e := New(CodeBlockError, "ReferenceError: y is not defined")
	e.Filename = "login.smash"
	e.LineNumber = 2
	e.Column = 5
	e.Source = "Login\n    y + 1\n"

	require.NotPanics(t, func() { e.Format(false) })
	snaps.MatchSnapshot(t, e.Format(false))
}

func TestStackTraceOrdering(t *testing.T) {
	st := StackTrace{
		{FunctionName: "main", Filename: "a.smash", LineNumber: 1},
		{FunctionName: "Greet", Filename: "a.smash", LineNumber: 5},
	}

	assert.Equal(t, "Greet", st.Top().FunctionName)
	assert.Equal(t, "main", st.Bottom().FunctionName)
	assert.Equal(t, 2, st.Depth())

	rev := st.Reverse()
	assert.Equal(t, "main", rev.Top().FunctionName)

	snaps.MatchSnapshot(t, st.String())
}
