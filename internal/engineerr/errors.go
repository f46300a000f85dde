// Package engineerr defines the engine's typed error kinds (spec §7)
// and the stack/source rendering used when printing a failed step to
// the console.
package engineerr

import (
	"fmt"
	"strings"
)

// Kind classifies an engine-level failure.
type Kind int

const (
	// CodeBlockError is a user expression block that threw.
	CodeBlockError Kind = iota
	// VarNotSet is a variable referenced but never assigned.
	VarNotSet
	// VarTypeError is a variable that resolved to a non-scalar value.
	VarTypeError
	// InfiniteVarLoop is a recursive variable resolution that overflowed.
	InfiniteVarLoop
	// StepPassedButExpectedToFail is an isExpectedFail step that passed.
	StepPassedButExpectedToFail
	// HookError is a hook's code block that threw.
	HookError
)

func (k Kind) String() string {
	switch k {
	case CodeBlockError:
		return "CodeBlockError"
	case VarNotSet:
		return "VarNotSet"
	case VarTypeError:
		return "VarTypeError"
	case InfiniteVarLoop:
		return "InfiniteVarLoop"
	case StepPassedButExpectedToFail:
		return "StepPassedButExpectedToFail"
	case HookError:
		return "HookError"
	default:
		return "UnknownError"
	}
}

// Error is the engine's single error type. Filename/LineNumber are
// honored rather than overwritten when a user step sets them
// explicitly (spec §7); Continue mirrors the same user-settable
// attribute.
type Error struct {
	Kind       Kind
	Filename   string
	LineNumber int
	Column     int
	Message    string
	Stack      string
	Continue   bool

	// Source, when set, is the full source text of Filename, used only
	// to render the caret view in Format.
	Source string
}

// New creates an Error of the given kind with no location set yet.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Filename != "" {
		return fmt.Sprintf("%s: %s (%s:%d)", e.Kind, e.Message, e.Filename, e.LineNumber)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// WithLocation fills Filename/LineNumber if they are not already set,
// honoring a location the user's thrown error carried explicitly
// (spec §7's "Optional pre-set filename, lineNumber: honored and not
// overwritten").
func (e *Error) WithLocation(filename string, line int) *Error {
	if e.Filename == "" {
		e.Filename = filename
	}
	if e.LineNumber == 0 {
		e.LineNumber = line
	}
	return e
}

// Format renders the error with a source-line caret indicator, in the
// style of a compiler diagnostic. When color is true, ANSI codes mark
// the caret and message.
func (e *Error) Format(color bool) string {
	var sb strings.Builder

	if e.Filename != "" {
		fmt.Fprintf(&sb, "%s: %s:%d\n", e.Kind, e.Filename, e.LineNumber)
	} else {
		fmt.Fprintf(&sb, "%s\n", e.Kind)
	}

	if line := e.sourceLine(e.LineNumber); line != "" {
		prefix := fmt.Sprintf("%4d | ", e.LineNumber)
		sb.WriteString(prefix)
		sb.WriteString(line)
		sb.WriteString("\n")

		sb.WriteString(strings.Repeat(" ", len(prefix)+max0(e.Column-1)))
		if color {
			sb.WriteString("\033[1;31m")
		}
		sb.WriteString("^")
		if color {
			sb.WriteString("\033[0m")
		}
		sb.WriteString("\n")
	}

	if color {
		sb.WriteString("\033[1m")
	}
	sb.WriteString(e.Message)
	if color {
		sb.WriteString("\033[0m")
	}

	if e.Stack != "" {
		sb.WriteString("\n")
		sb.WriteString(e.Stack)
	}

	return sb.String()
}

func (e *Error) sourceLine(n int) string {
	if e.Source == "" || n < 1 {
		return ""
	}
	lines := strings.Split(e.Source, "\n")
	if n > len(lines) {
		return ""
	}
	return lines[n-1]
}

func max0(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
