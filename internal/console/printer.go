// Package console renders the engine's only side-effecting output:
// the Start:/End: step banners and the branch-completion summary of
// spec §6. Styled after the teacher's raw-ANSI setColor/resetColor
// helpers, gated the same way by runner.consoleOutput.
package console

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/gitter-badger/smashtest/internal/engineerr"
	"github.com/gitter-badger/smashtest/internal/model"
)

// Printer writes step/branch banners to Out when Enabled is true.
// Enabled is normally wired to hostapi.Runner.ConsoleOutput().
type Printer struct {
	Out     io.Writer
	Enabled bool
}

// New creates a Printer writing to out.
func New(out io.Writer, enabled bool) *Printer {
	return &Printer{Out: out, Enabled: enabled}
}

// IsTerminal reports whether fd is connected to a terminal, the usual
// gate for whether ANSI color codes should actually be emitted.
func IsTerminal(fd uintptr) bool {
	return term.IsTerminal(int(fd))
}

func (p *Printer) setColor(fg, bg color.Attribute) {
	fmt.Fprintf(p.Out, "\033[%d;%dm", bg+10, fg)
}

func (p *Printer) resetColor() {
	fmt.Fprint(p.Out, "\033[0m")
}

// StartStep prints a step's "Start:" line (spec §6): the trimmed step
// text and an optional "[filename:line]" location suffix.
func (p *Printer) StartStep(step *model.Step) {
	if !p.Enabled {
		return
	}
	fmt.Fprintf(p.Out, "Start: %s", strings.TrimSpace(step.Text))
	if step.Filename != "" {
		fmt.Fprintf(p.Out, " [%s:%d]", step.Filename, step.LineNumber)
	}
	fmt.Fprintln(p.Out)
}

// EndStep prints a step's "End:" line: the step text colored green
// when the outcome matched expectations or red otherwise, a status
// suffix, and the elapsed time in seconds.
func (p *Printer) EndStep(step *model.Step) {
	if !p.Enabled {
		return
	}
	fg := color.FgRed
	if step.Result.AsExpected {
		fg = color.FgGreen
	}
	p.setColor(fg, color.BgBlack)
	fmt.Fprintf(p.Out, "End: %s", strings.TrimSpace(step.Text))
	p.resetColor()
	fmt.Fprintf(p.Out, " (%s) %.3fs\n", stepStatus(step), step.Result.Elapsed)

	if step.Result.Error != nil {
		p.printError(step.Text, step.Result.Error)
	}
}

// stepStatus renders the four banner suffixes spec §6 names.
func stepStatus(step *model.Step) string {
	switch {
	case step.Result.IsPassed() && step.Result.AsExpected:
		return "passed"
	case step.Result.IsPassed() && !step.Result.AsExpected:
		return "passed not as expected"
	case step.Result.IsFailed() && step.Result.AsExpected:
		return "failed as expected"
	case step.Result.IsFailed():
		return "failed"
	default:
		return step.Result.Outcome.String()
	}
}

func (p *Printer) printError(stepText string, err *engineerr.Error) {
	p.setColor(color.FgRed, color.BgBlack)
	fmt.Fprintf(p.Out, "\033[1m%s\033[22m\n", strings.TrimSpace(stepText))
	p.resetColor()
	fmt.Fprintln(p.Out, err.Format(true))
}

// BranchComplete prints the branch-completion summary: "Branch
// complete", and, if the branch carries a branch-level error,
// "Errors occurred in branch" with its location and stack.
func (p *Printer) BranchComplete(branch *model.Branch) {
	if !p.Enabled {
		return
	}
	fmt.Fprintln(p.Out, "Branch complete")
	if branch.Result.Error != nil {
		p.setColor(color.FgRed, color.BgBlack)
		fmt.Fprintln(p.Out, "Errors occurred in branch")
		p.resetColor()
		fmt.Fprintln(p.Out, branch.Result.Error.Format(true))
	}
}
