package smashtest

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/gitter-badger/smashtest/internal/engineerr"
	"github.com/gitter-badger/smashtest/internal/model"
	"github.com/gitter-badger/smashtest/internal/scripting"
	"github.com/gitter-badger/smashtest/internal/vars"
)

// runStep implements StepRunner.runStep (spec §4.E), the twelve-step
// sequence that binds inputs, evaluates a step's code block, resolves
// its result, and runs the surrounding before/after-step hooks.
func (i *Instance) runStep(step *model.Step, branch *model.Branch, overrideDebug bool) {
	// 1. Before-debug gate.
	if step.IsBeforeDebug && !overrideDebug {
		i.pauseInstance()
		return
	}

	// 2. Stamp start, record, emit the Start: banner.
	step.Result = model.Result{TimeStarted: time.Now()}
	i.StepsRan = append(i.StepsRan, step)
	i.Console.StartStep(step)

	// A step's displayed text carries {name}/{{name}} references
	// (spec §4.D); log the resolved form when it resolves cleanly.
	// Failure here is not a step failure — only steps 5-7 below treat
	// an unresolved reference as a real error.
	if resolved, err := i.Resolver.ReplaceVars(step.Text, step, branch, i.Env); err == nil {
		i.logf(step, "%s", resolved)
	}

	// 3. Before-every-step hooks.
	if stopped := i.runBeforeStepHooks(step, branch); stopped {
		return
	}

	if !step.Result.IsFailed() {
		// 4. Scope transition.
		i.transitionScope(step, branch)

		// 5/6. Input binding or pure assignment.
		if step.IsFunctionCall {
			i.bindFunctionInputs(step, branch)
		} else if !step.HasCodeBlock && len(step.VarsBeingSet) > 0 {
			i.runPureAssignment(step, branch)
		}

		// 7. Code block.
		if step.Result.Error == nil && step.HasCodeBlock {
			if step.IsFunctionCall {
				i.Env.PushLocal()
			}
			if i.Cancel.IsStopped() {
				return
			}
			i.runCodeBlock(step, branch)
			if i.Cancel.IsStopped() {
				return
			}
		}
	}

	// 8. Result resolution.
	i.resolveResult(step, branch)

	// 9. After-every-step hooks.
	i.runAfterStepHooks(step, branch)

	// 10. PauseOnFail.
	if i.Runner.PauseOnFail() && !step.Result.AsExpected {
		i.pauseInstance()
	}

	// 11. Stamp end/elapsed; console.
	i.finishStep(step)

	// 12. After-debug gate.
	if step.IsAfterDebug && !overrideDebug {
		i.pauseInstance()
	}
}

func (i *Instance) pauseInstance() {
	i.Cancel.Pause()
	i.Runner.SetPaused(true)
}

// transitionScope applies spec §4.E step 4's LocalStack push/pop rules
// driven by the step-to-step change in branchIndents.
func (i *Instance) transitionScope(step *model.Step, branch *model.Branch) {
	defer i.Env.ClearPending()

	prev := previousStep(branch, step)
	if prev == nil {
		return
	}
	prevWasCodeBlockFn := prev.IsFunctionCall && prev.HasCodeBlock

	switch {
	case step.BranchIndents > prev.BranchIndents:
		if !prevWasCodeBlockFn {
			i.Env.PushLocal()
		}
	case step.BranchIndents < prev.BranchIndents:
		for n := prev.BranchIndents - step.BranchIndents; n > 0; n-- {
			i.Env.PopLocal()
		}
	default:
		if prevWasCodeBlockFn {
			i.Env.PopLocal()
		}
	}
}

func previousStep(branch *model.Branch, step *model.Step) *model.Step {
	for idx, s := range branch.Steps {
		if s == step {
			if idx == 0 {
				return nil
			}
			return branch.Steps[idx-1]
		}
	}
	return nil
}

// argTokenRE splits step/declaration text into whitespace-separated
// tokens while keeping quoted literals, bracketed lists, and brace
// references intact as single tokens.
var argTokenRE = regexp.MustCompile(`'[^']*'|"[^"]*"|\[[^\]]*\]|\{\{[^{}]*\}\}|\{[^{}]*\}|\S+`)

func tokenize(text string) []string {
	return argTokenRE.FindAllString(text, -1)
}

func isPlaceholderToken(tok string) bool {
	return strings.HasPrefix(tok, "{") && strings.HasSuffix(tok, "}")
}

func isLiteralToken(tok string) bool {
	if len(tok) < 2 {
		return false
	}
	first, last := tok[0], tok[len(tok)-1]
	return (first == '\'' && last == '\'') || (first == '"' && last == '"') || (first == '[' && last == ']')
}

// bindFunctionInputs implements spec §4.E step 5: align the
// declaration's bracketed parameter names with the call's argument
// tokens positionally, resolve each argument, and stage it into
// localsPassedIntoFunc.
func (i *Instance) bindFunctionInputs(step *model.Step, branch *model.Branch) {
	declTokens := tokenize(step.FunctionDeclarationText)
	callTokens := tokenize(step.Text)
	if len(step.VarsBeingSet) > 0 && len(callTokens) > 0 {
		callTokens = callTokens[1:]
	}

	// declTokens and callTokens are walked with a single shared index:
	// every decl token, placeholder or not (including the function
	// name itself), consumes one call token positionally. Only
	// placeholder decl tokens bind a value.
	for idx, tok := range declTokens {
		if !isPlaceholderToken(tok) {
			continue
		}
		name := strings.Trim(tok, "{}")

		if idx >= len(callTokens) {
			// Spec §9 open question: the source treats a varList/
			// inputList length mismatch as "probably unreachable".
			// Treated here as a hard assertion rather than silently
			// tolerated.
			panic(fmt.Sprintf("smashtest: function call %q does not supply an argument for parameter %q declared in %q",
				step.Text, name, step.FunctionDeclarationText))
		}
		arg := callTokens[idx]

		value, err := i.resolveArgValue(arg, step, branch)
		if err != nil {
			step.Result.Error = i.fillError(err, step)
			return
		}

		i.Env.Pending.Set(name, value)
		i.logf(step, "Function parameter {{%s}} is %q", name, fmt.Sprint(value))
	}
}

func (i *Instance) resolveArgValue(arg string, step *model.Step, branch *model.Branch) (interface{}, error) {
	if name, isLocal, ok := vars.ParseBraceReference(arg); ok {
		return i.Resolver.FindVarValue(name, isLocal, step, branch, i.Env)
	}
	if isLiteralToken(arg) {
		literal := vars.Unquote(arg)
		return i.Resolver.ReplaceVars(literal, step, branch, i.Env)
	}
	return arg, nil
}

// runPureAssignment implements spec §4.E step 6 for steps that set
// variables without calling a function or running a code block.
func (i *Instance) runPureAssignment(step *model.Step, branch *model.Branch) {
	for _, va := range step.VarsBeingSet {
		literal := vars.Unquote(va.Value)
		expanded, err := i.Resolver.ReplaceVars(literal, step, branch, i.Env)
		if err != nil {
			step.Result.Error = i.fillError(err, step)
			return
		}

		ns := model.Global
		label := fmt.Sprintf("{{%s}}", va.Name)
		if va.IsLocal {
			ns = model.Local
			label = fmt.Sprintf("{%s}", va.Name)
		}
		i.Env.Set(ns, va.Name, expanded)
		i.logf(step, "Setting %s to %q", label, expanded)
	}
}

// runCodeBlock implements spec §4.E step 7.
func (i *Instance) runCodeBlock(step *model.Step, branch *model.Branch) {
	result := <-i.Eval.EvalAsync(scripting.Request{
		Code:       step.CodeBlock,
		FuncName:   funcNameFor(step),
		LineNumber: step.LineNumber,
		Access:     i.Env,
		StepText:   step.Text,
		Log:        func(text string) { i.logf(step, "%s", text) },
	})

	if i.Cancel.IsStopped() {
		return
	}
	if result.Err != nil {
		step.Result.Error = i.fillError(result.Err, step)
		return
	}
	if len(step.VarsBeingSet) == 1 {
		va := step.VarsBeingSet[0]
		ns := model.Global
		if va.IsLocal {
			ns = model.Local
		}
		i.Env.Set(ns, va.Name, result.Value)
	}
}

func funcNameFor(step *model.Step) string {
	if step.IsFunctionCall && step.FunctionDeclarationText != "" {
		return step.FunctionDeclarationText
	}
	return step.Text
}

// resolveResult implements spec §4.E step 8, including the
// StepPassedButExpectedToFail synthesis and invariant 2's
// asExpected = (isPassed == !isExpectedFail) formula.
func (i *Instance) resolveResult(step *model.Step, branch *model.Branch) {
	// isPassed reflects whether the step itself actually succeeded,
	// computed before StepPassedButExpectedToFail is synthesized below
	// (spec §4.E step 8: "if no error, isPassed = true" comes first).
	isPassed := step.Result.Error == nil

	if isPassed && step.IsExpectedFail {
		step.Result.Error = (&engineerr.Error{
			Kind:    engineerr.StepPassedButExpectedToFail,
			Message: fmt.Sprintf("%q passed but was expected to fail", step.Text),
		}).WithLocation(step.Filename, step.LineNumber)
	}

	if isPassed {
		step.Result.Outcome = model.Passed
	} else {
		step.Result.Outcome = model.Failed
	}
	step.Result.AsExpected = isPassed == !step.IsExpectedFail

	// Spec §9 open question, resolved per the source's documented
	// behavior: continue OR pauseOnFail prevents branch termination;
	// both together also prevent termination.
	finishBranchNow := true
	if !isPassed && (step.Result.Error.Continue || i.Runner.PauseOnFail()) {
		finishBranchNow = false
	}

	i.Tree.MarkStep(step, branch, isPassed, step.Result.AsExpected, step.Result.Error, finishBranchNow, true)
}

// runBeforeStepHooks runs branch.BeforeEveryStep in order. A failing
// hook marks the step failed and stops the chain; a stop aborts
// immediately without marking anything (spec §4.E step 3, §5).
func (i *Instance) runBeforeStepHooks(step *model.Step, branch *model.Branch) bool {
	for _, hook := range branch.BeforeEveryStep {
		if i.Cancel.IsStopped() {
			return true
		}
		if err := i.runHookStep(hook, branch); err != nil {
			step.Result.Outcome = model.Failed
			step.Result.Error = err
			break
		}
		if i.Cancel.IsStopped() {
			return true
		}
	}
	return false
}

// runAfterStepHooks runs every after-every-step hook regardless of
// earlier failures; only a stop aborts the remainder.
func (i *Instance) runAfterStepHooks(step *model.Step, branch *model.Branch) {
	for _, hook := range branch.AfterEveryStep {
		if i.Cancel.IsStopped() {
			return
		}
		if err := i.runHookStep(hook, branch); err != nil {
			branch.SetErrorOnce(err)
		}
	}
}

// runHookStep evaluates a hook's code block and, on failure, fills
// and returns a HookError (spec §4.E "Hook execution").
func (i *Instance) runHookStep(hook *model.Step, branch *model.Branch) *engineerr.Error {
	if !hook.HasCodeBlock {
		return nil
	}
	i.StepsRan = append(i.StepsRan, hook)
	result := <-i.Eval.EvalAsync(scripting.Request{
		Code:       hook.CodeBlock,
		FuncName:   funcNameFor(hook),
		LineNumber: hook.LineNumber,
		Access:     i.Env,
		StepText:   hook.Text,
		Log:        func(text string) { i.logf(hook, "%s", text) },
	})
	if result.Err == nil {
		return nil
	}
	engErr := i.fillError(result.Err, hook)
	engErr.Kind = engineerr.HookError
	return engErr
}

// fillError attaches filename/lineNumber to a thrown error, applying
// the two corrections of spec §4.E: redirecting a function call's
// error to its declaration's location, and overwriting lineNumber
// with the last <anonymous> stack frame's line.
func (i *Instance) fillError(err error, step *model.Step) *engineerr.Error {
	engErr, ok := scripting.AsEngineError(err)
	if !ok {
		engErr = &engineerr.Error{Kind: engineerr.CodeBlockError, Message: err.Error()}
	}

	filename, lineNumber := step.Filename, step.LineNumber
	if step.IsFunctionCall && !step.IsHook && !step.IsPackaged &&
		step.OriginalStepInTree != nil && step.OriginalStepInTree.FunctionDeclarationInTree != nil {
		decl := step.OriginalStepInTree.FunctionDeclarationInTree
		filename, lineNumber = decl.Filename, decl.LineNumber
	}
	engErr.WithLocation(filename, lineNumber)

	if n, ok := scripting.LastAnonymousLine(engErr.Stack); ok {
		engErr.LineNumber = n
	}
	return engErr
}

func (i *Instance) finishStep(step *model.Step) {
	step.Result.TimeEnded = time.Now()
	step.Result.Elapsed = step.Result.TimeEnded.Sub(step.Result.TimeStarted).Seconds()
	i.Console.EndStep(step)
}

func (i *Instance) logf(step *model.Step, format string, args ...interface{}) {
	line := fmt.Sprintf(format, args...)
	if step.Result.Log != "" {
		step.Result.Log += "\n"
	}
	step.Result.Log += line
}
