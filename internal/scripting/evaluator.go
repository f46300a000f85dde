// Package scripting evaluates user-supplied expression blocks with an
// embedded ECMAScript runtime (spec §4.C). It does not import the
// env or model packages (only engineerr, for its error type); callers
// supply narrow interfaces so this package stays reusable on its own.
package scripting

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/dop251/goja"

	"github.com/gitter-badger/smashtest/internal/engineerr"
)

// VarAccess is the slice of the three-namespace environment a code
// block needs: the getX/setX helpers of spec §4.C, plus Names for
// building the identifier header.
type VarAccess interface {
	GetPersistent(name string) (interface{}, bool)
	GetGlobal(name string) (interface{}, bool)
	GetLocal(name string) (interface{}, bool)
	SetPersistent(name string, value interface{})
	SetGlobal(name string, value interface{})
	SetLocal(name string, value interface{})
	// Names returns every currently bound display-name/value pair
	// across all three namespaces, used to materialize the header.
	Names() []NamedValue
}

// NamedValue mirrors env.NamedValue without this package depending on
// the env package.
type NamedValue struct {
	Display string
	Value   interface{}
}

// ModuleLoader resolves a dash-named external module for imp().
type ModuleLoader interface {
	Load(packageName string) (interface{}, error)
}

// Request describes one expression-block evaluation.
type Request struct {
	Code       string
	FuncName   string
	LineNumber int
	Access     VarAccess
	StepText   string
	Log        func(string)
}

// Result is the outcome of an asynchronous evaluation.
type Result struct {
	Value interface{}
	Err   error
}

// Evaluator owns a single goja.Runtime, reused across evaluations
// within one RunInstance so that imp-loaded modules and any
// JS-side state a code block sets up (e.g. a closure stashed via
// setPersistent) survive from step to step. goja.Runtime is not safe
// for concurrent use, so every Eval call is serialized; callers that
// want "async mode" use EvalAsync, which dispatches the call without
// blocking the caller but still runs it on this serialized path.
type Evaluator struct {
	vm     *goja.Runtime
	loader ModuleLoader
	calls  chan func()
	done   chan struct{}
}

// New creates an Evaluator backed by a fresh goja runtime. loader may
// be nil if imp() is never used.
func New(loader ModuleLoader) *Evaluator {
	e := &Evaluator{
		vm:     goja.New(),
		loader: loader,
		calls:  make(chan func()),
		done:   make(chan struct{}),
	}
	go e.loop()
	return e
}

// loop runs every submitted call on a single goroutine, so the
// underlying goja.Runtime only ever sees one caller at a time even
// when EvalAsync is used from elsewhere.
func (e *Evaluator) loop() {
	for {
		select {
		case fn := <-e.calls:
			fn()
		case <-e.done:
			return
		}
	}
}

// Close stops the evaluator's goroutine. Safe to call once.
func (e *Evaluator) Close() {
	close(e.done)
}

func (e *Evaluator) submit(fn func()) {
	done := make(chan struct{})
	e.calls <- func() {
		fn()
		close(done)
	}
	<-done
}

// Eval runs req synchronously and returns the code block's return
// value (nil when it returns nothing), exported to a plain Go type.
func (e *Evaluator) Eval(req Request) (interface{}, error) {
	var value interface{}
	var err error
	e.submit(func() {
		value, err = e.evalOnLoopGoroutine(req)
	})
	return value, err
}

// EvalAsync runs req without blocking the caller; the result arrives
// on the returned channel once the (serialized) runtime gets to it.
func (e *Evaluator) EvalAsync(req Request) <-chan Result {
	ch := make(chan Result, 1)
	go func() {
		v, err := e.Eval(req)
		ch <- Result{Value: v, Err: err}
	}()
	return ch
}

func (e *Evaluator) evalOnLoopGoroutine(req Request) (interface{}, error) {
	e.bindHelpers(req)

	src := buildSource(req.Code, req.FuncName, req.LineNumber)
	prg, err := goja.Compile(anonymousSourceName, src, false)
	if err != nil {
		return nil, &engineerr.Error{
			Kind:    engineerr.CodeBlockError,
			Message: err.Error(),
		}
	}

	v, err := e.vm.RunProgram(prg)
	if err != nil {
		return nil, toEngineError(err)
	}
	if v == nil {
		return nil, nil
	}
	return v.Export(), nil
}

// anonymousSourceName is used as the goja program name so that thrown
// errors' stack traces read "at CodeBlock_for_X (<anonymous>:N:M(pc))",
// matching the line-rewriting contract of spec §4.E.
const anonymousSourceName = "<anonymous>"

func (e *Evaluator) bindHelpers(req Request) {
	vm := e.vm

	logFn := req.Log
	if logFn == nil {
		logFn = func(string) {}
	}
	vm.Set("log", func(text string) { logFn(text) })

	access := req.Access
	vm.Set("getPersistent", func(name string) interface{} {
		v, _ := access.GetPersistent(name)
		return v
	})
	vm.Set("getGlobal", func(name string) interface{} {
		v, _ := access.GetGlobal(name)
		return v
	})
	vm.Set("getLocal", func(name string) interface{} {
		v, _ := access.GetLocal(name)
		return v
	})
	vm.Set("setPersistent", func(name string, value interface{}) { access.SetPersistent(name, value) })
	vm.Set("setGlobal", func(name string, value interface{}) { access.SetGlobal(name, value) })
	vm.Set("setLocal", func(name string, value interface{}) { access.SetLocal(name, value) })

	stepText := req.StepText
	vm.Set("getStepText", func() string { return stepText })

	vm.Set("imp", func(call goja.FunctionCall) goja.Value {
		packageName := call.Argument(0).String()
		varName := deriveVarName(packageName)
		if arg := call.Argument(1); !goja.IsUndefined(arg) {
			varName = arg.String()
		}
		v, err := e.imp(access, packageName, varName)
		if err != nil {
			panic(vm.NewGoError(err))
		}
		return vm.ToValue(v)
	})

	for _, nv := range access.Names() {
		if isMaterializable(nv.Display) {
			vm.Set(nv.Display, nv.Value)
		}
	}
}

// imp implements spec §4.C: cache module values in the persistent
// namespace under varName, loading them lazily on first reference.
func (e *Evaluator) imp(access VarAccess, packageName, varName string) (interface{}, error) {
	if v, ok := access.GetPersistent(varName); ok {
		return v, nil
	}
	if e.loader == nil {
		return nil, fmt.Errorf("imp(%q): no module loader configured", packageName)
	}
	v, err := e.loader.Load(packageName)
	if err != nil {
		return nil, err
	}
	access.SetPersistent(varName, v)
	return v, nil
}

// buildSource prepends lineNumber-1 blank lines (so reported line
// numbers inside code match the user's source file) and wraps code in
// a named, immediately invoked function expression so thrown errors'
// stacks carry a recognizable frame name.
func buildSource(code, funcName string, lineNumber int) string {
	pad := strings.Repeat("\n", max0(lineNumber-1))
	var sb strings.Builder
	sb.WriteString(pad)
	sb.WriteString("(function CodeBlock_for_")
	sb.WriteString(sanitizeFuncName(funcName))
	sb.WriteString("() {\n")
	sb.WriteString(code)
	sb.WriteString("\n})()")
	return sb.String()
}

// sanitizeFuncName replaces whitespace in name with underscores and
// strips every other character that cannot appear in an identifier.
func sanitizeFuncName(name string) string {
	var sb strings.Builder
	for _, r := range name {
		switch {
		case unicode.IsSpace(r):
			sb.WriteRune('_')
		case r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r):
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// deriveVarName dash-to-camelCases a package name: "foo-bar" -> "fooBar".
func deriveVarName(packageName string) string {
	var sb strings.Builder
	upperNext := false
	for _, r := range packageName {
		if r == '-' {
			upperNext = true
			continue
		}
		if upperNext {
			sb.WriteRune(unicode.ToUpper(r))
			upperNext = false
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func max0(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

// anonymousFrameRE matches the line-number of the last frame produced
// by our own CodeBlock wrapper in a goja exception's stack text.
var anonymousFrameRE = regexp.MustCompile(`at CodeBlock[^\n(]*\(<anonymous>:(\d+)(?::\d+)?(?:\(\d+\))?\)`)

// LastAnonymousLine returns the line number of the last stack frame
// pointing into our generated <anonymous> source, used by the engine
// to overwrite a failed step's reported line number (spec §4.E).
func LastAnonymousLine(stack string) (int, bool) {
	matches := anonymousFrameRE.FindAllStringSubmatch(stack, -1)
	if len(matches) == 0 {
		return 0, false
	}
	last := matches[len(matches)-1]
	n, err := strconv.Atoi(last[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// AsEngineError reports whether err is (or wraps) an *engineerr.Error,
// a convenience for callers that need to inspect Kind/Continue.
func AsEngineError(err error) (*engineerr.Error, bool) {
	e, ok := err.(*engineerr.Error)
	return e, ok
}

// toEngineError converts a goja evaluation error into a CodeBlockError,
// preserving any explicit filename/lineNumber/continue attributes the
// thrown value carries (spec §7).
func toEngineError(err error) *engineerr.Error {
	ex, ok := err.(*goja.Exception)
	if !ok {
		return &engineerr.Error{Kind: engineerr.CodeBlockError, Message: err.Error()}
	}

	e := &engineerr.Error{
		Kind:    engineerr.CodeBlockError,
		Message: ex.Value().String(),
		Stack:   ex.String(),
	}

	if obj, ok := ex.Value().(*goja.Object); ok {
		if cont := obj.Get("continue"); cont != nil && !goja.IsUndefined(cont) {
			e.Continue = cont.ToBoolean()
		}
		if fn := obj.Get("filename"); fn != nil && !goja.IsUndefined(fn) {
			e.Filename = fn.String()
		}
		if ln := obj.Get("lineNumber"); ln != nil && !goja.IsUndefined(ln) {
			e.LineNumber = int(ln.ToInteger())
		}
	}

	return e
}
