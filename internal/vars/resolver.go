// Package vars implements VarResolver (spec §4.D): substituting
// {name}/{{name}} references inside step text, including the
// deliberate forward-lookup semantics where a later step may define
// what an earlier one reads.
package vars

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/gitter-badger/smashtest/internal/engineerr"
	"github.com/gitter-badger/smashtest/internal/model"
	"github.com/gitter-badger/smashtest/internal/scripting"
)

// maxResolveDepth bounds the recursive chain-resolution in
// findVarValueDepth/replaceVarsDepth; exceeding it is the
// CallStackExceeded condition of spec §4.D, translated to InfiniteVarLoop.
const maxResolveDepth = 64

// braceRE matches {{name}} (group 1, a global reference) or {name}
// (group 2, a local reference) — smashtest's brace convention.
var braceRE = regexp.MustCompile(`\{\{([^{}]+)\}\}|\{([^{}]+)\}`)

// Resolver evaluates {name}/{{name}} substitutions, calling back into
// an Evaluator when a matching setter step carries a code block.
type Resolver struct {
	Eval *scripting.Evaluator
}

// New creates a Resolver that evaluates setter code blocks with eval.
func New(eval *scripting.Evaluator) *Resolver {
	return &Resolver{Eval: eval}
}

// ReplaceVars substitutes every {name}/{{name}} occurrence in text
// (spec §4.D). The substituted value must resolve to a string, number,
// or boolean; anything else fails with VarTypeError.
func (r *Resolver) ReplaceVars(text string, step *model.Step, branch *model.Branch, env *model.Environment) (string, error) {
	return r.replaceVarsDepth(text, step, branch, env, 0)
}

func (r *Resolver) replaceVarsDepth(text string, step *model.Step, branch *model.Branch, env *model.Environment, depth int) (string, error) {
	if depth > maxResolveDepth {
		return "", engineerr.New(engineerr.InfiniteVarLoop, "variable resolution recursed too deeply")
	}

	var outerErr error
	result := braceRE.ReplaceAllStringFunc(text, func(match string) string {
		if outerErr != nil {
			return match
		}
		sub := braceRE.FindStringSubmatch(match)
		name, isLocal := parseBraceMatch(sub)

		value, err := r.findVarValueDepth(name, isLocal, step, branch, env, depth+1)
		if err != nil {
			outerErr = err
			return match
		}

		str, ok := scalarToString(value)
		if !ok {
			outerErr = engineerr.New(engineerr.VarTypeError,
				fmt.Sprintf("variable %q resolved to a non-scalar value", name))
			return match
		}
		return str
	})

	if outerErr != nil {
		return "", outerErr
	}
	return result, nil
}

// parseBraceMatch reports the referenced name and whether it is a
// local ({name}) or global ({{name}}) reference.
func parseBraceMatch(sub []string) (name string, isLocal bool) {
	if sub[1] != "" {
		return strings.TrimSpace(sub[1]), false
	}
	return strings.TrimSpace(sub[2]), true
}

// FindVarValue implements spec §4.D's findVarValue.
func (r *Resolver) FindVarValue(name string, isLocal bool, step *model.Step, branch *model.Branch, env *model.Environment) (interface{}, error) {
	return r.findVarValueDepth(name, isLocal, step, branch, env, 0)
}

func (r *Resolver) findVarValueDepth(name string, isLocal bool, step *model.Step, branch *model.Branch, env *model.Environment, depth int) (interface{}, error) {
	if depth > maxResolveDepth {
		return nil, engineerr.New(engineerr.InfiniteVarLoop, fmt.Sprintf("resolving %q recursed too deeply", name))
	}

	ns := model.Global
	if isLocal {
		ns = model.Local
	}
	if v, ok := env.Get(ns, name); ok {
		return v, nil
	}

	value, found, err := r.scanForward(name, isLocal, step, branch, env)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, engineerr.New(engineerr.VarNotSet, fmt.Sprintf("variable %q is never set", name))
	}

	if str, ok := scalarToString(value); ok {
		// Chained definitions resolve against the ORIGINAL step, not
		// the later setter step (spec §4.D step 4).
		resolved, err := r.replaceVarsDepth(str, step, branch, env, depth+1)
		if err != nil {
			return nil, err
		}
		return resolved, nil
	}
	return value, nil
}

// scanForward looks for the first step after step in branch whose
// VarsBeingSet sets {name, isLocal}. For a local reference, the scan
// stops (scope exit) at the first step whose BranchIndents is
// strictly less than step's.
func (r *Resolver) scanForward(name string, isLocal bool, step *model.Step, branch *model.Branch, env *model.Environment) (interface{}, bool, error) {
	if branch == nil {
		return nil, false, nil
	}
	idx := indexOfStep(branch.Steps, step)
	if idx < 0 {
		return nil, false, nil
	}

	canon := canonicalName(name)
	for i := idx + 1; i < len(branch.Steps); i++ {
		candidate := branch.Steps[i]
		if isLocal && candidate.BranchIndents < step.BranchIndents {
			break
		}
		for _, va := range candidate.VarsBeingSet {
			if va.IsLocal != isLocal {
				continue
			}
			if canonicalName(va.Name) != canon {
				continue
			}
			value, err := r.resolveAssignedValue(candidate, va, env)
			if err != nil {
				return nil, false, err
			}
			return value, true, nil
		}
	}
	return nil, false, nil
}

func (r *Resolver) resolveAssignedValue(setter *model.Step, va model.VarAssignment, env *model.Environment) (interface{}, error) {
	if setter.HasCodeBlock {
		if r.Eval == nil {
			return nil, fmt.Errorf("resolving %q: no evaluator configured", va.Name)
		}
		v, err := r.Eval.Eval(scripting.Request{
			Code:       setter.CodeBlock,
			FuncName:   setter.Text,
			LineNumber: setter.LineNumber,
			Access:     env,
			StepText:   setter.Text,
		})
		if err != nil {
			return nil, (&engineerr.Error{
				Kind:    engineerr.CodeBlockError,
				Message: err.Error(),
			}).WithLocation(setter.Filename, setter.LineNumber)
		}
		return v, nil
	}
	return unquoteAndUnescape(va.Value), nil
}

func indexOfStep(steps []*model.Step, step *model.Step) int {
	for i, s := range steps {
		if s == step {
			return i
		}
	}
	return -1
}

func canonicalName(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// Unquote exposes unquoteAndUnescape for callers outside this package
// that need to strip a literal's quoting before expanding it (spec
// §4.E step 5/6: function-call arguments and pure assignments both
// strip quotes the same way a setter step's literal value does).
func Unquote(raw string) string {
	return unquoteAndUnescape(raw)
}

// wholeBraceRE matches a token that is ENTIRELY a {name} or {{name}}
// reference, as opposed to braceRE which finds such references
// anywhere inside a larger string.
var wholeBraceRE = regexp.MustCompile(`^\{\{([^{}]+)\}\}$|^\{([^{}]+)\}$`)

// ParseBraceReference reports whether s is, in its entirety, a
// {name}/{{name}} reference, and if so its name and locality.
func ParseBraceReference(s string) (name string, isLocal bool, ok bool) {
	sub := wholeBraceRE.FindStringSubmatch(strings.TrimSpace(s))
	if sub == nil {
		return "", false, false
	}
	name, isLocal = parseBraceMatch(sub)
	return name, isLocal, true
}

// unquoteAndUnescape strips a surrounding '...' / "..." / [...] literal
// wrapper and applies standard escape sequences.
func unquoteAndUnescape(raw string) string {
	s := strings.TrimSpace(raw)
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		isQuoted := (first == '\'' && last == '\'') ||
			(first == '"' && last == '"') ||
			(first == '[' && last == ']')
		if isQuoted {
			s = s[1 : len(s)-1]
		}
	}
	return unescapeString(s)
}

func unescapeString(s string) string {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '\\' && i+1 < len(s) {
			i++
			switch s[i] {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case 'r':
				sb.WriteByte('\r')
			default:
				sb.WriteByte(s[i])
			}
			continue
		}
		sb.WriteByte(c)
	}
	return sb.String()
}

// scalarToString renders v as the engine's three-namespace model of
// a scalar (string/number/boolean); ok is false for anything else.
func scalarToString(v interface{}) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case bool:
		return strconv.FormatBool(val), true
	case int:
		return strconv.Itoa(val), true
	case int64:
		return strconv.FormatInt(val, 10), true
	case float64:
		if !math.IsInf(val, 0) && val == math.Trunc(val) {
			return strconv.FormatInt(int64(val), 10), true
		}
		return strconv.FormatFloat(val, 'g', -1, 64), true
	default:
		return "", false
	}
}
