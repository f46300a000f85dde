package model

import (
	"github.com/gitter-badger/smashtest/internal/env"
	"github.com/gitter-badger/smashtest/internal/scripting"
)

// Namespace selects which of the three variable stores an operation
// targets (spec §3, §4.A).
type Namespace int

const (
	Persistent Namespace = iota
	Global
	Local
)

// Environment is the per-RunInstance variable state of spec §3:
// persistent (shared with the Runner), global (reset every branch),
// local (current top frame, replaced wholesale on pop), the
// LocalStack driving push/pop, and the staging area for a pending
// function call's arguments.
type Environment struct {
	Persistent *env.Store
	Global     *env.Store
	Local      *env.Store
	LocalStack *env.LocalStack
	Pending    *env.Store // localsPassedIntoFunc
}

// NewEnvironment creates an Environment bound to the given (typically
// shared) persistent store.
func NewEnvironment(persistent *env.Store) *Environment {
	return &Environment{
		Persistent: persistent,
		Global:     env.NewStore(),
		Local:      env.NewStore(),
		LocalStack: env.NewLocalStack(),
		Pending:    env.NewStore(),
	}
}

// Get reads a variable from the given namespace. Local falls through
// Pending first, then Local, per spec §4.A.
func (e *Environment) Get(ns Namespace, name string) (interface{}, bool) {
	switch ns {
	case Persistent:
		return e.Persistent.Get(name)
	case Global:
		return e.Global.Get(name)
	case Local:
		if v, ok := e.Pending.Get(name); ok {
			return v, true
		}
		return e.Local.Get(name)
	default:
		return nil, false
	}
}

// Set writes a variable into the given namespace.
func (e *Environment) Set(ns Namespace, name string, value interface{}) {
	switch ns {
	case Persistent:
		e.Persistent.Set(name, value)
	case Global:
		e.Global.Set(name, value)
	case Local:
		e.Local.Set(name, value)
	}
}

// ResetGlobal replaces Global with a fresh store seeded from seed,
// the per-branch reset of spec §3 ("global: reset at the start of
// every branch, seeded from runner.globalInit").
func (e *Environment) ResetGlobal(seed map[string]interface{}) {
	fresh := env.NewStore()
	for k, v := range seed {
		fresh.Set(k, v)
	}
	e.Global = fresh
}

// ResetLocal clears Local, the LocalStack, and Pending, as done at the
// start of every branch (spec §4.F step 3).
func (e *Environment) ResetLocal() {
	e.Local = env.NewStore()
	e.LocalStack = env.NewLocalStack()
	e.Pending = env.NewStore()
}

// ClearPending empties the staged function-call arguments. Called at
// every step boundary (spec §3 invariant).
func (e *Environment) ClearPending() {
	e.Pending = env.NewStore()
}

// PushLocal saves the current Local frame and replaces it with a
// fresh frame seeded from Pending, then clears Pending (spec §4.B).
func (e *Environment) PushLocal() {
	e.Local = e.LocalStack.Push(e.Local, e.Pending)
	e.ClearPending()
}

// PopLocal restores the most recently saved Local frame (spec §4.B).
// It is a no-op if the stack is already empty.
func (e *Environment) PopLocal() {
	if top, ok := e.LocalStack.Pop(); ok {
		e.Local = top
	}
}

// Names implements scripting.VarAccess's header-building requirement:
// every binding across all three namespaces plus Pending, since a
// code block executing mid function-call-setup should still see the
// staged arguments as bare identifiers.
func (e *Environment) Names() []scripting.NamedValue {
	var out []scripting.NamedValue
	for _, stores := range [][]env.NamedValue{
		e.Persistent.Names(),
		e.Global.Names(),
		e.Local.Names(),
		e.Pending.Names(),
	} {
		for _, nv := range stores {
			out = append(out, scripting.NamedValue{Display: nv.Display, Value: nv.Value})
		}
	}
	return out
}

// GetPersistent, GetGlobal, GetLocal, SetPersistent, SetGlobal, and
// SetLocal implement scripting.VarAccess directly, so an Environment
// can be passed straight into an Evaluator request.
func (e *Environment) GetPersistent(name string) (interface{}, bool) { return e.Get(Persistent, name) }
func (e *Environment) GetGlobal(name string) (interface{}, bool)     { return e.Get(Global, name) }
func (e *Environment) GetLocal(name string) (interface{}, bool)      { return e.Get(Local, name) }
func (e *Environment) SetPersistent(name string, v interface{})     { e.Set(Persistent, name, v) }
func (e *Environment) SetGlobal(name string, v interface{})         { e.Set(Global, name, v) }
func (e *Environment) SetLocal(name string, v interface{})          { e.Set(Local, name, v) }
