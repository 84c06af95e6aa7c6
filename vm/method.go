package vm

import (
	"errors"
)

// Method is a callable entry in a method table.
//
// Every method carries its visibility and the module that owns it. Owner is
// always a real module, never an included-module wrapper. Modules copy a
// method when they store it so that one Method value is never shared between
// tables with different owners or visibilities.
type Method interface {
	Invoke(t *Thread, self Value, name string, args []Value, blk *Proc) (Value, error)
	Visibility() Visibility
	Owner() *Module
	Arity() Arity
	IsUndefined() bool

	withVisibility(v Visibility) Method
	withOwner(m *Module) Method
}

// Arity is the accepted argument count range. Max < 0 means unbounded.
type Arity struct {
	Min int
	Max int
}

// AnyArity accepts any number of arguments.
var AnyArity = Arity{Min: 0, Max: -1}

// FixedArity accepts exactly n arguments.
func FixedArity(n int) Arity { return Arity{Min: n, Max: n} }

// OptionalArity accepts min or more arguments.
func OptionalArity(min int) Arity { return Arity{Min: min, Max: -1} }

// Accepts reports whether n arguments satisfy the arity.
func (a Arity) Accepts(n int) bool {
	return n >= a.Min && (a.Max < 0 || n <= a.Max)
}

// Int returns the arity in the conventional encoding: n for a fixed count,
// -(required+1) when trailing arguments are optional.
func (a Arity) Int() int {
	if a.Min == a.Max {
		return a.Min
	}
	return -(a.Min + 1)
}

type methodBase struct {
	visibility Visibility
	owner      *Module
}

func (b *methodBase) Visibility() Visibility { return b.visibility }
func (b *methodBase) Owner() *Module         { return b.owner }
func (b *methodBase) IsUndefined() bool      { return false }

// ---------------------------------------------------------------------------
// Native methods
// ---------------------------------------------------------------------------

// NativeFunc is a Go function implementing a method.
type NativeFunc func(t *Thread, self Value, args []Value, blk *Proc) (Value, error)

// Method0Func is a native method taking no arguments.
type Method0Func func(t *Thread, self Value) (Value, error)

// Method1Func is a native method taking one argument.
type Method1Func func(t *Thread, self Value, arg Value) (Value, error)

// Method2Func is a native method taking two arguments.
type Method2Func func(t *Thread, self Value, arg1, arg2 Value) (Value, error)

// NativeMethod wraps a Go callback.
type NativeMethod struct {
	methodBase
	fn    NativeFunc
	arity Arity
}

// NewNativeMethod creates a public native method.
func NewNativeMethod(arity Arity, fn NativeFunc) *NativeMethod {
	return &NativeMethod{fn: fn, arity: arity}
}

// NewMethod0 adapts a zero-argument function.
func NewMethod0(fn Method0Func) *NativeMethod {
	return NewNativeMethod(FixedArity(0), func(t *Thread, self Value, _ []Value, _ *Proc) (Value, error) {
		return fn(t, self)
	})
}

// NewMethod1 adapts a one-argument function.
func NewMethod1(fn Method1Func) *NativeMethod {
	return NewNativeMethod(FixedArity(1), func(t *Thread, self Value, args []Value, _ *Proc) (Value, error) {
		return fn(t, self, args[0])
	})
}

// NewMethod2 adapts a two-argument function.
func NewMethod2(fn Method2Func) *NativeMethod {
	return NewNativeMethod(FixedArity(2), func(t *Thread, self Value, args []Value, _ *Proc) (Value, error) {
		return fn(t, self, args[0], args[1])
	})
}

func (m *NativeMethod) Invoke(t *Thread, self Value, _ string, args []Value, blk *Proc) (Value, error) {
	return m.fn(t, self, args, blk)
}

func (m *NativeMethod) Arity() Arity { return m.arity }

func (m *NativeMethod) withVisibility(v Visibility) Method {
	c := *m
	c.visibility = v
	return &c
}

func (m *NativeMethod) withOwner(o *Module) Method {
	c := *m
	c.owner = o
	return &c
}

// ---------------------------------------------------------------------------
// User-defined bodies
// ---------------------------------------------------------------------------

// Body is compiled code supplied by a front end. The runtime treats it as
// opaque: it is invoked with the frame already pushed.
type Body interface {
	Eval(t *Thread, self Value, args []Value, blk *Proc) (Value, error)
}

// BodyFunc lets a plain function serve as a Body.
type BodyFunc func(t *Thread, self Value, args []Value, blk *Proc) (Value, error)

func (f BodyFunc) Eval(t *Thread, self Value, args []Value, blk *Proc) (Value, error) {
	return f(t, self, args, blk)
}

// BodyMethod is a user-defined method.
type BodyMethod struct {
	methodBase
	body  Body
	arity Arity
}

// NewBodyMethod creates a user-defined method with the given visibility.
func NewBodyMethod(body Body, arity Arity, vis Visibility) *BodyMethod {
	return &BodyMethod{methodBase: methodBase{visibility: vis}, body: body, arity: arity}
}

func (m *BodyMethod) Invoke(t *Thread, self Value, _ string, args []Value, blk *Proc) (Value, error) {
	return m.body.Eval(t, self, args, blk)
}

func (m *BodyMethod) Arity() Arity { return m.arity }

func (m *BodyMethod) withVisibility(v Visibility) Method {
	c := *m
	c.visibility = v
	return &c
}

func (m *BodyMethod) withOwner(o *Module) Method {
	c := *m
	c.owner = o
	return &c
}

// ---------------------------------------------------------------------------
// Aliases
// ---------------------------------------------------------------------------

// AliasMethod binds a new name to the method object found when the alias was
// made. Later redefinition of the original name does not affect it. Dispatch
// runs the target under its original name and origin so super keeps working.
type AliasMethod struct {
	methodBase
	target       Method
	origin       *Module
	originalName string
}

func (m *AliasMethod) Invoke(t *Thread, self Value, _ string, args []Value, blk *Proc) (Value, error) {
	return m.target.Invoke(t, self, m.originalName, args, blk)
}

func (m *AliasMethod) Arity() Arity { return m.target.Arity() }

// Target returns the aliased method.
func (m *AliasMethod) Target() Method { return m.target }

// OriginalName returns the name the target was found under.
func (m *AliasMethod) OriginalName() string { return m.originalName }

func (m *AliasMethod) withVisibility(v Visibility) Method {
	c := *m
	c.visibility = v
	return &c
}

func (m *AliasMethod) withOwner(o *Module) Method {
	c := *m
	c.owner = o
	return &c
}

// ---------------------------------------------------------------------------
// Proc-backed methods
// ---------------------------------------------------------------------------

// ProcMethod runs a Proc with self rebound to the receiver (define_method).
type ProcMethod struct {
	methodBase
	proc *Proc
}

func (m *ProcMethod) Invoke(t *Thread, self Value, _ string, args []Value, blk *Proc) (Value, error) {
	return m.proc.callAs(t, self, args, blk)
}

func (m *ProcMethod) Arity() Arity { return m.proc.arity }

func (m *ProcMethod) withVisibility(v Visibility) Method {
	c := *m
	c.visibility = v
	return &c
}

func (m *ProcMethod) withOwner(o *Module) Method {
	c := *m
	c.owner = o
	return &c
}

// ---------------------------------------------------------------------------
// Visibility changes
// ---------------------------------------------------------------------------

// SuperMethod is installed when a module changes the visibility of a method
// it inherits. Calling it forwards to the same name one step up the chain.
type SuperMethod struct {
	methodBase
}

func (m *SuperMethod) Invoke(t *Thread, _ Value, _ string, args []Value, blk *Proc) (Value, error) {
	return t.Super(args, blk)
}

func (m *SuperMethod) Arity() Arity { return AnyArity }

func (m *SuperMethod) withVisibility(v Visibility) Method {
	c := *m
	c.visibility = v
	return &c
}

func (m *SuperMethod) withOwner(o *Module) Method {
	c := *m
	c.owner = o
	return &c
}

// WrapperMethod exposes target under a different visibility. module_function
// uses it for the public singleton copy.
type WrapperMethod struct {
	methodBase
	target Method
}

func (m *WrapperMethod) Invoke(t *Thread, self Value, name string, args []Value, blk *Proc) (Value, error) {
	return m.target.Invoke(t, self, name, args, blk)
}

func (m *WrapperMethod) Arity() Arity { return m.target.Arity() }

func (m *WrapperMethod) withVisibility(v Visibility) Method {
	c := *m
	c.visibility = v
	return &c
}

func (m *WrapperMethod) withOwner(o *Module) Method {
	c := *m
	c.owner = o
	return &c
}

// ---------------------------------------------------------------------------
// Undefined
// ---------------------------------------------------------------------------

type undefinedMethod struct{}

// Undefined is the one sentinel meaning "no method". Stored in a table it
// blocks lookup in ancestors; returned from a search it means not found.
var Undefined Method = &undefinedMethod{}

var errUndefinedInvoked = errors.New("vm: invoked the undefined method sentinel")

func (*undefinedMethod) Invoke(*Thread, Value, string, []Value, *Proc) (Value, error) {
	return nil, errUndefinedInvoked
}

func (*undefinedMethod) Visibility() Visibility             { return Public }
func (*undefinedMethod) Owner() *Module                     { return nil }
func (*undefinedMethod) Arity() Arity                       { return AnyArity }
func (*undefinedMethod) IsUndefined() bool                  { return true }
func (u *undefinedMethod) withVisibility(Visibility) Method { return u }
func (u *undefinedMethod) withOwner(*Module) Method         { return u }
