package vm

import (
	"sync/atomic"
)

// Object is the header shared by every runtime value.
//
// The class pointer is swapped atomically when a singleton class is created.
// Flags are a single atomic word; frozen is monotonic. Instance variables and
// internal variables live in the embedded VarTable, whose reads never block.
type Object struct {
	class atomic.Pointer[Module]
	flags atomic.Uint32
	vars  VarTable
	id    atomic.Uint64
}

func (o *Object) header() *Object { return o }

func (o *Object) init(cls *Module) {
	o.class.Store(cls)
}

// Class returns the object's class pointer, which may be a singleton class.
func (o *Object) Class() *Module {
	return o.class.Load()
}

// Flags returns a snapshot of the flag word.
func (o *Object) Flags() Flags {
	return Flags(o.flags.Load())
}

// HasFlag reports whether every bit in f is set.
func (o *Object) HasFlag(f Flags) bool {
	return Flags(o.flags.Load())&f == f
}

// SetFlag sets the bits in f.
func (o *Object) SetFlag(f Flags) {
	for {
		old := o.flags.Load()
		if o.flags.CompareAndSwap(old, old|uint32(f)) {
			return
		}
	}
}

// ClearFlag clears the bits in f. FlagFrozen is never cleared.
func (o *Object) ClearFlag(f Flags) {
	f &^= FlagFrozen
	for {
		old := o.flags.Load()
		if o.flags.CompareAndSwap(old, old&^uint32(f)) {
			return
		}
	}
}

func (o *Object) IsFrozen() bool  { return o.HasFlag(FlagFrozen) }
func (o *Object) IsTainted() bool { return o.HasFlag(FlagTainted) }

// Vars returns the object's variable table.
func (o *Object) Vars() *VarTable {
	return &o.vars
}

// ---------------------------------------------------------------------------
// Runtime-level object helpers
// ---------------------------------------------------------------------------

// NewObject allocates a plain object of class cls.
func (rt *Runtime) NewObject(cls *Module) *Object {
	o := &Object{}
	o.init(cls)
	return o
}

// ObjectID returns v's object id, assigning one on first use.
func (rt *Runtime) ObjectID(v Value) uint64 {
	switch x := v.(type) {
	case *Integer:
		if x.big == nil {
			return uint64(x.small)*2 + 1
		}
	}
	o := v.header()
	if id := o.id.Load(); id != 0 {
		return id
	}
	id := rt.nextID.Add(1) * 8
	if o.id.CompareAndSwap(0, id) {
		return id
	}
	return o.id.Load()
}

// CheckFrozen returns a FrozenError when v is frozen.
func (rt *Runtime) CheckFrozen(v Value, what string) error {
	if v.header().IsFrozen() {
		return rt.NewFrozenError(what)
	}
	return nil
}

// InstanceVariable returns the value of an instance or internal variable.
func (rt *Runtime) InstanceVariable(v Value, name string) (Value, bool) {
	return v.header().vars.Get(name)
}

// SetInstanceVariable stores an instance variable on v. Frozen receivers
// raise FrozenError; untainted receivers raise SecurityError at safe level 4.
func (rt *Runtime) SetInstanceVariable(v Value, name string, val Value) (Value, error) {
	o := v.header()
	if rt.SafeLevel() >= 4 && !o.IsTainted() {
		return nil, rt.NewSecurityError("Insecure: can't modify instance variable")
	}
	if o.IsFrozen() {
		return nil, rt.NewFrozenError(describeFrozen(v))
	}
	return o.vars.Put(rt.Intern(name), val), nil
}

// InstanceVariableNames lists the @-prefixed variables of v in table order.
// Internal variables are never surfaced.
func (rt *Runtime) InstanceVariableNames(v Value) []string {
	var names []string
	for _, e := range v.header().vars.Entries() {
		if isInstanceVariableName(e.Name) {
			names = append(names, e.Name)
		}
	}
	return names
}

func describeFrozen(v Value) string {
	switch m := v.(type) {
	case *Module:
		if m.IsClass() {
			return "class"
		}
		return "module"
	case *String:
		return "string"
	case *Array:
		return "array"
	}
	return "object"
}
