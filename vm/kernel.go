package vm

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Argument conversion
// ---------------------------------------------------------------------------

// nameArg accepts a Symbol or String naming a method, constant or variable.
func (rt *Runtime) nameArg(v Value) (string, error) {
	switch x := v.(type) {
	case *Symbol:
		return x.name, nil
	case *String:
		return rt.Intern(x.GoString()), nil
	}
	return "", rt.NewTypeError("%s is not a symbol", rt.describe(v))
}

// stringArg accepts a String or anything answering to_str.
func (rt *Runtime) stringArg(t *Thread, v Value) (string, error) {
	if s, ok := v.(*String); ok {
		return s.GoString(), nil
	}
	if ClassOf(v).IsMethodBound("to_str", true) {
		res, err := t.Call(v, "to_str")
		if err != nil {
			return "", err
		}
		if s, ok := res.(*String); ok {
			return s.GoString(), nil
		}
	}
	return "", rt.NewTypeError("can't convert %s into String", RealClassOf(v).Name())
}

// moduleArg accepts a module or class.
func (rt *Runtime) moduleArg(v Value) (*Module, error) {
	if m, ok := v.(*Module); ok && m.kind != KindIncluded {
		return m, nil
	}
	return nil, rt.NewTypeError("wrong argument type %s (expected Module)", RealClassOf(v).Name())
}

func (rt *Runtime) symbolArray(names []string) *Array {
	vals := make([]Value, len(names))
	for i, n := range names {
		vals[i] = rt.Symbol(n)
	}
	return rt.NewArray(vals...)
}

func (rt *Runtime) moduleArray(mods []*Module) *Array {
	vals := make([]Value, len(mods))
	for i, m := range mods {
		vals[i] = m
	}
	return rt.NewArray(vals...)
}

func optionalBool(args []Value, i int, def bool) bool {
	if i < len(args) {
		return Truthy(args[i])
	}
	return def
}

// ---------------------------------------------------------------------------
// BasicObject and Object
// ---------------------------------------------------------------------------

func (rt *Runtime) registerObjectPrimitives() {
	b := rt.BasicObjectClass

	b.AddPrivateMethod("initialize", AnyArity, func(t *Thread, _ Value, _ []Value, _ *Proc) (Value, error) {
		return t.rt.Nil(), nil
	})
	b.AddPrivateMethod("singleton_method_added", FixedArity(1), func(t *Thread, _ Value, _ []Value, _ *Proc) (Value, error) {
		return t.rt.Nil(), nil
	})
	b.AddMethod1("equal?", func(t *Thread, self, other Value) (Value, error) {
		return t.rt.Bool(Identical(self, other)), nil
	})
	b.AddMethod1("==", func(t *Thread, self, other Value) (Value, error) {
		return t.rt.Bool(Identical(self, other)), nil
	})
	b.AddMethod0("!", func(t *Thread, self Value) (Value, error) {
		return t.rt.Bool(!Truthy(self)), nil
	})
	b.AddMethodN("__send__", OptionalArity(1), kernelSend)
	b.AddMethod0("__id__", func(t *Thread, self Value) (Value, error) {
		return t.rt.Int(int64(t.rt.ObjectID(self))), nil
	})
	b.AddMethodN("instance_eval", AnyArity, func(t *Thread, self Value, _ []Value, blk *Proc) (Value, error) {
		if blk == nil {
			return nil, t.rt.NewArgumentError("block not supplied")
		}
		return blk.callAs(t, self, []Value{self}, nil)
	})
}

// ---------------------------------------------------------------------------
// Kernel
// ---------------------------------------------------------------------------

func (rt *Runtime) createKernelModule() {
	k := rt.defineBootModule("Kernel")
	rt.KernelModule = k
	if err := rt.ObjectClass.IncludeModule(nil, k); err != nil {
		panic(err)
	}

	k.AddMethod0("class", func(t *Thread, self Value) (Value, error) {
		return RealClassOf(self), nil
	})
	k.AddMethod0("singleton_class", func(t *Thread, self Value) (Value, error) {
		s, err := t.rt.SingletonClass(self)
		if err != nil {
			return nil, err
		}
		return s, nil
	})

	// Flags
	k.AddMethod0("freeze", func(t *Thread, self Value) (Value, error) {
		return t.rt.Freeze(self)
	})
	k.AddMethod0("frozen?", func(t *Thread, self Value) (Value, error) {
		return t.rt.Bool(self.header().IsFrozen()), nil
	})
	k.AddMethod0("taint", func(t *Thread, self Value) (Value, error) {
		return t.rt.Taint(self)
	})
	k.AddMethod0("untaint", func(t *Thread, self Value) (Value, error) {
		return t.rt.Untaint(self)
	})
	k.AddMethod0("tainted?", func(t *Thread, self Value) (Value, error) {
		return t.rt.Bool(self.header().IsTainted()), nil
	})

	// Identity and equality
	k.AddMethod1("eql?", func(t *Thread, self, other Value) (Value, error) {
		return t.rt.Bool(Identical(self, other)), nil
	})
	k.AddMethod1("===", func(t *Thread, self, other Value) (Value, error) {
		if Identical(self, other) {
			return t.rt.True(), nil
		}
		res, err := t.Call(self, "==", other)
		if err != nil {
			return nil, err
		}
		return t.rt.Bool(Truthy(res)), nil
	})
	k.AddMethod0("hash", func(t *Thread, self Value) (Value, error) {
		return t.rt.Int(int64(t.rt.ObjectID(self))), nil
	})
	k.AddMethod0("object_id", func(t *Thread, self Value) (Value, error) {
		return t.rt.Int(int64(t.rt.ObjectID(self))), nil
	})
	k.AddMethod0("nil?", func(t *Thread, self Value) (Value, error) {
		return t.rt.False(), nil
	})

	// Printing
	k.AddMethod0("to_s", func(t *Thread, self Value) (Value, error) {
		return t.rt.String(fmt.Sprintf("#<%s:0x%x>", RealClassOf(self).Name(), t.rt.ObjectID(self))), nil
	})
	k.AddMethod0("inspect", func(t *Thread, self Value) (Value, error) {
		return t.rt.inspectObject(t, self)
	})

	// Dispatch
	k.AddMethodN("send", OptionalArity(1), kernelSend)
	k.AddMethodN("respond_to?", Arity{Min: 1, Max: 2}, func(t *Thread, self Value, args []Value, _ *Proc) (Value, error) {
		name, err := t.rt.nameArg(args[0])
		if err != nil {
			return nil, err
		}
		e := t.rt.dispatchClass(self).SearchMethod(name)
		if e.IsUndefined() {
			return t.rt.False(), nil
		}
		return t.rt.Bool(optionalBool(args, 1, false) || !e.Method.Visibility().IsPrivate()), nil
	})
	k.AddPrivateMethod("method_missing", OptionalArity(1), func(t *Thread, self Value, args []Value, _ *Proc) (Value, error) {
		status := t.status
		t.status = callOK
		name, err := t.rt.nameArg(args[0])
		if err != nil {
			return nil, t.rt.NewArgumentError("no id given")
		}
		return nil, t.rt.noMethodError(t, self, name, status)
	})

	// Instance variables
	k.AddMethod1("instance_variable_get", func(t *Thread, self, nameV Value) (Value, error) {
		name, err := t.rt.ivarNameArg(nameV)
		if err != nil {
			return nil, err
		}
		if v, ok := t.rt.InstanceVariable(self, name); ok {
			return v, nil
		}
		return t.rt.Nil(), nil
	})
	k.AddMethod2("instance_variable_set", func(t *Thread, self, nameV, val Value) (Value, error) {
		name, err := t.rt.ivarNameArg(nameV)
		if err != nil {
			return nil, err
		}
		return t.rt.SetInstanceVariable(self, name, val)
	})
	k.AddMethod1("instance_variable_defined?", func(t *Thread, self, nameV Value) (Value, error) {
		name, err := t.rt.ivarNameArg(nameV)
		if err != nil {
			return nil, err
		}
		_, ok := t.rt.InstanceVariable(self, name)
		return t.rt.Bool(ok), nil
	})
	k.AddMethod0("instance_variables", func(t *Thread, self Value) (Value, error) {
		return t.rt.symbolArray(t.rt.InstanceVariableNames(self)), nil
	})
	k.AddPrivateMethod("remove_instance_variable", FixedArity(1), func(t *Thread, self Value, args []Value, _ *Proc) (Value, error) {
		name, err := t.rt.ivarNameArg(args[0])
		if err != nil {
			return nil, err
		}
		if err := t.rt.CheckFrozen(self, describeFrozen(self)); err != nil {
			return nil, err
		}
		if v, ok := self.header().vars.Remove(name); ok {
			return v, nil
		}
		return nil, t.rt.NewNameError("instance variable %s not defined", name)
	})

	// Type tests
	kindOf := func(t *Thread, self, modV Value) (Value, error) {
		mod, err := t.rt.moduleArg(modV)
		if err != nil {
			return nil, t.rt.NewTypeError("class or module required")
		}
		return t.rt.Bool(t.rt.KindOf(self, mod)), nil
	}
	k.AddMethod1("is_a?", kindOf)
	k.AddMethod1("kind_of?", kindOf)
	k.AddMethod1("instance_of?", func(t *Thread, self, modV Value) (Value, error) {
		mod, err := t.rt.moduleArg(modV)
		if err != nil {
			return nil, t.rt.NewTypeError("class or module required")
		}
		return t.rt.Bool(RealClassOf(self) == mod), nil
	})

	// Reflection
	k.AddMethod1("method", func(t *Thread, self, nameV Value) (Value, error) {
		name, err := t.rt.nameArg(nameV)
		if err != nil {
			return nil, err
		}
		m, err := t.rt.Method(self, name)
		if err != nil {
			return nil, err
		}
		return m, nil
	})
	k.AddMethodN("methods", Arity{Min: 0, Max: 1}, func(t *Thread, self Value, _ []Value, _ *Proc) (Value, error) {
		names := t.rt.dispatchClass(self).InstanceMethodNames(func(v Visibility) bool { return v == Public || v == Protected }, true)
		return t.rt.symbolArray(names), nil
	})
	k.AddMethodN("public_methods", Arity{Min: 0, Max: 1}, func(t *Thread, self Value, _ []Value, _ *Proc) (Value, error) {
		names := t.rt.dispatchClass(self).InstanceMethodNames(func(v Visibility) bool { return v == Public }, true)
		return t.rt.symbolArray(names), nil
	})
	k.AddMethodN("private_methods", Arity{Min: 0, Max: 1}, func(t *Thread, self Value, _ []Value, _ *Proc) (Value, error) {
		names := t.rt.dispatchClass(self).InstanceMethodNames(Visibility.IsPrivate, true)
		return t.rt.symbolArray(names), nil
	})
	k.AddMethodN("singleton_methods", Arity{Min: 0, Max: 1}, func(t *Thread, self Value, args []Value, _ *Proc) (Value, error) {
		return t.rt.symbolArray(t.rt.SingletonMethodNames(self, optionalBool(args, 0, true))), nil
	})
	k.AddMethodN("extend", OptionalArity(1), func(t *Thread, self Value, args []Value, _ *Proc) (Value, error) {
		for i := len(args) - 1; i >= 0; i-- {
			mod, err := t.rt.moduleArg(args[i])
			if err != nil {
				return nil, err
			}
			if mod.kind != KindModule {
				return nil, t.rt.NewTypeError("wrong argument type %s (expected Module)", RealClassOf(mod).Name())
			}
			if _, err := t.CallFunctional(mod, "extend_object", self); err != nil {
				return nil, err
			}
			if _, err := t.CallFunctional(mod, "extended", self); err != nil {
				return nil, err
			}
		}
		return self, nil
	})

	// Copying
	k.AddMethod0("dup", func(t *Thread, self Value) (Value, error) {
		return t.rt.copyObject(t, self, false)
	})
	k.AddMethod0("clone", func(t *Thread, self Value) (Value, error) {
		return t.rt.copyObject(t, self, true)
	})
	k.AddPrivateMethod("initialize_copy", FixedArity(1), func(t *Thread, self Value, args []Value, _ *Proc) (Value, error) {
		if Identical(self, args[0]) {
			return self, nil
		}
		if err := t.rt.CheckFrozen(self, describeFrozen(self)); err != nil {
			return nil, err
		}
		if RealClassOf(self) != RealClassOf(args[0]) {
			return nil, t.rt.NewTypeError("initialize_copy should take same class object")
		}
		return self, nil
	})

	// Control
	k.AddModuleFunction("raise", AnyArity, func(t *Thread, _ Value, args []Value, _ *Proc) (Value, error) {
		return nil, t.rt.raiseValue(t, args)
	})
	k.AddModuleFunction("block_given?", FixedArity(0), func(t *Thread, _ Value, _ []Value, _ *Proc) (Value, error) {
		return t.rt.Bool(t.CallerFrame().Block != nil), nil
	})
}

func kernelSend(t *Thread, self Value, args []Value, blk *Proc) (Value, error) {
	name, err := t.rt.nameArg(args[0])
	if err != nil {
		return nil, err
	}
	return t.Dispatch(self, name, args[1:], blk, CallSend)
}

func (rt *Runtime) ivarNameArg(v Value) (string, error) {
	name, err := rt.nameArg(v)
	if err != nil {
		return "", err
	}
	if !isInstanceVariableName(name) {
		return "", rt.NewNameError("`%s' is not allowed as an instance variable name", name)
	}
	return name, nil
}

// ---------------------------------------------------------------------------
// Flag operations
// ---------------------------------------------------------------------------

// Freeze freezes v and any singleton class it already has.
func (rt *Runtime) Freeze(v Value) (Value, error) {
	o := v.header()
	if rt.SafeLevel() >= 4 && !o.IsTainted() {
		return nil, rt.NewSecurityError("Insecure: can't freeze object")
	}
	o.SetFlag(FlagFrozen)
	if s := singletonIfAny(v); s != nil {
		s.SetFlag(FlagFrozen)
	}
	return v, nil
}

// Taint marks v tainted. Forbidden at safe level 4 and on frozen objects.
func (rt *Runtime) Taint(v Value) (Value, error) {
	if err := rt.Secure(4); err != nil {
		return nil, err
	}
	o := v.header()
	if !o.IsTainted() {
		if o.IsFrozen() {
			return nil, rt.NewFrozenError("object")
		}
		o.SetFlag(FlagTainted)
	}
	return v, nil
}

// Untaint clears the taint flag; requires safe level below 3.
func (rt *Runtime) Untaint(v Value) (Value, error) {
	if err := rt.Secure(3); err != nil {
		return nil, err
	}
	o := v.header()
	if o.IsTainted() {
		if o.IsFrozen() {
			return nil, rt.NewFrozenError("object")
		}
		o.ClearFlag(FlagTainted)
	}
	return v, nil
}

// ---------------------------------------------------------------------------
// Reflection helpers
// ---------------------------------------------------------------------------

// SingletonMethodNames lists the public and protected methods defined on v's
// singleton class and, when all is set, on modules v was extended with.
func (rt *Runtime) SingletonMethodNames(v Value, all bool) []string {
	seen := make(map[string]bool)
	var names []string
	p := singletonIfAny(v)
	for p != nil {
		snap := p.table.Snapshot()
		for _, name := range p.table.Names() {
			m := snap[name]
			if seen[name] || m.IsUndefined() || m.Visibility().IsPrivate() {
				continue
			}
			seen[name] = true
			names = append(names, name)
		}
		if !all {
			break
		}
		p = p.super.Load()
		if p == nil || p.kind != KindIncluded {
			break
		}
	}
	return names
}

// inspectObject is the default inspect: the to_s form when there are no
// instance variables, else "#<Foo:0x10 @a=1, @b=2>".
func (rt *Runtime) inspectObject(t *Thread, self Value) (Value, error) {
	names := rt.InstanceVariableNames(self)
	if len(names) == 0 {
		return t.Call(self, "to_s")
	}
	o := self.header()
	base := fmt.Sprintf("#<%s:0x%x", RealClassOf(self).Name(), rt.ObjectID(self))
	if t.inspecting(o) {
		return rt.String(base + " ...>"), nil
	}
	defer t.doneInspecting(o)

	parts := make([]string, 0, len(names))
	for _, n := range names {
		v, _ := o.vars.Get(n)
		parts = append(parts, n+"="+rt.Inspect(t, v))
	}
	return rt.String(base + " " + strings.Join(parts, ", ") + ">"), nil
}

// copyObject implements dup and clone. clone also copies singleton methods
// and the frozen flag.
func (rt *Runtime) copyObject(t *Thread, v Value, clone bool) (Value, error) {
	switch x := v.(type) {
	case *Integer, *Float, *Symbol:
		return nil, rt.NewTypeError("can't %s %s", copyVerb(clone), RealClassOf(v).Name())
	case *Module:
		return rt.copyModule(x, clone)
	}
	if IsNil(v) || v == Value(rt.trueValue) || v == Value(rt.falseValue) {
		return nil, rt.NewTypeError("can't %s %s", copyVerb(clone), RealClassOf(v).Name())
	}
	cp, err := RealClassOf(v).Allocate()
	if err != nil {
		return nil, err
	}
	src := v.header()
	dst := cp.header()
	dst.vars.copyFrom(&src.vars)
	if src.IsTainted() {
		dst.SetFlag(FlagTainted)
	}
	if clone {
		if s := singletonIfAny(v); s != nil {
			cs, err := rt.SingletonClass(cp)
			if err != nil {
				return nil, err
			}
			for name, m := range s.table.Snapshot() {
				if err := cs.DefineMethod(name, m); err != nil {
					return nil, err
				}
			}
		}
	}
	if _, err := t.CallFunctional(cp, "initialize_copy", v); err != nil {
		return nil, err
	}
	if clone && src.IsFrozen() {
		dst.SetFlag(FlagFrozen)
	}
	return cp, nil
}

func copyVerb(clone bool) string {
	if clone {
		return "clone"
	}
	return "dup"
}

// copyModule copies a module or class: its methods, constants and class
// variables. The copy is anonymous.
func (rt *Runtime) copyModule(m *Module, clone bool) (Value, error) {
	if m.kind == KindSingleton {
		return nil, rt.NewTypeError("can't copy singleton class")
	}
	cp := rt.newModule(m.kind, "", nil)
	cp.super.Store(m.super.Load())
	cp.allocator = m.allocator
	cp.class.Store(RealClassOf(m))
	cp.vars.copyFrom(&m.vars)
	for name, meth := range m.table.Snapshot() {
		cp.table.put(name, meth.withOwner(cp))
	}
	if clone && m.IsFrozen() {
		cp.SetFlag(FlagFrozen)
	}
	return cp, nil
}
