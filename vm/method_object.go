package vm

// ---------------------------------------------------------------------------
// Method and UnboundMethod
// ---------------------------------------------------------------------------

// MethodObject is a search result captured as a value. A bound one (class
// Method) carries its receiver; an unbound one (class UnboundMethod) has
// none until bind supplies it.
//
// Calling it runs the captured method through call0 with the recorded
// origin, so super inside the body continues from where the method was
// found, and later redefinition of the name does not affect it.
type MethodObject struct {
	Object
	recv  Value
	name  string
	from  *Module
	entry MethodEntry
}

// Receiver returns the bound receiver, or nil when unbound.
func (m *MethodObject) Receiver() Value { return m.recv }

// Name returns the name the method was looked up by.
func (m *MethodObject) Name() string { return m.name }

// Entry returns the captured search result.
func (m *MethodObject) Entry() MethodEntry { return m.entry }

// Owner is the module whose table holds the method.
func (m *MethodObject) Owner() *Module {
	if o := m.entry.Method.Owner(); o != nil {
		return o
	}
	return m.entry.Origin.origin()
}

// Arity returns the accepted argument range.
func (m *MethodObject) Arity() Arity { return m.entry.Method.Arity() }

// IsBound reports whether the method has a receiver.
func (m *MethodObject) IsBound() bool { return m.recv != nil }

// Method returns a bound Method for name as recv would dispatch it.
// Visibility is not checked.
func (rt *Runtime) Method(recv Value, name string) (*MethodObject, error) {
	from := rt.dispatchClass(recv)
	e, err := rt.lookupForReflection(from, name)
	if err != nil {
		return nil, err
	}
	return rt.newMethodObject(rt.MethodClass, recv, name, from, e), nil
}

// InstanceMethod returns an UnboundMethod for name as instances of m would
// dispatch it.
func (rt *Runtime) InstanceMethod(m *Module, name string) (*MethodObject, error) {
	e, err := rt.lookupForReflection(m, name)
	if err != nil {
		return nil, err
	}
	return rt.newMethodObject(rt.UnboundMethodClass, nil, name, m, e), nil
}

func (rt *Runtime) lookupForReflection(from *Module, name string) (MethodEntry, error) {
	name = rt.Intern(name)
	e := from.SearchMethod(name)
	if e.IsUndefined() {
		what := "class"
		if from.kind == KindModule {
			what = "module"
		}
		return MethodEntry{}, rt.NewNameError("undefined method `%s' for %s `%s'", name, what, from.Name())
	}
	return e, nil
}

func (rt *Runtime) newMethodObject(cls *Module, recv Value, name string, from *Module, e MethodEntry) *MethodObject {
	m := &MethodObject{recv: recv, name: name, from: from, entry: e}
	m.init(cls)
	return m
}

// Call runs a bound method.
func (m *MethodObject) Call(t *Thread, args []Value, blk *Proc) (Value, error) {
	if m.recv == nil {
		return nil, t.rt.NewNoMethodError("undefined method `call' for %s", m.inspect())
	}
	meth, origin, name := m.entry.Method, m.entry.Origin, m.name
	if a, ok := meth.(*AliasMethod); ok {
		meth, origin, name = a.target, a.origin, a.originalName
	}
	return t.call0(origin, m.recv, name, args, blk, meth, false)
}

// Unbind drops the receiver.
func (m *MethodObject) Unbind(rt *Runtime) *MethodObject {
	return rt.newMethodObject(rt.UnboundMethodClass, nil, m.name, m.from, m.entry)
}

// Bind attaches recv. recv must be kind_of the owner unless the owner is a
// plain module; a singleton method only binds to its own object.
func (m *MethodObject) Bind(rt *Runtime, recv Value) (*MethodObject, error) {
	owner := m.Owner()
	switch {
	case owner.kind == KindModule:
	case owner.kind == KindSingleton:
		if !Identical(owner.attached, recv) {
			return nil, rt.NewTypeError("singleton method called for a different object")
		}
	case !rt.KindOf(recv, owner):
		return nil, rt.NewTypeError("bind argument must be an instance of %s", owner.Name())
	}
	return rt.newMethodObject(rt.MethodClass, recv, m.name, m.from, m.entry), nil
}

func (m *MethodObject) inspect() string {
	word := "UnboundMethod"
	if m.recv != nil {
		word = "Method"
	}
	owner := m.Owner()
	if owner.kind == KindSingleton {
		return "#<" + word + ": " + owner.rt.describe(owner.attached) + "." + m.name + ">"
	}
	where := m.from
	for where.kind == KindSingleton || where.kind == KindIncluded {
		where = where.super.Load()
	}
	desc := where.Name()
	if owner != where {
		desc += "(" + owner.Name() + ")"
	}
	return "#<" + word + ": " + desc + "#" + m.name + ">"
}

func (rt *Runtime) createMethodClasses() {
	mc := rt.defineBootClass("Method", rt.ObjectClass, NotAllocatable)
	um := rt.defineBootClass("UnboundMethod", rt.ObjectClass, NotAllocatable)
	rt.MethodClass, rt.UnboundMethodClass = mc, um

	for _, c := range []*Module{mc, um} {
		c.AddMethod0("arity", func(t *Thread, self Value) (Value, error) {
			return t.rt.Int(int64(self.(*MethodObject).Arity().Int())), nil
		})
		c.AddMethod0("owner", func(t *Thread, self Value) (Value, error) {
			return self.(*MethodObject).Owner(), nil
		})
		c.AddMethod0("name", func(t *Thread, self Value) (Value, error) {
			return t.rt.String(self.(*MethodObject).name), nil
		})
		inspect := func(t *Thread, self Value) (Value, error) {
			return t.rt.String(self.(*MethodObject).inspect()), nil
		}
		c.AddMethod0("inspect", inspect)
		c.AddMethod0("to_s", inspect)
		c.AddMethod1("==", func(t *Thread, self, other Value) (Value, error) {
			a := self.(*MethodObject)
			b, ok := other.(*MethodObject)
			if !ok || RealClassOf(a) != RealClassOf(b) {
				return t.rt.False(), nil
			}
			return t.rt.Bool(Identical(a.recv, b.recv) && a.entry.Method == b.entry.Method), nil
		})
	}

	call := func(t *Thread, self Value, args []Value, blk *Proc) (Value, error) {
		return self.(*MethodObject).Call(t, args, blk)
	}
	mc.AddMethodN("call", AnyArity, call)
	mc.AddMethodN("[]", AnyArity, call)
	mc.AddMethod0("receiver", func(t *Thread, self Value) (Value, error) {
		return self.(*MethodObject).recv, nil
	})
	mc.AddMethod0("unbind", func(t *Thread, self Value) (Value, error) {
		return self.(*MethodObject).Unbind(t.rt), nil
	})
	mc.AddMethod0("to_proc", func(t *Thread, self Value) (Value, error) {
		m := self.(*MethodObject)
		return t.rt.NewProc(m.recv, m.Arity(), func(t *Thread, _ Value, args []Value, blk *Proc) (Value, error) {
			return m.Call(t, args, blk)
		}), nil
	})

	um.AddMethod1("bind", func(t *Thread, self, recv Value) (Value, error) {
		bound, err := self.(*MethodObject).Bind(t.rt, recv)
		if err != nil {
			return nil, err
		}
		return bound, nil
	})
}
