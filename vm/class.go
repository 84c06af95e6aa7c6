package vm

// ---------------------------------------------------------------------------
// Allocation
// ---------------------------------------------------------------------------

// Allocator creates uninitialized instances of a class.
type Allocator interface {
	Allocate(rt *Runtime, cls *Module) (Value, error)
}

// AllocatorFunc adapts a function to Allocator.
type AllocatorFunc func(rt *Runtime, cls *Module) (Value, error)

func (f AllocatorFunc) Allocate(rt *Runtime, cls *Module) (Value, error) {
	return f(rt, cls)
}

// ObjectAllocator allocates plain objects.
var ObjectAllocator Allocator = AllocatorFunc(func(rt *Runtime, cls *Module) (Value, error) {
	return rt.NewObject(cls), nil
})

type notAllocatable struct{}

func (notAllocatable) Allocate(rt *Runtime, cls *Module) (Value, error) {
	return nil, rt.NewNotAllocatableError(cls)
}

// NotAllocatable marks classes whose instances only the runtime creates.
var NotAllocatable Allocator = notAllocatable{}

// Allocator returns the allocator m inherits.
func (m *Module) Allocator() Allocator {
	for p := m; p != nil; p = p.super.Load() {
		if p.allocator != nil {
			return p.allocator
		}
	}
	return ObjectAllocator
}

// Allocate creates an uninitialized instance of m.
func (m *Module) Allocate() (Value, error) {
	rt := m.rt
	switch m.kind {
	case KindSingleton:
		return nil, rt.NewTypeError("can't create instance of singleton class")
	case KindModule, KindIncluded:
		return nil, rt.NewTypeError("can't create instance of module %s", m.Name())
	}
	v, err := m.Allocator().Allocate(rt, m)
	if err != nil {
		return nil, err
	}
	if RealClassOf(v) != m {
		return nil, rt.NewTypeError("wrong instance allocation")
	}
	return v, nil
}

// ---------------------------------------------------------------------------
// Subclassing
// ---------------------------------------------------------------------------

// NewSubclass creates a class below m. The new class is not bound to a
// constant; a nil allocator inherits m's. Taint carries over from m.
func (m *Module) NewSubclass(name string, allocator Allocator, parent *Module) (*Module, error) {
	rt := m.rt
	switch {
	case m.kind == KindSingleton:
		return nil, rt.NewTypeError("can't make subclass of singleton class")
	case m.kind != KindClass:
		return nil, rt.NewTypeError("superclass must be a Class (%s given)", RealClassOf(m).Name())
	case m == rt.ClassClass:
		return nil, rt.NewTypeError("can't make subclass of Class")
	}
	c := rt.newModule(KindClass, name, parent)
	c.super.Store(m)
	c.allocator = allocator
	if m.IsTainted() {
		c.SetFlag(FlagTainted)
	}
	return c, nil
}

// NewClass creates an anonymous subclass of super (Object when nil) and runs
// the inherited hook.
func (rt *Runtime) NewClass(t *Thread, super *Module) (*Module, error) {
	if super == nil {
		super = rt.ObjectClass
	}
	c, err := super.NewSubclass("", nil, nil)
	if err != nil {
		return nil, err
	}
	if err := rt.callHook(t, super, "inherited", c); err != nil {
		return nil, err
	}
	return c, nil
}

// ---------------------------------------------------------------------------
// Singleton classes
// ---------------------------------------------------------------------------

// SingletonClass returns v's singleton class, creating it on first use.
//
// A fresh singleton class links to the object's previous class. For a class,
// it links to the superclass's singleton class instead (Class at the root),
// so class methods are inherited. nil, true and false use their own classes.
// Numbers and symbols cannot have one.
func (rt *Runtime) SingletonClass(v Value) (*Module, error) {
	switch v.(type) {
	case *Integer, *Float, *Symbol:
		return nil, rt.NewTypeError("can't define singleton")
	}
	o := v.header()
	if o.HasFlag(FlagNil) || o == rt.trueValue || o == rt.falseValue {
		return o.Class(), nil
	}
	for {
		cls := o.Class()
		if cls.kind == KindSingleton && cls.attached == v {
			return cls, nil
		}
		meta, err := rt.makeMetaclass(v, cls)
		if err != nil {
			return nil, err
		}
		if o.class.CompareAndSwap(cls, meta) {
			return meta, nil
		}
	}
}

func (rt *Runtime) mustSingleton(v Value) *Module {
	s, err := rt.SingletonClass(v)
	if err != nil {
		panic(err)
	}
	return s
}

func (rt *Runtime) makeMetaclass(v Value, prev *Module) (*Module, error) {
	super := prev
	if mod, ok := v.(*Module); ok && mod.IsClass() {
		if sc := mod.Superclass(); sc != nil {
			s, err := rt.SingletonClass(sc)
			if err != nil {
				return nil, err
			}
			super = s
		} else {
			super = rt.ClassClass
		}
	}
	meta := rt.newModule(KindSingleton, "", nil)
	meta.super.Store(super)
	meta.attached = v
	o := v.header()
	if o.IsFrozen() {
		meta.SetFlag(FlagFrozen)
	}
	if o.IsTainted() {
		meta.SetFlag(FlagTainted)
	}
	return meta, nil
}

// singletonIfAny returns v's singleton class without creating one.
func singletonIfAny(v Value) *Module {
	cls := v.header().Class()
	if cls != nil && cls.kind == KindSingleton && cls.attached == v {
		return cls
	}
	return nil
}

// HasSingletonMethods reports whether v has a singleton class defining
// methods of its own.
func HasSingletonMethods(v Value) bool {
	s := singletonIfAny(v)
	return s != nil && s.table.Len() > 0
}

// dispatchClass is where method search starts for v. Classes always search
// from their singleton class so inherited class methods are found.
func (rt *Runtime) dispatchClass(v Value) *Module {
	if mod, ok := v.(*Module); ok && mod.IsClass() {
		if s, err := rt.SingletonClass(mod); err == nil {
			return s
		}
	}
	return v.header().Class()
}

// KindOf reports whether v is an instance of mod or of a descendant.
func (rt *Runtime) KindOf(v Value, mod *Module) bool {
	return v.header().Class().IsKindOf(mod)
}

// ---------------------------------------------------------------------------
// Defining named classes and modules
// ---------------------------------------------------------------------------

// DefineClass returns the class name under namespace (Object when nil),
// creating it as a subclass of super when absent. Reopening with a different
// superclass, or naming a non-class constant, is a TypeError. t may be nil,
// which skips the inherited hook.
func (rt *Runtime) DefineClass(t *Thread, name string, super *Module, namespace *Module) (*Module, error) {
	if namespace == nil {
		namespace = rt.ObjectClass
	}
	if existing, ok := namespace.ConstGetAt(name); ok {
		cls, isMod := existing.(*Module)
		if !isMod || cls.kind != KindClass {
			return nil, rt.NewTypeError("%s is not a class", name)
		}
		if super != nil && cls.Superclass() != super {
			return nil, rt.NewTypeError("superclass mismatch for class %s", name)
		}
		return cls, nil
	}
	if super == nil {
		super = rt.ObjectClass
	}
	cls, err := super.NewSubclass(rt.Intern(name), nil, namespace)
	if err != nil {
		return nil, err
	}
	if _, err := namespace.ConstSet(name, cls); err != nil {
		return nil, err
	}
	if err := rt.callHook(t, super, "inherited", cls); err != nil {
		return nil, err
	}
	return cls, nil
}

// DefineModule returns the module name under namespace, creating it when
// absent. A non-module constant of that name is a TypeError.
func (rt *Runtime) DefineModule(name string, namespace *Module) (*Module, error) {
	if namespace == nil {
		namespace = rt.ObjectClass
	}
	if existing, ok := namespace.ConstGetAt(name); ok {
		mod, isMod := existing.(*Module)
		if !isMod || mod.kind != KindModule {
			return nil, rt.NewTypeError("%s is not a module", name)
		}
		return mod, nil
	}
	mod := rt.newModule(KindModule, rt.Intern(name), namespace)
	if _, err := namespace.ConstSet(name, mod); err != nil {
		return nil, err
	}
	return mod, nil
}

// ExecuteUnder runs fn in a fresh frame whose self and lexical module are
// mod and whose default visibility is public, as a class body does.
func (t *Thread) ExecuteUnder(mod *Module, fn func(t *Thread) (Value, error)) (Value, error) {
	caller := t.Frame()
	f := &Frame{
		Self:       mod,
		Args:       caller.Args,
		Name:       caller.Name,
		Class:      caller.Class,
		Block:      caller.Block,
		Lexical:    mod,
		Visibility: Public,
	}
	if err := t.push(f); err != nil {
		return nil, err
	}
	defer t.pop()
	return fn(t)
}
