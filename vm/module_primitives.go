package vm

// ---------------------------------------------------------------------------
// Module primitives
// ---------------------------------------------------------------------------

func selfModule(t *Thread, self Value) (*Module, error) {
	m, ok := self.(*Module)
	if !ok {
		return nil, t.rt.NewTypeError("wrong argument type %s (expected Module)", RealClassOf(self).Name())
	}
	return m, nil
}

// moduleMethod adapts a native function whose receiver is a Module.
func moduleMethod(fn func(t *Thread, m *Module, args []Value, blk *Proc) (Value, error)) NativeFunc {
	return func(t *Thread, self Value, args []Value, blk *Proc) (Value, error) {
		m, err := selfModule(t, self)
		if err != nil {
			return nil, err
		}
		return fn(t, m, args, blk)
	}
}

func (rt *Runtime) registerModulePrimitives() {
	mod := rt.ModuleClass
	def := func(name string, arity Arity, fn func(t *Thread, m *Module, args []Value, blk *Proc) (Value, error)) {
		mod.AddMethodN(name, arity, moduleMethod(fn))
	}
	defPrivate := func(name string, arity Arity, fn func(t *Thread, m *Module, args []Value, blk *Proc) (Value, error)) {
		mod.AddPrivateMethod(name, arity, moduleMethod(fn))
	}
	noop := func(t *Thread, _ *Module, _ []Value, _ *Proc) (Value, error) { return t.rt.Nil(), nil }

	defPrivate("initialize", AnyArity, func(t *Thread, m *Module, _ []Value, blk *Proc) (Value, error) {
		if blk != nil {
			return t.moduleEval(m, blk)
		}
		return t.rt.Nil(), nil
	})

	// Naming
	def("name", FixedArity(0), func(t *Thread, m *Module, _ []Value, _ *Proc) (Value, error) {
		if m.IsAnonymous() {
			return t.rt.Nil(), nil
		}
		return t.rt.String(m.Name()), nil
	})
	toS := func(t *Thread, m *Module, _ []Value, _ *Proc) (Value, error) {
		return t.rt.String(m.Name()), nil
	}
	def("to_s", FixedArity(0), toS)
	def("inspect", FixedArity(0), toS)

	// Ancestry
	def("ancestors", FixedArity(0), func(t *Thread, m *Module, _ []Value, _ *Proc) (Value, error) {
		return t.rt.moduleArray(m.Ancestors()), nil
	})
	def("included_modules", FixedArity(0), func(t *Thread, m *Module, _ []Value, _ *Proc) (Value, error) {
		return t.rt.moduleArray(m.IncludedModules()), nil
	})
	def("include?", FixedArity(1), func(t *Thread, m *Module, args []Value, _ *Proc) (Value, error) {
		other, err := t.rt.moduleArg(args[0])
		if err != nil {
			return nil, err
		}
		return t.rt.Bool(m.IncludesModule(other)), nil
	})
	defPrivate("include", OptionalArity(1), func(t *Thread, m *Module, args []Value, _ *Proc) (Value, error) {
		for _, a := range args {
			if other, err := t.rt.moduleArg(a); err != nil || other.kind != KindModule {
				return nil, t.rt.NewTypeError("wrong argument type %s (expected Module)", RealClassOf(a).Name())
			}
		}
		for i := len(args) - 1; i >= 0; i-- {
			if _, err := t.CallFunctional(args[i], "append_features", m); err != nil {
				return nil, err
			}
			if _, err := t.CallFunctional(args[i], "included", m); err != nil {
				return nil, err
			}
		}
		return m, nil
	})
	defPrivate("append_features", FixedArity(1), func(t *Thread, m *Module, args []Value, _ *Proc) (Value, error) {
		target, err := t.rt.moduleArg(args[0])
		if err != nil {
			return nil, err
		}
		return m, target.includeModule(t, m, false)
	})
	defPrivate("extend_object", FixedArity(1), func(t *Thread, m *Module, args []Value, _ *Proc) (Value, error) {
		return args[0], m.ExtendObject(args[0])
	})
	defPrivate("included", FixedArity(1), noop)
	defPrivate("extended", FixedArity(1), noop)
	defPrivate("method_added", FixedArity(1), noop)

	// Comparison
	compare := func(op string) func(t *Thread, m *Module, args []Value, _ *Proc) (Value, error) {
		return func(t *Thread, m *Module, args []Value, _ *Proc) (Value, error) {
			other, ok := args[0].(*Module)
			if !ok {
				return nil, t.rt.NewTypeError("compared with non class/module")
			}
			c, related := m.Compare(other)
			if !related {
				return t.rt.Nil(), nil
			}
			switch op {
			case "<":
				return t.rt.Bool(c < 0), nil
			case "<=":
				return t.rt.Bool(c <= 0), nil
			case ">":
				return t.rt.Bool(c > 0), nil
			default:
				return t.rt.Bool(c >= 0), nil
			}
		}
	}
	def("<", FixedArity(1), compare("<"))
	def("<=", FixedArity(1), compare("<="))
	def(">", FixedArity(1), compare(">"))
	def(">=", FixedArity(1), compare(">="))
	def("<=>", FixedArity(1), func(t *Thread, m *Module, args []Value, _ *Proc) (Value, error) {
		other, ok := args[0].(*Module)
		if !ok {
			return t.rt.Nil(), nil
		}
		c, related := m.Compare(other)
		if !related {
			return t.rt.Nil(), nil
		}
		return t.rt.Int(int64(c)), nil
	})
	def("===", FixedArity(1), func(t *Thread, m *Module, args []Value, _ *Proc) (Value, error) {
		return t.rt.Bool(t.rt.KindOf(args[0], m)), nil
	})

	// Method tables
	listing := func(filter func(Visibility) bool) func(t *Thread, m *Module, args []Value, _ *Proc) (Value, error) {
		return func(t *Thread, m *Module, args []Value, _ *Proc) (Value, error) {
			return t.rt.symbolArray(m.InstanceMethodNames(filter, optionalBool(args, 0, true))), nil
		}
	}
	def("instance_methods", Arity{Min: 0, Max: 1}, listing(func(v Visibility) bool { return v == Public || v == Protected }))
	def("public_instance_methods", Arity{Min: 0, Max: 1}, listing(func(v Visibility) bool { return v == Public }))
	def("protected_instance_methods", Arity{Min: 0, Max: 1}, listing(func(v Visibility) bool { return v == Protected }))
	def("private_instance_methods", Arity{Min: 0, Max: 1}, listing(Visibility.IsPrivate))

	defined := func(filter func(Visibility) bool) func(t *Thread, m *Module, args []Value, _ *Proc) (Value, error) {
		return func(t *Thread, m *Module, args []Value, _ *Proc) (Value, error) {
			name, err := t.rt.nameArg(args[0])
			if err != nil {
				return nil, err
			}
			e := m.SearchMethod(name)
			return t.rt.Bool(!e.IsUndefined() && filter(e.Method.Visibility())), nil
		}
	}
	def("method_defined?", FixedArity(1), defined(func(v Visibility) bool { return v == Public || v == Protected }))
	def("public_method_defined?", FixedArity(1), defined(func(v Visibility) bool { return v == Public }))
	def("protected_method_defined?", FixedArity(1), defined(func(v Visibility) bool { return v == Protected }))
	def("private_method_defined?", FixedArity(1), defined(Visibility.IsPrivate))
	def("instance_method", FixedArity(1), func(t *Thread, m *Module, args []Value, _ *Proc) (Value, error) {
		name, err := t.rt.nameArg(args[0])
		if err != nil {
			return nil, err
		}
		um, err := t.rt.InstanceMethod(m, name)
		if err != nil {
			return nil, err
		}
		return um, nil
	})

	// Visibility
	setVis := func(vis Visibility) func(t *Thread, m *Module, args []Value, _ *Proc) (Value, error) {
		return func(t *Thread, m *Module, args []Value, _ *Proc) (Value, error) {
			if len(args) == 0 {
				t.CallerFrame().Visibility = vis
				return m, nil
			}
			names, err := t.rt.nameArgs(args)
			if err != nil {
				return nil, err
			}
			return m, m.SetVisibility(vis, names...)
		}
	}
	defPrivate("public", AnyArity, setVis(Public))
	defPrivate("protected", AnyArity, setVis(Protected))
	defPrivate("private", AnyArity, setVis(Private))
	defPrivate("module_function", AnyArity, func(t *Thread, m *Module, args []Value, _ *Proc) (Value, error) {
		if m.kind != KindModule {
			return nil, t.rt.NewTypeError("module_function must be called for modules")
		}
		if len(args) == 0 {
			t.CallerFrame().Visibility = ModuleFunction
			return m, nil
		}
		names, err := t.rt.nameArgs(args)
		if err != nil {
			return nil, err
		}
		return m, m.ModuleFunction(names...)
	})
	classVis := func(vis Visibility) func(t *Thread, m *Module, args []Value, _ *Proc) (Value, error) {
		return func(t *Thread, m *Module, args []Value, _ *Proc) (Value, error) {
			names, err := t.rt.nameArgs(args)
			if err != nil {
				return nil, err
			}
			single, err := t.rt.SingletonClass(m)
			if err != nil {
				return nil, err
			}
			return m, single.SetVisibility(vis, names...)
		}
	}
	def("public_class_method", AnyArity, classVis(Public))
	def("private_class_method", AnyArity, classVis(Private))

	// Definition
	defPrivate("alias_method", FixedArity(2), func(t *Thread, m *Module, args []Value, _ *Proc) (Value, error) {
		newName, err := t.rt.nameArg(args[0])
		if err != nil {
			return nil, err
		}
		oldName, err := t.rt.nameArg(args[1])
		if err != nil {
			return nil, err
		}
		if err := m.DefineAlias(newName, oldName); err != nil {
			return nil, err
		}
		return m, m.methodAdded(t, newName)
	})
	defPrivate("undef_method", AnyArity, func(t *Thread, m *Module, args []Value, _ *Proc) (Value, error) {
		names, err := t.rt.nameArgs(args)
		if err != nil {
			return nil, err
		}
		for _, name := range names {
			if err := m.Undef(name); err != nil {
				return nil, err
			}
		}
		return m, nil
	})
	defPrivate("remove_method", AnyArity, func(t *Thread, m *Module, args []Value, _ *Proc) (Value, error) {
		names, err := t.rt.nameArgs(args)
		if err != nil {
			return nil, err
		}
		for _, name := range names {
			if err := m.RemoveMethod(name); err != nil {
				return nil, err
			}
		}
		return m, nil
	})
	defPrivate("define_method", Arity{Min: 1, Max: 2}, func(t *Thread, m *Module, args []Value, blk *Proc) (Value, error) {
		name, err := t.rt.nameArg(args[0])
		if err != nil {
			return nil, err
		}
		body := blk
		if len(args) == 2 {
			p, ok := args[1].(*Proc)
			if !ok {
				return nil, t.rt.NewTypeError("wrong argument type %s (expected Proc)", RealClassOf(args[1]).Name())
			}
			body = p
		}
		if body == nil {
			return nil, t.rt.NewArgumentError("tried to create Proc object without a block")
		}
		vis := t.CallerFrame().Visibility
		if vis == ModuleFunction {
			vis = Private
		}
		meth := &ProcMethod{methodBase: methodBase{visibility: vis}, proc: body}
		if err := m.DefineMethod(name, meth); err != nil {
			return nil, err
		}
		if err := m.methodAdded(t, name); err != nil {
			return nil, err
		}
		return body, nil
	})

	// Attributes
	attr := func(reader, writer bool) func(t *Thread, m *Module, args []Value, _ *Proc) (Value, error) {
		return func(t *Thread, m *Module, args []Value, _ *Proc) (Value, error) {
			names, err := t.rt.nameArgs(args)
			if err != nil {
				return nil, err
			}
			for _, name := range names {
				if err := m.DefineAttr(t, name, reader, writer); err != nil {
					return nil, err
				}
			}
			return t.rt.Nil(), nil
		}
	}
	defPrivate("attr_reader", AnyArity, attr(true, false))
	defPrivate("attr_writer", AnyArity, attr(false, true))
	defPrivate("attr_accessor", AnyArity, attr(true, true))
	defPrivate("attr", Arity{Min: 1, Max: 2}, func(t *Thread, m *Module, args []Value, _ *Proc) (Value, error) {
		name, err := t.rt.nameArg(args[0])
		if err != nil {
			return nil, err
		}
		return t.rt.Nil(), m.DefineAttr(t, name, true, optionalBool(args, 1, false))
	})

	// Constants
	def("const_get", FixedArity(1), func(t *Thread, m *Module, args []Value, _ *Proc) (Value, error) {
		name, err := t.rt.nameArg(args[0])
		if err != nil {
			return nil, err
		}
		return m.ConstGet(t, name)
	})
	def("const_set", FixedArity(2), func(t *Thread, m *Module, args []Value, _ *Proc) (Value, error) {
		name, err := t.rt.nameArg(args[0])
		if err != nil {
			return nil, err
		}
		return m.ConstSet(name, args[1])
	})
	def("const_defined?", FixedArity(1), func(t *Thread, m *Module, args []Value, _ *Proc) (Value, error) {
		name, err := t.rt.nameArg(args[0])
		if err != nil {
			return nil, err
		}
		if !IsConstantName(name) {
			return nil, t.rt.NewNameError("wrong constant name %s", name)
		}
		return t.rt.Bool(m.ConstDefined(name)), nil
	})
	def("constants", FixedArity(0), func(t *Thread, m *Module, _ []Value, _ *Proc) (Value, error) {
		return t.rt.symbolArray(m.Constants()), nil
	})
	defPrivate("remove_const", FixedArity(1), func(t *Thread, m *Module, args []Value, _ *Proc) (Value, error) {
		name, err := t.rt.nameArg(args[0])
		if err != nil {
			return nil, err
		}
		return m.RemoveConst(name)
	})
	def("const_missing", FixedArity(1), func(t *Thread, m *Module, args []Value, _ *Proc) (Value, error) {
		name, err := t.rt.nameArg(args[0])
		if err != nil {
			return nil, err
		}
		return nil, m.uninitializedConstant(name)
	})

	// Class variables
	def("class_variable_get", FixedArity(1), func(t *Thread, m *Module, args []Value, _ *Proc) (Value, error) {
		name, err := t.rt.cvarNameArg(args[0])
		if err != nil {
			return nil, err
		}
		return m.ClassVarGet(name)
	})
	def("class_variable_set", FixedArity(2), func(t *Thread, m *Module, args []Value, _ *Proc) (Value, error) {
		name, err := t.rt.cvarNameArg(args[0])
		if err != nil {
			return nil, err
		}
		return m.ClassVarSet(name, args[1])
	})
	def("class_variable_defined?", FixedArity(1), func(t *Thread, m *Module, args []Value, _ *Proc) (Value, error) {
		name, err := t.rt.cvarNameArg(args[0])
		if err != nil {
			return nil, err
		}
		return t.rt.Bool(m.ClassVarDefined(name)), nil
	})
	def("class_variables", FixedArity(0), func(t *Thread, m *Module, _ []Value, _ *Proc) (Value, error) {
		return t.rt.symbolArray(m.ClassVars()), nil
	})
	defPrivate("remove_class_variable", FixedArity(1), func(t *Thread, m *Module, args []Value, _ *Proc) (Value, error) {
		name, err := t.rt.cvarNameArg(args[0])
		if err != nil {
			return nil, err
		}
		return m.RemoveClassVar(name)
	})

	// Evaluation
	eval := func(t *Thread, m *Module, _ []Value, blk *Proc) (Value, error) {
		if blk == nil {
			return nil, t.rt.NewArgumentError("block not supplied")
		}
		return t.moduleEval(m, blk)
	}
	def("module_eval", AnyArity, eval)
	def("class_eval", AnyArity, eval)
}

// ---------------------------------------------------------------------------
// Class primitives
// ---------------------------------------------------------------------------

func (rt *Runtime) registerClassPrimitives() {
	cls := rt.ClassClass
	def := func(name string, arity Arity, fn func(t *Thread, m *Module, args []Value, blk *Proc) (Value, error)) {
		cls.AddMethodN(name, arity, moduleMethod(fn))
	}

	def("allocate", FixedArity(0), func(t *Thread, c *Module, _ []Value, _ *Proc) (Value, error) {
		return c.Allocate()
	})
	def("new", AnyArity, func(t *Thread, c *Module, args []Value, blk *Proc) (Value, error) {
		return t.NewInstance(c, args, blk)
	})
	def("superclass", FixedArity(0), func(t *Thread, c *Module, _ []Value, _ *Proc) (Value, error) {
		if s := c.Superclass(); s != nil {
			return s, nil
		}
		return t.rt.Nil(), nil
	})
	cls.AddPrivateMethod("initialize", Arity{Min: 0, Max: 1}, moduleMethod(func(t *Thread, c *Module, args []Value, blk *Proc) (Value, error) {
		super := t.rt.ObjectClass
		if len(args) == 1 {
			s, ok := args[0].(*Module)
			if !ok || !s.IsClass() {
				return nil, t.rt.NewTypeError("superclass must be a Class (%s given)", RealClassOf(args[0]).Name())
			}
			super = s
		}
		if super.kind == KindSingleton {
			return nil, t.rt.NewTypeError("can't make subclass of singleton class")
		}
		if super == t.rt.ClassClass {
			return nil, t.rt.NewTypeError("can't make subclass of Class")
		}
		c.super.Store(super)
		if super.IsTainted() {
			c.SetFlag(FlagTainted)
		}
		if err := t.rt.callHook(t, super, "inherited", c); err != nil {
			return nil, err
		}
		if blk != nil {
			return t.moduleEval(c, blk)
		}
		return t.rt.Nil(), nil
	}))
	cls.AddPrivateMethod("inherited", FixedArity(1), func(t *Thread, _ Value, _ []Value, _ *Proc) (Value, error) {
		return t.rt.Nil(), nil
	})

	// Classes cannot be mixed in.
	for _, name := range []string{"module_function", "append_features", "extend_object"} {
		if err := cls.UndefineMethod(name); err != nil {
			panic(err)
		}
	}
}

// NewInstance allocates an instance of c and runs initialize on it.
func (t *Thread) NewInstance(c *Module, args []Value, blk *Proc) (Value, error) {
	obj, err := c.Allocate()
	if err != nil {
		return nil, err
	}
	if _, err := t.Dispatch(obj, "initialize", args, blk, CallFunctional); err != nil {
		return nil, err
	}
	return obj, nil
}

// moduleEval runs blk as a class body of m.
func (t *Thread) moduleEval(m *Module, blk *Proc) (Value, error) {
	return t.ExecuteUnder(m, func(t *Thread) (Value, error) {
		return blk.callAs(t, m, []Value{m}, nil)
	})
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func (rt *Runtime) nameArgs(args []Value) ([]string, error) {
	names := make([]string, len(args))
	for i, a := range args {
		n, err := rt.nameArg(a)
		if err != nil {
			return nil, err
		}
		names[i] = n
	}
	return names, nil
}

func (rt *Runtime) cvarNameArg(v Value) (string, error) {
	name, err := rt.nameArg(v)
	if err != nil {
		return "", err
	}
	if !isClassVariableName(name) {
		return "", rt.NewNameError("`%s' is not allowed as a class variable name", name)
	}
	return name, nil
}

// ModuleFunction makes each named method private on the instance side and
// gives the singleton class a public copy.
func (m *Module) ModuleFunction(names ...string) error {
	if err := m.SetVisibility(Private, names...); err != nil {
		return err
	}
	single, err := m.rt.SingletonClass(m)
	if err != nil {
		return err
	}
	for _, name := range names {
		e := m.SearchMethod(name)
		if e.IsUndefined() {
			return m.rt.NewNameError("undefined method `%s' for module `%s'", name, m.Name())
		}
		target := e.Method
		if _, ok := target.(*SuperMethod); ok {
			if above := e.Origin.super.Load(); above != nil {
				target = above.SearchMethod(name).Method
			}
		}
		if err := single.DefineMethod(name, &WrapperMethod{methodBase: methodBase{visibility: Public}, target: target}); err != nil {
			return err
		}
	}
	return nil
}

// DefineAttr defines a reader "name" and/or writer "name=" for @name, using
// the caller frame's default visibility.
func (m *Module) DefineAttr(t *Thread, name string, reader, writer bool) error {
	rt := m.rt
	if !IsConstantName(name) && !isLocalName(name) {
		return rt.NewNameError("invalid attribute name `%s'", name)
	}
	ivar := rt.Intern("@" + name)
	vis := Public
	if t != nil {
		vis = t.CallerFrame().Visibility
		if vis == ModuleFunction {
			vis = Private
		}
	}
	if reader {
		get := NewMethod0(func(t *Thread, self Value) (Value, error) {
			if v, ok := t.rt.InstanceVariable(self, ivar); ok {
				return v, nil
			}
			return t.rt.Nil(), nil
		})
		if err := m.DefineMethod(name, get.withVisibility(vis)); err != nil {
			return err
		}
		if err := m.methodAdded(t, name); err != nil {
			return err
		}
	}
	if writer {
		set := NewMethod1(func(t *Thread, self, v Value) (Value, error) {
			return t.rt.SetInstanceVariable(self, ivar, v)
		})
		if err := m.DefineMethod(name+"=", set.withVisibility(vis)); err != nil {
			return err
		}
		if err := m.methodAdded(t, name+"="); err != nil {
			return err
		}
	}
	return nil
}

func isLocalName(name string) bool {
	if name == "" {
		return false
	}
	c := name[0]
	if c != '_' && (c < 'a' || c > 'z') {
		return false
	}
	return isIdentifierTail(name[1:])
}
