package vm

// ---------------------------------------------------------------------------
// nil, true and false
// ---------------------------------------------------------------------------

func (rt *Runtime) createNilClass() {
	c := rt.defineBootClass("NilClass", rt.ObjectClass, NotAllocatable)
	rt.NilClass = c
	if err := rt.mustSingleton(c).UndefineMethod("new"); err != nil {
		panic(err)
	}

	rt.nilValue = rt.NewObject(c)
	rt.nilValue.SetFlag(FlagNil | FlagFalsy | FlagFrozen)

	c.AddMethod0("to_s", func(t *Thread, _ Value) (Value, error) { return t.rt.String(""), nil })
	c.AddMethod0("inspect", func(t *Thread, _ Value) (Value, error) { return t.rt.String("nil"), nil })
	c.AddMethod0("nil?", func(t *Thread, _ Value) (Value, error) { return t.rt.True(), nil })
	c.AddMethod0("to_a", func(t *Thread, _ Value) (Value, error) { return t.rt.NewArray(), nil })
	c.AddMethod0("to_i", func(t *Thread, _ Value) (Value, error) { return t.rt.Int(0), nil })
	c.AddMethod0("to_f", func(t *Thread, _ Value) (Value, error) { return t.rt.NewFloat(0), nil })
	c.AddMethod1("&", func(t *Thread, _, _ Value) (Value, error) { return t.rt.False(), nil })
	c.AddMethod1("|", func(t *Thread, _, other Value) (Value, error) { return t.rt.Bool(Truthy(other)), nil })
	c.AddMethod1("^", func(t *Thread, _, other Value) (Value, error) { return t.rt.Bool(Truthy(other)), nil })
}

func (rt *Runtime) createBooleanClasses() {
	tc := rt.defineBootClass("TrueClass", rt.ObjectClass, NotAllocatable)
	fc := rt.defineBootClass("FalseClass", rt.ObjectClass, NotAllocatable)
	rt.TrueClass, rt.FalseClass = tc, fc
	for _, c := range []*Module{tc, fc} {
		if err := rt.mustSingleton(c).UndefineMethod("new"); err != nil {
			panic(err)
		}
	}

	rt.trueValue = rt.NewObject(tc)
	rt.trueValue.SetFlag(FlagFrozen)
	rt.falseValue = rt.NewObject(fc)
	rt.falseValue.SetFlag(FlagFalsy | FlagFrozen)

	tc.AddMethod0("to_s", func(t *Thread, _ Value) (Value, error) { return t.rt.String("true"), nil })
	tc.AddMethod0("inspect", func(t *Thread, _ Value) (Value, error) { return t.rt.String("true"), nil })
	tc.AddMethod1("&", func(t *Thread, _, other Value) (Value, error) { return t.rt.Bool(Truthy(other)), nil })
	tc.AddMethod1("|", func(t *Thread, _, _ Value) (Value, error) { return t.rt.True(), nil })
	tc.AddMethod1("^", func(t *Thread, _, other Value) (Value, error) { return t.rt.Bool(!Truthy(other)), nil })

	fc.AddMethod0("to_s", func(t *Thread, _ Value) (Value, error) { return t.rt.String("false"), nil })
	fc.AddMethod0("inspect", func(t *Thread, _ Value) (Value, error) { return t.rt.String("false"), nil })
	fc.AddMethod1("&", func(t *Thread, _, _ Value) (Value, error) { return t.rt.False(), nil })
	fc.AddMethod1("|", func(t *Thread, _, other Value) (Value, error) { return t.rt.Bool(Truthy(other)), nil })
	fc.AddMethod1("^", func(t *Thread, _, other Value) (Value, error) { return t.rt.Bool(Truthy(other)), nil })
}
