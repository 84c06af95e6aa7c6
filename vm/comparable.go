package vm

// ---------------------------------------------------------------------------
// Comparable
// ---------------------------------------------------------------------------

// compareValues calls a <=> b and returns its sign. A nil or non-integer
// answer is an ArgumentError naming both classes.
func (t *Thread) compareValues(a, b Value) (int, error) {
	res, err := t.Call(a, "<=>", b)
	if err != nil {
		return 0, err
	}
	if i, ok := res.(*Integer); ok {
		return i.Sign(), nil
	}
	return 0, t.rt.NewArgumentError("comparison of %s with %s failed",
		RealClassOf(a).Name(), t.rt.describeArg(t, b))
}

// describeArg names b the way comparison failures do: its inspect form for
// immediates and nil, its class otherwise.
func (rt *Runtime) describeArg(t *Thread, b Value) string {
	switch b.(type) {
	case *Integer, *Float:
		return rt.Inspect(t, b)
	}
	if IsNil(b) || b == Value(rt.trueValue) || b == Value(rt.falseValue) {
		return rt.Inspect(t, b)
	}
	return RealClassOf(b).Name()
}

func (rt *Runtime) createComparableModule() {
	c := rt.defineBootModule("Comparable")
	rt.ComparableModule = c

	c.AddMethod1("==", func(t *Thread, self, other Value) (Value, error) {
		if Identical(self, other) {
			return t.rt.True(), nil
		}
		res, err := t.Call(self, "<=>", other)
		if err != nil {
			return t.rt.False(), nil
		}
		i, ok := res.(*Integer)
		return t.rt.Bool(ok && i.Sign() == 0), nil
	})

	rel := func(test func(int) bool) Method1Func {
		return func(t *Thread, self, other Value) (Value, error) {
			c, err := t.compareValues(self, other)
			if err != nil {
				return nil, err
			}
			return t.rt.Bool(test(c)), nil
		}
	}
	c.AddMethod1(">", rel(func(c int) bool { return c > 0 }))
	c.AddMethod1(">=", rel(func(c int) bool { return c >= 0 }))
	c.AddMethod1("<", rel(func(c int) bool { return c < 0 }))
	c.AddMethod1("<=", rel(func(c int) bool { return c <= 0 }))

	c.AddMethod2("between?", func(t *Thread, self, min, max Value) (Value, error) {
		lo, err := t.compareValues(self, min)
		if err != nil {
			return nil, err
		}
		if lo < 0 {
			return t.rt.False(), nil
		}
		hi, err := t.compareValues(self, max)
		if err != nil {
			return nil, err
		}
		return t.rt.Bool(hi <= 0), nil
	})
}
