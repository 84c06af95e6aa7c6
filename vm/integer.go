package vm

import (
	"math"
	"math/big"
	"strconv"
)

// ---------------------------------------------------------------------------
// Integer values
// ---------------------------------------------------------------------------

// Integer is an immutable integer. Values that fit in an int64 are Fixnums
// held in small; larger ones are Bignums held in big. Every arithmetic
// result is normalized so a Bignum never holds a value that fits.
type Integer struct {
	Object
	small int64
	big   *big.Int
}

// Int returns the Fixnum n.
func (rt *Runtime) Int(n int64) *Integer {
	i := &Integer{small: n}
	i.init(rt.FixnumClass)
	i.SetFlag(FlagFrozen)
	return i
}

// BigInt returns b as an Integer, demoting to a Fixnum when it fits. b is
// not retained.
func (rt *Runtime) BigInt(b *big.Int) *Integer {
	if b.IsInt64() {
		return rt.Int(b.Int64())
	}
	i := &Integer{big: new(big.Int).Set(b)}
	i.init(rt.BignumClass)
	i.SetFlag(FlagFrozen)
	return i
}

// IsBig reports whether i is a Bignum.
func (i *Integer) IsBig() bool { return i.big != nil }

// Int64 returns the value and whether it fits in an int64.
func (i *Integer) Int64() (int64, bool) {
	if i.big != nil {
		return 0, false
	}
	return i.small, true
}

// BigInt returns a fresh big.Int holding the value.
func (i *Integer) BigInt() *big.Int {
	if i.big != nil {
		return new(big.Int).Set(i.big)
	}
	return big.NewInt(i.small)
}

// Sign returns -1, 0 or 1.
func (i *Integer) Sign() int {
	switch {
	case i.big != nil:
		return i.big.Sign()
	case i.small < 0:
		return -1
	case i.small > 0:
		return 1
	}
	return 0
}

func (i *Integer) Float64() float64 {
	if i.big != nil {
		f, _ := new(big.Float).SetInt(i.big).Float64()
		return f
	}
	return float64(i.small)
}

func (i *Integer) String() string {
	if i.big != nil {
		return i.big.String()
	}
	return strconv.FormatInt(i.small, 10)
}

// ---------------------------------------------------------------------------
// Arithmetic
// ---------------------------------------------------------------------------

func (rt *Runtime) intAdd(a, b *Integer) *Integer {
	if a.big == nil && b.big == nil {
		r := a.small + b.small
		if (a.small^r)&(b.small^r) >= 0 {
			return rt.Int(r)
		}
	}
	return rt.BigInt(new(big.Int).Add(a.BigInt(), b.BigInt()))
}

func (rt *Runtime) intSub(a, b *Integer) *Integer {
	if a.big == nil && b.big == nil {
		r := a.small - b.small
		if (a.small^b.small)&(a.small^r) >= 0 {
			return rt.Int(r)
		}
	}
	return rt.BigInt(new(big.Int).Sub(a.BigInt(), b.BigInt()))
}

func (rt *Runtime) intMul(a, b *Integer) *Integer {
	if a.big == nil && b.big == nil {
		x, y := a.small, b.small
		if x == 0 || y == 0 {
			return rt.Int(0)
		}
		r := x * y
		if r/y == x && !(x == -1 && y == math.MinInt64) && !(y == -1 && x == math.MinInt64) {
			return rt.Int(r)
		}
	}
	return rt.BigInt(new(big.Int).Mul(a.BigInt(), b.BigInt()))
}

// intDivMod is floor division: the quotient rounds toward negative infinity
// and the modulus takes the divisor's sign.
func (rt *Runtime) intDivMod(a, b *Integer) (q, m *Integer, err error) {
	if b.Sign() == 0 {
		return nil, nil, rt.NewZeroDivisionError()
	}
	if a.big == nil && b.big == nil && !(a.small == math.MinInt64 && b.small == -1) {
		x, y := a.small, b.small
		qq, rr := x/y, x%y
		if rr != 0 && (rr < 0) != (y < 0) {
			qq--
			rr += y
		}
		return rt.Int(qq), rt.Int(rr), nil
	}
	bx, by := a.BigInt(), b.BigInt()
	qq, rr := new(big.Int).QuoRem(bx, by, new(big.Int))
	if rr.Sign() != 0 && rr.Sign() != by.Sign() {
		qq.Sub(qq, big.NewInt(1))
		rr.Add(rr, by)
	}
	return rt.BigInt(qq), rt.BigInt(rr), nil
}

func (rt *Runtime) intPow(a, b *Integer) (Value, error) {
	if b.Sign() < 0 {
		return rt.NewFloat(math.Pow(a.Float64(), b.Float64())), nil
	}
	if b.big != nil {
		return nil, rt.NewRangeError("exponent too large")
	}
	return rt.BigInt(new(big.Int).Exp(a.BigInt(), b.BigInt(), nil)), nil
}

func intCmp(a, b *Integer) int {
	if a.big == nil && b.big == nil {
		switch {
		case a.small < b.small:
			return -1
		case a.small > b.small:
			return 1
		}
		return 0
	}
	return a.BigInt().Cmp(b.BigInt())
}

func floatCmp(a, b float64) (int, bool) {
	switch {
	case math.IsNaN(a) || math.IsNaN(b):
		return 0, false
	case a < b:
		return -1, true
	case a > b:
		return 1, true
	}
	return 0, true
}

// ---------------------------------------------------------------------------
// Coercion
// ---------------------------------------------------------------------------

// coerceBin retries op with the operands other.coerce(self) returns. Values
// without coerce are a TypeError.
func (t *Thread) coerceBin(self, other Value, op string) (Value, error) {
	rt := t.rt
	if !ClassOf(other).IsMethodBound("coerce", true) {
		what := RealClassOf(other).Name()
		if IsNil(other) {
			what = "nil"
		}
		return nil, rt.NewTypeError("%s can't be coerced into %s", what, RealClassOf(self).Name())
	}
	pair, err := t.Call(other, "coerce", self)
	if err != nil {
		return nil, err
	}
	arr, ok := pair.(*Array)
	if !ok || arr.Len() != 2 {
		return nil, rt.NewTypeError("coerce must return [x, y]")
	}
	vals := arr.Values()
	return t.Call(vals[0], op, vals[1])
}

// coerceCmp is coerceBin for comparisons: an uncoercible operand is an
// ArgumentError rather than a TypeError.
func (t *Thread) coerceCmp(self, other Value, op string) (Value, error) {
	if !ClassOf(other).IsMethodBound("coerce", true) {
		return nil, t.rt.NewArgumentError("comparison of %s with %s failed",
			RealClassOf(self).Name(), t.rt.describeArg(t, other))
	}
	return t.coerceBin(self, other, op)
}

// ---------------------------------------------------------------------------
// Numeric, Integer, Fixnum, Bignum
// ---------------------------------------------------------------------------

func (rt *Runtime) createNumericClass() {
	n := rt.defineBootClass("Numeric", rt.ObjectClass, nil)
	rt.NumericClass = n
	if err := n.IncludeModule(nil, rt.ComparableModule); err != nil {
		panic(err)
	}

	n.AddMethod0("integer?", func(t *Thread, _ Value) (Value, error) { return t.rt.False(), nil })
	n.AddMethod0("+@", func(t *Thread, self Value) (Value, error) { return self, nil })
	n.AddMethod0("-@", func(t *Thread, self Value) (Value, error) {
		return t.Call(t.rt.Int(0), "-", self)
	})
	n.AddMethod0("zero?", func(t *Thread, self Value) (Value, error) {
		return t.Call(self, "==", t.rt.Int(0))
	})
	n.AddMethod0("nonzero?", func(t *Thread, self Value) (Value, error) {
		z, err := t.Call(self, "zero?")
		if err != nil {
			return nil, err
		}
		if Truthy(z) {
			return t.rt.Nil(), nil
		}
		return self, nil
	})
	n.AddMethod1("coerce", func(t *Thread, self, other Value) (Value, error) {
		if RealClassOf(self) == RealClassOf(other) {
			return t.rt.NewArray(other, self), nil
		}
		a, err := t.rt.toFloat(t, other)
		if err != nil {
			return nil, err
		}
		b, err := t.rt.toFloat(t, self)
		if err != nil {
			return nil, err
		}
		return t.rt.NewArray(t.rt.NewFloat(a), t.rt.NewFloat(b)), nil
	})
}

// toFloat converts a numeric to float64 for mixed arithmetic.
func (rt *Runtime) toFloat(t *Thread, v Value) (float64, error) {
	switch x := v.(type) {
	case *Integer:
		return x.Float64(), nil
	case *Float:
		return x.f, nil
	}
	if s, ok := v.(*String); ok {
		return 0, rt.NewTypeError("can't convert String into Float (%s)", rt.Inspect(t, s))
	}
	if IsNil(v) {
		return 0, rt.NewTypeError("can't convert nil into Float")
	}
	return 0, rt.NewTypeError("can't convert %s into Float", RealClassOf(v).Name())
}

func (rt *Runtime) createIntegerClasses() {
	c := rt.defineBootClass("Integer", rt.NumericClass, NotAllocatable)
	rt.IntegerClass = c
	rt.FixnumClass = rt.defineBootClass("Fixnum", c, nil)
	rt.BignumClass = rt.defineBootClass("Bignum", c, nil)
	for _, cls := range []*Module{c, rt.FixnumClass, rt.BignumClass} {
		if err := rt.mustSingleton(cls).UndefineMethod("new"); err != nil {
			panic(err)
		}
	}

	// Arithmetic on two Integers; a Float operand switches to float math.
	arith := func(op string, ints func(a, b *Integer) (Value, error), floats func(a, b float64) Value) Method1Func {
		return func(t *Thread, self, other Value) (Value, error) {
			a := self.(*Integer)
			switch b := other.(type) {
			case *Integer:
				return ints(a, b)
			case *Float:
				return floats(a.Float64(), b.f), nil
			}
			return t.coerceBin(self, other, op)
		}
	}
	c.AddMethod1("+", arith("+",
		func(a, b *Integer) (Value, error) { return rt.intAdd(a, b), nil },
		func(a, b float64) Value { return rt.NewFloat(a + b) }))
	c.AddMethod1("-", arith("-",
		func(a, b *Integer) (Value, error) { return rt.intSub(a, b), nil },
		func(a, b float64) Value { return rt.NewFloat(a - b) }))
	c.AddMethod1("*", arith("*",
		func(a, b *Integer) (Value, error) { return rt.intMul(a, b), nil },
		func(a, b float64) Value { return rt.NewFloat(a * b) }))
	div := arith("/",
		func(a, b *Integer) (Value, error) {
			q, _, err := rt.intDivMod(a, b)
			if err != nil {
				return nil, err
			}
			return q, nil
		},
		func(a, b float64) Value { return rt.NewFloat(a / b) })
	c.AddMethod1("/", div)
	c.AddMethod1("div", div)
	mod := arith("%",
		func(a, b *Integer) (Value, error) {
			_, m, err := rt.intDivMod(a, b)
			if err != nil {
				return nil, err
			}
			return m, nil
		},
		func(a, b float64) Value { return rt.NewFloat(floatMod(a, b)) })
	c.AddMethod1("%", mod)
	c.AddMethod1("modulo", mod)
	c.AddMethod1("divmod", func(t *Thread, self, other Value) (Value, error) {
		b, ok := other.(*Integer)
		if !ok {
			return t.coerceBin(self, other, "divmod")
		}
		q, m, err := t.rt.intDivMod(self.(*Integer), b)
		if err != nil {
			return nil, err
		}
		return t.rt.NewArray(q, m), nil
	})
	c.AddMethod1("**", arith("**",
		rt.intPow,
		func(a, b float64) Value { return rt.NewFloat(math.Pow(a, b)) }))

	c.AddMethod0("-@", func(t *Thread, self Value) (Value, error) {
		return t.rt.intSub(t.rt.Int(0), self.(*Integer)), nil
	})
	c.AddMethod0("abs", func(t *Thread, self Value) (Value, error) {
		i := self.(*Integer)
		if i.Sign() < 0 {
			return t.rt.intSub(t.rt.Int(0), i), nil
		}
		return i, nil
	})

	// Comparison
	c.AddMethod1("<=>", func(t *Thread, self, other Value) (Value, error) {
		a := self.(*Integer)
		switch b := other.(type) {
		case *Integer:
			return t.rt.Int(int64(intCmp(a, b))), nil
		case *Float:
			if r, ok := floatCmp(a.Float64(), b.f); ok {
				return t.rt.Int(int64(r)), nil
			}
		}
		return t.rt.Nil(), nil
	})
	rel := func(op string, test func(int) bool) Method1Func {
		return func(t *Thread, self, other Value) (Value, error) {
			a := self.(*Integer)
			switch b := other.(type) {
			case *Integer:
				return t.rt.Bool(test(intCmp(a, b))), nil
			case *Float:
				r, ok := floatCmp(a.Float64(), b.f)
				return t.rt.Bool(ok && test(r)), nil
			}
			return t.coerceCmp(self, other, op)
		}
	}
	c.AddMethod1("<", rel("<", func(c int) bool { return c < 0 }))
	c.AddMethod1("<=", rel("<=", func(c int) bool { return c <= 0 }))
	c.AddMethod1(">", rel(">", func(c int) bool { return c > 0 }))
	c.AddMethod1(">=", rel(">=", func(c int) bool { return c >= 0 }))
	c.AddMethod1("==", func(t *Thread, self, other Value) (Value, error) {
		a := self.(*Integer)
		switch b := other.(type) {
		case *Integer:
			return t.rt.Bool(intCmp(a, b) == 0), nil
		case *Float:
			return t.rt.Bool(a.Float64() == b.f), nil
		}
		if _, ok := other.(*Object); ok || IsNil(other) {
			return t.rt.False(), nil
		}
		// Let the other side decide, as numeric == does.
		res, err := t.Call(other, "==", self)
		if err != nil {
			return nil, err
		}
		return t.rt.Bool(Truthy(res)), nil
	})
	c.AddMethod1("eql?", func(t *Thread, self, other Value) (Value, error) {
		b, ok := other.(*Integer)
		return t.rt.Bool(ok && intCmp(self.(*Integer), b) == 0), nil
	})
	c.AddMethod0("hash", func(t *Thread, self Value) (Value, error) {
		i := self.(*Integer)
		if i.big == nil {
			return t.rt.Int(int64(uint64(i.small)*2 + 1)), nil
		}
		return t.rt.Int(int64(hashName(i.big.String()) >> 1)), nil
	})

	// Conversion
	c.AddMethodN("to_s", Arity{Min: 0, Max: 1}, func(t *Thread, self Value, args []Value, _ *Proc) (Value, error) {
		base := 10
		if len(args) == 1 {
			b, ok := args[0].(*Integer)
			if !ok || b.big != nil || b.small < 2 || b.small > 36 {
				return nil, t.rt.NewArgumentError("illegal radix %s", t.rt.Inspect(t, args[0]))
			}
			base = int(b.small)
		}
		return t.rt.String(self.(*Integer).BigInt().Text(base)), nil
	})
	c.AddMethod0("inspect", func(t *Thread, self Value) (Value, error) {
		return t.rt.String(self.(*Integer).String()), nil
	})
	c.AddMethod0("to_i", func(t *Thread, self Value) (Value, error) { return self, nil })
	c.AddMethod0("to_int", func(t *Thread, self Value) (Value, error) { return self, nil })
	c.AddMethod0("to_f", func(t *Thread, self Value) (Value, error) {
		return t.rt.NewFloat(self.(*Integer).Float64()), nil
	})
	c.AddMethod0("integer?", func(t *Thread, _ Value) (Value, error) { return t.rt.True(), nil })
	c.AddMethod0("zero?", func(t *Thread, self Value) (Value, error) {
		return t.rt.Bool(self.(*Integer).Sign() == 0), nil
	})
	c.AddMethod0("succ", func(t *Thread, self Value) (Value, error) {
		return t.rt.intAdd(self.(*Integer), t.rt.Int(1)), nil
	})
	c.AddMethod1("coerce", func(t *Thread, self, other Value) (Value, error) {
		switch o := other.(type) {
		case *Integer:
			return t.rt.NewArray(o, self), nil
		case *Float:
			return t.rt.NewArray(o, t.rt.NewFloat(self.(*Integer).Float64())), nil
		}
		return nil, t.rt.NewTypeError("%s can't be coerced into %s", RealClassOf(other).Name(), RealClassOf(self).Name())
	})
	c.AddMethodN("times", FixedArity(0), func(t *Thread, self Value, _ []Value, blk *Proc) (Value, error) {
		if err := needBlock(t, blk, "times"); err != nil {
			return nil, err
		}
		n := self.(*Integer)
		for i := t.rt.Int(0); intCmp(i, n) < 0; i = t.rt.intAdd(i, t.rt.Int(1)) {
			if _, err := blk.Call(t, i); err != nil {
				return nil, err
			}
		}
		return self, nil
	})
}
