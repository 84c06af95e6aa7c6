package vm

import (
	"math"
	"math/big"
	"strconv"
	"strings"
)

// Float is an immutable double.
type Float struct {
	Object
	f float64
}

// NewFloat boxes f.
func (rt *Runtime) NewFloat(f float64) *Float {
	x := &Float{f: f}
	x.init(rt.FloatClass)
	x.SetFlag(FlagFrozen)
	return x
}

// Float64 returns the value.
func (f *Float) Float64() float64 { return f.f }

// formatFloat renders f the way Float#to_s does: always with a fractional
// part or exponent.
func formatFloat(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case math.IsNaN(f):
		return "NaN"
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if strings.ContainsAny(s, ".e") {
		if i := strings.IndexByte(s, 'e'); i >= 0 && !strings.Contains(s[:i], ".") {
			s = s[:i] + ".0" + s[i:]
		}
		return s
	}
	return s + ".0"
}

// floatMod is modulo with the divisor's sign.
func floatMod(a, b float64) float64 {
	m := math.Mod(a, b)
	if m != 0 && (m < 0) != (b < 0) {
		m += b
	}
	return m
}

// floatToInteger truncates f to an Integer, promoting to Bignum as needed.
func (rt *Runtime) floatToInteger(f float64) (*Integer, error) {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return nil, rt.NewRangeError("%s", formatFloat(f))
	}
	f = math.Trunc(f)
	if f >= math.MinInt64 && f < math.MaxInt64 {
		return rt.Int(int64(f)), nil
	}
	b, _ := new(big.Float).SetFloat64(f).Int(nil)
	return rt.BigInt(b), nil
}

func (rt *Runtime) createFloatClass() {
	c := rt.defineBootClass("Float", rt.NumericClass, NotAllocatable)
	rt.FloatClass = c
	if err := rt.mustSingleton(c).UndefineMethod("new"); err != nil {
		panic(err)
	}
	rt.mustConstSetIn(c, "INFINITY", rt.NewFloat(math.Inf(1)))
	rt.mustConstSetIn(c, "NAN", rt.NewFloat(math.NaN()))
	rt.mustConstSetIn(c, "EPSILON", rt.NewFloat(2.220446049250313e-16))
	rt.mustConstSetIn(c, "MAX", rt.NewFloat(math.MaxFloat64))
	rt.mustConstSetIn(c, "MIN", rt.NewFloat(2.2250738585072014e-308))

	operand := func(v Value) (float64, bool) {
		switch x := v.(type) {
		case *Float:
			return x.f, true
		case *Integer:
			return x.Float64(), true
		}
		return 0, false
	}
	arith := func(op string, fn func(a, b float64) float64) Method1Func {
		return func(t *Thread, self, other Value) (Value, error) {
			b, ok := operand(other)
			if !ok {
				return t.coerceBin(self, other, op)
			}
			return t.rt.NewFloat(fn(self.(*Float).f, b)), nil
		}
	}
	c.AddMethod1("+", arith("+", func(a, b float64) float64 { return a + b }))
	c.AddMethod1("-", arith("-", func(a, b float64) float64 { return a - b }))
	c.AddMethod1("*", arith("*", func(a, b float64) float64 { return a * b }))
	c.AddMethod1("/", arith("/", func(a, b float64) float64 { return a / b }))
	c.AddMethod1("%", arith("%", floatMod))
	c.AddMethod1("modulo", arith("%", floatMod))
	c.AddMethod1("**", arith("**", math.Pow))

	c.AddMethod0("-@", func(t *Thread, self Value) (Value, error) {
		return t.rt.NewFloat(-self.(*Float).f), nil
	})
	c.AddMethod0("abs", func(t *Thread, self Value) (Value, error) {
		return t.rt.NewFloat(math.Abs(self.(*Float).f)), nil
	})

	c.AddMethod1("<=>", func(t *Thread, self, other Value) (Value, error) {
		b, ok := operand(other)
		if !ok {
			return t.rt.Nil(), nil
		}
		r, ok := floatCmp(self.(*Float).f, b)
		if !ok {
			return t.rt.Nil(), nil
		}
		return t.rt.Int(int64(r)), nil
	})
	rel := func(op string, test func(int) bool) Method1Func {
		return func(t *Thread, self, other Value) (Value, error) {
			b, ok := operand(other)
			if !ok {
				return t.coerceCmp(self, other, op)
			}
			r, ok := floatCmp(self.(*Float).f, b)
			return t.rt.Bool(ok && test(r)), nil
		}
	}
	c.AddMethod1("<", rel("<", func(c int) bool { return c < 0 }))
	c.AddMethod1("<=", rel("<=", func(c int) bool { return c <= 0 }))
	c.AddMethod1(">", rel(">", func(c int) bool { return c > 0 }))
	c.AddMethod1(">=", rel(">=", func(c int) bool { return c >= 0 }))
	c.AddMethod1("==", func(t *Thread, self, other Value) (Value, error) {
		b, ok := operand(other)
		return t.rt.Bool(ok && self.(*Float).f == b), nil
	})
	c.AddMethod1("eql?", func(t *Thread, self, other Value) (Value, error) {
		b, ok := other.(*Float)
		return t.rt.Bool(ok && self.(*Float).f == b.f), nil
	})
	c.AddMethod0("hash", func(t *Thread, self Value) (Value, error) {
		return t.rt.Int(int64(math.Float64bits(self.(*Float).f) >> 1)), nil
	})

	toS := func(t *Thread, self Value) (Value, error) {
		return t.rt.String(formatFloat(self.(*Float).f)), nil
	}
	c.AddMethod0("to_s", toS)
	c.AddMethod0("inspect", toS)
	c.AddMethod0("to_f", func(t *Thread, self Value) (Value, error) { return self, nil })
	toI := func(t *Thread, self Value) (Value, error) {
		return t.rt.floatToInteger(self.(*Float).f)
	}
	c.AddMethod0("to_i", toI)
	c.AddMethod0("truncate", toI)
	c.AddMethod0("floor", func(t *Thread, self Value) (Value, error) {
		return t.rt.floatToInteger(math.Floor(self.(*Float).f))
	})
	c.AddMethod0("ceil", func(t *Thread, self Value) (Value, error) {
		return t.rt.floatToInteger(math.Ceil(self.(*Float).f))
	})
	c.AddMethod0("round", func(t *Thread, self Value) (Value, error) {
		return t.rt.floatToInteger(math.Round(self.(*Float).f))
	})
	c.AddMethod0("zero?", func(t *Thread, self Value) (Value, error) {
		return t.rt.Bool(self.(*Float).f == 0), nil
	})
	c.AddMethod0("nan?", func(t *Thread, self Value) (Value, error) {
		return t.rt.Bool(math.IsNaN(self.(*Float).f)), nil
	})
	c.AddMethod0("infinite?", func(t *Thread, self Value) (Value, error) {
		f := self.(*Float).f
		switch {
		case math.IsInf(f, 1):
			return t.rt.Int(1), nil
		case math.IsInf(f, -1):
			return t.rt.Int(-1), nil
		}
		return t.rt.Nil(), nil
	})
	c.AddMethod1("coerce", func(t *Thread, self, other Value) (Value, error) {
		b, ok := operand(other)
		if !ok {
			return nil, t.rt.NewTypeError("%s can't be coerced into Float", RealClassOf(other).Name())
		}
		return t.rt.NewArray(t.rt.NewFloat(b), self), nil
	})
}

// mustConstSetIn binds a constant under mod during bootstrap.
func (rt *Runtime) mustConstSetIn(mod *Module, name string, v Value) {
	if _, err := mod.ConstSet(name, v); err != nil {
		panic(err)
	}
}
