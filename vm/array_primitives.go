package vm

import (
	"strings"
)

// ---------------------------------------------------------------------------
// Array Primitives
// ---------------------------------------------------------------------------

func selfArray(self Value) *Array { return self.(*Array) }

// intArg converts an Integer argument to an int.
func (rt *Runtime) intArg(v Value) (int, error) {
	i, ok := v.(*Integer)
	if !ok {
		if IsNil(v) {
			return 0, rt.NewTypeError("can't convert nil into Integer")
		}
		return 0, rt.NewTypeError("can't convert %s into Integer", RealClassOf(v).Name())
	}
	n, fits := i.Int64()
	if !fits || n != int64(int(n)) {
		return 0, rt.NewRangeError("bignum too big to convert into `long'")
	}
	return int(n), nil
}

func (rt *Runtime) createArrayClass() {
	c := rt.defineBootClass("Array", rt.ObjectClass, arrayAllocator)
	rt.ArrayClass = c
	if err := c.IncludeModule(nil, rt.EnumerableModule); err != nil {
		panic(err)
	}

	c.AddSingletonMethod("[]", AnyArity, func(t *Thread, self Value, args []Value, _ *Proc) (Value, error) {
		v, err := self.(*Module).Allocate()
		if err != nil {
			return nil, err
		}
		a := selfArray(v)
		a.values = append([]Value(nil), args...)
		return a, nil
	})

	c.AddPrivateMethod("initialize", Arity{Min: 0, Max: 2}, func(t *Thread, self Value, args []Value, blk *Proc) (Value, error) {
		a := selfArray(self)
		if len(args) == 0 {
			return t.rt.Nil(), nil
		}
		n, err := t.rt.intArg(args[0])
		if err != nil {
			return nil, err
		}
		if n < 0 {
			return nil, t.rt.NewArgumentError("negative array size")
		}
		fill := t.rt.Nil()
		if len(args) == 2 {
			fill = args[1]
		}
		vals := make([]Value, n)
		for i := range vals {
			if blk != nil {
				v, err := blk.Call(t, t.rt.Int(int64(i)))
				if err != nil {
					return nil, err
				}
				vals[i] = v
			} else {
				vals[i] = fill
			}
		}
		return t.rt.Nil(), t.rt.modify(a, func([]Value) []Value { return vals })
	})
	c.AddPrivateMethod("initialize_copy", FixedArity(1), func(t *Thread, self Value, args []Value, _ *Proc) (Value, error) {
		src, ok := args[0].(*Array)
		if !ok {
			return nil, t.rt.NewTypeError("can't convert %s into Array", RealClassOf(args[0]).Name())
		}
		a := selfArray(self)
		if err := t.rt.modify(a, func(v []Value) []Value { return v }); err != nil {
			return nil, err
		}
		a.shareFrom(src)
		return a, nil
	})
	c.AddMethod1("replace", func(t *Thread, self, other Value) (Value, error) {
		src, ok := other.(*Array)
		if !ok {
			return nil, t.rt.NewTypeError("can't convert %s into Array", RealClassOf(other).Name())
		}
		a := selfArray(self)
		if err := t.rt.modify(a, func(v []Value) []Value { return v }); err != nil {
			return nil, err
		}
		a.shareFrom(src)
		return a, nil
	})

	// Element access
	slice := func(t *Thread, self Value, args []Value, _ *Proc) (Value, error) {
		a := selfArray(self)
		start, err := t.rt.intArg(args[0])
		if err != nil {
			return nil, err
		}
		if len(args) == 1 {
			if v, ok := a.At(start); ok {
				return v, nil
			}
			return t.rt.Nil(), nil
		}
		n, err := t.rt.intArg(args[1])
		if err != nil {
			return nil, err
		}
		begin, count, ok := normalizeRange(start, n, a.Len())
		if !ok {
			return t.rt.Nil(), nil
		}
		return t.rt.subseq(a, begin, count), nil
	}
	c.AddMethodN("[]", Arity{Min: 1, Max: 2}, slice)
	c.AddMethodN("slice", Arity{Min: 1, Max: 2}, slice)
	c.AddMethod1("at", func(t *Thread, self, idx Value) (Value, error) {
		i, err := t.rt.intArg(idx)
		if err != nil {
			return nil, err
		}
		if v, ok := selfArray(self).At(i); ok {
			return v, nil
		}
		return t.rt.Nil(), nil
	})
	c.AddMethod2("[]=", func(t *Thread, self, idx, val Value) (Value, error) {
		a := selfArray(self)
		i, err := t.rt.intArg(idx)
		if err != nil {
			return nil, err
		}
		if i < 0 {
			if i+a.Len() < 0 {
				return nil, t.rt.NewIndexError("index %d out of array", i)
			}
		}
		err = t.rt.modify(a, func(vals []Value) []Value {
			if i < 0 {
				i += len(vals)
			}
			for len(vals) <= i {
				vals = append(vals, t.rt.Nil())
			}
			vals[i] = val
			return vals
		})
		if err != nil {
			return nil, err
		}
		return val, nil
	})
	edge := func(first bool) NativeFunc {
		return func(t *Thread, self Value, args []Value, _ *Proc) (Value, error) {
			a := selfArray(self)
			if len(args) == 0 {
				i := 0
				if !first {
					i = -1
				}
				if v, ok := a.At(i); ok {
					return v, nil
				}
				return t.rt.Nil(), nil
			}
			n, err := t.rt.intArg(args[0])
			if err != nil {
				return nil, err
			}
			if n < 0 {
				return nil, t.rt.NewArgumentError("negative array size")
			}
			length := a.Len()
			if n > length {
				n = length
			}
			if first {
				return t.rt.subseq(a, 0, n), nil
			}
			return t.rt.subseq(a, length-n, n), nil
		}
	}
	c.AddMethodN("first", Arity{Min: 0, Max: 1}, edge(true))
	c.AddMethodN("last", Arity{Min: 0, Max: 1}, edge(false))

	// Mutation
	push := func(t *Thread, self Value, args []Value, _ *Proc) (Value, error) {
		a := selfArray(self)
		return a, t.rt.modify(a, func(vals []Value) []Value { return append(vals, args...) })
	}
	c.AddMethodN("push", AnyArity, push)
	c.AddMethodN("<<", FixedArity(1), push)
	c.AddMethod0("pop", func(t *Thread, self Value) (Value, error) {
		a := selfArray(self)
		out := t.rt.Nil()
		err := t.rt.modify(a, func(vals []Value) []Value {
			if len(vals) == 0 {
				return vals
			}
			out = vals[len(vals)-1]
			vals[len(vals)-1] = nil
			return vals[:len(vals)-1]
		})
		return out, err
	})
	c.AddMethod0("shift", func(t *Thread, self Value) (Value, error) {
		a := selfArray(self)
		out := t.rt.Nil()
		err := t.rt.modify(a, func(vals []Value) []Value {
			if len(vals) == 0 {
				return vals
			}
			out = vals[0]
			return vals[1:]
		})
		return out, err
	})
	c.AddMethodN("unshift", AnyArity, func(t *Thread, self Value, args []Value, _ *Proc) (Value, error) {
		a := selfArray(self)
		return a, t.rt.modify(a, func(vals []Value) []Value {
			out := make([]Value, 0, len(args)+len(vals))
			return append(append(out, args...), vals...)
		})
	})
	c.AddMethod1("concat", func(t *Thread, self, other Value) (Value, error) {
		o, ok := other.(*Array)
		if !ok {
			return nil, t.rt.NewTypeError("can't convert %s into Array", RealClassOf(other).Name())
		}
		more := o.Values()
		a := selfArray(self)
		return a, t.rt.modify(a, func(vals []Value) []Value { return append(vals, more...) })
	})
	c.AddMethod0("clear", func(t *Thread, self Value) (Value, error) {
		a := selfArray(self)
		return a, t.rt.modify(a, func([]Value) []Value { return nil })
	})

	// Queries
	length := func(t *Thread, self Value) (Value, error) {
		return t.rt.Int(int64(selfArray(self).Len())), nil
	}
	c.AddMethod0("length", length)
	c.AddMethod0("size", length)
	c.AddMethod0("empty?", func(t *Thread, self Value) (Value, error) {
		return t.rt.Bool(selfArray(self).Len() == 0), nil
	})
	c.AddMethod1("include?", func(t *Thread, self, obj Value) (Value, error) {
		for _, v := range selfArray(self).Values() {
			eq, err := t.Call(v, "==", obj)
			if err != nil {
				return nil, err
			}
			if Truthy(eq) {
				return t.rt.True(), nil
			}
		}
		return t.rt.False(), nil
	})
	c.AddMethod1("==", func(t *Thread, self, other Value) (Value, error) {
		o, ok := other.(*Array)
		if !ok {
			return t.rt.False(), nil
		}
		if o == self {
			return t.rt.True(), nil
		}
		av, bv := selfArray(self).Values(), o.Values()
		if len(av) != len(bv) {
			return t.rt.False(), nil
		}
		for i := range av {
			eq, err := t.Call(av[i], "==", bv[i])
			if err != nil {
				return nil, err
			}
			if !Truthy(eq) {
				return t.rt.False(), nil
			}
		}
		return t.rt.True(), nil
	})

	// Iteration
	c.AddMethodN("each", FixedArity(0), func(t *Thread, self Value, _ []Value, blk *Proc) (Value, error) {
		if err := needBlock(t, blk, "each"); err != nil {
			return nil, err
		}
		a := selfArray(self)
		for i := 0; ; i++ {
			v, ok := a.At(i)
			if !ok {
				break
			}
			if _, err := blk.Call(t, v); err != nil {
				return nil, err
			}
		}
		return a, nil
	})

	// Copies
	c.AddMethod1("+", func(t *Thread, self, other Value) (Value, error) {
		o, ok := other.(*Array)
		if !ok {
			return nil, t.rt.NewTypeError("can't convert %s into Array", RealClassOf(other).Name())
		}
		return t.rt.NewArray(append(selfArray(self).Values(), o.Values()...)...), nil
	})
	c.AddMethod0("reverse", func(t *Thread, self Value) (Value, error) {
		vals := selfArray(self).Values()
		for i, j := 0, len(vals)-1; i < j; i, j = i+1, j-1 {
			vals[i], vals[j] = vals[j], vals[i]
		}
		return t.rt.NewArray(vals...), nil
	})
	c.AddMethod0("compact", func(t *Thread, self Value) (Value, error) {
		var out []Value
		for _, v := range selfArray(self).Values() {
			if !IsNil(v) {
				out = append(out, v)
			}
		}
		return t.rt.NewArray(out...), nil
	})
	c.AddMethod0("to_a", func(t *Thread, self Value) (Value, error) {
		if RealClassOf(self) == t.rt.ArrayClass {
			return self, nil
		}
		a := t.rt.NewArray()
		a.shareFrom(selfArray(self))
		return a, nil
	})

	// Rendering
	c.AddMethodN("join", Arity{Min: 0, Max: 1}, func(t *Thread, self Value, args []Value, _ *Proc) (Value, error) {
		sep := ""
		if len(args) == 1 && !IsNil(args[0]) {
			s, err := t.rt.stringArg(t, args[0])
			if err != nil {
				return nil, err
			}
			sep = s
		}
		var sb strings.Builder
		if err := t.rt.joinInto(t, &sb, selfArray(self), sep); err != nil {
			return nil, err
		}
		return t.rt.String(sb.String()), nil
	})
	inspect := func(t *Thread, self Value) (Value, error) {
		a := selfArray(self)
		if t.inspecting(&a.Object) {
			return t.rt.String("[...]"), nil
		}
		defer t.doneInspecting(&a.Object)
		vals := a.Values()
		parts := make([]string, len(vals))
		for i, v := range vals {
			parts[i] = t.rt.Inspect(t, v)
		}
		return t.rt.String("[" + strings.Join(parts, ", ") + "]"), nil
	}
	c.AddMethod0("inspect", inspect)
	c.AddMethod0("to_s", inspect)
}

// joinInto writes a's elements separated by sep, flattening nested arrays.
func (rt *Runtime) joinInto(t *Thread, sb *strings.Builder, a *Array, sep string) error {
	if t.inspecting(&a.Object) {
		return rt.NewArgumentError("recursive array join")
	}
	defer t.doneInspecting(&a.Object)
	for i, v := range a.Values() {
		if i > 0 {
			sb.WriteString(sep)
		}
		if inner, ok := v.(*Array); ok {
			if err := rt.joinInto(t, sb, inner, sep); err != nil {
				return err
			}
			continue
		}
		if s, ok := v.(*String); ok {
			sb.WriteString(s.GoString())
			continue
		}
		res, err := t.Call(v, "to_s")
		if err != nil {
			return err
		}
		s, err := rt.stringArg(t, res)
		if err != nil {
			return err
		}
		sb.WriteString(s)
	}
	return nil
}
