package vm

import "errors"

// ---------------------------------------------------------------------------
// Enumerable
// ---------------------------------------------------------------------------

// errStopIteration ends an each loop early from inside a native block.
var errStopIteration = errors.New("vm: stop iteration")

// Each calls recv.each with a native block that receives each yielded value.
// fn may return errStopIteration to finish early without an error.
func (t *Thread) Each(recv Value, fn func(v Value) error) error {
	rt := t.rt
	blk := rt.NewProc(recv, AnyArity, func(t *Thread, _ Value, args []Value, _ *Proc) (Value, error) {
		return rt.Nil(), fn(rt.blockArg(args))
	})
	_, err := t.CallWithBlock(recv, "each", blk)
	if errors.Is(err, errStopIteration) {
		return nil
	}
	return err
}

func needBlock(t *Thread, blk *Proc, name string) error {
	if blk == nil {
		return t.rt.NewRaise(t.rt.LocalJumpErrorClass, "no block given (%s)", name)
	}
	return nil
}

func (rt *Runtime) createEnumerableModule() {
	e := rt.defineBootModule("Enumerable")
	rt.EnumerableModule = e

	toA := func(t *Thread, self Value, _ []Value, _ *Proc) (Value, error) {
		var out []Value
		err := t.Each(self, func(v Value) error {
			out = append(out, v)
			return nil
		})
		if err != nil {
			return nil, err
		}
		return t.rt.NewArray(out...), nil
	}
	e.AddMethodN("to_a", FixedArity(0), toA)
	e.AddMethodN("entries", FixedArity(0), toA)

	mapFn := func(t *Thread, self Value, _ []Value, blk *Proc) (Value, error) {
		if err := needBlock(t, blk, "map"); err != nil {
			return nil, err
		}
		var out []Value
		err := t.Each(self, func(v Value) error {
			r, err := blk.Call(t, v)
			if err != nil {
				return err
			}
			out = append(out, r)
			return nil
		})
		if err != nil {
			return nil, err
		}
		return t.rt.NewArray(out...), nil
	}
	e.AddMethodN("map", FixedArity(0), mapFn)
	e.AddMethodN("collect", FixedArity(0), mapFn)

	filter := func(name string, keep bool) NativeFunc {
		return func(t *Thread, self Value, _ []Value, blk *Proc) (Value, error) {
			if err := needBlock(t, blk, name); err != nil {
				return nil, err
			}
			var out []Value
			err := t.Each(self, func(v Value) error {
				r, err := blk.Call(t, v)
				if err != nil {
					return err
				}
				if Truthy(r) == keep {
					out = append(out, v)
				}
				return nil
			})
			if err != nil {
				return nil, err
			}
			return t.rt.NewArray(out...), nil
		}
	}
	e.AddMethodN("select", FixedArity(0), filter("select", true))
	e.AddMethodN("find_all", FixedArity(0), filter("find_all", true))
	e.AddMethodN("reject", FixedArity(0), filter("reject", false))

	find := func(t *Thread, self Value, _ []Value, blk *Proc) (Value, error) {
		if err := needBlock(t, blk, "find"); err != nil {
			return nil, err
		}
		found := t.rt.Nil()
		err := t.Each(self, func(v Value) error {
			r, err := blk.Call(t, v)
			if err != nil {
				return err
			}
			if Truthy(r) {
				found = v
				return errStopIteration
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		return found, nil
	}
	e.AddMethodN("find", FixedArity(0), find)
	e.AddMethodN("detect", FixedArity(0), find)

	member := func(t *Thread, self, obj Value) (Value, error) {
		hit := false
		err := t.Each(self, func(v Value) error {
			eq, err := t.Call(v, "==", obj)
			if err != nil {
				return err
			}
			if Truthy(eq) {
				hit = true
				return errStopIteration
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		return t.rt.Bool(hit), nil
	}
	e.AddMethod1("include?", member)
	e.AddMethod1("member?", member)

	inject := func(t *Thread, self Value, args []Value, blk *Proc) (Value, error) {
		if err := needBlock(t, blk, "inject"); err != nil {
			return nil, err
		}
		var acc Value
		if len(args) == 1 {
			acc = args[0]
		}
		err := t.Each(self, func(v Value) error {
			if acc == nil {
				acc = v
				return nil
			}
			r, err := blk.Call(t, acc, v)
			if err != nil {
				return err
			}
			acc = r
			return nil
		})
		if err != nil {
			return nil, err
		}
		if acc == nil {
			return t.rt.Nil(), nil
		}
		return acc, nil
	}
	e.AddMethodN("inject", Arity{Min: 0, Max: 1}, inject)
	e.AddMethodN("reduce", Arity{Min: 0, Max: 1}, inject)

	e.AddMethodN("count", Arity{Min: 0, Max: 1}, func(t *Thread, self Value, args []Value, blk *Proc) (Value, error) {
		n := int64(0)
		err := t.Each(self, func(v Value) error {
			switch {
			case len(args) == 1:
				eq, err := t.Call(v, "==", args[0])
				if err != nil {
					return err
				}
				if Truthy(eq) {
					n++
				}
			case blk != nil:
				r, err := blk.Call(t, v)
				if err != nil {
					return err
				}
				if Truthy(r) {
					n++
				}
			default:
				n++
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		return t.rt.Int(n), nil
	})

	e.AddMethodN("each_with_index", FixedArity(0), func(t *Thread, self Value, _ []Value, blk *Proc) (Value, error) {
		if err := needBlock(t, blk, "each_with_index"); err != nil {
			return nil, err
		}
		i := int64(0)
		err := t.Each(self, func(v Value) error {
			_, err := blk.Call(t, v, t.rt.Int(i))
			i++
			return err
		})
		if err != nil {
			return nil, err
		}
		return self, nil
	})
}
