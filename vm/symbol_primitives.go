package vm

import "sort"

// ---------------------------------------------------------------------------
// Symbol Primitives
// ---------------------------------------------------------------------------

// symbolNeedsQuotes reports whether :name must be written as :"name".
func symbolNeedsQuotes(name string) bool {
	if name == "" {
		return true
	}
	switch name {
	case "+", "-", "*", "/", "%", "**", "==", "===", "!=", "<=>", "<", "<=", ">", ">=",
		"<<", ">>", "!", "[]", "[]=", "=~", "+@", "-@", "&", "|", "^", "~":
		return false
	}
	body := name
	switch {
	case len(body) > 2 && body[:2] == "@@":
		body = body[2:]
	case body[0] == '@' || body[0] == '$':
		body = body[1:]
	}
	if n := len(body); n > 1 && (body[n-1] == '?' || body[n-1] == '!' || body[n-1] == '=') {
		body = body[:n-1]
	}
	if body == "" || (body[0] >= '0' && body[0] <= '9') {
		return true
	}
	return !isIdentifierTail(body)
}

func (rt *Runtime) createSymbolClass() {
	c := rt.defineBootClass("Symbol", rt.ObjectClass, NotAllocatable)
	rt.SymbolClass = c
	rt.symbols.setClass(c)
	if err := rt.mustSingleton(c).UndefineMethod("new"); err != nil {
		panic(err)
	}

	c.AddSingletonMethod("all_symbols", FixedArity(0), func(t *Thread, _ Value, _ []Value, _ *Proc) (Value, error) {
		st := t.rt.symbols
		st.mu.RLock()
		names := make([]string, 0, len(st.byID))
		for _, s := range st.byID {
			names = append(names, s.name)
		}
		st.mu.RUnlock()
		sort.Strings(names)
		return t.rt.symbolArray(names), nil
	})

	toS := func(t *Thread, self Value) (Value, error) {
		return t.rt.String(self.(*Symbol).name), nil
	}
	c.AddMethod0("to_s", toS)
	c.AddMethod0("id2name", toS)
	c.AddMethod0("to_sym", func(t *Thread, self Value) (Value, error) { return self, nil })
	c.AddMethod0("to_i", func(t *Thread, self Value) (Value, error) {
		return t.rt.Int(int64(self.(*Symbol).id)), nil
	})
	c.AddMethod0("inspect", func(t *Thread, self Value) (Value, error) {
		name := self.(*Symbol).name
		if symbolNeedsQuotes(name) {
			return t.rt.String(":" + inspectString(name)), nil
		}
		return t.rt.String(":" + name), nil
	})
	c.AddMethod1("==", func(t *Thread, self, other Value) (Value, error) {
		return t.rt.Bool(self == other), nil
	})
	c.AddMethod0("hash", func(t *Thread, self Value) (Value, error) {
		return t.rt.Int(int64(self.(*Symbol).id)*8 + 6), nil
	})
	c.AddMethod0("to_proc", func(t *Thread, self Value) (Value, error) {
		name := self.(*Symbol).name
		return t.rt.NewProc(self, OptionalArity(1), func(t *Thread, _ Value, args []Value, blk *Proc) (Value, error) {
			if len(args) == 0 {
				return nil, t.rt.NewArgumentError("no receiver given")
			}
			return t.Dispatch(args[0], name, args[1:], blk, CallNormal)
		}), nil
	})
}
