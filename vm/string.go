package vm

import (
	"bytes"
	"math/big"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"
)

// String is a mutable byte string.
type String struct {
	Object
	mu sync.Mutex
	b  []byte
}

// String returns a new String holding s.
func (rt *Runtime) String(s string) *String {
	str := &String{b: []byte(s)}
	str.init(rt.StringClass)
	return str
}

// GoString returns a copy of the contents.
func (s *String) GoString() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return string(s.b)
}

// Len returns the length in bytes.
func (s *String) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.b)
}

func (s *String) set(b []byte) {
	s.mu.Lock()
	s.b = b
	s.mu.Unlock()
}

// checkModify guards every in-place change: safe level 4 forbids touching
// untainted strings, and frozen strings are read-only.
func (rt *Runtime) checkModify(s *String) error {
	if rt.SafeLevel() >= 4 && !s.IsTainted() {
		return rt.NewSecurityError("Insecure: can't modify string")
	}
	if s.IsFrozen() {
		return rt.NewFrozenError("string")
	}
	return nil
}

// inspectString quotes s with backslash escapes.
func inspectString(s string) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		switch {
		case r == '"' || r == '\\':
			sb.WriteByte('\\')
			sb.WriteRune(r)
		case r == '#' && i+1 < len(s) && (s[i+1] == '{' || s[i+1] == '$' || s[i+1] == '@'):
			sb.WriteString(`\#`)
		case r == '\n':
			sb.WriteString(`\n`)
		case r == '\t':
			sb.WriteString(`\t`)
		case r == '\r':
			sb.WriteString(`\r`)
		case r == 0x1b:
			sb.WriteString(`\e`)
		case r == utf8.RuneError && size == 1, r < 0x20, r == 0x7f:
			sb.WriteString(`\` + strconv.FormatInt(int64(s[i]), 8))
		default:
			sb.WriteString(s[i : i+size])
		}
		i += size
	}
	sb.WriteByte('"')
	return sb.String()
}

func selfString(self Value) *String { return self.(*String) }

func (rt *Runtime) createStringClass() {
	c := rt.defineBootClass("String", rt.ObjectClass, AllocatorFunc(func(rt *Runtime, cls *Module) (Value, error) {
		s := &String{}
		s.init(cls)
		return s, nil
	}))
	rt.StringClass = c
	if err := c.IncludeModule(nil, rt.ComparableModule); err != nil {
		panic(err)
	}

	c.AddPrivateMethod("initialize", Arity{Min: 0, Max: 1}, func(t *Thread, self Value, args []Value, _ *Proc) (Value, error) {
		if len(args) == 0 {
			return t.rt.Nil(), nil
		}
		return t.Call(self, "replace", args[0])
	})
	c.AddMethod1("initialize_copy", func(t *Thread, self, orig Value) (Value, error) {
		return t.Call(self, "replace", orig)
	})
	c.AddMethod1("replace", func(t *Thread, self, other Value) (Value, error) {
		s := selfString(self)
		src, err := t.rt.stringArg(t, other)
		if err != nil {
			return nil, err
		}
		if err := t.rt.checkModify(s); err != nil {
			return nil, err
		}
		s.set([]byte(src))
		return s, nil
	})

	// Building
	c.AddMethod1("+", func(t *Thread, self, other Value) (Value, error) {
		rhs, err := t.rt.stringArg(t, other)
		if err != nil {
			return nil, err
		}
		out := t.rt.String(selfString(self).GoString() + rhs)
		if self.header().IsTainted() || other.header().IsTainted() {
			out.SetFlag(FlagTainted)
		}
		return out, nil
	})
	appendFn := func(t *Thread, self, other Value) (Value, error) {
		s := selfString(self)
		var add []byte
		if i, ok := other.(*Integer); ok {
			n, fits := i.Int64()
			if !fits || n < 0 || n > 255 {
				return nil, t.rt.NewTypeError("can't convert Integer into String")
			}
			add = []byte{byte(n)}
		} else {
			rhs, err := t.rt.stringArg(t, other)
			if err != nil {
				return nil, err
			}
			add = []byte(rhs)
		}
		if err := t.rt.checkModify(s); err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.b = append(s.b, add...)
		s.mu.Unlock()
		if other.header().IsTainted() {
			s.SetFlag(FlagTainted)
		}
		return s, nil
	}
	c.AddMethod1("<<", appendFn)
	c.AddMethod1("concat", appendFn)
	c.AddMethod1("*", func(t *Thread, self, other Value) (Value, error) {
		n, ok := other.(*Integer)
		if !ok {
			return nil, t.rt.NewTypeError("can't convert %s into Integer", RealClassOf(other).Name())
		}
		times, fits := n.Int64()
		if !fits || times < 0 {
			return nil, t.rt.NewArgumentError("negative argument")
		}
		return t.rt.String(strings.Repeat(selfString(self).GoString(), int(times))), nil
	})

	// Comparison
	c.AddMethod1("==", func(t *Thread, self, other Value) (Value, error) {
		o, ok := other.(*String)
		if !ok {
			return t.rt.False(), nil
		}
		return t.rt.Bool(selfString(self).GoString() == o.GoString()), nil
	})
	c.AddMethod1("eql?", func(t *Thread, self, other Value) (Value, error) {
		o, ok := other.(*String)
		return t.rt.Bool(ok && selfString(self).GoString() == o.GoString()), nil
	})
	c.AddMethod1("<=>", func(t *Thread, self, other Value) (Value, error) {
		o, ok := other.(*String)
		if !ok {
			return t.rt.Nil(), nil
		}
		return t.rt.Int(int64(bytes.Compare([]byte(selfString(self).GoString()), []byte(o.GoString())))), nil
	})
	c.AddMethod0("hash", func(t *Thread, self Value) (Value, error) {
		return t.rt.Int(int64(hashName(selfString(self).GoString()) >> 1)), nil
	})

	// Queries
	length := func(t *Thread, self Value) (Value, error) {
		return t.rt.Int(int64(selfString(self).Len())), nil
	}
	c.AddMethod0("length", length)
	c.AddMethod0("size", length)
	c.AddMethod0("empty?", func(t *Thread, self Value) (Value, error) {
		return t.rt.Bool(selfString(self).Len() == 0), nil
	})
	c.AddMethod1("include?", func(t *Thread, self, other Value) (Value, error) {
		sub, err := t.rt.stringArg(t, other)
		if err != nil {
			return nil, err
		}
		return t.rt.Bool(strings.Contains(selfString(self).GoString(), sub)), nil
	})
	c.AddMethod1("start_with?", func(t *Thread, self, other Value) (Value, error) {
		pre, err := t.rt.stringArg(t, other)
		if err != nil {
			return nil, err
		}
		return t.rt.Bool(strings.HasPrefix(selfString(self).GoString(), pre)), nil
	})
	c.AddMethod1("end_with?", func(t *Thread, self, other Value) (Value, error) {
		suf, err := t.rt.stringArg(t, other)
		if err != nil {
			return nil, err
		}
		return t.rt.Bool(strings.HasSuffix(selfString(self).GoString(), suf)), nil
	})
	c.AddMethod1("[]", func(t *Thread, self, idx Value) (Value, error) {
		i, ok := idx.(*Integer)
		if !ok {
			return nil, t.rt.NewTypeError("can't convert %s into Integer", RealClassOf(idx).Name())
		}
		s := selfString(self).GoString()
		n, fits := i.Int64()
		if n < 0 {
			n += int64(len(s))
		}
		if !fits || n < 0 || n >= int64(len(s)) {
			return t.rt.Nil(), nil
		}
		return t.rt.String(s[n : n+1]), nil
	})

	// Transformations that return a new string
	transform := func(fn func(string) string) Method0Func {
		return func(t *Thread, self Value) (Value, error) {
			out := t.rt.String(fn(selfString(self).GoString()))
			if self.header().IsTainted() {
				out.SetFlag(FlagTainted)
			}
			return out, nil
		}
	}
	// Transformations in place; nil when nothing changed.
	bang := func(fn func(string) string) Method0Func {
		return func(t *Thread, self Value) (Value, error) {
			s := selfString(self)
			if err := t.rt.checkModify(s); err != nil {
				return nil, err
			}
			old := s.GoString()
			updated := fn(old)
			if updated == old {
				return t.rt.Nil(), nil
			}
			s.set([]byte(updated))
			return s, nil
		}
	}
	c.AddMethod0("upcase", transform(strings.ToUpper))
	c.AddMethod0("downcase", transform(strings.ToLower))
	c.AddMethod0("capitalize", transform(capitalize))
	c.AddMethod0("reverse", transform(reverseString))
	c.AddMethod0("strip", transform(strings.TrimSpace))
	c.AddMethod0("upcase!", bang(strings.ToUpper))
	c.AddMethod0("downcase!", bang(strings.ToLower))
	c.AddMethod0("capitalize!", bang(capitalize))
	c.AddMethod0("reverse!", bang(reverseString))
	c.AddMethod0("strip!", bang(strings.TrimSpace))

	// Conversion
	c.AddMethod0("to_s", func(t *Thread, self Value) (Value, error) {
		if RealClassOf(self) == t.rt.StringClass {
			return self, nil
		}
		return t.rt.String(selfString(self).GoString()), nil
	})
	c.AddMethod0("to_str", func(t *Thread, self Value) (Value, error) { return self, nil })
	toSym := func(t *Thread, self Value) (Value, error) {
		s := selfString(self).GoString()
		if s == "" {
			return nil, t.rt.NewArgumentError("interning empty string")
		}
		return t.rt.Symbol(s), nil
	}
	c.AddMethod0("to_sym", toSym)
	c.AddMethod0("intern", toSym)
	c.AddMethod0("to_i", func(t *Thread, self Value) (Value, error) {
		return t.rt.parseLeadingInt(selfString(self).GoString()), nil
	})
	c.AddMethod0("to_f", func(t *Thread, self Value) (Value, error) {
		return t.rt.NewFloat(parseLeadingFloat(selfString(self).GoString())), nil
	})
	c.AddMethod0("inspect", func(t *Thread, self Value) (Value, error) {
		return t.rt.String(inspectString(selfString(self).GoString())), nil
	})
	c.AddMethodN("split", Arity{Min: 0, Max: 1}, func(t *Thread, self Value, args []Value, _ *Proc) (Value, error) {
		s := selfString(self).GoString()
		var parts []string
		if len(args) == 0 || IsNil(args[0]) {
			parts = strings.Fields(s)
		} else {
			sep, err := t.rt.stringArg(t, args[0])
			if err != nil {
				return nil, err
			}
			if sep == " " {
				parts = strings.Fields(s)
			} else {
				parts = strings.Split(s, sep)
				for len(parts) > 0 && parts[len(parts)-1] == "" {
					parts = parts[:len(parts)-1]
				}
			}
		}
		vals := make([]Value, len(parts))
		for i, p := range parts {
			vals[i] = t.rt.String(p)
		}
		return t.rt.NewArray(vals...), nil
	})
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}

func reverseString(s string) string {
	r := []rune(s)
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
	return string(r)
}

// parseLeadingInt reads an optionally signed decimal prefix, ignoring
// leading whitespace and underscores between digits. No digits gives 0.
func (rt *Runtime) parseLeadingInt(s string) *Integer {
	s = strings.TrimLeft(s, " \t\n\r\f\v")
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	var digits strings.Builder
	digits.WriteString(s[:end])
	for ; end < len(s); end++ {
		ch := s[end]
		if ch == '_' && digits.Len() > 0 && end+1 < len(s) && s[end+1] >= '0' && s[end+1] <= '9' {
			continue
		}
		if ch < '0' || ch > '9' {
			break
		}
		digits.WriteByte(ch)
	}
	text := digits.String()
	if n, err := strconv.ParseInt(text, 10, 64); err == nil {
		return rt.Int(n)
	}
	if b, ok := new(big.Int).SetString(text, 10); ok {
		return rt.BigInt(b)
	}
	return rt.Int(0)
}

// parseLeadingFloat reads the longest float prefix. No number gives 0.0.
func parseLeadingFloat(s string) float64 {
	s = strings.TrimSpace(s)
	if i := strings.IndexFunc(s, func(r rune) bool {
		return !strings.ContainsRune("0123456789+-.eE", r)
	}); i >= 0 {
		s = s[:i]
	}
	for end := len(s); end > 0; end-- {
		if f, err := strconv.ParseFloat(s[:end], 64); err == nil {
			return f
		}
	}
	return 0
}
