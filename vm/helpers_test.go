package vm

import (
	"errors"
	"testing"
)

func newTestRuntime(t *testing.T) (*Runtime, *Thread) {
	t.Helper()
	rt := NewRuntime(DefaultOptions())
	return rt, rt.NewThread()
}

func mustCall(t *testing.T, th *Thread, recv Value, name string, args ...Value) Value {
	t.Helper()
	v, err := th.Call(recv, name, args...)
	if err != nil {
		t.Fatalf("%s: unexpected error: %v", name, err)
	}
	return v
}

func mustSend(t *testing.T, th *Thread, recv Value, name string, args ...Value) Value {
	t.Helper()
	v, err := th.Send(recv, name, args...)
	if err != nil {
		t.Fatalf("send %s: unexpected error: %v", name, err)
	}
	return v
}

func goStr(t *testing.T, v Value) string {
	t.Helper()
	s, ok := v.(*String)
	if !ok {
		t.Fatalf("got %T, want *String", v)
	}
	return s.GoString()
}

func goInt(t *testing.T, v Value) int64 {
	t.Helper()
	i, ok := v.(*Integer)
	if !ok {
		t.Fatalf("got %T, want *Integer", v)
	}
	n, fits := i.Int64()
	if !fits {
		t.Fatalf("integer %s does not fit in int64", i)
	}
	return n
}

func symbolNames(t *testing.T, v Value) []string {
	t.Helper()
	a, ok := v.(*Array)
	if !ok {
		t.Fatalf("got %T, want *Array", v)
	}
	var out []string
	for _, e := range a.Values() {
		s, ok := e.(*Symbol)
		if !ok {
			t.Fatalf("element %T, want *Symbol", e)
		}
		out = append(out, s.Name())
	}
	return out
}

func stringValues(t *testing.T, v Value) []string {
	t.Helper()
	a, ok := v.(*Array)
	if !ok {
		t.Fatalf("got %T, want *Array", v)
	}
	var out []string
	for _, e := range a.Values() {
		out = append(out, goStr(t, e))
	}
	return out
}

func moduleNames(mods []*Module) []string {
	out := make([]string, len(mods))
	for i, m := range mods {
		out[i] = m.Name()
	}
	return out
}

func contains(names []string, want string) bool {
	for _, n := range names {
		if n == want {
			return true
		}
	}
	return false
}

func expectRaise(t *testing.T, err error, cls *Module) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s, got no error", cls.Name())
	}
	if !IsKindOfError(err, cls) {
		t.Fatalf("error = %v, want %s", err, cls.Name())
	}
}

func defineClass(t *testing.T, rt *Runtime, name string, super *Module) *Module {
	t.Helper()
	c, err := rt.DefineClass(nil, name, super, nil)
	if err != nil {
		t.Fatalf("DefineClass(%s): %v", name, err)
	}
	return c
}

func defineModule(t *testing.T, rt *Runtime, name string) *Module {
	t.Helper()
	m, err := rt.DefineModule(name, nil)
	if err != nil {
		t.Fatalf("DefineModule(%s): %v", name, err)
	}
	return m
}

// defineBody defines a public method on m running fn.
func defineBody(t *testing.T, m *Module, name string, arity Arity, fn BodyFunc) {
	t.Helper()
	if err := m.DefineMethod(name, NewBodyMethod(fn, arity, Public)); err != nil {
		t.Fatalf("DefineMethod(%s): %v", name, err)
	}
}

// defineReturning defines a public zero-argument method returning a fresh
// string s.
func defineReturning(t *testing.T, m *Module, name, s string) {
	t.Helper()
	rt := m.Runtime()
	defineBody(t, m, name, FixedArity(0), func(*Thread, Value, []Value, *Proc) (Value, error) {
		return rt.String(s), nil
	})
}

func newInstance(t *testing.T, th *Thread, cls *Module, args ...Value) Value {
	t.Helper()
	return mustCall(t, th, cls, "new", args...)
}

// errMessage returns the exception message carried by err, without the class
// prefix Error adds.
func errMessage(err error) string {
	var re *RaiseError
	if errors.As(err, &re) {
		return re.Exception.Message()
	}
	return err.Error()
}
