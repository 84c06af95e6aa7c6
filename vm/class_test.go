package vm

import (
	"strings"
	"testing"
)

// ---------------------------------------------------------------------------
// Class definition
// ---------------------------------------------------------------------------

func TestDefineClass(t *testing.T) {
	rt, _ := newTestRuntime(t)
	c := defineClass(t, rt, "Widget", nil)

	if c.Name() != "Widget" {
		t.Errorf("Name = %q, want Widget", c.Name())
	}
	if c.Superclass() != rt.ObjectClass {
		t.Errorf("Superclass = %v, want Object", c.Superclass())
	}
	if ClassOf(c) != rt.ClassClass && !ClassOf(c).IsSingleton() {
		t.Errorf("class of Widget = %v", ClassOf(c))
	}
	if RealClassOf(c) != rt.ClassClass {
		t.Errorf("real class of Widget = %v, want Class", RealClassOf(c))
	}
	v, ok := rt.ObjectClass.ConstGetAt("Widget")
	if !ok || v != Value(c) {
		t.Error("Widget not registered as a constant on Object")
	}
}

func TestDefineClassReopens(t *testing.T) {
	rt, _ := newTestRuntime(t)
	a := defineClass(t, rt, "A", nil)
	again := defineClass(t, rt, "A", nil)
	if again != a {
		t.Error("redefining without a superclass should reopen the class")
	}
	same, err := rt.DefineClass(nil, "A", rt.ObjectClass, nil)
	if err != nil || same != a {
		t.Errorf("reopen with matching superclass = %v, %v", same, err)
	}
}

func TestDefineClassMismatch(t *testing.T) {
	rt, _ := newTestRuntime(t)
	a := defineClass(t, rt, "A", nil)
	defineClass(t, rt, "B", nil)
	defineModule(t, rt, "M")

	tests := []struct {
		name  string
		super *Module
		want  string
	}{
		{"B", a, "superclass mismatch for class B"},
		{"M", nil, "M is not a class"},
	}
	for _, tt := range tests {
		_, err := rt.DefineClass(nil, tt.name, tt.super, nil)
		expectRaise(t, err, rt.TypeErrorClass)
		if errMessage(err) != tt.want {
			t.Errorf("DefineClass(%s) error = %q, want %q", tt.name, errMessage(err), tt.want)
		}
	}

	_, err := rt.DefineModule("A", nil)
	expectRaise(t, err, rt.TypeErrorClass)
}

func TestNestedClassName(t *testing.T) {
	rt, _ := newTestRuntime(t)
	outer := defineModule(t, rt, "Shapes")
	c, err := rt.DefineClass(nil, "Circle", nil, outer)
	if err != nil {
		t.Fatal(err)
	}
	if c.Name() != "Shapes::Circle" {
		t.Errorf("Name = %q, want Shapes::Circle", c.Name())
	}
	if c.Parent() != outer {
		t.Errorf("Parent = %v, want Shapes", c.Parent())
	}
	if got, err := rt.ClassFromPath("Shapes::Circle"); err != nil || got != c {
		t.Errorf("ClassFromPath = %v, %v", got, err)
	}
}

func TestInheritedHook(t *testing.T) {
	rt, th := newTestRuntime(t)
	base := defineClass(t, rt, "Base", nil)
	var got []string
	rt.mustSingleton(base).AddMethod1("inherited", func(_ *Thread, _ Value, sub Value) (Value, error) {
		got = append(got, sub.(*Module).Name())
		return nil, nil
	})

	if _, err := rt.DefineClass(th, "Child", base, nil); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != "Child" {
		t.Errorf("inherited saw %v, want [Child]", got)
	}
}

// ---------------------------------------------------------------------------
// Class.new
// ---------------------------------------------------------------------------

func TestClassNewWithBlock(t *testing.T) {
	rt, th := newTestRuntime(t)
	base := defineClass(t, rt, "Base", nil)

	blk := rt.NewProc(nil, AnyArity, func(t *Thread, self Value, _ []Value, _ *Proc) (Value, error) {
		return t.CallFunctional(self, "attr_accessor", t.rt.Symbol("size"))
	})
	v, err := th.CallWithBlock(rt.ClassClass, "new", blk, base)
	if err != nil {
		t.Fatal(err)
	}
	c := v.(*Module)

	if !c.IsAnonymous() {
		t.Errorf("Class.new should be anonymous, got %q", c.Name())
	}
	if c.Superclass() != base {
		t.Errorf("Superclass = %v, want Base", c.Superclass())
	}
	obj := newInstance(t, th, c)
	mustCall(t, th, obj, "size=", rt.Int(3))
	if got := goInt(t, mustCall(t, th, obj, "size")); got != 3 {
		t.Errorf("size = %d, want 3", got)
	}

	if _, err := rt.ObjectClass.ConstSet("Sized", c); err != nil {
		t.Fatal(err)
	}
	if c.Name() != "Sized" {
		t.Errorf("Name after constant assignment = %q, want Sized", c.Name())
	}
}

func TestClassNewRejectsBadSuperclass(t *testing.T) {
	rt, th := newTestRuntime(t)
	c := defineClass(t, rt, "C", nil)
	sc, err := rt.SingletonClass(c)
	if err != nil {
		t.Fatal(err)
	}
	for _, super := range []*Module{rt.ClassClass, sc} {
		_, err := th.Call(rt.ClassClass, "new", super)
		expectRaise(t, err, rt.TypeErrorClass)
	}
	_, err = th.Call(sc, "new")
	expectRaise(t, err, rt.TypeErrorClass)
}

func TestNewRunsInitialize(t *testing.T) {
	rt, th := newTestRuntime(t)
	c := defineClass(t, rt, "Pair", nil)
	if err := c.DefineMethod("initialize", NewBodyMethod(BodyFunc(func(t *Thread, self Value, args []Value, _ *Proc) (Value, error) {
		if _, err := t.rt.SetInstanceVariable(self, "@left", args[0]); err != nil {
			return nil, err
		}
		return t.rt.SetInstanceVariable(self, "@right", args[1])
	}), FixedArity(2), Private)); err != nil {
		t.Fatal(err)
	}

	p := newInstance(t, th, c, rt.Int(1), rt.Int(2))
	if v, _ := rt.InstanceVariable(p, "@right"); goInt(t, v) != 2 {
		t.Errorf("@right = %v, want 2", v)
	}
	_, err := th.Call(c, "new", rt.Int(1))
	expectRaise(t, err, rt.ArgumentErrorClass)
	_, err = th.Call(p, "initialize", rt.Int(1), rt.Int(2))
	expectRaise(t, err, rt.NoMethodErrorClass)
}

func TestNotAllocatable(t *testing.T) {
	rt, th := newTestRuntime(t)
	for _, cls := range []*Module{rt.IntegerClass, rt.SymbolClass, rt.NilClass} {
		_, err := cls.Allocate()
		expectRaise(t, err, rt.TypeErrorClass)
		if !strings.HasPrefix(errMessage(err), "allocator undefined for") {
			t.Errorf("%s.allocate error = %q", cls.Name(), errMessage(err))
		}
	}
	_, err := th.Call(rt.NilClass, "new")
	expectRaise(t, err, rt.NoMethodErrorClass)
}

// ---------------------------------------------------------------------------
// Singleton classes
// ---------------------------------------------------------------------------

func TestClassMethodsAreInherited(t *testing.T) {
	rt, th := newTestRuntime(t)
	a := defineClass(t, rt, "A", nil)
	b := defineClass(t, rt, "B", a)
	defineBody(t, rt.mustSingleton(a), "create", FixedArity(0), func(t *Thread, self Value, _ []Value, _ *Proc) (Value, error) {
		return t.rt.String(self.(*Module).Name() + ".create"), nil
	})

	if got := goStr(t, mustCall(t, th, b, "create")); got != "B.create" {
		t.Errorf("B.create = %q, want B.create", got)
	}
	sa, _ := rt.SingletonClass(a)
	sb, _ := rt.SingletonClass(b)
	if sb.Super() != sa {
		t.Errorf("singleton of B has super %v, want singleton of A", sb.Super())
	}
	if sa.Name() != "#<Class:A>" {
		t.Errorf("singleton name = %q, want #<Class:A>", sa.Name())
	}
}

func TestSingletonClassIsStable(t *testing.T) {
	rt, th := newTestRuntime(t)
	obj := newInstance(t, th, defineClass(t, rt, "C", nil))
	s1, err := rt.SingletonClass(obj)
	if err != nil {
		t.Fatal(err)
	}
	s2, _ := rt.SingletonClass(obj)
	if s1 != s2 {
		t.Error("SingletonClass returned a different class on the second call")
	}
	if !s1.IsSingleton() || s1.Attached() != obj {
		t.Errorf("singleton kind=%v attached=%v", s1.Kind(), s1.Attached())
	}
	if HasSingletonMethods(obj) {
		t.Error("empty singleton class should not count as having methods")
	}
}

func TestSingletonClassOfImmediates(t *testing.T) {
	rt, _ := newTestRuntime(t)
	for _, v := range []Value{rt.Int(1), rt.NewFloat(1.5), rt.Symbol("a")} {
		_, err := rt.SingletonClass(v)
		expectRaise(t, err, rt.TypeErrorClass)
	}

	tests := []struct {
		v    Value
		want *Module
	}{
		{rt.Nil(), rt.NilClass},
		{rt.True(), rt.TrueClass},
		{rt.False(), rt.FalseClass},
	}
	for _, tt := range tests {
		got, err := rt.SingletonClass(tt.v)
		if err != nil || got != tt.want {
			t.Errorf("SingletonClass(%s) = %v, %v; want %v", rt.describe(tt.v), got, err, tt.want)
		}
	}
}

func TestExtendObject(t *testing.T) {
	rt, th := newTestRuntime(t)
	m := defineModule(t, rt, "Loud")
	defineReturning(t, m, "shout", "HEY")
	c := defineClass(t, rt, "C", nil)
	a := newInstance(t, th, c)
	b := newInstance(t, th, c)

	mustCall(t, th, a, "extend", m)
	if got := goStr(t, mustCall(t, th, a, "shout")); got != "HEY" {
		t.Errorf("shout = %q", got)
	}
	_, err := th.Call(b, "shout")
	expectRaise(t, err, rt.NoMethodErrorClass)
	if mustCall(t, th, a, "is_a?", m) != rt.True() {
		t.Error("extended object should be kind_of the module")
	}
}

func TestModuleFunction(t *testing.T) {
	rt, th := newTestRuntime(t)
	m := defineModule(t, rt, "Util")
	defineReturning(t, m, "helper", "ok")
	mustSend(t, th, m, "module_function", rt.Symbol("helper"))

	if got := goStr(t, mustCall(t, th, m, "helper")); got != "ok" {
		t.Errorf("Util.helper = %q", got)
	}
	c := defineClass(t, rt, "C", nil)
	if err := c.IncludeModule(nil, m); err != nil {
		t.Fatal(err)
	}
	obj := newInstance(t, th, c)
	_, err := th.Call(obj, "helper")
	expectRaise(t, err, rt.NoMethodErrorClass)
	if got := goStr(t, mustSend(t, th, obj, "helper")); got != "ok" {
		t.Errorf("functional helper = %q", got)
	}

	_, err = th.Send(c, "module_function", rt.Symbol("to_s"))
	if err == nil {
		t.Error("module_function should not exist on classes")
	}
}
