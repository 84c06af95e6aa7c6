package vm

import (
	"reflect"
	"testing"
)

func TestNewRuntimeDefaults(t *testing.T) {
	rt := NewRuntime(Options{})
	opts := rt.Options()
	if opts.MaxCallDepth != DefaultMaxCallDepth {
		t.Errorf("MaxCallDepth = %d, want %d", opts.MaxCallDepth, DefaultMaxCallDepth)
	}
	if rt.SafeLevel() != 0 {
		t.Errorf("SafeLevel = %d, want 0", rt.SafeLevel())
	}
	if rt.Logger() == nil {
		t.Error("runtime should have a logger")
	}

	opts = DefaultOptions()
	opts.SafeLevel = 2
	if got := NewRuntime(opts).SafeLevel(); got != 2 {
		t.Errorf("SafeLevel = %d, want 2", got)
	}
}

func TestBootstrapHierarchy(t *testing.T) {
	rt, _ := newTestRuntime(t)

	tests := []struct {
		cls  *Module
		want []string
	}{
		{rt.ObjectClass, []string{"Object", "Kernel", "BasicObject"}},
		{rt.ClassClass, []string{"Class", "Module", "Object", "Kernel", "BasicObject"}},
		{rt.StringClass, []string{"String", "Comparable", "Object", "Kernel", "BasicObject"}},
		{rt.ArrayClass, []string{"Array", "Enumerable", "Object", "Kernel", "BasicObject"}},
		{rt.FixnumClass, []string{"Fixnum", "Integer", "Numeric", "Comparable", "Object", "Kernel", "BasicObject"}},
	}
	for _, tt := range tests {
		if got := moduleNames(tt.cls.Ancestors()); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("%s.ancestors = %v, want %v", tt.cls.Name(), got, tt.want)
		}
	}

	for _, c := range []*Module{rt.BasicObjectClass, rt.ObjectClass, rt.ModuleClass, rt.ClassClass} {
		if RealClassOf(c) != rt.ClassClass {
			t.Errorf("class of %s = %v, want Class", c.Name(), RealClassOf(c))
		}
	}
	if RealClassOf(rt.KernelModule) != rt.ModuleClass {
		t.Errorf("class of Kernel = %v, want Module", RealClassOf(rt.KernelModule))
	}
	if rt.BasicObjectClass.Superclass() != nil {
		t.Error("BasicObject should have no superclass")
	}
}

func TestBootstrapConstants(t *testing.T) {
	rt, _ := newTestRuntime(t)
	for _, name := range []string{
		"BasicObject", "Object", "Module", "Class", "Kernel", "Comparable", "Enumerable",
		"Numeric", "Integer", "Fixnum", "Bignum", "Float", "String", "Symbol", "Array",
		"Proc", "Method", "UnboundMethod", "NilClass", "TrueClass", "FalseClass",
		"Exception", "StandardError", "NoMethodError", "SystemStackError",
	} {
		if !rt.ObjectClass.ConstDefined(name) {
			t.Errorf("constant %s is not defined", name)
		}
	}
}

func TestTopSelf(t *testing.T) {
	rt, th := newTestRuntime(t)
	if th.Self() != rt.TopSelf() {
		t.Error("a fresh thread's self should be main")
	}
	if got := goStr(t, mustCall(t, th, rt.TopSelf(), "to_s")); got != "main" {
		t.Errorf("main.to_s = %q", got)
	}
	if RealClassOf(rt.TopSelf()) != rt.ObjectClass {
		t.Errorf("main is a %v, want Object", RealClassOf(rt.TopSelf()))
	}
	if !th.Frame().Visibility.IsPrivate() {
		t.Error("top level definitions should default to private")
	}
}

func TestClassFromPath(t *testing.T) {
	rt, _ := newTestRuntime(t)
	outer := defineModule(t, rt, "Outer")
	inner, err := rt.DefineClass(nil, "Inner", nil, outer)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := outer.ConstSet("LIMIT", rt.Int(3)); err != nil {
		t.Fatal(err)
	}

	got, err := rt.ClassFromPath("Outer::Inner")
	if err != nil {
		t.Fatal(err)
	}
	if got != inner {
		t.Errorf("ClassFromPath = %v, want Outer::Inner", got)
	}

	tests := []struct {
		path string
		cls  *Module
	}{
		{"", rt.ArgumentErrorClass},
		{"Outer::Missing", rt.ArgumentErrorClass},
		{"Outer::LIMIT", rt.TypeErrorClass},
	}
	for _, tt := range tests {
		_, err := rt.ClassFromPath(tt.path)
		if !IsKindOfError(err, tt.cls) {
			t.Errorf("ClassFromPath(%q) error = %v, want %s", tt.path, err, tt.cls.Name())
		}
	}
}

func TestFuncall(t *testing.T) {
	rt, _ := newTestRuntime(t)
	c := defineClass(t, rt, "Quiet", nil)
	if err := c.DefineMethod("secret", NewBodyMethod(BodyFunc(func(t *Thread, _ Value, _ []Value, _ *Proc) (Value, error) {
		return t.rt.Int(7), nil
	}), FixedArity(0), Private)); err != nil {
		t.Fatal(err)
	}
	obj, err := rt.Funcall(c, "new")
	if err != nil {
		t.Fatal(err)
	}
	v, err := rt.Funcall(obj, "secret")
	if err != nil {
		t.Fatalf("Funcall of a private method: %v", err)
	}
	if v.(*Integer).String() != "7" {
		t.Errorf("secret = %v", v)
	}
}

func TestShutdownFlushesCache(t *testing.T) {
	rt, th := newTestRuntime(t)
	c := defineClass(t, rt, "Cached", nil)
	obj := newInstance(t, th, c)
	mustCall(t, th, obj, "to_s")
	if rt.Cache().Stats().Holders == 0 {
		t.Fatal("expected a cached resolution before shutdown")
	}

	rt.Shutdown()
	st := rt.Cache().Stats()
	if st.Holders != 0 || st.Flushes != 1 {
		t.Errorf("after Shutdown: %+v", st)
	}
	// Still usable.
	if _, err := th.Call(obj, "to_s"); err != nil {
		t.Errorf("call after Shutdown: %v", err)
	}
}

func TestSeparateRuntimesAreIsolated(t *testing.T) {
	rt1, _ := newTestRuntime(t)
	rt2, _ := newTestRuntime(t)
	defineClass(t, rt1, "OnlyHere", nil)
	if rt2.ObjectClass.ConstDefined("OnlyHere") {
		t.Error("a class defined in one runtime leaked into another")
	}
	if rt1.Symbol("x") == rt2.Symbol("x") {
		t.Error("runtimes should not share symbol tables")
	}
}
