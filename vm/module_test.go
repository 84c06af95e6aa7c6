package vm

import (
	"reflect"
	"strings"
	"testing"
)

// ---------------------------------------------------------------------------
// Inclusion and ancestry
// ---------------------------------------------------------------------------

func TestSubclassAncestors(t *testing.T) {
	rt, th := newTestRuntime(t)
	a := defineClass(t, rt, "A", nil)
	b := defineClass(t, rt, "B", a)

	obj := newInstance(t, th, b)
	if cls := mustCall(t, th, obj, "class"); cls != Value(b) {
		t.Errorf("B.new.class = %v, want B", cls)
	}

	want := []string{"B", "A", "Object", "Kernel", "BasicObject"}
	if got := moduleNames(b.Ancestors()); !reflect.DeepEqual(got, want) {
		t.Errorf("B.ancestors = %v, want %v", got, want)
	}
}

func TestIncludeIsIdempotent(t *testing.T) {
	rt, _ := newTestRuntime(t)
	m := defineModule(t, rt, "M")
	c := defineClass(t, rt, "C", nil)

	if err := c.IncludeModule(nil, m); err != nil {
		t.Fatal(err)
	}
	once := moduleNames(c.Ancestors())
	if err := c.IncludeModule(nil, m); err != nil {
		t.Fatal(err)
	}
	twice := moduleNames(c.Ancestors())

	if !reflect.DeepEqual(once, twice) {
		t.Errorf("ancestors after second include = %v, want %v", twice, once)
	}
	want := []string{"C", "M", "Object", "Kernel", "BasicObject"}
	if !reflect.DeepEqual(once, want) {
		t.Errorf("ancestors = %v, want %v", once, want)
	}
}

func TestIncludeSplicesNestedModulesInOrder(t *testing.T) {
	rt, _ := newTestRuntime(t)
	n := defineModule(t, rt, "N")
	m := defineModule(t, rt, "M")
	if err := m.IncludeModule(nil, n); err != nil {
		t.Fatal(err)
	}
	c := defineClass(t, rt, "C", nil)
	if err := c.IncludeModule(nil, m); err != nil {
		t.Fatal(err)
	}

	want := []string{"C", "M", "N", "Object", "Kernel", "BasicObject"}
	if got := moduleNames(c.Ancestors()); !reflect.DeepEqual(got, want) {
		t.Errorf("ancestors = %v, want %v", got, want)
	}
	if got := moduleNames(c.IncludedModules()); !reflect.DeepEqual(got, []string{"M", "N", "Kernel"}) {
		t.Errorf("included_modules = %v", got)
	}
	if !c.IncludesModule(n) {
		t.Error("C should include N through M")
	}
}

func TestIncludeSkipsModulesAlreadyInSuperclassChain(t *testing.T) {
	rt, _ := newTestRuntime(t)
	m := defineModule(t, rt, "M")
	a := defineClass(t, rt, "A", nil)
	if err := a.IncludeModule(nil, m); err != nil {
		t.Fatal(err)
	}
	b := defineClass(t, rt, "B", a)
	if err := b.IncludeModule(nil, m); err != nil {
		t.Fatal(err)
	}

	want := []string{"B", "A", "M", "Object", "Kernel", "BasicObject"}
	if got := moduleNames(b.Ancestors()); !reflect.DeepEqual(got, want) {
		t.Errorf("ancestors = %v, want %v", got, want)
	}
}

func TestIncludeRejectsClasses(t *testing.T) {
	rt, _ := newTestRuntime(t)
	a := defineClass(t, rt, "A", nil)
	b := defineClass(t, rt, "B", nil)
	expectRaise(t, b.IncludeModule(nil, a), rt.TypeErrorClass)
}

func TestIncludedHookRuns(t *testing.T) {
	rt, th := newTestRuntime(t)
	m := defineModule(t, rt, "M")
	c := defineClass(t, rt, "C", nil)

	var seen Value
	rt.mustSingleton(m).AddMethod1("included", func(t *Thread, _ Value, base Value) (Value, error) {
		seen = base
		return t.rt.Nil(), nil
	})
	if _, err := th.Send(c, "include", m); err != nil {
		t.Fatal(err)
	}
	if seen != Value(c) {
		t.Errorf("included hook saw %v, want C", seen)
	}
}

func TestModuleComparison(t *testing.T) {
	rt, th := newTestRuntime(t)
	a := defineClass(t, rt, "A", nil)
	b := defineClass(t, rt, "B", a)
	x := defineClass(t, rt, "X", nil)

	tests := []struct {
		recv, arg *Module
		op        string
		want      Value
	}{
		{b, a, "<", rt.True()},
		{a, b, "<", rt.False()},
		{a, a, "<=", rt.True()},
		{a, b, ">", rt.True()},
		{a, x, "<", rt.Nil()},
	}
	for _, tt := range tests {
		if got := mustCall(t, th, tt.recv, tt.op, tt.arg); got != tt.want {
			t.Errorf("%s %s %s = %v, want %v", tt.recv, tt.op, tt.arg, rt.Inspect(th, got), rt.Inspect(th, tt.want))
		}
	}

	_, err := th.Call(a, "<", rt.Int(1))
	expectRaise(t, err, rt.TypeErrorClass)
}

// ---------------------------------------------------------------------------
// Method cache coherence
// ---------------------------------------------------------------------------

func TestGreetScenario(t *testing.T) {
	rt, th := newTestRuntime(t)
	m := defineModule(t, rt, "M")
	defineReturning(t, m, "greet", "hi")
	a := defineClass(t, rt, "A", nil)
	if err := a.IncludeModule(nil, m); err != nil {
		t.Fatal(err)
	}
	obj := newInstance(t, th, a)

	if got := goStr(t, mustCall(t, th, obj, "greet")); got != "hi" {
		t.Fatalf("a.greet = %q, want %q", got, "hi")
	}
	defineReturning(t, m, "greet", "bye")
	if got := goStr(t, mustCall(t, th, obj, "greet")); got != "bye" {
		t.Errorf("a.greet after redefinition = %q, want %q", got, "bye")
	}
}

func TestCacheCoherenceAfterAncestorRedefinition(t *testing.T) {
	rt, th := newTestRuntime(t)
	a := defineClass(t, rt, "A", nil)
	b := defineClass(t, rt, "B", a)
	c := defineClass(t, rt, "C", b)
	defineReturning(t, a, "who", "A")
	obj := newInstance(t, th, c)

	if got := goStr(t, mustCall(t, th, obj, "who")); got != "A" {
		t.Fatalf("who = %q, want A", got)
	}
	if !contains(moduleNames(rt.Cache().Holders("who")), "C") {
		t.Fatal("C should hold a cached resolution of who")
	}

	defineReturning(t, b, "who", "B")
	if got := goStr(t, mustCall(t, th, obj, "who")); got != "B" {
		t.Errorf("who after defining in B = %q, want B", got)
	}

	defineReturning(t, a, "who", "A2")
	if err := b.RemoveMethod("who"); err != nil {
		t.Fatal(err)
	}
	if got := goStr(t, mustCall(t, th, obj, "who")); got != "A2" {
		t.Errorf("who after remove = %q, want A2", got)
	}
}

func TestIncludeInvalidatesCachedResolutions(t *testing.T) {
	rt, th := newTestRuntime(t)
	a := defineClass(t, rt, "A", nil)
	b := defineClass(t, rt, "B", a)
	defineReturning(t, a, "who", "A")
	obj := newInstance(t, th, b)
	mustCall(t, th, obj, "who")

	m := defineModule(t, rt, "M")
	defineReturning(t, m, "who", "M")
	if err := b.IncludeModule(nil, m); err != nil {
		t.Fatal(err)
	}
	if got := goStr(t, mustCall(t, th, obj, "who")); got != "M" {
		t.Errorf("who after include = %q, want M", got)
	}
	if stats := rt.Cache().Stats(); stats.ModuleIncludes == 0 {
		t.Error("ModuleIncludes counter not bumped")
	}
}

func TestWrappersNeverCache(t *testing.T) {
	rt, th := newTestRuntime(t)
	m := defineModule(t, rt, "M")
	defineReturning(t, m, "greet", "hi")
	a := defineClass(t, rt, "A", nil)
	if err := a.IncludeModule(nil, m); err != nil {
		t.Fatal(err)
	}
	mustCall(t, th, newInstance(t, th, a), "greet")
	mustCall(t, th, newInstance(t, th, a), "to_s")

	for _, h := range rt.Cache().Holders("to_s") {
		if h.IsIncluded() {
			t.Errorf("wrapper for %s holds a cached entry", h.Name())
		}
	}
}

// ---------------------------------------------------------------------------
// Aliases, undef and remove
// ---------------------------------------------------------------------------

func TestAliasBindsToMethodObject(t *testing.T) {
	rt, th := newTestRuntime(t)
	c := defineClass(t, rt, "C", nil)
	defineReturning(t, c, "foo", "old")
	if err := c.DefineAlias("bar", "foo"); err != nil {
		t.Fatal(err)
	}
	defineReturning(t, c, "foo", "new")
	obj := newInstance(t, th, c)

	if got := goStr(t, mustCall(t, th, obj, "bar")); got != "old" {
		t.Errorf("bar = %q, want old", got)
	}
	if got := goStr(t, mustCall(t, th, obj, "foo")); got != "new" {
		t.Errorf("foo = %q, want new", got)
	}
}

func TestAliasOfAliasFlattens(t *testing.T) {
	rt, _ := newTestRuntime(t)
	c := defineClass(t, rt, "C", nil)
	defineReturning(t, c, "foo", "x")
	if err := c.DefineAlias("bar", "foo"); err != nil {
		t.Fatal(err)
	}
	if err := c.DefineAlias("baz", "bar"); err != nil {
		t.Fatal(err)
	}
	meth, _ := c.Table().Lookup("baz")
	alias, ok := meth.(*AliasMethod)
	if !ok {
		t.Fatalf("baz is %T, want *AliasMethod", meth)
	}
	if alias.OriginalName() != "foo" {
		t.Errorf("OriginalName = %q, want foo", alias.OriginalName())
	}
	if _, nested := alias.Target().(*AliasMethod); nested {
		t.Error("alias of an alias should target the original method")
	}
}

func TestAliasMissingMethod(t *testing.T) {
	rt, _ := newTestRuntime(t)
	c := defineClass(t, rt, "C", nil)
	err := c.DefineAlias("bar", "nope")
	expectRaise(t, err, rt.NameErrorClass)
	if !strings.Contains(errMessage(err), "undefined method `nope' for class `C'") {
		t.Errorf("message = %q", errMessage(err))
	}
}

func TestAliasRootFallback(t *testing.T) {
	opts := DefaultOptions()
	opts.AliasRootFallback = true
	rt := NewRuntime(opts)
	m, err := rt.DefineModule("M", nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := m.DefineAlias("my_inspect", "inspect"); err != nil {
		t.Errorf("alias with root fallback: %v", err)
	}

	plain, _ := newTestRuntime(t)
	m2, _ := plain.DefineModule("M", nil)
	expectRaise(t, m2.DefineAlias("my_inspect", "inspect"), plain.NameErrorClass)
}

func TestUndefBlocksRemoveFallsThrough(t *testing.T) {
	rt, th := newTestRuntime(t)
	a := defineClass(t, rt, "A", nil)
	b := defineClass(t, rt, "B", a)
	defineReturning(t, a, "foo", "A")
	defineReturning(t, b, "foo", "B")
	obj := newInstance(t, th, b)

	if err := b.RemoveMethod("foo"); err != nil {
		t.Fatal(err)
	}
	if got := goStr(t, mustCall(t, th, obj, "foo")); got != "A" {
		t.Errorf("foo after remove = %q, want A", got)
	}

	if err := b.UndefineMethod("foo"); err != nil {
		t.Fatal(err)
	}
	_, err := th.Call(obj, "foo")
	expectRaise(t, err, rt.NoMethodErrorClass)
	if got := mustCall(t, th, obj, "respond_to?", rt.Symbol("foo")); got != rt.False() {
		t.Error("respond_to?(:foo) should be false after undef")
	}
	if got := goStr(t, mustCall(t, th, newInstance(t, th, a), "foo")); got != "A" {
		t.Errorf("A#foo affected by undef in B: %q", got)
	}
}

func TestRemoveAndUndefErrors(t *testing.T) {
	rt, _ := newTestRuntime(t)
	a := defineClass(t, rt, "A", nil)
	b := defineClass(t, rt, "B", a)
	defineReturning(t, a, "foo", "A")

	err := b.RemoveMethod("foo")
	expectRaise(t, err, rt.NameErrorClass)
	if !strings.Contains(errMessage(err), "method `foo' not defined in B") {
		t.Errorf("message = %q", errMessage(err))
	}
	expectRaise(t, b.Undef("nope"), rt.NameErrorClass)
}

// ---------------------------------------------------------------------------
// Constants and class variables
// ---------------------------------------------------------------------------

func TestConstantsLexicalAndInherited(t *testing.T) {
	rt, th := newTestRuntime(t)
	outer := defineModule(t, rt, "Outer")
	inner, err := rt.DefineModule("Inner", outer)
	if err != nil {
		t.Fatal(err)
	}
	if inner.Name() != "Outer::Inner" {
		t.Errorf("Name = %q, want Outer::Inner", inner.Name())
	}
	if _, err := outer.ConstSet("LIMIT", rt.Int(10)); err != nil {
		t.Fatal(err)
	}

	v, err := inner.ConstGet(th, "LIMIT")
	if err != nil {
		t.Fatal(err)
	}
	if goInt(t, v) != 10 {
		t.Errorf("Inner::LIMIT = %v, want 10", v)
	}

	a := defineClass(t, rt, "A", nil)
	b := defineClass(t, rt, "B", a)
	if _, err := a.ConstSet("X", rt.Int(1)); err != nil {
		t.Fatal(err)
	}
	if !b.ConstDefined("X") {
		t.Error("B should see A::X")
	}

	_, err = b.ConstGet(th, "Missing")
	expectRaise(t, err, rt.NameErrorClass)
	if !strings.Contains(errMessage(err), "uninitialized constant B::Missing") {
		t.Errorf("message = %q", errMessage(err))
	}
	_, err = a.ConstSet("lower", rt.Int(1))
	expectRaise(t, err, rt.NameErrorClass)
}

func TestConstMissingHook(t *testing.T) {
	rt, th := newTestRuntime(t)
	m := defineModule(t, rt, "Lazy")
	rt.mustSingleton(m).AddMethod1("const_missing", func(t *Thread, _ Value, name Value) (Value, error) {
		return t.rt.String("made " + name.(*Symbol).Name()), nil
	})
	v, err := m.ConstGet(th, "Thing")
	if err != nil {
		t.Fatal(err)
	}
	if got := goStr(t, v); got != "made Thing" {
		t.Errorf("const_missing result = %q", got)
	}
}

func TestAnonymousModuleNamedByConstant(t *testing.T) {
	rt, _ := newTestRuntime(t)
	m := rt.NewModule()
	if !m.IsAnonymous() || !strings.HasPrefix(m.Name(), "#<Module:0x") {
		t.Fatalf("fresh module name = %q", m.Name())
	}
	outer := defineModule(t, rt, "Outer")
	if _, err := outer.ConstSet("Named", m); err != nil {
		t.Fatal(err)
	}
	if m.Name() != "Outer::Named" {
		t.Errorf("Name = %q, want Outer::Named", m.Name())
	}
}

func TestRemoveConst(t *testing.T) {
	rt, _ := newTestRuntime(t)
	a := defineClass(t, rt, "A", nil)
	if _, err := a.ConstSet("K", rt.Int(3)); err != nil {
		t.Fatal(err)
	}
	v, err := a.RemoveConst("K")
	if err != nil || goInt(t, v) != 3 {
		t.Fatalf("RemoveConst = %v, %v", v, err)
	}
	_, err = a.RemoveConst("K")
	expectRaise(t, err, rt.NameErrorClass)
}

func TestClassVariablesShareWithAncestor(t *testing.T) {
	rt, _ := newTestRuntime(t)
	a := defineClass(t, rt, "A", nil)
	b := defineClass(t, rt, "B", a)

	if _, err := a.ClassVarSet("@@count", rt.Int(1)); err != nil {
		t.Fatal(err)
	}
	v, err := b.ClassVarGet("@@count")
	if err != nil || goInt(t, v) != 1 {
		t.Fatalf("B @@count = %v, %v", v, err)
	}
	if _, err := b.ClassVarSet("@@count", rt.Int(2)); err != nil {
		t.Fatal(err)
	}
	if b.Vars().Contains("@@count") {
		t.Error("assignment through B should update A's variable, not create B's")
	}
	v, _ = a.ClassVarGet("@@count")
	if goInt(t, v) != 2 {
		t.Errorf("A @@count = %v, want 2", v)
	}

	_, err = b.ClassVarGet("@@nope")
	expectRaise(t, err, rt.NameErrorClass)
}

// ---------------------------------------------------------------------------
// Reflection through dispatch
// ---------------------------------------------------------------------------

func TestModuleReflectionPrimitives(t *testing.T) {
	rt, th := newTestRuntime(t)
	c := defineClass(t, rt, "Point", nil)
	_, err := th.ExecuteUnder(c, func(t *Thread) (Value, error) {
		return t.CallFunctional(c, "attr_accessor", t.rt.Symbol("x"), t.rt.Symbol("y"))
	})
	if err != nil {
		t.Fatal(err)
	}

	names := symbolNames(t, mustCall(t, th, c, "instance_methods", rt.False()))
	for _, want := range []string{"x", "x=", "y", "y="} {
		if !contains(names, want) {
			t.Errorf("instance_methods(false) = %v, missing %s", names, want)
		}
	}

	p := newInstance(t, th, c)
	mustCall(t, th, p, "x=", rt.Int(4))
	if got := goInt(t, mustCall(t, th, p, "x")); got != 4 {
		t.Errorf("p.x = %d, want 4", got)
	}
	if got := mustCall(t, th, p, "y"); !IsNil(got) {
		t.Errorf("unset reader = %v, want nil", got)
	}
	if got := symbolNames(t, mustCall(t, th, p, "instance_variables")); !reflect.DeepEqual(got, []string{"@x"}) {
		t.Errorf("instance_variables = %v", got)
	}

	if got := mustCall(t, th, c, "method_defined?", rt.Symbol("x")); got != rt.True() {
		t.Error("method_defined?(:x) should be true")
	}
	if got := goStr(t, mustCall(t, th, c, "name")); got != "Point" {
		t.Errorf("name = %q", got)
	}
	if got := mustCall(t, th, rt.NewModule(), "name"); !IsNil(got) {
		t.Error("anonymous module name should be nil")
	}
}

func TestDefineMethodWithBlock(t *testing.T) {
	rt, th := newTestRuntime(t)
	c := defineClass(t, rt, "C", nil)
	body := rt.NewProc(nil, FixedArity(1), func(t *Thread, self Value, args []Value, _ *Proc) (Value, error) {
		return t.rt.NewArray(self, args[0]), nil
	})
	_, err := th.ExecuteUnder(c, func(t *Thread) (Value, error) {
		return t.Dispatch(c, "define_method", []Value{t.rt.Symbol("pair")}, body, CallFunctional)
	})
	if err != nil {
		t.Fatal(err)
	}

	obj := newInstance(t, th, c)
	pair := mustCall(t, th, obj, "pair", rt.Int(7)).(*Array).Values()
	if pair[0] != obj || goInt(t, pair[1]) != 7 {
		t.Errorf("pair = %v", pair)
	}
	_, err = th.Call(obj, "pair")
	expectRaise(t, err, rt.ArgumentErrorClass)
}

func TestClassEvalRebindsSelf(t *testing.T) {
	rt, th := newTestRuntime(t)
	c := defineClass(t, rt, "C", nil)
	var seen Value
	blk := rt.NewProc(nil, AnyArity, func(t *Thread, self Value, _ []Value, _ *Proc) (Value, error) {
		seen = t.Self()
		return self, nil
	})
	res, err := th.CallWithBlock(c, "class_eval", blk)
	if err != nil {
		t.Fatal(err)
	}
	if res != Value(c) || seen != Value(c) {
		t.Errorf("class_eval self = %v / %v, want C", res, seen)
	}
}
