package vm

import (
	"errors"
	"strings"
	"testing"
)

func TestExceptionHierarchy(t *testing.T) {
	rt, _ := newTestRuntime(t)
	tests := []struct {
		cls, ancestor *Module
	}{
		{rt.NoMethodErrorClass, rt.NameErrorClass},
		{rt.NameErrorClass, rt.StandardErrorClass},
		{rt.FrozenErrorClass, rt.RuntimeErrorClass},
		{rt.ZeroDivisionErrorClass, rt.StandardErrorClass},
		{rt.SecurityErrorClass, rt.ExceptionClass},
		{rt.SystemStackErrorClass, rt.ExceptionClass},
	}
	for _, tt := range tests {
		if !tt.cls.IsKindOf(tt.ancestor) {
			t.Errorf("%s should descend from %s", tt.cls.Name(), tt.ancestor.Name())
		}
	}
	if rt.SecurityErrorClass.IsKindOf(rt.StandardErrorClass) {
		t.Error("SecurityError should not be a StandardError")
	}
}

func TestRaiseClassWithMessage(t *testing.T) {
	rt, th := newTestRuntime(t)
	_, err := th.Send(rt.TopSelf(), "raise", rt.ArgumentErrorClass, rt.String("bad"))
	expectRaise(t, err, rt.ArgumentErrorClass)

	var re *RaiseError
	if !errors.As(err, &re) {
		t.Fatalf("error %T is not a *RaiseError", err)
	}
	if re.Class() != rt.ArgumentErrorClass {
		t.Errorf("Class = %v, want ArgumentError", re.Class())
	}
	if got := err.Error(); got != "ArgumentError: bad" {
		t.Errorf("Error() = %q, want %q", got, "ArgumentError: bad")
	}
	if got := goStr(t, mustCall(t, th, re.Exception, "message")); got != "bad" {
		t.Errorf("message = %q, want bad", got)
	}
	if got := goStr(t, mustCall(t, th, re.Exception, "inspect")); got != "#<ArgumentError: bad>" {
		t.Errorf("inspect = %q", got)
	}
}

func TestRaiseVariants(t *testing.T) {
	rt, th := newTestRuntime(t)

	_, err := th.Send(rt.TopSelf(), "raise", rt.String("oops"))
	expectRaise(t, err, rt.RuntimeErrorClass)
	if errMessage(err) != "oops" {
		t.Errorf("message = %q", errMessage(err))
	}

	_, err = th.Send(rt.TopSelf(), "raise")
	expectRaise(t, err, rt.RuntimeErrorClass)

	_, err = th.Send(rt.TopSelf(), "raise", rt.Int(3))
	expectRaise(t, err, rt.TypeErrorClass)
	if errMessage(err) != "exception class/object expected" {
		t.Errorf("message = %q", errMessage(err))
	}

	ex := mustCall(t, th, rt.IndexErrorClass, "new", rt.String("gone"))
	_, err = th.Send(rt.TopSelf(), "raise", ex)
	expectRaise(t, err, rt.IndexErrorClass)
	var re *RaiseError
	if errors.As(err, &re) && Value(re.Exception) != ex {
		t.Error("raising an exception object should raise that object")
	}
}

func TestExceptionDefaultMessage(t *testing.T) {
	rt, th := newTestRuntime(t)
	ex := mustCall(t, th, rt.RangeErrorClass, "new")
	if got := goStr(t, mustCall(t, th, ex, "message")); got != "RangeError" {
		t.Errorf("message = %q, want RangeError", got)
	}

	copied := mustCall(t, th, ex, "exception", rt.String("other"))
	if copied == ex {
		t.Error("exception(msg) should build a new exception")
	}
	if got := goStr(t, mustCall(t, th, copied, "message")); got != "other" {
		t.Errorf("message = %q, want other", got)
	}
	if mustCall(t, th, ex, "exception") != ex {
		t.Error("exception with no argument should return the receiver")
	}
}

func TestBacktraceCollectsFrames(t *testing.T) {
	rt, th := newTestRuntime(t)
	c := defineClass(t, rt, "Worker", nil)
	defineBody(t, c, "inner", FixedArity(0), func(t *Thread, self Value, _ []Value, _ *Proc) (Value, error) {
		return t.CallFunctional(self, "raise", t.rt.ArgumentErrorClass, t.rt.String("deep"))
	})
	defineBody(t, c, "outer", FixedArity(0), func(t *Thread, self Value, _ []Value, _ *Proc) (Value, error) {
		return t.CallFunctional(self, "inner")
	})

	_, err := th.Call(newInstance(t, th, c), "outer")
	expectRaise(t, err, rt.ArgumentErrorClass)
	var re *RaiseError
	errors.As(err, &re)
	lines := re.Exception.Backtrace()

	iInner, iOuter := -1, -1
	for i, l := range lines {
		switch l {
		case "in `inner' (Worker)":
			iInner = i
		case "in `outer' (Worker)":
			iOuter = i
		}
	}
	if iInner < 0 || iOuter < 0 || iInner > iOuter {
		t.Errorf("backtrace = %v, want inner before outer", lines)
	}
	if !strings.Contains(lines[0], "raise") {
		t.Errorf("innermost frame = %q, want raise", lines[0])
	}

	bt := stringValues(t, mustCall(t, th, re.Exception, "backtrace"))
	if len(bt) != len(lines) {
		t.Errorf("backtrace method returned %d lines, want %d", len(bt), len(lines))
	}
}

func TestUserDefinedExceptionClass(t *testing.T) {
	rt, th := newTestRuntime(t)
	custom := defineClass(t, rt, "ParseError", rt.StandardErrorClass)
	_, err := th.Send(rt.TopSelf(), "raise", custom, rt.String("line 3"))
	expectRaise(t, err, custom)
	expectRaise(t, err, rt.StandardErrorClass)
	if IsKindOfError(err, rt.TypeErrorClass) {
		t.Error("ParseError should not match TypeError")
	}
	if IsKindOfError(errors.New("plain"), rt.ExceptionClass) {
		t.Error("a plain Go error carries no exception")
	}
}
