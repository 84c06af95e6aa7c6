package vm

import (
	"errors"
	"fmt"
	"sync"
)

// ---------------------------------------------------------------------------
// Exception objects
// ---------------------------------------------------------------------------

// Exception is an instance of Exception or one of its subclasses.
type Exception struct {
	Object
	mu        sync.Mutex
	message   string
	hasMsg    bool
	backtrace []string
}

// Message returns the exception message, or the class name when none was
// given.
func (e *Exception) Message() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.hasMsg {
		return RealClassOf(e).Name()
	}
	return e.message
}

func (e *Exception) setMessage(msg string) {
	e.mu.Lock()
	e.message, e.hasMsg = msg, true
	e.mu.Unlock()
}

// Backtrace returns the collected frame lines, innermost first.
func (e *Exception) Backtrace() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.backtrace...)
}

func (e *Exception) appendBacktrace(line string) {
	e.mu.Lock()
	e.backtrace = append(e.backtrace, line)
	e.mu.Unlock()
}

// RaiseError carries a runtime exception through Go error returns.
type RaiseError struct {
	Exception *Exception
}

func (e *RaiseError) Error() string {
	return fmt.Sprintf("%s: %s", RealClassOf(e.Exception).Name(), e.Exception.Message())
}

// Class returns the exception's class.
func (e *RaiseError) Class() *Module {
	return RealClassOf(e.Exception)
}

// IsKindOfError reports whether err carries an exception that is kind_of
// cls.
func IsKindOfError(err error, cls *Module) bool {
	var re *RaiseError
	if !errors.As(err, &re) {
		return false
	}
	return re.Exception.Class().IsKindOf(cls)
}

var exceptionAllocator = AllocatorFunc(func(rt *Runtime, cls *Module) (Value, error) {
	e := &Exception{}
	e.init(cls)
	return e, nil
})

// NewException creates an exception of class cls with msg.
func (rt *Runtime) NewException(cls *Module, msg string) *Exception {
	e := &Exception{}
	e.init(cls)
	e.setMessage(msg)
	return e
}

// NewRaise creates a RaiseError for a new exception of class cls.
func (rt *Runtime) NewRaise(cls *Module, format string, args ...any) *RaiseError {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	return &RaiseError{Exception: rt.NewException(cls, msg)}
}

// ---------------------------------------------------------------------------
// Error factories
// ---------------------------------------------------------------------------

func (rt *Runtime) NewTypeError(format string, args ...any) *RaiseError {
	return rt.NewRaise(rt.TypeErrorClass, format, args...)
}

func (rt *Runtime) NewNameError(format string, args ...any) *RaiseError {
	return rt.NewRaise(rt.NameErrorClass, format, args...)
}

func (rt *Runtime) NewNoMethodError(format string, args ...any) *RaiseError {
	return rt.NewRaise(rt.NoMethodErrorClass, format, args...)
}

func (rt *Runtime) NewArgumentError(format string, args ...any) *RaiseError {
	return rt.NewRaise(rt.ArgumentErrorClass, format, args...)
}

func (rt *Runtime) NewSecurityError(format string, args ...any) *RaiseError {
	return rt.NewRaise(rt.SecurityErrorClass, format, args...)
}

func (rt *Runtime) NewRuntimeError(format string, args ...any) *RaiseError {
	return rt.NewRaise(rt.RuntimeErrorClass, format, args...)
}

func (rt *Runtime) NewIndexError(format string, args ...any) *RaiseError {
	return rt.NewRaise(rt.IndexErrorClass, format, args...)
}

func (rt *Runtime) NewRangeError(format string, args ...any) *RaiseError {
	return rt.NewRaise(rt.RangeErrorClass, format, args...)
}

// NewFrozenError reports a modification of a frozen what.
func (rt *Runtime) NewFrozenError(what string) *RaiseError {
	return rt.NewRaise(rt.FrozenErrorClass, "can't modify frozen %s", what)
}

// NewArityError reports a wrong argument count.
func (rt *Runtime) NewArityError(got int, want Arity) *RaiseError {
	if want.Max < 0 {
		return rt.NewArgumentError("wrong number of arguments (%d for %d+)", got, want.Min)
	}
	if want.Min != want.Max {
		return rt.NewArgumentError("wrong number of arguments (%d for %d..%d)", got, want.Min, want.Max)
	}
	return rt.NewArgumentError("wrong number of arguments (%d for %d)", got, want.Min)
}

// NewNotAllocatableError reports an allocate on a class without allocator.
func (rt *Runtime) NewNotAllocatableError(cls *Module) *RaiseError {
	return rt.NewTypeError("allocator undefined for %s", cls.Name())
}

// NewStackError reports call depth past the limit.
func (rt *Runtime) NewStackError() *RaiseError {
	return rt.NewRaise(rt.SystemStackErrorClass, "stack level too deep")
}

func (rt *Runtime) NewZeroDivisionError() *RaiseError {
	return rt.NewRaise(rt.ZeroDivisionErrorClass, "divided by 0")
}

// noMethodError builds the default method_missing failure for name on recv.
func (rt *Runtime) noMethodError(t *Thread, recv Value, name string, status lastCall) *RaiseError {
	var format string
	switch status {
	case callPrivate:
		format = "private method `%s' called for %s"
	case callProtected:
		format = "protected method `%s' called for %s"
	case callSuper:
		format = "super: no superclass method `%s' for %s"
	default:
		format = "undefined method `%s' for %s"
	}
	return rt.NewNoMethodError(format, name, rt.describeForError(t, recv))
}

// describeForError renders recv the way NoMethodError messages do:
// "nil:NilClass", "3:Fixnum" or "#<Foo:0x10>".
func (rt *Runtime) describeForError(t *Thread, recv Value) string {
	if mod, ok := recv.(*Module); ok {
		return fmt.Sprintf("%s:%s", mod.Name(), RealClassOf(mod).Name())
	}
	desc := rt.Inspect(t, recv)
	if len(desc) > 0 && desc[0] == '#' {
		return desc
	}
	return fmt.Sprintf("%s:%s", desc, RealClassOf(recv).Name())
}

// ---------------------------------------------------------------------------
// Hierarchy
// ---------------------------------------------------------------------------

func (rt *Runtime) createExceptionClasses() {
	def := func(name string, super *Module) *Module {
		return rt.defineBootClass(name, super, nil)
	}

	rt.ExceptionClass = rt.defineBootClass("Exception", rt.ObjectClass, exceptionAllocator)
	rt.NoMemoryErrorClass = def("NoMemoryError", rt.ExceptionClass)
	rt.ScriptErrorClass = def("ScriptError", rt.ExceptionClass)
	rt.NotImplementedErrorClass = def("NotImplementedError", rt.ScriptErrorClass)
	rt.LoadErrorClass = def("LoadError", rt.ScriptErrorClass)
	rt.SecurityErrorClass = def("SecurityError", rt.ExceptionClass)
	rt.SystemStackErrorClass = def("SystemStackError", rt.ExceptionClass)
	rt.SystemExitClass = def("SystemExit", rt.ExceptionClass)

	rt.StandardErrorClass = def("StandardError", rt.ExceptionClass)
	rt.ArgumentErrorClass = def("ArgumentError", rt.StandardErrorClass)
	rt.IndexErrorClass = def("IndexError", rt.StandardErrorClass)
	rt.RangeErrorClass = def("RangeError", rt.StandardErrorClass)
	rt.TypeErrorClass = def("TypeError", rt.StandardErrorClass)
	rt.ZeroDivisionErrorClass = def("ZeroDivisionError", rt.StandardErrorClass)
	rt.LocalJumpErrorClass = def("LocalJumpError", rt.StandardErrorClass)
	rt.NameErrorClass = def("NameError", rt.StandardErrorClass)
	rt.NoMethodErrorClass = def("NoMethodError", rt.NameErrorClass)
	rt.RuntimeErrorClass = def("RuntimeError", rt.StandardErrorClass)
	rt.FrozenErrorClass = def("FrozenError", rt.RuntimeErrorClass)

	rt.registerExceptionPrimitives()
}

func (rt *Runtime) registerExceptionPrimitives() {
	ex := rt.ExceptionClass

	ex.AddSingletonMethod("exception", OptionalArity(0), func(t *Thread, self Value, args []Value, blk *Proc) (Value, error) {
		return t.Dispatch(self, "new", args, blk, CallNormal)
	})

	ex.AddPrivateMethod("initialize", Arity{Min: 0, Max: 1}, func(t *Thread, self Value, args []Value, _ *Proc) (Value, error) {
		e, ok := self.(*Exception)
		if !ok {
			return nil, t.rt.NewTypeError("wrong instance allocation")
		}
		if len(args) == 1 && !IsNil(args[0]) {
			s, err := t.rt.stringArg(t, args[0])
			if err != nil {
				return nil, err
			}
			e.setMessage(s)
		}
		return t.rt.Nil(), nil
	})

	ex.AddMethod0("message", func(t *Thread, self Value) (Value, error) {
		return t.Dispatch(self, "to_s", nil, nil, CallNormal)
	})

	ex.AddMethod0("to_s", func(t *Thread, self Value) (Value, error) {
		e, ok := self.(*Exception)
		if !ok {
			return t.rt.String(RealClassOf(self).Name()), nil
		}
		return t.rt.String(e.Message()), nil
	})

	ex.AddMethod0("inspect", func(t *Thread, self Value) (Value, error) {
		cls := RealClassOf(self).Name()
		e, ok := self.(*Exception)
		if !ok || e.Message() == "" {
			return t.rt.String(cls), nil
		}
		return t.rt.String(fmt.Sprintf("#<%s: %s>", cls, e.Message())), nil
	})

	ex.AddMethod0("backtrace", func(t *Thread, self Value) (Value, error) {
		e, ok := self.(*Exception)
		if !ok {
			return t.rt.Nil(), nil
		}
		lines := e.Backtrace()
		vals := make([]Value, len(lines))
		for i, l := range lines {
			vals[i] = t.rt.String(l)
		}
		return t.rt.NewArray(vals...), nil
	})

	ex.AddMethodN("exception", Arity{Min: 0, Max: 1}, func(t *Thread, self Value, args []Value, _ *Proc) (Value, error) {
		if len(args) == 0 {
			return self, nil
		}
		return t.Dispatch(RealClassOf(self), "new", args, nil, CallNormal)
	})
}

// raiseValue turns the arguments of Kernel#raise into an error.
func (rt *Runtime) raiseValue(t *Thread, args []Value) error {
	switch len(args) {
	case 0:
		return rt.NewRuntimeError("unhandled exception")
	case 1:
		if s, ok := args[0].(*String); ok {
			return rt.NewRuntimeError("%s", s.GoString())
		}
	}
	if rt.dispatchClass(args[0]).SearchMethod("exception").IsUndefined() {
		return rt.NewTypeError("exception class/object expected")
	}
	v, err := t.Dispatch(args[0], "exception", args[1:], nil, CallNormal)
	if err != nil {
		return err
	}
	e, ok := v.(*Exception)
	if !ok {
		return rt.NewTypeError("exception class/object expected")
	}
	return &RaiseError{Exception: e}
}
