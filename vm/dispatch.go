package vm

// ---------------------------------------------------------------------------
// Call dispatch
// ---------------------------------------------------------------------------

// Dispatch calls name on recv.
//
// The method is searched from recv's class (its singleton class for class
// receivers). A miss, a private method reached by a normal call, or a
// protected method reached from a caller whose self is not kind_of the
// defining module all go to method_missing with the name prepended as a
// symbol. method_missing itself and CallSend are exempt from visibility
// checks.
func (t *Thread) Dispatch(recv Value, name string, args []Value, blk *Proc, kind CallKind) (Value, error) {
	return t.dispatchFrom(t.rt.dispatchClass(recv), recv, name, args, blk, kind)
}

func (t *Thread) dispatchFrom(cls *Module, recv Value, name string, args []Value, blk *Proc, kind CallKind) (Value, error) {
	entry := cls.SearchMethod(name)
	if entry.IsUndefined() {
		status := callUndefined
		if kind == CallSuper {
			status = callSuper
		}
		return t.methodMissing(recv, name, args, blk, status)
	}

	meth, origin := entry.Method, entry.Origin
	vis := meth.Visibility()
	callName := name
	if a, ok := meth.(*AliasMethod); ok {
		meth, origin, callName = a.target, a.origin, a.originalName
	}

	if name != "method_missing" && kind != CallSend {
		if vis.IsPrivate() && kind == CallNormal {
			return t.methodMissing(recv, name, args, blk, callPrivate)
		}
		if vis == Protected {
			defined := meth.Owner()
			if defined == nil {
				defined = origin.origin()
			}
			if !t.rt.KindOf(t.Self(), defined) {
				return t.methodMissing(recv, name, args, blk, callProtected)
			}
		}
	}
	return t.call0(origin, recv, callName, args, blk, meth, false)
}

// call0 runs meth with a new frame. The frame is popped on every exit path;
// runtime exceptions passing through collect a backtrace line.
func (t *Thread) call0(origin *Module, recv Value, name string, args []Value, blk *Proc, meth Method, noSuper bool) (result Value, err error) {
	f := &Frame{
		Self:       recv,
		Args:       args,
		Name:       name,
		Block:      blk,
		Lexical:    t.lexicalFor(meth),
		Visibility: Public,
	}
	if blk != nil {
		f.Iter = IterPre
	}
	if !noSuper {
		f.Class = origin
	}
	if err := t.push(f); err != nil {
		return nil, err
	}
	defer func() {
		t.pop()
		if err != nil {
			addBacktrace(err, f)
		}
	}()

	if arity := meth.Arity(); !arity.Accepts(len(args)) {
		return nil, t.rt.NewArityError(len(args), arity)
	}
	result, err = meth.Invoke(t, recv, name, args, blk)
	if err == nil && result == nil {
		result = t.rt.Nil()
	}
	return result, err
}

// lexicalFor is the enclosing module of the method's owner.
func (t *Thread) lexicalFor(meth Method) *Module {
	if owner := meth.Owner(); owner != nil {
		if p := owner.Parent(); p != nil {
			return p
		}
	}
	return t.rt.ObjectClass
}

// methodMissing re-dispatches to method_missing with the name prepended.
// When method_missing cannot be found either, the default NoMethodError is
// raised directly.
func (t *Thread) methodMissing(recv Value, name string, args []Value, blk *Proc, status lastCall) (Value, error) {
	t.status = status
	if name == "method_missing" {
		return nil, t.rt.noMethodError(t, recv, name, status)
	}
	mmArgs := make([]Value, 0, len(args)+1)
	mmArgs = append(mmArgs, t.rt.Symbol(name))
	mmArgs = append(mmArgs, args...)
	return t.Dispatch(recv, "method_missing", mmArgs, blk, CallFunctional)
}

// Super calls the current method's name one step above its defining module,
// with the original receiver.
func (t *Thread) Super(args []Value, blk *Proc) (Value, error) {
	f := t.Frame()
	if f.Class == nil || f.Name == "" {
		return nil, t.rt.NewNoMethodError("super called outside of method")
	}
	super := f.Class.super.Load()
	if super == nil {
		return t.methodMissing(f.Self, f.Name, args, blk, callSuper)
	}
	return t.dispatchFrom(super, f.Self, f.Name, args, blk, CallSuper)
}

// ZSuper is a bare super: the current frame's arguments and block are passed
// along unchanged.
func (t *Thread) ZSuper() (Value, error) {
	f := t.Frame()
	return t.Super(f.Args, f.Block)
}

// ---------------------------------------------------------------------------
// Convenience entry points
// ---------------------------------------------------------------------------

// Call is an explicit-receiver call.
func (t *Thread) Call(recv Value, name string, args ...Value) (Value, error) {
	return t.Dispatch(recv, name, args, nil, CallNormal)
}

// CallWithBlock is an explicit-receiver call passing a block.
func (t *Thread) CallWithBlock(recv Value, name string, blk *Proc, args ...Value) (Value, error) {
	return t.Dispatch(recv, name, args, blk, CallNormal)
}

// CallFunctional is an implicit-receiver call; private methods are reachable.
func (t *Thread) CallFunctional(recv Value, name string, args ...Value) (Value, error) {
	return t.Dispatch(recv, name, args, nil, CallFunctional)
}

// Send is Kernel#send: private and protected methods are both reachable.
func (t *Thread) Send(recv Value, name string, args ...Value) (Value, error) {
	return t.Dispatch(recv, name, args, nil, CallSend)
}

// Funcall runs one call on a fresh thread. It suits host code that has no
// thread of its own.
func (rt *Runtime) Funcall(recv Value, name string, args ...Value) (Value, error) {
	return rt.NewThread().Send(recv, name, args...)
}

// callHook runs a hook method functionally. A nil thread skips hooks.
func (rt *Runtime) callHook(t *Thread, recv Value, name string, args ...Value) error {
	if t == nil {
		return nil
	}
	_, err := t.Dispatch(recv, name, args, nil, CallFunctional)
	return err
}
