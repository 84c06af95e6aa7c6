package vm

// ProcFunc is the Go body of a block. self is the receiver the block runs
// against; blk is a block passed to the block itself.
type ProcFunc func(t *Thread, self Value, args []Value, blk *Proc) (Value, error)

// Proc is a block object. Blocks are lenient about argument counts: arity is
// reported and enforced only when the proc backs a method.
type Proc struct {
	Object
	fn    ProcFunc
	self  Value
	arity Arity
}

// NewProc wraps fn as a block bound to self. A nil self binds to main.
func (rt *Runtime) NewProc(self Value, arity Arity, fn ProcFunc) *Proc {
	if self == nil {
		self = rt.topSelf
	}
	p := &Proc{fn: fn, self: self, arity: arity}
	p.init(rt.ProcClass)
	return p
}

// Arity returns the accepted argument range.
func (p *Proc) Arity() Arity { return p.arity }

// Self returns the receiver the proc was created against.
func (p *Proc) Self() Value { return p.self }

// Call runs the block against its own self.
func (p *Proc) Call(t *Thread, args ...Value) (Value, error) {
	res, err := p.fn(t, p.self, args, nil)
	if err == nil && res == nil {
		res = t.rt.Nil()
	}
	return res, err
}

// callAs runs the block with self rebound, as instance_eval, class_eval and
// define_method do. A frame is pushed when self changes so that t.Self
// reports the new receiver.
func (p *Proc) callAs(t *Thread, self Value, args []Value, blk *Proc) (Value, error) {
	if cur := t.Frame(); !Identical(cur.Self, self) {
		f := *cur
		f.Self = self
		if blk != nil {
			f.Block = blk
		}
		if err := t.push(&f); err != nil {
			return nil, err
		}
		defer t.pop()
	}
	res, err := p.fn(t, self, args, blk)
	if err == nil && res == nil {
		res = t.rt.Nil()
	}
	return res, err
}

// blockArg collapses yielded values into the single value a one-parameter
// block sees.
func (rt *Runtime) blockArg(args []Value) Value {
	switch len(args) {
	case 0:
		return rt.Nil()
	case 1:
		return args[0]
	}
	return rt.NewArray(args...)
}

// ---------------------------------------------------------------------------
// Proc primitives
// ---------------------------------------------------------------------------

func (rt *Runtime) createProcClass() {
	c := rt.defineBootClass("Proc", rt.ObjectClass, NotAllocatable)
	rt.ProcClass = c

	c.AddSingletonMethod("new", AnyArity, func(t *Thread, _ Value, _ []Value, blk *Proc) (Value, error) {
		if blk == nil {
			blk = t.CallerFrame().Block
		}
		if blk == nil {
			return nil, t.rt.NewArgumentError("tried to create Proc object without a block")
		}
		return blk, nil
	})

	call := func(t *Thread, self Value, args []Value, blk *Proc) (Value, error) {
		p := self.(*Proc)
		return p.callAs(t, p.self, args, blk)
	}
	c.AddMethodN("call", AnyArity, call)
	c.AddMethodN("[]", AnyArity, call)
	c.AddMethodN("yield", AnyArity, call)

	c.AddMethod0("arity", func(t *Thread, self Value) (Value, error) {
		return t.rt.Int(int64(self.(*Proc).arity.Int())), nil
	})
	c.AddMethod0("to_proc", func(t *Thread, self Value) (Value, error) {
		return self, nil
	})
}
