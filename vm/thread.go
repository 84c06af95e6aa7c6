package vm

import (
	"errors"
	"fmt"
)

// IterState marks whether a frame was entered with a block.
type IterState uint8

const (
	IterNot IterState = iota
	IterPre
)

// Frame is one activation on a Thread's stack.
type Frame struct {
	Self  Value
	Args  []Value
	Name  string
	Class *Module // chain position of the running method; nil disables super
	Block *Proc
	Iter  IterState

	// Lexical is the enclosing module used for definitions made without an
	// explicit target.
	Lexical *Module

	// Visibility is the default for methods defined from this frame, set
	// by argument-less public/private/protected/module_function.
	Visibility Visibility
}

// lastCall records why the most recent dispatch fell back to method_missing.
type lastCall uint8

const (
	callOK lastCall = iota
	callUndefined
	callPrivate
	callProtected
	callSuper
)

// Thread is the per-goroutine execution state: the frame stack plus the
// last-call status method_missing reports from. A Thread must only be used
// by one goroutine at a time.
type Thread struct {
	rt       *Runtime
	frames   []*Frame
	maxDepth int
	status   lastCall

	inspect map[*Object]bool
}

// NewThread creates a thread whose bottom frame runs as the top-level self.
func (rt *Runtime) NewThread() *Thread {
	t := &Thread{rt: rt, maxDepth: rt.opts.MaxCallDepth}
	t.frames = append(t.frames, &Frame{
		Self:       rt.topSelf,
		Name:       "<main>",
		Lexical:    rt.ObjectClass,
		Visibility: Private,
	})
	return t
}

// Runtime returns the owning runtime.
func (t *Thread) Runtime() *Runtime { return t.rt }

// Frame returns the current frame.
func (t *Thread) Frame() *Frame {
	return t.frames[len(t.frames)-1]
}

// CallerFrame returns the frame below the current one. Native methods use it
// to act on the code that called them.
func (t *Thread) CallerFrame() *Frame {
	if len(t.frames) < 2 {
		return t.frames[0]
	}
	return t.frames[len(t.frames)-2]
}

// Self returns the current frame's self.
func (t *Thread) Self() Value { return t.Frame().Self }

// Depth returns the number of frames above the bottom frame.
func (t *Thread) Depth() int { return len(t.frames) - 1 }

// BlockGiven reports whether the current frame has a block.
func (t *Thread) BlockGiven() bool { return t.Frame().Block != nil }

// Yield calls the current frame's block.
func (t *Thread) Yield(args ...Value) (Value, error) {
	blk := t.Frame().Block
	if blk == nil {
		return nil, t.rt.NewRaise(t.rt.LocalJumpErrorClass, "no block given")
	}
	return blk.Call(t, args...)
}

func (t *Thread) push(f *Frame) error {
	if t.maxDepth > 0 && len(t.frames) > t.maxDepth {
		return t.rt.NewStackError()
	}
	t.frames = append(t.frames, f)
	return nil
}

func (t *Thread) pop() {
	n := len(t.frames) - 1
	t.frames[n] = nil
	t.frames = t.frames[:n]
}

// Backtrace describes the live frames, innermost first.
func (t *Thread) Backtrace() []string {
	out := make([]string, 0, len(t.frames))
	for i := len(t.frames) - 1; i >= 0; i-- {
		out = append(out, frameLine(t.frames[i]))
	}
	return out
}

func frameLine(f *Frame) string {
	if f.Class == nil {
		return fmt.Sprintf("in `%s'", f.Name)
	}
	return fmt.Sprintf("in `%s' (%s)", f.Name, f.Class.Name())
}

// addBacktrace appends a line for f to a runtime exception passing through.
func addBacktrace(err error, f *Frame) {
	var re *RaiseError
	if errors.As(err, &re) {
		re.Exception.appendBacktrace(frameLine(f))
	}
}

// inspecting marks o as being inspected and reports whether it already was,
// which breaks cycles through instance variables.
func (t *Thread) inspecting(o *Object) bool {
	if t.inspect[o] {
		return true
	}
	if t.inspect == nil {
		t.inspect = make(map[*Object]bool)
	}
	t.inspect[o] = true
	return false
}

func (t *Thread) doneInspecting(o *Object) {
	delete(t.inspect, o)
}

// ConstGet resolves a constant from the running method's module, falling
// back to the frame's lexical module.
func (t *Thread) ConstGet(name string) (Value, error) {
	f := t.Frame()
	scope := f.Lexical
	if f.Class != nil {
		scope = f.Class.origin()
	}
	if scope == nil {
		scope = t.rt.ObjectClass
	}
	return scope.ConstGet(t, name)
}
