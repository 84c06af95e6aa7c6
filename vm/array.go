package vm

import "sync"

// Array is a mutable sequence of values.
//
// Slices and copies share their parent's backing store until either side
// writes. Both sides are marked shared; the first mutation of a shared array
// copies its elements out.
type Array struct {
	Object
	mu     sync.Mutex
	values []Value
	shared bool
}

// NewArray returns an array holding vals. vals is not retained.
func (rt *Runtime) NewArray(vals ...Value) *Array {
	a := &Array{values: append([]Value(nil), vals...)}
	a.init(rt.ArrayClass)
	return a
}

var arrayAllocator = AllocatorFunc(func(rt *Runtime, cls *Module) (Value, error) {
	a := &Array{}
	a.init(cls)
	return a, nil
})

// Len returns the element count.
func (a *Array) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.values)
}

// Values returns a snapshot of the elements.
func (a *Array) Values() []Value {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Value(nil), a.values...)
}

// At returns the element at i, counting from the end when negative.
func (a *Array) At(i int) (Value, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if i < 0 {
		i += len(a.values)
	}
	if i < 0 || i >= len(a.values) {
		return nil, false
	}
	return a.values[i], true
}

// IsShared reports whether a still shares its backing store.
func (a *Array) IsShared() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.shared
}

// unshareLocked gives a its own backing store. Caller holds a.mu.
func (a *Array) unshareLocked() {
	if a.shared {
		a.values = append(make([]Value, 0, len(a.values)), a.values...)
		a.shared = false
	}
}

// subseq returns a view of [begin, begin+n) sharing a's elements. The view's
// capacity is clipped so appending to it never writes into a.
func (rt *Runtime) subseq(a *Array, begin, n int) *Array {
	a.mu.Lock()
	defer a.mu.Unlock()
	end := begin + n
	sub := &Array{values: a.values[begin:end:end]}
	sub.init(rt.ArrayClass)
	if n > 0 {
		sub.shared = true
		a.shared = true
	}
	return sub
}

// shareFrom makes a share src's elements, as initialize_copy does.
func (a *Array) shareFrom(src *Array) {
	if a == src {
		return
	}
	src.mu.Lock()
	vals := src.values[:len(src.values):len(src.values)]
	src.shared = true
	src.mu.Unlock()

	a.mu.Lock()
	a.values = vals
	a.shared = true
	a.mu.Unlock()
}

// modify runs fn on a's elements after the frozen and safe level checks,
// unsharing them first.
func (rt *Runtime) modify(a *Array, fn func(vals []Value) []Value) error {
	if rt.SafeLevel() >= 4 && !a.IsTainted() {
		return rt.NewSecurityError("Insecure: can't modify array")
	}
	if a.IsFrozen() {
		return rt.NewFrozenError("array")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.unshareLocked()
	a.values = fn(a.values)
	return nil
}

// normalizeRange clips (start, n) against length the way Array#[] does. ok
// is false when start lies outside the array.
func normalizeRange(start, n, length int) (int, int, bool) {
	if start < 0 {
		start += length
	}
	if start < 0 || start > length || n < 0 {
		return 0, 0, false
	}
	if start+n > length {
		n = length - start
	}
	return start, n, true
}
