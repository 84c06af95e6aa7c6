package vm

import (
	"math"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/zeebo/xxh3"
)

const (
	varTableInitialCapacity = 8
	varTableMaxCapacity     = 1 << 30
	varTableLoadFactor      = 0.75
)

// varEntry is a bucket chain node. Nodes are never mutated once published;
// writers build replacement chains and swap the bucket head atomically.
type varEntry struct {
	hash  uint64
	name  string
	value Value
	next  *varEntry
}

type varBuckets struct {
	slots     []atomic.Pointer[varEntry]
	threshold int
}

func newVarBuckets(capacity int) *varBuckets {
	threshold := int(float64(capacity) * varTableLoadFactor)
	if capacity >= varTableMaxCapacity {
		threshold = math.MaxInt
	}
	return &varBuckets{
		slots:     make([]atomic.Pointer[varEntry], capacity),
		threshold: threshold,
	}
}

func (b *varBuckets) index(hash uint64) int {
	return int(hash & uint64(len(b.slots)-1))
}

// Variable is one name/value pair of a table snapshot.
type Variable struct {
	Name  string
	Value Value
}

// VarTable maps interned names to values for a single owner.
//
// Get never takes a lock: it loads the current bucket array and walks
// immutable nodes. Put and Remove serialize on the owner's mutex, rebuild
// the affected chain prefix and publish the new head. Growth doubles the
// bucket array and republishes it whole; the table never shrinks.
type VarTable struct {
	mu      sync.Mutex
	buckets atomic.Pointer[varBuckets]
	size    atomic.Int64
}

func hashName(name string) uint64 {
	return xxh3.HashString(name)
}

// sameString reports whether two strings share backing storage, the fast
// path for interned names.
func sameString(a, b string) bool {
	return len(a) == len(b) && (len(a) == 0 || unsafe.StringData(a) == unsafe.StringData(b))
}

func (e *varEntry) matches(hash uint64, name string) bool {
	return sameString(e.name, name) || (e.hash == hash && e.name == name)
}

// Get returns the value stored under name.
func (vt *VarTable) Get(name string) (Value, bool) {
	b := vt.buckets.Load()
	if b == nil {
		return nil, false
	}
	h := hashName(name)
	for e := b.slots[b.index(h)].Load(); e != nil; e = e.next {
		if e.matches(h, name) {
			return e.value, true
		}
	}
	return nil, false
}

// Contains reports whether name is present.
func (vt *VarTable) Contains(name string) bool {
	_, ok := vt.Get(name)
	return ok
}

// Put stores value under name and returns it.
func (vt *VarTable) Put(name string, value Value) Value {
	vt.mu.Lock()
	defer vt.mu.Unlock()

	b := vt.buckets.Load()
	if b == nil {
		b = newVarBuckets(varTableInitialCapacity)
		vt.buckets.Store(b)
	}
	if int(vt.size.Load())+1 > b.threshold {
		b = vt.grow(b)
	}

	h := hashName(name)
	slot := &b.slots[b.index(h)]
	head := slot.Load()
	for e := head; e != nil; e = e.next {
		if e.matches(h, name) {
			repl := &varEntry{hash: e.hash, name: e.name, value: value, next: e.next}
			slot.Store(rebuildChain(head, e, repl))
			return value
		}
	}
	slot.Store(&varEntry{hash: h, name: name, value: value, next: head})
	vt.size.Add(1)
	return value
}

// Remove deletes name and returns the value it held.
func (vt *VarTable) Remove(name string) (Value, bool) {
	vt.mu.Lock()
	defer vt.mu.Unlock()

	b := vt.buckets.Load()
	if b == nil {
		return nil, false
	}
	h := hashName(name)
	slot := &b.slots[b.index(h)]
	head := slot.Load()
	for e := head; e != nil; e = e.next {
		if e.matches(h, name) {
			slot.Store(rebuildChain(head, e, e.next))
			vt.size.Add(-1)
			return e.value, true
		}
	}
	return nil, false
}

// rebuildChain copies the nodes in front of target and links the copy to
// tail, leaving the published chain untouched for concurrent readers.
func rebuildChain(head, target, tail *varEntry) *varEntry {
	if head == target {
		return tail
	}
	first := &varEntry{hash: head.hash, name: head.name, value: head.value}
	last := first
	for e := head.next; e != target; e = e.next {
		n := &varEntry{hash: e.hash, name: e.name, value: e.value}
		last.next = n
		last = n
	}
	last.next = tail
	return first
}

// grow doubles the bucket array, keeping the relative order of every chain.
// At the capacity ceiling the table stops resizing and just chains deeper.
func (vt *VarTable) grow(old *varBuckets) *varBuckets {
	if len(old.slots) >= varTableMaxCapacity {
		return old
	}
	nb := newVarBuckets(len(old.slots) * 2)
	tails := make([]*varEntry, len(nb.slots))
	for i := range old.slots {
		for e := old.slots[i].Load(); e != nil; e = e.next {
			n := &varEntry{hash: e.hash, name: e.name, value: e.value}
			idx := nb.index(e.hash)
			if tails[idx] == nil {
				nb.slots[idx].Store(n)
			} else {
				tails[idx].next = n
			}
			tails[idx] = n
		}
	}
	vt.buckets.Store(nb)
	return nb
}

// Size returns the number of entries.
func (vt *VarTable) Size() int {
	return int(vt.size.Load())
}

// Capacity returns the current bucket count, zero before the first write.
func (vt *VarTable) Capacity() int {
	b := vt.buckets.Load()
	if b == nil {
		return 0
	}
	return len(b.slots)
}

// Entries returns a snapshot of the table. Concurrent writers may or may not
// be reflected.
func (vt *VarTable) Entries() []Variable {
	b := vt.buckets.Load()
	if b == nil {
		return nil
	}
	out := make([]Variable, 0, vt.Size())
	for i := range b.slots {
		for e := b.slots[i].Load(); e != nil; e = e.next {
			out = append(out, Variable{Name: e.name, Value: e.value})
		}
	}
	return out
}

// copyFrom adds every entry of src, for dup and clone.
func (vt *VarTable) copyFrom(src *VarTable) {
	for _, e := range src.Entries() {
		vt.Put(e.Name, e.Value)
	}
}
