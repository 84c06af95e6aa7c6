package vm

import (
	"sort"
	"sync"
)

// MethodEntry is a search result: the method and the chain position it was
// found at. Origin is the module whose super link continues a super call; it
// may be an included-module wrapper.
type MethodEntry struct {
	Method Method
	Origin *Module
}

// IsUndefined reports whether the search found nothing.
func (e MethodEntry) IsUndefined() bool {
	return e.Method == nil || e.Method.IsUndefined()
}

var notFound = MethodEntry{Method: Undefined}

// MethodTable holds a module's own methods and the resolutions it has cached
// from its ancestors. Included-module wrappers share their delegate's table by
// pointer, so a table is identified by its address.
//
// Callers hold mu for single short reads or writes. When both the method
// cache lock and a table lock are needed, the cache lock is taken first.
type MethodTable struct {
	mu      sync.Mutex
	methods map[string]Method
	cached  map[string]MethodEntry
}

func newMethodTable() *MethodTable {
	return &MethodTable{
		methods: make(map[string]Method),
		cached:  make(map[string]MethodEntry),
	}
}

// Lookup returns the method stored locally under name, including the
// Undefined sentinel.
func (mt *MethodTable) Lookup(name string) (Method, bool) {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	m, ok := mt.methods[name]
	return m, ok
}

// lookupAny returns a local method or, failing that, a cached resolution.
func (mt *MethodTable) lookupAny(name string, useCache bool) (MethodEntry, bool, bool) {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	if m, ok := mt.methods[name]; ok {
		return MethodEntry{Method: m}, true, false
	}
	if useCache {
		if e, ok := mt.cached[name]; ok {
			return e, true, true
		}
	}
	return MethodEntry{}, false, false
}

// put stores m under name, dropping any cached resolution for the name.
func (mt *MethodTable) put(name string, m Method) {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	delete(mt.cached, name)
	mt.methods[name] = m
}

func (mt *MethodTable) remove(name string) (Method, bool) {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	m, ok := mt.methods[name]
	if ok {
		delete(mt.methods, name)
		delete(mt.cached, name)
	}
	return m, ok
}

func (mt *MethodTable) storeCached(name string, e MethodEntry) {
	mt.mu.Lock()
	mt.cached[name] = e
	mt.mu.Unlock()
}

func (mt *MethodTable) evict(name string) {
	mt.mu.Lock()
	delete(mt.cached, name)
	mt.mu.Unlock()
}

// Has reports whether name has a local entry.
func (mt *MethodTable) Has(name string) bool {
	_, ok := mt.Lookup(name)
	return ok
}

// Names returns the locally defined names in sorted order, including names
// holding the Undefined sentinel.
func (mt *MethodTable) Names() []string {
	mt.mu.Lock()
	names := make([]string, 0, len(mt.methods))
	for name := range mt.methods {
		names = append(names, name)
	}
	mt.mu.Unlock()
	sort.Strings(names)
	return names
}

// Snapshot returns a copy of the local methods.
func (mt *MethodTable) Snapshot() map[string]Method {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	out := make(map[string]Method, len(mt.methods))
	for k, v := range mt.methods {
		out[k] = v
	}
	return out
}

// Len returns the number of local entries.
func (mt *MethodTable) Len() int {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	return len(mt.methods)
}

// CachedLen returns the number of cached resolutions.
func (mt *MethodTable) CachedLen() int {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	return len(mt.cached)
}
