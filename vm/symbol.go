package vm

import (
	"sync"
)

// ---------------------------------------------------------------------------
// SymbolTable: Interned names
// ---------------------------------------------------------------------------

// Symbol is an interned, immutable name. There is exactly one Symbol per
// distinct string in a runtime, and its Name shares storage with every other
// interned copy of that string.
type Symbol struct {
	Object
	name string
	id   uint32
}

// Name returns the interned string.
func (s *Symbol) Name() string { return s.name }

// ID returns the symbol's sequence number.
func (s *Symbol) ID() uint32 { return s.id }

// SymbolTable interns names to Symbols.
// Method names, constant names and variable names all pass through here so
// that table lookups can compare by identity first.
type SymbolTable struct {
	mu     sync.RWMutex
	byName map[string]*Symbol
	byID   []*Symbol
	class  *Module
}

// NewSymbolTable creates a new empty symbol table.
func NewSymbolTable() *SymbolTable {
	return &SymbolTable{
		byName: make(map[string]*Symbol),
		byID:   make([]*Symbol, 0, 256),
	}
}

// Intern returns the Symbol for name, creating it if needed.
func (st *SymbolTable) Intern(name string) *Symbol {
	// Fast path: read-only lookup
	st.mu.RLock()
	if sym, ok := st.byName[name]; ok {
		st.mu.RUnlock()
		return sym
	}
	st.mu.RUnlock()

	st.mu.Lock()
	defer st.mu.Unlock()

	// Double-check after acquiring write lock
	if sym, ok := st.byName[name]; ok {
		return sym
	}

	// Copy so the interned string never aliases a caller's buffer.
	owned := string([]byte(name))
	sym := &Symbol{name: owned, id: uint32(len(st.byID))}
	sym.init(st.class)
	sym.SetFlag(FlagFrozen)
	st.byName[owned] = sym
	st.byID = append(st.byID, sym)
	return sym
}

// Lookup returns the Symbol for name without creating one.
func (st *SymbolTable) Lookup(name string) (*Symbol, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	sym, ok := st.byName[name]
	return sym, ok
}

// Len returns the number of interned symbols.
func (st *SymbolTable) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.byID)
}

// setClass fixes up the class of symbols interned during bootstrap, before
// Symbol existed.
func (st *SymbolTable) setClass(cls *Module) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.class = cls
	for _, sym := range st.byID {
		sym.class.Store(cls)
	}
}

// Intern returns the canonical copy of name.
func (rt *Runtime) Intern(name string) string {
	return rt.symbols.Intern(name).name
}

// Symbol returns the Symbol for name.
func (rt *Runtime) Symbol(name string) *Symbol {
	return rt.symbols.Intern(name)
}

// Symbols returns the runtime's symbol table.
func (rt *Runtime) Symbols() *SymbolTable {
	return rt.symbols
}
