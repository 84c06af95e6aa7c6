package vm

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"unicode"
	"unicode/utf8"
)

// ModuleKind tags the four flavors of module.
type ModuleKind uint8

const (
	KindModule ModuleKind = iota
	KindClass
	KindSingleton
	// KindIncluded is the hidden wrapper spliced into a chain by include. It
	// shares its delegate's method table and never caches.
	KindIncluded
)

func (k ModuleKind) String() string {
	switch k {
	case KindModule:
		return "module"
	case KindClass:
		return "class"
	case KindSingleton:
		return "singleton class"
	case KindIncluded:
		return "included module"
	}
	return "unknown"
}

// Module is a named method container. Classes, singleton classes and
// included-module wrappers are Modules with a different kind tag.
//
// The header's variable table holds constants, class variables and the
// module's own instance variables.
type Module struct {
	Object

	rt   *Runtime
	kind ModuleKind

	mu       sync.Mutex // guards baseName and parent
	baseName string
	parent   *Module

	super     atomic.Pointer[Module]
	table     *MethodTable
	delegate  *Module
	allocator Allocator
	attached  Value
}

func (rt *Runtime) newModule(kind ModuleKind, name string, parent *Module) *Module {
	m := &Module{rt: rt, kind: kind, baseName: name, parent: parent, table: newMethodTable()}
	if parent == nil && rt.ObjectClass != nil {
		m.parent = rt.ObjectClass
	}
	if kind == KindModule {
		m.init(rt.ModuleClass)
	} else {
		m.init(rt.ClassClass)
	}
	if name != "" {
		rt.Intern(name)
	}
	return m
}

// NewModule creates an anonymous module. It gets a name the first time it is
// stored in a constant.
func (rt *Runtime) NewModule() *Module {
	return rt.newModule(KindModule, "", nil)
}

// Runtime returns the owning runtime.
func (m *Module) Runtime() *Runtime { return m.rt }

// Kind returns the module's kind tag.
func (m *Module) Kind() ModuleKind { return m.kind }

// IsClass reports whether m is a class or singleton class.
func (m *Module) IsClass() bool { return m.kind == KindClass || m.kind == KindSingleton }

// IsSingleton reports whether m is a singleton class.
func (m *Module) IsSingleton() bool { return m.kind == KindSingleton }

// IsIncluded reports whether m is an included-module wrapper.
func (m *Module) IsIncluded() bool { return m.kind == KindIncluded }

// Delegate returns the wrapped module of an included-module wrapper.
func (m *Module) Delegate() *Module { return m.delegate }

// Attached returns the object a singleton class belongs to.
func (m *Module) Attached() Value { return m.attached }

// Table returns the method table.
func (m *Module) Table() *MethodTable { return m.table }

// Super returns the next link of the method-resolution chain, which may be
// an included-module wrapper.
func (m *Module) Super() *Module { return m.super.Load() }

// origin returns the real module behind a wrapper.
func (m *Module) origin() *Module {
	if m.kind == KindIncluded {
		return m.delegate
	}
	return m
}

// Parent returns the lexical parent.
func (m *Module) Parent() *Module {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.parent
}

// BaseName returns the unqualified name, or "" when anonymous.
func (m *Module) BaseName() string {
	if m.kind == KindIncluded {
		return m.delegate.BaseName()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.baseName
}

// Name returns the qualified name such as "A::B". Anonymous modules and
// singleton classes get a descriptive form instead.
func (m *Module) Name() string {
	switch m.kind {
	case KindIncluded:
		return m.delegate.Name()
	case KindSingleton:
		return "#<Class:" + m.rt.describe(m.attached) + ">"
	}
	m.mu.Lock()
	base, parent := m.baseName, m.parent
	m.mu.Unlock()
	if base == "" {
		word := "Module"
		if m.IsClass() {
			word = "Class"
		}
		return fmt.Sprintf("#<%s:0x%x>", word, m.rt.ObjectID(m))
	}
	if parent == nil || parent == m.rt.ObjectClass {
		return base
	}
	return parent.Name() + "::" + base
}

// IsAnonymous reports whether m or one of its lexical parents has no name.
func (m *Module) IsAnonymous() bool {
	switch m.kind {
	case KindIncluded:
		return m.delegate.IsAnonymous()
	case KindSingleton:
		return true
	}
	for p := m; p != nil && p != m.rt.ObjectClass; p = p.Parent() {
		if p.BaseName() == "" {
			return true
		}
	}
	return false
}

// nameIfAnonymous gives an anonymous module its name and namespace.
func (m *Module) nameIfAnonymous(name string, parent *Module) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.baseName == "" {
		m.baseName = name
		m.parent = parent
	}
}

// Superclass returns the nearest real class above m, skipping wrappers.
func (m *Module) Superclass() *Module {
	for p := m.super.Load(); p != nil; p = p.super.Load() {
		if p.kind != KindIncluded {
			return p
		}
	}
	return nil
}

func (m *Module) String() string { return m.Name() }

// ---------------------------------------------------------------------------
// Name validation
// ---------------------------------------------------------------------------

// IsConstantName reports whether name starts with an uppercase letter and
// continues with identifier characters.
func IsConstantName(name string) bool {
	r, size := utf8.DecodeRuneInString(name)
	if size == 0 || !unicode.IsUpper(r) {
		return false
	}
	return isIdentifierTail(name[size:])
}

func isIdentifierTail(s string) bool {
	for _, r := range s {
		if r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func isInstanceVariableName(name string) bool {
	return len(name) > 1 && name[0] == '@' && name[1] != '@' && isIdentifierTail(name[1:])
}

func isClassVariableName(name string) bool {
	return len(name) > 2 && strings.HasPrefix(name, "@@") && isIdentifierTail(name[2:])
}

// ---------------------------------------------------------------------------
// Security and frozen checks
// ---------------------------------------------------------------------------

// checkModifiable enforces the safe level and frozen state before a
// mutation of m. action completes "Insecure: can't ...".
func (m *Module) checkModifiable(action string) error {
	rt := m.rt
	if level := rt.SafeLevel(); level >= 4 && (m == rt.ObjectClass || !m.IsTainted()) {
		return rt.NewSecurityError("Insecure: can't %s", action)
	}
	if m.IsFrozen() {
		return rt.NewFrozenError(describeFrozen(m))
	}
	return nil
}

// ---------------------------------------------------------------------------
// Constants
// ---------------------------------------------------------------------------

// ConstSet binds a constant in m. Storing an anonymous module names it.
func (m *Module) ConstSet(name string, v Value) (Value, error) {
	if !IsConstantName(name) {
		return nil, m.rt.NewNameError("wrong constant name %s", name)
	}
	if err := m.checkModifiable("set constant"); err != nil {
		return nil, err
	}
	if mod, ok := v.(*Module); ok && (mod.kind == KindModule || mod.kind == KindClass) {
		mod.nameIfAnonymous(m.rt.Intern(name), m)
	}
	return m.vars.Put(m.rt.Intern(name), v), nil
}

// ConstGetAt returns a constant defined directly in m.
func (m *Module) ConstGetAt(name string) (Value, bool) {
	return m.origin().vars.Get(name)
}

// lookupConst resolves name through the lexical parents, then Object, then
// the superclass chain.
func (m *Module) lookupConst(name string) (Value, bool) {
	for p := m; p != nil; p = p.Parent() {
		if v, ok := p.origin().vars.Get(name); ok {
			return v, true
		}
	}
	if v, ok := m.rt.ObjectClass.vars.Get(name); ok {
		return v, true
	}
	for p := m.super.Load(); p != nil; p = p.super.Load() {
		if v, ok := p.origin().vars.Get(name); ok {
			return v, true
		}
	}
	return nil, false
}

// ConstGet resolves a constant, falling back to const_missing. t may be nil,
// in which case a missing constant is a NameError without the hook.
func (m *Module) ConstGet(t *Thread, name string) (Value, error) {
	if !IsConstantName(name) {
		return nil, m.rt.NewNameError("wrong constant name %s", name)
	}
	if v, ok := m.lookupConst(name); ok {
		return v, nil
	}
	if t != nil {
		return t.CallFunctional(m, "const_missing", m.rt.Symbol(name))
	}
	return nil, m.uninitializedConstant(name)
}

func (m *Module) uninitializedConstant(name string) error {
	if m == m.rt.ObjectClass {
		return m.rt.NewNameError("uninitialized constant %s", name)
	}
	return m.rt.NewNameError("uninitialized constant %s::%s", m.Name(), name)
}

// ConstDefined reports whether name resolves from m without const_missing.
func (m *Module) ConstDefined(name string) bool {
	_, ok := m.lookupConst(name)
	return ok
}

// RemoveConst deletes a constant defined directly in m.
func (m *Module) RemoveConst(name string) (Value, error) {
	if !IsConstantName(name) {
		return nil, m.rt.NewNameError("`%s' is not allowed as a constant name", name)
	}
	if err := m.checkModifiable("remove constant"); err != nil {
		return nil, err
	}
	v, ok := m.vars.Remove(name)
	if !ok {
		if m.ConstDefined(name) {
			return nil, m.rt.NewNameError("cannot remove %s::%s", m.Name(), name)
		}
		return nil, m.rt.NewNameError("constant %s::%s not defined", m.Name(), name)
	}
	return v, nil
}

// Constants lists constant names visible through m's ancestors. Object's
// constants are included only when asked of Object itself.
func (m *Module) Constants() []string {
	seen := make(map[string]bool)
	var names []string
	for p := m; p != nil; p = p.super.Load() {
		o := p.origin()
		if o == m.rt.ObjectClass && m != m.rt.ObjectClass {
			continue
		}
		for _, e := range o.vars.Entries() {
			if IsConstantName(e.Name) && !seen[e.Name] {
				seen[e.Name] = true
				names = append(names, e.Name)
			}
		}
	}
	return names
}

// ---------------------------------------------------------------------------
// Class variables
// ---------------------------------------------------------------------------

// classVarHolder returns the first module in the chain holding name.
func (m *Module) classVarHolder(name string) *Module {
	for p := m; p != nil; p = p.super.Load() {
		if o := p.origin(); o.vars.Contains(name) {
			return o
		}
	}
	return nil
}

// ClassVarGet reads a class variable through the chain.
func (m *Module) ClassVarGet(name string) (Value, error) {
	if h := m.classVarHolder(name); h != nil {
		v, _ := h.vars.Get(name)
		return v, nil
	}
	return nil, m.rt.NewNameError("uninitialized class variable %s in %s", name, m.Name())
}

// ClassVarSet writes to the first module already holding name, else to m.
func (m *Module) ClassVarSet(name string, v Value) (Value, error) {
	h := m.classVarHolder(name)
	if h == nil {
		h = m
	}
	if err := h.checkModifiable("modify class variable"); err != nil {
		return nil, err
	}
	return h.vars.Put(m.rt.Intern(name), v), nil
}

// ClassVarDefined reports whether name is visible from m.
func (m *Module) ClassVarDefined(name string) bool {
	return m.classVarHolder(name) != nil
}

// ClassVars lists class variable names visible from m.
func (m *Module) ClassVars() []string {
	seen := make(map[string]bool)
	var names []string
	for p := m; p != nil; p = p.super.Load() {
		for _, e := range p.origin().vars.Entries() {
			if isClassVariableName(e.Name) && !seen[e.Name] {
				seen[e.Name] = true
				names = append(names, e.Name)
			}
		}
	}
	return names
}

// RemoveClassVar deletes a class variable held directly by m.
func (m *Module) RemoveClassVar(name string) (Value, error) {
	if err := m.checkModifiable("remove class variable"); err != nil {
		return nil, err
	}
	if v, ok := m.vars.Remove(name); ok {
		return v, nil
	}
	if m.ClassVarDefined(name) {
		return nil, m.rt.NewNameError("cannot remove %s for %s", name, m.Name())
	}
	return nil, m.rt.NewNameError("class variable %s not defined for %s", name, m.Name())
}

// ---------------------------------------------------------------------------
// Method definition
// ---------------------------------------------------------------------------

// DefineMethod stores method under name, replacing any local entry, and
// invalidates every cached resolution of name. initialize is always private.
func (m *Module) DefineMethod(name string, method Method) error {
	if err := m.checkModifiable("define method"); err != nil {
		return err
	}
	name = m.rt.Intern(name)
	if name == "initialize" || name == "initialize_copy" {
		method = method.withVisibility(Private)
	}
	m.table.put(name, method.withOwner(m.origin()))
	m.rt.cache.Remove(name)
	return nil
}

func (m *Module) mustDefine(name string, method Method) {
	if err := m.DefineMethod(name, method); err != nil {
		panic(fmt.Sprintf("vm: defining %s#%s: %v", m.Name(), name, err))
	}
}

// AddMethod0 defines a public zero-argument native method.
// The Add* helpers panic if the module is frozen or the safe level forbids
// the definition; they are meant for setting up classes.
func (m *Module) AddMethod0(name string, fn Method0Func) {
	m.mustDefine(name, NewMethod0(fn))
}

// AddMethod1 defines a public one-argument native method.
func (m *Module) AddMethod1(name string, fn Method1Func) {
	m.mustDefine(name, NewMethod1(fn))
}

// AddMethod2 defines a public two-argument native method.
func (m *Module) AddMethod2(name string, fn Method2Func) {
	m.mustDefine(name, NewMethod2(fn))
}

// AddMethodN defines a public native method with an explicit arity.
func (m *Module) AddMethodN(name string, arity Arity, fn NativeFunc) {
	m.mustDefine(name, NewNativeMethod(arity, fn))
}

// AddPrivateMethod defines a private native method.
func (m *Module) AddPrivateMethod(name string, arity Arity, fn NativeFunc) {
	m.mustDefine(name, NewNativeMethod(arity, fn).withVisibility(Private))
}

// AddSingletonMethod defines a native method on m's singleton class.
func (m *Module) AddSingletonMethod(name string, arity Arity, fn NativeFunc) {
	m.rt.mustSingleton(m).mustDefine(name, NewNativeMethod(arity, fn))
}

// AddModuleFunction defines a private instance method and a public singleton
// copy.
func (m *Module) AddModuleFunction(name string, arity Arity, fn NativeFunc) {
	meth := NewNativeMethod(arity, fn)
	m.mustDefine(name, meth.withVisibility(Private))
	m.rt.mustSingleton(m).mustDefine(name, meth)
}

// DefineUserMethod defines a compiled body using the caller frame's default
// visibility, then runs the method_added hook. Under module_function the
// method is private and a public copy goes on the singleton class.
func (m *Module) DefineUserMethod(t *Thread, name string, body Body, arity Arity) error {
	vis := Public
	if t != nil {
		vis = t.Frame().Visibility
	}
	meth := NewBodyMethod(body, arity, vis)
	if vis == ModuleFunction {
		if err := m.DefineMethod(name, meth.withVisibility(Private)); err != nil {
			return err
		}
		single, err := m.rt.SingletonClass(m)
		if err != nil {
			return err
		}
		if err := single.DefineMethod(name, &WrapperMethod{methodBase: methodBase{visibility: Public}, target: meth}); err != nil {
			return err
		}
	} else if err := m.DefineMethod(name, meth); err != nil {
		return err
	}
	return m.methodAdded(t, name)
}

func (m *Module) methodAdded(t *Thread, name string) error {
	if m.kind == KindSingleton {
		return m.rt.callHook(t, m.attached, "singleton_method_added", m.rt.Symbol(name))
	}
	return m.rt.callHook(t, m, "method_added", m.rt.Symbol(name))
}

// UndefineMethod installs the Undefined sentinel under name, which stops
// lookup from reaching ancestors.
func (m *Module) UndefineMethod(name string) error {
	if err := m.checkModifiable("undefine method"); err != nil {
		return err
	}
	if m == m.rt.ObjectClass && name == "initialize" {
		m.rt.log.Warningf("undefining `initialize' may cause serious problem")
	}
	name = m.rt.Intern(name)
	m.table.put(name, Undefined)
	m.rt.cache.Remove(name)
	return nil
}

// Undef is undef_method: like UndefineMethod but a NameError when name does
// not currently resolve.
func (m *Module) Undef(name string) error {
	if m.SearchMethod(name).IsUndefined() {
		what := "class"
		if m.kind == KindModule {
			what = "module"
		}
		return m.rt.NewNameError("undefined method `%s' for %s `%s'", name, what, m.Name())
	}
	return m.UndefineMethod(name)
}

// RemoveMethod deletes the local entry for name so lookup falls through to
// ancestors. NameError if m has no local entry.
func (m *Module) RemoveMethod(name string) error {
	if err := m.checkModifiable("remove method"); err != nil {
		return err
	}
	if _, ok := m.table.remove(name); !ok {
		return m.rt.NewNameError("method `%s' not defined in %s", name, m.Name())
	}
	m.rt.cache.Remove(name)
	return nil
}

// ---------------------------------------------------------------------------
// Method search
// ---------------------------------------------------------------------------

// SearchMethod finds name starting at m. It checks m's own entries and
// cache, then each ancestor's own entries. An Undefined entry ends the
// search. Hits found in ancestors are cached in m unless m is a wrapper.
// The result is never nil: a miss returns the Undefined sentinel.
func (m *Module) SearchMethod(name string) MethodEntry {
	useCache := m.kind != KindIncluded
	if e, ok, cached := m.table.lookupAny(name, useCache); ok {
		if cached {
			return e
		}
		if e.Method.IsUndefined() {
			return notFound
		}
		return MethodEntry{Method: e.Method, Origin: m}
	}

	serial := m.rt.cache.Serial()
	for p := m.super.Load(); p != nil; p = p.super.Load() {
		meth, ok := p.table.Lookup(name)
		if !ok {
			continue
		}
		if meth.IsUndefined() {
			return notFound
		}
		entry := MethodEntry{Method: meth, Origin: p}
		if useCache {
			m.rt.cache.store(serial, name, m, entry)
		}
		return entry
	}
	return notFound
}

// IsMethodBound reports whether name resolves, optionally requiring that it
// is not private.
func (m *Module) IsMethodBound(name string, checkVisibility bool) bool {
	e := m.SearchMethod(name)
	if e.IsUndefined() {
		return false
	}
	return !checkVisibility || !e.Method.Visibility().IsPrivate()
}

// ---------------------------------------------------------------------------
// Aliases and visibility
// ---------------------------------------------------------------------------

// searchWithRootFallback is SearchMethod plus, when enabled, a retry on
// Object for plain modules.
func (m *Module) searchWithRootFallback(name string) MethodEntry {
	e := m.SearchMethod(name)
	if e.IsUndefined() && m.kind == KindModule && m.rt.opts.AliasRootFallback {
		e = m.rt.ObjectClass.SearchMethod(name)
	}
	return e
}

// DefineAlias binds newName to the method oldName currently resolves to.
// Aliasing an alias binds to the underlying target.
func (m *Module) DefineAlias(newName, oldName string) error {
	if m.IsFrozen() {
		return m.rt.NewFrozenError(describeFrozen(m))
	}
	if newName == oldName {
		return nil
	}
	if m == m.rt.ObjectClass && m.rt.SafeLevel() >= 4 {
		return m.rt.NewSecurityError("Insecure: can't alias method")
	}
	e := m.searchWithRootFallback(oldName)
	if e.IsUndefined() {
		what := "class"
		if m.kind == KindModule {
			what = "module"
		}
		return m.rt.NewNameError("undefined method `%s' for %s `%s'", oldName, what, m.Name())
	}
	alias := &AliasMethod{
		methodBase:   methodBase{visibility: e.Method.Visibility()},
		target:       e.Method,
		origin:       e.Origin,
		originalName: m.rt.Intern(oldName),
	}
	if a, ok := e.Method.(*AliasMethod); ok {
		alias.target, alias.origin, alias.originalName = a.target, a.origin, a.originalName
	}
	newName = m.rt.Intern(newName)
	m.table.put(newName, alias.withOwner(m.origin()))
	m.rt.cache.Remove(newName)
	return nil
}

// SetVisibility changes the visibility of each named method as seen from m.
// A method m defines itself is replaced by a copy; an inherited one is
// shadowed by a SuperMethod carrying the new visibility.
func (m *Module) SetVisibility(vis Visibility, names ...string) error {
	if m == m.rt.ObjectClass && m.rt.SafeLevel() >= 4 {
		return m.rt.NewSecurityError("Insecure: can't change method visibility")
	}
	for _, name := range names {
		e := m.searchWithRootFallback(name)
		if e.IsUndefined() {
			what := "class"
			if m.kind == KindModule {
				what = "module"
			}
			return m.rt.NewNameError("undefined method `%s' for %s `%s'", name, what, m.Name())
		}
		if e.Method.Visibility() == vis {
			continue
		}
		var err error
		if e.Origin == m {
			err = m.DefineMethod(name, e.Method.withVisibility(vis))
		} else {
			err = m.DefineMethod(name, &SuperMethod{methodBase: methodBase{visibility: vis}})
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// InstanceMethodNames lists the names reachable from m whose visibility
// passes filter. Names undefined lower in the chain hide ancestors' methods.
func (m *Module) InstanceMethodNames(filter func(Visibility) bool, includeInherited bool) []string {
	seen := make(map[string]bool)
	var names []string
	for p := m; p != nil; p = p.super.Load() {
		snap := p.table.Snapshot()
		local := make([]string, 0, len(snap))
		for name := range snap {
			local = append(local, name)
		}
		sort.Strings(local)
		for _, name := range local {
			if seen[name] {
				continue
			}
			seen[name] = true
			meth := snap[name]
			if meth.IsUndefined() {
				continue
			}
			if filter == nil || filter(meth.Visibility()) {
				names = append(names, name)
			}
		}
		if !includeInherited {
			break
		}
	}
	return names
}

// MethodDefined reports whether name resolves to a public or protected
// method.
func (m *Module) MethodDefined(name string) bool {
	return m.IsMethodBound(name, true)
}
