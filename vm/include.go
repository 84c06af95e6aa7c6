package vm

// ---------------------------------------------------------------------------
// Module inclusion
// ---------------------------------------------------------------------------

// newIncludedWrapper creates the hidden chain link for delegate. It shares the
// delegate's method table by pointer.
func (rt *Runtime) newIncludedWrapper(delegate, super *Module) *Module {
	w := &Module{
		rt:       rt,
		kind:     KindIncluded,
		table:    delegate.table,
		delegate: delegate,
		parent:   delegate.Parent(),
	}
	w.init(delegate.Class())
	w.super.Store(super)
	return w
}

// chainHasTable reports whether a module with table tbl is already in m's
// chain.
func (m *Module) chainHasTable(tbl *MethodTable) bool {
	for p := m; p != nil; p = p.super.Load() {
		if p.table == tbl {
			return true
		}
	}
	return false
}

// IncludeModule splices other, and the modules other itself includes, into
// m's chain directly above m. Including a module already in the chain is a
// no-op. When t is non-nil the included hook runs on other afterwards.
func (m *Module) IncludeModule(t *Thread, other *Module) error {
	return m.includeModule(t, other, true)
}

func (m *Module) includeModule(t *Thread, other *Module, hook bool) error {
	rt := m.rt
	if other == nil {
		return rt.NewTypeError("wrong argument type nil (expected Module)")
	}
	if other.kind != KindModule {
		return rt.NewTypeError("wrong argument type %s (expected Module)", RealClassOf(other).Name())
	}
	if m.IsFrozen() {
		return rt.NewFrozenError(describeFrozen(m))
	}
	if !m.IsTainted() && rt.SafeLevel() >= 4 {
		return rt.NewSecurityError("Insecure operation `include' at level %d", rt.SafeLevel())
	}
	if m.chainHasTable(other.table) {
		return nil
	}

	var spliced []*Module
	rt.cache.ModuleIncluded(m, other, func() []*Module {
		spliced = m.splice(other)
		return spliced
	})
	if len(spliced) == 0 {
		return nil
	}
	rt.log.Debugf("included %s in %s", other.Name(), m.Name())
	if !hook {
		return nil
	}
	return rt.callHook(t, other, "included", m)
}

// splice inserts wrappers for other and its own chain above m, keeping their
// order and skipping any module m's chain already contains. It returns the
// real modules it added.
func (m *Module) splice(other *Module) []*Module {
	m.table.mu.Lock()
	defer m.table.mu.Unlock()

	var added []*Module
	at := m
	for mod := other; mod != nil; mod = mod.super.Load() {
		real := mod.origin()
		if m.chainHasTable(real.table) {
			continue
		}
		w := m.rt.newIncludedWrapper(real, at.super.Load())
		at.super.Store(w)
		at = w
		added = append(added, real)
	}
	return added
}

// ExtendObject includes m into v's singleton class without running the
// included hook.
func (m *Module) ExtendObject(v Value) error {
	single, err := m.rt.SingletonClass(v)
	if err != nil {
		return err
	}
	return single.includeModule(nil, m, false)
}

// ---------------------------------------------------------------------------
// Ancestry
// ---------------------------------------------------------------------------

// Ancestors returns m and everything above it, skipping singleton classes
// and reporting wrappers as the modules they wrap.
func (m *Module) Ancestors() []*Module {
	var out []*Module
	for p := m; p != nil; p = p.super.Load() {
		switch p.kind {
		case KindSingleton:
			continue
		case KindIncluded:
			out = append(out, p.delegate)
		default:
			out = append(out, p)
		}
	}
	return out
}

// IncludedModules returns the modules included anywhere in m's chain.
func (m *Module) IncludedModules() []*Module {
	var out []*Module
	for p := m.super.Load(); p != nil; p = p.super.Load() {
		if p.kind == KindIncluded {
			out = append(out, p.delegate)
		}
	}
	return out
}

// IncludesModule reports whether other is included in m's chain.
func (m *Module) IncludesModule(other *Module) bool {
	for p := m.super.Load(); p != nil; p = p.super.Load() {
		if p.kind == KindIncluded && p.table == other.table {
			return true
		}
	}
	return false
}

// IsKindOf reports whether other is m or appears in m's chain.
func (m *Module) IsKindOf(other *Module) bool {
	return m.chainHasTable(other.table)
}

// Compare orders two modules by ancestry: -1 when m descends from other, 1
// when other descends from m, 0 when equal. ok is false when they are
// unrelated.
func (m *Module) Compare(other *Module) (cmp int, ok bool) {
	switch {
	case m == other:
		return 0, true
	case m.IsKindOf(other):
		return -1, true
	case other.IsKindOf(m):
		return 1, true
	}
	return 0, false
}
