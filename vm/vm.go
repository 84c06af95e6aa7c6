package vm

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/tliron/commonlog"
)

// ---------------------------------------------------------------------------
// Runtime: one object space
// ---------------------------------------------------------------------------

// DefaultMaxCallDepth bounds the frame stack of a Thread.
const DefaultMaxCallDepth = 10000

// Options configures a Runtime.
type Options struct {
	// SafeLevel is the initial security level (0-4).
	SafeLevel int

	// MaxCallDepth bounds nested calls per thread; past it dispatch raises
	// SystemStackError. Zero selects DefaultMaxCallDepth.
	MaxCallDepth int

	// AliasRootFallback makes alias and visibility changes in a plain
	// module fall back to Object's methods when the name is not found.
	AliasRootFallback bool

	// Logger receives runtime diagnostics. Nil selects "garnet.vm".
	Logger commonlog.Logger
}

// DefaultOptions returns the options NewRuntime uses for a zero value.
func DefaultOptions() Options {
	return Options{MaxCallDepth: DefaultMaxCallDepth}
}

// Runtime owns a class hierarchy, a symbol table and a method cache.
type Runtime struct {
	opts      Options
	log       commonlog.Logger
	safeLevel atomic.Int32
	nextID    atomic.Uint64
	symbols   *SymbolTable
	cache     *MethodCache

	// Core hierarchy
	BasicObjectClass *Module
	ObjectClass      *Module
	ModuleClass      *Module
	ClassClass       *Module
	KernelModule     *Module

	// Mixins
	ComparableModule *Module
	EnumerableModule *Module

	// Built-in types
	NumericClass *Module
	IntegerClass *Module
	FixnumClass  *Module
	BignumClass  *Module
	FloatClass   *Module
	StringClass  *Module
	SymbolClass  *Module
	ArrayClass   *Module
	ProcClass    *Module
	NilClass     *Module
	TrueClass    *Module
	FalseClass   *Module

	// Reflection
	MethodClass        *Module
	UnboundMethodClass *Module

	// Exception hierarchy
	ExceptionClass           *Module
	NoMemoryErrorClass       *Module
	ScriptErrorClass         *Module
	NotImplementedErrorClass *Module
	LoadErrorClass           *Module
	SecurityErrorClass       *Module
	SystemStackErrorClass    *Module
	SystemExitClass          *Module
	StandardErrorClass       *Module
	ArgumentErrorClass       *Module
	IndexErrorClass          *Module
	RangeErrorClass          *Module
	TypeErrorClass           *Module
	ZeroDivisionErrorClass   *Module
	LocalJumpErrorClass      *Module
	NameErrorClass           *Module
	NoMethodErrorClass       *Module
	RuntimeErrorClass        *Module
	FrozenErrorClass         *Module

	nilValue   *Object
	trueValue  *Object
	falseValue *Object
	topSelf    *Object
}

// NewRuntime creates and bootstraps a runtime.
func NewRuntime(opts Options) *Runtime {
	if opts.MaxCallDepth == 0 {
		opts.MaxCallDepth = DefaultMaxCallDepth
	}
	log := opts.Logger
	if log == nil {
		log = commonlog.GetLogger("garnet.vm")
	}
	rt := &Runtime{
		opts:    opts,
		log:     log,
		symbols: NewSymbolTable(),
		cache:   NewMethodCache(commonlog.GetLogger("garnet.cache")),
	}
	rt.bootstrap()
	rt.safeLevel.Store(int32(opts.SafeLevel))
	return rt
}

// ---------------------------------------------------------------------------
// Bootstrap: Create core classes
// ---------------------------------------------------------------------------

func (rt *Runtime) bootstrap() {
	// Phase 1: BasicObject, Object, Module and Class refer to each other,
	// so they are created bare and wired up afterwards.
	rt.createCoreClasses()

	// Phase 2: Kernel, mixed into Object
	rt.createKernelModule()

	// Phase 3: Mixins
	rt.createComparableModule()
	rt.createEnumerableModule()

	// Phase 4: Numeric tower
	rt.createNumericClass()
	rt.createIntegerClasses()
	rt.createFloatClass()

	// Phase 5: Strings and symbols
	rt.createStringClass()
	rt.createSymbolClass()

	// Phase 6: Containers
	rt.createArrayClass()
	rt.createProcClass()
	rt.createMethodClasses()

	// Phase 7: nil, true and false
	rt.createNilClass()
	rt.createBooleanClasses()

	// Phase 8: Exception hierarchy
	rt.createExceptionClasses()

	rt.topSelf = rt.NewObject(rt.ObjectClass)
	main := rt.mustSingleton(rt.topSelf)
	main.AddMethod0("to_s", func(t *Thread, _ Value) (Value, error) { return t.rt.String("main"), nil })
	main.AddMethod0("inspect", func(t *Thread, _ Value) (Value, error) { return t.rt.String("main"), nil })

	rt.log.Debugf("bootstrapped %d constants on Object", rt.ObjectClass.vars.Size())
}

func (rt *Runtime) createCoreClasses() {
	rt.BasicObjectClass = rt.newModule(KindClass, "BasicObject", nil)
	rt.ObjectClass = rt.newModule(KindClass, "Object", nil)
	rt.ModuleClass = rt.newModule(KindClass, "Module", nil)
	rt.ClassClass = rt.newModule(KindClass, "Class", nil)

	rt.ObjectClass.super.Store(rt.BasicObjectClass)
	rt.ModuleClass.super.Store(rt.ObjectClass)
	rt.ClassClass.super.Store(rt.ModuleClass)

	for _, c := range []*Module{rt.BasicObjectClass, rt.ObjectClass, rt.ModuleClass, rt.ClassClass} {
		c.class.Store(rt.ClassClass)
		if c != rt.ObjectClass {
			c.parent = rt.ObjectClass
		}
		rt.mustConstSet(c.baseName, c)
	}

	rt.BasicObjectClass.allocator = ObjectAllocator
	rt.ModuleClass.allocator = AllocatorFunc(func(rt *Runtime, cls *Module) (Value, error) {
		m := rt.newModule(KindModule, "", nil)
		m.class.Store(cls)
		return m, nil
	})
	rt.ClassClass.allocator = AllocatorFunc(func(rt *Runtime, cls *Module) (Value, error) {
		c := rt.newModule(KindClass, "", nil)
		c.super.Store(rt.ObjectClass)
		c.class.Store(cls)
		return c, nil
	})

	rt.registerObjectPrimitives()
	rt.registerModulePrimitives()
	rt.registerClassPrimitives()
}

// defineBootClass creates a named class under Object during bootstrap.
func (rt *Runtime) defineBootClass(name string, super *Module, alloc Allocator) *Module {
	c, err := super.NewSubclass(name, alloc, rt.ObjectClass)
	if err != nil {
		panic(fmt.Sprintf("vm: bootstrap %s: %v", name, err))
	}
	rt.mustConstSet(name, c)
	return c
}

// defineBootModule creates a named module under Object during bootstrap.
func (rt *Runtime) defineBootModule(name string) *Module {
	m := rt.newModule(KindModule, name, rt.ObjectClass)
	rt.mustConstSet(name, m)
	return m
}

func (rt *Runtime) mustConstSet(name string, v Value) {
	if _, err := rt.ObjectClass.ConstSet(name, v); err != nil {
		panic(fmt.Sprintf("vm: bootstrap constant %s: %v", name, err))
	}
}

// ---------------------------------------------------------------------------
// Accessors
// ---------------------------------------------------------------------------

// Options returns the options the runtime was created with.
func (rt *Runtime) Options() Options { return rt.opts }

// Logger returns the runtime logger.
func (rt *Runtime) Logger() commonlog.Logger { return rt.log }

// Cache returns the method cache.
func (rt *Runtime) Cache() *MethodCache { return rt.cache }

// Nil returns the nil singleton.
func (rt *Runtime) Nil() Value { return rt.nilValue }

// True returns the true singleton.
func (rt *Runtime) True() Value { return rt.trueValue }

// False returns the false singleton.
func (rt *Runtime) False() Value { return rt.falseValue }

// Bool maps a Go bool to true or false.
func (rt *Runtime) Bool(b bool) Value {
	if b {
		return rt.trueValue
	}
	return rt.falseValue
}

// TopSelf returns the top-level self, "main".
func (rt *Runtime) TopSelf() Value { return rt.topSelf }

// ---------------------------------------------------------------------------
// Security levels
// ---------------------------------------------------------------------------

// SafeLevel returns the current security level.
func (rt *Runtime) SafeLevel() int {
	return int(rt.safeLevel.Load())
}

// SetSafeLevel raises the security level. Lowering it is a SecurityError.
func (rt *Runtime) SetSafeLevel(level int) error {
	for {
		cur := rt.safeLevel.Load()
		if int32(level) < cur {
			return rt.NewSecurityError("tried to downgrade safe level from %d to %d", cur, level)
		}
		if rt.safeLevel.CompareAndSwap(cur, int32(level)) {
			return nil
		}
	}
}

// Secure returns a SecurityError when the safe level is at least level.
func (rt *Runtime) Secure(level int) error {
	if cur := rt.SafeLevel(); cur >= level {
		return rt.NewSecurityError("Insecure operation at level %d", cur)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Class paths
// ---------------------------------------------------------------------------

// ClassFromPath resolves a qualified name such as "A::B" from Object.
func (rt *Runtime) ClassFromPath(path string) (*Module, error) {
	if path == "" {
		return nil, rt.NewArgumentError("can't retrieve anonymous class")
	}
	cur := rt.ObjectClass
	for _, part := range strings.Split(path, "::") {
		v, ok := cur.ConstGetAt(part)
		if !ok {
			return nil, rt.NewArgumentError("undefined class/module %s", path)
		}
		mod, isMod := v.(*Module)
		if !isMod {
			return nil, rt.NewTypeError("%s does not refer to class/module", path)
		}
		cur = mod
	}
	return cur, nil
}

// ---------------------------------------------------------------------------
// Inspection helpers
// ---------------------------------------------------------------------------

// Inspect calls inspect on v and returns the result as a Go string. A
// failing or non-string inspect falls back to the default form.
func (rt *Runtime) Inspect(t *Thread, v Value) string {
	if t == nil {
		t = rt.NewThread()
	}
	res, err := t.Dispatch(v, "inspect", nil, nil, CallFunctional)
	if err == nil {
		if s, ok := res.(*String); ok {
			return s.GoString()
		}
	}
	return rt.describe(v)
}

// describe is the default "#<Foo:0x10>" form. Modules describe as their name.
func (rt *Runtime) describe(v Value) string {
	if mod, ok := v.(*Module); ok {
		return mod.Name()
	}
	return fmt.Sprintf("#<%s:0x%x>", RealClassOf(v).Name(), rt.ObjectID(v))
}

// Shutdown flushes the method cache. The runtime stays usable, but every
// resolution is searched afresh.
func (rt *Runtime) Shutdown() {
	rt.cache.Flush()
	rt.log.Info("runtime shut down")
}
