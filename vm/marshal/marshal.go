// Package marshal dumps runtime values to a CBOR tree and loads them back.
//
// Objects are written once; later references to the same String, Array or
// object become links to the index of its first appearance, so shared and
// cyclic structures survive a round trip. Classes are written by qualified
// name and resolved with Runtime.ClassFromPath on load.
package marshal

import (
	"fmt"
	"math/big"

	"github.com/chazu/garnet/vm"
	"github.com/fxamacker/cbor/v2"
)

// DefaultDepthLimit bounds nesting when no limit is given.
const DefaultDepthLimit = 1000

var encMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("marshal: failed to create CBOR enc mode: %v", err))
	}
	encMode = em
}

// Kind tags a Node.
type Kind uint8

const (
	KindNil Kind = iota
	KindTrue
	KindFalse
	KindFixnum
	KindBignum
	KindFloat
	KindString
	KindSymbol
	KindArray
	KindObject
	KindException
	KindClass
	KindModule
	KindLink
)

var kindNames = [...]string{
	"nil", "true", "false", "fixnum", "bignum", "float", "string", "symbol",
	"array", "object", "exception", "class", "module", "link",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// Node is one value in a dump.
type Node struct {
	Kind  Kind    `cbor:"1,keyasint"`
	Class string  `cbor:"2,keyasint,omitempty"` // class path for instances of subclasses, classes and modules
	Int   int64   `cbor:"3,keyasint,omitempty"` // fixnum value or link index
	Text  string  `cbor:"4,keyasint,omitempty"` // bignum digits, symbol name, exception message
	Bytes []byte  `cbor:"5,keyasint,omitempty"` // string contents
	Float float64 `cbor:"6,keyasint,omitempty"`
	Elems []*Node `cbor:"7,keyasint,omitempty"`
	IVars []IVar  `cbor:"8,keyasint,omitempty"`
}

// IVar is a named instance variable.
type IVar struct {
	Name  string `cbor:"1,keyasint"`
	Value *Node  `cbor:"2,keyasint"`
}

// ---------------------------------------------------------------------------
// Dump
// ---------------------------------------------------------------------------

// Dump serializes v with DefaultDepthLimit.
func Dump(t *vm.Thread, v vm.Value) ([]byte, error) {
	return DumpLimit(t, v, DefaultDepthLimit)
}

// DumpLimit serializes v, failing with ArgumentError when nesting exceeds
// limit. A negative limit disables the check.
func DumpLimit(t *vm.Thread, v vm.Value, limit int) ([]byte, error) {
	n, err := Tree(t, v, limit)
	if err != nil {
		return nil, err
	}
	return encMode.Marshal(n)
}

// Tree builds the node tree for v without encoding it.
func Tree(t *vm.Thread, v vm.Value, limit int) (*Node, error) {
	d := &dumper{t: t, rt: t.Runtime(), seen: make(map[vm.Value]int)}
	return d.dump(v, limit)
}

type dumper struct {
	t    *vm.Thread
	rt   *vm.Runtime
	seen map[vm.Value]int
}

func (d *dumper) dump(v vm.Value, limit int) (*Node, error) {
	if limit == 0 {
		return nil, d.rt.NewArgumentError("exceed depth limit")
	}
	switch {
	case vm.IsNil(v):
		return &Node{Kind: KindNil}, nil
	case v == d.rt.True():
		return &Node{Kind: KindTrue}, nil
	case v == d.rt.False():
		return &Node{Kind: KindFalse}, nil
	}

	switch x := v.(type) {
	case *vm.Integer:
		if n, ok := x.Int64(); ok {
			return &Node{Kind: KindFixnum, Int: n}, nil
		}
		return &Node{Kind: KindBignum, Text: x.String()}, nil
	case *vm.Float:
		return &Node{Kind: KindFloat, Float: x.Float64()}, nil
	case *vm.Symbol:
		return &Node{Kind: KindSymbol, Text: x.Name()}, nil
	case *vm.Module:
		return d.dumpModule(x)
	case *vm.Proc:
		return nil, d.rt.NewTypeError("no _dump_data is defined for class Proc")
	case *vm.MethodObject:
		return nil, d.rt.NewTypeError("no _dump_data is defined for class %s", vm.RealClassOf(x).Name())
	}

	if idx, ok := d.seen[v]; ok {
		return &Node{Kind: KindLink, Int: int64(idx)}, nil
	}
	if vm.HasSingletonMethods(v) {
		return nil, d.rt.NewTypeError("singleton can't be dumped")
	}
	cls := vm.RealClassOf(v)
	if cls.IsAnonymous() {
		return nil, d.rt.NewTypeError("can't dump anonymous class %s", cls.Name())
	}
	d.seen[v] = len(d.seen)

	n := &Node{}
	switch x := v.(type) {
	case *vm.String:
		n.Kind = KindString
		n.Bytes = []byte(x.GoString())
		if cls != d.rt.StringClass {
			n.Class = cls.Name()
		}
	case *vm.Array:
		n.Kind = KindArray
		if cls != d.rt.ArrayClass {
			n.Class = cls.Name()
		}
		for _, e := range x.Values() {
			en, err := d.dump(e, limit-1)
			if err != nil {
				return nil, err
			}
			n.Elems = append(n.Elems, en)
		}
	case *vm.Exception:
		n.Kind = KindException
		n.Class = cls.Name()
		n.Text = x.Message()
	default:
		n.Kind = KindObject
		n.Class = cls.Name()
	}

	for _, name := range d.rt.InstanceVariableNames(v) {
		iv, _ := d.rt.InstanceVariable(v, name)
		in, err := d.dump(iv, limit-1)
		if err != nil {
			return nil, err
		}
		n.IVars = append(n.IVars, IVar{Name: name, Value: in})
	}
	return n, nil
}

func (d *dumper) dumpModule(m *vm.Module) (*Node, error) {
	if m.IsSingleton() {
		return nil, d.rt.NewTypeError("singleton class can't be dumped")
	}
	kind, what := KindModule, "module"
	if m.IsClass() {
		kind, what = KindClass, "class"
	}
	if m.IsAnonymous() {
		return nil, d.rt.NewTypeError("can't dump anonymous %s %s", what, m.Name())
	}
	return &Node{Kind: kind, Class: m.Name()}, nil
}

// ---------------------------------------------------------------------------
// Load
// ---------------------------------------------------------------------------

// Load decodes data produced by Dump into fresh runtime values.
func Load(t *vm.Thread, data []byte) (vm.Value, error) {
	var n Node
	if err := cbor.Unmarshal(data, &n); err != nil {
		return nil, t.Runtime().NewArgumentError("marshal data too short or malformed: %v", err)
	}
	return FromTree(t, &n)
}

// FromTree rebuilds a value from a node tree.
func FromTree(t *vm.Thread, n *Node) (vm.Value, error) {
	l := &loader{t: t, rt: t.Runtime()}
	return l.load(n)
}

type loader struct {
	t    *vm.Thread
	rt   *vm.Runtime
	objs []vm.Value
}

func (l *loader) formatError(format string, args ...any) error {
	return l.rt.NewArgumentError("dump format error (%s)", fmt.Sprintf(format, args...))
}

func (l *loader) load(n *Node) (vm.Value, error) {
	if n == nil {
		return nil, l.formatError("missing node")
	}
	switch n.Kind {
	case KindNil:
		return l.rt.Nil(), nil
	case KindTrue:
		return l.rt.True(), nil
	case KindFalse:
		return l.rt.False(), nil
	case KindFixnum:
		return l.rt.Int(n.Int), nil
	case KindBignum:
		b, ok := new(big.Int).SetString(n.Text, 10)
		if !ok {
			return nil, l.formatError("bad bignum %q", n.Text)
		}
		return l.rt.BigInt(b), nil
	case KindFloat:
		return l.rt.NewFloat(n.Float), nil
	case KindSymbol:
		return l.rt.Symbol(n.Text), nil
	case KindClass, KindModule:
		return l.loadModule(n)
	case KindLink:
		if n.Int < 0 || int(n.Int) >= len(l.objs) {
			return nil, l.formatError("bad link %d", n.Int)
		}
		return l.objs[n.Int], nil
	case KindString:
		return l.loadString(n)
	case KindArray:
		return l.loadArray(n)
	case KindException, KindObject:
		return l.loadObject(n)
	}
	return nil, l.formatError("unknown kind %s", n.Kind)
}

func (l *loader) loadModule(n *Node) (vm.Value, error) {
	m, err := l.rt.ClassFromPath(n.Class)
	if err != nil {
		return nil, err
	}
	if m.IsClass() != (n.Kind == KindClass) {
		return nil, l.rt.NewArgumentError("%s does not refer to %s", n.Class, n.Kind)
	}
	return m, nil
}

// instanceOf allocates an instance of the class named by n, or of def when
// n names none. The class must descend from def.
func (l *loader) instanceOf(n *Node, def *vm.Module) (vm.Value, error) {
	if n.Class == "" {
		return def.Allocate()
	}
	cls, err := l.rt.ClassFromPath(n.Class)
	if err != nil {
		return nil, err
	}
	if !cls.IsClass() || !cls.IsKindOf(def) {
		return nil, l.formatError("%s is not a %s", n.Class, def.Name())
	}
	return cls.Allocate()
}

func (l *loader) register(v vm.Value) {
	l.objs = append(l.objs, v)
}

func (l *loader) loadString(n *Node) (vm.Value, error) {
	v, err := l.instanceOf(n, l.rt.StringClass)
	if err != nil {
		return nil, err
	}
	l.register(v)
	if _, err := l.t.Call(v, "replace", l.rt.String(string(n.Bytes))); err != nil {
		return nil, err
	}
	return v, l.loadIVars(v, n)
}

func (l *loader) loadArray(n *Node) (vm.Value, error) {
	v, err := l.instanceOf(n, l.rt.ArrayClass)
	if err != nil {
		return nil, err
	}
	l.register(v)
	elems := make([]vm.Value, 0, len(n.Elems))
	for _, en := range n.Elems {
		e, err := l.load(en)
		if err != nil {
			return nil, err
		}
		elems = append(elems, e)
	}
	if len(elems) > 0 {
		if _, err := l.t.Call(v, "push", elems...); err != nil {
			return nil, err
		}
	}
	return v, l.loadIVars(v, n)
}

func (l *loader) loadObject(n *Node) (vm.Value, error) {
	if n.Class == "" {
		return nil, l.formatError("object without class")
	}
	def := l.rt.ObjectClass
	if n.Kind == KindException {
		def = l.rt.ExceptionClass
	}
	v, err := l.instanceOf(n, def)
	if err != nil {
		return nil, err
	}
	l.register(v)
	if n.Kind == KindException {
		if _, err := l.t.CallFunctional(v, "initialize", l.rt.String(n.Text)); err != nil {
			return nil, err
		}
	}
	return v, l.loadIVars(v, n)
}

func (l *loader) loadIVars(v vm.Value, n *Node) error {
	for _, iv := range n.IVars {
		val, err := l.load(iv.Value)
		if err != nil {
			return err
		}
		if _, err := l.rt.SetInstanceVariable(v, iv.Name, val); err != nil {
			return err
		}
	}
	return nil
}
