package vm

// Value is anything a running program can hold: plain objects, modules,
// numbers, strings and the nil/true/false singletons. Every value is backed
// by an Object header.
type Value interface {
	header() *Object
}

// Flags is the per-object flag word.
type Flags uint32

const (
	FlagFrozen Flags = 1 << iota
	FlagTainted
	FlagNil
	FlagFalsy
	FlagUser0
	FlagUser1
	FlagUser2
	FlagUser3
	FlagUser4
	FlagUser5
	FlagUser6
	FlagUser7
)

// Header returns the object header behind v.
func Header(v Value) *Object {
	if v == nil {
		return nil
	}
	return v.header()
}

// ClassOf returns the class pointer stored in v's header, which is its
// singleton class when one has been created.
func ClassOf(v Value) *Module {
	return v.header().Class()
}

// RealClassOf returns the class v was instantiated from, skipping singleton
// classes and included-module wrappers.
func RealClassOf(v Value) *Module {
	c := ClassOf(v)
	for c != nil && (c.kind == KindSingleton || c.kind == KindIncluded) {
		c = c.super.Load()
	}
	return c
}

// Truthy reports whether v counts as true in a conditional.
func Truthy(v Value) bool {
	return v != nil && !v.header().HasFlag(FlagFalsy)
}

// IsNil reports whether v is the nil singleton (or a Go nil).
func IsNil(v Value) bool {
	return v == nil || v.header().HasFlag(FlagNil)
}

// Identical reports object identity. Immediate numbers compare by value so
// that two separately boxed 3s are the same object, as a program expects.
func Identical(a, b Value) bool {
	switch x := a.(type) {
	case *Integer:
		if y, ok := b.(*Integer); ok && x.big == nil && y.big == nil {
			return x.small == y.small
		}
	case *Float:
		if y, ok := b.(*Float); ok {
			return x.f == y.f
		}
	}
	return a == b
}
