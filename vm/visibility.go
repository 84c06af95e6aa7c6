package vm

// Visibility controls which call kinds may reach a method.
type Visibility uint8

const (
	Public Visibility = iota
	Protected
	Private
	// ModuleFunction is private on the instance side; definitions made under
	// it also get a public copy on the module's singleton class.
	ModuleFunction
)

func (v Visibility) String() string {
	switch v {
	case Public:
		return "public"
	case Protected:
		return "protected"
	case Private:
		return "private"
	case ModuleFunction:
		return "module_function"
	}
	return "unknown"
}

// IsPrivate reports whether only functional calls may reach the method.
func (v Visibility) IsPrivate() bool {
	return v == Private || v == ModuleFunction
}

// CallKind is how a call site names its receiver.
type CallKind uint8

const (
	// CallNormal has an explicit receiver: obj.foo
	CallNormal CallKind = iota
	// CallFunctional has an implicit self receiver: foo
	CallFunctional
	// CallSuper re-dispatches from the defining module's superclass.
	CallSuper
	// CallSend is send/__send__: no visibility check at all.
	CallSend
)

func (k CallKind) String() string {
	switch k {
	case CallNormal:
		return "normal"
	case CallFunctional:
		return "functional"
	case CallSuper:
		return "super"
	case CallSend:
		return "send"
	}
	return "unknown"
}
