package marshal

import (
	"github.com/chazu/garnet/vm"
)

// Install defines the Marshal module with dump and load module functions.
// Calling it twice on a runtime returns the existing module.
func Install(rt *vm.Runtime) (*vm.Module, error) {
	if v, ok := rt.ObjectClass.ConstGetAt("Marshal"); ok {
		if m, isMod := v.(*vm.Module); isMod {
			return m, nil
		}
	}
	m, err := rt.DefineModule("Marshal", nil)
	if err != nil {
		return nil, err
	}

	m.AddModuleFunction("dump", vm.Arity{Min: 1, Max: 2}, func(t *vm.Thread, _ vm.Value, args []vm.Value, _ *vm.Proc) (vm.Value, error) {
		limit := -1
		if len(args) == 2 {
			i, ok := args[1].(*vm.Integer)
			if !ok {
				return nil, t.Runtime().NewTypeError("limit must be an Integer")
			}
			n, _ := i.Int64()
			limit = int(n)
		}
		data, err := DumpLimit(t, args[0], limit)
		if err != nil {
			return nil, err
		}
		return t.Runtime().String(string(data)), nil
	})

	m.AddModuleFunction("load", vm.FixedArity(1), func(t *vm.Thread, _ vm.Value, args []vm.Value, _ *vm.Proc) (vm.Value, error) {
		s, ok := args[0].(*vm.String)
		if !ok {
			return nil, t.Runtime().NewTypeError("instance of IO needed")
		}
		return Load(t, []byte(s.GoString()))
	})

	rt.Logger().Debug("Marshal module installed")
	return m, nil
}
