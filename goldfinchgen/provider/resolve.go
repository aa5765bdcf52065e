package provider

import (
	"go/types"

	"github.com/wowselim/goldfinch/goldfinchgen/schema"
)

// typeResolver converts go/types types into descriptors on behalf of the
// package declaring the subject.
type typeResolver struct {
	pkg *types.Package
}

// resolve returns the descriptor for t. It reports false if t cannot be
// named from generated code in r.pkg: type parameters, struct, func, and
// channel literals, non-empty interface literals, unsafe.Pointer, and types
// declared inside functions or unexported from other packages.
//
// Unresolvable arguments of a named generic type are dropped and the result
// is marked Partial; the named type itself still resolves.
func (r *typeResolver) resolve(t types.Type) (schema.TypeDescriptor, bool) {
	switch t := types.Unalias(t).(type) {
	case *types.Basic:
		switch t.Kind() {
		case types.Invalid, types.UnsafePointer:
			return schema.TypeDescriptor{}, false
		}
		if t.Info()&types.IsUntyped != 0 {
			return schema.TypeDescriptor{}, false
		}
		return schema.Predeclared(t.Name()), true

	case *types.Named:
		obj := t.Obj()
		if obj.Pkg() == nil {
			// error, comparable
			return schema.Predeclared(obj.Name()), true
		}
		if !r.nameable(obj) {
			return schema.TypeDescriptor{}, false
		}

		var args []schema.TypeDescriptor
		dropped := false
		if targs := t.TypeArgs(); targs != nil {
			for i := range targs.Len() {
				arg, ok := r.resolve(targs.At(i))
				if !ok {
					dropped = true
					continue
				}
				args = append(args, arg)
			}
		}
		d := schema.Named(obj.Pkg().Path(), obj.Pkg().Name(), obj.Name(), args...)
		d.Partial = d.Partial || dropped
		return d, true

	case *types.Pointer:
		elem, ok := r.resolve(t.Elem())
		if !ok {
			return schema.TypeDescriptor{}, false
		}
		return schema.Pointer(elem), true

	case *types.Slice:
		elem, ok := r.resolve(t.Elem())
		if !ok {
			return schema.TypeDescriptor{}, false
		}
		return schema.Slice(elem), true

	case *types.Array:
		elem, ok := r.resolve(t.Elem())
		if !ok {
			return schema.TypeDescriptor{}, false
		}
		return schema.Array(elem, t.Len()), true

	case *types.Map:
		key, ok := r.resolve(t.Key())
		if !ok {
			return schema.TypeDescriptor{}, false
		}
		value, ok := r.resolve(t.Elem())
		if !ok {
			return schema.TypeDescriptor{}, false
		}
		return schema.Map(key, value), true

	case *types.Interface:
		if t.Empty() {
			return schema.Predeclared("any"), true
		}
		return schema.TypeDescriptor{}, false

	default:
		// *types.TypeParam, *types.Struct, *types.Signature, *types.Chan, *types.Tuple
		return schema.TypeDescriptor{}, false
	}
}

// nameable reports whether obj can be referenced from a file in r.pkg.
func (r *typeResolver) nameable(obj *types.TypeName) bool {
	if obj.Parent() != nil && obj.Parent() != obj.Pkg().Scope() {
		return false
	}
	if r.pkg != nil && obj.Pkg() != r.pkg && !obj.Exported() {
		return false
	}
	return true
}
