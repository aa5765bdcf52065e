package directive

import (
	"go/types"

	"github.com/wowselim/goldfinch/internal/errors"
)

// Lookup returns the type object a directive annotates, checking that it is
// a defined struct type. info must come from the same parse as d.Ident.
func Lookup(d Directive, info *types.Info) (*types.TypeName, error) {
	obj, ok := info.Defs[d.Ident]
	if !ok || obj == nil {
		return nil, errors.Newf("%s: type %s not found in type information", d.Pos, d.TypeName)
	}

	tn, ok := obj.(*types.TypeName)
	if !ok {
		return nil, errors.Newf("%s: %s is not a type", d.Pos, d.TypeName)
	}

	named, ok := types.Unalias(tn.Type()).(*types.Named)
	if !ok {
		return nil, errors.Newf("%s: %s is not a defined type", d.Pos, d.TypeName)
	}

	if _, ok := named.Underlying().(*types.Struct); !ok {
		return nil, errors.WithHint(
			errors.Newf("%s: %s%s requires a struct type, %s is %s",
				d.Pos, Prefix, d.Kind, d.TypeName, describe(named.Underlying())),
			"annotate a struct declaration")
	}

	return tn, nil
}

func describe(t types.Type) string {
	switch t := t.(type) {
	case *types.Basic:
		return t.Name()
	case *types.Interface:
		return "an interface"
	case *types.Signature:
		return "a func type"
	case *types.Slice, *types.Array:
		return "a list type"
	case *types.Map:
		return "a map type"
	case *types.Chan:
		return "a channel type"
	case *types.Pointer:
		return "a pointer type"
	default:
		return "not a struct"
	}
}
