// Package provider extracts subject types from Go code and converts them to
// the schema model.
//
// Two providers exist. SourceProvider type-checks packages with go/packages
// and reads //goldfinch:properties directives. ReflectionProvider inspects
// values at run time with reflect. Both yield schema.Subject values with
// fields in declaration order.
package provider

import (
	"cmp"
	"go/token"
	"slices"

	"github.com/wowselim/goldfinch/goldfinchgen/schema"
)

// Annotated is a subject together with the configuration found on its
// declaration.
type Annotated struct {
	Subject schema.Subject

	// Config holds the options given on the directive. Unset values are
	// filled in from generator defaults by the caller.
	Config schema.GenerationConfig

	// Dir is the directory of the declaring package. Empty when unknown.
	Dir string

	// Pos is the location of the directive. Zero when unknown.
	Pos token.Position
}

// SortByDeclaration reorders fields to match declared, the type's fields in
// source order, joining on field name. Fields missing from declared keep
// their relative order and sort last. The input slice is not modified.
func SortByDeclaration(fields []schema.FieldDescriptor, declared []string) []schema.FieldDescriptor {
	index := make(map[string]int, len(declared))
	for i, name := range declared {
		if _, ok := index[name]; !ok {
			index[name] = i
		}
	}
	rank := func(f schema.FieldDescriptor) int {
		if i, ok := index[f.Name]; ok {
			return i
		}
		return len(declared)
	}

	sorted := slices.Clone(fields)
	slices.SortStableFunc(sorted, func(a, b schema.FieldDescriptor) int {
		return cmp.Compare(rank(a), rank(b))
	})
	return sorted
}
