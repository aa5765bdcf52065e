package schema

import (
	"strconv"
	"strings"
)

// Kind identifies the shape of a type descriptor.
type Kind int

const (
	KindNamed   Kind = iota // Declared or predeclared type, possibly instantiated (time.Time, Box[int], string)
	KindPointer             // Pointer holder for nested pointers (**T); see TypeDescriptor.Nullable
	KindSlice               // []T, element in TypeArguments[0]
	KindArray               // [N]T, element in TypeArguments[0]
	KindMap                 // map[K]V, key and value in TypeArguments[0:2]
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindNamed:
		return "Named"
	case KindPointer:
		return "Pointer"
	case KindSlice:
		return "Slice"
	case KindArray:
		return "Array"
	case KindMap:
		return "Map"
	default:
		return "Unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// TypeDescriptor is a resolved, provider-independent type reference.
//
// Descriptors are plain values. A descriptor never contains a partially
// resolved argument: arguments that could not be resolved are dropped and
// Partial is set instead.
type TypeDescriptor struct {
	Kind Kind `yaml:"kind"`

	// Package is the import path of a named type. Empty for predeclared types.
	Package string `yaml:"package,omitempty"`

	// PackageName is the declared package name, used when qualifying the
	// type in generated code.
	PackageName string `yaml:"packageName,omitempty"`

	// Name is the simple name of a named type.
	Name string `yaml:"name,omitempty"`

	// Len is the length of an array type.
	Len int64 `yaml:"len,omitempty"`

	// TypeArguments are generic arguments in declaration order, or the
	// element types of a composite.
	TypeArguments []TypeDescriptor `yaml:"typeArguments,omitempty"`

	// Nullable reports whether the reference is a pointer. A field of type
	// *time.Time resolves to time.Time with Nullable set.
	Nullable bool `yaml:"nullable,omitempty"`

	// Partial reports whether an unresolvable generic argument was dropped
	// somewhere in this tree.
	Partial bool `yaml:"partial,omitempty"`
}

// Named returns a descriptor for a named type.
func Named(pkgPath, pkgName, name string, args ...TypeDescriptor) TypeDescriptor {
	return TypeDescriptor{
		Kind:          KindNamed,
		Package:       pkgPath,
		PackageName:   pkgName,
		Name:          name,
		TypeArguments: args,
		Partial:       anyPartial(args),
	}
}

// Predeclared returns a descriptor for a predeclared type such as string or error.
func Predeclared(name string) TypeDescriptor {
	return TypeDescriptor{Kind: KindNamed, Name: name}
}

// Slice returns a descriptor for []elem.
func Slice(elem TypeDescriptor) TypeDescriptor {
	return TypeDescriptor{Kind: KindSlice, TypeArguments: []TypeDescriptor{elem}, Partial: elem.Partial}
}

// Array returns a descriptor for [n]elem.
func Array(elem TypeDescriptor, n int64) TypeDescriptor {
	return TypeDescriptor{Kind: KindArray, Len: n, TypeArguments: []TypeDescriptor{elem}, Partial: elem.Partial}
}

// Map returns a descriptor for map[key]value.
func Map(key, value TypeDescriptor) TypeDescriptor {
	return TypeDescriptor{
		Kind:          KindMap,
		TypeArguments: []TypeDescriptor{key, value},
		Partial:       key.Partial || value.Partial,
	}
}

// Pointer marks t as nullable. If t is already nullable, the result is a
// pointer holder wrapping t so every level of indirection stays visible.
func Pointer(t TypeDescriptor) TypeDescriptor {
	if !t.Nullable {
		t.Nullable = true
		return t
	}
	return TypeDescriptor{
		Kind:          KindPointer,
		TypeArguments: []TypeDescriptor{t},
		Nullable:      true,
		Partial:       t.Partial,
	}
}

func anyPartial(ts []TypeDescriptor) bool {
	for _, t := range ts {
		if t.Partial {
			return true
		}
	}
	return false
}

// QualifiedName returns the fully qualified identity of a named type, such
// as "time.Time" or "github.com/acme/box.Box". Predeclared types return
// their bare name. Composites return their Go spelling with qualified
// element names.
func (t TypeDescriptor) QualifiedName() string {
	switch t.Kind {
	case KindNamed:
		if t.Package == "" {
			return t.Name
		}
		return t.Package + "." + t.Name
	default:
		return t.String()
	}
}

// Elem returns the element type of a slice, array, or pointer holder.
func (t TypeDescriptor) Elem() TypeDescriptor {
	if len(t.TypeArguments) == 0 {
		return TypeDescriptor{}
	}
	return t.TypeArguments[len(t.TypeArguments)-1]
}

// Imports returns the import paths referenced anywhere in t.
func (t TypeDescriptor) Imports() []string {
	var paths []string
	t.walk(func(d TypeDescriptor) {
		if d.Kind == KindNamed && d.Package != "" {
			paths = append(paths, d.Package)
		}
	})
	return paths
}

func (t TypeDescriptor) walk(fn func(TypeDescriptor)) {
	fn(t)
	for _, arg := range t.TypeArguments {
		arg.walk(fn)
	}
}

// String returns the Go spelling of t using import paths as qualifiers.
func (t TypeDescriptor) String() string {
	var sb strings.Builder
	t.write(&sb, func(d TypeDescriptor) string { return d.Package })
	return sb.String()
}

// GoString returns the Go spelling of t, qualifying named types with the
// local name returned by qualifier. A qualifier returning "" leaves the
// name unqualified.
func (t TypeDescriptor) GoString(qualifier func(pkgPath string) string) string {
	var sb strings.Builder
	t.write(&sb, func(d TypeDescriptor) string {
		if d.Package == "" {
			return ""
		}
		return qualifier(d.Package)
	})
	return sb.String()
}

func (t TypeDescriptor) write(sb *strings.Builder, qual func(TypeDescriptor) string) {
	if t.Nullable {
		sb.WriteByte('*')
	}
	switch t.Kind {
	case KindNamed:
		if q := qual(t); q != "" {
			sb.WriteString(q)
			sb.WriteByte('.')
		}
		sb.WriteString(t.Name)
		if len(t.TypeArguments) > 0 {
			sb.WriteByte('[')
			for i, arg := range t.TypeArguments {
				if i > 0 {
					sb.WriteString(", ")
				}
				arg.write(sb, qual)
			}
			sb.WriteByte(']')
		}
	case KindPointer:
		t.Elem().write(sb, qual)
	case KindSlice:
		sb.WriteString("[]")
		t.Elem().write(sb, qual)
	case KindArray:
		sb.WriteByte('[')
		sb.WriteString(strconv.FormatInt(t.Len, 10))
		sb.WriteByte(']')
		t.Elem().write(sb, qual)
	case KindMap:
		sb.WriteString("map[")
		t.TypeArguments[0].write(sb, qual)
		sb.WriteByte(']')
		t.TypeArguments[1].write(sb, qual)
	}
}
