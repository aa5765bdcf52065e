// Package golang emits Go source for property unions.
//
// For a subject type Person with fields Name and DateOfBirth it generates a
// sealed interface PersonProperty, one struct per field implementing it, and
// a Properties method on Person returning one value per field:
//
//	//sumtype:decl
//	type PersonProperty interface{ isPersonProperty() }
//
//	type PersonProperty_Name struct{ Name string }
//
//	func (PersonProperty_Name) isPersonProperty() {}
//
//	func (p Person) Properties() []PersonProperty
package golang

import (
	"bytes"
	"fmt"
	"go/format"
	"go/parser"
	"go/token"
	"path"
	"path/filepath"
	"slices"

	"golang.org/x/tools/go/ast/astutil"

	"github.com/wowselim/goldfinch/goldfinchgen/schema"
	"github.com/wowselim/goldfinch/internal/errors"
)

// BuildConstraint excludes generated files while goldfinch loads packages.
const BuildConstraint = "//go:build !goldfinch"

// Input describes one union to generate.
type Input struct {
	Subject schema.Subject

	// Fields are the subject fields to generate variants for, in order.
	Fields []schema.FieldDescriptor

	// Visibility is the effective visibility: Public or Internal.
	Visibility schema.Visibility

	Placement schema.Placement
}

// Output is a generated file.
type Output struct {
	// FileName is the base name of the file, e.g. "person_properties.go".
	FileName string

	// Source is the gofmt-formatted file content.
	Source []byte

	Names Names
}

// Generate emits the union file for in. The output depends only on in.
func Generate(in Input) (*Output, error) {
	switch in.Visibility {
	case schema.VisibilityPublic, schema.VisibilityInternal:
	default:
		return nil, schema.Errorf(schema.ErrUnsupportedVisibility, "",
			"%s: cannot generate with %s visibility", in.Subject.QualifiedName(), in.Visibility)
	}
	switch in.Placement {
	case schema.PlacementTop, schema.PlacementNested:
	default:
		return nil, schema.Errorf(schema.ErrInvalidConfig, "use placement=top or placement=nested",
			"%s: unknown placement %q", in.Subject.QualifiedName(), in.Placement)
	}

	names := NewNames(in.Subject.Name, in.Fields, in.Visibility, in.Placement)
	if err := checkCollisions(in.Subject, names, in.Fields); err != nil {
		return nil, err
	}

	e := &emitter{
		subject: in.Subject,
		fields:  in.Fields,
		names:   names,
	}
	e.allocateImports()
	e.emit()

	src, err := e.finish()
	if err != nil {
		return nil, errors.Wrapf(err, "generate %s", in.Subject.QualifiedName())
	}
	return &Output{
		FileName: FileName(in.Subject.Name),
		Source:   src,
		Names:    names,
	}, nil
}

type importSpec struct {
	path  string
	local string
	alias bool
}

type emitter struct {
	subject schema.Subject
	fields  []schema.FieldDescriptor
	names   Names
	imports []importSpec
	local   map[string]string
	buf     bytes.Buffer
}

// allocateImports picks a local name for every package referenced by a field
// type, avoiding package-scope names, generated names, and each other.
func (e *emitter) allocateImports() {
	pkgNames := make(map[string]string)
	for _, f := range e.fields {
		collectPackages(f.Type, pkgNames)
	}
	delete(pkgNames, e.subject.Package)

	paths := make([]string, 0, len(pkgNames))
	for p := range pkgNames {
		paths = append(paths, p)
	}
	slices.Sort(paths)

	ns := newNamespace(e.subject.Reserved...)
	for _, name := range e.names.TopLevel() {
		ns.reserve(name)
	}

	e.local = make(map[string]string, len(paths))
	for _, p := range paths {
		name := pkgNames[p]
		if name == "" {
			name = "pkg"
		}
		local := ns.name(name)
		e.local[p] = local
		// An alias is needed whenever the local name is not the last path
		// element, since the declared package name may differ from it.
		e.imports = append(e.imports, importSpec{path: p, local: local, alias: local != path.Base(p)})
	}
}

func collectPackages(t schema.TypeDescriptor, into map[string]string) {
	if t.Kind == schema.KindNamed && t.Package != "" {
		if _, ok := into[t.Package]; !ok {
			into[t.Package] = t.PackageName
		}
	}
	for _, arg := range t.TypeArguments {
		collectPackages(arg, into)
	}
}

func (e *emitter) qualifier(pkgPath string) string {
	if pkgPath == e.subject.Package {
		return ""
	}
	return e.local[pkgPath]
}

func (e *emitter) printf(format string, args ...any) {
	fmt.Fprintf(&e.buf, format, args...)
}

func (e *emitter) emit() {
	e.printf("%s\n\n", BuildConstraint)
	e.printf("// Code generated by goldfinch. DO NOT EDIT.\n")
	if e.subject.File != "" {
		e.printf("// Source: %s\n", filepath.Base(e.subject.File))
	}
	e.printf("\npackage %s\n\n", e.subject.PackageName)

	n := e.names
	e.printf("// %s is a field of %s together with its value.\n", n.Union, e.subject.Name)
	e.printf("//\n//sumtype:decl\n")
	e.printf("type %s interface {\n\t%s()\n}\n\n", n.Union, n.Marker)

	for i, f := range e.fields {
		variant := n.Variants[i]
		e.printf("// %s holds %s.%s.\n", variant, e.subject.Name, f.Name)
		e.printf("type %s struct {\n\t%s %s\n}\n\n", variant, f.Name, f.Type.GoString(e.qualifier))
		e.printf("func (%s) %s() {}\n\n", variant, n.Marker)
	}

	recv := newNamespace(n.TopLevel()...).name(lowerFirst(string([]rune(e.subject.Name)[:1])))
	e.printf("// %s returns the fields of %s, one %s per field.\n", n.Accessor, e.subject.Name, n.Union)
	e.printf("func (%s %s) %s() []%s {\n", recv, e.subject.Name, n.Accessor, n.Union)
	if len(e.fields) == 0 {
		e.printf("\treturn []%s{}\n}\n", n.Union)
		return
	}
	e.printf("\treturn []%s{\n", n.Union)
	for i, f := range e.fields {
		e.printf("\t\t%s{%s: %s.%s},\n", n.Variants[i], f.Name, recv, f.Name)
	}
	e.printf("\t}\n}\n")
}

// finish adds the import declarations and formats the file.
func (e *emitter) finish() ([]byte, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, e.subject.Name+".go", e.buf.Bytes(), parser.ParseComments)
	if err != nil {
		return nil, errors.Wrap(err, "parse generated code")
	}

	for _, imp := range e.imports {
		alias := ""
		if imp.alias {
			alias = imp.local
		}
		astutil.AddNamedImport(fset, file, alias, imp.path)
	}

	var out bytes.Buffer
	if err := format.Node(&out, fset, file); err != nil {
		return nil, errors.Wrap(err, "format generated code")
	}
	return out.Bytes(), nil
}
