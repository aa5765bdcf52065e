package golang

import (
	"go/ast"
	"go/importer"
	"go/parser"
	"go/token"
	"go/types"
	"maps"
	"strconv"
	"strings"
	"testing"

	"github.com/wowselim/goldfinch/goldfinchgen/schema"
	"github.com/wowselim/goldfinch/internal/errors"
)

func personSubject() schema.Subject {
	return schema.Subject{
		Name:        "Person",
		Package:     "example.com/people",
		PackageName: "people",
		Visibility:  schema.VisibilityPublic,
		File:        "/src/people/person.go",
		Fields:      personFields(),
		Reserved:    []string{"DateOfBirth", "Name", "Person"},
	}
}

const animalGolden = `//go:build !goldfinch

// Code generated by goldfinch. DO NOT EDIT.
// Source: animal.go

package main

// AnimalProperty is a field of Animal together with its value.
//
//sumtype:decl
type AnimalProperty interface {
	isAnimalProperty()
}

// AnimalProperty_Name holds Animal.Name.
type AnimalProperty_Name struct {
	Name string
}

func (AnimalProperty_Name) isAnimalProperty() {}

// Properties returns the fields of Animal, one AnimalProperty per field.
func (a Animal) Properties() []AnimalProperty {
	return []AnimalProperty{
		AnimalProperty_Name{Name: a.Name},
	}
}
`

func TestGenerate_Golden(t *testing.T) {
	subject := schema.Subject{
		Name:        "Animal",
		Package:     "example.com/zoo",
		PackageName: "main",
		Visibility:  schema.VisibilityPublic,
		File:        "animal.go",
		Fields:      []schema.FieldDescriptor{{Name: "Name", Type: schema.Predeclared("string")}},
	}

	out, err := Generate(Input{
		Subject:    subject,
		Fields:     subject.Fields,
		Visibility: schema.VisibilityPublic,
		Placement:  schema.PlacementNested,
	})
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if out.FileName != "animal_properties.go" {
		t.Errorf("FileName = %q, want animal_properties.go", out.FileName)
	}
	if got := string(out.Source); got != animalGolden {
		t.Errorf("output mismatch\n\nGot:\n%s\nWant:\n%s", got, animalGolden)
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	in := Input{
		Subject:    personSubject(),
		Fields:     personFields(),
		Visibility: schema.VisibilityPublic,
		Placement:  schema.PlacementNested,
	}
	first, err := Generate(in)
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	for i := range 5 {
		again, err := Generate(in)
		if err != nil {
			t.Fatalf("Generate() error: %v", err)
		}
		if string(again.Source) != string(first.Source) {
			t.Fatalf("run %d produced different output", i+2)
		}
	}
}

const personSource = `package people

import "time"

type Person struct {
	Name        string
	DateOfBirth time.Time
}
`

func TestGenerate_PersonScenarios(t *testing.T) {
	tests := []struct {
		name      string
		vis       schema.Visibility
		placement schema.Placement
		usage     string
	}{
		{
			name:      "internal top",
			vis:       schema.VisibilityInternal,
			placement: schema.PlacementTop,
			usage: `package people

func count(p Person) (names, births int) {
	for _, prop := range p.properties() {
		switch v := prop.(type) {
		case nameProperty:
			_ = v.Name
			names++
		case dateOfBirthProperty:
			_ = v.DateOfBirth.Year()
			births++
		}
	}
	return names, births
}

var _ personProperty = nameProperty{}
`,
		},
		{
			name:      "public top",
			vis:       schema.VisibilityPublic,
			placement: schema.PlacementTop,
			usage: `package people

var _ = Person{}.Properties()
var _ PersonProperty = NameProperty{Name: "x"}
var _ PersonProperty = DateOfBirthProperty{}
`,
		},
		{
			name:      "public nested",
			vis:       schema.VisibilityPublic,
			placement: schema.PlacementNested,
			usage: `package people

var _ []PersonProperty = Person{}.Properties()
var _ PersonProperty = PersonProperty_Name{}
var _ PersonProperty = PersonProperty_DateOfBirth{}
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Generate(Input{
				Subject:    personSubject(),
				Fields:     personFields(),
				Visibility: tt.vis,
				Placement:  tt.placement,
			})
			if err != nil {
				t.Fatalf("Generate() error: %v", err)
			}
			assertContains(t, string(out.Source), "// Source: person.go\n", "import \"time\"\n")
			typeCheck(t, personSource, string(out.Source), tt.usage)
		})
	}
}

func TestGenerate_FieldShapes(t *testing.T) {
	const src = `package shapes

import "time"

type Shapes struct {
	Optional *string
	Twice    **int
	Tags     []string
	Scores   map[string]float64
	Grid     [3][3]int
	When     *time.Time
	Any      any
	Err      error
	Self     *Shapes
}
`
	fields := []schema.FieldDescriptor{
		{Name: "Optional", Type: schema.Pointer(schema.Predeclared("string"))},
		{Name: "Twice", Type: schema.Pointer(schema.Pointer(schema.Predeclared("int")))},
		{Name: "Tags", Type: schema.Slice(schema.Predeclared("string"))},
		{Name: "Scores", Type: schema.Map(schema.Predeclared("string"), schema.Predeclared("float64"))},
		{Name: "Grid", Type: schema.Array(schema.Array(schema.Predeclared("int"), 3), 3)},
		{Name: "When", Type: schema.Pointer(schema.Named("time", "time", "Time"))},
		{Name: "Any", Type: schema.Predeclared("any")},
		{Name: "Err", Type: schema.Predeclared("error")},
		{Name: "Self", Type: schema.Pointer(schema.Named("example.com/shapes", "shapes", "Shapes"))},
	}
	subject := schema.Subject{
		Name:        "Shapes",
		Package:     "example.com/shapes",
		PackageName: "shapes",
		Visibility:  schema.VisibilityPublic,
		Fields:      fields,
	}

	out, err := Generate(Input{Subject: subject, Fields: fields, Visibility: schema.VisibilityPublic, Placement: schema.PlacementTop})
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}

	source := string(out.Source)
	if strings.Contains(source, "// Source:") {
		t.Errorf("output without a source file should not name one\n\n%s", source)
	}
	assertContains(t, source, "Twice **int", "Self *Shapes", "Grid [3][3]int", "When *time.Time")
	typeCheck(t, src, source, `package shapes

var _ = Shapes{}.Properties()
`)
}

func TestGenerate_Empty(t *testing.T) {
	subject := schema.Subject{Name: "Empty", Package: "example.com/e", PackageName: "e", Fields: []schema.FieldDescriptor{}}
	out, err := Generate(Input{Subject: subject, Fields: subject.Fields, Visibility: schema.VisibilityPublic, Placement: schema.PlacementNested})
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}

	assertContains(t, string(out.Source), "return []EmptyProperty{}")
	if top := out.Names.TopLevel(); len(top) != 1 || top[0] != "EmptyProperty" {
		t.Errorf("TopLevel() = %v, want [EmptyProperty]", top)
	}
	typeCheck(t, "package e\n\ntype Empty struct{ fn func() }\n", string(out.Source), "package e\n\nvar _ = Empty{}.Properties()\n")
}

func TestGenerate_Imports(t *testing.T) {
	fields := []schema.FieldDescriptor{
		{Name: "A", Type: schema.Named("github.com/a/box", "box", "Box")},
		{Name: "B", Type: schema.Named("github.com/b/box", "box", "Box",
			schema.Named("gopkg.in/yaml.v3", "yaml", "Node"))},
		{Name: "C", Type: schema.Named("time", "time", "Duration")},
		{Name: "D", Type: schema.Named("github.com/acme/box/v2", "box", "Crate")},
	}
	subject := schema.Subject{
		Name:        "Crate",
		Package:     "example.com/c",
		PackageName: "c",
		Fields:      fields,
		Reserved:    []string{"time"},
	}

	out, err := Generate(Input{Subject: subject, Fields: fields, Visibility: schema.VisibilityPublic, Placement: schema.PlacementNested})
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}

	f, err := parser.ParseFile(token.NewFileSet(), "", out.Source, parser.ImportsOnly)
	if err != nil {
		t.Fatalf("parse output: %v", err)
	}

	got := make(map[string]string)
	for _, imp := range f.Imports {
		path, err := strconv.Unquote(imp.Path.Value)
		if err != nil {
			t.Fatal(err)
		}
		name := ""
		if imp.Name != nil {
			name = imp.Name.Name
		}
		got[path] = name
	}
	want := map[string]string{
		"github.com/a/box":       "",
		"github.com/acme/box/v2": "box2",
		"github.com/b/box":       "box3",
		"gopkg.in/yaml.v3":       "yaml",
		"time":                   "time2",
	}
	if !maps.Equal(got, want) {
		t.Errorf("imports = %v, want %v", got, want)
	}

	assertContains(t, string(out.Source),
		"A box.Box\n",
		"B box3.Box[yaml.Node]\n",
		"C time2.Duration\n",
		"D box2.Crate\n")
}

func TestGenerate_Collisions(t *testing.T) {
	tests := []struct {
		name      string
		fields    []schema.FieldDescriptor
		reserved  []string
		placement schema.Placement
		wantErr   string
	}{
		{
			name: "case-folded fields",
			fields: []schema.FieldDescriptor{
				{Name: "name", Type: schema.Predeclared("string")},
				{Name: "Name", Type: schema.Predeclared("string")},
			},
			placement: schema.PlacementTop,
			wantErr:   "variant NameProperty for field Name collides with field name",
		},
		{
			name:      "accessor declared",
			fields:    personFields(),
			reserved:  []string{"Properties"},
			placement: schema.PlacementNested,
			wantErr:   "generated identifier Properties is already declared",
		},
		{
			name:      "variant declared at package scope",
			fields:    personFields(),
			reserved:  []string{"NameProperty"},
			placement: schema.PlacementTop,
			wantErr:   "generated identifier NameProperty is already declared",
		},
		{
			name:      "union declared",
			fields:    personFields(),
			reserved:  []string{"PersonProperty"},
			placement: schema.PlacementNested,
			wantErr:   "generated identifier PersonProperty is already declared",
		},
		{
			name:      "field named like the marker",
			fields:    []schema.FieldDescriptor{{Name: "isPersonProperty", Type: schema.Predeclared("bool")}},
			placement: schema.PlacementNested,
			wantErr:   "field isPersonProperty collides with the marker method",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			subject := personSubject()
			subject.Fields = tt.fields
			subject.Reserved = tt.reserved

			_, err := Generate(Input{Subject: subject, Fields: tt.fields, Visibility: schema.VisibilityPublic, Placement: tt.placement})
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, schema.ErrNameCollision) {
				t.Errorf("want ErrNameCollision, got %v", err)
			}
			assertContains(t, err.Error(), "example.com/people.Person", tt.wantErr)
		})
	}
}

func TestGenerate_InvalidInput(t *testing.T) {
	_, err := Generate(Input{Subject: personSubject(), Fields: personFields(), Visibility: schema.VisibilityLocal, Placement: schema.PlacementTop})
	if !errors.Is(err, schema.ErrUnsupportedVisibility) {
		t.Errorf("local visibility: got %v, want ErrUnsupportedVisibility", err)
	}

	_, err = Generate(Input{Subject: personSubject(), Fields: personFields(), Visibility: schema.VisibilityPublic, Placement: "sideways"})
	if !errors.Is(err, schema.ErrInvalidConfig) {
		t.Errorf("bad placement: got %v, want ErrInvalidConfig", err)
	}
}

// typeCheck type-checks the given files as one package.
func typeCheck(t *testing.T, sources ...string) {
	t.Helper()
	fset := token.NewFileSet()
	var files []*ast.File
	for i, src := range sources {
		f, err := parser.ParseFile(fset, "file"+strconv.Itoa(i)+".go", src, parser.ParseComments)
		if err != nil {
			t.Fatalf("parse: %v\n%s", err, src)
		}
		files = append(files, f)
	}
	conf := types.Config{Importer: importer.ForCompiler(fset, "source", nil)}
	if _, err := conf.Check(files[0].Name.Name, fset, files, nil); err != nil {
		t.Fatalf("type-check: %v\n%s", err, sources[1])
	}
}

// assertContains reports each of wants missing from got.
func assertContains(t *testing.T, got string, wants ...string) {
	t.Helper()
	for _, want := range wants {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q\n\nGot:\n%s", want, got)
		}
	}
}
