package goldfinchgen

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/wowselim/goldfinch/goldfinchgen/schema"
	"github.com/wowselim/goldfinch/goldfinchgen/sink"
	"github.com/wowselim/goldfinch/internal/errors"
)

const personSource = `package people

import "time"

//goldfinch:properties visibility=internal placement=top
type Person struct {
	Name        string
	DateOfBirth time.Time
}

//goldfinch:properties
type Animal struct {
	Name string
}
`

// usesGenerated only type-checks once the generated files exist.
const usesGenerated = `package people

func describe(p Person, a Animal) int {
	return len(p.properties()) + len(a.Properties())
}
`

// writeModule creates a throwaway module rooted at a temp dir.
func writeModule(t *testing.T, files map[string]string) string {
	t.Helper()
	t.Setenv("GOWORK", "off")
	t.Setenv("GOFLAGS", "-mod=mod")

	dir := t.TempDir()
	files["go.mod"] = "module example.com/people\n\ngo 1.22\n"
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

// readFile returns the contents of a file under dir.
func readFile(t *testing.T, dir, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(name)))
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
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

func TestGenerate_SourceInPlace(t *testing.T) {
	dir := writeModule(t, map[string]string{
		"people/person.go": personSource,
		"people/use.go":    usesGenerated,
	})

	result, err := FromPackages("./...").
		Dir(dir).
		WithLogger(zaptest.NewLogger(t)).
		Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}

	if result.Provider != ProviderSource {
		t.Errorf("Provider = %q, want %q", result.Provider, ProviderSource)
	}
	if want := []string{"people/person_properties.go", "people/animal_properties.go"}; !slices.Equal(result.Paths(), want) {
		t.Errorf("Paths() = %v, want %v", result.Paths(), want)
	}

	person := readFile(t, dir, "people/person_properties.go")
	if !strings.HasPrefix(person, "//go:build !goldfinch\n") {
		t.Errorf("person_properties.go does not start with the build constraint\n\n%s", person)
	}
	assertContains(t, person,
		"// Source: person.go\n",
		"type personProperty interface {",
		"type nameProperty struct {",
		"type dateOfBirthProperty struct {",
		"func (p Person) properties() []personProperty {")

	animal := readFile(t, dir, "people/animal_properties.go")
	assertContains(t, animal,
		"type AnimalProperty_Name struct {",
		"func (a Animal) Properties() []AnimalProperty {")

	personArtifact := result.Artifacts[0]
	if personArtifact.Visibility != schema.VisibilityInternal {
		t.Errorf("Person visibility = %v, want internal", personArtifact.Visibility)
	}
	if want := (schema.GenerationConfig{Visibility: schema.ModeInternal, Placement: schema.PlacementTop}); personArtifact.Config != want {
		t.Errorf("Person config = %+v, want %+v", personArtifact.Config, want)
	}
	if personArtifact.Dependency.Package != "example.com/people/people" {
		t.Errorf("Person dependency package = %q", personArtifact.Dependency.Package)
	}
	if filepath.Base(personArtifact.Dependency.File) != "person.go" {
		t.Errorf("Person dependency file = %q, want person.go", personArtifact.Dependency.File)
	}

	animalArtifact := result.Artifacts[1]
	if animalArtifact.Config != schema.DefaultConfig {
		t.Errorf("Animal config = %+v, want %+v", animalArtifact.Config, schema.DefaultConfig)
	}
	if animalArtifact.Visibility != schema.VisibilityPublic {
		t.Errorf("Animal visibility = %v, want public", animalArtifact.Visibility)
	}
}

func TestGenerate_Regenerate(t *testing.T) {
	dir := writeModule(t, map[string]string{
		"people/person.go": personSource,
		"people/use.go":    usesGenerated,
	})

	first, err := FromPackages("./people").Dir(dir).Generate(context.Background())
	if err != nil {
		t.Fatalf("first Generate() error: %v", err)
	}

	// The second run sees the generated files on disk; they are excluded by
	// their build constraint and the result is identical.
	mem := sink.NewMemorySink()
	second, err := FromPackages("./people").Dir(dir).WithSink(mem).Generate(context.Background())
	if err != nil {
		t.Fatalf("second Generate() error: %v", err)
	}

	if len(second.Artifacts) != len(first.Artifacts) {
		t.Fatalf("got %d artifacts, want %d", len(second.Artifacts), len(first.Artifacts))
	}
	for i := range first.Artifacts {
		if !bytes.Equal(first.Artifacts[i].Source, second.Artifacts[i].Source) {
			t.Errorf("%s changed between runs", first.Artifacts[i].Path)
		}
	}
	stale, err := mem.Stale(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(stale) != 0 {
		t.Errorf("Stale() = %v, want none", stale)
	}
}

func TestGenerate_MemorySink(t *testing.T) {
	dir := writeModule(t, map[string]string{"people/person.go": personSource})

	mem := sink.NewMemorySink()
	result, err := FromPackages("./...").Dir(dir).WithSink(mem).Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}

	if want := []string{"people/animal_properties.go", "people/person_properties.go"}; !slices.Equal(mem.Paths(), want) {
		t.Errorf("mem.Paths() = %v, want %v", mem.Paths(), want)
	}
	for _, a := range result.Artifacts {
		if !bytes.Equal(mem.Get(a.Path), a.Source) {
			t.Errorf("%s: sink content differs from artifact", a.Path)
		}
		dep, ok := mem.Dependency(a.Path)
		if !ok {
			t.Errorf("%s: no dependency recorded", a.Path)
			continue
		}
		if dep != a.Dependency {
			t.Errorf("%s: dependency = %+v, want %+v", a.Path, dep, a.Dependency)
		}
	}

	if _, err := os.Stat(filepath.Join(dir, "people", "person_properties.go")); !os.IsNotExist(err) {
		t.Errorf("memory sink must not touch the filesystem: %v", err)
	}
}

func TestGenerate_ToDir(t *testing.T) {
	dir := writeModule(t, map[string]string{"people/person.go": personSource})
	out := t.TempDir()

	result, err := FromPackages("./people").Dir(dir).ToDir(out)
	if err != nil {
		t.Fatalf("ToDir() error: %v", err)
	}
	if want := []string{"person_properties.go", "animal_properties.go"}; !slices.Equal(result.Paths(), want) {
		t.Errorf("Paths() = %v, want %v", result.Paths(), want)
	}

	if _, err := os.Stat(filepath.Join(out, "person_properties.go")); err != nil {
		t.Error(err)
	}
}

func TestGenerate_Types(t *testing.T) {
	dir := writeModule(t, map[string]string{"people/person.go": personSource})
	out := t.TempDir()

	mem := sink.NewMemorySink()
	result, err := FromPackages("./...").Dir(dir).Types("Animal").OutDir(out).WithSink(mem).Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if len(result.Artifacts) != 1 {
		t.Fatalf("got %d artifacts, want 1", len(result.Artifacts))
	}
	if name := result.Artifacts[0].Subject.Name; name != "Animal" {
		t.Errorf("subject = %q, want Animal", name)
	}
	if want := []string{"animal_properties.go"}; !slices.Equal(mem.Paths(), want) {
		t.Errorf("mem.Paths() = %v, want %v", mem.Paths(), want)
	}

	_, err = FromPackages("./...").Dir(dir).Types("Nope").WithSink(mem).Generate(context.Background())
	if err == nil || !strings.Contains(err.Error(), "Nope") {
		t.Errorf("unknown type: got %v, want an error naming Nope", err)
	}
}

func TestGenerate_Defaults(t *testing.T) {
	dir := writeModule(t, map[string]string{"people/person.go": personSource})

	mem := sink.NewMemorySink()
	result, err := FromPackages("./...").
		Dir(dir).
		WithVisibility(schema.ModeInternal).
		WithSink(mem).
		Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}

	// Animal has no directive options, so the generator defaults apply.
	animal := result.Artifacts[1]
	if animal.Subject.Name != "Animal" {
		t.Fatalf("second artifact is %s, want Animal", animal.Subject.Name)
	}
	if animal.Visibility != schema.VisibilityInternal {
		t.Errorf("Animal visibility = %v, want internal", animal.Visibility)
	}
	if want := []string{"animalProperty", "animalProperty_Name"}; !slices.Equal(animal.Names.TopLevel(), want) {
		t.Errorf("TopLevel() = %v, want %v", animal.Names.TopLevel(), want)
	}
	assertContains(t, string(mem.Get("people/animal_properties.go")), "func (a Animal) properties() []animalProperty {")
}

func TestGenerate_FailFast(t *testing.T) {
	tests := []struct {
		name     string
		source   string
		sentinel error
		message  string
		hint     string
	}{
		{
			name: "generic subject",
			source: `package people

//goldfinch:properties
type Person struct{ Name string }

//goldfinch:properties
type Box[T any] struct{ Value T }
`,
			sentinel: schema.ErrUnsupportedSubject,
			message:  "generic type example.com/people/people.Box is not supported",
			hint:     "non-generic struct",
		},
		{
			name: "local subject with inherit",
			source: `package people

//goldfinch:properties
type Person struct{ Name string }

func build() {
	//goldfinch:properties
	type point struct{ X int }
	_ = point{}
}
`,
			sentinel: schema.ErrUnsupportedVisibility,
			message:  "visibility \"local\" on type example.com/people/people.point is not supported",
			hint:     "package scope",
		},
		{
			name: "local subject with internal",
			source: `package people

//goldfinch:properties
type Person struct{ Name string }

func build() {
	//goldfinch:properties visibility=internal
	type point struct{ X int }
	_ = point{}
}
`,
			sentinel: schema.ErrUnsupportedSubject,
			message:  "declared inside a function",
			hint:     "package scope",
		},
		{
			name: "public on unexported",
			source: `package people

//goldfinch:properties
type Person struct{ Name string }

//goldfinch:properties visibility=public
type secret struct{ Key string }
`,
			sentinel: schema.ErrPublicVisibilityViolation,
			message:  "cannot generate public properties for internal type example.com/people/people.secret",
			hint:     "export secret or use visibility=internal",
		},
		{
			name: "colliding variants across types",
			source: `package people

//goldfinch:properties placement=top
type Person struct{ Name string }

//goldfinch:properties placement=top
type Animal struct{ Name string }
`,
			sentinel: schema.ErrNameCollision,
			message:  "generated identifier NameProperty is also generated for example.com/people/people.Person",
			hint:     "placement=nested",
		},
		{
			name: "accessor already declared",
			source: `package people

//goldfinch:properties
type Person struct{ Name string }

func (Person) Properties() {}
`,
			sentinel: schema.ErrNameCollision,
			message:  "generated identifier Properties is already declared",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := writeModule(t, map[string]string{"people/person.go": tt.source})

			_, err := FromPackages("./...").Dir(dir).Generate(context.Background())
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, tt.sentinel) {
				t.Errorf("want %v, got %v", tt.sentinel, err)
			}
			assertContains(t, err.Error(), tt.message)
			if tt.hint != "" {
				assertContains(t, strings.Join(errors.GetAllHints(err), "\n"), tt.hint)
			}

			entries, err := os.ReadDir(filepath.Join(dir, "people"))
			if err != nil {
				t.Fatal(err)
			}
			for _, e := range entries {
				if strings.HasSuffix(e.Name(), schema.GeneratedFileSuffix) {
					t.Errorf("unexpected %s", e.Name())
				}
			}
		})
	}
}

func TestGenerate_InvalidDirective(t *testing.T) {
	dir := writeModule(t, map[string]string{"people/person.go": `package people

//goldfinch:properties visibility=private
type Person struct{ Name string }
`})

	_, err := FromPackages("./...").Dir(dir).Generate(context.Background())
	if !errors.Is(err, schema.ErrInvalidConfig) {
		t.Fatalf("want ErrInvalidConfig, got %v", err)
	}
	assertContains(t, err.Error(), "person.go:3")
}

type ReflectPerson struct {
	Name        string
	DateOfBirth time.Time
}

type reflectAnimal struct {
	Name string
}

func TestGenerate_Reflection(t *testing.T) {
	mem := sink.NewMemorySink()
	result, err := New().
		Add(ReflectPerson{}, schema.GenerationConfig{Visibility: schema.ModeInternal, Placement: schema.PlacementTop}).
		Add(&reflectAnimal{}, schema.GenerationConfig{}).
		Provider(ProviderReflection).
		WithSink(mem).
		ToDir("unused")
	if err != nil {
		t.Fatalf("ToDir() error: %v", err)
	}

	if want := []string{"reflect_person_properties.go", "reflect_animal_properties.go"}; !slices.Equal(result.Paths(), want) {
		t.Errorf("Paths() = %v, want %v", result.Paths(), want)
	}

	person := string(mem.Get("reflect_person_properties.go"))
	if strings.Contains(person, "// Source:") {
		t.Errorf("reflection output should not name a source file\n\n%s", person)
	}
	assertContains(t, person,
		"package goldfinchgen\n",
		"type reflectPersonProperty interface {",
		"DateOfBirth time.Time",
		"func (r ReflectPerson) properties() []reflectPersonProperty {")

	animal := result.Artifacts[1]
	if animal.Visibility != schema.VisibilityInternal {
		t.Errorf("reflectAnimal visibility = %v, want internal", animal.Visibility)
	}
	if v := animal.Names.Variants[0]; v != "reflectAnimalProperty_Name" {
		t.Errorf("variant = %q, want reflectAnimalProperty_Name", v)
	}

	dep, ok := mem.Dependency("reflect_animal_properties.go")
	if !ok {
		t.Fatal("no dependency recorded")
	}
	if got := dep.String(); got != "github.com/wowselim/goldfinch/goldfinchgen" {
		t.Errorf("dependency = %q", got)
	}
}

func TestGenerate_ReflectionErrors(t *testing.T) {
	tests := []struct {
		name    string
		gen     *Generator
		message string
	}{
		{"no types", New().Provider(ProviderReflection), "no types to generate"},
		{"packages", FromPackages("./...").Provider(ProviderReflection), "cannot load packages"},
		{"type names", FromTypes(ReflectPerson{}).Types("ReflectPerson").Provider(ProviderReflection), "select types by name"},
		{"no output directory", FromTypes(ReflectPerson{}).Provider(ProviderReflection), "no output directory"},
		{"nil value", FromTypes(nil).Provider(ProviderReflection), "nil value"},
		{"not a struct", FromTypes(42).Provider(ProviderReflection), "is not a named struct type"},
		{
			"public on unexported",
			New().Add(reflectAnimal{}, schema.GenerationConfig{Visibility: schema.ModePublic}).Provider(ProviderReflection),
			"cannot generate public properties",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.gen.WithSink(sink.NewMemorySink()).Generate(context.Background())
			if err == nil {
				t.Fatalf("expected error containing %q, got nil", tt.message)
			}
			assertContains(t, err.Error(), tt.message)
		})
	}
}

func TestGenerate_InvalidConfig(t *testing.T) {
	tests := []struct {
		name    string
		gen     *Generator
		message string
	}{
		{"provider", FromPackages("./...").Provider("magic"), `provider "magic" must be one of: source reflection`},
		{"visibility", FromPackages("./...").WithVisibility("private"), `visibility "private" must be one of: public internal inherit`},
		{"placement", FromPackages("./...").WithPlacement("side"), `placement "side" must be one of: top nested`},
		{"nothing to do", New(), "no packages or types to generate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.gen.Generate(context.Background())
			if err == nil {
				t.Fatalf("expected error containing %q, got nil", tt.message)
			}
			assertContains(t, err.Error(), tt.message)
		})
	}
}

func TestGenerate_Logging(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)

	_, err := New().
		Add(ReflectPerson{}, schema.GenerationConfig{}).
		Provider(ProviderReflection).
		WithLogger(zap.New(core)).
		WithSink(sink.NewMemorySink()).
		ToDir("out")
	if err != nil {
		t.Fatalf("ToDir() error: %v", err)
	}

	wrote := logs.FilterMessage("wrote file").All()
	if len(wrote) != 1 {
		t.Fatalf("got %d \"wrote file\" entries, want 1", len(wrote))
	}
	if wrote[0].LoggerName != "goldfinch" {
		t.Errorf("logger name = %q, want goldfinch", wrote[0].LoggerName)
	}
	if path := wrote[0].ContextMap()["path"]; path != "reflect_person_properties.go" {
		t.Errorf("path = %v, want reflect_person_properties.go", path)
	}

	generated := logs.FilterMessage("generated union").All()
	if len(generated) != 1 {
		t.Fatalf("got %d \"generated union\" entries, want 1", len(generated))
	}
	fields := generated[0].ContextMap()
	if fields["visibility"] != "public" {
		t.Errorf("visibility = %v, want public", fields["visibility"])
	}
	if fields["count"] != int64(2) {
		t.Errorf("count = %v, want 2", fields["count"])
	}
}

func TestGenerate_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := FromTypes(ReflectPerson{}).Provider(ProviderReflection).WithSink(sink.NewMemorySink()).Dir(".").Generate(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("want context.Canceled, got %v", err)
	}
}

func TestGenerateResultSchema(t *testing.T) {
	result := &GenerateResult{
		Provider: ProviderReflection,
		Artifacts: []Artifact{
			{Subject: schema.Subject{Name: "A", Package: "example.com/p"}},
			{Subject: schema.Subject{Name: "B", Package: "example.com/p"}},
		},
	}
	s := result.Schema()
	if s.Provider != ProviderReflection {
		t.Errorf("Provider = %q, want %q", s.Provider, ProviderReflection)
	}
	if len(s.Subjects) != 2 {
		t.Fatalf("got %d subjects, want 2", len(s.Subjects))
	}
	if s.FindSubject("example.com/p.B") == nil {
		t.Error("FindSubject(example.com/p.B) = nil")
	}
}

func TestApplyConfigDefaults(t *testing.T) {
	in := &Config{Defaults: schema.GenerationConfig{Placement: schema.PlacementTop}}
	got := applyConfigDefaults(in)

	if got.Provider != ProviderSource {
		t.Errorf("Provider = %q, want %q", got.Provider, ProviderSource)
	}
	if got.Dir != "." {
		t.Errorf("Dir = %q, want .", got.Dir)
	}
	if want := (schema.GenerationConfig{Visibility: schema.ModeInherit, Placement: schema.PlacementTop}); got.Defaults != want {
		t.Errorf("Defaults = %+v, want %+v", got.Defaults, want)
	}
	if in.Provider != "" {
		t.Error("input must not be mutated")
	}
}
