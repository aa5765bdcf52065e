package goldfinchgen

import (
	"context"

	"go.uber.org/zap"

	"github.com/wowselim/goldfinch/goldfinchgen/schema"
	"github.com/wowselim/goldfinch/goldfinchgen/sink"
)

// Generator provides a fluent API for property union generation.
// Create one with FromPackages, FromTypes, or New and configure it with
// method chaining.
//
// Example:
//
//	goldfinchgen.FromPackages("./...").
//	    WithVisibility(schema.ModeInternal).
//	    Generate(ctx)
type Generator struct {
	entries []entry
	cfg     Config
}

type entry struct {
	value any
	cfg   schema.GenerationConfig
}

// New creates an empty Generator. Add types with Add or packages with
// Packages.
func New() *Generator {
	return &Generator{}
}

// FromPackages creates a Generator for every //goldfinch:properties type in
// the packages matching patterns. It uses the source provider.
func FromPackages(patterns ...string) *Generator {
	return New().Packages(patterns...)
}

// FromTypes creates a Generator for the types of the given values.
//
// By default the source provider is used, which requires each type to carry
// a //goldfinch:properties directive. Use .Provider("reflection") to generate
// from the values alone.
func FromTypes(values ...any) *Generator {
	g := New()
	for _, v := range values {
		g.Add(v, schema.GenerationConfig{})
	}
	return g
}

// Add registers the type of value with a per-type configuration. Values set
// in cfg take precedence over directive options and generator defaults.
func (g *Generator) Add(value any, cfg schema.GenerationConfig) *Generator {
	g.entries = append(g.entries, entry{value: value, cfg: cfg})
	return g
}

// WithVisibility sets the default visibility mode.
func (g *Generator) WithVisibility(mode schema.VisibilityMode) *Generator {
	g.cfg.Defaults.Visibility = mode
	return g
}

// WithPlacement sets the default variant placement.
func (g *Generator) WithPlacement(p schema.Placement) *Generator {
	g.cfg.Defaults.Placement = p
	return g
}

// Provider sets the extraction strategy: "source" (default) or "reflection".
func (g *Generator) Provider(p string) *Generator {
	g.cfg.Provider = p
	return g
}

// Packages adds go/packages patterns to load with the source provider.
func (g *Generator) Packages(patterns ...string) *Generator {
	g.cfg.Packages = append(g.cfg.Packages, patterns...)
	return g
}

// Types restricts source generation to the named annotated types. Naming a
// type without a directive is an error.
func (g *Generator) Types(names ...string) *Generator {
	g.cfg.Types = append(g.cfg.Types, names...)
	return g
}

// Tags adds build tags used while loading packages.
func (g *Generator) Tags(tags ...string) *Generator {
	g.cfg.Tags = append(g.cfg.Tags, tags...)
	return g
}

// Dir sets the working directory for package patterns and output paths.
func (g *Generator) Dir(dir string) *Generator {
	g.cfg.Dir = dir
	return g
}

// WithLogger sets the logger. Without one, nothing is logged.
func (g *Generator) WithLogger(logger *zap.Logger) *Generator {
	g.cfg.Logger = logger
	return g
}

// WithSink sends generated files to s instead of the filesystem.
func (g *Generator) WithSink(s sink.OutputSink) *Generator {
	g.cfg.Sink = s
	return g
}

// OutDir collects every generated file in dir instead of placing each one
// next to its package.
func (g *Generator) OutDir(dir string) *Generator {
	g.cfg.OutDir = dir
	return g
}

// ToDir generates files into dir. Each file is named after its subject.
// This is a terminal operation.
func (g *Generator) ToDir(dir string) (*GenerateResult, error) {
	return g.OutDir(dir).Generate(context.Background())
}

// Generate runs generation. Unless ToDir or WithSink redirect output, each
// file is written next to the package declaring its subject.
func (g *Generator) Generate(ctx context.Context) (*GenerateResult, error) {
	return generate(ctx, g.entries, &g.cfg)
}
