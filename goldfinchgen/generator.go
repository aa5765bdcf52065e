// Package goldfinchgen generates property unions for Go struct types.
//
// For every subject type it writes a file holding a sealed interface with
// one variant struct per field, and a Properties method returning the
// subject's fields as variants. Subjects come from //goldfinch:properties
// directives (the source provider) or from values passed at run time (the
// reflection provider).
package goldfinchgen

import (
	"context"
	"path"
	"path/filepath"
	"reflect"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/wowselim/goldfinch/goldfinchgen/golang"
	"github.com/wowselim/goldfinch/goldfinchgen/provider"
	"github.com/wowselim/goldfinch/goldfinchgen/schema"
	"github.com/wowselim/goldfinch/goldfinchgen/sink"
	"github.com/wowselim/goldfinch/internal/errors"
	"github.com/wowselim/goldfinch/internal/logging"
)

// Provider names.
const (
	ProviderSource     = "source"
	ProviderReflection = "reflection"
)

// Config holds the configuration for a generation run.
type Config struct {
	// Provider selects the extraction strategy.
	// "source" (default) loads packages and reads directives.
	// "reflection" inspects the values registered with Add or FromTypes.
	Provider string `validate:"omitempty,oneof=source reflection"`

	// Packages are go/packages patterns for the source provider. When empty,
	// the packages of the registered values are loaded.
	Packages []string

	// Types restricts the source provider to these annotated type names.
	Types []string

	// Tags are extra build tags for package loading.
	Tags []string

	// Dir is the working directory for package patterns and for output
	// paths. Empty means the current directory.
	Dir string

	// OutDir, when set, receives every generated file directly. Otherwise
	// each file is placed in the directory of its subject's package.
	OutDir string

	// Defaults apply to anything not set per type or by a directive.
	Defaults schema.GenerationConfig

	Logger *zap.Logger     `validate:"-"`
	Sink   sink.OutputSink `validate:"-"`
}

// Artifact is one generated file.
type Artifact struct {
	Subject schema.Subject

	// Config is the fully resolved configuration used.
	Config schema.GenerationConfig

	// Visibility is the effective visibility of the generated code.
	Visibility schema.Visibility

	Names golang.Names

	// Path is the slash-separated output path, relative to the sink root.
	Path string

	Source []byte

	Dependency sink.Dependency
}

// GenerateResult reports what a run produced.
type GenerateResult struct {
	Provider  string
	Artifacts []Artifact
}

// Schema returns the extracted subjects of the run.
func (r *GenerateResult) Schema() schema.Schema {
	s := schema.Schema{Provider: r.Provider, Subjects: make([]schema.Subject, 0, len(r.Artifacts))}
	for _, a := range r.Artifacts {
		s.Subjects = append(s.Subjects, a.Subject)
	}
	return s
}

// Paths returns the output paths in generation order.
func (r *GenerateResult) Paths() []string {
	paths := make([]string, len(r.Artifacts))
	for i, a := range r.Artifacts {
		paths[i] = a.Path
	}
	return paths
}

// generate runs a full generation. Every artifact is produced in memory
// first; nothing is written unless all subjects succeed.
func generate(ctx context.Context, entries []entry, cfg *Config) (*GenerateResult, error) {
	c := applyConfigDefaults(cfg)
	if err := schema.ValidateStruct(c); err != nil {
		return nil, err
	}
	logger := logging.Named(c.Logger, "goldfinch")

	annotated, err := extract(ctx, entries, c, logger)
	if err != nil {
		return nil, err
	}
	logger.Debug("extracted subjects",
		zap.String(logging.FieldProvider, c.Provider),
		zap.Int(logging.FieldCount, len(annotated)))

	base, err := filepath.Abs(c.Dir)
	if err != nil {
		return nil, errors.Wrap(err, "resolve working directory")
	}

	result := &GenerateResult{Provider: c.Provider, Artifacts: make([]Artifact, 0, len(annotated))}
	for _, a := range annotated {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		artifact, err := generateArtifact(a, c, base)
		if err != nil {
			return nil, err
		}
		logger.Debug("generated union",
			zap.String(logging.FieldSubject, a.Subject.QualifiedName()),
			zap.Stringer(logging.FieldVisibility, artifact.Visibility),
			zap.String(logging.FieldPlacement, string(artifact.Config.Placement)),
			zap.Int(logging.FieldCount, len(artifact.Names.Variants)))
		result.Artifacts = append(result.Artifacts, artifact)
	}

	if err := checkArtifacts(result.Artifacts); err != nil {
		return nil, err
	}

	out := c.Sink
	if out == nil {
		root := base
		if c.OutDir != "" {
			root = c.OutDir
		}
		out = sink.NewFilesystemSink(root)
	}
	tracker, _ := out.(sink.DependencyTracker)
	for _, a := range result.Artifacts {
		if err := out.WriteFile(ctx, a.Path, a.Source); err != nil {
			return nil, errors.Wrapf(err, "write %s", a.Path)
		}
		if tracker != nil {
			tracker.AddDependency(a.Path, a.Dependency)
		}
		logger.Info("wrote file",
			zap.String(logging.FieldPath, a.Path),
			zap.String(logging.FieldSubject, a.Subject.QualifiedName()))
	}
	return result, nil
}

// applyConfigDefaults returns a copy of cfg with defaults filled in.
func applyConfigDefaults(cfg *Config) *Config {
	result := *cfg
	if result.Provider == "" {
		result.Provider = ProviderSource
	}
	if result.Dir == "" {
		result.Dir = "."
	}
	result.Defaults = result.Defaults.Merge(schema.DefaultConfig)
	return &result
}

// extract runs the configured provider. The returned configs are merged
// from per-type options, directives, and defaults, in that order.
func extract(ctx context.Context, entries []entry, c *Config, logger *zap.Logger) ([]provider.Annotated, error) {
	switch c.Provider {
	case ProviderReflection:
		return extractReflection(ctx, entries, c, logger)
	default:
		return extractSource(ctx, entries, c, logger)
	}
}

func extractSource(ctx context.Context, entries []entry, c *Config, logger *zap.Logger) ([]provider.Annotated, error) {
	patterns := slices.Clone(c.Packages)
	overrides := make(map[string]schema.GenerationConfig, len(entries))
	rootTypes := slices.Clone(c.Types)

	for _, e := range entries {
		t, err := subjectType(e.value)
		if err != nil {
			return nil, err
		}
		name, _, _ := strings.Cut(t.Name(), "[")
		rootTypes = append(rootTypes, name)
		overrides[t.PkgPath()+"."+name] = e.cfg
		if len(c.Packages) == 0 && !slices.Contains(patterns, t.PkgPath()) {
			patterns = append(patterns, t.PkgPath())
		}
	}
	if len(patterns) == 0 {
		return nil, errors.WithHint(
			errors.New("no packages or types to generate"),
			"pass package patterns, for example ./...")
	}

	p := &provider.SourceProvider{Logger: c.Logger}
	annotated, err := p.Extract(ctx, provider.SourceInputOptions{
		Patterns:  patterns,
		Dir:       c.Dir,
		Tags:      c.Tags,
		RootTypes: rootTypes,
	})
	if err != nil {
		return nil, errors.Wrap(err, "extract subjects")
	}

	for i := range annotated {
		a := &annotated[i]
		a.Config = overrides[a.Subject.QualifiedName()].Merge(a.Config).Merge(c.Defaults)
		logger.Debug("resolved config",
			zap.String(logging.FieldSubject, a.Subject.QualifiedName()),
			zap.String(logging.FieldFile, a.Pos.String()),
			zap.String(logging.FieldVisibility, string(a.Config.Visibility)),
			zap.String(logging.FieldPlacement, string(a.Config.Placement)))
	}
	return annotated, nil
}

func extractReflection(ctx context.Context, entries []entry, c *Config, logger *zap.Logger) ([]provider.Annotated, error) {
	if len(c.Packages) > 0 || len(c.Types) > 0 {
		return nil, errors.WithHint(
			errors.New("the reflection provider cannot load packages or select types by name"),
			"register values with Add or FromTypes, or use the source provider")
	}
	if len(entries) == 0 {
		return nil, errors.WithHint(
			errors.New("no types to generate"),
			"register values with Add or FromTypes")
	}

	types := make([]reflect.Type, len(entries))
	for i, e := range entries {
		t, err := subjectType(e.value)
		if err != nil {
			return nil, err
		}
		types[i] = t
	}

	p := &provider.ReflectionProvider{Logger: c.Logger}
	subjects, err := p.Extract(ctx, provider.ReflectionInputOptions{RootTypes: types})
	if err != nil {
		return nil, errors.Wrap(err, "extract subjects")
	}

	annotated := make([]provider.Annotated, len(subjects))
	for i, s := range subjects {
		annotated[i] = provider.Annotated{
			Subject: s,
			Config:  entries[i].cfg.Merge(c.Defaults),
		}
	}
	return annotated, nil
}

func subjectType(value any) (reflect.Type, error) {
	t := reflect.TypeOf(value)
	if t == nil {
		return nil, errors.Mark(errors.New("cannot generate for a nil value"), schema.ErrUnsupportedSubject)
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t, nil
}

// generateArtifact resolves visibility, rejects subjects Go cannot attach
// the accessor to, and emits the union file.
func generateArtifact(a provider.Annotated, c *Config, base string) (Artifact, error) {
	subject := a.Subject
	if err := a.Config.Validate(); err != nil {
		return Artifact{}, errors.Wrapf(err, "%s", subject.QualifiedName())
	}

	vis, err := schema.Resolve(subject, a.Config.Visibility)
	if err != nil {
		return Artifact{}, err
	}

	switch {
	case subject.Generic:
		return Artifact{}, schema.Errorf(schema.ErrUnsupportedSubject,
			"wrap the instantiation you need in a non-generic struct",
			"generic type %s is not supported", subject.QualifiedName())
	case subject.Visibility == schema.VisibilityLocal:
		return Artifact{}, schema.Errorf(schema.ErrUnsupportedSubject,
			"move the type declaration to package scope",
			"type %s is declared inside a function", subject.QualifiedName())
	}

	out, err := golang.Generate(golang.Input{
		Subject:    subject,
		Fields:     subject.Fields,
		Visibility: vis,
		Placement:  a.Config.Placement,
	})
	if err != nil {
		return Artifact{}, err
	}

	outPath, err := outputPath(a, c, base, out.FileName)
	if err != nil {
		return Artifact{}, err
	}

	return Artifact{
		Subject:    subject,
		Config:     a.Config,
		Visibility: vis,
		Names:      out.Names,
		Path:       outPath,
		Source:     out.Source,
		Dependency: sink.Dependency{File: subject.File, Package: subject.Package},
	}, nil
}

// outputPath places the file in OutDir if set, and otherwise in the
// subject's package directory relative to base.
func outputPath(a provider.Annotated, c *Config, base, fileName string) (string, error) {
	if c.OutDir != "" {
		return fileName, nil
	}
	if a.Dir == "" {
		return "", errors.WithHint(
			errors.Newf("no output directory for %s", a.Subject.QualifiedName()),
			"the reflection provider does not know package directories; use ToDir")
	}
	rel, err := filepath.Rel(base, a.Dir)
	if err != nil {
		return "", errors.Wrapf(err, "locate package of %s", a.Subject.QualifiedName())
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", errors.WithHint(
			errors.Newf("package of %s is outside of %s", a.Subject.QualifiedName(), base),
			"run goldfinch from the module root or set the working directory")
	}
	return path.Join(rel, fileName), nil
}

// checkArtifacts rejects artifacts that would overwrite each other or
// declare the same identifier in one package.
func checkArtifacts(artifacts []Artifact) error {
	paths := make(map[string]string, len(artifacts))
	declared := make(map[string]map[string]string)

	for _, a := range artifacts {
		owner := a.Subject.QualifiedName()
		if prev, dup := paths[a.Path]; dup {
			return schema.Errorf(schema.ErrNameCollision,
				"rename one of the types",
				"%s and %s both generate %s", prev, owner, a.Path)
		}
		paths[a.Path] = owner

		names := declared[a.Subject.Package]
		if names == nil {
			names = make(map[string]string)
			declared[a.Subject.Package] = names
		}
		for _, name := range a.Names.TopLevel() {
			if prev, dup := names[name]; dup {
				return schema.Errorf(schema.ErrNameCollision,
					"use placement=nested or rename one of the types",
					"%s: generated identifier %s is also generated for %s", owner, name, prev)
			}
			names[name] = owner
		}
	}
	return nil
}
