package provider

import (
	"context"
	"go/types"
	"path/filepath"
	"slices"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/tools/go/packages"

	"github.com/wowselim/goldfinch/goldfinchgen/schema"
	"github.com/wowselim/goldfinch/internal/directive"
	"github.com/wowselim/goldfinch/internal/errors"
	"github.com/wowselim/goldfinch/internal/loadcheck"
	"github.com/wowselim/goldfinch/internal/logging"
)

// BuildTag is set while loading packages so that previously generated files,
// which carry a //go:build !goldfinch constraint, do not take part in type
// checking.
const BuildTag = "goldfinch"

// SourceProvider extracts subjects by type-checking Go source code.
type SourceProvider struct {
	// Logger receives debug output about skipped fields and tolerated type
	// errors. Nil means no logging.
	Logger *zap.Logger
}

// SourceInputOptions configures source-based extraction.
type SourceInputOptions struct {
	// Patterns are go/packages patterns ("./...", import paths, directories).
	Patterns []string

	// Dir is the working directory for pattern resolution. Empty means the
	// current directory.
	Dir string

	// Tags are extra build tags, in addition to BuildTag.
	Tags []string

	// Env overrides the environment of the underlying go command.
	Env []string

	// RootTypes restricts extraction to these type names. If empty, every
	// annotated type is extracted.
	RootTypes []string
}

// Extract loads the packages matching opts.Patterns and returns one
// Annotated per //goldfinch:properties directive, ordered by package path and
// then source position.
//
// Type errors are tolerated: code referring to generated declarations does
// not type-check while the generated files are excluded. Parse errors, and
// list errors that left a package without syntax or types, are fatal.
func (p *SourceProvider) Extract(ctx context.Context, opts SourceInputOptions) ([]Annotated, error) {
	if len(opts.Patterns) == 0 {
		return nil, errors.New("no packages specified")
	}
	logger := logging.Named(p.Logger, "source")

	cfg := &packages.Config{
		Context: ctx,
		Mode: packages.NeedName |
			packages.NeedFiles |
			packages.NeedCompiledGoFiles |
			packages.NeedImports |
			packages.NeedTypes |
			packages.NeedSyntax |
			packages.NeedTypesInfo,
		Dir:        opts.Dir,
		Env:        opts.Env,
		BuildFlags: []string{"-tags=" + strings.Join(append([]string{BuildTag}, opts.Tags...), ",")},
	}

	pkgs, err := packages.Load(cfg, opts.Patterns...)
	if err != nil {
		return nil, errors.Wrap(err, "load packages")
	}
	if len(pkgs) == 0 {
		return nil, errors.Newf("no packages found matching %s", strings.Join(opts.Patterns, " "))
	}

	slices.SortFunc(pkgs, func(a, b *packages.Package) int {
		return strings.Compare(a.PkgPath, b.PkgPath)
	})

	var result []Annotated
	for _, pkg := range pkgs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := checkErrors(pkg, logger); err != nil {
			return nil, err
		}

		annotated, err := p.extractPackage(pkg, opts.RootTypes, logger)
		if err != nil {
			return nil, err
		}
		result = append(result, annotated...)
	}

	if len(opts.RootTypes) > 0 {
		for _, name := range opts.RootTypes {
			if !slices.ContainsFunc(result, func(a Annotated) bool { return a.Subject.Name == name }) {
				return nil, errors.Newf("annotated type %s not found in any package", name)
			}
		}
	}

	return result, nil
}

// checkErrors fails on errors that prevent extraction and logs the rest.
func checkErrors(pkg *packages.Package, logger *zap.Logger) error {
	tolerated, err := loadcheck.Check(pkg)
	if err != nil {
		return err
	}
	for _, e := range tolerated {
		logger.Debug("tolerating type error",
			zap.String(logging.FieldPackage, pkg.PkgPath),
			zap.String("error", e.Msg),
			zap.String(logging.FieldPath, e.Pos))
	}
	return nil
}

func (p *SourceProvider) extractPackage(pkg *packages.Package, rootTypes []string, logger *zap.Logger) ([]Annotated, error) {
	var dir string
	if len(pkg.GoFiles) > 0 {
		dir = filepath.Dir(pkg.GoFiles[0])
	}

	var result []Annotated
	for _, file := range pkg.Syntax {
		directives, err := directive.ParseFile(pkg.Fset, file)
		if err != nil {
			return nil, err
		}

		for _, d := range directives {
			if len(rootTypes) > 0 && !slices.Contains(rootTypes, d.TypeName) {
				continue
			}

			tn, err := directive.Lookup(d, pkg.TypesInfo)
			if err != nil {
				return nil, errors.Mark(err, schema.ErrUnsupportedSubject)
			}

			subject := buildSubject(pkg, tn, d.Local, logger)
			logger.Debug("extracted subject",
				zap.String(logging.FieldSubject, subject.QualifiedName()),
				zap.Int(logging.FieldCount, len(subject.Fields)))

			result = append(result, Annotated{
				Subject: subject,
				Config:  d.Config,
				Dir:     dir,
				Pos:     d.Pos,
			})
		}
	}
	return result, nil
}

// buildSubject extracts the subject described by tn. tn must name a struct
// type.
func buildSubject(pkg *packages.Package, tn *types.TypeName, local bool, logger *zap.Logger) schema.Subject {
	named := types.Unalias(tn.Type()).(*types.Named)
	st := named.Underlying().(*types.Struct)

	subject := schema.Subject{
		Name:        tn.Name(),
		Package:     pkg.PkgPath,
		PackageName: pkg.Name,
		Visibility:  declaredVisibility(tn, local),
		Generic:     named.TypeParams().Len() > 0,
		File:        pkg.Fset.Position(tn.Pos()).Filename,
		Fields:      []schema.FieldDescriptor{},
	}

	r := &typeResolver{pkg: pkg.Types}
	for i := range st.NumFields() {
		v := st.Field(i)
		if v.Name() == "_" {
			continue
		}
		desc, ok := r.resolve(v.Type())
		if !ok || desc.Partial {
			logger.Debug("skipping field without a nameable type",
				zap.String(logging.FieldSubject, tn.Name()),
				zap.String(logging.FieldField, v.Name()),
				zap.String("type", types.TypeString(v.Type(), types.RelativeTo(pkg.Types))))
			continue
		}
		subject.Fields = append(subject.Fields, schema.FieldDescriptor{Name: v.Name(), Type: desc})
	}

	subject.Reserved = reservedNames(pkg.Types.Scope(), named, st)
	return subject
}

func declaredVisibility(tn *types.TypeName, local bool) schema.Visibility {
	switch {
	case local || (tn.Parent() != nil && tn.Parent() != tn.Pkg().Scope()):
		return schema.VisibilityLocal
	case tn.Exported():
		return schema.VisibilityPublic
	default:
		return schema.VisibilityInternal
	}
}

// reservedNames lists package-scope identifiers plus the fields and methods
// declared directly on named.
func reservedNames(scope *types.Scope, named *types.Named, st *types.Struct) []string {
	names := slices.Clone(scope.Names())
	for i := range st.NumFields() {
		names = append(names, st.Field(i).Name())
	}
	for i := range named.NumMethods() {
		names = append(names, named.Method(i).Name())
	}
	slices.Sort(names)
	return slices.Compact(names)
}
