// Package discover finds //goldfinch:properties types in Go packages.
//
// It reports each annotated type together with the package and module that
// declare it. The CLI uses the result to drive the reflection runner, which
// needs to know which types to instantiate and where the package lives.
package discover

import (
	"context"
	"fmt"
	"go/token"
	"go/types"
	"path/filepath"
	"strings"

	"golang.org/x/tools/go/packages"

	"github.com/wowselim/goldfinch/goldfinchgen/schema"
	"github.com/wowselim/goldfinch/internal/directive"
	"github.com/wowselim/goldfinch/internal/errors"
	"github.com/wowselim/goldfinch/internal/loadcheck"
)

// BuildTag excludes previously generated files while loading.
const BuildTag = "goldfinch"

// Subject is an annotated type found in a package.
type Subject struct {
	Name    string                  // type name
	Config  schema.GenerationConfig // options from the directive
	Generic bool                    // declares type parameters
	Local   bool                    // declared inside a function
	Pos     token.Position          // location of the directive
}

// Package holds the annotated types of one package.
type Package struct {
	Name        string
	PackagePath string
	ModulePath  string
	ModuleDir   string // directory containing go.mod
	Dir         string // directory containing the package
	Subjects    []Subject
}

// Find loads the packages matching patterns and returns those that declare
// at least one annotated type, in package path order.
//
// Patterns follow go command semantics:
//   - "." for current directory
//   - "./..." for a tree
//   - Import path like "github.com/foo/bar"
func Find(ctx context.Context, patterns ...string) ([]Package, error) {
	return FindDir(ctx, "", patterns...)
}

// FindDir is like Find but allows specifying a working directory.
func FindDir(ctx context.Context, dir string, patterns ...string) ([]Package, error) {
	if len(patterns) == 0 {
		patterns = []string{"."}
	}

	cfg := &packages.Config{
		Context: ctx,
		Mode: packages.NeedName | packages.NeedFiles | packages.NeedSyntax |
			packages.NeedTypes | packages.NeedTypesInfo | packages.NeedModule,
		Dir:        dir,
		BuildFlags: []string{"-tags=" + BuildTag},
	}

	pkgs, err := packages.Load(cfg, patterns...)
	if err != nil {
		return nil, errors.Wrap(err, "load packages")
	}
	if len(pkgs) == 0 {
		return nil, errors.Newf("no packages found matching %q", strings.Join(patterns, " "))
	}

	var result []Package
	for _, pkg := range pkgs {
		// Code using the generated declarations does not compile while they
		// are excluded.
		if _, err := loadcheck.Check(pkg); err != nil {
			return nil, err
		}

		found, err := findSubjects(pkg)
		if err != nil {
			return nil, err
		}
		if len(found) == 0 {
			continue
		}

		p := Package{
			Name:        pkg.Name,
			PackagePath: pkg.PkgPath,
			Subjects:    found,
		}
		if pkg.Module != nil {
			p.ModulePath = pkg.Module.Path
			p.ModuleDir = pkg.Module.Dir
		}
		if len(pkg.GoFiles) > 0 {
			p.Dir = filepath.Dir(pkg.GoFiles[0])
		}
		result = append(result, p)
	}

	return result, nil
}

func findSubjects(pkg *packages.Package) ([]Subject, error) {
	var subjects []Subject
	for _, f := range pkg.Syntax {
		directives, err := directive.ParseFile(pkg.Fset, f)
		if err != nil {
			return nil, err
		}
		for _, d := range directives {
			tn, err := directive.Lookup(d, pkg.TypesInfo)
			if err != nil {
				return nil, err
			}
			named := types.Unalias(tn.Type()).(*types.Named)
			subjects = append(subjects, Subject{
				Name:    d.TypeName,
				Config:  d.Config,
				Generic: named.TypeParams().Len() > 0,
				Local:   d.Local,
				Pos:     d.Pos,
			})
		}
	}
	return subjects, nil
}

// Select picks subjects by name.
//
// If names is empty every subject is returned, and finding none at all is an
// error. Otherwise each name must match a subject in some package; packages
// left without a selected subject are dropped.
func Select(pkgs []Package, names []string) ([]Package, error) {
	if len(names) == 0 {
		if len(pkgs) == 0 {
			return nil, errors.WithHint(
				errors.New("no annotated types found"),
				"annotate a struct type:\n\n    //goldfinch:properties\n    type Person struct {\n        Name string\n    }")
		}
		return pkgs, nil
	}

	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = false
	}

	var result []Package
	for _, p := range pkgs {
		var keep []Subject
		for _, s := range p.Subjects {
			if _, ok := want[s.Name]; ok {
				want[s.Name] = true
				keep = append(keep, s)
			}
		}
		if len(keep) > 0 {
			p.Subjects = keep
			result = append(result, p)
		}
	}

	for _, n := range names {
		if !want[n] {
			msg := fmt.Sprintf("type %q not found\n\nannotated types:\n", n)
			for _, p := range pkgs {
				for _, s := range p.Subjects {
					msg += fmt.Sprintf("  - %s.%s (%s)\n", p.Name, s.Name, s.Pos)
				}
			}
			return nil, errors.Newf("%s", strings.TrimSuffix(msg, "\n"))
		}
	}
	return result, nil
}
