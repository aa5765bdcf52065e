// Package loadcheck decides which go/packages errors stop goldfinch.
//
// Packages are loaded with previously generated files excluded, so code that
// uses the generated declarations fails to type-check. Those failures are
// expected. The go command reports the same compile failure a second time as
// a list error ("# pkg\n...undefined..."), which is expected too as long as
// the package was parsed and type-checked.
package loadcheck

import (
	"golang.org/x/tools/go/packages"

	"github.com/wowselim/goldfinch/internal/errors"
)

// Check returns the errors of pkg that can be ignored, or an error for the
// first one that cannot. Parse errors are never ignored, and list errors are
// only ignored next to type errors in a package that has syntax and types.
func Check(pkg *packages.Package) ([]packages.Error, error) {
	checked := pkg.Types != nil && len(pkg.Syntax) > 0 && hasTypeErrors(pkg)

	var tolerated []packages.Error
	for _, e := range pkg.Errors {
		switch {
		case e.Kind == packages.TypeError:
		case e.Kind == packages.ListError && checked:
		default:
			return nil, errors.Newf("package %s has errors: %v", pkg.PkgPath, e)
		}
		tolerated = append(tolerated, e)
	}
	return tolerated, nil
}

func hasTypeErrors(pkg *packages.Package) bool {
	for _, e := range pkg.Errors {
		if e.Kind == packages.TypeError {
			return true
		}
	}
	return false
}
