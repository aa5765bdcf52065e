// Package directive parses goldfinch directives from Go source files.
//
// A directive is a line comment in the doc comment of a type declaration:
//
//	//goldfinch:properties [visibility=public|internal|inherit] [placement=top|nested]
//	type Person struct {
//		Name string
//	}
//
// Options are space separated key=value pairs. Omitted options fall back to
// the generator's defaults.
package directive

import (
	"go/ast"
	"go/token"
	"net/url"
	"strings"

	"github.com/gorilla/schema"

	gschema "github.com/wowselim/goldfinch/goldfinchgen/schema"
	"github.com/wowselim/goldfinch/internal/errors"
)

// Prefix starts every goldfinch directive.
const Prefix = "//goldfinch:"

// Kind represents the type of directive.
type Kind string

const (
	KindProperties Kind = "properties"
)

var decoder = schema.NewDecoder()

func init() {
	decoder.IgnoreUnknownKeys(false)
	decoder.ZeroEmpty(true)
}

// Directive is a parsed //goldfinch:properties directive and the type it
// annotates.
type Directive struct {
	Kind     Kind
	TypeName string                  // name of the annotated type
	Ident    *ast.Ident              // the type spec's name, for type lookups
	Config   gschema.GenerationConfig // options given on the directive line
	Local    bool                    // the type is declared inside a function
	Pos      token.Position          // location of the directive comment
}

// ParseFile extracts directives from a single parsed file. The file must have
// been parsed with parser.ParseComments.
//
// Returns an error if:
//   - A directive name is unknown
//   - A directive has malformed, unknown, repeated, or invalid options
//   - A directive is not immediately followed by a type declaration
//   - A type carries more than one directive
func ParseFile(fset *token.FileSet, f *ast.File) ([]Directive, error) {
	type pending struct {
		cfg gschema.GenerationConfig
		pos token.Position
	}
	// Keyed by the end of the comment group holding the directive, so it
	// can be matched against the doc comment of the following declaration.
	commentToDirective := make(map[token.Pos]pending)

	for _, cg := range f.Comments {
		for _, c := range cg.List {
			if !strings.HasPrefix(c.Text, Prefix) {
				continue
			}

			pos := fset.Position(c.Pos())
			text := strings.TrimPrefix(c.Text, Prefix)
			parts := strings.Fields(text)
			if len(parts) == 0 {
				return nil, errors.Newf("%s: empty directive %s", pos, Prefix)
			}

			if Kind(parts[0]) != KindProperties {
				return nil, errors.WithHintf(
					errors.Newf("%s: unknown directive %s%s", pos, Prefix, parts[0]),
					"the only directive is %s%s", Prefix, KindProperties)
			}
			if _, dup := commentToDirective[cg.End()]; dup {
				return nil, errors.Newf("%s: duplicate %s%s directive", pos, Prefix, KindProperties)
			}

			cfg, err := parseOptions(parts[1:])
			if err != nil {
				return nil, errors.Wrapf(err, "%s", pos)
			}
			commentToDirective[cg.End()] = pending{cfg: cfg, pos: pos}
		}
	}

	if len(commentToDirective) == 0 {
		return nil, nil
	}

	var directives []Directive
	match := func(doc *ast.CommentGroup, spec *ast.TypeSpec, local bool) error {
		if doc == nil {
			return nil
		}
		p, ok := commentToDirective[doc.End()]
		if !ok {
			return nil
		}
		delete(commentToDirective, doc.End())
		if spec.Assign.IsValid() {
			return errors.Newf("%s: %s%s cannot annotate type alias %s", p.pos, Prefix, KindProperties, spec.Name.Name)
		}
		directives = append(directives, Directive{
			Kind:     KindProperties,
			TypeName: spec.Name.Name,
			Ident:    spec.Name,
			Config:   p.cfg,
			Local:    local,
			Pos:      p.pos,
		})
		return nil
	}

	var matchErr error
	visitGenDecl := func(gd *ast.GenDecl, local bool) {
		if gd.Tok != token.TYPE || matchErr != nil {
			return
		}
		for _, s := range gd.Specs {
			spec := s.(*ast.TypeSpec)
			doc := spec.Doc
			// An ungrouped declaration keeps its doc comment on the GenDecl.
			if doc == nil && !gd.Lparen.IsValid() {
				doc = gd.Doc
			}
			if err := match(doc, spec, local); err != nil {
				matchErr = err
				return
			}
		}
	}

	for _, decl := range f.Decls {
		if gd, ok := decl.(*ast.GenDecl); ok && gd.Tok == token.TYPE {
			visitGenDecl(gd, false)
			continue
		}
		ast.Inspect(decl, func(n ast.Node) bool {
			if gd, ok := n.(*ast.GenDecl); ok && gd.Tok == token.TYPE {
				visitGenDecl(gd, true)
				return false
			}
			return matchErr == nil
		})
	}
	if matchErr != nil {
		return nil, matchErr
	}

	// Report the first unmatched directive by position for stable errors.
	var first *pending
	for _, p := range commentToDirective {
		if first == nil || p.pos.Offset < first.pos.Offset {
			first = &p
		}
	}
	if first != nil {
		return nil, errors.WithHint(
			errors.Newf("%s: %s%s directive must be followed by a type declaration", first.pos, Prefix, KindProperties),
			"place the directive in the doc comment directly above the struct")
	}

	return directives, nil
}

// parseOptions decodes key=value tokens into a validated config.
func parseOptions(tokens []string) (gschema.GenerationConfig, error) {
	var cfg gschema.GenerationConfig
	if len(tokens) == 0 {
		return cfg, nil
	}

	values := make(url.Values, len(tokens))
	for _, tok := range tokens {
		key, value, ok := strings.Cut(tok, "=")
		if !ok || key == "" || value == "" {
			return cfg, errors.WithHint(
				errors.Newf("malformed option %q", tok),
				"options have the form key=value, e.g. visibility=internal")
		}
		if values.Has(key) {
			return cfg, errors.Newf("option %q given more than once", key)
		}
		values.Set(key, value)
	}

	if err := decoder.Decode(&cfg, values); err != nil {
		return cfg, errors.WithHint(
			errors.Wrap(err, "decode options"),
			"known options are visibility and placement")
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
