package provider

import (
	"context"
	"reflect"
	"runtime"
	"strings"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/wowselim/goldfinch/goldfinchgen/schema"
	"github.com/wowselim/goldfinch/internal/errors"
	"github.com/wowselim/goldfinch/internal/logging"
)

// ReflectionProvider extracts subjects using runtime reflection.
//
// It has no access to source files, so subjects carry no File, package-scope
// names are unknown, and visibility is derived from the type name alone.
// Its raw field list is gathered by name and is not trusted to be ordered;
// fields are re-sorted against the struct's declared field listing.
type ReflectionProvider struct {
	Logger *zap.Logger
}

// ReflectionInputOptions configures reflection-based extraction.
type ReflectionInputOptions struct {
	// RootTypes are the subject types. Pointer types are dereferenced.
	RootTypes []reflect.Type
}

// Extract returns one subject per root type, in input order.
func (p *ReflectionProvider) Extract(ctx context.Context, opts ReflectionInputOptions) ([]schema.Subject, error) {
	if len(opts.RootTypes) == 0 {
		return nil, errors.New("no root types provided")
	}
	logger := logging.Named(p.Logger, "reflection")

	subjects := make([]schema.Subject, 0, len(opts.RootTypes))
	for _, t := range opts.RootTypes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		subject, err := p.extractSubject(t, logger)
		if err != nil {
			return nil, err
		}
		subjects = append(subjects, subject)
	}
	return subjects, nil
}

func (p *ReflectionProvider) extractSubject(t reflect.Type, logger *zap.Logger) (schema.Subject, error) {
	if t == nil {
		return schema.Subject{}, errors.Mark(errors.New("nil root type"), schema.ErrUnsupportedSubject)
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct || t.Name() == "" {
		return schema.Subject{}, schema.Errorf(schema.ErrUnsupportedSubject,
			"pass a value of a named struct type",
			"%s is not a named struct type", t)
	}

	name, typeArgs := splitTypeArgs(t.Name())
	subject := schema.Subject{
		Name:        name,
		Package:     t.PkgPath(),
		PackageName: reflectPackageName(t),
		Visibility:  nameVisibility(name),
		Generic:     typeArgs != "",
	}

	r := &reflectResolver{pkgPath: subject.Package, pkgName: subject.PackageName}

	// Raw fields, keyed by name.
	raw := make(map[string]schema.FieldDescriptor, t.NumField())
	for _, f := range reflect.VisibleFields(t) {
		if len(f.Index) != 1 || f.Name == "_" {
			continue
		}
		desc, ok := r.resolve(f.Type)
		if !ok || desc.Partial {
			logger.Debug("skipping field without a nameable type",
				zap.String(logging.FieldSubject, name),
				zap.String(logging.FieldField, f.Name),
				zap.Stringer("type", f.Type))
			continue
		}
		raw[f.Name] = schema.FieldDescriptor{Name: f.Name, Type: desc}
	}

	// Declared listing, used only to order the raw fields.
	declared := make([]string, 0, t.NumField())
	members := make([]string, 0, t.NumField())
	for i := range t.NumField() {
		declared = append(declared, t.Field(i).Name)
		members = append(members, t.Field(i).Name)
	}
	pt := reflect.PointerTo(t)
	for i := range pt.NumMethod() {
		m := pt.Method(i)
		if generatedMethod(t, m.Name) {
			continue
		}
		members = append(members, m.Name)
	}

	fields := make([]schema.FieldDescriptor, 0, len(raw))
	for _, f := range raw {
		fields = append(fields, f)
	}
	subject.Fields = SortByDeclaration(fields, declared)
	subject.Reserved = members

	logger.Debug("extracted subject",
		zap.String(logging.FieldSubject, subject.QualifiedName()),
		zap.Int(logging.FieldCount, len(subject.Fields)))
	return subject, nil
}

// generatedMethod reports whether the value method name of t is declared in a
// previously generated *_properties.go file. The reflection runner compiles
// the package with its generated files, so their methods must not count as
// user declarations.
func generatedMethod(t reflect.Type, name string) bool {
	m, ok := t.MethodByName(name)
	if !ok {
		return false
	}
	fn := runtime.FuncForPC(m.Func.Pointer())
	if fn == nil {
		return false
	}
	file, _ := fn.FileLine(fn.Entry())
	return strings.HasSuffix(file, schema.GeneratedFileSuffix)
}

// reflectResolver converts reflect types into descriptors on behalf of the
// subject's package.
type reflectResolver struct {
	pkgPath string
	pkgName string
}

func (r *reflectResolver) resolve(t reflect.Type) (schema.TypeDescriptor, bool) {
	if t.Name() != "" {
		return r.named(t)
	}

	switch t.Kind() {
	case reflect.Pointer:
		elem, ok := r.resolve(t.Elem())
		if !ok {
			return schema.TypeDescriptor{}, false
		}
		return schema.Pointer(elem), true
	case reflect.Slice:
		elem, ok := r.resolve(t.Elem())
		if !ok {
			return schema.TypeDescriptor{}, false
		}
		return schema.Slice(elem), true
	case reflect.Array:
		elem, ok := r.resolve(t.Elem())
		if !ok {
			return schema.TypeDescriptor{}, false
		}
		return schema.Array(elem, int64(t.Len())), true
	case reflect.Map:
		key, ok := r.resolve(t.Key())
		if !ok {
			return schema.TypeDescriptor{}, false
		}
		value, ok := r.resolve(t.Elem())
		if !ok {
			return schema.TypeDescriptor{}, false
		}
		return schema.Map(key, value), true
	case reflect.Interface:
		if t.NumMethod() == 0 {
			return schema.Predeclared("any"), true
		}
	}
	return schema.TypeDescriptor{}, false
}

func (r *reflectResolver) named(t reflect.Type) (schema.TypeDescriptor, bool) {
	if t.PkgPath() == "" {
		if t.Kind() == reflect.UnsafePointer {
			return schema.TypeDescriptor{}, false
		}
		return schema.Predeclared(t.Name()), true
	}

	name, args := splitTypeArgs(t.Name())
	if t.PkgPath() != r.pkgPath && !isExported(name) {
		return schema.TypeDescriptor{}, false
	}

	pkgName := reflectPackageName(t)
	if t.PkgPath() == r.pkgPath {
		pkgName = r.pkgName
	}
	if args == "" {
		return schema.Named(t.PkgPath(), pkgName, name), true
	}

	var resolved []schema.TypeDescriptor
	dropped := false
	for _, arg := range splitTopLevel(args) {
		d, ok := r.parse(arg)
		if !ok {
			dropped = true
			continue
		}
		resolved = append(resolved, d)
	}
	d := schema.Named(t.PkgPath(), pkgName, name, resolved...)
	d.Partial = d.Partial || dropped
	return d, true
}

// parse resolves a type argument spelled the way the runtime names generic
// instantiations, for example "github.com/acme/box.Inner[string]".
func (r *reflectResolver) parse(expr string) (schema.TypeDescriptor, bool) {
	d, ok := parseTypeExpr(expr)
	if !ok {
		return d, false
	}
	return r.localize(d), true
}

// localize replaces guessed package names with the subject's own package
// name where the paths match.
func (r *reflectResolver) localize(d schema.TypeDescriptor) schema.TypeDescriptor {
	if d.Kind == schema.KindNamed && d.Package == r.pkgPath && d.Package != "" {
		d.PackageName = r.pkgName
	}
	if len(d.TypeArguments) > 0 {
		args := make([]schema.TypeDescriptor, len(d.TypeArguments))
		for i, arg := range d.TypeArguments {
			args[i] = r.localize(arg)
		}
		d.TypeArguments = args
	}
	return d
}

// reflectPackageName returns the declared package name of a named type, taken
// from its String form ("time.Time" → "time").
func reflectPackageName(t reflect.Type) string {
	s := t.String()
	if i := strings.IndexByte(s, '['); i >= 0 {
		s = s[:i]
	}
	if i := strings.LastIndexByte(s, '.'); i >= 0 {
		return s[:i]
	}
	return guessPackageName(t.PkgPath())
}

func nameVisibility(name string) schema.Visibility {
	if isExported(name) {
		return schema.VisibilityPublic
	}
	return schema.VisibilityInternal
}

func isExported(name string) bool {
	r, _ := utf8.DecodeRuneInString(name)
	return unicode.IsUpper(r)
}
