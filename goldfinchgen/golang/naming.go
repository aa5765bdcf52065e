package golang

import (
	"slices"
	"unicode"
	"unicode/utf8"

	"github.com/iancoleman/strcase"

	"github.com/wowselim/goldfinch/goldfinchgen/schema"
)

// Names are the identifiers generated for one subject.
type Names struct {
	// Union is the sealed interface, e.g. PersonProperty.
	Union string

	// Variants holds one type name per field, in field order.
	Variants []string

	// Accessor is the method on the subject returning all variants.
	Accessor string

	// Marker is the unexported method sealing the union.
	Marker string
}

// NewNames computes the identifiers for subject under the given visibility
// and placement. Field names are taken from fields.
func NewNames(subject string, fields []schema.FieldDescriptor, vis schema.Visibility, placement schema.Placement) Names {
	union := subject + "Property"
	if vis == schema.VisibilityInternal {
		union = lowerFirst(union)
	}

	n := Names{
		Union:    union,
		Variants: make([]string, len(fields)),
		Accessor: "Properties",
		Marker:   "is" + upperFirst(union),
	}
	if vis == schema.VisibilityInternal {
		n.Accessor = lowerFirst(n.Accessor)
	}

	for i, f := range fields {
		switch placement {
		case schema.PlacementTop:
			name := upperFirst(f.Name) + "Property"
			if vis == schema.VisibilityInternal {
				name = lowerFirst(name)
			}
			n.Variants[i] = name
		default:
			n.Variants[i] = union + "_" + upperFirst(f.Name)
		}
	}
	return n
}

// TopLevel returns the package-scope names: the union and its variants.
func (n Names) TopLevel() []string {
	return append([]string{n.Union}, n.Variants...)
}

// FileName returns the name of the generated file for subject, e.g.
// "date_of_birth_properties.go" for DateOfBirth.
func FileName(subject string) string {
	return strcase.ToSnake(subject) + schema.GeneratedFileSuffix
}

// checkCollisions reports the first generated name that is declared twice
// or clashes with a reserved name of the subject.
func checkCollisions(subject schema.Subject, n Names, fields []schema.FieldDescriptor) error {
	seen := make(map[string]string, len(n.Variants)+1)
	seen[n.Union] = "union"
	for i, v := range n.Variants {
		if prev, dup := seen[v]; dup {
			return schema.Errorf(schema.ErrNameCollision,
				"rename one of the fields or use placement=nested",
				"%s: variant %s for field %s collides with %s", subject.QualifiedName(), v, fields[i].Name, prev)
		}
		seen[v] = "field " + fields[i].Name
	}

	for _, name := range append(n.TopLevel(), n.Accessor) {
		if slices.Contains(subject.Reserved, name) {
			return schema.Errorf(schema.ErrNameCollision,
				"rename the existing declaration or choose another visibility or placement",
				"%s: generated identifier %s is already declared", subject.QualifiedName(), name)
		}
	}

	for _, f := range fields {
		if f.Name == n.Marker {
			return schema.Errorf(schema.ErrNameCollision,
				"rename the field",
				"%s: field %s collides with the marker method of %s", subject.QualifiedName(), f.Name, n.Union)
		}
	}
	return nil
}

func upperFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

func lowerFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 {
		return s
	}
	return string(unicode.ToLower(r)) + s[size:]
}
