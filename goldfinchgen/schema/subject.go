package schema

// GeneratedFileSuffix ends the name of every file the generator writes.
const GeneratedFileSuffix = "_properties.go"

// FieldDescriptor is one field of a subject type.
type FieldDescriptor struct {
	Name string         `yaml:"name"`
	Type TypeDescriptor `yaml:"type"`
}

// Subject is a struct type annotated for generation, as seen by a provider.
type Subject struct {
	// Name is the simple type name.
	Name string `yaml:"name"`

	// Package is the import path of the declaring package.
	Package string `yaml:"package"`

	// PackageName is the declared name of the package.
	PackageName string `yaml:"packageName"`

	// Visibility is the subject's own declared visibility.
	Visibility Visibility `yaml:"visibility"`

	// Generic reports whether the type declares type parameters.
	Generic bool `yaml:"generic,omitempty"`

	// File is the source file declaring the type. Empty when the provider
	// has no source information.
	File string `yaml:"file,omitempty"`

	// Fields are the resolvable fields in declaration order.
	Fields []FieldDescriptor `yaml:"fields"`

	// Reserved lists identifiers generated code must not redeclare:
	// package-scope names, and the subject's own fields and methods.
	Reserved []string `yaml:"-"`
}

// QualifiedName returns the import path qualified type name.
func (s Subject) QualifiedName() string {
	if s.Package == "" {
		return s.Name
	}
	return s.Package + "." + s.Name
}

// FieldNames returns the field names in order.
func (s Subject) FieldNames() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// Schema is the set of subjects extracted from one provider run.
type Schema struct {
	Provider string    `yaml:"provider"`
	Subjects []Subject `yaml:"subjects"`
}

// FindSubject looks up a subject by qualified name. Returns nil if not found.
func (s *Schema) FindSubject(qualifiedName string) *Subject {
	for i := range s.Subjects {
		if s.Subjects[i].QualifiedName() == qualifiedName {
			return &s.Subjects[i]
		}
	}
	return nil
}
