package schema

import (
	"fmt"
)

// Visibility is the visibility of a declaration. Only VisibilityPublic and
// VisibilityInternal are legal on generated code.
type Visibility int

const (
	VisibilityUnknown  Visibility = iota
	VisibilityPublic              // exported identifier
	VisibilityInternal            // unexported, declared at package scope
	VisibilityLocal               // declared inside a function body
)

func (v Visibility) String() string {
	switch v {
	case VisibilityPublic:
		return "public"
	case VisibilityInternal:
		return "internal"
	case VisibilityLocal:
		return "local"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (v Visibility) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// Resolve returns the effective visibility of code generated for subject
// under mode.
//
// ModePublic requires the subject itself to be public. ModeInternal always
// yields VisibilityInternal. ModeInherit passes public and internal through
// and rejects anything else, since silently picking a different visibility
// would change the generated API.
func Resolve(subject Subject, mode VisibilityMode) (Visibility, error) {
	switch mode {
	case ModePublic:
		if subject.Visibility != VisibilityPublic {
			return VisibilityUnknown, Errorf(ErrPublicVisibilityViolation,
				fmt.Sprintf("export %s or use visibility=internal", subject.Name),
				"cannot generate public properties for %s type %s", subject.Visibility, subject.QualifiedName())
		}
		return VisibilityPublic, nil
	case ModeInternal:
		return VisibilityInternal, nil
	case ModeInherit:
		switch subject.Visibility {
		case VisibilityPublic, VisibilityInternal:
			return subject.Visibility, nil
		default:
			return VisibilityUnknown, Errorf(ErrUnsupportedVisibility,
				"move the type declaration to package scope",
				"visibility %q on type %s is not supported", subject.Visibility, subject.QualifiedName())
		}
	default:
		return VisibilityUnknown, Errorf(ErrInvalidConfig,
			"use one of: public internal inherit",
			"unknown visibility mode %q for type %s", string(mode), subject.QualifiedName())
	}
}
