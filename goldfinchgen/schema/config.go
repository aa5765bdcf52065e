package schema

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/wowselim/goldfinch/internal/errors"
)

var validate = validator.New()

// VisibilityMode selects how the visibility of generated code is chosen.
type VisibilityMode string

const (
	ModePublic   VisibilityMode = "public"   // always exported; the subject must be exported too
	ModeInternal VisibilityMode = "internal" // always unexported
	ModeInherit  VisibilityMode = "inherit"  // same as the subject
)

// Placement controls how variant types are named relative to the union.
type Placement string

const (
	// PlacementTop declares variants as standalone siblings: NameProperty.
	PlacementTop Placement = "top"

	// PlacementNested scopes variants under the union name: PersonProperty_Name.
	PlacementNested Placement = "nested"
)

// GenerationConfig is the resolved configuration for one subject type.
type GenerationConfig struct {
	Visibility VisibilityMode `schema:"visibility" yaml:"visibility" validate:"omitempty,oneof=public internal inherit"`
	Placement  Placement      `schema:"placement" yaml:"placement" validate:"omitempty,oneof=top nested"`
}

// DefaultConfig is used for anything left unset by directives and generator options.
var DefaultConfig = GenerationConfig{
	Visibility: ModeInherit,
	Placement:  PlacementNested,
}

// Merge returns c with unset values taken from fallback.
func (c GenerationConfig) Merge(fallback GenerationConfig) GenerationConfig {
	if c.Visibility == "" {
		c.Visibility = fallback.Visibility
	}
	if c.Placement == "" {
		c.Placement = fallback.Placement
	}
	return c
}

// Validate reports invalid values. Empty values are allowed and mean "unset".
func (c GenerationConfig) Validate() error {
	return ValidateStruct(c)
}

// ValidateStruct validates v with the shared validator and converts field
// errors into a single ErrInvalidConfig error.
func ValidateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var valErrs validator.ValidationErrors
	if !errors.As(err, &valErrs) {
		return errors.Wrap(err, "validate config")
	}

	messages := make([]string, 0, len(valErrs))
	for _, ve := range valErrs {
		messages = append(messages, fmt.Sprintf("%s %q %s", strings.ToLower(ve.Field()), ve.Value(), formatValidationError(ve)))
	}
	return Errorf(ErrInvalidConfig, "", "%s", strings.Join(messages, "; "))
}

// formatValidationError converts a validator.FieldError to a human-readable message.
func formatValidationError(ve validator.FieldError) string {
	switch ve.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", ve.Param())
	case "dir":
		return "must be an existing directory"
	default:
		if ve.Param() != "" {
			return fmt.Sprintf("failed %s=%s validation", ve.Tag(), ve.Param())
		}
		return fmt.Sprintf("failed %s validation", ve.Tag())
	}
}
