package schema

import (
	"github.com/wowselim/goldfinch/internal/errors"
)

// Fatal generation errors. Each is attached to a contextual error naming the
// offending type, so match with errors.Is.
var (
	ErrUnsupportedVisibility     = errors.New("unsupported visibility")
	ErrPublicVisibilityViolation = errors.New("public visibility violation")
	ErrUnsupportedSubject        = errors.New("unsupported subject type")
	ErrNameCollision             = errors.New("generated name collision")
	ErrInvalidConfig             = errors.New("invalid generation config")
)

// Errorf returns an error marked with sentinel that carries hint for the user.
func Errorf(sentinel error, hint, format string, args ...any) error {
	err := errors.Mark(errors.Newf(format, args...), sentinel)
	if hint != "" {
		err = errors.WithHint(err, hint)
	}
	return err
}
