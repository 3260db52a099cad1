package matching

import (
	"errors"
	"fmt"
)

// Callers match these with errors.Is; details are attached with %w.
var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid match transition")
	ErrConflict          = errors.New("interaction conflicts with a newer recorded entry")
	ErrTransientStore    = errors.New("store temporarily unavailable")
	ErrValidation        = errors.New("validation failed")

	ErrCursorExpired = fmt.Errorf("%w: feed cursor expired or unknown", ErrValidation)
)

func validationErrorf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func transitionErrorf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidTransition, fmt.Sprintf(format, args...))
}
