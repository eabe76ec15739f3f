package manifest

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// Naming errors
	ErrMissingPrefix = errors.New("naming prefix is required")
	ErrInvalidName   = errors.New("invalid resource name")

	// Service errors
	ErrMissingImage = errors.New("service image is required")
	ErrInvalidPort  = errors.New("invalid port mapping")
	ErrInvalidEnv   = errors.New("invalid environment entry")

	// Template errors
	ErrInvalidTemplate = errors.New("invalid template")
)

// TranslateError wraps errors with the service and token that caused them.
type TranslateError struct {
	Service string // Compose service name
	Token   string // Offending port or environment token, if any
	Message string
	Err     error
}

func (e *TranslateError) Error() string {
	if e.Token != "" {
		return fmt.Sprintf("service %s: %q: %s", e.Service, e.Token, e.Message)
	}
	return fmt.Sprintf("service %s: %s", e.Service, e.Message)
}

func (e *TranslateError) Unwrap() error {
	return e.Err
}

// NewTranslateError creates a new TranslateError.
func NewTranslateError(service, token, message string, err error) *TranslateError {
	return &TranslateError{
		Service: service,
		Token:   token,
		Message: message,
		Err:     err,
	}
}
