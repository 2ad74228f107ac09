package assistant

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks request validation failures. Match with errors.Is;
	// the concrete *ValidationError carries the field detail.
	ErrValidation = errors.New("invalid request")

	// ErrUpstreamUnavailable indicates the embedding or generation model
	// could not be reached or refused the request.
	ErrUpstreamUnavailable = errors.New("model upstream unavailable")

	// ErrPromptCompose indicates the scenario template could not be
	// rendered. This is an internal fault, not a client error.
	ErrPromptCompose = errors.New("prompt composition failed")
)

// ValidationError reports a single invalid request field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid request: field %q: %s", e.Field, e.Reason)
}

// Is makes errors.Is(err, ErrValidation) match any *ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
