package services

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks caller mistakes detected before any external call.
	ErrValidation = errors.New("validation failed")

	// ErrOperationInProgress is returned when a mutating layer-store call
	// overlaps another one on the same session.
	ErrOperationInProgress = errors.New("another outfit operation is in progress")

	ErrNoModelSelected = fmt.Errorf("%w: no model selected", ErrValidation)
)

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

type TransformErrorKind string

const (
	TransformKindService       TransformErrorKind = "service"
	TransformKindQuota         TransformErrorKind = "quota"
	TransformKindContentPolicy TransformErrorKind = "content_policy"
)

// TransformError is a failed image generation. Kind distinguishes a
// content-policy refusal from transient provider faults.
type TransformError struct {
	Op   string
	Kind TransformErrorKind
	Err  error
}

func (e *TransformError) Error() string {
	switch e.Kind {
	case TransformKindContentPolicy:
		return fmt.Sprintf("%s: image was rejected by the content policy: %v", e.Op, e.Err)
	case TransformKindQuota:
		return fmt.Sprintf("%s: service temporarily unavailable due to high demand: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
	}
}

func (e *TransformError) Unwrap() error {
	return e.Err
}

// IsContentBlocked reports whether err is a content-policy transform failure.
func IsContentBlocked(err error) bool {
	var te *TransformError
	return errors.As(err, &te) && te.Kind == TransformKindContentPolicy
}

// PersistenceError is a failed call to the outfit, model or wardrobe store.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
