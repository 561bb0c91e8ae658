package model

import (
	"errors"
	"fmt"
	"time"
)

// NotFoundError reports a referenced entity that does not exist.
// It is fatal and never retried.
type NotFoundError struct {
	Kind string // "account", "profile", "opportunity", "response", ...
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// IsNotFound reports whether err wraps a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// InvalidStateError reports an operation attempted on an entity in the wrong
// lifecycle state. It carries both the current and expected state.
type InvalidStateError struct {
	Kind     string
	ID       string
	Current  string
	Expected string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("%s %s is %s, expected %s", e.Kind, e.ID, e.Current, e.Expected)
}

// IsInvalidState reports whether err wraps an InvalidStateError.
func IsInvalidState(err error) bool {
	var is *InvalidStateError
	return errors.As(err, &is)
}

// ConstraintError reports generated text that violates a platform limit.
// It is fatal and never retried with the same inputs.
type ConstraintError struct {
	MaxLength int
	Actual    int
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("generated text is %d characters, platform limit is %d", e.Actual, e.MaxLength)
}

// IsConstraint reports whether err wraps a ConstraintError.
func IsConstraint(err error) bool {
	var ce *ConstraintError
	return errors.As(err, &ce)
}

// RateLimitError reports upstream throttling, with an optional retry-after hint.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
	}
	return "rate limited"
}

// AuthError reports an authentication failure against the content source.
type AuthError struct {
	Platform string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed for platform %s", e.Platform)
}
