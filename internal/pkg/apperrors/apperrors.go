package apperrors

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is the generic sentinel for missing resources.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateSlug means a concept with the derived slug already exists.
	// Expected under concurrent discovery; callers re-fetch by slug and reuse.
	ErrDuplicateSlug = errors.New("duplicate slug")

	// ErrInvalidArgument is the generic sentinel for invalid input.
	ErrInvalidArgument = errors.New("invalid argument")
)

// RateLimitError reports a denied generation action together with what the
// UI needs to communicate a wait time.
type RateLimitError struct {
	Remaining int
	ResetAt   *time.Time
}

func (e *RateLimitError) Error() string {
	if e.ResetAt != nil {
		return fmt.Sprintf("generation rate limit exceeded; resets at %s", e.ResetAt.UTC().Format(time.RFC3339))
	}
	return "generation rate limit exceeded"
}

// GenerationError covers external-service timeouts and malformed model
// output alike. No partial state is committed and no quota is consumed when
// one of these is returned, so the caller may simply retry.
type GenerationError struct {
	Reason string
	Err    error
}

func (e *GenerationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("generation failed: %s: %v", e.Reason, e.Err)
	}
	return "generation failed: " + e.Reason
}

func (e *GenerationError) Unwrap() error { return e.Err }

func IsRateLimited(err error) bool {
	var rl *RateLimitError
	return errors.As(err, &rl)
}

func IsGenerationFailed(err error) bool {
	var ge *GenerationError
	return errors.As(err, &ge)
}
