package core

import (
	"errors"
	"fmt"
)

// ValidationError marks a malformed record or query. It is the caller's
// fault and the only per-request error class that propagates out of the
// engine; everything else degrades into a partial bundle.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ErrBackendUnavailable marks a backend that stayed unreachable after
// bounded retries. The affected backend enters degraded mode for the
// request; independent backends are unaffected.
var ErrBackendUnavailable = errors.New("backend unavailable")

// ErrConsistencyViolation marks a record that would leak one user's
// content into another's context. Offending records are dropped and
// logged, never surfaced to the requester.
var ErrConsistencyViolation = errors.New("consistency violation")
