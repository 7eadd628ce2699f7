package services

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel markers used to classify failures across the placement and
// migration components. Wrap tags an error with one of these so callers can
// route on classification without string matching.
var (
	ErrValidation       = errors.New("validation error")
	ErrNotFound         = errors.New("not found")
	ErrModelNotTrained  = errors.New("model not trained")
	ErrInsufficientData = errors.New("insufficient training data")
	ErrChecksumMismatch = errors.New("checksum mismatch")
	ErrTimeout          = errors.New("migration timeout")
	ErrNotRetryable     = errors.New("not retryable")
	ErrMaxRetries       = errors.New("max retries exceeded")
	ErrTransient        = errors.New("transient failure")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsTransient reports whether an error should drive an automatic retry.
// Checksum mismatches and timeouts are transient; validation, not-found, and
// predictor errors fail fast. Unclassified errors default to transient so an
// unexpected transfer fault is retried rather than surfaced immediately.
func IsTransient(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrModelNotTrained),
		errors.Is(err, ErrInsufficientData),
		errors.Is(err, ErrNotRetryable),
		errors.Is(err, ErrMaxRetries):
		return false
	default:
		return true
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
