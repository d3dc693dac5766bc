package ai

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMissingCredentials indicates invalid or absent provider credentials.
	// Retrying cannot help; the configuration must be fixed.
	ErrMissingCredentials = errors.New("missing or invalid provider credentials")

	// ErrQuotaExceeded indicates the provider rejected the call for rate or
	// quota reasons. Retrying after a backoff may help.
	ErrQuotaExceeded = errors.New("provider quota exceeded")
)

// ClassifyError wraps a provider error with the matching sentinel so callers
// can branch on errors.Is. Providers speaking HTTP surface status codes in
// their error strings; that is the only signal available across vendors.
func ClassifyError(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "401") ||
		strings.Contains(msg, "403") ||
		strings.Contains(msg, "api key") ||
		strings.Contains(msg, "unauthorized"):
		return fmt.Errorf("%w: %w", ErrMissingCredentials, err)
	case strings.Contains(msg, "429") ||
		strings.Contains(msg, "quota") ||
		strings.Contains(msg, "rate limit"):
		return fmt.Errorf("%w: %w", ErrQuotaExceeded, err)
	default:
		return err
	}
}
