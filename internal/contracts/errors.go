package contracts

import (
	"errors"
	"fmt"
)

// CredentialError means the provider rejected our API key. Retrying cannot
// help, so it aborts the active client immediately.
type CredentialError struct {
	Provider string
	Detail   string
}

func (e *CredentialError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: credentials rejected", e.Provider)
	}
	return fmt.Sprintf("%s: credentials rejected: %s", e.Provider, e.Detail)
}

// RateLimitError means the retry budget was exhausted on 429/5xx responses.
type RateLimitError struct {
	Provider   string
	StatusCode int
	Attempts   int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s: retry budget exhausted after %d attempts (last status %d)",
		e.Provider, e.Attempts, e.StatusCode)
}

// NetworkError means the transport failed after retries. Timeout marks
// deadline-style failures so callers can distinguish them when logging.
type NetworkError struct {
	Provider string
	Timeout  bool
	Err      error
}

func (e *NetworkError) Error() string {
	kind := "network error"
	if e.Timeout {
		kind = "timeout"
	}
	return fmt.Sprintf("%s: %s: %v", e.Provider, kind, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// IsCredentialError reports whether err is (or wraps) a CredentialError.
func IsCredentialError(err error) bool {
	var ce *CredentialError
	return errors.As(err, &ce)
}

// IsTimeout reports whether err is a NetworkError caused by a timeout.
func IsTimeout(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne) && ne.Timeout
}
