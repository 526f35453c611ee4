package yadisk

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRef indicates the supplied string is not a recognized
	// public resource URL.
	ErrInvalidRef = errors.New("not a recognized public resource URL")

	// ErrRateLimited is returned when the API still responds 429 after the
	// advertised wait has been honored once.
	ErrRateLimited = errors.New("rate limited by the API")

	// ErrNetwork is returned once retries for transient failures are
	// used up.
	ErrNetwork = errors.New("network failure")
)

// APIError is a provider rejection that must not be retried, such as a
// 404 for a revoked share.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error (status %d): %s", e.StatusCode, e.Message)
}
