package sec

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

var (
	// ErrRateLimited matches an *ErrHTTP with status 429.
	ErrRateLimited = errors.New("rate limited by SEC")
	// ErrAccessDenied matches an *ErrHTTP with status 403.
	ErrAccessDenied = errors.New("access denied by SEC")
	// ErrMissingUserAgent is returned when no User-Agent is configured.
	ErrMissingUserAgent = errors.New("SEC requires a User-Agent with contact details")
	// ErrNotArchiveURL is returned for document URLs outside the EDGAR archives.
	ErrNotArchiveURL = errors.New("url is not an EDGAR archives document")
)

// ErrHTTP wraps a non-success HTTP response with status code.
type ErrHTTP struct {
	StatusCode int
	Status     string
	Body       string // first bytes of the response body
	URL        string
	RetryAfter time.Duration
}

func (e *ErrHTTP) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("SEC request failed (%d)", e.StatusCode)
	}
	return fmt.Sprintf("SEC request failed (%d): %s", e.StatusCode, e.Body)
}

// Is lets errors.Is match the status sentinels.
func (e *ErrHTTP) Is(target error) bool {
	switch target {
	case ErrRateLimited:
		return e.StatusCode == http.StatusTooManyRequests
	case ErrAccessDenied:
		return e.StatusCode == http.StatusForbidden
	}
	return false
}

type transportError struct {
	err error
}

func (e *transportError) Error() string { return e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

// Remediation returns operator guidance for an upstream failure, or "" when
// there is none.
func Remediation(err error) string {
	switch {
	case errors.Is(err, ErrAccessDenied):
		return "SEC returned 403. Make sure your User-Agent includes a real email (sec.user_agent / EDGARKPI_SEC_USER_AGENT)."
	case errors.Is(err, ErrMissingUserAgent):
		return "Set sec.user_agent (or EDGARKPI_SEC_USER_AGENT) to an app name plus a real contact email."
	case errors.Is(err, ErrRateLimited):
		return "SEC returned 429. Increase throttle (try 750-1250ms via sec.throttle_ms) and refresh less."
	}
	return ""
}
