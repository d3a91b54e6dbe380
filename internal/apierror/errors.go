package apierror

import (
	"fmt"
	"net/http"
	"net/url"
)

// StatusError is returned by the REST clients when an upstream answers with
// an unexpected HTTP status.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: unexpected status %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

func (e *StatusError) IsAuthError() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

func (e *StatusError) IsNotFoundError() bool { return e.StatusCode == http.StatusNotFound }

func (e *StatusError) IsRateLimitError() bool { return e.StatusCode == http.StatusTooManyRequests }

func (e *StatusError) IsServerError() bool { return e.StatusCode >= 500 }

// RetryError records how many attempts were spent before giving up.
type RetryError struct {
	Err         error
	Attempt     int
	MaxAttempts int
}

// WithRetryInfo annotates err with the attempt it failed on.
func WithRetryInfo(err error, attempt, maxAttempts int) error {
	if err == nil {
		return nil
	}
	return &RetryError{Err: err, Attempt: attempt, MaxAttempts: maxAttempts}
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("%v (attempt %d/%d)", e.Err, e.Attempt, e.MaxAttempts)
}

func (e *RetryError) Unwrap() error { return e.Err }

// ActionError carries a hint for the operator next to the underlying error.
type ActionError struct {
	Err    error
	Action string
}

// WithUserAction attaches an operator-facing hint to err.
func WithUserAction(err error, action string) error {
	if err == nil {
		return nil
	}
	return &ActionError{Err: err, Action: action}
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("%v. %s", e.Err, e.Action)
}

func (e *ActionError) Unwrap() error { return e.Err }

// NewStatusError describes an unexpected answer, keeping up to 4 KiB of
// the body and dropping the URL's query string. The result is classified,
// so 401 and 403 carry ErrAuthentication and 429 carries ErrRateLimit.
func NewStatusError(method, target string, status int, body []byte) error {
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return Classify(&StatusError{
		Method:     method,
		URL:        RedactURL(target),
		StatusCode: status,
		Body:       string(body),
	})
}

const maxErrorBody = 4096

// RedactURL drops the query string and any user info, which may carry
// integration identifiers or credentials.
func RedactURL(target string) string {
	u, err := url.Parse(target)
	if err != nil {
		return target
	}
	u.RawQuery = ""
	return u.Redacted()
}
