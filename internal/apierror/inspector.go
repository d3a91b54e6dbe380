package apierror

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	relayerrors "github.com/sirseerhq/opslevel-relay/internal/errors"
)

// Inspector classifies upstream errors. Typed errors in the chain (such as
// *StatusError) answer first. Otherwise the message text decides, because
// machinebox/graphql, shurcooL/graphql and oauth2 only report status codes
// inside their messages.
type Inspector struct{}

// NewInspector returns an Inspector.
func NewInspector() *Inspector {
	return &Inspector{}
}

var defaultInspector = NewInspector()

// statusPattern finds three-digit HTTP codes standing on their own, so a
// port such as :40123 or a millisecond timestamp is not read as a status.
var statusPattern = regexp.MustCompile(`\b[1-5][0-9]{2}\b`)

func hasStatus(msg string, match func(code int) bool) bool {
	for _, m := range statusPattern.FindAllString(msg, -1) {
		if code, err := strconv.Atoi(m); err == nil && match(code) {
			return true
		}
	}
	return false
}

func containsAny(msg string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(msg, w) {
			return true
		}
	}
	return false
}

// IsAuthError reports a rejected credential: 401, 403 or an OAuth failure.
func (i *Inspector) IsAuthError(err error) bool {
	if err == nil {
		return false
	}
	var typed interface{ IsAuthError() bool }
	if errors.As(err, &typed) {
		return typed.IsAuthError()
	}
	msg := strings.ToLower(err.Error())
	return hasStatus(msg, func(code int) bool { return code == 401 || code == 403 }) ||
		containsAny(msg, "unauthorized", "forbidden", "invalid_client", "access_token")
}

// IsNotFoundError reports a 404 or a "not found" message.
func (i *Inspector) IsNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	var typed interface{ IsNotFoundError() bool }
	if errors.As(err, &typed) {
		return typed.IsNotFoundError()
	}
	msg := strings.ToLower(err.Error())
	return hasStatus(msg, func(code int) bool { return code == 404 }) ||
		strings.Contains(msg, "not found")
}

// IsRateLimitError reports a 429 or a rate limit message.
func (i *Inspector) IsRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	var typed interface{ IsRateLimitError() bool }
	if errors.As(err, &typed) {
		return typed.IsRateLimitError()
	}
	msg := strings.ToLower(err.Error())
	return hasStatus(msg, func(code int) bool { return code == 429 }) ||
		containsAny(msg, "rate limit", "too many requests")
}

// IsServerError reports a 5xx answer.
func (i *Inspector) IsServerError(err error) bool {
	if err == nil {
		return false
	}
	var typed interface{ IsServerError() bool }
	if errors.As(err, &typed) {
		return typed.IsServerError()
	}
	msg := strings.ToLower(err.Error())
	return hasStatus(msg, func(code int) bool { return code >= 500 }) ||
		containsAny(msg, "internal server error", "service unavailable", "bad gateway")
}

// IsNetworkError reports a connectivity failure below HTTP.
func (i *Inspector) IsNetworkError(err error) bool {
	if err == nil {
		return false
	}
	var typed interface{ IsNetworkError() bool }
	if errors.As(err, &typed) && typed.IsNetworkError() {
		return true
	}
	return containsAny(strings.ToLower(err.Error()),
		"connection refused",
		"connection reset",
		"no such host",
		"timeout",
		"temporary failure",
		"dial tcp",
		"tls handshake",
		"eof",
		"network is unreachable",
	)
}

// IsRetryable reports whether err is worth another attempt. Rate limits,
// 5xx answers and connectivity problems are; rejected credentials never are.
func (i *Inspector) IsRetryable(err error) bool {
	if err == nil || i.IsAuthError(err) {
		return false
	}
	return i.IsRateLimitError(err) || i.IsServerError(err) || i.IsNetworkError(err)
}

var sentinels = []error{
	relayerrors.ErrAuthentication,
	relayerrors.ErrInvalidTokenURL,
	relayerrors.ErrRateLimit,
	relayerrors.ErrNetworkFailure,
	relayerrors.ErrNotFound,
	relayerrors.ErrMalformedResponse,
	relayerrors.ErrMissingConfig,
	context.Canceled,
	context.DeadlineExceeded,
}

// Classify wraps err with the relay sentinel for its class so callers can
// branch with errors.Is and the CLI can pick an exit code. Errors that
// already carry a sentinel, or match no class, come back unchanged.
func (i *Inspector) Classify(err error) error {
	if err == nil {
		return nil
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return err
		}
	}

	var sentinel error
	switch {
	case i.IsAuthError(err):
		sentinel = relayerrors.ErrAuthentication
	case i.IsRateLimitError(err):
		sentinel = relayerrors.ErrRateLimit
	case i.IsNotFoundError(err):
		sentinel = relayerrors.ErrNotFound
	case i.IsServerError(err), i.IsNetworkError(err):
		sentinel = relayerrors.ErrNetworkFailure
	default:
		return err
	}
	return fmt.Errorf("%w: %w", sentinel, err)
}

// Classify runs the default Inspector's Classify.
func Classify(err error) error {
	return defaultInspector.Classify(err)
}
