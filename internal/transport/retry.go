// Copyright 2025 SirSeer, LLC
//
// Licensed under the Business Source License 1.1 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://mariadb.com/bsl11
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package transport

import (
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/sirseerhq/opslevel-relay/internal/apierror"
	relayerrors "github.com/sirseerhq/opslevel-relay/internal/errors"
)

// BackoffFunc returns how long to wait before the given retry. attempt is 1
// for the wait that follows the first failure.
type BackoffFunc func(attempt int) time.Duration

// RetryPolicy configures how the retry transport treats transient failures.
type RetryPolicy struct {
	// MaxAttempts is the total number of tries, including the first one.
	MaxAttempts int
	// Backoff computes the pause between attempts.
	Backoff BackoffFunc
	// Retryable decides whether a response status warrants another attempt.
	Retryable func(status int) bool
}

// DefaultRetryPolicy makes three attempts with a fixed two second pause,
// retrying on 429 and any 5xx.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Backoff:     ConstantBackoff(2 * time.Second),
		Retryable:   RetryOnServerError,
	}
}

// ConstantBackoff waits the same duration before every retry.
func ConstantBackoff(d time.Duration) BackoffFunc {
	return func(int) time.Duration { return d }
}

// ExponentialBackoff doubles (by multiplier) from initial up to max and adds
// up to ten percent of jitter.
func ExponentialBackoff(initial, max time.Duration, multiplier float64) BackoffFunc {
	return func(attempt int) time.Duration {
		backoff := float64(initial) * math.Pow(multiplier, float64(attempt-1))
		if backoff > float64(max) {
			backoff = float64(max)
		}
		jitter := backoff * 0.1 * (2*rand.Float64() - 1)
		return time.Duration(backoff + jitter)
	}
}

// RetryOnServerError matches 429 and every 5xx status.
func RetryOnServerError(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// retryTransport re-sends requests that failed with a retryable status or a
// transient network error.
type retryTransport struct {
	base      http.RoundTripper
	policy    RetryPolicy
	inspector *apierror.Inspector
}

// NewRetryTransport wraps base with the retry policy. A nil base means
// http.DefaultTransport.
func NewRetryTransport(base http.RoundTripper, policy RetryPolicy) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 1
	}
	if policy.Backoff == nil {
		policy.Backoff = ConstantBackoff(0)
	}
	if policy.Retryable == nil {
		policy.Retryable = RetryOnServerError
	}
	return &retryTransport{
		base:      base,
		policy:    policy,
		inspector: apierror.NewInspector(),
	}
}

// RoundTrip implements http.RoundTripper with retry logic.
func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	logger := zerolog.Ctx(ctx)
	var lastErr error

	for attempt := 1; attempt <= t.policy.MaxAttempts; attempt++ {
		attemptReq, err := rewind(req, attempt)
		if err != nil {
			return nil, err
		}

		resp, err := t.base.RoundTrip(attemptReq)
		if err == nil && !t.policy.Retryable(resp.StatusCode) {
			return resp, nil
		}

		if err != nil {
			if ctx.Err() != nil || !t.inspector.IsRetryable(err) {
				return nil, err
			}
			sentinel := relayerrors.ErrNetworkFailure
			if t.inspector.IsRateLimitError(err) {
				sentinel = relayerrors.ErrRateLimit
			}
			lastErr = apierror.WithRetryInfo(fmt.Errorf("%w: %w", sentinel, err),
				attempt, t.policy.MaxAttempts)
		} else {
			sentinel := relayerrors.ErrNetworkFailure
			if resp.StatusCode == http.StatusTooManyRequests {
				sentinel = relayerrors.ErrRateLimit
			}
			lastErr = apierror.WithRetryInfo(
				fmt.Errorf("%w: %w", sentinel, &apierror.StatusError{
					Method:     req.Method,
					URL:        req.URL.Redacted(),
					StatusCode: resp.StatusCode,
				}),
				attempt, t.policy.MaxAttempts)
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
		}

		if attempt == t.policy.MaxAttempts {
			break
		}

		wait := t.policy.Backoff(attempt)
		logger.Warn().
			Err(lastErr).
			Str("url", req.URL.Redacted()).
			Dur("backoff", wait).
			Msg("transient failure, retrying")

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		}
	}

	return nil, apierror.WithUserAction(lastErr,
		"The upstream API kept failing. Check its status page and try again")
}

// rewind returns the request to send for the given attempt, re-creating the
// body when the request has already been sent once.
func rewind(req *http.Request, attempt int) (*http.Request, error) {
	clone := req.Clone(req.Context())
	if attempt == 1 || req.Body == nil || req.Body == http.NoBody {
		return clone, nil
	}
	if req.GetBody == nil {
		return nil, fmt.Errorf("cannot retry %s %s: request body is not replayable", req.Method, req.URL.Redacted())
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, fmt.Errorf("failed to rewind request body: %w", err)
	}
	clone.Body = body
	return clone, nil
}
