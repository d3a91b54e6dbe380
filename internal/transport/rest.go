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
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/sirseerhq/opslevel-relay/internal/apierror"
	relayerrors "github.com/sirseerhq/opslevel-relay/internal/errors"
)

// NewRESTClient returns a resty client for baseURL that sends through the
// same header, credential and retry stack as New. Resty's own retries stay
// off; RetryTransport owns them.
func NewRESTClient(baseURL string, policy RetryPolicy, opts ...Option) *resty.Client {
	return resty.New().
		SetTransport(New(nil, policy, opts...)).
		SetBaseURL(strings.TrimSuffix(baseURL, "/")).
		SetRetryCount(0)
}

// CheckResponse turns the outcome of a resty call into a relay error.
// Transport failures keep their sentinel, a body that did not decode into
// the result wraps ErrMalformedResponse, and a status rejected by ok becomes
// a classified *apierror.StatusError.
func CheckResponse(resp *resty.Response, err error, ok func(status int) bool) error {
	if err != nil {
		if resp != nil && resp.RawResponse != nil {
			return fmt.Errorf("failed to decode response: %v: %w", err, relayerrors.ErrMalformedResponse)
		}
		if resp != nil && resp.Request != nil && resp.Request.RawRequest != nil {
			raw := resp.Request.RawRequest
			return fmt.Errorf("%s %s failed: %w", raw.Method, apierror.RedactURL(raw.URL.String()), err)
		}
		return err
	}
	if !ok(resp.StatusCode()) {
		raw := resp.Request.RawRequest
		return apierror.NewStatusError(raw.Method, raw.URL.String(), resp.StatusCode(), resp.Body())
	}
	return nil
}

// StatusIn accepts exactly the listed status codes.
func StatusIn(codes ...int) func(int) bool {
	return func(status int) bool {
		for _, c := range codes {
			if status == c {
				return true
			}
		}
		return false
	}
}

// Success accepts any 2xx status.
func Success(status int) bool {
	return status >= 200 && status < 300
}
