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
	"net/http"

	"github.com/sirseerhq/opslevel-relay/pkg/version"
)

// MaxResponseBytes caps how much of a single response body is read.
const MaxResponseBytes = 10 * 1024 * 1024

// Credentials decorate an outgoing request with authentication.
type Credentials interface {
	Apply(req *http.Request)
}

// BearerToken sends "Authorization: Bearer <token>".
type BearerToken string

func (t BearerToken) Apply(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+string(t))
}

// RawToken sends the API key as the whole Authorization header, which is
// what CloudZero expects.
type RawToken string

func (t RawToken) Apply(req *http.Request) {
	req.Header.Set("Authorization", string(t))
}

// BasicAuth sends HTTP basic credentials (Jira user + API token).
type BasicAuth struct {
	Username string
	Password string
}

func (b BasicAuth) Apply(req *http.Request) {
	req.SetBasicAuth(b.Username, b.Password)
}

// headerTransport adds authentication, static headers and safety limits to HTTP requests
type headerTransport struct {
	base        http.RoundTripper
	credentials Credentials
	header      http.Header
	observe     func(*http.Request)
}

// Option customizes the transport built by New.
type Option func(*headerTransport)

// WithCredentials authenticates every request.
func WithCredentials(c Credentials) Option {
	return func(t *headerTransport) { t.credentials = c }
}

// WithHeader sets a static header on every request.
func WithHeader(key, value string) Option {
	return func(t *headerTransport) { t.header.Set(key, value) }
}

// WithObserver calls fn once per attempt that reaches the network.
func WithObserver(fn func(*http.Request)) Option {
	return func(t *headerTransport) { t.observe = fn }
}

// RoundTrip implements http.RoundTripper
func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// Clone the request to avoid modifying the original
	req = req.Clone(req.Context())

	for key, values := range t.header {
		for _, v := range values {
			req.Header.Set(key, v)
		}
	}
	if t.credentials != nil {
		t.credentials.Apply(req)
	}
	req.Header.Set("User-Agent", version.UserAgent())

	if t.observe != nil {
		t.observe(req)
	}

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	if resp.Body != nil {
		resp.Body = &limitedReader{
			ReadCloser: resp.Body,
			limit:      MaxResponseBytes,
		}
	}

	return resp, nil
}

// limitedReader wraps a ReadCloser with a size limit to prevent excessive memory usage.
type limitedReader struct {
	io.ReadCloser
	limit int64
	read  int64
}

// Read implements io.Reader with size limit enforcement. A body of exactly
// limit bytes ends with the underlying reader's EOF.
func (lr *limitedReader) Read(p []byte) (n int, err error) {
	if lr.read >= lr.limit {
		var extra [1]byte
		n, err := lr.ReadCloser.Read(extra[:])
		if n > 0 {
			return 0, fmt.Errorf("response size exceeded limit of %d bytes", lr.limit)
		}
		return 0, err
	}

	remaining := lr.limit - lr.read
	if int64(len(p)) > remaining {
		p = p[:remaining]
	}

	n, err = lr.ReadCloser.Read(p)
	lr.read += int64(n)

	return n, err
}

// New builds the round tripper every vendor client uses: headers and
// credentials are applied per attempt, underneath the retry policy.
func New(base http.RoundTripper, policy RetryPolicy, opts ...Option) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	ht := &headerTransport{base: base, header: make(http.Header)}
	for _, opt := range opts {
		opt(ht)
	}
	return NewRetryTransport(ht, policy)
}

// NewClient is New wrapped in an *http.Client.
func NewClient(policy RetryPolicy, opts ...Option) *http.Client {
	return &http.Client{Transport: New(nil, policy, opts...)}
}
