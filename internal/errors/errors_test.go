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

package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestSentinelErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
		want     bool
	}{
		{
			name:     "direct authentication error",
			err:      ErrAuthentication,
			sentinel: ErrAuthentication,
			want:     true,
		},
		{
			name:     "wrapped token url error",
			err:      fmt.Errorf("classify https://example.com/token: %w", ErrInvalidTokenURL),
			sentinel: ErrInvalidTokenURL,
			want:     true,
		},
		{
			name:     "different error type",
			err:      ErrNotFound,
			sentinel: ErrAuthentication,
			want:     false,
		},
		{
			name:     "wrapped network error",
			err:      fmt.Errorf("received status 503: %w", ErrNetworkFailure),
			sentinel: ErrNetworkFailure,
			want:     true,
		},
		{
			name:     "double wrapped missing config",
			err:      fmt.Errorf("wiz-issues: %w", fmt.Errorf("WIZ_CLIENT_ID: %w", ErrMissingConfig)),
			sentinel: ErrMissingConfig,
			want:     true,
		},
		{
			name:     "nil error",
			err:      nil,
			sentinel: ErrAuthentication,
			want:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := errors.Is(tt.err, tt.sentinel)
			if got != tt.want {
				t.Errorf("errors.Is(%v, %v) = %v, want %v", tt.err, tt.sentinel, got, tt.want)
			}
		})
	}
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{ErrAuthentication, "authentication failed"},
		{ErrInvalidTokenURL, "invalid token url"},
		{ErrRateLimit, "rate limit exceeded"},
		{ErrNetworkFailure, "network connection failed"},
		{ErrMissingConfig, "missing required configuration"},
		{ErrMalformedResponse, "malformed response"},
		{ErrNoWatermark, "no watermark found"},
		{ErrNotFound, "not found"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}
