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

// Package errors defines sentinel errors for consistent error handling across the application.
// These errors map to specific exit codes in the CLI for proper scripting support.
package errors

import "errors"

// Sentinel errors for consistent error handling and exit code mapping
var (
	// ErrAuthentication indicates a credential exchange or bearer token was rejected.
	// Maps to exit code 2.
	ErrAuthentication = errors.New("authentication failed")

	// ErrInvalidTokenURL indicates the Wiz token URL belongs to neither known identity provider.
	// Maps to exit code 2.
	ErrInvalidTokenURL = errors.New("invalid token url")

	// ErrRateLimit indicates an upstream API kept answering 429 after all retries.
	// Maps to exit code 2.
	ErrRateLimit = errors.New("rate limit exceeded")

	// ErrNetworkFailure indicates a network connection problem or a 5xx that outlived the retry policy.
	// Maps to exit code 3.
	ErrNetworkFailure = errors.New("network connection failed")

	// ErrMissingConfig indicates a required environment variable or setting is absent.
	// Maps to exit code 4.
	ErrMissingConfig = errors.New("missing required configuration")

	// ErrMalformedResponse indicates a response did not have the expected shape.
	ErrMalformedResponse = errors.New("malformed response")

	// ErrNoWatermark indicates the watermark file is absent, unreadable or lacks its timestamp.
	ErrNoWatermark = errors.New("no watermark found")

	// ErrNotFound indicates a looked-up remote entity (service, campaign, team) does not exist.
	ErrNotFound = errors.New("not found")
)
