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

// Package transport builds the HTTP round trippers shared by every upstream
// client. Requests pass through two layers:
//
//   - a header layer that applies credentials, static headers and the
//     User-Agent, caps response bodies at MaxResponseBytes and reports each
//     attempt to an optional observer;
//   - a retry layer driven by an injected RetryPolicy (attempt count,
//     backoff function and the set of retryable statuses).
//
// Clients never sleep or loop themselves; a request either comes back with
// a non-retryable status or fails with an error wrapping ErrNetworkFailure
// or ErrRateLimit once the policy is exhausted.
package transport
