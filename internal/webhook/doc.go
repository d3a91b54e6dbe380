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

// Package webhook verifies and serves OpsLevel action webhooks.
//
// OpsLevel signs the request with HMAC-SHA256 over a canonical string: the
// included headers, sorted by name and joined as "Name:value" with commas,
// then "+" and the raw body. X-OpsLevel-Timing is always included; the
// action headers Content-Type, From, Authorization and Accept are included
// when present.
package webhook
