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

// Package opslevel is the OpsLevel side of every integration: paged
// catalog reads, the upsert mutations records are pushed through, and the
// two HTTP intake endpoints (custom integration webhooks and custom
// events).
//
// Reads that map onto a fixed shape use the typed shurcooL client. Paged
// collections and mutations are raw documents sent through internal/gql,
// because mutations report failures inline in an errors field that must be
// inspected per call.
package opslevel
