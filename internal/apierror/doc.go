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

// Package apierror provides error inspection for the upstream APIs the relay
// talks to (OpsLevel, Wiz, CloudZero, GitHub and Jira). It centralizes the
// logic for deciding whether an error is an auth failure, a rate limit or a
// transient network/server problem, so callers never match strings themselves.
package apierror
