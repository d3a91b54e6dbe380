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

// Package campaign plans and files one Jira issue per service that is
// still failing an OpsLevel campaign.
//
// Planning is read-only: it finds the campaign, its failing services, the
// owning teams' Jira projects and the issues already filed, and returns a
// list of Changes. Apply then creates the issues marked CREATE.
package campaign
