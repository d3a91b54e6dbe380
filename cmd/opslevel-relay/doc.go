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

// Package main implements the opslevel-relay command-line interface.
// Each subcommand moves one kind of record between OpsLevel and a
// neighbouring system:
//
//	wiz-issues           Wiz issues -> OpsLevel custom webhook (incremental)
//	wiz-vulnerabilities  Wiz findings -> dated JSON export
//	wiz-sync             Wiz findings -> OpsLevel code issues
//	cloudzero-costs      CloudZero costs -> OpsLevel aws_cost property
//	dependabot           Dependabot alerts -> OpsLevel custom event
//	export-services      OpsLevel services -> CSV
//	export-teams         OpsLevel teams and members -> CSV
//	export-opslevel-yml  OpsLevel service configs -> opslevel.yml files
//	repo-ownership       JSON squad list -> OpsLevel repository owners
//	tags-to-properties   OpsLevel service tags -> custom property values
//	migrate-component-type  OpsLevel services -> another component type
//	campaign-jira        failing campaign services -> Jira issues
//	webhook-server       verifies inbound OpsLevel webhook signatures
//
// Example:
//
//	export WIZ_CLIENT_ID=... WIZ_CLIENT_SECRET=... OPSLEVEL_WEBHOOK_UID=...
//	opslevel-relay wiz-issues --watermark-file config.json
//
// Exit codes:
//   - 0: Success
//   - 1: General error
//   - 2: Authentication, token URL or rate limit error
//   - 3: Network error
//   - 4: Missing configuration
package main
