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

// Package metadata types describe the run record written after each
// subcommand: what ran, with which parameters, and how much traffic and
// data it produced.
package metadata

import (
	"time"
)

// RunMetadata is the complete record for a single subcommand run.
type RunMetadata struct {
	RelayVersion string      `json:"relay_version"`
	RunID        string      `json:"run_id"`
	Command      string      `json:"command"`
	Parameters   RunParams   `json:"parameters"`
	Results      RunResults  `json:"results"`
	Incremental  bool        `json:"incremental"`
	Watermark    *Watermarks `json:"watermark,omitempty"`
}

// RunParams captures the inputs of a run.
type RunParams struct {
	Endpoint   string            `json:"endpoint,omitempty"`
	PageSize   int               `json:"page_size,omitempty"`
	OutputFile string            `json:"output_file,omitempty"`
	DryRun     bool              `json:"dry_run,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"`
}

// RunResults holds counters collected while the run was in flight.
type RunResults struct {
	Pages          int       `json:"pages"`
	Records        int       `json:"records"`
	Delivered      int       `json:"delivered"`
	DeliveryErrors int       `json:"delivery_errors"`
	APICallCount   int       `json:"api_calls_made"`
	Exhausted      bool      `json:"exhausted"`
	Duration       string    `json:"duration"`
	StartedAt      time.Time `json:"started_at"`
	CompletedAt    time.Time `json:"completed_at"`
}

// Watermarks records the status_changed_after values seen by an
// incremental run.
type Watermarks struct {
	Before   string `json:"before,omitempty"`
	After    string `json:"after,omitempty"`
	Advanced bool   `json:"advanced"`
}
