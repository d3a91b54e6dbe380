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

// Package state persists the incremental-fetch watermark.
//
// The watermark is a small JSON file, config.json by default:
//
//	{"status_changed_after": "2024-05-15T14:30:00.000Z"}
//
// The Wiz issues job filters on statusChangedAt after this instant and
// advances it only when every page was fetched and delivered, so a failed
// or partial run is simply repeated in full next time. Writes are atomic,
// using a write-to-temp-and-rename pattern.
//
// Example usage:
//
//	wm, err := state.Load(state.DefaultWatermarkFile)
//	if err != nil {
//	    logger.Error().Err(err).Msg("starting without a watermark")
//	}
//	// ... fetch and deliver ...
//	_, err = state.Advance(state.DefaultWatermarkFile, time.Now())
package state
