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

package state

import "time"

const (
	// DefaultWatermarkFile is read from the working directory when no path is configured.
	DefaultWatermarkFile = "config.json"

	// StatusChangedAfterKey holds the watermark timestamp.
	StatusChangedAfterKey = "status_changed_after"

	// TimestampLayout is the format the Wiz statusChangedAt filter accepts,
	// UTC with millisecond precision, e.g. 2024-05-15T14:30:00.000Z.
	TimestampLayout = "2006-01-02T15:04:05.000Z"
)

// Watermark is the decoded watermark file. Keys other than
// status_changed_after are preserved untouched across Advance.
type Watermark map[string]interface{}

// StatusChangedAfter returns the watermark timestamp, or "" when unset.
func (w Watermark) StatusChangedAfter() string {
	s, _ := w[StatusChangedAfterKey].(string)
	return s
}

// Time parses the watermark timestamp.
func (w Watermark) Time() (time.Time, error) {
	return time.Parse(time.RFC3339Nano, w.StatusChangedAfter())
}

// FormatTimestamp renders t the way the watermark file stores it.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}
