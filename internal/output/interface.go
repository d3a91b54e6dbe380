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

package output

// OutputWriter is implemented by every export sink. Records are flushed to
// the underlying writer as they arrive; Close finishes the document (the
// closing bracket of a JSON array, the CSV buffer) and releases the file.
type OutputWriter interface {
	// Write writes a single record to the output.
	Write(record interface{}) error

	// Close finalizes the document and closes the underlying file, if any.
	Close() error
}

// Rower is implemented by records that know their own CSV row.
type Rower interface {
	CSVRow() []string
}
