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

// Package output writes the terminal artifacts of a run: NDJSON streams,
// JSON array documents and CSV tables. None of these files are read back
// by the relay.
//
// Example usage:
//
//	w, err := output.NewCSVFileWriter("services_graphqlapi.csv", []string{"id", "name", "updatedAt"})
//	if err != nil {
//	    return err
//	}
//	defer w.Close()
//
//	for _, svc := range services {
//	    if err := w.Write(svc); err != nil {
//	        logger.Error().Err(err).Msg("failed to write row")
//	    }
//	}
package output
