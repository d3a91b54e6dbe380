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

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	relayerrors "github.com/sirseerhq/opslevel-relay/internal/errors"
)

// Load reads the watermark file. It returns exactly the decoded object when
// the file holds a status_changed_after string. A missing file, invalid JSON
// or a missing key all return an empty Watermark and an error wrapping
// ErrNoWatermark, which callers log and treat as "fetch everything".
func Load(path string) (Watermark, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Watermark{}, fmt.Errorf("no previous watermark found at %s: %w", path, relayerrors.ErrNoWatermark)
		}
		return Watermark{}, fmt.Errorf("failed to read watermark file %s: %v: %w", path, err, relayerrors.ErrNoWatermark)
	}

	var w Watermark
	if err := json.Unmarshal(data, &w); err != nil {
		return Watermark{}, fmt.Errorf("watermark file %s is corrupted (invalid JSON): %v: %w", path, err, relayerrors.ErrNoWatermark)
	}

	if w.StatusChangedAfter() == "" {
		return Watermark{}, fmt.Errorf("watermark file %s has no %q key: %w", path, StatusChangedAfterKey, relayerrors.ErrNoWatermark)
	}

	return w, nil
}

// LoadOrEmpty is Load for callers that carry on without a watermark: the
// error is logged and the empty Watermark returned.
func LoadOrEmpty(ctx context.Context, path string) Watermark {
	w, err := Load(path)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("path", path).Msg("failed to load watermark")
	}
	return w
}

// Advance moves the watermark to now, keeping any other keys the file
// already holds. Call it only after a run fetched and delivered everything.
func Advance(path string, now time.Time) (Watermark, error) {
	w := Watermark{}
	if data, err := os.ReadFile(path); err == nil {
		var existing Watermark
		if json.Unmarshal(data, &existing) == nil && existing != nil {
			w = existing
		}
	}

	w[StatusChangedAfterKey] = FormatTimestamp(now)
	if err := Save(path, w); err != nil {
		return nil, err
	}
	return w, nil
}

// Save atomically writes the watermark to disk.
// It uses a write-to-temp-and-rename pattern to ensure atomicity.
func Save(path string, w Watermark) error {
	dir := filepath.Dir(path)
	if mkdirErr := os.MkdirAll(dir, 0o755); mkdirErr != nil {
		return fmt.Errorf("failed to create watermark directory: %w", mkdirErr)
	}

	data, err := json.MarshalIndent(w, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal watermark: %w", err)
	}

	tempFile := path + ".tmp"
	if writeErr := os.WriteFile(tempFile, data, 0o600); writeErr != nil {
		return fmt.Errorf("failed to write temporary watermark file: %w", writeErr)
	}

	// Sync to ensure data is flushed to disk
	file, err := os.Open(tempFile)
	if err != nil {
		_ = os.Remove(tempFile)
		return fmt.Errorf("failed to open temp file for sync: %w", err)
	}
	if err := file.Sync(); err != nil {
		_ = file.Close()
		_ = os.Remove(tempFile)
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tempFile)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tempFile, path); err != nil {
		_ = os.Remove(tempFile)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

// Delete removes the watermark file so the next run starts from scratch.
func Delete(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete watermark file: %w", err)
	}
	return nil
}
