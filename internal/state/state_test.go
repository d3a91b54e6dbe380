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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	relayerrors "github.com/sirseerhq/opslevel-relay/internal/errors"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_ReturnsExactObject(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.json", `{"status_changed_after": "2024-01-01T00:00:00.000Z"}`)

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	want := Watermark{"status_changed_after": "2024-01-01T00:00:00.000Z"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Load() = %v, want %v", got, want)
	}
	if got.StatusChangedAfter() != "2024-01-01T00:00:00.000Z" {
		t.Errorf("StatusChangedAfter() = %q", got.StatusChangedAfter())
	}
}

func TestLoad_Failures(t *testing.T) {
	tests := []struct {
		name      string
		content   *string
		wantInErr string
	}{
		{
			name:      "file does not exist",
			content:   nil,
			wantInErr: "no previous watermark found",
		},
		{
			name:      "corrupted JSON",
			content:   ptr("{ invalid json"),
			wantInErr: "corrupted (invalid JSON)",
		},
		{
			name:      "missing key",
			content:   ptr(`{"other": "value"}`),
			wantInErr: `has no "status_changed_after" key`,
		},
		{
			name:      "key is not a string",
			content:   ptr(`{"status_changed_after": 12}`),
			wantInErr: `has no "status_changed_after" key`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, "config.json")
			if tt.content != nil {
				path = writeFile(t, dir, "config.json", *tt.content)
			}

			got, err := Load(path)
			if err == nil {
				t.Fatal("Load should fail")
			}
			if !errors.Is(err, relayerrors.ErrNoWatermark) {
				t.Errorf("expected ErrNoWatermark, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantInErr) {
				t.Errorf("Unexpected error message: %v", err)
			}
			if got == nil || len(got) != 0 {
				t.Errorf("Load() = %v, want empty watermark", got)
			}
		})
	}
}

func TestLoadOrEmpty_LogsError(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.json", `{"unrelated": true}`)

	var buf bytes.Buffer
	ctx := zerolog.New(&buf).WithContext(context.Background())

	got := LoadOrEmpty(ctx, path)
	if len(got) != 0 {
		t.Errorf("LoadOrEmpty() = %v, want empty", got)
	}

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected one JSON log line, got %q", buf.String())
	}
	if entry["level"] != "error" {
		t.Errorf("level = %v, want error", entry["level"])
	}
	if !strings.Contains(entry["error"].(string), "status_changed_after") {
		t.Errorf("error field = %v", entry["error"])
	}
}

func TestAdvance_PreservesOtherKeys(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.json",
		`{"status_changed_after": "2024-01-01T00:00:00.000Z", "webhook_kind": "wiz_issues"}`)

	now := time.Date(2024, 5, 15, 14, 30, 0, 123456789, time.FixedZone("CEST", 2*60*60))
	got, err := Advance(path, now)
	if err != nil {
		t.Fatalf("Advance failed: %v", err)
	}

	if got.StatusChangedAfter() != "2024-05-15T12:30:00.123Z" {
		t.Errorf("StatusChangedAfter() = %q", got.StatusChangedAfter())
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load after Advance failed: %v", err)
	}
	want := Watermark{
		"status_changed_after": "2024-05-15T12:30:00.123Z",
		"webhook_kind":         "wiz_issues",
	}
	if !reflect.DeepEqual(loaded, want) {
		t.Errorf("Load() = %v, want %v", loaded, want)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("permissions = %o, want 600", perm)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary file should not remain")
	}
}

func TestAdvance_CreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")

	if _, err := Advance(path, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("Advance failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	ts, err := loaded.Time()
	if err != nil {
		t.Fatalf("Time() failed: %v", err)
	}
	if !ts.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Time() = %v", ts)
	}
}

func TestDelete(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.json", `{}`)

	if err := Delete(path); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := Delete(path); err != nil {
		t.Errorf("Delete of missing file should succeed, got %v", err)
	}
}

func ptr(s string) *string { return &s }
