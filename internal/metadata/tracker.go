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

// Package metadata tracks what a run did and persists it as JSON next to
// the watermark so operators can audit previous runs.
package metadata

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Tracker collects run statistics. It satisfies pager.Observer and its
// ObserveRequest method plugs into transport.WithObserver, so a single
// Tracker sees every page, delivery and HTTP attempt of a run.
type Tracker struct {
	mu             sync.Mutex
	runID          string
	command        string
	startTime      time.Time
	now            func() time.Time
	apiCallCount   int
	pages          int
	records        int
	delivered      int
	deliveryErrors int
}

// New creates a tracker for command and starts its clock.
func New(command string) *Tracker {
	return newTracker(command, time.Now)
}

func newTracker(command string, now func() time.Time) *Tracker {
	return &Tracker{
		runID:     uuid.NewString(),
		command:   command,
		startTime: now(),
		now:       now,
	}
}

// RunID returns the unique identifier of this run.
func (t *Tracker) RunID() string {
	return t.runID
}

// ObserveRequest counts one HTTP attempt.
func (t *Tracker) ObserveRequest(*http.Request) {
	t.mu.Lock()
	t.apiCallCount++
	t.mu.Unlock()
}

// ObservePage counts a fetched page and its nodes.
func (t *Tracker) ObservePage(nodes int) {
	t.mu.Lock()
	t.pages++
	t.records += nodes
	t.mu.Unlock()
}

// ObserveDelivery counts a sink result.
func (t *Tracker) ObserveDelivery(err error) {
	t.mu.Lock()
	if err != nil {
		t.deliveryErrors++
	} else {
		t.delivered++
	}
	t.mu.Unlock()
}

// APICalls returns the number of HTTP attempts observed so far.
func (t *Tracker) APICalls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.apiCallCount
}

// GenerateMetadata snapshots the counters into a RunMetadata.
func (t *Tracker) GenerateMetadata(relayVersion string, params RunParams, exhausted bool, wm *Watermarks) *RunMetadata {
	t.mu.Lock()
	defer t.mu.Unlock()

	completedAt := t.now()
	return &RunMetadata{
		RelayVersion: relayVersion,
		RunID:        t.runID,
		Command:      t.command,
		Parameters:   params,
		Results: RunResults{
			Pages:          t.pages,
			Records:        t.records,
			Delivered:      t.delivered,
			DeliveryErrors: t.deliveryErrors,
			APICallCount:   t.apiCallCount,
			Exhausted:      exhausted,
			Duration:       completedAt.Sub(t.startTime).String(),
			StartedAt:      t.startTime,
			CompletedAt:    completedAt,
		},
		Incremental: wm != nil && wm.Before != "",
		Watermark:   wm,
	}
}

// SaveMetadata writes metadata atomically to dir as
// run-metadata-<command>-<unix>.json and returns the path.
func SaveMetadata(metadata *RunMetadata, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create metadata directory: %w", err)
	}

	name := fmt.Sprintf("run-metadata-%s-%d.json", metadata.Command, metadata.Results.StartedAt.Unix())
	path := filepath.Join(dir, name)

	tmpFile := path + ".tmp"
	file, err := os.Create(tmpFile)
	if err != nil {
		return "", fmt.Errorf("failed to create metadata file: %w", err)
	}

	if err := WriteMetadataToWriter(metadata, file); err != nil {
		_ = file.Close()
		_ = os.Remove(tmpFile)
		return "", fmt.Errorf("failed to write metadata: %w", err)
	}

	if err := file.Close(); err != nil {
		_ = os.Remove(tmpFile)
		return "", fmt.Errorf("failed to close metadata file: %w", err)
	}

	if err := os.Rename(tmpFile, path); err != nil {
		return "", fmt.Errorf("failed to save metadata file: %w", err)
	}
	return path, nil
}

// LoadLatestMetadata returns the newest saved record for command, or nil
// when none exists.
func LoadLatestMetadata(dir, command string) (*RunMetadata, error) {
	files, err := filepath.Glob(filepath.Join(dir, fmt.Sprintf("run-metadata-%s-*.json", command)))
	if err != nil {
		return nil, fmt.Errorf("failed to list metadata files: %w", err)
	}
	if len(files) == 0 {
		return nil, nil
	}

	// Unix-second suffixes of equal width sort lexically.
	sort.Strings(files)
	data, err := os.ReadFile(files[len(files)-1])
	if err != nil {
		return nil, fmt.Errorf("failed to open metadata file: %w", err)
	}

	var metadata RunMetadata
	if err := json.Unmarshal(data, &metadata); err != nil {
		return nil, fmt.Errorf("failed to parse metadata: %w", err)
	}
	return &metadata, nil
}

// WriteMetadataToWriter writes metadata as indented JSON.
func WriteMetadataToWriter(metadata *RunMetadata, w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(metadata)
}
