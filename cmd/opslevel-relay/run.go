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

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/sirseerhq/opslevel-relay/internal/config"
	"github.com/sirseerhq/opslevel-relay/internal/metadata"
	"github.com/sirseerhq/opslevel-relay/internal/opslevel"
	"github.com/sirseerhq/opslevel-relay/internal/transport"
	"github.com/sirseerhq/opslevel-relay/pkg/version"
)

// run is one subcommand invocation: its logger, tracker and HTTP options.
type run struct {
	app     *app
	ctx     context.Context
	logger  zerolog.Logger
	tracker *metadata.Tracker
}

func (a *app) startRun(cmd *cobra.Command) *run {
	tracker := metadata.New(cmd.Name())
	logger := a.logger.With().Str("command", cmd.Name()).Str("run_id", tracker.RunID()).Logger()
	return &run{
		app:     a,
		ctx:     logger.WithContext(cmd.Context()),
		logger:  logger,
		tracker: tracker,
	}
}

// httpOptions count every request that reaches the network.
func (r *run) httpOptions() []transport.Option {
	return []transport.Option{transport.WithObserver(r.tracker.ObserveRequest)}
}

func (r *run) policy() transport.RetryPolicy {
	return r.app.cfg.RetryPolicy()
}

func (r *run) opsLevel(creds config.Credentials) *opslevel.Client {
	return opslevel.NewClient(r.app.cfg.OpsLevel.APIURL, creds.OpsLevelToken, r.policy(), r.httpOptions()...)
}

// outputPath places name in the configured output directory unless the
// user gave an explicit path.
func (r *run) outputPath(explicit, name string) string {
	if explicit != "" {
		return explicit
	}
	return filepath.Join(r.app.cfg.Defaults.OutputDir, name)
}

// finish logs the run summary and writes metadata when requested.
func (r *run) finish(params metadata.RunParams, exhausted bool, wm *metadata.Watermarks) error {
	md := r.tracker.GenerateMetadata(version.Version, params, exhausted, wm)
	r.logger.Info().
		Int("pages", md.Results.Pages).
		Int("records", md.Results.Records).
		Int("delivered", md.Results.Delivered).
		Int("delivery_errors", md.Results.DeliveryErrors).
		Int("api_calls", md.Results.APICallCount).
		Str("duration", md.Results.Duration).
		Msg("run complete")

	target := r.app.metadataFile
	if target == "" {
		return nil
	}
	if info, err := os.Stat(target); err == nil && info.IsDir() {
		path, err := metadata.SaveMetadata(md, target)
		if err != nil {
			return err
		}
		r.logger.Debug().Str("path", path).Msg("saved run metadata")
		return nil
	}

	f, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("failed to create metadata file: %w", err)
	}
	if err := metadata.WriteMetadataToWriter(md, f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// previousRun returns the last saved metadata for this command when the
// metadata target is a directory.
func (r *run) previousRun(command string) *metadata.RunMetadata {
	dir := r.app.metadataFile
	if dir == "" {
		return nil
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return nil
	}
	md, err := metadata.LoadLatestMetadata(dir, command)
	if err != nil {
		return nil
	}
	return md
}
