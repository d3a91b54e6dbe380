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
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/sirseerhq/opslevel-relay/internal/config"
	relayerrors "github.com/sirseerhq/opslevel-relay/internal/errors"
	"github.com/sirseerhq/opslevel-relay/pkg/version"
)

// app carries the global flags and everything derived from them.
type app struct {
	configPath   string
	envFile      string
	logLevel     string
	logFormat    string
	metadataFile string

	cfg    *config.Config
	logger zerolog.Logger

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	now    func() time.Time
	// pause separates rate-sensitive writes such as Jira issue creation.
	pause time.Duration
}

func newApp() *app {
	return &app{
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
		now:    time.Now,
		pause:  100 * time.Millisecond,
		logger: zerolog.Nop(),
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := newApp()
	if err := newRootCommand(a).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(a.stderr, "Error: %v\n", err)
		stop()
		os.Exit(mapErrorToExitCode(err))
	}
}

func newRootCommand(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "opslevel-relay",
		Short: "Move data between OpsLevel and the tools around it",
		Long: `opslevel-relay pulls records from Wiz, CloudZero, GitHub Dependabot and
OpsLevel itself, reshapes them and pushes them to OpsLevel custom integrations,
GraphQL mutations, Jira or local files.

Credentials are read from the environment (or a .env file). Endpoints, page
sizes and retry settings may also come from .opslevel-relay.yaml.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "Path to config file (default: .opslevel-relay.yaml or ~/.opslevel-relay/config.yaml)")
	flags.StringVar(&a.envFile, "env-file", ".env", "Environment file loaded before reading credentials")
	flags.StringVar(&a.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flags.StringVar(&a.logFormat, "log-format", "console", "Log format (console or json)")
	flags.StringVar(&a.metadataFile, "metadata-file", "", "Write run metadata to this file, or into this directory when it exists")

	rootCmd.AddCommand(
		newWizIssuesCommand(a),
		newWizVulnerabilitiesCommand(a),
		newWizSyncCommand(a),
		newCloudZeroCostsCommand(a),
		newDependabotCommand(a),
		newExportServicesCommand(a),
		newExportTeamsCommand(a),
		newExportOpsLevelYMLCommand(a),
		newRepoOwnershipCommand(a),
		newTagsToPropertiesCommand(a),
		newMigrateComponentTypeCommand(a),
		newCampaignJiraCommand(a),
		newWebhookServerCommand(a),
	)
	return rootCmd
}

// setup loads .env, builds the logger and reads the layered config.
func (a *app) setup(cmd *cobra.Command) error {
	if a.envFile != "" {
		if err := godotenv.Load(a.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", a.envFile, err)
		}
	}

	logger, err := newLogger(a.stderr, a.logLevel, a.logFormat)
	if err != nil {
		return err
	}
	a.logger = logger

	cfg, err := config.LoadConfig(a.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(a.logger.WithContext(ctx))
	return nil
}

func newLogger(w io.Writer, level, format string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid --log-level %q: %w", level, err)
	}
	switch format {
	case "json":
	case "console":
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	default:
		return zerolog.Nop(), fmt.Errorf("invalid --log-format %q (use console or json)", format)
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger(), nil
}

// mapErrorToExitCode maps internal errors to appropriate exit codes
func mapErrorToExitCode(err error) int {
	if err == nil {
		return 0
	}

	if errors.Is(err, relayerrors.ErrMissingConfig) {
		return 4
	}

	if errors.Is(err, relayerrors.ErrAuthentication) ||
		errors.Is(err, relayerrors.ErrInvalidTokenURL) ||
		errors.Is(err, relayerrors.ErrRateLimit) {
		return 2
	}

	if errors.Is(err, relayerrors.ErrNetworkFailure) {
		return 3
	}

	return 1
}
