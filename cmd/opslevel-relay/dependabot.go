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
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sirseerhq/opslevel-relay/internal/config"
	"github.com/sirseerhq/opslevel-relay/internal/dependabot"
	"github.com/sirseerhq/opslevel-relay/internal/metadata"
	"github.com/sirseerhq/opslevel-relay/internal/opslevel"
	"github.com/sirseerhq/opslevel-relay/internal/output"
)

const dependabotReport = "dependabot_alerts.json"

func newDependabotCommand(a *app) *cobra.Command {
	var (
		outputFile string
		dryRun     bool
	)

	cmd := &cobra.Command{
		Use:   "dependabot <owner>/<repo>",
		Short: "Send a repository's Dependabot alerts to OpsLevel",
		Long: `List the Dependabot alerts of a GitHub repository, group them by advisory
severity and post the summary to the OpsLevel custom event endpoint.

The repository must be specified in the format: <owner>/<repo>
The summary is also written to dependabot_alerts.json in the output directory.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, repo, err := parseRepository(args[0])
			if err != nil {
				return err
			}
			r := a.startRun(cmd)
			return r.dependabot(owner, repo, outputFile, dryRun)
		},
	}

	cmd.Flags().StringVar(&outputFile, "output", "", "Summary file path (default: dependabot_alerts.json)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Write the summary without posting it")
	return cmd
}

// parseRepository parses an owner/repo string into owner and repo components
func parseRepository(repoArg string) (owner, repo string, err error) {
	parts := strings.Split(repoArg, "/")
	if len(parts) != 2 {
		return "", "", fmt.Errorf("invalid repository format. Expected: <owner>/<repo>, got: %s", repoArg)
	}

	owner = strings.TrimSpace(parts[0])
	repo = strings.TrimSpace(parts[1])
	if owner == "" || repo == "" {
		return "", "", fmt.Errorf("invalid repository format. Expected: <owner>/<repo>, got: %s", repoArg)
	}
	return owner, repo, nil
}

func (r *run) dependabot(owner, repo, outputFile string, dryRun bool) error {
	required := []config.Integration{config.GitHub}
	if !dryRun {
		required = append(required, config.OpsLevelCustomEvent)
	}
	creds, err := r.app.cfg.Require(required...)
	if err != nil {
		return err
	}

	gh, err := dependabot.NewClient(r.app.cfg.GitHub.APIEndpoint, creds.GitHubToken, r.policy(), r.httpOptions()...)
	if err != nil {
		return err
	}
	alerts, err := gh.ListAlerts(r.ctx, owner, repo)
	if err != nil {
		return err
	}
	groups := dependabot.GroupBySeverity(alerts)

	path := r.outputPath(outputFile, dependabotReport)
	if err := output.WriteDocument(path, groups); err != nil {
		return err
	}
	r.logger.Info().Int("alerts", len(alerts)).Int("severities", len(groups)).Str("path", path).Msg("wrote dependabot summary")

	if !dryRun {
		ol := r.app.cfg.OpsLevel
		sender := opslevel.NewCustomEventSender(ol.CustomEventURL, ol.RoutingID, r.policy(), r.httpOptions()...)
		if err := sender.Send(r.ctx, dependabot.Payload(repo, groups)); err != nil {
			return fmt.Errorf("failed to send dependabot summary: %w", err)
		}
		r.logger.Info().Str("repository", repo).Msg("sent dependabot summary")
	}

	return r.finish(metadata.RunParams{
		Endpoint:   r.app.cfg.GitHub.APIEndpoint,
		OutputFile: path,
		DryRun:     dryRun,
		Extra:      map[string]string{"repository": owner + "/" + repo},
	}, true, nil)
}
