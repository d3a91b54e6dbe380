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
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sirseerhq/opslevel-relay/internal/campaign"
	"github.com/sirseerhq/opslevel-relay/internal/config"
	"github.com/sirseerhq/opslevel-relay/internal/jira"
	"github.com/sirseerhq/opslevel-relay/internal/metadata"
)

func newCampaignJiraCommand(a *app) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "campaign-jira <campaign-url>",
		Short: "File Jira issues for services failing an OpsLevel campaign",
		Long: `Find the open campaign with the given URL, list its services whose first
check is failing and plan one Jira issue per service in the owning team's
Jira project. Services that already have an issue with the campaign label
are left alone.

The plan is printed first. Issues are created after confirmation, or
straight away with --yes.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r := a.startRun(cmd)
			return r.campaignJira(args[0], yes)
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Create issues without asking")
	return cmd
}

func (r *run) campaignJira(campaignURL string, yes bool) error {
	creds, err := r.app.cfg.Require(config.OpsLevel, config.Jira)
	if err != nil {
		return err
	}

	planner := &campaign.Planner{
		OpsLevel:     r.opsLevel(creds),
		Jira:         jira.NewClient(r.app.cfg.Jira.URL, creds.JiraUser, creds.JiraAPIToken, r.policy(), r.httpOptions()...),
		TeamPageSize: r.app.cfg.Defaults.OpsLevelPageSize,
		Pause:        r.app.pause,
		Observer:     r.tracker,
	}

	plan, err := planner.Plan(r.ctx, campaignURL)
	if err != nil {
		return err
	}
	if err := campaign.WriteTable(r.app.stdout, plan.Changes); err != nil {
		return err
	}

	pending := campaign.Pending(plan.Changes)
	params := metadata.RunParams{
		Endpoint: r.app.cfg.Jira.URL,
		Extra:    map[string]string{"campaign": plan.Campaign.Name},
	}
	if pending == 0 {
		fmt.Fprintln(r.app.stdout, "Nothing to create.")
		return r.finish(params, true, nil)
	}

	if !yes {
		ok, err := confirm(r.app.stdin, r.app.stdout, fmt.Sprintf("Create %d Jira issues?", pending))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(r.app.stdout, "Aborted.")
			return r.finish(params, true, nil)
		}
	}

	created, failed, err := planner.Apply(r.ctx, plan)
	if err != nil {
		return err
	}
	fmt.Fprintf(r.app.stdout, "Created %d issues, %d failed.\n", created, failed)
	if err := r.finish(params, true, nil); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d issues could not be created", failed, pending)
	}
	return nil
}

// confirm asks a yes/no question. Anything but y or yes is a no.
func confirm(in io.Reader, out io.Writer, question string) (bool, error) {
	fmt.Fprintf(out, "%s [y/N] ", question)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, fmt.Errorf("failed to read answer: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
