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
	"github.com/spf13/cobra"

	"github.com/sirseerhq/opslevel-relay/internal/config"
	"github.com/sirseerhq/opslevel-relay/internal/metadata"
	"github.com/sirseerhq/opslevel-relay/internal/ownership"
)

func newRepoOwnershipCommand(a *app) *cobra.Command {
	var (
		file     string
		pageSize int
		dryRun   bool
	)

	cmd := &cobra.Command{
		Use:   "repo-ownership",
		Short: "Assign OpsLevel repositories to teams from a JSON file",
		Long: `Read {"repositories":[{"name":"...","squadName":"..."}]} and make each
squad the owner of its repository in OpsLevel, creating teams that do not
exist yet. Names are matched case-insensitively.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r := a.startRun(cmd)
			return r.repoOwnership(file, pageSizeOr(pageSize, a.cfg.Defaults.OpsLevelPageSize), dryRun)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Ownership JSON file")
	cmd.Flags().IntVar(&pageSize, "page-size", 0, "Repositories and teams per page")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report the changes without making them")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func (r *run) repoOwnership(file string, pageSize int, dryRun bool) error {
	in, err := ownership.LoadInput(file)
	if err != nil {
		return err
	}
	creds, err := r.app.cfg.Require(config.OpsLevel)
	if err != nil {
		return err
	}

	summary, err := ownership.Sync(r.ctx, r.opsLevel(creds), in, ownership.Options{
		DryRun:   dryRun,
		PageSize: pageSize,
		Observer: r.tracker,
	})
	if err != nil {
		return err
	}

	r.printSummary(dryRun, summary)

	return r.finish(metadata.RunParams{
		Endpoint: r.app.cfg.OpsLevel.APIURL,
		PageSize: pageSize,
		DryRun:   dryRun,
		Extra:    map[string]string{"file": file},
	}, true, nil)
}
