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

package ownership

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"

	relayerrors "github.com/sirseerhq/opslevel-relay/internal/errors"
	"github.com/sirseerhq/opslevel-relay/internal/opslevel"
	"github.com/sirseerhq/opslevel-relay/internal/pager"
)

// Assignment maps one repository to the squad (team) that owns it.
type Assignment struct {
	Name      string `json:"name"`
	SquadName string `json:"squadName"`
}

// Input is the ownership file: {"repositories": [{"name", "squadName"}]}.
type Input struct {
	Repositories []Assignment `json:"repositories"`
}

// LoadInput reads and decodes the ownership file at path.
func LoadInput(path string) (*Input, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read ownership file: %w", err)
	}
	var in Input
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("ownership file %s is not valid JSON: %w", path, err)
	}
	return &in, nil
}

// OpsLevel is the part of the OpsLevel client ownership updates need.
type OpsLevel interface {
	ListRepositories(ctx context.Context, pageSize int, observer pager.Observer) ([]opslevel.Repository, pager.Result, error)
	ListTeams(ctx context.Context, pageSize int, observer pager.Observer) ([]opslevel.Team, pager.Result, error)
	CreateTeam(ctx context.Context, name string) (string, error)
	UpdateRepositoryOwner(ctx context.Context, repositoryID, teamID string) error
}

// Options tune a Sync.
type Options struct {
	DryRun   bool
	PageSize int
	Observer pager.Observer
}

// Summary reports what a Sync did, or would do in dry-run mode.
type Summary struct {
	Updated      []string `json:"updated"`
	TeamsCreated []string `json:"teams_created"`
	TeamsFound   []string `json:"teams_found"`
	Skipped      []string `json:"skipped"`
	Failed       []string `json:"failed"`
}

const dryRunTeamID = "dry-run"

// Sync assigns every repository in the input to its squad, creating teams
// that do not exist yet. Repositories and teams are matched by
// case-insensitive name. Per-repository failures are logged and recorded
// in the summary; only the prefetch can fail the whole run.
func Sync(ctx context.Context, client OpsLevel, in *Input, opts Options) (*Summary, error) {
	logger := zerolog.Ctx(ctx)

	repos, result, err := client.ListRepositories(ctx, opts.PageSize, opts.Observer)
	if err != nil {
		return nil, err
	}
	if !result.Exhausted {
		return nil, fmt.Errorf("could not fetch every repository")
	}
	teams, result, err := client.ListTeams(ctx, opts.PageSize, opts.Observer)
	if err != nil {
		return nil, err
	}
	if !result.Exhausted {
		return nil, fmt.Errorf("could not fetch every team")
	}

	repoIDs := opslevel.NameIndex(repos,
		func(r opslevel.Repository) string { return r.Name },
		func(r opslevel.Repository) string { return r.ID })
	teamIDs := opslevel.NameIndex(teams,
		func(t opslevel.Team) string { return t.Name },
		func(t opslevel.Team) string { return t.ID })
	logger.Info().Int("repositories", len(repoIDs)).Int("teams", len(teamIDs)).Msg("prefetched OpsLevel catalog")

	summary := &Summary{}
	found := make(map[string]bool)
	for _, a := range in.Repositories {
		log := logger.With().Str("repository", a.Name).Str("squad", a.SquadName).Logger()
		if a.Name == "" || a.SquadName == "" {
			log.Warn().Msg("skipping incomplete entry")
			summary.Skipped = append(summary.Skipped, a.Name)
			continue
		}

		repoID, ok := repoIDs[strings.ToLower(a.Name)]
		if !ok {
			log.Warn().Msg("repository not found in OpsLevel")
			summary.Skipped = append(summary.Skipped, a.Name)
			continue
		}

		squadKey := strings.ToLower(a.SquadName)
		teamID, ok := teamIDs[squadKey]
		switch {
		case ok && teamID != dryRunTeamID:
			if !found[squadKey] {
				found[squadKey] = true
				summary.TeamsFound = append(summary.TeamsFound, a.SquadName)
			}
		case ok:
			// created earlier in this dry run
		case opts.DryRun:
			log.Info().Msg("would create team")
			teamIDs[squadKey] = dryRunTeamID
			summary.TeamsCreated = append(summary.TeamsCreated, a.SquadName)
		default:
			id, err := client.CreateTeam(ctx, a.SquadName)
			if errors.Is(err, relayerrors.ErrAuthentication) {
				return summary, err
			}
			if err != nil {
				log.Error().Err(err).Msg("failed to create team, skipping repository")
				summary.Failed = append(summary.Failed, a.Name)
				continue
			}
			log.Info().Str("team_id", id).Msg("created team")
			teamID = id
			teamIDs[squadKey] = id
			summary.TeamsCreated = append(summary.TeamsCreated, a.SquadName)
		}

		if opts.DryRun {
			log.Info().Msg("would assign owner")
			summary.Updated = append(summary.Updated, a.Name)
			continue
		}
		if err := client.UpdateRepositoryOwner(ctx, repoID, teamID); err != nil {
			if errors.Is(err, relayerrors.ErrAuthentication) {
				return summary, err
			}
			log.Error().Err(err).Msg("failed to update owner")
			summary.Failed = append(summary.Failed, a.Name)
			continue
		}
		log.Info().Msg("updated owner")
		summary.Updated = append(summary.Updated, a.Name)
	}
	return summary, nil
}

// String renders the counts on one line.
func (s *Summary) String() string {
	return fmt.Sprintf("updated %d, teams created %d, teams found %d, skipped %d, failed %d",
		len(s.Updated), len(s.TeamsCreated), len(s.TeamsFound), len(s.Skipped), len(s.Failed))
}
