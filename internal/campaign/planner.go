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

package campaign

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	relayerrors "github.com/sirseerhq/opslevel-relay/internal/errors"
	"github.com/sirseerhq/opslevel-relay/internal/jira"
	"github.com/sirseerhq/opslevel-relay/internal/opslevel"
	"github.com/sirseerhq/opslevel-relay/internal/pager"
)

// OpsLevel is the part of the OpsLevel client planning needs.
type OpsLevel interface {
	FindCampaign(ctx context.Context, campaignURL string) (*opslevel.Campaign, error)
	FailingCampaignServices(ctx context.Context, campaignID string, observer pager.Observer) ([]opslevel.CampaignService, pager.Result, error)
	ListTeams(ctx context.Context, pageSize int, observer pager.Observer) ([]opslevel.Team, pager.Result, error)
}

// Jira is the part of the Jira client planning and applying need.
type Jira interface {
	BrowseURL() string
	Search(ctx context.Context, jql string, fields ...string) ([]jira.Issue, error)
	CreateMeta(ctx context.Context, keys []string) ([]jira.Project, error)
	CreateIssue(ctx context.Context, in jira.IssueInput) (string, error)
}

// Plan is the outcome of planning: the campaign and one change per
// failing service.
type Plan struct {
	Campaign Campaign
	Changes  []Change
	// MissingJira names owners whose services cannot get an issue.
	MissingJira []string
}

// Planner builds and applies plans.
type Planner struct {
	OpsLevel OpsLevel
	Jira     Jira
	// TeamPageSize is the page size used to list teams.
	TeamPageSize int
	// Pause separates consecutive issue creations.
	Pause    time.Duration
	Observer pager.Observer
}

// Plan gathers everything needed to decide what to file for campaignURL.
// Partial OpsLevel fetches are an error: a missing page would file
// duplicate issues on the next run.
func (p *Planner) Plan(ctx context.Context, campaignURL string) (*Plan, error) {
	logger := zerolog.Ctx(ctx)

	found, err := p.OpsLevel.FindCampaign(ctx, campaignURL)
	if err != nil {
		return nil, err
	}
	c := Campaign{
		ID:    fmt.Sprint(found.ID),
		Name:  string(found.Name),
		URL:   string(found.HTMLURL),
		Brief: string(found.ProjectBrief),
	}
	logger.Info().Str("campaign", c.Name).Str("id", c.ID).Msg("found campaign")

	failing, result, err := p.OpsLevel.FailingCampaignServices(ctx, c.ID, p.Observer)
	if err != nil {
		return nil, err
	}
	if !result.Exhausted {
		return nil, fmt.Errorf("could not fetch every service of campaign %s", c.Name)
	}
	services := make([]Service, 0, len(failing))
	for _, s := range failing {
		services = append(services, Service{Name: s.Name, Owner: s.Owner})
	}

	olTeams, result, err := p.OpsLevel.ListTeams(ctx, p.TeamPageSize, p.Observer)
	if err != nil {
		return nil, err
	}
	if !result.Exhausted {
		return nil, fmt.Errorf("could not fetch every team")
	}
	teams := BuildTeams(olTeams, p.Jira.BrowseURL(), *logger)

	missing := MissingJira(services, teams)
	if len(missing) > 0 {
		logger.Warn().Strs("teams", missing).Msg("teams without a Jira contact will be skipped")
	}

	raw, err := p.Jira.Search(ctx, fmt.Sprintf("labels in (%s) ORDER BY key ASC", c.Label()), "labels")
	if err != nil {
		return nil, err
	}
	issues := IssuesByService(raw, *logger)

	projects, err := p.Jira.CreateMeta(ctx, ProjectKeys(teams))
	if err != nil {
		return nil, err
	}
	ApplyMetadata(teams, projects)

	return &Plan{
		Campaign:    c,
		Changes:     BuildChanges(services, issues, teams),
		MissingJira: missing,
	}, nil
}

// Apply files an issue for every CREATE change. Failures are logged and
// counted; the remaining changes are still attempted. A rejected Jira
// credential stops the run.
func (p *Planner) Apply(ctx context.Context, plan *Plan) (created, failed int, err error) {
	logger := zerolog.Ctx(ctx)
	first := true
	for _, change := range plan.Changes {
		if change.Action != ActionCreate {
			continue
		}
		if !first && p.Pause > 0 {
			select {
			case <-ctx.Done():
				return created, failed, ctx.Err()
			case <-time.After(p.Pause):
			}
		}
		first = false

		key, cerr := p.Jira.CreateIssue(ctx, IssueFor(plan.Campaign, change))
		if errors.Is(cerr, relayerrors.ErrAuthentication) {
			return created, failed, cerr
		}
		if cerr != nil {
			failed++
			logger.Error().Err(cerr).Str("service", change.Service.Name).Msg("failed to create issue")
			continue
		}
		created++
		logger.Info().Str("service", change.Service.Name).Str("issue", key).Msg("created issue")
	}
	return created, failed, nil
}
