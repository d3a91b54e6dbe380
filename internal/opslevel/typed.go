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

package opslevel

import (
	"context"
	"fmt"

	"github.com/shurcooL/graphql"

	relayerrors "github.com/sirseerhq/opslevel-relay/internal/errors"
)

// Service is a service looked up by alias, with its code issue projects.
type Service struct {
	ID                graphql.ID       `graphql:"id"`
	Name              graphql.String   `graphql:"name"`
	Aliases           []graphql.String `graphql:"aliases"`
	CodeIssueProjects struct {
		Nodes []CodeIssueProject `graphql:"nodes"`
	} `graphql:"codeIssueProjects"`
}

// CodeIssueProject is a container of code issues attached to a service.
type CodeIssueProject struct {
	ID         graphql.ID     `graphql:"id"`
	Name       graphql.String `graphql:"name"`
	ExternalID graphql.String `graphql:"externalId"`
}

// ProjectNamed returns the id of the code issue project called name.
func (s *Service) ProjectNamed(name string) (string, bool) {
	for _, p := range s.CodeIssueProjects.Nodes {
		if string(p.Name) == name {
			return fmt.Sprint(p.ID), true
		}
	}
	return "", false
}

// ServiceByAlias looks a service up by any of its aliases. A missing
// service is reported as ErrNotFound.
func (c *Client) ServiceByAlias(ctx context.Context, alias string) (*Service, error) {
	var q struct {
		Account struct {
			Service *Service `graphql:"service(alias: $alias)"`
		} `graphql:"account"`
	}
	vars := map[string]interface{}{
		"alias": graphql.NewString(graphql.String(alias)),
	}
	if err := c.typed.Query(ctx, &q, vars); err != nil {
		return nil, fmt.Errorf("failed to look up service %q: %w", alias, err)
	}
	if q.Account.Service == nil {
		return nil, fmt.Errorf("service %q: %w", alias, relayerrors.ErrNotFound)
	}
	return q.Account.Service, nil
}

// Campaign is an OpsLevel campaign.
type Campaign struct {
	ID           graphql.ID     `graphql:"id"`
	Name         graphql.String `graphql:"name"`
	HTMLURL      graphql.String `graphql:"htmlUrl"`
	ProjectBrief graphql.String `graphql:"projectBrief"`
}

// CampaignFilterInput mirrors the OpsLevel input type of the same name.
type CampaignFilterInput struct {
	Key  string `json:"key"`
	Type string `json:"type"`
	Arg  string `json:"arg,omitempty"`
}

type campaignsQuery struct {
	Account struct {
		Campaigns struct {
			Nodes    []Campaign `graphql:"nodes"`
			PageInfo struct {
				HasNextPage graphql.Boolean `graphql:"hasNextPage"`
				EndCursor   graphql.String  `graphql:"endCursor"`
			} `graphql:"pageInfo"`
		} `graphql:"campaigns(filter: $filter, after: $after)"`
	} `graphql:"account"`
}

// OpenCampaigns lists every campaign that has not ended.
func (c *Client) OpenCampaigns(ctx context.Context) ([]Campaign, error) {
	filter := []CampaignFilterInput{{Key: "status", Type: "does_not_equal", Arg: "ended"}}
	var campaigns []Campaign
	var after *graphql.String
	for {
		var q campaignsQuery
		vars := map[string]interface{}{
			"filter": filter,
			"after":  after,
		}
		if err := c.typed.Query(ctx, &q, vars); err != nil {
			return nil, fmt.Errorf("failed to list campaigns: %w", err)
		}
		campaigns = append(campaigns, q.Account.Campaigns.Nodes...)

		page := q.Account.Campaigns.PageInfo
		if !page.HasNextPage || page.EndCursor == "" {
			return campaigns, nil
		}
		after = graphql.NewString(page.EndCursor)
	}
}

// FindCampaign returns the open campaign whose page is campaignURL.
func (c *Client) FindCampaign(ctx context.Context, campaignURL string) (*Campaign, error) {
	campaigns, err := c.OpenCampaigns(ctx)
	if err != nil {
		return nil, err
	}
	for i := range campaigns {
		if string(campaigns[i].HTMLURL) == campaignURL {
			return &campaigns[i], nil
		}
	}
	return nil, fmt.Errorf("no campaign found for %s: %w", campaignURL, relayerrors.ErrNotFound)
}
