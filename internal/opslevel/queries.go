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
	"sort"
	"strings"

	"github.com/sirseerhq/opslevel-relay/internal/pager"
	"github.com/sirseerhq/opslevel-relay/internal/record"
)

// ServicesQuery pages every service in the account.
const ServicesQuery = `
query services($first: Int, $after: String) {
  account {
    services(first: $first, after: $after) {
      nodes {
        id
        name
        aliases
        owner {
          alias
          name
        }
        timestamps {
          updatedAt
        }
      }
      pageInfo {
        hasNextPage
        endCursor
      }
    }
  }
}`

// TeamsQuery pages every team with its contacts and members.
const TeamsQuery = `
query teams($first: Int, $after: String) {
  account {
    teams(first: $first, after: $after) {
      nodes {
        id
        name
        alias
        aliases
        contacts {
          type
          displayName
          address
        }
        memberships {
          nodes {
            role
            user {
              id
              name
              email
            }
          }
        }
      }
      pageInfo {
        hasNextPage
        endCursor
      }
    }
  }
}`

// RepositoriesQuery pages every repository.
const RepositoriesQuery = `
query repositories($first: Int, $after: String) {
  account {
    repositories(first: $first, after: $after) {
      nodes {
        id
        name
        defaultAlias
        owner {
          id
          name
        }
      }
      pageInfo {
        hasNextPage
        endCursor
      }
    }
  }
}`

// CampaignServicesQuery pages the services targeted by a campaign with the
// status of their campaign checks. It needs the internal visibility header.
const CampaignServicesQuery = `
query campaignServices($id: ID!, $first: Int, $after: String) {
  account {
    campaign(id: $id) {
      id
      name
      services(first: $first, after: $after) {
        nodes {
          id
          name
          owner {
            name
          }
          campaignReport(campaignIds: [$id]) {
            checkResultsByCampaign {
              nodes {
                status
              }
            }
          }
        }
        pageInfo {
          hasNextPage
          endCursor
        }
      }
    }
  }
}`

// FetchServices pages services into sink.
func (c *Client) FetchServices(ctx context.Context, pageSize int, observer pager.Observer, sink pager.Sink) (pager.Result, error) {
	return pager.FetchAll(ctx, c, ServicesQuery, pager.Collection("account", "services"),
		pager.Options{PageSize: pageSize, Observer: observer}, sink)
}

// FetchTeams pages teams into sink.
func (c *Client) FetchTeams(ctx context.Context, pageSize int, observer pager.Observer, sink pager.Sink) (pager.Result, error) {
	return pager.FetchAll(ctx, c, TeamsQuery, pager.Collection("account", "teams"),
		pager.Options{PageSize: pageSize, Observer: observer}, sink)
}

// ListTeams collects every team.
func (c *Client) ListTeams(ctx context.Context, pageSize int, observer pager.Observer) ([]Team, pager.Result, error) {
	nodes, result, err := pager.Collect(ctx, c, TeamsQuery, pager.Collection("account", "teams"),
		pager.Options{PageSize: pageSize, Observer: observer})
	if err != nil {
		return nil, result, err
	}
	teams := make([]Team, 0, len(nodes))
	for _, n := range nodes {
		teams = append(teams, NewTeam(n))
	}
	return teams, result, nil
}

// ListRepositories collects every repository.
func (c *Client) ListRepositories(ctx context.Context, pageSize int, observer pager.Observer) ([]Repository, pager.Result, error) {
	nodes, result, err := pager.Collect(ctx, c, RepositoriesQuery, pager.Collection("account", "repositories"),
		pager.Options{PageSize: pageSize, Observer: observer})
	if err != nil {
		return nil, result, err
	}
	repos := make([]Repository, 0, len(nodes))
	for _, n := range nodes {
		repos = append(repos, Repository{
			ID:    record.StringOr(n, "", "id"),
			Name:  record.StringOr(n, "", "name"),
			Alias: record.StringOr(n, "", "defaultAlias"),
		})
	}
	return repos, result, nil
}

// NoOwner stands in for services without an owning team.
const NoOwner = "NO-OWNER"

// FailingCampaignServices returns the campaign's services whose first
// campaign check result is failing, sorted by owner then name.
func (c *Client) FailingCampaignServices(ctx context.Context, campaignID string, observer pager.Observer) ([]CampaignService, pager.Result, error) {
	nodes, result, err := pager.Collect(ctx, c.Internal(), CampaignServicesQuery,
		pager.Collection("account", "campaign", "services"),
		pager.Options{Variables: map[string]interface{}{"id": campaignID}, Observer: observer})
	if err != nil {
		return nil, result, err
	}
	return FilterFailing(nodes), result, nil
}

// FilterFailing keeps services whose first check result is "failing".
func FilterFailing(nodes []record.Node) []CampaignService {
	var services []CampaignService
	for _, n := range nodes {
		results := record.Nodes(n, "campaignReport", "checkResultsByCampaign", "nodes")
		if len(results) == 0 || record.StringOr(results[0], "", "status") != "failing" {
			continue
		}
		services = append(services, CampaignService{
			ID:    record.StringOr(n, "", "id"),
			Name:  record.StringOr(n, "", "name"),
			Owner: record.StringOr(n, NoOwner, "owner", "name"),
		})
	}
	sort.SliceStable(services, func(i, j int) bool {
		if services[i].Owner != services[j].Owner {
			return services[i].Owner < services[j].Owner
		}
		return services[i].Name < services[j].Name
	})
	return services
}

// Team is a team with the fields the relay reads.
type Team struct {
	ID          string
	Name        string
	Alias       string
	Contacts    []Contact
	Memberships []Membership
}

// Contact is one team contact method.
type Contact struct {
	Type        string
	DisplayName string
	Address     string
}

// Membership is one user's role in a team.
type Membership struct {
	UserID string
	Name   string
	Email  string
	Role   string
}

// NewTeam reads a TeamsQuery node.
func NewTeam(n record.Node) Team {
	t := Team{
		ID:    record.StringOr(n, "", "id"),
		Name:  record.StringOr(n, "", "name"),
		Alias: record.StringOr(n, "", "alias"),
	}
	for _, c := range record.Nodes(n, "contacts") {
		t.Contacts = append(t.Contacts, Contact{
			Type:        record.StringOr(c, "", "type"),
			DisplayName: record.StringOr(c, "", "displayName"),
			Address:     record.StringOr(c, "", "address"),
		})
	}
	for _, m := range record.Nodes(n, "memberships", "nodes") {
		t.Memberships = append(t.Memberships, Membership{
			UserID: record.StringOr(m, "", "user", "id"),
			Name:   record.StringOr(m, "", "user", "name"),
			Email:  record.StringOr(m, "", "user", "email"),
			Role:   record.StringOr(m, "", "role"),
		})
	}
	return t
}

// TeamCSVHeader is the header of the teams export.
var TeamCSVHeader = []string{"team_id", "team_name", "team_alias", "contact_type", "contact_address", "member_email", "member_role"}

// CSVRows expands a team into one row per contact and membership pair.
// Missing contacts or members leave their columns empty, and a team with
// neither still produces one row.
func (t Team) CSVRows() [][]string {
	contacts := t.Contacts
	if len(contacts) == 0 {
		contacts = []Contact{{}}
	}
	members := t.Memberships
	if len(members) == 0 {
		members = []Membership{{}}
	}
	rows := make([][]string, 0, len(contacts)*len(members))
	for _, c := range contacts {
		for _, m := range members {
			rows = append(rows, []string{t.ID, t.Name, t.Alias, c.Type, c.Address, m.Email, m.Role})
		}
	}
	return rows
}

// Repository is a repository with its default alias.
type Repository struct {
	ID    string
	Name  string
	Alias string
}

// CampaignService is a service still failing a campaign.
type CampaignService struct {
	ID    string
	Name  string
	Owner string
}

// ServiceRow is one row of the services export.
type ServiceRow struct {
	ID        string
	Name      string
	UpdatedAt string
}

// ServiceCSVHeader is the header of the services export.
var ServiceCSVHeader = []string{"id", "name", "updatedAt"}

// NewServiceRow reads a ServicesQuery node.
func NewServiceRow(n record.Node) ServiceRow {
	return ServiceRow{
		ID:        record.StringOr(n, "", "id"),
		Name:      record.StringOr(n, "", "name"),
		UpdatedAt: record.StringOr(n, "", "timestamps", "updatedAt"),
	}
}

// CSVRow implements output.Rower.
func (r ServiceRow) CSVRow() []string {
	return []string{r.ID, r.Name, r.UpdatedAt}
}

// NameIndex maps lower-cased names to ids. Later duplicates win.
func NameIndex[T any](items []T, name, id func(T) string) map[string]string {
	index := make(map[string]string, len(items))
	for _, it := range items {
		index[strings.ToLower(name(it))] = id(it)
	}
	return index
}
