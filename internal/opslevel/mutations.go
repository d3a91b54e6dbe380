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
	"encoding/json"
	"fmt"
	"strings"
)

// ErrorItem is one entry of a mutation payload's errors field.
type ErrorItem struct {
	Message string   `json:"message"`
	Path    []string `json:"path"`
}

// MutationError reports the inline errors of an otherwise successful
// mutation response.
type MutationError struct {
	Mutation string
	Errors   []ErrorItem
}

func (e *MutationError) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for _, item := range e.Errors {
		if len(item.Path) > 0 {
			parts = append(parts, fmt.Sprintf("%s (%s)", item.Message, strings.Join(item.Path, ".")))
		} else {
			parts = append(parts, item.Message)
		}
	}
	return fmt.Sprintf("%s failed: %s", e.Mutation, strings.Join(parts, "; "))
}

func checkErrors(mutation string, items []ErrorItem) error {
	if len(items) == 0 {
		return nil
	}
	return &MutationError{Mutation: mutation, Errors: items}
}

const codeIssueProjectUpsertMutation = `
mutation codeIssueProjectUpsert($identifier: CodeIssueProjectIdentifierInput!, $name: String!, $url: String) {
  codeIssueProjectUpsert(input: {identifier: $identifier, name: $name, url: $url}) {
    codeIssueProject {
      id
      name
      externalUrl
    }
    errors {
      message
      path
    }
  }
}`

const codeIssueProjectResourceConnectMutation = `
mutation codeIssueProjectResourceConnect($codeIssueProjectIds: [ID!]!, $resourceId: ID!) {
  codeIssueProjectResourceConnect(input: {codeIssueProjectIds: $codeIssueProjectIds, resourceId: $resourceId}) {
    resource {
      ... on Service {
        id
        name
      }
      ... on Repository {
        id
        name
      }
    }
    errors {
      message
      path
    }
  }
}`

const codeIssueUpsertMutation = `
mutation codeIssueUpsert($input: CodeIssueInput!) {
  codeIssueUpsert(input: $input) {
    codeIssue {
      id
      name
    }
    errors {
      message
      path
    }
  }
}`

const propertyAssignMutation = `
mutation propertyAssign($owner: IdentifierInput!, $definition: String, $value: JsonString!) {
  propertyAssign(input: {owner: $owner, definition: {alias: $definition}, value: $value, runValidation: false}) {
    property {
      value
    }
    errors {
      message
      path
    }
  }
}`

const teamCreateMutation = `
mutation teamCreate($name: String!) {
  teamCreate(input: {name: $name}) {
    team {
      id
      name
    }
    errors {
      message
      path
    }
  }
}`

const repositoryUpdateMutation = `
mutation repositoryUpdate($id: ID!, $ownerId: ID, $syncLinkedServices: Boolean) {
  repositoryUpdate(input: {id: $id, ownerId: $ownerId}, syncLinkedServices: $syncLinkedServices) {
    repository {
      id
    }
    errors {
      message
      path
    }
  }
}`

// CodeIssueProjectIdentifier addresses a code issue project by the
// integration that owns it and its external id.
type CodeIssueProjectIdentifier struct {
	IntegrationID string
	ExternalID    string
}

func (i CodeIssueProjectIdentifier) input() map[string]interface{} {
	return map[string]interface{}{
		"integration": map[string]interface{}{"id": i.IntegrationID},
		"externalId":  i.ExternalID,
	}
}

// UpsertCodeIssueProject creates or updates a code issue project and
// returns its id.
func (c *Client) UpsertCodeIssueProject(ctx context.Context, id CodeIssueProjectIdentifier, name, url string) (string, error) {
	var out struct {
		Payload struct {
			Project *struct {
				ID string `json:"id"`
			} `json:"codeIssueProject"`
			Errors []ErrorItem `json:"errors"`
		} `json:"codeIssueProjectUpsert"`
	}
	vars := map[string]interface{}{
		"identifier": id.input(),
		"name":       name,
		"url":        url,
	}
	if err := c.raw.Run(ctx, codeIssueProjectUpsertMutation, vars, &out); err != nil {
		return "", err
	}
	if err := checkErrors("codeIssueProjectUpsert", out.Payload.Errors); err != nil {
		return "", err
	}
	if out.Payload.Project == nil {
		return "", fmt.Errorf("codeIssueProjectUpsert returned no project")
	}
	return out.Payload.Project.ID, nil
}

// ConnectCodeIssueProjects attaches projects to a service or repository.
func (c *Client) ConnectCodeIssueProjects(ctx context.Context, resourceID string, projectIDs ...string) error {
	var out struct {
		Payload struct {
			Errors []ErrorItem `json:"errors"`
		} `json:"codeIssueProjectResourceConnect"`
	}
	vars := map[string]interface{}{
		"codeIssueProjectIds": projectIDs,
		"resourceId":          resourceID,
	}
	if err := c.raw.Run(ctx, codeIssueProjectResourceConnectMutation, vars, &out); err != nil {
		return err
	}
	return checkErrors("codeIssueProjectResourceConnect", out.Payload.Errors)
}

// CodeIssue is the input of codeIssueUpsert.
type CodeIssue struct {
	Project       CodeIssueProjectIdentifier
	ExternalID    string
	Name          string
	IssueCategory string
	Severity      string
	CVE           string
	URL           string
}

// UpsertCodeIssue creates or updates one code issue and returns its id.
func (c *Client) UpsertCodeIssue(ctx context.Context, issue CodeIssue) (string, error) {
	input := map[string]interface{}{
		"identifier": map[string]interface{}{
			"codeIssueProject": issue.Project.input(),
			"externalId":       issue.ExternalID,
		},
		"name":          issue.Name,
		"issueCategory": issue.IssueCategory,
		"severity":      issue.Severity,
	}
	if issue.CVE != "" {
		input["cves"] = map[string]interface{}{
			"identifier": issue.CVE,
			"url":        issue.URL,
		}
	}

	var out struct {
		Payload struct {
			CodeIssue *struct {
				ID string `json:"id"`
			} `json:"codeIssue"`
			Errors []ErrorItem `json:"errors"`
		} `json:"codeIssueUpsert"`
	}
	if err := c.raw.Run(ctx, codeIssueUpsertMutation, map[string]interface{}{"input": input}, &out); err != nil {
		return "", err
	}
	if err := checkErrors("codeIssueUpsert", out.Payload.Errors); err != nil {
		return "", err
	}
	if out.Payload.CodeIssue == nil {
		return "", nil
	}
	return out.Payload.CodeIssue.ID, nil
}

// AssignProperty sets a custom property on the component with ownerAlias.
// value is sent JSON encoded, as the JsonString scalar requires.
func (c *Client) AssignProperty(ctx context.Context, ownerAlias, definition string, value interface{}) error {
	return c.assignProperty(ctx, map[string]string{"alias": ownerAlias}, definition, value)
}

// AssignServiceProperty is AssignProperty addressed by service id.
func (c *Client) AssignServiceProperty(ctx context.Context, serviceID, definition string, value interface{}) error {
	return c.assignProperty(ctx, map[string]string{"id": serviceID}, definition, value)
}

func (c *Client) assignProperty(ctx context.Context, owner map[string]string, definition string, value interface{}) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode property value: %w", err)
	}
	var out struct {
		Payload struct {
			Errors []ErrorItem `json:"errors"`
		} `json:"propertyAssign"`
	}
	vars := map[string]interface{}{
		"owner":      owner,
		"definition": definition,
		"value":      string(encoded),
	}
	if err := c.raw.Run(ctx, propertyAssignMutation, vars, &out); err != nil {
		return err
	}
	return checkErrors("propertyAssign", out.Payload.Errors)
}

// CreateTeam creates a team and returns its id.
func (c *Client) CreateTeam(ctx context.Context, name string) (string, error) {
	var out struct {
		Payload struct {
			Team *struct {
				ID string `json:"id"`
			} `json:"team"`
			Errors []ErrorItem `json:"errors"`
		} `json:"teamCreate"`
	}
	if err := c.raw.Run(ctx, teamCreateMutation, map[string]interface{}{"name": name}, &out); err != nil {
		return "", err
	}
	if err := checkErrors("teamCreate", out.Payload.Errors); err != nil {
		return "", err
	}
	if out.Payload.Team == nil {
		return "", fmt.Errorf("teamCreate returned no team for %q", name)
	}
	return out.Payload.Team.ID, nil
}

// UpdateRepositoryOwner sets a repository's owner and propagates it to
// linked services.
func (c *Client) UpdateRepositoryOwner(ctx context.Context, repositoryID, teamID string) error {
	var out struct {
		Payload struct {
			Errors []ErrorItem `json:"errors"`
		} `json:"repositoryUpdate"`
	}
	vars := map[string]interface{}{
		"id":                 repositoryID,
		"ownerId":            teamID,
		"syncLinkedServices": true,
	}
	if err := c.raw.Run(ctx, repositoryUpdateMutation, vars, &out); err != nil {
		return err
	}
	return checkErrors("repositoryUpdate", out.Payload.Errors)
}
