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

package jira

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/sirseerhq/opslevel-relay/internal/transport"
)

// Client calls the Jira REST API with basic auth (user + API token).
type Client struct {
	baseURL string
	rest    *resty.Client
}

// NewClient creates a client for the Jira site at baseURL.
func NewClient(baseURL, user, apiToken string, policy transport.RetryPolicy, opts ...transport.Option) *Client {
	opts = append([]transport.Option{
		transport.WithCredentials(transport.BasicAuth{Username: user, Password: apiToken}),
		transport.WithHeader("Accept", "application/json"),
	}, opts...)
	baseURL = strings.TrimSuffix(baseURL, "/")
	return &Client{
		baseURL: baseURL,
		rest:    transport.NewRESTClient(baseURL, policy, opts...),
	}
}

// BrowseURL is the prefix of project pages, e.g. https://acme.atlassian.net/browse/.
func (c *Client) BrowseURL() string {
	return c.baseURL + "/browse/"
}

// Issue is a search hit.
type Issue struct {
	Key    string `json:"key"`
	Fields struct {
		Labels []string `json:"labels"`
	} `json:"fields"`
}

type searchResponse struct {
	StartAt    int     `json:"startAt"`
	MaxResults int     `json:"maxResults"`
	Total      int     `json:"total"`
	Issues     []Issue `json:"issues"`
}

// Search runs jql and returns every matching issue, advancing startAt by
// the server's maxResults until total is reached.
func (c *Client) Search(ctx context.Context, jql string, fields ...string) ([]Issue, error) {
	var issues []Issue
	startAt := 0
	for {
		req := c.request(ctx).
			SetQueryParam("jql", jql).
			SetQueryParam("startAt", strconv.Itoa(startAt))
		if len(fields) > 0 {
			req.SetQueryParam("fields", strings.Join(fields, ","))
		}

		var page searchResponse
		resp, err := req.SetResult(&page).Get("/rest/api/3/search")
		if err := transport.CheckResponse(resp, err, transport.StatusIn(http.StatusOK)); err != nil {
			return nil, fmt.Errorf("jira search failed: %w", err)
		}
		issues = append(issues, page.Issues...)

		if page.MaxResults <= 0 {
			return issues, nil
		}
		startAt += page.MaxResults
		if startAt >= page.Total {
			return issues, nil
		}
	}
}

// IssueType is an issue type available in a project.
type IssueType struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Project is one project of the create metadata.
type Project struct {
	ID         string      `json:"id"`
	Key        string      `json:"key"`
	IssueTypes []IssueType `json:"issuetypes"`
}

// CreateMeta returns the projects (with their issue types) for keys.
func (c *Client) CreateMeta(ctx context.Context, keys []string) ([]Project, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	var out struct {
		Projects []Project `json:"projects"`
	}
	resp, err := c.request(ctx).
		SetQueryParam("projectKeys", strings.Join(keys, ",")).
		SetResult(&out).
		Get("/rest/api/3/issue/createmeta")
	if err := transport.CheckResponse(resp, err, transport.StatusIn(http.StatusOK)); err != nil {
		return nil, fmt.Errorf("failed to fetch create metadata: %w", err)
	}
	return out.Projects, nil
}

// IssueInput describes an issue to create.
type IssueInput struct {
	ProjectID   string
	IssueTypeID string
	Summary     string
	Labels      []string
	Description string
}

func (in IssueInput) body() map[string]interface{} {
	return map[string]interface{}{
		"fields": map[string]interface{}{
			"summary":   in.Summary,
			"project":   map[string]string{"id": in.ProjectID},
			"issuetype": map[string]string{"id": in.IssueTypeID},
			"labels":    in.Labels,
			"description": map[string]interface{}{
				"version": 1,
				"type":    "doc",
				"content": []interface{}{
					map[string]interface{}{
						"type": "paragraph",
						"content": []interface{}{
							map[string]interface{}{"type": "text", "text": in.Description},
						},
					},
				},
			},
		},
		"update": map[string]interface{}{},
	}
}

// CreateIssue creates an issue and returns its key.
func (c *Client) CreateIssue(ctx context.Context, in IssueInput) (string, error) {
	var out struct {
		Key string `json:"key"`
	}
	resp, err := c.request(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(in.body()).
		SetResult(&out).
		Post("/rest/api/3/issue")
	if err := transport.CheckResponse(resp, err, transport.StatusIn(http.StatusOK, http.StatusCreated)); err != nil {
		return "", fmt.Errorf("failed to create issue %q: %w", in.Summary, err)
	}
	return out.Key, nil
}

// request starts a call whose answer is always decoded as JSON, whatever
// Content-Type the server sends.
func (c *Client) request(ctx context.Context) *resty.Request {
	return c.rest.R().SetContext(ctx).ForceContentType("application/json")
}
