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

package dependabot

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/go-github/v73/github"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/sirseerhq/opslevel-relay/internal/transport"
)

const (
	defaultPerPage = 100
	// NoFix is reported for alerts without a patched version.
	NoFix = "No fix available"
)

// Client lists Dependabot alerts through the GitHub REST API.
type Client struct {
	gh *github.Client
}

// NewClient authenticates with token. An empty baseURL means api.github.com.
func NewClient(baseURL, token string, policy transport.RetryPolicy, opts ...transport.Option) (*Client, error) {
	httpClient := &http.Client{
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}),
			Base:   transport.New(nil, policy, opts...),
		},
	}
	gh := github.NewClient(httpClient)
	if baseURL != "" {
		if !strings.HasSuffix(baseURL, "/") {
			baseURL += "/"
		}
		u, err := url.Parse(baseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid GitHub API endpoint %q: %w", baseURL, err)
		}
		gh.BaseURL = u
	}
	return &Client{gh: gh}, nil
}

// ListAlerts returns every Dependabot alert of owner/repo, following the
// after cursor until GitHub stops sending one.
func (c *Client) ListAlerts(ctx context.Context, owner, repo string) ([]*github.DependabotAlert, error) {
	logger := zerolog.Ctx(ctx)
	opts := &github.ListAlertsOptions{}
	opts.ListCursorOptions.PerPage = defaultPerPage

	var all []*github.DependabotAlert
	for page := 1; ; page++ {
		alerts, resp, err := c.gh.Dependabot.ListRepoAlerts(ctx, owner, repo, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch Dependabot alerts for %s/%s: %w", owner, repo, err)
		}
		all = append(all, alerts...)
		logger.Debug().Int("page", page).Int("alerts", len(alerts)).Msg("fetched Dependabot alerts")

		if resp == nil || resp.After == "" {
			return all, nil
		}
		opts.ListCursorOptions.After = resp.After
	}
}
