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

package wiz

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"

	relayerrors "github.com/sirseerhq/opslevel-relay/internal/errors"
	"github.com/sirseerhq/opslevel-relay/internal/gql"
	"github.com/sirseerhq/opslevel-relay/internal/pager"
	"github.com/sirseerhq/opslevel-relay/internal/transport"
)

// Config identifies a Wiz tenant and the service account used against it.
type Config struct {
	ClientID     string
	ClientSecret string
	EndpointURL  string
	TokenURL     string
	// Audience overrides classification of TokenURL.
	Audience string
}

// Client talks to one Wiz GraphQL endpoint with a bearer token obtained by
// Authenticate. It implements pager.Querier.
type Client struct {
	cfg      Config
	audience string
	policy   transport.RetryPolicy
	opts     []transport.Option
	source   oauth2.TokenSource
	gql      *gql.Client
}

// NewClient validates cfg and returns an unauthenticated client. The token
// URL is classified here so an unknown URL fails before any request.
func NewClient(cfg Config, policy transport.RetryPolicy, opts ...transport.Option) (*Client, error) {
	audience := cfg.Audience
	if audience == "" {
		var err error
		if audience, err = AudienceForTokenURL(cfg.TokenURL); err != nil {
			return nil, err
		}
	}
	return &Client{cfg: cfg, audience: audience, policy: policy, opts: opts}, nil
}

// Audience returns the audience sent with the token request.
func (c *Client) Audience() string {
	return c.audience
}

func (c *Client) connect() {
	httpClient := &http.Client{
		Transport: &oauth2.Transport{
			Source: c.source,
			Base:   transport.New(nil, c.policy, c.opts...),
		},
	}
	c.gql = gql.NewClient(c.cfg.EndpointURL, httpClient)
}

// Query runs a raw GraphQL query against the Wiz API.
func (c *Client) Query(ctx context.Context, query string, variables map[string]interface{}) (map[string]interface{}, error) {
	if c.gql == nil {
		return nil, fmt.Errorf("%w: wiz client used before Authenticate", relayerrors.ErrAuthentication)
	}
	return c.gql.Query(ctx, query, variables)
}

// FetchIssues pages issues whose status changed after since and hands each
// page to sink.
func (c *Client) FetchIssues(ctx context.Context, since string, pageSize int, observer pager.Observer, sink pager.Sink) (pager.Result, error) {
	return pager.FetchAll(ctx, c, IssuesQuery, pager.Collection("issues"), pager.Options{
		PageSize:  pageSize,
		Variables: IssuesVariables(since),
		Observer:  observer,
	}, sink)
}

// FetchVulnerabilityFindings pages vulnerability findings matching filter.
func (c *Client) FetchVulnerabilityFindings(ctx context.Context, filter FindingsFilter, pageSize int, observer pager.Observer, sink pager.Sink) (pager.Result, error) {
	return pager.FetchAll(ctx, c, VulnerabilityFindingsQuery, pager.Collection("vulnerabilityFindings"), pager.Options{
		PageSize:  pageSize,
		Variables: filter.Variables(),
		Observer:  observer,
	}, sink)
}
