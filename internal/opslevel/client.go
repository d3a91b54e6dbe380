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

	"github.com/shurcooL/graphql"

	"github.com/sirseerhq/opslevel-relay/internal/gql"
	"github.com/sirseerhq/opslevel-relay/internal/pager"
	"github.com/sirseerhq/opslevel-relay/internal/transport"
)

// DefaultAPIURL is the public OpsLevel GraphQL endpoint.
const DefaultAPIURL = "https://app.opslevel.com/graphql"

// VisibilityHeader exposes fields outside the public schema, such as
// campaign reports.
const VisibilityHeader = "graphql-visibility"

// Client is an authenticated OpsLevel GraphQL client.
type Client struct {
	raw      *gql.Client
	internal *gql.Client
	typed    *graphql.Client
}

// NewClient builds a client for apiURL that sends token as a bearer token.
func NewClient(apiURL, token string, policy transport.RetryPolicy, opts ...transport.Option) *Client {
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	opts = append([]transport.Option{transport.WithCredentials(transport.BearerToken(token))}, opts...)
	httpClient := gql.GuardAuth(transport.NewClient(policy, opts...))

	internal := gql.NewClient(apiURL, httpClient)
	internal.SetHeader(VisibilityHeader, "internal")

	return &Client{
		raw:      gql.NewClient(apiURL, httpClient),
		internal: internal,
		typed:    graphql.NewClient(apiURL, httpClient),
	}
}

// Query runs a raw document against the public schema.
func (c *Client) Query(ctx context.Context, query string, variables map[string]interface{}) (map[string]interface{}, error) {
	return c.raw.Query(ctx, query, variables)
}

// Internal returns a querier that sends the internal visibility header.
func (c *Client) Internal() pager.Querier {
	return c.internal
}
