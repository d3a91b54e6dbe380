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

// Package gql runs raw GraphQL documents. Vendor queries are kept as the
// literal strings each API documents, so this client takes a query string
// and a variables map instead of a typed struct.
package gql

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/machinebox/graphql"

	"github.com/sirseerhq/opslevel-relay/internal/apierror"
	relayerrors "github.com/sirseerhq/opslevel-relay/internal/errors"
)

// Client posts raw GraphQL documents to a single endpoint.
type Client struct {
	client   *graphql.Client
	endpoint string
	header   http.Header
}

// NewClient creates a client for endpoint. Authentication, retries and
// size limits belong to httpClient's transport.
func NewClient(endpoint string, httpClient *http.Client) *Client {
	return &Client{
		client:   graphql.NewClient(endpoint, graphql.WithHTTPClient(GuardAuth(httpClient))),
		endpoint: endpoint,
		header:   make(http.Header),
	}
}

// Endpoint returns the URL queries are sent to.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// SetHeader adds a header to every request issued by this client.
func (c *Client) SetHeader(key, value string) {
	c.header.Set(key, value)
}

// Query runs query and returns the decoded "data" object. A response without
// "data" is reported as ErrMalformedResponse.
func (c *Client) Query(ctx context.Context, query string, variables map[string]interface{}) (map[string]interface{}, error) {
	var data map[string]interface{}
	if err := c.Run(ctx, query, variables, &data); err != nil {
		return nil, err
	}
	if data == nil {
		return nil, fmt.Errorf("response from %s has no data: %w", c.endpoint, relayerrors.ErrMalformedResponse)
	}
	return data, nil
}

// Run executes query and decodes "data" into out. Failures are classified,
// so a rejected token wraps ErrAuthentication.
func (c *Client) Run(ctx context.Context, query string, variables map[string]interface{}, out interface{}) error {
	req := graphql.NewRequest(query)
	for k, v := range variables {
		req.Var(k, v)
	}
	for k, values := range c.header {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}

	if err := c.client.Run(ctx, req, out); err != nil {
		return fmt.Errorf("graphql request to %s failed: %w", c.endpoint, apierror.Classify(err))
	}
	return nil
}

// GuardAuth returns a copy of httpClient whose 401 and 403 answers come back
// as errors wrapping ErrAuthentication. GraphQL clients otherwise only see
// the status when the body fails to decode. A nil client means
// http.DefaultClient.
func GuardAuth(httpClient *http.Client) *http.Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	guarded := *httpClient
	base := guarded.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	if _, ok := base.(authGuard); !ok {
		guarded.Transport = authGuard{base: base}
	}
	return &guarded
}

type authGuard struct {
	base http.RoundTripper
}

func (g authGuard) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := g.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized && resp.StatusCode != http.StatusForbidden {
		return resp, nil
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return nil, apierror.NewStatusError(req.Method, req.URL.String(), resp.StatusCode, body)
}
