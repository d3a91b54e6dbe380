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
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	relayerrors "github.com/sirseerhq/opslevel-relay/internal/errors"
	"github.com/sirseerhq/opslevel-relay/internal/transport"
)

// Audiences accepted by the two Wiz identity providers.
const (
	AudienceAuth0   = "beyond-api"
	AudienceCognito = "wiz-api"
)

var auth0TokenURLs = map[string]bool{
	"https://auth.wiz.io/oauth/token":       true,
	"https://auth0.gov.wiz.io/oauth/token":  true,
	"https://auth0.test.wiz.io/oauth/token": true,
	"https://auth0.demo.wiz.io/oauth/token": true,
}

var cognitoTokenURLs = map[string]bool{
	"https://auth.app.wiz.io/oauth/token":  true,
	"https://auth.gov.wiz.io/oauth/token":  true,
	"https://auth.test.wiz.io/oauth/token": true,
	"https://auth.demo.wiz.io/oauth/token": true,
}

// AudienceForTokenURL returns the audience for a known Wiz token URL.
// Matching is exact.
func AudienceForTokenURL(tokenURL string) (string, error) {
	switch {
	case auth0TokenURLs[tokenURL]:
		return AudienceAuth0, nil
	case cognitoTokenURLs[tokenURL]:
		return AudienceCognito, nil
	}
	return "", fmt.Errorf("%w: %q is not a Wiz Auth0 or Cognito token endpoint", relayerrors.ErrInvalidTokenURL, tokenURL)
}

// credentialsConfig builds the client-credentials grant for c.
func (c *Client) credentialsConfig() *clientcredentials.Config {
	return &clientcredentials.Config{
		ClientID:       c.cfg.ClientID,
		ClientSecret:   c.cfg.ClientSecret,
		TokenURL:       c.cfg.TokenURL,
		EndpointParams: url.Values{"audience": {c.audience}},
		AuthStyle:      oauth2.AuthStyleInParams,
	}
}

// Authenticate exchanges the client credentials for a bearer token and
// prepares the GraphQL client. Failures wrap ErrAuthentication and are
// not retried.
func (c *Client) Authenticate(ctx context.Context) error {
	// Token requests go out once; any status is handed to oauth2 as is.
	tokenHTTP := &http.Client{Transport: transport.New(nil, transport.RetryPolicy{
		MaxAttempts: 1,
		Retryable:   func(int) bool { return false },
	}, c.opts...)}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, tokenHTTP)

	cc := c.credentialsConfig()
	tok, err := cc.Token(ctx)
	if err != nil {
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) && rerr.Response != nil {
			return fmt.Errorf("%w: wiz token endpoint returned %d: %s", relayerrors.ErrAuthentication,
				rerr.Response.StatusCode, truncate(string(rerr.Body), 200))
		}
		return fmt.Errorf("%w: could not retrieve token from wiz: %w", relayerrors.ErrAuthentication, err)
	}

	c.source = oauth2.ReuseTokenSource(tok, cc.TokenSource(ctx))
	c.connect()
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
