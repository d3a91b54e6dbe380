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
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/google/go-github/v73/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sirseerhq/opslevel-relay/internal/transport"
	"github.com/sirseerhq/opslevel-relay/test/testutil"
)

func alertJSON(number int, severity, state, pkg, patched string, ids ...string) map[string]interface{} {
	identifiers := []interface{}{map[string]interface{}{"type": "GHSA", "value": fmt.Sprintf("GHSA-%d", number)}}
	for _, id := range ids {
		identifiers = append(identifiers, map[string]interface{}{"type": "CVE", "value": id})
	}
	vuln := map[string]interface{}{"severity": severity}
	if patched != "" {
		vuln["first_patched_version"] = map[string]interface{}{"identifier": patched}
	}
	return map[string]interface{}{
		"number":     number,
		"state":      state,
		"dependency": map[string]interface{}{"package": map[string]interface{}{"ecosystem": "npm", "name": pkg}},
		"security_advisory": map[string]interface{}{
			"summary":     pkg + " is vulnerable",
			"severity":    severity,
			"identifiers": identifiers,
		},
		"security_vulnerability": vuln,
	}
}

func decodeAlerts(t *testing.T, v interface{}) []*github.DependabotAlert {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	var alerts []*github.DependabotAlert
	require.NoError(t, json.Unmarshal(data, &alerts))
	return alerts
}

func TestListAlerts_FollowsCursor(t *testing.T) {
	var srvURL string
	srv := testutil.NewMockServer(t, func(w http.ResponseWriter, r *http.Request, n int) {
		assert.Equal(t, "/repos/acme/shop/dependabot/alerts", r.URL.Path)
		if n == 1 {
			w.Header().Set("Link", fmt.Sprintf(`<%s/repos/acme/shop/dependabot/alerts?per_page=100&after=cur1>; rel="next"`, srvURL))
			testutil.WriteJSON(w, []interface{}{
				alertJSON(1, "high", "open", "lodash", "4.17.21", "CVE-2021-23337"),
				alertJSON(2, "low", "fixed", "minimist", "1.2.6"),
			})
			return
		}
		testutil.WriteJSON(w, []interface{}{alertJSON(3, "high", "dismissed", "axios", "")})
	})
	srvURL = srv.URL

	c, err := NewClient(srv.URL, "gh-token", transport.RetryPolicy{})
	require.NoError(t, err)

	alerts, err := c.ListAlerts(context.Background(), "acme", "shop")
	require.NoError(t, err)
	assert.Len(t, alerts, 3)
	assert.Equal(t, 2, srv.Requests())

	headers := srv.Headers()
	assert.Equal(t, "Bearer gh-token", headers[0].Get("Authorization"))
	assert.Equal(t, "Bearer gh-token", headers[1].Get("Authorization"))
}

func TestListAlerts_Error(t *testing.T) {
	srv := testutil.NewStatusServer(t, http.StatusNotFound, `{"message":"Not Found"}`)
	c, err := NewClient(srv.URL, "gh-token", transport.RetryPolicy{})
	require.NoError(t, err)

	_, err = c.ListAlerts(context.Background(), "acme", "missing")
	assert.ErrorContains(t, err, "acme/missing")
}

func TestGroupBySeverity(t *testing.T) {
	alerts := decodeAlerts(t, []interface{}{
		alertJSON(1, "high", "open", "lodash", "4.17.21", "CVE-2021-23337"),
		alertJSON(2, "high", "fixed", "axios", "", "CVE-2023-1", "CVE-2023-2"),
		alertJSON(3, "low", "dismissed", "minimist", "1.2.6"),
		alertJSON(4, "low", "auto_dismissed", "qs", "6.0.0"),
	})

	groups := GroupBySeverity(alerts)
	require.Len(t, groups, 2)

	high := groups["high"]
	assert.Equal(t, 1, high.Open)
	assert.Equal(t, 1, high.Closed)
	assert.Equal(t, Alert{
		Dependency:    "lodash",
		Vulnerability: "lodash is vulnerable",
		CVEs:          []string{"CVE-2021-23337"},
		State:         "open",
		Fix:           "4.17.21",
	}, high.Alerts[0])
	assert.Equal(t, []string{"CVE-2023-1", "CVE-2023-2"}, high.Alerts[1].CVEs)
	assert.Equal(t, NoFix, high.Alerts[1].Fix)

	low := groups["low"]
	assert.Equal(t, 0, low.Open)
	assert.Equal(t, 1, low.Closed)
	assert.Len(t, low.Alerts, 2)
	assert.Equal(t, []string{}, low.Alerts[0].CVEs)
}

func TestPayload(t *testing.T) {
	groups := GroupBySeverity(decodeAlerts(t, []interface{}{alertJSON(1, "critical", "open", "log4j", "2.17.1", "CVE-2021-44228")}))

	data, err := json.Marshal(Payload("shop", groups))
	require.NoError(t, err)
	assert.JSONEq(t, `{"dependabot_alerts": {
		"repository": "shop",
		"critical": {"open": 1, "closed": 0, "alerts": [{
			"dependency": "log4j",
			"vulnerability": "log4j is vulnerable",
			"cves": ["CVE-2021-44228"],
			"state": "open",
			"fix": "2.17.1"
		}]}
	}}`, string(data))
}
