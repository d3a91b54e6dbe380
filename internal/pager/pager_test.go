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

package pager

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	relayerrors "github.com/sirseerhq/opslevel-relay/internal/errors"
	"github.com/sirseerhq/opslevel-relay/internal/gql"
	"github.com/sirseerhq/opslevel-relay/internal/transport"
	"github.com/sirseerhq/opslevel-relay/test/testutil"
)

const issuesQuery = `query IssuesTable($first: Int, $after: String) {
  issues: issuesV2(first: $first, after: $after) {
    nodes { id }
    pageInfo { hasNextPage endCursor }
  }
}`

func newClient(server *testutil.MockServer) *gql.Client {
	policy := transport.RetryPolicy{
		MaxAttempts: 3,
		Backoff:     transport.ConstantBackoff(time.Millisecond),
		Retryable:   transport.RetryOnServerError,
	}
	return gql.NewClient(server.URL, transport.NewClient(policy))
}

func TestFetchAll_TwoPages(t *testing.T) {
	server := testutil.NewPagedServer(t,
		testutil.ConnectionPage(testutil.Nodes("issue", 1, 2), true, "cursor-2", "issues"),
		testutil.ConnectionPage(testutil.Nodes("issue", 3, 1), false, "cursor-3", "issues"),
	)

	var pageSizes []int
	nodes, result, err := Collect(context.Background(), newClient(server), issuesQuery, Collection("issues"),
		Options{PageSize: 2})
	require.NoError(t, err)

	for _, req := range server.GraphQLRequests() {
		pageSizes = append(pageSizes, int(req.Variables["first"].(float64)))
	}

	assert.Len(t, nodes, 3)
	assert.Equal(t, 2, server.Requests())
	assert.Equal(t, Result{Pages: 2, Nodes: 3, Exhausted: true}, result)
	assert.True(t, result.Complete())
	assert.Equal(t, []int{2, 2}, pageSizes)
	assert.Equal(t, "issue-1", nodes[0]["id"])
	assert.Equal(t, "issue-3", nodes[2]["id"])
}

func TestFetchAll_SendsCursor(t *testing.T) {
	server := testutil.NewPagedServer(t,
		testutil.ConnectionPage(testutil.Nodes("svc", 1, 1), true, "abc", "account", "services"),
		testutil.ConnectionPage(testutil.Nodes("svc", 2, 1), true, "def", "account", "services"),
		testutil.ConnectionPage(testutil.Nodes("svc", 3, 1), false, "", "account", "services"),
	)

	_, result, err := Collect(context.Background(), newClient(server), "query", Collection("account", "services"),
		Options{PageSize: 1, Variables: map[string]interface{}{"filter": "x"}})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Nodes)

	reqs := server.GraphQLRequests()
	require.Len(t, reqs, 3)
	assert.Nil(t, reqs[0].Variables["after"])
	assert.Equal(t, "abc", reqs[1].Variables["after"])
	assert.Equal(t, "def", reqs[2].Variables["after"])
	for _, r := range reqs {
		assert.Equal(t, "x", r.Variables["filter"])
	}
}

func TestFetchAll_RetriesServerError(t *testing.T) {
	server := testutil.NewTransientErrorServer(t, 1, http.StatusServiceUnavailable,
		testutil.ConnectionPage(testutil.Nodes("issue", 1, 2), false, "", "issues"))

	nodes, result, err := Collect(context.Background(), newClient(server), issuesQuery, Collection("issues"),
		Options{PageSize: 50})
	require.NoError(t, err)

	assert.Len(t, nodes, 2)
	assert.Equal(t, 2, server.Requests())
	assert.True(t, result.Complete())
}

func TestFetchAll_DegradesWhenRetriesExhausted(t *testing.T) {
	server := testutil.NewStatusServer(t, http.StatusBadGateway, "bad gateway")

	nodes, result, err := Collect(context.Background(), newClient(server), issuesQuery, Collection("issues"),
		Options{PageSize: 50})
	require.NoError(t, err)

	assert.Empty(t, nodes)
	assert.Equal(t, 3, server.Requests())
	assert.False(t, result.Exhausted)
	assert.False(t, result.Complete())
}

func TestFetchAll_AuthenticationFailureAborts(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"401 with graphql errors", http.StatusUnauthorized, `{"errors":[{"message":"Unauthorized: invalid API token"}]}`},
		{"403 plain text", http.StatusForbidden, "Forbidden"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := testutil.NewStatusServer(t, tt.status, tt.body)

			nodes, result, err := Collect(context.Background(), newClient(server), issuesQuery, Collection("issues"),
				Options{PageSize: 50})
			require.Error(t, err)

			assert.ErrorIs(t, err, relayerrors.ErrAuthentication)
			assert.Empty(t, nodes)
			assert.False(t, result.Exhausted)
			assert.Equal(t, 1, server.Requests())
		})
	}
}

func TestFetchAll_TokenRevokedMidRun(t *testing.T) {
	first := testutil.ConnectionPage(testutil.Nodes("svc", 1, 2), true, "c1", "account", "services")
	server := testutil.NewMockServer(t, func(w http.ResponseWriter, r *http.Request, n int) {
		if n == 1 {
			testutil.WriteJSON(w, first)
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
		testutil.WriteJSON(w, map[string]interface{}{
			"errors": []interface{}{map[string]interface{}{"message": "Unauthorized"}},
		})
	})

	var delivered int
	result, err := FetchAll(context.Background(), newClient(server), "query", Collection("account", "services"),
		Options{PageSize: 2}, func(_ context.Context, page Page) error {
			delivered += len(page.Nodes)
			return nil
		})

	require.Error(t, err)
	assert.ErrorIs(t, err, relayerrors.ErrAuthentication)
	assert.Equal(t, 2, delivered)
	assert.Equal(t, Result{Pages: 1, Nodes: 2}, result)
}

func TestFetchAll_MalformedResponse(t *testing.T) {
	tests := []struct {
		name  string
		pages []map[string]interface{}
		want  Result
	}{
		{
			name:  "missing data",
			pages: []map[string]interface{}{{"message": "Unauthorized"}},
			want:  Result{},
		},
		{
			name: "graphql errors",
			pages: []map[string]interface{}{{
				"errors": []interface{}{map[string]interface{}{"message": "Resource not found"}},
			}},
			want: Result{},
		},
		{
			name: "collection missing on second page",
			pages: []map[string]interface{}{
				testutil.ConnectionPage(testutil.Nodes("issue", 1, 2), true, "c1", "issues"),
				{"data": map[string]interface{}{"somethingElse": true}},
			},
			want: Result{Pages: 1, Nodes: 2},
		},
		{
			name: "no progress in cursor",
			pages: []map[string]interface{}{
				testutil.ConnectionPage(testutil.Nodes("issue", 1, 1), true, "", "issues"),
			},
			want: Result{Pages: 1, Nodes: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := testutil.NewPagedServer(t, tt.pages...)
			_, result, err := Collect(context.Background(), newClient(server), issuesQuery, Collection("issues"),
				Options{PageSize: 2})
			require.NoError(t, err)
			assert.Equal(t, tt.want, result)
			assert.Equal(t, len(tt.pages), server.Requests())
		})
	}
}

type countingObserver struct {
	pages, nodes, delivered, failed int
}

func (o *countingObserver) ObservePage(n int) { o.pages++; o.nodes += n }

func (o *countingObserver) ObserveDelivery(err error) {
	if err != nil {
		o.failed++
		return
	}
	o.delivered++
}

func TestFetchAll_SinkErrorsAreCounted(t *testing.T) {
	server := testutil.NewPagedServer(t,
		testutil.ConnectionPage(testutil.Nodes("issue", 1, 2), true, "c1", "issues"),
		testutil.ConnectionPage(testutil.Nodes("issue", 3, 2), true, "c2", "issues"),
		testutil.ConnectionPage(testutil.Nodes("issue", 5, 1), false, "c3", "issues"),
	)

	obs := &countingObserver{}
	var delivered []int
	result, err := FetchAll(context.Background(), newClient(server), issuesQuery, Collection("issues"),
		Options{PageSize: 2, Observer: obs},
		func(_ context.Context, p Page) error {
			if p.Number == 2 {
				return errors.New("webhook returned 500")
			}
			delivered = append(delivered, p.Number)
			return nil
		})
	require.NoError(t, err)

	assert.Equal(t, []int{1, 3}, delivered)
	assert.Equal(t, 1, result.DeliveryErrors)
	assert.True(t, result.Exhausted)
	assert.False(t, result.Complete())
	assert.Equal(t, &countingObserver{pages: 3, nodes: 5, delivered: 2, failed: 1}, obs)
}

func TestFetchAll_ContextCancelled(t *testing.T) {
	server := testutil.NewPagedServer(t,
		testutil.ConnectionPage(testutil.Nodes("issue", 1, 2), true, "c1", "issues"),
	)

	ctx, cancel := context.WithCancel(context.Background())
	_, err := FetchAll(ctx, newClient(server), issuesQuery, Collection("issues"), Options{},
		func(context.Context, Page) error {
			cancel()
			return nil
		})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, server.Requests())
}

func TestFetchAll_OmitsPageSizeWhenZero(t *testing.T) {
	server := testutil.NewPagedServer(t,
		testutil.ConnectionPage(testutil.Nodes("team", 1, 1), false, "", "account", "teams"),
	)

	_, _, err := Collect(context.Background(), newClient(server), "query", Collection("account", "teams"), Options{})
	require.NoError(t, err)

	_, sent := server.GraphQLRequests()[0].Variables["first"]
	assert.False(t, sent)
}
