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

package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sirseerhq/opslevel-relay/internal/apierror"
	relayerrors "github.com/sirseerhq/opslevel-relay/internal/errors"
)

func TestRESTClient_RetriesThroughTransport(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "tok", r.Header.Get("Authorization"))
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"name":"checkout"}`))
	}))
	defer server.Close()

	client := NewRESTClient(server.URL+"/", fastPolicy(3), WithCredentials(RawToken("tok")))
	var out struct {
		Name string `json:"name"`
	}
	resp, err := client.R().
		SetContext(context.Background()).
		SetResult(&out).
		ForceContentType("application/json").
		Get("/things")

	require.NoError(t, CheckResponse(resp, err, StatusIn(http.StatusOK)))
	assert.Equal(t, "checkout", out.Name)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestCheckResponse(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{name: "rejected credentials", status: http.StatusUnauthorized, body: "nope", want: relayerrors.ErrAuthentication},
		{name: "missing resource", status: http.StatusNotFound, body: "{}", want: relayerrors.ErrNotFound},
		{name: "body does not decode", status: http.StatusOK, body: "<html>", want: relayerrors.ErrMalformedResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			var out map[string]interface{}
			resp, err := NewRESTClient(server.URL, fastPolicy(1)).R().
				SetResult(&out).
				ForceContentType("application/json").
				SetQueryParam("secret", "s3cret").
				Get("/things")

			err = CheckResponse(resp, err, StatusIn(http.StatusOK))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)

			var statusErr *apierror.StatusError
			if errors.As(err, &statusErr) {
				assert.Equal(t, tt.status, statusErr.StatusCode)
				assert.NotContains(t, statusErr.URL, "s3cret")
			}
		})
	}
}

func TestCheckResponse_TransportFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	target := server.URL
	server.Close()

	resp, err := NewRESTClient(target, fastPolicy(2)).R().Get("/things")
	err = CheckResponse(resp, err, Success)

	require.Error(t, err)
	assert.ErrorIs(t, err, relayerrors.ErrNetworkFailure)
}

func TestStatusIn(t *testing.T) {
	accept := StatusIn(http.StatusOK, http.StatusCreated)
	assert.True(t, accept(http.StatusCreated))
	assert.False(t, accept(http.StatusAccepted))
	assert.True(t, Success(http.StatusAccepted))
	assert.False(t, Success(http.StatusMultipleChoices))
}
