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

// Package testutil provides common test helpers for opslevel-relay
package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
)

// GraphQLRequest is the decoded body of a GraphQL POST.
type GraphQLRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables"`
}

// MockServer wraps httptest.Server and counts the requests it served.
type MockServer struct {
	*httptest.Server
	requests int32

	mu      sync.Mutex
	bodies  []GraphQLRequest
	rawBody [][]byte
	headers []http.Header
}

// Requests returns how many requests reached the server.
func (m *MockServer) Requests() int {
	return int(atomic.LoadInt32(&m.requests))
}

// GraphQLRequests returns the decoded GraphQL bodies in arrival order.
func (m *MockServer) GraphQLRequests() []GraphQLRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]GraphQLRequest(nil), m.bodies...)
}

// Bodies returns the raw request bodies in arrival order.
func (m *MockServer) Bodies() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]byte(nil), m.rawBody...)
}

// Headers returns the request headers in arrival order.
func (m *MockServer) Headers() []http.Header {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]http.Header(nil), m.headers...)
}

// NewMockServer creates a server that records every request and hands it
// to handler together with its 1-based sequence number.
func NewMockServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request, n int)) *MockServer {
	t.Helper()
	m := &MockServer{}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(atomic.AddInt32(&m.requests, 1))
		body, _ := io.ReadAll(r.Body)

		var gr GraphQLRequest
		_ = json.Unmarshal(body, &gr)

		m.mu.Lock()
		m.rawBody = append(m.rawBody, body)
		m.bodies = append(m.bodies, gr)
		m.headers = append(m.headers, r.Header.Clone())
		m.mu.Unlock()

		handler(w, r, n)
	}))
	t.Cleanup(m.Close)
	return m
}

// NewPagedServer answers the n-th request with pages[n-1] and fails the
// test if more requests arrive than pages exist.
func NewPagedServer(t *testing.T, pages ...map[string]interface{}) *MockServer {
	t.Helper()
	return NewMockServer(t, func(w http.ResponseWriter, r *http.Request, n int) {
		if n > len(pages) {
			t.Errorf("unexpected request #%d, only %d pages configured", n, len(pages))
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		WriteJSON(w, pages[n-1])
	})
}

// NewTransientErrorServer fails the first failCount requests with errorCode,
// then answers every request with response.
func NewTransientErrorServer(t *testing.T, failCount, errorCode int, response map[string]interface{}) *MockServer {
	t.Helper()
	return NewMockServer(t, func(w http.ResponseWriter, r *http.Request, n int) {
		if n <= failCount {
			w.WriteHeader(errorCode)
			_, _ = w.Write([]byte(http.StatusText(errorCode)))
			return
		}
		WriteJSON(w, response)
	})
}

// NewStatusServer answers every request with the given status and body.
func NewStatusServer(t *testing.T, status int, body string) *MockServer {
	t.Helper()
	return NewMockServer(t, func(w http.ResponseWriter, r *http.Request, n int) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	})
}

// WriteJSON encodes v as the response body.
func WriteJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// ConnectionPage builds {"data": {<path...>: {"nodes": nodes, "pageInfo": ...}}}.
func ConnectionPage(nodes []map[string]interface{}, hasNextPage bool, endCursor string, path ...string) map[string]interface{} {
	var cursor interface{}
	if endCursor != "" {
		cursor = endCursor
	}
	var inner interface{} = map[string]interface{}{
		"nodes": nodes,
		"pageInfo": map[string]interface{}{
			"hasNextPage": hasNextPage,
			"endCursor":   cursor,
		},
	}
	for i := len(path) - 1; i >= 0; i-- {
		inner = map[string]interface{}{path[i]: inner}
	}
	return map[string]interface{}{"data": inner}
}

// Nodes builds count nodes with ids prefix-<start>...
func Nodes(prefix string, start, count int) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, count)
	for i := start; i < start+count; i++ {
		out = append(out, map[string]interface{}{"id": fmt.Sprintf("%s-%d", prefix, i)})
	}
	return out
}
