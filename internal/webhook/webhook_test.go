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

package webhook

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecret = "test-signing-secret"
	// HMAC-SHA256 of `Content-Type:application/json,X-OpsLevel-Timing:123+{"a":1}`.
	referenceSignature = "sha256=4c1783e52c4c765fb0002e774bb6da90b9818dce0413e7ece92d506fb44755d1"
)

func signedHeader() http.Header {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set(TimingHeader, "123")
	return h
}

func TestCanonicalContent(t *testing.T) {
	content, err := CanonicalContent(signedHeader(), []byte(`{"a":1}`))
	require.NoError(t, err)
	assert.Equal(t, `Content-Type:application/json,X-OpsLevel-Timing:123+{"a":1}`, content)

	h := signedHeader()
	h.Set("Accept", "*/*")
	h.Set("X-Custom", "v")
	h.Set("X-Ignored", "nope")
	content, err = CanonicalContent(h, []byte(`{}`), "x-custom")
	require.NoError(t, err)
	assert.Equal(t, `Accept:*/*,Content-Type:application/json,X-OpsLevel-Timing:123,x-custom:v+{}`, content)

	_, err = CanonicalContent(http.Header{}, nil)
	assert.ErrorIs(t, err, ErrMissingTiming)
}

func TestSign_ReferenceDigest(t *testing.T) {
	content, err := CanonicalContent(signedHeader(), []byte(`{"a":1}`))
	require.NoError(t, err)
	assert.Equal(t, referenceSignature, Sign(testSecret, content))
	assert.True(t, Verify(testSecret, content, referenceSignature))
	assert.True(t, Verify(testSecret, content, referenceSignature[len("sha256="):]))
}

func TestVerify_MutatedBodyFails(t *testing.T) {
	content, err := CanonicalContent(signedHeader(), []byte(`{"a":2}`))
	require.NoError(t, err)
	assert.False(t, Verify(testSecret, content, referenceSignature))
	assert.Equal(t, "sha256=a2b722fc64b008acdc069db553b243cd2514c7b45e04403e6ea72fddbfa82a54", Sign(testSecret, content))
	assert.False(t, Verify("other-secret", content, Sign(testSecret, content)))
}

func newTestServer(t *testing.T, onEvent Handler) http.Handler {
	t.Helper()
	return NewServer(zerolog.New(zerolog.NewTestWriter(t)), Config{Secret: testSecret, OnEvent: onEvent}).Handler()
}

func post(h http.Handler, header http.Header, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewBufferString(body))
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestServer_Responses(t *testing.T) {
	var received []byte
	h := newTestServer(t, func(ctx context.Context, header http.Header, body []byte) error {
		received = body
		return nil
	})

	t.Run("valid signature", func(t *testing.T) {
		header := signedHeader()
		header.Set(SignatureHeader, referenceSignature)
		rec := post(h, header, `{"a":1}`)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
		assert.Equal(t, `{"a":1}`, string(received))
	})

	t.Run("mismatch", func(t *testing.T) {
		header := signedHeader()
		header.Set(SignatureHeader, referenceSignature)
		rec := post(h, header, `{"a":2}`)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("missing signature", func(t *testing.T) {
		rec := post(h, signedHeader(), `{"a":1}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), SignatureHeader)
	})

	t.Run("missing timing", func(t *testing.T) {
		header := http.Header{}
		header.Set(SignatureHeader, referenceSignature)
		rec := post(h, header, `{"a":1}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("wrong method", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/webhook", nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}

func TestServer_HandlerFailure(t *testing.T) {
	h := newTestServer(t, func(ctx context.Context, header http.Header, body []byte) error {
		return errors.New("downstream unavailable")
	})
	header := signedHeader()
	header.Set(SignatureHeader, referenceSignature)
	assert.Equal(t, http.StatusInternalServerError, post(h, header, `{"a":1}`).Code)
}

func TestServer_RecoversFromPanic(t *testing.T) {
	h := newTestServer(t, func(ctx context.Context, header http.Header, body []byte) error {
		panic("boom")
	})
	header := signedHeader()
	header.Set(SignatureHeader, referenceSignature)
	assert.Equal(t, http.StatusInternalServerError, post(h, header, `{"a":1}`).Code)
}

func TestServer_RunStopsOnCancel(t *testing.T) {
	s := NewServer(zerolog.Nop(), Config{Addr: "127.0.0.1:0", Secret: testSecret})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()
	assert.NoError(t, <-done)
}
