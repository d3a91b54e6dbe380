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
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"sort"
	"strings"
)

const (
	SignatureHeader = "X-OpsLevel-Signature"
	TimingHeader    = "X-OpsLevel-Timing"
	signaturePrefix = "sha256="
)

// ActionHeaders are signed whenever the request carries them.
var ActionHeaders = []string{"Content-Type", "From", "Authorization", "Accept"}

var (
	ErrMissingSignature = errors.New("missing " + SignatureHeader + " header")
	ErrMissingTiming    = errors.New("missing " + TimingHeader + " header")
)

// CanonicalContent builds the string OpsLevel signs. extra names further
// headers to include when present.
func CanonicalContent(header http.Header, body []byte, extra ...string) (string, error) {
	if header.Get(TimingHeader) == "" {
		return "", ErrMissingTiming
	}

	seen := map[string]bool{http.CanonicalHeaderKey(TimingHeader): true}
	names := []string{TimingHeader}
	for _, name := range append(append([]string{}, ActionHeaders...), extra...) {
		key := http.CanonicalHeaderKey(name)
		if seen[key] || header.Get(name) == "" {
			continue
		}
		seen[key] = true
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+":"+header.Get(name))
	}
	return strings.Join(parts, ",") + "+" + string(body), nil
}

// Sign returns "sha256=<hex hmac>" of content under secret.
func Sign(secret, content string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(content))
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature matches content, in constant time. The
// "sha256=" prefix is optional.
func Verify(secret, content, signature string) bool {
	if !strings.HasPrefix(signature, signaturePrefix) {
		signature = signaturePrefix + signature
	}
	return hmac.Equal([]byte(Sign(secret, content)), []byte(signature))
}

// VerifyRequest checks a request's signature header against its headers
// and body.
func VerifyRequest(secret string, header http.Header, body []byte, extra ...string) (bool, error) {
	signature := header.Get(SignatureHeader)
	if signature == "" {
		return false, ErrMissingSignature
	}
	content, err := CanonicalContent(header, body, extra...)
	if err != nil {
		return false, err
	}
	return Verify(secret, content, signature), nil
}
