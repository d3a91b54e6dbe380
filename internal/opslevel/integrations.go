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
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/sirseerhq/opslevel-relay/internal/pager"
	"github.com/sirseerhq/opslevel-relay/internal/transport"
)

// Default intake endpoints.
const (
	DefaultWebhookBaseURL = "https://app.opslevel.com/integrations/custom/webhook"
	DefaultCustomEventURL = "https://upload.opslevel.com/integrations/custom_event/"
	RoutingIDHeader       = "X-OpsLevel-Routing-ID"
)

// WebhookURL builds the custom integration URL for uid and externalKind.
func WebhookURL(baseURL, uid, externalKind string) string {
	if baseURL == "" {
		baseURL = DefaultWebhookBaseURL
	}
	return fmt.Sprintf("%s/%s?external_kind=%s",
		strings.TrimSuffix(baseURL, "/"), url.PathEscape(uid), url.QueryEscape(externalKind))
}

// WebhookSender posts batches of raw records to a custom integration.
type WebhookSender struct {
	url  string
	rest *resty.Client
}

// NewWebhookSender targets the webhook at url.
func NewWebhookSender(url string, policy transport.RetryPolicy, opts ...transport.Option) *WebhookSender {
	return &WebhookSender{
		url:  url,
		rest: transport.NewRESTClient("", policy, opts...),
	}
}

// Send posts records as one JSON array. Any 2xx status is success.
func (s *WebhookSender) Send(ctx context.Context, records interface{}) error {
	resp, err := postJSON(ctx, s.rest).SetBody(records).Post(s.url)
	return transport.CheckResponse(resp, err, transport.Success)
}

// Sink adapts Send to pager.Sink, skipping empty pages.
func (s *WebhookSender) Sink() pager.Sink {
	return func(ctx context.Context, page pager.Page) error {
		if len(page.Nodes) == 0 {
			return nil
		}
		return s.Send(ctx, page.Nodes)
	}
}

// CustomEventSender posts payloads to the custom event intake.
type CustomEventSender struct {
	url       string
	routingID string
	rest      *resty.Client
}

// NewCustomEventSender targets the custom event endpoint with routingID.
func NewCustomEventSender(url, routingID string, policy transport.RetryPolicy, opts ...transport.Option) *CustomEventSender {
	if url == "" {
		url = DefaultCustomEventURL
	}
	return &CustomEventSender{
		url:       url,
		routingID: routingID,
		rest:      transport.NewRESTClient("", policy, opts...),
	}
}

// Send posts payload. Only 202 Accepted counts as success.
func (s *CustomEventSender) Send(ctx context.Context, payload interface{}) error {
	resp, err := postJSON(ctx, s.rest).
		SetHeader(RoutingIDHeader, s.routingID).
		SetBody(payload).
		Post(s.url)
	return transport.CheckResponse(resp, err, transport.StatusIn(http.StatusAccepted))
}

func postJSON(ctx context.Context, rest *resty.Client) *resty.Request {
	return rest.R().SetContext(ctx).SetHeader("Content-Type", "application/json")
}
