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

package cloudzero

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/sirseerhq/opslevel-relay/internal/transport"
)

const (
	DefaultAPIURL = "https://api.cloudzero.com"
	costsPath     = "/v2/billing/costs"

	// TagDimension is the grouping every cost request asks for.
	TagDimension = "Tag:Name"
	// NullPartition marks costs whose resources carry no Name tag.
	NullPartition = "__NULL_PARTITION_VALUE__"
)

// TimeLayout is the ISO 8601 form CloudZero accepts for date bounds.
const TimeLayout = "2006-01-02T15:04:05Z"

// Client talks to the CloudZero API with a raw API key.
type Client struct {
	rest *resty.Client
}

// NewClient creates a client for baseURL (DefaultAPIURL when empty).
func NewClient(baseURL, apiKey string, policy transport.RetryPolicy, opts ...transport.Option) *Client {
	if baseURL == "" {
		baseURL = DefaultAPIURL
	}
	opts = append([]transport.Option{
		transport.WithCredentials(transport.RawToken(apiKey)),
		transport.WithHeader("Accept", "application/json"),
	}, opts...)
	return &Client{rest: transport.NewRESTClient(baseURL, policy, opts...)}
}

// CostsRequest selects a window of billing data.
type CostsRequest struct {
	Start       time.Time
	End         time.Time
	Granularity string
	CostType    string
}

func (r CostsRequest) query() url.Values {
	granularity := r.Granularity
	if granularity == "" {
		granularity = "daily"
	}
	costType := r.CostType
	if costType == "" {
		costType = "real_cost"
	}
	v := url.Values{}
	v.Set("start_date", r.Start.UTC().Format(TimeLayout))
	v.Set("end_date", r.End.UTC().Format(TimeLayout))
	v.Set("granularity", granularity)
	v.Set("cost_type", costType)
	v.Add("group_by", TagDimension)
	return v
}

// Cost is one line of the costs response.
type Cost struct {
	Tag       string  `json:"Tag:Name"`
	Cost      float64 `json:"cost"`
	UsageDate string  `json:"usage_date"`
}

type costsResponse struct {
	Costs []Cost `json:"costs"`
}

// BillingCosts fetches costs grouped by the Name tag.
func (c *Client) BillingCosts(ctx context.Context, r CostsRequest) ([]Cost, error) {
	if r.End.Before(r.Start) {
		return nil, fmt.Errorf("end date %s is before start date %s",
			r.End.Format(TimeLayout), r.Start.Format(TimeLayout))
	}

	var out costsResponse
	resp, err := c.rest.R().
		SetContext(ctx).
		SetQueryParamsFromValues(r.query()).
		SetResult(&out).
		ForceContentType("application/json").
		Get(costsPath)
	if err := transport.CheckResponse(resp, err, transport.StatusIn(http.StatusOK)); err != nil {
		return nil, fmt.Errorf("failed to fetch costs: %w", err)
	}
	return out.Costs, nil
}

// TagCost is the total cost attributed to one Name tag.
type TagCost struct {
	Tag        string   `json:"Tag_Name"`
	Cost       float64  `json:"Cost"`
	UsageDates []string `json:"Usage_Dates"`
}

// GroupByTag sums costs per tag, in order of first appearance, ignoring
// the null partition.
func GroupByTag(costs []Cost) []TagCost {
	index := make(map[string]int)
	var out []TagCost
	for _, c := range costs {
		if c.Tag == NullPartition || c.Tag == "" {
			continue
		}
		i, ok := index[c.Tag]
		if !ok {
			i = len(out)
			index[c.Tag] = i
			out = append(out, TagCost{Tag: c.Tag})
		}
		out[i].Cost += c.Cost
		out[i].UsageDates = append(out[i].UsageDates, c.UsageDate)
	}
	return out
}
