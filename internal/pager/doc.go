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

// Package pager implements the fetch-all-pages loop shared by every
// integration.
//
// A fetch is described by a Querier (anything that runs a GraphQL document
// and returns its data object), a fixed query string, an Extractor that
// locates the nodes and pageInfo of the collection, and an optional Sink
// that receives each page as soon as it arrives:
//
//	res, err := pager.FetchAll(ctx, client, issuesQuery, pager.Collection("issues"),
//	    pager.Options{PageSize: 50, Variables: vars},
//	    func(ctx context.Context, p pager.Page) error {
//	        return webhook.Send(ctx, p.Nodes)
//	    })
//
// The loop never raises for upstream trouble. A failed query or a response
// of the wrong shape ends the fetch with Result.Exhausted left false, so
// callers that persist progress (the watermark) can tell a partial run from
// a complete one.
package pager
