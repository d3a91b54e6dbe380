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
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/sirseerhq/opslevel-relay/internal/apierror"
	relayerrors "github.com/sirseerhq/opslevel-relay/internal/errors"
	"github.com/sirseerhq/opslevel-relay/internal/record"
)

const (
	// DefaultPageSizeVar is the variable carrying the page size.
	DefaultPageSizeVar = "first"
	// DefaultCursorVar is the variable carrying the cursor.
	DefaultCursorVar = "after"
)

// Querier runs a raw GraphQL document and returns its "data" object.
type Querier interface {
	Query(ctx context.Context, query string, variables map[string]interface{}) (map[string]interface{}, error)
}

// Page is one page of a cursor-paginated collection.
type Page struct {
	// Number is the 1-based index of the page within the run.
	Number      int
	Nodes       []record.Node
	HasNextPage bool
	EndCursor   string
}

// Extractor picks the page out of a response's data object.
type Extractor func(data map[string]interface{}) (Page, error)

// Sink receives each page as soon as it is fetched.
type Sink func(ctx context.Context, page Page) error

// Observer is notified of pages and deliveries, typically a run tracker.
type Observer interface {
	ObservePage(nodes int)
	ObserveDelivery(err error)
}

// Options configure a fetch.
type Options struct {
	// PageSize is sent as PageSizeVar. Zero omits the variable and lets
	// the server pick.
	PageSize    int
	PageSizeVar string
	CursorVar   string
	// Variables are sent unchanged with every page.
	Variables map[string]interface{}
	Observer  Observer
}

// Result summarizes a fetch.
type Result struct {
	Pages int
	Nodes int
	// Exhausted is true when the last page reported hasNextPage=false.
	Exhausted bool
	// DeliveryErrors counts pages the sink rejected.
	DeliveryErrors int
}

// Complete reports whether every page was fetched and delivered.
func (r Result) Complete() bool {
	return r.Exhausted && r.DeliveryErrors == 0
}

// Collection extracts data.<path>.nodes and data.<path>.pageInfo.
func Collection(path ...string) Extractor {
	return func(data map[string]interface{}) (Page, error) {
		conn := record.Map(data, path...)
		if conn == nil {
			return Page{}, fmt.Errorf("collection %q missing from response: %w",
				strings.Join(path, "."), relayerrors.ErrMalformedResponse)
		}
		pageInfo := record.Map(conn, "pageInfo")
		if pageInfo == nil {
			return Page{}, fmt.Errorf("collection %q has no pageInfo: %w",
				strings.Join(path, "."), relayerrors.ErrMalformedResponse)
		}
		return Page{
			Nodes:       record.Nodes(conn, "nodes"),
			HasNextPage: record.Bool(pageInfo, "hasNextPage"),
			EndCursor:   record.StringOr(pageInfo, "", "endCursor"),
		}, nil
	}
}

// FetchAll pages through a collection, handing every page to sink.
//
// Query failures (after the transport's retries) and malformed responses
// end the loop early without an error: the result simply is not
// Exhausted. Sink failures are logged and counted, and the loop moves on.
// Rejected credentials and context cancellation are returned as errors.
func FetchAll(ctx context.Context, q Querier, query string, extract Extractor, opts Options, sink Sink) (Result, error) {
	logger := zerolog.Ctx(ctx)
	pageSizeVar := opts.PageSizeVar
	if pageSizeVar == "" {
		pageSizeVar = DefaultPageSizeVar
	}
	cursorVar := opts.CursorVar
	if cursorVar == "" {
		cursorVar = DefaultCursorVar
	}

	var (
		result  Result
		cursor  string
		hasMore = true
	)

	for hasMore {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		variables := make(map[string]interface{}, len(opts.Variables)+2)
		for k, v := range opts.Variables {
			variables[k] = v
		}
		if opts.PageSize > 0 {
			variables[pageSizeVar] = opts.PageSize
		}
		if cursor == "" {
			variables[cursorVar] = nil
		} else {
			variables[cursorVar] = cursor
		}

		data, err := q.Query(ctx, query, variables)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return result, ctxErr
			}
			err = apierror.Classify(err)
			if errors.Is(err, relayerrors.ErrAuthentication) {
				return result, fmt.Errorf("page %d: %w", result.Pages+1, err)
			}
			logger.Error().Err(err).Int("page", result.Pages+1).Msg("query failed, stopping pagination")
			return result, nil
		}

		page, err := extract(data)
		if err != nil {
			logger.Error().Err(err).Int("page", result.Pages+1).Msg("unexpected response shape, treating as end of data")
			return result, nil
		}

		result.Pages++
		result.Nodes += len(page.Nodes)
		page.Number = result.Pages
		if opts.Observer != nil {
			opts.Observer.ObservePage(len(page.Nodes))
		}
		logger.Debug().
			Int("page", page.Number).
			Int("nodes", len(page.Nodes)).
			Bool("has_next_page", page.HasNextPage).
			Msg("fetched page")

		if sink != nil {
			serr := sink(ctx, page)
			if opts.Observer != nil {
				opts.Observer.ObserveDelivery(serr)
			}
			if serr != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return result, ctxErr
				}
				result.DeliveryErrors++
				logger.Error().Err(serr).Int("page", page.Number).Msg("failed to deliver page")
			}
		}

		if page.HasNextPage && (page.EndCursor == "" || page.EndCursor == cursor) {
			logger.Error().
				Str("cursor", page.EndCursor).
				Int("page", page.Number).
				Msg("hasNextPage set without a new endCursor, stopping pagination")
			return result, nil
		}

		cursor = page.EndCursor
		hasMore = page.HasNextPage
	}

	result.Exhausted = true
	return result, nil
}

// Collect fetches every page and returns all nodes in order.
func Collect(ctx context.Context, q Querier, query string, extract Extractor, opts Options) ([]record.Node, Result, error) {
	var nodes []record.Node
	result, err := FetchAll(ctx, q, query, extract, opts, func(_ context.Context, page Page) error {
		nodes = append(nodes, page.Nodes...)
		return nil
	})
	return nodes, result, err
}
