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

package catalog

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	relayerrors "github.com/sirseerhq/opslevel-relay/internal/errors"
	"github.com/sirseerhq/opslevel-relay/internal/opslevel"
	"github.com/sirseerhq/opslevel-relay/internal/pager"
)

// PropertyClient is the part of the OpsLevel client TagsToProperties needs.
type PropertyClient interface {
	ListPropertyDefinitions(ctx context.Context, pageSize int, observer pager.Observer) ([]opslevel.PropertyDefinition, pager.Result, error)
	ListServicesByTag(ctx context.Context, tagKey string, pageSize int, observer pager.Observer) ([]opslevel.TaggedService, pager.Result, error)
	AssignServiceProperty(ctx context.Context, serviceID, definition string, value interface{}) error
}

// Options tune a bulk edit.
type Options struct {
	DryRun   bool
	PageSize int
	Observer pager.Observer
}

// Summary lists the services a bulk edit touched, by name.
type Summary struct {
	Updated []string `json:"updated"`
	Skipped []string `json:"skipped"`
	Failed  []string `json:"failed"`
}

// String renders the counts on one line.
func (s *Summary) String() string {
	return fmt.Sprintf("updated %d, skipped %d, failed %d", len(s.Updated), len(s.Skipped), len(s.Failed))
}

// converter turns the values of every tag with the property's key into
// the property value.
type converter func(values []string) (interface{}, error)

var converters = map[string]converter{
	"boolean": func(values []string) (interface{}, error) {
		return strconv.ParseBool(strings.TrimSpace(values[0]))
	},
	"number": func(values []string) (interface{}, error) {
		return strconv.ParseFloat(strings.TrimSpace(values[0]), 64)
	},
	"integer": func(values []string) (interface{}, error) {
		return strconv.ParseInt(strings.TrimSpace(values[0]), 10, 64)
	},
	"string": func(values []string) (interface{}, error) {
		return values[0], nil
	},
	"array": func(values []string) (interface{}, error) {
		return values, nil
	},
}

// FindDefinition returns the definition carrying alias among its aliases.
func FindDefinition(defs []opslevel.PropertyDefinition, alias string) (opslevel.PropertyDefinition, error) {
	for _, d := range defs {
		for _, a := range d.Aliases {
			if a == alias {
				return d, nil
			}
		}
	}
	return opslevel.PropertyDefinition{}, fmt.Errorf("custom property %q: %w", alias, relayerrors.ErrNotFound)
}

// TagsToProperties copies the tags keyed by alias into the custom property
// with the same alias on every service that carries them. The property's
// schema type decides the value: booleans, numbers and strings take the
// first tag, arrays take every tag. Values that do not parse are recorded
// as failures. Rejected credentials stop the run.
func TagsToProperties(ctx context.Context, client PropertyClient, alias string, opts Options) (*Summary, error) {
	logger := zerolog.Ctx(ctx)

	defs, result, err := client.ListPropertyDefinitions(ctx, opts.PageSize, opts.Observer)
	if err != nil {
		return nil, err
	}
	if !result.Exhausted {
		return nil, fmt.Errorf("could not fetch every custom property definition")
	}
	def, err := FindDefinition(defs, alias)
	if err != nil {
		return nil, err
	}
	convert, ok := converters[def.SchemaType]
	if !ok {
		return nil, fmt.Errorf("custom property %q has schema type %q, which cannot be filled from tags", alias, def.SchemaType)
	}

	services, result, err := client.ListServicesByTag(ctx, alias, opts.PageSize, opts.Observer)
	if err != nil {
		return nil, err
	}
	if !result.Exhausted {
		return nil, fmt.Errorf("could not fetch every service tagged %q", alias)
	}
	logger.Info().
		Str("property", def.Name).
		Str("schema_type", def.SchemaType).
		Int("services", len(services)).
		Msg("converting tags")

	summary := &Summary{}
	for _, svc := range services {
		log := logger.With().Str("service", svc.Name).Logger()
		values := svc.TagValues(alias)
		if len(values) == 0 {
			summary.Skipped = append(summary.Skipped, svc.Name)
			continue
		}
		value, err := convert(values)
		if err != nil {
			log.Warn().Err(err).Strs("values", values).Msg("tag value does not fit the property")
			summary.Failed = append(summary.Failed, svc.Name)
			continue
		}
		if opts.DryRun {
			log.Info().Interface("value", value).Msg("would assign property")
			summary.Updated = append(summary.Updated, svc.Name)
			continue
		}
		if err := client.AssignServiceProperty(ctx, svc.ID, alias, value); err != nil {
			if errors.Is(err, relayerrors.ErrAuthentication) {
				return summary, err
			}
			log.Error().Err(err).Msg("failed to assign property")
			summary.Failed = append(summary.Failed, svc.Name)
			continue
		}
		log.Debug().Interface("value", value).Msg("assigned property")
		summary.Updated = append(summary.Updated, svc.Name)
	}
	return summary, nil
}
