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

	"github.com/rs/zerolog"

	relayerrors "github.com/sirseerhq/opslevel-relay/internal/errors"
	"github.com/sirseerhq/opslevel-relay/internal/opslevel"
	"github.com/sirseerhq/opslevel-relay/internal/pager"
)

// ComponentTypeClient is the part of the OpsLevel client
// MigrateComponentType needs.
type ComponentTypeClient interface {
	ListServicesByFilter(ctx context.Context, filters []opslevel.ServiceFilter, pageSize int, observer pager.Observer) ([]opslevel.ServiceRef, pager.Result, error)
	UpdateServiceType(ctx context.Context, serviceID, typeID string) error
}

// Migration moves services of one component type to another. Only
// services with every Tags entry and none of the ExcludeTags entries move.
type Migration struct {
	SourceTypeID string
	TargetTypeID string
	// TagKey is the filter key the tag arguments apply to, "tag" when empty.
	TagKey      string
	Tags        []string
	ExcludeTags []string
}

// Filters builds the service filter for m.
func (m Migration) Filters() []opslevel.ServiceFilter {
	key := m.TagKey
	if key == "" {
		key = "tag"
	}
	filters := []opslevel.ServiceFilter{{Key: "component_type_id", Arg: m.SourceTypeID, Type: "equals"}}
	for _, t := range m.Tags {
		filters = append(filters, opslevel.ServiceFilter{Key: key, Arg: t, Type: "equals"})
	}
	for _, t := range m.ExcludeTags {
		filters = append(filters, opslevel.ServiceFilter{Key: key, Arg: t, Type: "does_not_equal"})
	}
	return filters
}

// MigrateComponentType moves every matching service to the target type.
// Per-service failures are recorded; rejected credentials stop the run.
func MigrateComponentType(ctx context.Context, client ComponentTypeClient, m Migration, opts Options) (*Summary, error) {
	logger := zerolog.Ctx(ctx)
	if m.SourceTypeID == "" || m.TargetTypeID == "" {
		return nil, fmt.Errorf("both the source and the target component type ids are required")
	}

	services, result, err := client.ListServicesByFilter(ctx, m.Filters(), opts.PageSize, opts.Observer)
	if err != nil {
		return nil, err
	}
	if !result.Exhausted {
		return nil, fmt.Errorf("could not fetch every matching service")
	}
	logger.Info().Int("services", len(services)).Str("target_type", m.TargetTypeID).Msg("migrating component type")

	summary := &Summary{}
	for _, svc := range services {
		log := logger.With().Str("service", svc.Name).Logger()
		if opts.DryRun {
			log.Info().Msg("would update component type")
			summary.Updated = append(summary.Updated, svc.Name)
			continue
		}
		if err := client.UpdateServiceType(ctx, svc.ID, m.TargetTypeID); err != nil {
			if errors.Is(err, relayerrors.ErrAuthentication) {
				return summary, err
			}
			log.Error().Err(err).Msg("failed to update component type")
			summary.Failed = append(summary.Failed, svc.Name)
			continue
		}
		log.Debug().Msg("updated component type")
		summary.Updated = append(summary.Updated, svc.Name)
	}
	return summary, nil
}
