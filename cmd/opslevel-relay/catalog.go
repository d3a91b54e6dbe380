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

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sirseerhq/opslevel-relay/internal/catalog"
	"github.com/sirseerhq/opslevel-relay/internal/config"
	"github.com/sirseerhq/opslevel-relay/internal/metadata"
)

func newTagsToPropertiesCommand(a *app) *cobra.Command {
	var (
		property string
		pageSize int
		dryRun   bool
	)

	cmd := &cobra.Command{
		Use:   "tags-to-properties",
		Short: "Fill an OpsLevel custom property from the service tags with its alias",
		Long: `Find the custom property whose alias is --property, then copy the value of
every service tag with that key into the property.

Boolean, number, integer and string properties take the first matching tag;
array properties take all of them. Tags whose value does not parse as the
property's type are reported and left alone.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r := a.startRun(cmd)
			return r.tagsToProperties(property, pageSizeOr(pageSize, a.cfg.Defaults.OpsLevelPageSize), dryRun)
		},
	}

	cmd.Flags().StringVarP(&property, "property", "p", "", "Custom property alias, also the tag key")
	cmd.Flags().IntVar(&pageSize, "page-size", 0, "Services and definitions per page")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report the changes without making them")
	_ = cmd.MarkFlagRequired("property")
	return cmd
}

func (r *run) tagsToProperties(property string, pageSize int, dryRun bool) error {
	creds, err := r.app.cfg.Require(config.OpsLevel)
	if err != nil {
		return err
	}

	summary, err := catalog.TagsToProperties(r.ctx, r.opsLevel(creds), property, catalog.Options{
		DryRun:   dryRun,
		PageSize: pageSize,
		Observer: r.tracker,
	})
	if err != nil {
		return err
	}
	r.printSummary(dryRun, summary)

	return r.finish(metadata.RunParams{
		Endpoint: r.app.cfg.OpsLevel.APIURL,
		PageSize: pageSize,
		DryRun:   dryRun,
		Extra:    map[string]string{"property": property},
	}, true, nil)
}

func newMigrateComponentTypeCommand(a *app) *cobra.Command {
	var (
		m        catalog.Migration
		pageSize int
		dryRun   bool
	)

	cmd := &cobra.Command{
		Use:   "migrate-component-type",
		Short: "Move OpsLevel services from one component type to another",
		Long: `Select the services of component type --source-type-id that carry every
--tag and none of the --exclude-tag values, then switch each of them to
--target-type-id.

Tags are given as key:value, e.g. --tag role:http.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r := a.startRun(cmd)
			return r.migrateComponentType(m, pageSizeOr(pageSize, a.cfg.Defaults.OpsLevelPageSize), dryRun)
		},
	}

	cmd.Flags().StringVar(&m.SourceTypeID, "source-type-id", "", "Component type id the services have now")
	cmd.Flags().StringVar(&m.TargetTypeID, "target-type-id", "", "Component type id to move them to")
	cmd.Flags().StringVar(&m.TagKey, "tag-key", "tag", "Service filter key the tag values apply to")
	cmd.Flags().StringArrayVar(&m.Tags, "tag", nil, "Only move services with this tag (repeatable)")
	cmd.Flags().StringArrayVar(&m.ExcludeTags, "exclude-tag", nil, "Skip services with this tag (repeatable)")
	cmd.Flags().IntVar(&pageSize, "page-size", 0, "Services per page")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report the changes without making them")
	_ = cmd.MarkFlagRequired("source-type-id")
	_ = cmd.MarkFlagRequired("target-type-id")
	return cmd
}

func (r *run) migrateComponentType(m catalog.Migration, pageSize int, dryRun bool) error {
	creds, err := r.app.cfg.Require(config.OpsLevel)
	if err != nil {
		return err
	}

	summary, err := catalog.MigrateComponentType(r.ctx, r.opsLevel(creds), m, catalog.Options{
		DryRun:   dryRun,
		PageSize: pageSize,
		Observer: r.tracker,
	})
	if err != nil {
		return err
	}
	r.printSummary(dryRun, summary)

	return r.finish(metadata.RunParams{
		Endpoint: r.app.cfg.OpsLevel.APIURL,
		PageSize: pageSize,
		DryRun:   dryRun,
		Extra: map[string]string{
			"source_type_id": m.SourceTypeID,
			"target_type_id": m.TargetTypeID,
		},
	}, true, nil)
}

func (r *run) printSummary(dryRun bool, summary fmt.Stringer) {
	prefix := ""
	if dryRun {
		prefix = "[dry run] "
	}
	fmt.Fprintf(r.app.stdout, "%s%s\n", prefix, summary)
}
