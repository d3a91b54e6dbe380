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
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sirseerhq/opslevel-relay/internal/config"
	relayerrors "github.com/sirseerhq/opslevel-relay/internal/errors"
	"github.com/sirseerhq/opslevel-relay/internal/metadata"
	"github.com/sirseerhq/opslevel-relay/internal/opslevel"
	"github.com/sirseerhq/opslevel-relay/internal/output"
	"github.com/sirseerhq/opslevel-relay/internal/pager"
	"github.com/sirseerhq/opslevel-relay/internal/record"
)

const (
	servicesExport = "services_graphqlapi.csv"
	teamsExport    = "teams_users.csv"
)

func newExportServicesCommand(a *app) *cobra.Command {
	var (
		outputFile string
		pageSize   int
	)

	cmd := &cobra.Command{
		Use:   "export-services",
		Short: "Export every OpsLevel service to CSV",
		Long: `Page through every OpsLevel service and write id, name and updatedAt as CSV.

Without --output the file is services_graphqlapi.csv in the output directory.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r := a.startRun(cmd)
			return r.exportServices(r.outputPath(outputFile, servicesExport), pageSizeOr(pageSize, a.cfg.Defaults.OpsLevelPageSize))
		},
	}
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "CSV file path")
	cmd.Flags().IntVar(&pageSize, "page-size", 0, "Services per page")
	return cmd
}

func (r *run) exportServices(path string, pageSize int) error {
	creds, err := r.app.cfg.Require(config.OpsLevel)
	if err != nil {
		return err
	}

	w, err := output.NewCSVFileWriter(path, opslevel.ServiceCSVHeader)
	if err != nil {
		return err
	}

	result, err := r.opsLevel(creds).FetchServices(r.ctx, pageSize, r.tracker, func(_ context.Context, page pager.Page) error {
		for _, n := range page.Nodes {
			if err := w.Write(opslevel.NewServiceRow(n)); err != nil {
				return err
			}
		}
		return nil
	})
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	return r.exportDone(path, w.Count(), pageSize, result)
}

func newExportTeamsCommand(a *app) *cobra.Command {
	var (
		outputFile string
		pageSize   int
	)

	cmd := &cobra.Command{
		Use:   "export-teams",
		Short: "Export OpsLevel teams with contacts and members to CSV",
		Long: `Page through every OpsLevel team and write one CSV row per contact and
member. Teams without either still get a row.

Without --output the file is teams_users.csv in the output directory.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r := a.startRun(cmd)
			return r.exportTeams(r.outputPath(outputFile, teamsExport), pageSizeOr(pageSize, a.cfg.Defaults.OpsLevelPageSize))
		},
	}
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "CSV file path")
	cmd.Flags().IntVar(&pageSize, "page-size", 0, "Teams per page")
	return cmd
}

func (r *run) exportTeams(path string, pageSize int) error {
	creds, err := r.app.cfg.Require(config.OpsLevel)
	if err != nil {
		return err
	}

	w, err := output.NewCSVFileWriter(path, opslevel.TeamCSVHeader)
	if err != nil {
		return err
	}

	result, err := r.opsLevel(creds).FetchTeams(r.ctx, pageSize, r.tracker, func(_ context.Context, page pager.Page) error {
		for _, n := range page.Nodes {
			for _, row := range opslevel.NewTeam(n).CSVRows() {
				if err := w.Write(row); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	return r.exportDone(path, w.Count(), pageSize, result)
}

func (r *run) exportDone(path string, rows, pageSize int, result pager.Result) error {
	if !result.Complete() {
		r.logger.Warn().
			Bool("exhausted", result.Exhausted).
			Int("delivery_errors", result.DeliveryErrors).
			Msg("export is partial")
	}
	fmt.Fprintf(r.app.stderr, "Wrote %d rows to %s\n", rows, path)
	return r.finish(metadata.RunParams{
		Endpoint:   r.app.cfg.OpsLevel.APIURL,
		PageSize:   pageSize,
		OutputFile: path,
	}, result.Exhausted, nil)
}

func newExportOpsLevelYMLCommand(a *app) *cobra.Command {
	var (
		outputDir string
		pageSize  int
	)

	cmd := &cobra.Command{
		Use:   "export-opslevel-yml",
		Short: "Write the opslevel.yml of every OpsLevel service to files",
		Long: `Page through every OpsLevel service, fetch its generated opslevel.yml and
write it to <service name>_opslevel.yml.

Without --output-dir the files go to the configured output directory.
Services without a config file are skipped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r := a.startRun(cmd)
			if outputDir == "" {
				outputDir = a.cfg.Defaults.OutputDir
			}
			return r.exportOpsLevelYML(outputDir, pageSizeOr(pageSize, a.cfg.Defaults.OpsLevelPageSize))
		},
	}
	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "Directory for the YAML files")
	cmd.Flags().IntVar(&pageSize, "page-size", 0, "Services per page")
	return cmd
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// ymlFileName is the file a service's config is written to.
func ymlFileName(service string) string {
	name := unsafeFileChars.ReplaceAllString(service, "_")
	if name == "" || name == "." || name == ".." {
		name = "unnamed"
	}
	return name + "_opslevel.yml"
}

func (r *run) exportOpsLevelYML(dir string, pageSize int) error {
	creds, err := r.app.cfg.Require(config.OpsLevel)
	if err != nil {
		return err
	}
	client := r.opsLevel(creds)

	var services []opslevel.ServiceRef
	result, err := client.FetchServices(r.ctx, pageSize, r.tracker, func(_ context.Context, page pager.Page) error {
		for _, n := range page.Nodes {
			services = append(services, opslevel.ServiceRef{
				ID:   record.StringOr(n, "", "id"),
				Name: record.StringOr(n, "", "name"),
			})
		}
		return nil
	})
	if err != nil {
		return err
	}

	written, skipped, failed := 0, 0, 0
	for _, svc := range services {
		log := r.logger.With().Str("service", svc.Name).Logger()
		file, err := client.ServiceConfigFile(r.ctx, svc.ID)
		switch {
		case errors.Is(err, relayerrors.ErrAuthentication):
			return err
		case errors.Is(err, relayerrors.ErrNotFound):
			log.Warn().Msg("service has no opslevel.yml")
			skipped++
			continue
		case err != nil:
			log.Error().Err(err).Msg("failed to fetch opslevel.yml")
			failed++
			continue
		}

		var doc yaml.Node
		if err := yaml.Unmarshal([]byte(file.YAML), &doc); err != nil {
			log.Error().Err(err).Msg("opslevel.yml does not parse, skipping")
			failed++
			continue
		}
		path := filepath.Join(dir, ymlFileName(svc.Name))
		if err := output.WriteFile(path, []byte(file.YAML)); err != nil {
			return err
		}
		written++
	}

	if !result.Complete() || failed > 0 {
		r.logger.Warn().
			Bool("exhausted", result.Exhausted).
			Int("failed", failed).
			Msg("export is partial")
	}
	fmt.Fprintf(r.app.stderr, "Wrote %d files to %s (%d skipped, %d failed)\n", written, dir, skipped, failed)
	return r.finish(metadata.RunParams{
		Endpoint:   r.app.cfg.OpsLevel.APIURL,
		PageSize:   pageSize,
		OutputFile: dir,
	}, result.Exhausted, nil)
}
