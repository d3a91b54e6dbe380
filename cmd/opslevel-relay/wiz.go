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

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/sirseerhq/opslevel-relay/internal/config"
	relayerrors "github.com/sirseerhq/opslevel-relay/internal/errors"
	"github.com/sirseerhq/opslevel-relay/internal/metadata"
	"github.com/sirseerhq/opslevel-relay/internal/opslevel"
	"github.com/sirseerhq/opslevel-relay/internal/output"
	"github.com/sirseerhq/opslevel-relay/internal/pager"
	"github.com/sirseerhq/opslevel-relay/internal/record"
	"github.com/sirseerhq/opslevel-relay/internal/state"
	"github.com/sirseerhq/opslevel-relay/internal/wiz"
)

func (r *run) wizClient(creds config.Credentials) (*wiz.Client, error) {
	cfg := r.app.cfg.Wiz
	client, err := wiz.NewClient(wiz.Config{
		ClientID:     creds.WizClientID,
		ClientSecret: creds.WizClientSecret,
		EndpointURL:  cfg.EndpointURL,
		TokenURL:     cfg.TokenURL,
		Audience:     cfg.Audience,
	}, r.policy(), r.httpOptions()...)
	if err != nil {
		return nil, err
	}
	if err := client.Authenticate(r.ctx); err != nil {
		return nil, err
	}
	return client, nil
}

func pageSizeOr(flag, configured int) int {
	if flag > 0 {
		return flag
	}
	return configured
}

func newWizIssuesCommand(a *app) *cobra.Command {
	var (
		watermarkFile string
		outputFile    string
		pageSize      int
		dryRun        bool
		noWatermark   bool
	)

	cmd := &cobra.Command{
		Use:   "wiz-issues",
		Short: "Forward Wiz issues to an OpsLevel custom webhook",
		Long: `Fetch Wiz issues whose status changed since the last successful run and
post every page to the OpsLevel custom integration webhook.

The watermark file holds the status_changed_after timestamp. It only moves
forward after a run that fetched and delivered every page. A missing or
unreadable watermark stops the run; pass --no-watermark to fetch every issue
once and start a new watermark.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r := a.startRun(cmd)
			if watermarkFile == "" {
				watermarkFile = a.cfg.Defaults.WatermarkFile
			}
			return r.wizIssues(wizIssuesOptions{
				watermarkFile: watermarkFile,
				outputFile:    outputFile,
				pageSize:      pageSizeOr(pageSize, a.cfg.Defaults.WizIssuesPageSize),
				dryRun:        dryRun,
				noWatermark:   noWatermark,
			})
		},
	}

	cmd.Flags().StringVar(&watermarkFile, "watermark-file", "", "Watermark file (default: config.json or defaults.watermark_file)")
	cmd.Flags().StringVar(&outputFile, "output", "", "Also write fetched issues to this file (.json or .ndjson)")
	cmd.Flags().IntVar(&pageSize, "page-size", 0, "Issues per page (max 500)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Fetch without posting or advancing the watermark")
	cmd.Flags().BoolVar(&noWatermark, "no-watermark", false, "Ignore the watermark file and fetch every issue")
	return cmd
}

type wizIssuesOptions struct {
	watermarkFile string
	outputFile    string
	pageSize      int
	dryRun        bool
	noWatermark   bool
}

func (r *run) wizIssues(opts wizIssuesOptions) error {
	required := []config.Integration{config.Wiz}
	if !opts.dryRun {
		required = append(required, config.OpsLevelWebhook)
	}
	creds, err := r.app.cfg.Require(required...)
	if err != nil {
		return err
	}

	startedAt := r.app.now()
	var since string
	if opts.noWatermark {
		r.logger.Warn().Msg("fetching every issue without a status change filter")
	} else {
		since = state.LoadOrEmpty(r.ctx, opts.watermarkFile).StatusChangedAfter()
		if since == "" {
			return fmt.Errorf("%w in %s (pass --no-watermark to fetch every issue)", relayerrors.ErrNoWatermark, opts.watermarkFile)
		}
	}

	client, err := r.wizClient(creds)
	if err != nil {
		return err
	}

	var sinks []pager.Sink
	if opts.outputFile != "" {
		w, err := output.New(opts.outputFile, "")
		if err != nil {
			return err
		}
		defer w.Close()
		sinks = append(sinks, writerSink(w))
	}
	ol := r.app.cfg.OpsLevel
	if !opts.dryRun {
		sender := opslevel.NewWebhookSender(opslevel.WebhookURL(ol.WebhookBaseURL, ol.WebhookUID, ol.ExternalKind), r.policy(), r.httpOptions()...)
		sinks = append(sinks, sender.Sink())
	}

	result, err := client.FetchIssues(r.ctx, since, opts.pageSize, r.tracker, chainSinks(sinks...))
	if err != nil {
		return err
	}

	marks := &metadata.Watermarks{Before: since}
	switch {
	case opts.dryRun:
		r.logger.Info().Int("issues", result.Nodes).Msg("dry run, watermark left unchanged")
	case !result.Complete():
		r.logger.Warn().
			Bool("exhausted", result.Exhausted).
			Int("delivery_errors", result.DeliveryErrors).
			Msg("run incomplete, watermark left unchanged")
	case result.Nodes == 0:
		r.logger.Info().Msg("no issues changed since the watermark")
	default:
		advanced, err := state.Advance(opts.watermarkFile, startedAt)
		if err != nil {
			return err
		}
		marks.After = advanced.StatusChangedAfter()
		marks.Advanced = true
		r.logger.Info().Str("status_changed_after", marks.After).Msg("watermark advanced")
	}

	if prev := r.previousRun("wiz-issues"); prev != nil {
		r.logger.Debug().Str("previous_run", prev.RunID).Int("previous_records", prev.Results.Records).Msg("previous run")
	}

	return r.finish(metadata.RunParams{
		Endpoint:   r.app.cfg.Wiz.EndpointURL,
		PageSize:   opts.pageSize,
		OutputFile: opts.outputFile,
		DryRun:     opts.dryRun,
	}, result.Exhausted, marks)
}

// writerSink writes every node of a page to w.
func writerSink(w output.OutputWriter) pager.Sink {
	return func(_ context.Context, page pager.Page) error {
		for _, n := range page.Nodes {
			if err := w.Write(n); err != nil {
				return err
			}
		}
		return nil
	}
}

// chainSinks delivers each page to every sink and reports the first error.
func chainSinks(sinks ...pager.Sink) pager.Sink {
	return func(ctx context.Context, page pager.Page) error {
		var first error
		for _, s := range sinks {
			if err := s(ctx, page); err != nil && first == nil {
				first = err
			}
		}
		return first
	}
}

type findingsFlags struct {
	status       []string
	severity     []string
	assetType    []string
	updatedAfter string
	pageSize     int
}

func (f *findingsFlags) register(cmd *cobra.Command, defaultStatus []string) {
	cmd.Flags().StringSliceVar(&f.status, "status", defaultStatus, "Finding statuses to include")
	cmd.Flags().StringSliceVar(&f.severity, "severity", nil, "Vendor severities to include")
	cmd.Flags().StringSliceVar(&f.assetType, "asset-type", nil, "Vulnerable asset types to include")
	cmd.Flags().StringVar(&f.updatedAfter, "updated-after", "", "Only findings updated after this ISO-8601 timestamp")
	cmd.Flags().IntVar(&f.pageSize, "page-size", 0, "Findings per page (max 500)")
}

func (f *findingsFlags) filter() wiz.FindingsFilter {
	return wiz.FindingsFilter{
		Status:       f.status,
		Severity:     f.severity,
		AssetType:    f.assetType,
		UpdatedAfter: f.updatedAfter,
	}
}

func newWizVulnerabilitiesCommand(a *app) *cobra.Command {
	var (
		flags      findingsFlags
		outputFile string
	)

	cmd := &cobra.Command{
		Use:   "wiz-vulnerabilities",
		Short: "Export Wiz vulnerability findings to JSON",
		Long: `Fetch Wiz vulnerability findings and write them as one JSON document.

Fields missing from a finding are written as null. Without --output the
file is named wiz_vulnerabilities-YYYY-MM-DD.json in the output directory.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r := a.startRun(cmd)
			return r.wizVulnerabilities(flags, outputFile)
		},
	}
	flags.register(cmd, []string{"OPEN"})
	cmd.Flags().StringVar(&outputFile, "output", "", "Output file path")
	return cmd
}

func (r *run) wizVulnerabilities(flags findingsFlags, outputFile string) error {
	creds, err := r.app.cfg.Require(config.Wiz)
	if err != nil {
		return err
	}
	client, err := r.wizClient(creds)
	if err != nil {
		return err
	}

	pageSize := pageSizeOr(flags.pageSize, r.app.cfg.Defaults.WizFindingsPageSize)
	records := []wiz.VulnerabilityRecord{}
	result, err := client.FetchVulnerabilityFindings(r.ctx, flags.filter(), pageSize, r.tracker, func(ctx context.Context, page pager.Page) error {
		records = append(records, wiz.TransformFindings(ctx, page.Nodes)...)
		return nil
	})
	if err != nil {
		return err
	}
	if !result.Exhausted {
		r.logger.Warn().Int("records", len(records)).Msg("findings fetch stopped early, export is partial")
	}

	path := r.outputPath(outputFile, output.DatedName("wiz_vulnerabilities", "json", r.app.now()))
	if err := output.WriteDocument(path, records); err != nil {
		return err
	}
	r.logger.Info().Int("records", len(records)).Str("path", path).Msg("wrote vulnerability export")

	return r.finish(metadata.RunParams{
		Endpoint:   r.app.cfg.Wiz.EndpointURL,
		PageSize:   pageSize,
		OutputFile: path,
	}, result.Exhausted, nil)
}

func newWizSyncCommand(a *app) *cobra.Command {
	var (
		flags  findingsFlags
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "wiz-sync",
		Short: "Sync Wiz vulnerability findings into OpsLevel code issues",
		Long: `Fetch Wiz vulnerability findings whose asset carries a Name tag and file
them as code issues on the OpsLevel service with that alias.

Each service gets a code issue project named "Wiz Vulnerabilities: <service>"
which is created and connected on first use.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r := a.startRun(cmd)
			return r.wizSync(flags, dryRun)
		},
	}
	flags.register(cmd, []string{"OPEN"})
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report what would be synced without mutating OpsLevel")
	return cmd
}

func (r *run) wizSync(flags findingsFlags, dryRun bool) error {
	creds, err := r.app.cfg.Require(config.Wiz, config.OpsLevel, config.OpsLevelCodeIssues)
	if err != nil {
		return err
	}
	client, err := r.wizClient(creds)
	if err != nil {
		return err
	}

	pageSize := pageSizeOr(flags.pageSize, r.app.cfg.Defaults.WizFindingsPageSize)
	nodes, result, err := pager.Collect(r.ctx, client, wiz.VulnerabilityFindingsQuery, pager.Collection("vulnerabilityFindings"), pager.Options{
		PageSize:  pageSize,
		Variables: flags.filter().Variables(),
		Observer:  r.tracker,
	})
	if err != nil {
		return err
	}

	syncer := &codeIssueSync{
		client:        r.opsLevel(creds),
		integrationID: r.app.cfg.OpsLevel.IntegrationID,
		projectURL:    r.app.cfg.Wiz.EndpointURL,
		dryRun:        dryRun,
	}
	stats, err := syncer.sync(r.ctx, nodes)
	if err != nil {
		return err
	}
	r.logger.Info().
		Int("services", stats.services).
		Int("issues", stats.issues).
		Int("missing_services", stats.missing).
		Int("failed", stats.failed).
		Msg("wiz sync complete")

	return r.finish(metadata.RunParams{
		Endpoint: r.app.cfg.Wiz.EndpointURL,
		PageSize: pageSize,
		DryRun:   dryRun,
	}, result.Exhausted, nil)
}

// codeIssueWriter is the part of the OpsLevel client wiz-sync needs.
type codeIssueWriter interface {
	ServiceByAlias(ctx context.Context, alias string) (*opslevel.Service, error)
	UpsertCodeIssueProject(ctx context.Context, id opslevel.CodeIssueProjectIdentifier, name, url string) (string, error)
	ConnectCodeIssueProjects(ctx context.Context, resourceID string, projectIDs ...string) error
	UpsertCodeIssue(ctx context.Context, issue opslevel.CodeIssue) (string, error)
}

type codeIssueSync struct {
	client        codeIssueWriter
	integrationID string
	projectURL    string
	dryRun        bool
}

type syncStats struct {
	services int
	issues   int
	missing  int
	failed   int
}

const codeIssueProjectPrefix = "Wiz Vulnerabilities: "

// sync upserts the findings per service. Per-record failures are counted;
// a rejected OpsLevel token ends the sync with an error.
func (s *codeIssueSync) sync(ctx context.Context, nodes []record.Node) (syncStats, error) {
	logger := zerolog.Ctx(ctx)
	var stats syncStats

	aliases, grouped := wiz.GroupByService(nodes)
	for _, alias := range aliases {
		findings := grouped[alias]
		svc, err := s.client.ServiceByAlias(ctx, alias)
		if errors.Is(err, relayerrors.ErrAuthentication) {
			return stats, err
		}
		if err != nil {
			if errors.Is(err, relayerrors.ErrNotFound) {
				stats.missing++
				logger.Warn().Str("alias", alias).Int("findings", len(findings)).Msg("no OpsLevel service for alias")
			} else {
				stats.failed += len(findings)
				logger.Error().Err(err).Str("alias", alias).Msg("service lookup failed")
			}
			continue
		}

		name := codeIssueProjectPrefix + string(svc.Name)
		project := opslevel.CodeIssueProjectIdentifier{IntegrationID: s.integrationID, ExternalID: name}
		if s.dryRun {
			stats.services++
			stats.issues += len(findings)
			logger.Info().Str("service", string(svc.Name)).Int("findings", len(findings)).Msg("would sync findings")
			continue
		}

		if err := s.ensureProject(ctx, svc, project, name); err != nil {
			if errors.Is(err, relayerrors.ErrAuthentication) {
				return stats, err
			}
			stats.failed += len(findings)
			logger.Error().Err(err).Str("service", string(svc.Name)).Msg("code issue project setup failed")
			continue
		}
		stats.services++

		for _, f := range findings {
			_, err := s.client.UpsertCodeIssue(ctx, opslevel.CodeIssue{
				Project:       project,
				ExternalID:    f.ExternalID,
				Name:          f.Name,
				IssueCategory: "Infrastructure",
				Severity:      f.Severity,
				CVE:           wiz.CVEIdentifier(f.CVEDescription),
				URL:           f.PortalURL,
			})
			if errors.Is(err, relayerrors.ErrAuthentication) {
				return stats, err
			}
			if err != nil {
				stats.failed++
				logger.Error().Err(err).Str("finding", f.ExternalID).Str("service", string(svc.Name)).Msg("code issue upsert failed")
				continue
			}
			stats.issues++
		}
	}
	return stats, nil
}

// ensureProject creates and connects the service's project unless the
// service already lists it.
func (s *codeIssueSync) ensureProject(ctx context.Context, svc *opslevel.Service, project opslevel.CodeIssueProjectIdentifier, name string) error {
	if _, ok := svc.ProjectNamed(name); ok {
		return nil
	}
	id, err := s.client.UpsertCodeIssueProject(ctx, project, name, s.projectURL)
	if err != nil {
		return err
	}
	if err := s.client.ConnectCodeIssueProjects(ctx, fmt.Sprint(svc.ID), id); err != nil {
		return err
	}
	zerolog.Ctx(ctx).Info().Str("service", string(svc.Name)).Str("project", id).Msg("connected code issue project")
	return nil
}
