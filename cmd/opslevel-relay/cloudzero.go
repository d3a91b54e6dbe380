package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/sirseerhq/opslevel-relay/internal/cloudzero"
	"github.com/sirseerhq/opslevel-relay/internal/config"
	relayerrors "github.com/sirseerhq/opslevel-relay/internal/errors"
	"github.com/sirseerhq/opslevel-relay/internal/metadata"
)

// costProperty is the OpsLevel property definition that receives costs.
const costProperty = "aws_cost"

func newCloudZeroCostsCommand(a *app) *cobra.Command {
	var (
		start, end string
		property   string
		dryRun     bool
	)

	cmd := &cobra.Command{
		Use:   "cloudzero-costs",
		Short: "Copy CloudZero costs per Name tag into an OpsLevel property",
		Long: `Fetch daily real costs from CloudZero grouped by the Name tag, sum them per
tag and assign the total to the property on the OpsLevel component whose
alias equals the tag.

Dates use the form 2006-01-02 or 2006-01-02T15:04:05Z. The window defaults to
the 30 days before now.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r := a.startRun(cmd)
			window, err := costWindow(start, end, a.now())
			if err != nil {
				return err
			}
			return r.cloudZeroCosts(window, property, dryRun)
		},
	}

	cmd.Flags().StringVar(&start, "start", "", "Start of the billing window")
	cmd.Flags().StringVar(&end, "end", "", "End of the billing window")
	cmd.Flags().StringVar(&property, "property", costProperty, "Property definition alias to assign")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the totals without assigning properties")
	return cmd
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range []string{cloudzero.TimeLayout, time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q (use 2006-01-02 or 2006-01-02T15:04:05Z)", s)
}

func costWindow(start, end string, now time.Time) (cloudzero.CostsRequest, error) {
	req := cloudzero.CostsRequest{End: now.UTC().Truncate(time.Second)}
	if end != "" {
		t, err := parseDate(end)
		if err != nil {
			return req, err
		}
		req.End = t
	}
	req.Start = req.End.AddDate(0, 0, -30)
	if start != "" {
		t, err := parseDate(start)
		if err != nil {
			return req, err
		}
		req.Start = t
	}
	return req, nil
}

// propertyAssigner is the part of the OpsLevel client cost syncing needs.
type propertyAssigner interface {
	AssignProperty(ctx context.Context, ownerAlias, definition string, value interface{}) error
}

func (r *run) cloudZeroCosts(window cloudzero.CostsRequest, property string, dryRun bool) error {
	required := []config.Integration{config.CloudZero}
	if !dryRun {
		required = append(required, config.OpsLevel)
	}
	creds, err := r.app.cfg.Require(required...)
	if err != nil {
		return err
	}

	cz := cloudzero.NewClient(r.app.cfg.CloudZero.APIURL, creds.CloudZeroAPIKey, r.policy(), r.httpOptions()...)
	costs, err := cz.BillingCosts(r.ctx, window)
	if err != nil {
		return err
	}
	totals := cloudzero.GroupByTag(costs)

	enc := json.NewEncoder(r.app.stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(totals); err != nil {
		return fmt.Errorf("failed to print totals: %w", err)
	}

	failed := 0
	if !dryRun {
		if failed, err = assignCosts(r.ctx, r.opsLevel(creds), property, totals); err != nil {
			return err
		}
	}
	r.logger.Info().Int("tags", len(totals)).Int("failed", failed).Bool("dry_run", dryRun).Msg("cost sync complete")

	return r.finish(metadata.RunParams{
		Endpoint: r.app.cfg.CloudZero.APIURL,
		DryRun:   dryRun,
		Extra: map[string]string{
			"start_date": window.Start.Format(cloudzero.TimeLayout),
			"end_date":   window.End.Format(cloudzero.TimeLayout),
			"property":   property,
		},
	}, true, nil)
}

// assignCosts returns the number of tags whose assignment failed. A
// rejected token stops the loop.
func assignCosts(ctx context.Context, client propertyAssigner, property string, totals []cloudzero.TagCost) (int, error) {
	logger := zerolog.Ctx(ctx)
	failed := 0
	for _, t := range totals {
		if err := client.AssignProperty(ctx, t.Tag, property, t.Cost); err != nil {
			if errors.Is(err, relayerrors.ErrAuthentication) {
				return failed, err
			}
			failed++
			logger.Error().Err(err).Str("alias", t.Tag).Msg("property assignment failed")
			continue
		}
		logger.Debug().Str("alias", t.Tag).Float64("cost", t.Cost).Msg("assigned cost")
	}
	return failed, nil
}
