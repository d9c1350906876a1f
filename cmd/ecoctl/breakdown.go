package main

import (
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ecoaily/gridinsight/pkg/grid"
	"github.com/ecoaily/gridinsight/pkg/insight"
	"github.com/ecoaily/gridinsight/pkg/policy"
	"github.com/ecoaily/gridinsight/pkg/series"
)

func flowNames() []string {
	names := make([]string, 0, len(grid.Flows))
	for _, f := range grid.Flows {
		names = append(names, string(f))
	}
	return names
}

func windowQuery(a *app, hours int) url.Values {
	query := url.Values{}
	if a.opts.Zone != "" {
		query.Set("zone", a.opts.Zone)
	}
	query.Set("hours", strconv.Itoa(hours))
	return query
}

func newBreakdownCmd(a *app) *cobra.Command {
	var hours int

	cmd := &cobra.Command{
		Use:       "breakdown <flow>",
		Short:     "Show the energy mix of a flow over the last hours.",
		Long:      `Show which sources contributed to production, consumption, import or export over the last 1, 3, 6, 12 or 24 hours.`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: flowNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := grid.ParseFlow(args[0]); err != nil {
				return err
			}
			if err := (series.Window{Hours: hours}).Validate(); err != nil {
				return err
			}

			client, err := a.client()
			if err != nil {
				return err
			}
			ctx, cancel := a.context(cmd)
			defer cancel()

			var view insight.BreakdownView
			raw, err := client.get(ctx, "/api/breakdown/"+url.PathEscape(args[0]), windowQuery(a, hours), &view)
			if err != nil {
				return err
			}

			if a.opts.Output == "json" {
				return writeRaw(cmd.OutOrStdout(), raw)
			}
			return writeBreakdownTable(cmd.OutOrStdout(), &view)
		},
	}

	cmd.Flags().IntVar(&hours, "hours", 24, "Window in hours: 1, 3, 6, 12 or 24")
	return cmd
}

func newSeriesCmd(a *app) *cobra.Command {
	var hours int

	cmd := &cobra.Command{
		Use:       "series <metric>",
		Short:     "Show the hourly values of a metric.",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(policy.KindCarbonIntensity), string(policy.KindRenewablePercentage)},
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := policy.Lookup(args[0]); err != nil {
				return err
			}
			if err := (series.Window{Hours: hours}).Validate(); err != nil {
				return err
			}

			client, err := a.client()
			if err != nil {
				return err
			}
			ctx, cancel := a.context(cmd)
			defer cancel()

			var view insight.SeriesView
			raw, err := client.get(ctx, "/api/series/"+url.PathEscape(args[0]), windowQuery(a, hours), &view)
			if err != nil {
				return err
			}

			if a.opts.Output == "json" {
				return writeRaw(cmd.OutOrStdout(), raw)
			}
			return writeSeriesTable(cmd.OutOrStdout(), &view)
		},
	}

	cmd.Flags().IntVar(&hours, "hours", 24, "Window in hours: 1, 3, 6, 12 or 24")
	return cmd
}
