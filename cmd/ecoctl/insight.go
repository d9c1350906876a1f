package main

import (
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ecoaily/gridinsight/pkg/insight"
	"github.com/ecoaily/gridinsight/pkg/policy"
)

func newInsightCmd(a *app) *cobra.Command {
	var quantity float64

	cmd := &cobra.Command{
		Use:   "insight <metric>",
		Short: "Show the current and predicted class of a metric with advice.",
		Long: `Show the class of the last 24 hours, the predicted class of the next 24 hours,
the resulting recommendation and the value of shifting consumption.

metric is carbon-intensity or renewable-percentage.`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(policy.KindCarbonIntensity), string(policy.KindRenewablePercentage)},
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := policy.Lookup(args[0]); err != nil {
				return err
			}

			query := url.Values{}
			if a.opts.Zone != "" {
				query.Set("zone", a.opts.Zone)
			}
			if cmd.Flags().Changed("quantity") {
				query.Set("quantity", strconv.FormatFloat(quantity, 'f', -1, 64))
			}

			client, err := a.client()
			if err != nil {
				return err
			}
			ctx, cancel := a.context(cmd)
			defer cancel()

			var in insight.Insight
			raw, err := client.get(ctx, "/api/insights/"+url.PathEscape(args[0]), query, &in)
			if err != nil {
				return err
			}

			if a.opts.Output == "json" {
				return writeRaw(cmd.OutOrStdout(), raw)
			}
			return writeInsightTable(cmd.OutOrStdout(), &in, a.opts.Color)
		},
	}

	cmd.Flags().Float64VarP(&quantity, "quantity", "q", 0, "Energy to schedule in kWh (default: the dashboard's quantity)")
	return cmd
}
