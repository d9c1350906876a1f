package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/ecoaily/gridinsight/pkg/advice"
	"github.com/ecoaily/gridinsight/pkg/insight"
	"github.com/ecoaily/gridinsight/pkg/policy"
)

// palette holds the colours used for classes and severities.
type palette struct {
	good    *color.Color
	neutral *color.Color
	bad     *color.Color
}

func newPalette(enabled bool) palette {
	p := palette{
		good:    color.New(color.FgGreen, color.Bold),
		neutral: color.New(color.FgYellow),
		bad:     color.New(color.FgRed, color.Bold),
	}
	if !enabled {
		p.good.DisableColor()
		p.neutral.DisableColor()
		p.bad.DisableColor()
	}
	return p
}

// class colours a class by its side of the pivot.
func (p palette) class(mp policy.MetricPolicy, class int, s string) string {
	switch {
	case mp.Good(class):
		return p.good.Sprint(s)
	case class == policy.Pivot:
		return p.neutral.Sprint(s)
	default:
		return p.bad.Sprint(s)
	}
}

func (p palette) severity(s advice.Severity, msg string) string {
	switch s {
	case advice.SeveritySuccess:
		return p.good.Sprint(msg)
	case advice.SeverityWarning:
		return p.neutral.Sprint(msg)
	default:
		return p.bad.Sprint(msg)
	}
}

func writeRaw(w io.Writer, raw []byte) error {
	if _, err := w.Write(raw); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w)
	return err
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}

func writeInsightTable(w io.Writer, in *insight.Insight, colored bool) error {
	mp, err := policy.Lookup(string(in.Metric))
	if err != nil {
		return err
	}
	pal := newPalette(colored)

	cardRow := func(window string, c insight.Card) []string {
		return []string{
			window,
			strconv.Itoa(c.Class),
			c.DisplayRange,
			pal.class(mp, c.Class, c.TierLabel),
			formatValue(c.Value),
		}
	}

	table := tablewriter.NewWriter(w)
	table.Header([]string{"Window", "Class", "Range", "Tier", "Value"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignLeft
	})

	data := [][]string{cardRow("Last 24h", in.Current)}
	if in.Predicted != nil {
		data = append(data, cardRow("Next 24h", *in.Predicted))
	} else {
		data = append(data, []string{"Next 24h", "-", "-", "n/a", "-"})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}

	lines := []string{fmt.Sprintf("%s in %s (%s), %d samples", in.Metric, in.Zone, in.Unit, in.Samples)}
	if in.Recommendation != nil {
		r := in.Recommendation
		lines = append(lines, fmt.Sprintf("Recommendation: %s %s", pal.severity(r.Severity, r.Message), r.Trend.Arrow))
	}
	if in.Arbitrage != nil {
		arb := in.Arbitrage
		line := "Arbitrage: " + pal.severity(arb.Severity, arb.Message)
		if arb.FavoredPeriod != advice.PeriodNeither {
			line += fmt.Sprintf(" (%s %s for %s kWh, favours %s)",
				formatValue(arb.Delta), arb.Unit, formatValue(arb.Quantity), arb.FavoredPeriod)
		}
		lines = append(lines, line)
	}
	if in.PredictionError != "" {
		lines = append(lines, "Prediction unavailable: "+in.PredictionError)
	}
	if in.Stale {
		lines = append(lines, pal.neutral.Sprintf("Warning: computed from stale data fetched at %s", in.FetchedAt.Format(time.RFC3339)))
	}

	for _, l := range lines {
		if _, err := fmt.Fprintln(w, l); err != nil {
			return err
		}
	}
	return nil
}

func writeBreakdownTable(w io.Writer, view *insight.BreakdownView) error {
	if view.NoData {
		_, err := fmt.Fprintf(w, "No energy data available for %s in %s over the last %dh\n",
			view.Flow, view.Zone, view.Hours)
		return err
	}

	table := tablewriter.NewWriter(w)
	table.Header([]string{"Source", "Value", "Share"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	data := make([][]string, 0, len(view.Contributors))
	for _, c := range view.Contributors {
		data = append(data, []string{
			c.Label,
			formatValue(c.Value),
			fmt.Sprintf("%.1f%%", c.Share*100),
		})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "%s in %s over the last %dh: total %s from %d records\n",
		view.Flow, view.Zone, view.Hours, formatValue(view.Total), view.Records); err != nil {
		return err
	}
	if view.Stale {
		if _, err := fmt.Fprintf(w, "Warning: computed from stale data fetched at %s\n", view.FetchedAt.Format(time.RFC3339)); err != nil {
			return err
		}
	}
	return nil
}

func writeSeriesTable(w io.Writer, view *insight.SeriesView) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"Time", view.Unit})

	data := make([][]string, 0, len(view.Points))
	for _, p := range view.Points {
		value := "-"
		if p.Valid {
			value = formatValue(p.Value)
		}
		data = append(data, []string{p.Timestamp.UTC().Format("2006-01-02 15:04"), value})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(w, "%s in %s: %d points\n", view.Metric, view.Zone, len(view.Points))
	return err
}
