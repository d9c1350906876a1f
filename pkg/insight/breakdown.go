package insight

import (
	"context"

	"github.com/ecoaily/gridinsight/pkg/adapters"
	"github.com/ecoaily/gridinsight/pkg/grid"
	"github.com/ecoaily/gridinsight/pkg/policy"
	"github.com/ecoaily/gridinsight/pkg/series"
)

// BreakdownView is a flow aggregated over the last Hours hours.
type BreakdownView struct {
	Flow  grid.Flow `json:"flow"`
	Zone  string    `json:"zone"`
	Hours int       `json:"hours"`
	Freshness

	series.Aggregation
	Contributors []series.Contributor `json:"contributors"`
	// NoData is set when the window holds nothing to show.
	NoData bool `json:"no_data"`
}

// Breakdown sums the per-category contributions of flow over the trailing
// window of hours. hours must be one of series.AllowedHours.
func (e *Engine) Breakdown(ctx context.Context, flow grid.Flow, zone string, hours int) (*BreakdownView, error) {
	if _, err := grid.ParseFlow(string(flow)); err != nil {
		return nil, invalid(err)
	}
	w := series.Window{Hours: hours, Now: e.clock()}
	if err := w.Validate(); err != nil {
		return nil, invalid(err)
	}

	h, fresh, err := e.history(ctx, adapters.DatasetPowerBreakdown, zone)
	if err != nil {
		return nil, err
	}

	agg, err := series.Aggregate(h.Rows, w, flow.BreakdownField(), flow.TotalField())
	if err != nil {
		return nil, err
	}
	if agg.Records == 0 {
		e.logger.Debug("no breakdown records in window", "flow", flow, "zone", zone, "hours", hours)
	}

	contributors := series.Contributors(agg, e.labels)
	return &BreakdownView{
		Flow:         flow,
		Zone:         zone,
		Hours:        hours,
		Freshness:    fresh,
		Aggregation:  agg,
		Contributors: contributors,
		NoData:       len(contributors) == 0,
	}, nil
}

// SeriesView is the raw trailing series of a metric, nulls included.
type SeriesView struct {
	Metric policy.Kind `json:"metric"`
	Zone   string      `json:"zone"`
	Unit   string      `json:"unit"`
	Hours  int         `json:"hours"`
	Freshness

	Points []grid.Point `json:"points"`
}

// Series returns the points of metric in the trailing window of hours.
func (e *Engine) Series(ctx context.Context, metric, zone string, hours int) (*SeriesView, error) {
	p, err := policy.Lookup(metric)
	if err != nil {
		return nil, invalid(err)
	}
	now := e.clock()
	if err := (series.Window{Hours: hours, Now: now}).Validate(); err != nil {
		return nil, invalid(err)
	}

	h, fresh, err := e.history(ctx, p.Dataset, zone)
	if err != nil {
		return nil, err
	}

	points, err := series.Extract(h.Rows, p.Field, series.TrailingWindow(hours, now))
	if err != nil {
		return nil, err
	}

	return &SeriesView{
		Metric:    p.Kind,
		Zone:      zone,
		Unit:      p.Unit,
		Hours:     hours,
		Freshness: fresh,
		Points:    points,
	}, nil
}
