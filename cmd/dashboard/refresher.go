// Package main implements the dashboard's background refresh loop.
//
// The Refresher keeps the history cache warm and pushes freshly computed
// views to websocket subscribers:
//
//	warm datasets → insight per metric → breakdown per flow → publish
//
// It runs continuously via Run(), executing Tick() at regular intervals. A
// failure for one zone, metric or flow is published as an error message on
// the subject's error topic, leaving its last good view in place, and does
// not stop the rest of the tick.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ecoaily/gridinsight/cmd/dashboard/metrics"
	"github.com/ecoaily/gridinsight/pkg/grid"
	"github.com/ecoaily/gridinsight/pkg/insight"
	"github.com/ecoaily/gridinsight/pkg/policy"
	"github.com/ecoaily/gridinsight/pkg/stream"
)

// breakdownHours is the window pushed to subscribers.
const breakdownHours = 24

// Refresher periodically recomputes every view for a set of zones.
type Refresher struct {
	engine   *insight.Engine
	hub      *stream.Hub
	zones    []string
	quantity float64
	logger   *slog.Logger
	metrics  *metrics.Metrics

	mu          sync.RWMutex
	lastSuccess time.Time
}

// NewRefresher creates a Refresher. hub and m may be nil.
func NewRefresher(engine *insight.Engine, hub *stream.Hub, zones []string, quantity float64, logger *slog.Logger, m *metrics.Metrics) *Refresher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Refresher{
		engine:   engine,
		hub:      hub,
		zones:    zones,
		quantity: quantity,
		logger:   logger,
		metrics:  m,
	}
}

// Run executes the refresh loop at regular intervals.
// Blocks until context is canceled.
func (r *Refresher) Run(ctx context.Context, interval time.Duration) error {
	r.logger.Info("starting refresh loop", "interval", interval, "zones", r.zones)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if err := r.Tick(ctx); err != nil {
		r.logger.Error("initial refresh tick failed", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("refresh loop stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := r.Tick(ctx); err != nil {
				r.logger.Error("refresh tick failed", "error", err)
			}
		}
	}
}

// Tick performs one refresh cycle over every zone. The returned error joins
// all failures of the cycle; it is nil only when everything succeeded.
func (r *Refresher) Tick(ctx context.Context) error {
	start := time.Now()
	r.logger.Debug("starting refresh tick")

	var errs []error
	published := 0
	for _, zone := range r.zones {
		n, err := r.refreshZone(ctx, zone)
		published += n
		if err != nil {
			errs = append(errs, fmt.Errorf("zone %s: %w", zone, err))
		}
	}

	if published > 0 {
		r.mu.Lock()
		r.lastSuccess = time.Now()
		r.mu.Unlock()
	}

	duration := time.Since(start)
	if r.metrics != nil {
		r.metrics.RecordRefresh(duration.Seconds())
	}

	r.logger.Info("refresh tick complete",
		"zones", len(r.zones),
		"published", published,
		"failures", len(errs),
		"total_ms", duration.Milliseconds(),
	)

	return errors.Join(errs...)
}

// refreshZone returns how many views were published for zone.
func (r *Refresher) refreshZone(ctx context.Context, zone string) (int, error) {
	var errs []error

	for _, dataset := range r.engine.Datasets() {
		fresh, err := r.engine.Warm(ctx, dataset, zone)
		if err != nil {
			r.fail("warm_failed", dataset, zone, err)
			errs = append(errs, fmt.Errorf("warm %s: %w", dataset, err))
			continue
		}
		if fresh.Stale {
			r.logger.Warn("refresh served stale history", "dataset", dataset, "zone", zone, "fetched_at", fresh.FetchedAt)
		}
	}

	published := 0
	for _, kind := range policy.Kinds {
		in, err := r.engine.Insight(ctx, string(kind), zone, r.quantity)
		if err != nil {
			r.fail("insight_failed", string(kind), zone, err)
			errs = append(errs, fmt.Errorf("insight %s: %w", kind, err))
			continue
		}
		if r.publish(stream.TypeInsight, stream.Topic(string(kind), zone), in) {
			published++
		}
	}

	for _, flow := range grid.Flows {
		view, err := r.engine.Breakdown(ctx, flow, zone, breakdownHours)
		if err != nil {
			r.fail("breakdown_failed", string(flow), zone, err)
			errs = append(errs, fmt.Errorf("breakdown %s: %w", flow, err))
			continue
		}
		if r.publish(stream.TypeBreakdown, stream.Topic(string(flow), zone), view) {
			published++
		}
	}

	return published, errors.Join(errs...)
}

func (r *Refresher) publish(msgType, topic string, payload any) bool {
	if r.hub == nil {
		return true
	}
	if err := r.hub.Publish(msgType, topic, payload); err != nil {
		r.logger.Error("failed to publish", "type", msgType, "topic", topic, "error", err)
		if r.metrics != nil {
			r.metrics.RecordError("stream", "encode_failed")
		}
		return false
	}
	return true
}

func (r *Refresher) fail(reason, source, zone string, err error) {
	if r.metrics != nil {
		r.metrics.RecordError("refresher", reason)
	}
	r.logger.Warn("refresh step failed", "reason", reason, "source", source, "zone", zone, "error", err)
	r.publish(stream.TypeError, stream.ErrorTopic(source, zone), stream.ErrorPayload{
		Source: source,
		Zone:   zone,
		Error:  err.Error(),
	})
}

// Healthy reports an error until one tick has published something.
func (r *Refresher) Healthy() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.lastSuccess.IsZero() {
		return errors.New("no successful refresh yet")
	}
	return nil
}

// LastSuccess is the end of the last tick that published a view.
func (r *Refresher) LastSuccess() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastSuccess
}
