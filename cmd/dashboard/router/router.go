// Package router configures the dashboard's HTTP API.
//
// Routes configured:
//   - GET /api/insights/{metric}?zone=&quantity= - current and predicted classes with advice
//   - GET /api/breakdown/{flow}?zone=&hours=     - production, consumption, import or export mix
//   - GET /api/series/{metric}?zone=&hours=      - raw trailing series for charts
//   - GET /ws                                    - websocket feed of refreshed insights
//   - GET /healthz                               - health check
//   - GET /metrics                               - Prometheus metrics
//
// Responses computed from a stale cached payload carry an
// X-Gridinsight-Stale header.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/handlers"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ecoaily/gridinsight/pkg/grid"
	"github.com/ecoaily/gridinsight/pkg/httpx"
	"github.com/ecoaily/gridinsight/pkg/insight"
	"github.com/ecoaily/gridinsight/pkg/stream"
)

// StaleHeader is set on responses served from an expired cache entry.
const StaleHeader = "X-Gridinsight-Stale"

// Options configures SetupRoutes.
type Options struct {
	Engine *insight.Engine
	// Hub serves /ws when set.
	Hub         *stream.Hub
	DefaultZone string
	// DefaultQuantity is used as given when a request has no quantity;
	// zero is a valid quantity.
	DefaultQuantity float64
	// Timeout bounds each API request. Defaults to 15s.
	Timeout     time.Duration
	CORSOrigins []string
	// Health backs /healthz. Nil always reports healthy.
	Health func() error
	Logger *slog.Logger
}

// SetupRoutes returns the dashboard handler with middleware applied.
func SetupRoutes(opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.Health == nil {
		opts.Health = func() error { return nil }
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}

	h := &api{opts: opts}
	mux := http.NewServeMux()

	mux.Handle("GET /healthz", httpx.HealthHandlerWithCheck(opts.Health))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /api/insights/{metric}", h.getInsight)
	mux.HandleFunc("GET /api/breakdown/{flow}", h.getBreakdown)
	mux.HandleFunc("GET /api/series/{metric}", h.getSeries)
	if opts.Hub != nil {
		mux.Handle("GET /ws", stream.NewHandler(opts.Hub))
	}

	var handler http.Handler = mux
	handler = httpx.RecoveryMiddleware(opts.Logger)(handler)
	handler = httpx.LoggingMiddleware(opts.Logger)(handler)
	handler = httpx.RequestIDMiddleware(handler)
	handler = handlers.CORS(
		handlers.AllowedOrigins(opts.CORSOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", httpx.RequestIDHeader}),
		handlers.ExposedHeaders([]string{StaleHeader, httpx.RequestIDHeader}),
	)(handler)
	return handler
}

type api struct {
	opts Options
}

func (a *api) zone(r *http.Request) string {
	if zone := r.URL.Query().Get("zone"); zone != "" {
		return zone
	}
	return a.opts.DefaultZone
}

func (a *api) getInsight(w http.ResponseWriter, r *http.Request) {
	quantity := a.opts.DefaultQuantity
	if raw := r.URL.Query().Get("quantity"); raw != "" {
		q, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			httpx.WriteErrorMessage(w, http.StatusBadRequest, fmt.Sprintf("invalid quantity %q", raw))
			return
		}
		quantity = q
	}

	ctx, cancel := context.WithTimeout(r.Context(), a.opts.Timeout)
	defer cancel()

	in, err := a.opts.Engine.Insight(ctx, r.PathValue("metric"), a.zone(r), quantity)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, in.Stale, in)
}

func (a *api) getBreakdown(w http.ResponseWriter, r *http.Request) {
	flow, err := grid.ParseFlow(r.PathValue("flow"))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err)
		return
	}
	hours, ok := a.hours(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), a.opts.Timeout)
	defer cancel()

	view, err := a.opts.Engine.Breakdown(ctx, flow, a.zone(r), hours)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, view.Stale, view)
}

func (a *api) getSeries(w http.ResponseWriter, r *http.Request) {
	hours, ok := a.hours(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), a.opts.Timeout)
	defer cancel()

	view, err := a.opts.Engine.Series(ctx, r.PathValue("metric"), a.zone(r), hours)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, view.Stale, view)
}

// hours reads the window size, 24 when absent.
func (a *api) hours(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("hours")
	if raw == "" {
		return 24, true
	}
	hours, err := strconv.Atoi(raw)
	if err != nil {
		httpx.WriteErrorMessage(w, http.StatusBadRequest, fmt.Sprintf("invalid hours %q", raw))
		return 0, false
	}
	return hours, true
}

func (a *api) writeJSON(w http.ResponseWriter, stale bool, v any) {
	if stale {
		w.Header().Set(StaleHeader, "true")
	}
	if err := httpx.WriteJSON(w, http.StatusOK, v); err != nil {
		a.opts.Logger.Error("failed to write JSON response", "error", err)
	}
}

func (a *api) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		a.opts.Logger.Error("request failed",
			"path", r.URL.Path,
			"status", status,
			"request_id", httpx.RequestID(r.Context()),
			"error", err,
		)
	}

	switch {
	case status == http.StatusInternalServerError:
		httpx.WriteErrorMessage(w, status, "internal server error")
	case status == http.StatusNotFound:
		httpx.WriteErrorMessage(w, status, "data unavailable for this metric: "+err.Error())
	default:
		httpx.WriteError(w, status, err)
	}
}

// StatusFor maps an insight pipeline error to an HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, insight.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, grid.ErrMissingField), errors.Is(err, grid.ErrInsufficientData):
		return http.StatusNotFound
	case errors.Is(err, insight.ErrUpstream), errors.Is(err, grid.ErrMalformedRecord):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
