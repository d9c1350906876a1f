// Package insight runs the per-request pipeline behind every dashboard card:
// fetch (through the cache) → extract → classify → label → advise, plus the
// breakdown aggregation used by the production, consumption, import and
// export views.
package insight

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ecoaily/gridinsight/pkg/adapters"
	"github.com/ecoaily/gridinsight/pkg/classify"
	"github.com/ecoaily/gridinsight/pkg/grid"
	"github.com/ecoaily/gridinsight/pkg/storage"
)

var (
	// ErrUpstream marks a failure to obtain history when no cached copy exists.
	ErrUpstream = errors.New("upstream unavailable")
	// ErrInvalidArgument marks a request the caller can fix: unknown metric,
	// bad zone, window or quantity.
	ErrInvalidArgument = errors.New("invalid argument")
)

func invalid(err error) error {
	return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
}

func validateZone(zone string) error {
	if zone == "" || len(zone) > 64 {
		return invalid(fmt.Errorf("zone %q must be 1-64 characters", zone))
	}
	for _, c := range zone {
		if !((c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') ||
			(c >= '0' && c <= '9') || c == '-' || c == '_') {
			return invalid(fmt.Errorf("zone %q: only alphanumeric, hyphens, and underscores allowed", zone))
		}
	}
	return nil
}

// Observer receives pipeline measurements. The dashboard binds it to
// Prometheus collectors.
type Observer interface {
	ObserveFetch(dataset string, d time.Duration, err error)
	ObserveCache(dataset string, hit, stale bool)
	ObserveClassify(metric string, d time.Duration, err error)
	ObserveClasses(metric string, current int, predicted *int)
}

type nopObserver struct{}

func (nopObserver) ObserveFetch(string, time.Duration, error)    {}
func (nopObserver) ObserveCache(string, bool, bool)              {}
func (nopObserver) ObserveClassify(string, time.Duration, error) {}
func (nopObserver) ObserveClasses(string, int, *int)             {}

// Options configures an Engine.
type Options struct {
	// Sources maps an upstream dataset name to its adapter (required).
	Sources map[string]adapters.Adapter
	// Store caches payloads. Defaults to an unbounded MemoryStore.
	Store storage.Store
	// TTL is how long a cached payload is fresh. Defaults to five minutes.
	TTL time.Duration
	// Models holds the classifiers. Defaults to an empty registry.
	Models *classify.Registry
	// Labels formats breakdown categories. Defaults to grid.FormatLabel.
	Labels grid.LabelFormatter
	Clock  storage.Clock
	Logger *slog.Logger
	// Observer defaults to a no-op.
	Observer Observer
}

// Engine is safe for concurrent use; it holds no per-request state.
type Engine struct {
	sources  map[string]adapters.Adapter
	store    storage.Store
	ttl      time.Duration
	models   *classify.Registry
	labels   grid.LabelFormatter
	clock    storage.Clock
	logger   *slog.Logger
	observer Observer
}

// New validates opts and fills in defaults.
func New(opts Options) (*Engine, error) {
	if len(opts.Sources) == 0 {
		return nil, errors.New("insight: at least one source is required")
	}

	e := &Engine{
		sources:  opts.Sources,
		store:    opts.Store,
		ttl:      opts.TTL,
		models:   opts.Models,
		labels:   opts.Labels,
		clock:    opts.Clock,
		logger:   opts.Logger,
		observer: opts.Observer,
	}
	if e.store == nil {
		e.store = storage.NewMemoryStore()
	}
	if e.ttl <= 0 {
		e.ttl = 5 * time.Minute
	}
	if e.models == nil {
		e.models = classify.NewRegistry()
	}
	if e.labels == nil {
		e.labels = grid.FormatLabel
	}
	if e.clock == nil {
		e.clock = time.Now
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.observer == nil {
		e.observer = nopObserver{}
	}
	return e, nil
}

// Freshness describes the payload a view was computed from.
type Freshness struct {
	FetchedAt time.Time `json:"fetched_at"`
	Stale     bool      `json:"stale"`
}

// Warm refreshes the cache for dataset and zone.
func (e *Engine) Warm(ctx context.Context, dataset, zone string) (Freshness, error) {
	_, f, err := e.history(ctx, dataset, zone)
	return f, err
}

// Datasets lists the configured upstream datasets.
func (e *Engine) Datasets() []string {
	out := make([]string, 0, len(e.sources))
	for name := range e.sources {
		out = append(out, name)
	}
	return out
}

func (e *Engine) history(ctx context.Context, dataset, zone string) (*grid.History, Freshness, error) {
	if err := validateZone(zone); err != nil {
		return nil, Freshness{}, err
	}
	src, ok := e.sources[dataset]
	if !ok {
		return nil, Freshness{}, fmt.Errorf("no source configured for dataset %q", dataset)
	}

	key := storage.Key{Dataset: dataset, Zone: zone}
	fetch := func(ctx context.Context) ([]byte, error) {
		start := time.Now()
		body, err := src.Fetch(ctx, zone)
		e.observer.ObserveFetch(dataset, time.Since(start), err)
		return body, err
	}

	res, err := storage.GetOrFetch(ctx, e.store, key, e.ttl, e.clock, fetch)
	if err != nil {
		return nil, Freshness{}, fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	e.observer.ObserveCache(dataset, res.Hit && !res.Stale, res.Stale)

	if res.Stale {
		e.logger.Warn("serving stale history", "dataset", dataset, "zone", zone,
			"age", res.Age(e.clock()).String(), "error", res.FetchErr)
	}
	if res.StoreErr != nil {
		e.logger.Warn("history cache unavailable", "dataset", dataset, "zone", zone, "error", res.StoreErr)
	}

	h, err := grid.ParseHistory(res.Body)
	if err != nil {
		return nil, Freshness{}, fmt.Errorf("parse %s history: %w", dataset, err)
	}
	return h, Freshness{FetchedAt: res.FetchedAt, Stale: res.Stale}, nil
}
