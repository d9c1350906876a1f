package classify

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/ecoaily/gridinsight/pkg/grid"
)

// Artifact is the JSON file produced offline for one metric.
type Artifact struct {
	Metric   string     `json:"metric"`
	Labeling ScalerSpec `json:"labeling"`
	Scaler   ScalerSpec `json:"scaler"`
	// Network may be omitted when inference is delegated to a remote service.
	Network *Network `json:"network,omitempty"`
}

// Model bundles what the insight pipeline needs for one metric.
type Model struct {
	Metric     string
	Labeling   Scaler
	Main       Scaler
	Classifier Classifier
}

// LoadModel reads an artifact from path. When remote is non-nil it serves
// inference and the artifact only has to carry the scalers. Every failure is
// reported as a *grid.ClassifierUnavailableError.
func LoadModel(path, metric string, remote Classifier) (*Model, error) {
	m, err := loadModel(path, metric, remote)
	if err != nil {
		return nil, &grid.ClassifierUnavailableError{Metric: metric, Err: err}
	}
	return m, nil
}

func loadModel(path, metric string, remote Classifier) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}

	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("decode artifact %s: %w", path, err)
	}
	if a.Metric != "" && a.Metric != metric {
		return nil, fmt.Errorf("artifact %s is for metric %q", path, a.Metric)
	}

	labeling, err := a.Labeling.Build()
	if err != nil {
		return nil, fmt.Errorf("labeling: %w", err)
	}
	main, err := a.Scaler.Build()
	if err != nil {
		return nil, fmt.Errorf("scaler: %w", err)
	}

	m := &Model{Metric: metric, Labeling: labeling, Main: main, Classifier: remote}
	if remote == nil {
		nc, err := NewNetworkClassifier(a.Network)
		if err != nil {
			return nil, fmt.Errorf("network: %w", err)
		}
		m.Classifier = nc
	}
	return m, nil
}

// ArtifactPath is where the artifact for metric lives under dir.
func ArtifactPath(dir, metric string) string {
	return filepath.Join(dir, metric+".json")
}

// Registry holds the loaded model, or the load failure, per metric.
type Registry struct {
	mu     sync.RWMutex
	models map[string]*Model
	errs   map[string]error
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		models: make(map[string]*Model),
		errs:   make(map[string]error),
	}
}

// LoadRegistry loads one artifact per metric from dir. A metric whose
// artifact fails to load is recorded as unavailable and logged; it does not
// fail the whole registry. remote, when non-nil, builds the remote
// classifier for a metric.
func LoadRegistry(dir string, metrics []string, remote func(metric string) Classifier, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}

	r := NewRegistry()
	for _, metric := range metrics {
		var rc Classifier
		if remote != nil {
			rc = remote(metric)
		}
		m, err := LoadModel(ArtifactPath(dir, metric), metric, rc)
		if err != nil {
			logger.Warn("classifier unavailable, prediction disabled", "metric", metric, "error", err)
			r.SetUnavailable(metric, err)
			continue
		}
		logger.Info("classifier loaded", "metric", metric, "remote", remote != nil)
		r.Set(metric, m)
	}
	return r
}

// Set registers m for metric.
func (r *Registry) Set(metric string, m *Model) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.models[metric] = m
	delete(r.errs, metric)
}

// SetUnavailable records why metric has no model.
func (r *Registry) SetUnavailable(metric string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.models, metric)
	r.errs[metric] = err
}

// Get returns the model for metric or a *grid.ClassifierUnavailableError.
func (r *Registry) Get(metric string) (*Model, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if m, ok := r.models[metric]; ok {
		return m, nil
	}
	if err, ok := r.errs[metric]; ok {
		if _, wrapped := err.(*grid.ClassifierUnavailableError); wrapped {
			return nil, err
		}
		return nil, &grid.ClassifierUnavailableError{Metric: metric, Err: err}
	}
	return nil, &grid.ClassifierUnavailableError{Metric: metric, Err: fmt.Errorf("no artifact registered")}
}
