package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ecoaily/gridinsight/pkg/policy"
)

// RemoteClassifier delegates inference to an external HTTP model service.
// The service receives the scaled window and answers with either a class or
// the per-class probabilities.
type RemoteClassifier struct {
	endpoint string
	metric   string
	client   *http.Client
}

type remoteRequest struct {
	Metric string    `json:"metric"`
	Window []float64 `json:"window"`
}

type remoteResponse struct {
	Class         *int      `json:"class"`
	Probabilities []float64 `json:"probabilities"`
}

// NewRemoteClassifier creates a classifier backed by the service at endpoint.
func NewRemoteClassifier(endpoint, metric string, timeout time.Duration) *RemoteClassifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RemoteClassifier{
		endpoint: endpoint,
		metric:   metric,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				IdleConnTimeout:     90 * time.Second,
				MaxIdleConnsPerHost: 2,
			},
		},
	}
}

// Name returns the classifier identifier.
func (c *RemoteClassifier) Name() string {
	return "byom"
}

// Classify posts the window and decodes the service answer.
func (c *RemoteClassifier) Classify(ctx context.Context, w Window) (int, error) {
	body, err := json.Marshal(remoteRequest{Metric: c.metric, Window: w[:]})
	if err != nil {
		return 0, fmt.Errorf("byom: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("byom: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("byom: http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return 0, fmt.Errorf("byom: http %d: %s", resp.StatusCode, string(msg))
	}

	var out remoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("byom: decode response: %w", err)
	}

	switch {
	case out.Class != nil:
		return *out.Class, nil
	case len(out.Probabilities) == policy.NumClasses:
		return Argmax(out.Probabilities), nil
	case len(out.Probabilities) > 0:
		return 0, fmt.Errorf("byom: expected %d probabilities, got %d", policy.NumClasses, len(out.Probabilities))
	default:
		return 0, fmt.Errorf("byom: response has neither class nor probabilities")
	}
}
