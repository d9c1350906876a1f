package adapters

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultElectricityMapsURL is the public v3 API.
const DefaultElectricityMapsURL = "https://api.electricitymap.org/v3"

// ElectricityMaps datasets with a /history endpoint.
const (
	DatasetCarbonIntensity = "carbon-intensity"
	DatasetPowerBreakdown  = "power-breakdown"
)

// ElectricityMapsAdapter fetches the last 24 hours of one dataset:
//
//	GET {BaseURL}/{Dataset}/history?zone={zone}
//	auth-token: {APIKey}
type ElectricityMapsAdapter struct {
	// BaseURL defaults to DefaultElectricityMapsURL.
	BaseURL string

	// Dataset is DatasetCarbonIntensity or DatasetPowerBreakdown (required).
	Dataset string

	// APIKey is sent in the auth-token header when set.
	APIKey string

	// HTTPClient is optional; if nil a client with a 10s timeout is used.
	HTTPClient *http.Client
}

func (e *ElectricityMapsAdapter) Name() string { return "electricitymaps" }

// Fetch implements Adapter.
func (e *ElectricityMapsAdapter) Fetch(ctx context.Context, zone string) ([]byte, error) {
	if e.Dataset == "" {
		return nil, errors.New("electricitymaps adapter: Dataset is required")
	}
	if zone == "" {
		return nil, errors.New("electricitymaps adapter: zone is required")
	}

	base := e.BaseURL
	if base == "" {
		base = DefaultElectricityMapsURL
	}
	endpoint := fmt.Sprintf("%s/%s/history?%s",
		strings.TrimRight(base, "/"), e.Dataset, url.Values{"zone": {zone}}.Encode())

	cli := e.HTTPClient
	if cli == nil {
		cli = &http.Client{Timeout: 10 * time.Second}
	}

	var headers map[string]string
	if e.APIKey != "" {
		headers = map[string]string{"auth-token": e.APIKey}
	}

	body, err := get(ctx, cli, endpoint, headers)
	if err != nil {
		return nil, fmt.Errorf("electricitymaps %s: %w", e.Dataset, err)
	}
	body, err = normalize(body, "history", zone)
	if err != nil {
		return nil, fmt.Errorf("electricitymaps %s: %w", e.Dataset, err)
	}
	return body, nil
}
