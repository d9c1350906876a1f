package adapters

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// New creates an adapter based on kind and generic configuration map.
//
// Supported kinds:
//   - "electricitymaps": keys dataset (required), url, apiKey, timeout
//   - "http": keys url (required), historyPath, headers (JSON), templateVars (JSON), timeout;
//     a dataset key is exposed to the templates as {{.Dataset}}
//
// Returns error if kind is unknown or required fields are missing.
func New(kind string, config map[string]string) (Adapter, error) {
	switch kind {
	case "electricitymaps":
		return newElectricityMaps(config)
	case "http":
		return newHTTP(config)
	default:
		return nil, fmt.Errorf("unknown adapter kind: %s (must be electricitymaps or http)", kind)
	}
}

func newElectricityMaps(config map[string]string) (Adapter, error) {
	dataset := config["dataset"]
	switch dataset {
	case DatasetCarbonIntensity, DatasetPowerBreakdown:
	case "":
		return nil, fmt.Errorf("electricitymaps adapter requires 'dataset' config")
	default:
		return nil, fmt.Errorf("unknown electricitymaps dataset %q (must be %s or %s)", dataset, DatasetCarbonIntensity, DatasetPowerBreakdown)
	}

	url := config["url"]
	if url == "" {
		url = DefaultElectricityMapsURL
	}

	cli, err := clientFromConfig(config)
	if err != nil {
		return nil, err
	}

	return &ElectricityMapsAdapter{
		BaseURL:    url,
		Dataset:    dataset,
		APIKey:     config["apiKey"],
		HTTPClient: cli,
	}, nil
}

func newHTTP(config map[string]string) (Adapter, error) {
	url := config["url"]
	if url == "" {
		return nil, fmt.Errorf("http adapter requires 'url' config")
	}

	var headers map[string]string
	if headersJSON := config["headers"]; headersJSON != "" {
		if err := json.Unmarshal([]byte(headersJSON), &headers); err != nil {
			return nil, fmt.Errorf("invalid 'headers' JSON: %w", err)
		}
	}

	var templateVars map[string]string
	if varsJSON := config["templateVars"]; varsJSON != "" {
		if err := json.Unmarshal([]byte(varsJSON), &templateVars); err != nil {
			return nil, fmt.Errorf("invalid 'templateVars' JSON: %w", err)
		}
	}
	if dataset := config["dataset"]; dataset != "" {
		if templateVars == nil {
			templateVars = make(map[string]string, 1)
		}
		templateVars["Dataset"] = dataset
	}

	cli, err := clientFromConfig(config)
	if err != nil {
		return nil, err
	}

	a := &HTTPAdapter{
		URL:          url,
		Headers:      headers,
		HistoryPath:  config["historyPath"],
		HTTPClient:   cli,
		TemplateVars: templateVars,
	}
	if err := a.ValidateConfig(); err != nil {
		return nil, err
	}
	return a, nil
}

func clientFromConfig(config map[string]string) (*http.Client, error) {
	timeout := 10 * time.Second
	if v := config["timeout"]; v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid 'timeout' %q", v)
		}
		timeout = d
	}
	return &http.Client{Timeout: timeout}, nil
}
