// Package adapters provides the upstream connectors that retrieve grid
// history payloads for a zone.
//
// Each adapter implements the Adapter interface and returns the raw JSON
// document, normalised to the {"zone": ..., "history": [...]} shape that
// grid.ParseHistory understands. Available adapters:
//   - ElectricityMapsAdapter: the ElectricityMaps v3 history endpoints
//   - HTTPAdapter: any REST API whose history array is reachable by a gjson path
//
// Adapters only fetch and validate. Caching lives in pkg/storage and all
// interpretation of the rows in pkg/series and pkg/insight.
package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/tidwall/gjson"
)

// Adapter fetches the history payload for a zone.
//
// Fetch is synchronous and must respect context cancellation and deadlines.
type Adapter interface {
	Fetch(ctx context.Context, zone string) ([]byte, error)

	// Name returns a short identifier, e.g. "electricitymaps".
	Name() string
}

// maxErrorBody bounds how much of a failed response is quoted in errors.
const maxErrorBody = 1024

func get(ctx context.Context, cli *http.Client, url string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := cli.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("http status %d: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return body, nil
}

// normalize checks that historyPath resolves to an array and returns body
// in canonical form. A body already shaped {"history": [...]} is returned
// untouched.
func normalize(body []byte, historyPath, zone string) ([]byte, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("response is not valid JSON")
	}

	history := gjson.GetBytes(body, historyPath)
	if !history.Exists() {
		return nil, fmt.Errorf("history path %q not found in response", historyPath)
	}
	if !history.IsArray() {
		return nil, fmt.Errorf("history path %q is not an array", historyPath)
	}
	if historyPath == "history" {
		return body, nil
	}

	if z := gjson.GetBytes(body, "zone"); z.Type == gjson.String {
		zone = z.String()
	}
	zoneJSON, err := json.Marshal(zone)
	if err != nil {
		return nil, err
	}
	return []byte(`{"zone":` + string(zoneJSON) + `,"history":` + history.Raw + `}`), nil
}
