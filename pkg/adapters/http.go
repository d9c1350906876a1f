package adapters

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"text/template"
	"time"
)

// HTTPAdapter is a generic adapter for history APIs other than
// ElectricityMaps, e.g. a mirror or a recorded fixture server.
//
// It supports:
//   - URL and header templates with the variables {{.Zone}}, {{.Now}} and
//     any TemplateVars
//   - a gjson HistoryPath locating the array of history objects
//
// Example configuration for a mirror that nests the payload:
//
//	adapter := &HTTPAdapter{
//	    URL: "https://grid-mirror.example.com/zones/{{.Zone}}/carbon",
//	    Headers: map[string]string{"Authorization": "Bearer {{.Token}}"},
//	    HistoryPath: "data.history",
//	    TemplateVars: map[string]string{"Token": "secret"},
//	}
type HTTPAdapter struct {
	// URL is the endpoint template (required).
	URL string

	// Headers are custom HTTP headers. Values can use template variables.
	Headers map[string]string

	// HistoryPath is the gjson path to the history array. Defaults to "history".
	HistoryPath string

	// HTTPClient is optional; if nil a default client with timeout is used.
	HTTPClient *http.Client

	// TemplateVars are custom variables available in URL and Headers templates.
	TemplateVars map[string]string
}

func (h *HTTPAdapter) Name() string { return "http" }

// Fetch implements Adapter.
func (h *HTTPAdapter) Fetch(ctx context.Context, zone string) ([]byte, error) {
	if err := h.ValidateConfig(); err != nil {
		return nil, fmt.Errorf("http adapter: %w", err)
	}

	templateData := map[string]any{
		"Zone": url.QueryEscape(zone),
		"Now":  time.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range h.TemplateVars {
		templateData[k] = v
	}

	endpoint, err := renderTemplate(h.URL, templateData)
	if err != nil {
		return nil, fmt.Errorf("render url template: %w", err)
	}

	headers := make(map[string]string, len(h.Headers))
	for key, value := range h.Headers {
		rendered, err := renderTemplate(value, templateData)
		if err != nil {
			return nil, fmt.Errorf("render header %s: %w", key, err)
		}
		headers[key] = rendered
	}

	cli := h.HTTPClient
	if cli == nil {
		cli = &http.Client{Timeout: 10 * time.Second}
	}

	body, err := get(ctx, cli, endpoint, headers)
	if err != nil {
		return nil, err
	}
	return normalize(body, h.historyPath(), zone)
}

func (h *HTTPAdapter) historyPath() string {
	if h.HistoryPath == "" {
		return "history"
	}
	return h.HistoryPath
}

// renderTemplate renders a text template with the given data
func renderTemplate(tmplStr string, data map[string]any) (string, error) {
	if !strings.Contains(tmplStr, "{{") {
		return tmplStr, nil
	}

	tmpl, err := template.New("").Option("missingkey=error").Parse(tmplStr)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}

	return buf.String(), nil
}

// ValidateConfig checks if the adapter configuration is valid
func (h *HTTPAdapter) ValidateConfig() error {
	if h.URL == "" {
		return errors.New("url is required")
	}
	if _, err := template.New("").Parse(h.URL); err != nil {
		return fmt.Errorf("invalid url template: %w", err)
	}
	return nil
}
