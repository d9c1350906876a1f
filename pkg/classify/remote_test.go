package classify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestRemoteClassifier_Name(t *testing.T) {
	c := NewRemoteClassifier("http://localhost:8082/classify", "carbon-intensity", 0)
	if c.Name() != "byom" {
		t.Errorf("expected name 'byom', got %q", c.Name())
	}
}

func TestRemoteClassifier_Class(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("expected Content-Type application/json, got %s", r.Header.Get("Content-Type"))
		}

		var req remoteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if req.Metric != "carbon-intensity" {
			t.Errorf("expected metric carbon-intensity, got %q", req.Metric)
		}
		if len(req.Window) != WindowSize {
			t.Errorf("expected %d window values, got %d", WindowSize, len(req.Window))
		}
		if req.Window[WindowSize-1] != 23 {
			t.Errorf("expected newest value last, got %v", req.Window[WindowSize-1])
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"class": 2}`))
	}))
	defer server.Close()

	var win Window
	for i := range win {
		win[i] = float64(i)
	}

	c := NewRemoteClassifier(server.URL, "carbon-intensity", time.Second)
	class, err := c.Classify(context.Background(), win)
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if class != 2 {
		t.Errorf("expected class 2, got %d", class)
	}
}

func TestRemoteClassifier_Probabilities(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"probabilities": [0.05, 0.1, 0.1, 0.05, 0.6, 0.1]}`))
	}))
	defer server.Close()

	c := NewRemoteClassifier(server.URL, "renewable-percentage", time.Second)
	class, err := c.Classify(context.Background(), Window{})
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if class != 4 {
		t.Errorf("expected class 4, got %d", class)
	}
}

func TestRemoteClassifier_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{name: "server error", status: http.StatusInternalServerError, body: "model crashed", want: "http 500"},
		{name: "bad json", status: http.StatusOK, body: "{", want: "decode response"},
		{name: "empty answer", status: http.StatusOK, body: "{}", want: "neither class nor probabilities"},
		{name: "wrong probability count", status: http.StatusOK, body: `{"probabilities": [1, 0]}`, want: "expected 6 probabilities"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			c := NewRemoteClassifier(server.URL, "carbon-intensity", time.Second)
			_, err := c.Classify(context.Background(), Window{})
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestRemoteClassifier_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`{"class": 1}`))
	}))
	defer server.Close()

	c := NewRemoteClassifier(server.URL, "carbon-intensity", 50*time.Millisecond)
	if _, err := c.Classify(context.Background(), Window{}); err == nil {
		t.Fatal("expected timeout error")
	}
}
