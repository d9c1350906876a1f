package config

import (
	"flag"
	"os"
	"testing"
	"time"
)

func resetFlags(args ...string) {
	flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	os.Args = append([]string{"cmd"}, args...)
}

func TestGetEnv(t *testing.T) {
	t.Setenv("GRIDINSIGHT_TEST_VAR", "from-env")

	if got := getEnv("GRIDINSIGHT_TEST_VAR", "default"); got != "from-env" {
		t.Errorf("getEnv() = %q, want from-env", got)
	}
	if got := getEnv("GRIDINSIGHT_UNSET_VAR", "default"); got != "default" {
		t.Errorf("getEnv() = %q, want default", got)
	}
}

func TestGetEnvTyped(t *testing.T) {
	t.Setenv("TEST_INT", "7")
	t.Setenv("TEST_BAD_INT", "seven")
	t.Setenv("TEST_FLOAT", "42.5")
	t.Setenv("TEST_DURATION", "90s")
	t.Setenv("TEST_BOOL", "1")

	if got := getEnvInt("TEST_INT", 0); got != 7 {
		t.Errorf("getEnvInt() = %d, want 7", got)
	}
	if got := getEnvInt("TEST_BAD_INT", 3); got != 3 {
		t.Errorf("getEnvInt() with invalid value = %d, want 3", got)
	}
	if got := getEnvFloat("TEST_FLOAT", 0); got != 42.5 {
		t.Errorf("getEnvFloat() = %v, want 42.5", got)
	}
	if got := getEnvDuration("TEST_DURATION", 0); got != 90*time.Second {
		t.Errorf("getEnvDuration() = %v, want 90s", got)
	}
	if got := getEnvBool("TEST_BOOL", false); !got {
		t.Error("getEnvBool() = false, want true")
	}
}

func TestConfig_Defaults(t *testing.T) {
	resetFlags()

	cfg := ParseFlags()

	if cfg.Listen != ":8080" {
		t.Errorf("Listen = %q, want :8080", cfg.Listen)
	}
	if cfg.GRPCListen != ":50051" {
		t.Errorf("GRPCListen = %q, want :50051", cfg.GRPCListen)
	}
	if cfg.CacheTTL != 5*time.Minute {
		t.Errorf("CacheTTL = %v, want 5m", cfg.CacheTTL)
	}
	if cfg.Zone != "PT" {
		t.Errorf("Zone = %q, want PT", cfg.Zone)
	}
	if len(cfg.Zones) != 1 || cfg.Zones[0] != "PT" {
		t.Errorf("Zones = %v, want [PT]", cfg.Zones)
	}
	if cfg.Quantity != 100 {
		t.Errorf("Quantity = %v, want 100", cfg.Quantity)
	}
	if cfg.Classifier != "local" {
		t.Errorf("Classifier = %q, want local", cfg.Classifier)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestConfig_CustomValues(t *testing.T) {
	t.Setenv("ZONE", "ES")
	t.Setenv("ADAPTER_HISTORY_PATH", "data.history")
	resetFlags(
		"-listen=:9090",
		"-zones=PT, ES,FR",
		"-storage=redis",
		"-cache-ttl=1m",
		"-classifier=byom",
		"-byom-url=http://model:8000/classify",
		"-api-key=secret",
	)

	cfg := ParseFlags()

	if cfg.Listen != ":9090" {
		t.Errorf("Listen = %q, want :9090", cfg.Listen)
	}
	if cfg.Zone != "ES" {
		t.Errorf("Zone = %q, want ES", cfg.Zone)
	}
	if len(cfg.Zones) != 3 || cfg.Zones[1] != "ES" {
		t.Errorf("Zones = %v", cfg.Zones)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	settings := cfg.AdapterSettings("power-breakdown")
	want := map[string]string{
		"dataset":     "power-breakdown",
		"apiKey":      "secret",
		"timeout":     "10s",
		"historyPath": "data.history",
	}
	for k, v := range want {
		if settings[k] != v {
			t.Errorf("AdapterSettings[%s] = %q, want %q", k, settings[k], v)
		}
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Storage:         "memory",
			CacheTTL:        5 * time.Minute,
			CacheRetention:  time.Hour,
			RequestTimeout:  10 * time.Second,
			RefreshInterval: time.Minute,
			Zone:            "PT",
			Zones:           []string{"PT"},
			Quantity:        100,
			Classifier:      "local",
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown storage", func(c *Config) { c.Storage = "sqlite" }},
		{"unknown classifier", func(c *Config) { c.Classifier = "onnx" }},
		{"byom without url", func(c *Config) { c.Classifier = "byom" }},
		{"zero ttl", func(c *Config) { c.CacheTTL = 0 }},
		{"retention shorter than ttl", func(c *Config) { c.CacheRetention = time.Minute }},
		{"negative refresh", func(c *Config) { c.RefreshInterval = -time.Second }},
		{"bad zone", func(c *Config) { c.Zones = []string{"PT", "ES/../x"} }},
		{"quantity out of range", func(c *Config) { c.Quantity = 10001 }},
		{"tls without files", func(c *Config) { c.TLS.Enabled = true; c.TLS.CertFile = "/nonexistent.pem" }},
	}

	if err := valid().Validate(); err != nil {
		t.Fatalf("baseline config invalid: %v", err)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}

func TestParseAdapterConfig(t *testing.T) {
	got := parseAdapterConfig([]string{
		"ADAPTER=http",
		"ADAPTER_URL=https://mirror.example.com",
		"ADAPTER_TEMPLATE_VARS={\"Token\":\"x\"}",
		"PATH=/usr/bin",
	})

	if len(got) != 2 {
		t.Fatalf("got %v, want 2 keys", got)
	}
	if got["url"] != "https://mirror.example.com" {
		t.Errorf("url = %q", got["url"])
	}
	if got["templateVars"] != `{"Token":"x"}` {
		t.Errorf("templateVars = %q", got["templateVars"])
	}
}
