package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

var envKeys = []string{
	"HOST", "PORT", "LOG_FILE", "LOG_LEVEL", "SHEETS_WEBAPP_URL",
	"NETLIFY_AUTH_TOKEN", "NETLIFY_TOKEN", "NETLIFY_TEAM", "NETLIFY_API_URL",
	"CORS_ORIGIN", "CORS_ALLOWLIST",
	"RATE_LIMIT_BACKEND", "RATE_LIMIT_REQUESTS", "RATE_LIMIT_WINDOW",
	"REDIS_ADDR", "REDIS_PASSWORD",
	"CLOUDFLARE_API_TOKEN", "CLOUDFLARE_ZONE_ID",
}

// clearEnv blanks every variable the loader reads
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Port != DefaultPort {
		t.Errorf("Expected port %d, got %d", DefaultPort, cfg.Port)
	}
	if cfg.RateLimit.Requests != 300 || cfg.RateLimit.Window != 15*time.Minute {
		t.Errorf("Expected 300 requests per 15m, got %d per %s", cfg.RateLimit.Requests, cfg.RateLimit.Window)
	}
	if cfg.RateLimit.Backend != RateLimitMemory {
		t.Errorf("Expected memory backend, got %s", cfg.RateLimit.Backend)
	}
	if cfg.SheetsURL != "" {
		t.Errorf("Expected empty sheets URL, got %q", cfg.SheetsURL)
	}
	if cfg.Cloudflare.Enabled() {
		t.Error("Expected Cloudflare to be disabled by default")
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	clearEnv(t)

	content := `port: 9000
sheets_webapp_url: https://script.google.com/macros/s/abc/exec
netlify:
  token: file-token
  team: my-team
cors:
  allowlist:
    - https://a.example.com
rate_limit:
  requests: 50
  window: 1m
`
	path := filepath.Join(t.TempDir(), "shifttime.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	t.Setenv("NETLIFY_TOKEN", "env-token")
	t.Setenv("CORS_ALLOWLIST", "https://b.example.com, https://c.example.com ,")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Port != 9000 {
		t.Errorf("Expected port 9000 from file, got %d", cfg.Port)
	}
	if cfg.Netlify.Token != "env-token" {
		t.Errorf("Expected env token to override file, got %q", cfg.Netlify.Token)
	}
	if cfg.Netlify.Team != "my-team" {
		t.Errorf("Expected team from file, got %q", cfg.Netlify.Team)
	}
	if cfg.RateLimit.Requests != 50 || cfg.RateLimit.Window != time.Minute {
		t.Errorf("Expected 50 per 1m, got %d per %s", cfg.RateLimit.Requests, cfg.RateLimit.Window)
	}

	expected := []string{"https://b.example.com", "https://c.example.com"}
	if !reflect.DeepEqual(cfg.CORS.AllowList, expected) {
		t.Errorf("Expected allowlist %v, got %v", expected, cfg.CORS.AllowList)
	}
}

func TestLoad_MissingFileIsOptional(t *testing.T) {
	clearEnv(t)

	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err != nil {
		t.Errorf("Expected missing file to be ignored, got %v", err)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("port: [not, a, number"), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Error("Expected parse error for invalid YAML")
	}
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(c *Config)
		message string
	}{
		{"bad port", func(c *Config) { c.Port = 0 }, "port must be between"},
		{"relative sheets url", func(c *Config) { c.SheetsURL = "/exec" }, "sheets_webapp_url"},
		{"explicit cors origin", func(c *Config) { c.CORS.Origin = "https://a.example.com" }, "cors.origin"},
		{"unknown backend", func(c *Config) { c.RateLimit.Backend = "etcd" }, "rate_limit.backend"},
		{"redis without addr", func(c *Config) { c.RateLimit.Backend = RateLimitRedis }, "redis_addr"},
		{"zero window", func(c *Config) { c.RateLimit.Window = 0 }, "rate_limit.window"},
		{"half cloudflare", func(c *Config) { c.Cloudflare.APIToken = "x" }, "cloudflare"},
		{"placeholder token", func(c *Config) { c.Netlify.Token = "changeme" }, "netlify.token"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := New()
			tc.mutate(cfg)

			problems := cfg.Validate()
			if len(problems) == 0 {
				t.Fatal("Expected validation problems")
			}

			found := false
			for _, p := range problems {
				if strings.Contains(p, tc.message) {
					found = true
					break
				}
			}
			if !found {
				t.Errorf("Expected problem containing %q, got %v", tc.message, problems)
			}
		})
	}
}

func TestValidate_DefaultsAreValid(t *testing.T) {
	if problems := New().Validate(); len(problems) > 0 {
		t.Errorf("Expected defaults to be valid, got %v", problems)
	}
}
