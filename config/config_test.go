package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name: "empty addr",
			mutate: func(cfg *Config) {
				cfg.Addr = ""
			},
			wantErr: "listen address",
		},
		{
			name: "unknown backend",
			mutate: func(cfg *Config) {
				cfg.Backend = "selenium"
			},
			wantErr: "backend",
		},
		{
			name: "firecrawl url without host",
			mutate: func(cfg *Config) {
				cfg.FirecrawlBaseURL = "http://"
			},
			wantErr: "firecrawl base URL",
		},
		{
			name: "empty openai url",
			mutate: func(cfg *Config) {
				cfg.OpenAIBaseURL = ""
			},
			wantErr: "openai base URL",
		},
		{
			name: "empty model",
			mutate: func(cfg *Config) {
				cfg.Model = ""
			},
			wantErr: "model",
		},
		{
			name: "temperature too high",
			mutate: func(cfg *Config) {
				cfg.Temperature = 3
			},
			wantErr: "temperature",
		},
		{
			name: "negative timeout",
			mutate: func(cfg *Config) {
				cfg.Timeout = -1 * time.Second
			},
			wantErr: "timeout",
		},
		{
			name: "zero request timeout",
			mutate: func(cfg *Config) {
				cfg.RequestTimeout = 0
			},
			wantErr: "request timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate, got %v", err)
	}
}

func TestCollyBackendSkipsFirecrawlURL(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend = BackendColly
	cfg.FirecrawlBaseURL = ""
	if err := cfg.Validate(); err != nil {
		t.Fatalf("colly backend should not need a firecrawl url, got %v", err)
	}
}

func TestCredentials(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		missing string
	}{
		{
			name:    "firecrawl key missing",
			mutate:  func(cfg *Config) { cfg.OpenAIAPIKey = "sk-test" },
			missing: "FIRECRAWL_API_KEY",
		},
		{
			name:    "openai key missing",
			mutate:  func(cfg *Config) { cfg.FirecrawlAPIKey = "fc-test" },
			missing: "OPENAI_API_KEY",
		},
		{
			name: "colly backend needs only openai",
			mutate: func(cfg *Config) {
				cfg.Backend = BackendColly
				cfg.OpenAIAPIKey = "sk-test"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Credentials()
			if tt.missing == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var missing ErrMissingCredential
			if !errors.As(err, &missing) || missing.Name != tt.missing {
				t.Fatalf("expected missing %s, got %v", tt.missing, err)
			}
			if err.Error() != tt.missing+" is not set" {
				t.Fatalf("message = %q", err.Error())
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dottxt.yaml")
	data := "addr: \":9000\"\nbackend: colly\nmodel: gpt-4o-mini\nrequest_timeout: 45s\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg := DefaultConfig()
	if err := LoadFile(cfg, path); err != nil {
		t.Fatalf("load file: %v", err)
	}
	if cfg.Addr != ":9000" || cfg.Backend != BackendColly || cfg.Model != "gpt-4o-mini" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.RequestTimeout != 45*time.Second {
		t.Fatalf("request timeout = %v, want 45s", cfg.RequestTimeout)
	}
	if cfg.Temperature != 0.3 {
		t.Fatalf("unset fields should keep defaults, temperature = %v", cfg.Temperature)
	}
}
