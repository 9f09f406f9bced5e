package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	BackendFirecrawl = "firecrawl"
	BackendColly     = "colly"
)

// Config holds server and pipeline configuration.
type Config struct {
	Addr             string        `yaml:"addr"`
	MetricsAddr      string        `yaml:"metrics_addr"`
	Backend          string        `yaml:"backend"`
	FirecrawlAPIKey  string        `yaml:"firecrawl_api_key"`
	FirecrawlBaseURL string        `yaml:"firecrawl_base_url"`
	OpenAIAPIKey     string        `yaml:"openai_api_key"`
	OpenAIBaseURL    string        `yaml:"openai_base_url"`
	Model            string        `yaml:"model"`
	Temperature      float32       `yaml:"temperature"`
	Timeout          time.Duration `yaml:"timeout"`
	RequestTimeout   time.Duration `yaml:"request_timeout"`
	UserAgent        string        `yaml:"user_agent"`
	Verbose          bool          `yaml:"verbose"`
}

// DefaultConfig returns defaults matching the hosted deployment.
func DefaultConfig() *Config {
	return &Config{
		Addr:             ":8080",
		MetricsAddr:      "",
		Backend:          BackendFirecrawl,
		FirecrawlBaseURL: "https://api.firecrawl.dev",
		OpenAIBaseURL:    "https://api.openai.com/v1",
		Model:            "gpt-4-turbo-preview",
		Temperature:      0.3,
		Timeout:          30 * time.Second,
		RequestTimeout:   60 * time.Second,
		UserAgent:        "dottxt/1.0 (+https://github.com/aluiziolira/dottxt)",
		Verbose:          false,
	}
}

// LoadFile overlays the YAML file at path onto cfg.
func LoadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %q: %w", path, err)
	}
	return nil
}

// Validate ensures all configuration values are coherent. Credentials are
// not checked here; see Credentials.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("listen address cannot be empty")
	}
	if c.Backend != BackendFirecrawl && c.Backend != BackendColly {
		return fmt.Errorf("backend must be firecrawl or colly")
	}
	if c.Backend == BackendFirecrawl {
		if err := validateBaseURL("firecrawl base URL", c.FirecrawlBaseURL); err != nil {
			return err
		}
	}
	if err := validateBaseURL("openai base URL", c.OpenAIBaseURL); err != nil {
		return err
	}
	if c.Model == "" {
		return fmt.Errorf("model cannot be empty")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	return nil
}

// Credentials reports the first collaborator credential missing for the
// configured backend.
func (c *Config) Credentials() error {
	if c.Backend == BackendFirecrawl && c.FirecrawlAPIKey == "" {
		return ErrMissingCredential{Name: "FIRECRAWL_API_KEY"}
	}
	if c.OpenAIAPIKey == "" {
		return ErrMissingCredential{Name: "OPENAI_API_KEY"}
	}
	return nil
}

func validateBaseURL(name, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s cannot be empty", name)
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%s must include a host", name)
	}
	return nil
}
