// Package config loads and validates the easyapply run configuration
// from a YAML file, with environment overrides for secrets.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalid is returned when required configuration is missing or
// inconsistent. Validation runs before any browser session starts.
var ErrInvalid = errors.New("config: invalid configuration")

// Duration is a time.Duration that unmarshals from YAML strings like
// "5m" or "90s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("config: parse duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the top-level easyapply configuration.
type Config struct {
	LLM     LLMConfig     `yaml:"llm"`
	Search  SearchConfig  `yaml:"search"`
	Resume  ResumeConfig  `yaml:"resume"`
	Ledger  LedgerConfig  `yaml:"ledger"`
	Audit   AuditConfig   `yaml:"audit"`
	Browser BrowserConfig `yaml:"browser"`
	Auth    AuthConfig    `yaml:"auth"`
}

// LLMConfig identifies the model driving the session.
type LLMConfig struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
}

// SearchConfig describes what to apply for.
type SearchConfig struct {
	Role            string `yaml:"role"`
	Location        string `yaml:"location"`
	MaxApplications int    `yaml:"max_applications"`
}

// ResumeConfig points at the operator's resume file (.pdf, .txt or .md).
type ResumeConfig struct {
	Path string `yaml:"path"`
}

// LedgerConfig points at the applied-job ledger file (JSONL).
type LedgerConfig struct {
	Path string `yaml:"path"`
}

// AuditConfig points at the optional SQLite event trail.
type AuditConfig struct {
	Path string `yaml:"path"`
}

// BrowserConfig controls Chrome lifecycle for the session.
type BrowserConfig struct {
	// Remote is the WebSocket URL of an external Chrome instance.
	// Empty = launch a local Chrome via launcher.
	Remote string `yaml:"remote"`

	// Headless runs Chrome without a window. Manual login needs a
	// visible window, so the default is headful.
	Headless bool `yaml:"headless"`

	NavTimeout Duration `yaml:"nav_timeout"`
}

// AuthConfig controls the manual-login suspension point.
type AuthConfig struct {
	// LoginURL is opened at session start for the operator to sign in.
	LoginURL string `yaml:"login_url"`

	// SuccessPrefix is the URL prefix that marks login as completed.
	SuccessPrefix string `yaml:"success_prefix"`

	// MaxWait bounds the manual-login wait. 0 = wait until the operator
	// signs in or the process is cancelled.
	MaxWait Duration `yaml:"max_wait"`
}

// LoadFile reads a YAML configuration file, applies defaults and
// environment overrides. It does not validate; call Validate before use.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.applyDefaults()
	cfg.applyEnv()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.LLM.Model == "" {
		c.LLM.Model = "openai/gpt-4o"
	}
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = "https://openrouter.ai/api/v1"
	}
	if c.Search.MaxApplications <= 0 {
		c.Search.MaxApplications = 3
	}
	if c.Ledger.Path == "" {
		c.Ledger.Path = "data/applied.jsonl"
	}
	if c.Browser.NavTimeout <= 0 {
		c.Browser.NavTimeout = Duration(30 * time.Second)
	}
	if c.Auth.LoginURL == "" {
		c.Auth.LoginURL = "https://www.linkedin.com/login"
	}
	if c.Auth.SuccessPrefix == "" {
		c.Auth.SuccessPrefix = "https://www.linkedin.com/feed"
	}
}

// applyEnv overlays secrets from the environment so API keys never need
// to live in the YAML file.
func (c *Config) applyEnv() {
	for _, name := range []string{"EASYAPPLY_API_KEY", "OPENROUTER_API_KEY"} {
		if v := os.Getenv(name); v != "" {
			c.LLM.APIKey = v
			break
		}
	}
}

// Validate checks that every required field is present. All missing
// fields are reported at once so the operator fixes them in one pass.
func (c *Config) Validate() error {
	var missing []string
	if c.LLM.APIKey == "" {
		missing = append(missing, "llm.api_key (or OPENROUTER_API_KEY)")
	}
	if c.Search.Role == "" {
		missing = append(missing, "search.role")
	}
	if c.Resume.Path == "" {
		missing = append(missing, "resume.path")
	}
	if c.Ledger.Path == "" {
		missing = append(missing, "ledger.path")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalid, strings.Join(missing, ", "))
	}
	return nil
}
