// Package config loads the optional YAML run configuration. Flags override
// file values; file values override defaults. The access token is
// deliberately not a config key so it never ends up committed next to a
// run file. It comes from the environment or a flag.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/hellenic-development/fb-exporter/pkg/graph"
)

// Config mirrors the CLI surface of the exporter.
type Config struct {
	PageID       string `yaml:"page_id"`
	AdAccountID  string `yaml:"ad_account_id"`
	GraphVersion string `yaml:"graph_version"`
	Since        string `yaml:"since"` // YYYY-MM-DD
	Until        string `yaml:"until"` // YYYY-MM-DD
	Output       string `yaml:"output"`

	Request RequestConfig `yaml:"request"`
}

// RequestConfig tunes the client's resilience policy.
type RequestConfig struct {
	Timeout     Duration `yaml:"timeout"`
	MaxRetries  int      `yaml:"max_retries"`
	BaseBackoff Duration `yaml:"base_backoff"`
	MaxBackoff  Duration `yaml:"max_backoff"`
	Throttle    Duration `yaml:"throttle"`
}

// Duration is a time.Duration that unmarshals from the usual "30s"/"250ms"
// notation, which yaml.v2 does not handle on its own.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var text string
	if err := unmarshal(&text); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(text)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		GraphVersion: graph.DefaultVersion,
	}
}

// Load reads path and merges it over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.UnmarshalStrict(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks field formats. Presence of page/account ids is checked
// later, once flags have been merged in.
func (c *Config) Validate() error {
	for _, date := range []string{c.Since, c.Until} {
		if date == "" {
			continue
		}
		if _, err := time.Parse("2006-01-02", date); err != nil {
			return fmt.Errorf("invalid date %q, expected YYYY-MM-DD", date)
		}
	}
	if c.Request.MaxRetries < 0 {
		return fmt.Errorf("request.max_retries must not be negative")
	}
	return nil
}

// ClientConfig converts the request section into a graph.Config, leaving
// zero values for the client's own defaults to fill.
func (c *Config) ClientConfig() graph.Config {
	return graph.Config{
		Version:     c.GraphVersion,
		Timeout:     c.Request.Timeout.Std(),
		MaxRetries:  c.Request.MaxRetries,
		BaseBackoff: c.Request.BaseBackoff.Std(),
		MaxBackoff:  c.Request.MaxBackoff.Std(),
		Throttle:    c.Request.Throttle.Std(),
	}
}
