package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Config represents the persistent patchbay configuration stored as
// config.toml in the .patchbay/ directory. The TOML layout uses sections
// for logical grouping.
type Config struct {
	Version     int    `toml:"version"`
	Debug       bool   `toml:"debug"`
	Listen      string `toml:"listen,omitempty"`
	CORSOrigins string `toml:"cors_origins,omitempty"`

	Vertex  VertexConfig  `toml:"vertex"`
	Limits  LimitsConfig  `toml:"limits"`
	Storage StorageConfig `toml:"storage"`
	Events  EventsConfig  `toml:"events"`
	Metrics MetricsConfig `toml:"metrics"`
	MCP     MCPConfig     `toml:"mcp"`
}

// VertexConfig holds the Vertex AI backend settings.
type VertexConfig struct {
	ProjectID string `toml:"project_id,omitempty"`
	Region    string `toml:"region,omitempty"`

	// Model is the default model, used by the MCP tools and as the
	// supported set when Models is empty.
	Model  string   `toml:"model,omitempty"`
	Models []string `toml:"models,omitempty"`

	// Endpoint overrides the regional Vertex base URL. Mostly for tests.
	Endpoint string `toml:"endpoint,omitempty"`

	// AccessToken is a static bearer token. When empty, credentials are
	// resolved from the environment instead.
	AccessToken string `toml:"access_token,omitempty"`
}

// SupportedModels returns the configured supported set, falling back to the
// default model when no explicit list is configured.
func (v VertexConfig) SupportedModels() []string {
	if len(v.Models) > 0 {
		return v.Models
	}
	if v.Model != "" {
		return []string{v.Model}
	}
	return nil
}

// LimitsConfig holds admission and context budgeting settings.
type LimitsConfig struct {
	RateLimitRPM           int  `toml:"rate_limit_rpm,omitempty"`
	RateLimitEnabled       bool `toml:"rate_limit_enabled"`
	PreferredContextTokens int  `toml:"preferred_context_tokens,omitempty"`
	MaxContextTokens       int  `toml:"max_context_tokens,omitempty"`
}

// StorageConfig holds usage ledger settings.
type StorageConfig struct {
	// Driver selects the ledger backend: sqlite, postgres, or memory.
	Driver string `toml:"driver,omitempty"`

	// Path is the sqlite database path. Empty means <dotdir>/patchbay.db.
	Path string `toml:"path,omitempty"`

	// DSN is the postgres connection string.
	DSN string `toml:"dsn,omitempty"`
}

// EventsConfig holds usage event stream settings.
type EventsConfig struct {
	// Driver selects the publisher backend: kafka or nop.
	Driver  string   `toml:"driver,omitempty"`
	Brokers []string `toml:"brokers,omitempty"`
	Topic   string   `toml:"topic,omitempty"`
}

// MetricsConfig holds Prometheus exposition settings.
type MetricsConfig struct {
	Enabled bool `toml:"enabled"`
}

// MCPConfig holds MCP endpoint settings.
type MCPConfig struct {
	Enabled bool `toml:"enabled"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"listen": {
		get: func(c *Config) string { return c.Listen },
		set: func(c *Config, v string) error { c.Listen = v; return nil },
	},
	"debug": {
		get: func(c *Config) string { return strconv.FormatBool(c.Debug) },
		set: func(c *Config, v string) error { return setBool(&c.Debug, "debug", v) },
	},
	"cors_origins": {
		get: func(c *Config) string { return c.CORSOrigins },
		set: func(c *Config, v string) error { c.CORSOrigins = v; return nil },
	},
	"vertex.project_id": {
		get: func(c *Config) string { return c.Vertex.ProjectID },
		set: func(c *Config, v string) error { c.Vertex.ProjectID = v; return nil },
	},
	"vertex.region": {
		get: func(c *Config) string { return c.Vertex.Region },
		set: func(c *Config, v string) error { c.Vertex.Region = v; return nil },
	},
	"vertex.model": {
		get: func(c *Config) string { return c.Vertex.Model },
		set: func(c *Config, v string) error { c.Vertex.Model = v; return nil },
	},
	"vertex.models": {
		get: func(c *Config) string { return strings.Join(c.Vertex.Models, ",") },
		set: func(c *Config, v string) error { c.Vertex.Models = splitList(v); return nil },
	},
	"vertex.endpoint": {
		get: func(c *Config) string { return c.Vertex.Endpoint },
		set: func(c *Config, v string) error { c.Vertex.Endpoint = v; return nil },
	},
	"vertex.access_token": {
		get: func(c *Config) string { return c.Vertex.AccessToken },
		set: func(c *Config, v string) error { c.Vertex.AccessToken = v; return nil },
	},
	"limits.rate_limit_rpm": {
		get: func(c *Config) string { return strconv.Itoa(c.Limits.RateLimitRPM) },
		set: func(c *Config, v string) error { return setInt(&c.Limits.RateLimitRPM, "limits.rate_limit_rpm", v) },
	},
	"limits.rate_limit_enabled": {
		get: func(c *Config) string { return strconv.FormatBool(c.Limits.RateLimitEnabled) },
		set: func(c *Config, v string) error {
			return setBool(&c.Limits.RateLimitEnabled, "limits.rate_limit_enabled", v)
		},
	},
	"limits.preferred_context_tokens": {
		get: func(c *Config) string { return strconv.Itoa(c.Limits.PreferredContextTokens) },
		set: func(c *Config, v string) error {
			return setInt(&c.Limits.PreferredContextTokens, "limits.preferred_context_tokens", v)
		},
	},
	"limits.max_context_tokens": {
		get: func(c *Config) string { return strconv.Itoa(c.Limits.MaxContextTokens) },
		set: func(c *Config, v string) error {
			return setInt(&c.Limits.MaxContextTokens, "limits.max_context_tokens", v)
		},
	},
	"storage.driver": {
		get: func(c *Config) string { return c.Storage.Driver },
		set: func(c *Config, v string) error { c.Storage.Driver = v; return nil },
	},
	"storage.path": {
		get: func(c *Config) string { return c.Storage.Path },
		set: func(c *Config, v string) error { c.Storage.Path = v; return nil },
	},
	"storage.dsn": {
		get: func(c *Config) string { return c.Storage.DSN },
		set: func(c *Config, v string) error { c.Storage.DSN = v; return nil },
	},
	"events.driver": {
		get: func(c *Config) string { return c.Events.Driver },
		set: func(c *Config, v string) error { c.Events.Driver = v; return nil },
	},
	"events.brokers": {
		get: func(c *Config) string { return strings.Join(c.Events.Brokers, ",") },
		set: func(c *Config, v string) error { c.Events.Brokers = splitList(v); return nil },
	},
	"events.topic": {
		get: func(c *Config) string { return c.Events.Topic },
		set: func(c *Config, v string) error { c.Events.Topic = v; return nil },
	},
	"metrics.enabled": {
		get: func(c *Config) string { return strconv.FormatBool(c.Metrics.Enabled) },
		set: func(c *Config, v string) error { return setBool(&c.Metrics.Enabled, "metrics.enabled", v) },
	},
	"mcp.enabled": {
		get: func(c *Config) string { return strconv.FormatBool(c.MCP.Enabled) },
		set: func(c *Config, v string) error { return setBool(&c.MCP.Enabled, "mcp.enabled", v) },
	},
}

func setBool(target *bool, key, v string) error {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*target = b
	return nil
}

func setInt(target *int, key, v string) error {
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*target = n
	return nil
}

// splitList parses a comma-separated value into a trimmed string slice.
func splitList(v string) []string {
	if v == "" {
		return nil
	}

	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
