package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/papercomputeco/patchbay/pkg/dotdir"
)

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the PATCHBAY_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (PATCHBAY_LISTEN, PATCHBAY_VERTEX_PROJECT_ID, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	// 1. Register all defaults from NewDefaultConfig().
	setViperDefaults(v)

	// 2. Config file discovery via dotdir resolution.
	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// 3. Environment variables: PATCHBAY_LISTEN, PATCHBAY_VERTEX_MODEL, etc.
	v.SetEnvPrefix("PATCHBAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	// Server
	v.SetDefault("listen", d.Listen)
	v.SetDefault("debug", d.Debug)
	v.SetDefault("cors_origins", d.CORSOrigins)

	// Vertex
	v.SetDefault("vertex.project_id", d.Vertex.ProjectID)
	v.SetDefault("vertex.region", d.Vertex.Region)
	v.SetDefault("vertex.model", d.Vertex.Model)
	v.SetDefault("vertex.models", d.Vertex.Models)
	v.SetDefault("vertex.endpoint", d.Vertex.Endpoint)
	v.SetDefault("vertex.access_token", d.Vertex.AccessToken)

	// Limits
	v.SetDefault("limits.rate_limit_rpm", d.Limits.RateLimitRPM)
	v.SetDefault("limits.rate_limit_enabled", d.Limits.RateLimitEnabled)
	v.SetDefault("limits.preferred_context_tokens", d.Limits.PreferredContextTokens)
	v.SetDefault("limits.max_context_tokens", d.Limits.MaxContextTokens)

	// Storage
	v.SetDefault("storage.driver", d.Storage.Driver)
	v.SetDefault("storage.path", d.Storage.Path)
	v.SetDefault("storage.dsn", d.Storage.DSN)

	// Events
	v.SetDefault("events.driver", d.Events.Driver)
	v.SetDefault("events.brokers", d.Events.Brokers)
	v.SetDefault("events.topic", d.Events.Topic)

	// Metrics
	v.SetDefault("metrics.enabled", d.Metrics.Enabled)

	// MCP
	v.SetDefault("mcp.enabled", d.MCP.Enabled)
}
