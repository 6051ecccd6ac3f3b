package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/papercomputeco/patchbay/pkg/dotdir"
)

const (
	configFile = "config.toml"

	// v0 is the alpha version of the config
	v0 = 0

	// CurrentV is the currently supported version, points to v0
	CurrentV = v0
)

type Configer struct {
	ddm        *dotdir.Manager
	targetPath string
}

func NewConfiger(override string) (*Configer, error) {
	cfger := &Configer{}

	cfger.ddm = dotdir.NewManager()
	target, err := cfger.ddm.Target(override)
	if err != nil {
		return nil, err
	}

	// If no .patchbay/ directory was resolved, targetPath stays empty;
	// LoadConfig will return defaults and SaveConfig will error clearly.
	if target == "" {
		return cfger, nil
	}

	path := filepath.Join(target, configFile)
	_, err = os.Stat(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Always set targetPath when the directory exists so SaveConfig
	// can create or overwrite the file.
	cfger.targetPath = path

	return cfger, nil
}

// ValidConfigKeys returns the list of all supported configuration key names.
func ValidConfigKeys() []string {
	keys := make([]string, 0, len(configKeys))
	for k := range configKeys {
		keys = append(keys, k)
	}

	// Return in a stable, logical order matching the TOML section layout.
	ordered := []string{
		"listen",
		"debug",
		"cors_origins",
		"vertex.project_id",
		"vertex.region",
		"vertex.model",
		"vertex.models",
		"vertex.endpoint",
		"vertex.access_token",
		"limits.rate_limit_rpm",
		"limits.rate_limit_enabled",
		"limits.preferred_context_tokens",
		"limits.max_context_tokens",
		"storage.driver",
		"storage.path",
		"storage.dsn",
		"events.driver",
		"events.brokers",
		"events.topic",
		"metrics.enabled",
		"mcp.enabled",
	}

	// Sanity: only return keys that actually exist in the map.
	result := make([]string, 0, len(ordered))
	for _, k := range ordered {
		if _, ok := configKeys[k]; ok {
			result = append(result, k)
		}
	}

	// Append any keys in the map that we missed in the ordered list.
	seen := make(map[string]bool, len(result))
	for _, k := range result {
		seen[k] = true
	}
	for _, k := range keys {
		if !seen[k] {
			result = append(result, k)
		}
	}

	return result
}

// IsValidConfigKey returns true if the given key is a supported configuration key.
func IsValidConfigKey(key string) bool {
	_, ok := configKeys[key]
	return ok
}

func (c *Configer) GetTarget() string {
	return c.targetPath
}

// LoadConfig loads the configuration from config.toml in the target
// .patchbay/ directory. If the file does not exist, returns
// NewDefaultConfig() so callers always receive a fully-populated Config with
// sane defaults. Fields explicitly set in the file override the defaults.
func (c *Configer) LoadConfig() (*Config, error) {
	if c.targetPath == "" {
		return NewDefaultConfig(), nil
	}

	data, err := os.ReadFile(c.targetPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewDefaultConfig(), nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	return ParseConfigTOML(data)
}

// ParseConfigTOML parses raw TOML bytes into a Config with defaults merged
// for unset fields. Returns an error if the version field is present and
// not equal to CurrentV.
func ParseConfigTOML(data []byte) (*Config, error) {
	cfg := &Config{}
	meta, err := toml.Decode(string(data), cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config TOML: %w", err)
	}

	if cfg.Version != 0 && cfg.Version != CurrentV {
		return nil, fmt.Errorf("unsupported config version %d (expected %d)", cfg.Version, CurrentV)
	}

	applyDefaults(cfg, meta)

	return cfg, nil
}

// applyDefaults fills unset fields in cfg with values from NewDefaultConfig.
// Booleans whose default is true need the decode metadata to distinguish an
// explicit false from an absent key.
func applyDefaults(cfg *Config, meta toml.MetaData) {
	defaults := NewDefaultConfig()

	if cfg.Version == 0 {
		cfg.Version = defaults.Version
	}

	if cfg.Listen == "" {
		cfg.Listen = defaults.Listen
	}
	if cfg.CORSOrigins == "" {
		cfg.CORSOrigins = defaults.CORSOrigins
	}

	if cfg.Vertex.Region == "" {
		cfg.Vertex.Region = defaults.Vertex.Region
	}
	if cfg.Vertex.Model == "" {
		cfg.Vertex.Model = defaults.Vertex.Model
	}
	if len(cfg.Vertex.Models) == 0 {
		cfg.Vertex.Models = []string{cfg.Vertex.Model}
	}

	if cfg.Limits.RateLimitRPM == 0 {
		cfg.Limits.RateLimitRPM = defaults.Limits.RateLimitRPM
	}
	if !meta.IsDefined("limits", "rate_limit_enabled") {
		cfg.Limits.RateLimitEnabled = defaults.Limits.RateLimitEnabled
	}
	if cfg.Limits.PreferredContextTokens == 0 {
		cfg.Limits.PreferredContextTokens = defaults.Limits.PreferredContextTokens
	}
	if cfg.Limits.MaxContextTokens == 0 {
		cfg.Limits.MaxContextTokens = defaults.Limits.MaxContextTokens
	}

	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = defaults.Storage.Driver
	}

	if cfg.Events.Driver == "" {
		cfg.Events.Driver = defaults.Events.Driver
	}
	if cfg.Events.Topic == "" {
		cfg.Events.Topic = defaults.Events.Topic
	}

	if !meta.IsDefined("metrics", "enabled") {
		cfg.Metrics.Enabled = defaults.Metrics.Enabled
	}
	if !meta.IsDefined("mcp", "enabled") {
		cfg.MCP.Enabled = defaults.MCP.Enabled
	}
}

// SaveConfig persists the configuration to config.toml in the target
// .patchbay/ directory.
func (c *Configer) SaveConfig(cfg *Config) error {
	if cfg == nil {
		return errors.New("cannot save nil config")
	}

	if c.targetPath == "" {
		return errors.New("cannot save empty target path")
	}

	var buf bytes.Buffer
	encoder := toml.NewEncoder(&buf)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.WriteFile(c.targetPath, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// SetConfigValue loads the config, sets the given key to the given value, and saves it.
// Returns an error if the key is not a valid config key.
func (c *Configer) SetConfigValue(key string, value string) error {
	info, ok := configKeys[key]
	if !ok {
		return fmt.Errorf("unknown config key: %q", key)
	}

	cfg, err := c.LoadConfig()
	if err != nil {
		return err
	}

	if err := info.set(cfg, value); err != nil {
		return err
	}

	return c.SaveConfig(cfg)
}

// GetConfigValue loads the config and returns the string representation of the given key.
// Returns an error if the key is not a valid config key.
func (c *Configer) GetConfigValue(key string) (string, error) {
	info, ok := configKeys[key]
	if !ok {
		return "", fmt.Errorf("unknown config key: %q", key)
	}

	cfg, err := c.LoadConfig()
	if err != nil {
		return "", err
	}

	return info.get(cfg), nil
}
