package config

const (
	defaultListen      = ":8000"
	defaultCORSOrigins = "*"

	defaultRegion = "us-central1"
	defaultModel  = "gemini-2.5-pro-preview-03-25"

	defaultRateLimitRPM           = 150
	defaultPreferredContextTokens = 200_000
	defaultMaxContextTokens       = 1_000_000

	defaultStorageDriver = "sqlite"

	defaultEventsDriver = "nop"
	defaultEventsTopic  = "patchbay.usage"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version:     CurrentV,
		Listen:      defaultListen,
		CORSOrigins: defaultCORSOrigins,
		Vertex: VertexConfig{
			Region: defaultRegion,
			Model:  defaultModel,
			Models: []string{defaultModel},
		},
		Limits: LimitsConfig{
			RateLimitRPM:           defaultRateLimitRPM,
			RateLimitEnabled:       true,
			PreferredContextTokens: defaultPreferredContextTokens,
			MaxContextTokens:       defaultMaxContextTokens,
		},
		Storage: StorageConfig{
			Driver: defaultStorageDriver,
		},
		Events: EventsConfig{
			Driver: defaultEventsDriver,
			Topic:  defaultEventsTopic,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		MCP: MCPConfig{
			Enabled: true,
		},
	}
}
