package gateway

import (
	"github.com/papercomputeco/patchbay/pkg/credentials"
	"github.com/papercomputeco/patchbay/pkg/eventstream"
)

// Config is the gateway server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8000")
	ListenAddr string

	// CORSOrigins is the comma-separated set of allowed origins.
	// Empty means "*".
	CORSOrigins string

	// Project is the Google Cloud project ID for Vertex AI. Required.
	Project string

	// Region is the Vertex AI region (e.g., "us-central1").
	Region string

	// Models is the supported model identifier set. The first entry is the
	// default model reported by the health and info endpoints.
	Models []string

	// Endpoint overrides the regional Vertex base URL. Mostly for tests.
	Endpoint string

	// Credentials yields bearer tokens for Vertex calls. Required.
	Credentials credentials.Source

	// RateLimitRPM is the number of requests admitted per 60s window.
	RateLimitRPM int

	// RateLimitDisabled turns off admission control entirely.
	RateLimitDisabled bool

	// PreferredContextTokens is the soft context budget the trimmer aims for.
	PreferredContextTokens int

	// MaxContextTokens is the hard backend context ceiling.
	MaxContextTokens int

	// Publisher is an optional usage event publisher.
	// If nil, event publishing is disabled.
	Publisher eventstream.Publisher

	// MetricsEnabled mounts Prometheus exposition at GET /metrics and turns
	// on request/token recording.
	MetricsEnabled bool

	// MCPEnabled mounts the MCP streamable handler at /mcp.
	MCPEnabled bool
}
