package gateway

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/patchbay/pkg/openai"
	"github.com/papercomputeco/patchbay/pkg/storage"
	"github.com/papercomputeco/patchbay/pkg/utils"
)

// protocolVersion is the caller-facing protocol identifier reported by the
// info endpoint.
const protocolVersion = "mcp-v1"

// HealthResponse is the GET /v1/health payload. Sizes and limits are
// human-readable strings.
type HealthResponse struct {
	Status               string `json:"status"`
	Version              string `json:"version"`
	Model                string `json:"model"`
	Project              string `json:"project"`
	Region               string `json:"region"`
	RateLimit            string `json:"rate_limit"`
	PreferredContextSize string `json:"preferred_context_size"`
	MaxContextSize       string `json:"max_context_size"`
}

// InfoResponse is the GET /v1/info payload.
type InfoResponse struct {
	Server               string     `json:"server"`
	Version              string     `json:"version"`
	VertexAI             VertexInfo `json:"vertex_ai"`
	MaxContextSize       int        `json:"max_context_size"`
	PreferredContextSize int        `json:"preferred_context_size"`
	Capabilities         []string   `json:"capabilities"`
	ProtocolVersion      string     `json:"protocol_version"`
}

// VertexInfo identifies the backend deployment.
type VertexInfo struct {
	ProjectID string `json:"project_id"`
	Region    string `json:"region"`
	Model     string `json:"model"`
}

// UsageResponse is the GET /v1/usage payload.
type UsageResponse struct {
	Totals *storage.Totals        `json:"totals"`
	Recent []*storage.UsageRecord `json:"recent"`
}

// handleHealth returns the health check payload.
func (g *Gateway) handleHealth(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{
		Status:               "ok",
		Version:              utils.Version,
		Model:                g.defaultModel(),
		Project:              g.config.Project,
		Region:               g.config.Region,
		RateLimit:            fmt.Sprintf("%d requests per minute", g.limiter.Limit()),
		PreferredContextSize: fmt.Sprintf("%d tokens", g.config.PreferredContextTokens),
		MaxContextSize:       fmt.Sprintf("%d tokens", g.config.MaxContextTokens),
	})
}

// handleInfo returns server information and capabilities.
func (g *Gateway) handleInfo(c *fiber.Ctx) error {
	return c.JSON(InfoResponse{
		Server:  "patchbay",
		Version: utils.Version,
		VertexAI: VertexInfo{
			ProjectID: g.config.Project,
			Region:    g.config.Region,
			Model:     g.defaultModel(),
		},
		MaxContextSize:       g.config.MaxContextTokens,
		PreferredContextSize: g.config.PreferredContextTokens,
		Capabilities:         []string{"text", "vision", "streaming"},
		ProtocolVersion:      protocolVersion,
	})
}

// handleModels lists the supported model identifiers.
func (g *Gateway) handleModels(c *fiber.Ctx) error {
	models := g.translator.Models()
	data := make([]openai.ModelInfo, 0, len(models))
	for _, model := range models {
		data = append(data, openai.ModelInfo{
			ID:      model,
			Object:  "model",
			Created: g.started.Unix(),
			OwnedBy: "google",
		})
	}

	return c.JSON(openai.ModelList{Object: "list", Data: data})
}

// handleUsage returns ledger totals plus the most recent records. An
// optional limit query parameter caps the recent list.
func (g *Gateway) handleUsage(c *fiber.Ctx) error {
	ctx := c.Context()

	totals, err := g.driver.Totals(ctx)
	if err != nil {
		return g.respondError(c, err)
	}

	recent, err := g.driver.RecentUsage(ctx, c.QueryInt("limit"))
	if err != nil {
		return g.respondError(c, err)
	}

	return c.JSON(UsageResponse{Totals: totals, Recent: recent})
}
