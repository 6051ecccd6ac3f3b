package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
)

var (
	modelInfoToolName    = "model_info"
	modelInfoDescription = "Describe the Gemini deployment behind this gateway: default and supported models, Vertex AI project and region, context window budgets, and the admission rate limit."
)

// ModelInfoInput represents the input arguments for the model info tool.
// The tool takes no arguments.
type ModelInfoInput struct{}

// ModelInfoOutput represents the output of the model info tool.
type ModelInfoOutput struct {
	Model                string   `json:"model"`
	Models               []string `json:"models"`
	Project              string   `json:"project"`
	Region               string   `json:"region"`
	PreferredContextSize int      `json:"preferred_context_size"`
	MaxContextSize       int      `json:"max_context_size"`
	RateLimit            string   `json:"rate_limit"`
}

// handleModelInfo reports the gateway's model configuration.
func (s *Server) handleModelInfo(ctx context.Context, req *mcp.CallToolRequest, input ModelInfoInput) (*mcp.CallToolResult, ModelInfoOutput, error) {
	logger := s.config.Logger

	logger.Debug("MCP model info request",
		zap.String("model", s.config.Model),
	)

	output := ModelInfoOutput{
		Model:                s.config.Model,
		Models:               s.config.Models,
		Project:              s.config.Project,
		Region:               s.config.Region,
		PreferredContextSize: s.config.PreferredContextTokens,
		MaxContextSize:       s.config.MaxContextTokens,
		RateLimit:            fmt.Sprintf("%d requests per minute", s.config.RateLimitRPM),
	}

	// Serialize the structured output as JSON for the text field
	// Per MCP spec: tools returning structured content should also return
	// serialized JSON in a TextContent block for backwards compatibility
	jsonBytes, err := json.Marshal(output)
	if err != nil {
		logger.Error("failed to marshal model info output", zap.Error(err))
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("Failed to serialize result: %v", err)},
			},
		}, ModelInfoOutput{}, nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(jsonBytes)},
		},
	}, output, nil
}
