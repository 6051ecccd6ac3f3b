// Package mcp provides an MCP (Model Context Protocol) server for the patchbay gateway.
package mcp

import (
	"context"
	"errors"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/papercomputeco/patchbay/pkg/openai"
	"github.com/papercomputeco/patchbay/pkg/utils"
)

// Chatter runs a single non-streaming chat completion through the gateway
// pipeline, including admission control and context window trimming.
type Chatter interface {
	Chat(ctx context.Context, req *openai.ChatRequest) (*openai.CompletionResponse, error)
}

type Config struct {
	// Chatter executes chat completions for the gemini_chat tool
	Chatter Chatter

	// Model is the default model used when a tool call does not name one
	Model string

	// Models is the full set of supported model identifiers
	Models []string

	// Project and Region identify the Vertex AI deployment
	Project string
	Region  string

	// PreferredContextTokens and MaxContextTokens are the context window
	// budgets reported by the model_info tool
	PreferredContextTokens int
	MaxContextTokens       int

	// RateLimitRPM is the per-minute admission limit reported by model_info
	RateLimitRPM int

	// Noop for empty MCP server
	Noop bool

	// Logger is the configured zap logger
	Logger *zap.Logger
}

type Server struct {
	config    Config
	mcpServer *mcp.Server
	handler   *mcp.StreamableHTTPHandler
}

// NewServer creates a new MCP server with the chat and model info tools.
func NewServer(c Config) (*Server, error) {
	s := &Server{
		config: c,
	}

	// Create the MCP server
	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "patchbay",
			Version: utils.Version,
		},
		&mcp.ServerOptions{},
	)

	if c.Noop {
		// return the empty MCP server with no tools configured
		// if the noop flag is set (i.e., MCP capabilities are disabled)
		s.mcpServer = mcpServer
		return s, nil
	}

	if c.Chatter == nil {
		return nil, errors.New("chatter is required")
	}
	if c.Model == "" {
		return nil, errors.New("default model is required")
	}
	if c.Logger == nil {
		return nil, errors.New("logger is required")
	}

	// Add tools
	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        chatToolName,
		Description: chatDescription,
	}, s.handleChat)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        modelInfoToolName,
		Description: modelInfoDescription,
	}, s.handleModelInfo)

	s.mcpServer = mcpServer

	// Create a streamable HTTP net/http handler for stateless operations
	s.handler = mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server {
			return mcpServer
		},
		&mcp.StreamableHTTPOptions{
			Stateless: true,
		},
	)

	return s, nil
}

// Handler returns the HTTP handler for the MCP server.
func (s *Server) Handler() http.Handler {
	return s.handler
}
