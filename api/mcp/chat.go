package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/papercomputeco/patchbay/pkg/apierror"
	"github.com/papercomputeco/patchbay/pkg/openai"
)

var (
	chatToolName    = "gemini_chat"
	chatDescription = "Send a conversation to a Gemini model on Vertex AI and return the completion. Messages are role/content pairs in conversation order; the result includes the assistant text, finish reason, and token usage."
)

// ChatInput represents the input arguments for the chat tool.
type ChatInput struct {
	Messages    []ChatMessage `json:"messages" jsonschema:"the conversation messages in order, each with a role and content text"`
	Model       string        `json:"model,omitempty" jsonschema:"the model to use (default: the gateway's configured model)"`
	Temperature *float64      `json:"temperature,omitempty" jsonschema:"sampling temperature between 0 and 2"`
	MaxTokens   *int          `json:"max_tokens,omitempty" jsonschema:"maximum number of tokens to generate"`
}

// ChatMessage is a single conversation turn.
type ChatMessage struct {
	Role    string `json:"role" jsonschema:"the message role: system, user, or assistant"`
	Content string `json:"content" jsonschema:"the message text"`
}

// ChatOutput represents the output of the chat tool.
type ChatOutput struct {
	Content      string        `json:"content"`
	Model        string        `json:"model"`
	FinishReason string        `json:"finish_reason"`
	Usage        *openai.Usage `json:"usage,omitempty"`
}

// handleChat processes a chat request through the gateway pipeline.
func (s *Server) handleChat(ctx context.Context, req *mcp.CallToolRequest, input ChatInput) (*mcp.CallToolResult, ChatOutput, error) {
	logger := s.config.Logger

	// Default to the configured model if not specified
	model := input.Model
	if model == "" {
		model = s.config.Model
	}

	messages := make([]openai.Message, 0, len(input.Messages))
	for _, msg := range input.Messages {
		messages = append(messages, openai.NewTextMessage(msg.Role, msg.Content))
	}

	logger.Debug("MCP chat request",
		zap.String("model", model),
		zap.Int("message_count", len(messages)),
	)

	chatReq := &openai.ChatRequest{
		Model:       model,
		Messages:    messages,
		Temperature: input.Temperature,
		MaxTokens:   input.MaxTokens,
	}

	resp, err := s.config.Chatter.Chat(ctx, chatReq)
	if err != nil {
		logger.Error("chat tool failed", zap.Error(err))
		_, body := apierror.Map(err)
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("Chat failed: %s", body.Error.Message)},
			},
		}, ChatOutput{}, nil
	}

	output := ChatOutput{
		Model: resp.Model,
		Usage: resp.Usage,
	}
	if len(resp.Choices) > 0 {
		output.Content = resp.Choices[0].Message.Content
		output.FinishReason = resp.Choices[0].FinishReason
	}

	// Serialize the structured output as JSON for the text field
	// Per MCP spec: tools returning structured content should also return
	// serialized JSON in a TextContent block for backwards compatibility
	jsonBytes, err := json.Marshal(output)
	if err != nil {
		logger.Error("failed to marshal chat output", zap.Error(err))
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("Failed to serialize result: %v", err)},
			},
		}, ChatOutput{}, nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(jsonBytes)},
		},
	}, output, nil
}
