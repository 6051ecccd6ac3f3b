package gateway

import (
	"context"
	"math"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/papercomputeco/patchbay/pkg/apierror"
	"github.com/papercomputeco/patchbay/pkg/contextwindow"
	"github.com/papercomputeco/patchbay/pkg/gemini"
	"github.com/papercomputeco/patchbay/pkg/openai"
	"github.com/papercomputeco/patchbay/pkg/ratelimit"
	"github.com/papercomputeco/patchbay/pkg/translate"
)

// handleChatCompletions serves POST /v1/chat/completions.
func (g *Gateway) handleChatCompletions(c *fiber.Ctx) error {
	return g.handleChat(c, "")
}

// handleModelChat serves POST /v1/models/:model/chat. The path model wins
// over whatever the body names.
func (g *Gateway) handleModelChat(c *fiber.Ctx) error {
	return g.handleChat(c, c.Params("model"))
}

// handleChat runs the chat pipeline for one HTTP request: parse, admit,
// trim, translate, then branch on the caller's streaming preference.
func (g *Gateway) handleChat(c *fiber.Ctx, modelOverride string) error {
	start := time.Now()

	req, err := openai.ParseRequestForModel(c.Body(), modelOverride)
	if err != nil {
		return g.respondError(c, err)
	}

	trimmed, breq, err := g.prepare(req)
	if err != nil {
		if apierror.KindOf(err) == apierror.KindRateLimited {
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(retryAfterSeconds(g.limiter.Snapshot())))
		}
		return g.respondError(c, err)
	}

	g.logger.Debug("chat request admitted",
		zap.String("model", req.Model),
		zap.Int("message_count", len(req.Messages)),
		zap.Int("estimated_tokens", trimmed.EstimatedTokens),
		zap.Bool("streaming", req.Streaming()),
	)

	if req.Streaming() {
		return g.streamChat(c, req.Model, trimmed, breq, start)
	}

	out, err := g.complete(c.Context(), req.Model, trimmed, breq, start)
	if err != nil {
		return g.respondError(c, err)
	}

	return c.JSON(out)
}

// prepare runs admission, trimming, and translation. Rejection happens
// before any trimming work; an unsupported model surfaces from the
// translator after.
func (g *Gateway) prepare(req *openai.ChatRequest) (contextwindow.Trimmed, *gemini.GenerateRequest, error) {
	if !g.limiter.Admit() {
		g.recorder.RecordRateLimited()
		return contextwindow.Trimmed{}, nil, apierror.RateLimited()
	}

	trimmed := g.window.Trim(req.Messages)

	budgeted := *req
	budgeted.Messages = trimmed.Messages
	breq, err := g.translator.Translate(&budgeted)
	if err != nil {
		return contextwindow.Trimmed{}, nil, err
	}

	return trimmed, breq, nil
}

// complete performs a non-streaming backend exchange and enqueues the usage
// record. Shared by the HTTP handler and the MCP chat tool.
func (g *Gateway) complete(ctx context.Context, model string, trimmed contextwindow.Trimmed, breq *gemini.GenerateRequest, start time.Time) (*openai.CompletionResponse, error) {
	resp, err := g.backend.Generate(ctx, model, breq)
	if err != nil {
		return nil, err
	}

	out, err := translate.Completion(model, trimmed.Messages, resp)
	if err != nil {
		return nil, err
	}

	g.enqueueUsage(completionRecord(out, start))

	return out, nil
}

// Chat runs the chat pipeline outside the HTTP layer. The MCP gemini_chat
// tool calls it directly; responses are always non-streaming.
func (g *Gateway) Chat(ctx context.Context, req *openai.ChatRequest) (*openai.CompletionResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()

	trimmed, breq, err := g.prepare(req)
	if err != nil {
		return nil, err
	}

	return g.complete(ctx, req.Model, trimmed, breq, start)
}

// respondError maps a pipeline failure onto the caller-facing status and
// error body. Client disconnects are suppressed; nobody is listening.
func (g *Gateway) respondError(c *fiber.Ctx, err error) error {
	if apierror.KindOf(err) == apierror.KindClientDisconnected {
		g.logger.Debug("client disconnected", zap.Error(err))
		return nil
	}

	status, body := apierror.Map(err)
	if status >= fiber.StatusInternalServerError {
		g.logger.Error("request failed", zap.Int("status", status), zap.Error(err))
	} else {
		g.logger.Warn("request rejected", zap.Int("status", status), zap.Error(err))
	}

	return c.Status(status).JSON(body)
}

// retryAfterSeconds converts the limiter window reset into whole seconds,
// rounded up so callers never retry early.
func retryAfterSeconds(snap ratelimit.Snapshot) int {
	secs := int(math.Ceil(time.Until(snap.Reset).Seconds()))
	if secs < 1 {
		secs = 1
	}
	return secs
}
