// Package gateway provides the OpenAI-compatible HTTP front end of patchbay:
// it accepts chat completion requests, budgets them into the context window,
// translates them onto Vertex AI Gemini, and relays responses back in the
// caller's protocol, streaming or not.
package gateway

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/papercomputeco/patchbay/api/mcp"
	"github.com/papercomputeco/patchbay/gateway/worker"
	"github.com/papercomputeco/patchbay/pkg/contextwindow"
	"github.com/papercomputeco/patchbay/pkg/eventstream"
	"github.com/papercomputeco/patchbay/pkg/gemini"
	"github.com/papercomputeco/patchbay/pkg/metrics"
	"github.com/papercomputeco/patchbay/pkg/ratelimit"
	"github.com/papercomputeco/patchbay/pkg/storage"
	"github.com/papercomputeco/patchbay/pkg/tokens"
	"github.com/papercomputeco/patchbay/pkg/translate"
)

// Gateway is the protocol-translation server. Each request flows through the
// same pipeline: parse, admit, trim, translate, call the backend, translate
// back. Usage accounting happens off the hot path via the worker pool.
type Gateway struct {
	config     Config
	driver     storage.Driver
	limiter    *ratelimit.Limiter
	window     *contextwindow.Manager
	translator *translate.RequestTranslator
	backend    *gemini.Client
	recorder   *metrics.Recorder
	workerPool *worker.Pool
	logger     *zap.Logger
	server     *fiber.App
	heartbeat  time.Duration
	started    time.Time
}

// New creates a Gateway.
// The driver is injected to handle async persistence of usage records.
func New(config Config, driver storage.Driver, logger *zap.Logger) (*Gateway, error) {
	if len(config.Models) == 0 {
		return nil, errors.New("at least one model is required")
	}
	if driver == nil {
		return nil, errors.New("storage driver is required")
	}

	limiter, err := ratelimit.New(ratelimit.Config{
		Limit:    config.RateLimitRPM,
		Disabled: config.RateLimitDisabled,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create rate limiter: %w", err)
	}

	window, err := contextwindow.NewManager(tokens.NewWords(), contextwindow.Budget{
		Preferred: config.PreferredContextTokens,
		Maximum:   config.MaxContextTokens,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("could not create context window manager: %w", err)
	}

	backend, err := gemini.New(gemini.Config{
		Project: config.Project,
		Region:  config.Region,
		Tokens:  config.Credentials,
		BaseURL: config.Endpoint,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create vertex client: %w", err)
	}

	recorder := metrics.NewRecorder(config.MetricsEnabled)

	wp, err := worker.NewPool(&worker.Config{
		Driver:    driver,
		Publisher: config.Publisher,
		Source: eventstream.EventSource{
			Service:   "patchbay",
			ProjectID: config.Project,
			Region:    config.Region,
		},
		Recorder: recorder,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create worker pool: %w", err)
	}

	app := fiber.New(fiber.Config{
		// Disable startup message for cleaner logs
		DisableStartupMessage: true,
		// Enable streaming
		StreamRequestBody: true,
	})

	g := &Gateway{
		config:     config,
		driver:     driver,
		limiter:    limiter,
		window:     window,
		translator: translate.NewRequestTranslator(config.Models),
		backend:    backend,
		recorder:   recorder,
		workerPool: wp,
		logger:     logger,
		server:     app,
		heartbeat:  defaultStreamHeartbeat,
		started:    time.Now(),
	}

	if err := g.registerRoutes(app); err != nil {
		return nil, err
	}

	return g, nil
}

// registerRoutes wires middleware and the public route surface onto app.
func (g *Gateway) registerRoutes(app *fiber.App) error {
	app.Use(corsMiddleware(g.config.CORSOrigins))

	v1 := app.Group("/v1", processTimeMiddleware(), g.observeRequests())
	v1.Post("/chat/completions", g.handleChatCompletions)
	v1.Post("/models/:model/chat", g.handleModelChat)
	v1.Get("/models", g.handleModels)
	v1.Get("/health", g.handleHealth)
	v1.Get("/info", g.handleInfo)
	v1.Get("/usage", g.handleUsage)

	if g.config.MetricsEnabled {
		app.Get("/metrics", adaptor.HTTPHandler(g.recorder.Handler()))
	}

	if g.config.MCPEnabled {
		mcpServer, err := mcp.NewServer(mcp.Config{
			Chatter:                g,
			Model:                  g.defaultModel(),
			Models:                 g.translator.Models(),
			Project:                g.config.Project,
			Region:                 g.config.Region,
			PreferredContextTokens: g.config.PreferredContextTokens,
			MaxContextTokens:       g.config.MaxContextTokens,
			RateLimitRPM:           g.config.RateLimitRPM,
			Logger:                 g.logger,
		})
		if err != nil {
			return fmt.Errorf("could not create mcp server: %w", err)
		}
		app.All("/mcp", adaptor.HTTPHandler(mcpServer.Handler()))
	}

	return nil
}

// defaultModel returns the first configured model identifier.
func (g *Gateway) defaultModel() string {
	return g.translator.Models()[0]
}

// Run starts the gateway server on the configured listening address.
func (g *Gateway) Run() error {
	g.logger.Info("starting gateway server",
		zap.String("listen", g.config.ListenAddr),
		zap.String("project", g.config.Project),
		zap.String("region", g.config.Region),
		zap.Strings("models", g.config.Models),
	)

	return g.server.Listen(g.config.ListenAddr)
}

// RunWithListener starts the gateway server using the provided listener.
func (g *Gateway) RunWithListener(listener net.Listener) error {
	g.logger.Info("starting gateway server",
		zap.String("listen", listener.Addr().String()),
		zap.String("project", g.config.Project),
		zap.String("region", g.config.Region),
	)

	return g.server.Listener(listener)
}

// Close gracefully shuts down the gateway and waits for the worker pool to drain.
func (g *Gateway) Close() error {
	g.workerPool.Close()
	return g.server.Shutdown()
}
