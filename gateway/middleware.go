package gateway

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

// corsMiddleware builds the CORS middleware for the configured origins.
// Empty means any origin.
func corsMiddleware(origins string) fiber.Handler {
	if origins == "" {
		origins = "*"
	}

	return cors.New(cors.Config{
		AllowOrigins: origins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	})
}

// processTimeMiddleware stamps X-Process-Time (seconds) on every response.
// For streaming responses this covers time to stream start, not the full
// stream lifetime.
func processTimeMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		c.Set("X-Process-Time", fmt.Sprintf("%.6f", time.Since(start).Seconds()))
		return err
	}
}

// observeRequests records the request counter and duration histogram per
// route pattern and status.
func (g *Gateway) observeRequests() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		g.recorder.RecordRequest(
			c.Route().Path,
			strconv.Itoa(c.Response().StatusCode()),
			time.Since(start),
		)
		return err
	}
}
