// Package servecmder provides the serve command for running the gateway.
package servecmder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/papercomputeco/patchbay/gateway"
	"github.com/papercomputeco/patchbay/pkg/config"
	"github.com/papercomputeco/patchbay/pkg/credentials"
	"github.com/papercomputeco/patchbay/pkg/dotdir"
	"github.com/papercomputeco/patchbay/pkg/eventstream"
	"github.com/papercomputeco/patchbay/pkg/eventstream/kafka"
	"github.com/papercomputeco/patchbay/pkg/eventstream/nop"
	"github.com/papercomputeco/patchbay/pkg/logger"
	"github.com/papercomputeco/patchbay/pkg/storage"
	"github.com/papercomputeco/patchbay/pkg/storage/inmemory"
	"github.com/papercomputeco/patchbay/pkg/storage/postgres"
	"github.com/papercomputeco/patchbay/pkg/storage/sqlite"
)

type ServeCommander struct {
	listen        string
	project       string
	region        string
	model         string
	accessToken   string
	sqlitePath    string
	storageDriver string
	rateLimitRPM  uint
	configDir     string
	debug         bool
	logger        *zap.Logger
	v             *viper.Viper
}

const serveLongDesc string = `Run the patchbay gateway.

The gateway listens for OpenAI-format chat completion requests and
relays them to Gemini models on Vertex AI. Configuration comes from
flags, PATCHBAY_* environment variables, and config.toml, in that
order of precedence.

Examples:
  patchbay serve --project my-gcp-project
  patchbay serve -p my-gcp-project -r europe-west4 -l :9000
  patchbay serve --storage-driver memory --rate-limit-rpm 60`

const serveShortDesc string = "Run the patchbay gateway"

func NewServeCmd() *cobra.Command {
	cmder := &ServeCommander{}
	fs := config.ServeFlagSet()

	flagKeys := []string{
		config.FlagListen,
		config.FlagProject,
		config.FlagRegion,
		config.FlagModel,
		config.FlagAccessToken,
		config.FlagSQLite,
		config.FlagStorageDriver,
		config.FlagRateLimitRPM,
	}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.configDir, err = cmd.Flags().GetString("config-dir")
			if err != nil {
				return fmt.Errorf("could not get config-dir flag: %w", err)
			}

			cmder.v, err = config.InitViper(cmder.configDir)
			if err != nil {
				return err
			}

			config.BindRegisteredFlags(cmder.v, cmd, fs, flagKeys)
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %v", err)
			}
			return cmder.run(cmd.Context())
		},
	}

	config.AddStringFlag(cmd, fs, config.FlagListen, &cmder.listen)
	config.AddStringFlag(cmd, fs, config.FlagProject, &cmder.project)
	config.AddStringFlag(cmd, fs, config.FlagRegion, &cmder.region)
	config.AddStringFlag(cmd, fs, config.FlagModel, &cmder.model)
	config.AddStringFlag(cmd, fs, config.FlagAccessToken, &cmder.accessToken)
	config.AddStringFlag(cmd, fs, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, fs, config.FlagStorageDriver, &cmder.storageDriver)
	config.AddUintFlag(cmd, fs, config.FlagRateLimitRPM, &cmder.rateLimitRPM)

	return cmd
}

func (c *ServeCommander) run(ctx context.Context) error {
	c.logger = logger.NewLogger(c.debug || c.v.GetBool("debug"))
	defer c.logger.Sync()

	project := c.v.GetString("vertex.project_id")
	if project == "" {
		return errors.New("a Google Cloud project is required (set --project or PATCHBAY_VERTEX_PROJECT_ID)")
	}

	vertexCfg := config.VertexConfig{
		Model:  c.v.GetString("vertex.model"),
		Models: c.v.GetStringSlice("vertex.models"),
	}
	models := vertexCfg.SupportedModels()

	creds, err := credentials.Resolve(ctx, c.v.GetString("vertex.access_token"))
	if err != nil {
		return fmt.Errorf("resolving vertex credentials: %w", err)
	}

	driver, err := c.createStorer(ctx)
	if err != nil {
		return err
	}
	defer driver.Close()

	publisher, err := c.createPublisher()
	if err != nil {
		return err
	}
	defer publisher.Close()

	gatewayConfig := gateway.Config{
		ListenAddr:             c.v.GetString("listen"),
		CORSOrigins:            c.v.GetString("cors_origins"),
		Project:                project,
		Region:                 c.v.GetString("vertex.region"),
		Models:                 models,
		Endpoint:               c.v.GetString("vertex.endpoint"),
		Credentials:            creds,
		RateLimitRPM:           c.v.GetInt("limits.rate_limit_rpm"),
		RateLimitDisabled:      !c.v.GetBool("limits.rate_limit_enabled"),
		PreferredContextTokens: c.v.GetInt("limits.preferred_context_tokens"),
		MaxContextTokens:       c.v.GetInt("limits.max_context_tokens"),
		Publisher:              publisher,
		MetricsEnabled:         c.v.GetBool("metrics.enabled"),
		MCPEnabled:             c.v.GetBool("mcp.enabled"),
	}

	g, err := gateway.New(gatewayConfig, driver, c.logger)
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}
	defer g.Close()

	// Channel to capture errors from the server goroutine
	errChan := make(chan error, 1)

	go func() {
		if err := g.Run(); err != nil {
			errChan <- fmt.Errorf("gateway error: %w", err)
		}
	}()

	// Wait for interrupt signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		return nil
	}
}

func (c *ServeCommander) createStorer(ctx context.Context) (storage.Driver, error) {
	driverName := c.v.GetString("storage.driver")

	switch driverName {
	case "sqlite", "":
		path := c.v.GetString("storage.path")
		if path == "" {
			target, err := dotdir.NewManager().Target(c.configDir)
			if err != nil {
				return nil, fmt.Errorf("resolving sqlite path: %w", err)
			}
			path = filepath.Join(target, "patchbay.db")
		}

		driver, err := sqlite.NewSQLiteDriver(path)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite driver: %w", err)
		}
		c.logger.Info("using SQLite usage storage", zap.String("path", path))
		return driver, nil

	case "postgres":
		dsn := c.v.GetString("storage.dsn")
		if dsn == "" {
			return nil, errors.New("storage.dsn is required for the postgres driver")
		}

		driver, err := postgres.NewDriver(ctx, dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to create Postgres driver: %w", err)
		}
		c.logger.Info("using Postgres usage storage")
		return driver, nil

	case "memory":
		c.logger.Info("using in-memory usage storage")
		return inmemory.NewDriver(), nil

	default:
		return nil, fmt.Errorf("unknown storage driver %q (expected sqlite, postgres, or memory)", driverName)
	}
}

func (c *ServeCommander) createPublisher() (eventstream.Publisher, error) {
	driverName := c.v.GetString("events.driver")

	switch driverName {
	case "kafka":
		brokers := c.v.GetStringSlice("events.brokers")
		if len(brokers) == 0 {
			return nil, errors.New("events.brokers is required for the kafka driver")
		}

		topic := c.v.GetString("events.topic")
		c.logger.Info("publishing usage events to kafka",
			zap.Strings("brokers", brokers),
			zap.String("topic", topic),
		)
		return kafka.NewPublisher(brokers, topic), nil

	case "nop", "":
		return nop.NewPublisher(), nil

	default:
		return nil, fmt.Errorf("unknown events driver %q (expected kafka or nop)", driverName)
	}
}
