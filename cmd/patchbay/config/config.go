// Package configcmder provides the config command for managing persistent
// patchbay configuration stored in the .patchbay/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent patchbay configuration.

Configuration is stored as config.toml in the .patchbay/ directory and
provides default values for command flags. CLI flags and PATCHBAY_*
environment variables always take precedence over config file values.

Keys use dotted notation matching the TOML section structure:
  listen, debug, cors_origins,
  vertex.project_id, vertex.region, vertex.model, vertex.models,
  vertex.endpoint, vertex.access_token,
  limits.rate_limit_rpm, limits.rate_limit_enabled,
  limits.preferred_context_tokens, limits.max_context_tokens,
  storage.driver, storage.path, storage.dsn,
  events.driver, events.brokers, events.topic,
  metrics.enabled, mcp.enabled

Use subcommands to get, set, or list configuration values:
  patchbay config set <key> <value>    Set a configuration value
  patchbay config get <key>            Get a configuration value
  patchbay config list                 List all configuration values

Examples:
  patchbay config set vertex.project_id my-gcp-project
  patchbay config set limits.rate_limit_rpm 60
  patchbay config get vertex.model
  patchbay config list`

const configShortDesc string = "Manage persistent patchbay configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}
