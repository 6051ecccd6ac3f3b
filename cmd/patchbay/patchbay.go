// Package patchbaycmder
package patchbaycmder

import (
	"github.com/spf13/cobra"

	configcmder "github.com/papercomputeco/patchbay/cmd/patchbay/config"
	servecmder "github.com/papercomputeco/patchbay/cmd/patchbay/serve"
	versioncmder "github.com/papercomputeco/patchbay/cmd/version"
)

const patchbayLongDesc string = `Patchbay is an OpenAI-compatible gateway for Vertex AI Gemini.

It accepts chat completion requests in the OpenAI format, budgets them
into the model's context window, and relays them to Gemini models on
Vertex AI, streaming or not.

Run the gateway using:
  patchbay serve       Run the gateway server
  patchbay config      Manage persistent configuration
  patchbay version     Show version information`

const patchbayShortDesc string = "Patchbay - OpenAI-compatible Vertex AI Gemini gateway"

func NewPatchbayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "patchbay",
		Short: patchbayShortDesc,
		Long:  patchbayLongDesc,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Directory holding config.toml (default: ./.patchbay or ~/.patchbay)")

	// Add subcommands
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
