// Package substratecmder
package substratecmder

import (
	anchorcmder "github.com/presencelabs/substrate/cmd/substrate/anchor"
	configcmder "github.com/presencelabs/substrate/cmd/substrate/config"
	crystalcmder "github.com/presencelabs/substrate/cmd/substrate/crystal"
	ingestcmder "github.com/presencelabs/substrate/cmd/substrate/ingest"
	servecmder "github.com/presencelabs/substrate/cmd/substrate/serve"
	statuscmder "github.com/presencelabs/substrate/cmd/substrate/status"
	versioncmder "github.com/presencelabs/substrate/cmd/version"
	"github.com/spf13/cobra"
)

const substrateLongDesc string = `Substrate is a persistent memory layer for a conversational presence.

It keeps four tiers of memory: an append-only turn ledger, identity
anchors, a knowledge graph of relational texture, and a rolling chain
of experience crystals.

Run the server using:
  substrate serve       Run the API + MCP server

Inspect a running substrate using:
  substrate status      Show per-component health`

const substrateShortDesc string = "Substrate - Presence Memory"

func NewSubstrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "substrate",
		Short: substrateShortDesc,
		Long:  substrateLongDesc,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Path to the .substrate directory (default: ./.substrate or ~/.substrate)")

	// Add subcommands
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(statuscmder.NewStatusCmd())
	cmd.AddCommand(anchorcmder.NewAnchorCmd())
	cmd.AddCommand(crystalcmder.NewCrystalCmd())
	cmd.AddCommand(ingestcmder.NewIngestCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
