// Package configcmder provides the config command for managing persistent
// substrate configuration stored in the .substrate/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent substrate configuration.

Configuration is stored as config.toml in the .substrate/ directory and
provides default values for command flags. CLI flags always take precedence
over config file values.

Keys use dotted notation matching the TOML section structure:
  storage.driver, storage.dsn,
  api.listen,
  llm.provider, llm.model, llm.base_url,
  embedding.provider, embedding.target, embedding.model, embedding.dimensions,
  vector.provider, vector.target, vector.collection,
  graph.target, graph.namespace,
  crystal.window,
  events.topic

Use subcommands to get, set, or list configuration values:
  substrate config set <key> <value>    Set a configuration value
  substrate config get <key>            Get a configuration value
  substrate config list                 List all configuration values

Examples:
  substrate config set graph.namespace presence
  substrate config set embedding.model nomic-embed-text
  substrate config get llm.model
  substrate config list`

const configShortDesc string = "Manage persistent substrate configuration"

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
