// Package configcmder provides the config command for managing persistent
// embedsrv configuration stored in the .embedsrv/ directory.
package configcmder

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/embedsrv/pkg/cliui"
	"github.com/papercomputeco/embedsrv/pkg/config"
)

const configLongDesc string = `Manage persistent embedsrv configuration.

Configuration is stored as config.toml in the .embedsrv/ directory and provides
default values for command flags. CLI flags and EMBEDSRV_* environment
variables take precedence over config file values.

Keys use dotted notation matching the TOML section structure:
  server.listen,
  text_model.provider, text_model.target, text_model.model,
  image_model.provider, image_model.target, image_model.model,
  device.preference, device.parallelism, device.queue_size,
  vector_store.provider, vector_store.target, vector_store.collection,
  vector_store.dimensions,
  client.target

Use subcommands to get, set, or list configuration values:
  embedsrv config set <key> <value>    Set a configuration value
  embedsrv config get <key>            Get a configuration value
  embedsrv config list                 List all configuration values

Examples:
  embedsrv config set device.preference cpu
  embedsrv config set image_model.model google/siglip-base-patch16-224
  embedsrv config get server.listen
  embedsrv config list`

const configShortDesc string = "Manage persistent embedsrv configuration"

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

func completeKeys(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return config.ValidConfigKeys(), cobra.ShellCompDirectiveNoFileComp
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}

func checkKey(key string) error {
	if !config.IsValidConfigKey(key) {
		return fmt.Errorf("unknown config key: %q\n\nValid keys: %s",
			key, strings.Join(config.ValidConfigKeys(), ", "))
	}
	return nil
}

func printTarget(w io.Writer, cfger *config.Configer) {
	fmt.Fprintf(w, "\n  %s %s\n\n",
		cliui.KeyStyle.Render("Config file:"),
		cliui.DimStyle.Render(cfger.GetTarget()),
	)
}
