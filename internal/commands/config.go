// internal/commands/config.go
package georaft

import (
	"github.com/mwiater/georaft/internal/appconfig"
	"github.com/spf13/cobra"
)

// configCmd groups configuration commands.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the merged configuration",
}

var showConfigCmd = &cobra.Command{
	Use:   "show",
	Short: "Show config settings",
	Long:  `Show config settings ensuring that the config file is loaded properly and overridden by environment and flags accordingly.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if JSONModeEnabled() {
			return printJSON(cmd.OutOrStdout(), config())
		}
		appconfig.ShowConfig(cmd.OutOrStdout(), loadedFile, GetConfig(), appconfig.Default())
		return nil
	},
}

func init() {
	configCmd.AddCommand(showConfigCmd)
	rootCmd.AddCommand(configCmd)
}
