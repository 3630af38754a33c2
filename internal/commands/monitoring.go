// internal/commands/monitoring.go
package georaft

import (
	"fmt"

	"github.com/spf13/cobra"
)

// monitoringCmd groups the collection toggles.
var monitoringCmd = &cobra.Command{
	Use:   "monitoring",
	Short: "Start or stop periodic metric collection on the server",
}

func newMonitoringToggle(on bool) *cobra.Command {
	use, short := "stop", "Stop metric collection"
	if on {
		use, short = "start", "Start metric collection"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			state, err := newClient().SetMonitoring(cmd.Context(), on)
			if err != nil {
				return err
			}
			if JSONModeEnabled() {
				return printJSON(cmd.OutOrStdout(), state)
			}
			word := "stopped"
			if state.IsMonitoring {
				word = "started"
			}
			if !state.Changed {
				word = "already " + word
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Monitoring %s\n", successText(word))
			return nil
		},
	}
}

func init() {
	monitoringCmd.AddCommand(newMonitoringToggle(true), newMonitoringToggle(false))
	rootCmd.AddCommand(monitoringCmd)
}
