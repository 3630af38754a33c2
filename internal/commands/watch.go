// internal/commands/watch.go
package georaft

import (
	"os"
	"os/signal"

	"github.com/mwiater/georaft/internal/tui"
	"github.com/spf13/cobra"
)

// watchCmd opens the live terminal dashboard.
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Open the live dashboard in the terminal",
	Long: `Connect to the server's event plane and render live metrics, regional statistics and
benchmark progress. Keys: m toggles monitoring, s starts a benchmark, x stops it, q quits.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		c := newClient()
		rooms, _ := cmd.Flags().GetStringSlice("rooms")
		events, err := c.Watch(ctx, rooms...)
		if err != nil {
			return err
		}
		return tui.Run(ctx, c, events, c.BaseURL())
	},
}

func init() {
	watchCmd.Flags().StringSlice("rooms", nil, "topics to follow: performance, benchmark, monitoring (default all)")
	rootCmd.AddCommand(watchCmd)
}
