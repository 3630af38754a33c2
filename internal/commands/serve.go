// internal/commands/serve.go
package georaft

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mwiater/georaft/internal/dashboard"
	"github.com/mwiater/georaft/internal/logging"
	"github.com/mwiater/georaft/internal/server"
	"github.com/spf13/cobra"
)

// newService is swapped in tests.
var newService = dashboard.New

// serveCmd runs the telemetry engine and exposes it over HTTP and websocket.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the dashboard server",
	Long:  `Start metric collection, the benchmark orchestrator, the REST control plane and the websocket event plane.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runServe(ctx, cmd)
	},
}

func runServe(ctx context.Context, cmd *cobra.Command) error {
	cfg := config()
	log := logging.WithComponent("serve")

	svc, err := newService(cfg)
	if err != nil {
		return err
	}
	svc.Start(ctx)

	srv := server.New(svc, server.Options{Addr: cfg.ListenAddr(), Version: appVersion})
	cmd.Printf("georaft %s listening on %s\n", appVersion, cfg.ListenAddr())
	logging.LogEvent("georaft %s (commit %s) serving on %s", appVersion, appCommit, cfg.ListenAddr())
	serveErr := srv.ListenAndServe(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := svc.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("shutdown incomplete")
	}
	logging.LogEvent("georaft %s stopped", appVersion)
	return serveErr
}

func init() {
	serveCmd.Flags().String("host", "", "interface to listen on")
	serveCmd.Flags().Int("port", 0, "port to listen on")
	serveCmd.Flags().Bool("autoStartMonitoring", true, "start collecting when the first client connects")
	rootCmd.AddCommand(serveCmd)
}
