// internal/commands/sources.go
package georaft

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/mwiater/georaft/internal/appconfig"
	"github.com/mwiater/georaft/internal/dashboard"
	"github.com/mwiater/georaft/internal/sources"
	"github.com/spf13/cobra"
)

// sourcesCmd groups metric-backend diagnostics.
var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "Inspect the configured metric sources",
}

var sourcesCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Run every configured query once and report which sources answered",
	Long: `Evaluate each local and regional query against Prometheus and the monitoring service
exactly as one collection tick would, without starting a server.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSourcesCheck(cmd.Context(), cmd.OutOrStdout(), config())
	},
}

func runSourcesCheck(ctx context.Context, out io.Writer, cfg appconfig.Config) error {
	srcs, err := dashboard.BuildSources(cfg)
	if err != nil {
		return err
	}
	if len(srcs) == 0 {
		return errors.New("no metric sources configured")
	}

	queries := make([]sources.Query, 0, len(cfg.Queries)+len(cfg.RegionQueries))
	for _, q := range cfg.Queries {
		queries = append(queries, sources.Query{Name: q.Name, Source: q.Source, Expr: q.Expr})
	}
	for _, q := range cfg.RegionQueries {
		queries = append(queries, sources.Query{Name: "region:" + q.Field, Source: sources.PrometheusSourceName, Expr: q.Expr})
	}

	adapter := sources.NewAdapter(cfg.FetchTimeoutDuration(), srcs...)
	results := adapter.Fetch(ctx, queries)

	if JSONModeEnabled() {
		ordered := make([]sources.Result, 0, len(queries))
		for _, q := range queries {
			ordered = append(ordered, results[q.Name])
		}
		return printJSON(out, ordered)
	}

	fmt.Fprintln(out, headerText("Metric sources"))
	fmt.Fprintf(out, "  Prometheus:         %s\n", cfg.PrometheusURL)
	fmt.Fprintf(out, "  Monitoring Service: %s\n\n", cfg.MonitoringServiceURL)

	available := 0
	for _, q := range queries {
		r := results[q.Name]
		if !r.Available {
			fmt.Fprintf(out, "  %-24s %-10s %s  %s\n", q.Name, q.Source, failedText("down"), r.Error)
			continue
		}
		available++
		detail := fmt.Sprintf("%d points", len(r.Payload.Points))
		if v, ok := r.Scalar(); ok {
			detail = fmt.Sprintf("%.3f", v)
		} else if len(r.Payload.Document) > 0 {
			detail = fmt.Sprintf("document (%d bytes)", len(r.Payload.Document))
		}
		fmt.Fprintf(out, "  %-24s %-10s %s    %s (%s)\n", q.Name, q.Source, successText("ok"), detail, r.Duration.Round(time.Millisecond))
	}
	fmt.Fprintf(out, "\n  %d/%d queries answered\n", available, len(queries))

	if available == 0 {
		return errors.New("no metric source answered")
	}
	return nil
}

func init() {
	sourcesCmd.AddCommand(sourcesCheckCmd)
	rootCmd.AddCommand(sourcesCmd)
}
