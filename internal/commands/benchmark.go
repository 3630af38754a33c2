// internal/commands/benchmark.go
package georaft

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/k0kubun/pp"
	"github.com/mwiater/georaft/internal/benchmark"
	"github.com/mwiater/georaft/internal/client"
	"github.com/mwiater/georaft/internal/history"
	"github.com/mwiater/georaft/internal/hub"
	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"
)

// benchmarkCmd groups benchmark-related CLI commands.
var benchmarkCmd = &cobra.Command{
	Use:   "benchmark",
	Short: "Start, stop and inspect benchmark runs",
}

var benchmarkStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a benchmark run",
	Long: `Start a benchmark run on the server. Parameters come from --file (YAML or JSON) and are
overridden by flags; with neither the server's default workload is used.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := benchmarkConfigFromFlags(cmd)
		if err != nil {
			return err
		}
		wait, _ := cmd.Flags().GetBool("wait")
		return runBenchmarkStart(cmd.Context(), cmd.OutOrStdout(), newClient(), cfg, wait)
	},
}

var benchmarkStopCmd = &cobra.Command{
	Use:   "stop <id>",
	Short: "Stop the active benchmark run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := newClient().StopBenchmark(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Stop requested for benchmark %s\n", args[0])
		return nil
	},
}

var benchmarkStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show monitoring state, live metrics and the active run",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := newClient().Status(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if JSONModeEnabled() {
			return printJSON(out, st)
		}
		rt := st.Snapshot.Realtime
		fmt.Fprintln(out, headerText("Server status"))
		fmt.Fprintf(out, "  Uptime:       %s\n", st.Uptime)
		fmt.Fprintf(out, "  Monitoring:   %v\n", st.Monitoring)
		fmt.Fprintf(out, "  Network:      %s\n", statusText(rt.NetworkStatus))
		fmt.Fprintf(out, "  Current TPS:  %.1f\n", rt.CurrentTPS)
		fmt.Fprintf(out, "  Avg Latency:  %.0f ms\n", rt.AvgLatency)
		fmt.Fprintf(out, "  Active Nodes: %d\n", rt.ActiveNodes)
		fmt.Fprintf(out, "  Subscribers:  %d\n", st.Subscribers)
		fmt.Fprintf(out, "  History:      %d runs\n", st.HistorySize)
		if run := st.Benchmark.Current; st.Benchmark.Running && run != nil {
			fmt.Fprintf(out, "  Benchmark:    %s %s round %d (%.1f%%)\n", run.ID, statusText(string(run.Status)), run.Round, run.Progress)
		} else {
			fmt.Fprintln(out, "  Benchmark:    idle")
		}
		return nil
	},
}

var benchmarkDetailsCmd = &cobra.Command{
	Use:   "details <id>",
	Short: "Show one run, active or retained",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		run, err := newClient().Details(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if raw, _ := cmd.Flags().GetBool("raw"); raw {
			_, err := pp.Fprintln(out, run)
			return err
		}
		if JSONModeEnabled() {
			return printJSON(out, run)
		}
		printRun(out, run)
		return nil
	},
}

var benchmarkHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Show retained runs with regional analysis, trends and summary",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		f := history.Filter{}
		f.Region, _ = cmd.Flags().GetString("region")
		f.Workload, _ = cmd.Flags().GetString("workload")
		f.Window, _ = cmd.Flags().GetString("time")
		rep, err := newClient().History(cmd.Context(), f)
		if err != nil {
			return err
		}
		format, _ := cmd.Flags().GetString("output")
		out := cmd.OutOrStdout()
		if done, err := printStructured(out, format, rep); done {
			return err
		}
		printHistory(out, rep)
		return nil
	},
}

var benchmarkImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Add a run recorded by other tooling to the server's history",
	Long: `Upload a finished run (YAML or JSON, same shape as "benchmark details --jsonMode") so it
counts toward daily averages, regional comparisons and trends. The server assigns the id.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		run, err := readRunFile(args[0])
		if err != nil {
			return err
		}
		stored, err := newClient().ImportRun(cmd.Context(), run)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if JSONModeEnabled() {
			return printJSON(out, stored)
		}
		fmt.Fprintf(out, "Benchmark %s imported\n", stored.ID)
		return nil
	},
}

// readRunFile decodes a YAML or JSON run document through its JSON field names.
func readRunFile(path string) (benchmark.Run, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return benchmark.Run{}, fmt.Errorf("read run file: %w", err)
	}
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return benchmark.Run{}, fmt.Errorf("parse run file: %w", err)
	}
	if doc == nil {
		return benchmark.Run{}, errors.New("run file is empty")
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return benchmark.Run{}, fmt.Errorf("parse run file: %w", err)
	}
	var run benchmark.Run
	if err := json.Unmarshal(raw, &run); err != nil {
		return benchmark.Run{}, fmt.Errorf("parse run file: %w", err)
	}
	return run, nil
}

func runBenchmarkStart(ctx context.Context, out io.Writer, c *client.Client, cfg benchmark.Config, wait bool) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var events <-chan client.Event
	if wait {
		var err error
		if events, err = c.Watch(ctx, hub.TopicBenchmark); err != nil {
			return err
		}
	}

	started, err := c.StartBenchmark(ctx, cfg)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Benchmark %s started\n", started.ID)
	if !wait {
		return nil
	}

	for ev := range events {
		switch ev.Type {
		case benchmark.EventProgress:
			var p benchmark.ProgressEvent
			if ev.Decode(&p) == nil && p.ID == started.ID {
				fmt.Fprintf(out, "  round %d  %5.1f%%\n", p.Round, p.Progress)
			}
		case benchmark.EventCompleted:
			var done benchmark.CompletedEvent
			if ev.Decode(&done) != nil || done.ID != started.ID {
				continue
			}
			fmt.Fprintf(out, "Benchmark %s %s\n", done.ID, statusText(string(done.Status)))
			if done.Results != nil {
				printResults(out, *done.Results)
			}
			if done.Status == benchmark.StatusFailed {
				return fmt.Errorf("benchmark %s failed: %s", done.ID, done.Error)
			}
			return nil
		}
	}
	return errors.New("event stream closed before the benchmark finished")
}

// benchmarkConfigFromFlags merges --file with the explicit parameter flags.
func benchmarkConfigFromFlags(cmd *cobra.Command) (benchmark.Config, error) {
	cfg := benchmark.Config{}
	if path, _ := cmd.Flags().GetString("file"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read benchmark config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse benchmark config %s: %w", path, err)
		}
	}

	flags := cmd.Flags()
	for _, name := range []string{"transactions", "workers", "duration", "tps"} {
		if flags.Changed(name) {
			v, _ := flags.GetInt(name)
			cfg[name] = v
		}
	}
	if flags.Changed("optimization") {
		v, _ := flags.GetFloat64("optimization")
		cfg["optimization"] = v
	}
	if flags.Changed("workload") {
		v, _ := flags.GetString("workload")
		cfg["workload"] = v
	}
	if flags.Changed("regions") {
		v, _ := flags.GetStringSlice("regions")
		cfg["regions"] = v
	}
	if len(cfg) == 0 {
		return nil, nil
	}
	return cfg, nil
}

func printRun(out io.Writer, run benchmark.Run) {
	fmt.Fprintf(out, "%s %s\n", headerText("Benchmark "+run.ID), statusText(string(run.Status)))
	fmt.Fprintf(out, "  Started:   %s\n", run.StartTime.Format("2006-01-02 15:04:05 MST"))
	if run.EndTime != nil {
		fmt.Fprintf(out, "  Finished:  %s (%s)\n", run.EndTime.Format("2006-01-02 15:04:05 MST"), run.EndTime.Sub(run.StartTime).Round(time.Second))
	}
	if w := run.Workload(); w != "" {
		fmt.Fprintf(out, "  Workload:  %s\n", w)
	}
	fmt.Fprintf(out, "  Regions:   %s\n", strings.Join(run.Config.Regions(), ", "))
	fmt.Fprintf(out, "  Progress:  %.1f%% (round %d)\n", run.Progress, run.Round)
	if run.ExitCode != nil {
		fmt.Fprintf(out, "  Exit code: %d\n", *run.ExitCode)
	}
	if run.Error != "" {
		fmt.Fprintf(out, "  Error:     %s\n", failedText(run.Error))
	}
	if run.Results != nil {
		printResults(out, *run.Results)
	}
}

func printResults(out io.Writer, res benchmark.Results) {
	o := res.Overall
	label := "Results"
	if res.Estimated {
		label += warnText(" (estimated)")
	}
	fmt.Fprintln(out, "  "+label)
	fmt.Fprintf(out, "    Transactions: %.0f\n", o.Transactions)
	fmt.Fprintf(out, "    Avg TPS:      %.1f (peak %.1f)\n", o.AvgTPS, o.PeakTPS)
	fmt.Fprintf(out, "    Avg Latency:  %.0f ms", o.AvgLatency)
	if o.MaxLatency > 0 {
		fmt.Fprintf(out, " (min %.0f, max %.0f)", o.MinLatency, o.MaxLatency)
	}
	fmt.Fprintln(out)
	errRate, errDelta := "n/a", "n/a"
	if o.ErrorRate != nil {
		errRate = fmt.Sprintf("%.2f%%", *o.ErrorRate*100)
	}
	imp := res.Comparison.Improvement
	if imp.ErrorReduction != nil {
		errDelta = fmt.Sprintf("%+.1f%%", -*imp.ErrorReduction)
	}
	fmt.Fprintf(out, "    Error Rate:   %s\n", errRate)
	fmt.Fprintf(out, "    vs baseline:  tps %+.1f%%  latency %+.1f%%  errors %s\n",
		imp.TPSIncrease, -imp.LatencyReduction, errDelta)
	for _, region := range sortedKeys(res.ByRegion) {
		r := res.ByRegion[region]
		fmt.Fprintf(out, "    %-14s %8.1f tps %6.0f ms\n", region, r.AvgTPS, r.AvgLatency)
	}
}

func printHistory(out io.Writer, rep history.Report) {
	s := rep.Summary
	fmt.Fprintln(out, headerText("Benchmark history"))
	fmt.Fprintf(out, "  Runs:            %d\n", s.TotalRuns)
	fmt.Fprintf(out, "  Avg improvement: tps %+.1f%%  latency %+.1f%%  errors %+.1f%%\n",
		s.AverageImprovement.TPS, s.AverageImprovement.Latency, s.AverageImprovement.ErrorRate)
	fmt.Fprintf(out, "  Trends:          tps %s  latency %s  optimization %s\n",
		statusText(string(s.Trends.TPS)), statusText(string(s.Trends.Latency)), statusText(string(s.Trends.Optimization)))
	if best := s.BestPerformance; best != nil && best.Results != nil {
		fmt.Fprintf(out, "  Best run:        %s (%.1f tps)\n", best.ID, best.Results.Overall.AvgTPS)
	}

	if len(rep.Recent) > 0 {
		fmt.Fprintln(out, headerText("Recent runs"))
		for _, run := range rep.Recent {
			tps := "-"
			if run.Results != nil {
				tps = fmt.Sprintf("%.1f", run.Results.Overall.AvgTPS)
			}
			fmt.Fprintf(out, "  %-36s %-10s %8s tps  %s\n", run.ID, statusText(string(run.Status)), tps, run.StartTime.Format("2006-01-02 15:04"))
		}
	}
	if len(rep.Regional) > 0 {
		fmt.Fprintln(out, headerText("Regions"))
		for _, region := range sortedKeys(rep.Regional) {
			a := rep.Regional[region]
			fmt.Fprintf(out, "  %-14s %3d runs %8.1f tps %6.0f ms  %s\n", region, a.Count, a.AvgTPS, a.AvgLatency, statusText(string(a.Trend)))
		}
	}
}

func init() {
	benchmarkStartCmd.Flags().String("file", "", "benchmark parameters file (YAML or JSON)")
	benchmarkStartCmd.Flags().Int("transactions", 0, "total transactions to submit")
	benchmarkStartCmd.Flags().Int("workers", 0, "number of Caliper workers")
	benchmarkStartCmd.Flags().Int("duration", 0, "run duration in seconds")
	benchmarkStartCmd.Flags().Int("tps", 0, "target send rate")
	benchmarkStartCmd.Flags().Float64("optimization", 0, "optimization score to record (0-100)")
	benchmarkStartCmd.Flags().String("workload", "", "workload name")
	benchmarkStartCmd.Flags().StringSlice("regions", nil, "regions to exercise")
	benchmarkStartCmd.Flags().Bool("wait", false, "follow progress until the run finishes")

	benchmarkDetailsCmd.Flags().Bool("raw", false, "pretty-print the full run structure")

	benchmarkHistoryCmd.Flags().String("region", "", "only runs that exercised this region")
	benchmarkHistoryCmd.Flags().String("workload", "", "only runs with this workload")
	benchmarkHistoryCmd.Flags().String("time", "", "time window: 24h, 7d, 30d or all")
	benchmarkHistoryCmd.Flags().StringP("output", "o", "table", "output format: table, json or yaml")

	benchmarkCmd.AddCommand(benchmarkStartCmd, benchmarkStopCmd, benchmarkStatusCmd, benchmarkDetailsCmd, benchmarkHistoryCmd, benchmarkImportCmd)
	rootCmd.AddCommand(benchmarkCmd)
}
