package appconfig

import (
	"fmt"
	"io"
)

// ShowConfig prints the current configuration summary.
func ShowConfig(out io.Writer, file string, cfg *Config, fallback Config) {
	if file == "" {
		fmt.Fprintln(out, "No config file loaded (using defaults).")
	} else {
		fmt.Fprintf(out, "Config file: %s\n\n", file)
	}

	if cfg == nil {
		cfg = &fallback
	}

	fmt.Fprintln(out, "Current configuration:")
	fmt.Fprintf(out, "  Listen:              %s\n", cfg.ListenAddr())
	fmt.Fprintf(out, "  Prometheus:          %s\n", cfg.PrometheusURL)
	fmt.Fprintf(out, "  Monitoring Service:  %s\n", cfg.MonitoringServiceURL)
	fmt.Fprintf(out, "  Fetch Timeout:       %s\n", cfg.FetchTimeoutDuration())
	fmt.Fprintf(out, "  Collect Interval:    %s\n", cfg.CollectIntervalDuration())
	fmt.Fprintf(out, "  Region Interval:     %s\n", cfg.RegionIntervalDuration())
	fmt.Fprintf(out, "  Capacities:          samples=%d runs=%d days=%d trend=%d\n",
		cfg.SampleCapacity(), cfg.RunCapacity(), cfg.DayCapacity(), cfg.TrendCapacity())
	fmt.Fprintf(out, "  Auto-start Monitor:  %v\n", cfg.AutoStartMonitoring)
	fmt.Fprintf(out, "  Debug:               %v\n", cfg.Debug)
	fmt.Fprintf(out, "  Benchmark Command:   %s %v\n", cfg.Benchmark.CommandPath(), cfg.Benchmark.CommandArgs())
	fmt.Fprintf(out, "  Benchmark WorkDir:   %s\n", cfg.Benchmark.WorkDir)
	fmt.Fprintf(out, "  Benchmark Rounds:    %d\n", cfg.Benchmark.Rounds())
	fmt.Fprintf(out, "  Benchmark Timeout:   %s\n", cfg.Benchmark.TimeoutDuration())
	fmt.Fprintf(out, "  Queries:             %d local, %d regional\n", len(cfg.Queries), len(cfg.RegionQueries))
	for _, q := range cfg.Queries {
		fmt.Fprintf(out, "    - %-20s %-10s -> %s\n", q.Name, q.Source, q.Series)
	}
}
