// internal/history/report.go
package history

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/mwiater/georaft/internal/benchmark"
	"github.com/mwiater/georaft/internal/metrics"
)

// ErrInvalidFilter is returned for an unknown time window.
var ErrInvalidFilter = errors.New("invalid history filter")

const (
	recentRuns      = 20
	trendWindowDays = 30
)

// Filter narrows the runs a Report covers. Empty fields and "all" match everything.
type Filter struct {
	Region   string `json:"region,omitempty"`
	Workload string `json:"workload,omitempty"`
	// Window is one of 24h, 7d, 30d or all.
	Window string `json:"time,omitempty"`
}

// RegionAnalysis summarizes one region across the retained runs.
type RegionAnalysis struct {
	AvgTPS     float64 `json:"avgTPS"`
	AvgLatency float64 `json:"avgLatency"`
	Count      int     `json:"count"`
	Trend      Trend   `json:"trend"`
}

// DailyTrend is the per-day mean of the filtered runs, for charting.
type DailyTrend struct {
	Date       string  `json:"date"`
	Runs       int     `json:"runs"`
	AvgTPS     float64 `json:"avgTPS"`
	AvgLatency float64 `json:"avgLatency"`
}

// Improvement is the mean percentage improvement over the baseline. ErrorRate averages only
// the runs that reported an error rate.
type Improvement struct {
	TPS       float64 `json:"tps"`
	Latency   float64 `json:"latency"`
	ErrorRate float64 `json:"errorRate"`
}

// Summary is the headline of a Report.
type Summary struct {
	TotalRuns          int            `json:"totalRuns"`
	AverageImprovement Improvement    `json:"averageImprovement"`
	BestPerformance    *benchmark.Run `json:"bestPerformance"`
	Trends             TrendSummary   `json:"trends"`
}

// Report answers a history query.
type Report struct {
	Filter     Filter                    `json:"filter"`
	Recent     []benchmark.Run           `json:"recent"`
	History    []benchmark.Run           `json:"history"`
	Regional   map[string]RegionAnalysis `json:"regional"`
	Trends     []DailyTrend              `json:"trends"`
	Historical Historical                `json:"historical"`
	Summary    Summary                   `json:"summary"`
}

// WindowStart returns the earliest completion time the window admits; the zero time means no bound.
func WindowStart(window string, now time.Time) (time.Time, error) {
	switch window {
	case "", "all":
		return time.Time{}, nil
	case "24h":
		return now.Add(-24 * time.Hour), nil
	case "7d":
		return now.AddDate(0, 0, -7), nil
	case "30d":
		return now.AddDate(0, 0, -30), nil
	default:
		return time.Time{}, fmt.Errorf("%w: unknown time window %q", ErrInvalidFilter, window)
	}
}

// Report filters the retained runs and derives the regional, daily and summary views.
func (a *Aggregator) Report(f Filter, now time.Time) (Report, error) {
	since, err := WindowStart(f.Window, now)
	if err != nil {
		return Report{}, err
	}
	all := a.Runs()

	filtered := make([]benchmark.Run, 0, len(all))
	for _, run := range all {
		if f.matches(run, since) {
			filtered = append(filtered, run)
		}
	}

	rep := Report{
		Filter:     f,
		History:    filtered,
		Recent:     filtered[max(0, len(filtered)-recentRuns):],
		Regional:   regionalAnalysis(all),
		Trends:     dailyTrends(filtered, now),
		Historical: a.Historical(),
		Summary:    summarize(filtered),
	}
	return rep, nil
}

func (f Filter) matches(run benchmark.Run, since time.Time) bool {
	if f.Region != "" && f.Region != "all" && !runCovers(run, f.Region) {
		return false
	}
	if f.Workload != "" && f.Workload != "all" && run.Workload() != f.Workload {
		return false
	}
	if !since.IsZero() && run.CompletedAt().Before(since) {
		return false
	}
	return true
}

func runCovers(run benchmark.Run, region string) bool {
	if slices.Contains(run.Config.Regions(), region) {
		return true
	}
	if run.Results != nil {
		_, ok := run.Results.ByRegion[region]
		return ok
	}
	return false
}

func regionalAnalysis(runs []benchmark.Run) map[string]RegionAnalysis {
	tps := make(map[string][]float64)
	latency := make(map[string][]float64)
	for _, run := range runs {
		if run.Results == nil {
			continue
		}
		for region, agg := range run.Results.ByRegion {
			tps[region] = append(tps[region], agg.AvgTPS)
			latency[region] = append(latency[region], agg.AvgLatency)
		}
	}
	out := make(map[string]RegionAnalysis, len(tps))
	for region, values := range tps {
		out[region] = RegionAnalysis{
			AvgTPS:     metrics.Mean(values),
			AvgLatency: metrics.Mean(latency[region]),
			Count:      len(values),
			Trend:      Classify(values, true),
		}
	}
	return out
}

func dailyTrends(runs []benchmark.Run, now time.Time) []DailyTrend {
	since := now.AddDate(0, 0, -trendWindowDays)
	type acc struct{ tps, latency metrics.RunningStat }
	days := make(map[string]*acc)
	for _, run := range runs {
		at := run.CompletedAt()
		if at.Before(since) || run.Results == nil {
			continue
		}
		key := at.UTC().Format(dayLayout)
		d, ok := days[key]
		if !ok {
			d = &acc{}
			days[key] = d
		}
		d.tps.Add(run.Results.Overall.AvgTPS)
		d.latency.Add(run.Results.Overall.AvgLatency)
	}

	out := make([]DailyTrend, 0, len(days))
	for key, d := range days {
		out = append(out, DailyTrend{Date: key, Runs: int(d.tps.Count), AvgTPS: d.tps.Mean, AvgLatency: d.latency.Mean})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

func summarize(runs []benchmark.Run) Summary {
	s := Summary{TotalRuns: len(runs)}

	var tps, latency, optimization []float64
	var impTPS, impLatency, impErr metrics.RunningStat
	for i := range runs {
		res := runs[i].Results
		if res == nil {
			continue
		}
		tps = append(tps, res.Overall.AvgTPS)
		latency = append(latency, res.Overall.AvgLatency)
		optimization = append(optimization, res.Overall.Optimization)
		impTPS.Add(res.Comparison.Improvement.TPSIncrease)
		impLatency.Add(res.Comparison.Improvement.LatencyReduction)
		if er := res.Comparison.Improvement.ErrorReduction; er != nil {
			impErr.Add(*er)
		}

		if s.BestPerformance == nil || res.Overall.AvgTPS > s.BestPerformance.Results.Overall.AvgTPS {
			best := runs[i]
			s.BestPerformance = &best
		}
	}

	s.AverageImprovement = Improvement{TPS: impTPS.Mean, Latency: impLatency.Mean, ErrorRate: impErr.Mean}
	s.Trends = TrendSummary{
		TPS:          Classify(tps, true),
		Latency:      Classify(latency, false),
		Optimization: Classify(optimization, true),
	}
	return s
}
