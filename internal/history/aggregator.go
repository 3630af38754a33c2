// internal/history/aggregator.go

// Package history keeps the bounded record of finished benchmark runs together with daily and
// per-region running averages. Averages are folded in incrementally as runs arrive; they are
// never recomputed from the retained runs.
package history

import (
	"sort"
	"sync"
	"time"

	"github.com/mwiater/georaft/internal/benchmark"
	"github.com/mwiater/georaft/internal/logging"
	"github.com/mwiater/georaft/internal/metrics"
)

const dayLayout = "2006-01-02"

// DailyAverage is the running average of the runs that completed on one UTC day.
type DailyAverage struct {
	Date            string  `json:"date"`
	Runs            int64   `json:"runs"`
	AvgTPS          float64 `json:"avgTPS"`
	AvgLatency      float64 `json:"avgLatency"`
	AvgOptimization float64 `json:"avgOptimization"`
}

// RegionPoint is one run's figures for a region.
type RegionPoint struct {
	Timestamp    time.Time `json:"timestamp"`
	TPS          float64   `json:"tps"`
	Latency      float64   `json:"latency"`
	Optimization float64   `json:"optimization"`
}

// RegionalComparison is the running average of one region across runs plus its recent points.
type RegionalComparison struct {
	Region          string        `json:"region"`
	Runs            int64         `json:"runs"`
	AvgTPS          float64       `json:"avgTPS"`
	AvgLatency      float64       `json:"avgLatency"`
	AvgOptimization float64       `json:"avgOptimization"`
	Trend           []RegionPoint `json:"trend"`
}

// Historical bundles the long-lived aggregates.
type Historical struct {
	DailyAverages       []DailyAverage       `json:"dailyAverages"`
	RegionalComparisons []RegionalComparison `json:"regionalComparisons"`
}

// Options bounds the aggregator's collections. Zero values select the defaults.
type Options struct {
	MaxRuns  int
	MaxDays  int
	MaxTrend int
}

type regionEntry struct {
	comp  RegionalComparison
	trend *metrics.Ring[RegionPoint]
}

// Aggregator is safe for concurrent use.
type Aggregator struct {
	mu       sync.RWMutex
	runs     *metrics.Ring[benchmark.Run]
	days     []DailyAverage
	maxDays  int
	maxTrend int
	regions  map[string]*regionEntry
}

// New returns an empty Aggregator.
func New(opts Options) *Aggregator {
	if opts.MaxRuns <= 0 {
		opts.MaxRuns = 100
	}
	if opts.MaxDays <= 0 {
		opts.MaxDays = 30
	}
	if opts.MaxTrend <= 0 {
		opts.MaxTrend = 20
	}
	return &Aggregator{
		runs:     metrics.NewRing[benchmark.Run](opts.MaxRuns),
		maxDays:  opts.MaxDays,
		maxTrend: opts.MaxTrend,
		regions:  make(map[string]*regionEntry),
	}
}

// Ingest records a terminal run. Non-terminal runs are ignored.
func (a *Aggregator) Ingest(run benchmark.Run) {
	if !run.Status.Terminal() {
		logging.WithComponent("history").WithField("run", run.ID).Warnf("ignoring %s run", run.Status)
		return
	}
	run = run.Clone()
	var results benchmark.Results
	if run.Results != nil {
		results = *run.Results
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if evicted, ok := a.runs.Push(run); ok {
		logging.WithComponent("history").WithField("run", evicted.ID).Debug("evicted oldest run")
	}
	a.foldDay(run.CompletedAt(), results.Overall)
	for region, agg := range results.ByRegion {
		a.foldRegion(region, run.CompletedAt(), agg)
	}
}

func (a *Aggregator) foldDay(at time.Time, overall benchmark.Aggregate) {
	key := at.UTC().Format(dayLayout)
	idx := -1
	for i := range a.days {
		if a.days[i].Date == key {
			idx = i
			break
		}
	}
	if idx < 0 {
		a.days = append(a.days, DailyAverage{Date: key})
		idx = len(a.days) - 1
	}
	d := &a.days[idx]
	d.AvgTPS = metrics.IncrementalMean(d.AvgTPS, d.Runs, overall.AvgTPS)
	d.AvgLatency = metrics.IncrementalMean(d.AvgLatency, d.Runs, overall.AvgLatency)
	d.AvgOptimization = metrics.IncrementalMean(d.AvgOptimization, d.Runs, overall.Optimization)
	d.Runs++

	if over := len(a.days) - a.maxDays; over > 0 {
		a.days = append([]DailyAverage(nil), a.days[over:]...)
	}
}

func (a *Aggregator) foldRegion(region string, at time.Time, agg benchmark.Aggregate) {
	e, ok := a.regions[region]
	if !ok {
		e = &regionEntry{comp: RegionalComparison{Region: region}, trend: metrics.NewRing[RegionPoint](a.maxTrend)}
		a.regions[region] = e
	}
	c := &e.comp
	c.AvgTPS = metrics.IncrementalMean(c.AvgTPS, c.Runs, agg.AvgTPS)
	c.AvgLatency = metrics.IncrementalMean(c.AvgLatency, c.Runs, agg.AvgLatency)
	c.AvgOptimization = metrics.IncrementalMean(c.AvgOptimization, c.Runs, agg.Optimization)
	c.Runs++
	e.trend.Push(RegionPoint{Timestamp: at, TPS: agg.AvgTPS, Latency: agg.AvgLatency, Optimization: agg.Optimization})
}

// Len reports the number of retained runs.
func (a *Aggregator) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.runs.Len()
}

// Runs returns copies of the retained runs, oldest first.
func (a *Aggregator) Runs() []benchmark.Run {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return cloneRuns(a.runs.Items())
}

// Lookup finds a retained run by id.
func (a *Aggregator) Lookup(id string) (benchmark.Run, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, run := range a.runs.Items() {
		if run.ID == id {
			return run.Clone(), true
		}
	}
	return benchmark.Run{}, false
}

// Historical returns copies of the daily averages and the regional comparisons sorted by region.
func (a *Aggregator) Historical() Historical {
	a.mu.RLock()
	defer a.mu.RUnlock()

	h := Historical{
		DailyAverages:       append([]DailyAverage{}, a.days...),
		RegionalComparisons: make([]RegionalComparison, 0, len(a.regions)),
	}
	for _, e := range a.regions {
		c := e.comp
		c.Trend = e.trend.Items()
		h.RegionalComparisons = append(h.RegionalComparisons, c)
	}
	sort.Slice(h.RegionalComparisons, func(i, j int) bool {
		return h.RegionalComparisons[i].Region < h.RegionalComparisons[j].Region
	})
	return h
}

func cloneRuns(runs []benchmark.Run) []benchmark.Run {
	out := make([]benchmark.Run, len(runs))
	for i, r := range runs {
		out[i] = r.Clone()
	}
	return out
}
