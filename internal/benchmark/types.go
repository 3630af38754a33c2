// internal/benchmark/types.go
package benchmark

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Status is the lifecycle state of a Run.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether the run can no longer change.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Config carries opaque benchmark parameters as submitted by the caller.
type Config map[string]any

// String returns the named parameter if it is a non-empty string.
func (c Config) String(key string) string {
	if v, ok := c[key].(string); ok {
		return v
	}
	return ""
}

// Number returns the named parameter as a float64. JSON numbers and numeric strings are accepted.
func (c Config) Number(key string) (float64, bool) {
	switch v := c[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	}
	return 0, false
}

// Strings returns the named parameter as a list of strings.
func (c Config) Strings(key string) []string {
	switch v := c[key].(type) {
	case []string:
		return append([]string(nil), v...)
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		if v != "" {
			return []string{v}
		}
	}
	return nil
}

// Regions lists the regions a run targets, from "regions" or a single "region".
func (c Config) Regions() []string {
	if regions := c.Strings("regions"); len(regions) > 0 {
		return regions
	}
	return c.Strings("region")
}

func (c Config) clone() Config {
	if c == nil {
		return nil
	}
	raw, err := json.Marshal(c)
	if err != nil {
		out := make(Config, len(c))
		for k, v := range c {
			out[k] = v
		}
		return out
	}
	var out Config
	_ = json.Unmarshal(raw, &out)
	return out
}

// Aggregate summarizes a run or one of its regions.
// ErrorRate is nil when the run did not report one.
type Aggregate struct {
	Transactions float64  `json:"transactions"`
	AvgTPS       float64  `json:"avgTPS"`
	PeakTPS      float64  `json:"peakTPS"`
	TPSStdDev    float64  `json:"tpsStdDev,omitempty"`
	AvgLatency   float64  `json:"avgLatency"`
	MinLatency   float64  `json:"minLatency,omitempty"`
	MaxLatency   float64  `json:"maxLatency,omitempty"`
	ErrorRate    *float64 `json:"errorRate,omitempty"`
	Optimization float64  `json:"optimization"`
}

// TypeAggregate summarizes one transaction type.
type TypeAggregate struct {
	Transactions float64 `json:"transactions"`
	AvgTPS       float64 `json:"avgTPS"`
	AvgLatency   float64 `json:"avgLatency"`
	SuccessRate  float64 `json:"successRate"`
	Share        float64 `json:"share"`
}

// Sample is one throughput observation parsed from the benchmark output.
// Latency is zero until a latency marker is merged into the sample.
type Sample struct {
	Timestamp time.Time `json:"timestamp"`
	TPS       float64   `json:"tps"`
	Latency   float64   `json:"latency,omitempty"`
}

// ConsensusSummary describes ordering-service behaviour during the run.
type ConsensusSummary struct {
	TotalBlocks      float64 `json:"totalBlocks"`
	AvgBlockTime     float64 `json:"avgBlockTime"`
	LeaderElections  float64 `json:"leaderElections"`
	CommitEfficiency float64 `json:"commitEfficiency"`
}

// Baseline is the reference deployment a run is compared against.
type Baseline struct {
	AvgTPS     float64 `json:"avgTPS"`
	AvgLatency float64 `json:"avgLatency"`
	ErrorRate  float64 `json:"errorRate"`
}

// Improvement holds percentage changes relative to the Baseline; positive is better.
// ErrorReduction is nil when the run has no error rate to compare.
type Improvement struct {
	TPSIncrease      float64  `json:"tpsIncrease"`
	LatencyReduction float64  `json:"latencyReduction"`
	ErrorReduction   *float64 `json:"errorReduction,omitempty"`
}

// Comparison pairs the baseline with the run's improvement over it.
type Comparison struct {
	Baseline    Baseline    `json:"baseline"`
	Improvement Improvement `json:"improvement"`
}

// Results is the finalized outcome of a run.
type Results struct {
	Overall           Aggregate                `json:"overall"`
	ByRegion          map[string]Aggregate     `json:"byRegion"`
	ByTransactionType map[string]TypeAggregate `json:"byTransactionType"`
	TimeSeries        []Sample                 `json:"timeSeries"`
	Consensus         ConsensusSummary         `json:"consensus"`
	Comparison        Comparison               `json:"comparison"`
	// Estimated is set when no samples were parsed and the figures come from the nominal profile.
	Estimated bool `json:"estimated"`
}

// Run is one benchmark execution.
type Run struct {
	ID        string     `json:"id"`
	Status    Status     `json:"status"`
	StartTime time.Time  `json:"startTime"`
	EndTime   *time.Time `json:"endTime,omitempty"`
	Config    Config     `json:"config"`
	Progress  float64    `json:"progress"`
	Round     int        `json:"round"`
	ExitCode  *int       `json:"exitCode,omitempty"`
	Error     string     `json:"error,omitempty"`
	Samples   []Sample   `json:"samples,omitempty"`
	Results   *Results   `json:"results,omitempty"`
}

// Workload returns the configured workload name.
func (r Run) Workload() string {
	return r.Config.String("workload")
}

// CompletedAt is the end time of a terminal run, or the start time otherwise.
func (r Run) CompletedAt() time.Time {
	if r.EndTime != nil {
		return *r.EndTime
	}
	return r.StartTime
}

// Clone returns a deep copy safe to hand to other goroutines.
func (r Run) Clone() Run {
	out := r
	out.Config = r.Config.clone()
	if r.EndTime != nil {
		t := *r.EndTime
		out.EndTime = &t
	}
	if r.ExitCode != nil {
		c := *r.ExitCode
		out.ExitCode = &c
	}
	out.Samples = append([]Sample(nil), r.Samples...)
	if r.Results != nil {
		res := *r.Results
		res.TimeSeries = append([]Sample(nil), r.Results.TimeSeries...)
		res.Overall.ErrorRate = cloneFloat(r.Results.Overall.ErrorRate)
		res.Comparison.Improvement.ErrorReduction = cloneFloat(r.Results.Comparison.Improvement.ErrorReduction)
		if r.Results.ByRegion != nil {
			res.ByRegion = make(map[string]Aggregate, len(r.Results.ByRegion))
			for k, v := range r.Results.ByRegion {
				v.ErrorRate = cloneFloat(v.ErrorRate)
				res.ByRegion[k] = v
			}
		}
		if r.Results.ByTransactionType != nil {
			res.ByTransactionType = make(map[string]TypeAggregate, len(r.Results.ByTransactionType))
			for k, v := range r.Results.ByTransactionType {
				res.ByTransactionType[k] = v
			}
		}
		out.Results = &res
	}
	return out
}

func cloneFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
