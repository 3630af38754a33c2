// internal/metrics/types.go
package metrics

import (
	"encoding/json"
	"time"
)

// Well-known series names. The realtime and consensus summaries are derived from them.
const (
	SeriesTPS               = "tps"
	SeriesLatency           = "latency"
	SeriesCPU               = "cpu"
	SeriesMemory            = "memory"
	SeriesNetworkThroughput = "networkThroughput"
	SeriesBlockHeight       = "blockHeight"
	SeriesBlockTime         = "blockTime"
	SeriesLeaderElections   = "leaderElections"
	SeriesCommitEfficiency  = "commitEfficiency"
	SeriesActiveNodes       = "activeNodes"
)

// baseSeries always appear in a snapshot, empty or not.
var baseSeries = []string{SeriesTPS, SeriesLatency, SeriesCPU, SeriesMemory, SeriesNetworkThroughput}

// Sample is one timestamped observation of a metric.
type Sample struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// RegionalStat is the latest per-region view collected from the metric sources.
type RegionalStat struct {
	Region       string    `json:"region"`
	Timestamp    time.Time `json:"timestamp"`
	TPS          float64   `json:"tps"`
	Latency      float64   `json:"latency"`
	Transactions float64   `json:"transactions"`
	ErrorRate    float64   `json:"errorRate"`
	Optimization float64   `json:"optimization"`
	Throughput   float64   `json:"throughput"`
}

// ConsensusStats summarizes the ordering service.
type ConsensusStats struct {
	BlockHeight      float64 `json:"blockHeight"`
	BlockTime        float64 `json:"blockTime"`
	LeaderElections  float64 `json:"leaderElections"`
	CommitEfficiency float64 `json:"commitEfficiency"`
}

// RealtimeStats is the headline view of the latest tick.
type RealtimeStats struct {
	CurrentTPS    float64 `json:"currentTPS"`
	AvgLatency    float64 `json:"avgLatency"`
	ActiveNodes   int     `json:"activeNodes"`
	NetworkStatus string  `json:"networkStatus"`
}

// SourceStatus records whether a query answered on its last attempt.
type SourceStatus struct {
	Available bool      `json:"available"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checkedAt"`
}

// Snapshot is the complete Performance Store state handed to observers.
type Snapshot struct {
	Timestamp      time.Time                  `json:"timestamp"`
	Metrics        map[string][]Sample        `json:"metrics"`
	Geographic     map[string]RegionalStat    `json:"geographic"`
	RegionalTrends map[string][]RegionalStat  `json:"regionalTrends"`
	Consensus      ConsensusStats             `json:"consensus"`
	Realtime       RealtimeStats              `json:"realtime"`
	Sources        map[string]SourceStatus    `json:"sources"`
	Documents      map[string]json.RawMessage `json:"documents,omitempty"`
}
