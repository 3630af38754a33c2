// internal/benchmark/parser.go
package benchmark

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	roundPattern   = regexp.MustCompile(`Round\s*(\d+)`)
	tpsPattern     = regexp.MustCompile(`(?i)(\d+\.?\d*)\s*tps`)
	latencyPattern = regexp.MustCompile(`(?i)(\d+\.?\d*)\s*ms`)
)

// Signal holds what one output chunk says about the run.
type Signal struct {
	Round      int
	HasRound   bool
	TPS        float64
	HasTPS     bool
	Latency    float64
	HasLatency bool
}

// ParseChunk scans one chunk of benchmark stdout. Round, throughput and latency markers are
// independent; a latency value only counts when the chunk talks about latency or an average.
func ParseChunk(chunk string) Signal {
	var sig Signal
	if m := roundPattern.FindStringSubmatch(chunk); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			sig.Round, sig.HasRound = n, true
		}
	}
	if m := tpsPattern.FindStringSubmatch(chunk); m != nil {
		if f, err := strconv.ParseFloat(m[1], 64); err == nil {
			sig.TPS, sig.HasTPS = f, true
		}
	}
	lower := strings.ToLower(chunk)
	if strings.Contains(lower, "latency") || strings.Contains(lower, "avg") {
		if m := latencyPattern.FindStringSubmatch(chunk); m != nil {
			if f, err := strconv.ParseFloat(m[1], 64); err == nil {
				sig.Latency, sig.HasLatency = f, true
			}
		}
	}
	return sig
}

// Empty reports whether the chunk carried no signal.
func (s Signal) Empty() bool {
	return !s.HasRound && !s.HasTPS && !s.HasLatency
}

// ProgressFor converts a round number into a percentage of totalRounds, capped at 100.
func ProgressFor(round, totalRounds int) float64 {
	if totalRounds <= 0 || round <= 0 {
		return 0
	}
	p := float64(round) / float64(totalRounds) * 100
	if p > 100 {
		return 100
	}
	return p
}
