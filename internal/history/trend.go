// internal/history/trend.go
package history

import "github.com/mwiater/georaft/internal/metrics"

// Trend is the direction a metric moved over recent runs.
type Trend string

const (
	TrendImproving Trend = "improving"
	TrendDeclining Trend = "declining"
	TrendStable    Trend = "stable"
)

const (
	trendWindow    = 5
	trendThreshold = 0.05
)

// Classify compares the mean of the last five values with the mean of the five before them.
// A move of more than 5% in the favourable direction is improving, in the other direction
// declining. Fewer than ten values are always stable.
func Classify(values []float64, higherIsBetter bool) Trend {
	if len(values) < 2*trendWindow {
		return TrendStable
	}
	n := len(values)
	recent := metrics.Mean(values[n-trendWindow:])
	previous := metrics.Mean(values[n-2*trendWindow : n-trendWindow])

	up := recent > previous*(1+trendThreshold)
	down := recent < previous*(1-trendThreshold)
	switch {
	case higherIsBetter && up, !higherIsBetter && down:
		return TrendImproving
	case higherIsBetter && down, !higherIsBetter && up:
		return TrendDeclining
	default:
		return TrendStable
	}
}

// TrendSummary classifies the headline metrics of a run sequence.
type TrendSummary struct {
	TPS          Trend `json:"tps"`
	Latency      Trend `json:"latency"`
	Optimization Trend `json:"optimization"`
}
