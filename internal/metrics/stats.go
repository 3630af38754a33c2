// internal/metrics/stats.go
package metrics

import "math"

// RunningStat holds the values needed for online calculation of mean, variance and bounds.
// Raw observations are not retained.
type RunningStat struct {
	Count int64   `json:"count"`
	Mean  float64 `json:"mean"`
	M2    float64 `json:"-"` // sum of squares of differences from the current mean
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

// Add folds value into the statistic. The mean follows avg' = (avg*n + x)/(n+1);
// M2 uses Welford's update so the variance stays numerically stable.
func (rs *RunningStat) Add(value float64) {
	if rs.Count == 0 {
		rs.Min = value
		rs.Max = value
	} else {
		if value < rs.Min {
			rs.Min = value
		}
		if value > rs.Max {
			rs.Max = value
		}
	}

	prevMean := rs.Mean
	rs.Mean = IncrementalMean(rs.Mean, rs.Count, value)
	rs.Count++
	rs.M2 += (value - prevMean) * (value - rs.Mean)
}

// Variance returns the sample variance, or zero with fewer than two observations.
func (rs RunningStat) Variance() float64 {
	if rs.Count < 2 {
		return 0
	}
	return rs.M2 / float64(rs.Count-1)
}

// StdDev returns the sample standard deviation.
func (rs RunningStat) StdDev() float64 {
	return math.Sqrt(rs.Variance())
}

// IncrementalMean returns the mean after folding x into a mean of n observations.
func IncrementalMean(avg float64, n int64, x float64) float64 {
	return (avg*float64(n) + x) / float64(n+1)
}

// Mean returns the arithmetic mean of values, or zero for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
