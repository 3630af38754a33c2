// internal/benchmark/results.go
package benchmark

import (
	"math"
	"sort"

	"github.com/mwiater/georaft/internal/metrics"
)

// DefaultBaseline is the pre-optimization deployment every run is compared against.
var DefaultBaseline = Baseline{AvgTPS: 320, AvgLatency: 850, ErrorRate: 0.05}

// regionProfile is the nominal share and behaviour of one region.
type regionProfile struct {
	weight       float64
	latency      float64
	errorRate    float64
	optimization float64
}

var regionProfiles = map[string]regionProfile{
	"americas":    {weight: 0.40, latency: 180, errorRate: 0.010, optimization: 72},
	"europe":      {weight: 0.35, latency: 220, errorRate: 0.015, optimization: 62},
	"asiaPacific": {weight: 0.25, latency: 280, errorRate: 0.022, optimization: 52},
}

type txProfile struct {
	share       float64
	latency     float64
	successRate float64
}

var txProfiles = map[string]txProfile{
	"createAsset":   {share: 40, latency: 320, successRate: 99.2},
	"queryAsset":    {share: 35, latency: 150, successRate: 99.8},
	"transferAsset": {share: 15, latency: 480, successRate: 98.9},
	"geoQuery":      {share: 10, latency: 380, successRate: 99.5},
}

// nominal is the profile used when a run produced no measurable output.
var nominal = Aggregate{AvgTPS: 520, PeakTPS: 680, AvgLatency: 425, Optimization: 65}

const nominalErrorRate = 0.015

func ratio(v float64) *float64 { return &v }

// Finalize derives the nested results of a run from its parsed samples and config.
// With no samples the nominal profile is used and the results are marked Estimated.
func Finalize(cfg Config, samples []Sample, baseline Baseline) *Results {
	res := &Results{TimeSeries: append([]Sample{}, samples...)}

	overall := nominal
	if len(samples) == 0 {
		res.Estimated = true
		overall.ErrorRate = ratio(nominalErrorRate)
	} else {
		overall = measured(samples)
	}
	if tx, ok := cfg.Number("transactions"); ok && tx > 0 {
		overall.Transactions = tx
	} else if res.Estimated {
		overall.Transactions = 0
	} else {
		overall.Transactions = math.Round(overall.AvgTPS * float64(len(samples)))
	}
	if opt, ok := cfg.Number("optimization"); ok {
		overall.Optimization = opt
	}
	res.Overall = overall

	res.ByRegion = splitRegions(overall, cfg.Regions())
	res.ByTransactionType = splitTransactionTypes(overall)
	res.Consensus = consensusFor(overall, res.Estimated)
	res.Comparison = Compare(overall, baseline)
	return res
}

func measured(samples []Sample) Aggregate {
	var tps, lat metrics.RunningStat
	for _, s := range samples {
		tps.Add(s.TPS)
		if s.Latency > 0 {
			lat.Add(s.Latency)
		}
	}
	return Aggregate{
		AvgTPS:     tps.Mean,
		PeakTPS:    tps.Max,
		TPSStdDev:  tps.StdDev(),
		AvgLatency: lat.Mean,
		MinLatency: lat.Min,
		MaxLatency: lat.Max,
	}
}

// splitRegions distributes the overall figures across regions by their nominal traffic weight.
// Unknown regions share equally with a weight of one over the number of regions.
func splitRegions(overall Aggregate, regions []string) map[string]Aggregate {
	if len(regions) == 0 {
		regions = DefaultRegions()
	}
	var total float64
	weights := make(map[string]float64, len(regions))
	for _, r := range regions {
		w := 1 / float64(len(regions))
		if p, ok := regionProfiles[r]; ok {
			w = p.weight
		}
		weights[r] = w
		total += w
	}

	out := make(map[string]Aggregate, len(regions))
	for _, r := range regions {
		share := weights[r] / total
		agg := Aggregate{
			Transactions: math.Round(overall.Transactions * share),
			AvgTPS:       overall.AvgTPS * share,
			PeakTPS:      overall.PeakTPS * share,
			AvgLatency:   overall.AvgLatency,
			ErrorRate:    overall.ErrorRate,
			Optimization: overall.Optimization,
		}
		if p, ok := regionProfiles[r]; ok && overall.AvgLatency > 0 {
			// regional latency keeps the nominal ratio to the overall nominal latency
			agg.AvgLatency = overall.AvgLatency * p.latency / nominal.AvgLatency
			if overall.ErrorRate != nil {
				agg.ErrorRate = ratio(*overall.ErrorRate * p.errorRate / nominalErrorRate)
			}
			if overall.Optimization > 0 {
				agg.Optimization = overall.Optimization * p.optimization / nominal.Optimization
			}
		}
		out[r] = agg
	}
	return out
}

func splitTransactionTypes(overall Aggregate) map[string]TypeAggregate {
	out := make(map[string]TypeAggregate, len(txProfiles))
	for name, p := range txProfiles {
		agg := TypeAggregate{
			Transactions: math.Round(overall.Transactions * p.share / 100),
			AvgTPS:       overall.AvgTPS * p.share / 100,
			SuccessRate:  p.successRate,
			Share:        p.share,
		}
		if overall.AvgLatency > 0 {
			agg.AvgLatency = overall.AvgLatency * p.latency / nominal.AvgLatency
		}
		out[name] = agg
	}
	return out
}

func consensusFor(overall Aggregate, estimated bool) ConsensusSummary {
	if !estimated {
		return ConsensusSummary{}
	}
	return ConsensusSummary{
		TotalBlocks:      math.Ceil(overall.Transactions / 40),
		AvgBlockTime:     1.2,
		CommitEfficiency: 99,
	}
}

// Compare computes percentage improvements of agg over baseline, rounded to one decimal.
func Compare(agg Aggregate, baseline Baseline) Comparison {
	pct := func(delta, base float64) float64 {
		if base == 0 {
			return 0
		}
		return math.Round(delta/base*1000) / 10
	}
	imp := Improvement{
		TPSIncrease:      pct(agg.AvgTPS-baseline.AvgTPS, baseline.AvgTPS),
		LatencyReduction: pct(baseline.AvgLatency-agg.AvgLatency, baseline.AvgLatency),
	}
	if agg.ErrorRate != nil && baseline.ErrorRate != 0 {
		imp.ErrorReduction = ratio(pct(baseline.ErrorRate-*agg.ErrorRate, baseline.ErrorRate))
	}
	return Comparison{Baseline: baseline, Improvement: imp}
}

// DefaultRegions lists the regions with a nominal profile, sorted.
func DefaultRegions() []string {
	out := make([]string, 0, len(regionProfiles))
	for r := range regionProfiles {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

// TransactionTypes lists the modelled transaction types, sorted.
func TransactionTypes() []string {
	out := make([]string, 0, len(txProfiles))
	for t := range txProfiles {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
