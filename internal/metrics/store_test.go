package metrics

import (
	"encoding/json"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingEvictsOldestFirst(t *testing.T) {
	r := NewRing[int](3)
	for i := 1; i <= 3; i++ {
		_, evicted := r.Push(i)
		assert.False(t, evicted)
	}
	old, evicted := r.Push(4)
	require.True(t, evicted)
	assert.Equal(t, 1, old)
	assert.Equal(t, []int{2, 3, 4}, r.Items())

	last, ok := r.Last()
	require.True(t, ok)
	assert.Equal(t, 4, last)

	require.True(t, r.UpdateLast(func(v *int) { *v = 40 }))
	assert.Equal(t, []int{2, 3, 40}, r.Items())
}

func TestRingZeroCapacity(t *testing.T) {
	r := NewRing[string](0)
	_, ok := r.Last()
	assert.False(t, ok)
	assert.False(t, r.UpdateLast(func(*string) {}))

	r.Push("a")
	old, evicted := r.Push("b")
	assert.True(t, evicted)
	assert.Equal(t, "a", old)
	assert.Equal(t, 1, r.Len())
}

func TestStoreRecordNeverExceedsCapacity(t *testing.T) {
	s := NewStore(50, 20)
	base := time.Unix(1700000000, 0).UTC()
	for i := 0; i < 120; i++ {
		s.Record(SeriesTPS, Sample{Timestamp: base.Add(time.Duration(i) * time.Second), Value: float64(i)})
		require.LessOrEqual(t, len(s.Series(SeriesTPS)), 50)
	}

	series := s.Series(SeriesTPS)
	require.Len(t, series, 50)
	assert.Equal(t, float64(70), series[0].Value, "oldest retained sample")
	assert.Equal(t, float64(119), series[49].Value, "newest sample")
}

func TestStoreRecordRegionOverwritesAndTrends(t *testing.T) {
	s := NewStore(50, 20)
	for i := 0; i < 25; i++ {
		s.RecordRegion("europe", RegionalStat{TPS: float64(i), Timestamp: time.Now()})
	}

	snap := s.Snapshot()
	assert.Equal(t, float64(24), snap.Geographic["europe"].TPS)
	assert.Equal(t, "europe", snap.Geographic["europe"].Region)
	require.Len(t, snap.RegionalTrends["europe"], 20)
	assert.Equal(t, float64(5), snap.RegionalTrends["europe"][0].TPS)
}

func TestSnapshotDerivesSummaries(t *testing.T) {
	s := NewStore(50, 20)
	now := time.Now().UTC()

	snap := s.Snapshot()
	for _, name := range baseSeries {
		_, ok := snap.Metrics[name]
		assert.True(t, ok, "base series %s present", name)
	}
	assert.Equal(t, "unknown", snap.Realtime.NetworkStatus)

	s.Record(SeriesTPS, Sample{Timestamp: now, Value: 512})
	s.Record(SeriesLatency, Sample{Timestamp: now, Value: 420})
	s.Record(SeriesCPU, Sample{Timestamp: now, Value: 40})
	s.Record(SeriesMemory, Sample{Timestamp: now, Value: 60})
	s.Record(SeriesActiveNodes, Sample{Timestamp: now, Value: 11})
	s.Record(SeriesBlockHeight, Sample{Timestamp: now, Value: 1250})
	s.Record(SeriesLeaderElections, Sample{Timestamp: now, Value: 3})

	snap = s.Snapshot()
	assert.Equal(t, RealtimeStats{CurrentTPS: 512, AvgLatency: 420, ActiveNodes: 11, NetworkStatus: "healthy"}, snap.Realtime)
	assert.Equal(t, float64(1250), snap.Consensus.BlockHeight)
	assert.Equal(t, float64(3), snap.Consensus.LeaderElections)

	s.Record(SeriesCPU, Sample{Timestamp: now, Value: 85})
	assert.Equal(t, "warning", s.Snapshot().Realtime.NetworkStatus)
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	s := NewStore(5, 5)
	s.Record(SeriesTPS, Sample{Value: 1})
	s.RecordDocument("monitoring_service", json.RawMessage(`{"ok":true}`))

	snap := s.Snapshot()
	snap.Metrics[SeriesTPS][0].Value = 99
	snap.Documents["monitoring_service"][2] = 'X'

	again := s.Snapshot()
	assert.Equal(t, float64(1), again.Metrics[SeriesTPS][0].Value)
	assert.JSONEq(t, `{"ok":true}`, string(again.Documents["monitoring_service"]))

	s.RecordDocument("monitoring_service", nil)
	assert.Nil(t, s.Snapshot().Documents)
}

func TestStoreConcurrentRecord(t *testing.T) {
	s := NewStore(50, 20)
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				s.Record(SeriesLatency, Sample{Value: float64(w*1000 + i)})
				_ = s.Snapshot()
			}
		}(w)
	}
	wg.Wait()
	assert.Len(t, s.Series(SeriesLatency), 50)
}

func TestRunningStatMatchesDirectComputation(t *testing.T) {
	values := []float64{520, 498.5, 610, 430.25, 575, 501, 489, 644.75, 515}
	var rs RunningStat
	for _, v := range values {
		rs.Add(v)
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	var sq float64
	for _, v := range values {
		sq += (v - mean) * (v - mean)
	}

	assert.Equal(t, int64(len(values)), rs.Count)
	assert.InDelta(t, mean, rs.Mean, 1e-9)
	assert.InDelta(t, mean, Mean(values), 1e-9)
	assert.InDelta(t, math.Sqrt(sq/float64(len(values)-1)), rs.StdDev(), 1e-9)
	assert.Equal(t, 430.25, rs.Min)
	assert.Equal(t, 644.75, rs.Max)
	assert.Equal(t, float64(0), Mean(nil))
}
