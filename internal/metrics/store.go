// internal/metrics/store.go
package metrics

import (
	"encoding/json"
	"sync"
	"time"
)

// Store holds the bounded in-memory telemetry state: one ring per metric series and the
// latest regional view with a bounded trend per region. All methods are safe for concurrent use.
type Store struct {
	mutex     sync.RWMutex
	sampleCap int
	trendCap  int
	series    map[string]*Ring[Sample]
	regions   map[string]RegionalStat
	trends    map[string]*Ring[RegionalStat]
	sources   map[string]SourceStatus
	documents map[string]json.RawMessage
	updatedAt time.Time
}

// NewStore creates a Store whose series hold sampleCap samples and whose regional trends hold trendCap entries.
func NewStore(sampleCap, trendCap int) *Store {
	s := &Store{
		sampleCap: sampleCap,
		trendCap:  trendCap,
		series:    make(map[string]*Ring[Sample]),
		regions:   make(map[string]RegionalStat),
		trends:    make(map[string]*Ring[RegionalStat]),
		sources:   make(map[string]SourceStatus),
		documents: make(map[string]json.RawMessage),
	}
	for _, name := range baseSeries {
		s.series[name] = NewRing[Sample](sampleCap)
	}
	return s
}

// Record appends sample to the named series, evicting the oldest sample once the ring is full.
func (s *Store) Record(metric string, sample Sample) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	ring, ok := s.series[metric]
	if !ok {
		ring = NewRing[Sample](s.sampleCap)
		s.series[metric] = ring
	}
	ring.Push(sample)
	s.touch(sample.Timestamp)
}

// RecordRegion overwrites the region's current stat and appends it to the region's trend.
func (s *Store) RecordRegion(region string, stat RegionalStat) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	stat.Region = region
	s.regions[region] = stat
	trend, ok := s.trends[region]
	if !ok {
		trend = NewRing[RegionalStat](s.trendCap)
		s.trends[region] = trend
	}
	trend.Push(stat)
	s.touch(stat.Timestamp)
}

// RecordSource stores the availability of one query for the current tick.
func (s *Store) RecordSource(name string, status SourceStatus) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.sources[name] = status
}

// RecordDocument keeps the latest raw JSON document returned by a non-numeric source.
func (s *Store) RecordDocument(name string, doc json.RawMessage) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if doc == nil {
		delete(s.documents, name)
		return
	}
	s.documents[name] = append(json.RawMessage(nil), doc...)
}

// Series returns a copy of a series, oldest first.
func (s *Store) Series(metric string) []Sample {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	ring, ok := s.series[metric]
	if !ok {
		return nil
	}
	return ring.Items()
}

// Snapshot returns a deep copy of the full current state.
func (s *Store) Snapshot() Snapshot {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	snap := Snapshot{
		Timestamp:      s.updatedAt,
		Metrics:        make(map[string][]Sample, len(s.series)),
		Geographic:     make(map[string]RegionalStat, len(s.regions)),
		RegionalTrends: make(map[string][]RegionalStat, len(s.trends)),
		Sources:        make(map[string]SourceStatus, len(s.sources)),
	}
	if snap.Timestamp.IsZero() {
		snap.Timestamp = time.Now().UTC()
	}
	for name, ring := range s.series {
		snap.Metrics[name] = ring.Items()
	}
	for region, stat := range s.regions {
		snap.Geographic[region] = stat
	}
	for region, ring := range s.trends {
		snap.RegionalTrends[region] = ring.Items()
	}
	for name, status := range s.sources {
		snap.Sources[name] = status
	}
	if len(s.documents) > 0 {
		snap.Documents = make(map[string]json.RawMessage, len(s.documents))
		for name, doc := range s.documents {
			snap.Documents[name] = append(json.RawMessage(nil), doc...)
		}
	}
	snap.Consensus = ConsensusStats{
		BlockHeight:      s.latestValue(SeriesBlockHeight),
		BlockTime:        s.latestValue(SeriesBlockTime),
		LeaderElections:  s.latestValue(SeriesLeaderElections),
		CommitEfficiency: s.latestValue(SeriesCommitEfficiency),
	}
	snap.Realtime = RealtimeStats{
		CurrentTPS:    s.latestValue(SeriesTPS),
		AvgLatency:    s.latestValue(SeriesLatency),
		ActiveNodes:   int(s.latestValue(SeriesActiveNodes)),
		NetworkStatus: s.networkStatus(),
	}
	return snap
}

// networkStatus is healthy while cpu < 80% and memory < 90%.
func (s *Store) networkStatus() string {
	cpu, cpuOK := s.latest(SeriesCPU)
	mem, memOK := s.latest(SeriesMemory)
	if !cpuOK && !memOK {
		return "unknown"
	}
	if cpu.Value < 80 && mem.Value < 90 {
		return "healthy"
	}
	return "warning"
}

func (s *Store) latest(metric string) (Sample, bool) {
	ring, ok := s.series[metric]
	if !ok {
		return Sample{}, false
	}
	return ring.Last()
}

func (s *Store) latestValue(metric string) float64 {
	sample, _ := s.latest(metric)
	return sample.Value
}

func (s *Store) touch(ts time.Time) {
	if ts.After(s.updatedAt) {
		s.updatedAt = ts
	}
}
