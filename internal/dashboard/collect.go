// internal/dashboard/collect.go
package dashboard

import (
	"context"
	"strings"
	"time"

	"github.com/mwiater/georaft/internal/hub"
	"github.com/mwiater/georaft/internal/metrics"
	"github.com/mwiater/georaft/internal/selfmetrics"
	"github.com/mwiater/georaft/internal/sources"
)

const regionQueryPrefix = "region:"

func (s *Service) runCollector(ctx context.Context, sess *collectSession, name string, interval time.Duration, collect func(context.Context)) {
	defer sess.done.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log := s.log.WithField("collector", name)
	log.WithField("interval", interval).Debug("collector running")
	for {
		collect(ctx)
		selfmetrics.RecordTick(name)
		select {
		case <-ctx.Done():
			log.Debug("collector stopped")
			return
		case <-ticker.C:
		}
	}
}

// collectLocal runs the configured queries, merges the answers into the store and broadcasts a snapshot.
func (s *Service) collectLocal(ctx context.Context) {
	if len(s.cfg.Queries) == 0 {
		return
	}
	queries := make([]sources.Query, 0, len(s.cfg.Queries))
	for _, q := range s.cfg.Queries {
		queries = append(queries, sources.Query{Name: q.Name, Source: q.Source, Expr: q.Expr})
	}
	results := s.adapter.Fetch(ctx, queries)
	if ctx.Err() != nil {
		return
	}

	now := s.now()
	available := 0
	for _, q := range s.cfg.Queries {
		res, ok := results[q.Name]
		if !ok {
			continue
		}
		s.store.RecordSource(q.Name, metrics.SourceStatus{Available: res.Available, Error: res.Error, CheckedAt: now})
		if !res.Available {
			continue
		}
		available++
		if res.Payload.Document != nil {
			s.store.RecordDocument(q.Name, res.Payload.Document)
		}
		if q.Series == "" {
			continue
		}
		if v, ok := res.Scalar(); ok {
			s.store.Record(q.Series, metrics.Sample{Timestamp: now, Value: v * q.ScaleFactor()})
		}
	}

	if available == 0 {
		s.hub.Publish(hub.Event{
			Type:  EventMonitoringError,
			Topic: hub.TopicMonitoring,
			Data:  MonitoringError{Error: "no metric source answered"},
		})
	}
	s.publishSnapshot()
}

// collectRegions runs the regional queries and folds the per-region answers into RegionalStats.
func (s *Service) collectRegions(ctx context.Context) {
	if len(s.cfg.RegionQueries) == 0 {
		return
	}
	queries := make([]sources.Query, 0, len(s.cfg.RegionQueries))
	for _, q := range s.cfg.RegionQueries {
		queries = append(queries, sources.Query{Name: regionQueryPrefix + q.Field, Source: sources.PrometheusSourceName, Expr: q.Expr})
	}
	results := s.adapter.Fetch(ctx, queries)
	if ctx.Err() != nil {
		return
	}

	now := s.now()
	stats := make(map[string]*metrics.RegionalStat)
	for _, q := range s.cfg.RegionQueries {
		res := results[regionQueryPrefix+q.Field]
		s.store.RecordSource(regionQueryPrefix+q.Field, metrics.SourceStatus{Available: res.Available, Error: res.Error, CheckedAt: now})
		for region, v := range res.ByLabel(q.RegionLabel()) {
			st, ok := stats[region]
			if !ok {
				st = &metrics.RegionalStat{Region: region, Timestamp: now}
				stats[region] = st
			}
			setRegionalField(st, q.Field, v*q.ScaleFactor())
		}
	}
	for region, st := range stats {
		s.store.RecordRegion(region, *st)
	}
	if len(stats) > 0 {
		s.publishSnapshot()
	}
}

func setRegionalField(st *metrics.RegionalStat, field string, v float64) {
	switch strings.TrimSpace(field) {
	case "tps":
		st.TPS = v
	case "latency":
		st.Latency = v
	case "transactions":
		st.Transactions = v
	case "errorRate":
		st.ErrorRate = v
	case "optimization":
		st.Optimization = v
	case "throughput":
		st.Throughput = v
	}
}

func (s *Service) publishSnapshot() {
	s.hub.Publish(hub.Event{Type: EventPerformanceUpdate, Topic: hub.TopicPerformance, Data: s.store.Snapshot()})
}
