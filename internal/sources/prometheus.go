// internal/sources/prometheus.go
package sources

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/mwiater/georaft/internal/logging"
	"github.com/prometheus/client_golang/api"
	promv1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"
)

// PrometheusSourceName is the source name queries use to address Prometheus.
const PrometheusSourceName = "prometheus"

// Prometheus evaluates PromQL instant and range queries over the HTTP API.
type Prometheus struct {
	address string
	api     promv1.API
}

// RangeSeries is one labelled stream of a range query.
type RangeSeries struct {
	Labels  map[string]string `json:"labels"`
	Samples []Point           `json:"samples"`
}

// NewPrometheus builds a client for the Prometheus server at address.
func NewPrometheus(address string) (*Prometheus, error) {
	address = strings.TrimRight(strings.TrimSpace(address), "/")
	if address == "" {
		return nil, fmt.Errorf("prometheus address is required")
	}
	client, err := api.NewClient(api.Config{Address: address})
	if err != nil {
		return nil, fmt.Errorf("prometheus client: %w", err)
	}
	return &Prometheus{address: address, api: promv1.NewAPI(client)}, nil
}

// Name implements Source.
func (p *Prometheus) Name() string { return PrometheusSourceName }

// Query evaluates expr at the current instant.
func (p *Prometheus) Query(ctx context.Context, expr string) (Payload, error) {
	logging.LogRequest("out", p.address, expr, nil)
	value, warnings, err := p.api.Query(ctx, expr, time.Now())
	if err != nil {
		return Payload{}, fmt.Errorf("%w: prometheus query: %w", ErrSourceUnavailable, err)
	}
	if len(warnings) > 0 {
		logging.WithComponent("sources").WithField("query", expr).Warnf("prometheus warnings: %s", strings.Join(warnings, "; "))
	}
	points, err := pointsFromValue(value)
	if err != nil {
		return Payload{}, err
	}
	logging.LogRequest("in", p.address, expr, points)
	return Payload{Points: points}, nil
}

// QueryRange evaluates expr between start and end at the given resolution.
func (p *Prometheus) QueryRange(ctx context.Context, expr string, start, end time.Time, step time.Duration) ([]RangeSeries, error) {
	if step <= 0 {
		step = 15 * time.Second
	}
	value, warnings, err := p.api.QueryRange(ctx, expr, promv1.Range{Start: start, End: end, Step: step})
	if err != nil {
		return nil, fmt.Errorf("%w: prometheus range query: %w", ErrSourceUnavailable, err)
	}
	if len(warnings) > 0 {
		logging.WithComponent("sources").WithField("query", expr).Warnf("prometheus warnings: %s", strings.Join(warnings, "; "))
	}
	matrix, ok := value.(model.Matrix)
	if !ok {
		return nil, fmt.Errorf("prometheus range query returned %s, expected matrix", value.Type())
	}
	out := make([]RangeSeries, 0, len(matrix))
	for _, stream := range matrix {
		series := RangeSeries{Labels: labelsToMap(stream.Metric), Samples: make([]Point, 0, len(stream.Values))}
		for _, pair := range stream.Values {
			v := float64(pair.Value)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			series.Samples = append(series.Samples, Point{Value: v, Timestamp: pair.Timestamp.Time().UTC()})
		}
		out = append(out, series)
	}
	return out, nil
}

// pointsFromValue flattens the instant query result; NaN and infinite values are dropped.
func pointsFromValue(value model.Value) ([]Point, error) {
	var points []Point
	add := func(labels model.Metric, v model.SampleValue, ts model.Time) {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return
		}
		points = append(points, Point{Labels: labelsToMap(labels), Value: f, Timestamp: ts.Time().UTC()})
	}

	switch v := value.(type) {
	case model.Vector:
		for _, s := range v {
			add(s.Metric, s.Value, s.Timestamp)
		}
	case *model.Scalar:
		add(nil, v.Value, v.Timestamp)
	case model.Matrix:
		for _, stream := range v {
			if n := len(stream.Values); n > 0 {
				last := stream.Values[n-1]
				add(stream.Metric, last.Value, last.Timestamp)
			}
		}
	case nil:
	default:
		return nil, fmt.Errorf("unsupported prometheus result type %s", value.Type())
	}
	return points, nil
}

func labelsToMap(metric model.Metric) map[string]string {
	if len(metric) == 0 {
		return nil
	}
	out := make(map[string]string, len(metric))
	for k, v := range metric {
		out[string(k)] = string(v)
	}
	return out
}
