// internal/sources/source.go

// Package sources pulls named metrics from external time-series backends. Every query is
// answered independently: a backend that fails or times out yields an explicit unavailable
// result for that query only.
package sources

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrSourceUnavailable marks a backend that did not answer in time or answered with an error.
var ErrSourceUnavailable = errors.New("source unavailable")

// Point is one labelled numeric value.
type Point struct {
	Labels    map[string]string `json:"labels,omitempty"`
	Value     float64           `json:"value"`
	Timestamp time.Time         `json:"timestamp"`
}

// Payload is what a Source returns for one expression: numeric points, a raw JSON document, or both.
type Payload struct {
	Points   []Point         `json:"points,omitempty"`
	Document json.RawMessage `json:"document,omitempty"`
}

// Query names one expression evaluated against one source.
type Query struct {
	Name   string
	Source string
	Expr   string
}

// Result is either a payload (Available) or an explicit unavailable marker carrying the reason.
type Result struct {
	Name      string        `json:"name"`
	Source    string        `json:"source"`
	Available bool          `json:"available"`
	Payload   Payload       `json:"payload"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// Unavailable builds the explicit marker for a failed query.
func Unavailable(q Query, err error) Result {
	msg := ErrSourceUnavailable.Error()
	if err != nil {
		msg = err.Error()
	}
	return Result{Name: q.Name, Source: q.Source, Available: false, Error: msg}
}

// Scalar collapses the payload to one number by summing its points.
func (r Result) Scalar() (float64, bool) {
	if !r.Available || len(r.Payload.Points) == 0 {
		return 0, false
	}
	var sum float64
	for _, p := range r.Payload.Points {
		sum += p.Value
	}
	return sum, true
}

// ByLabel groups point values by the given label, skipping points without it.
func (r Result) ByLabel(label string) map[string]float64 {
	out := make(map[string]float64)
	if !r.Available {
		return out
	}
	for _, p := range r.Payload.Points {
		key, ok := p.Labels[label]
		if !ok || key == "" {
			continue
		}
		out[key] += p.Value
	}
	return out
}

// Source is implemented by every metric backend.
type Source interface {
	// Name identifies the backend in queries and logs.
	Name() string
	// Query evaluates expr and returns its payload.
	Query(ctx context.Context, expr string) (Payload, error)
}
