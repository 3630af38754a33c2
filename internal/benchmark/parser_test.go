package benchmark

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseChunk(t *testing.T) {
	tests := []struct {
		name  string
		chunk string
		want  Signal
	}{
		{name: "round", chunk: "Round 4 of 7", want: Signal{Round: 4, HasRound: true}},
		{name: "round without space", chunk: "Round12", want: Signal{Round: 12, HasRound: true}},
		{name: "tps any case", chunk: "send rate 87.25 TPS", want: Signal{TPS: 87.25, HasTPS: true}},
		{name: "latency needs keyword", chunk: "took 40 ms", want: Signal{}},
		{name: "latency keyword", chunk: "Latency: 312.5 ms", want: Signal{Latency: 312.5, HasLatency: true}},
		{name: "avg keyword", chunk: "avg 99ms", want: Signal{Latency: 99, HasLatency: true}},
		{name: "latency unit any case", chunk: "Avg Latency 250 MS", want: Signal{Latency: 250, HasLatency: true}},
		{
			name:  "all signals",
			chunk: "Round 2 | 410 tps | avg latency 220 ms",
			want:  Signal{Round: 2, HasRound: true, TPS: 410, HasTPS: true, Latency: 220, HasLatency: true},
		},
		{name: "noise", chunk: "connecting to peers...", want: Signal{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ParseChunk(tc.chunk)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.want == Signal{}, got.Empty())
		})
	}
}

func TestProgressFor(t *testing.T) {
	assert.Equal(t, float64(0), ProgressFor(0, 7))
	assert.Equal(t, float64(0), ProgressFor(3, 0))
	assert.InDelta(t, 100.0/7.0, ProgressFor(1, 7), 1e-9)
	assert.Equal(t, float64(100), ProgressFor(7, 7))
	assert.Equal(t, float64(100), ProgressFor(9, 7))
}
