package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		aiTokensIn,
		aiTokensOut,
		aiStreamLatencyMs,
		aiFirstChunkLatencyMs,
		aiPrecheckBlocks,
		generationsTotal,
	)
}

var (
	aiTokensIn = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_tokens_in",
			Help: "Sum of estimated prompt (input) tokens per provider/model.",
		},
		[]string{"provider", "model"},
	)

	aiTokensOut = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_tokens_out",
			Help: "Sum of estimated completion (output) tokens per provider/model.",
		},
		[]string{"provider", "model"},
	)

	aiStreamLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ai_stream_latency_ms",
			Help:    "Full generation stream duration in milliseconds.",
			Buckets: []float64{250, 500, 1000, 2000, 4000, 8000, 16000, 32000, 64000},
		},
		[]string{"provider", "model", "result"},
	)

	aiFirstChunkLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ai_first_chunk_latency_ms",
			Help:    "Time to first streamed fragment in milliseconds.",
			Buckets: []float64{50, 100, 200, 400, 800, 1600, 3200, 6400},
		},
		[]string{"provider", "model"},
	)

	aiPrecheckBlocks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_precheck_blocks",
			Help: "Generations rejected before the upstream call, by reason.",
		},
		[]string{"reason"},
	)

	generationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "generations_total",
			Help: "Generation sessions by result (persisted/upstream_error/client_gone/persist_error/no_credits).",
		},
		[]string{"result"},
	)
)

func PrecheckBlocked(reason string) {
	aiPrecheckBlocks.WithLabelValues(norm(reason)).Inc()
}

func ObserveFirstChunk(provider, model string, latencyMs int64) {
	aiFirstChunkLatencyMs.WithLabelValues(norm(provider), norm(model)).Observe(float64(latencyMs))
}

func ObserveGeneration(provider, model, result string, tokensIn, tokensOut int, latencyMs int64) {
	lbl := []string{norm(provider), norm(model)}
	aiTokensIn.WithLabelValues(lbl...).Add(float64(tokensIn))
	aiTokensOut.WithLabelValues(lbl...).Add(float64(tokensOut))
	aiStreamLatencyMs.WithLabelValues(norm(provider), norm(model), norm(result)).Observe(float64(latencyMs))
	generationsTotal.WithLabelValues(norm(result)).Inc()
}
