package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/samcharles93/llmodel/internal/inference"
)

type Metrics struct {
	registry *prometheus.Registry

	tokensEvaluated  prometheus.Counter
	tokensSampled    prometheus.Counter
	evalFailures     prometheus.Counter
	generateDuration *prometheus.HistogramVec
	sessions         prometheus.GaugeFunc
}

// NewMetrics registers the server's collectors on a private registry.
// sessionCount feeds the active sessions gauge.
func NewMetrics(sessionCount func() int) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		tokensEvaluated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "llmodel",
			Name:      "tokens_evaluated_total",
			Help:      "Tokens decoded by the model, including recalculated history.",
		}),
		tokensSampled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "llmodel",
			Name:      "tokens_sampled_total",
			Help:      "Tokens sampled and emitted in responses.",
		}),
		evalFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "llmodel",
			Name:      "eval_failures_total",
			Help:      "Batches the model failed to evaluate.",
		}),
		generateDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "llmodel",
			Name:      "generate_duration_seconds",
			Help:      "Wall time of completion requests.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
		}, []string{"stop_reason"}),
		sessions: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "llmodel",
			Name:      "sessions",
			Help:      "Open completion sessions.",
		}, func() float64 { return float64(sessionCount()) }),
	}
	m.registry.MustRegister(
		m.tokensEvaluated,
		m.tokensSampled,
		m.evalFailures,
		m.generateDuration,
		m.sessions,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) observe(res *inference.Result, evalFailed bool) {
	if res != nil {
		m.tokensEvaluated.Add(float64(res.Stats.TokensEvaluated))
		m.tokensSampled.Add(float64(res.Stats.TokensGenerated))
		reason := string(res.StopReason)
		if reason == "" {
			reason = "error"
		}
		m.generateDuration.WithLabelValues(reason).Observe(res.Stats.Duration.Seconds())
	}
	if evalFailed {
		m.evalFailures.Inc()
	}
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
