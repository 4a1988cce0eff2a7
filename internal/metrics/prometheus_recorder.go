package metrics

import (
	"net/http"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once                sync.Once
	registry            *prom.Registry
	syncDuration        *prom.HistogramVec
	buildDuration       *prom.HistogramVec
	pipelineDuration    prom.Histogram
	projectOutcomes     *prom.CounterVec
	pipelineConcurrency prom.Gauge
}

// NewPrometheusRecorder constructs and registers Prometheus metrics
// (idempotent). A nil registry allocates a private one.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{registry: reg}
	pr.once.Do(func() {
		pr.syncDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "docserve",
			Name:      "sync_duration_seconds",
			Help:      "Duration of individual repository synchronizations",
			Buckets:   prom.DefBuckets,
		}, []string{"project", "result"})
		pr.buildDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "docserve",
			Name:      "build_duration_seconds",
			Help:      "Duration of individual documentation builds",
			Buckets:   prom.DefBuckets,
		}, []string{"project", "result"})
		pr.pipelineDuration = prom.NewHistogram(prom.HistogramOpts{
			Namespace: "docserve",
			Name:      "pipeline_duration_seconds",
			Help:      "Total duration of a full update-and-build pipeline run",
			Buckets:   prom.DefBuckets,
		})
		pr.projectOutcomes = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "docserve",
			Name:      "project_outcomes_total",
			Help:      "Per-project pipeline outcomes",
		}, []string{"outcome"})
		pr.pipelineConcurrency = prom.NewGauge(prom.GaugeOpts{
			Namespace: "docserve",
			Name:      "pipeline_concurrency",
			Help:      "Configured pipeline worker count",
		})
		reg.MustRegister(pr.syncDuration, pr.buildDuration, pr.pipelineDuration, pr.projectOutcomes, pr.pipelineConcurrency)
	})
	return pr
}

// Handler returns the Prometheus exposition handler for this recorder's
// registry.
func (p *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

func result(success bool) string {
	if success {
		return "success"
	}
	return "failed"
}

func (p *PrometheusRecorder) ObserveSyncDuration(project string, d time.Duration, success bool) {
	if p == nil || p.syncDuration == nil {
		return
	}
	p.syncDuration.WithLabelValues(project, result(success)).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveBuildDuration(project string, d time.Duration, success bool) {
	if p == nil || p.buildDuration == nil {
		return
	}
	p.buildDuration.WithLabelValues(project, result(success)).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObservePipelineDuration(d time.Duration) {
	if p == nil || p.pipelineDuration == nil {
		return
	}
	p.pipelineDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncProjectOutcome(outcome string) {
	if p == nil || p.projectOutcomes == nil {
		return
	}
	p.projectOutcomes.WithLabelValues(outcome).Inc()
}

func (p *PrometheusRecorder) SetPipelineConcurrency(n int) {
	if p == nil || p.pipelineConcurrency == nil {
		return
	}
	p.pipelineConcurrency.Set(float64(n))
}
