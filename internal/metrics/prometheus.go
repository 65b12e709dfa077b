//go:build !noprom

package metrics

import (
	"fmt"
	"net/http"

	prom "github.com/prometheus/client_golang/prometheus"
	promhttp "github.com/prometheus/client_golang/prometheus/promhttp"
)

type promRecorder struct {
	opTotal     *prom.CounterVec
	opSeconds   *prom.HistogramVec
	toolTotal   *prom.CounterVec
	toolSeconds *prom.HistogramVec
	enrichJobs  *prom.CounterVec
	queueDepth  prom.Gauge
}

func (p *promRecorder) IncOpTotal(op string, success bool) {
	p.opTotal.WithLabelValues(op, fmt.Sprintf("%t", success)).Inc()
}

func (p *promRecorder) ObserveOpSeconds(op string, success bool, seconds float64) {
	p.opSeconds.WithLabelValues(op, fmt.Sprintf("%t", success)).Observe(seconds)
}

func (p *promRecorder) IncToolTotal(tool string, success bool) {
	p.toolTotal.WithLabelValues(tool, fmt.Sprintf("%t", success)).Inc()
}

func (p *promRecorder) ObserveToolSeconds(tool string, success bool, seconds float64) {
	p.toolSeconds.WithLabelValues(tool, fmt.Sprintf("%t", success)).Observe(seconds)
}

func (p *promRecorder) IncEnrichJob(outcome string) {
	p.enrichJobs.WithLabelValues(outcome).Inc()
}

func (p *promRecorder) SetEnrichQueueDepth(depth int) {
	p.queueDepth.Set(float64(depth))
}

func enablePrometheus(addr string) error {
	registry := prom.NewRegistry()
	p := &promRecorder{
		opTotal: prom.NewCounterVec(prom.CounterOpts{
			Name: "graph_ops_total",
			Help: "Total number of store and index operations",
		}, []string{"op", "success"}),
		opSeconds: prom.NewHistogramVec(prom.HistogramOpts{
			Name:    "graph_op_seconds",
			Help:    "Store and index operation duration in seconds",
			Buckets: prom.DefBuckets,
		}, []string{"op", "success"}),
		toolTotal: prom.NewCounterVec(prom.CounterOpts{
			Name: "tool_calls_total",
			Help: "Total number of tool handler calls",
		}, []string{"tool", "success"}),
		toolSeconds: prom.NewHistogramVec(prom.HistogramOpts{
			Name:    "tool_call_seconds",
			Help:    "Tool handler duration in seconds",
			Buckets: prom.DefBuckets,
		}, []string{"tool", "success"}),
		enrichJobs: prom.NewCounterVec(prom.CounterOpts{
			Name: "enrich_jobs_total",
			Help: "Background embedding enrichment jobs by outcome",
		}, []string{"outcome"}),
		queueDepth: prom.NewGauge(prom.GaugeOpts{
			Name: "enrich_queue_depth",
			Help: "Pending background embedding enrichment jobs",
		}),
	}

	registry.MustRegister(p.opTotal, p.opSeconds, p.toolTotal, p.toolSeconds, p.enrichJobs, p.queueDepth)
	SetRecorder(p)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	go func() { _ = http.ListenAndServe(addr, mux) }()
	return nil
}
