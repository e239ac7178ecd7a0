package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// metrics carries the per-server prometheus registry. Each Server owns its
// own registry so several instances can coexist in one process.
type metrics struct {
	registry *prometheus.Registry

	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inflight prometheus.Gauge

	documents      *prometheus.CounterVec
	processedPages prometheus.Counter
	embeddedWords  prometheus.Counter
	skippedWords   prometheus.Counter
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "textlayer_http_requests_total",
			Help: "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "textlayer_http_request_duration_seconds",
			Help:    "Request latency by route.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"route"}),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "textlayer_http_inflight_requests",
			Help: "Requests currently being served.",
		}),
		documents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "textlayer_documents_total",
			Help: "Processed documents by outcome.",
		}, []string{"outcome"}),
		processedPages: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "textlayer_document_pages_total",
			Help: "Pages run through the embedding engine.",
		}),
		embeddedWords: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "textlayer_embedded_words_total",
			Help: "Words embedded into text layers.",
		}),
		skippedWords: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "textlayer_skipped_words_total",
			Help: "Words skipped during embedding.",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests,
		m.duration,
		m.inflight,
		m.documents,
		m.processedPages,
		m.embeddedWords,
		m.skippedWords,
	)
	return m
}
