package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Registry = prometheus.NewRegistry()

	StreamEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "evidence_stream_events_total",
		Help: "Stream events emitted to clients, by kind.",
	}, []string{"kind"})

	ChunkFaults = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "evidence_chunk_faults_total",
		Help: "Upstream chunks skipped because handling failed.",
	})

	Streams = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "evidence_streams_total",
		Help: "Finished answer streams, by outcome.",
	}, []string{"outcome"})

	StreamDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "evidence_stream_duration_seconds",
		Help:    "Wall time of an answer stream from request to terminal event.",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
	})
)

func init() {
	Registry.MustRegister(StreamEvents, ChunkFaults, Streams, StreamDuration)
}

// Handler 暴露 /metrics
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
