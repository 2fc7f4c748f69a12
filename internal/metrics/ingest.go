package metrics

import "github.com/prometheus/client_golang/prometheus"

// Ingestion pipeline Prometheus metrics.
var (
	IngestDocumentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dokindex",
			Name:      "ingest_documents_total",
			Help:      "Total documents processed by the ingestion pipeline",
		},
		[]string{"media_type", "outcome"}, // outcome: "ready" / "error"
	)

	IngestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "dokindex",
			Name:      "ingest_duration_seconds",
			Help:      "End-to-end document ingestion duration in seconds",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"media_type"},
	)

	IngestChunksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "dokindex",
			Name:      "ingest_chunks_total",
			Help:      "Total chunks produced and indexed",
		},
	)

	IngestQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "dokindex",
			Name:      "ingest_queue_depth",
			Help:      "Number of ingestion jobs waiting or running",
		},
	)

	RetrievalRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dokindex",
			Name:      "retrieval_requests_total",
			Help:      "Total retrieval requests",
		},
		[]string{"status"}, // "ok" / "empty" / "error"
	)
)

var ingestMetricsRegistered bool

// RegisterIngestMetrics registers Prometheus ingestion metrics. Must be called once from main.
func RegisterIngestMetrics() {
	if ingestMetricsRegistered {
		return
	}
	prometheus.MustRegister(IngestDocumentsTotal)
	prometheus.MustRegister(IngestDuration)
	prometheus.MustRegister(IngestChunksTotal)
	prometheus.MustRegister(IngestQueueDepth)
	prometheus.MustRegister(RetrievalRequestsTotal)
	ingestMetricsRegistered = true
}
