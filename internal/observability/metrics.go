package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce         sync.Once
	autosaveTotal        *prometheus.CounterVec
	autosaveSkippedTotal *prometheus.CounterVec
	autosaveLatency      prometheus.Histogram
	uploadTotal          *prometheus.CounterVec
	uploadRejectedTotal  *prometheus.CounterVec
	uploadLatency        prometheus.Histogram
	transitionTotal      *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors for the workflow engine.
func RegisterMetrics() {
	registerOnce.Do(func() {
		autosaveTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "folio_autosave_total",
			Help: "Autosave attempts by outcome.",
		}, []string{"result"})

		autosaveSkippedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "folio_autosave_skipped_total",
			Help: "Autosave triggers skipped before issuing a write.",
		}, []string{"reason"})

		autosaveLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "folio_autosave_latency_seconds",
			Help:    "Latency distribution of draft persistence writes.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		})

		uploadTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "folio_upload_total",
			Help: "Attachment uploads by outcome.",
		}, []string{"result"})

		uploadRejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "folio_upload_rejected_total",
			Help: "Attachment uploads rejected before reaching storage.",
		}, []string{"reason"})

		uploadLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "folio_upload_latency_seconds",
			Help:    "Latency distribution of attachment uploads.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		})

		transitionTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "folio_lifecycle_transitions_total",
			Help: "Document lifecycle transitions by target status.",
		}, []string{"to", "result"})

		prometheus.MustRegister(
			autosaveTotal,
			autosaveSkippedTotal,
			autosaveLatency,
			uploadTotal,
			uploadRejectedTotal,
			uploadLatency,
			transitionTotal,
		)
	})
}

// AutosaveTotal exposes the autosave outcome counter.
func AutosaveTotal() *prometheus.CounterVec {
	RegisterMetrics()
	return autosaveTotal
}

// AutosaveSkipped exposes the skipped-trigger counter.
func AutosaveSkipped() *prometheus.CounterVec {
	RegisterMetrics()
	return autosaveSkippedTotal
}

// AutosaveLatency exposes the save latency histogram.
func AutosaveLatency() prometheus.Histogram {
	RegisterMetrics()
	return autosaveLatency
}

// UploadTotal exposes the upload outcome counter.
func UploadTotal() *prometheus.CounterVec {
	RegisterMetrics()
	return uploadTotal
}

// UploadRejected exposes the pre-validation rejection counter.
func UploadRejected() *prometheus.CounterVec {
	RegisterMetrics()
	return uploadRejectedTotal
}

// UploadLatency exposes the upload latency histogram.
func UploadLatency() prometheus.Histogram {
	RegisterMetrics()
	return uploadLatency
}

// TransitionTotal exposes the lifecycle transition counter.
func TransitionTotal() *prometheus.CounterVec {
	RegisterMetrics()
	return transitionTotal
}
