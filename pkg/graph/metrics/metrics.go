package metrics

import (
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// System metrics
	SystemMemoryUsage = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "system_memory_bytes",
		Help: "Current system memory usage",
	})

	SystemGoroutines = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "system_goroutines",
		Help: "Number of goroutines",
	})

	// Ingestion metrics
	DocumentsLoaded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_documents_loaded_total",
			Help: "Total number of documents loaded",
		},
		[]string{"format"},
	)

	SentencesAnalyzed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "extract_sentences_analyzed_total",
		Help: "Number of sentences run through the extractor",
	})

	TriplesExtracted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "extract_triples_total",
		Help: "Number of candidate triples extracted",
	})

	ExtractionFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "extract_failures_total",
			Help: "Number of non-fatal per-sentence extraction failures",
		},
		[]string{"stage"},
	)

	// Graph metrics
	GraphEntityCount = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "graph_entities_total",
			Help: "Number of entities in a collection graph",
		},
		[]string{"collection"},
	)

	GraphTripleCount = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "graph_triples_total",
			Help: "Number of triples in a collection graph",
		},
		[]string{"collection"},
	)

	// Training metrics
	TrainingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "training_duration_seconds",
		Help: "Wall-clock time spent training embedding models",
	})

	TrainingLoss = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "training_last_epoch_loss",
		Help: "Accumulated margin loss of the most recent training epoch",
	})

	// Scoring metrics
	ScoreRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "score_requests_total",
			Help: "Number of plausibility score requests",
		},
		[]string{"outcome"},
	)
)

// UpdateSystemMetrics updates system-level metrics
func UpdateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	SystemMemoryUsage.Set(float64(m.Alloc))
	SystemGoroutines.Set(float64(runtime.NumGoroutine()))
}
