package billpipe

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billparse_pages_total",
			Help: "Pages processed by outcome",
		},
		[]string{"outcome"}, // ok, empty, skipped_llm, skipped_malformed
	)

	llmTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billparse_llm_tokens_total",
			Help: "Language model tokens consumed",
		},
		[]string{"direction"}, // input, output
	)

	documentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billparse_documents_total",
			Help: "Documents processed by outcome",
		},
		[]string{"outcome"}, // success, partial, download, rasterization, ocr
	)

	extractionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "billparse_extraction_duration_seconds",
			Help:    "End-to-end document extraction duration in seconds",
			Buckets: []float64{1, 2.5, 5, 10, 20, 30, 60, 90, 120, 180},
		},
	)

	billItemsExtracted = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "billparse_bill_items",
			Help:    "Aggregated bill items per document",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250},
		},
	)
)
