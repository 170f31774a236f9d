package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "autoscholar_search_duration_seconds",
			Help:    "Search request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"mode"},
	)

	SearchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autoscholar_search_total",
			Help: "Total number of search requests",
		},
		[]string{"status"},
	)

	CompareDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "autoscholar_compare_duration_seconds",
			Help:    "Paper comparison duration in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30},
		},
	)

	CompareTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autoscholar_compare_total",
			Help: "Total number of comparison requests",
		},
		[]string{"status"},
	)

	CompareFallbackTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "autoscholar_compare_fallback_total",
			Help: "Comparisons that synthesized a semantic fallback graph",
		},
	)

	EvidenceEdges = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "autoscholar_evidence_edges",
			Help:    "Evidence graph edges per comparison",
			Buckets: []float64{0, 2, 5, 10, 20, 50},
		},
	)

	RecommendationTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autoscholar_recommendation_total",
			Help: "Total recommendation requests",
		},
		[]string{"source"},
	)

	NoveltyScore = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "autoscholar_novelty_score",
			Help:    "Distribution of computed novelty scores",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		},
	)

	LLMTokensUsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autoscholar_llm_tokens_used",
			Help: "Total LLM tokens used",
		},
		[]string{"model", "type"},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autoscholar_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autoscholar_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)

	PapersIngested = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autoscholar_papers_ingested_total",
			Help: "Total papers ingested",
		},
		[]string{"source"},
	)

	CitationEdgesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "autoscholar_citation_edges_total",
			Help: "Total citation edges in the graph store",
		},
	)
)

func Init() {
	prometheus.MustRegister(SearchDuration)
	prometheus.MustRegister(SearchTotal)
	prometheus.MustRegister(CompareDuration)
	prometheus.MustRegister(CompareTotal)
	prometheus.MustRegister(CompareFallbackTotal)
	prometheus.MustRegister(EvidenceEdges)
	prometheus.MustRegister(RecommendationTotal)
	prometheus.MustRegister(NoveltyScore)
	prometheus.MustRegister(LLMTokensUsed)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
	prometheus.MustRegister(PapersIngested)
	prometheus.MustRegister(CitationEdgesTotal)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
