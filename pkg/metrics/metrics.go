package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	supplierIntake = "supplier_intake"

	submissionsIngestedTotal  = "submissions_ingested_total"
	duplicateIngestionsTotal  = "duplicate_ingestions_total"
	extractionAttemptsTotal   = "extraction_attempts_total"
	extractionDurationMs      = "extraction_duration_milliseconds"
	reviewDecisionsTotal      = "review_decisions_total"
	inventoryCommitsTotal     = "inventory_commits_total"
	templateImprovementsTotal = "template_improvements_total"

	// Labels
	contentTypeLabel  = "content_type"
	outcomeLabel      = "outcome"
	decisionLabel     = "decision"
	proposalTypeLabel = "proposal_type"
)

var submissionsIngestedMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: supplierIntake,
		Name:      submissionsIngestedTotal,
		Help:      "number of submissions created from inbound messages",
	},
	[]string{contentTypeLabel},
)

var duplicateIngestionsMetric = prometheus.NewCounter(
	prometheus.CounterOpts{
		Subsystem: supplierIntake,
		Name:      duplicateIngestionsTotal,
		Help:      "number of inbound messages already ingested",
	},
)

var extractionAttemptsMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: supplierIntake,
		Name:      extractionAttemptsTotal,
		Help:      "number of extraction attempts partitioned by outcome",
	},
	[]string{outcomeLabel},
)

var extractionDurationMetric = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Subsystem: supplierIntake,
		Name:      extractionDurationMs,
		Help:      "duration of extraction attempts",
		Buckets:   []float64{100, 500, 1000, 5000, 15000, 60000},
	},
	[]string{outcomeLabel},
)

var reviewDecisionsMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: supplierIntake,
		Name:      reviewDecisionsTotal,
		Help:      "number of persisted review decisions",
	},
	[]string{decisionLabel},
)

var inventoryCommitsMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: supplierIntake,
		Name:      inventoryCommitsTotal,
		Help:      "number of inventory commit calls partitioned by outcome",
	},
	[]string{outcomeLabel},
)

var templateImprovementsMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: supplierIntake,
		Name:      templateImprovementsTotal,
		Help:      "number of applied template improvement proposals",
	},
	[]string{proposalTypeLabel},
)

func IncreaseSubmissionsIngested(contentType string, n int) {
	submissionsIngestedMetric.With(prometheus.Labels{contentTypeLabel: contentType}).Add(float64(n))
}

func IncreaseDuplicateIngestions() {
	duplicateIngestionsMetric.Inc()
}

func ObserveExtraction(outcome string, d time.Duration) {
	extractionAttemptsMetric.With(prometheus.Labels{outcomeLabel: outcome}).Inc()
	extractionDurationMetric.With(prometheus.Labels{outcomeLabel: outcome}).Observe(float64(d.Milliseconds()))
}

func IncreaseReviewDecision(decision string) {
	reviewDecisionsMetric.With(prometheus.Labels{decisionLabel: decision}).Inc()
}

func IncreaseInventoryCommit(outcome string) {
	inventoryCommitsMetric.With(prometheus.Labels{outcomeLabel: outcome}).Inc()
}

func IncreaseTemplateImprovement(proposalType string) {
	templateImprovementsMetric.With(prometheus.Labels{proposalTypeLabel: proposalType}).Inc()
}

func init() {
	registerMetrics()
}

func registerMetrics() {
	prometheus.MustRegister(submissionsIngestedMetric)
	prometheus.MustRegister(duplicateIngestionsMetric)
	prometheus.MustRegister(extractionAttemptsMetric)
	prometheus.MustRegister(extractionDurationMetric)
	prometheus.MustRegister(reviewDecisionsMetric)
	prometheus.MustRegister(inventoryCommitsMetric)
	prometheus.MustRegister(templateImprovementsMetric)
}
