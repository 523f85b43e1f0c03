package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/supplier-intake/intake-pipeline/internal/store"
	"github.com/supplier-intake/intake-pipeline/internal/store/model"
	"go.uber.org/zap"
)

const collectTimeout = 5 * time.Second

type submissionStatsCollector struct {
	store            store.Store
	byStatus         *prometheus.Desc
	awaitingReview   *prometheus.Desc
	oldestPendingAge *prometheus.Desc
}

// NewSubmissionStatsCollector exposes gauges computed from the submission table on each scrape.
func NewSubmissionStatsCollector(s store.Store) prometheus.Collector {
	fqName := func(name string) string {
		return fmt.Sprintf("%s_submissions_%s", supplierIntake, name)
	}

	return &submissionStatsCollector{
		store: s,
		byStatus: prometheus.NewDesc(
			fqName("by_processing_status"),
			"Number of submissions per processing status.",
			[]string{"status"},
			nil,
		),
		awaitingReview: prometheus.NewDesc(
			fqName("awaiting_review"),
			"Number of completed submissions without a review decision.",
			nil,
			nil,
		),
		oldestPendingAge: prometheus.NewDesc(
			fqName("oldest_awaiting_review_seconds"),
			"Age of the oldest submission awaiting review.",
			nil,
			nil,
		),
	}
}

func (c *submissionStatsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.byStatus
	ch <- c.awaitingReview
	ch <- c.oldestPendingAge
}

// Collect implements Collector.
func (c *submissionStatsCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), collectTimeout)
	defer cancel()

	logger := zap.S().Named("submission_collector")
	for _, status := range []model.ProcessingStatus{
		model.ProcessingStatusPending,
		model.ProcessingStatusProcessing,
		model.ProcessingStatusCompleted,
		model.ProcessingStatusFailed,
	} {
		count, err := c.store.Submission().Count(ctx, store.NewSubmissionQueryFilter().ByProcessingStatus(status))
		if err != nil {
			logger.Errorf("failed to collect submission statistics: %s", err)
			return
		}
		ch <- prometheus.MustNewConstMetric(c.byStatus, prometheus.GaugeValue, float64(count), string(status))
	}

	awaiting, err := c.store.Submission().Count(ctx, store.NewSubmissionQueryFilter().AwaitingReview())
	if err != nil {
		logger.Errorf("failed to collect review backlog: %s", err)
		return
	}
	ch <- prometheus.MustNewConstMetric(c.awaitingReview, prometheus.GaugeValue, float64(awaiting))

	oldest, err := c.store.Submission().List(ctx,
		store.NewSubmissionQueryFilter().AwaitingReview(),
		store.NewSubmissionQueryOptions().WithSortOrder(store.SortByCreatedTime).WithLimit(1))
	if err != nil {
		logger.Errorf("failed to collect review backlog age: %s", err)
		return
	}
	age := 0.0
	if len(oldest) > 0 {
		age = time.Since(oldest[0].CreatedAt).Seconds()
	}
	ch <- prometheus.MustNewConstMetric(c.oldestPendingAge, prometheus.GaugeValue, age)
}
