package store

import (
	"time"

	"github.com/google/uuid"
	"github.com/supplier-intake/intake-pipeline/internal/store/model"
	"gorm.io/gorm"
)

type SortOrder int

const (
	Unsorted SortOrder = iota
	SortByCreatedTime
	SortByCreatedTimeDesc
	SortByUpdatedTime
)

type BaseQuerier struct {
	QueryFn []func(tx *gorm.DB) *gorm.DB
}

func (b BaseQuerier) apply(tx *gorm.DB) *gorm.DB {
	for _, fn := range b.QueryFn {
		tx = fn(tx)
	}
	return tx
}

type SubmissionQueryFilter BaseQuerier

func NewSubmissionQueryFilter() *SubmissionQueryFilter {
	return &SubmissionQueryFilter{QueryFn: make([]func(tx *gorm.DB) *gorm.DB, 0)}
}

func (f *SubmissionQueryFilter) add(fn func(tx *gorm.DB) *gorm.DB) *SubmissionQueryFilter {
	f.QueryFn = append(f.QueryFn, fn)
	return f
}

func (f *SubmissionQueryFilter) BySupplierID(id uuid.UUID) *SubmissionQueryFilter {
	return f.add(func(tx *gorm.DB) *gorm.DB {
		return tx.Where("supplier_id = ?", id)
	})
}

func (f *SubmissionQueryFilter) ByTemplateID(id string) *SubmissionQueryFilter {
	return f.add(func(tx *gorm.DB) *gorm.DB {
		return tx.Where("template_id = ?", id)
	})
}

func (f *SubmissionQueryFilter) ByContentType(ct model.ContentType) *SubmissionQueryFilter {
	return f.add(func(tx *gorm.DB) *gorm.DB {
		return tx.Where("content_type = ?", ct)
	})
}

func (f *SubmissionQueryFilter) ByCategory(category string) *SubmissionQueryFilter {
	return f.add(func(tx *gorm.DB) *gorm.DB {
		return tx.Where("category = ?", category)
	})
}

func (f *SubmissionQueryFilter) ByProcessingStatus(statuses ...model.ProcessingStatus) *SubmissionQueryFilter {
	return f.add(func(tx *gorm.DB) *gorm.DB {
		return tx.Where("processing_status IN ?", statuses)
	})
}

func (f *SubmissionQueryFilter) ByValidationStatus(statuses ...model.ValidationStatus) *SubmissionQueryFilter {
	return f.add(func(tx *gorm.DB) *gorm.DB {
		return tx.Where("validation_status IN ?", statuses)
	})
}

// AwaitingReview keeps completed submissions without a review decision.
func (f *SubmissionQueryFilter) AwaitingReview() *SubmissionQueryFilter {
	return f.ByProcessingStatus(model.ProcessingStatusCompleted).ByValidationStatus(model.ValidationStatusPending)
}

func (f *SubmissionQueryFilter) ByGroupIDs(ids []uuid.UUID) *SubmissionQueryFilter {
	return f.add(func(tx *gorm.DB) *gorm.DB {
		return tx.Where("group_id IN ?", ids)
	})
}

func (f *SubmissionQueryFilter) BySourceMessageID(id string) *SubmissionQueryFilter {
	return f.add(func(tx *gorm.DB) *gorm.DB {
		return tx.Where("source_message_id = ?", id)
	})
}

func (f *SubmissionQueryFilter) CreatedSince(t time.Time) *SubmissionQueryFilter {
	return f.add(func(tx *gorm.DB) *gorm.DB {
		return tx.Where("created_at >= ?", t)
	})
}

// RetryDue keeps failed submissions whose backoff elapsed and whose budget is not exhausted.
func (f *SubmissionQueryFilter) RetryDue(now time.Time, maxAttempts int) *SubmissionQueryFilter {
	return f.add(func(tx *gorm.DB) *gorm.DB {
		return tx.Where("processing_status = ? AND attempts < ? AND (next_attempt_at IS NULL OR next_attempt_at <= ?)",
			model.ProcessingStatusFailed, maxAttempts, now)
	})
}

// StaleSince keeps claims that have been processing since before t.
func (f *SubmissionQueryFilter) StaleSince(t time.Time) *SubmissionQueryFilter {
	return f.add(func(tx *gorm.DB) *gorm.DB {
		return tx.Where("processing_status = ? AND processing_started_at < ?", model.ProcessingStatusProcessing, t)
	})
}

type SubmissionQueryOptions BaseQuerier

func NewSubmissionQueryOptions() *SubmissionQueryOptions {
	return &SubmissionQueryOptions{QueryFn: make([]func(tx *gorm.DB) *gorm.DB, 0)}
}

func (o *SubmissionQueryOptions) WithSortOrder(sort SortOrder) *SubmissionQueryOptions {
	o.QueryFn = append(o.QueryFn, func(tx *gorm.DB) *gorm.DB {
		switch sort {
		case SortByCreatedTime:
			return tx.Order("created_at ASC").Order("item_index ASC")
		case SortByCreatedTimeDesc:
			return tx.Order("created_at DESC")
		case SortByUpdatedTime:
			return tx.Order("updated_at")
		default:
			return tx
		}
	})
	return o
}

func (o *SubmissionQueryOptions) WithLimit(limit int) *SubmissionQueryOptions {
	o.QueryFn = append(o.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Limit(limit)
	})
	return o
}

func (o *SubmissionQueryOptions) WithOffset(offset int) *SubmissionQueryOptions {
	o.QueryFn = append(o.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Offset(offset)
	})
	return o
}

type LogQueryFilter BaseQuerier

func NewLogQueryFilter() *LogQueryFilter {
	return &LogQueryFilter{QueryFn: make([]func(tx *gorm.DB) *gorm.DB, 0)}
}

func (f *LogQueryFilter) BySubmissionID(id uuid.UUID) *LogQueryFilter {
	f.QueryFn = append(f.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("processing_log_entries.submission_id = ?", id)
	})
	return f
}

func (f *LogQueryFilter) ByStage(stage model.StageName) *LogQueryFilter {
	f.QueryFn = append(f.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("processing_log_entries.stage = ?", stage)
	})
	return f
}

func (f *LogQueryFilter) ByStatus(status model.StageStatus) *LogQueryFilter {
	f.QueryFn = append(f.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("processing_log_entries.status = ?", status)
	})
	return f
}

// ByTemplateID joins the owning submission to restrict entries to one template.
func (f *LogQueryFilter) ByTemplateID(id string) *LogQueryFilter {
	f.QueryFn = append(f.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Joins("JOIN submissions ON submissions.id = processing_log_entries.submission_id").
			Where("submissions.template_id = ?", id)
	})
	return f
}

// SubmittedSince keeps entries of submissions received at or after t, whenever the entry itself was written.
func (f *LogQueryFilter) SubmittedSince(t time.Time) *LogQueryFilter {
	f.QueryFn = append(f.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("processing_log_entries.submission_id IN (SELECT id FROM submissions WHERE created_at >= ?)", t)
	})
	return f
}

type FeedbackQueryFilter BaseQuerier

func NewFeedbackQueryFilter() *FeedbackQueryFilter {
	return &FeedbackQueryFilter{QueryFn: make([]func(tx *gorm.DB) *gorm.DB, 0)}
}

func (f *FeedbackQueryFilter) ByTemplateID(id string) *FeedbackQueryFilter {
	f.QueryFn = append(f.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("feedback.template_id = ?", id)
	})
	return f
}

func (f *FeedbackQueryFilter) BySubmissionID(id uuid.UUID) *FeedbackQueryFilter {
	f.QueryFn = append(f.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("feedback.submission_id = ?", id)
	})
	return f
}

// SubmittedSince keeps feedback on submissions received at or after t, whenever the rejection happened.
func (f *FeedbackQueryFilter) SubmittedSince(t time.Time) *FeedbackQueryFilter {
	f.QueryFn = append(f.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("feedback.submission_id IN (SELECT id FROM submissions WHERE created_at >= ?)", t)
	})
	return f
}
