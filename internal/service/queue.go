package service

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/supplier-intake/intake-pipeline/internal/scoring"
	"github.com/supplier-intake/intake-pipeline/internal/store"
	"github.com/supplier-intake/intake-pipeline/internal/store/model"
	"github.com/supplier-intake/intake-pipeline/pkg/log"
	"github.com/thoas/go-funk"
)

type QueueFilter struct {
	SupplierID    *uuid.UUID
	ContentType   *model.ContentType
	Category      *string
	Priority      *model.Priority
	MinConfidence *float64
	MaxConfidence *float64
	Page          int
	Limit         int
}

// QueueItem is a completed submission awaiting review, decorated for the reviewer.
type QueueItem struct {
	Submission       model.Submission
	Confidence       float64
	Breakdown        scoring.Breakdown
	Priority         model.Priority
	Age              time.Duration
	SuggestedActions []scoring.Action
	Siblings         []model.Sibling
}

type QueuePage struct {
	Items []QueueItem
	Total int
	Page  int
	Limit int
	// Truncated is set when more candidates matched than a single scan reads.
	Truncated bool
}

type QueueService struct {
	store     store.Store
	scorer    *scoring.Scorer
	maxLimit  int
	scanLimit int
	now       func() time.Time
	logger    *log.StructuredLogger
}

type QueueOption func(*QueueService)

func WithQueueLimits(maxLimit, scanLimit int) QueueOption {
	return func(q *QueueService) {
		if maxLimit > 0 {
			q.maxLimit = maxLimit
		}
		if scanLimit > 0 {
			q.scanLimit = scanLimit
		}
	}
}

func WithScorer(s *scoring.Scorer) QueueOption {
	return func(q *QueueService) {
		if s != nil {
			q.scorer = s
		}
	}
}

func WithQueueClock(now func() time.Time) QueueOption {
	return func(q *QueueService) {
		if now != nil {
			q.now = now
		}
	}
}

func NewQueueService(s store.Store, opts ...QueueOption) *QueueService {
	q := &QueueService{
		store:     s,
		scorer:    scoring.NewScorer(),
		maxLimit:  100,
		scanLimit: 1000,
		now:       func() time.Time { return time.Now().UTC() },
		logger:    log.NewDebugLogger("queue_service"),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

func (q *QueueService) ListQueue(ctx context.Context, filter QueueFilter) (*QueuePage, error) {
	if err := q.validate(filter); err != nil {
		return nil, err
	}

	tracer := q.logger.WithContext(ctx).Operation("list_queue").
		WithInt("page", filter.Page).
		WithInt("limit", filter.Limit).
		Build()

	storeFilter := store.NewSubmissionQueryFilter().AwaitingReview()
	if filter.SupplierID != nil {
		storeFilter = storeFilter.BySupplierID(*filter.SupplierID)
	}
	if filter.ContentType != nil {
		storeFilter = storeFilter.ByContentType(*filter.ContentType)
	}
	if filter.Category != nil {
		storeFilter = storeFilter.ByCategory(*filter.Category)
	}

	candidates, err := q.store.Submission().List(ctx, storeFilter,
		store.NewSubmissionQueryOptions().WithSortOrder(store.SortByCreatedTime).WithLimit(q.scanLimit+1))
	if err != nil {
		tracer.Error(err).Log()
		return nil, err
	}
	truncated := len(candidates) > q.scanLimit
	if truncated {
		candidates = candidates[:q.scanLimit]
	}
	tracer.Step("candidates").WithInt("count", len(candidates)).WithBool("truncated", truncated).Log()

	templates, err := q.templates(ctx)
	if err != nil {
		tracer.Error(err).Log()
		return nil, err
	}

	supplierIDs := uniqueIDs(funk.Map(candidates, func(s model.Submission) string { return s.SupplierID.String() }).([]string))
	history, err := q.store.Submission().DecisionCountsBySupplier(ctx, supplierIDs)
	if err != nil {
		tracer.Error(err).Log()
		return nil, err
	}

	now := q.now()
	items := make([]QueueItem, 0, len(candidates))
	for _, s := range candidates {
		item := q.decorate(s, templates[s.TemplateID], history[s.SupplierID], now)
		if !keep(item, filter) {
			continue
		}
		items = append(items, item)
	}
	RankQueue(items)

	page := &QueuePage{Total: len(items), Page: filter.Page, Limit: filter.Limit, Truncated: truncated}
	start := (filter.Page - 1) * filter.Limit
	if start < len(items) {
		end := min(start+filter.Limit, len(items))
		page.Items = items[start:end]
	} else {
		page.Items = []QueueItem{}
	}

	if err := q.attachSiblings(ctx, page.Items); err != nil {
		tracer.Error(err).Log()
		return nil, err
	}

	tracer.Success().WithInt("total", page.Total).WithInt("returned", len(page.Items)).Log()
	return page, nil
}

func (q *QueueService) validate(f QueueFilter) error {
	if f.Page < 1 {
		return NewErrInvalidQueueFilter("page must be at least 1")
	}
	if f.Limit < 1 || f.Limit > q.maxLimit {
		return NewErrInvalidQueueFilter("limit must be between 1 and %d", q.maxLimit)
	}
	for _, c := range []*float64{f.MinConfidence, f.MaxConfidence} {
		if c != nil && (*c < scoring.MinConfidence || *c > scoring.MaxConfidence) {
			return NewErrInvalidQueueFilter("confidence bounds must be within [0,100]")
		}
	}
	if f.MinConfidence != nil && f.MaxConfidence != nil && *f.MinConfidence > *f.MaxConfidence {
		return NewErrInvalidQueueFilter("minimum confidence is above the maximum")
	}
	return nil
}

func (q *QueueService) decorate(s model.Submission, t model.Template, history model.DecisionCount, now time.Time) QueueItem {
	b := q.scorer.Score(scoring.InputFromSubmission(s, t))
	age := max(now.Sub(s.CreatedAt), 0)
	return QueueItem{
		Submission:       s,
		Confidence:       b.Score,
		Breakdown:        b,
		Priority:         scoring.ComputePriority(b.Score, age, history),
		Age:              age,
		SuggestedActions: scoring.SuggestActions(b),
		Siblings:         []model.Sibling{},
	}
}

func (q *QueueService) templates(ctx context.Context) (map[string]model.Template, error) {
	list, err := q.store.Template().List(ctx, false)
	if err != nil {
		return nil, err
	}
	out := make(map[string]model.Template, len(list))
	for _, t := range list {
		out[t.ID] = t
	}
	return out, nil
}

// attachSiblings links every item to the other products of its source message, whatever their state.
func (q *QueueService) attachSiblings(ctx context.Context, items []QueueItem) error {
	if len(items) == 0 {
		return nil
	}
	groupIDs := uniqueIDs(funk.Map(items, func(i QueueItem) string { return i.Submission.GroupID.String() }).([]string))
	members, err := q.store.Submission().List(ctx, store.NewSubmissionQueryFilter().ByGroupIDs(groupIDs),
		store.NewSubmissionQueryOptions().WithSortOrder(store.SortByCreatedTime))
	if err != nil {
		return err
	}

	byGroup := make(map[uuid.UUID][]model.Submission, len(groupIDs))
	for _, m := range members {
		byGroup[m.GroupID] = append(byGroup[m.GroupID], m)
	}
	for i := range items {
		for _, m := range byGroup[items[i].Submission.GroupID] {
			if m.ID != items[i].Submission.ID {
				items[i].Siblings = append(items[i].Siblings, m.AsSibling())
			}
		}
	}
	return nil
}

// uniqueIDs dedupes ids kept in their string form; go-funk walks uuid.UUID values as byte arrays.
func uniqueIDs(ids []string) []uuid.UUID {
	unique := funk.UniqString(ids)
	out := make([]uuid.UUID, 0, len(unique))
	for _, id := range unique {
		out = append(out, uuid.MustParse(id))
	}
	return out
}

func keep(item QueueItem, f QueueFilter) bool {
	if f.Priority != nil && item.Priority != *f.Priority {
		return false
	}
	if f.MinConfidence != nil && item.Confidence < *f.MinConfidence {
		return false
	}
	if f.MaxConfidence != nil && item.Confidence > *f.MaxConfidence {
		return false
	}
	return true
}

// RankQueue orders items by priority desc, age desc, confidence asc.
func RankQueue(items []QueueItem) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.Priority.Rank() != b.Priority.Rank() {
			return a.Priority.Rank() > b.Priority.Rank()
		}
		if a.Age != b.Age {
			return a.Age > b.Age
		}
		if a.Confidence != b.Confidence {
			return a.Confidence < b.Confidence
		}
		return a.Submission.ID.String() < b.Submission.ID.String()
	})
}
