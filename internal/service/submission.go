package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/supplier-intake/intake-pipeline/internal/pipeline"
	"github.com/supplier-intake/intake-pipeline/internal/scoring"
	"github.com/supplier-intake/intake-pipeline/internal/store"
	"github.com/supplier-intake/intake-pipeline/internal/store/model"
)

// SubmissionDetail is everything a reviewer sees about one submission.
type SubmissionDetail struct {
	Submission model.Submission
	Breakdown  *scoring.Breakdown
	Priority   *model.Priority
	Siblings   []model.Sibling
	Feedback   *model.Feedback
	Log        model.ProcessingLog
}

// Retrier moves a failed submission back to the extraction queue.
type Retrier interface {
	Retry(ctx context.Context, id uuid.UUID) (*model.Submission, error)
}

type SubmissionService struct {
	store   store.Store
	scorer  *scoring.Scorer
	retrier Retrier
	queue   *QueueService
}

func NewSubmissionService(s store.Store, scorer *scoring.Scorer, retrier Retrier) *SubmissionService {
	if scorer == nil {
		scorer = scoring.NewScorer()
	}
	return &SubmissionService{
		store:   s,
		scorer:  scorer,
		retrier: retrier,
		queue:   NewQueueService(s, WithScorer(scorer)),
	}
}

func (s *SubmissionService) GetSubmission(ctx context.Context, id uuid.UUID) (*SubmissionDetail, error) {
	submission, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}

	detail := &SubmissionDetail{Submission: *submission, Siblings: []model.Sibling{}}

	members, err := s.store.Submission().List(ctx,
		store.NewSubmissionQueryFilter().ByGroupIDs([]uuid.UUID{submission.GroupID}),
		store.NewSubmissionQueryOptions().WithSortOrder(store.SortByCreatedTime))
	if err != nil {
		return nil, err
	}
	for _, m := range members {
		if m.ID != submission.ID {
			detail.Siblings = append(detail.Siblings, m.AsSibling())
		}
	}

	if submission.ProcessingStatus == model.ProcessingStatusCompleted {
		template, err := s.store.Template().Get(ctx, submission.TemplateID)
		if err != nil && !errors.Is(err, store.ErrRecordNotFound) {
			return nil, err
		}
		if template == nil {
			template = &model.Template{}
		}
		history, err := s.store.Submission().DecisionCountsBySupplier(ctx, []uuid.UUID{submission.SupplierID})
		if err != nil {
			return nil, err
		}
		item := s.queue.decorate(*submission, *template, history[submission.SupplierID], s.queue.now())
		detail.Breakdown = &item.Breakdown
		if submission.ValidationStatus == model.ValidationStatusPending {
			detail.Priority = &item.Priority
		}
	}

	if submission.ValidationStatus == model.ValidationStatusRejected {
		fb, err := s.store.Feedback().GetBySubmissionID(ctx, id)
		if err != nil && !errors.Is(err, store.ErrRecordNotFound) {
			return nil, err
		}
		detail.Feedback = fb
	}

	entries, err := s.store.ProcessingLog().List(ctx, store.NewLogQueryFilter().BySubmissionID(id))
	if err != nil {
		return nil, err
	}
	detail.Log = entries
	return detail, nil
}

// ListLog returns the audit trail of a submission, oldest first.
func (s *SubmissionService) ListLog(ctx context.Context, id uuid.UUID, stage *model.StageName) (model.ProcessingLog, error) {
	if _, err := s.get(ctx, id); err != nil {
		return nil, err
	}
	filter := store.NewLogQueryFilter().BySubmissionID(id)
	if stage != nil {
		filter = filter.ByStage(*stage)
	}
	return s.store.ProcessingLog().List(ctx, filter)
}

// Retry resets a failed submission so the workers pick it up again with a fresh attempt budget.
func (s *SubmissionService) Retry(ctx context.Context, id uuid.UUID) (*model.Submission, error) {
	if s.retrier == nil {
		return nil, NewErrSubmissionNotProcessable(id)
	}
	submission, err := s.retrier.Retry(ctx, id)
	switch {
	case errors.Is(err, pipeline.ErrNotFound):
		return nil, NewErrSubmissionNotFound(id)
	case errors.Is(err, pipeline.ErrNotProcessable):
		return nil, NewErrSubmissionNotProcessable(id)
	case err != nil:
		return nil, err
	}
	return submission, nil
}

func (s *SubmissionService) get(ctx context.Context, id uuid.UUID) (*model.Submission, error) {
	submission, err := s.store.Submission().Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, NewErrSubmissionNotFound(id)
		}
		return nil, err
	}
	return submission, nil
}
