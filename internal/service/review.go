package service

import (
	"context"
	"errors"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/supplier-intake/intake-pipeline/internal/inventory"
	"github.com/supplier-intake/intake-pipeline/internal/service/mappers"
	"github.com/supplier-intake/intake-pipeline/internal/store"
	"github.com/supplier-intake/intake-pipeline/internal/store/model"
	"github.com/supplier-intake/intake-pipeline/pkg/log"
	"github.com/supplier-intake/intake-pipeline/pkg/metrics"
	"gorm.io/datatypes"
)

const (
	decisionApproved = "approved"
	decisionRejected = "rejected"

	anonymousValidator = "anonymous"
)

type ApproveResult struct {
	Submission       *model.Submission
	ProductReference string
	Data             map[string]any
}

type ReviewService struct {
	store     store.Store
	committer inventory.Committer
	now       func() time.Time
	logger    *log.StructuredLogger
}

func NewReviewService(s store.Store, committer inventory.Committer) *ReviewService {
	return &ReviewService{
		store:     s,
		committer: committer,
		now:       func() time.Time { return time.Now().UTC() },
		logger:    log.NewDebugLogger("review_service"),
	}
}

// Approve merges the reviewer edits over the extracted data and commits the result to the inventory.
// The approval is persisted only when the inventory confirmed the commit.
func (r *ReviewService) Approve(ctx context.Context, id uuid.UUID, form mappers.ApproveForm) (*ApproveResult, error) {
	tracer := r.logger.WithContext(ctx).Operation("approve_submission").
		WithUUID("submission_id", id).
		WithInt("edits", len(form.Edits)).
		Build()

	submission, err := r.awaitingDecision(ctx, id)
	if err != nil {
		return nil, err
	}

	merged := MergeEdits(submission.ExtractedData, form.Edits)
	now := r.now()

	txCtx, err := r.store.NewTransactionContext(ctx)
	if err != nil {
		tracer.Error(err).Log()
		return nil, err
	}

	err = r.store.Submission().Decide(txCtx, id, store.Decision{
		Status:      model.ValidationStatusApproved,
		ValidatedBy: validatorName(form.Validator),
		Notes:       form.Notes,
		At:          now,
	})
	if err != nil {
		_, _ = store.Rollback(txCtx)
		if errors.Is(err, store.ErrNoRowsAffected) {
			return nil, NewErrValidationConflict(id)
		}
		tracer.Error(err).Log()
		return nil, err
	}
	tracer.Step("decision_locked").Log()

	start := time.Now()
	ref, commitErr := r.committer.CommitProduct(ctx, inventory.Product{
		SubmissionID: submission.ID,
		SupplierID:   submission.SupplierID,
		TemplateID:   submission.TemplateID,
		Category:     submission.Category,
		Data:         merged,
	})
	if commitErr == nil && strings.TrimSpace(ref) == "" {
		commitErr = inventory.ErrEmptyReference
	}
	elapsed := time.Since(start)

	if commitErr != nil {
		if _, err := store.Rollback(txCtx); err != nil {
			tracer.Error(err).Log()
		}
		metrics.IncreaseInventoryCommit("failed")
		r.recordInventoryFailure(ctx, submission, elapsed, commitErr)
		tracer.Error(commitErr).WithString("stage", string(model.StageInventoryUpdate)).Log()
		return nil, NewErrInventoryCommitFailed(id, commitErr)
	}

	if err := r.store.Submission().SetProductReference(txCtx, id, ref); err != nil {
		_, _ = store.Rollback(txCtx)
		tracer.Error(err).Log()
		return nil, err
	}

	err = r.store.ProcessingLog().Append(txCtx,
		model.NewLogEntry(id, model.StageValidation, model.StageStatusCompleted, 0).
			WithMeta("decision", decisionApproved).
			WithMeta("validated_by", validatorName(form.Validator)).
			WithMeta("edited_fields", editedFields(form.Edits)),
		model.NewLogEntry(id, model.StageInventoryUpdate, model.StageStatusCompleted, 0).
			WithDuration(elapsed).
			WithMeta("product_reference", ref),
	)
	if err != nil {
		_, _ = store.Rollback(txCtx)
		tracer.Error(err).Log()
		return nil, err
	}

	if _, err := store.Commit(txCtx); err != nil {
		// the product exists in the inventory but the approval is lost; the operator has to reconcile
		tracer.Error(err).WithString("product_reference", ref).Log()
		return nil, err
	}

	metrics.IncreaseInventoryCommit("completed")
	metrics.IncreaseReviewDecision(decisionApproved)

	updated, err := r.store.Submission().Get(ctx, id)
	if err != nil {
		return nil, err
	}

	tracer.Success().WithString("product_reference", ref).Log()
	return &ApproveResult{Submission: updated, ProductReference: ref, Data: merged}, nil
}

// Reject records a terminal rejection with its structured feedback. Feedback is validated before any write.
func (r *ReviewService) Reject(ctx context.Context, id uuid.UUID, form mappers.RejectForm) (*model.Feedback, error) {
	tracer := r.logger.WithContext(ctx).Operation("reject_submission").
		WithUUID("submission_id", id).
		WithString("category", form.Feedback.Category).
		Build()

	category, err := ValidateFeedback(form.Feedback)
	if err != nil {
		return nil, err
	}

	submission, err := r.awaitingDecision(ctx, id)
	if err != nil {
		return nil, err
	}

	txCtx, err := r.store.NewTransactionContext(ctx)
	if err != nil {
		tracer.Error(err).Log()
		return nil, err
	}

	err = r.store.Submission().Decide(txCtx, id, store.Decision{
		Status:      model.ValidationStatusRejected,
		ValidatedBy: validatorName(form.Validator),
		Notes:       form.Notes,
		At:          r.now(),
	})
	if err != nil {
		_, _ = store.Rollback(txCtx)
		if errors.Is(err, store.ErrNoRowsAffected) {
			return nil, NewErrValidationConflict(id)
		}
		tracer.Error(err).Log()
		return nil, err
	}

	feedback, err := r.store.Feedback().Create(txCtx, model.Feedback{
		ID:           uuid.New(),
		SubmissionID: id,
		TemplateID:   submission.TemplateID,
		Category:     category,
		Subcategory:  strings.TrimSpace(form.Feedback.Subcategory),
		Note:         strings.TrimSpace(form.Feedback.Note),
		Fields:       datatypes.NewJSONSlice(cleanFields(form.Feedback.Fields)),
	})
	if err != nil {
		_, _ = store.Rollback(txCtx)
		if errors.Is(err, store.ErrDuplicateKey) {
			return nil, NewErrValidationConflict(id)
		}
		tracer.Error(err).Log()
		return nil, err
	}

	err = r.store.ProcessingLog().Append(txCtx, model.NewLogEntry(id, model.StageValidation, model.StageStatusCompleted, 0).
		WithMeta("decision", decisionRejected).
		WithMeta("validated_by", validatorName(form.Validator)).
		WithMeta("category", string(category)))
	if err != nil {
		_, _ = store.Rollback(txCtx)
		tracer.Error(err).Log()
		return nil, err
	}

	if _, err := store.Commit(txCtx); err != nil {
		tracer.Error(err).Log()
		return nil, err
	}

	metrics.IncreaseReviewDecision(decisionRejected)
	tracer.Success().WithUUID("feedback_id", feedback.ID).Log()
	return feedback, nil
}

// awaitingDecision loads the submission and checks it can receive a decision.
func (r *ReviewService) awaitingDecision(ctx context.Context, id uuid.UUID) (*model.Submission, error) {
	submission, err := r.store.Submission().Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, NewErrSubmissionNotFound(id)
		}
		return nil, err
	}
	if !submission.AwaitingReview() {
		return nil, NewErrValidationConflict(id)
	}
	return submission, nil
}

// recordInventoryFailure writes the failed inventory_update entry outside the rolled back transaction
// so the operator sees it next to the still pending submission.
func (r *ReviewService) recordInventoryFailure(ctx context.Context, s *model.Submission, elapsed time.Duration, cause error) {
	ctx = context.WithoutCancel(ctx)
	entry := model.NewLogEntry(s.ID, model.StageInventoryUpdate, model.StageStatusFailed, 0).
		WithDuration(elapsed).
		WithError(cause)
	if err := r.store.ProcessingLog().Append(ctx, entry); err != nil {
		r.logger.WithContext(ctx).Operation("record_inventory_failure").WithUUID("submission_id", s.ID).Build().Error(err).Log()
	}
	msg := cause.Error()
	if err := r.store.Submission().SetLastError(ctx, s.ID, &msg); err != nil {
		r.logger.WithContext(ctx).Operation("record_inventory_failure").WithUUID("submission_id", s.ID).Build().Error(err).Log()
	}
}

// MergeEdits overlays edits on data field by field; edits always win. Neither input is modified.
func MergeEdits(data map[string]any, edits map[string]any) map[string]any {
	merged := make(map[string]any, len(data)+len(edits))
	maps.Copy(merged, data)
	maps.Copy(merged, edits)
	return merged
}

// ValidateFeedback checks the feedback against the closed taxonomy.
func ValidateFeedback(f mappers.FeedbackForm) (model.FeedbackCategory, error) {
	category, err := model.ParseFeedbackCategory(strings.TrimSpace(f.Category))
	if err != nil {
		return "", NewErrMalformedFeedback("%s", err)
	}
	if sub := strings.TrimSpace(f.Subcategory); !category.ValidSubcategory(sub) {
		return "", NewErrMalformedFeedback("unknown subcategory %q for category %q", sub, category)
	}
	if category.FieldScoped() && len(cleanFields(f.Fields)) == 0 {
		return "", NewErrMalformedFeedback("category %q must reference at least one field", category)
	}
	return category, nil
}

func cleanFields(fields []string) []string {
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

func editedFields(edits map[string]any) []string {
	return slices.Sorted(maps.Keys(edits))
}

func validatorName(v string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return anonymousValidator
}
