package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/supplier-intake/intake-pipeline/internal/store/model"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Submission interface {
	Create(ctx context.Context, submissions []model.Submission) (model.SubmissionList, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Submission, error)
	GetByExternalMessageID(ctx context.Context, externalMessageID string) (*model.Submission, error)
	List(ctx context.Context, filter *SubmissionQueryFilter, opts *SubmissionQueryOptions) (model.SubmissionList, error)
	Count(ctx context.Context, filter *SubmissionQueryFilter) (int64, error)
	Claim(ctx context.Context, id uuid.UUID, maxAttempts int, now time.Time) (*model.Submission, error)
	CompleteExtraction(ctx context.Context, id uuid.UUID, result ExtractionUpdate) error
	FailExtraction(ctx context.Context, id uuid.UUID, message string, nextAttemptAt *time.Time) error
	RestoreClaim(ctx context.Context, id uuid.UUID, status model.ProcessingStatus, attempts int) error
	Release(ctx context.Context, id uuid.UUID, resetAttempts bool) error
	ReleaseDue(ctx context.Context, now time.Time, maxAttempts int) (int64, error)
	Decide(ctx context.Context, id uuid.UUID, decision Decision) error
	SetProductReference(ctx context.Context, id uuid.UUID, ref string) error
	SetLastError(ctx context.Context, id uuid.UUID, message *string) error
	DecisionCounts(ctx context.Context, filter *SubmissionQueryFilter) (model.DecisionCount, error)
	DecisionCountsBySupplier(ctx context.Context, supplierIDs []uuid.UUID) (map[uuid.UUID]model.DecisionCount, error)
	AverageConfidenceBySupplier(ctx context.Context, supplierIDs []uuid.UUID) (map[uuid.UUID]float64, error)
}

// ExtractionUpdate carries the normalized output of a successful extraction attempt.
type ExtractionUpdate struct {
	Data        map[string]any
	Confidence  *float64
	FieldErrors []string
	Category    *string
}

type Decision struct {
	Status      model.ValidationStatus
	ValidatedBy string
	Notes       *string
	At          time.Time
}

type SubmissionStore struct {
	db *gorm.DB
}

// Make sure we conform to Submission interface
var _ Submission = (*SubmissionStore)(nil)

func NewSubmissionStore(db *gorm.DB) Submission {
	return &SubmissionStore{db: db}
}

func (s *SubmissionStore) Create(ctx context.Context, submissions []model.Submission) (model.SubmissionList, error) {
	if len(submissions) == 0 {
		return model.SubmissionList{}, nil
	}
	if err := getDB(ctx, s.db).Create(&submissions).Error; err != nil {
		return nil, translate(err)
	}
	return submissions, nil
}

func (s *SubmissionStore) Get(ctx context.Context, id uuid.UUID) (*model.Submission, error) {
	var submission model.Submission
	if err := getDB(ctx, s.db).First(&submission, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &submission, nil
}

func (s *SubmissionStore) GetByExternalMessageID(ctx context.Context, externalMessageID string) (*model.Submission, error) {
	var submission model.Submission
	if err := getDB(ctx, s.db).First(&submission, "external_message_id = ?", externalMessageID).Error; err != nil {
		return nil, translate(err)
	}
	return &submission, nil
}

func (s *SubmissionStore) List(ctx context.Context, filter *SubmissionQueryFilter, opts *SubmissionQueryOptions) (model.SubmissionList, error) {
	var submissions model.SubmissionList
	tx := getDB(ctx, s.db).Model(&submissions)
	if filter != nil {
		tx = BaseQuerier(*filter).apply(tx)
	}
	if opts != nil {
		tx = BaseQuerier(*opts).apply(tx)
	}
	if err := tx.Find(&submissions).Error; err != nil {
		return nil, errors.Wrap(err, "listing submissions")
	}
	return submissions, nil
}

func (s *SubmissionStore) Count(ctx context.Context, filter *SubmissionQueryFilter) (int64, error) {
	var count int64
	tx := getDB(ctx, s.db).Model(&model.Submission{})
	if filter != nil {
		tx = BaseQuerier(*filter).apply(tx)
	}
	if err := tx.Count(&count).Error; err != nil {
		return 0, errors.Wrap(err, "counting submissions")
	}
	return count, nil
}

// Claim moves a pending, or failed and still retryable, submission to processing.
// Only one caller can win the conditional update; the others get ErrNoRowsAffected.
func (s *SubmissionStore) Claim(ctx context.Context, id uuid.UUID, maxAttempts int, now time.Time) (*model.Submission, error) {
	result := getDB(ctx, s.db).Model(&model.Submission{}).
		Where("id = ? AND (processing_status = ? OR (processing_status = ? AND attempts < ?))",
			id, model.ProcessingStatusPending, model.ProcessingStatusFailed, maxAttempts).
		Updates(map[string]any{
			"processing_status":     model.ProcessingStatusProcessing,
			"attempts":              gorm.Expr("attempts + 1"),
			"processing_started_at": now,
			"updated_at":            now,
		})
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, "claiming submission")
	}
	if result.RowsAffected == 0 {
		return nil, ErrNoRowsAffected
	}
	return s.Get(ctx, id)
}

func (s *SubmissionStore) CompleteExtraction(ctx context.Context, id uuid.UUID, result ExtractionUpdate) error {
	fieldErrors := result.FieldErrors
	if fieldErrors == nil {
		fieldErrors = []string{}
	}
	return s.guardedUpdate(ctx, "id = ? AND processing_status = ?", []any{id, model.ProcessingStatusProcessing}, map[string]any{
		"processing_status":     model.ProcessingStatusCompleted,
		"extracted_data":        datatypes.JSONMap(result.Data),
		"extraction_confidence": result.Confidence,
		"field_errors":          datatypes.NewJSONSlice(fieldErrors),
		"category":              result.Category,
		"last_error":            nil,
		"next_attempt_at":       nil,
		"processing_started_at": nil,
	})
}

func (s *SubmissionStore) FailExtraction(ctx context.Context, id uuid.UUID, message string, nextAttemptAt *time.Time) error {
	return s.guardedUpdate(ctx, "id = ? AND processing_status = ?", []any{id, model.ProcessingStatusProcessing}, map[string]any{
		"processing_status":     model.ProcessingStatusFailed,
		"last_error":            message,
		"next_attempt_at":       nextAttemptAt,
		"processing_started_at": nil,
	})
}

// RestoreClaim undoes a claim whose attempt was cancelled by the caller.
func (s *SubmissionStore) RestoreClaim(ctx context.Context, id uuid.UUID, status model.ProcessingStatus, attempts int) error {
	return s.guardedUpdate(ctx, "id = ? AND processing_status = ?", []any{id, model.ProcessingStatusProcessing}, map[string]any{
		"processing_status":     status,
		"attempts":              attempts,
		"processing_started_at": nil,
	})
}

func (s *SubmissionStore) Release(ctx context.Context, id uuid.UUID, resetAttempts bool) error {
	updates := map[string]any{
		"processing_status": model.ProcessingStatusPending,
		"next_attempt_at":   nil,
	}
	if resetAttempts {
		updates["attempts"] = 0
	}
	return s.guardedUpdate(ctx, "id = ? AND processing_status = ?", []any{id, model.ProcessingStatusFailed}, updates)
}

func (s *SubmissionStore) ReleaseDue(ctx context.Context, now time.Time, maxAttempts int) (int64, error) {
	result := getDB(ctx, s.db).Model(&model.Submission{}).
		Where("processing_status = ? AND attempts < ? AND (next_attempt_at IS NULL OR next_attempt_at <= ?)",
			model.ProcessingStatusFailed, maxAttempts, now).
		Updates(map[string]any{
			"processing_status": model.ProcessingStatusPending,
			"next_attempt_at":   nil,
			"updated_at":        now,
		})
	if result.Error != nil {
		return 0, errors.Wrap(result.Error, "releasing due retries")
	}
	return result.RowsAffected, nil
}

// Decide persists a terminal review decision. It only matches completed submissions still pending review,
// so a second decision never overwrites the first.
func (s *SubmissionStore) Decide(ctx context.Context, id uuid.UUID, decision Decision) error {
	return s.guardedUpdate(ctx, "id = ? AND validation_status = ? AND processing_status = ?",
		[]any{id, model.ValidationStatusPending, model.ProcessingStatusCompleted},
		map[string]any{
			"validation_status": decision.Status,
			"validated_by":      decision.ValidatedBy,
			"validation_notes":  decision.Notes,
			"validated_at":      decision.At,
			"last_error":        nil,
		})
}

func (s *SubmissionStore) SetProductReference(ctx context.Context, id uuid.UUID, ref string) error {
	return s.guardedUpdate(ctx, "id = ?", []any{id}, map[string]any{"product_reference": ref})
}

func (s *SubmissionStore) SetLastError(ctx context.Context, id uuid.UUID, message *string) error {
	return s.guardedUpdate(ctx, "id = ?", []any{id}, map[string]any{"last_error": message})
}

type decisionRow struct {
	SupplierID       uuid.UUID
	ProcessingStatus model.ProcessingStatus
	ValidationStatus model.ValidationStatus
	Count            int
}

func (s *SubmissionStore) DecisionCounts(ctx context.Context, filter *SubmissionQueryFilter) (model.DecisionCount, error) {
	var rows []decisionRow
	tx := getDB(ctx, s.db).Model(&model.Submission{}).
		Select("processing_status, validation_status, COUNT(*) AS count")
	if filter != nil {
		tx = BaseQuerier(*filter).apply(tx)
	}
	if err := tx.Group("processing_status, validation_status").Scan(&rows).Error; err != nil {
		return model.DecisionCount{}, errors.Wrap(err, "counting decisions")
	}
	var count model.DecisionCount
	for _, r := range rows {
		accumulate(&count, r)
	}
	return count, nil
}

func (s *SubmissionStore) DecisionCountsBySupplier(ctx context.Context, supplierIDs []uuid.UUID) (map[uuid.UUID]model.DecisionCount, error) {
	out := make(map[uuid.UUID]model.DecisionCount, len(supplierIDs))
	if len(supplierIDs) == 0 {
		return out, nil
	}
	var rows []decisionRow
	err := getDB(ctx, s.db).Model(&model.Submission{}).
		Select("supplier_id, processing_status, validation_status, COUNT(*) AS count").
		Where("supplier_id IN ?", supplierIDs).
		Group("supplier_id, processing_status, validation_status").
		Scan(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "counting supplier decisions")
	}
	for _, r := range rows {
		count := out[r.SupplierID]
		accumulate(&count, r)
		out[r.SupplierID] = count
	}
	return out, nil
}

func (s *SubmissionStore) AverageConfidenceBySupplier(ctx context.Context, supplierIDs []uuid.UUID) (map[uuid.UUID]float64, error) {
	out := make(map[uuid.UUID]float64, len(supplierIDs))
	if len(supplierIDs) == 0 {
		return out, nil
	}
	var rows []struct {
		SupplierID uuid.UUID
		Average    float64
	}
	err := getDB(ctx, s.db).Model(&model.Submission{}).
		Select("supplier_id, AVG(extraction_confidence) AS average").
		Where("supplier_id IN ? AND extraction_confidence IS NOT NULL", supplierIDs).
		Group("supplier_id").
		Scan(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "averaging supplier confidence")
	}
	for _, r := range rows {
		out[r.SupplierID] = r.Average
	}
	return out, nil
}

func accumulate(count *model.DecisionCount, r decisionRow) {
	count.Total += r.Count
	switch r.ValidationStatus {
	case model.ValidationStatusApproved:
		count.Approved += r.Count
	case model.ValidationStatusRejected:
		count.Rejected += r.Count
	}
	if r.ProcessingStatus == model.ProcessingStatusFailed {
		count.Failed += r.Count
	}
}

func (s *SubmissionStore) guardedUpdate(ctx context.Context, where string, args []any, updates map[string]any) error {
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	result := getDB(ctx, s.db).Model(&model.Submission{}).Where(where, args...).Updates(updates)
	if result.Error != nil {
		return errors.Wrap(result.Error, "updating submission")
	}
	if result.RowsAffected == 0 {
		return ErrNoRowsAffected
	}
	return nil
}
