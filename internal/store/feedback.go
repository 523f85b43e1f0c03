package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/supplier-intake/intake-pipeline/internal/store/model"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Feedback records are immutable once written.
type Feedback interface {
	Create(ctx context.Context, feedback model.Feedback) (*model.Feedback, error)
	GetBySubmissionID(ctx context.Context, submissionID uuid.UUID) (*model.Feedback, error)
	List(ctx context.Context, filter *FeedbackQueryFilter) (model.FeedbackList, error)
}

type FeedbackStore struct {
	db *gorm.DB
}

// Make sure we conform to Feedback interface
var _ Feedback = (*FeedbackStore)(nil)

func NewFeedbackStore(db *gorm.DB) Feedback {
	return &FeedbackStore{db: db}
}

func (f *FeedbackStore) Create(ctx context.Context, feedback model.Feedback) (*model.Feedback, error) {
	if feedback.ID == uuid.Nil {
		feedback.ID = uuid.New()
	}
	if feedback.Fields == nil {
		feedback.Fields = datatypes.NewJSONSlice([]string{})
	}
	if err := getDB(ctx, f.db).Create(&feedback).Error; err != nil {
		return nil, translate(err)
	}
	return &feedback, nil
}

func (f *FeedbackStore) GetBySubmissionID(ctx context.Context, submissionID uuid.UUID) (*model.Feedback, error) {
	var feedback model.Feedback
	if err := getDB(ctx, f.db).First(&feedback, "submission_id = ?", submissionID).Error; err != nil {
		return nil, translate(err)
	}
	return &feedback, nil
}

func (f *FeedbackStore) List(ctx context.Context, filter *FeedbackQueryFilter) (model.FeedbackList, error) {
	var feedback model.FeedbackList
	tx := getDB(ctx, f.db).Model(&feedback)
	if filter != nil {
		tx = BaseQuerier(*filter).apply(tx)
	}
	if err := tx.Order("created_at ASC").Find(&feedback).Error; err != nil {
		return nil, errors.Wrap(err, "listing feedback")
	}
	return feedback, nil
}
