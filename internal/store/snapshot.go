package store

import (
	"context"

	"github.com/pkg/errors"
	"github.com/supplier-intake/intake-pipeline/internal/store/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Snapshot keeps the latest computed analysis per template.
type Snapshot interface {
	Put(ctx context.Context, snapshot model.AnalysisSnapshot) error
	Get(ctx context.Context, templateID string) (*model.AnalysisSnapshot, error)
}

type SnapshotStore struct {
	db *gorm.DB
}

// Make sure we conform to Snapshot interface
var _ Snapshot = (*SnapshotStore)(nil)

func NewSnapshotStore(db *gorm.DB) Snapshot {
	return &SnapshotStore{db: db}
}

func (s *SnapshotStore) Put(ctx context.Context, snapshot model.AnalysisSnapshot) error {
	err := getDB(ctx, s.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "template_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"payload", "computed_at"}),
	}).Create(&snapshot).Error
	if err != nil {
		return errors.Wrap(err, "storing analysis snapshot")
	}
	return nil
}

func (s *SnapshotStore) Get(ctx context.Context, templateID string) (*model.AnalysisSnapshot, error) {
	var snapshot model.AnalysisSnapshot
	if err := getDB(ctx, s.db).First(&snapshot, "template_id = ?", templateID).Error; err != nil {
		return nil, translate(err)
	}
	return &snapshot, nil
}
