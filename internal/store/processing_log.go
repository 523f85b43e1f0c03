package store

import (
	"context"

	"github.com/pkg/errors"
	"github.com/supplier-intake/intake-pipeline/internal/store/model"
	"gorm.io/gorm"
)

// ProcessingLog is append-only: entries are never updated or deleted.
type ProcessingLog interface {
	Append(ctx context.Context, entries ...model.ProcessingLogEntry) error
	List(ctx context.Context, filter *LogQueryFilter) (model.ProcessingLog, error)
	Count(ctx context.Context, filter *LogQueryFilter) (int64, error)
}

type ProcessingLogStore struct {
	db *gorm.DB
}

// Make sure we conform to ProcessingLog interface
var _ ProcessingLog = (*ProcessingLogStore)(nil)

func NewProcessingLogStore(db *gorm.DB) ProcessingLog {
	return &ProcessingLogStore{db: db}
}

func (p *ProcessingLogStore) Append(ctx context.Context, entries ...model.ProcessingLogEntry) error {
	if len(entries) == 0 {
		return nil
	}
	if err := getDB(ctx, p.db).Create(&entries).Error; err != nil {
		return errors.Wrap(err, "appending processing log entries")
	}
	return nil
}

func (p *ProcessingLogStore) List(ctx context.Context, filter *LogQueryFilter) (model.ProcessingLog, error) {
	var entries model.ProcessingLog
	tx := getDB(ctx, p.db).Model(&model.ProcessingLogEntry{}).Select("processing_log_entries.*")
	if filter != nil {
		tx = BaseQuerier(*filter).apply(tx)
	}
	if err := tx.Order("processing_log_entries.created_at ASC").Order("processing_log_entries.id ASC").Find(&entries).Error; err != nil {
		return nil, errors.Wrap(err, "listing processing log entries")
	}
	return entries, nil
}

func (p *ProcessingLogStore) Count(ctx context.Context, filter *LogQueryFilter) (int64, error) {
	var count int64
	tx := getDB(ctx, p.db).Model(&model.ProcessingLogEntry{})
	if filter != nil {
		tx = BaseQuerier(*filter).apply(tx)
	}
	if err := tx.Count(&count).Error; err != nil {
		return 0, errors.Wrap(err, "counting processing log entries")
	}
	return count, nil
}
