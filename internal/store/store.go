package store

import (
	"context"

	"github.com/supplier-intake/intake-pipeline/internal/store/model"
	"gorm.io/gorm"
)

type Store interface {
	NewTransactionContext(ctx context.Context) (context.Context, error)
	Submission() Submission
	ProcessingLog() ProcessingLog
	Supplier() Supplier
	Feedback() Feedback
	Template() Template
	Snapshot() Snapshot
	InitialMigration(ctx context.Context) error
	Close() error
}

type DataStore struct {
	db            *gorm.DB
	submission    Submission
	processingLog ProcessingLog
	supplier      Supplier
	feedback      Feedback
	template      Template
	snapshot      Snapshot
}

type StoreOption func(*DataStore)

// WithSnapshotStore replaces the table backed snapshot store, e.g. with the redis cache.
func WithSnapshotStore(s Snapshot) StoreOption {
	return func(d *DataStore) {
		d.snapshot = s
	}
}

func NewStore(db *gorm.DB, opts ...StoreOption) Store {
	s := &DataStore{
		db:            db,
		submission:    NewSubmissionStore(db),
		processingLog: NewProcessingLogStore(db),
		supplier:      NewSupplierStore(db),
		feedback:      NewFeedbackStore(db),
		template:      NewTemplateStore(db),
		snapshot:      NewSnapshotStore(db),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *DataStore) NewTransactionContext(ctx context.Context) (context.Context, error) {
	return newTransactionContext(ctx, s.db)
}

func (s *DataStore) Submission() Submission {
	return s.submission
}

func (s *DataStore) ProcessingLog() ProcessingLog {
	return s.processingLog
}

func (s *DataStore) Supplier() Supplier {
	return s.supplier
}

func (s *DataStore) Feedback() Feedback {
	return s.feedback
}

func (s *DataStore) Template() Template {
	return s.template
}

func (s *DataStore) Snapshot() Snapshot {
	return s.snapshot
}

// InitialMigration creates the schema from the models. Postgres deployments use the goose migrations instead.
func (s *DataStore) InitialMigration(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(
		&model.Submission{},
		&model.ProcessingLogEntry{},
		&model.Supplier{},
		&model.Feedback{},
		&model.Template{},
		&model.TemplateRevision{},
		&model.AnalysisSnapshot{},
	)
}

func (s *DataStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
