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

type Supplier interface {
	Create(ctx context.Context, supplier model.Supplier) (*model.Supplier, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Supplier, error)
	GetByContactID(ctx context.Context, contactID string) (*model.Supplier, error)
	List(ctx context.Context, activeOnly bool) (model.SupplierList, error)
	UpdateMetrics(ctx context.Context, id uuid.UUID, metrics model.SupplierMetrics, computedAt time.Time) error
}

type SupplierStore struct {
	db *gorm.DB
}

// Make sure we conform to Supplier interface
var _ Supplier = (*SupplierStore)(nil)

func NewSupplierStore(db *gorm.DB) Supplier {
	return &SupplierStore{db: db}
}

func (s *SupplierStore) Create(ctx context.Context, supplier model.Supplier) (*model.Supplier, error) {
	if supplier.ID == uuid.Nil {
		supplier.ID = uuid.New()
	}
	if supplier.PreferredCategories == nil {
		supplier.PreferredCategories = datatypes.NewJSONSlice([]string{})
	}
	if err := getDB(ctx, s.db).Create(&supplier).Error; err != nil {
		return nil, translate(err)
	}
	return &supplier, nil
}

func (s *SupplierStore) Get(ctx context.Context, id uuid.UUID) (*model.Supplier, error) {
	var supplier model.Supplier
	if err := getDB(ctx, s.db).First(&supplier, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &supplier, nil
}

func (s *SupplierStore) GetByContactID(ctx context.Context, contactID string) (*model.Supplier, error) {
	var supplier model.Supplier
	if err := getDB(ctx, s.db).First(&supplier, "contact_id = ?", contactID).Error; err != nil {
		return nil, translate(err)
	}
	return &supplier, nil
}

func (s *SupplierStore) List(ctx context.Context, activeOnly bool) (model.SupplierList, error) {
	var suppliers model.SupplierList
	tx := getDB(ctx, s.db).Model(&suppliers)
	if activeOnly {
		tx = tx.Where("active = ?", true)
	}
	if err := tx.Order("created_at ASC").Find(&suppliers).Error; err != nil {
		return nil, errors.Wrap(err, "listing suppliers")
	}
	return suppliers, nil
}

func (s *SupplierStore) UpdateMetrics(ctx context.Context, id uuid.UUID, metrics model.SupplierMetrics, computedAt time.Time) error {
	result := getDB(ctx, s.db).Model(&model.Supplier{}).Where("id = ?", id).Updates(map[string]any{
		"metrics":             datatypes.NewJSONType(metrics),
		"metrics_computed_at": computedAt,
	})
	if result.Error != nil {
		return errors.Wrap(result.Error, "updating supplier metrics")
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}
