package store

import (
	"context"

	"github.com/pkg/errors"
	"github.com/supplier-intake/intake-pipeline/internal/store/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Template interface {
	Create(ctx context.Context, template model.Template) (*model.Template, error)
	Upsert(ctx context.Context, template model.Template) (*model.Template, error)
	Get(ctx context.Context, id string) (*model.Template, error)
	List(ctx context.Context, activeOnly bool) (model.TemplateList, error)
	Update(ctx context.Context, template model.Template, expectedVersion int) (*model.Template, error)
	CreateRevision(ctx context.Context, revision model.TemplateRevision) (*model.TemplateRevision, error)
	ListRevisions(ctx context.Context, templateID string) (model.TemplateRevisionList, error)
}

type TemplateStore struct {
	db *gorm.DB
}

// Make sure we conform to Template interface
var _ Template = (*TemplateStore)(nil)

func NewTemplateStore(db *gorm.DB) Template {
	return &TemplateStore{db: db}
}

func (t *TemplateStore) Create(ctx context.Context, template model.Template) (*model.Template, error) {
	if template.Version == 0 {
		template.Version = 1
	}
	if err := getDB(ctx, t.db).Create(&template).Error; err != nil {
		return nil, translate(err)
	}
	return &template, nil
}

// Upsert replaces the configuration of an existing template, keeping its version counter.
func (t *TemplateStore) Upsert(ctx context.Context, template model.Template) (*model.Template, error) {
	if template.Version == 0 {
		template.Version = 1
	}
	err := getDB(ctx, t.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "instructions", "content_types", "expected_fields", "examples", "active", "updated_at"}),
	}).Create(&template).Error
	if err != nil {
		return nil, translate(err)
	}
	return t.Get(ctx, template.ID)
}

func (t *TemplateStore) Get(ctx context.Context, id string) (*model.Template, error) {
	var template model.Template
	if err := getDB(ctx, t.db).First(&template, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &template, nil
}

func (t *TemplateStore) List(ctx context.Context, activeOnly bool) (model.TemplateList, error) {
	var templates model.TemplateList
	tx := getDB(ctx, t.db).Model(&templates)
	if activeOnly {
		tx = tx.Where("active = ?", true)
	}
	if err := tx.Order("id ASC").Find(&templates).Error; err != nil {
		return nil, errors.Wrap(err, "listing templates")
	}
	return templates, nil
}

// Update writes the template only when its stored version still equals expectedVersion.
func (t *TemplateStore) Update(ctx context.Context, template model.Template, expectedVersion int) (*model.Template, error) {
	result := getDB(ctx, t.db).Model(&model.Template{}).
		Where("id = ? AND version = ?", template.ID, expectedVersion).
		Updates(map[string]any{
			"instructions":    template.Instructions,
			"expected_fields": template.ExpectedFields,
			"examples":        template.Examples,
			"version":         template.Version,
		})
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, "updating template")
	}
	if result.RowsAffected == 0 {
		return nil, ErrNoRowsAffected
	}
	return t.Get(ctx, template.ID)
}

func (t *TemplateStore) CreateRevision(ctx context.Context, revision model.TemplateRevision) (*model.TemplateRevision, error) {
	if err := getDB(ctx, t.db).Create(&revision).Error; err != nil {
		return nil, errors.Wrap(err, "creating template revision")
	}
	return &revision, nil
}

func (t *TemplateStore) ListRevisions(ctx context.Context, templateID string) (model.TemplateRevisionList, error) {
	var revisions model.TemplateRevisionList
	err := getDB(ctx, t.db).Where("template_id = ?", templateID).Order("id ASC").Find(&revisions).Error
	if err != nil {
		return nil, errors.Wrap(err, "listing template revisions")
	}
	return revisions, nil
}
