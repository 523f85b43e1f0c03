package mappers

import (
	"strings"

	"github.com/google/uuid"
	"github.com/supplier-intake/intake-pipeline/internal/store/model"
	"gorm.io/datatypes"
)

// IngestItem is one product of a multi-product message.
type IngestItem struct {
	ContentType  string
	RawContent   string
	MediaLocator *string
}

// IngestForm is what the message-ingestion boundary delivers. SupplierRef is either the supplier id
// or its contact identifier. Items is empty for single-product messages.
type IngestForm struct {
	ExternalMessageID string
	SupplierRef       string
	TemplateID        string
	ContentType       string
	RawContent        string
	MediaLocator      *string
	Items             []IngestItem
}

// ItemsOrSelf returns the products carried by the form.
func (f IngestForm) ItemsOrSelf() []IngestItem {
	if len(f.Items) > 0 {
		items := make([]IngestItem, len(f.Items))
		for i, it := range f.Items {
			if it.ContentType == "" {
				it.ContentType = f.ContentType
			}
			items[i] = it
		}
		return items
	}
	return []IngestItem{{ContentType: f.ContentType, RawContent: f.RawContent, MediaLocator: f.MediaLocator}}
}

type ApproveForm struct {
	Edits     map[string]any
	Notes     *string
	Validator string
}

type FeedbackForm struct {
	Category    string
	Subcategory string
	Note        string
	Fields      []string
}

type RejectForm struct {
	Feedback  FeedbackForm
	Notes     *string
	Validator string
}

type SupplierForm struct {
	ContactID           string
	Name                string
	Active              *bool
	PreferredCategories []string
}

func (f SupplierForm) ToSupplier() model.Supplier {
	active := true
	if f.Active != nil {
		active = *f.Active
	}
	categories := make([]string, 0, len(f.PreferredCategories))
	for _, c := range f.PreferredCategories {
		if c = strings.ToLower(strings.TrimSpace(c)); c != "" {
			categories = append(categories, c)
		}
	}
	return model.Supplier{
		ID:                  uuid.New(),
		ContactID:           strings.TrimSpace(f.ContactID),
		Name:                strings.TrimSpace(f.Name),
		Active:              active,
		PreferredCategories: datatypes.NewJSONSlice(categories),
	}
}

// TemplateForm is the file representation of a template, loaded from YAML.
type TemplateForm struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	Instructions   string            `json:"instructions"`
	ContentTypes   []string          `json:"contentTypes"`
	ExpectedFields []model.FieldSpec `json:"expectedFields"`
	Examples       []string          `json:"examples"`
	Active         *bool             `json:"active,omitempty"`
}

func (f TemplateForm) ToTemplate(contentTypes []model.ContentType) model.Template {
	active := true
	if f.Active != nil {
		active = *f.Active
	}
	fields := f.ExpectedFields
	if fields == nil {
		fields = []model.FieldSpec{}
	}
	examples := f.Examples
	if examples == nil {
		examples = []string{}
	}
	return model.Template{
		ID:             f.ID,
		Name:           f.Name,
		Instructions:   f.Instructions,
		ContentTypes:   datatypes.NewJSONSlice(contentTypes),
		ExpectedFields: datatypes.NewJSONSlice(fields),
		Examples:       datatypes.NewJSONSlice(examples),
		Active:         active,
	}
}
