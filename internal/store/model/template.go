package model

import (
	"encoding/json"
	"slices"
	"time"

	"gorm.io/datatypes"
)

type FieldType string

const (
	FieldTypeString  FieldType = "string"
	FieldTypeNumber  FieldType = "number"
	FieldTypeInteger FieldType = "integer"
	FieldTypeBoolean FieldType = "boolean"
)

func (f FieldType) Numeric() bool {
	return f == FieldTypeNumber || f == FieldTypeInteger
}

// FieldSpec describes one field the extraction is expected to produce.
type FieldSpec struct {
	Name       string    `json:"name"`
	Type       FieldType `json:"type"`
	Required   bool      `json:"required"`
	Validation string    `json:"validation,omitempty"`
}

// Template is the extraction configuration for a class of submissions.
type Template struct {
	ID             string                           `gorm:"primaryKey;column:id;type:VARCHAR(100);"`
	Name           string                           `gorm:"not null;type:VARCHAR(255)"`
	Instructions   string                           `gorm:"type:TEXT"`
	ContentTypes   datatypes.JSONSlice[ContentType] `gorm:"type:jsonb"`
	ExpectedFields datatypes.JSONSlice[FieldSpec]   `gorm:"type:jsonb"`
	Examples       datatypes.JSONSlice[string]      `gorm:"type:jsonb"`
	Version        int                              `gorm:"not null;default:1"`
	Active         bool                             `gorm:"not null"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type TemplateList []Template

func (t Template) String() string {
	val, _ := json.Marshal(t)
	return string(val)
}

func (t Template) Field(name string) (FieldSpec, bool) {
	i := slices.IndexFunc(t.ExpectedFields, func(f FieldSpec) bool { return f.Name == name })
	if i < 0 {
		return FieldSpec{}, false
	}
	return t.ExpectedFields[i], true
}

func (t Template) RequiredFields() []FieldSpec {
	out := []FieldSpec{}
	for _, f := range t.ExpectedFields {
		if f.Required {
			out = append(out, f)
		}
	}
	return out
}

func (t Template) Supports(ct ContentType) bool {
	return len(t.ContentTypes) == 0 || slices.Contains(t.ContentTypes, ct)
}

// TemplateConfig is the mutable part of a template, used for before/after audit values.
type TemplateConfig struct {
	Instructions   string      `json:"instructions"`
	ExpectedFields []FieldSpec `json:"expected_fields"`
	Examples       []string    `json:"examples"`
}

func (t Template) Config() TemplateConfig {
	return TemplateConfig{
		Instructions:   t.Instructions,
		ExpectedFields: slices.Clone([]FieldSpec(t.ExpectedFields)),
		Examples:       slices.Clone([]string(t.Examples)),
	}
}

func (t *Template) SetConfig(c TemplateConfig) {
	t.Instructions = c.Instructions
	t.ExpectedFields = datatypes.NewJSONSlice(c.ExpectedFields)
	t.Examples = datatypes.NewJSONSlice(c.Examples)
}

// TemplateRevision records one applied improvement with the configuration before and after.
type TemplateRevision struct {
	ID           uint                               `gorm:"primaryKey;autoIncrement"`
	TemplateID   string                             `gorm:"not null;index:template_revisions_template_id_idx;type:VARCHAR(100)"`
	FromVersion  int                                `gorm:"not null"`
	ToVersion    int                                `gorm:"not null"`
	ProposalType ProposalType                       `gorm:"not null;type:VARCHAR(50)"`
	Field        *string                            `gorm:"type:VARCHAR(255)"`
	Before       datatypes.JSONType[TemplateConfig] `gorm:"type:jsonb"`
	After        datatypes.JSONType[TemplateConfig] `gorm:"type:jsonb"`
	AppliedBy    string                             `gorm:"type:VARCHAR(255)"`
	CreatedAt    time.Time                          `gorm:"not null"`
}

type TemplateRevisionList []TemplateRevision

// AnalysisSnapshot stores the latest computed analysis of a template. It is a cache, not a source of truth.
type AnalysisSnapshot struct {
	TemplateID string         `gorm:"primaryKey;column:template_id;type:VARCHAR(100);"`
	Payload    datatypes.JSON `gorm:"type:jsonb;not null"`
	ComputedAt time.Time      `gorm:"not null"`
}
