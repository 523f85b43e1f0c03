package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Feedback is the structured reason attached to a rejection. It is written once and never updated.
type Feedback struct {
	ID           uuid.UUID                   `gorm:"primaryKey;column:id;type:VARCHAR(255);"`
	SubmissionID uuid.UUID                   `gorm:"not null;uniqueIndex:feedback_submission_id_idx;type:VARCHAR(255)"`
	TemplateID   string                      `gorm:"not null;index:feedback_template_id_idx;type:VARCHAR(100)"`
	Category     FeedbackCategory            `gorm:"not null;type:VARCHAR(50)"`
	Subcategory  string                      `gorm:"type:VARCHAR(50)"`
	Note         string                      `gorm:"type:TEXT"`
	Fields       datatypes.JSONSlice[string] `gorm:"type:jsonb"`
	CreatedAt    time.Time                   `gorm:"not null;index:feedback_created_at_idx"`
}

func (Feedback) TableName() string { return "feedback" }

type FeedbackList []Feedback

func (f Feedback) String() string {
	val, _ := json.Marshal(f)
	return string(val)
}
