package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Submission struct {
	ID                   uuid.UUID        `gorm:"primaryKey;column:id;type:VARCHAR(255);"`
	ExternalMessageID    string           `gorm:"not null;uniqueIndex:submissions_external_message_id_idx;type:VARCHAR(255)"`
	SourceMessageID      string           `gorm:"not null;index:submissions_source_message_id_idx;type:VARCHAR(255)"`
	GroupID              uuid.UUID        `gorm:"not null;index:submissions_group_id_idx;type:VARCHAR(255)"`
	ItemIndex            int              `gorm:"not null;default:0"`
	SupplierID           uuid.UUID        `gorm:"not null;index:submissions_supplier_id_idx;type:VARCHAR(255)"`
	TemplateID           string           `gorm:"not null;index:submissions_template_id_idx;type:VARCHAR(100)"`
	ContentType          ContentType      `gorm:"not null;type:VARCHAR(20)"`
	RawContent           string           `gorm:"type:TEXT"`
	MediaLocator         *string          `gorm:"type:TEXT"`
	ProcessingStatus     ProcessingStatus `gorm:"not null;type:VARCHAR(20);default:pending;index:submissions_processing_status_idx"`
	Attempts             int              `gorm:"not null;default:0"`
	NextAttemptAt        *time.Time
	ProcessingStartedAt  *time.Time
	LastError            *string                     `gorm:"type:TEXT"`
	ExtractedData        datatypes.JSONMap           `gorm:"type:jsonb"`
	ExtractionConfidence *float64                    `gorm:"column:extraction_confidence"`
	FieldErrors          datatypes.JSONSlice[string] `gorm:"type:jsonb"`
	Category             *string                     `gorm:"type:VARCHAR(100);index:submissions_category_idx"`
	ValidationStatus     ValidationStatus            `gorm:"not null;type:VARCHAR(20);default:pending;index:submissions_validation_status_idx"`
	ValidatedBy          *string                     `gorm:"type:VARCHAR(255)"`
	ValidationNotes      *string                     `gorm:"type:TEXT"`
	ValidatedAt          *time.Time
	ProductReference     *string   `gorm:"type:VARCHAR(255)"`
	CreatedAt            time.Time `gorm:"not null;index:submissions_created_at_idx"`
	UpdatedAt            time.Time
}

type SubmissionList []Submission

func (s Submission) String() string {
	val, _ := json.Marshal(s)
	return string(val)
}

// Decided reports whether a terminal review decision was persisted.
func (s Submission) Decided() bool {
	return s.ValidationStatus.Terminal()
}

// AwaitingReview reports whether the submission belongs in the validation queue.
func (s Submission) AwaitingReview() bool {
	return s.ProcessingStatus == ProcessingStatusCompleted && s.ValidationStatus == ValidationStatusPending
}

// Sibling is a lightweight reference to another product of the same source message.
type Sibling struct {
	ID               uuid.UUID        `json:"id"`
	ItemIndex        int              `json:"item_index"`
	ProcessingStatus ProcessingStatus `json:"processing_status"`
	ValidationStatus ValidationStatus `json:"validation_status"`
}

func (s Submission) AsSibling() Sibling {
	return Sibling{
		ID:               s.ID,
		ItemIndex:        s.ItemIndex,
		ProcessingStatus: s.ProcessingStatus,
		ValidationStatus: s.ValidationStatus,
	}
}

// DecisionCount aggregates review outcomes, used for supplier history and template statistics.
type DecisionCount struct {
	Total    int `json:"total"`
	Approved int `json:"approved"`
	Rejected int `json:"rejected"`
	Failed   int `json:"failed"`
}

func (d DecisionCount) Decided() int {
	return d.Approved + d.Rejected
}

// DefectRate is rejected/decided, or 0 without decisions.
func (d DecisionCount) DefectRate() float64 {
	if d.Decided() == 0 {
		return 0
	}
	return float64(d.Rejected) / float64(d.Decided())
}
