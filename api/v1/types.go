// Package v1 holds the JSON documents of the operator API.
package v1

import (
	"time"

	"github.com/google/uuid"
)

type Error struct {
	Message   string `json:"message"`
	RequestID string `json:"requestId,omitempty"`
}

type IngestItem struct {
	ContentType  string  `json:"contentType,omitempty" validate:"omitempty,content_type"`
	RawContent   string  `json:"rawContent,omitempty" validate:"max=65536"`
	MediaLocator *string `json:"mediaLocator,omitempty" validate:"omitempty,media_locator"`
}

// IngestRequest is what the messaging boundary posts for every inbound message.
type IngestRequest struct {
	ExternalMessageID string       `json:"externalMessageId" validate:"required,external_id"`
	SupplierRef       string       `json:"supplierId" validate:"required,max=255"`
	TemplateID        string       `json:"templateId,omitempty" validate:"omitempty,max=100"`
	ContentType       string       `json:"contentType,omitempty" validate:"required_without=Items,omitempty,content_type"`
	RawContent        string       `json:"rawContent,omitempty" validate:"max=65536"`
	MediaLocator      *string      `json:"mediaLocator,omitempty" validate:"omitempty,media_locator"`
	Items             []IngestItem `json:"items,omitempty" validate:"omitempty,max=50,dive"`
}

type IngestResponse struct {
	GroupID     uuid.UUID    `json:"groupId"`
	Duplicate   bool         `json:"duplicate"`
	Submissions []Submission `json:"submissions"`
}

type Submission struct {
	ID                   uuid.UUID      `json:"id"`
	ExternalMessageID    string         `json:"externalMessageId"`
	SourceMessageID      string         `json:"sourceMessageId"`
	GroupID              uuid.UUID      `json:"groupId"`
	ItemIndex            int            `json:"itemIndex"`
	SupplierID           uuid.UUID      `json:"supplierId"`
	TemplateID           string         `json:"templateId"`
	ContentType          string         `json:"contentType"`
	RawContent           string         `json:"rawContent"`
	MediaLocator         *string        `json:"mediaLocator,omitempty"`
	ProcessingStatus     string         `json:"processingStatus"`
	Attempts             int            `json:"attempts"`
	NextAttemptAt        *time.Time     `json:"nextAttemptAt,omitempty"`
	LastError            *string        `json:"lastError,omitempty"`
	ExtractedData        map[string]any `json:"extractedData"`
	ExtractionConfidence *float64       `json:"extractionConfidence,omitempty"`
	FieldErrors          []string       `json:"fieldErrors"`
	Category             *string        `json:"category,omitempty"`
	ValidationStatus     string         `json:"validationStatus"`
	ValidatedBy          *string        `json:"validatedBy,omitempty"`
	ValidationNotes      *string        `json:"validationNotes,omitempty"`
	ValidatedAt          *time.Time     `json:"validatedAt,omitempty"`
	ProductReference     *string        `json:"productReference,omitempty"`
	CreatedAt            time.Time      `json:"createdAt"`
	UpdatedAt            time.Time      `json:"updatedAt"`
}

type Sibling struct {
	ID               uuid.UUID `json:"id"`
	ItemIndex        int       `json:"itemIndex"`
	ProcessingStatus string    `json:"processingStatus"`
	ValidationStatus string    `json:"validationStatus"`
}

type ConfidenceBreakdown struct {
	Score              float64  `json:"score"`
	Base               float64  `json:"base"`
	MissingFields      []string `json:"missingFields"`
	MalformedFields    []string `json:"malformedFields"`
	UnresolvedCategory bool     `json:"unresolvedCategory"`
	FieldErrorCount    int      `json:"fieldErrorCount"`
}

type QueueItem struct {
	Submission       Submission          `json:"submission"`
	Confidence       float64             `json:"confidence"`
	Breakdown        ConfidenceBreakdown `json:"breakdown"`
	Priority         string              `json:"priority"`
	AgeSeconds       int64               `json:"ageSeconds"`
	SuggestedActions []string            `json:"suggestedActions"`
	Siblings         []Sibling           `json:"siblings"`
}

type QueuePage struct {
	Items     []QueueItem `json:"items"`
	Total     int         `json:"total"`
	Page      int         `json:"page"`
	Limit     int         `json:"limit"`
	Truncated bool        `json:"truncated"`
}

type ProcessingLogEntry struct {
	ID           uint           `json:"id"`
	SubmissionID uuid.UUID      `json:"submissionId"`
	Stage        string         `json:"stage"`
	Status       string         `json:"status"`
	Attempt      int            `json:"attempt"`
	DurationMs   int64          `json:"durationMs"`
	ErrorMessage *string        `json:"errorMessage,omitempty"`
	Metadata     map[string]any `json:"metadata"`
	CreatedAt    time.Time      `json:"createdAt"`
}

type SubmissionDetail struct {
	Submission Submission           `json:"submission"`
	Breakdown  *ConfidenceBreakdown `json:"breakdown,omitempty"`
	Priority   *string              `json:"priority,omitempty"`
	Siblings   []Sibling            `json:"siblings"`
	Feedback   *FeedbackRecord      `json:"feedback,omitempty"`
	Log        []ProcessingLogEntry `json:"log"`
}

type ApproveRequest struct {
	Edits     map[string]any `json:"edits,omitempty"`
	Notes     *string        `json:"notes,omitempty" validate:"omitempty,max=2000"`
	Validator string         `json:"validator,omitempty" validate:"max=255"`
}

type ApproveResponse struct {
	Submission       Submission     `json:"submission"`
	ProductReference string         `json:"productReference"`
	CommittedData    map[string]any `json:"committedData"`
}

type Feedback struct {
	Category    string   `json:"category" validate:"required,feedback_category"`
	Subcategory string   `json:"subcategory,omitempty" validate:"max=50"`
	Note        string   `json:"note,omitempty" validate:"max=2000"`
	Fields      []string `json:"fields,omitempty" validate:"omitempty,max=50,dive,required,max=255"`
}

type RejectRequest struct {
	Feedback  Feedback `json:"feedback" validate:"required"`
	Notes     *string  `json:"notes,omitempty" validate:"omitempty,max=2000"`
	Validator string   `json:"validator,omitempty" validate:"max=255"`
}

type FeedbackRecord struct {
	ID           uuid.UUID `json:"id"`
	SubmissionID uuid.UUID `json:"submissionId"`
	TemplateID   string    `json:"templateId"`
	Category     string    `json:"category"`
	Subcategory  string    `json:"subcategory,omitempty"`
	Note         string    `json:"note,omitempty"`
	Fields       []string  `json:"fields"`
	CreatedAt    time.Time `json:"createdAt"`
}

type SupplierCreate struct {
	ContactID           string   `json:"contactId" validate:"required,contact_id"`
	Name                string   `json:"name,omitempty" validate:"max=255"`
	Active              *bool    `json:"active,omitempty"`
	PreferredCategories []string `json:"preferredCategories,omitempty" validate:"omitempty,max=20,dive,required,max=100"`
}

type SupplierMetrics struct {
	Submissions       int        `json:"submissions"`
	Approved          int        `json:"approved"`
	Rejected          int        `json:"rejected"`
	Failed            int        `json:"failed"`
	ApprovalRate      float64    `json:"approvalRate"`
	AverageConfidence float64    `json:"averageConfidence"`
	ComputedAt        *time.Time `json:"computedAt,omitempty"`
}

type Supplier struct {
	ID                  uuid.UUID       `json:"id"`
	ContactID           string          `json:"contactId"`
	Name                string          `json:"name"`
	Active              bool            `json:"active"`
	PreferredCategories []string        `json:"preferredCategories"`
	Metrics             SupplierMetrics `json:"metrics"`
	CreatedAt           time.Time       `json:"createdAt"`
}

type FieldSpec struct {
	Name       string `json:"name" validate:"required,max=255"`
	Type       string `json:"type,omitempty" validate:"omitempty,oneof=string number integer boolean"`
	Required   bool   `json:"required"`
	Validation string `json:"validation,omitempty"`
}

type Template struct {
	ID             string      `json:"id"`
	Name           string      `json:"name"`
	Instructions   string      `json:"instructions"`
	ContentTypes   []string    `json:"contentTypes"`
	ExpectedFields []FieldSpec `json:"expectedFields"`
	Examples       []string    `json:"examples"`
	Version        int         `json:"version"`
	Active         bool        `json:"active"`
	UpdatedAt      time.Time   `json:"updatedAt"`
}

type TemplateConfig struct {
	Instructions   string      `json:"instructions"`
	ExpectedFields []FieldSpec `json:"expectedFields"`
	Examples       []string    `json:"examples"`
}

type TemplateRevision struct {
	ID           uint           `json:"id"`
	TemplateID   string         `json:"templateId"`
	FromVersion  int            `json:"fromVersion"`
	ToVersion    int            `json:"toVersion"`
	ProposalType string         `json:"proposalType"`
	Field        *string        `json:"field,omitempty"`
	Before       TemplateConfig `json:"before"`
	After        TemplateConfig `json:"after"`
	AppliedBy    string         `json:"appliedBy"`
	CreatedAt    time.Time      `json:"createdAt"`
}

type SuggestedChange struct {
	Field       *FieldSpec `json:"field,omitempty" validate:"omitempty"`
	RemoveField string     `json:"removeField,omitempty" validate:"max=255"`
	Instruction string     `json:"instruction,omitempty" validate:"max=4000"`
	Example     string     `json:"example,omitempty" validate:"max=4000"`
}

type SupportingData struct {
	ErrorCount   int      `json:"errorCount"`
	ErrorRate    float64  `json:"errorRate"`
	SampleErrors []string `json:"sampleErrors"`
}

type Proposal struct {
	ID              string          `json:"id,omitempty"`
	Type            string          `json:"type" validate:"required,proposal_type"`
	Priority        string          `json:"priority,omitempty" validate:"omitempty,oneof=low medium high"`
	Category        string          `json:"category,omitempty"`
	Subcategory     string          `json:"subcategory,omitempty"`
	Field           string          `json:"field,omitempty" validate:"max=255"`
	Description     string          `json:"description,omitempty"`
	Reasoning       string          `json:"reasoning,omitempty"`
	SuggestedChange SuggestedChange `json:"suggestedChange"`
	SupportingData  SupportingData  `json:"supportingData"`
}

type ApplyImprovementRequest struct {
	Proposal  Proposal `json:"proposal" validate:"required"`
	AppliedBy string   `json:"appliedBy,omitempty" validate:"max=255"`
}

type TemplateAnalysis struct {
	TemplateID       string     `json:"templateId"`
	TemplateName     string     `json:"templateName"`
	TemplateVersion  int        `json:"templateVersion"`
	Window           string     `json:"window"`
	TotalSubmissions int        `json:"totalSubmissions"`
	Approved         int        `json:"approved"`
	Rejected         int        `json:"rejected"`
	Failed           int        `json:"failed"`
	SuccessRate      float64    `json:"successRate"`
	Health           string     `json:"health"`
	LowSample        bool       `json:"lowSample"`
	Comparable       bool       `json:"comparable"`
	Proposals        []Proposal `json:"proposals"`
	ComputedAt       time.Time  `json:"computedAt"`
}

type TemplateAnalysisOverview struct {
	Results        []TemplateAnalysis `json:"results"`
	NeedsAttention []string           `json:"needsAttention"`
	ComputedAt     time.Time          `json:"computedAt"`
}

type Health struct {
	Status string `json:"status"`
}
