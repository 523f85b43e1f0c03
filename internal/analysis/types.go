package analysis

import (
	"time"

	"github.com/google/uuid"
	"github.com/supplier-intake/intake-pipeline/internal/store/model"
)

// ExtractionFailure is one failed ai_extraction attempt read from the processing log.
type ExtractionFailure struct {
	SubmissionID uuid.UUID
	Message      string
}

// Input is the history of one template within the analysis window.
type Input struct {
	Template model.Template
	Counts   model.DecisionCount
	Feedback []model.Feedback
	Failures []ExtractionFailure
	Window   time.Duration
	Now      time.Time
}

type Result struct {
	TemplateID      string           `json:"template_id"`
	TemplateName    string           `json:"template_name"`
	TemplateVersion int              `json:"template_version"`
	Window          string           `json:"window"`
	Total           int              `json:"total_submissions"`
	Approved        int              `json:"approved"`
	Rejected        int              `json:"rejected"`
	Failed          int              `json:"failed"`
	SuccessRate     float64          `json:"success_rate"`
	Health          model.HealthTier `json:"health"`
	LowSample       bool             `json:"low_sample"`
	Comparable      bool             `json:"comparable"`
	Proposals       []Proposal       `json:"proposals"`
	ComputedAt      time.Time        `json:"computed_at"`
}

// NeedsAttention reports whether the template should appear in the cross-template attention ranking.
func (r Result) NeedsAttention() bool {
	return r.Comparable && (r.Health == model.HealthNeedsImprovement || r.Health == model.HealthPoor)
}

type Proposal struct {
	ID              string                 `json:"id"`
	Type            model.ProposalType     `json:"type"`
	Priority        model.Priority         `json:"priority"`
	Category        model.FeedbackCategory `json:"category,omitempty"`
	Subcategory     string                 `json:"subcategory,omitempty"`
	Field           string                 `json:"field,omitempty"`
	Description     string                 `json:"description"`
	Reasoning       string                 `json:"reasoning"`
	SuggestedChange SuggestedChange        `json:"suggested_change"`
	SupportingData  SupportingData         `json:"supporting_data"`
}

// SuggestedChange is the machine-applicable payload of a proposal. Which members are used depends on the type.
type SuggestedChange struct {
	Field       *model.FieldSpec `json:"field,omitempty"`
	RemoveField string           `json:"remove_field,omitempty"`
	Instruction string           `json:"instruction,omitempty"`
	Example     string           `json:"example,omitempty"`
}

type SupportingData struct {
	ErrorCount   int      `json:"error_count"`
	ErrorRate    float64  `json:"error_rate"`
	SampleErrors []string `json:"sample_errors"`
}
