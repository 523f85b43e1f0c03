package model

import (
	"fmt"
	"slices"
)

type ContentType string

const (
	ContentTypeText  ContentType = "text"
	ContentTypeImage ContentType = "image"
	ContentTypePDF   ContentType = "pdf"
	ContentTypeVoice ContentType = "voice"
)

var contentTypes = []ContentType{ContentTypeText, ContentTypeImage, ContentTypePDF, ContentTypeVoice}

func ParseContentType(s string) (ContentType, error) {
	ct := ContentType(s)
	if !slices.Contains(contentTypes, ct) {
		return "", fmt.Errorf("unknown content type %q", s)
	}
	return ct, nil
}

// MediaBacked reports whether the content is expected to come with a media locator.
func (c ContentType) MediaBacked() bool {
	return c != ContentTypeText
}

type ProcessingStatus string

const (
	ProcessingStatusPending    ProcessingStatus = "pending"
	ProcessingStatusProcessing ProcessingStatus = "processing"
	ProcessingStatusCompleted  ProcessingStatus = "completed"
	ProcessingStatusFailed     ProcessingStatus = "failed"
)

var processingStatuses = []ProcessingStatus{
	ProcessingStatusPending,
	ProcessingStatusProcessing,
	ProcessingStatusCompleted,
	ProcessingStatusFailed,
}

func ParseProcessingStatus(s string) (ProcessingStatus, error) {
	ps := ProcessingStatus(s)
	if !slices.Contains(processingStatuses, ps) {
		return "", fmt.Errorf("unknown processing status %q", s)
	}
	return ps, nil
}

type ValidationStatus string

const (
	ValidationStatusPending  ValidationStatus = "pending"
	ValidationStatusApproved ValidationStatus = "approved"
	ValidationStatusRejected ValidationStatus = "rejected"
)

func (v ValidationStatus) Terminal() bool {
	return v == ValidationStatusApproved || v == ValidationStatusRejected
}

type StageName string

const (
	StageWebhook         StageName = "webhook"
	StageAIExtraction    StageName = "ai_extraction"
	StageValidation      StageName = "validation"
	StageInventoryUpdate StageName = "inventory_update"
)

var stageNames = []StageName{StageWebhook, StageAIExtraction, StageValidation, StageInventoryUpdate}

func ParseStageName(s string) (StageName, error) {
	sn := StageName(s)
	if !slices.Contains(stageNames, sn) {
		return "", fmt.Errorf("unknown stage %q", s)
	}
	return sn, nil
}

type StageStatus string

const (
	StageStatusStarted   StageStatus = "started"
	StageStatusCompleted StageStatus = "completed"
	StageStatusFailed    StageStatus = "failed"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

var priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh}

func ParsePriority(s string) (Priority, error) {
	p := Priority(s)
	if !slices.Contains(priorities, p) {
		return "", fmt.Errorf("unknown priority %q", s)
	}
	return p, nil
}

// Rank orders priorities: low=0, medium=1, high=2.
func (p Priority) Rank() int {
	return slices.Index(priorities, p)
}

// Bump returns the next tier up, saturating at high.
func (p Priority) Bump() Priority {
	i := p.Rank()
	if i < 0 || i+1 >= len(priorities) {
		return PriorityHigh
	}
	return priorities[i+1]
}

type HealthTier string

const (
	HealthExcellent        HealthTier = "excellent"
	HealthGood             HealthTier = "good"
	HealthNeedsImprovement HealthTier = "needs_improvement"
	HealthPoor             HealthTier = "poor"
)

type ProposalType string

const (
	ProposalFieldAddition            ProposalType = "field_addition"
	ProposalFieldRemoval             ProposalType = "field_removal"
	ProposalValidationAdjustment     ProposalType = "validation_adjustment"
	ProposalInstructionClarification ProposalType = "instruction_clarification"
	ProposalExampleUpdate            ProposalType = "example_update"
)

var proposalTypes = []ProposalType{
	ProposalFieldAddition,
	ProposalFieldRemoval,
	ProposalValidationAdjustment,
	ProposalInstructionClarification,
	ProposalExampleUpdate,
}

func ParseProposalType(s string) (ProposalType, error) {
	pt := ProposalType(s)
	if !slices.Contains(proposalTypes, pt) {
		return "", fmt.Errorf("unknown proposal type %q", s)
	}
	return pt, nil
}

type FeedbackCategory string

const (
	FeedbackMissingField  FeedbackCategory = "missing_field"
	FeedbackWrongValue    FeedbackCategory = "wrong_value"
	FeedbackWrongCategory FeedbackCategory = "wrong_category"
	FeedbackExtraField    FeedbackCategory = "extra_field"
	FeedbackPoorQuality   FeedbackCategory = "poor_quality"
	FeedbackDuplicate     FeedbackCategory = "duplicate"
	FeedbackOther         FeedbackCategory = "other"
)

// feedbackTaxonomy maps every category to its allowed subcategories.
// An empty subcategory is always accepted.
var feedbackTaxonomy = map[FeedbackCategory][]string{
	FeedbackMissingField:  {"required", "optional"},
	FeedbackWrongValue:    {"price", "quantity", "unit", "format", "name", "description"},
	FeedbackWrongCategory: {"misclassified", "unknown_category"},
	FeedbackExtraField:    {"hallucinated", "irrelevant"},
	FeedbackPoorQuality:   {"unreadable_media", "incomplete_content", "wrong_language"},
	FeedbackDuplicate:     {"same_supplier", "cross_supplier"},
	FeedbackOther:         {},
}

func ParseFeedbackCategory(s string) (FeedbackCategory, error) {
	fc := FeedbackCategory(s)
	if _, ok := feedbackTaxonomy[fc]; !ok {
		return "", fmt.Errorf("unknown feedback category %q", s)
	}
	return fc, nil
}

func (c FeedbackCategory) ValidSubcategory(sub string) bool {
	if sub == "" {
		return true
	}
	return slices.Contains(feedbackTaxonomy[c], sub)
}

// FieldScoped reports whether feedback of this category must reference at least one field.
func (c FeedbackCategory) FieldScoped() bool {
	switch c {
	case FeedbackMissingField, FeedbackWrongValue, FeedbackExtraField:
		return true
	default:
		return false
	}
}

func FeedbackCategories() []FeedbackCategory {
	out := make([]FeedbackCategory, 0, len(feedbackTaxonomy))
	for c := range feedbackTaxonomy {
		out = append(out, c)
	}
	slices.Sort(out)
	return out
}
