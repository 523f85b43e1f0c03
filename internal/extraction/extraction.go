package extraction

import (
	"context"

	"github.com/google/uuid"
	"github.com/supplier-intake/intake-pipeline/internal/store/model"
)

// Request is what the extraction capability receives for one attempt.
type Request struct {
	SubmissionID    uuid.UUID            `json:"submission_id"`
	ContentType     model.ContentType    `json:"content_type"`
	Content         string               `json:"content"`
	Media           []byte               `json:"media,omitempty"`
	MediaLocator    string               `json:"media_locator,omitempty"`
	TemplateID      string               `json:"template_id"`
	TemplateVersion int                  `json:"template_version"`
	Template        model.TemplateConfig `json:"template"`
}

// Result is the raw output of the extraction capability, before normalization.
type Result struct {
	Data        map[string]any `json:"data"`
	Confidence  *float64       `json:"confidence,omitempty"`
	FieldErrors []string       `json:"field_errors"`
}

// Extractor is the injected extraction capability. Any returned error is an attempt failure.
type Extractor interface {
	Extract(ctx context.Context, req Request) (*Result, error)
}

// ExtractorFunc adapts a function to the Extractor interface.
type ExtractorFunc func(ctx context.Context, req Request) (*Result, error)

func (f ExtractorFunc) Extract(ctx context.Context, req Request) (*Result, error) {
	return f(ctx, req)
}
