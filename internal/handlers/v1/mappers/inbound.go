package mappers

import (
	v1 "github.com/supplier-intake/intake-pipeline/api/v1"
	"github.com/supplier-intake/intake-pipeline/internal/analysis"
	"github.com/supplier-intake/intake-pipeline/internal/service/mappers"
	"github.com/supplier-intake/intake-pipeline/internal/store/model"
)

func IngestFormApi(req v1.IngestRequest) mappers.IngestForm {
	form := mappers.IngestForm{
		ExternalMessageID: req.ExternalMessageID,
		SupplierRef:       req.SupplierRef,
		TemplateID:        req.TemplateID,
		ContentType:       req.ContentType,
		RawContent:        req.RawContent,
		MediaLocator:      req.MediaLocator,
	}
	for _, it := range req.Items {
		form.Items = append(form.Items, mappers.IngestItem{
			ContentType:  it.ContentType,
			RawContent:   it.RawContent,
			MediaLocator: it.MediaLocator,
		})
	}
	return form
}

func ApproveFormApi(req v1.ApproveRequest) mappers.ApproveForm {
	return mappers.ApproveForm{
		Edits:     req.Edits,
		Notes:     req.Notes,
		Validator: req.Validator,
	}
}

func RejectFormApi(req v1.RejectRequest) mappers.RejectForm {
	return mappers.RejectForm{
		Feedback: mappers.FeedbackForm{
			Category:    req.Feedback.Category,
			Subcategory: req.Feedback.Subcategory,
			Note:        req.Feedback.Note,
			Fields:      req.Feedback.Fields,
		},
		Notes:     req.Notes,
		Validator: req.Validator,
	}
}

func SupplierFormApi(req v1.SupplierCreate) mappers.SupplierForm {
	return mappers.SupplierForm{
		ContactID:           req.ContactID,
		Name:                req.Name,
		Active:              req.Active,
		PreferredCategories: req.PreferredCategories,
	}
}

func ProposalFromApi(p v1.Proposal) analysis.Proposal {
	proposal := analysis.Proposal{
		ID:          p.ID,
		Type:        model.ProposalType(p.Type),
		Priority:    model.Priority(p.Priority),
		Category:    model.FeedbackCategory(p.Category),
		Subcategory: p.Subcategory,
		Field:       p.Field,
		Description: p.Description,
		Reasoning:   p.Reasoning,
		SuggestedChange: analysis.SuggestedChange{
			RemoveField: p.SuggestedChange.RemoveField,
			Instruction: p.SuggestedChange.Instruction,
			Example:     p.SuggestedChange.Example,
		},
		SupportingData: analysis.SupportingData{
			ErrorCount:   p.SupportingData.ErrorCount,
			ErrorRate:    p.SupportingData.ErrorRate,
			SampleErrors: p.SupportingData.SampleErrors,
		},
	}
	if f := p.SuggestedChange.Field; f != nil {
		spec := FieldSpecFromApi(*f)
		proposal.SuggestedChange.Field = &spec
	}
	return proposal
}

func FieldSpecFromApi(f v1.FieldSpec) model.FieldSpec {
	t := model.FieldType(f.Type)
	if t == "" {
		t = model.FieldTypeString
	}
	return model.FieldSpec{
		Name:       f.Name,
		Type:       t,
		Required:   f.Required,
		Validation: f.Validation,
	}
}
