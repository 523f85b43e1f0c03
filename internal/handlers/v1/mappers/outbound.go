package mappers

import (
	v1 "github.com/supplier-intake/intake-pipeline/api/v1"
	"github.com/supplier-intake/intake-pipeline/internal/analysis"
	"github.com/supplier-intake/intake-pipeline/internal/scoring"
	"github.com/supplier-intake/intake-pipeline/internal/service"
	"github.com/supplier-intake/intake-pipeline/internal/store/model"
)

func SubmissionToApi(s model.Submission) v1.Submission {
	data := map[string]any(s.ExtractedData)
	if data == nil {
		data = map[string]any{}
	}
	fieldErrors := []string(s.FieldErrors)
	if fieldErrors == nil {
		fieldErrors = []string{}
	}
	return v1.Submission{
		ID:                   s.ID,
		ExternalMessageID:    s.ExternalMessageID,
		SourceMessageID:      s.SourceMessageID,
		GroupID:              s.GroupID,
		ItemIndex:            s.ItemIndex,
		SupplierID:           s.SupplierID,
		TemplateID:           s.TemplateID,
		ContentType:          string(s.ContentType),
		RawContent:           s.RawContent,
		MediaLocator:         s.MediaLocator,
		ProcessingStatus:     string(s.ProcessingStatus),
		Attempts:             s.Attempts,
		NextAttemptAt:        s.NextAttemptAt,
		LastError:            s.LastError,
		ExtractedData:        data,
		ExtractionConfidence: s.ExtractionConfidence,
		FieldErrors:          fieldErrors,
		Category:             s.Category,
		ValidationStatus:     string(s.ValidationStatus),
		ValidatedBy:          s.ValidatedBy,
		ValidationNotes:      s.ValidationNotes,
		ValidatedAt:          s.ValidatedAt,
		ProductReference:     s.ProductReference,
		CreatedAt:            s.CreatedAt,
		UpdatedAt:            s.UpdatedAt,
	}
}

func SubmissionListToApi(submissions model.SubmissionList) []v1.Submission {
	out := make([]v1.Submission, 0, len(submissions))
	for _, s := range submissions {
		out = append(out, SubmissionToApi(s))
	}
	return out
}

func IngestResultToApi(r service.IngestResult) v1.IngestResponse {
	return v1.IngestResponse{
		GroupID:     r.GroupID,
		Duplicate:   r.Duplicate,
		Submissions: SubmissionListToApi(r.Submissions),
	}
}

func SiblingsToApi(siblings []model.Sibling) []v1.Sibling {
	out := make([]v1.Sibling, 0, len(siblings))
	for _, s := range siblings {
		out = append(out, v1.Sibling{
			ID:               s.ID,
			ItemIndex:        s.ItemIndex,
			ProcessingStatus: string(s.ProcessingStatus),
			ValidationStatus: string(s.ValidationStatus),
		})
	}
	return out
}

func BreakdownToApi(b scoring.Breakdown) v1.ConfidenceBreakdown {
	return v1.ConfidenceBreakdown{
		Score:              b.Score,
		Base:               b.Base,
		MissingFields:      nonNil(b.MissingFields),
		MalformedFields:    nonNil(b.MalformedFields),
		UnresolvedCategory: b.UnresolvedCategory,
		FieldErrorCount:    b.FieldErrorCount,
	}
}

func QueuePageToApi(p service.QueuePage) v1.QueuePage {
	items := make([]v1.QueueItem, 0, len(p.Items))
	for _, it := range p.Items {
		actions := make([]string, 0, len(it.SuggestedActions))
		for _, a := range it.SuggestedActions {
			actions = append(actions, string(a))
		}
		items = append(items, v1.QueueItem{
			Submission:       SubmissionToApi(it.Submission),
			Confidence:       it.Confidence,
			Breakdown:        BreakdownToApi(it.Breakdown),
			Priority:         string(it.Priority),
			AgeSeconds:       int64(it.Age.Seconds()),
			SuggestedActions: actions,
			Siblings:         SiblingsToApi(it.Siblings),
		})
	}
	return v1.QueuePage{
		Items:     items,
		Total:     p.Total,
		Page:      p.Page,
		Limit:     p.Limit,
		Truncated: p.Truncated,
	}
}

func LogEntryToApi(e model.ProcessingLogEntry) v1.ProcessingLogEntry {
	meta := map[string]any(e.Metadata)
	if meta == nil {
		meta = map[string]any{}
	}
	return v1.ProcessingLogEntry{
		ID:           e.ID,
		SubmissionID: e.SubmissionID,
		Stage:        string(e.Stage),
		Status:       string(e.Status),
		Attempt:      e.Attempt,
		DurationMs:   e.DurationMs,
		ErrorMessage: e.ErrorMessage,
		Metadata:     meta,
		CreatedAt:    e.CreatedAt,
	}
}

func LogToApi(entries model.ProcessingLog) []v1.ProcessingLogEntry {
	out := make([]v1.ProcessingLogEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, LogEntryToApi(e))
	}
	return out
}

func FeedbackToApi(f model.Feedback) v1.FeedbackRecord {
	return v1.FeedbackRecord{
		ID:           f.ID,
		SubmissionID: f.SubmissionID,
		TemplateID:   f.TemplateID,
		Category:     string(f.Category),
		Subcategory:  f.Subcategory,
		Note:         f.Note,
		Fields:       nonNil([]string(f.Fields)),
		CreatedAt:    f.CreatedAt,
	}
}

func SubmissionDetailToApi(d service.SubmissionDetail) v1.SubmissionDetail {
	detail := v1.SubmissionDetail{
		Submission: SubmissionToApi(d.Submission),
		Siblings:   SiblingsToApi(d.Siblings),
		Log:        LogToApi(d.Log),
	}
	if d.Breakdown != nil {
		b := BreakdownToApi(*d.Breakdown)
		detail.Breakdown = &b
	}
	if d.Priority != nil {
		p := string(*d.Priority)
		detail.Priority = &p
	}
	if d.Feedback != nil {
		f := FeedbackToApi(*d.Feedback)
		detail.Feedback = &f
	}
	return detail
}

func ApproveResultToApi(r service.ApproveResult) v1.ApproveResponse {
	return v1.ApproveResponse{
		Submission:       SubmissionToApi(*r.Submission),
		ProductReference: r.ProductReference,
		CommittedData:    r.Data,
	}
}

func SupplierToApi(s model.Supplier) v1.Supplier {
	m := s.Metrics.Data()
	return v1.Supplier{
		ID:                  s.ID,
		ContactID:           s.ContactID,
		Name:                s.Name,
		Active:              s.Active,
		PreferredCategories: nonNil([]string(s.PreferredCategories)),
		Metrics: v1.SupplierMetrics{
			Submissions:       m.Submissions,
			Approved:          m.Approved,
			Rejected:          m.Rejected,
			Failed:            m.Failed,
			ApprovalRate:      m.ApprovalRate,
			AverageConfidence: m.AverageConfidence,
			ComputedAt:        s.MetricsComputedAt,
		},
		CreatedAt: s.CreatedAt,
	}
}

func SupplierListToApi(suppliers model.SupplierList) []v1.Supplier {
	out := make([]v1.Supplier, 0, len(suppliers))
	for _, s := range suppliers {
		out = append(out, SupplierToApi(s))
	}
	return out
}

func FieldSpecToApi(f model.FieldSpec) v1.FieldSpec {
	return v1.FieldSpec{
		Name:       f.Name,
		Type:       string(f.Type),
		Required:   f.Required,
		Validation: f.Validation,
	}
}

func fieldsToApi(fields []model.FieldSpec) []v1.FieldSpec {
	out := make([]v1.FieldSpec, 0, len(fields))
	for _, f := range fields {
		out = append(out, FieldSpecToApi(f))
	}
	return out
}

func TemplateToApi(t model.Template) v1.Template {
	contentTypes := make([]string, 0, len(t.ContentTypes))
	for _, ct := range t.ContentTypes {
		contentTypes = append(contentTypes, string(ct))
	}
	return v1.Template{
		ID:             t.ID,
		Name:           t.Name,
		Instructions:   t.Instructions,
		ContentTypes:   contentTypes,
		ExpectedFields: fieldsToApi(t.ExpectedFields),
		Examples:       nonNil([]string(t.Examples)),
		Version:        t.Version,
		Active:         t.Active,
		UpdatedAt:      t.UpdatedAt,
	}
}

func TemplateListToApi(templates model.TemplateList) []v1.Template {
	out := make([]v1.Template, 0, len(templates))
	for _, t := range templates {
		out = append(out, TemplateToApi(t))
	}
	return out
}

func templateConfigToApi(c model.TemplateConfig) v1.TemplateConfig {
	return v1.TemplateConfig{
		Instructions:   c.Instructions,
		ExpectedFields: fieldsToApi(c.ExpectedFields),
		Examples:       nonNil(c.Examples),
	}
}

func RevisionListToApi(revisions model.TemplateRevisionList) []v1.TemplateRevision {
	out := make([]v1.TemplateRevision, 0, len(revisions))
	for _, r := range revisions {
		out = append(out, v1.TemplateRevision{
			ID:           r.ID,
			TemplateID:   r.TemplateID,
			FromVersion:  r.FromVersion,
			ToVersion:    r.ToVersion,
			ProposalType: string(r.ProposalType),
			Field:        r.Field,
			Before:       templateConfigToApi(r.Before.Data()),
			After:        templateConfigToApi(r.After.Data()),
			AppliedBy:    r.AppliedBy,
			CreatedAt:    r.CreatedAt,
		})
	}
	return out
}

func ProposalToApi(p analysis.Proposal) v1.Proposal {
	proposal := v1.Proposal{
		ID:          p.ID,
		Type:        string(p.Type),
		Priority:    string(p.Priority),
		Category:    string(p.Category),
		Subcategory: p.Subcategory,
		Field:       p.Field,
		Description: p.Description,
		Reasoning:   p.Reasoning,
		SuggestedChange: v1.SuggestedChange{
			RemoveField: p.SuggestedChange.RemoveField,
			Instruction: p.SuggestedChange.Instruction,
			Example:     p.SuggestedChange.Example,
		},
		SupportingData: v1.SupportingData{
			ErrorCount:   p.SupportingData.ErrorCount,
			ErrorRate:    p.SupportingData.ErrorRate,
			SampleErrors: nonNil(p.SupportingData.SampleErrors),
		},
	}
	if f := p.SuggestedChange.Field; f != nil {
		spec := FieldSpecToApi(*f)
		proposal.SuggestedChange.Field = &spec
	}
	return proposal
}

func AnalysisToApi(r analysis.Result) v1.TemplateAnalysis {
	proposals := make([]v1.Proposal, 0, len(r.Proposals))
	for _, p := range r.Proposals {
		proposals = append(proposals, ProposalToApi(p))
	}
	return v1.TemplateAnalysis{
		TemplateID:       r.TemplateID,
		TemplateName:     r.TemplateName,
		TemplateVersion:  r.TemplateVersion,
		Window:           r.Window,
		TotalSubmissions: r.Total,
		Approved:         r.Approved,
		Rejected:         r.Rejected,
		Failed:           r.Failed,
		SuccessRate:      r.SuccessRate,
		Health:           string(r.Health),
		LowSample:        r.LowSample,
		Comparable:       r.Comparable,
		Proposals:        proposals,
		ComputedAt:       r.ComputedAt,
	}
}

func OverviewToApi(o analysis.Overview) v1.TemplateAnalysisOverview {
	results := make([]v1.TemplateAnalysis, 0, len(o.Results))
	for _, r := range o.Results {
		results = append(results, AnalysisToApi(r))
	}
	return v1.TemplateAnalysisOverview{
		Results:        results,
		NeedsAttention: nonNil(o.NeedsAttention),
		ComputedAt:     o.ComputedAt,
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
