package analysis

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/supplier-intake/intake-pipeline/internal/store/model"
)

const (
	DefaultMinSampleSize = 10
	DefaultMinErrorRate  = 0.10
	DefaultMinErrorCount = 3
	DefaultSampleErrors  = 5

	ExcellentThreshold        = 0.90
	GoodThreshold             = 0.75
	NeedsImprovementThreshold = 0.50

	HighPriorityRate   = 0.30
	MediumPriorityRate = 0.15
)

// Engine computes template analysis results.
type Engine struct {
	minSampleSize int
	minErrorRate  float64
	minErrorCount int
	sampleErrors  int
}

type Option func(*Engine)

// WithMinSampleSize sets the submission count under which a result is flagged as low sample.
func WithMinSampleSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.minSampleSize = n
		}
	}
}

// WithMinErrorRate sets the error rate a feedback group must reach to produce a proposal.
func WithMinErrorRate(rate float64) Option {
	return func(e *Engine) {
		if rate > 0 && rate <= 1 {
			e.minErrorRate = rate
		}
	}
}

// WithMinErrorCount sets the number of occurrences a feedback group must reach to produce a proposal.
func WithMinErrorCount(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.minErrorCount = n
		}
	}
}

// WithSampleErrors sets how many sample error strings a proposal carries.
func WithSampleErrors(n int) Option {
	return func(e *Engine) {
		if n >= 0 {
			e.sampleErrors = n
		}
	}
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		minSampleSize: DefaultMinSampleSize,
		minErrorRate:  DefaultMinErrorRate,
		minErrorCount: DefaultMinErrorCount,
		sampleErrors:  DefaultSampleErrors,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Analyze(in Input) Result {
	rate := SuccessRate(in.Counts)
	r := Result{
		TemplateID:      in.Template.ID,
		TemplateName:    in.Template.Name,
		TemplateVersion: in.Template.Version,
		Window:          in.Window.String(),
		Total:           in.Counts.Total,
		Approved:        in.Counts.Approved,
		Rejected:        in.Counts.Rejected,
		Failed:          in.Counts.Failed,
		SuccessRate:     rate,
		Health:          HealthFor(rate),
		LowSample:       in.Counts.Total < e.minSampleSize,
		ComputedAt:      in.Now,
	}
	r.Comparable = in.Counts.Decided() > 0 && !r.LowSample

	proposals := e.feedbackProposals(in)
	if p, ok := e.failureProposal(in); ok {
		proposals = append(proposals, p)
	}
	RankProposals(proposals)
	r.Proposals = proposals
	return r
}

// SuccessRate is approved/(approved+rejected), or 0 without decisions.
func SuccessRate(c model.DecisionCount) float64 {
	if c.Decided() == 0 {
		return 0
	}
	return float64(c.Approved) / float64(c.Decided())
}

func HealthFor(rate float64) model.HealthTier {
	switch {
	case rate >= ExcellentThreshold:
		return model.HealthExcellent
	case rate >= GoodThreshold:
		return model.HealthGood
	case rate >= NeedsImprovementThreshold:
		return model.HealthNeedsImprovement
	default:
		return model.HealthPoor
	}
}

func PriorityFor(errorRate float64) model.Priority {
	switch {
	case errorRate >= HighPriorityRate:
		return model.PriorityHigh
	case errorRate >= MediumPriorityRate:
		return model.PriorityMedium
	default:
		return model.PriorityLow
	}
}

// RankProposals sorts by priority then error count, both descending. Ties keep a stable id order.
func RankProposals(proposals []Proposal) {
	slices.SortStableFunc(proposals, func(a, b Proposal) int {
		if c := cmp.Compare(b.Priority.Rank(), a.Priority.Rank()); c != 0 {
			return c
		}
		if c := cmp.Compare(b.SupportingData.ErrorCount, a.SupportingData.ErrorCount); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}

type groupKey struct {
	category    model.FeedbackCategory
	subcategory string
	field       string
}

type group struct {
	key   groupKey
	count int
	notes []string
}

func (e *Engine) feedbackProposals(in Input) []Proposal {
	if in.Counts.Total == 0 {
		return []Proposal{}
	}

	groups := map[groupKey]*group{}
	order := []groupKey{}
	add := func(k groupKey, note string) {
		g, ok := groups[k]
		if !ok {
			g = &group{key: k}
			groups[k] = g
			order = append(order, k)
		}
		g.count++
		if note != "" && len(g.notes) < e.sampleErrors && !slices.Contains(g.notes, note) {
			g.notes = append(g.notes, note)
		}
	}

	for _, fb := range in.Feedback {
		fields := []string{""}
		if fb.Category.FieldScoped() && len(fb.Fields) > 0 {
			fields = fb.Fields
		}
		for _, f := range fields {
			add(groupKey{category: fb.Category, subcategory: fb.Subcategory, field: f}, fb.Note)
		}
	}

	proposals := []Proposal{}
	for _, k := range order {
		g := groups[k]
		rate := float64(g.count) / float64(in.Counts.Total)
		if g.count < e.minErrorCount || rate < e.minErrorRate {
			continue
		}
		if p, ok := proposalFor(in.Template, g, rate); ok {
			proposals = append(proposals, p)
		}
	}
	return proposals
}

func proposalFor(t model.Template, g *group, rate float64) (Proposal, bool) {
	k := g.key
	p := Proposal{
		Category:    k.category,
		Subcategory: k.subcategory,
		Field:       k.field,
		Priority:    PriorityFor(rate),
		SupportingData: SupportingData{
			ErrorCount:   g.count,
			ErrorRate:    rate,
			SampleErrors: append([]string{}, g.notes...),
		},
		Reasoning: fmt.Sprintf("%d submissions (%.0f%%) were rejected as %s", g.count, rate*100, describe(k)),
	}

	switch k.category {
	case model.FeedbackMissingField:
		if k.field == "" {
			p.Type = model.ProposalInstructionClarification
			p.Description = "Clarify which fields must always be extracted"
			p.SuggestedChange.Instruction = "Extract every expected field that the submission mentions, even when it is only implied."
			break
		}
		spec, exists := t.Field(k.field)
		if !exists {
			spec = model.FieldSpec{Name: k.field, Type: model.FieldTypeString}
		}
		spec.Required = k.subcategory != "optional"
		p.Type = model.ProposalFieldAddition
		p.Description = fmt.Sprintf("Add %q to the expected fields", k.field)
		p.SuggestedChange.Field = &spec
		p.SuggestedChange.Instruction = fmt.Sprintf("Always extract %q when the submission mentions it.", k.field)
	case model.FeedbackExtraField:
		p.Type = model.ProposalFieldRemoval
		if k.field == "" {
			p.Description = "Stop extracting fields that are not in the content"
			p.SuggestedChange.Instruction = "Only output fields whose value appears in the submission."
			break
		}
		p.Description = fmt.Sprintf("Remove %q from the extraction output", k.field)
		p.SuggestedChange.RemoveField = k.field
		p.SuggestedChange.Instruction = fmt.Sprintf("Do not output %q unless it appears in the submission.", k.field)
	case model.FeedbackWrongValue:
		p.Type = model.ProposalValidationAdjustment
		if spec, exists := t.Field(k.field); exists {
			spec.Validation = validationHint(spec, k.subcategory)
			p.SuggestedChange.Field = &spec
		}
		target := k.field
		if target == "" {
			target = "extracted"
		}
		p.Description = fmt.Sprintf("Tighten validation of the %s value", target)
		p.SuggestedChange.Instruction = fmt.Sprintf("Double check the %s value against the submission before returning it.", target)
	case model.FeedbackWrongCategory:
		p.Type = model.ProposalInstructionClarification
		p.Description = "Clarify how products are categorized"
		p.SuggestedChange.Instruction = "Pick the category from the known category list only; answer unknown when none fits."
	case model.FeedbackPoorQuality:
		p.Type = model.ProposalExampleUpdate
		p.Description = "Add an example for low quality submissions"
		p.SuggestedChange.Example = fmt.Sprintf("A %s submission: extract only what is legible and report the rest as field errors.", strings.ReplaceAll(k.subcategory, "_", " "))
	case model.FeedbackOther:
		p.Type = model.ProposalInstructionClarification
		p.Description = "Review recurring reviewer notes"
		p.SuggestedChange.Instruction = "Follow the reviewer guidance collected in the supporting notes."
	default:
		return Proposal{}, false
	}

	p.ID = proposalID(p.Type, k)
	return p, true
}

func (e *Engine) failureProposal(in Input) (Proposal, bool) {
	if in.Counts.Total == 0 || len(in.Failures) == 0 {
		return Proposal{}, false
	}

	failed := map[string]struct{}{}
	samples := []string{}
	for _, f := range in.Failures {
		failed[f.SubmissionID.String()] = struct{}{}
		if f.Message != "" && len(samples) < e.sampleErrors && !slices.Contains(samples, f.Message) {
			samples = append(samples, f.Message)
		}
	}

	count := len(failed)
	rate := float64(count) / float64(in.Counts.Total)
	if count < e.minErrorCount || rate < e.minErrorRate {
		return Proposal{}, false
	}

	return Proposal{
		ID:          "example_update:extraction_failure",
		Type:        model.ProposalExampleUpdate,
		Priority:    PriorityFor(rate),
		Description: "Add examples covering submissions the extractor fails on",
		Reasoning:   fmt.Sprintf("%d submissions (%.0f%%) failed extraction at least once", count, rate*100),
		SuggestedChange: SuggestedChange{
			Example: fmt.Sprintf("Submissions similar to: %s", strings.Join(samples, "; ")),
		},
		SupportingData: SupportingData{
			ErrorCount:   count,
			ErrorRate:    rate,
			SampleErrors: samples,
		},
	}, true
}

func validationHint(spec model.FieldSpec, subcategory string) string {
	switch {
	case subcategory == "price" || spec.Type == model.FieldTypeNumber:
		return "positive number, no currency symbol"
	case subcategory == "quantity" || spec.Type == model.FieldTypeInteger:
		return "non-negative integer"
	case subcategory == "unit":
		return "SI unit abbreviation"
	case subcategory == "format":
		return "plain text without markup"
	default:
		return "must match the submission text"
	}
}

func describe(k groupKey) string {
	parts := []string{string(k.category)}
	if k.subcategory != "" {
		parts = append(parts, k.subcategory)
	}
	if k.field != "" {
		parts = append(parts, "on "+k.field)
	}
	return strings.Join(parts, " ")
}

func proposalID(t model.ProposalType, k groupKey) string {
	return strings.Join([]string{string(t), string(k.category), k.subcategory, k.field}, ":")
}
