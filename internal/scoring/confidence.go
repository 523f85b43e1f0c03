package scoring

import (
	"encoding/json"
	"math"
	"slices"
	"strings"

	"github.com/supplier-intake/intake-pipeline/internal/store/model"
)

const (
	// DefaultBaseConfidence is used when the extractor did not report a confidence.
	DefaultBaseConfidence = 75.0

	MissingFieldPenalty       = 15.0
	MalformedFieldPenalty     = 10.0
	UnresolvedCategoryPenalty = 10.0
	FieldErrorPenalty         = 5.0

	MinConfidence = 0.0
	MaxConfidence = 100.0
)

// Input is everything the confidence score depends on.
type Input struct {
	Fields             []model.FieldSpec
	Data               map[string]any
	ReportedConfidence *float64
	FieldErrors        []string
	Category           *string
}

// InputFromSubmission builds the scoring input of an extracted submission.
func InputFromSubmission(s model.Submission, t model.Template) Input {
	return Input{
		Fields:             t.ExpectedFields,
		Data:               s.ExtractedData,
		ReportedConfidence: s.ExtractionConfidence,
		FieldErrors:        s.FieldErrors,
		Category:           s.Category,
	}
}

// Breakdown explains a confidence score.
type Breakdown struct {
	Score              float64  `json:"score"`
	Base               float64  `json:"base"`
	MissingFields      []string `json:"missing_fields"`
	MalformedFields    []string `json:"malformed_fields"`
	UnresolvedCategory bool     `json:"unresolved_category"`
	FieldErrorCount    int      `json:"field_error_count"`
	NoData             bool     `json:"no_data"`
}

// Clean reports whether no defect was found.
func (b Breakdown) Clean() bool {
	return !b.NoData && len(b.MissingFields) == 0 && len(b.MalformedFields) == 0 && !b.UnresolvedCategory && b.FieldErrorCount == 0
}

type Scorer struct {
	baseConfidence float64
	categories     []string
}

type Option func(*Scorer)

// WithDefaultBaseConfidence overrides the base used when no confidence was reported.
// Values outside [0,100] are ignored.
func WithDefaultBaseConfidence(v float64) Option {
	return func(s *Scorer) {
		if v >= MinConfidence && v <= MaxConfidence {
			s.baseConfidence = v
		}
	}
}

// WithCategories sets the known categories. Without it any non-empty category counts as resolved.
func WithCategories(categories []string) Option {
	return func(s *Scorer) {
		s.categories = make([]string, 0, len(categories))
		for _, c := range categories {
			s.categories = append(s.categories, strings.ToLower(strings.TrimSpace(c)))
		}
	}
}

func NewScorer(opts ...Option) *Scorer {
	s := &Scorer{baseConfidence: DefaultBaseConfidence}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Scorer) ComputeConfidence(in Input) float64 {
	return s.Score(in).Score
}

func (s *Scorer) Score(in Input) Breakdown {
	b := Breakdown{
		MissingFields:   []string{},
		MalformedFields: []string{},
	}
	if len(in.Data) == 0 {
		b.NoData = true
		return b
	}

	b.Base = s.baseConfidence
	if in.ReportedConfidence != nil {
		b.Base = Clamp(*in.ReportedConfidence)
	}

	for _, f := range in.Fields {
		v, present := in.Data[f.Name]
		if !present || isEmpty(v) {
			if f.Required {
				b.MissingFields = append(b.MissingFields, f.Name)
			}
			continue
		}
		if f.Type.Numeric() && !isNumeric(v) {
			b.MalformedFields = append(b.MalformedFields, f.Name)
		}
	}

	b.UnresolvedCategory = !s.resolved(in.Category)
	b.FieldErrorCount = len(in.FieldErrors)

	score := b.Base -
		MissingFieldPenalty*float64(len(b.MissingFields)) -
		MalformedFieldPenalty*float64(len(b.MalformedFields)) -
		FieldErrorPenalty*float64(b.FieldErrorCount)
	if b.UnresolvedCategory {
		score -= UnresolvedCategoryPenalty
	}
	b.Score = Clamp(score)
	return b
}

func (s *Scorer) resolved(category *string) bool {
	if category == nil || strings.TrimSpace(*category) == "" {
		return false
	}
	if len(s.categories) == 0 {
		return true
	}
	return slices.Contains(s.categories, strings.ToLower(strings.TrimSpace(*category)))
}

// Clamp bounds v to [0,100]. NaN maps to 0.
func Clamp(v float64) float64 {
	if math.IsNaN(v) {
		return MinConfidence
	}
	return math.Max(MinConfidence, math.Min(MaxConfidence, v))
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	}
	return false
}

func isNumeric(v any) bool {
	switch t := v.(type) {
	case float64:
		return !math.IsNaN(t) && !math.IsInf(t, 0)
	case float32, int, int32, int64, uint, uint32, uint64:
		return true
	case json.Number:
		_, err := t.Float64()
		return err == nil
	}
	return false
}
