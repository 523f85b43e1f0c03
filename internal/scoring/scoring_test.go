package scoring

import (
	"math"
	"slices"
	"testing"
	"time"

	"github.com/supplier-intake/intake-pipeline/internal/store/model"
)

var kettleFields = []model.FieldSpec{
	{Name: "name", Type: model.FieldTypeString, Required: true},
	{Name: "price", Type: model.FieldTypeNumber, Required: true},
	{Name: "stock", Type: model.FieldTypeInteger},
	{Name: "warrantyMonths", Type: model.FieldTypeInteger},
}

func ptr[T any](v T) *T { return &v }

func TestComputeConfidence(t *testing.T) {
	t.Parallel()
	scorer := NewScorer(WithCategories([]string{"home", "electronics"}))

	tests := []struct {
		name string
		in   Input
		want float64
	}{
		{
			name: "reported confidence with every field present",
			in: Input{
				Fields:             kettleFields,
				Data:               map[string]any{"name": "Kettle", "price": 25.0},
				ReportedConfidence: ptr(92.0),
				Category:           ptr("home"),
			},
			want: 92,
		},
		{
			name: "default base without reported confidence",
			in: Input{
				Fields:   kettleFields,
				Data:     map[string]any{"name": "Kettle", "price": 25.0},
				Category: ptr("home"),
			},
			want: DefaultBaseConfidence,
		},
		{
			name: "missing required field and unresolved category",
			in: Input{
				Fields:             kettleFields,
				Data:               map[string]any{"name": "Kettle"},
				ReportedConfidence: ptr(65.0),
				Category:           ptr("garden"),
			},
			want: 40,
		},
		{
			name: "malformed numeric field and extractor errors",
			in: Input{
				Fields:             kettleFields,
				Data:               map[string]any{"name": "Kettle", "price": "cheap", "stock": 4},
				ReportedConfidence: ptr(90.0),
				FieldErrors:        []string{"unit unreadable", "currency guessed"},
				Category:           ptr("home"),
			},
			want: 70,
		},
		{
			name: "empty strings count as missing",
			in: Input{
				Fields:             kettleFields,
				Data:               map[string]any{"name": "  ", "price": 10.0},
				ReportedConfidence: ptr(80.0),
				Category:           ptr("home"),
			},
			want: 65,
		},
		{
			name: "penalties never go below zero",
			in: Input{
				Fields:             kettleFields,
				Data:               map[string]any{"stock": "many"},
				ReportedConfidence: ptr(10.0),
				FieldErrors:        []string{"a", "b", "c"},
			},
			want: 0,
		},
		{
			name: "reported confidence above range is clamped",
			in: Input{
				Fields:             kettleFields,
				Data:               map[string]any{"name": "Kettle", "price": 25.0},
				ReportedConfidence: ptr(140.0),
				Category:           ptr("home"),
			},
			want: 100,
		},
		{
			name: "no extracted data",
			in: Input{
				Fields:             kettleFields,
				ReportedConfidence: ptr(99.0),
			},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := scorer.ComputeConfidence(tt.in)
			if got != tt.want {
				t.Errorf("expected confidence %v, got %v", tt.want, got)
			}
			if got < MinConfidence || got > MaxConfidence {
				t.Errorf("confidence %v out of range", got)
			}
		})
	}
}

func TestScoreBreakdown(t *testing.T) {
	t.Parallel()
	b := NewScorer().Score(Input{
		Fields:      kettleFields,
		Data:        map[string]any{"price": "n/a", "stock": 3},
		FieldErrors: []string{"blurry"},
	})

	if !slices.Equal(b.MissingFields, []string{"name"}) {
		t.Errorf("expected missing [name], got %v", b.MissingFields)
	}
	if !slices.Equal(b.MalformedFields, []string{"price"}) {
		t.Errorf("expected malformed [price], got %v", b.MalformedFields)
	}
	if !b.UnresolvedCategory {
		t.Error("expected a nil category to be unresolved")
	}
	// 75 - 15 - 10 - 10 - 5
	if b.Score != 35 {
		t.Errorf("expected score 35, got %v", b.Score)
	}
	if b.Clean() {
		t.Error("expected breakdown with defects not to be clean")
	}
}

func TestWithDefaultBaseConfidenceIgnoresOutOfRange(t *testing.T) {
	t.Parallel()
	in := Input{Data: map[string]any{"name": "x"}, Category: ptr("home")}

	if got := NewScorer(WithDefaultBaseConfidence(60)).ComputeConfidence(in); got != 60 {
		t.Errorf("expected 60, got %v", got)
	}
	if got := NewScorer(WithDefaultBaseConfidence(-3)).ComputeConfidence(in); got != DefaultBaseConfidence {
		t.Errorf("expected default base, got %v", got)
	}
}

func TestClamp(t *testing.T) {
	t.Parallel()
	for in, want := range map[float64]float64{-5: 0, 0: 0, 42.5: 42.5, 100: 100, 250: 100, math.Inf(1): 100} {
		if got := Clamp(in); got != want {
			t.Errorf("Clamp(%v): expected %v, got %v", in, want, got)
		}
	}
	if got := Clamp(math.NaN()); got != 0 {
		t.Errorf("Clamp(NaN): expected 0, got %v", got)
	}
}

func TestComputePriority(t *testing.T) {
	t.Parallel()
	reliable := model.DecisionCount{Total: 20, Approved: 19, Rejected: 1}
	chronic := model.DecisionCount{Total: 20, Approved: 5, Rejected: 15}
	fresh := model.DecisionCount{Total: 2, Approved: 2}

	tests := []struct {
		name    string
		score   float64
		age     time.Duration
		history model.DecisionCount
		want    model.Priority
	}{
		{"high confidence is low priority", 92, time.Minute, model.DecisionCount{}, model.PriorityLow},
		{"low confidence is high priority", 40, time.Minute, model.DecisionCount{}, model.PriorityHigh},
		{"medium band", 65, time.Hour, model.DecisionCount{}, model.PriorityMedium},
		{"boundary 80 is low", 80, 0, model.DecisionCount{}, model.PriorityLow},
		{"boundary 50 is medium", 50, 0, model.DecisionCount{}, model.PriorityMedium},
		{"a day old bumps one tier", 92, 25 * time.Hour, model.DecisionCount{}, model.PriorityMedium},
		{"three days old forces high", 99, 73 * time.Hour, model.DecisionCount{}, model.PriorityHigh},
		{"reliable supplier anomaly bumps", 60, time.Hour, reliable, model.PriorityHigh},
		{"reliable supplier high score is not bumped", 85, time.Hour, reliable, model.PriorityLow},
		{"chronic low performer is not bumped", 60, time.Hour, chronic, model.PriorityMedium},
		{"short history is not trusted", 60, time.Hour, fresh, model.PriorityMedium},
		{"bumps saturate at high", 10, 30 * time.Hour, reliable, model.PriorityHigh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := ComputePriority(tt.score, tt.age, tt.history); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestSuggestActions(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		b    Breakdown
		want []Action
	}{
		{"clean high score", Breakdown{Score: 92}, []Action{ActionApprove}},
		{"no data", Breakdown{NoData: true}, []Action{ActionReject}},
		{
			"every defect",
			Breakdown{Score: 20, MissingFields: []string{"price"}, MalformedFields: []string{"stock"}, UnresolvedCategory: true},
			[]Action{ActionReviewMissingFields, ActionVerifyNumericFields, ActionVerifyCategory, ActionReject},
		},
		{"category only", Breakdown{Score: 65, UnresolvedCategory: true}, []Action{ActionVerifyCategory}},
		{"low score without structural defect", Breakdown{Score: 40, FieldErrorCount: 3}, []Action{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := SuggestActions(tt.b); !slices.Equal(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}
