package analysis

import (
	"cmp"
	"slices"
	"strings"
	"time"
)

// Overview is the cross-template view returned by a full analysis run.
type Overview struct {
	Results        []Result  `json:"results"`
	NeedsAttention []string  `json:"needs_attention"`
	ComputedAt     time.Time `json:"computed_at"`
}

// NewOverview ranks the templates needing attention: lowest success rate first, then the busiest.
// Templates without decisions or under the sample size never enter the ranking.
func NewOverview(results []Result, now time.Time) Overview {
	sorted := slices.Clone(results)
	slices.SortFunc(sorted, func(a, b Result) int {
		return strings.Compare(a.TemplateID, b.TemplateID)
	})

	attention := []Result{}
	for _, r := range sorted {
		if r.NeedsAttention() {
			attention = append(attention, r)
		}
	}
	slices.SortStableFunc(attention, func(a, b Result) int {
		if c := cmp.Compare(a.SuccessRate, b.SuccessRate); c != 0 {
			return c
		}
		return cmp.Compare(b.Total, a.Total)
	})

	ids := make([]string, 0, len(attention))
	for _, r := range attention {
		ids = append(ids, r.TemplateID)
	}
	return Overview{Results: sorted, NeedsAttention: ids, ComputedAt: now}
}
