package scoring

type Action string

const (
	ActionApprove             Action = "approve"
	ActionReviewMissingFields Action = "review_missing_fields"
	ActionVerifyNumericFields Action = "verify_numeric_fields"
	ActionVerifyCategory      Action = "verify_category"
	ActionReject              Action = "reject"

	// RejectThreshold is the score under which rejecting is suggested.
	RejectThreshold = 30.0
)

// SuggestActions lists the reviewer actions matching the defects of b, most specific first.
// An empty list leaves the decision to the reviewer.
func SuggestActions(b Breakdown) []Action {
	if b.NoData {
		return []Action{ActionReject}
	}

	actions := []Action{}
	if len(b.MissingFields) > 0 {
		actions = append(actions, ActionReviewMissingFields)
	}
	if len(b.MalformedFields) > 0 {
		actions = append(actions, ActionVerifyNumericFields)
	}
	if b.UnresolvedCategory {
		actions = append(actions, ActionVerifyCategory)
	}

	switch {
	case b.Score < RejectThreshold:
		actions = append(actions, ActionReject)
	case len(actions) == 0 && b.Score >= MediumConfidenceThreshold:
		actions = append(actions, ActionApprove)
	}
	return actions
}
