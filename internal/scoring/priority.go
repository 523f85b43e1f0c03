package scoring

import (
	"time"

	"github.com/supplier-intake/intake-pipeline/internal/store/model"
)

const (
	HighConfidenceThreshold   = 80.0
	MediumConfidenceThreshold = 50.0

	AgeBumpThreshold  = 24 * time.Hour
	AgeForceThreshold = 72 * time.Hour

	// A supplier needs this many decided submissions before its history is trusted.
	MinDecidedHistory = 5
	// Suppliers at or below this defect rate are considered reliable.
	ReliableDefectRate = 0.10
)

// ComputePriority maps a confidence score to a review priority.
// Old items are bumped, very old items are always high. A low score from a reliable supplier is an
// anomaly and is bumped one tier so it surfaces earlier.
func ComputePriority(score float64, age time.Duration, history model.DecisionCount) model.Priority {
	var p model.Priority
	switch {
	case score >= HighConfidenceThreshold:
		p = model.PriorityLow
	case score >= MediumConfidenceThreshold:
		p = model.PriorityMedium
	default:
		p = model.PriorityHigh
	}

	if age >= AgeForceThreshold {
		return model.PriorityHigh
	}
	if age >= AgeBumpThreshold {
		p = p.Bump()
	}
	if reliable(history) && score < HighConfidenceThreshold {
		p = p.Bump()
	}
	return p
}

func reliable(history model.DecisionCount) bool {
	return history.Decided() >= MinDecidedHistory && history.DefectRate() <= ReliableDefectRate
}
