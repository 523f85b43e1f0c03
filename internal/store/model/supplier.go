package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Supplier struct {
	ID                  uuid.UUID                           `gorm:"primaryKey;column:id;type:VARCHAR(255);"`
	ContactID           string                              `gorm:"not null;uniqueIndex:suppliers_contact_id_idx;type:VARCHAR(255)"`
	Name                string                              `gorm:"type:VARCHAR(255)"`
	Active              bool                                `gorm:"not null"`
	Metrics             datatypes.JSONType[SupplierMetrics] `gorm:"type:jsonb"`
	MetricsComputedAt   *time.Time
	PreferredCategories datatypes.JSONSlice[string] `gorm:"type:jsonb"`
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

type SupplierList []Supplier

func (s Supplier) String() string {
	val, _ := json.Marshal(s)
	return string(val)
}

// SupplierMetrics is a derived snapshot; it can always be recomputed from submissions.
type SupplierMetrics struct {
	Submissions       int     `json:"submissions"`
	Approved          int     `json:"approved"`
	Rejected          int     `json:"rejected"`
	Failed            int     `json:"failed"`
	ApprovalRate      float64 `json:"approval_rate"`
	AverageConfidence float64 `json:"average_confidence"`
}
