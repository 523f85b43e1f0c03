package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	// MetaCancelled marks an attempt abandoned because its caller went away.
	MetaCancelled = "cancelled"
	// MetaStaleClaim marks a claim released after its worker stopped reporting.
	MetaStaleClaim = "stale_claim"
)

// ProcessingLogEntry is one row of the append-only stage audit trail.
type ProcessingLogEntry struct {
	ID           uint              `gorm:"primaryKey;autoIncrement"`
	SubmissionID uuid.UUID         `gorm:"not null;index:processing_log_submission_id_idx;type:VARCHAR(255)"`
	Stage        StageName         `gorm:"not null;type:VARCHAR(50);index:processing_log_stage_status_idx"`
	Status       StageStatus       `gorm:"not null;type:VARCHAR(20);index:processing_log_stage_status_idx"`
	Attempt      int               `gorm:"not null;default:0"`
	DurationMs   int64             `gorm:"not null;default:0"`
	ErrorMessage *string           `gorm:"type:TEXT"`
	Metadata     datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt    time.Time         `gorm:"not null;index:processing_log_created_at_idx"`
}

func (ProcessingLogEntry) TableName() string { return "processing_log_entries" }

func (p ProcessingLogEntry) String() string {
	val, _ := json.Marshal(p)
	return string(val)
}

func NewLogEntry(submissionID uuid.UUID, stage StageName, status StageStatus, attempt int) ProcessingLogEntry {
	return ProcessingLogEntry{
		SubmissionID: submissionID,
		Stage:        stage,
		Status:       status,
		Attempt:      attempt,
		Metadata:     datatypes.JSONMap{},
	}
}

func (p ProcessingLogEntry) WithDuration(d time.Duration) ProcessingLogEntry {
	p.DurationMs = d.Milliseconds()
	return p
}

func (p ProcessingLogEntry) WithError(err error) ProcessingLogEntry {
	if err != nil {
		msg := err.Error()
		p.ErrorMessage = &msg
	}
	return p
}

func (p ProcessingLogEntry) WithMeta(key string, value any) ProcessingLogEntry {
	if p.Metadata == nil {
		p.Metadata = datatypes.JSONMap{}
	}
	p.Metadata[key] = value
	return p
}

// Interrupted reports whether the entry records an attempt stopped from outside rather than an extraction error.
func (p ProcessingLogEntry) Interrupted() bool {
	for _, key := range []string{MetaCancelled, MetaStaleClaim} {
		if flag, ok := p.Metadata[key].(bool); ok && flag {
			return true
		}
	}
	return false
}

type ProcessingLog []ProcessingLogEntry
