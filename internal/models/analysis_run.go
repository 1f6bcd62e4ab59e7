package models

import (
	"time"

	"github.com/google/uuid"
)

type RunOutcome string

const (
	OutcomeCompleted RunOutcome = "completed"
	OutcomeRejected  RunOutcome = "rejected"
	OutcomeFailed    RunOutcome = "failed"
	OutcomeCancelled RunOutcome = "cancelled"
)

type RunSource string

const (
	SourceUpload RunSource = "upload"
	SourceText   RunSource = "text"
)

// AnalysisRun is the audit record of one pipeline run. It holds metadata
// only; document text and oracle output are never stored.
type AnalysisRun struct {
	ID             uuid.UUID  `gorm:"type:uuid;primary_key" json:"id"`
	RequestID      string     `gorm:"type:text;index" json:"request_id"`
	Source         RunSource  `gorm:"type:text;not null" json:"source"`
	Outcome        RunOutcome `gorm:"type:text;not null" json:"outcome"`
	ErrorKind      string     `gorm:"type:text" json:"error_kind,omitempty"`
	PageCount      int        `json:"page_count"`
	CharCount      int        `json:"char_count"`
	GeneralMatches int        `json:"general_matches"`
	LineOfBusiness string     `gorm:"type:text" json:"line_of_business,omitempty"`
	// CategoryScores holds the keyword score of every lexicon category.
	CategoryScores map[string]int `gorm:"serializer:json;type:text" json:"category_scores,omitempty"`
	OracleAttempts int            `json:"oracle_attempts"`
	GreatCount     int            `json:"great_count"`
	GoodCount      int            `json:"good_count"`
	BadCount       int            `json:"bad_count"`
	UnclearCount   int            `json:"unclear_count"`
	Warnings       string         `gorm:"type:text" json:"warnings,omitempty"`
	DurationMs     int64          `json:"duration_ms"`
	CreatedAt      time.Time      `json:"created_at"`
}

func (AnalysisRun) TableName() string {
	return "analysis_runs"
}
