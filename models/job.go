package models

import (
	"time"

	"github.com/google/uuid"
)

type AnalysisStatus string

const (
	AnalysisPending  AnalysisStatus = "pending"
	AnalysisAnalyzed AnalysisStatus = "analyzed"
	AnalysisFailed   AnalysisStatus = "failed"
	AnalysisSkipped  AnalysisStatus = "skipped"
)

// Terminal reports whether the status accounts for a final per-run outcome.
func (s AnalysisStatus) Terminal() bool {
	return s == AnalysisAnalyzed || s == AnalysisFailed || s == AnalysisSkipped
}

// JobStub is a listing-page record before detail enrichment. It lives only
// in memory during a run and is never persisted directly.
type JobStub struct {
	ExternalID     string `json:"external_id"`
	Title          string `json:"title"`
	URL            string `json:"url"`
	Location       string `json:"location,omitempty"`
	Department     string `json:"department,omitempty"`
	EmploymentType string `json:"employment_type,omitempty"`
}

// Verdict is the structured eligibility result from the classifier.
type Verdict struct {
	IsEntryLevel bool   `json:"is_entry_level"`
	Confidence   int    `json:"confidence"`
	MinYears     int    `json:"min_years_experience"`
	Reasoning    string `json:"reasoning"`
}

// JobPosting is the durable entity. The (CompanyID, ExternalID) pair is the
// deduplication key; re-discovery updates the row instead of creating one.
type JobPosting struct {
	ID             uuid.UUID      `json:"id" db:"id"`
	CompanyID      int64          `json:"company_id" db:"company_id"`
	ExternalID     string         `json:"external_id" db:"external_id"`
	Title          string         `json:"title" db:"title"`
	URL            string         `json:"url" db:"url"`
	Location       string         `json:"location" db:"location"`
	Department     string         `json:"department" db:"department"`
	EmploymentType string         `json:"employment_type" db:"employment_type"`
	Description    string         `json:"description" db:"description"`
	Status         AnalysisStatus `json:"analysis_status" db:"analysis_status"`
	IsEntryLevel   *bool          `json:"ai_is_entry_level" db:"ai_is_entry_level"`
	Confidence     *int           `json:"ai_confidence" db:"ai_confidence"`
	YearsRequired  *int           `json:"ai_years_required" db:"ai_years_required"`
	Reasoning      string         `json:"ai_reasoning" db:"ai_reasoning"`
	FirstSeenAt    time.Time      `json:"first_seen_at" db:"first_seen_at"`
	LastSeenAt     time.Time      `json:"last_seen_at" db:"last_seen_at"`
}

// NewPosting builds a pending posting from a stub.
func NewPosting(companyID int64, stub JobStub) *JobPosting {
	return &JobPosting{
		ID:             uuid.New(),
		CompanyID:      companyID,
		ExternalID:     stub.ExternalID,
		Title:          stub.Title,
		URL:            stub.URL,
		Location:       stub.Location,
		Department:     stub.Department,
		EmploymentType: stub.EmploymentType,
		Status:         AnalysisPending,
	}
}

// ApplyVerdict records a successful classification.
func (p *JobPosting) ApplyVerdict(v *Verdict) {
	p.Status = AnalysisAnalyzed
	entry := v.IsEntryLevel
	conf := v.Confidence
	years := v.MinYears
	p.IsEntryLevel = &entry
	p.Confidence = &conf
	p.YearsRequired = &years
	p.Reasoning = v.Reasoning
}
