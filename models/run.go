package models

import "time"

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// CrawlRun is one pipeline execution for one company. Append-only history.
type CrawlRun struct {
	ID            int64      `json:"id" db:"id"`
	CompanyID     int64      `json:"company_id" db:"company_id"`
	StartedAt     time.Time  `json:"started_at" db:"started_at"`
	FinishedAt    *time.Time `json:"finished_at" db:"finished_at"`
	Status        RunStatus  `json:"status" db:"status"`
	PagesCrawled  int        `json:"pages_crawled" db:"pages_crawled"`
	Discovered    int        `json:"discovered" db:"discovered"`
	Prefiltered   int        `json:"prefiltered" db:"prefiltered"`
	DetailFailed  int        `json:"detail_failed" db:"detail_failed"`
	Classified    int        `json:"classified" db:"classified"`
	Eligible      int        `json:"eligible" db:"eligible"`
	LeftPending   int        `json:"left_pending" db:"left_pending"`
	Warnings      int        `json:"warnings" db:"warnings"`
	ErrorMessage  string     `json:"error_message" db:"error_message"`
}

type LogLevel string

const (
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// CrawlLog is a structured per-run log row kept for operational monitoring.
type CrawlLog struct {
	ID        int64     `json:"id" db:"id"`
	RunID     *int64    `json:"run_id" db:"run_id"`
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
	Level     LogLevel  `json:"level" db:"level"`
	Message   string    `json:"message" db:"message"`
	CompanyID int64     `json:"company_id" db:"company_id"`
}
