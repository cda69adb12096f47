package models

import "time"

type Strategy string

const (
	StrategyGreenhouse Strategy = "greenhouse"
	StrategyLever      Strategy = "lever"
	StrategyCustom     Strategy = "custom"
)

type PaginationKind string

const (
	PaginationOffset PaginationKind = "offset"
	PaginationToken  PaginationKind = "token"
	PaginationLink   PaginationKind = "link"
	PaginationNone   PaginationKind = "none"
)

// Company is a tracked career site. Rows are created by admin action or the
// YAML seed loader; the pipeline only reads them and bumps the crawl state.
type Company struct {
	ID            int64             `json:"id" db:"id" yaml:"id"`
	Name          string            `json:"name" db:"name" yaml:"name"`
	CareersURL    string            `json:"careers_url" db:"careers_url" yaml:"careers_url"`
	Strategy      Strategy          `json:"strategy" db:"strategy" yaml:"strategy"`
	Pagination    PaginationKind    `json:"pagination_type" db:"pagination_type" yaml:"pagination_type"`
	CustomConfig  map[string]string `json:"custom_config,omitempty" db:"custom_config" yaml:"custom_config"`
	IsActive      bool              `json:"is_active" db:"is_active" yaml:"is_active"`
	LastCrawledAt *time.Time        `json:"last_crawled_at" db:"last_crawled_at" yaml:"-"`
	LastError     string            `json:"last_error" db:"last_error" yaml:"-"`
}
