package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aman12122/job-crawler/models"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	store := &PostgresStore{pool: pool}
	if err := store.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return store, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS companies (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		careers_url TEXT NOT NULL,
		strategy TEXT NOT NULL DEFAULT 'greenhouse',
		pagination_type TEXT NOT NULL DEFAULT 'offset',
		custom_config JSONB,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		last_crawled_at TIMESTAMPTZ,
		last_error TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS jobs (
		id UUID PRIMARY KEY,
		company_id BIGINT NOT NULL REFERENCES companies(id),
		external_id TEXT NOT NULL,
		title TEXT NOT NULL,
		url TEXT NOT NULL DEFAULT '',
		location TEXT NOT NULL DEFAULT '',
		department TEXT NOT NULL DEFAULT '',
		employment_type TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		analysis_status TEXT NOT NULL DEFAULT 'pending',
		ai_is_entry_level BOOLEAN,
		ai_confidence INTEGER,
		ai_years_required INTEGER,
		ai_reasoning TEXT NOT NULL DEFAULT '',
		first_seen_at TIMESTAMPTZ NOT NULL,
		last_seen_at TIMESTAMPTZ NOT NULL,
		UNIQUE (company_id, external_id)
	);

	CREATE TABLE IF NOT EXISTS crawl_runs (
		id BIGSERIAL PRIMARY KEY,
		company_id BIGINT NOT NULL,
		started_at TIMESTAMPTZ NOT NULL,
		finished_at TIMESTAMPTZ,
		status TEXT NOT NULL,
		pages_crawled INTEGER NOT NULL DEFAULT 0,
		discovered INTEGER NOT NULL DEFAULT 0,
		prefiltered INTEGER NOT NULL DEFAULT 0,
		detail_failed INTEGER NOT NULL DEFAULT 0,
		classified INTEGER NOT NULL DEFAULT 0,
		eligible INTEGER NOT NULL DEFAULT 0,
		left_pending INTEGER NOT NULL DEFAULT 0,
		warnings INTEGER NOT NULL DEFAULT 0,
		error_message TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS crawl_logs (
		id BIGSERIAL PRIMARY KEY,
		run_id BIGINT,
		timestamp TIMESTAMPTZ NOT NULL,
		level TEXT NOT NULL,
		message TEXT NOT NULL,
		company_id BIGINT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs (analysis_status, last_seen_at);
	CREATE INDEX IF NOT EXISTS idx_runs_company ON crawl_runs (company_id, started_at);`

	_, err := s.pool.Exec(ctx, schema)
	return err
}

// =============================================================================
// Companies
// =============================================================================

func (s *PostgresStore) UpsertCompany(ctx context.Context, c *models.Company) error {
	cfg, err := marshalConfig(c.CustomConfig)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO companies (name, careers_url, strategy, pagination_type, custom_config, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (name) DO UPDATE SET
			careers_url = EXCLUDED.careers_url,
			strategy = EXCLUDED.strategy,
			pagination_type = EXCLUDED.pagination_type,
			custom_config = EXCLUDED.custom_config,
			is_active = EXCLUDED.is_active
		RETURNING id`

	return s.pool.QueryRow(ctx, query,
		c.Name, c.CareersURL, c.Strategy, c.Pagination, cfg, c.IsActive,
	).Scan(&c.ID)
}

const companyColumns = `id, name, careers_url, strategy, pagination_type, custom_config, is_active, last_crawled_at, last_error`

func (s *PostgresStore) GetCompany(ctx context.Context, id int64) (*models.Company, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+companyColumns+` FROM companies WHERE id = $1`, id)
	c, err := scanCompany(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *PostgresStore) ListActiveCompanies(ctx context.Context) ([]models.Company, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+companyColumns+` FROM companies WHERE is_active ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var companies []models.Company
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, err
		}
		companies = append(companies, *c)
	}
	return companies, rows.Err()
}

func (s *PostgresStore) UpdateCompanyCrawlState(ctx context.Context, id int64, crawledAt time.Time, lastError string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE companies SET last_crawled_at = $2, last_error = $3 WHERE id = $1`,
		id, crawledAt, lastError)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCompany(row rowScanner) (*models.Company, error) {
	var c models.Company
	var cfg []byte
	if err := row.Scan(
		&c.ID, &c.Name, &c.CareersURL, &c.Strategy, &c.Pagination,
		&cfg, &c.IsActive, &c.LastCrawledAt, &c.LastError,
	); err != nil {
		return nil, err
	}
	if len(cfg) > 0 {
		if err := json.Unmarshal(cfg, &c.CustomConfig); err != nil {
			return nil, fmt.Errorf("decode custom_config: %w", err)
		}
	}
	return &c, nil
}

func marshalConfig(cfg map[string]string) ([]byte, error) {
	if cfg == nil {
		return nil, nil
	}
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encode custom_config: %w", err)
	}
	return data, nil
}

// =============================================================================
// Postings
// =============================================================================

const postingColumns = `id, company_id, external_id, title, url, location, department, employment_type,
	description, analysis_status, ai_is_entry_level, ai_confidence, ai_years_required, ai_reasoning,
	first_seen_at, last_seen_at`

// UpsertPosting is the single atomic reconciliation point. The status CASE
// prevents a pending re-discovery from clobbering a terminal verdict from an
// earlier run; first_seen_at is only ever written by the insert arm.
func (s *PostgresStore) UpsertPosting(ctx context.Context, p *models.JobPosting) (bool, error) {
	query := `
		INSERT INTO jobs (
			id, company_id, external_id, title, url, location, department, employment_type,
			description, analysis_status, ai_is_entry_level, ai_confidence, ai_years_required, ai_reasoning,
			first_seen_at, last_seen_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, NOW(), NOW())
		ON CONFLICT (company_id, external_id) DO UPDATE SET
			title = EXCLUDED.title,
			url = EXCLUDED.url,
			location = EXCLUDED.location,
			department = EXCLUDED.department,
			employment_type = EXCLUDED.employment_type,
			description = CASE WHEN EXCLUDED.description <> '' THEN EXCLUDED.description ELSE jobs.description END,
			analysis_status = CASE
				WHEN EXCLUDED.analysis_status = 'pending' AND jobs.analysis_status <> 'pending'
				THEN jobs.analysis_status ELSE EXCLUDED.analysis_status END,
			ai_is_entry_level = CASE
				WHEN EXCLUDED.analysis_status = 'pending' AND jobs.analysis_status <> 'pending'
				THEN jobs.ai_is_entry_level ELSE EXCLUDED.ai_is_entry_level END,
			ai_confidence = CASE
				WHEN EXCLUDED.analysis_status = 'pending' AND jobs.analysis_status <> 'pending'
				THEN jobs.ai_confidence ELSE EXCLUDED.ai_confidence END,
			ai_years_required = CASE
				WHEN EXCLUDED.analysis_status = 'pending' AND jobs.analysis_status <> 'pending'
				THEN jobs.ai_years_required ELSE EXCLUDED.ai_years_required END,
			ai_reasoning = CASE
				WHEN EXCLUDED.analysis_status = 'pending' AND jobs.analysis_status <> 'pending'
				THEN jobs.ai_reasoning ELSE EXCLUDED.ai_reasoning END,
			last_seen_at = GREATEST(jobs.last_seen_at, NOW())
		RETURNING id, first_seen_at, last_seen_at, (xmax = 0) AS inserted`

	var inserted bool
	err := s.pool.QueryRow(ctx, query,
		p.ID, p.CompanyID, p.ExternalID, p.Title, p.URL, p.Location, p.Department, p.EmploymentType,
		p.Description, p.Status, p.IsEntryLevel, p.Confidence, p.YearsRequired, p.Reasoning,
	).Scan(&p.ID, &p.FirstSeenAt, &p.LastSeenAt, &inserted)
	if err != nil {
		return false, err
	}
	return inserted, nil
}

func (s *PostgresStore) GetPosting(ctx context.Context, companyID int64, externalID string) (*models.JobPosting, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+postingColumns+` FROM jobs WHERE company_id = $1 AND external_id = $2`,
		companyID, externalID)

	p, err := scanPosting(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *PostgresStore) ListPostings(ctx context.Context, filter PostingFilter) ([]models.JobPosting, error) {
	query := `SELECT ` + postingColumns + ` FROM jobs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND analysis_status = $%d", len(args))
	}
	if filter.EntryLevel {
		query += " AND ai_is_entry_level = TRUE"
	}
	if !filter.FirstSeenAfter.IsZero() {
		args = append(args, filter.FirstSeenAfter)
		query += fmt.Sprintf(" AND first_seen_at >= $%d", len(args))
	}
	query += " ORDER BY last_seen_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var postings []models.JobPosting
	for rows.Next() {
		p, err := scanPosting(rows)
		if err != nil {
			return nil, err
		}
		postings = append(postings, *p)
	}
	return postings, rows.Err()
}

func (s *PostgresStore) DeletePostingsUnseenSince(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM jobs WHERE last_seen_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanPosting(row rowScanner) (*models.JobPosting, error) {
	var p models.JobPosting
	if err := row.Scan(
		&p.ID, &p.CompanyID, &p.ExternalID, &p.Title, &p.URL, &p.Location, &p.Department, &p.EmploymentType,
		&p.Description, &p.Status, &p.IsEntryLevel, &p.Confidence, &p.YearsRequired, &p.Reasoning,
		&p.FirstSeenAt, &p.LastSeenAt,
	); err != nil {
		return nil, err
	}
	return &p, nil
}

// =============================================================================
// Runs
// =============================================================================

func (s *PostgresStore) CreateRun(ctx context.Context, run *models.CrawlRun) error {
	query := `
		INSERT INTO crawl_runs (company_id, started_at, status)
		VALUES ($1, $2, $3)
		RETURNING id`
	return s.pool.QueryRow(ctx, query, run.CompanyID, run.StartedAt, run.Status).Scan(&run.ID)
}

func (s *PostgresStore) UpdateRun(ctx context.Context, run *models.CrawlRun) error {
	query := `
		UPDATE crawl_runs SET
			finished_at = $2, status = $3, pages_crawled = $4, discovered = $5,
			prefiltered = $6, detail_failed = $7, classified = $8, eligible = $9,
			left_pending = $10, warnings = $11, error_message = $12
		WHERE id = $1`
	_, err := s.pool.Exec(ctx, query,
		run.ID, run.FinishedAt, run.Status, run.PagesCrawled, run.Discovered,
		run.Prefiltered, run.DetailFailed, run.Classified, run.Eligible,
		run.LeftPending, run.Warnings, run.ErrorMessage)
	return err
}

func (s *PostgresStore) ListRecentRuns(ctx context.Context, limit int) ([]models.CrawlRun, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, company_id, started_at, finished_at, status, pages_crawled, discovered,
			prefiltered, detail_failed, classified, eligible, left_pending, warnings, error_message
		FROM crawl_runs ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []models.CrawlRun
	for rows.Next() {
		var r models.CrawlRun
		if err := rows.Scan(
			&r.ID, &r.CompanyID, &r.StartedAt, &r.FinishedAt, &r.Status, &r.PagesCrawled, &r.Discovered,
			&r.Prefiltered, &r.DetailFailed, &r.Classified, &r.Eligible, &r.LeftPending, &r.Warnings, &r.ErrorMessage,
		); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func (s *PostgresStore) Log(ctx context.Context, runID *int64, companyID int64, level models.LogLevel, message string) {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO crawl_logs (run_id, timestamp, level, message, company_id) VALUES ($1, $2, $3, $4, $5)`,
		runID, time.Now(), level, message, companyID)
	if err != nil {
		log.Printf("Warning: failed to write crawl log: %v", err)
	}
}
