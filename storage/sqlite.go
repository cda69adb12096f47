package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/aman12122/job-crawler/models"
)

// SQLiteStore is the zero-infrastructure store for single-host deployments.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	// SQLite allows one writer; funnel everything through one connection to
	// keep upserts atomic without SQLITE_BUSY churn.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS companies (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		careers_url TEXT NOT NULL,
		strategy TEXT NOT NULL DEFAULT 'greenhouse',
		pagination_type TEXT NOT NULL DEFAULT 'offset',
		custom_config TEXT,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		last_crawled_at DATETIME,
		last_error TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS jobs (
		id TEXT PRIMARY KEY,
		company_id INTEGER NOT NULL,
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
		first_seen_at DATETIME NOT NULL,
		last_seen_at DATETIME NOT NULL,
		UNIQUE (company_id, external_id)
	);

	CREATE TABLE IF NOT EXISTS crawl_runs (
		id INTEGER PRIMARY KEY,
		company_id INTEGER NOT NULL,
		started_at DATETIME NOT NULL,
		finished_at DATETIME,
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
		id INTEGER PRIMARY KEY,
		run_id INTEGER,
		timestamp DATETIME NOT NULL,
		level TEXT NOT NULL,
		message TEXT NOT NULL,
		company_id INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs (analysis_status, last_seen_at);
	CREATE INDEX IF NOT EXISTS idx_runs_company ON crawl_runs (company_id, started_at);`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// Companies
// =============================================================================

func (s *SQLiteStore) UpsertCompany(ctx context.Context, c *models.Company) error {
	cfg, err := marshalConfig(c.CustomConfig)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO companies (name, careers_url, strategy, pagination_type, custom_config, is_active)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET
			careers_url = excluded.careers_url,
			strategy = excluded.strategy,
			pagination_type = excluded.pagination_type,
			custom_config = excluded.custom_config,
			is_active = excluded.is_active
		RETURNING id`

	return s.db.QueryRowContext(ctx, query,
		c.Name, c.CareersURL, c.Strategy, c.Pagination, cfg, c.IsActive,
	).Scan(&c.ID)
}

func (s *SQLiteStore) GetCompany(ctx context.Context, id int64) (*models.Company, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+companyColumns+` FROM companies WHERE id = ?`, id)
	c, err := scanCompany(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *SQLiteStore) ListActiveCompanies(ctx context.Context) ([]models.Company, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+companyColumns+` FROM companies WHERE is_active ORDER BY id`)
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

func (s *SQLiteStore) UpdateCompanyCrawlState(ctx context.Context, id int64, crawledAt time.Time, lastError string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE companies SET last_crawled_at = ?, last_error = ? WHERE id = ?`,
		crawledAt, lastError, id)
	return err
}

// =============================================================================
// Postings
// =============================================================================

// UpsertPosting mirrors the Postgres guard: inserts set first_seen_at once,
// updates never rewrite it, and a pending re-discovery cannot clobber a
// terminal status. The single-connection pool makes the statement atomic.
func (s *SQLiteStore) UpsertPosting(ctx context.Context, p *models.JobPosting) (bool, error) {
	now := time.Now().UTC()

	query := `
		INSERT INTO jobs (
			id, company_id, external_id, title, url, location, department, employment_type,
			description, analysis_status, ai_is_entry_level, ai_confidence, ai_years_required, ai_reasoning,
			first_seen_at, last_seen_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (company_id, external_id) DO UPDATE SET
			title = excluded.title,
			url = excluded.url,
			location = excluded.location,
			department = excluded.department,
			employment_type = excluded.employment_type,
			description = CASE WHEN excluded.description <> '' THEN excluded.description ELSE jobs.description END,
			analysis_status = CASE
				WHEN excluded.analysis_status = 'pending' AND jobs.analysis_status <> 'pending'
				THEN jobs.analysis_status ELSE excluded.analysis_status END,
			ai_is_entry_level = CASE
				WHEN excluded.analysis_status = 'pending' AND jobs.analysis_status <> 'pending'
				THEN jobs.ai_is_entry_level ELSE excluded.ai_is_entry_level END,
			ai_confidence = CASE
				WHEN excluded.analysis_status = 'pending' AND jobs.analysis_status <> 'pending'
				THEN jobs.ai_confidence ELSE excluded.ai_confidence END,
			ai_years_required = CASE
				WHEN excluded.analysis_status = 'pending' AND jobs.analysis_status <> 'pending'
				THEN jobs.ai_years_required ELSE excluded.ai_years_required END,
			ai_reasoning = CASE
				WHEN excluded.analysis_status = 'pending' AND jobs.analysis_status <> 'pending'
				THEN jobs.ai_reasoning ELSE excluded.ai_reasoning END,
			last_seen_at = MAX(jobs.last_seen_at, excluded.last_seen_at)
		RETURNING id, first_seen_at, last_seen_at`

	var id string
	err := s.db.QueryRowContext(ctx, query,
		p.ID.String(), p.CompanyID, p.ExternalID, p.Title, p.URL, p.Location, p.Department, p.EmploymentType,
		p.Description, p.Status, p.IsEntryLevel, p.Confidence, p.YearsRequired, p.Reasoning,
		now, now,
	).Scan(&id, &p.FirstSeenAt, &p.LastSeenAt)
	if err != nil {
		return false, err
	}
	// The insert kept our fresh UUID; an update returned the existing one.
	return id == p.ID.String(), nil
}

func (s *SQLiteStore) GetPosting(ctx context.Context, companyID int64, externalID string) (*models.JobPosting, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+postingColumns+` FROM jobs WHERE company_id = ? AND external_id = ?`,
		companyID, externalID)

	p, err := scanSQLitePosting(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *SQLiteStore) ListPostings(ctx context.Context, filter PostingFilter) ([]models.JobPosting, error) {
	query := `SELECT ` + postingColumns + ` FROM jobs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += " AND analysis_status = ?"
		args = append(args, filter.Status)
	}
	if filter.EntryLevel {
		query += " AND ai_is_entry_level = TRUE"
	}
	if !filter.FirstSeenAfter.IsZero() {
		query += " AND first_seen_at >= ?"
		args = append(args, filter.FirstSeenAfter)
	}
	query += " ORDER BY last_seen_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var postings []models.JobPosting
	for rows.Next() {
		p, err := scanSQLitePosting(rows)
		if err != nil {
			return nil, err
		}
		postings = append(postings, *p)
	}
	return postings, rows.Err()
}

func (s *SQLiteStore) DeletePostingsUnseenSince(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE last_seen_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanSQLitePosting(row rowScanner) (*models.JobPosting, error) {
	var p models.JobPosting
	var id string
	if err := row.Scan(
		&id, &p.CompanyID, &p.ExternalID, &p.Title, &p.URL, &p.Location, &p.Department, &p.EmploymentType,
		&p.Description, &p.Status, &p.IsEntryLevel, &p.Confidence, &p.YearsRequired, &p.Reasoning,
		&p.FirstSeenAt, &p.LastSeenAt,
	); err != nil {
		return nil, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("job %s: %w", id, err)
	}
	p.ID = parsed
	return &p, nil
}

// =============================================================================
// Runs
// =============================================================================

func (s *SQLiteStore) CreateRun(ctx context.Context, run *models.CrawlRun) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO crawl_runs (company_id, started_at, status) VALUES (?, ?, ?)`,
		run.CompanyID, run.StartedAt, run.Status)
	if err != nil {
		return err
	}
	run.ID, err = res.LastInsertId()
	return err
}

func (s *SQLiteStore) UpdateRun(ctx context.Context, run *models.CrawlRun) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE crawl_runs SET
			finished_at = ?, status = ?, pages_crawled = ?, discovered = ?,
			prefiltered = ?, detail_failed = ?, classified = ?, eligible = ?,
			left_pending = ?, warnings = ?, error_message = ?
		WHERE id = ?`,
		run.FinishedAt, run.Status, run.PagesCrawled, run.Discovered,
		run.Prefiltered, run.DetailFailed, run.Classified, run.Eligible,
		run.LeftPending, run.Warnings, run.ErrorMessage, run.ID)
	return err
}

func (s *SQLiteStore) ListRecentRuns(ctx context.Context, limit int) ([]models.CrawlRun, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, company_id, started_at, finished_at, status, pages_crawled, discovered,
			prefiltered, detail_failed, classified, eligible, left_pending, warnings, error_message
		FROM crawl_runs ORDER BY started_at DESC LIMIT ?`, limit)
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

func (s *SQLiteStore) Log(ctx context.Context, runID *int64, companyID int64, level models.LogLevel, message string) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO crawl_logs (run_id, timestamp, level, message, company_id) VALUES (?, ?, ?, ?, ?)`,
		runID, time.Now(), level, message, companyID)
	if err != nil {
		log.Printf("Warning: failed to write crawl log: %v", err)
	}
}
