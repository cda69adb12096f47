package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/aman12122/job-crawler/models"
)

type Config struct {
	DatabaseURL  string
	SQLitePath   string
	RedisURL     string
	Port         string
	LogPath      string
	CompaniesDir string

	Gemini    GeminiConfig
	Crawler   CrawlerConfig
	Prefilter PrefilterConfig
	Scheduler SchedulerConfig
	Retention RetentionConfig
	Archive   ArchiveConfig
}

type GeminiConfig struct {
	APIKey            string
	Model             string
	RequestsPerWindow int
	Window            time.Duration
}

type CrawlerConfig struct {
	MaxConcurrentFetches int
	RequestDelay         time.Duration
	RequestTimeout       time.Duration
	UserAgent            string
	DescriptionMaxChars  int
	RunDeadline          time.Duration
	GracePeriod          time.Duration
	MaxParallelCompanies int
}

type PrefilterConfig struct {
	RejectTerms []string
}

type SchedulerConfig struct {
	Cron     string
	Interval time.Duration
}

type RetentionConfig struct {
	Days           int
	SweepInterval  time.Duration
	DigestInterval time.Duration
}

type ArchiveConfig struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// Default disqualifying title terms. Seniority/leadership markers only; an
// unqualified title gets the benefit of the doubt and goes to the classifier.
var defaultRejectTerms = []string{
	"senior", "principal", "staff", "lead", "manager", "director", "vp",
	"head of", "architect", "sr.", "mgr", "ii", "iii", "iv",
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		SQLitePath:   getEnv("SQLITE_PATH", "crawler.db"),
		RedisURL:     os.Getenv("REDIS_URL"),
		Port:         getEnv("PORT", "8000"),
		LogPath:      getEnv("LOG_PATH", "crawler.log"),
		CompaniesDir: getEnv("COMPANIES_DIR", "config/companies"),
		Gemini: GeminiConfig{
			APIKey:            os.Getenv("GEMINI_API_KEY"),
			Model:             getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
			RequestsPerWindow: getEnvInt("AI_REQUESTS_PER_MINUTE", 15),
			Window:            getEnvDuration("AI_WINDOW", time.Minute),
		},
		Crawler: CrawlerConfig{
			MaxConcurrentFetches: getEnvInt("MAX_CONCURRENT_FETCHES", 5),
			RequestDelay:         getEnvDuration("REQUEST_DELAY", time.Second),
			RequestTimeout:       getEnvDuration("REQUEST_TIMEOUT", 30*time.Second),
			UserAgent:            getEnv("USER_AGENT", "JobCrawler/2.0 (Entry Level Job Finder)"),
			DescriptionMaxChars:  getEnvInt("DESCRIPTION_MAX_CHARS", 10000),
			RunDeadline:          getEnvDuration("RUN_DEADLINE", 30*time.Minute),
			GracePeriod:          getEnvDuration("RUN_GRACE_PERIOD", 30*time.Second),
			MaxParallelCompanies: getEnvInt("MAX_PARALLEL_COMPANIES", 2),
		},
		Prefilter: PrefilterConfig{
			RejectTerms: getEnvList("PREFILTER_REJECT_TERMS", defaultRejectTerms),
		},
		Scheduler: SchedulerConfig{
			Cron: os.Getenv("CRAWL_CRON"),
		},
		Retention: RetentionConfig{
			Days:           getEnvInt("RETENTION_DAYS", 30),
			SweepInterval:  getEnvDuration("RETENTION_SWEEP_INTERVAL", 12*time.Hour),
			DigestInterval: getEnvDuration("DIGEST_INTERVAL", 24*time.Hour),
		},
		Archive: ArchiveConfig{
			Bucket:          os.Getenv("ARCHIVE_S3_BUCKET"),
			Region:          getEnv("ARCHIVE_S3_REGION", "us-east-1"),
			Endpoint:        os.Getenv("ARCHIVE_S3_ENDPOINT"),
			AccessKeyID:     os.Getenv("ARCHIVE_S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("ARCHIVE_S3_SECRET_ACCESS_KEY"),
		},
	}

	if interval := os.Getenv("CRAWL_INTERVAL"); interval != "" {
		if d, err := time.ParseDuration(interval); err == nil {
			cfg.Scheduler.Interval = d
		}
	}

	return cfg, nil
}

// LoadCompanySeeds reads per-company YAML files from CompaniesDir. A missing
// directory is fine; deployments that manage companies directly in the store
// don't need one.
func (c *Config) LoadCompanySeeds() ([]models.Company, error) {
	entries, err := os.ReadDir(c.CompaniesDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var companies []models.Company
	for _, entry := range entries {
		ext := filepath.Ext(entry.Name())
		if entry.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}

		path := filepath.Join(c.CompaniesDir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}

		var company models.Company
		if err := yaml.Unmarshal(data, &company); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		if company.Name == "" || company.CareersURL == "" {
			return nil, fmt.Errorf("%s: name and careers_url are required", path)
		}
		if company.Strategy == "" {
			company.Strategy = models.StrategyGreenhouse
		}
		if company.Pagination == "" {
			company.Pagination = models.PaginationOffset
		}
		companies = append(companies, company)
	}

	return companies, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func getEnvList(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}
