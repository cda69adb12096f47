// Package api exposes the operational HTTP surface: trigger crawls, read
// runs, and query postings.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/aman12122/job-crawler/models"
	"github.com/aman12122/job-crawler/pipeline"
	"github.com/aman12122/job-crawler/storage"
)

type Server struct {
	store  storage.Store
	runner *pipeline.Runner
	http   *http.Server
}

func NewServer(port string, store storage.Store, runner *pipeline.Runner) *Server {
	s := &Server{store: store, runner: runner}

	gin.SetMode(gin.ReleaseMode)
	r := gin.Default()
	corsCfg := cors.DefaultConfig()
	corsCfg.AllowAllOrigins = true
	corsCfg.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	r.Use(cors.New(corsCfg))

	r.GET("/health", s.health)
	r.POST("/crawl", s.crawlAll)
	r.POST("/crawl/:companyID", s.crawlCompany)
	r.GET("/runs", s.listRuns)
	r.GET("/jobs", s.listJobs)

	s.http = &http.Server{
		Addr:              ":" + port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) ListenAndServe() error {
	return s.http.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// crawlAll kicks off a background crawl of every active company. Companies
// already mid-crawl are skipped by the runner rather than queued twice.
func (s *Server) crawlAll(c *gin.Context) {
	companies, err := s.store.ListActiveCompanies(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	started := 0
	for _, company := range companies {
		if err := s.runner.Trigger(c.Request.Context(), company.ID); err == nil {
			started++
		}
	}
	c.JSON(http.StatusAccepted, gin.H{"started": started, "companies": len(companies)})
}

func (s *Server) crawlCompany(c *gin.Context) {
	companyID, err := strconv.ParseInt(c.Param("companyID"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid company id"})
		return
	}

	switch err := s.runner.Trigger(c.Request.Context(), companyID); {
	case err == nil:
		c.JSON(http.StatusAccepted, gin.H{"company_id": companyID, "status": "started"})
	case errors.Is(err, pipeline.ErrCrawlInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, pipeline.ErrUnknownCompany):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func (s *Server) listRuns(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	runs, err := s.store.ListRecentRuns(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func (s *Server) listJobs(c *gin.Context) {
	filter := storage.PostingFilter{
		Status:     models.AnalysisStatus(c.Query("status")),
		EntryLevel: c.Query("entry_level") == "true",
	}
	filter.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "100"))
	if since := c.Query("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "since must be RFC3339"})
			return
		}
		filter.FirstSeenAfter = t
	}

	jobs, err := s.store.ListPostings(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs, "count": len(jobs)})
}
