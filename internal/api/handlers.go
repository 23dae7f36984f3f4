package api

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"book_harvester/internal/domain"
	"book_harvester/internal/harvest"
	"book_harvester/internal/stats"
)

const defaultJobListLimit = 20

// Harvester is the orchestrator surface the API exposes to operators.
type Harvester interface {
	Run(ctx context.Context, opts harvest.RunOptions) (*domain.JobResult, error)
	Pause() error
	Resume() error
	Stop() error
	Status() harvest.State
}

type JobReader interface {
	Get(ctx context.Context, id string) (*domain.JobResult, error)
	GetRecent(ctx context.Context, limit int) ([]domain.JobResult, error)
}

type StatsReader interface {
	GetAll(ctx context.Context) ([]domain.SourceStats, error)
}

type ConfigStore interface {
	GetAll(ctx context.Context) ([]domain.SourceConfig, error)
	Get(ctx context.Context, sourceID string) (*domain.SourceConfig, error)
	Update(ctx context.Context, cfg *domain.SourceConfig) error
}

type Handler struct {
	harvester Harvester
	jobs      JobReader
	stats     StatsReader
	configs   ConfigStore
	logger    *slog.Logger
}

func NewHandler(harvester Harvester, jobs JobReader, statsReader StatsReader, configs ConfigStore, logger *slog.Logger) *Handler {
	return &Handler{
		harvester: harvester,
		jobs:      jobs,
		stats:     statsReader,
		configs:   configs,
		logger:    logger.With("component", "api"),
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"harvest":   h.harvester.Status(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

type startJobRequest struct {
	DryRun    bool     `json:"dry_run"`
	BatchSize int      `json:"batch_size"`
	Sources   []string `json:"sources"`
}

// StartJob launches a harvest in the background and answers immediately.
// Progress lands in the job record once the run finishes.
func (h *Handler) StartJob(c *gin.Context) {
	var req startJobRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	if req.BatchSize < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "batch_size must be positive"})
		return
	}

	if h.harvester.Status() != harvest.StateIdle {
		c.JSON(http.StatusConflict, gin.H{"error": harvest.ErrJobInProgress.Error()})
		return
	}

	opts := harvest.RunOptions{
		DryRun:    req.DryRun,
		BatchSize: req.BatchSize,
		Sources:   req.Sources,
	}

	go func() {
		job, err := h.harvester.Run(context.Background(), opts)
		if errors.Is(err, harvest.ErrJobInProgress) {
			return
		}
		if err != nil {
			h.logger.Error("triggered harvest failed", "error", err)
			return
		}
		h.logger.Info("triggered harvest finished", "job_id", job.ID, "status", job.Status)
	}()

	c.JSON(http.StatusAccepted, gin.H{"status": "accepted", "dry_run": req.DryRun})
}

func (h *Handler) ListJobs(c *gin.Context) {
	limit := defaultJobListLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = parsed
	}

	jobs, err := h.jobs.GetRecent(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("list jobs", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"jobs": jobs})
}

func (h *Handler) GetJob(c *gin.Context) {
	job, err := h.jobs.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, sql.ErrNoRows) {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	if err != nil {
		h.logger.Error("get job", "job_id", c.Param("id"), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, job)
}

func (h *Handler) PauseHarvest(c *gin.Context) {
	h.control(c, h.harvester.Pause)
}

func (h *Handler) ResumeHarvest(c *gin.Context) {
	h.control(c, h.harvester.Resume)
}

func (h *Handler) StopHarvest(c *gin.Context) {
	h.control(c, h.harvester.Stop)
}

func (h *Handler) control(c *gin.Context, fn func() error) {
	if err := fn(); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "state": h.harvester.Status()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": h.harvester.Status()})
}

type sourceView struct {
	SourceID    string              `json:"source_id"`
	Enabled     bool                `json:"enabled"`
	Priority    int                 `json:"priority"`
	BatchSize   int                 `json:"batch_size"`
	RateLimitMS int64               `json:"rate_limit_ms"`
	Health      domain.HealthStatus `json:"health"`
	Stats       *domain.SourceStats `json:"stats,omitempty"`
}

func (h *Handler) ListSources(c *gin.Context) {
	ctx := c.Request.Context()

	configs, err := h.configs.GetAll(ctx)
	if err != nil {
		h.logger.Error("list source configs", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	allStats, err := h.stats.GetAll(ctx)
	if err != nil {
		h.logger.Error("list source stats", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	bySource := make(map[string]domain.SourceStats, len(allStats))
	for _, s := range allStats {
		bySource[s.SourceID] = s
	}

	now := time.Now()
	views := make([]sourceView, 0, len(configs))
	for _, cfg := range configs {
		view := sourceView{
			SourceID:    cfg.SourceID,
			Enabled:     cfg.Enabled,
			Priority:    cfg.Priority,
			BatchSize:   cfg.BatchSize,
			RateLimitMS: cfg.RateLimit.Milliseconds(),
		}
		if s, ok := bySource[cfg.SourceID]; ok {
			view.Stats = &s
			view.Health = stats.Derive(s, now)
		} else {
			view.Health = stats.Derive(domain.SourceStats{}, now)
		}
		views = append(views, view)
	}

	c.JSON(http.StatusOK, gin.H{"sources": views})
}

type updateSourceRequest struct {
	Enabled     *bool  `json:"enabled"`
	Priority    *int   `json:"priority"`
	BatchSize   *int   `json:"batch_size"`
	RateLimitMS *int64 `json:"rate_limit_ms"`
}

func (h *Handler) UpdateSource(c *gin.Context) {
	ctx := c.Request.Context()
	sourceID := c.Param("id")

	var req updateSourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cfg, err := h.configs.Get(ctx, sourceID)
	if errors.Is(err, sql.ErrNoRows) {
		c.JSON(http.StatusNotFound, gin.H{"error": "source not found"})
		return
	}
	if err != nil {
		h.logger.Error("get source config", "source", sourceID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	if req.Enabled != nil {
		cfg.Enabled = *req.Enabled
	}
	if req.Priority != nil {
		cfg.Priority = *req.Priority
	}
	if req.BatchSize != nil {
		if *req.BatchSize < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "batch_size must be positive"})
			return
		}
		cfg.BatchSize = *req.BatchSize
	}
	if req.RateLimitMS != nil {
		if *req.RateLimitMS < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "rate_limit_ms must not be negative"})
			return
		}
		cfg.RateLimit = time.Duration(*req.RateLimitMS) * time.Millisecond
	}

	if err := h.configs.Update(ctx, cfg); err != nil {
		h.logger.Error("update source config", "source", sourceID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"source_id": sourceID, "enabled": cfg.Enabled})
}
