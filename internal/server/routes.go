package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/bagula/platform/internal/analytics"
	"github.com/bagula/platform/internal/baseline"
	"github.com/bagula/platform/internal/ingest"
	"github.com/bagula/platform/internal/models"
	"github.com/bagula/platform/internal/opportunity"
	"github.com/bagula/platform/internal/scheduler"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// registerRoutes sets up all API routes on the Gin router.
func registerRoutes(router *gin.Engine, opts Opts) {
	router.GET("/health", handleHealth())
	router.GET("/metrics", handlePlatformMetrics(opts.DB))

	v1 := router.Group("/v1", requireAPIKey(opts.Config))
	v1.POST("/sessions/ingest", handleIngest(opts))
	v1.GET("/sessions/:id", handleGetSession(opts.DB))
	v1.GET("/sessions/:id/opportunities", handleSessionOpportunities(opts.DB))
	v1.GET("/agents/:name/sessions", handleAgentSessions(opts.DB))
	v1.GET("/agents/:name/metrics", handleAgentMetrics(opts.DB))
	v1.GET("/agents/:name/anomalies", handleAgentAnomalies(opts))
	v1.GET("/agents/:name/opportunities", handleAgentOpportunities(opts.DB))
	v1.POST("/opportunities/:id/resolve", handleResolveOpportunity(opts.DB))
	v1.POST("/agents/:name/baseline", handleSaveBaseline(opts.DB))
	v1.GET("/agents/:name/baseline", handleActiveBaseline(opts.DB))
	v1.GET("/agents/:name/baseline/history", handleBaselineHistory(opts.DB))
}

func handleHealth() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"service":   "bagula-platform",
			"version":   Version,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}
}

func handlePlatformMetrics(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var sessions int64
		if err := db.Model(&models.Session{}).Count(&sessions).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		var agents int64
		db.Model(&models.Session{}).Distinct("agent_name").Count(&agents)

		jobs, err := scheduler.Counts(db)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"sessions_processed": sessions,
			"active_agents":      agents,
			"pending_jobs":       jobs[models.JobPending],
			"running_jobs":       jobs[models.JobRunning],
			"failed_jobs":        jobs[models.JobFailed],
		})
	}
}

func handleIngest(opts Opts) gin.HandlerFunc {
	return func(c *gin.Context) {
		var batch ingest.Batch
		if err := c.ShouldBindJSON(&batch); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := batch.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		stored, err := ingest.StoreBatch(opts.DB, opts.Prices, &batch)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"success":           true,
			"sessions_received": len(batch.Sessions),
			"sessions_stored":   stored,
		})
	}
}

func handleGetSession(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var session models.Session
		err := db.Preload("Turns", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("turn_number ASC")
		}).Preload("Turns.ModelCalls").Preload("Turns.ToolCalls").
			Where("id = ?", c.Param("id")).First(&session).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, session)
	}
}

func handleAgentSessions(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		agent := c.Param("name")
		limit := intQuery(c, "limit", 100)
		offset := intQuery(c, "offset", 0)

		var sessions []models.Session
		if err := db.Where("agent_name = ?", agent).
			Order("start_time DESC").Limit(limit).Offset(offset).
			Find(&sessions).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"agent_name": agent,
			"sessions":   sessions,
			"count":      len(sessions),
			"limit":      limit,
			"offset":     offset,
		})
	}
}

func handleAgentMetrics(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		agent := c.Param("name")
		hours := intQuery(c, "hours", 24)

		m, err := analytics.AgentMetrics(db, agent, time.Duration(hours)*time.Hour)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"agent_name":        agent,
			"time_window_hours": hours,
			"metrics":           m,
		})
	}
}

func handleAgentAnomalies(opts Opts) gin.HandlerFunc {
	return func(c *gin.Context) {
		agent := c.Param("name")
		hours := intQuery(c, "hours", 24)

		cfg := opts.Config.Snapshot().Analysis.Anomaly
		anomalies, err := analytics.DetectAnomalies(opts.DB, agent, time.Duration(hours)*time.Hour, cfg)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"agent_name":        agent,
			"time_window_hours": hours,
			"anomalies":         anomalies,
		})
	}
}

func handleSessionOpportunities(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		ops, err := opportunity.ForSession(db, c.Param("id"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"session_id":    c.Param("id"),
			"opportunities": ops,
			"summary":       opportunity.Summarize(ops),
		})
	}
}

func handleAgentOpportunities(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		agent := c.Param("name")
		f := opportunity.Filters{
			Type:     c.Query("type"),
			Severity: c.Query("severity"),
		}
		if hours := intQuery(c, "hours", 0); hours > 0 {
			f.Since = time.Now().Add(-time.Duration(hours) * time.Hour)
		}
		if v, ok := c.GetQuery("resolved"); ok {
			resolved := v == "true" || v == "1"
			f.Resolved = &resolved
		}

		ops, err := opportunity.ForAgent(db, agent, f)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"agent_name":    agent,
			"opportunities": ops,
			"summary":       opportunity.Summarize(ops),
		})
	}
}

func handleResolveOpportunity(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			Note string `json:"note"`
		}
		// An empty body is a resolution without a note.
		c.ShouldBindJSON(&body)

		op, err := opportunity.Resolve(db, c.Param("id"), body.Note)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "opportunity not found"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, op)
	}
}

func handleSaveBaseline(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			SessionID string   `json:"session_id"`
			Tags      []string `json:"tags"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if body.SessionID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "session_id is required"})
			return
		}

		b, err := baseline.Save(db, c.Param("name"), body.SessionID, body.Tags)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, b)
	}
}

func handleActiveBaseline(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		b, err := baseline.GetActive(db, c.Param("name"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if b == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "no active baseline"})
			return
		}
		c.JSON(http.StatusOK, b)
	}
}

func handleBaselineHistory(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		history, err := baseline.History(db, c.Param("name"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"agent_name": c.Param("name"),
			"baselines":  history,
		})
	}
}

// intQuery parses an integer query parameter, falling back to def.
func intQuery(c *gin.Context, name string, def int) int {
	v := c.Query(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
