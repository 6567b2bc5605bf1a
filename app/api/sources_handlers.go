package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/postcomb/postcomb/app/database"
	"github.com/postcomb/postcomb/app/tasks"
)

var validExtractionMethods = map[string]bool{
	"rss":     true,
	"css":     true,
	"article": true,
}

func (h *Handler) ListSources(c *gin.Context) {
	sources, err := h.sourceRepo.ListSources(currentUserID(c))
	if err != nil {
		slog.Error("Database error", "operation", "list_sources", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.JSON(http.StatusOK, gin.H{"sources": sources, "count": len(sources)})
}

func (h *Handler) CreateSource(c *gin.Context) {
	var req sourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	src, ok := h.sourceFromRequest(c, &req)
	if !ok {
		return
	}
	src.UserID = currentUserID(c)
	src.IsActive = true

	id, err := h.sourceRepo.CreateSource(src)
	if err != nil {
		slog.Error("Database error", "operation", "create_source", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (h *Handler) GetSource(c *gin.Context) {
	src, ok := h.loadSource(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, src)
}

func (h *Handler) UpdateSource(c *gin.Context) {
	existing, ok := h.loadSource(c)
	if !ok {
		return
	}

	var req sourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	src, ok := h.sourceFromRequest(c, &req)
	if !ok {
		return
	}
	src.ID = existing.ID
	src.UserID = existing.UserID
	src.IsActive = existing.IsActive

	if err := h.sourceRepo.UpdateSource(src); err != nil {
		slog.Error("Database error", "operation", "update_source", "source", src.ID, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": src.ID})
}

func (h *Handler) ActivateSource(c *gin.Context) {
	h.setSourceActive(c, true)
}

func (h *Handler) DeactivateSource(c *gin.Context) {
	h.setSourceActive(c, false)
}

func (h *Handler) setSourceActive(c *gin.Context, active bool) {
	updated, err := h.sourceRepo.SetSourceActive(c.Param("id"), currentUserID(c), active)
	if err != nil {
		slog.Error("Database error", "operation", "set_source_active", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}
	if !updated {
		c.JSON(http.StatusNotFound, gin.H{"error": "Source not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "is_active": active})
}

// CheckSourceNow enqueues an immediate poll instead of waiting for the next
// due scan.
func (h *Handler) CheckSourceNow(c *gin.Context) {
	src, ok := h.loadSource(c)
	if !ok {
		return
	}

	task := tasks.NewPollSourceTask(src, h.httpClient, h.filterer, h.scorer, h.similarity,
		h.sourceRepo, h.itemRepo, h.userAgent, h.fetchTimeout)
	if err := h.scheduler.EnqueueTask(task); err != nil {
		slog.Error("Failed to enqueue source check", "source", src.ID, "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Task queue is full, try again later"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"id": src.ID, "message": "Source check enqueued"})
}

func (h *Handler) ListSourceChecks(c *gin.Context) {
	src, ok := h.loadSource(c)
	if !ok {
		return
	}

	limit := parseLimit(c.Query("limit"), 50)
	checks, err := h.sourceRepo.ListChecks(src.ID, limit)
	if err != nil {
		slog.Error("Database error", "operation", "list_checks", "source", src.ID, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.JSON(http.StatusOK, gin.H{"checks": checks, "count": len(checks)})
}

func (h *Handler) loadSource(c *gin.Context) (*database.ContentSource, bool) {
	src, err := h.sourceRepo.GetSourceForUser(c.Param("id"), currentUserID(c))
	if err != nil {
		slog.Error("Database error", "operation", "get_source", "source", c.Param("id"), "error", err)
		c.Status(http.StatusInternalServerError)
		return nil, false
	}
	if src == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Source not found"})
		return nil, false
	}
	return src, true
}

func (h *Handler) sourceFromRequest(c *gin.Context, req *sourceRequest) (*database.ContentSource, bool) {
	if !validExtractionMethods[req.ExtractionMethod] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "extraction_method must be one of rss, css, article"})
		return nil, false
	}
	if req.ExtractionMethod == "css" && req.ItemSelector == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "css extraction requires item_selector"})
		return nil, false
	}

	sourceType := req.SourceType
	if sourceType == "" {
		sourceType = "website"
	}
	interval := req.CheckIntervalMinutes
	if interval <= 0 {
		interval = 60
	}

	now := time.Now().UTC()
	return &database.ContentSource{
		Name:                 req.Name,
		SourceType:           sourceType,
		URL:                  req.URL,
		ExtractionMethod:     req.ExtractionMethod,
		ItemSelector:         req.ItemSelector,
		TitleSelector:        req.TitleSelector,
		LinkSelector:         req.LinkSelector,
		SummarySelector:      req.SummarySelector,
		IncludeKeywords:      req.IncludeKeywords,
		ExcludeKeywords:      req.ExcludeKeywords,
		Categories:           req.Categories,
		AutoPost:             req.AutoPost,
		PostDelayMinutes:     req.PostDelayMinutes,
		CheckIntervalMinutes: interval,
		NextCheckAt:          &now,
	}, true
}

func parseLimit(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 || limit > 500 {
		return fallback
	}
	return limit
}
