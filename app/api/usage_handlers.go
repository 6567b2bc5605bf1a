package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/postcomb/postcomb/app/database"
)

func (h *Handler) RecordUsageEvent(c *gin.Context) {
	var req usageEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id, err := h.recorder.Record(&database.UsageEvent{
		UserID:           currentUserID(c),
		Agent:            req.Agent,
		Provider:         req.Provider,
		Model:            req.Model,
		PromptTokens:     req.PromptTokens,
		CompletionTokens: req.CompletionTokens,
		TotalTokens:      req.TotalTokens,
		CostUSD:          req.CostUSD,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (h *Handler) GetDailyUsage(c *gin.Context) {
	to := time.Now().UTC()
	from := to.AddDate(0, 0, -30)

	var err error
	if raw := c.Query("from"); raw != "" {
		if from, err = time.Parse("2006-01-02", raw); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "from must be YYYY-MM-DD"})
			return
		}
	}
	if raw := c.Query("to"); raw != "" {
		if to, err = time.Parse("2006-01-02", raw); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "to must be YYYY-MM-DD"})
			return
		}
		// Inclusive end date
		to = to.AddDate(0, 0, 1)
	}

	stats, err := h.recorder.DailyStats(currentUserID(c), from, to)
	if err != nil {
		slog.Error("Database error", "operation", "get_daily_usage", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.JSON(http.StatusOK, gin.H{"usage": stats, "count": len(stats)})
}
