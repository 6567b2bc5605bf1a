package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/postcomb/postcomb/app/database"
	"github.com/postcomb/postcomb/app/schedule"
)

func (h *Handler) ListRules(c *gin.Context) {
	rules, err := h.ruleRepo.ListRules(currentUserID(c))
	if err != nil {
		slog.Error("Database error", "operation", "list_rules", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.JSON(http.StatusOK, gin.H{"rules": rules, "count": len(rules)})
}

func (h *Handler) CreateRule(c *gin.Context) {
	var req ruleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rule, ok := h.ruleFromRequest(c, &req)
	if !ok {
		return
	}
	rule.UserID = currentUserID(c)
	rule.IsActive = true

	// New rules get their first tick computed from now
	spec := ruleSpec(rule)
	next := spec.Next(time.Time{}, time.Now().UTC())
	rule.NextExecutionAt = &next

	id, err := h.ruleRepo.CreateRule(rule)
	if err != nil {
		slog.Error("Database error", "operation", "create_rule", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": id, "next_execution_at": next})
}

func (h *Handler) GetRule(c *gin.Context) {
	rule, ok := h.loadRule(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, rule)
}

func (h *Handler) UpdateRule(c *gin.Context) {
	existing, ok := h.loadRule(c)
	if !ok {
		return
	}

	var req ruleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rule, ok := h.ruleFromRequest(c, &req)
	if !ok {
		return
	}
	rule.ID = existing.ID
	rule.UserID = existing.UserID
	rule.IsActive = existing.IsActive
	rule.IsPaused = existing.IsPaused

	// Schedule changes recompute the next tick
	spec := ruleSpec(rule)
	next := spec.Next(time.Time{}, time.Now().UTC())
	rule.NextExecutionAt = &next

	if err := h.ruleRepo.UpdateRule(rule); err != nil {
		slog.Error("Database error", "operation", "update_rule", "rule", rule.ID, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": rule.ID, "next_execution_at": next})
}

func (h *Handler) PauseRule(c *gin.Context) {
	h.setRulePaused(c, true)
}

func (h *Handler) ResumeRule(c *gin.Context) {
	h.setRulePaused(c, false)
}

func (h *Handler) setRulePaused(c *gin.Context, paused bool) {
	updated, err := h.ruleRepo.SetRulePaused(c.Param("id"), currentUserID(c), paused)
	if err != nil {
		slog.Error("Database error", "operation", "set_rule_paused", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}
	if !updated {
		c.JSON(http.StatusNotFound, gin.H{"error": "Rule not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "is_paused": paused})
}

func (h *Handler) loadRule(c *gin.Context) (*database.AutoPostingRule, bool) {
	rule, err := h.ruleRepo.GetRuleForUser(c.Param("id"), currentUserID(c))
	if err != nil {
		slog.Error("Database error", "operation", "get_rule", "rule", c.Param("id"), "error", err)
		c.Status(http.StatusInternalServerError)
		return nil, false
	}
	if rule == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Rule not found"})
		return nil, false
	}
	return rule, true
}

func (h *Handler) ruleFromRequest(c *gin.Context, req *ruleRequest) (*database.AutoPostingRule, bool) {
	rule := &database.AutoPostingRule{
		Name:             req.Name,
		ScheduleType:     req.ScheduleType,
		IntervalMinutes:  req.IntervalMinutes,
		TimesOfDay:       req.TimesOfDay,
		Weekdays:         req.Weekdays,
		FilterKeywords:   req.FilterKeywords,
		FilterCategories: req.FilterCategories,
		MinRelevance:     req.MinRelevance,
		Targets:          req.Targets,
		MaxPostsPerDay:   req.MaxPostsPerDay,
		MaxPostsPerWeek:  req.MaxPostsPerWeek,
	}

	if err := ruleSpec(rule).Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false
	}

	if len(rule.Targets) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "rule requires at least one target"})
		return nil, false
	}
	for _, target := range rule.Targets {
		account, err := h.accountRepo.GetAccount(target.Platform, target.AccountID)
		if err != nil {
			slog.Error("Database error", "operation", "get_account", "error", err)
			c.Status(http.StatusInternalServerError)
			return nil, false
		}
		if account == nil || account.UserID != currentUserID(c) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "target account not found: " + target.AccountID})
			return nil, false
		}
	}

	return rule, true
}

func ruleSpec(rule *database.AutoPostingRule) schedule.Spec {
	return schedule.Spec{
		Type:            rule.ScheduleType,
		IntervalMinutes: rule.IntervalMinutes,
		TimesOfDay:      rule.TimesOfDay,
		Weekdays:        rule.Weekdays,
	}
}
