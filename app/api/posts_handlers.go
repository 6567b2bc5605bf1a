package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/postcomb/postcomb/app/database"
)

func (h *Handler) ListPosts(c *gin.Context) {
	status := c.Query("status")
	limit := parseLimit(c.Query("limit"), 100)

	posts, err := h.postRepo.ListPosts(currentUserID(c), status, limit)
	if err != nil {
		slog.Error("Database error", "operation", "list_posts", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.JSON(http.StatusOK, gin.H{"posts": posts, "count": len(posts)})
}

func (h *Handler) CreatePost(c *gin.Context) {
	var req postRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := currentUserID(c)

	account, err := h.accountRepo.GetAccount(req.Platform, req.AccountID)
	if err != nil {
		slog.Error("Database error", "operation", "get_account", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}
	if account == nil || account.UserID != userID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "account not found: " + req.AccountID})
		return
	}

	id, err := h.postRepo.CreatePost(&database.ScheduledPost{
		UserID:         userID,
		Platform:       req.Platform,
		AccountID:      req.AccountID,
		Content:        req.Content,
		PublishOptions: req.Options,
		ScheduledAt:    req.ScheduledAt.UTC(),
		Status:         database.PostStatusScheduled,
	})
	if err != nil {
		slog.Error("Database error", "operation", "create_post", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": id, "scheduled_at": req.ScheduledAt.UTC()})
}

func (h *Handler) GetPost(c *gin.Context) {
	post, ok := h.loadPost(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, post)
}

// CancelPost withdraws a post that has not been picked up yet. A post already
// claimed by the dispatcher cannot be recalled: the publish may be in flight.
func (h *Handler) CancelPost(c *gin.Context) {
	cancelled, err := h.postRepo.CancelPost(c.Param("id"), currentUserID(c))
	if err != nil {
		slog.Error("Database error", "operation", "cancel_post", "post", c.Param("id"), "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}
	if !cancelled {
		post, ok := h.loadPost(c)
		if !ok {
			return
		}
		c.JSON(http.StatusConflict, gin.H{
			"error":  "Post can no longer be cancelled",
			"status": post.Status,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "status": database.PostStatusCancelled})
}

func (h *Handler) loadPost(c *gin.Context) (*database.ScheduledPost, bool) {
	post, err := h.postRepo.GetPostForUser(c.Param("id"), currentUserID(c))
	if err != nil {
		slog.Error("Database error", "operation", "get_post", "post", c.Param("id"), "error", err)
		c.Status(http.StatusInternalServerError)
		return nil, false
	}
	if post == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Post not found"})
		return nil, false
	}
	return post, true
}
