package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/postcomb/postcomb/app/database"
)

func (h *Handler) ListItems(c *gin.Context) {
	status := c.Query("status")
	limit := parseLimit(c.Query("limit"), 100)

	items, err := h.itemRepo.ListItems(currentUserID(c), status, limit)
	if err != nil {
		slog.Error("Database error", "operation", "list_items", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": items, "count": len(items)})
}

// ApproveItem moves an item from the review queue into the pool rules pick
// from. Only new items can be approved.
func (h *Handler) ApproveItem(c *gin.Context) {
	h.transitionItem(c, database.ItemStatusNew, database.ItemStatusApproved)
}

func (h *Handler) IgnoreItem(c *gin.Context) {
	h.transitionItem(c, database.ItemStatusNew, database.ItemStatusIgnored)
}

func (h *Handler) transitionItem(c *gin.Context, from, to string) {
	id := c.Param("id")
	userID := currentUserID(c)

	transitioned, err := h.itemRepo.TransitionItemStatus(id, userID, from, to)
	if err != nil {
		slog.Error("Database error", "operation", "transition_item", "item", id, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}
	if !transitioned {
		item, err := h.itemRepo.GetItemForUser(id, userID)
		if err != nil {
			c.Status(http.StatusInternalServerError)
			return
		}
		if item == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Item not found"})
			return
		}
		c.JSON(http.StatusConflict, gin.H{
			"error":  "Item is not in a transitionable state",
			"status": item.Status,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": id, "status": to})
}
