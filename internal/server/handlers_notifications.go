package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/friendbook-app/backend/internal/notifications"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type notificationResponsePayload struct {
	ID          string      `json:"id"`
	RecipientID string      `json:"recipientId"`
	Sender      interface{} `json:"sender"`
	Kind        string      `json:"type"`
	RelatedID   string      `json:"relatedId"`
	IsRead      bool        `json:"isRead"`
	CreatedAt   string      `json:"createdAt"`
	Message     string      `json:"message,omitempty"`
}

// handleListNotifications is the durable read interface the reconnect and
// backfill protocol depends on: paginated, newest first, with totals.
func (h *httpHandler) handleListNotifications(c *gin.Context) {
	page, err := h.notifications.List(
		c.Request.Context(),
		h.currentUserID(c),
		queryInt(c, "page", 1),
		queryInt(c, "limit", 10),
	)
	if err != nil {
		h.logger.Error("notification listing failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list_failed"})
		return
	}

	presented := make([]notificationResponsePayload, 0, len(page.Items))
	for _, record := range page.Items {
		sender, err := h.users.SummaryFor(c.Request.Context(), record.SenderID)
		if err != nil {
			h.logger.Warn("sender lookup failed for notification",
				zap.String("notification_id", record.ID), zap.Error(err))
		}
		presented = append(presented, notificationResponsePayload{
			ID:          record.ID,
			RecipientID: record.RecipientID,
			Sender:      sender,
			Kind:        string(record.Kind),
			RelatedID:   record.RelatedID,
			IsRead:      record.IsRead,
			CreatedAt:   record.CreatedAt.UTC().Format(time.RFC3339),
			Message:     record.Message,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"notifications":      presented,
		"currentPage":        page.CurrentPage,
		"totalPages":         page.TotalPages,
		"totalNotifications": page.TotalNotifications,
	})
}

func (h *httpHandler) handleMarkNotificationRead(c *gin.Context) {
	err := h.notifications.MarkRead(c.Request.Context(), h.currentUserID(c), c.Param("notificationId"))
	if errors.Is(err, notifications.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	if errors.Is(err, notifications.ErrNotRecipient) {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}
	if err != nil {
		h.logger.Error("mark read failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "notification marked as read"})
}

func (h *httpHandler) handleMarkAllNotificationsRead(c *gin.Context) {
	if err := h.notifications.MarkAllRead(c.Request.Context(), h.currentUserID(c)); err != nil {
		h.logger.Error("mark all read failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "all notifications marked as read"})
}
