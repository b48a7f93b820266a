package handlers

import (
	"net/http"

	"example.com/medifly/services/delivery/internal/notifications"

	"github.com/gin-gonic/gin"
)

// NotificationHandler serves per-user notification feeds
type NotificationHandler struct {
	notifications *notifications.Service
}

// NewNotificationHandler creates a new notification handler
func NewNotificationHandler(n *notifications.Service) *NotificationHandler {
	return &NotificationHandler{notifications: n}
}

// RegisterRoutes registers the notification routes
func (h *NotificationHandler) RegisterRoutes(router *gin.Engine) {
	router.GET("/api/notifications/:userID", h.GetFeed)
}

// GetFeed handles GET /api/notifications/:userID
func (h *NotificationHandler) GetFeed(c *gin.Context) {
	feed, err := h.notifications.Feed(c, c.Param("userID"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": feed})
}
