// webhooks.go handles webhook management HTTP endpoints.
package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Shimizu-Technology/reelforge-api/internal/database"
	"github.com/Shimizu-Technology/reelforge-api/internal/middleware"
	"github.com/Shimizu-Technology/reelforge-api/internal/models"
	webhookservice "github.com/Shimizu-Technology/reelforge-api/internal/services/webhook"
)

// CreateWebhook registers a new webhook endpoint for the caller.
// POST /api/v1/webhooks
func (h *Handler) CreateWebhook(c *gin.Context) {
	var req models.CreateWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "URL and at least one event are required")
		return
	}

	// Validate events
	for _, event := range req.Events {
		if !models.ValidWebhookEvents[event] {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Error:   "invalid_event",
				Message: "Invalid event type: " + event,
				Code:    http.StatusBadRequest,
			})
			return
		}
	}

	// Generate HMAC secret
	secret, err := webhookservice.GenerateSecret()
	if err != nil {
		h.respondError(c, err)
		return
	}

	wh := &models.Webhook{
		UserID: middleware.UserID(c),
		URL:    req.URL,
		Events: req.Events,
		Secret: secret,
		Active: true,
	}
	if err := h.Store.CreateWebhook(c.Request.Context(), wh); err != nil {
		h.respondError(c, err)
		return
	}

	// Return webhook with secret (only shown once)
	c.JSON(http.StatusCreated, gin.H{
		"id":         wh.ID,
		"url":        wh.URL,
		"events":     wh.Events,
		"secret":     secret,
		"active":     wh.Active,
		"created_at": wh.CreatedAt,
	})
}

// ListWebhooks returns the caller's webhooks.
// GET /api/v1/webhooks
func (h *Handler) ListWebhooks(c *gin.Context) {
	webhooks, err := h.Store.ListWebhooks(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if webhooks == nil {
		webhooks = []models.Webhook{}
	}
	c.JSON(http.StatusOK, webhooks)
}

// UpdateWebhook toggles a webhook's active state.
// PATCH /api/v1/webhooks/:id
func (h *Handler) UpdateWebhook(c *gin.Context) {
	var req models.UpdateWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Active == nil {
		badRequest(c, "active field is required (true/false)")
		return
	}

	err := h.Store.UpdateWebhookActive(c.Request.Context(), middleware.UserID(c), c.Param("id"), *req.Active)
	if !h.webhookFound(c, err) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Webhook updated", "active": *req.Active})
}

// DeleteWebhook removes a webhook.
// DELETE /api/v1/webhooks/:id
func (h *Handler) DeleteWebhook(c *gin.Context) {
	err := h.Store.DeleteWebhook(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if !h.webhookFound(c, err) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Webhook deleted"})
}

// ListWebhookDeliveries returns recent delivery attempts, for one webhook
// when :id is present or across all of the caller's webhooks otherwise.
// GET /api/v1/webhooks/deliveries
// GET /api/v1/webhooks/:id/deliveries
func (h *Handler) ListWebhookDeliveries(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 1 || limit > 200 {
		limit = 50
	}

	ctx, userID := c.Request.Context(), middleware.UserID(c)
	var deliveries []models.WebhookDelivery
	if id := c.Param("id"); id != "" {
		if _, err := h.Store.GetWebhook(ctx, userID, id); !h.webhookFound(c, err) {
			return
		}
		deliveries, err = h.Store.ListWebhookDeliveries(ctx, userID, id, limit)
	} else {
		deliveries, err = h.Store.ListAllDeliveries(ctx, userID, limit)
	}
	if err != nil {
		h.respondError(c, err)
		return
	}
	if deliveries == nil {
		deliveries = []models.WebhookDelivery{}
	}
	c.JSON(http.StatusOK, deliveries)
}

// webhookFound writes the response for a failed webhook lookup and reports
// whether the handler should continue.
func (h *Handler) webhookFound(c *gin.Context, err error) bool {
	switch {
	case err == nil:
		return true
	case errors.Is(err, database.ErrWebhookNotFound):
		notFound(c, "Webhook not found")
	default:
		h.respondError(c, err)
	}
	return false
}
