// Package handlers contains HTTP handler functions for the API.
//
// Go Pattern: Handlers in Gin receive a *gin.Context which provides:
// - Request data (params, query, body, headers)
// - Response methods (JSON, String, Status)
// - Middleware data (c.Get/c.Set)
//
// Unlike Ruby controllers, Go handlers are plain functions with no class
// inheritance. We group related handlers into a struct (Handler) that holds
// shared dependencies.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/Shimizu-Technology/reelforge-api/internal/ledger"
	"github.com/Shimizu-Technology/reelforge-api/internal/models"
	"github.com/Shimizu-Technology/reelforge-api/internal/pipeline"
	"github.com/Shimizu-Technology/reelforge-api/internal/services/audio"
	"github.com/Shimizu-Technology/reelforge-api/internal/services/ingest"
	"github.com/Shimizu-Technology/reelforge-api/internal/services/worker"
)

// Version is reported by the health endpoint.
const Version = "1.0.0"

// Store is the persistence the handlers read from. *database.DB implements it.
type Store interface {
	HealthCheck(ctx context.Context) error

	ListTransactions(ctx context.Context, userID string, p models.ListParams) ([]ledger.Transaction, int, error)
	ListVideos(ctx context.Context, userID string, p models.ListParams) ([]pipeline.VideoRecord, int, error)
	ListPosts(ctx context.Context, userID string, p models.ListParams) ([]pipeline.ScheduledPost, int, error)

	CreateWebhook(ctx context.Context, w *models.Webhook) error
	GetWebhook(ctx context.Context, userID, id string) (*models.Webhook, error)
	ListWebhooks(ctx context.Context, userID string) ([]models.Webhook, error)
	UpdateWebhookActive(ctx context.Context, userID, id string, active bool) error
	DeleteWebhook(ctx context.Context, userID, id string) error
	ListWebhookDeliveries(ctx context.Context, userID, webhookID string, limit int) ([]models.WebhookDelivery, error)
	ListAllDeliveries(ctx context.Context, userID string, limit int) ([]models.WebhookDelivery, error)
}

// EventFeed returns a user's recent pipeline events.
type EventFeed interface {
	Recent(ctx context.Context, userID string, limit int) ([]pipeline.Event, error)
}

// Deps are the Handler's collaborators. Store, Sessions and Ledger are
// required; a nil optional service makes its endpoints answer 503.
type Deps struct {
	Store    Store
	Sessions *pipeline.Manager
	Ledger   *ledger.Ledger

	Worker      *worker.Pool
	Transcriber *audio.Transcriber
	Reverser    ingest.Reverser
	Refiner     pipeline.Refiner
	Feed        EventFeed
	RedisCheck  func(ctx context.Context) error

	AllowedOrigins []string
	Log            zerolog.Logger
}

// Handler holds shared dependencies for all HTTP handlers.
// Go Pattern: Dependency injection via struct fields. Instead of global
// variables or service locators, we pass dependencies explicitly.
// This makes testing easy: just create a Handler with fake dependencies.
type Handler struct {
	Deps
	upgrader websocket.Upgrader
}

// NewHandler creates a new handler with all dependencies.
func NewHandler(d Deps) *Handler {
	h := &Handler{Deps: d}
	h.Log = d.Log.With().Str("component", "http").Logger()
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// HealthCheck returns the API health status.
// GET /api/v1/health
func (h *Handler) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	status := "ok"
	dbStatus := "healthy"
	if err := h.Store.HealthCheck(ctx); err != nil {
		dbStatus = "unhealthy: " + err.Error()
		status = "degraded"
	}

	redisStatus := "disabled"
	if h.RedisCheck != nil {
		redisStatus = "healthy"
		if err := h.RedisCheck(ctx); err != nil {
			redisStatus = "unhealthy: " + err.Error()
			status = "degraded"
		}
	}

	var pool worker.Stats
	if h.Worker != nil {
		pool = h.Worker.Stats()
	}

	c.JSON(http.StatusOK, models.HealthResponse{
		Status:   status,
		Version:  Version,
		Database: dbStatus,
		Redis:    redisStatus,
		Workers:  pool.Workers,
		Queued:   pool.Queued,
		Sessions: h.Sessions.Count(),
	})
}
