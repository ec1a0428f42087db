// Package router sets up all HTTP routes for the API.
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/Shimizu-Technology/reelforge-api/internal/handlers"
	"github.com/Shimizu-Technology/reelforge-api/internal/middleware"
)

// Options are the router settings that don't belong to a handler.
type Options struct {
	JWTSecret        string
	AdminUserIDs     []string
	AllowedOrigins   []string
	RateLimitPerHour int
	Log              zerolog.Logger
}

// Setup creates and configures the Gin router with all routes. The returned
// rate limiter must be stopped on shutdown.
func Setup(h *handlers.Handler, opts Options) (*gin.Engine, *middleware.RateLimiter) {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logger(opts.Log))
	r.Use(middleware.CORS(opts.AllowedOrigins))

	rateLimiter := middleware.NewRateLimiter(opts.RateLimitPerHour)

	// --- Public Routes (no auth required) ---
	r.GET("/api/v1/health", h.HealthCheck)
	r.GET("/api/v1/pricing", h.GetPricing)

	// API Documentation
	r.GET("/api/docs", h.ServeSwaggerUI)
	r.GET("/api/docs/openapi.yaml", h.ServeOpenAPISpec)

	// --- Protected Routes (JWT) ---
	protected := r.Group("/api/v1")
	protected.Use(middleware.JWTAuth(opts.JWTSecret))
	protected.Use(rateLimiter.RateLimit())
	{
		// Sessions and the workflow stages
		protected.POST("/sessions", h.CreateSession)
		protected.GET("/sessions", h.ListSessions)
		protected.GET("/sessions/:id", h.GetSession)
		protected.DELETE("/sessions/:id", h.CloseSession)
		protected.GET("/sessions/:id/stream", h.StreamSession)
		protected.POST("/sessions/:id/request", h.SubmitRequest)
		protected.POST("/sessions/:id/ideas/regenerate", h.RegenerateIdeas)
		protected.POST("/sessions/:id/ideas/select", h.SelectIdeas)
		protected.POST("/sessions/:id/back", h.Back)

		// Jobs and add-ons
		protected.GET("/sessions/:id/jobs/:job", h.GetJob)
		protected.POST("/sessions/:id/jobs/:job/fail", h.FailJob)
		protected.POST("/sessions/:id/jobs/:job/retry", h.RetryJob)
		protected.POST("/sessions/:id/jobs/:job/watermark", h.RemoveWatermark)
		protected.POST("/sessions/:id/jobs/:job/captions", h.RequestCaptions)
		protected.GET("/sessions/:id/jobs/:job/captions/:lang", h.ExportCaptions)

		// Scheduling
		protected.POST("/sessions/:id/jobs/:job/schedule", h.SchedulePost)
		protected.DELETE("/sessions/:id/posts/:post", h.CancelPost)

		// Wizard
		protected.GET("/sessions/:id/wizard", h.GetWizard)
		protected.PUT("/sessions/:id/wizard/prompt", h.UpdateWizardPrompt)
		protected.PUT("/sessions/:id/wizard/personalization", h.UpdatePersonalization)
		protected.POST("/sessions/:id/wizard/copy", h.CopyScript)
		protected.POST("/sessions/:id/wizard/step", h.GoToStep)

		// Prompt tools
		protected.POST("/ingest", h.IngestReference)
		protected.POST("/refine", h.RefinePrompt)
		protected.POST("/transcribe", h.TranscribeAudio)
		protected.POST("/briefs", h.ImportBrief)

		// Credits and history
		protected.GET("/credits", h.GetCredits)
		protected.GET("/credits/transactions", h.ListTransactions)
		protected.GET("/videos", h.ListVideos)
		protected.GET("/posts", h.ListPosts)
		protected.GET("/events", h.RecentEvents)

		// Webhook management
		protected.POST("/webhooks", h.CreateWebhook)
		protected.GET("/webhooks", h.ListWebhooks)
		protected.GET("/webhooks/deliveries", h.ListWebhookDeliveries)
		protected.GET("/webhooks/:id/deliveries", h.ListWebhookDeliveries)
		protected.PATCH("/webhooks/:id", h.UpdateWebhook)
		protected.DELETE("/webhooks/:id", h.DeleteWebhook)
	}

	// --- Admin Routes ---
	admin := protected.Group("/admin")
	admin.Use(middleware.RequireAdmin(opts.AdminUserIDs))
	{
		admin.POST("/credits", h.GrantCredits)
	}

	return r, rateLimiter
}
