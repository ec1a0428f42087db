// jobs.go handles rendering jobs and their paid add-ons.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Shimizu-Technology/reelforge-api/internal/models"
	"github.com/Shimizu-Technology/reelforge-api/internal/pipeline"
)

// GetJob returns one job.
// GET /api/v1/sessions/:id/jobs/:job
func (h *Handler) GetJob(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	job, err := s.Job(c.Param("job"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

// FailJob stops a queued or generating job. Nothing is charged.
// POST /api/v1/sessions/:id/jobs/:job/fail
func (h *Handler) FailJob(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var req models.FailJobRequest
	// The body is optional; a missing reason gets the default one.
	_ = c.ShouldBindJSON(&req)

	job, err := s.FailJob(c.Param("job"), req.Reason)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

// RetryJob re-queues a failed job under a fresh reservation.
// POST /api/v1/sessions/:id/jobs/:job/retry
func (h *Handler) RetryJob(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	job, err := s.RetryJob(c.Param("job"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, job)
}

// RemoveWatermark starts the paid watermark removal for a completed job.
// POST /api/v1/sessions/:id/jobs/:job/watermark
func (h *Handler) RemoveWatermark(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	job, err := s.RequestWatermarkRemoval(c.Param("job"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, job)
}

// RequestCaptions starts caption generation in the requested languages.
// POST /api/v1/sessions/:id/jobs/:job/captions
//
// Request body:
//
//	{"languages": ["en", "ja"], "model": "gemini-flash"}
func (h *Handler) RequestCaptions(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var req models.CaptionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Body must be {\"languages\": [...], \"model\": \"...\"}")
		return
	}
	set, err := s.RequestCaptions(c.Param("job"), req.Languages, req.Model)
	if err != nil {
		h.respondError(c, err)
		return
	}
	status := http.StatusAccepted
	if set.State == pipeline.CaptionsReady {
		status = http.StatusOK
	}
	c.JSON(status, set)
}
