package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Shimizu-Technology/reelforge-api/internal/pipeline"
)

// SchedulePost schedules a completed job for publishing.
// POST /api/v1/sessions/:id/jobs/:job/schedule
//
// Request body:
//
//	{"platforms": ["tiktok"], "caption": "...", "hashtags": ["coffee"], "when": "2026-03-02T09:00"}
//
// "when" is RFC 3339, or a wall-clock time read in SCHEDULE_TIMEZONE. It is
// resolved during validation so a missing platform is reported first.
func (h *Handler) SchedulePost(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var in pipeline.ScheduleInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "Body must be a schedule object")
		return
	}
	receipt, err := s.SchedulePost(c.Param("job"), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, receipt)
}

// CancelPost cancels a pending post. The scheduling fee is not refunded.
// DELETE /api/v1/sessions/:id/posts/:post
func (h *Handler) CancelPost(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	post, err := s.CancelPost(c.Param("post"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, post)
}
