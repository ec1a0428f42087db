// sessions.go exposes the workflow: open a session, submit a request,
// select ideas and navigate back.
package handlers

import (
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"github.com/Shimizu-Technology/reelforge-api/internal/middleware"
	"github.com/Shimizu-Technology/reelforge-api/internal/models"
	"github.com/Shimizu-Technology/reelforge-api/internal/pipeline"
)

// session loads the caller's session named by the :id path parameter,
// writing the error response itself when it can't.
func (h *Handler) session(c *gin.Context) (*pipeline.Session, bool) {
	s, err := h.Sessions.Get(middleware.UserID(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return nil, false
	}
	return s, true
}

func (h *Handler) respondSnapshot(c *gin.Context, s *pipeline.Session, status int) {
	snap, err := s.Snapshot()
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(status, snap)
}

// CreateSession opens a new workflow session.
// POST /api/v1/sessions
func (h *Handler) CreateSession(c *gin.Context) {
	s, err := h.Sessions.Create(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respondSnapshot(c, s, http.StatusCreated)
}

// ListSessions returns snapshots of the caller's open sessions, most
// recently updated first.
// GET /api/v1/sessions
func (h *Handler) ListSessions(c *gin.Context) {
	sessions := h.Sessions.List(middleware.UserID(c))
	snaps := make([]pipeline.Snapshot, 0, len(sessions))
	for _, s := range sessions {
		snap, err := s.Snapshot()
		if err != nil {
			continue // closed between List and Snapshot
		}
		snaps = append(snaps, snap)
	}
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].UpdatedAt.After(snaps[j].UpdatedAt) })
	c.JSON(http.StatusOK, snaps)
}

// GetSession returns one session's snapshot.
// GET /api/v1/sessions/:id
func (h *Handler) GetSession(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	h.respondSnapshot(c, s, http.StatusOK)
}

// CloseSession ends a session. Outstanding reservations are released.
// DELETE /api/v1/sessions/:id
func (h *Handler) CloseSession(c *gin.Context) {
	if err := h.Sessions.Close(middleware.UserID(c), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Session closed"})
}

// SubmitRequest validates a direct-prompt or story-mode request and starts
// idea synthesis in the background.
// POST /api/v1/sessions/:id/request
//
// Request body (one of):
//
//	{"direct_prompt": {"prompt": "...", "model": "kling"}}
//	{"story_mode": {"keywords": "latte art", "personalization": {"hook": "question"}}}
func (h *Handler) SubmitRequest(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var in pipeline.RequestInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "Body must be a JSON object with direct_prompt or story_mode")
		return
	}
	if _, err := s.SubmitRequest(in); err != nil {
		h.respondError(c, err)
		return
	}
	h.respondSnapshot(c, s, http.StatusAccepted)
}

// RegenerateIdeas discards the current batch and synthesizes a new one.
// POST /api/v1/sessions/:id/ideas/regenerate
func (h *Handler) RegenerateIdeas(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	if err := s.RegenerateIdeas(); err != nil {
		h.respondError(c, err)
		return
	}
	h.respondSnapshot(c, s, http.StatusAccepted)
}

// SelectIdeas turns the chosen ideas into rendering jobs.
// POST /api/v1/sessions/:id/ideas/select
func (h *Handler) SelectIdeas(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var req models.SelectIdeasRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Body must be {\"idea_ids\": [...]}")
		return
	}
	jobs, err := s.SelectIdeas(req.IdeaIDs)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"jobs": jobs})
}

// Back returns to the previous stage.
// POST /api/v1/sessions/:id/back
func (h *Handler) Back(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	stage, err := s.Back()
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stage": stage})
}
