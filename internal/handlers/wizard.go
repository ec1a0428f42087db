// wizard.go drives the five-step guided flow. Every endpoint answers with the
// wizard view so clients can render the step bar from one response.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Shimizu-Technology/reelforge-api/internal/models"
	"github.com/Shimizu-Technology/reelforge-api/internal/pipeline"
)

func (h *Handler) respondWizard(c *gin.Context, view pipeline.WizardView, err error) {
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// GetWizard returns the wizard state.
// GET /api/v1/sessions/:id/wizard
func (h *Handler) GetWizard(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	view, err := s.Wizard()
	h.respondWizard(c, view, err)
}

// UpdateWizardPrompt replaces the prompt text.
// PUT /api/v1/sessions/:id/wizard/prompt
func (h *Handler) UpdateWizardPrompt(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var req models.WizardPromptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Body must be {\"prompt\": \"...\"}")
		return
	}
	view, err := s.EditWizardPrompt(req.Prompt)
	h.respondWizard(c, view, err)
}

// UpdatePersonalization stores the personalization fields.
// PUT /api/v1/sessions/:id/wizard/personalization
func (h *Handler) UpdatePersonalization(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var p pipeline.Personalization
	if err := c.ShouldBindJSON(&p); err != nil {
		badRequest(c, "Body must be a personalization object")
		return
	}
	view, err := s.TouchPersonalization(p)
	h.respondWizard(c, view, err)
}

// CopyScript refines the prompt with the personalization and unlocks the
// later steps. It waits for the refiner, so it honours request cancellation.
// POST /api/v1/sessions/:id/wizard/copy
func (h *Handler) CopyScript(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	view, err := s.CopyScript(c.Request.Context())
	h.respondWizard(c, view, err)
}

// GoToStep moves the wizard to another step.
// POST /api/v1/sessions/:id/wizard/step
func (h *Handler) GoToStep(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var req models.WizardStepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Body must be {\"step\": 1-5}")
		return
	}
	view, err := s.GoToStep(req.Step)
	h.respondWizard(c, view, err)
}
