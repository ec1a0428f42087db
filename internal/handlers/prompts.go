// prompts.go exposes the prompt tools used outside a session: turning a
// reference video into a prompt, and refining a prompt with personalization.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Shimizu-Technology/reelforge-api/internal/models"
	"github.com/Shimizu-Technology/reelforge-api/internal/pipeline"
	"github.com/Shimizu-Technology/reelforge-api/internal/services/ingest"
)

// IngestReference reverse-engineers a prompt from a YouTube, TikTok or
// Instagram link.
// POST /api/v1/ingest
//
// Request body:
//
//	{"reference": "https://youtu.be/dQw4w9WgXcQ", "language": "en", "aspect_ratio": "9:16"}
func (h *Handler) IngestReference(c *gin.Context) {
	if h.Reverser == nil {
		unavailable(c, "Reference ingestion is not configured. Set INGEST_API_URL.")
		return
	}

	var req ingest.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Body must include a \"reference\" link")
		return
	}

	// Go Pattern: Validate locally first so bad input is a 400 and only
	// failures of the remote service surface as 502.
	if _, err := ingest.ParseReference(req.Reference); err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := req.Params.Defaults().Validate(); err != nil {
		badRequest(c, err.Error())
		return
	}

	result, err := h.Reverser.Reverse(c.Request.Context(), req)
	if errors.Is(err, ingest.ErrNotConfigured) {
		unavailable(c, err.Error())
		return
	}
	if err != nil {
		h.respondError(c, pipeline.Upstream("ingest", err))
		return
	}
	c.JSON(http.StatusOK, result)
}

// RefinePrompt rewrites a prompt with the personalization fields applied.
// POST /api/v1/refine
func (h *Handler) RefinePrompt(c *gin.Context) {
	if h.Refiner == nil {
		unavailable(c, "Prompt refinement is not configured.")
		return
	}

	var req models.RefineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Body must include \"base_prompt\"")
		return
	}
	if !req.Hook.Valid() {
		h.respondError(c, pipeline.ErrUnknownHook)
		return
	}
	if req.Model != "" {
		if _, ok := h.Sessions.Config().Pricing.Model(req.Model); !ok {
			h.respondError(c, pipeline.ErrUnknownModel)
			return
		}
	}

	prompt, err := h.Refiner.Refine(c.Request.Context(), pipeline.RefineInput{
		BasePrompt:     req.BasePrompt,
		Duration:       req.TargetLength,
		NarrationTheme: req.Hook.NarrationTheme(),
		CallToAction:   req.CallToAction,
		Instructions:   req.Instructions,
		Model:          req.Model,
	})
	if err != nil {
		h.respondError(c, pipeline.Upstream("prompt refinement", err))
		return
	}
	c.JSON(http.StatusOK, models.RefineResponse{Prompt: prompt})
}
