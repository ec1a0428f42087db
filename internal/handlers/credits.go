// credits.go serves the credit ledger and the user's history.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Shimizu-Technology/reelforge-api/internal/ledger"
	"github.com/Shimizu-Technology/reelforge-api/internal/middleware"
	"github.com/Shimizu-Technology/reelforge-api/internal/models"
	"github.com/Shimizu-Technology/reelforge-api/internal/pipeline"
)

// GetCredits returns the caller's balance.
// GET /api/v1/credits
//
// Available excludes credits held by running jobs; Balance does not.
func (h *Handler) GetCredits(c *gin.Context) {
	book, err := h.Ledger.Book(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.CreditsResponse{
		UserID:    book.UserID(),
		Balance:   book.Balance(),
		Available: book.Available(),
		Reserved:  book.Reserved(),
	})
}

// GetPricing returns the price list so clients can show estimates.
// GET /api/v1/pricing
func (h *Handler) GetPricing(c *gin.Context) {
	c.JSON(http.StatusOK, h.Sessions.Config().Pricing)
}

// listParams binds ?page=&per_page= and clamps them.
func listParams(c *gin.Context) (models.ListParams, bool) {
	var p models.ListParams
	if err := c.ShouldBindQuery(&p); err != nil {
		badRequest(c, "page and per_page must be integers")
		return p, false
	}
	return p.Normalize(), true
}

// ListTransactions returns the caller's ledger history, newest first.
// GET /api/v1/credits/transactions?page=1&per_page=20
func (h *Handler) ListTransactions(c *gin.Context) {
	p, ok := listParams(c)
	if !ok {
		return
	}
	txs, total, err := h.Store.ListTransactions(c.Request.Context(), middleware.UserID(c), p)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.NewPage(txs, p, total))
}

// ListVideos returns the caller's generated videos across sessions.
// GET /api/v1/videos
func (h *Handler) ListVideos(c *gin.Context) {
	p, ok := listParams(c)
	if !ok {
		return
	}
	videos, total, err := h.Store.ListVideos(c.Request.Context(), middleware.UserID(c), p)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.NewPage[pipeline.VideoRecord](videos, p, total))
}

// ListPosts returns the caller's scheduled posts across sessions.
// GET /api/v1/posts
func (h *Handler) ListPosts(c *gin.Context) {
	p, ok := listParams(c)
	if !ok {
		return
	}
	posts, total, err := h.Store.ListPosts(c.Request.Context(), middleware.UserID(c), p)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.NewPage[pipeline.ScheduledPost](posts, p, total))
}

// GrantCredits tops up a user's balance. Admin only.
// POST /api/v1/admin/credits
//
// Request body:
//
//	{"user_id": "user_123", "amount": 250, "key": "stripe:pi_3Nx"}
//
// Go Pattern: The caller-supplied key makes the grant idempotent, so a
// retried payment webhook cannot credit twice.
func (h *Handler) GrantCredits(c *gin.Context) {
	var req models.GrantCreditsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Body must include user_id, a positive amount and an idempotency key")
		return
	}

	book, err := h.Ledger.Book(c.Request.Context(), req.UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	tx, err := book.Grant("grant:"+req.Key, ledger.ActionTopUp, req.Amount)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.Log.Info().
		Str("admin", middleware.UserID(c)).
		Str("user_id", req.UserID).
		Int("amount", tx.Amount).
		Str("tx_id", tx.ID).
		Msg("credits granted")

	c.JSON(http.StatusCreated, models.GrantCreditsResponse{Transaction: tx, Balance: book.Balance()})
}
