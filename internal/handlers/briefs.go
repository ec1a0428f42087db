// briefs.go imports creative briefs.
//
// POST /api/v1/briefs: upload a PDF brief; returns its text and a prompt
// suggestion that can be submitted as a direct request.
package handlers

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Shimizu-Technology/reelforge-api/internal/middleware"
	"github.com/Shimizu-Technology/reelforge-api/internal/models"
	"github.com/Shimizu-Technology/reelforge-api/internal/services/brief"
)

// maxBriefSize is the max upload size for brief PDFs (20MB).
const maxBriefSize = 20 << 20

// ImportBrief extracts text from an uploaded brief.
// POST /api/v1/briefs
//
// Accepts multipart file upload with field name "file". Processing is
// synchronous; briefs are short documents.
func (h *Handler) ImportBrief(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBriefSize)

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		badRequest(c, "No PDF file provided. Upload a file with the field name 'file'. Max size: 20MB.")
		return
	}
	defer file.Close()

	if ext := strings.ToLower(filepath.Ext(header.Filename)); ext != ".pdf" {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_file_type",
			Message: "Unsupported file format '" + ext + "'. Only .pdf files are accepted.",
			Code:    http.StatusBadRequest,
		})
		return
	}

	// Go Pattern: io.ReadAll is fine here; the pdf library needs random
	// access and the body is already capped by MaxBytesReader.
	data, err := io.ReadAll(file)
	if err != nil {
		badRequest(c, "Failed to read uploaded file")
		return
	}

	b, err := brief.Extract(data)
	if err != nil {
		msg := "The uploaded file could not be parsed as a PDF"
		if errors.Is(err, brief.ErrNotPDF) {
			msg = "The uploaded file does not appear to be a valid PDF"
		}
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_pdf",
			Message: msg,
			Code:    http.StatusBadRequest,
		})
		return
	}
	if b.WordCount == 0 {
		c.JSON(http.StatusUnprocessableEntity, models.ErrorResponse{
			Error:   "empty_brief",
			Message: "No text found in the PDF. Scanned briefs need OCR before import.",
			Code:    http.StatusUnprocessableEntity,
		})
		return
	}

	h.Log.Info().
		Str("user_id", middleware.UserID(c)).
		Int("pages", b.PageCount).
		Int("words", b.WordCount).
		Msg("brief imported")

	c.JSON(http.StatusOK, models.BriefResponse{
		Filename: header.Filename,
		Brief:    *b,
	})
}
