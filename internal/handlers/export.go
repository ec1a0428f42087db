// export.go serves caption files for download.
//
// Supported formats:
//   - srt: SubRip, numbered cues with comma milliseconds
//   - vtt: WebVTT, for HTML5 <track> elements
//
// Go Pattern: Rendering lives in the pipeline package; the handler only picks
// the format and sets the download headers.
package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Shimizu-Technology/reelforge-api/internal/pipeline"
)

// ExportCaptions downloads one language of a job's captions.
// GET /api/v1/sessions/:id/jobs/:job/captions/:lang?format=srt|vtt
//
// Response headers are set for file download:
//   - Content-Type: appropriate MIME type
//   - Content-Disposition: attachment with filename
func (h *Handler) ExportCaptions(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	format := pipeline.SubtitleFormat(strings.ToLower(c.DefaultQuery("format", "srt")))
	jobID, lang := c.Param("job"), c.Param("lang")

	body, err := s.Subtitles(jobID, lang, format)
	if err != nil {
		h.respondError(c, err)
		return
	}

	// Go Pattern: We sanitize the title for use in filenames. This prevents
	// issues with special characters in Content-Disposition headers.
	filename := jobID
	if job, err := s.Job(jobID); err == nil {
		if name := sanitizeFilename(job.Title); name != "" {
			filename = name
		}
	}
	sendFile(c, fmt.Sprintf("%s.%s.%s", filename, lang, format), format.ContentType(), body)
}

func sendFile(c *gin.Context, filename, contentType, body string) {
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, contentType, []byte(body))
}

// sanitizeFilename removes characters that aren't safe for filenames.
// Go Pattern: Keep it simple: replace unsafe characters with hyphens
// and trim the result. We don't need a full filesystem-safe sanitizer
// since this is just for the Content-Disposition header.
func sanitizeFilename(name string) string {
	// Replace common unsafe characters
	replacer := strings.NewReplacer(
		"/", "-", "\\", "-", ":", "-", "*", "-",
		"?", "-", "\"", "-", "<", "-", ">", "-",
		"|", "-", "\n", " ", "\r", "",
	)
	name = replacer.Replace(name)

	// Collapse multiple hyphens/spaces
	for strings.Contains(name, "  ") {
		name = strings.ReplaceAll(name, "  ", " ")
	}
	for strings.Contains(name, "--") {
		name = strings.ReplaceAll(name, "--", "-")
	}

	name = strings.TrimSpace(name)

	// Limit length, without splitting a multi-byte character
	if len(name) > 100 {
		cut := 100
		for cut > 0 && !utf8RuneStart(name[cut]) {
			cut--
		}
		name = name[:cut]
	}

	return name
}

// utf8RuneStart reports whether b can begin a UTF-8 encoded rune.
func utf8RuneStart(b byte) bool { return b&0xC0 != 0x80 }
