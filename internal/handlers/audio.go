// audio.go handles voice-over transcription.
//
// POST /api/v1/transcribe: upload an audio file for Whisper transcription
//
// With ?format=srt or ?format=vtt the transcript comes back as a subtitle
// file timed from the Whisper segments, ready to burn into a video.
package handlers

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Shimizu-Technology/reelforge-api/internal/models"
	"github.com/Shimizu-Technology/reelforge-api/internal/pipeline"
	"github.com/Shimizu-Technology/reelforge-api/internal/services/audio"
)

// allowedAudioTypes lists the extensions Whisper accepts.
var allowedAudioTypes = map[string]bool{
	".mp3":  true,
	".wav":  true,
	".m4a":  true,
	".ogg":  true,
	".flac": true,
	".webm": true,
	".mp4":  true,
}

// maxAudioSize is the max upload size for audio files (25MB, Whisper API limit).
const maxAudioSize = 25 << 20 // 25MB

// TranscribeAudio handles audio file upload and transcription.
// POST /api/v1/transcribe
//
// Accepts multipart file upload with field name "file".
// If OPENAI_API_KEY is not set, returns a helpful error message.
func (h *Handler) TranscribeAudio(c *gin.Context) {
	if h.Transcriber == nil || !h.Transcriber.IsConfigured() {
		unavailable(c, "Audio transcription is not configured. Set the OPENAI_API_KEY environment variable to enable Whisper transcription.")
		return
	}

	format := pipeline.SubtitleFormat(strings.ToLower(c.Query("format")))
	if format != "" && format != pipeline.FormatSRT && format != pipeline.FormatVTT {
		badRequest(c, "Supported formats: srt, vtt")
		return
	}

	// Limit request body size
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxAudioSize)

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		badRequest(c, "No audio file provided. Upload a file with the field name 'file'. Max size: 25MB.")
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !allowedAudioTypes[ext] {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_file_type",
			Message: fmt.Sprintf("Unsupported audio format '%s'. Supported formats: mp3, wav, m4a, ogg, flac, webm, mp4", ext),
			Code:    http.StatusBadRequest,
		})
		return
	}

	result, err := h.Transcriber.Transcribe(c.Request.Context(), file, header.Filename)
	if err != nil {
		h.respondError(c, pipeline.Upstream("transcription", err))
		return
	}

	if format != "" {
		body, err := pipeline.RenderSubtitles(result.Cues(), format)
		if err != nil {
			h.respondError(c, err)
			return
		}
		base := sanitizeFilename(strings.TrimSuffix(header.Filename, filepath.Ext(header.Filename)))
		if base == "" {
			base = "transcript"
		}
		sendFile(c, base+"."+string(format), format.ContentType(), body)
		return
	}

	c.JSON(http.StatusOK, models.TranscribeResponse{
		Filename:  header.Filename,
		Text:      result.Text,
		Language:  result.Language,
		Duration:  result.Duration,
		WordCount: audio.CountWords(result.Text),
	})
}
