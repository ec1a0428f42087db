// Package audio transcribes uploaded voice-overs and reference clips via
// OpenAI's Whisper API.
//
// Go Pattern: We use the standard net/http package to make API calls.
// Go's http.Client gives us full control over timeouts, retries, and
// connection reuse.
//
// The Whisper API accepts multipart form uploads (audio files) and
// returns transcribed text with timed segments. Max file size is 25MB.
package audio

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Shimizu-Technology/reelforge-api/internal/pipeline"
)

// DefaultBaseURL is the OpenAI API root.
const DefaultBaseURL = "https://api.openai.com/v1"

// ErrNotConfigured is returned when no OpenAI key is set.
var ErrNotConfigured = errors.New("OpenAI API key not configured; set OPENAI_API_KEY environment variable")

// Segment is one timed span of the transcript.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// TranscriptionResult holds the output from a Whisper API call.
type TranscriptionResult struct {
	Text     string    `json:"text"`
	Language string    `json:"language"`
	Duration float64   `json:"duration"`
	Segments []Segment `json:"segments,omitempty"`
}

// Cues converts the segments into subtitle cues. A result without segments
// is spread evenly over its duration.
func (r *TranscriptionResult) Cues() []pipeline.Cue {
	if len(r.Segments) == 0 {
		return pipeline.SplitCues(r.Text, r.Duration)
	}
	cues := make([]pipeline.Cue, 0, len(r.Segments))
	for _, s := range r.Segments {
		text := strings.TrimSpace(s.Text)
		if text == "" {
			continue
		}
		cues = append(cues, pipeline.Cue{Start: s.Start, End: s.End, Text: text})
	}
	return cues
}

// whisperResponse is the JSON shape returned by the Whisper API
// when response_format is "verbose_json".
type whisperResponse struct {
	Text     string    `json:"text"`
	Language string    `json:"language"`
	Duration float64   `json:"duration"`
	Segments []Segment `json:"segments"`
}

// Transcriber handles audio transcription via the OpenAI Whisper API.
type Transcriber struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	log        zerolog.Logger
}

// NewTranscriber creates a new Transcriber. baseURL may be empty for the
// public endpoint.
func NewTranscriber(apiKey, baseURL string, log zerolog.Logger) *Transcriber {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Transcriber{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			// Whisper can take a while for long audio files
			Timeout: 5 * time.Minute,
		},
		log: log.With().Str("component", "whisper").Logger(),
	}
}

// IsConfigured returns true if the OpenAI API key is set.
func (t *Transcriber) IsConfigured() bool {
	return t != nil && t.apiKey != ""
}

// Transcribe sends an audio file to the Whisper API and returns the transcription.
//
// Go Pattern: We build a multipart form body manually. multipart.Writer
// handles the boundary generation and MIME encoding.
func (t *Transcriber) Transcribe(ctx context.Context, audioData io.Reader, filename string) (*TranscriptionResult, error) {
	if !t.IsConfigured() {
		return nil, ErrNotConfigured
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, audioData); err != nil {
		return nil, fmt.Errorf("failed to copy audio data: %w", err)
	}

	// whisper-1 is currently the only model
	if err := writer.WriteField("model", "whisper-1"); err != nil {
		return nil, fmt.Errorf("failed to write model field: %w", err)
	}
	// Verbose JSON carries language detection, duration and segments
	if err := writer.WriteField("response_format", "verbose_json"); err != nil {
		return nil, fmt.Errorf("failed to write response_format field: %w", err)
	}
	if err := writer.WriteField("timestamp_granularities[]", "segment"); err != nil {
		return nil, fmt.Errorf("failed to write timestamp field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/audio/transcriptions", &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+t.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	start := time.Now()
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("Whisper API request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Whisper API returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var whisperResp whisperResponse
	if err := json.Unmarshal(respBody, &whisperResp); err != nil {
		return nil, fmt.Errorf("failed to parse Whisper response: %w", err)
	}

	t.log.Info().Str("filename", filename).Str("language", whisperResp.Language).
		Float64("duration", whisperResp.Duration).Dur("took", time.Since(start)).Msg("audio transcribed")

	return &TranscriptionResult{
		Text:     strings.TrimSpace(whisperResp.Text),
		Language: whisperResp.Language,
		Duration: whisperResp.Duration,
		Segments: whisperResp.Segments,
	}, nil
}

// CountWords counts the number of words in a text string.
func CountWords(text string) int {
	return len(strings.Fields(text))
}
