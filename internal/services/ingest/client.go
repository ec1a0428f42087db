// Package ingest talks to the reverse-engineering service that turns a
// reference video into a ready-to-use generation prompt.
//
// Go Pattern: The service is an external collaborator, so callers depend on
// the small Reverser interface and tests swap in a fake. The HTTP client
// itself is thin: validate, normalize the reference, POST, decode.
package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ErrNotConfigured is returned when no service URL is set.
var ErrNotConfigured = errors.New("ingest service not configured; set INGEST_API_URL")

// Reverser turns a reference into a prompt.
type Reverser interface {
	Reverse(ctx context.Context, req Request) (*Result, error)
}

// Params are the rendering parameters forwarded with a reference.
type Params struct {
	Language          string  `json:"language,omitempty"`
	AspectRatio       string  `json:"aspect_ratio,omitempty"`
	Platform          string  `json:"platform,omitempty"`
	TargetDuration    int     `json:"target_duration,omitempty"`
	SpeechRate        float64 `json:"speech_rate,omitempty"`
	MinVoiceOverFill  float64 `json:"min_voice_over_fill,omitempty"`
	KeyframeInterval  float64 `json:"keyframe_interval,omitempty"`
	UseAudio          bool    `json:"use_audio"`
	VisualSamplingFPS float64 `json:"visual_sampling_fps,omitempty"`
}

// Request is one reverse-engineering call.
type Request struct {
	Reference string `json:"reference"`
	Params
}

// Result is the prompt produced for a reference.
type Result struct {
	Reference  Reference `json:"reference"`
	Prompt     string    `json:"prompt"`
	Transcript string    `json:"transcript,omitempty"`
	WordCount  int       `json:"word_count"`
}

var aspectRatios = map[string]bool{"9:16": true, "16:9": true, "1:1": true, "4:5": true}

// Defaults fills the parameters the service needs when the caller left them
// unset.
func (p Params) Defaults() Params {
	if p.Language == "" {
		p.Language = "en"
	}
	if p.AspectRatio == "" {
		p.AspectRatio = "9:16"
	}
	if p.TargetDuration == 0 {
		p.TargetDuration = 30
	}
	if p.SpeechRate == 0 {
		p.SpeechRate = 2.5
	}
	if p.MinVoiceOverFill == 0 {
		p.MinVoiceOverFill = 0.6
	}
	if p.KeyframeInterval == 0 {
		p.KeyframeInterval = 2
	}
	if p.VisualSamplingFPS == 0 {
		p.VisualSamplingFPS = 1
	}
	return p
}

// Validate checks parameter ranges.
func (p Params) Validate() error {
	if !aspectRatios[p.AspectRatio] {
		return fmt.Errorf("unsupported aspect ratio %q", p.AspectRatio)
	}
	if p.TargetDuration < 5 || p.TargetDuration > 180 {
		return fmt.Errorf("target duration must be 5-180 seconds, got %d", p.TargetDuration)
	}
	if p.MinVoiceOverFill < 0 || p.MinVoiceOverFill > 1 {
		return fmt.Errorf("min voice-over fill must be between 0 and 1")
	}
	if p.SpeechRate <= 0 || p.KeyframeInterval <= 0 || p.VisualSamplingFPS <= 0 {
		return fmt.Errorf("speech rate, keyframe interval and sampling rate must be positive")
	}
	return nil
}

// Client is the HTTP implementation of Reverser.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        zerolog.Logger
}

// NewClient creates a client for the service at baseURL.
func NewClient(baseURL, apiKey string, log zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		// Go Pattern: Always configure timeouts on HTTP clients.
		// Frame sampling and transcription of a long reference is slow.
		httpClient: &http.Client{Timeout: 3 * time.Minute},
		log:        log.With().Str("component", "ingest").Logger(),
	}
}

type serviceRequest struct {
	URL      string   `json:"url"`
	Platform Platform `json:"source_platform"`
	Params
}

type serviceResponse struct {
	Prompt        string `json:"prompt"`
	TranscriptVTT string `json:"transcript_vtt"`
	Error         string `json:"error"`
}

// Reverse normalizes the reference and asks the service for a prompt. Any
// failure comes back as one error carrying the service's raw text.
func (c *Client) Reverse(ctx context.Context, req Request) (*Result, error) {
	if c.baseURL == "" {
		return nil, ErrNotConfigured
	}
	ref, err := ParseReference(req.Reference)
	if err != nil {
		return nil, err
	}
	params := req.Params.Defaults()
	if err := params.Validate(); err != nil {
		return nil, err
	}

	body, err := json.Marshal(serviceRequest{URL: ref.URL, Platform: ref.Platform, Params: params})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/reverse", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	c.log.Info().Str("platform", string(ref.Platform)).Str("kind", string(ref.Kind)).Msg("reverse-engineering reference")
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("ingest request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ingest service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var out serviceResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if out.Error != "" {
		return nil, errors.New(out.Error)
	}
	if strings.TrimSpace(out.Prompt) == "" {
		return nil, fmt.Errorf("ingest service returned an empty prompt")
	}

	transcript := cleanTranscript(parseVTT(out.TranscriptVTT))
	return &Result{
		Reference:  ref,
		Prompt:     strings.TrimSpace(out.Prompt),
		Transcript: transcript,
		WordCount:  countWords(transcript),
	}, nil
}

var (
	timestampRegex = regexp.MustCompile(`^\d{2}:\d{2}(:\d{2})?[.,]\d{3}`)
	cueIDRegex     = regexp.MustCompile(`^\d+$`)
	tagRegex       = regexp.MustCompile(`<[^>]+>`)
	spaceRegex     = regexp.MustCompile(`\s+`)
)

// parseVTT extracts plain text from a WebVTT transcript.
//
//	WEBVTT
//	00:00:01.000 --> 00:00:04.000
//	Hello, welcome to the video.
func parseVTT(vtt string) string {
	var textLines []string
	seen := make(map[string]bool)

	for _, line := range strings.Split(vtt, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || line == "WEBVTT" || strings.HasPrefix(line, "Kind:") ||
			strings.HasPrefix(line, "Language:") || strings.HasPrefix(line, "NOTE") ||
			timestampRegex.MatchString(line) || cueIDRegex.MatchString(line) {
			continue
		}
		line = strings.TrimSpace(tagRegex.ReplaceAllString(line, ""))
		if line != "" && !seen[line] {
			seen[line] = true
			textLines = append(textLines, line)
		}
	}
	return strings.Join(textLines, " ")
}

// cleanTranscript normalizes whitespace and drops sound annotations.
func cleanTranscript(text string) string {
	for _, tag := range []string{"[Music]", "[Applause]", "[Laughter]"} {
		text = strings.ReplaceAll(text, tag, "")
	}
	return strings.TrimSpace(spaceRegex.ReplaceAllString(text, " "))
}

func countWords(text string) int {
	return len(strings.Fields(text))
}
