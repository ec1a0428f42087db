// Package ideas generates content ideas and refines prompts with an LLM via
// OpenRouter, with deterministic fallbacks for when no API key is set.
//
// OpenRouter provides a unified API for multiple LLM providers (OpenAI,
// Anthropic, Google, etc.) using a single API key. The request format
// follows the OpenAI chat completions standard.
package ideas

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// DefaultBaseURL is the OpenRouter API root.
const DefaultBaseURL = "https://openrouter.ai/api/v1"

// ErrNoAPIKey is returned when the client has no OpenRouter key.
var ErrNoAPIKey = errors.New("OpenRouter API key not configured; set OPENROUTER_API_KEY")

// Client is a minimal OpenRouter chat completions client shared by the
// synthesizer and the refiner.
type Client struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	log        zerolog.Logger
}

// NewClient creates a client. baseURL may be empty for the public endpoint.
func NewClient(apiKey, defaultModel, baseURL string, log zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		apiKey:  apiKey,
		model:   defaultModel,
		baseURL: strings.TrimRight(baseURL, "/"),
		// Go Pattern: Always configure timeouts on HTTP clients.
		// The default http.Client has NO timeout.
		httpClient: &http.Client{Timeout: 120 * time.Second},
		log:        log.With().Str("component", "openrouter").Logger(),
	}
}

// Configured reports whether an API key is set.
func (c *Client) Configured() bool { return c != nil && c.apiKey != "" }

// These match the OpenAI chat completions format used by OpenRouter.

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Model string `json:"model"`
	Error *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// complete sends one system + user exchange and returns the reply text.
func (c *Client) complete(ctx context.Context, model, system, user string, temperature float64) (string, error) {
	if !c.Configured() {
		return "", ErrNoAPIKey
	}
	if model == "" {
		model = c.model
	}

	body, err := json.Marshal(chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: temperature,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("HTTP-Referer", "https://github.com/Shimizu-Technology/reelforge-api")
	req.Header.Set("X-Title", "ReelForge API")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("OpenRouter request failed: %w", err)
	}
	defer resp.Body.Close() // Go Pattern: ALWAYS close response bodies!

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("OpenRouter returned %d: %s", resp.StatusCode, string(raw))
	}

	var chat chatResponse
	if err := json.Unmarshal(raw, &chat); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if chat.Error != nil {
		return "", fmt.Errorf("OpenRouter error: %s", chat.Error.Message)
	}
	if len(chat.Choices) == 0 {
		return "", fmt.Errorf("no response from model")
	}

	c.log.Debug().Str("model", model).Dur("took", time.Since(start)).Msg("completion received")
	return chat.Choices[0].Message.Content, nil
}

// extractJSON returns the first balanced value between opening and closing
// in content. Models sometimes wrap JSON in markdown fences or prose.
func extractJSON(content string, opening, closing rune) (string, bool) {
	start, depth := -1, 0
	inString, escaped := false, false
	for i, c := range content {
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			if start >= 0 {
				inString = true
			}
		case opening:
			if depth == 0 {
				start = i
			}
			depth++
		case closing:
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 {
				return content[start : i+1], true
			}
		}
	}
	return "", false
}
