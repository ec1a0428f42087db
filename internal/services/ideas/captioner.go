package ideas

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/Shimizu-Technology/reelforge-api/internal/pipeline"
)

const captionSystemPrompt = "You write on-screen captions for short-form video. You translate a " +
	"voice-over into each requested language, keep it natural and short enough to read, " +
	"and always answer with a JSON object only."

// captionModels maps the caption models users pick to OpenRouter model ids.
var captionModels = map[pipeline.CaptionModel]string{
	pipeline.CaptionGPT4oMini:   "openai/gpt-4o-mini",
	pipeline.CaptionClaudeHaiku: "anthropic/claude-3.5-haiku",
	pipeline.CaptionGeminiFlash: "google/gemini-2.0-flash-001",
}

// LLMCaptioner writes captions with the model the user picked.
type LLMCaptioner struct {
	client *Client
}

// NewLLMCaptioner creates a captioner backed by client.
func NewLLMCaptioner(client *Client) *LLMCaptioner {
	return &LLMCaptioner{client: client}
}

// Caption implements pipeline.Captioner.
func (c *LLMCaptioner) Caption(ctx context.Context, in pipeline.CaptionInput) (map[string]string, error) {
	if strings.TrimSpace(in.Narration) == "" {
		return nil, fmt.Errorf("nothing to caption")
	}
	content, err := c.client.complete(ctx, captionModels[in.Model], captionSystemPrompt, buildCaptionPrompt(in), 0.3)
	if err != nil {
		return nil, err
	}
	captions, err := parseCaptions(content)
	if err != nil {
		return nil, err
	}
	c.client.log.Info().Int("languages", len(captions)).Str("model", string(in.Model)).Msg("captions written")
	return captions, nil
}

func buildCaptionPrompt(in pipeline.CaptionInput) string {
	var b strings.Builder
	if in.Title != "" {
		fmt.Fprintf(&b, "**Video:** %s\n", in.Title)
	}
	fmt.Fprintf(&b, "**Voice-over:** %s\n\n", strings.TrimSpace(in.Narration))
	b.WriteString("Write the caption in each of these languages:\n")
	for _, code := range in.Languages {
		fmt.Fprintf(&b, "- %s (%s)\n", code, englishName(code))
	}
	b.WriteString("\n**Important:** Respond with a JSON object mapping each language code to its caption, ")
	b.WriteString(`for example {"en": "...", "fr": "..."}.`)
	return b.String()
}

// parseCaptions accepts a bare object or one wrapped in markdown or prose.
func parseCaptions(content string) (map[string]string, error) {
	var out map[string]string
	if err := json.Unmarshal([]byte(content), &out); err == nil && len(out) > 0 {
		return out, nil
	}
	if obj, ok := extractJSON(content, '{', '}'); ok {
		if err := json.Unmarshal([]byte(obj), &out); err == nil && len(out) > 0 {
			return out, nil
		}
	}
	return nil, fmt.Errorf("model reply is not a caption object")
}

func englishName(code string) string {
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	return display.English.Tags().Name(tag)
}

// StaticCaptioner labels the narration with each language's own name. It
// is the offline fallback for LLMCaptioner and does not translate.
type StaticCaptioner struct{}

// Caption implements pipeline.Captioner.
func (StaticCaptioner) Caption(ctx context.Context, in pipeline.CaptionInput) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	text := strings.TrimSpace(in.Narration)
	if text == "" {
		return nil, fmt.Errorf("nothing to caption")
	}
	out := make(map[string]string, len(in.Languages))
	for _, code := range in.Languages {
		tag, err := language.Parse(code)
		if err != nil {
			return nil, fmt.Errorf("invalid language %q: %w", code, err)
		}
		if base, _ := tag.Base(); base.String() == "en" {
			out[code] = text
			continue
		}
		out[code] = fmt.Sprintf("[%s] %s", display.Self.Name(tag), text)
	}
	return out, nil
}

// NewCaptioner picks the LLM captioner when client has an API key.
func NewCaptioner(client *Client) pipeline.Captioner {
	if client.Configured() {
		return NewLLMCaptioner(client)
	}
	return StaticCaptioner{}
}
