package ideas

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/Shimizu-Technology/reelforge-api/internal/pipeline"
)

const synthSystemPrompt = "You are a short-form video strategist. You turn a brief into distinct, " +
	"filmable concepts for TikTok, Reels and Shorts. You always answer with JSON only."

// LLMSynthesizer asks an LLM for a batch of ideas.
type LLMSynthesizer struct {
	client *Client
	model  string
}

// NewLLMSynthesizer creates a synthesizer. model may be empty to use the
// client's default.
func NewLLMSynthesizer(client *Client, model string) *LLMSynthesizer {
	return &LLMSynthesizer{client: client, model: model}
}

type llmIdea struct {
	ID                string `json:"id"`
	Title             string `json:"title"`
	VisualDescription string `json:"visual_description"`
	OverlayText       string `json:"overlay_text"`
	Narration         string `json:"narration"`
	Rationale         string `json:"rationale"`
	Trending          bool   `json:"trending"`
}

// Synthesize implements pipeline.Synthesizer. The reply is returned as the
// model gave it; the pipeline rejects batches of the wrong size.
func (s *LLMSynthesizer) Synthesize(ctx context.Context, req pipeline.GenerationRequest, n int) ([]pipeline.ContentIdea, error) {
	content, err := s.client.complete(ctx, s.model, synthSystemPrompt, buildSynthPrompt(req, n), 0.9)
	if err != nil {
		return nil, err
	}
	raw, err := parseIdeas(content)
	if err != nil {
		return nil, err
	}
	s.client.log.Info().Int("ideas", len(raw)).Str("mode", string(req.Mode())).Msg("ideas synthesized")
	return toContentIdeas(raw), nil
}

// buildSynthPrompt describes the request to the model.
func buildSynthPrompt(req pipeline.GenerationRequest, n int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Propose exactly %d distinct short-form video ideas.\n\n", n)

	if d, ok := req.Direct(); ok {
		fmt.Fprintf(&b, "**Brief:** %s\n", d.Prompt)
		fmt.Fprintf(&b, "**Clip:** %d seconds at %s on %s", d.Duration, d.Resolution, d.Model)
		if d.Audio {
			b.WriteString(", with generated audio")
		}
		b.WriteString("\n")
		if len(d.ReferenceImages) > 0 {
			fmt.Fprintf(&b, "**Reference images:** %d supplied; keep the look consistent with them.\n", len(d.ReferenceImages))
		}
	}
	if st, ok := req.Story(); ok {
		if st.Keywords != "" {
			fmt.Fprintf(&b, "**Keywords:** %s\n", st.Keywords)
		} else {
			fmt.Fprintf(&b, "**Inspired by account or video:** %s\n", st.Reference)
		}
		p := st.Personalization
		if p.TargetLength > 0 {
			fmt.Fprintf(&b, "**Target length:** %d seconds\n", p.TargetLength)
		}
		if theme := p.Hook.NarrationTheme(); theme != "" {
			fmt.Fprintf(&b, "**Hook:** %s\n", theme)
		}
		if p.CallToAction != "" {
			fmt.Fprintf(&b, "**Call to action:** %s\n", p.CallToAction)
		}
		if p.Instructions != "" {
			fmt.Fprintf(&b, "**Extra instructions:** %s\n", p.Instructions)
		}
	}

	b.WriteString(`
**Important:** Respond with a JSON array only, one object per idea:
[
  {
    "id": "idea-1",
    "title": "Short punchy title",
    "visual_description": "What the camera sees",
    "overlay_text": "On-screen text",
    "narration": "Voice-over script",
    "rationale": "Why this will perform",
    "trending": false
  }
]`)
	return b.String()
}

// parseIdeas accepts a bare JSON array, an {"ideas": [...]} object, or
// either of those wrapped in markdown.
func parseIdeas(content string) ([]llmIdea, error) {
	var ideas []llmIdea
	if err := json.Unmarshal([]byte(content), &ideas); err == nil {
		return ideas, nil
	}

	var wrapped struct {
		Ideas []llmIdea `json:"ideas"`
	}
	if err := json.Unmarshal([]byte(content), &wrapped); err == nil && wrapped.Ideas != nil {
		return wrapped.Ideas, nil
	}

	if arr, ok := extractJSON(content, '[', ']'); ok {
		if err := json.Unmarshal([]byte(arr), &ideas); err == nil {
			return ideas, nil
		}
	}
	if obj, ok := extractJSON(content, '{', '}'); ok {
		if err := json.Unmarshal([]byte(obj), &wrapped); err == nil && wrapped.Ideas != nil {
			return wrapped.Ideas, nil
		}
	}
	return nil, fmt.Errorf("model reply is not an idea list")
}

// toContentIdeas trims fields and gives every idea a unique id. Explicit
// ids are claimed first so a generated "idea-N" never shadows a later one.
func toContentIdeas(raw []llmIdea) []pipeline.ContentIdea {
	ids := make([]string, len(raw))
	taken := make(map[string]bool, len(raw))
	for i, r := range raw {
		id := strings.TrimSpace(r.ID)
		if id == "" || taken[id] {
			continue
		}
		taken[id] = true
		ids[i] = id
	}
	next := 1
	for i := range ids {
		if ids[i] != "" {
			continue
		}
		for taken[fmt.Sprintf("idea-%d", next)] {
			next++
		}
		ids[i] = fmt.Sprintf("idea-%d", next)
		taken[ids[i]] = true
	}

	out := make([]pipeline.ContentIdea, len(raw))
	for i, r := range raw {
		out[i] = pipeline.ContentIdea{
			ID:                ids[i],
			Title:             strings.TrimSpace(r.Title),
			VisualDescription: strings.TrimSpace(r.VisualDescription),
			OverlayText:       strings.TrimSpace(r.OverlayText),
			Narration:         strings.TrimSpace(r.Narration),
			Rationale:         strings.TrimSpace(r.Rationale),
			Trending:          r.Trending,
		}
	}
	return out
}

// StaticSynthesizer builds ideas from fixed templates. It is used when no
// LLM is configured and keeps local development offline.
type StaticSynthesizer struct{}

type template struct {
	title     string
	visual    string
	overlay   string
	narration string
	rationale string
	trending  bool
}

var templates = []template{
	{"%s in 5 seconds", "Fast cuts of %s with a whip-pan on every beat", "Wait for it", "Here is %s like you have never seen it.", "Short payoff loops drive rewatches", true},
	{"The truth about %s", "Talking-head framing over b-roll of %s", "Nobody tells you this", "Everyone gets %s wrong. Here is why.", "Contrarian hooks lift comment rates", false},
	{"%s: before and after", "Split screen contrasting a rough and a polished take on %s", "Before / After", "This is what changed when we rethought %s.", "Transformations are easy to follow without sound", true},
	{"3 %s mistakes", "Numbered overlays over close-ups of %s", "Mistake #1", "Three mistakes people make with %s, and the fix.", "List formats hold attention to the end", false},
	{"A day with %s", "Handheld POV following %s from morning to night", "POV", "Come along for a day built around %s.", "POV storytelling builds parasocial trust", false},
	{"%s asmr", "Macro shots and close-mic sound of %s", "Sound on", "Just %s. Nothing else.", "Sensory content performs on autoplay feeds", true},
	{"Ask me about %s", "Green-screen reply to a viewer question about %s", "You asked", "You asked about %s, so here is the answer.", "Reply videos ride existing conversations", false},
}

// Synthesize implements pipeline.Synthesizer.
func (StaticSynthesizer) Synthesize(ctx context.Context, req pipeline.GenerationRequest, n int) ([]pipeline.ContentIdea, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	subject := strings.TrimSpace(req.Subject())
	if subject == "" {
		return nil, fmt.Errorf("request has no subject")
	}
	short := shortSubject(subject)
	title := cases.Title(language.English)

	out := make([]pipeline.ContentIdea, n)
	for i := range out {
		t := templates[i%len(templates)]
		out[i] = pipeline.ContentIdea{
			ID:                fmt.Sprintf("idea-%d", i+1),
			Title:             title.String(fmt.Sprintf(t.title, short)),
			VisualDescription: fmt.Sprintf(t.visual, short),
			OverlayText:       t.overlay,
			Narration:         fmt.Sprintf(t.narration, short),
			Rationale:         t.rationale,
			Trending:          t.trending,
		}
	}
	return out, nil
}

// shortSubject keeps titles readable for long prompts.
func shortSubject(s string) string {
	words := strings.Fields(s)
	if len(words) > 6 {
		words = words[:6]
	}
	return strings.Join(words, " ")
}

// NewSynthesizer picks the LLM synthesizer when client has an API key and
// the static one otherwise.
func NewSynthesizer(client *Client, model string) pipeline.Synthesizer {
	if client.Configured() {
		return NewLLMSynthesizer(client, model)
	}
	return StaticSynthesizer{}
}
