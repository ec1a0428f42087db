package ideas

import (
	"context"
	"fmt"
	"strings"

	"github.com/Shimizu-Technology/reelforge-api/internal/pipeline"
)

const refineSystemPrompt = "You rewrite short-form video scripts. Keep the creator's idea and voice, " +
	"apply every constraint you are given, and reply with the final script text only."

// LLMRefiner rewrites wizard prompts with an LLM.
type LLMRefiner struct {
	client *Client
}

// NewLLMRefiner creates a refiner backed by client.
func NewLLMRefiner(client *Client) *LLMRefiner {
	return &LLMRefiner{client: client}
}

// Refine implements pipeline.Refiner.
func (r *LLMRefiner) Refine(ctx context.Context, in pipeline.RefineInput) (string, error) {
	if strings.TrimSpace(in.BasePrompt) == "" {
		return "", pipeline.ErrPromptRequired
	}
	content, err := r.client.complete(ctx, "", refineSystemPrompt, buildRefinePrompt(in), 0.7)
	if err != nil {
		return "", err
	}
	script := stripFences(content)
	if script == "" {
		return "", fmt.Errorf("model returned an empty script")
	}
	return script, nil
}

func buildRefinePrompt(in pipeline.RefineInput) string {
	var b strings.Builder
	b.WriteString("Rewrite this script:\n\n")
	b.WriteString(strings.TrimSpace(in.BasePrompt))
	b.WriteString("\n\n**Constraints:**\n")
	for _, line := range constraints(in) {
		b.WriteString("- ")
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

// constraints lists the personalization fields that are set, in a fixed
// order.
func constraints(in pipeline.RefineInput) []string {
	var out []string
	if in.Duration > 0 {
		out = append(out, fmt.Sprintf("Fit a %d second video", in.Duration))
	}
	if in.NarrationTheme != "" {
		out = append(out, in.NarrationTheme)
	}
	if in.CallToAction != "" {
		out = append(out, "End with this call to action: "+in.CallToAction)
	}
	if in.Instructions != "" {
		out = append(out, in.Instructions)
	}
	if in.Model != "" {
		out = append(out, fmt.Sprintf("Describe shots the %s video model can render", in.Model))
	}
	if len(out) == 0 {
		out = append(out, "Tighten the wording for a vertical short-form video")
	}
	return out
}

// stripFences removes a surrounding markdown code fence, if any.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// TemplateRefiner appends the personalization as plain directions. It is the
// offline fallback for LLMRefiner.
type TemplateRefiner struct{}

// Refine implements pipeline.Refiner.
func (TemplateRefiner) Refine(ctx context.Context, in pipeline.RefineInput) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	base := strings.TrimSpace(in.BasePrompt)
	if base == "" {
		return "", pipeline.ErrPromptRequired
	}
	var b strings.Builder
	b.WriteString(base)
	for _, line := range constraints(in) {
		b.WriteString("\n")
		b.WriteString(line)
		b.WriteString(".")
	}
	return b.String(), nil
}

// NewRefiner picks the LLM refiner when client has an API key.
func NewRefiner(client *Client) pipeline.Refiner {
	if client.Configured() {
		return NewLLMRefiner(client)
	}
	return TemplateRefiner{}
}
