package pipeline

import (
	"context"
	"fmt"
)

// ContentIdea is one synthesized creative concept.
type ContentIdea struct {
	ID                string `json:"id"`
	Title             string `json:"title"`
	VisualDescription string `json:"visual_description"`
	OverlayText       string `json:"overlay_text"`
	Narration         string `json:"narration"`
	Rationale         string `json:"rationale"`
	Trending          bool   `json:"trending"`
}

// Synthesizer produces a batch of ideas for a request. Implementations must
// return exactly n ideas or an error.
type Synthesizer interface {
	Synthesize(ctx context.Context, req GenerationRequest, n int) ([]ContentIdea, error)
}

// RefineInput is what the wizard sends to the prompt refiner.
type RefineInput struct {
	BasePrompt     string
	Duration       int
	NarrationTheme string
	CallToAction   string
	Instructions   string
	Model          ModelVariant
}

// Refiner rewrites a base prompt using personalization fields.
type Refiner interface {
	Refine(ctx context.Context, in RefineInput) (string, error)
}

// IdeasStatus is the loading state of the ideas stage.
type IdeasStatus string

const (
	IdeasIdle    IdeasStatus = "idle"
	IdeasLoading IdeasStatus = "loading"
	IdeasReady   IdeasStatus = "ready"
	IdeasFailed  IdeasStatus = "failed"
)

// synthesizeBatch runs the synthesizer and enforces the all-or-nothing
// batch contract: the right count, every idea with a unique id and a title.
func synthesizeBatch(ctx context.Context, s Synthesizer, req GenerationRequest, n int) ([]ContentIdea, error) {
	ideas, err := s.Synthesize(ctx, req, n)
	if err != nil {
		return nil, Upstream("idea synthesis", err)
	}
	if len(ideas) != n {
		return nil, Upstream("idea synthesis", fmt.Errorf("%w: got %d ideas, want %d", ErrIdeaBatchInvalid, len(ideas), n))
	}
	seen := make(map[string]bool, n)
	for i, idea := range ideas {
		if idea.ID == "" || idea.Title == "" {
			return nil, Upstream("idea synthesis", fmt.Errorf("%w: idea %d is missing an id or title", ErrIdeaBatchInvalid, i))
		}
		if seen[idea.ID] {
			return nil, Upstream("idea synthesis", fmt.Errorf("%w: duplicate idea id %s", ErrIdeaBatchInvalid, idea.ID))
		}
		seen[idea.ID] = true
	}
	out := make([]ContentIdea, n)
	copy(out, ideas)
	return out, nil
}
