package pipeline

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// Mode tags which variant a GenerationRequest carries.
type Mode string

const (
	ModeDirectPrompt Mode = "direct_prompt"
	ModeStory        Mode = "story_mode"
)

// HookArchetype is the opening style of a story-mode script.
type HookArchetype string

const (
	HookQuestion    HookArchetype = "question"
	HookShock       HookArchetype = "shock"
	HookStory       HookArchetype = "story"
	HookTutorial    HookArchetype = "tutorial"
	HookCountdown   HookArchetype = "countdown"
	HookBeforeAfter HookArchetype = "before_after"
)

// hookThemes maps each archetype to the narration theme handed to the
// prompt refiner.
var hookThemes = map[HookArchetype]string{
	HookQuestion:    "Open with a provocative question the viewer wants answered",
	HookShock:       "Open with a surprising statistic or bold claim",
	HookStory:       "Open mid-story with a relatable personal moment",
	HookTutorial:    "Open by promising a quick, concrete how-to",
	HookCountdown:   "Structure the script as a countdown list",
	HookBeforeAfter: "Contrast a before and after transformation",
}

// NarrationTheme returns the refiner theme for h, or "" when h is empty.
func (h HookArchetype) NarrationTheme() string {
	return hookThemes[h]
}

// Valid reports whether h is empty or part of the vocabulary.
func (h HookArchetype) Valid() bool {
	if h == "" {
		return true
	}
	_, ok := hookThemes[h]
	return ok
}

// Target length bounds for story mode, in seconds.
const (
	MinTargetLength    = 5
	MaxTargetLength    = 90
	maxReferenceImages = 3
)

// DirectPrompt is the payload of a direct-prompt request.
type DirectPrompt struct {
	Prompt          string       `json:"prompt"`
	Model           ModelVariant `json:"model"`
	ReferenceImages []string     `json:"reference_images,omitempty"`
	StartFrame      string       `json:"start_frame,omitempty"`
	EndFrame        string       `json:"end_frame,omitempty"`
	Resolution      string       `json:"resolution,omitempty"`
	Duration        int          `json:"duration,omitempty"`
	Audio           bool         `json:"audio"`
	Pro             bool         `json:"pro"`
}

// Personalization is the optional tuning of a story-mode request. The same
// fields drive the wizard's refine step.
type Personalization struct {
	TargetLength int           `json:"target_length,omitempty"`
	Hook         HookArchetype `json:"hook,omitempty"`
	CallToAction string        `json:"call_to_action,omitempty"`
	Instructions string        `json:"instructions,omitempty"`
	Model        ModelVariant  `json:"model,omitempty"`
}

// IsZero reports whether no personalization field is set.
func (p Personalization) IsZero() bool {
	return p == Personalization{}
}

// StoryMode is the payload of a story-mode request: keywords or an
// account/link reference.
type StoryMode struct {
	Keywords        string          `json:"keywords,omitempty"`
	Reference       string          `json:"reference,omitempty"`
	Personalization Personalization `json:"personalization"`
}

// RequestInput is the unvalidated wire form of a request. Exactly one of the
// payloads must be set.
type RequestInput struct {
	DirectPrompt *DirectPrompt `json:"direct_prompt,omitempty"`
	StoryMode    *StoryMode    `json:"story_mode,omitempty"`
}

// GenerationRequest is a validated, immutable pipeline input. Construct it
// with NewGenerationRequest; the zero value is not usable.
type GenerationRequest struct {
	mode   Mode
	direct DirectPrompt
	story  StoryMode
}

// NewGenerationRequest validates in against the model catalog and fills in
// model defaults. The returned request shares no memory with in.
func NewGenerationRequest(in RequestInput, pricing Pricing) (GenerationRequest, error) {
	switch {
	case in.DirectPrompt != nil && in.StoryMode == nil:
		d, err := validateDirect(*in.DirectPrompt, pricing)
		if err != nil {
			return GenerationRequest{}, err
		}
		return GenerationRequest{mode: ModeDirectPrompt, direct: d}, nil
	case in.StoryMode != nil && in.DirectPrompt == nil:
		s, err := validateStory(*in.StoryMode, pricing)
		if err != nil {
			return GenerationRequest{}, err
		}
		return GenerationRequest{mode: ModeStory, story: s}, nil
	default:
		return GenerationRequest{}, ErrModeRequired
	}
}

func validateDirect(d DirectPrompt, pricing Pricing) (DirectPrompt, error) {
	d.Prompt = strings.TrimSpace(d.Prompt)
	m, ok := pricing.Model(d.Model)
	if !ok {
		return DirectPrompt{}, fmt.Errorf("%w: %q", ErrUnknownModel, d.Model)
	}
	if d.Prompt == "" {
		return DirectPrompt{}, ErrPromptRequired
	}

	images := make([]string, 0, len(d.ReferenceImages))
	for _, img := range d.ReferenceImages {
		if img = strings.TrimSpace(img); img != "" {
			images = append(images, img)
		}
	}
	if len(images) > maxReferenceImages {
		return DirectPrompt{}, ErrTooManyImages
	}
	if m.RequiresImage && len(images) == 0 {
		return DirectPrompt{}, fmt.Errorf("%w: %s", ErrImageRequired, m.Label)
	}
	d.ReferenceImages = images

	if d.Resolution == "" {
		d.Resolution = m.DefaultResolution
	} else if !slices.Contains(m.Resolutions, d.Resolution) {
		return DirectPrompt{}, fmt.Errorf("%w: %s on %s", ErrUnsupportedResolution, d.Resolution, m.Name)
	}
	if d.Duration == 0 {
		d.Duration = m.DefaultDuration
	} else if !slices.Contains(m.Durations, d.Duration) {
		return DirectPrompt{}, fmt.Errorf("%w: %ds on %s", ErrUnsupportedDuration, d.Duration, m.Name)
	}
	return d, nil
}

func validateStory(s StoryMode, pricing Pricing) (StoryMode, error) {
	s.Keywords = strings.TrimSpace(s.Keywords)
	s.Reference = strings.TrimSpace(s.Reference)
	switch {
	case s.Keywords == "" && s.Reference == "":
		return StoryMode{}, ErrStorySourceRequired
	case s.Keywords != "" && s.Reference != "":
		return StoryMode{}, ErrStorySourceAmbiguous
	}
	if err := validatePersonalization(s.Personalization, pricing); err != nil {
		return StoryMode{}, err
	}
	return s, nil
}

func validatePersonalization(p Personalization, pricing Pricing) error {
	if p.TargetLength != 0 && (p.TargetLength < MinTargetLength || p.TargetLength > MaxTargetLength) {
		return fmt.Errorf("%w: %d (want %d-%d seconds)", ErrInvalidTargetLength, p.TargetLength, MinTargetLength, MaxTargetLength)
	}
	if !p.Hook.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownHook, p.Hook)
	}
	if p.Model != "" {
		if _, ok := pricing.Model(p.Model); !ok {
			return fmt.Errorf("%w: %q", ErrUnknownModel, p.Model)
		}
	}
	return nil
}

// Mode returns the request variant.
func (r GenerationRequest) Mode() Mode { return r.mode }

// Direct returns the direct-prompt payload.
func (r GenerationRequest) Direct() (DirectPrompt, bool) {
	if r.mode != ModeDirectPrompt {
		return DirectPrompt{}, false
	}
	d := r.direct
	d.ReferenceImages = slices.Clone(r.direct.ReferenceImages)
	return d, true
}

// Story returns the story-mode payload.
func (r GenerationRequest) Story() (StoryMode, bool) {
	if r.mode != ModeStory {
		return StoryMode{}, false
	}
	return r.story, true
}

// Subject is the text ideas are synthesized from.
func (r GenerationRequest) Subject() string {
	if r.mode == ModeDirectPrompt {
		return r.direct.Prompt
	}
	if r.story.Keywords != "" {
		return r.story.Keywords
	}
	return r.story.Reference
}

// renderParams resolves the model, duration and flags used for pricing.
func (r GenerationRequest) renderParams(p Pricing) (ModelVariant, int, bool, bool) {
	if r.mode == ModeDirectPrompt {
		return r.direct.Model, r.direct.Duration, r.direct.Audio, r.direct.Pro
	}
	variant := r.story.Personalization.Model
	if variant == "" {
		variant = p.DefaultStoryModel
	}
	return variant, r.story.Personalization.TargetLength, false, false
}

// MarshalJSON renders the request in its wire form.
func (r GenerationRequest) MarshalJSON() ([]byte, error) {
	out := struct {
		Mode Mode `json:"mode"`
		RequestInput
	}{Mode: r.mode}
	switch r.mode {
	case ModeDirectPrompt:
		d, _ := r.Direct()
		out.DirectPrompt = &d
	case ModeStory:
		s := r.story
		out.StoryMode = &s
	}
	return json.Marshal(out)
}
