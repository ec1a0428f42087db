package pipeline

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestNewGenerationRequest(t *testing.T) {
	pricing := DefaultPricing()

	tests := []struct {
		name     string
		in       RequestInput
		wantErr  error
		wantMode Mode
	}{
		{
			name:    "no payload",
			in:      RequestInput{},
			wantErr: ErrModeRequired,
		},
		{
			name: "both payloads",
			in: RequestInput{
				DirectPrompt: &DirectPrompt{Prompt: "x", Model: ModelKling},
				StoryMode:    &StoryMode{Keywords: "x"},
			},
			wantErr: ErrModeRequired,
		},
		{
			name:    "unknown model",
			in:      RequestInput{DirectPrompt: &DirectPrompt{Prompt: "x", Model: "sora"}},
			wantErr: ErrUnknownModel,
		},
		{
			name:    "blank prompt",
			in:      RequestInput{DirectPrompt: &DirectPrompt{Prompt: "   ", Model: ModelKling}},
			wantErr: ErrPromptRequired,
		},
		{
			name:    "veo without image",
			in:      RequestInput{DirectPrompt: &DirectPrompt{Prompt: "x", Model: ModelVeo, ReferenceImages: []string{" "}}},
			wantErr: ErrImageRequired,
		},
		{
			name: "too many images",
			in: RequestInput{DirectPrompt: &DirectPrompt{
				Prompt: "x", Model: ModelKling,
				ReferenceImages: []string{"a.png", "b.png", "c.png", "d.png"},
			}},
			wantErr: ErrTooManyImages,
		},
		{
			name:    "unsupported resolution",
			in:      RequestInput{DirectPrompt: &DirectPrompt{Prompt: "x", Model: ModelKling, Resolution: "4k"}},
			wantErr: ErrUnsupportedResolution,
		},
		{
			name:    "unsupported duration",
			in:      RequestInput{DirectPrompt: &DirectPrompt{Prompt: "x", Model: ModelHailuo, Duration: 7}},
			wantErr: ErrUnsupportedDuration,
		},
		{
			name:     "veo with image",
			in:       RequestInput{DirectPrompt: &DirectPrompt{Prompt: "x", Model: ModelVeo, ReferenceImages: []string{"frame.png"}}},
			wantMode: ModeDirectPrompt,
		},
		{
			name:    "story without source",
			in:      RequestInput{StoryMode: &StoryMode{}},
			wantErr: ErrStorySourceRequired,
		},
		{
			name:    "story with both sources",
			in:      RequestInput{StoryMode: &StoryMode{Keywords: "coffee", Reference: "@barista"}},
			wantErr: ErrStorySourceAmbiguous,
		},
		{
			name:    "story target too long",
			in:      RequestInput{StoryMode: &StoryMode{Keywords: "coffee", Personalization: Personalization{TargetLength: 120}}},
			wantErr: ErrInvalidTargetLength,
		},
		{
			name:    "story unknown hook",
			in:      RequestInput{StoryMode: &StoryMode{Keywords: "coffee", Personalization: Personalization{Hook: "clickbait"}}},
			wantErr: ErrUnknownHook,
		},
		{
			name:    "story unknown model",
			in:      RequestInput{StoryMode: &StoryMode{Reference: "@barista", Personalization: Personalization{Model: "sora"}}},
			wantErr: ErrUnknownModel,
		},
		{
			name: "story personalized",
			in: RequestInput{StoryMode: &StoryMode{Reference: "https://tiktok.com/@barista", Personalization: Personalization{
				TargetLength: 30, Hook: HookCountdown, CallToAction: "follow for more",
			}}},
			wantMode: ModeStory,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := NewGenerationRequest(tt.in, pricing)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("NewGenerationRequest() error = %v, want %v", err, tt.wantErr)
				}
				if KindOf(err) != KindValidation {
					t.Errorf("KindOf() = %s, want validation", KindOf(err))
				}
				return
			}
			if err != nil {
				t.Fatalf("NewGenerationRequest() error = %v", err)
			}
			if req.Mode() != tt.wantMode {
				t.Errorf("Mode() = %s, want %s", req.Mode(), tt.wantMode)
			}
		})
	}
}

func TestNewGenerationRequestFillsDefaults(t *testing.T) {
	in := &DirectPrompt{Prompt: "  foam heart  ", Model: ModelHailuo, ReferenceImages: []string{"a.png", ""}}
	req, err := NewGenerationRequest(RequestInput{DirectPrompt: in}, DefaultPricing())
	if err != nil {
		t.Fatalf("NewGenerationRequest() error = %v", err)
	}
	d, ok := req.Direct()
	if !ok {
		t.Fatal("Direct() ok = false")
	}
	if d.Prompt != "foam heart" || d.Resolution != "768p" || d.Duration != 6 {
		t.Errorf("Direct() = %+v, want trimmed prompt and hailuo defaults", d)
	}
	if len(d.ReferenceImages) != 1 {
		t.Errorf("ReferenceImages = %v, want blanks dropped", d.ReferenceImages)
	}

	// The request does not alias the caller's input.
	in.ReferenceImages[0] = "changed.png"
	d.ReferenceImages[0] = "mutated.png"
	again, _ := req.Direct()
	if again.ReferenceImages[0] != "a.png" {
		t.Errorf("request was mutated: %v", again.ReferenceImages)
	}
	if _, ok := req.Story(); ok {
		t.Error("Story() ok = true for a direct request")
	}
	if req.Subject() != "foam heart" {
		t.Errorf("Subject() = %q", req.Subject())
	}
}

func TestGenerationRequestJSON(t *testing.T) {
	req, err := NewGenerationRequest(RequestInput{StoryMode: &StoryMode{Keywords: "espresso"}}, DefaultPricing())
	if err != nil {
		t.Fatalf("NewGenerationRequest() error = %v", err)
	}
	b, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	got := string(b)
	if !strings.Contains(got, `"mode":"story_mode"`) || !strings.Contains(got, `"keywords":"espresso"`) {
		t.Errorf("Marshal() = %s", got)
	}
	if strings.Contains(got, "direct_prompt") {
		t.Errorf("Marshal() = %s, should omit the other payload", got)
	}
}

func TestHookNarrationTheme(t *testing.T) {
	for hook := range hookThemes {
		if !hook.Valid() || hook.NarrationTheme() == "" {
			t.Errorf("hook %q has no theme", hook)
		}
	}
	if HookArchetype("").NarrationTheme() != "" || !HookArchetype("").Valid() {
		t.Error("empty hook should be valid with no theme")
	}
}

func TestEstimate(t *testing.T) {
	pricing := DefaultPricing()

	tests := []struct {
		name string
		in   RequestInput
		want int
	}{
		{name: "kling default", in: RequestInput{DirectPrompt: &DirectPrompt{Prompt: "x", Model: ModelKling}}, want: 25},
		{name: "kling 10s", in: RequestInput{DirectPrompt: &DirectPrompt{Prompt: "x", Model: ModelKling, Duration: 10}}, want: 50},
		{name: "veo 4s", in: RequestInput{DirectPrompt: &DirectPrompt{Prompt: "x", Model: ModelVeo, Duration: 4, ReferenceImages: []string{"a"}}}, want: 20},
		{name: "hailuo 10s rounds up", in: RequestInput{DirectPrompt: &DirectPrompt{Prompt: "x", Model: ModelHailuo, Duration: 10}}, want: 25},
		{name: "audio and pro", in: RequestInput{DirectPrompt: &DirectPrompt{Prompt: "x", Model: ModelKling, Audio: true, Pro: true}}, want: 60},
		{name: "story default model", in: RequestInput{StoryMode: &StoryMode{Keywords: "x"}}, want: 25},
		{name: "story target length", in: RequestInput{StoryMode: &StoryMode{Keywords: "x", Personalization: Personalization{TargetLength: 12}}}, want: 60},
		{name: "story model override", in: RequestInput{StoryMode: &StoryMode{Keywords: "x", Personalization: Personalization{Model: ModelHailuo}}}, want: 15},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := NewGenerationRequest(tt.in, pricing)
			if err != nil {
				t.Fatalf("NewGenerationRequest() error = %v", err)
			}
			if got := pricing.Estimate(req); got != tt.want {
				t.Errorf("Estimate() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestModelNamesSorted(t *testing.T) {
	names := DefaultPricing().ModelNames()
	want := []ModelVariant{ModelHailuo, ModelKling, ModelVeo}
	if len(names) != len(want) {
		t.Fatalf("ModelNames() = %v", names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("ModelNames()[%d] = %s, want %s", i, names[i], want[i])
		}
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{name: "nil", err: nil, want: ""},
		{name: "validation", err: ErrNoPlatforms, want: KindValidation},
		{name: "wrapped conflict", err: errors.Join(errors.New("ctx"), ErrStepLocked), want: KindConflict},
		{name: "not found", err: ErrJobNotFound, want: KindNotFound},
		{name: "upstream", err: Upstream("idea synthesis", errors.New("timeout")), want: KindUpstream},
		{name: "unknown", err: errors.New("boom"), want: KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %q, want %q", got, tt.want)
			}
		})
	}
	if Upstream("x", nil) != nil {
		t.Error("Upstream(nil) should be nil")
	}
}
