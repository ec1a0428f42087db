package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestNextGate(t *testing.T) {
	tests := []struct {
		from GateState
		ev   GateEvent
		want GateState
	}{
		{GateLocked, EventScriptCopied, GateReady},
		{GateLocked, EventRefineSucceeded, GateReady},
		{GateLocked, EventPromptEdited, GateLocked},
		{GateLocked, EventPersonalizationTouched, GateLocked},
		{GateReady, EventPromptEdited, GateStale},
		{GateReady, EventPersonalizationTouched, GateStale},
		{GateReady, EventScriptCopied, GateReady},
		{GateStale, EventScriptCopied, GateReady},
		{GateStale, EventRefineSucceeded, GateReady},
		{GateStale, EventPromptEdited, GateStale},
		{GateReady, "Unknown", GateReady},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"/"+string(tt.ev), func(t *testing.T) {
			if got := NextGate(tt.from, tt.ev); got != tt.want {
				t.Errorf("NextGate(%s, %s) = %s, want %s", tt.from, tt.ev, got, tt.want)
			}
		})
	}
}

func TestWizardStepString(t *testing.T) {
	if StepCinematize.String() != "cinematize" || WizardStep(9).String() != "unknown" {
		t.Errorf("String() = %q / %q", StepCinematize.String(), WizardStep(9).String())
	}
}

func TestWizardEditOnStepThreeRelocks(t *testing.T) {
	h := newHarness(t, 500)
	ctx := context.Background()

	if _, err := h.s.GoToStep(StepPersonalize); !errors.Is(err, ErrPromptRequired) {
		t.Fatalf("GoToStep(2) without prompt error = %v, want ErrPromptRequired", err)
	}
	if _, err := h.s.EditWizardPrompt("a barista pours a rosetta"); err != nil {
		t.Fatalf("EditWizardPrompt() error = %v", err)
	}
	if _, err := h.s.GoToStep(StepCinematize); !errors.Is(err, ErrStepSkipped) {
		t.Fatalf("GoToStep(3) from 1 error = %v, want ErrStepSkipped", err)
	}
	if _, err := h.s.GoToStep(StepPersonalize); err != nil {
		t.Fatalf("GoToStep(2) error = %v", err)
	}
	if _, err := h.s.GoToStep(StepCinematize); !errors.Is(err, ErrStepLocked) {
		t.Fatalf("GoToStep(3) before copy error = %v, want ErrStepLocked", err)
	}

	view, err := h.s.CopyScript(ctx)
	if err != nil {
		t.Fatalf("CopyScript() error = %v", err)
	}
	if view.Gate != GateReady || view.Script != "a barista pours a rosetta" {
		t.Errorf("after copy gate=%s script=%q", view.Gate, view.Script)
	}
	if h.refiner.Calls() != 0 {
		t.Errorf("refiner called %d times without personalization changes", h.refiner.Calls())
	}
	if _, err := h.s.GoToStep(StepCinematize); err != nil {
		t.Fatalf("GoToStep(3) after copy error = %v", err)
	}

	view, err = h.s.EditWizardPrompt("a barista pours a swan")
	if err != nil {
		t.Fatalf("EditWizardPrompt() error = %v", err)
	}
	if view.Gate != GateStale || view.Step != StepCinematize {
		t.Errorf("after edit on step 3 gate=%s step=%s", view.Gate, view.Step)
	}
	if view.CanAdvance {
		t.Error("CanAdvance = true with a stale gate")
	}
	if _, err := h.s.GoToStep(StepCaptionize); !errors.Is(err, ErrStepLocked) {
		t.Fatalf("GoToStep(4) with stale gate error = %v, want ErrStepLocked", err)
	}

	if _, err := h.s.GoToStep(StepPersonalize); err != nil {
		t.Fatalf("GoToStep(2) error = %v", err)
	}
	if _, err := h.s.GoToStep(StepCinematize); !errors.Is(err, ErrStepLocked) {
		t.Fatalf("GoToStep(3) with stale gate error = %v, want ErrStepLocked", err)
	}

	view, err = h.s.CopyScript(ctx)
	if err != nil {
		t.Fatalf("CopyScript() error = %v", err)
	}
	if view.Script != "a barista pours a swan" {
		t.Errorf("Script = %q, want the edited prompt", view.Script)
	}
	for _, step := range []WizardStep{StepCinematize, StepCaptionize, StepSchedule} {
		if _, err := h.s.GoToStep(step); err != nil {
			t.Fatalf("GoToStep(%s) error = %v", step, err)
		}
	}
	if _, err := h.s.GoToStep(6); !errors.Is(err, ErrStepOutOfRange) {
		t.Errorf("GoToStep(6) error = %v, want ErrStepOutOfRange", err)
	}
}

func TestWizardEditBeforeCinematizeKeepsGate(t *testing.T) {
	h := newHarness(t, 500)
	if _, err := h.s.EditWizardPrompt("a barista pours a rosetta"); err != nil {
		t.Fatalf("EditWizardPrompt() error = %v", err)
	}
	if _, err := h.s.GoToStep(StepPersonalize); err != nil {
		t.Fatalf("GoToStep(2) error = %v", err)
	}
	if _, err := h.s.CopyScript(context.Background()); err != nil {
		t.Fatalf("CopyScript() error = %v", err)
	}

	view, err := h.s.EditWizardPrompt("a barista pours a tulip")
	if err != nil {
		t.Fatalf("EditWizardPrompt() error = %v", err)
	}
	if view.Gate != GateReady || !view.CanAdvance {
		t.Errorf("after edit on step 2 gate=%s can_advance=%v, want ready", view.Gate, view.CanAdvance)
	}
	if _, err := h.s.GoToStep(StepCinematize); err != nil {
		t.Errorf("GoToStep(3) error = %v", err)
	}
}

func TestWizardRefinesTouchedPersonalization(t *testing.T) {
	h := newHarness(t, 500)
	ctx := context.Background()

	if _, err := h.s.CopyScript(ctx); !errors.Is(err, ErrWrongStage) {
		t.Fatalf("CopyScript() on step 1 error = %v, want ErrWrongStage", err)
	}
	h.s.EditWizardPrompt("espresso pull close-up")
	if _, err := h.s.GoToStep(StepPersonalize); err != nil {
		t.Fatalf("GoToStep(2) error = %v", err)
	}

	_, err := h.s.TouchPersonalization(Personalization{Hook: "clickbait"})
	wantErr(t, err, ErrUnknownHook)

	view, err := h.s.TouchPersonalization(Personalization{Hook: HookQuestion, TargetLength: 20})
	if err != nil {
		t.Fatalf("TouchPersonalization() error = %v", err)
	}
	if !view.PersonalizationDirty {
		t.Error("PersonalizationDirty = false after touch")
	}

	view, err = h.s.CopyScript(ctx)
	if err != nil {
		t.Fatalf("CopyScript() error = %v", err)
	}
	if h.refiner.Calls() != 1 {
		t.Errorf("refiner calls = %d, want 1", h.refiner.Calls())
	}
	if !strings.Contains(view.Script, HookQuestion.NarrationTheme()) {
		t.Errorf("Script = %q, want the refined prompt", view.Script)
	}
	if view.Gate != GateReady || view.PersonalizationDirty {
		t.Errorf("after refine gate=%s dirty=%v", view.Gate, view.PersonalizationDirty)
	}

	// Untouched personalization short-circuits the refiner.
	if _, err := h.s.CopyScript(ctx); err != nil {
		t.Fatalf("CopyScript() error = %v", err)
	}
	if h.refiner.Calls() != 1 {
		t.Errorf("refiner calls = %d, want still 1", h.refiner.Calls())
	}
}

func TestWizardRefineFailureKeepsGate(t *testing.T) {
	h := newHarness(t, 500)
	h.refiner.err = errors.New("model overloaded")
	ctx := context.Background()

	h.s.EditWizardPrompt("cold brew pour")
	h.s.GoToStep(StepPersonalize)
	h.s.TouchPersonalization(Personalization{CallToAction: "link in bio"})

	_, err := h.s.CopyScript(ctx)
	if KindOf(err) != KindUpstream {
		t.Fatalf("CopyScript() error = %v, want an upstream error", err)
	}
	view, err := h.s.Wizard()
	if err != nil {
		t.Fatalf("Wizard() error = %v", err)
	}
	if view.Gate != GateLocked || !view.PersonalizationDirty {
		t.Errorf("after failed refine gate=%s dirty=%v", view.Gate, view.PersonalizationDirty)
	}
}
