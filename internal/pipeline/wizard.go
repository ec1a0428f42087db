package pipeline

import (
	"context"
	"strings"
)

// WizardStep is a position in the five-step linear flow.
type WizardStep int

const (
	StepInput WizardStep = iota + 1
	StepPersonalize
	StepCinematize
	StepCaptionize
	StepSchedule
)

var stepNames = map[WizardStep]string{
	StepInput:       "input",
	StepPersonalize: "personalize",
	StepCinematize:  "cinematize",
	StepCaptionize:  "captionize",
	StepSchedule:    "schedule",
}

func (w WizardStep) String() string {
	if name, ok := stepNames[w]; ok {
		return name
	}
	return "unknown"
}

// GateState guards entry to the Cinematize step and everything after it.
type GateState string

const (
	GateLocked GateState = "locked"
	GateReady  GateState = "ready"
	GateStale  GateState = "stale"
)

// GateEvent is a named input to the gate state machine.
type GateEvent string

const (
	EventPromptEdited           GateEvent = "PromptEdited"
	EventScriptCopied           GateEvent = "ScriptCopied"
	EventRefineSucceeded        GateEvent = "RefineSucceeded"
	EventPersonalizationTouched GateEvent = "PersonalizationTouched"
)

// NextGate is the gate transition function.
//
//	locked --ScriptCopied|RefineSucceeded--> ready
//	ready  --PromptEdited|PersonalizationTouched--> stale
//	stale  --ScriptCopied|RefineSucceeded--> ready
//
// Any other (state, event) pair leaves the gate unchanged.
func NextGate(g GateState, ev GateEvent) GateState {
	switch ev {
	case EventScriptCopied, EventRefineSucceeded:
		return GateReady
	case EventPromptEdited, EventPersonalizationTouched:
		if g == GateReady {
			return GateStale
		}
	}
	return g
}

// wizard is the loop-owned state of the linear flow.
type wizard struct {
	step            WizardStep
	prompt          string
	personalization Personalization
	touched         bool // personalization changed since the last refinement
	gate            GateState
	script          string
	revision        int
}

func newWizard() wizard {
	return wizard{step: StepInput, gate: GateLocked}
}

func (w *wizard) fire(ev GateEvent) {
	w.gate = NextGate(w.gate, ev)
}

// canEnter reports why step cannot be entered from the current one, if it
// cannot.
func (w *wizard) canEnter(step WizardStep) error {
	if step < StepInput || step > StepSchedule {
		return ErrStepOutOfRange
	}
	if step <= w.step {
		return nil
	}
	if step > w.step+1 {
		return ErrStepSkipped
	}
	if step == StepPersonalize && strings.TrimSpace(w.prompt) == "" {
		return ErrPromptRequired
	}
	if step >= StepCinematize && w.gate != GateReady {
		return ErrStepLocked
	}
	return nil
}

// WizardView is the wizard part of a snapshot.
type WizardView struct {
	Step                 WizardStep      `json:"step"`
	StepName             string          `json:"step_name"`
	Prompt               string          `json:"prompt"`
	Personalization      Personalization `json:"personalization"`
	PersonalizationDirty bool            `json:"personalization_dirty"`
	Gate                 GateState       `json:"gate"`
	Script               string          `json:"script,omitempty"`
	CanAdvance           bool            `json:"can_advance"`
}

func (w *wizard) view() WizardView {
	return WizardView{
		Step:                 w.step,
		StepName:             w.step.String(),
		Prompt:               w.prompt,
		Personalization:      w.personalization,
		PersonalizationDirty: w.touched,
		Gate:                 w.gate,
		Script:               w.script,
		CanAdvance:           w.step < StepSchedule && w.canEnter(w.step+1) == nil,
	}
}

// EditWizardPrompt replaces the prompt text. An edit made on Cinematize or
// later turns a ready gate stale, so the steps past it stay blocked until
// the script is copied again. Earlier edits leave the gate alone.
func (s *Session) EditWizardPrompt(text string) (WizardView, error) {
	var out WizardView
	err := s.exec(func() error {
		w := &s.st.wizard
		w.prompt = text
		w.revision++
		if w.step >= StepCinematize {
			w.fire(EventPromptEdited)
		}
		out = w.view()
		return nil
	})
	return out, err
}

// TouchPersonalization updates the personalization fields and marks them
// for refinement on the next copy.
func (s *Session) TouchPersonalization(p Personalization) (WizardView, error) {
	if err := validatePersonalization(p, s.cfg.Pricing); err != nil {
		return WizardView{}, err
	}
	var out WizardView
	err := s.exec(func() error {
		w := &s.st.wizard
		w.personalization = p
		w.touched = true
		w.revision++
		w.fire(EventPersonalizationTouched)
		out = w.view()
		return nil
	})
	return out, err
}

// CopyScript forwards the prompt to the Cinematize step and arms the gate.
// When personalization changed since the last refinement the refiner runs
// first; otherwise the base prompt is forwarded untouched.
func (s *Session) CopyScript(ctx context.Context) (WizardView, error) {
	var (
		prompt   string
		pers     Personalization
		refine   bool
		revision int
		out      WizardView
	)
	err := s.exec(func() error {
		w := &s.st.wizard
		if w.step < StepPersonalize {
			return ErrWrongStage
		}
		if strings.TrimSpace(w.prompt) == "" {
			return ErrPromptRequired
		}
		prompt, pers, revision = w.prompt, w.personalization, w.revision
		refine = w.touched && s.refiner != nil
		if !refine {
			w.script = w.prompt
			w.touched = false
			w.fire(EventScriptCopied)
			out = w.view()
		}
		return nil
	})
	if err != nil || !refine {
		return out, err
	}

	refined, err := s.refiner.Refine(ctx, RefineInput{
		BasePrompt:     prompt,
		Duration:       pers.TargetLength,
		NarrationTheme: pers.Hook.NarrationTheme(),
		CallToAction:   pers.CallToAction,
		Instructions:   pers.Instructions,
		Model:          pers.Model,
	})
	if err != nil {
		s.log.Warn().Err(err).Msg("prompt refinement failed")
		return WizardView{}, Upstream("prompt refinement", err)
	}

	err = s.exec(func() error {
		w := &s.st.wizard
		if w.revision != revision {
			return ErrStaleRefinement
		}
		w.script = refined
		w.touched = false
		w.fire(EventRefineSucceeded)
		out = w.view()
		return nil
	})
	return out, err
}

// GoToStep moves the wizard. Going back is always allowed; going forward
// is one step at a time and Cinematize onward needs a ready gate.
func (s *Session) GoToStep(step WizardStep) (WizardView, error) {
	var out WizardView
	err := s.exec(func() error {
		w := &s.st.wizard
		if err := w.canEnter(step); err != nil {
			return err
		}
		w.step = step
		out = w.view()
		return nil
	})
	return out, err
}

// Wizard returns the current wizard state.
func (s *Session) Wizard() (WizardView, error) {
	var out WizardView
	err := s.exec(func() error {
		out = s.st.wizard.view()
		return nil
	})
	return out, err
}
