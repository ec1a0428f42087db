package pipeline

import (
	"errors"

	"github.com/Shimizu-Technology/reelforge-api/internal/ledger"
)

// ErrorKind groups pipeline errors by how a caller should react to them.
type ErrorKind string

const (
	KindValidation          ErrorKind = "validation"
	KindConflict            ErrorKind = "conflict"
	KindNotFound            ErrorKind = "not_found"
	KindInsufficientCredits ErrorKind = "insufficient_credits"
	KindUpstream            ErrorKind = "upstream"
	KindInternal            ErrorKind = "internal"
)

// Request validation.
var (
	ErrModeRequired          = errors.New("exactly one of direct_prompt or story_mode is required")
	ErrPromptRequired        = errors.New("prompt is required")
	ErrUnknownModel          = errors.New("unknown model variant")
	ErrImageRequired         = errors.New("this model requires at least one reference image")
	ErrTooManyImages         = errors.New("at most 3 reference images are allowed")
	ErrUnsupportedResolution = errors.New("resolution not supported by model")
	ErrUnsupportedDuration   = errors.New("duration not supported by model")
	ErrStorySourceRequired   = errors.New("story mode needs keywords or an account/link reference")
	ErrStorySourceAmbiguous  = errors.New("story mode takes keywords or a reference, not both")
	ErrInvalidTargetLength   = errors.New("target length out of range")
	ErrUnknownHook           = errors.New("unknown hook archetype")
)

// Stage navigation and selection.
var (
	ErrWrongStage       = errors.New("operation not allowed in the current stage")
	ErrAtFirstStage     = errors.New("already at the first stage")
	ErrIdeasNotReady    = errors.New("ideas are not ready")
	ErrNoIdeasSelected  = errors.New("select at least one idea to continue")
	ErrIdeaNotFound     = errors.New("idea not found")
	ErrIdeaBatchInvalid = errors.New("idea synthesis returned an incomplete batch")
	ErrSessionNotFound  = errors.New("session not found")
	ErrSessionClosed    = errors.New("session closed")
)

// Jobs and add-ons.
var (
	ErrJobNotFound          = errors.New("job not found")
	ErrJobNotFailed         = errors.New("only failed jobs can be retried")
	ErrJobNotRunning        = errors.New("job is not queued or generating")
	ErrJobNotCompleted      = errors.New("job has not completed")
	ErrWatermarkInProgress  = errors.New("watermark removal already in progress")
	ErrWatermarkRemoved     = errors.New("watermark already removed")
	ErrCaptionsInProgress   = errors.New("captions are already being generated")
	ErrNoLanguages          = errors.New("select at least one caption language")
	ErrInvalidLanguage      = errors.New("invalid language code")
	ErrUnknownCaptionModel  = errors.New("unknown caption model")
	ErrCaptionLangNotFound  = errors.New("no caption for language")
	ErrCaptionsUnavailable  = errors.New("captioning is not configured")
	ErrCaptionsIncomplete   = errors.New("captioner skipped a language")
	ErrUnsupportedSubtitles = errors.New("unsupported subtitle format")
)

// Scheduling.
var (
	ErrNoPlatforms         = errors.New("select at least one platform")
	ErrUnknownPlatform     = errors.New("unknown platform")
	ErrScheduleTimeMissing = errors.New("choose a date and time")
	ErrScheduleTimeInvalid = errors.New("date and time not recognized")
	ErrScheduleTimeInPast  = errors.New("scheduled time must be in the future")
	ErrCaptionRequired     = errors.New("caption is required")
	ErrAlreadyScheduled    = errors.New("job already scheduled")
	ErrScheduleInFlight    = errors.New("schedule confirmation in progress")
	ErrPostNotFound        = errors.New("scheduled post not found")
	ErrPostNotPending      = errors.New("only pending posts can be cancelled")
)

// Wizard.
var (
	ErrStepOutOfRange  = errors.New("wizard step out of range")
	ErrStepSkipped     = errors.New("wizard steps must be entered in order")
	ErrStepLocked      = errors.New("copy the script to unlock this step")
	ErrStaleRefinement = errors.New("prompt changed while refining; copy the script again")
)

var kinds = map[error]ErrorKind{
	ErrModeRequired:          KindValidation,
	ErrPromptRequired:        KindValidation,
	ErrUnknownModel:          KindValidation,
	ErrImageRequired:         KindValidation,
	ErrTooManyImages:         KindValidation,
	ErrUnsupportedResolution: KindValidation,
	ErrUnsupportedDuration:   KindValidation,
	ErrStorySourceRequired:   KindValidation,
	ErrStorySourceAmbiguous:  KindValidation,
	ErrInvalidTargetLength:   KindValidation,
	ErrUnknownHook:           KindValidation,
	ErrNoIdeasSelected:       KindValidation,
	ErrNoLanguages:           KindValidation,
	ErrInvalidLanguage:       KindValidation,
	ErrUnknownCaptionModel:   KindValidation,
	ErrUnsupportedSubtitles:  KindValidation,
	ErrNoPlatforms:           KindValidation,
	ErrUnknownPlatform:       KindValidation,
	ErrScheduleTimeMissing:   KindValidation,
	ErrScheduleTimeInvalid:   KindValidation,
	ErrScheduleTimeInPast:    KindValidation,
	ErrCaptionRequired:       KindValidation,
	ErrStepOutOfRange:        KindValidation,

	ErrWrongStage:          KindConflict,
	ErrAtFirstStage:        KindConflict,
	ErrIdeasNotReady:       KindConflict,
	ErrSessionClosed:       KindConflict,
	ErrJobNotFailed:        KindConflict,
	ErrJobNotRunning:       KindConflict,
	ErrJobNotCompleted:     KindConflict,
	ErrWatermarkInProgress: KindConflict,
	ErrWatermarkRemoved:    KindConflict,
	ErrCaptionsInProgress:  KindConflict,
	ErrAlreadyScheduled:    KindConflict,
	ErrScheduleInFlight:    KindConflict,
	ErrPostNotPending:      KindConflict,
	ErrStepSkipped:         KindConflict,
	ErrStepLocked:          KindConflict,
	ErrStaleRefinement:     KindConflict,

	ErrIdeaNotFound:        KindNotFound,
	ErrSessionNotFound:     KindNotFound,
	ErrJobNotFound:         KindNotFound,
	ErrPostNotFound:        KindNotFound,
	ErrCaptionLangNotFound: KindNotFound,

	ErrIdeaBatchInvalid:    KindUpstream,
	ErrCaptionsUnavailable: KindUpstream,
	ErrCaptionsIncomplete:  KindUpstream,

	ledger.ErrInsufficientCredits: KindInsufficientCredits,
}

// UpstreamError marks a failure from an external collaborator (synthesis,
// refinement, ingest, transcription). It never carries pipeline state.
type UpstreamError struct {
	Service string
	Err     error
}

func (e *UpstreamError) Error() string {
	return e.Service + ": " + e.Err.Error()
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Upstream wraps err as an UpstreamError for service.
func Upstream(service string, err error) error {
	if err == nil {
		return nil
	}
	return &UpstreamError{Service: service, Err: err}
}

// KindOf classifies err. Unrecognized errors are KindInternal.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var up *UpstreamError
	if errors.As(err, &up) {
		return KindUpstream
	}
	for target, kind := range kinds {
		if errors.Is(err, target) {
			return kind
		}
	}
	return KindInternal
}
