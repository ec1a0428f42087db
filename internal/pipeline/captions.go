package pipeline

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/Shimizu-Technology/reelforge-api/internal/ledger"
)

// CaptionState tracks caption generation on a completed job.
type CaptionState string

const (
	CaptionsNotRequested CaptionState = "not_requested"
	CaptionsInProgress   CaptionState = "in_progress"
	CaptionsReady        CaptionState = "ready"
)

// CaptionModel is the language model used to write captions.
type CaptionModel string

const (
	CaptionGPT4oMini   CaptionModel = "gpt-4o-mini"
	CaptionClaudeHaiku CaptionModel = "claude-haiku"
	CaptionGeminiFlash CaptionModel = "gemini-flash"
)

// CaptionModels lists the accepted caption models.
var CaptionModels = []CaptionModel{CaptionGPT4oMini, CaptionClaudeHaiku, CaptionGeminiFlash}

// Valid reports whether m is a known caption model.
func (m CaptionModel) Valid() bool {
	return slices.Contains(CaptionModels, m)
}

// CaptionRecord is the caption for one language.
type CaptionRecord struct {
	Language     string `json:"language"`
	LanguageName string `json:"language_name"`
	NativeName   string `json:"native_name"`
	Text         string `json:"text"`
	SRTURL       string `json:"srt_url,omitempty"`
	VTTURL       string `json:"vtt_url,omitempty"`
}

// CaptionSet is the caption sub-state of a job.
type CaptionSet struct {
	State          CaptionState    `json:"state"`
	Model          CaptionModel    `json:"model,omitempty"`
	Languages      []string        `json:"languages,omitempty"`
	Records        []CaptionRecord `json:"records,omitempty"`
	CreditsCharged int             `json:"credits_charged,omitempty"`
	// Error is why the last attempt failed. It is cleared by the next request.
	Error string `json:"error,omitempty"`
}

// CaptionInput is what a Captioner writes captions from.
type CaptionInput struct {
	Title     string
	Narration string
	Languages []string // canonical BCP 47 codes
	Model     CaptionModel
}

// Captioner writes the narration of a job as an on-screen caption in each
// requested language. Implementations must return non-empty text for every
// language or an error.
type Captioner interface {
	Caption(ctx context.Context, in CaptionInput) (map[string]string, error)
}

// captionBatch runs the captioner and rekeys its reply by canonical code.
func captionBatch(ctx context.Context, c Captioner, in CaptionInput) (map[string]string, error) {
	texts, err := c.Caption(ctx, in)
	if err != nil {
		return nil, Upstream("captions", err)
	}
	out := make(map[string]string, len(in.Languages))
	for code, text := range texts {
		if tag, err := language.Parse(code); err == nil {
			code = tag.String()
		}
		out[code] = strings.TrimSpace(text)
	}
	for _, code := range in.Languages {
		if out[code] == "" {
			return nil, Upstream("captions", fmt.Errorf("%w: no caption for %s", ErrCaptionsIncomplete, code))
		}
	}
	return out, nil
}

func (c CaptionSet) clone() CaptionSet {
	c.Languages = slices.Clone(c.Languages)
	c.Records = slices.Clone(c.Records)
	return c
}

// Record returns the caption for a language code.
func (c CaptionSet) Record(lang string) (CaptionRecord, bool) {
	want := lang
	if tag, err := language.Parse(lang); err == nil {
		want = tag.String()
	}
	for _, r := range c.Records {
		if r.Language == want {
			return r, true
		}
	}
	return CaptionRecord{}, false
}

// NormalizeLanguages parses BCP 47 codes, canonicalizes them and drops
// duplicates while keeping the request order.
func NormalizeLanguages(codes []string) ([]language.Tag, error) {
	var tags []language.Tag
	seen := make(map[string]bool)
	for _, code := range codes {
		code = strings.TrimSpace(code)
		if code == "" {
			continue
		}
		tag, err := language.Parse(code)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidLanguage, code)
		}
		key := tag.String()
		if seen[key] {
			continue
		}
		seen[key] = true
		tags = append(tags, tag)
	}
	if len(tags) == 0 {
		return nil, ErrNoLanguages
	}
	return tags, nil
}

// captionRecord builds the record for one language.
func (s *Session) captionRecord(j *Job, tag language.Tag, text string) CaptionRecord {
	code := tag.String()
	return CaptionRecord{
		Language:     code,
		LanguageName: display.English.Tags().Name(tag),
		NativeName:   display.Self.Name(tag),
		Text:         text,
		SRTURL:       s.artifactURL("captions", j.ID+"/"+code+".srt"),
		VTTURL:       s.artifactURL("captions", j.ID+"/"+code+".vtt"),
	}
}

// RequestCaptions generates captions for a completed job in every requested
// language. The charge is one caption rate per distinct language, reserved
// now and committed when the captioner's reply is applied. A failed reply
// releases the reservation. Once captions exist the call returns them
// unchanged and charges nothing.
func (s *Session) RequestCaptions(jobID string, languages []string, model CaptionModel) (CaptionSet, error) {
	tags, err := NormalizeLanguages(languages)
	if err != nil {
		return CaptionSet{}, err
	}
	if !model.Valid() {
		return CaptionSet{}, fmt.Errorf("%w: %q", ErrUnknownCaptionModel, model)
	}

	var out CaptionSet
	err = s.exec(func() error {
		j, err := s.job(jobID)
		if err != nil {
			return err
		}
		if j.Status != JobCompleted {
			return ErrJobNotCompleted
		}
		switch j.Captions.State {
		case CaptionsInProgress:
			return ErrCaptionsInProgress
		case CaptionsReady:
			out = j.Captions.clone()
			return nil
		}
		if s.captioner == nil {
			return ErrCaptionsUnavailable
		}

		charge := s.cfg.Pricing.CaptionCharge(len(tags))
		if err := s.reserve(captionsKey(j.ID), ledger.ActionCaptions, charge); err != nil {
			return err
		}

		codes := make([]string, len(tags))
		for i, tag := range tags {
			codes[i] = tag.String()
		}
		now := s.clock.Now()
		j.Captions = CaptionSet{State: CaptionsInProgress, Model: model, Languages: codes}
		j.UpdatedAt = now
		j.captionRun++

		text := j.narration
		if text == "" {
			text = j.Title
		}
		in := CaptionInput{Title: j.Title, Narration: text, Languages: slices.Clone(codes), Model: model}
		epoch, id, run := s.st.epoch, j.ID, j.captionRun
		readyAt := now.Add(s.cfg.Timing.CaptionDelay)
		captioner := s.captioner
		err = s.runner.Go("captions", func(ctx context.Context) {
			texts, err := captionBatch(ctx, captioner, in)
			s.post(func() { s.onCaptions(epoch, id, run, readyAt, tags, charge, texts, err) })
		})
		if err != nil {
			s.book.Release(captionsKey(j.ID))
			j.Captions = CaptionSet{State: CaptionsNotRequested}
			j.captionRun++
			return err
		}
		out = j.Captions.clone()
		return nil
	})
	if err == nil && out.State == CaptionsInProgress {
		s.log.Info().Str("job_id", jobID).Strs("languages", out.Languages).Str("model", string(model)).Msg("captions requested")
	}
	return out, err
}

// onCaptions applies a captioner reply. Successful replies are held until
// readyAt so captions never appear faster than the configured delay.
func (s *Session) onCaptions(epoch int, jobID string, run int, readyAt time.Time, tags []language.Tag, charge int, texts map[string]string, err error) {
	if epoch != s.st.epoch {
		return
	}
	j, jerr := s.job(jobID)
	if jerr != nil || j.captionRun != run || j.Captions.State != CaptionsInProgress {
		return
	}

	if err != nil {
		s.book.Release(captionsKey(j.ID))
		j.Captions = CaptionSet{State: CaptionsNotRequested, Error: err.Error()}
		j.UpdatedAt = s.clock.Now()
		s.log.Warn().Err(err).Str("job_id", j.ID).Msg("captioning failed")
		return
	}

	if wait := readyAt.Sub(s.clock.Now()); wait > 0 {
		s.after(addonTimerKey("captions", j.ID), wait, func() {
			s.onCaptions(epoch, jobID, run, readyAt, tags, charge, texts, nil)
		})
		return
	}

	_, applied, cerr := s.commit(captionsKey(j.ID), charge)
	if cerr != nil {
		s.log.Error().Err(cerr).Str("job_id", j.ID).Msg("failed to commit caption charge")
		return
	}
	if applied {
		j.CreditsUsed += charge
	}

	records := make([]CaptionRecord, len(tags))
	for i, tag := range tags {
		records[i] = s.captionRecord(j, tag, texts[tag.String()])
	}
	j.Captions.Records = records
	j.Captions.State = CaptionsReady
	j.Captions.CreditsCharged = charge
	j.UpdatedAt = s.clock.Now()

	s.emit(Event{Type: EventCaptionsReady, JobID: j.ID, Data: j.Captions.clone()})
	s.log.Info().Str("job_id", j.ID).Int("languages", len(records)).Str("model", string(j.Captions.Model)).Msg("captions ready")
}
