package pipeline

import (
	"fmt"
	"strings"
)

// SubtitleFormat is a caption file format.
type SubtitleFormat string

const (
	FormatSRT SubtitleFormat = "srt"
	FormatVTT SubtitleFormat = "vtt"
)

// ContentType is the MIME type served for f.
func (f SubtitleFormat) ContentType() string {
	if f == FormatVTT {
		return "text/vtt; charset=utf-8"
	}
	return "text/srt; charset=utf-8"
}

// Cue is one timed caption line. Times are in seconds.
type Cue struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

const wordsPerCue = 10

// SplitCues spreads text evenly over duration seconds, about ten words per
// cue. Without a duration the text is timed at 150 words per minute.
func SplitCues(text string, duration float64) []Cue {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	if duration <= 0 {
		duration = float64(len(words)) / 150.0 * 60.0
	}

	secondsPerWord := duration / float64(len(words))
	cues := make([]Cue, 0, (len(words)+wordsPerCue-1)/wordsPerCue)
	for i := 0; i < len(words); i += wordsPerCue {
		end := min(i+wordsPerCue, len(words))
		stop := float64(end) * secondsPerWord
		if end == len(words) {
			stop = duration
		}
		cues = append(cues, Cue{
			Start: float64(i) * secondsPerWord,
			End:   stop,
			Text:  strings.Join(words[i:end], " "),
		})
	}
	return cues
}

// RenderSubtitles writes cues as an SRT or WebVTT document.
func RenderSubtitles(cues []Cue, format SubtitleFormat) (string, error) {
	var sb strings.Builder
	switch format {
	case FormatSRT:
		for i, c := range cues {
			fmt.Fprintf(&sb, "%d\n%s --> %s\n%s\n\n", i+1, formatCueTime(c.Start, ','), formatCueTime(c.End, ','), c.Text)
		}
	case FormatVTT:
		sb.WriteString("WEBVTT\n\n")
		for _, c := range cues {
			fmt.Fprintf(&sb, "%s --> %s\n%s\n\n", formatCueTime(c.Start, '.'), formatCueTime(c.End, '.'), c.Text)
		}
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedSubtitles, format)
	}
	return sb.String(), nil
}

// formatCueTime renders seconds as HH:MM:SS<sep>mmm. SRT uses a comma
// separator and WebVTT a period.
func formatCueTime(seconds float64, sep byte) string {
	h := int(seconds) / 3600
	m := (int(seconds) % 3600) / 60
	s := int(seconds) % 60
	ms := int((seconds - float64(int(seconds))) * 1000)
	return fmt.Sprintf("%02d:%02d:%02d%c%03d", h, m, s, sep, ms)
}

// Subtitles renders the caption of one language on a job as a subtitle file
// timed across the clip.
func (s *Session) Subtitles(jobID, lang string, format SubtitleFormat) (string, error) {
	if format != FormatSRT && format != FormatVTT {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedSubtitles, format)
	}
	var (
		rec      CaptionRecord
		duration int
	)
	err := s.exec(func() error {
		j, err := s.job(jobID)
		if err != nil {
			return err
		}
		if j.Captions.State != CaptionsReady {
			return fmt.Errorf("%w: captions are %s", ErrCaptionLangNotFound, j.Captions.State)
		}
		r, ok := j.Captions.Record(lang)
		if !ok {
			return fmt.Errorf("%w: %q", ErrCaptionLangNotFound, lang)
		}
		rec, duration = r, j.DurationSeconds
		return nil
	})
	if err != nil {
		return "", err
	}
	return RenderSubtitles(SplitCues(rec.Text, float64(duration)), format)
}
