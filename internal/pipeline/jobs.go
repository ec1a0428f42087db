package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Shimizu-Technology/reelforge-api/internal/ledger"
)

// JobStatus is the lifecycle position of a generation job.
type JobStatus string

const (
	JobQueued     JobStatus = "queued"
	JobGenerating JobStatus = "generating"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// WatermarkState tracks watermark removal on a completed job.
type WatermarkState string

const (
	WatermarkNotRequested WatermarkState = "not_requested"
	WatermarkInProgress   WatermarkState = "in_progress"
	WatermarkRemoved      WatermarkState = "removed"
)

// Job is one asynchronous rendering of a selected idea.
//
// CreditsUsed follows Progress while the job renders and is snapped to
// EstimatedCredits on completion. Add-on charges are added on top once they
// complete, which is the only way CreditsUsed can exceed the estimate.
type Job struct {
	ID               string         `json:"id"`
	IdeaID           string         `json:"idea_id"`
	Title            string         `json:"title"`
	Model            ModelVariant   `json:"model"`
	DurationSeconds  int            `json:"duration_seconds"`
	Status           JobStatus      `json:"status"`
	Progress         int            `json:"progress"`
	CreditsUsed      int            `json:"credits_used"`
	EstimatedCredits int            `json:"estimated_credits"`
	OutputURL        string         `json:"output_url,omitempty"`
	Watermark        WatermarkState `json:"watermark"`
	Captions         CaptionSet     `json:"captions"`
	ScheduleID       string         `json:"schedule_id,omitempty"`
	Scheduling       bool           `json:"scheduling,omitempty"`
	Attempt          int            `json:"attempt"`
	FailureReason    string         `json:"failure_reason,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`

	narration  string
	captionRun int
}

func newJob(idea ContentIdea, req GenerationRequest, estimate int, now time.Time, pricing Pricing) *Job {
	variant, duration, _, _ := req.renderParams(pricing)
	if duration == 0 {
		if m, ok := pricing.Model(variant); ok {
			duration = m.DefaultDuration
		}
	}
	narration := idea.Narration
	if narration == "" {
		narration = idea.OverlayText
	}
	return &Job{
		ID:               fmt.Sprintf("%s-%d", idea.ID, now.UnixMilli()),
		IdeaID:           idea.ID,
		Title:            idea.Title,
		Model:            variant,
		DurationSeconds:  duration,
		Status:           JobQueued,
		EstimatedCredits: estimate,
		Watermark:        WatermarkNotRequested,
		Captions:         CaptionSet{State: CaptionsNotRequested},
		Attempt:          1,
		CreatedAt:        now,
		UpdatedAt:        now,
		narration:        narration,
	}
}

// clone returns a deep copy safe to hand outside the loop.
func (j *Job) clone() Job {
	c := *j
	c.Captions = j.Captions.clone()
	return c
}

func (j *Job) ledgerKey() string {
	return fmt.Sprintf("job:%s:%d", j.ID, j.Attempt)
}

func watermarkKey(jobID string) string { return "watermark:" + jobID }
func captionsKey(jobID string) string  { return "captions:" + jobID }
func scheduleKey(jobID string) string  { return "schedule:" + jobID }

// Timer keys. Publish timers belong to posts, not jobs, and survive back
// navigation.
func jobTimerKey(jobID string) string          { return "job:" + jobID }
func addonTimerKey(kind, jobID string) string { return kind + ":" + jobID }
func publishTimerKey(postID string) string    { return "publish:" + postID }

func isPublishTimer(key string) bool { return strings.HasPrefix(key, "publish:") }

func ledgerShortfall(need, available int) error {
	return fmt.Errorf("%w: need %d, have %d available", ledger.ErrInsufficientCredits, need, available)
}

// creditsFor is floor(progress/100 * estimate).
func creditsFor(progress, estimate int) int {
	return progress * estimate / 100
}

// enqueue schedules the queued → generating transition for the job's
// current attempt. Loop only.
func (s *Session) enqueue(job *Job) {
	epoch, id, attempt := s.st.epoch, job.ID, job.Attempt
	s.after(jobTimerKey(id), s.cfg.Timing.QueueDelay, func() {
		j := s.liveJob(epoch, id, attempt)
		if j == nil || j.Status != JobQueued {
			return
		}
		j.Status = JobGenerating
		j.UpdatedAt = s.clock.Now()
		s.log.Debug().Str("job_id", id).Int("attempt", attempt).Msg("job generating")
		s.scheduleTick(j)
	})
}

func (s *Session) scheduleTick(job *Job) {
	epoch, id, attempt := s.st.epoch, job.ID, job.Attempt
	s.after(jobTimerKey(id), s.cfg.Timing.TickInterval, func() {
		j := s.liveJob(epoch, id, attempt)
		if j == nil || j.Status != JobGenerating {
			return
		}
		s.tick(j)
	})
}

// liveJob returns the job only if the callback still belongs to the current
// epoch and attempt.
func (s *Session) liveJob(epoch int, id string, attempt int) *Job {
	if epoch != s.st.epoch {
		return nil
	}
	j, err := s.job(id)
	if err != nil || j.Attempt != attempt {
		return nil
	}
	return j
}

// tick advances one job by a bounded random increment. Loop only.
func (s *Session) tick(j *Job) {
	t := s.cfg.Timing
	if t.FailureRate > 0 && s.rng.Float64() < t.FailureRate {
		s.failJob(j, "render node reported an error")
		return
	}

	inc := t.TickMin
	if t.TickMax > t.TickMin {
		inc += s.rng.IntN(t.TickMax - t.TickMin + 1)
	}
	if inc < 1 {
		inc = 1
	}
	j.Progress = min(100, j.Progress+inc)
	j.CreditsUsed = creditsFor(j.Progress, j.EstimatedCredits)
	j.UpdatedAt = s.clock.Now()

	if j.Progress < 100 {
		s.scheduleTick(j)
		return
	}
	s.completeJob(j)
}

func (s *Session) completeJob(j *Job) {
	tx, applied, err := s.commit(j.ledgerKey(), j.EstimatedCredits)
	if err != nil {
		// The reservation was taken when the job started; losing it means
		// the ledger and the job disagree. Keep the job completed.
		s.log.Error().Err(err).Str("job_id", j.ID).Msg("failed to commit job charge")
	} else if applied {
		s.log.Info().Str("job_id", j.ID).Int("amount", -tx.Amount).Int("balance", tx.BalanceAfter).Msg("job charged")
	}

	j.Status = JobCompleted
	j.Progress = 100
	j.CreditsUsed = j.EstimatedCredits
	j.OutputURL = s.artifactURL("videos", j.ID+".mp4")
	j.UpdatedAt = s.clock.Now()

	rec := VideoRecord{
		ID:          fmt.Sprintf("%s-%d", j.ID, j.Attempt),
		UserID:      s.userID,
		SessionID:   s.id,
		JobID:       j.ID,
		IdeaID:      j.IdeaID,
		Title:       j.Title,
		Model:       j.Model,
		OutputURL:   j.OutputURL,
		CreditsUsed: j.CreditsUsed,
		CreatedAt:   j.UpdatedAt,
	}
	s.persist("video", func(ctx context.Context, h HistoryStore) error { return h.SaveVideo(ctx, rec) })
	s.emit(Event{Type: EventJobCompleted, JobID: j.ID, Data: j.clone()})
	s.log.Info().Str("job_id", j.ID).Msg("job completed")
}

func (s *Session) failJob(j *Job, reason string) {
	s.book.Release(j.ledgerKey())
	j.Status = JobFailed
	j.FailureReason = reason
	j.UpdatedAt = s.clock.Now()
	if t, ok := s.timers[jobTimerKey(j.ID)]; ok {
		t.Stop()
		delete(s.timers, jobTimerKey(j.ID))
	}
	s.emit(Event{Type: EventJobFailed, JobID: j.ID, Data: map[string]any{"reason": reason, "attempt": j.Attempt}})
	s.log.Warn().Str("job_id", j.ID).Str("reason", reason).Msg("job failed")
}

func (s *Session) artifactURL(kind, name string) string {
	return strings.TrimRight(s.cfg.ArtifactBaseURL, "/") + "/" + kind + "/" + name
}

// FailJob marks a queued or generating job as failed. Its reservation is
// released; nothing is charged.
func (s *Session) FailJob(jobID, reason string) (Job, error) {
	var out Job
	err := s.exec(func() error {
		j, err := s.job(jobID)
		if err != nil {
			return err
		}
		if j.Status != JobQueued && j.Status != JobGenerating {
			return ErrJobNotRunning
		}
		if strings.TrimSpace(reason) == "" {
			reason = "generation failed"
		}
		s.failJob(j, reason)
		out = j.clone()
		return nil
	})
	return out, err
}

// RetryJob re-queues a failed job with progress and credits reset and the
// same estimate. The estimate is reserved again under the new attempt.
func (s *Session) RetryJob(jobID string) (Job, error) {
	var out Job
	err := s.exec(func() error {
		j, err := s.job(jobID)
		if err != nil {
			return err
		}
		if j.Status != JobFailed {
			return ErrJobNotFailed
		}
		next := fmt.Sprintf("job:%s:%d", j.ID, j.Attempt+1)
		if err := s.reserve(next, ledger.ActionVideoGeneration, j.EstimatedCredits); err != nil {
			return err
		}
		j.Attempt++
		j.Status = JobQueued
		j.Progress = 0
		j.CreditsUsed = 0
		j.FailureReason = ""
		j.UpdatedAt = s.clock.Now()
		s.enqueue(j)
		out = j.clone()
		return nil
	})
	if err == nil {
		s.log.Info().Str("job_id", jobID).Int("attempt", out.Attempt).Msg("job retried")
	}
	return out, err
}

// Job returns a copy of one job.
func (s *Session) Job(jobID string) (Job, error) {
	var out Job
	err := s.exec(func() error {
		j, err := s.job(jobID)
		if err != nil {
			return err
		}
		out = j.clone()
		return nil
	})
	return out, err
}
