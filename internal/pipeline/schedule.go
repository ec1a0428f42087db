package pipeline

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/Shimizu-Technology/reelforge-api/internal/ledger"
)

// Platform is a publishing destination.
type Platform string

const (
	PlatformTikTok    Platform = "tiktok"
	PlatformInstagram Platform = "instagram"
	PlatformYouTube   Platform = "youtube"
)

// Platforms lists the supported destinations.
var Platforms = []Platform{PlatformTikTok, PlatformInstagram, PlatformYouTube}

// PostStatus is the lifecycle position of a scheduled post.
type PostStatus string

const (
	PostPending   PostStatus = "pending"
	PostPublished PostStatus = "published"
	PostCancelled PostStatus = "cancelled"
)

// ScheduledPost is a confirmed publish intent for a completed job.
type ScheduledPost struct {
	ID             string     `json:"id" db:"id"`
	JobID          string     `json:"job_id" db:"job_id"`
	Platforms      []Platform `json:"platforms" db:"-"`
	Caption        string     `json:"caption" db:"caption"`
	Hashtags       []string   `json:"hashtags" db:"-"`
	ScheduledAt    time.Time  `json:"scheduled_at" db:"scheduled_at"`
	Timezone       string     `json:"timezone" db:"timezone"`
	Status         PostStatus `json:"status" db:"status"`
	WorkflowID     string     `json:"workflow_id" db:"workflow_id"`
	CreditsCharged int        `json:"credits_charged" db:"credits_charged"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
}

func (p *ScheduledPost) clone() ScheduledPost {
	c := *p
	c.Platforms = slices.Clone(p.Platforms)
	c.Hashtags = slices.Clone(p.Hashtags)
	return c
}

// ScheduleInput is a request to schedule a job. When is the user's pick,
// either RFC 3339 or a wall-clock time read in the schedule timezone.
type ScheduleInput struct {
	Platforms []Platform `json:"platforms"`
	Caption   string     `json:"caption"`
	Hashtags  []string   `json:"hashtags"`
	When      string     `json:"when"`
}

// wallClockLayouts are accepted for times without an offset.
var wallClockLayouts = []string{
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
}

// ParseScheduleTime resolves s. A value with an offset keeps it; a
// wall-clock value is read in loc.
func ParseScheduleTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrScheduleTimeMissing
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	for _, layout := range wallClockLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrScheduleTimeInvalid, s)
}

// ValidateSchedule checks in against now and reports only the first
// failing rule, in this order: platforms, time present and resolvable, time
// in the future, caption. It returns the resolved time.
func ValidateSchedule(in ScheduleInput, now time.Time, loc *time.Location) (time.Time, error) {
	if len(in.Platforms) == 0 {
		return time.Time{}, ErrNoPlatforms
	}
	for _, p := range in.Platforms {
		if !slices.Contains(Platforms, p) {
			return time.Time{}, fmt.Errorf("%w: %q", ErrUnknownPlatform, p)
		}
	}
	when, err := ParseScheduleTime(in.When, loc)
	if err != nil {
		return time.Time{}, err
	}
	if !when.After(now) {
		return time.Time{}, ErrScheduleTimeInPast
	}
	if strings.TrimSpace(in.Caption) == "" {
		return time.Time{}, ErrCaptionRequired
	}
	return when, nil
}

// normalizeHashtags lowercases tags, adds the leading '#' and drops
// duplicates and blanks.
func normalizeHashtags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool)
	for _, t := range tags {
		t = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(t), "#"))
		if t == "" {
			continue
		}
		t = "#" + strings.Join(strings.Fields(cases.Lower(language.Und).String(t)), "")
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

func dedupePlatforms(ps []Platform) []Platform {
	out := make([]Platform, 0, len(ps))
	for _, p := range ps {
		if !slices.Contains(out, p) {
			out = append(out, p)
		}
	}
	return out
}

// SchedulePost validates in, reserves the scheduling fee and confirms the
// post after a simulated round-trip. A job can be scheduled once.
func (s *Session) SchedulePost(jobID string, in ScheduleInput) (ScheduleReceipt, error) {
	var out ScheduleReceipt
	err := s.exec(func() error {
		j, err := s.job(jobID)
		if err != nil {
			return err
		}
		if j.Status != JobCompleted {
			return ErrJobNotCompleted
		}
		if j.ScheduleID != "" {
			return ErrAlreadyScheduled
		}
		if j.Scheduling {
			return ErrScheduleInFlight
		}

		when, err := ValidateSchedule(in, s.clock.Now(), s.cfg.Location)
		if err != nil {
			return err
		}

		platforms := dedupePlatforms(in.Platforms)
		charge := s.cfg.Pricing.ScheduleCharge(len(platforms))
		if err := s.reserve(scheduleKey(j.ID), ledger.ActionSchedulePost, charge); err != nil {
			return err
		}
		j.Scheduling = true

		post := ScheduledPost{
			ID:             uuid.New().String(),
			JobID:          j.ID,
			Platforms:      platforms,
			Caption:        strings.TrimSpace(in.Caption),
			Hashtags:       normalizeHashtags(in.Hashtags),
			ScheduledAt:    when.In(s.cfg.Location),
			Timezone:       s.cfg.Location.String(),
			Status:         PostPending,
			CreditsCharged: charge,
		}
		epoch := s.st.epoch
		s.after(addonTimerKey("schedule", j.ID), s.cfg.Timing.ScheduleConfirmDelay, func() {
			s.onScheduleConfirmed(epoch, post)
		})

		out = ScheduleReceipt{JobID: j.ID, Charge: charge, Platforms: platforms, ScheduledAt: post.ScheduledAt}
		return nil
	})
	if err == nil {
		s.log.Info().Str("job_id", jobID).Int("charge", out.Charge).Time("scheduled_at", out.ScheduledAt).Msg("schedule requested")
	}
	return out, err
}

// ScheduleReceipt acknowledges a schedule request awaiting confirmation.
type ScheduleReceipt struct {
	JobID       string     `json:"job_id"`
	Charge      int        `json:"charge"`
	Platforms   []Platform `json:"platforms"`
	ScheduledAt time.Time  `json:"scheduled_at"`
}

func (s *Session) onScheduleConfirmed(epoch int, post ScheduledPost) {
	if epoch != s.st.epoch {
		return
	}
	j, err := s.job(post.JobID)
	if err != nil || !j.Scheduling {
		return
	}
	j.Scheduling = false

	if _, _, err := s.commit(scheduleKey(j.ID), post.CreditsCharged); err != nil {
		s.log.Error().Err(err).Str("job_id", j.ID).Msg("failed to commit schedule charge")
		return
	}

	now := s.clock.Now()
	post.WorkflowID = "wf_" + strings.ReplaceAll(uuid.New().String(), "-", "")
	post.CreatedAt = now
	p := &post
	s.st.posts = append(s.st.posts, p)
	j.ScheduleID = p.ID
	j.UpdatedAt = now

	id := p.ID
	s.after(publishTimerKey(id), p.ScheduledAt.Sub(now), func() { s.onPublish(id) })

	userID := s.userID
	saved := p.clone()
	s.persist("post", func(ctx context.Context, h HistoryStore) error { return h.SavePost(ctx, userID, saved) })
	s.emit(Event{Type: EventPostScheduled, JobID: j.ID, PostID: id, Data: saved})
	s.log.Info().Str("job_id", j.ID).Str("post_id", id).Str("workflow_id", p.WorkflowID).Msg("post scheduled")
}

func (s *Session) onPublish(postID string) {
	p := s.findPost(postID)
	if p == nil || p.Status != PostPending {
		return
	}
	s.setPostStatus(p, PostPublished, EventPostPublished)
}

func (s *Session) findPost(id string) *ScheduledPost {
	for _, p := range s.st.posts {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (s *Session) setPostStatus(p *ScheduledPost, status PostStatus, ev EventType) {
	p.Status = status
	id := p.ID
	s.persist("post_status", func(ctx context.Context, h HistoryStore) error { return h.UpdatePostStatus(ctx, id, status) })
	s.emit(Event{Type: ev, JobID: p.JobID, PostID: id, Data: p.clone()})
	s.log.Info().Str("post_id", id).Str("status", string(status)).Msg("post status changed")
}

// CancelPost cancels a pending post. Nothing is refunded.
func (s *Session) CancelPost(postID string) (ScheduledPost, error) {
	var out ScheduledPost
	err := s.exec(func() error {
		p := s.findPost(postID)
		if p == nil {
			return ErrPostNotFound
		}
		if p.Status != PostPending {
			return ErrPostNotPending
		}
		if t, ok := s.timers[publishTimerKey(postID)]; ok {
			t.Stop()
			delete(s.timers, publishTimerKey(postID))
		}
		s.setPostStatus(p, PostCancelled, EventPostCancelled)
		out = p.clone()
		return nil
	})
	return out, err
}
