package pipeline

import (
	"context"
	"time"
)

// EventType names a notification emitted by a session.
type EventType string

const (
	EventJobCompleted  EventType = "job.completed"
	EventJobFailed     EventType = "job.failed"
	EventCaptionsReady EventType = "captions.ready"
	EventPostScheduled EventType = "post.scheduled"
	EventPostPublished EventType = "post.published"
	EventPostCancelled EventType = "post.cancelled"
)

// AllEventTypes lists every event a session can emit.
var AllEventTypes = []EventType{
	EventJobCompleted,
	EventJobFailed,
	EventCaptionsReady,
	EventPostScheduled,
	EventPostPublished,
	EventPostCancelled,
}

// Event is a notification about a job or post.
type Event struct {
	Type      EventType `json:"event"`
	UserID    string    `json:"user_id"`
	SessionID string    `json:"session_id"`
	JobID     string    `json:"job_id,omitempty"`
	PostID    string    `json:"post_id,omitempty"`
	Data      any       `json:"data,omitempty"`
	At        time.Time `json:"timestamp"`
}

// Notifier delivers events to the outside world (webhooks, event feed).
// Errors are the notifier's to log; a failed notification never affects the
// pipeline.
type Notifier interface {
	Notify(ctx context.Context, ev Event)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, ev Event)

// Notify calls f(ctx, ev).
func (f NotifierFunc) Notify(ctx context.Context, ev Event) { f(ctx, ev) }

// Runner executes blocking work off the session loop. The worker pool
// implements it in production.
type Runner interface {
	Go(task string, fn func(ctx context.Context)) error
}

// GoRunner runs every task on a fresh goroutine.
type GoRunner struct{}

// Go starts fn in a new goroutine.
func (GoRunner) Go(task string, fn func(ctx context.Context)) error {
	go fn(context.Background())
	return nil
}

// VideoRecord is the history entry written when a job completes.
type VideoRecord struct {
	ID          string       `json:"id" db:"id"`
	UserID      string       `json:"user_id" db:"user_id"`
	SessionID   string       `json:"session_id" db:"session_id"`
	JobID       string       `json:"job_id" db:"job_id"`
	IdeaID      string       `json:"idea_id" db:"idea_id"`
	Title       string       `json:"title" db:"title"`
	Model       ModelVariant `json:"model" db:"model"`
	OutputURL   string       `json:"output_url" db:"output_url"`
	CreditsUsed int          `json:"credits_used" db:"credits_used"`
	CreatedAt   time.Time    `json:"created_at" db:"created_at"`
}

// HistoryStore persists completed videos and scheduled posts.
type HistoryStore interface {
	SaveVideo(ctx context.Context, rec VideoRecord) error
	SavePost(ctx context.Context, userID string, post ScheduledPost) error
	UpdatePostStatus(ctx context.Context, postID string, status PostStatus) error
}
