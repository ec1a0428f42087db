package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Shimizu-Technology/reelforge-api/internal/clock"
	"github.com/Shimizu-Technology/reelforge-api/internal/ledger"
)

var testStart = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// fixedSynth returns n numbered ideas, or err when set.
type fixedSynth struct {
	err   error
	short bool
}

func (f fixedSynth) Synthesize(ctx context.Context, req GenerationRequest, n int) ([]ContentIdea, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.short {
		n--
	}
	ideas := make([]ContentIdea, n)
	for i := range ideas {
		ideas[i] = ContentIdea{
			ID:        fmt.Sprintf("idea-%d", i+1),
			Title:     fmt.Sprintf("Idea %d for %s", i+1, req.Subject()),
			Narration: "Three tricks to film better coffee shots. Number one will surprise you.",
		}
	}
	return ideas, nil
}

// blockingSynth holds the batch until release is closed.
type blockingSynth struct {
	release chan struct{}
}

func (b blockingSynth) Synthesize(ctx context.Context, req GenerationRequest, n int) ([]ContentIdea, error) {
	select {
	case <-b.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return fixedSynth{}.Synthesize(ctx, req, n)
}

type fakeRefiner struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeRefiner) Refine(ctx context.Context, in RefineInput) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return in.BasePrompt + " | refined: " + in.NarrationTheme, nil
}

func (f *fakeRefiner) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// tagCaptioner suffixes the narration with each language code, or fails
// with err when set.
type tagCaptioner struct {
	err  error
	skip string
}

func (c tagCaptioner) Caption(ctx context.Context, in CaptionInput) (map[string]string, error) {
	if c.err != nil {
		return nil, c.err
	}
	out := make(map[string]string, len(in.Languages))
	for _, code := range in.Languages {
		if code == c.skip {
			continue
		}
		out[code] = fmt.Sprintf("%s [%s]", in.Narration, code)
	}
	return out, nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingNotifier) Notify(ctx context.Context, ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingNotifier) types() []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventType, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}

type harness struct {
	t        *testing.T
	s        *Session
	clock    *clock.Fake
	book     *ledger.Book
	cfg      Config
	refiner  *fakeRefiner
	notifier *recordingNotifier
}

type harnessOption func(*Config, *Deps)

func withSynth(s Synthesizer) harnessOption {
	return func(c *Config, d *Deps) { d.Synthesizer = s }
}

func withCaptioner(c Captioner) harnessOption {
	return func(cfg *Config, d *Deps) { d.Captioner = c }
}

func withTiming(fn func(*Timing)) harnessOption {
	return func(c *Config, d *Deps) { fn(&c.Timing) }
}

func withPricing(fn func(*Pricing)) harnessOption {
	return func(c *Config, d *Deps) { fn(&c.Pricing) }
}

func newHarness(t *testing.T, credits int, opts ...harnessOption) *harness {
	t.Helper()
	fake := clock.NewFake(testStart)
	l := ledger.New(credits, ledger.WithClock(fake.Now))
	book, err := l.Book(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Book() error = %v", err)
	}

	cfg := DefaultConfig()
	cfg.Timing.TickMin = 10
	cfg.Timing.TickMax = 30
	refiner := &fakeRefiner{}
	notifier := &recordingNotifier{}
	deps := Deps{
		Clock:       fake,
		Rand:        rand.New(rand.NewPCG(1, 2)),
		Synthesizer: fixedSynth{},
		Refiner:     refiner,
		Captioner:   tagCaptioner{},
		Notifier:    notifier,
		Logger:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&cfg, &deps)
	}

	s := NewSession("session-1", "user-1", cfg, book, deps)
	t.Cleanup(s.Close)
	return &harness{t: t, s: s, clock: fake, book: book, cfg: cfg, refiner: refiner, notifier: notifier}
}

func (h *harness) snapshot() Snapshot {
	h.t.Helper()
	snap, err := h.s.Snapshot()
	if err != nil {
		h.t.Fatalf("Snapshot() error = %v", err)
	}
	return snap
}

// waitFor polls until pred holds. Used for work that runs off the loop on
// real goroutines (idea synthesis).
func (h *harness) waitFor(what string, pred func(Snapshot) bool) Snapshot {
	h.t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if snap := h.snapshot(); pred(snap) {
			return snap
		}
		time.Sleep(time.Millisecond)
	}
	h.t.Fatalf("timed out waiting for %s", what)
	return Snapshot{}
}

// advanceUntil steps virtual time until pred holds, calling observe on every
// snapshot along the way.
func (h *harness) advanceUntil(what string, step time.Duration, pred func(Snapshot) bool, observe func(Snapshot)) Snapshot {
	h.t.Helper()
	for i := 0; i < 1000; i++ {
		snap := h.snapshot()
		if observe != nil {
			observe(snap)
		}
		if pred(snap) {
			return snap
		}
		h.clock.Advance(step)
	}
	h.t.Fatalf("virtual time ran out waiting for %s", what)
	return Snapshot{}
}

func (h *harness) waitForEvents(want ...EventType) {
	h.t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		got := h.notifier.types()
		if containsAll(got, want) {
			return
		}
		time.Sleep(time.Millisecond)
	}
	h.t.Fatalf("events = %v, want to include %v", h.notifier.types(), want)
}

func containsAll(got, want []EventType) bool {
	for _, w := range want {
		found := false
		for _, g := range got {
			if g == w {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func klingRequest() RequestInput {
	return RequestInput{DirectPrompt: &DirectPrompt{Prompt: "latte art in slow motion", Model: ModelKling}}
}

// ideasReady submits a kling request and waits for the batch.
func (h *harness) ideasReady() Snapshot {
	h.t.Helper()
	if _, err := h.s.SubmitRequest(klingRequest()); err != nil {
		h.t.Fatalf("SubmitRequest() error = %v", err)
	}
	return h.waitFor("ideas", func(s Snapshot) bool { return s.IdeasStatus == IdeasReady })
}

// completedJob drives one selected idea to completion and returns its id.
func (h *harness) completedJob() string {
	h.t.Helper()
	h.ideasReady()
	jobs, err := h.s.SelectIdeas([]string{"idea-1"})
	if err != nil {
		h.t.Fatalf("SelectIdeas() error = %v", err)
	}
	id := jobs[0].ID
	h.advanceUntil("job completion", 500*time.Millisecond, func(s Snapshot) bool {
		return s.Jobs[0].Status == JobCompleted
	}, nil)
	return id
}

// captionsSettled waits for the caption attempt on id to leave in_progress.
func (h *harness) captionsSettled(id string) Job {
	h.t.Helper()
	h.waitFor("captions", func(s Snapshot) bool {
		for _, j := range s.Jobs {
			if j.ID == id {
				return j.Captions.State != CaptionsInProgress
			}
		}
		return false
	})
	return h.job(id)
}

func (h *harness) job(id string) Job {
	h.t.Helper()
	j, err := h.s.Job(id)
	if err != nil {
		h.t.Fatalf("Job(%s) error = %v", id, err)
	}
	return j
}

func wantErr(t *testing.T, got, want error) {
	t.Helper()
	if !errors.Is(got, want) {
		t.Fatalf("error = %v, want %v", got, want)
	}
}

// stamp formats t the way API clients send schedule times.
func stamp(t time.Time) string { return t.Format(time.RFC3339Nano) }
