// Package pipeline implements the content generation workflow: a request is
// turned into a batch of ideas, selected ideas become rendering jobs, and
// completed jobs can be post-processed and scheduled for publishing.
//
// Go Pattern: Each workflow Session is owned by exactly one goroutine (its
// event loop). API calls, timer callbacks and worker results never touch the
// session state directly; they send a closure into the loop's inbox and the
// loop runs closures one at a time. That gives every job a strict order of
// updates while letting many jobs' timers interleave freely, and it lets
// tests replace wall time with clock.Fake.
//
// Every delayed callback captures the session epoch (bumped on back
// navigation) and the job attempt (bumped on retry). A callback whose epoch
// or attempt no longer matches is dropped, so abandoned timers can never
// write into discarded state.
package pipeline

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/Shimizu-Technology/reelforge-api/internal/clock"
	"github.com/Shimizu-Technology/reelforge-api/internal/ledger"
)

// Stage is the top-level workflow position.
type Stage string

const (
	StageModeSelection   Stage = "mode_selection"
	StageIdeasGeneration Stage = "ideas_generation"
	StageVideoGeneration Stage = "video_generation"
)

// Deps are a session's collaborators. Only Synthesizer is required; the
// rest fall back to working defaults, except that caption requests fail with
// ErrCaptionsUnavailable when Captioner is nil.
type Deps struct {
	Clock       clock.Clock
	Rand        *rand.Rand
	Synthesizer Synthesizer
	Refiner     Refiner
	Captioner   Captioner
	Runner      Runner
	Notifier    Notifier
	History     HistoryStore
	Logger      zerolog.Logger
}

// state is owned by the session loop. Nothing outside the loop reads it.
type state struct {
	stage       Stage
	epoch       int
	request     *GenerationRequest
	ideasStatus IdeasStatus
	ideasErr    string
	ideas       []ContentIdea
	selected    []string
	jobs        []*Job
	posts       []*ScheduledPost
	wizard      wizard
	updatedAt   time.Time
}

// Session is one user's run through the workflow.
type Session struct {
	id     string
	userID string
	cfg    Config
	book   *ledger.Book

	clock     clock.Clock
	rng       *rand.Rand
	synth     Synthesizer
	refiner   Refiner
	captioner Captioner
	runner    Runner
	notifier  Notifier
	history   HistoryStore
	log       zerolog.Logger

	inbox      chan func()
	done       chan struct{}
	closeOnce  sync.Once
	lastActive atomic.Int64

	// Loop-owned.
	st      state
	timers  map[string]clock.Timer
	subs    map[int]chan Snapshot
	nextSub int
}

// NewSession creates a session and starts its event loop.
func NewSession(id, userID string, cfg Config, book *ledger.Book, deps Deps) *Session {
	if deps.Clock == nil {
		deps.Clock = clock.New()
	}
	if deps.Rand == nil {
		deps.Rand = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x5eed))
	}
	if deps.Runner == nil {
		deps.Runner = GoRunner{}
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}

	s := &Session{
		id:        id,
		userID:    userID,
		cfg:       cfg,
		book:      book,
		clock:     deps.Clock,
		rng:       deps.Rand,
		synth:     deps.Synthesizer,
		refiner:   deps.Refiner,
		captioner: deps.Captioner,
		runner:    deps.Runner,
		notifier:  deps.Notifier,
		history:   deps.History,
		log:       deps.Logger.With().Str("session_id", id).Str("user_id", userID).Logger(),
		inbox:     make(chan func()),
		done:      make(chan struct{}),
		timers:    make(map[string]clock.Timer),
		subs:      make(map[int]chan Snapshot),
	}
	s.st = state{
		stage:       StageModeSelection,
		ideasStatus: IdeasIdle,
		wizard:      newWizard(),
		updatedAt:   s.clock.Now(),
	}
	s.touch()

	go s.run()
	return s
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// UserID returns the owning user.
func (s *Session) UserID() string { return s.userID }

// LastActive returns the time of the last API call.
func (s *Session) LastActive() time.Time {
	return time.Unix(0, s.lastActive.Load())
}

func (s *Session) touch() {
	s.lastActive.Store(s.clock.Now().UnixNano())
}

// run is the event loop. It is the only goroutine that reads or writes s.st.
func (s *Session) run() {
	for {
		select {
		case fn := <-s.inbox:
			fn()
			s.publish()
		case <-s.done:
			return
		}
	}
}

// exec runs fn on the loop and waits for its result.
func (s *Session) exec(fn func() error) error {
	s.touch()
	reply := make(chan error, 1)
	select {
	case s.inbox <- func() { reply <- fn() }:
	case <-s.done:
		return ErrSessionClosed
	}
	select {
	case err := <-reply:
		return err
	case <-s.done:
		select {
		case err := <-reply:
			return err
		default:
			return ErrSessionClosed
		}
	}
}

// post delivers an event from a timer or worker and waits until the loop
// has applied it. Events for a closed session are dropped.
func (s *Session) post(fn func()) {
	handled := make(chan struct{})
	select {
	case s.inbox <- func() { fn(); close(handled) }:
	case <-s.done:
		return
	}
	select {
	case <-handled:
	case <-s.done:
	}
}

// after schedules fn on the loop after d. A timer already registered under
// key is stopped and replaced.
func (s *Session) after(key string, d time.Duration, fn func()) {
	if t, ok := s.timers[key]; ok {
		t.Stop()
	}
	var t clock.Timer
	t = s.clock.AfterFunc(d, func() {
		s.post(func() {
			if s.timers[key] == t {
				delete(s.timers, key)
			}
			fn()
		})
	})
	s.timers[key] = t
}

// stopTimers stops every timer whose key satisfies keep == false.
func (s *Session) stopTimers(keep func(key string) bool) {
	for key, t := range s.timers {
		if keep != nil && keep(key) {
			continue
		}
		t.Stop()
		delete(s.timers, key)
	}
}

// Sync waits until every event queued before the call has been applied.
func (s *Session) Sync() error {
	return s.exec(func() error { return nil })
}

// Close stops the loop, releases outstanding reservations and closes every
// subscription. It is safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.exec(func() error {
			s.releaseJobs(s.st.jobs)
			s.stopTimers(nil)
			for id, ch := range s.subs {
				close(ch)
				delete(s.subs, id)
			}
			return nil
		})
		close(s.done)
	})
}

// Done is closed once the session has shut down.
func (s *Session) Done() <-chan struct{} { return s.done }

// SubmitRequest validates in and moves the session into idea generation.
// Validation failures leave the session in mode selection.
func (s *Session) SubmitRequest(in RequestInput) (GenerationRequest, error) {
	req, err := NewGenerationRequest(in, s.cfg.Pricing)
	if err != nil {
		return GenerationRequest{}, err
	}
	err = s.exec(func() error {
		if s.st.stage != StageModeSelection {
			return ErrWrongStage
		}
		s.st.request = &req
		s.st.stage = StageIdeasGeneration
		s.st.epoch++
		s.startSynthesis()
		return nil
	})
	if err != nil {
		return GenerationRequest{}, err
	}
	s.log.Info().Str("mode", string(req.Mode())).Msg("generation request submitted")
	return req, nil
}

// RegenerateIdeas reruns synthesis for the current request. Selection is
// cleared.
func (s *Session) RegenerateIdeas() error {
	return s.exec(func() error {
		if s.st.stage != StageIdeasGeneration {
			return ErrWrongStage
		}
		if s.st.ideasStatus == IdeasLoading {
			return ErrIdeasNotReady
		}
		s.st.epoch++
		s.startSynthesis()
		return nil
	})
}

// startSynthesis dispatches the synthesizer for the current epoch. Loop only.
func (s *Session) startSynthesis() {
	s.st.ideas = nil
	s.st.selected = nil
	s.st.ideasErr = ""
	s.st.ideasStatus = IdeasLoading
	s.st.updatedAt = s.clock.Now()

	if s.synth == nil {
		s.st.ideasStatus = IdeasFailed
		s.st.ideasErr = "idea synthesis is not configured"
		return
	}

	epoch := s.st.epoch
	req := *s.st.request
	n := s.batchSize()
	synth := s.synth
	err := s.runner.Go("idea_synthesis", func(ctx context.Context) {
		ideas, err := synthesizeBatch(ctx, synth, req, n)
		s.post(func() { s.onIdeas(epoch, ideas, err) })
	})
	if err != nil {
		s.st.ideasStatus = IdeasFailed
		s.st.ideasErr = err.Error()
		s.log.Warn().Err(err).Msg("could not dispatch idea synthesis")
	}
}

func (s *Session) onIdeas(epoch int, ideas []ContentIdea, err error) {
	if epoch != s.st.epoch || s.st.stage != StageIdeasGeneration {
		s.log.Debug().Int("epoch", epoch).Msg("dropping stale idea batch")
		return
	}
	s.st.updatedAt = s.clock.Now()
	if err != nil {
		s.st.ideasStatus = IdeasFailed
		s.st.ideasErr = err.Error()
		s.log.Warn().Err(err).Msg("idea synthesis failed")
		return
	}
	s.st.ideas = ideas
	s.st.ideasStatus = IdeasReady
	s.log.Info().Int("count", len(ideas)).Msg("ideas ready")
}

func (s *Session) batchSize() int {
	if s.cfg.BatchSize > 0 {
		return s.cfg.BatchSize
	}
	return 5
}

// SelectIdeas starts one generation job per selected idea. Every job's
// estimate is reserved up front; if the total does not fit the available
// balance nothing is reserved and the stage does not change.
func (s *Session) SelectIdeas(ids []string) ([]Job, error) {
	var out []Job
	err := s.exec(func() error {
		if s.st.stage != StageIdeasGeneration {
			return ErrWrongStage
		}
		if s.st.ideasStatus != IdeasReady {
			return ErrIdeasNotReady
		}
		if len(ids) == 0 {
			return ErrNoIdeasSelected
		}

		byID := make(map[string]ContentIdea, len(s.st.ideas))
		for _, idea := range s.st.ideas {
			byID[idea.ID] = idea
		}
		var picked []ContentIdea
		seen := make(map[string]bool)
		for _, id := range ids {
			if seen[id] {
				continue
			}
			idea, ok := byID[id]
			if !ok {
				return fmt.Errorf("%w: %s", ErrIdeaNotFound, id)
			}
			seen[id] = true
			picked = append(picked, idea)
		}

		estimate := s.cfg.Pricing.Estimate(*s.st.request)
		if total := estimate * len(picked); total > s.book.Available() {
			return ledgerShortfall(total, s.book.Available())
		}

		now := s.clock.Now()
		jobs := make([]*Job, 0, len(picked))
		for _, idea := range picked {
			job := newJob(idea, *s.st.request, estimate, now, s.cfg.Pricing)
			if err := s.reserve(job.ledgerKey(), ledger.ActionVideoGeneration, estimate); err != nil {
				s.releaseJobs(jobs)
				return err
			}
			jobs = append(jobs, job)
		}

		s.st.selected = make([]string, 0, len(picked))
		for _, idea := range picked {
			s.st.selected = append(s.st.selected, idea.ID)
		}
		s.st.jobs = jobs
		s.st.stage = StageVideoGeneration
		s.st.updatedAt = now
		for _, job := range jobs {
			s.enqueue(job)
			out = append(out, job.clone())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Int("jobs", len(out)).Msg("ideas selected")
	return out, nil
}

// Back moves one stage backwards and discards everything downstream.
func (s *Session) Back() (Stage, error) {
	var stage Stage
	err := s.exec(func() error {
		switch s.st.stage {
		case StageVideoGeneration:
			s.releaseJobs(s.st.jobs)
			s.stopTimers(isPublishTimer)
			s.st.jobs = nil
			s.st.selected = nil
			s.st.stage = StageIdeasGeneration
		case StageIdeasGeneration:
			s.stopTimers(isPublishTimer)
			s.st.ideas = nil
			s.st.selected = nil
			s.st.ideasStatus = IdeasIdle
			s.st.ideasErr = ""
			s.st.request = nil
			s.st.stage = StageModeSelection
		default:
			return ErrAtFirstStage
		}
		s.st.epoch++
		s.st.updatedAt = s.clock.Now()
		stage = s.st.stage
		return nil
	})
	if err == nil {
		s.log.Info().Str("stage", string(stage)).Msg("navigated back")
	}
	return stage, err
}

// reserve holds amount under key. A free action holds nothing. Loop only.
func (s *Session) reserve(key string, action ledger.Action, amount int) error {
	if amount == 0 {
		return nil
	}
	return s.book.Reserve(key, action, amount)
}

// commit debits what reserve held for key. A free action has nothing to
// commit and reports applied=false. Loop only.
func (s *Session) commit(key string, amount int) (ledger.Transaction, bool, error) {
	if amount == 0 {
		return ledger.Transaction{}, false, nil
	}
	return s.book.Commit(key)
}

// releaseJobs drops every reservation the jobs still hold. Loop only.
func (s *Session) releaseJobs(jobs []*Job) {
	for _, job := range jobs {
		s.book.Release(job.ledgerKey())
		s.book.Release(watermarkKey(job.ID))
		s.book.Release(captionsKey(job.ID))
		s.book.Release(scheduleKey(job.ID))
	}
}

// job finds a job by id in the current epoch. Loop only.
func (s *Session) job(id string) (*Job, error) {
	for _, j := range s.st.jobs {
		if j.ID == id {
			return j, nil
		}
	}
	return nil, ErrJobNotFound
}

// emit hands ev to the notifier off the loop.
func (s *Session) emit(ev Event) {
	if s.notifier == nil {
		return
	}
	ev.UserID = s.userID
	ev.SessionID = s.id
	ev.At = s.clock.Now()
	notifier := s.notifier
	if err := s.runner.Go("notify", func(ctx context.Context) { notifier.Notify(ctx, ev) }); err != nil {
		s.log.Warn().Err(err).Str("event", string(ev.Type)).Msg("dropped notification")
	}
}

// persist runs a history write off the loop. Failures are logged only.
func (s *Session) persist(what string, fn func(ctx context.Context, h HistoryStore) error) {
	if s.history == nil {
		return
	}
	h := s.history
	log := s.log
	err := s.runner.Go("persist_"+what, func(ctx context.Context) {
		if err := fn(ctx, h); err != nil {
			log.Error().Err(err).Str("record", what).Msg("failed to persist history")
		}
	})
	if err != nil {
		s.log.Warn().Err(err).Str("record", what).Msg("dropped history write")
	}
}
