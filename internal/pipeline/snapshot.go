package pipeline

import (
	"slices"
	"time"
)

// Snapshot is a consistent copy of a session's state.
type Snapshot struct {
	SessionID        string             `json:"session_id"`
	UserID           string             `json:"user_id"`
	Stage            Stage              `json:"stage"`
	Epoch            int                `json:"epoch"`
	Request          *GenerationRequest `json:"request,omitempty"`
	IdeasStatus      IdeasStatus        `json:"ideas_status"`
	IdeasError       string             `json:"ideas_error,omitempty"`
	Ideas            []ContentIdea      `json:"ideas"`
	Selected         []string           `json:"selected"`
	Jobs             []Job              `json:"jobs"`
	AggregateCredits int                `json:"aggregate_credits"`
	Posts            []ScheduledPost    `json:"posts"`
	Wizard           WizardView         `json:"wizard"`
	Balance          int                `json:"balance"`
	Available        int                `json:"available"`
	UpdatedAt        time.Time          `json:"updated_at"`
}

// snapshot copies the loop state. Loop only.
//
// AggregateCredits is recomputed from every job on each call rather than
// kept as a running total, so it can never drift from the jobs it sums.
func (s *Session) snapshot() Snapshot {
	snap := Snapshot{
		SessionID:   s.id,
		UserID:      s.userID,
		Stage:       s.st.stage,
		Epoch:       s.st.epoch,
		IdeasStatus: s.st.ideasStatus,
		IdeasError:  s.st.ideasErr,
		Ideas:       slices.Clone(s.st.ideas),
		Selected:    slices.Clone(s.st.selected),
		Jobs:        make([]Job, 0, len(s.st.jobs)),
		Posts:       make([]ScheduledPost, 0, len(s.st.posts)),
		Wizard:      s.st.wizard.view(),
		Balance:     s.book.Balance(),
		Available:   s.book.Available(),
		UpdatedAt:   s.st.updatedAt,
	}
	if s.st.request != nil {
		req := *s.st.request
		snap.Request = &req
	}
	if snap.Ideas == nil {
		snap.Ideas = []ContentIdea{}
	}
	if snap.Selected == nil {
		snap.Selected = []string{}
	}
	for _, j := range s.st.jobs {
		snap.Jobs = append(snap.Jobs, j.clone())
		snap.AggregateCredits += j.CreditsUsed
	}
	for _, p := range s.st.posts {
		snap.Posts = append(snap.Posts, p.clone())
	}
	return snap
}

// Snapshot returns the current state.
func (s *Session) Snapshot() (Snapshot, error) {
	var out Snapshot
	err := s.exec(func() error {
		out = s.snapshot()
		return nil
	})
	return out, err
}

// Subscribe returns a channel that receives a snapshot after every state
// change. Slow readers only see the latest snapshot. The channel is closed
// when cancel is called or the session shuts down.
func (s *Session) Subscribe() (<-chan Snapshot, func(), error) {
	ch := make(chan Snapshot, 1)
	var id int
	err := s.exec(func() error {
		id = s.nextSub
		s.nextSub++
		s.subs[id] = ch
		ch <- s.snapshot()
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	cancel := func() {
		s.exec(func() error {
			if c, ok := s.subs[id]; ok {
				close(c)
				delete(s.subs, id)
			}
			return nil
		})
	}
	return ch, cancel, nil
}

// publish pushes the current snapshot to every subscriber, replacing any
// snapshot the subscriber has not read yet. Loop only.
func (s *Session) publish() {
	if len(s.subs) == 0 {
		return
	}
	snap := s.snapshot()
	for _, ch := range s.subs {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}
