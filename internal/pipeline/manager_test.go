package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Shimizu-Technology/reelforge-api/internal/clock"
	"github.com/Shimizu-Technology/reelforge-api/internal/ledger"
)

func newTestManager(t *testing.T) (*Manager, *clock.Fake) {
	t.Helper()
	fake := clock.NewFake(testStart)
	m := NewManager(DefaultConfig(), ledger.New(100, ledger.WithClock(fake.Now)), Deps{
		Clock:       fake,
		Synthesizer: fixedSynth{},
		Logger:      zerolog.Nop(),
	})
	t.Cleanup(m.Shutdown)
	return m, fake
}

func TestManagerOwnership(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	s, err := m.Create(ctx, "alice")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := m.Create(ctx, "bob"); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := m.Get("alice", s.ID())
	if err != nil || got != s {
		t.Fatalf("Get() = %v, %v", got, err)
	}
	if _, err := m.Get("bob", s.ID()); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Get() by another user error = %v, want ErrSessionNotFound", err)
	}
	if n := len(m.List("alice")); n != 1 {
		t.Errorf("List(alice) = %d sessions, want 1", n)
	}
	if err := m.Close("bob", s.ID()); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Close() by another user error = %v", err)
	}
	if err := m.Close("alice", s.ID()); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if m.Count() != 1 {
		t.Errorf("Count() = %d, want 1", m.Count())
	}
	select {
	case <-s.Done():
	default:
		t.Error("closed session is still running")
	}
}

func TestManagerSessionsShareUserBook(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	a, _ := m.Create(ctx, "alice")
	b, _ := m.Create(ctx, "alice")
	snapA, _ := a.Snapshot()
	snapB, _ := b.Snapshot()
	if snapA.Balance != 100 || snapB.Balance != 100 {
		t.Errorf("balances = %d / %d, want the signup grant once", snapA.Balance, snapB.Balance)
	}
}

func TestManagerReapIdle(t *testing.T) {
	m, fake := newTestManager(t)
	ctx := context.Background()

	old, _ := m.Create(ctx, "alice")
	fake.Advance(90 * time.Minute)
	fresh, _ := m.Create(ctx, "alice")
	fake.Advance(45 * time.Minute)

	if n := m.ReapIdle(fake.Now()); n != 1 {
		t.Fatalf("ReapIdle() = %d, want 1", n)
	}
	if _, err := m.Get("alice", old.ID()); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("idle session still registered: %v", err)
	}
	if _, err := m.Get("alice", fresh.ID()); err != nil {
		t.Errorf("fresh session reaped: %v", err)
	}

	// Activity resets the idle clock.
	fake.Advance(time.Hour)
	fresh.Snapshot()
	fake.Advance(90 * time.Minute)
	if n := m.ReapIdle(fake.Now()); n != 0 {
		t.Errorf("ReapIdle() = %d after activity, want 0", n)
	}
}
