package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestPoolRunsTasks(t *testing.T) {
	p := NewPool(2, 10, zerolog.Nop())
	p.Start()

	var wg sync.WaitGroup
	var mu sync.Mutex
	ran := map[string]bool{}
	for _, name := range []string{"a", "b", "c"} {
		wg.Add(1)
		name := name
		if err := p.Go(name, func(ctx context.Context) {
			defer wg.Done()
			mu.Lock()
			ran[name] = true
			mu.Unlock()
		}); err != nil {
			t.Fatalf("Go(%s) error = %v", name, err)
		}
	}
	wg.Wait()
	p.Stop()

	if len(ran) != 3 {
		t.Errorf("ran = %v", ran)
	}
	if s := p.Stats(); s.Completed != 3 || s.Workers != 2 || s.Capacity != 10 {
		t.Errorf("Stats() = %+v", s)
	}
}

func TestPoolSubmitErrors(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(p *Pool)
		task    Task
		wantErr error
	}{
		{
			name:  "nil work",
			setup: func(p *Pool) {},
			task:  Task{Name: "empty"},
		},
		{
			name: "queue full",
			setup: func(p *Pool) {
				// Not started, so the single slot stays occupied.
				p.Go("first", func(context.Context) {})
			},
			task:    Task{Name: "second", Run: func(context.Context) {}},
			wantErr: ErrQueueFull,
		},
		{
			name:    "stopped",
			setup:   func(p *Pool) { p.Start(); p.Stop() },
			task:    Task{Name: "late", Run: func(context.Context) {}},
			wantErr: ErrStopped,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPool(1, 1, zerolog.Nop())
			tt.setup(p)
			err := p.Submit(tt.task)
			if err == nil {
				t.Fatal("Submit() succeeded")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Submit() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestPoolSurvivesPanic(t *testing.T) {
	p := NewPool(1, 4, zerolog.Nop())
	p.Start()

	done := make(chan struct{})
	p.Go("boom", func(context.Context) { panic("boom") })
	p.Go("after", func(context.Context) { close(done) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not recover from panic")
	}
	p.Stop()

	if s := p.Stats(); s.Panicked != 1 || s.Completed != 1 {
		t.Errorf("Stats() = %+v", s)
	}
}

func TestStopCancelsContext(t *testing.T) {
	p := NewPool(1, 1, zerolog.Nop())
	p.Start()

	started := make(chan struct{})
	p.Go("wait", func(ctx context.Context) {
		close(started)
		<-ctx.Done()
	})
	<-started
	p.Stop()
}
