package handlers

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/Shimizu-Technology/reelforge-api/internal/models"
	"github.com/Shimizu-Technology/reelforge-api/internal/pipeline"
)

// fastConfig renders jobs in a few milliseconds.
func fastConfig(t *testing.T) pipeline.Config {
	t.Helper()
	cfg := pipeline.DefaultConfig()
	cfg.Timing.QueueDelay = time.Millisecond
	cfg.Timing.TickInterval = time.Millisecond
	cfg.Timing.TickMin = 50
	cfg.Timing.TickMax = 100
	cfg.Timing.ScheduleConfirmDelay = time.Millisecond
	loc, err := time.LoadLocation("Pacific/Guam")
	if err != nil {
		t.Fatal(err)
	}
	cfg.Location = loc
	return cfg
}

// completedJob selects the first idea of a fresh session and waits for its
// job to finish. It returns the session path and job id.
func (e *testEnv) completedJob(t *testing.T, user string) (string, string) {
	t.Helper()
	snap := e.readySession(t, user)
	base := "/sessions/" + snap.SessionID
	w := e.do(t, http.MethodPost, base+"/ideas/select", user, map[string]any{"idea_ids": []string{snap.Ideas[0].ID}})
	if w.Code != http.StatusCreated {
		t.Fatalf("select = %d %s", w.Code, w.Body.String())
	}
	jobID := decode[struct {
		Jobs []pipeline.Job `json:"jobs"`
	}](t, w).Jobs[0].ID

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		job := decode[pipeline.Job](t, e.do(t, http.MethodGet, base+"/jobs/"+jobID, user, nil))
		if job.Status == pipeline.JobCompleted {
			return base, jobID
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("job never completed")
	return "", ""
}

func TestSchedulePostValidationOrder(t *testing.T) {
	env := newTestEnvConfig(t, fastConfig(t), nil)
	base, jobID := env.completedJob(t, "user_1")
	path := base + "/jobs/" + jobID + "/schedule"

	tests := []struct {
		name        string
		body        map[string]any
		wantMessage string
	}{
		{
			name:        "platforms before wall clock time",
			body:        map[string]any{"platforms": []string{}, "caption": "", "when": "2030-03-02T09:00"},
			wantMessage: pipeline.ErrNoPlatforms.Error(),
		},
		{
			name:        "platforms before unreadable time",
			body:        map[string]any{"platforms": []string{}, "caption": "", "when": "next tuesday"},
			wantMessage: pipeline.ErrNoPlatforms.Error(),
		},
		{
			name:        "unreadable time before caption",
			body:        map[string]any{"platforms": []string{"tiktok"}, "caption": "", "when": "next tuesday"},
			wantMessage: pipeline.ErrScheduleTimeInvalid.Error(),
		},
		{
			name:        "missing time before caption",
			body:        map[string]any{"platforms": []string{"tiktok"}, "caption": ""},
			wantMessage: pipeline.ErrScheduleTimeMissing.Error(),
		},
		{
			name:        "caption last",
			body:        map[string]any{"platforms": []string{"tiktok"}, "caption": " ", "when": "2030-03-02T09:00"},
			wantMessage: pipeline.ErrCaptionRequired.Error(),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, path, "user_1", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400: %s", w.Code, w.Body.String())
			}
			if got := decode[models.ErrorResponse](t, w).Message; !strings.Contains(got, tt.wantMessage) {
				t.Errorf("message = %q, want %q", got, tt.wantMessage)
			}
		})
	}

	t.Run("wall clock time is read in the schedule timezone", func(t *testing.T) {
		w := env.do(t, http.MethodPost, path, "user_1", map[string]any{
			"platforms": []string{"tiktok"},
			"caption":   "Latte art in 10 seconds",
			"when":      "2030-03-02T09:00",
		})
		if w.Code != http.StatusAccepted {
			t.Fatalf("status = %d, want 202: %s", w.Code, w.Body.String())
		}
		receipt := decode[pipeline.ScheduleReceipt](t, w)
		want := time.Date(2030, 3, 2, 9, 0, 0, 0, fastConfig(t).Location)
		if !receipt.ScheduledAt.Equal(want) {
			t.Errorf("ScheduledAt = %v, want %v", receipt.ScheduledAt, want)
		}
	})
}
