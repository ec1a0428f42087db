package handlers

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/Shimizu-Technology/reelforge-api/internal/pipeline"
)

func TestCaptionsPerLanguage(t *testing.T) {
	cfg := fastConfig(t)
	cfg.Timing.CaptionDelay = time.Millisecond
	env := newTestEnvConfig(t, cfg, nil)
	base, jobID := env.completedJob(t, "user_1")
	jobPath := base + "/jobs/" + jobID

	w := env.do(t, http.MethodPost, jobPath+"/captions", "user_1", map[string]any{
		"languages": []string{"en", "fr"},
		"model":     "gpt-4o-mini",
	})
	if w.Code != http.StatusAccepted {
		t.Fatalf("captions = %d %s", w.Code, w.Body.String())
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		job := decode[pipeline.Job](t, env.do(t, http.MethodGet, jobPath, "user_1", nil))
		if job.Captions.State == pipeline.CaptionsReady {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	en := env.do(t, http.MethodGet, jobPath+"/captions/en?format=srt", "user_1", nil)
	fr := env.do(t, http.MethodGet, jobPath+"/captions/fr?format=srt", "user_1", nil)
	if en.Code != http.StatusOK || fr.Code != http.StatusOK {
		t.Fatalf("export = %d / %d", en.Code, fr.Code)
	}
	if en.Body.String() == fr.Body.String() {
		t.Error("en and fr subtitles are identical")
	}
	if !strings.Contains(fr.Body.String(), "[français]") {
		t.Errorf("fr subtitles:\n%s", fr.Body.String())
	}
}
