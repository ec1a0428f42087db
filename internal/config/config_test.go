package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Shimizu-Technology/reelforge-api/internal/pipeline"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("GIN_MODE", "debug")
	t.Setenv("CORS_ORIGIN", "https://app.example.com, https://admin.example.com")
	t.Setenv("ADMIN_USER_IDS", "user_1,,user_2 ")
	t.Setenv("JOB_FAILURE_RATE", "0.25")
	t.Setenv("SESSION_IDLE_TIMEOUT", "45m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != "8080" || cfg.WorkerCount != 3 || cfg.StartingCredits != 500 {
		t.Errorf("defaults = port %q workers %d credits %d", cfg.Port, cfg.WorkerCount, cfg.StartingCredits)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://admin.example.com" {
		t.Errorf("AllowedOrigins = %v", cfg.AllowedOrigins)
	}
	if len(cfg.AdminUserIDs) != 2 || cfg.AdminUserIDs[1] != "user_2" {
		t.Errorf("AdminUserIDs = %v", cfg.AdminUserIDs)
	}
	if cfg.JobFailureRate != 0.25 || cfg.SessionIdleTimeout != 45*time.Minute {
		t.Errorf("failure rate %v idle %v", cfg.JobFailureRate, cfg.SessionIdleTimeout)
	}
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "default secret in release",
			env:     map[string]string{"GIN_MODE": "release"},
			wantErr: "JWT_SECRET",
		},
		{
			name:    "failure rate above one",
			env:     map[string]string{"JOB_FAILURE_RATE": "1.5"},
			wantErr: "JOB_FAILURE_RATE",
		},
		{
			name:    "unknown timezone",
			env:     map[string]string{"SCHEDULE_TIMEZONE": "Mars/Olympus"},
			wantErr: "SCHEDULE_TIMEZONE",
		},
		{
			name:    "zero batch",
			env:     map[string]string{"IDEA_BATCH_SIZE": "0"},
			wantErr: "IDEA_BATCH_SIZE",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("GIN_MODE", "debug")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Load() error = %v, want mention of %s", err, tt.wantErr)
			}
		})
	}
}

func TestPipelineConfigFromEnv(t *testing.T) {
	cfg := &Config{
		IdeaBatchSize:      3,
		ArtifactBaseURL:    "https://cdn.test",
		ScheduleTimezone:   "Pacific/Guam",
		SessionIdleTimeout: time.Hour,
		JobFailureRate:     0.1,
	}
	pc, err := cfg.PipelineConfig()
	if err != nil {
		t.Fatalf("PipelineConfig() error = %v", err)
	}
	if pc.BatchSize != 3 || pc.ArtifactBaseURL != "https://cdn.test" || pc.IdleTimeout != time.Hour {
		t.Errorf("pipeline config = %+v", pc)
	}
	if pc.Location.String() != "Pacific/Guam" || pc.Timing.FailureRate != 0.1 {
		t.Errorf("location %v failure rate %v", pc.Location, pc.Timing.FailureRate)
	}
	if pc.Pricing.WatermarkFee != pipeline.DefaultPricing().WatermarkFee {
		t.Errorf("pricing changed without an override file")
	}
}

func TestPipelineConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipeline.toml")
	doc := `
batch_size = 4
idle_timeout = "30m"

[pricing]
watermark_fee = 12
default_story_model = "hailuo"

[pricing.models.kling]
base_cost = 30
durations = [5, 10, 15]

[timing]
queue_delay = "500ms"
tick_min = 10
tick_max = 20
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := &Config{IdeaBatchSize: 5, ScheduleTimezone: "UTC", PipelineConfigPath: path}

	pc, err := cfg.PipelineConfig()
	if err != nil {
		t.Fatalf("PipelineConfig() error = %v", err)
	}
	if pc.BatchSize != 4 || pc.IdleTimeout != 30*time.Minute {
		t.Errorf("batch %d idle %v", pc.BatchSize, pc.IdleTimeout)
	}
	kling, _ := pc.Pricing.Model(pipeline.ModelKling)
	if kling.BaseCost != 30 || len(kling.Durations) != 3 || kling.Label != "Kling 2.1" {
		t.Errorf("kling = %+v", kling)
	}
	if pc.Pricing.WatermarkFee != 12 || pc.Pricing.DefaultStoryModel != pipeline.ModelHailuo {
		t.Errorf("pricing = %+v", pc.Pricing)
	}
	if pc.Pricing.CaptionRate != pipeline.DefaultPricing().CaptionRate {
		t.Errorf("unset caption_rate changed to %d", pc.Pricing.CaptionRate)
	}
	if pc.Timing.QueueDelay != 500*time.Millisecond || pc.Timing.TickMin != 10 || pc.Timing.TickMax != 20 {
		t.Errorf("timing = %+v", pc.Timing)
	}
}

func TestPipelineConfigFileErrors(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{name: "unknown key", doc: "batch = 3\n", wantErr: "parse config"},
		{name: "unknown model", doc: "[pricing.models.sora]\nbase_cost = 1\n", wantErr: "unknown model variant"},
		{name: "bad duration", doc: "[timing]\ncaption_delay = \"soon\"\n", wantErr: "timing.caption_delay"},
		{name: "tick range", doc: "[timing]\ntick_min = 30\ntick_max = 10\n", wantErr: "tick_min"},
		{name: "negative fee", doc: "[pricing]\ncaption_rate = -1\n", wantErr: "negative"},
		{name: "zero batch", doc: "batch_size = 0\n", wantErr: "batch_size"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pc := pipeline.DefaultConfig()
			err := applyPipelineFile(&pc, []byte(tt.doc))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("applyPipelineFile() error = %v, want %q", err, tt.wantErr)
			}
		})
	}

	cfg := &Config{IdeaBatchSize: 5, ScheduleTimezone: "UTC", PipelineConfigPath: filepath.Join(t.TempDir(), "missing.toml")}
	if _, err := cfg.PipelineConfig(); err == nil {
		t.Error("PipelineConfig() with a missing file succeeded")
	}
}
