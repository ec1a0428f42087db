package config

import (
	"bytes"
	"fmt"
	"os"
	"time"
	_ "time/tzdata" // Containers often ship without zoneinfo

	"github.com/pelletier/go-toml/v2"

	"github.com/Shimizu-Technology/reelforge-api/internal/pipeline"
)

// pipelineFile is the TOML override document. Every field is optional;
// pointers tell "absent" apart from an explicit zero.
//
//	batch_size = 4
//	idle_timeout = "30m"
//
//	[pricing]
//	watermark_fee = 12
//
//	[pricing.models.kling]
//	base_cost = 30
//
//	[timing]
//	queue_delay = "500ms"
//	failure_rate = 0.05
type pipelineFile struct {
	BatchSize       *int        `toml:"batch_size"`
	ArtifactBaseURL *string     `toml:"artifact_base_url"`
	Timezone        *string     `toml:"timezone"`
	IdleTimeout     *string     `toml:"idle_timeout"`
	Pricing         pricingFile `toml:"pricing"`
	Timing          timingFile  `toml:"timing"`
}

type pricingFile struct {
	DefaultStoryModel   *string              `toml:"default_story_model"`
	AudioSurcharge      *int                 `toml:"audio_surcharge"`
	ProMultiplier       *int                 `toml:"pro_multiplier"`
	WatermarkFee        *int                 `toml:"watermark_fee"`
	CaptionRate         *int                 `toml:"caption_rate"`
	ScheduleSetupFee    *int                 `toml:"schedule_setup_fee"`
	SchedulePlatformFee *int                 `toml:"schedule_platform_fee"`
	Models              map[string]modelFile `toml:"models"`
}

type modelFile struct {
	Label             *string  `toml:"label"`
	BaseCost          *int     `toml:"base_cost"`
	DefaultDuration   *int     `toml:"default_duration"`
	Durations         []int    `toml:"durations"`
	DefaultResolution *string  `toml:"default_resolution"`
	Resolutions       []string `toml:"resolutions"`
	RequiresImage     *bool    `toml:"requires_image"`
}

type timingFile struct {
	QueueDelay           *string  `toml:"queue_delay"`
	TickInterval         *string  `toml:"tick_interval"`
	TickMin              *int     `toml:"tick_min"`
	TickMax              *int     `toml:"tick_max"`
	FailureRate          *float64 `toml:"failure_rate"`
	WatermarkDelay       *string  `toml:"watermark_delay"`
	CaptionDelay         *string  `toml:"caption_delay"`
	ScheduleConfirmDelay *string  `toml:"schedule_confirm_delay"`
}

// PipelineConfig builds the session configuration: built-in defaults, then
// environment variables, then the PIPELINE_CONFIG file if one is set.
func (c *Config) PipelineConfig() (pipeline.Config, error) {
	pc := pipeline.DefaultConfig()
	pc.BatchSize = c.IdeaBatchSize
	pc.ArtifactBaseURL = c.ArtifactBaseURL
	pc.IdleTimeout = c.SessionIdleTimeout
	pc.Timing.FailureRate = c.JobFailureRate

	loc, err := time.LoadLocation(c.ScheduleTimezone)
	if err != nil {
		return pipeline.Config{}, fmt.Errorf("SCHEDULE_TIMEZONE: %w", err)
	}
	pc.Location = loc

	if c.PipelineConfigPath == "" {
		return pc, nil
	}
	data, err := os.ReadFile(c.PipelineConfigPath)
	if err != nil {
		return pipeline.Config{}, fmt.Errorf("open pipeline config: %w", err)
	}
	if err := applyPipelineFile(&pc, data); err != nil {
		return pipeline.Config{}, fmt.Errorf("pipeline config %s: %w", c.PipelineConfigPath, err)
	}
	return pc, nil
}

// applyPipelineFile decodes data and overlays the fields it sets onto pc.
func applyPipelineFile(pc *pipeline.Config, data []byte) error {
	var f pipelineFile
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}

	if f.BatchSize != nil {
		if *f.BatchSize < 1 {
			return fmt.Errorf("batch_size must be positive")
		}
		pc.BatchSize = *f.BatchSize
	}
	setString(&pc.ArtifactBaseURL, f.ArtifactBaseURL)
	if f.Timezone != nil {
		loc, err := time.LoadLocation(*f.Timezone)
		if err != nil {
			return fmt.Errorf("timezone: %w", err)
		}
		pc.Location = loc
	}
	if err := setDuration(&pc.IdleTimeout, f.IdleTimeout, "idle_timeout"); err != nil {
		return err
	}

	if err := applyPricing(&pc.Pricing, f.Pricing); err != nil {
		return err
	}
	return applyTiming(&pc.Timing, f.Timing)
}

func applyPricing(p *pipeline.Pricing, f pricingFile) error {
	for name, mf := range f.Models {
		variant := pipeline.ModelVariant(name)
		spec, ok := p.Models[variant]
		if !ok {
			return fmt.Errorf("pricing.models.%s: unknown model variant", name)
		}
		setString(&spec.Label, mf.Label)
		setInt(&spec.BaseCost, mf.BaseCost)
		setInt(&spec.DefaultDuration, mf.DefaultDuration)
		setString(&spec.DefaultResolution, mf.DefaultResolution)
		if mf.Durations != nil {
			spec.Durations = mf.Durations
		}
		if mf.Resolutions != nil {
			spec.Resolutions = mf.Resolutions
		}
		if mf.RequiresImage != nil {
			spec.RequiresImage = *mf.RequiresImage
		}
		if spec.BaseCost < 0 || spec.DefaultDuration <= 0 {
			return fmt.Errorf("pricing.models.%s: base_cost must be >= 0 and default_duration > 0", name)
		}
		p.Models[variant] = spec
	}

	if f.DefaultStoryModel != nil {
		variant := pipeline.ModelVariant(*f.DefaultStoryModel)
		if _, ok := p.Model(variant); !ok {
			return fmt.Errorf("pricing.default_story_model: unknown model variant %q", *f.DefaultStoryModel)
		}
		p.DefaultStoryModel = variant
	}
	setInt(&p.AudioSurcharge, f.AudioSurcharge)
	setInt(&p.ProMultiplier, f.ProMultiplier)
	setInt(&p.WatermarkFee, f.WatermarkFee)
	setInt(&p.CaptionRate, f.CaptionRate)
	setInt(&p.ScheduleSetupFee, f.ScheduleSetupFee)
	setInt(&p.SchedulePlatformFee, f.SchedulePlatformFee)

	for _, v := range []int{p.AudioSurcharge, p.WatermarkFee, p.CaptionRate, p.ScheduleSetupFee, p.SchedulePlatformFee} {
		if v < 0 {
			return fmt.Errorf("pricing: fees must not be negative")
		}
	}
	if p.ProMultiplier < 1 {
		return fmt.Errorf("pricing.pro_multiplier must be at least 1")
	}
	return nil
}

func applyTiming(t *pipeline.Timing, f timingFile) error {
	durations := []struct {
		dst  *time.Duration
		src  *string
		name string
	}{
		{&t.QueueDelay, f.QueueDelay, "queue_delay"},
		{&t.TickInterval, f.TickInterval, "tick_interval"},
		{&t.WatermarkDelay, f.WatermarkDelay, "watermark_delay"},
		{&t.CaptionDelay, f.CaptionDelay, "caption_delay"},
		{&t.ScheduleConfirmDelay, f.ScheduleConfirmDelay, "schedule_confirm_delay"},
	}
	for _, d := range durations {
		if err := setDuration(d.dst, d.src, "timing."+d.name); err != nil {
			return err
		}
	}
	setInt(&t.TickMin, f.TickMin)
	setInt(&t.TickMax, f.TickMax)
	if f.FailureRate != nil {
		t.FailureRate = *f.FailureRate
	}

	if t.TickInterval <= 0 {
		return fmt.Errorf("timing.tick_interval must be positive")
	}
	if t.TickMin < 1 || t.TickMax < t.TickMin || t.TickMax > 100 {
		return fmt.Errorf("timing: need 1 <= tick_min <= tick_max <= 100")
	}
	if t.FailureRate < 0 || t.FailureRate > 1 {
		return fmt.Errorf("timing.failure_rate must be between 0 and 1")
	}
	return nil
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func setDuration(dst *time.Duration, src *string, name string) error {
	if src == nil {
		return nil
	}
	d, err := time.ParseDuration(*src)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if d < 0 {
		return fmt.Errorf("%s must not be negative", name)
	}
	*dst = d
	return nil
}
