package pipeline

import (
	"sort"
	"time"
)

// ModelVariant names a video generation model.
type ModelVariant string

const (
	ModelVeo    ModelVariant = "veo"
	ModelKling  ModelVariant = "kling"
	ModelHailuo ModelVariant = "hailuo"
)

// ModelSpec describes one model variant's defaults and price.
type ModelSpec struct {
	Name              ModelVariant `json:"name"`
	Label             string       `json:"label"`
	DefaultResolution string       `json:"default_resolution"`
	Resolutions       []string     `json:"resolutions"`
	DefaultDuration   int          `json:"default_duration"`
	Durations         []int        `json:"durations"`
	BaseCost          int          `json:"base_cost"`
	RequiresImage     bool         `json:"requires_image"`
}

// Pricing holds every credit price in the pipeline.
type Pricing struct {
	Models              map[ModelVariant]ModelSpec `json:"models"`
	DefaultStoryModel   ModelVariant               `json:"default_story_model"`
	AudioSurcharge      int                        `json:"audio_surcharge"`
	ProMultiplier       int                        `json:"pro_multiplier"`
	WatermarkFee        int                        `json:"watermark_fee"`
	CaptionRate         int                        `json:"caption_rate"`
	ScheduleSetupFee    int                        `json:"schedule_setup_fee"`
	SchedulePlatformFee int                        `json:"schedule_platform_fee"`
}

// Timing holds the simulated latencies of each asynchronous step.
type Timing struct {
	QueueDelay           time.Duration
	TickInterval         time.Duration
	TickMin              int
	TickMax              int
	FailureRate          float64
	WatermarkDelay       time.Duration
	CaptionDelay         time.Duration
	ScheduleConfirmDelay time.Duration
}

// Config is everything a session needs besides its collaborators.
type Config struct {
	Pricing         Pricing
	Timing          Timing
	BatchSize       int
	ArtifactBaseURL string
	Location        *time.Location
	IdleTimeout     time.Duration
}

// DefaultPricing returns the built-in price table.
func DefaultPricing() Pricing {
	return Pricing{
		Models: map[ModelVariant]ModelSpec{
			ModelVeo: {
				Name:              ModelVeo,
				Label:             "Veo 3",
				DefaultResolution: "1080p",
				Resolutions:       []string{"720p", "1080p"},
				DefaultDuration:   8,
				Durations:         []int{4, 6, 8},
				BaseCost:          40,
				RequiresImage:     true,
			},
			ModelKling: {
				Name:              ModelKling,
				Label:             "Kling 2.1",
				DefaultResolution: "720p",
				Resolutions:       []string{"720p", "1080p"},
				DefaultDuration:   5,
				Durations:         []int{5, 10},
				BaseCost:          25,
			},
			ModelHailuo: {
				Name:              ModelHailuo,
				Label:             "Hailuo 02",
				DefaultResolution: "768p",
				Resolutions:       []string{"512p", "768p", "1080p"},
				DefaultDuration:   6,
				Durations:         []int{6, 10},
				BaseCost:          15,
			},
		},
		DefaultStoryModel:   ModelKling,
		AudioSurcharge:      5,
		ProMultiplier:       2,
		WatermarkFee:        10,
		CaptionRate:         2,
		ScheduleSetupFee:    5,
		SchedulePlatformFee: 2,
	}
}

// DefaultTiming returns the built-in latencies.
func DefaultTiming() Timing {
	return Timing{
		QueueDelay:           2 * time.Second,
		TickInterval:         time.Second,
		TickMin:              5,
		TickMax:              15,
		WatermarkDelay:       3 * time.Second,
		CaptionDelay:         4 * time.Second,
		ScheduleConfirmDelay: 1500 * time.Millisecond,
	}
}

// DefaultConfig returns a Config with built-in pricing and timing.
func DefaultConfig() Config {
	return Config{
		Pricing:         DefaultPricing(),
		Timing:          DefaultTiming(),
		BatchSize:       5,
		ArtifactBaseURL: "https://cdn.reelforge.local",
		Location:        time.UTC,
		IdleTimeout:     2 * time.Hour,
	}
}

// Model looks up a model variant.
func (p Pricing) Model(v ModelVariant) (ModelSpec, bool) {
	m, ok := p.Models[v]
	return m, ok
}

// ModelNames returns the configured variants in sorted order.
func (p Pricing) ModelNames() []ModelVariant {
	names := make([]ModelVariant, 0, len(p.Models))
	for name := range p.Models {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// Estimate returns the fixed credit cost of rendering one idea for req.
//
// The model's base cost covers its default duration; longer or shorter
// clips scale linearly, rounded up. Audio adds a flat surcharge and pro
// fidelity multiplies the total.
func (p Pricing) Estimate(req GenerationRequest) int {
	variant, duration, audio, pro := req.renderParams(p)
	m, ok := p.Model(variant)
	if !ok {
		return 0
	}
	cost := m.BaseCost
	if duration > 0 && m.DefaultDuration > 0 && duration != m.DefaultDuration {
		cost = (m.BaseCost*duration + m.DefaultDuration - 1) / m.DefaultDuration
	}
	if audio {
		cost += p.AudioSurcharge
	}
	if pro && p.ProMultiplier > 1 {
		cost *= p.ProMultiplier
	}
	return cost
}

// CaptionCharge is the price of captioning in n languages.
func (p Pricing) CaptionCharge(n int) int {
	return n * p.CaptionRate
}

// ScheduleCharge is the price of scheduling to n platforms.
func (p Pricing) ScheduleCharge(n int) int {
	return p.ScheduleSetupFee + n*p.SchedulePlatformFee
}
