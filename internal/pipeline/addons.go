package pipeline

import (
	"github.com/Shimizu-Technology/reelforge-api/internal/ledger"
)

// RequestWatermarkRemoval starts watermark removal on a completed job. The
// fee is reserved now and committed exactly once, when removal finishes. A
// job whose watermark is already removed or being removed is left alone.
func (s *Session) RequestWatermarkRemoval(jobID string) (Job, error) {
	var out Job
	err := s.exec(func() error {
		j, err := s.job(jobID)
		if err != nil {
			return err
		}
		if j.Status != JobCompleted {
			return ErrJobNotCompleted
		}
		switch j.Watermark {
		case WatermarkInProgress:
			return ErrWatermarkInProgress
		case WatermarkRemoved:
			return ErrWatermarkRemoved
		}

		fee := s.cfg.Pricing.WatermarkFee
		if err := s.reserve(watermarkKey(j.ID), ledger.ActionWatermarkRemoval, fee); err != nil {
			return err
		}
		j.Watermark = WatermarkInProgress
		j.UpdatedAt = s.clock.Now()

		epoch, id := s.st.epoch, j.ID
		s.after(addonTimerKey("watermark", id), s.cfg.Timing.WatermarkDelay, func() {
			s.onWatermarkRemoved(epoch, id, fee)
		})
		out = j.clone()
		return nil
	})
	if err == nil {
		s.log.Info().Str("job_id", jobID).Msg("watermark removal requested")
	}
	return out, err
}

func (s *Session) onWatermarkRemoved(epoch int, jobID string, fee int) {
	if epoch != s.st.epoch {
		return
	}
	j, err := s.job(jobID)
	if err != nil || j.Watermark != WatermarkInProgress {
		return
	}

	_, applied, err := s.commit(watermarkKey(j.ID), fee)
	if err != nil {
		s.log.Error().Err(err).Str("job_id", j.ID).Msg("failed to commit watermark charge")
		return
	}
	if applied {
		j.CreditsUsed += fee
	}
	j.Watermark = WatermarkRemoved
	j.OutputURL = s.artifactURL("videos", j.ID+"-clean.mp4")
	j.UpdatedAt = s.clock.Now()
	s.log.Info().Str("job_id", j.ID).Msg("watermark removed")
}
