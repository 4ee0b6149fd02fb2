package video

import (
	"github.com/framepulse/framepulse-core/internal/imaging"
	"github.com/framepulse/framepulse-core/internal/models"
)

// FreezeDetector finds stretches where the picture stops moving: adjacent
// sampled frames that are near-identical by SSIM and mean absolute
// difference. Black frames are excluded; a dead signal is not a freeze.
type FreezeDetector struct {
	SSIMThreshold     float64
	MADThreshold      float64
	MinFreezeDuration float64
}

func NewFreezeDetector() *FreezeDetector {
	return &FreezeDetector{
		SSIMThreshold:     0.98,
		MADThreshold:      2.0,
		MinFreezeDuration: 1.0,
	}
}

func (d *FreezeDetector) Name() string { return "freeze" }

// Detect returns the freeze issue, or nil when nothing froze.
func (d *FreezeDetector) Detect(samples []Sample) *models.VideoIssue {
	if len(samples) < 2 {
		return nil
	}
	// A pair being frozen flags both endpoints, so runs of identical frames
	// become one closed segment.
	flags := make([]bool, len(samples))
	frozenPairs := 0
	for i := 1; i < len(samples); i++ {
		a, b := samples[i-1], samples[i]
		if a.Black || b.Black {
			continue
		}
		if len(a.Gray) != len(b.Gray) {
			continue
		}
		ssim := imaging.SSIM(a.Gray, b.Gray, a.Width, a.Height)
		mad := imaging.MAD(a.Gray, b.Gray)
		if ssim > d.SSIMThreshold && mad < d.MADThreshold {
			flags[i-1] = true
			flags[i] = true
			frozenPairs++
		}
	}
	if frozenPairs == 0 {
		return nil
	}
	segments := mergeFlags(samples, flags, d.MinFreezeDuration)
	if len(segments) == 0 {
		return nil
	}
	duration := totalDuration(segments)
	return &models.VideoIssue{
		IssueType:        "freeze",
		Severity:         videoSeverity(duration / d.MinFreezeDuration),
		Segments:         segments,
		AbnormalDuration: duration,
		Explanation:      "The picture stalls on identical frames.",
		Suggestions: []string{
			"Check the encoder for stalls",
			"Inspect the network path for congestion",
		},
		Summary: map[string]interface{}{
			"frozen_pairs":    frozenPairs,
			"ssim_threshold":  d.SSIMThreshold,
			"mad_threshold":   d.MADThreshold,
			"segment_count":   len(segments),
			"frozen_duration": duration,
		},
	}
}
