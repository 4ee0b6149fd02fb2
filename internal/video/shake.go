package video

import (
	"github.com/framepulse/framepulse-core/internal/imaging"
	"github.com/framepulse/framepulse-core/internal/models"
)

// ShakeDetector measures inter-frame motion and flags sustained global
// movement. Motion is estimated by block matching on the decimated samples;
// a sliding window smooths isolated spikes.
type ShakeDetector struct {
	MotionThreshold  float64 // px, on the decimated plane
	WindowSize       int     // sliding window over adjacent pairs
	MinFlagged       int     // pairs over threshold inside the window
	MinShakeDuration float64
	MergeGap         float64
}

func NewShakeDetector() *ShakeDetector {
	return &ShakeDetector{
		MotionThreshold:  5.0,
		WindowSize:       5,
		MinFlagged:       3,
		MinShakeDuration: 0.5,
		MergeGap:         2.0,
	}
}

func (d *ShakeDetector) Name() string { return "shake" }

// Detect returns the shake issue, or nil for stable footage.
func (d *ShakeDetector) Detect(samples []Sample) *models.VideoIssue {
	if len(samples) < 2 {
		return nil
	}
	// Per adjacent pair: mean motion magnitude.
	motions := make([]float64, len(samples)-1)
	for i := 1; i < len(samples); i++ {
		a, b := samples[i-1], samples[i]
		if len(a.Gray) != len(b.Gray) {
			continue
		}
		vectors := imaging.BlockMotion(a.Gray, b.Gray, a.Width, a.Height, 16, 7)
		mean, _ := imaging.MeanMotionMagnitude(vectors)
		motions[i-1] = mean
	}

	// Sliding window over the pair series; sample i is flagged when enough
	// recent pairs moved hard.
	flags := make([]bool, len(samples))
	var peak float64
	for i := range motions {
		if motions[i] > peak {
			peak = motions[i]
		}
		lo := i - d.WindowSize + 1
		if lo < 0 {
			lo = 0
		}
		over := 0
		for j := lo; j <= i; j++ {
			if motions[j] > d.MotionThreshold {
				over++
			}
		}
		if over >= d.MinFlagged || (motions[i] > d.MotionThreshold && i == len(motions)-1 && over > 0) {
			flags[i] = true
			flags[i+1] = true
		}
	}

	segments := mergeClose(mergeFlags(samples, flags, d.MinShakeDuration), d.MergeGap)
	if len(segments) == 0 {
		return nil
	}
	duration := totalDuration(segments)
	return &models.VideoIssue{
		IssueType:        "shake",
		Severity:         videoSeverity(peak / d.MotionThreshold),
		Segments:         segments,
		AbnormalDuration: duration,
		Explanation:      "The camera is shaking; the whole picture moves between frames.",
		Suggestions: []string{
			"Check the mount and tighten fixings",
			"Move the camera away from vibration sources",
			"Enable electronic image stabilization",
		},
		Summary: map[string]interface{}{
			"peak_motion_px":   peak,
			"motion_threshold": d.MotionThreshold,
			"segment_count":    len(segments),
		},
	}
}
