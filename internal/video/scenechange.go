package video

import (
	"math"

	"github.com/framepulse/framepulse-core/internal/imaging"
	"github.com/framepulse/framepulse-core/internal/models"
)

// SceneChangeDetector counts hard cuts. A cut is a histogram jump or an
// edge-density jump between adjacent samples; frequent cuts mean an
// unstable or misrouted source.
type SceneChangeDetector struct {
	HistThreshold       float64
	EdgeThreshold       float64
	MinGap              float64 // seconds; events closer than this merge
	MaxChangesPerMinute float64
}

func NewSceneChangeDetector() *SceneChangeDetector {
	return &SceneChangeDetector{
		HistThreshold:       0.4,
		EdgeThreshold:       0.3,
		MinGap:              1.0,
		MaxChangesPerMinute: 5,
	}
}

func (d *SceneChangeDetector) Name() string { return "scene_change" }

// Detect returns the scene-change issue when the cut rate is excessive.
func (d *SceneChangeDetector) Detect(samples []Sample, duration float64) *models.VideoIssue {
	if len(samples) < 2 {
		return nil
	}
	var events []models.Segment
	for i := 1; i < len(samples); i++ {
		a, b := samples[i-1], samples[i]
		histDist := imaging.Bhattacharyya(a.Hist, b.Hist)
		edgeDiff := math.Abs(a.EdgeDensity - b.EdgeDensity)
		if histDist > d.HistThreshold || edgeDiff > d.EdgeThreshold {
			// The cut happens at the later sample; the event is
			// instantaneous.
			if n := len(events); n > 0 && b.TimestampSec-events[n-1].EndTime < d.MinGap {
				continue
			}
			events = append(events, models.Segment{
				StartTime: b.TimestampSec, EndTime: b.TimestampSec,
				StartFrame: b.Index, EndFrame: b.Index,
			})
		}
	}
	if len(events) == 0 {
		return nil
	}
	perMinute := float64(len(events))
	if duration > 0 {
		perMinute = float64(len(events)) / duration * 60
	}
	if perMinute <= d.MaxChangesPerMinute {
		return nil
	}
	return &models.VideoIssue{
		IssueType:        "scene_change",
		Severity:         videoSeverity(perMinute / d.MaxChangesPerMinute),
		Segments:         events,
		AbnormalDuration: 0,
		Explanation:      "The scene cuts far more often than a fixed camera should.",
		Suggestions: []string{
			"Verify the stream is routed from the expected camera",
			"Check for a patrolling or misconfigured PTZ preset",
		},
		Summary: map[string]interface{}{
			"change_count":       len(events),
			"changes_per_minute": perMinute,
		},
	}
}
