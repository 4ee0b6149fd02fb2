package detectors

import (
	"github.com/framepulse/framepulse-core/internal/imaging"
	"github.com/framepulse/framepulse-core/internal/models"
)

// BaselineComparator checks a live frame against a reference capture of the
// same scene. It is not part of the registry because it needs two frames;
// the stream worker drives it when a baseline is configured.
type BaselineComparator struct {
	baseline *imaging.Frame
	hist     []float64
}

// Correlation below which the scene is considered to have deviated from the
// baseline.
const baselineCorrelationMin = 0.5

// NewBaselineComparator snapshots the reference frame's statistics once.
func NewBaselineComparator(baseline *imaging.Frame) (*BaselineComparator, error) {
	if err := baseline.Validate(); err != nil {
		return nil, err
	}
	return &BaselineComparator{
		baseline: baseline,
		hist:     imaging.HSVHistogram(baseline, 8, 4, 4),
	}, nil
}

// Compare scores the live frame against the baseline.
func (c *BaselineComparator) Compare(frame *imaging.Frame) models.Finding {
	hist := imaging.HSVHistogram(frame, 8, 4, 4)
	corr := imaging.HistCorrelation(c.hist, hist)

	var mad float64
	if frame.Width == c.baseline.Width && frame.Height == c.baseline.Height {
		mad = imaging.MAD(frame.Gray(), c.baseline.Gray())
	}

	isAbnormal := corr < baselineCorrelationMin
	f := models.Finding{
		Detector:   "baseline",
		IssueType:  "baseline_normal",
		IsAbnormal: isAbnormal,
		Score:      corr,
		Threshold:  baselineCorrelationMin,
		Confidence: imaging.Clamp01((baselineCorrelationMin - corr) / baselineCorrelationMin),
		Severity:   models.SeverityNormal,
		Evidence: map[string]interface{}{
			"hist_correlation": corr,
			"mad":              mad,
		},
	}
	if isAbnormal {
		f.IssueType = "scene_deviation"
		f.Severity = models.SeverityWarning
		f.Explanation = "The scene no longer matches the configured baseline."
		f.Causes = []string{
			"Camera moved or rotated",
			"View deliberately redirected",
			"Major change in the monitored area",
		}
		f.Suggestions = []string{
			"Verify the camera orientation",
			"Re-capture the baseline if the change is intended",
		}
	} else {
		f.Explanation = "The scene matches the configured baseline."
		f.Confidence = imaging.Clamp01((corr - baselineCorrelationMin) / (1 - baselineCorrelationMin))
	}
	return f
}
