package detectors

import (
	"math"

	"github.com/framepulse/framepulse-core/internal/config"
	"github.com/framepulse/framepulse-core/internal/imaging"
	"github.com/framepulse/framepulse-core/internal/models"
)

// Config is the resolved per-call configuration handed to a detector.
type Config struct {
	Thresholds config.Thresholds
	Level      models.Level
}

// Threshold reads a threshold key with a fallback default.
func (c Config) Threshold(key string, def float64) float64 {
	return c.Thresholds.Get(key, def)
}

// Detector scores one quality aspect of a frame. Implementations are
// stateless and safe for concurrent use.
type Detector interface {
	Descriptor() models.DetectorDescriptor
	Detect(frame *imaging.Frame, cfg Config) (models.Finding, error)
}

// Working resolution for the fast level.
const fastMaxSide = 480

func levelFrame(f *imaging.Frame, level models.Level) *imaging.Frame {
	if level == models.LevelFast {
		return f.Downsample(fastMaxSide)
	}
	return f
}

// confidence normalizes the distance between score and threshold into [0,1].
func confidence(score, threshold float64) float64 {
	if threshold == 0 {
		return 0
	}
	return imaging.Clamp01(math.Abs(score-threshold) / math.Abs(threshold))
}

// severityBelow grades scores where lower is worse: at or above 0.7x the
// threshold the finding is informational, above 0.4x a warning, below that
// an error.
func severityBelow(score, threshold float64) models.Severity {
	switch {
	case score >= 0.7*threshold:
		return models.SeverityInfo
	case score >= 0.4*threshold:
		return models.SeverityWarning
	default:
		return models.SeverityError
	}
}

// severityAbove grades scores where higher is worse, by the score/threshold
// ratio.
func severityAbove(score, threshold float64) models.Severity {
	if threshold <= 0 {
		return models.SeverityError
	}
	ratio := score / threshold
	switch {
	case ratio <= 1.5:
		return models.SeverityInfo
	case ratio <= 2.5:
		return models.SeverityWarning
	default:
		return models.SeverityError
	}
}

// advice is one sub-issue's explanation table entry.
type advice struct {
	explanation string
	causes      []string
	suggestions []string
}

func applyAdvice(f *models.Finding, table map[string]advice) {
	a, ok := table[f.IssueType]
	if !ok {
		return
	}
	f.Explanation = a.explanation
	f.Causes = a.causes
	f.Suggestions = a.suggestions
}
