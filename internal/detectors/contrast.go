package detectors

import (
	"github.com/framepulse/framepulse-core/internal/config"
	"github.com/framepulse/framepulse-core/internal/imaging"
	"github.com/framepulse/framepulse-core/internal/models"
)

// ContrastDetector flags flat, washed-out frames via luminance spread.
type ContrastDetector struct{}

func (d *ContrastDetector) Descriptor() models.DetectorDescriptor {
	return models.DetectorDescriptor{
		Name:        "contrast",
		DisplayName: "Low contrast",
		IssueType:   "low_contrast",
		Levels:      []models.Level{models.LevelFast, models.LevelStandard, models.LevelDeep},
		Priority:    60,
	}
}

func (d *ContrastDetector) Detect(frame *imaging.Frame, cfg Config) (models.Finding, error) {
	threshold := cfg.Threshold(config.KeyContrastMin, 30)
	work := levelFrame(frame, cfg.Level)
	gray := work.Gray()
	mean, std := imaging.MeanStd(gray)

	evidence := map[string]interface{}{
		"std":  std,
		"mean": mean,
	}
	if cfg.Level != models.LevelFast {
		p5 := imaging.Percentile(gray, 5)
		p95 := imaging.Percentile(gray, 95)
		evidence["dynamic_range"] = p95 - p5
	}
	if cfg.Level == models.LevelDeep {
		lo, hi := imaging.MinMax(gray)
		if mean > 0 {
			evidence["rms_contrast"] = std / mean
		}
		if int(hi)+int(lo) > 0 {
			evidence["michelson"] = float64(int(hi)-int(lo)) / float64(int(hi)+int(lo))
		}
	}

	isAbnormal := std < threshold
	f := models.Finding{
		Detector:   "contrast",
		IssueType:  "contrast_normal",
		IsAbnormal: isAbnormal,
		Score:      std,
		Threshold:  threshold,
		Confidence: confidence(std, threshold),
		Severity:   models.SeverityNormal,
		Evidence:   evidence,
	}
	if isAbnormal {
		f.IssueType = "low_contrast"
		f.Severity = severityBelow(std, threshold)
	}
	applyAdvice(&f, contrastAdvice)
	return f, nil
}

var contrastAdvice = map[string]advice{
	"low_contrast": {
		explanation: "The image lacks contrast; content looks washed out.",
		causes: []string{
			"Fog, haze or backlight in the scene",
			"Dirty dome or protective glass",
			"Flat lighting conditions",
		},
		suggestions: []string{
			"Clean the housing glass",
			"Enable contrast enhancement or WDR",
			"Review scene lighting",
		},
	},
	"contrast_normal": {
		explanation: "Contrast is within the expected range.",
	},
}
