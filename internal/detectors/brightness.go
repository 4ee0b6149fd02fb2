package detectors

import (
	"github.com/framepulse/framepulse-core/internal/config"
	"github.com/framepulse/framepulse-core/internal/imaging"
	"github.com/framepulse/framepulse-core/internal/models"
)

// BrightnessDetector checks mean luminance against a [min,max] band and
// reports under_bright or over_bright when the band is violated.
type BrightnessDetector struct{}

func (d *BrightnessDetector) Descriptor() models.DetectorDescriptor {
	return models.DetectorDescriptor{
		Name:        "brightness",
		DisplayName: "Brightness anomaly",
		IssueType:   "brightness",
		Levels:      []models.Level{models.LevelFast, models.LevelStandard, models.LevelDeep},
		Priority:    30,
	}
}

func (d *BrightnessDetector) Detect(frame *imaging.Frame, cfg Config) (models.Finding, error) {
	minT := cfg.Threshold(config.KeyBrightnessMin, 20)
	maxT := cfg.Threshold(config.KeyBrightnessMax, 235)

	work := levelFrame(frame, cfg.Level)
	gray := work.Gray()
	mean, std := imaging.MeanStd(gray)

	evidence := map[string]interface{}{
		"mean":           mean,
		"std":            std,
		"brightness_min": minT,
		"brightness_max": maxT,
	}
	if cfg.Level == models.LevelDeep {
		evidence["p5"] = imaging.Percentile(gray, 5)
		evidence["p95"] = imaging.Percentile(gray, 95)
	}

	f := models.Finding{
		Detector:   "brightness",
		IssueType:  "brightness_normal",
		Score:      mean,
		Threshold:  minT,
		Severity:   models.SeverityNormal,
		Evidence:   evidence,
	}

	switch {
	case mean < minT:
		f.IssueType = "under_bright"
		f.IsAbnormal = true
		f.Threshold = minT
		f.Confidence = imaging.Clamp01((minT - mean) / minT)
		switch {
		case mean < 5:
			f.Severity = models.SeverityError
		case mean < 0.5*minT:
			f.Severity = models.SeverityWarning
		default:
			f.Severity = models.SeverityInfo
		}
	case mean > maxT:
		f.IssueType = "over_bright"
		f.IsAbnormal = true
		f.Threshold = maxT
		f.Confidence = imaging.Clamp01((mean - maxT) / (255 - maxT))
		switch {
		case mean > 250:
			f.Severity = models.SeverityError
		case mean > maxT+(255-maxT)*0.5:
			f.Severity = models.SeverityWarning
		default:
			f.Severity = models.SeverityInfo
		}
	default:
		// Distance to the nearer bound, normalized by the band half-width.
		half := (maxT - minT) / 2
		dist := mean - minT
		if maxT-mean < dist {
			dist = maxT - mean
		}
		if half > 0 {
			f.Confidence = imaging.Clamp01(dist / half)
		}
	}
	applyAdvice(&f, brightnessAdvice)
	return f, nil
}

var brightnessAdvice = map[string]advice{
	"under_bright": {
		explanation: "The image is too dark; content is barely visible.",
		causes: []string{
			"Insufficient scene illumination",
			"Wrong exposure or iris setting",
			"IR cut filter stuck during night mode",
		},
		suggestions: []string{
			"Add or repair lighting",
			"Adjust exposure compensation",
			"Verify day/night switching",
		},
	},
	"over_bright": {
		explanation: "The image is overexposed; highlights are clipped.",
		causes: []string{
			"Direct light source in the field of view",
			"Exposure set too high",
			"Strong reflection from nearby surfaces",
		},
		suggestions: []string{
			"Reduce exposure or enable WDR",
			"Reposition the camera away from light sources",
		},
	},
	"brightness_normal": {
		explanation: "Luminance is within the expected band.",
	},
}
