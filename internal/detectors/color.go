package detectors

import (
	"math"

	"github.com/framepulse/framepulse-core/internal/config"
	"github.com/framepulse/framepulse-core/internal/imaging"
	"github.com/framepulse/framepulse-core/internal/models"
)

// ColorDetector covers three failure modes in priority order: a solid
// blue/green diagnostic screen, a desaturated (effectively grayscale) image,
// and a channel color cast.
type ColorDetector struct{}

// Fraction of pixels inside the diagnostic hue band that declares a solid
// screen.
const screenRatioThreshold = 0.8

func (d *ColorDetector) Descriptor() models.DetectorDescriptor {
	return models.DetectorDescriptor{
		Name:        "color",
		DisplayName: "Color anomaly",
		IssueType:   "color_cast",
		Levels:      []models.Level{models.LevelFast, models.LevelStandard, models.LevelDeep},
		Priority:    20,
		Suppresses:  []string{"contrast"},
	}
}

func (d *ColorDetector) Detect(frame *imaging.Frame, cfg Config) (models.Finding, error) {
	castThreshold := cfg.Threshold(config.KeyColorCastThreshold, 30)
	satMin := cfg.Threshold(config.KeySaturationMin, 10)
	work := levelFrame(frame, cfg.Level)

	f := models.Finding{
		Detector:  "color",
		IssueType: "color_normal",
		Severity:  models.SeverityNormal,
	}

	if work.Channels != 3 {
		// Single-plane input carries no chroma at all.
		f.IssueType = "low_saturation"
		f.IsAbnormal = true
		f.Score = 0
		f.Threshold = satMin
		f.Confidence = 1
		f.Severity = models.SeverityWarning
		f.Evidence = map[string]interface{}{"saturation_mean": 0.0}
		applyAdvice(&f, colorAdvice)
		return f, nil
	}

	blueRatio := imaging.HueRangeRatio(work, 100, 130, 80, 40)
	greenRatio := imaging.HueRangeRatio(work, 40, 80, 80, 40)
	satMean := imaging.SaturationMean(work)
	mb, mg, mr := imaging.ChannelMeans(work)
	avg := (mb + mg + mr) / 3
	castDev := math.Max(math.Abs(mb-avg), math.Max(math.Abs(mg-avg), math.Abs(mr-avg)))

	f.Evidence = map[string]interface{}{
		"blue_ratio":      blueRatio,
		"green_ratio":     greenRatio,
		"saturation_mean": satMean,
		"mean_b":          mb,
		"mean_g":          mg,
		"mean_r":          mr,
		"cast_deviation":  castDev,
	}

	switch {
	case blueRatio > screenRatioThreshold:
		f.IssueType = "blue_screen"
		f.IsAbnormal = true
		f.Score = blueRatio
		f.Threshold = screenRatioThreshold
		f.Confidence = imaging.Clamp01((blueRatio - screenRatioThreshold) / (1 - screenRatioThreshold))
		f.Severity = models.SeverityError
	case greenRatio > screenRatioThreshold:
		f.IssueType = "green_screen"
		f.IsAbnormal = true
		f.Score = greenRatio
		f.Threshold = screenRatioThreshold
		f.Confidence = imaging.Clamp01((greenRatio - screenRatioThreshold) / (1 - screenRatioThreshold))
		f.Severity = models.SeverityError
	case satMean < satMin:
		f.IssueType = "low_saturation"
		f.IsAbnormal = true
		f.Score = satMean
		f.Threshold = satMin
		f.Confidence = confidence(satMean, satMin)
		f.Severity = models.SeverityWarning
	case castDev > castThreshold:
		f.IssueType = "color_cast"
		f.IsAbnormal = true
		f.Score = castDev
		f.Threshold = castThreshold
		f.Confidence = confidence(castDev, castThreshold)
		f.Severity = severityAbove(castDev, castThreshold)
	default:
		f.Score = castDev
		f.Threshold = castThreshold
		f.Confidence = confidence(castDev, castThreshold)
	}
	applyAdvice(&f, colorAdvice)
	return f, nil
}

var colorAdvice = map[string]advice{
	"blue_screen": {
		explanation: "The frame is dominated by a solid blue screen.",
		causes: []string{
			"Video input signal lost at the encoder",
			"Channel switched to an unused input",
		},
		suggestions: []string{
			"Check the camera-to-encoder cabling",
			"Verify the channel mapping",
		},
	},
	"green_screen": {
		explanation: "The frame is dominated by a solid green screen.",
		causes: []string{
			"Decoder failure producing a chroma-only frame",
			"Stream corruption during transport",
		},
		suggestions: []string{
			"Restart the decoder",
			"Inspect the transport link for packet loss",
		},
	},
	"low_saturation": {
		explanation: "The image is effectively grayscale.",
		causes: []string{
			"Camera stuck in night (IR) mode",
			"Color processing disabled",
		},
		suggestions: []string{
			"Check day/night mode switching",
			"Verify color settings on the camera",
		},
	},
	"color_cast": {
		explanation: "One color channel dominates the image.",
		causes: []string{
			"White balance misconfigured",
			"Unusual ambient lighting",
			"Aging sensor or ISP fault",
		},
		suggestions: []string{
			"Re-run automatic white balance",
			"Check scene lighting color temperature",
		},
	},
	"color_normal": {
		explanation: "Color balance is within the expected range.",
	},
}
