package detectors

import (
	"github.com/framepulse/framepulse-core/internal/config"
	"github.com/framepulse/framepulse-core/internal/imaging"
	"github.com/framepulse/framepulse-core/internal/models"
)

// SignalLossDetector recognizes total signal failure: black, white or solid
// color frames. It carries the highest priority and silences the detectors
// whose readings are meaningless on a dead signal.
type SignalLossDetector struct{}

func (d *SignalLossDetector) Descriptor() models.DetectorDescriptor {
	return models.DetectorDescriptor{
		Name:        "signal_loss",
		DisplayName: "Signal loss",
		IssueType:   "signal_loss",
		Levels:      []models.Level{models.LevelFast, models.LevelStandard, models.LevelDeep},
		Priority:    10,
		Suppresses:  []string{"brightness", "blur", "contrast", "noise", "occlusion"},
	}
}

func (d *SignalLossDetector) Detect(frame *imaging.Frame, cfg Config) (models.Finding, error) {
	blackThreshold := cfg.Threshold(config.KeyBlackScreenThreshold, 10)
	work := levelFrame(frame, cfg.Level)
	gray := work.Gray()
	mean, std := imaging.MeanStd(gray)

	// Uniformity approaches 1 as the frame collapses to a single value.
	uniformity := 1 - imaging.Clamp01(std/64)

	evidence := map[string]interface{}{
		"mean":       mean,
		"std":        std,
		"uniformity": uniformity,
	}
	if work.Channels == 3 {
		mb, mg, mr := imaging.ChannelMeans(work)
		evidence["mean_b"] = mb
		evidence["mean_g"] = mg
		evidence["mean_r"] = mr
	}

	f := models.Finding{
		Detector:   "signal_loss",
		IssueType:  "signal_normal",
		Score:      uniformity,
		Threshold:  blackThreshold,
		Confidence: confidence(mean, blackThreshold),
		Severity:   models.SeverityNormal,
		Evidence:   evidence,
	}

	switch {
	case mean < blackThreshold:
		f.IssueType = "black_screen"
		f.IsAbnormal = true
		f.Confidence = imaging.Clamp01((blackThreshold - mean) / blackThreshold)
		if mean < 3 {
			f.Severity = models.SeverityError
		} else {
			f.Severity = models.SeverityWarning
		}
	case mean > 250 && std < 3:
		f.IssueType = "white_screen"
		f.IsAbnormal = true
		f.Threshold = 250
		f.Confidence = imaging.Clamp01((mean - 250) / 5)
		f.Severity = models.SeverityError
	case std < 3:
		f.IssueType = "solid_color"
		f.IsAbnormal = true
		f.Threshold = 3
		f.Confidence = imaging.Clamp01((3 - std) / 3)
		f.Severity = models.SeverityError
	}
	applyAdvice(&f, signalLossAdvice)
	return f, nil
}

var signalLossAdvice = map[string]advice{
	"black_screen": {
		explanation: "The frame is black; no usable video signal.",
		causes: []string{
			"Camera power failure",
			"Broken video cable",
			"Lens cap left on",
		},
		suggestions: []string{
			"Check camera power and cabling",
			"Verify the video source is online",
		},
	},
	"white_screen": {
		explanation: "The frame is fully white.",
		causes: []string{
			"Sensor overload from direct strong light",
			"Failed auto-exposure",
		},
		suggestions: []string{
			"Shield the camera from direct light",
			"Reset exposure settings",
		},
	},
	"solid_color": {
		explanation: "The frame is a single flat color; the signal is not live video.",
		causes: []string{
			"Decoder placeholder frame",
			"Matrix/switcher routed to a test pattern",
		},
		suggestions: []string{
			"Check the decoder and switching equipment",
		},
	},
	"signal_normal": {
		explanation: "A live video signal is present.",
	},
}
