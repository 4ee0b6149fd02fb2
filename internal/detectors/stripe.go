package detectors

import (
	"github.com/framepulse/framepulse-core/internal/config"
	"github.com/framepulse/framepulse-core/internal/imaging"
	"github.com/framepulse/framepulse-core/internal/models"
)

// StripeDetector finds periodic interference bars by looking for a dominant
// peak in the FFT of the row and column mean projections. The peak ratio is
// normalized so that the configured threshold (around 0.3) maps onto a
// spectral peak an order of magnitude above the spectral mean.
type StripeDetector struct{}

// A peak must exceed peakRatioScale * stripe_threshold times the spectral
// mean before stripes are declared.
const peakRatioScale = 40.0

func (d *StripeDetector) Descriptor() models.DetectorDescriptor {
	return models.DetectorDescriptor{
		Name:        "stripe",
		DisplayName: "Stripe interference",
		IssueType:   "stripe",
		Levels:      []models.Level{models.LevelFast, models.LevelStandard, models.LevelDeep},
		Priority:    65,
	}
}

func (d *StripeDetector) Detect(frame *imaging.Frame, cfg Config) (models.Finding, error) {
	threshold := cfg.Threshold(config.KeyStripeThreshold, 0.3)
	work := levelFrame(frame, cfg.Level)
	gray := work.Gray()
	rows, cols := imaging.RowColProjections(gray, work.Width, work.Height)

	// Horizontal bars modulate the row projection; vertical bars the column
	// projection.
	rowRatio, rowPeak := imaging.SpectralPeakRatio(rows)
	colRatio, colPeak := imaging.SpectralPeakRatio(cols)

	score := rowRatio / peakRatioScale
	direction := "horizontal"
	peakIndex := rowPeak
	if colRatio > rowRatio {
		score = colRatio / peakRatioScale
		direction = "vertical"
		peakIndex = colPeak
	}

	evidence := map[string]interface{}{
		"row_peak_ratio": rowRatio,
		"col_peak_ratio": colRatio,
		"direction":      direction,
		"peak_index":     peakIndex,
	}
	if cfg.Level == models.LevelDeep && peakIndex > 0 {
		// Approximate bar period in pixels from the dominant frequency.
		n := len(rows)
		if direction == "vertical" {
			n = len(cols)
		}
		evidence["period_px"] = float64(n) / float64(peakIndex)
	}

	isAbnormal := score > threshold
	f := models.Finding{
		Detector:   "stripe",
		IssueType:  "stripe_normal",
		IsAbnormal: isAbnormal,
		Score:      score,
		Threshold:  threshold,
		Confidence: confidence(score, threshold),
		Severity:   models.SeverityNormal,
		Evidence:   evidence,
	}
	if isAbnormal {
		f.IssueType = "stripe"
		f.Severity = severityAbove(score, threshold)
	}
	applyAdvice(&f, stripeAdvice)
	return f, nil
}

var stripeAdvice = map[string]advice{
	"stripe": {
		explanation: "Periodic stripe interference is visible.",
		causes: []string{
			"Power-line interference on an analog link",
			"Ground loop between camera and recorder",
			"Rolling shutter under flickering light",
		},
		suggestions: []string{
			"Separate video cabling from power lines",
			"Install a ground loop isolator",
			"Match shutter frequency to the lighting",
		},
	},
	"stripe_normal": {
		explanation: "No periodic interference detected.",
	},
}
