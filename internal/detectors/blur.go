package detectors

import (
	"math"

	"github.com/framepulse/framepulse-core/internal/config"
	"github.com/framepulse/framepulse-core/internal/imaging"
	"github.com/framepulse/framepulse-core/internal/models"
)

// BlurDetector measures sharpness. Low gradient energy means the frame is
// out of focus or smeared; a sharp noise-free frame scores in the hundreds.
type BlurDetector struct{}

func (d *BlurDetector) Descriptor() models.DetectorDescriptor {
	return models.DetectorDescriptor{
		Name:        "blur",
		DisplayName: "Image blur",
		IssueType:   "blur",
		Levels:      []models.Level{models.LevelFast, models.LevelStandard, models.LevelDeep},
		Priority:    50,
		Suppresses:  []string{"noise"},
	}
}

func (d *BlurDetector) Detect(frame *imaging.Frame, cfg Config) (models.Finding, error) {
	threshold := cfg.Threshold(config.KeyBlurThreshold, 100)
	work := levelFrame(frame, cfg.Level)
	gray := work.Gray()
	w, h := work.Width, work.Height

	lapVar := imaging.LaplacianVariance(gray, w, h)
	evidence := map[string]interface{}{
		"laplacian_variance": lapVar,
	}

	var score float64
	switch cfg.Level {
	case models.LevelFast:
		score = lapVar
	case models.LevelDeep:
		// Multi-scale Laplacian stabilizes the measure against noise that
		// inflates single-scale variance.
		half := work.Downsample(maxInt(w, h) / 2)
		halfVar := imaging.LaplacianVariance(half.Gray(), half.Width, half.Height)
		sobel := imaging.SobelMeanMagnitude(gray, w, h)
		brenner := math.Sqrt(imaging.BrennerGradient(gray, w, h))
		edges := imaging.EdgeDensity(gray, w, h, 60)
		score = 0.4*(lapVar+halfVar)/2 + 0.2*sobel*sobel/10 + 0.2*brenner*brenner/10 + 0.2*edges*2000
		evidence["laplacian_variance_half"] = halfVar
		evidence["sobel_mean"] = sobel
		evidence["brenner"] = brenner
		evidence["edge_density"] = edges
	default:
		sobel := imaging.SobelMeanMagnitude(gray, w, h)
		score = 0.6*lapVar + 0.4*sobel*sobel
		evidence["sobel_mean"] = sobel
	}

	isAbnormal := score < threshold
	f := models.Finding{
		Detector:   "blur",
		IssueType:  "blur_normal",
		IsAbnormal: isAbnormal,
		Score:      score,
		Threshold:  threshold,
		Confidence: confidence(score, threshold),
		Severity:   models.SeverityNormal,
		Evidence:   evidence,
	}
	if isAbnormal {
		f.IssueType = "blur"
		f.Severity = severityBelow(score, threshold)
	}
	applyAdvice(&f, blurAdvice)
	return f, nil
}

var blurAdvice = map[string]advice{
	"blur": {
		explanation: "The image is blurred; fine detail is not resolvable.",
		causes: []string{
			"Lens out of focus",
			"Condensation or grease on the lens",
			"Camera moved during exposure",
			"Aggressive compression or rescaling",
		},
		suggestions: []string{
			"Refocus the camera",
			"Clean the lens surface",
			"Check the mount for vibration",
		},
	},
	"blur_normal": {
		explanation: "Sharpness is within the expected range.",
	},
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
