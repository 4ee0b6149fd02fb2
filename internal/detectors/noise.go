package detectors

import (
	"github.com/framepulse/framepulse-core/internal/config"
	"github.com/framepulse/framepulse-core/internal/imaging"
	"github.com/framepulse/framepulse-core/internal/models"
)

// NoiseDetector estimates the noise level (gaussian, salt-pepper, snow).
// The raw Laplacian-MAD estimate is damped on textured or high-contrast
// frames, which otherwise read as noise.
type NoiseDetector struct{}

func (d *NoiseDetector) Descriptor() models.DetectorDescriptor {
	return models.DetectorDescriptor{
		Name:        "noise",
		DisplayName: "Image noise",
		IssueType:   "noise",
		Levels:      []models.Level{models.LevelFast, models.LevelStandard, models.LevelDeep},
		Priority:    55,
	}
}

func (d *NoiseDetector) Detect(frame *imaging.Frame, cfg Config) (models.Finding, error) {
	threshold := cfg.Threshold(config.KeyNoiseThreshold, 15)
	work := levelFrame(frame, cfg.Level)
	gray := work.Gray()
	w, h := work.Width, work.Height

	sigma, evidence := adjustedLaplacianSigma(gray, w, h)

	var score float64
	switch cfg.Level {
	case models.LevelFast:
		score = sigma
	default:
		residual := imaging.MedianResidual(gray, w, h)
		// mean absolute residual -> std for gaussian noise
		residualSigma := residual * 1.2533
		score = 0.6*residualSigma + 0.4*sigma
		evidence["median_residual"] = residual
		evidence["residual_sigma"] = residualSigma
	}

	if cfg.Level == models.LevelDeep {
		spRatio := saltPepperRatio(gray)
		evidence["salt_pepper_ratio"] = spRatio
		if work.Channels == 3 {
			evidence["snow_ratio"] = imaging.BrightLowSatRatio(work, 240, 30)
		}
		rows, cols := imaging.RowColProjections(gray, w, h)
		evidence["highfreq_ratio"] = (highFreqRatio(rows) + highFreqRatio(cols)) / 2
	}

	isAbnormal := score > threshold
	f := models.Finding{
		Detector:   "noise",
		IssueType:  "noise_normal",
		IsAbnormal: isAbnormal,
		Score:      score,
		Threshold:  threshold,
		Confidence: confidence(score, threshold),
		Severity:   models.SeverityNormal,
		Evidence:   evidence,
	}
	if isAbnormal {
		f.IssueType = noiseType(evidence)
		f.Severity = severityAbove(score, threshold)
	}
	applyAdvice(&f, noiseAdvice)
	return f, nil
}

// adjustedLaplacianSigma estimates noise from the Laplacian MAD and damps
// the estimate by texture complexity and global contrast.
func adjustedLaplacianSigma(gray []uint8, w, h int) (float64, map[string]interface{}) {
	raw := imaging.LaplacianSigmaMAD(gray, w, h)

	texture := medianLocalVariance(gray, w, h)
	textureFactor := 1.0
	if texture > 50 {
		textureFactor = 50 / texture
	}
	adjusted := raw * textureFactor

	_, std := imaging.MeanStd(gray)
	if std > 40 {
		contrastFactor := 40 / std
		adjusted = adjusted * (0.7 + 0.3*contrastFactor)
	}

	return adjusted, map[string]interface{}{
		"noise_sigma":        raw,
		"adjusted_sigma":     adjusted,
		"texture_complexity": texture,
		"image_contrast":     std,
	}
}

// medianLocalVariance samples 5x5 tile variances over a coarse grid and
// returns their median.
func medianLocalVariance(gray []uint8, w, h int) float64 {
	const tile = 5
	if w < tile || h < tile {
		return 0
	}
	it := imaging.NewIntegral(gray, w, h)
	var vars []float64
	stepY := maxInt(1, (h-tile)/32)
	stepX := maxInt(1, (w-tile)/32)
	for y := 0; y+tile <= h; y += stepY {
		for x := 0; x+tile <= w; x += stepX {
			_, std := it.RegionMeanStd(x, y, x+tile, y+tile)
			vars = append(vars, std*std)
		}
	}
	if len(vars) == 0 {
		return 0
	}
	// median by partial sort
	mid := len(vars) / 2
	for i := 0; i <= mid; i++ {
		min := i
		for j := i + 1; j < len(vars); j++ {
			if vars[j] < vars[min] {
				min = j
			}
		}
		vars[i], vars[min] = vars[min], vars[i]
	}
	return vars[mid]
}

func saltPepperRatio(gray []uint8) float64 {
	if len(gray) == 0 {
		return 0
	}
	extreme := 0
	for _, v := range gray {
		if v < 5 || v > 250 {
			extreme++
		}
	}
	return float64(extreme) / float64(len(gray))
}

func highFreqRatio(signal []float64) float64 {
	mags := imaging.FFTMagnitudes(signal)
	if len(mags) == 0 {
		return 0
	}
	var total, high float64
	cut := len(mags) / 2
	for i, m := range mags {
		total += m
		if i >= cut {
			high += m
		}
	}
	if total == 0 {
		return 0
	}
	return high / total
}

func noiseType(evidence map[string]interface{}) string {
	if r, ok := evidence["salt_pepper_ratio"].(float64); ok && r > 0.01 {
		return "salt_pepper_noise"
	}
	if r, ok := evidence["snow_ratio"].(float64); ok && r > 0.05 {
		return "snow_noise"
	}
	return "gaussian_noise"
}

var noiseAdvice = map[string]advice{
	"gaussian_noise": {
		explanation: "The image shows a high level of random noise.",
		causes: []string{
			"High sensor gain in low light",
			"Sensor aging or overheating",
			"Electrical interference on the signal path",
		},
		suggestions: []string{
			"Improve scene lighting to reduce gain",
			"Enable temporal noise reduction",
			"Inspect cabling and grounding",
		},
	},
	"salt_pepper_noise": {
		explanation: "Impulsive salt-and-pepper noise is present.",
		causes: []string{
			"Transmission bit errors",
			"Failing analog-to-digital conversion",
		},
		suggestions: []string{
			"Check the transport link quality",
			"Apply a median filter at the source",
		},
	},
	"snow_noise": {
		explanation: "Analog snow covers the frame.",
		causes: []string{
			"Weak or lost analog signal",
			"Damaged coax cable or connector",
		},
		suggestions: []string{
			"Inspect the analog signal chain",
			"Replace suspect cabling",
		},
	},
	"noise_normal": {
		explanation: "Noise level is within the expected range.",
	},
}
