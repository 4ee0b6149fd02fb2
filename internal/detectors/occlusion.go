package detectors

import (
	"github.com/framepulse/framepulse-core/internal/config"
	"github.com/framepulse/framepulse-core/internal/imaging"
	"github.com/framepulse/framepulse-core/internal/models"
)

// OcclusionDetector finds lens blockage: large low-texture regions with few
// edges and uniform blocks. Not meaningful at the fast level, where the
// downsampled tiles are too small to separate blockage from plain walls.
type OcclusionDetector struct{}

func (d *OcclusionDetector) Descriptor() models.DetectorDescriptor {
	return models.DetectorDescriptor{
		Name:        "occlusion",
		DisplayName: "Lens occlusion",
		IssueType:   "occlusion",
		Levels:      []models.Level{models.LevelStandard, models.LevelDeep},
		Priority:    25,
		Suppresses:  []string{"blur"},
	}
}

func (d *OcclusionDetector) Detect(frame *imaging.Frame, cfg Config) (models.Finding, error) {
	threshold := cfg.Threshold(config.KeyOcclusionThreshold, 0.3)
	gray := frame.Gray()
	w, h := frame.Width, frame.Height

	// Tile size scales with the frame; deep level partitions finer.
	tile := maxInt(16, minInt(w, h)/16)
	if cfg.Level == models.LevelDeep {
		tile = maxInt(8, minInt(w, h)/32)
	}

	it := imaging.NewIntegral(gray, w, h)
	lowTexture := tileRatioBelow(it, w, h, tile, 5)
	uniform := tileRatioBelow(it, w, h, 8, 3)
	edges := imaging.EdgeDensity(gray, w, h, 60)

	edgeTerm := 1 - edges*10
	if edgeTerm < 0 {
		edgeTerm = 0
	}
	score := imaging.Clamp01(0.4*lowTexture + 0.3*edgeTerm + 0.3*uniform)

	evidence := map[string]interface{}{
		"low_texture_ratio": lowTexture,
		"uniform_ratio":     uniform,
		"edge_density":      edges,
		"tile_size":         tile,
	}

	isAbnormal := score > threshold
	f := models.Finding{
		Detector:   "occlusion",
		IssueType:  "occlusion_normal",
		IsAbnormal: isAbnormal,
		Score:      score,
		Threshold:  threshold,
		Confidence: confidence(score, threshold),
		Severity:   models.SeverityNormal,
		Evidence:   evidence,
	}
	if isAbnormal {
		f.IssueType = "occlusion"
		f.Severity = severityAbove(score, threshold)
	}
	applyAdvice(&f, occlusionAdvice)
	return f, nil
}

// tileRatioBelow returns the fraction of tiles whose std falls below
// stdThreshold.
func tileRatioBelow(it *imaging.Integral, w, h, tile int, stdThreshold float64) float64 {
	if tile <= 0 || w < tile || h < tile {
		return 0
	}
	var low, total int
	for y := 0; y+tile <= h; y += tile {
		for x := 0; x+tile <= w; x += tile {
			_, std := it.RegionMeanStd(x, y, x+tile, y+tile)
			if std < stdThreshold {
				low++
			}
			total++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(low) / float64(total)
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

var occlusionAdvice = map[string]advice{
	"occlusion": {
		explanation: "A large part of the view appears blocked.",
		causes: []string{
			"Object or foliage covering the lens",
			"Spray paint or tape on the housing",
			"Camera turned against a wall",
		},
		suggestions: []string{
			"Inspect the camera physically",
			"Clear obstructions from the field of view",
		},
	},
	"occlusion_normal": {
		explanation: "No significant blockage detected.",
	},
}
