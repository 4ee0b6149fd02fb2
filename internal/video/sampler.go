package video

import (
	"errors"
	"io"
	"math"

	"github.com/framepulse/framepulse-core/internal/imaging"
	"github.com/framepulse/framepulse-core/internal/metrics"
	"github.com/framepulse/framepulse-core/internal/models"
)

// Strategy selects how frames are picked for detection.
type Strategy string

const (
	StrategyInterval Strategy = "interval"
	StrategyScene    Strategy = "scene"
	StrategyHybrid   Strategy = "hybrid"
)

func (s Strategy) Valid() bool {
	return s == StrategyInterval || s == StrategyScene || s == StrategyHybrid
}

// Histogram distance above which two consecutive preview frames count as a
// cut.
const sceneCutDistance = 0.3

// Sampler reads a source sequentially and emits the selected frames. It is
// deterministic for a given source, strategy and interval.
type Sampler struct {
	Strategy  Strategy
	Interval  float64 // seconds between baseline samples
	MaxFrames int
}

// Run reads the whole source and calls emit for each selected frame, in
// order. The count of emitted frames never exceeds MaxFrames. Sources
// shorter than one interval still emit the first and last frame.
func (s *Sampler) Run(src FrameSource, emit func(*imaging.Frame) error) (int, error) {
	if !s.Strategy.Valid() {
		return 0, models.E(models.KindConfig, "video.Sampler.Run", "unknown strategy "+string(s.Strategy))
	}
	interval := s.Interval
	if interval < 0.1 {
		interval = 0.1
	}
	maxFrames := s.MaxFrames
	if maxFrames <= 0 {
		maxFrames = 300
	}

	meta := src.Metadata()
	fps := meta.FPS
	if fps <= 0 {
		fps = 25
	}
	step := int(math.Ceil(fps * interval))
	if step < 1 {
		step = 1
	}

	var (
		emitted  int
		prevHist []float64
		last     *imaging.Frame
		lastTake bool
		idx      int
	)
	for {
		frame, err := src.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return emitted, err
		}
		if frame.Index == 0 {
			frame.Index = idx
		}
		take := idx%step == 0

		if s.Strategy == StrategyScene || s.Strategy == StrategyHybrid {
			preview := frame.Downsample(160)
			hist := imaging.HSVHistogram(preview, 8, 4, 4)
			if prevHist != nil && imaging.Bhattacharyya(prevHist, hist) > sceneCutDistance {
				take = true
			}
			prevHist = hist
		}

		last, lastTake = frame, take
		idx++
		if take && emitted < maxFrames {
			if err := emit(frame); err != nil {
				return emitted, err
			}
			emitted++
			metrics.VideoFramesSampled.WithLabelValues(string(s.Strategy)).Inc()
		}
	}

	// Guarantee a minimum of first+last on short sources.
	if emitted == 1 && last != nil && !lastTake && emitted < maxFrames {
		if err := emit(last); err != nil {
			return emitted, err
		}
		emitted++
		metrics.VideoFramesSampled.WithLabelValues(string(s.Strategy)).Inc()
	}
	if emitted == 0 {
		return 0, models.E(models.KindInput, "video.Sampler.Run", "empty source")
	}
	return emitted, nil
}
