package video

import (
	"github.com/framepulse/framepulse-core/internal/imaging"
)

// Sample is the compact per-sampled-frame record the temporal detectors
// work on. Full frames are released after detection; samples keep only a
// decimated gray plane plus precomputed statistics.
type Sample struct {
	Index        int
	TimestampSec float64
	Width        int
	Height       int
	Gray         []uint8
	Hist         []float64
	EdgeDensity  float64
	Mean         float64
	Black        bool
}

// Decimated sample resolution; enough for similarity and motion statistics
// while keeping hundreds of samples cheap.
const sampleMaxSide = 160

// NewSample condenses a frame into its temporal-analysis record.
func NewSample(f *imaging.Frame) Sample {
	small := f.Downsample(sampleMaxSide)
	gray := small.Gray()
	mean, _ := imaging.MeanStd(gray)
	return Sample{
		Index:        f.Index,
		TimestampSec: f.TimestampSec,
		Width:        small.Width,
		Height:       small.Height,
		Gray:         gray,
		Hist:         imaging.HSVHistogram(small, 8, 4, 4),
		EdgeDensity:  imaging.EdgeDensity(gray, small.Width, small.Height, 60),
		Mean:         mean,
		Black:        mean < 5,
	}
}
