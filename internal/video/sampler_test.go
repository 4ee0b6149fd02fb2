package video

import (
	"io"
	"testing"

	"github.com/framepulse/framepulse-core/internal/imaging"
	"github.com/framepulse/framepulse-core/internal/models"
)

func flatFrames(n int, value uint8) []*imaging.Frame {
	frames := make([]*imaging.Frame, n)
	for i := range frames {
		pix := make([]uint8, 32*24)
		for j := range pix {
			pix[j] = value
		}
		frames[i] = imaging.NewGray(pix, 32, 24)
	}
	return frames
}

func collect(t *testing.T, s *Sampler, src FrameSource) []int {
	t.Helper()
	var indices []int
	emitted, err := s.Run(src, func(f *imaging.Frame) error {
		indices = append(indices, f.Index)
		return nil
	})
	if err != nil {
		t.Fatalf("sampler: %v", err)
	}
	if emitted != len(indices) {
		t.Fatalf("emitted = %d, callbacks = %d", emitted, len(indices))
	}
	return indices
}

func TestSampler_IntervalStep(t *testing.T) {
	src, _ := NewSliceSource(flatFrames(100, 128), 25)
	got := collect(t, &Sampler{Strategy: StrategyInterval, Interval: 1.0}, src)
	// 25 fps at one-second spacing: indices 0, 25, 50, 75
	want := []int{0, 25, 50, 75}
	if len(got) != len(want) {
		t.Fatalf("indices = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("indices = %v, want %v", got, want)
		}
	}
}

func TestSampler_MaxFramesCap(t *testing.T) {
	src, _ := NewSliceSource(flatFrames(100, 128), 25)
	got := collect(t, &Sampler{Strategy: StrategyInterval, Interval: 0.1, MaxFrames: 5}, src)
	if len(got) != 5 {
		t.Fatalf("emitted %d frames past the cap", len(got))
	}
}

func TestSampler_ShortSourceEmitsFirstAndLast(t *testing.T) {
	// 3 frames at 25 fps is far under one interval; first and last still
	// come out so every source yields at least a pair to compare.
	src, _ := NewSliceSource(flatFrames(3, 128), 25)
	got := collect(t, &Sampler{Strategy: StrategyInterval, Interval: 1.0}, src)
	if len(got) != 2 || got[0] != 0 || got[1] != 2 {
		t.Fatalf("indices = %v, want [0 2]", got)
	}
}

func TestSampler_SceneCutsForceSamples(t *testing.T) {
	// alternate dark and bright frames so every transition is a cut
	frames := make([]*imaging.Frame, 10)
	for i := range frames {
		value := uint8(10)
		if i%2 == 1 {
			value = 240
		}
		frames[i] = flatFrames(1, value)[0]
	}
	src, _ := NewSliceSource(frames, 1)
	got := collect(t, &Sampler{Strategy: StrategyScene, Interval: 5.0}, src)
	if len(got) != 10 {
		t.Fatalf("emitted %d of 10 cut frames", len(got))
	}
}

func TestSampler_UnknownStrategy(t *testing.T) {
	src, _ := NewSliceSource(flatFrames(3, 128), 25)
	_, err := (&Sampler{Strategy: "random", Interval: 1}).Run(src, func(*imaging.Frame) error { return nil })
	if !models.IsKind(err, models.KindConfig) {
		t.Fatalf("err = %v, want Config", err)
	}
}

type emptySource struct{}

func (emptySource) Metadata() models.VideoMetadata { return models.VideoMetadata{FPS: 25} }
func (emptySource) Next() (*imaging.Frame, error)  { return nil, io.EOF }
func (emptySource) Close() error                   { return nil }

func TestSampler_EmptySource(t *testing.T) {
	_, err := (&Sampler{Strategy: StrategyInterval, Interval: 1}).Run(emptySource{}, func(*imaging.Frame) error { return nil })
	if !models.IsKind(err, models.KindInput) {
		t.Fatalf("err = %v, want Input", err)
	}
}
