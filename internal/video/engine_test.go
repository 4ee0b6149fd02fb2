package video

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/framepulse/framepulse-core/internal/detectors"
	"github.com/framepulse/framepulse-core/internal/imaging"
	"github.com/framepulse/framepulse-core/internal/models"
	"github.com/framepulse/framepulse-core/internal/pipeline"
	"github.com/framepulse/framepulse-core/pkg/logger"
)

func newEngine(t *testing.T) *Engine {
	t.Helper()
	registry, err := detectors.NewDefaultRegistry()
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	return NewEngine(pipeline.New(registry, logger.NewNop()), logger.NewNop())
}

// texturedFrame produces a checkerboard whose dark cells vary with phase.
// Distinct phases give clearly different frames without spatial shift, so
// the shake and scene-change detectors stay quiet while freeze can still
// recognize identical phases.
func texturedFrame(w, h, phase int) *imaging.Frame {
	dark := uint8(10 + (phase*10)%50)
	pix := make([]uint8, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if ((x/8)+(y/8))%2 == 0 {
				pix[y*w+x] = 200
			} else {
				pix[y*w+x] = dark
			}
		}
	}
	return imaging.NewGray(pix, w, h)
}

// brightnessOnly keeps the per-frame pipeline quiet so temporal behavior is
// isolated.
func brightnessOnly() pipeline.Options {
	return pipeline.Options{Level: models.LevelStandard, Allowlist: []string{"brightness"}}
}

func TestEngine_FreezeSegment(t *testing.T) {
	// 1 fps, 11 frames; frames 2..5 are identical.
	frames := make([]*imaging.Frame, 11)
	for i := range frames {
		phase := i
		if i >= 2 && i <= 5 {
			phase = 2
		}
		frames[i] = texturedFrame(64, 64, phase)
	}
	src, err := NewSliceSource(frames, 1)
	if err != nil {
		t.Fatalf("source: %v", err)
	}

	verdict, err := newEngine(t).Run(context.Background(), src, Options{
		Pipeline: brightnessOnly(),
		Interval: 1.0,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !verdict.IsAbnormal {
		t.Fatal("frozen video not abnormal")
	}
	var freeze *models.VideoIssue
	for i := range verdict.Issues {
		if verdict.Issues[i].IssueType == "freeze" {
			freeze = &verdict.Issues[i]
		}
	}
	if freeze == nil {
		t.Fatalf("no freeze issue in %+v", verdict.Issues)
	}
	if len(freeze.Segments) != 1 {
		t.Fatalf("segments = %+v", freeze.Segments)
	}
	seg := freeze.Segments[0]
	if seg.StartTime != 2.0 || seg.EndTime != 5.0 {
		t.Fatalf("segment = [%v,%v], want [2,5]", seg.StartTime, seg.EndTime)
	}
	// 3 abnormal seconds out of 11
	want := 1 - 3.0/11.0
	if math.Abs(verdict.OverallScore-want) > 1e-9 {
		t.Fatalf("overall score = %v, want %v", verdict.OverallScore, want)
	}
	if freeze.Severity != models.SeverityError {
		t.Fatalf("severity = %s", freeze.Severity)
	}
}

func TestEngine_CleanVideo(t *testing.T) {
	frames := make([]*imaging.Frame, 8)
	for i := range frames {
		frames[i] = texturedFrame(64, 64, i)
	}
	src, _ := NewSliceSource(frames, 1)
	verdict, err := newEngine(t).Run(context.Background(), src, Options{
		Pipeline: brightnessOnly(),
		Interval: 1.0,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if verdict.IsAbnormal {
		t.Fatalf("clean video flagged: %+v", verdict.Issues)
	}
	if verdict.OverallScore != 1 {
		t.Fatalf("overall score = %v", verdict.OverallScore)
	}
	if verdict.Metadata.SampledCount == 0 {
		t.Fatal("sampled count not recorded")
	}
}

func TestEngine_SegmentsMonotonic(t *testing.T) {
	frames := make([]*imaging.Frame, 20)
	for i := range frames {
		phase := i
		// two frozen runs
		if i >= 3 && i <= 6 {
			phase = 3
		}
		if i >= 12 && i <= 15 {
			phase = 112
		}
		frames[i] = texturedFrame(64, 64, phase)
	}
	src, _ := NewSliceSource(frames, 1)
	verdict, err := newEngine(t).Run(context.Background(), src, Options{
		Pipeline: brightnessOnly(),
		Interval: 1.0,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	for _, issue := range verdict.Issues {
		last := -1.0
		for _, seg := range issue.Segments {
			if seg.EndTime < seg.StartTime {
				t.Fatalf("inverted segment %+v", seg)
			}
			if seg.StartTime < last {
				t.Fatalf("segments out of order in %s: %+v", issue.IssueType, issue.Segments)
			}
			last = seg.EndTime
		}
	}
}

// failingSource delivers a few frames then dies mid-stream.
type failingSource struct {
	frames []*imaging.Frame
	pos    int
}

func (s *failingSource) Metadata() models.VideoMetadata {
	return models.VideoMetadata{Width: 64, Height: 64, FPS: 1, FrameCount: len(s.frames) + 5, Duration: float64(len(s.frames) + 5)}
}

func (s *failingSource) Next() (*imaging.Frame, error) {
	if s.pos >= len(s.frames) {
		return nil, errors.New("decoder crashed")
	}
	f := s.frames[s.pos]
	f.Index = s.pos
	f.TimestampSec = float64(s.pos)
	s.pos++
	return f, nil
}

func (s *failingSource) Close() error { return nil }

func TestEngine_MidStreamFailureIsPartial(t *testing.T) {
	src := &failingSource{frames: []*imaging.Frame{
		texturedFrame(64, 64, 0),
		texturedFrame(64, 64, 1),
		texturedFrame(64, 64, 2),
	}}
	verdict, err := newEngine(t).Run(context.Background(), src, Options{
		Pipeline: brightnessOnly(),
		Interval: 1.0,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !verdict.Partial {
		t.Fatal("mid-stream decode failure did not mark the verdict partial")
	}
	if verdict.Note == "" {
		t.Fatal("partial verdict carries no note")
	}
	if verdict.Severity.Rank() < models.SeverityWarning.Rank() {
		t.Fatalf("severity = %s", verdict.Severity)
	}
}

func TestEngine_EmptySource(t *testing.T) {
	src := &failingSource{}
	_, err := newEngine(t).Run(context.Background(), src, Options{
		Pipeline: brightnessOnly(),
		Interval: 1.0,
	})
	if err == nil {
		t.Fatal("empty source accepted")
	}
}

var _ FrameSource = (*failingSource)(nil)
