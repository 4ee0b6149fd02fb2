package stream

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/framepulse/framepulse-core/internal/config"
	"github.com/framepulse/framepulse-core/internal/detectors"
	"github.com/framepulse/framepulse-core/internal/imaging"
	"github.com/framepulse/framepulse-core/internal/models"
	"github.com/framepulse/framepulse-core/internal/pipeline"
	"github.com/framepulse/framepulse-core/internal/video"
	"github.com/framepulse/framepulse-core/pkg/logger"
)

func defaults() config.StreamConfig {
	return config.StreamConfig{
		SampleInterval:       0.1,
		DetectionInterval:    5,
		WindowSize:           10,
		ResultsSize:          8,
		MaxConsecutiveErrors: 5,
		ReconnectBackoffCap:  2,
		GraceSeconds:         1,
	}
}

func newManager(t *testing.T, connector Connector) *Manager {
	t.Helper()
	registry, err := detectors.NewDefaultRegistry()
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	pipe := pipeline.New(registry, logger.NewNop())
	engine := video.NewEngine(pipe, logger.NewNop())
	profiles := config.NewProfileStore(logger.NewNop())
	m := NewManager(connector, pipe, engine, profiles, defaults(), logger.NewNop())
	t.Cleanup(m.Shutdown)
	return m
}

func midFrame() *imaging.Frame {
	pix := make([]uint8, 32*24)
	for i := range pix {
		pix[i] = 128
	}
	return imaging.NewGray(pix, 32, 24)
}

// burstSource serves n frames back to back, then reports the connection as
// lost.
type burstSource struct {
	n     int
	delay time.Duration
	pos   int
}

func (s *burstSource) Metadata() models.VideoMetadata {
	return models.VideoMetadata{Width: 32, Height: 24, FPS: 25}
}

func (s *burstSource) Next() (*imaging.Frame, error) {
	if s.pos >= s.n {
		return nil, errors.New("connection reset")
	}
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	f := midFrame()
	f.Index = s.pos
	s.pos++
	return f, nil
}

func (s *burstSource) Close() error { return nil }

func TestManager_StartValidation(t *testing.T) {
	m := newManager(t, UnconfiguredConnector{})
	ctx := context.Background()

	_, err := m.Start(ctx, "", models.StreamRTSP, models.StreamConfig{})
	if !models.IsKind(err, models.KindInput) {
		t.Fatalf("empty url: err = %v, want Input", err)
	}
	_, err = m.Start(ctx, "rtsp://cam/1", "http", models.StreamConfig{})
	if !models.IsKind(err, models.KindInput) {
		t.Fatalf("bad kind: err = %v, want Input", err)
	}
	_, err = m.Start(ctx, "rtsp://cam/1", models.StreamRTSP, models.StreamConfig{SampleInterval: 0.01})
	if !models.IsKind(err, models.KindConfig) {
		t.Fatalf("tiny sample interval: err = %v, want Config", err)
	}
	_, err = m.Start(ctx, "rtsp://cam/1", models.StreamRTSP, models.StreamConfig{Profile: "paranoid"})
	if !models.IsKind(err, models.KindConfig) {
		t.Fatalf("unknown profile: err = %v, want Config", err)
	}
}

func TestManager_DuplicateURL(t *testing.T) {
	m := newManager(t, UnconfiguredConnector{})
	ctx := context.Background()

	d, err := m.Start(ctx, "rtsp://cam/1", models.StreamRTSP, models.StreamConfig{})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if d.StreamID == "" {
		t.Fatal("no stream id assigned")
	}
	_, err = m.Start(ctx, "rtsp://cam/1", models.StreamRTSP, models.StreamConfig{})
	if !models.IsKind(err, models.KindConflict) {
		t.Fatalf("err = %v, want Conflict", err)
	}
	// a different url is fine
	if _, err := m.Start(ctx, "rtsp://cam/2", models.StreamRTSP, models.StreamConfig{}); err != nil {
		t.Fatalf("second url: %v", err)
	}
}

func TestManager_MaxStreams(t *testing.T) {
	m := newManager(t, UnconfiguredConnector{})
	m.SetMaxStreams(1)
	ctx := context.Background()

	if _, err := m.Start(ctx, "rtsp://cam/1", models.StreamRTSP, models.StreamConfig{}); err != nil {
		t.Fatalf("start: %v", err)
	}
	_, err := m.Start(ctx, "rtsp://cam/2", models.StreamRTSP, models.StreamConfig{})
	if !models.IsKind(err, models.KindResourceExhausted) {
		t.Fatalf("err = %v, want ResourceExhausted", err)
	}
}

func TestManager_UnknownStream(t *testing.T) {
	m := newManager(t, UnconfiguredConnector{})
	if _, err := m.Status("nope"); !models.IsKind(err, models.KindNotFound) {
		t.Fatalf("status: err = %v, want NotFound", err)
	}
	if err := m.Stop("nope"); !models.IsKind(err, models.KindNotFound) {
		t.Fatalf("stop: err = %v, want NotFound", err)
	}
	if _, err := m.Results("nope", 0, time.Time{}); !models.IsKind(err, models.KindNotFound) {
		t.Fatalf("results: err = %v, want NotFound", err)
	}
	if _, _, err := m.Subscribe("nope"); !models.IsKind(err, models.KindNotFound) {
		t.Fatalf("subscribe: err = %v, want NotFound", err)
	}
}

func TestWorker_ReconnectAfterDrop(t *testing.T) {
	attempts := 0
	connector := ConnectorFunc(func(_ context.Context, _ string, _ models.StreamKind) (video.FrameSource, error) {
		attempts++
		switch attempts {
		case 1:
			return &burstSource{n: 3}, nil
		case 2:
			return nil, models.E(models.KindSourceUnavailable, "test", "still down")
		default:
			// long-lived replacement connection
			return &burstSource{n: 1000, delay: 20 * time.Millisecond}, nil
		}
	})
	m := newManager(t, connector)
	d, err := m.Start(context.Background(), "rtsp://cam/1", models.StreamRTSP, models.StreamConfig{})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	deadline := time.Now().Add(8 * time.Second)
	for {
		s, err := m.Status(d.StreamID)
		if err != nil {
			t.Fatalf("status: %v", err)
		}
		if s.Status == models.StreamRunning && s.Stats.ReconnectCount >= 1 {
			if s.Stats.ConnectionErrors < 2 {
				t.Fatalf("connection errors = %d, want the drop and the failed attempt", s.Stats.ConnectionErrors)
			}
			if s.Stats.FramesReceived < 3 {
				t.Fatalf("frames received = %d", s.Stats.FramesReceived)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("never recovered: status=%s stats=%+v", s.Status, s.Stats)
		}
		time.Sleep(20 * time.Millisecond)
	}

	if err := m.Stop(d.StreamID); err != nil {
		t.Fatalf("stop: %v", err)
	}
	s, _ := m.Status(d.StreamID)
	if s.Status != models.StreamStopped {
		t.Fatalf("status after stop = %s", s.Status)
	}
}

func TestWorker_GivesUpAfterConsecutiveErrors(t *testing.T) {
	connector := ConnectorFunc(func(_ context.Context, url string, _ models.StreamKind) (video.FrameSource, error) {
		return nil, models.E(models.KindSourceUnavailable, "test", "no route to "+url)
	})
	m := newManager(t, connector)
	d, err := m.Start(context.Background(), "rtsp://cam/1", models.StreamRTSP, models.StreamConfig{
		MaxConsecutiveErrors: 2,
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	deadline := time.Now().Add(8 * time.Second)
	for {
		s, _ := m.Status(d.StreamID)
		if s.Status == models.StreamError {
			if s.LastError == "" {
				t.Fatal("terminal stream carries no last error")
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("stream never went terminal: status=%s", s.Status)
		}
		time.Sleep(20 * time.Millisecond)
	}

	// a dead stream does not block restarting the same url
	if _, err := m.Start(context.Background(), "rtsp://cam/1", models.StreamRTSP, models.StreamConfig{
		MaxConsecutiveErrors: 2,
	}); err != nil {
		t.Fatalf("restart after error: %v", err)
	}
}

func TestWorker_ResultsRing(t *testing.T) {
	w := newWorker("w1", "rtsp://cam/1", models.StreamRTSP, models.StreamConfig{ResultsSize: 4},
		UnconfiguredConnector{}, nil, nil, pipeline.Options{}, nil, logger.NewNop())

	base := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 6; i++ {
		w.mu.Lock()
		w.appendResult(models.StreamResult{
			StreamID:    "w1",
			FrameTime:   float64(i),
			CompletedAt: base.Add(time.Duration(i) * time.Second),
		})
		w.mu.Unlock()
	}

	all := w.Results(0, time.Time{})
	if len(all) != 4 {
		t.Fatalf("ring kept %d results, want 4", len(all))
	}
	if all[0].FrameTime != 2 || all[3].FrameTime != 5 {
		t.Fatalf("oldest results not evicted: %+v", all)
	}

	limited := w.Results(2, time.Time{})
	if len(limited) != 2 || limited[0].FrameTime != 4 {
		t.Fatalf("limit kept the wrong end: %+v", limited)
	}

	since := w.Results(0, base.Add(4*time.Second))
	if len(since) != 2 || since[0].FrameTime != 4 {
		t.Fatalf("since filter = %+v", since)
	}
}
