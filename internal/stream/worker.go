package stream

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/framepulse/framepulse-core/internal/detectors"
	"github.com/framepulse/framepulse-core/internal/imaging"
	"github.com/framepulse/framepulse-core/internal/metrics"
	"github.com/framepulse/framepulse-core/internal/models"
	"github.com/framepulse/framepulse-core/internal/pipeline"
	"github.com/framepulse/framepulse-core/internal/video"
	"github.com/framepulse/framepulse-core/pkg/logger"
)

// Connector opens a live source. The real decoder lives behind this
// boundary; tests and embedders provide their own.
type Connector interface {
	Connect(ctx context.Context, url string, kind models.StreamKind) (video.FrameSource, error)
}

// ConnectorFunc adapts a function to the Connector interface.
type ConnectorFunc func(ctx context.Context, url string, kind models.StreamKind) (video.FrameSource, error)

func (f ConnectorFunc) Connect(ctx context.Context, url string, kind models.StreamKind) (video.FrameSource, error) {
	return f(ctx, url, kind)
}

const reconnectBackoffBase = 1.0 // seconds

// Worker ingests one live stream: it keeps a ring of sampled frames, runs
// detection rounds on a timer and retains recent results. All exported
// methods are safe for concurrent callers.
type Worker struct {
	id        string
	url       string
	kind      models.StreamKind
	cfg       models.StreamConfig
	connector Connector
	pipe      *pipeline.Pipeline
	engine    *video.Engine
	pipeOpts  pipeline.Options
	baseline  *detectors.BaselineComparator
	log       logger.Logger

	mu        sync.Mutex
	status    models.StreamStatus
	stats     models.StreamStats
	lastError string
	lastRun   time.Time
	startedAt time.Time
	frames    []*imaging.Frame // sampling ring, oldest first
	results   []models.StreamResult
	resultPos int
	resultLen int
	subs      map[int]chan models.StreamResult
	nextSub   int

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
	cancel   context.CancelFunc
}

func newWorker(id, url string, kind models.StreamKind, cfg models.StreamConfig, connector Connector, pipe *pipeline.Pipeline, engine *video.Engine, pipeOpts pipeline.Options, baseline *detectors.BaselineComparator, log logger.Logger) *Worker {
	return &Worker{
		id:        id,
		url:       url,
		kind:      kind,
		cfg:       cfg,
		connector: connector,
		pipe:      pipe,
		engine:    engine,
		pipeOpts:  pipeOpts,
		baseline:  baseline,
		log:       log,
		status:    models.StreamStarting,
		startedAt: time.Now(),
		results:   make([]models.StreamResult, cfg.ResultsSize),
		subs:      map[int]chan models.StreamResult{},
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

func (w *Worker) start(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	w.cancel = cancel
	go w.captureLoop(ctx)
	go w.detectLoop(ctx)
}

// captureLoop owns the connection: connect, read, reconnect with capped
// exponential backoff and jitter.
func (w *Worker) captureLoop(ctx context.Context) {
	defer close(w.done)
	defer metrics.ActiveStreams.Dec()
	metrics.ActiveStreams.Inc()

	backoff := reconnectBackoffBase
	consecutive := 0
	connectedBefore := false

	for {
		select {
		case <-w.stop:
			w.setStatus(models.StreamStopped)
			return
		default:
		}

		src, err := w.connector.Connect(ctx, w.url, w.kind)
		if err != nil {
			consecutive++
			w.noteConnectionError(err)
			if consecutive >= w.cfg.MaxConsecutiveErrors {
				w.log.Error("stream gave up", "stream_id", w.id, "errors", consecutive)
				w.setStatus(models.StreamError)
				return
			}
			w.setStatus(models.StreamDegraded)
			if !w.sleep(backoffWithJitter(backoff)) {
				w.setStatus(models.StreamStopped)
				return
			}
			backoff = math.Min(backoff*2, w.cfg.ReconnectBackoffCap)
			continue
		}

		if connectedBefore {
			w.mu.Lock()
			w.stats.ReconnectCount++
			w.mu.Unlock()
		}
		connectedBefore = true
		consecutive = 0
		backoff = reconnectBackoffBase
		w.setStatus(models.StreamRunning)

		stopped := w.readFrames(ctx, src)
		src.Close()
		if stopped {
			w.setStatus(models.StreamStopped)
			return
		}
		// Connection lost; fall through to reconnect.
		w.setStatus(models.StreamDegraded)
	}
}

// readFrames consumes the source until error or stop. Returns true when
// the worker was stopped.
func (w *Worker) readFrames(ctx context.Context, src video.FrameSource) bool {
	lastSample := time.Time{}
	lastFrame := time.Time{}
	for {
		select {
		case <-w.stop:
			return true
		case <-ctx.Done():
			return true
		default:
		}

		frame, err := src.Next()
		if err != nil {
			w.noteConnectionError(err)
			return false
		}
		now := time.Now()
		frame.TimestampSec = now.Sub(w.startedAt).Seconds()

		w.mu.Lock()
		w.stats.FramesReceived++
		if !lastFrame.IsZero() {
			dt := now.Sub(lastFrame).Seconds()
			if dt > 0 {
				inst := 1 / dt
				if w.stats.FPS == 0 {
					w.stats.FPS = inst
				} else {
					w.stats.FPS = 0.8*w.stats.FPS + 0.2*inst
				}
			}
		}
		if lastSample.IsZero() || now.Sub(lastSample).Seconds() >= w.cfg.SampleInterval {
			w.pushFrame(frame)
			lastSample = now
		}
		w.mu.Unlock()
		lastFrame = now
		metrics.StreamFramesReceived.WithLabelValues(w.id).Inc()
	}
}

// pushFrame appends to the sampling ring, dropping the oldest on overflow.
// Caller holds w.mu.
func (w *Worker) pushFrame(f *imaging.Frame) {
	if len(w.frames) >= w.cfg.WindowSize {
		copy(w.frames, w.frames[1:])
		w.frames[len(w.frames)-1] = f
		return
	}
	w.frames = append(w.frames, f)
}

// detectLoop runs a detection round every DetectionInterval seconds.
func (w *Worker) detectLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Duration(w.cfg.DetectionInterval * float64(time.Second)))
	defer ticker.Stop()
	for {
		select {
		case <-w.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.detectOnce(ctx)
		}
	}
}

func (w *Worker) detectOnce(ctx context.Context) {
	w.mu.Lock()
	snapshot := make([]*imaging.Frame, len(w.frames))
	copy(snapshot, w.frames)
	w.mu.Unlock()
	if len(snapshot) == 0 {
		return
	}

	result := models.StreamResult{
		StreamID:  w.id,
		FrameTime: snapshot[len(snapshot)-1].TimestampSec,
	}
	if len(snapshot) == 1 {
		verdict, err := w.pipe.Run(ctx, snapshot[0], w.pipeOpts)
		if err != nil {
			w.log.Warn("stream detection failed", "stream_id", w.id, "error", err)
			return
		}
		w.applyBaseline(verdict, snapshot[0])
		result.Image = verdict
	} else {
		fps := 1.0
		if w.cfg.SampleInterval > 0 {
			fps = 1 / w.cfg.SampleInterval
		}
		src, err := video.NewSliceSource(snapshot, fps)
		if err != nil {
			return
		}
		verdict, err := w.engine.Run(ctx, src, video.Options{
			Pipeline: w.pipeOpts,
			Strategy: video.StrategyInterval,
			Interval: w.cfg.SampleInterval,
			Workers:  2,
		})
		if err != nil {
			w.log.Warn("stream detection failed", "stream_id", w.id, "error", err)
			return
		}
		result.Video = verdict
	}
	result.CompletedAt = time.Now()

	w.mu.Lock()
	w.stats.FramesDetected += int64(len(snapshot))
	w.lastRun = result.CompletedAt
	w.appendResult(result)
	subs := make([]chan models.StreamResult, 0, len(w.subs))
	for _, ch := range w.subs {
		subs = append(subs, ch)
	}
	w.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- result:
		default: // slow subscriber, drop
		}
	}
}

func (w *Worker) applyBaseline(verdict *models.ImageVerdict, frame *imaging.Frame) {
	if w.baseline == nil {
		return
	}
	f := w.baseline.Compare(frame)
	verdict.Findings = append(verdict.Findings, f)
	if f.IsAbnormal {
		verdict.IsAbnormal = true
		verdict.Severity = models.MaxSeverity(verdict.Severity, f.Severity)
		if verdict.PrimaryIssue == "" {
			verdict.PrimaryIssue = f.IssueType
		}
	}
}

// appendResult writes into the results ring. Caller holds w.mu.
func (w *Worker) appendResult(r models.StreamResult) {
	if len(w.results) == 0 {
		return
	}
	w.results[w.resultPos] = r
	w.resultPos = (w.resultPos + 1) % len(w.results)
	if w.resultLen < len(w.results) {
		w.resultLen++
	}
}

// Results returns up to limit results, newest last, detected at or after
// since (zero time means all). Results are ordered by detection completion
// time, not by frame timestamp.
func (w *Worker) Results(limit int, since time.Time) []models.StreamResult {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := w.resultLen
	out := make([]models.StreamResult, 0, n)
	start := (w.resultPos - n + len(w.results)) % maxIntS(len(w.results), 1)
	for i := 0; i < n; i++ {
		r := w.results[(start+i)%len(w.results)]
		if !since.IsZero() && r.CompletedAt.Before(since) {
			continue
		}
		out = append(out, r)
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

// Status snapshots the descriptor.
func (w *Worker) Status() models.StreamDescriptor {
	w.mu.Lock()
	defer w.mu.Unlock()
	return models.StreamDescriptor{
		StreamID:          w.id,
		URL:               w.url,
		Kind:              w.kind,
		Status:            w.status,
		Config:            w.cfg,
		Stats:             w.stats,
		StartedAt:         w.startedAt,
		LastDetectionTime: w.lastRun,
		LastError:         w.lastError,
	}
}

// Stop requests shutdown and waits up to the grace period before forcing
// cancellation.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stop) })
	grace := time.Duration(w.cfg.GraceSeconds * float64(time.Second))
	select {
	case <-w.done:
	case <-time.After(grace):
		if w.cancel != nil {
			w.cancel()
		}
		<-w.done
	}
}

// subscribe registers a result listener; the returned cancel removes it.
func (w *Worker) subscribe() (<-chan models.StreamResult, func()) {
	ch := make(chan models.StreamResult, 8)
	w.mu.Lock()
	id := w.nextSub
	w.nextSub++
	w.subs[id] = ch
	w.mu.Unlock()
	// The channel is left open; a detection round may hold a reference past
	// unsubscribe and closing here would make that send panic.
	return ch, func() {
		w.mu.Lock()
		delete(w.subs, id)
		w.mu.Unlock()
	}
}

func (w *Worker) setStatus(s models.StreamStatus) {
	w.mu.Lock()
	w.status = s
	w.mu.Unlock()
}

func (w *Worker) noteConnectionError(err error) {
	metrics.StreamConnectionErrors.WithLabelValues(w.id).Inc()
	w.mu.Lock()
	w.stats.ConnectionErrors++
	w.lastError = err.Error()
	w.mu.Unlock()
	w.log.Warn("stream connection error", "stream_id", w.id, "error", err)
}

// sleep waits for d unless stopped; returns false when stopped.
func (w *Worker) sleep(d time.Duration) bool {
	select {
	case <-w.stop:
		return false
	case <-time.After(d):
		return true
	}
}

// backoffWithJitter applies +-25% jitter to a backoff in seconds.
func backoffWithJitter(seconds float64) time.Duration {
	jitter := 1 + (rand.Float64()*0.5 - 0.25)
	return time.Duration(seconds * jitter * float64(time.Second))
}

func maxIntS(a, b int) int {
	if a > b {
		return a
	}
	return b
}
