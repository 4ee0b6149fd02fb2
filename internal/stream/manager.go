package stream

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/framepulse/framepulse-core/internal/config"
	"github.com/framepulse/framepulse-core/internal/detectors"
	"github.com/framepulse/framepulse-core/internal/imaging"
	"github.com/framepulse/framepulse-core/internal/models"
	"github.com/framepulse/framepulse-core/internal/pipeline"
	"github.com/framepulse/framepulse-core/internal/video"
	"github.com/framepulse/framepulse-core/pkg/logger"
)

// Manager owns the stream workers.
type Manager struct {
	connector Connector
	pipe      *pipeline.Pipeline
	engine    *video.Engine
	profiles  *config.ProfileStore
	defaults  config.StreamConfig
	max       int
	log       logger.Logger

	mu      sync.Mutex
	workers map[string]*Worker
}

func NewManager(connector Connector, pipe *pipeline.Pipeline, engine *video.Engine, profiles *config.ProfileStore, defaults config.StreamConfig, log logger.Logger) *Manager {
	return &Manager{
		connector: connector,
		pipe:      pipe,
		engine:    engine,
		profiles:  profiles,
		defaults:  defaults,
		log:       log,
		workers:   map[string]*Worker{},
	}
}

// Start launches a worker for the source and returns its descriptor.
func (m *Manager) Start(ctx context.Context, url string, kind models.StreamKind, cfg models.StreamConfig) (models.StreamDescriptor, error) {
	const op = "stream.Manager.Start"
	if url == "" {
		return models.StreamDescriptor{}, models.E(models.KindInput, op, "url is required")
	}
	if !kind.Valid() {
		return models.StreamDescriptor{}, models.E(models.KindInput, op, "stream kind must be rtsp or rtmp")
	}
	m.applyDefaults(&cfg)
	if cfg.SampleInterval < 0.1 {
		return models.StreamDescriptor{}, models.E(models.KindConfig, op, "sample_interval must be >= 0.1s")
	}
	if cfg.DetectionInterval < 1 {
		return models.StreamDescriptor{}, models.E(models.KindConfig, op, "detection_interval must be >= 1s")
	}

	thresholds, err := m.profiles.Resolve(cfg.Profile, nil)
	if err != nil {
		return models.StreamDescriptor{}, err
	}
	level := cfg.Level
	if level == "" {
		level = models.LevelStandard
	}
	pipeOpts := pipeline.Options{
		Thresholds: thresholds,
		Level:      level,
		Allowlist:  cfg.Detectors,
		Parallel:   true,
	}

	var baseline *detectors.BaselineComparator
	if cfg.BaselinePath != "" {
		ref, err := imaging.DecodeFile(cfg.BaselinePath)
		if err != nil {
			return models.StreamDescriptor{}, err
		}
		baseline, err = detectors.NewBaselineComparator(ref)
		if err != nil {
			return models.StreamDescriptor{}, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range m.workers {
		d := w.Status()
		if d.URL == url && d.Status != models.StreamStopped && d.Status != models.StreamError {
			return models.StreamDescriptor{}, models.E(models.KindConflict, op, "stream already started for this url")
		}
	}
	if m.max > 0 && m.activeLocked() >= m.max {
		return models.StreamDescriptor{}, models.E(models.KindResourceExhausted, op, "stream worker limit reached")
	}

	id := uuid.NewString()
	w := newWorker(id, url, kind, cfg, m.connector, m.pipe, m.engine, pipeOpts, baseline, m.log)
	m.workers[id] = w
	w.start(ctx)
	m.log.Info("stream started", "stream_id", id, "url", url, "kind", kind)
	return w.Status(), nil
}

func (m *Manager) applyDefaults(cfg *models.StreamConfig) {
	if cfg.SampleInterval == 0 {
		cfg.SampleInterval = m.defaults.SampleInterval
	}
	if cfg.DetectionInterval == 0 {
		cfg.DetectionInterval = m.defaults.DetectionInterval
	}
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = m.defaults.WindowSize
	}
	if cfg.ResultsSize <= 0 {
		cfg.ResultsSize = m.defaults.ResultsSize
	}
	if cfg.MaxConsecutiveErrors <= 0 {
		cfg.MaxConsecutiveErrors = m.defaults.MaxConsecutiveErrors
	}
	if cfg.ReconnectBackoffCap <= 0 {
		cfg.ReconnectBackoffCap = m.defaults.ReconnectBackoffCap
	}
	if cfg.GraceSeconds <= 0 {
		cfg.GraceSeconds = m.defaults.GraceSeconds
	}
}

func (m *Manager) activeLocked() int {
	n := 0
	for _, w := range m.workers {
		s := w.Status().Status
		if s != models.StreamStopped && s != models.StreamError {
			n++
		}
	}
	return n
}

func (m *Manager) worker(id string) (*Worker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.workers[id]
	if !ok {
		return nil, models.E(models.KindNotFound, "stream.Manager", "unknown stream "+id)
	}
	return w, nil
}

// Stop shuts one stream down, draining for its grace period.
func (m *Manager) Stop(id string) error {
	w, err := m.worker(id)
	if err != nil {
		return err
	}
	w.Stop()
	m.log.Info("stream stopped", "stream_id", id)
	return nil
}

// Status returns one stream's descriptor.
func (m *Manager) Status(id string) (models.StreamDescriptor, error) {
	w, err := m.worker(id)
	if err != nil {
		return models.StreamDescriptor{}, err
	}
	return w.Status(), nil
}

// Results returns recent detection results for one stream.
func (m *Manager) Results(id string, limit int, since time.Time) ([]models.StreamResult, error) {
	w, err := m.worker(id)
	if err != nil {
		return nil, err
	}
	return w.Results(limit, since), nil
}

// Subscribe attaches a live result listener to one stream.
func (m *Manager) Subscribe(id string) (<-chan models.StreamResult, func(), error) {
	w, err := m.worker(id)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := w.subscribe()
	return ch, cancel, nil
}

// List returns all stream descriptors sorted by start time.
func (m *Manager) List() []models.StreamDescriptor {
	m.mu.Lock()
	workers := make([]*Worker, 0, len(m.workers))
	for _, w := range m.workers {
		workers = append(workers, w)
	}
	m.mu.Unlock()
	out := make([]models.StreamDescriptor, len(workers))
	for i, w := range workers {
		out[i] = w.Status()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}

// Shutdown stops every worker.
func (m *Manager) Shutdown() {
	for _, d := range m.List() {
		if w, err := m.worker(d.StreamID); err == nil {
			w.Stop()
		}
	}
}

// SetMaxStreams caps concurrently running workers; 0 means unlimited.
func (m *Manager) SetMaxStreams(n int) {
	m.mu.Lock()
	m.max = n
	m.mu.Unlock()
}
