package services

import (
	"context"
	"os"
	"time"

	"github.com/framepulse/framepulse-core/internal/config"
	"github.com/framepulse/framepulse-core/internal/models"
	"github.com/framepulse/framepulse-core/internal/video"
	"github.com/framepulse/framepulse-core/pkg/logger"
)

// VideoDiagnoseOptions selects the video pipeline configuration for one run.
type VideoDiagnoseOptions struct {
	DiagnoseOptions
	SampleStrategy       string  `json:"sample_strategy,omitempty"`
	SampleInterval       float64 `json:"sample_interval,omitempty"`
	MaxFrames            int     `json:"max_frames,omitempty"`
	FPS                  float64 `json:"fps,omitempty"`
	IncludeFrameVerdicts bool    `json:"include_frame_verdicts,omitempty"`
}

// VideoService runs the sampling engine over frame sources.
type VideoService struct {
	engine *video.Engine
	diag   *DiagnosisService
	cfg    config.VideoConfig
	log    logger.Logger
}

func NewVideoService(engine *video.Engine, diag *DiagnosisService, cfg config.VideoConfig, log logger.Logger) *VideoService {
	return &VideoService{engine: engine, diag: diag, cfg: cfg, log: log}
}

func (s *VideoService) buildOptions(opts VideoDiagnoseOptions) (video.Options, error) {
	po, _, err := s.diag.resolve(opts.DiagnoseOptions)
	if err != nil {
		return video.Options{}, err
	}
	strategy := video.Strategy(opts.SampleStrategy)
	if opts.SampleStrategy == "" {
		strategy = video.Strategy(s.cfg.SampleStrategy)
	}
	interval := opts.SampleInterval
	if interval <= 0 {
		interval = s.cfg.SampleInterval
	}
	maxFrames := opts.MaxFrames
	if maxFrames <= 0 {
		maxFrames = s.cfg.MaxFrames
	}
	return video.Options{
		Pipeline:             po,
		Strategy:             strategy,
		Interval:             interval,
		MaxFrames:            maxFrames,
		Workers:              s.cfg.Workers,
		MinEventDuration:     s.cfg.MinEventDuration,
		MaxFrameBytes:        s.cfg.MaxFrameBytes,
		IncludeFrameVerdicts: opts.IncludeFrameVerdicts,
	}, nil
}

// DiagnoseSource runs the engine over an already-open frame source.
func (s *VideoService) DiagnoseSource(ctx context.Context, src video.FrameSource, opts VideoDiagnoseOptions) (*models.VideoVerdict, error) {
	vo, err := s.buildOptions(opts)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	verdict, err := s.engine.Run(ctx, src, vo)
	if err != nil {
		return nil, err
	}
	s.log.Info("video diagnosed",
		"duration_sec", verdict.Metadata.Duration,
		"sampled", verdict.Metadata.SampledCount,
		"abnormal", verdict.IsAbnormal,
		"elapsed_ms", float64(time.Since(start).Microseconds())/1000,
	)
	return verdict, nil
}

// DiagnoseVideo diagnoses a video-shaped input on disk. Directories are
// treated as image sequences; container formats need a decoder integration
// and are rejected as unsupported.
func (s *VideoService) DiagnoseVideo(ctx context.Context, path string, opts VideoDiagnoseOptions) (*models.VideoVerdict, error) {
	const op = "services.DiagnoseVideo"
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, models.E(models.KindNotFound, op, "no such path: "+path)
		}
		return nil, models.E(models.KindInput, op, err)
	}
	if !info.IsDir() {
		return nil, models.E(models.KindUnsupportedFormat, op, "container decoding is not built in; provide a frame-sequence directory")
	}
	src, err := video.NewDirSource(path, opts.FPS)
	if err != nil {
		return nil, err
	}
	verdict, err := s.DiagnoseSource(ctx, src, opts)
	if err != nil {
		return nil, err
	}
	verdict.Source = path
	return verdict, nil
}

// ListVideoDetectors returns the temporal detector descriptors.
func (s *VideoService) ListVideoDetectors() []models.DetectorDescriptor {
	return s.engine.Descriptors()
}

// BuildOptions exposes option resolution for callers that drive the engine
// directly, such as scheduled tasks.
func (s *VideoService) BuildOptions(opts VideoDiagnoseOptions) (video.Options, error) {
	return s.buildOptions(opts)
}
