package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/framepulse/framepulse-core/internal/config"
	"github.com/framepulse/framepulse-core/internal/models"
	"github.com/framepulse/framepulse-core/internal/video"
	"github.com/framepulse/framepulse-core/pkg/cache"
	"github.com/framepulse/framepulse-core/pkg/logger"
)

func newVideoService(t *testing.T) *VideoService {
	t.Helper()
	diag := newDiagnosisService(t, cache.NewMemory(logger.NewNop()))
	cfg := config.VideoConfig{
		SampleStrategy: string(video.StrategyInterval),
		SampleInterval: 1.0,
		MaxFrames:      100,
		Workers:        2,
	}
	return NewVideoService(video.NewEngine(diag.pipe, logger.NewNop()), diag, cfg, logger.NewNop())
}

func TestDiagnoseVideo_FrameSequenceDir(t *testing.T) {
	dir := t.TempDir()
	for i, v := range []uint8{100, 105, 110, 115} {
		writePNG(t, filepath.Join(dir, "frame_"+string(rune('0'+i))+".png"), v)
	}

	s := newVideoService(t)
	verdict, err := s.DiagnoseVideo(context.Background(), dir, VideoDiagnoseOptions{
		DiagnoseOptions: brightnessOpts(),
		FPS:             1,
	})
	require.NoError(t, err)
	require.Equal(t, dir, verdict.Source)
	require.Equal(t, 4, verdict.Metadata.FrameCount)
	require.False(t, verdict.IsAbnormal)
}

func TestDiagnoseVideo_MissingPath(t *testing.T) {
	s := newVideoService(t)
	_, err := s.DiagnoseVideo(context.Background(), "/no/such/dir", VideoDiagnoseOptions{})
	require.True(t, models.IsKind(err, models.KindNotFound), "err = %v", err)
}

func TestDiagnoseVideo_ContainerFileRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.mp4")
	require.NoError(t, os.WriteFile(path, []byte("not really video"), 0o644))

	s := newVideoService(t)
	_, err := s.DiagnoseVideo(context.Background(), path, VideoDiagnoseOptions{})
	require.True(t, models.IsKind(err, models.KindUnsupportedFormat), "err = %v", err)
}

func TestBuildOptions_UnknownProfile(t *testing.T) {
	s := newVideoService(t)
	_, err := s.BuildOptions(VideoDiagnoseOptions{DiagnoseOptions: DiagnoseOptions{Profile: "paranoid"}})
	require.True(t, models.IsKind(err, models.KindConfig), "err = %v", err)
}
