package services

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/framepulse/framepulse-core/internal/config"
	"github.com/framepulse/framepulse-core/internal/detectors"
	"github.com/framepulse/framepulse-core/internal/models"
	"github.com/framepulse/framepulse-core/internal/pipeline"
	"github.com/framepulse/framepulse-core/pkg/cache"
	"github.com/framepulse/framepulse-core/pkg/logger"
)

// countingStore wraps the memory cache to observe hit behavior.
type countingStore struct {
	cache.Store
	hits int
	sets int
}

func (c *countingStore) GetVerdict(ctx context.Context, key string) (*models.ImageVerdict, error) {
	v, err := c.Store.GetVerdict(ctx, key)
	if err == nil {
		c.hits++
	}
	return v, err
}

func (c *countingStore) SetVerdict(ctx context.Context, key string, verdict *models.ImageVerdict, ttl time.Duration) error {
	c.sets++
	return c.Store.SetVerdict(ctx, key, verdict, ttl)
}

func newDiagnosisService(t *testing.T, store cache.Store) *DiagnosisService {
	t.Helper()
	registry, err := detectors.NewDefaultRegistry()
	require.NoError(t, err)
	pipe := pipeline.New(registry, logger.NewNop())
	profiles := config.NewProfileStore(logger.NewNop())
	cfg := config.DetectionConfig{Profile: "normal", Level: string(models.LevelStandard)}
	return NewDiagnosisService(pipe, profiles, store, cfg, time.Minute, logger.NewNop())
}

func encodePNG(t *testing.T, value uint8) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 64, 64))
	for i := range img.Pix {
		img.Pix[i] = value
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func writePNG(t *testing.T, path string, value uint8) {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 64, 64))
	for i := range img.Pix {
		img.Pix[i] = value
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
}

func brightnessOpts() DiagnoseOptions {
	return DiagnoseOptions{Detectors: []string{"brightness"}}
}

func TestDiagnoseImage_CacheHit(t *testing.T) {
	store := &countingStore{Store: cache.NewMemory(logger.NewNop())}
	s := newDiagnosisService(t, store)
	data := encodePNG(t, 128)

	first, err := s.DiagnoseImage(context.Background(), data, brightnessOpts())
	require.NoError(t, err)
	require.False(t, first.IsAbnormal)
	require.Equal(t, 0, store.hits)
	require.Equal(t, 1, store.sets)

	second, err := s.DiagnoseImage(context.Background(), data, brightnessOpts())
	require.NoError(t, err)
	require.Equal(t, 1, store.hits, "identical bytes and config must hit the cache")
	require.Equal(t, 1, store.sets)
	require.Equal(t, first.IsAbnormal, second.IsAbnormal)

	// a different detection configuration is a different key
	_, err = s.DiagnoseImage(context.Background(), data, DiagnoseOptions{
		Detectors:        []string{"brightness"},
		CustomThresholds: map[string]float64{"brightness_max": 200},
	})
	require.NoError(t, err)
	require.Equal(t, 1, store.hits)
	require.Equal(t, 2, store.sets)
}

func TestDiagnoseImage_BadBytes(t *testing.T) {
	s := newDiagnosisService(t, cache.NewMemory(logger.NewNop()))
	_, err := s.DiagnoseImage(context.Background(), []byte("not an image"), brightnessOpts())
	require.True(t, models.IsKind(err, models.KindUnsupportedFormat), "err = %v", err)
}

func TestDiagnoseImageFile_NotFound(t *testing.T) {
	s := newDiagnosisService(t, cache.NewMemory(logger.NewNop()))
	_, err := s.DiagnoseImageFile(context.Background(), "/no/such/frame.png", brightnessOpts())
	require.True(t, models.IsKind(err, models.KindNotFound), "err = %v", err)
}

func TestDiagnoseBatch_Summary(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "a.png"), 128)
	writePNG(t, filepath.Join(dir, "b.png"), 140)
	writePNG(t, filepath.Join(dir, "bright.png"), 250)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.png"), []byte("junk"), 0o644))

	s := newDiagnosisService(t, cache.NewMemory(logger.NewNop()))
	paths, err := EnumerateImages(dir, "", false)
	require.NoError(t, err)
	require.Len(t, paths, 4)

	result, err := s.DiagnoseBatch(context.Background(), paths, brightnessOpts())
	require.NoError(t, err)
	require.Equal(t, 4, result.Summary.Total)
	require.Equal(t, 2, result.Summary.Normal)
	require.Equal(t, 1, result.Summary.Abnormal)
	require.Equal(t, 1, result.Summary.Errors)
	require.Equal(t, 1, result.Summary.IssueCounts["over_bright"])
	require.Equal(t, "over_bright", result.Summary.WorstIssue)
	require.InDelta(t, 1.0/3.0, result.Summary.AbnormalRate, 1e-9)
	require.Len(t, result.Items, 4)

	for _, item := range result.Items {
		if filepath.Base(item.Path) == "broken.png" {
			require.NotEmpty(t, item.Error)
			require.Nil(t, item.Verdict)
		} else {
			require.NotNil(t, item.Verdict)
			require.Equal(t, item.Path, item.Verdict.Source)
		}
	}
}

func TestDiagnoseBatch_Empty(t *testing.T) {
	s := newDiagnosisService(t, cache.NewMemory(logger.NewNop()))
	_, err := s.DiagnoseBatch(context.Background(), nil, brightnessOpts())
	require.True(t, models.IsKind(err, models.KindInput), "err = %v", err)
}

func TestDiagnose_UnknownProfile(t *testing.T) {
	s := newDiagnosisService(t, cache.NewMemory(logger.NewNop()))
	_, err := s.DiagnoseImage(context.Background(), encodePNG(t, 128), DiagnoseOptions{Profile: "paranoid"})
	require.True(t, models.IsKind(err, models.KindConfig), "err = %v", err)
}

func TestWriteReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, WriteReport(path, map[string]int{"total": 3}))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), `"total": 3`)
	// no stray temp file
	_, err = os.Stat(path + ".tmp")
	require.True(t, os.IsNotExist(err))
}
