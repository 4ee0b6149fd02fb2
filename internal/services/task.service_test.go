package services

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/framepulse/framepulse-core/internal/models"
	"github.com/framepulse/framepulse-core/pkg/cache"
	"github.com/framepulse/framepulse-core/pkg/logger"
)

func TestEnumerateImages(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "a.jpg"), 128)
	writePNG(t, filepath.Join(dir, "b.png"), 128)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	writePNG(t, filepath.Join(dir, "sub", "d.png"), 128)

	flat, err := EnumerateImages(dir, "", false)
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join(dir, "a.jpg"), filepath.Join(dir, "b.png")}, flat)

	deep, err := EnumerateImages(dir, "", true)
	require.NoError(t, err)
	require.Len(t, deep, 3)
	require.Contains(t, deep, filepath.Join(dir, "sub", "d.png"))

	pngs, err := EnumerateImages(dir, "*.png", true)
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join(dir, "b.png"), filepath.Join(dir, "sub", "d.png")}, pngs)

	// a single file is its own enumeration
	one, err := EnumerateImages(filepath.Join(dir, "a.jpg"), "", false)
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join(dir, "a.jpg")}, one)

	_, err = EnumerateImages(filepath.Join(dir, "missing"), "", false)
	require.True(t, models.IsKind(err, models.KindNotFound), "err = %v", err)

	_, err = EnumerateImages(dir, "[", false)
	require.True(t, models.IsKind(err, models.KindConfig), "err = %v", err)
}

func TestSamplePaths(t *testing.T) {
	paths := make([]string, 100)
	for i := range paths {
		paths[i] = filepath.Join("frames", string(rune('a'+i%26)), "f.png")
	}

	a := samplePaths(paths, 0.5, "exec-1")
	b := samplePaths(paths, 0.5, "exec-1")
	require.Equal(t, a, b, "same seed must pick the same subset")
	require.NotEmpty(t, a)
	require.Less(t, len(a), len(paths))

	c := samplePaths(paths, 0.5, "exec-2")
	require.NotEqual(t, a, c, "distinct executions should sample differently")

	// a tiny rate still keeps at least one input
	few := samplePaths(paths[:3], 0.0001, "exec-3")
	require.NotEmpty(t, few)
}

func TestTaskService_ExecuteBatch(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "a.png"), 128)
	writePNG(t, filepath.Join(dir, "b.png"), 250)
	outDir := filepath.Join(t.TempDir(), "reports")

	diag := newDiagnosisService(t, cache.NewMemory(logger.NewNop()))
	svc := NewTaskService(diag, nil, logger.NewNop())

	task := &models.Task{
		TaskID:   "t1",
		Name:     "lobby sweep",
		TaskType: models.TaskBatchImage,
		Config: models.TaskConfig{
			InputPath: dir,
			Detectors: []string{"brightness"},
		},
		Output: models.TaskOutput{Path: outDir, Formats: []string{"json"}},
	}
	exec := &models.Execution{ExecutionID: "e1", TaskID: "t1"}
	require.NoError(t, svc.Execute(context.Background(), task, exec))

	require.Equal(t, 2, exec.ItemsTotal)
	require.Equal(t, 1, exec.NormalCount)
	require.Equal(t, 1, exec.AbnormalCount)
	require.Equal(t, 0, exec.ErrorCount)
	require.Equal(t, filepath.Join(outDir, "e1.json"), exec.ReportPath)

	data, err := os.ReadFile(exec.ReportPath)
	require.NoError(t, err)
	var report BatchResult
	require.NoError(t, json.Unmarshal(data, &report))
	require.Equal(t, 2, report.Summary.Total)
}

func TestTaskService_NoReportWithoutFormat(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "a.png"), 128)

	diag := newDiagnosisService(t, cache.NewMemory(logger.NewNop()))
	svc := NewTaskService(diag, nil, logger.NewNop())

	task := &models.Task{
		TaskID:   "t1",
		Name:     "sweep",
		TaskType: models.TaskBatchImage,
		Config:   models.TaskConfig{InputPath: dir, Detectors: []string{"brightness"}},
	}
	exec := &models.Execution{ExecutionID: "e1", TaskID: "t1"}
	require.NoError(t, svc.Execute(context.Background(), task, exec))
	require.Empty(t, exec.ReportPath)
}

func TestTaskService_SampleRateValidation(t *testing.T) {
	diag := newDiagnosisService(t, cache.NewMemory(logger.NewNop()))
	svc := NewTaskService(diag, nil, logger.NewNop())

	for _, rate := range []float64{0, -0.5, 1.5} {
		task := &models.Task{
			TaskID:   "t1",
			Name:     "sampled",
			TaskType: models.TaskSampleImage,
			Config:   models.TaskConfig{InputPath: "/in", SampleRate: rate},
		}
		err := svc.Execute(context.Background(), task, &models.Execution{ExecutionID: "e1"})
		require.True(t, models.IsKind(err, models.KindConfig), "rate %v: err = %v", rate, err)
	}
}
