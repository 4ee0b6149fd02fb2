package services

import (
	"context"
	"hash/fnv"
	"io/fs"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/framepulse/framepulse-core/internal/models"
	"github.com/framepulse/framepulse-core/pkg/logger"
)

// TaskService executes scheduled tasks against the diagnosis services.
type TaskService struct {
	diag  *DiagnosisService
	video *VideoService
	log   logger.Logger
}

func NewTaskService(diag *DiagnosisService, video *VideoService, log logger.Logger) *TaskService {
	return &TaskService{diag: diag, video: video, log: log}
}

// Execute runs one task and fills in the execution counters. The scheduler
// finalizes the status from the returned error and the counts.
func (s *TaskService) Execute(ctx context.Context, task *models.Task, exec *models.Execution) error {
	const op = "services.TaskService.Execute"
	opts := DiagnoseOptions{
		Profile:          task.Config.Profile,
		Level:            task.Config.Level,
		Detectors:        task.Config.Detectors,
		CustomThresholds: task.Config.CustomThresholds,
	}
	var report interface{}
	var err error
	switch task.TaskType {
	case models.TaskBatchImage:
		report, err = s.runBatch(ctx, task, exec, opts, 1)
	case models.TaskSampleImage:
		rate := task.Config.SampleRate
		if rate <= 0 || rate > 1 {
			return models.E(models.KindConfig, op, "sample_rate must be in (0,1]")
		}
		report, err = s.runBatch(ctx, task, exec, opts, rate)
	case models.TaskVideo:
		report, err = s.runVideo(ctx, task, exec, opts)
	default:
		return models.E(models.KindConfig, op, "unknown task_type "+string(task.TaskType))
	}
	if err != nil {
		return err
	}
	if wantsJSONReport(task.Output) && report != nil {
		path := filepath.Join(task.Output.Path, exec.ExecutionID+".json")
		if err := os.MkdirAll(task.Output.Path, 0o755); err != nil {
			return models.E(models.KindInternal, op, err)
		}
		if err := WriteReport(path, report); err != nil {
			return err
		}
		exec.ReportPath = path
	}
	return nil
}

func wantsJSONReport(out models.TaskOutput) bool {
	if out.Path == "" {
		return false
	}
	for _, f := range out.Formats {
		if strings.EqualFold(f, "json") {
			return true
		}
	}
	return false
}

func (s *TaskService) runBatch(ctx context.Context, task *models.Task, exec *models.Execution, opts DiagnoseOptions, rate float64) (*BatchResult, error) {
	paths, err := EnumerateImages(task.Config.InputPath, task.Config.Pattern, task.Config.Recursive)
	if err != nil {
		return nil, err
	}
	if rate < 1 {
		paths = samplePaths(paths, rate, exec.ExecutionID)
	}
	result, err := s.diag.DiagnoseBatch(ctx, paths, opts)
	if err != nil {
		return nil, err
	}
	exec.ItemsTotal = result.Summary.Total
	exec.NormalCount = result.Summary.Normal
	exec.AbnormalCount = result.Summary.Abnormal
	exec.ErrorCount = result.Summary.Errors
	return result, nil
}

func (s *TaskService) runVideo(ctx context.Context, task *models.Task, exec *models.Execution, opts DiagnoseOptions) (*models.VideoVerdict, error) {
	verdict, err := s.video.DiagnoseVideo(ctx, task.Config.InputPath, VideoDiagnoseOptions{DiagnoseOptions: opts})
	if err != nil {
		return nil, err
	}
	exec.ItemsTotal = verdict.Metadata.SampledCount
	if verdict.IsAbnormal {
		exec.AbnormalCount = len(verdict.Issues)
	}
	exec.NormalCount = exec.ItemsTotal - exec.AbnormalCount
	if exec.NormalCount < 0 {
		exec.NormalCount = 0
	}
	return verdict, nil
}

// EnumerateImages lists image files under root matching pattern (default:
// any jpeg/png), sorted for stable execution order.
func EnumerateImages(root, pattern string, recursive bool) ([]string, error) {
	const op = "services.EnumerateImages"
	info, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, models.E(models.KindNotFound, op, "no such path: "+root)
		}
		return nil, models.E(models.KindInput, op, err)
	}
	if !info.IsDir() {
		return []string{root}, nil
	}
	var paths []string
	walk := func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if !recursive && path != root {
				return fs.SkipDir
			}
			return nil
		}
		if !isImageFile(path) {
			return nil
		}
		if pattern != "" {
			ok, err := filepath.Match(pattern, filepath.Base(path))
			if err != nil {
				return models.E(models.KindConfig, op, "bad pattern: "+pattern)
			}
			if !ok {
				return nil
			}
		}
		paths = append(paths, path)
		return nil
	}
	if err := filepath.WalkDir(root, walk); err != nil {
		if appErr, ok := err.(*models.AppError); ok {
			return nil, appErr
		}
		return nil, models.E(models.KindInternal, op, err)
	}
	sort.Strings(paths)
	return paths, nil
}

func isImageFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg", ".png":
		return true
	}
	return false
}

// samplePaths keeps ~rate of the inputs. The generator is seeded from the
// execution id so a rerun of the same execution would pick the same subset.
func samplePaths(paths []string, rate float64, seedKey string) []string {
	h := fnv.New64a()
	h.Write([]byte(seedKey))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))
	var out []string
	for _, p := range paths {
		if rng.Float64() < rate {
			out = append(out, p)
		}
	}
	// Never drop to zero on a non-empty input set.
	if len(out) == 0 && len(paths) > 0 {
		out = append(out, paths[rng.Intn(len(paths))])
	}
	return out
}
