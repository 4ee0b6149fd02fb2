package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/framepulse/framepulse-core/internal/config"
	"github.com/framepulse/framepulse-core/internal/imaging"
	"github.com/framepulse/framepulse-core/internal/models"
	"github.com/framepulse/framepulse-core/internal/pipeline"
	"github.com/framepulse/framepulse-core/pkg/cache"
	"github.com/framepulse/framepulse-core/pkg/logger"
)

// DiagnoseOptions selects the effective detection configuration for one
// request. Empty fields fall back to the service defaults.
type DiagnoseOptions struct {
	Profile          string             `json:"profile,omitempty"`
	Level            models.Level       `json:"level,omitempty"`
	Detectors        []string           `json:"detectors,omitempty"`
	CustomThresholds map[string]float64 `json:"custom_thresholds,omitempty"`
}

// DiagnosisService runs the image pipeline for single frames and batches,
// fronted by the verdict cache.
type DiagnosisService struct {
	pipe     *pipeline.Pipeline
	profiles *config.ProfileStore
	cache    cache.Store
	cfg      config.DetectionConfig
	ttl      time.Duration
	log      logger.Logger
}

func NewDiagnosisService(pipe *pipeline.Pipeline, profiles *config.ProfileStore, store cache.Store, cfg config.DetectionConfig, ttl time.Duration, log logger.Logger) *DiagnosisService {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &DiagnosisService{
		pipe:     pipe,
		profiles: profiles,
		cache:    store,
		cfg:      cfg,
		ttl:      ttl,
		log:      log,
	}
}

// resolve builds pipeline options from request options plus service
// defaults, and a stable hash of the effective configuration for cache keys.
func (s *DiagnosisService) resolve(opts DiagnoseOptions) (pipeline.Options, string, error) {
	profile := opts.Profile
	if profile == "" {
		profile = s.cfg.Profile
	}
	custom := opts.CustomThresholds
	if custom == nil {
		custom = s.cfg.CustomThresholds
	}
	thresholds, err := s.profiles.Resolve(profile, custom)
	if err != nil {
		return pipeline.Options{}, "", err
	}
	level := opts.Level
	if level == "" {
		level = models.Level(s.cfg.Level)
	}
	if !level.Valid() {
		return pipeline.Options{}, "", models.E(models.KindInput, "services.Diagnose", "invalid level "+string(level))
	}
	po := pipeline.Options{
		Thresholds:      thresholds,
		Level:           level,
		Allowlist:       opts.Detectors,
		Parallel:        s.cfg.ParallelDetection,
		DetectorTimeout: time.Duration(s.cfg.DetectorTimeoutMs) * time.Millisecond,
	}
	return po, configHash(po), nil
}

// configHash digests every input that changes a verdict: thresholds, level
// and the detector allowlist.
func configHash(po pipeline.Options) string {
	h := sha256.New()
	keys := make([]string, 0, len(po.Thresholds))
	for k := range po.Thresholds {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(h, "%s=%g;", k, po.Thresholds[k])
	}
	fmt.Fprintf(h, "level=%s;", po.Level)
	names := append([]string(nil), po.Allowlist...)
	sort.Strings(names)
	for _, n := range names {
		fmt.Fprintf(h, "d=%s;", n)
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// DiagnoseImage diagnoses raw encoded image bytes. Identical bytes under an
// identical configuration hit the cache.
func (s *DiagnosisService) DiagnoseImage(ctx context.Context, data []byte, opts DiagnoseOptions) (*models.ImageVerdict, error) {
	po, cfgHash, err := s.resolve(opts)
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(data)
	key := "verdict:image:" + hex.EncodeToString(sum[:16]) + ":" + cfgHash
	if cached, err := s.cache.GetVerdict(ctx, key); err == nil {
		return cached, nil
	}

	frame, err := imaging.DecodeBytes(data)
	if err != nil {
		return nil, err
	}
	verdict, err := s.pipe.Run(ctx, frame, po)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetVerdict(ctx, key, verdict, s.ttl); err != nil {
		s.log.Debug("verdict cache write failed", "error", err)
	}
	return verdict, nil
}

// DiagnoseImageFile diagnoses one image on disk.
func (s *DiagnosisService) DiagnoseImageFile(ctx context.Context, path string, opts DiagnoseOptions) (*models.ImageVerdict, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, models.E(models.KindNotFound, "services.DiagnoseImageFile", "no such file: "+path)
		}
		return nil, models.E(models.KindInput, "services.DiagnoseImageFile", err)
	}
	verdict, err := s.DiagnoseImage(ctx, data, opts)
	if err != nil {
		return nil, err
	}
	verdict.Source = path
	return verdict, nil
}

// BatchItem is the per-file outcome of a batch run.
type BatchItem struct {
	Path    string               `json:"path"`
	Verdict *models.ImageVerdict `json:"verdict,omitempty"`
	Error   string               `json:"error,omitempty"`
}

// BatchSummary aggregates a batch run.
type BatchSummary struct {
	Total        int            `json:"total"`
	Normal       int            `json:"normal"`
	Abnormal     int            `json:"abnormal"`
	Errors       int            `json:"errors"`
	IssueCounts  map[string]int `json:"issue_counts,omitempty"`
	WorstIssue   string         `json:"worst_issue,omitempty"`
	ElapsedMs    float64        `json:"elapsed_ms"`
	AbnormalRate float64        `json:"abnormal_rate"`
}

// BatchResult is the full batch response.
type BatchResult struct {
	Items   []BatchItem  `json:"items"`
	Summary BatchSummary `json:"summary"`
}

// DiagnoseBatch diagnoses a list of image files sequentially; per-file
// failures are recorded, not fatal.
func (s *DiagnosisService) DiagnoseBatch(ctx context.Context, paths []string, opts DiagnoseOptions) (*BatchResult, error) {
	const op = "services.DiagnoseBatch"
	if len(paths) == 0 {
		return nil, models.E(models.KindInput, op, "no input files")
	}
	start := time.Now()
	result := &BatchResult{
		Items:   make([]BatchItem, 0, len(paths)),
		Summary: BatchSummary{IssueCounts: map[string]int{}},
	}
	worstRank := -1
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, models.E(models.KindTimeout, op, err)
		}
		item := BatchItem{Path: path}
		verdict, err := s.DiagnoseImageFile(ctx, path, opts)
		if err != nil {
			item.Error = err.Error()
			result.Summary.Errors++
		} else {
			item.Verdict = verdict
			if verdict.IsAbnormal {
				result.Summary.Abnormal++
				result.Summary.IssueCounts[verdict.PrimaryIssue]++
				if verdict.Severity.Rank() > worstRank {
					worstRank = verdict.Severity.Rank()
					result.Summary.WorstIssue = verdict.PrimaryIssue
				}
			} else {
				result.Summary.Normal++
			}
		}
		result.Items = append(result.Items, item)
	}
	result.Summary.Total = len(paths)
	result.Summary.ElapsedMs = float64(time.Since(start).Microseconds()) / 1000
	if n := result.Summary.Normal + result.Summary.Abnormal; n > 0 {
		result.Summary.AbnormalRate = float64(result.Summary.Abnormal) / float64(n)
	}
	return result, nil
}

// WriteReport serializes a batch result to a JSON report file.
func WriteReport(path string, v interface{}) error {
	const op = "services.WriteReport"
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return models.E(models.KindInternal, op, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return models.E(models.KindInternal, op, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return models.E(models.KindInternal, op, err)
	}
	return nil
}

// ListDetectors returns the registered image detector descriptors.
func (s *DiagnosisService) ListDetectors() []models.DetectorDescriptor {
	return s.pipe.Registry().List()
}
