package video

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/framepulse/framepulse-core/internal/imaging"
	"github.com/framepulse/framepulse-core/internal/models"
	"github.com/framepulse/framepulse-core/internal/pipeline"
	"github.com/framepulse/framepulse-core/pkg/logger"
)

// Options configures one video diagnosis run.
type Options struct {
	Pipeline             pipeline.Options
	Strategy             Strategy
	Interval             float64
	MaxFrames            int
	Workers              int
	MinEventDuration     float64
	MaxFrameBytes        int
	IncludeFrameVerdicts bool
}

// Engine runs the image pipeline over sampled frames and layers the
// temporal detectors on top.
type Engine struct {
	pipeline *pipeline.Pipeline
	log      logger.Logger

	freeze *FreezeDetector
	scene  *SceneChangeDetector
	shake  *ShakeDetector
}

func NewEngine(p *pipeline.Pipeline, log logger.Logger) *Engine {
	return &Engine{
		pipeline: p,
		log:      log,
		freeze:   NewFreezeDetector(),
		scene:    NewSceneChangeDetector(),
		shake:    NewShakeDetector(),
	}
}

type frameResult struct {
	sample  Sample
	verdict *models.ImageVerdict
}

// Run diagnoses one source. A decoder failure mid-stream degrades the
// verdict to partial instead of failing, as long as at least one frame was
// sampled.
func (e *Engine) Run(ctx context.Context, src FrameSource, opts Options) (*models.VideoVerdict, error) {
	start := time.Now()
	defer src.Close()

	workers := opts.Workers
	if workers <= 0 {
		workers = 4
	}
	if opts.Strategy == "" {
		opts.Strategy = StrategyInterval
	}
	minEvent := opts.MinEventDuration
	if minEvent <= 0 {
		minEvent = 0.5
	}

	meta := src.Metadata()
	buffer := NewFrameBuffer(workers, opts.MaxFrameBytes, "video")

	sampler := &Sampler{Strategy: opts.Strategy, Interval: opts.Interval, MaxFrames: opts.MaxFrames}
	var producerErr error
	var produced int
	go func() {
		defer buffer.Close()
		produced, producerErr = sampler.Run(src, func(f *imaging.Frame) error {
			return buffer.Push(ctx, f)
		})
	}()

	var (
		mu      sync.Mutex
		results []frameResult
		wg      sync.WaitGroup
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				frame, err := buffer.Pop(ctx)
				if err != nil || frame == nil {
					return
				}
				verdict, err := e.pipeline.Run(ctx, frame, opts.Pipeline)
				if err != nil {
					e.log.Warn("frame verdict failed", "frame", frame.Index, "error", err)
					continue
				}
				res := frameResult{sample: NewSample(frame), verdict: verdict}
				mu.Lock()
				results = append(results, res)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(results) == 0 {
		if producerErr != nil {
			if models.IsKind(producerErr, models.KindInput) {
				return nil, models.E(models.KindInput, "video.Engine.Run", "empty source", producerErr)
			}
			return nil, models.E(models.KindSourceUnavailable, "video.Engine.Run", producerErr)
		}
		return nil, models.E(models.KindInput, "video.Engine.Run", "empty source")
	}
	sort.Slice(results, func(i, j int) bool { return results[i].sample.Index < results[j].sample.Index })

	samples := make([]Sample, len(results))
	for i, r := range results {
		samples[i] = r.sample
	}

	meta.SampledCount = len(samples)
	if meta.Duration == 0 && meta.FPS > 0 {
		meta.Duration = float64(meta.FrameCount) / meta.FPS
	}

	issues := e.collectIssues(samples, results, meta, minEvent)

	verdict := &models.VideoVerdict{
		Metadata: meta,
		Severity: models.SeverityNormal,
		Issues:   issues,
	}
	var allSegments [][]models.Segment
	for _, issue := range issues {
		verdict.IsAbnormal = true
		verdict.Severity = models.MaxSeverity(verdict.Severity, issue.Severity)
		allSegments = append(allSegments, issue.Segments)
	}
	abnormalDuration := unionDuration(allSegments)
	switch {
	case meta.Duration > 0:
		verdict.OverallScore = imaging.Clamp01(1 - abnormalDuration/meta.Duration)
	case verdict.IsAbnormal:
		verdict.OverallScore = 0
	default:
		verdict.OverallScore = 1
	}

	if opts.IncludeFrameVerdicts {
		for _, r := range results {
			verdict.FrameVerdicts = append(verdict.FrameVerdicts, *r.verdict)
		}
	}
	if producerErr != nil {
		verdict.Partial = true
		verdict.Note = "decoder error mid-stream: " + producerErr.Error()
		verdict.Severity = models.MaxSeverity(verdict.Severity, models.SeverityWarning)
	}
	e.log.Debug("video diagnosis complete", "sampled", produced, "issues", len(verdict.Issues))
	verdict.ElapsedMs = float64(time.Since(start).Microseconds()) / 1000
	return verdict, nil
}

// collectIssues merges per-frame image findings into segments and appends
// the temporal detectors' issues.
func (e *Engine) collectIssues(samples []Sample, results []frameResult, meta models.VideoMetadata, minEvent float64) []models.VideoIssue {
	var issues []models.VideoIssue

	// Image findings: same issue abnormal on adjacent samples becomes one
	// segment.
	type issueAgg struct {
		flags    []bool
		severity models.Severity
		example  models.Finding
	}
	agg := map[string]*issueAgg{}
	for i, r := range results {
		for _, f := range r.verdict.AbnormalFindings() {
			a, ok := agg[f.IssueType]
			if !ok {
				a = &issueAgg{flags: make([]bool, len(results)), severity: models.SeverityNormal, example: f}
				agg[f.IssueType] = a
			}
			a.flags[i] = true
			a.severity = models.MaxSeverity(a.severity, f.Severity)
		}
	}
	names := make([]string, 0, len(agg))
	for name := range agg {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		a := agg[name]
		segments := mergeFlags(samples, a.flags, minEvent)
		if len(segments) == 0 {
			continue
		}
		issues = append(issues, models.VideoIssue{
			IssueType:        name,
			Severity:         a.severity,
			Segments:         segments,
			AbnormalDuration: totalDuration(segments),
			Explanation:      a.example.Explanation,
			Suggestions:      a.example.Suggestions,
		})
	}

	if issue := e.freeze.Detect(samples); issue != nil {
		issues = append(issues, *issue)
	}
	if issue := e.scene.Detect(samples, meta.Duration); issue != nil {
		issues = append(issues, *issue)
	}
	if issue := e.shake.Detect(samples); issue != nil {
		issues = append(issues, *issue)
	}

	sort.SliceStable(issues, func(i, j int) bool {
		si, sj := firstStart(issues[i]), firstStart(issues[j])
		if si != sj {
			return si < sj
		}
		return issues[i].IssueType < issues[j].IssueType
	})
	return issues
}

func firstStart(issue models.VideoIssue) float64 {
	if len(issue.Segments) == 0 {
		return 0
	}
	return issue.Segments[0].StartTime
}

// Descriptors describes the temporal detectors for API listings.
func (e *Engine) Descriptors() []models.DetectorDescriptor {
	return []models.DetectorDescriptor{
		{Name: "freeze", DisplayName: "Picture freeze", IssueType: "freeze", Priority: 10},
		{Name: "scene_change", DisplayName: "Excessive scene changes", IssueType: "scene_change", Priority: 20},
		{Name: "shake", DisplayName: "Camera shake", IssueType: "shake", Priority: 30},
	}
}
