package pipeline

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/framepulse/framepulse-core/internal/config"
	"github.com/framepulse/framepulse-core/internal/detectors"
	"github.com/framepulse/framepulse-core/internal/imaging"
	"github.com/framepulse/framepulse-core/internal/metrics"
	"github.com/framepulse/framepulse-core/internal/models"
	"github.com/framepulse/framepulse-core/pkg/logger"
)

// Options selects what runs for one pipeline call.
type Options struct {
	Thresholds      config.Thresholds
	Level           models.Level
	Allowlist       []string
	Parallel        bool
	DetectorTimeout time.Duration
}

// Pipeline fans a frame out to the registered detectors, applies the
// suppression graph and rolls the findings up into an ImageVerdict.
type Pipeline struct {
	registry *detectors.Registry
	log      logger.Logger
}

func New(registry *detectors.Registry, log logger.Logger) *Pipeline {
	return &Pipeline{registry: registry, log: log}
}

// Registry exposes the detector registry for listings.
func (p *Pipeline) Registry() *detectors.Registry { return p.registry }

// Run produces a verdict for one frame. It never fails outright: detector
// errors, panics and timeouts become synthetic findings.
func (p *Pipeline) Run(ctx context.Context, frame *imaging.Frame, opts Options) (*models.ImageVerdict, error) {
	start := time.Now()
	if err := frame.Validate(); err != nil {
		return nil, err
	}
	if opts.Level == "" {
		opts.Level = models.LevelStandard
	}
	if !opts.Level.Valid() {
		return nil, models.E(models.KindConfig, "pipeline.Run", "invalid level "+string(opts.Level))
	}

	active, err := p.activeSet(opts)
	if err != nil {
		return nil, err
	}

	cfg := detectors.Config{Thresholds: opts.Thresholds, Level: opts.Level}
	findings := make([]models.Finding, len(active))
	if opts.Parallel {
		var wg sync.WaitGroup
		for i, desc := range active {
			wg.Add(1)
			go func(i int, desc models.DetectorDescriptor) {
				defer wg.Done()
				findings[i] = p.runOne(ctx, desc, frame, cfg, opts.DetectorTimeout)
			}(i, desc)
		}
		wg.Wait()
	} else {
		for i, desc := range active {
			findings[i] = p.runOne(ctx, desc, frame, cfg, opts.DetectorTimeout)
		}
	}

	verdict := p.rollup(findings)
	verdict.ElapsedMs = float64(time.Since(start).Microseconds()) / 1000
	verdict.TimestampSec = frame.TimestampSec
	verdict.FrameIndex = frame.Index

	metrics.PipelineDuration.WithLabelValues(string(opts.Level)).Observe(time.Since(start).Seconds())
	return verdict, nil
}

func (p *Pipeline) activeSet(opts Options) ([]models.DetectorDescriptor, error) {
	allow := map[string]bool{}
	for _, name := range opts.Allowlist {
		if _, err := p.registry.Descriptor(name); err != nil {
			return nil, err
		}
		allow[name] = true
	}
	var active []models.DetectorDescriptor
	for _, desc := range p.registry.List() {
		if !desc.SupportsLevel(opts.Level) {
			continue
		}
		if len(allow) > 0 && !allow[desc.Name] {
			continue
		}
		active = append(active, desc)
	}
	return active, nil
}

// runOne executes a single detector with panic recovery and a soft
// deadline. A detector that overruns keeps computing in the background but
// its slot is filled with a synthetic finding.
func (p *Pipeline) runOne(ctx context.Context, desc models.DetectorDescriptor, frame *imaging.Frame, cfg detectors.Config, timeout time.Duration) models.Finding {
	done := make(chan models.Finding, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				p.log.Error("detector panicked", "detector", desc.Name, "panic", fmt.Sprint(r))
				done <- syntheticFinding(desc, fmt.Sprintf("detector failed: %v", r))
			}
		}()
		det, err := p.registry.Instantiate(desc.Name)
		if err != nil {
			done <- syntheticFinding(desc, "detector construction failed")
			return
		}
		f, err := det.Detect(frame, cfg)
		if err != nil {
			p.log.Warn("detector error", "detector", desc.Name, "error", err)
			done <- syntheticFinding(desc, "detector failed: "+string(models.KindOf(err)))
			return
		}
		done <- f
	}()

	var timer <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		timer = t.C
	}
	select {
	case f := <-done:
		metrics.DetectorRuns.WithLabelValues(desc.Name, boolLabel(f.IsAbnormal)).Inc()
		return f
	case <-timer:
		metrics.DetectorTimeouts.WithLabelValues(desc.Name).Inc()
		return syntheticFinding(desc, "timed out")
	case <-ctx.Done():
		return syntheticFinding(desc, "timed out")
	}
}

func syntheticFinding(desc models.DetectorDescriptor, explanation string) models.Finding {
	return models.Finding{
		Detector:    desc.Name,
		IssueType:   desc.IssueType + "_unavailable",
		IsAbnormal:  false,
		Severity:    models.SeverityInfo,
		Explanation: explanation,
	}
}

// rollup applies fix-point suppression and selects the primary issue.
func (p *Pipeline) rollup(findings []models.Finding) *models.ImageVerdict {
	priorities := make(map[string]int, len(findings))
	for _, desc := range p.registry.List() {
		priorities[desc.Name] = desc.Priority
	}
	sort.SliceStable(findings, func(i, j int) bool {
		pi, pj := priorities[findings[i].Detector], priorities[findings[j].Detector]
		if pi != pj {
			return pi < pj
		}
		return findings[i].Detector < findings[j].Detector
	})

	present := make(map[string]models.Finding, len(findings))
	for _, f := range findings {
		present[f.Detector] = f
	}
	suppressed := Suppress(p.registry.SuppressionGraph(), present)

	verdict := &models.ImageVerdict{
		Severity: models.SeverityNormal,
		Findings: findings,
	}
	for name := range suppressed {
		verdict.Suppressed = append(verdict.Suppressed, name)
	}
	sort.Strings(verdict.Suppressed)

	var primary *models.Finding
	for i := range findings {
		f := &findings[i]
		if !f.IsAbnormal || suppressed[f.Detector] {
			continue
		}
		verdict.IsAbnormal = true
		verdict.Severity = models.MaxSeverity(verdict.Severity, f.Severity)
		if primary == nil || betterPrimary(f, primary, priorities) {
			primary = f
		}
	}
	if primary != nil {
		verdict.PrimaryIssue = primary.IssueType
	}
	return verdict
}

// betterPrimary ranks a over b: priority asc, confidence desc, threshold
// distance desc, name asc.
func betterPrimary(a, b *models.Finding, priorities map[string]int) bool {
	pa, pb := priorities[a.Detector], priorities[b.Detector]
	if pa != pb {
		return pa < pb
	}
	if a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	da, db := thresholdDistance(a), thresholdDistance(b)
	if da != db {
		return da > db
	}
	return a.Detector < b.Detector
}

func thresholdDistance(f *models.Finding) float64 {
	if f.Threshold == 0 {
		return 0
	}
	d := f.Score/f.Threshold - 1
	if d < 0 {
		d = -d
	}
	return d
}

// Suppress computes the fix-point suppressed set: a detector is suppressed
// when some abnormal, itself unsuppressed detector declares an edge to it.
// Iteration is bounded by the finding count; the declared graph is acyclic
// so the set stabilizes well before the bound.
func Suppress(graph map[string][]string, findings map[string]models.Finding) map[string]bool {
	cur := map[string]bool{}
	for round := 0; round <= len(findings); round++ {
		next := map[string]bool{}
		for name, f := range findings {
			if !f.IsAbnormal || cur[name] {
				continue
			}
			for _, target := range graph[name] {
				if _, ok := findings[target]; ok && target != name {
					next[target] = true
				}
			}
		}
		if sameSet(cur, next) {
			return next
		}
		cur = next
	}
	return cur
}

func sameSet(a, b map[string]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
