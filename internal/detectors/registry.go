package detectors

import (
	"sort"

	"github.com/samber/lo"

	"github.com/framepulse/framepulse-core/internal/models"
)

// Factory builds a detector instance. Detectors are cheap; a new instance
// per pipeline call is acceptable.
type Factory func() (Detector, error)

type entry struct {
	descriptor models.DetectorDescriptor
	factory    Factory
}

// Builder collects detector registrations before the registry is frozen.
type Builder struct {
	entries map[string]entry
}

func NewBuilder() *Builder {
	return &Builder{entries: make(map[string]entry)}
}

// Register adds a detector. Duplicate names are a Conflict.
func (b *Builder) Register(d models.DetectorDescriptor, f Factory) error {
	if d.Name == "" {
		return models.E(models.KindConfig, "detectors.Register", "descriptor without a name")
	}
	if _, dup := b.entries[d.Name]; dup {
		return models.E(models.KindConflict, "detectors.Register", "duplicate detector "+d.Name)
	}
	b.entries[d.Name] = entry{descriptor: d, factory: f}
	return nil
}

// Build freezes the registrations into an immutable Registry.
func (b *Builder) Build() *Registry {
	entries := make(map[string]entry, len(b.entries))
	for k, v := range b.entries {
		entries[k] = v
	}
	ordered := lo.Values(entries)
	sort.Slice(ordered, func(i, j int) bool {
		di, dj := ordered[i].descriptor, ordered[j].descriptor
		if di.Priority != dj.Priority {
			return di.Priority < dj.Priority
		}
		return di.Name < dj.Name
	})
	return &Registry{
		entries: entries,
		ordered: lo.Map(ordered, func(e entry, _ int) models.DetectorDescriptor {
			return e.descriptor
		}),
	}
}

// Registry is the immutable name -> detector lookup. Populated once at
// process start; all methods are read-only and safe for concurrent use.
type Registry struct {
	entries map[string]entry
	ordered []models.DetectorDescriptor
}

// List returns descriptors ordered by priority then name.
func (r *Registry) List() []models.DetectorDescriptor {
	out := make([]models.DetectorDescriptor, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Descriptor looks up one descriptor by name.
func (r *Registry) Descriptor(name string) (models.DetectorDescriptor, error) {
	e, ok := r.entries[name]
	if !ok {
		return models.DetectorDescriptor{}, models.E(models.KindNotFound, "detectors.Descriptor", "unknown detector "+name)
	}
	return e.descriptor, nil
}

// Instantiate builds a fresh detector for the given name.
func (r *Registry) Instantiate(name string) (Detector, error) {
	e, ok := r.entries[name]
	if !ok {
		return nil, models.E(models.KindNotFound, "detectors.Instantiate", "unknown detector "+name)
	}
	d, err := e.factory()
	if err != nil {
		return nil, models.E(models.KindInternal, "detectors.Instantiate", "detector construction failed", err)
	}
	return d, nil
}

// SuppressionGraph derives the name -> suppressed-names edges from the
// registered descriptors. Edges naming unknown detectors are dropped.
func (r *Registry) SuppressionGraph() map[string][]string {
	graph := make(map[string][]string, len(r.entries))
	for name, e := range r.entries {
		targets := lo.Filter(e.descriptor.Suppresses, func(t string, _ int) bool {
			_, known := r.entries[t]
			return known
		})
		if len(targets) > 0 {
			graph[name] = targets
		}
	}
	return graph
}

// NewDefaultRegistry registers the built-in image detectors.
func NewDefaultRegistry() (*Registry, error) {
	b := NewBuilder()
	builtins := []Detector{
		&SignalLossDetector{},
		&ColorDetector{},
		&OcclusionDetector{},
		&BrightnessDetector{},
		&BlurDetector{},
		&NoiseDetector{},
		&ContrastDetector{},
		&StripeDetector{},
	}
	for _, d := range builtins {
		if err := b.Register(d.Descriptor(), factoryFor(d)); err != nil {
			return nil, err
		}
	}
	return b.Build(), nil
}

func factoryFor(prototype Detector) Factory {
	return func() (Detector, error) { return prototype, nil }
}
