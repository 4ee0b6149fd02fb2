package config

import (
	"os"
	"sort"
	"sync/atomic"

	"gopkg.in/yaml.v3"

	"github.com/framepulse/framepulse-core/internal/models"
	"github.com/framepulse/framepulse-core/internal/utils/fswatcher"
	"github.com/framepulse/framepulse-core/pkg/logger"
)

// Threshold keys shared between profiles and detectors.
const (
	KeyBlurThreshold        = "blur_threshold"
	KeyBrightnessMin        = "brightness_min"
	KeyBrightnessMax        = "brightness_max"
	KeyContrastMin          = "contrast_min"
	KeySaturationMin        = "saturation_min"
	KeyColorCastThreshold   = "color_cast_threshold"
	KeyNoiseThreshold       = "noise_threshold"
	KeyStripeThreshold      = "stripe_threshold"
	KeyBlackScreenThreshold = "black_screen_threshold"
	KeyOcclusionThreshold   = "occlusion_threshold"
)

// Thresholds is a named threshold vector. Values are in each detector's
// native scale.
type Thresholds map[string]float64

// Get returns the value for key, falling back to def when absent.
func (t Thresholds) Get(key string, def float64) float64 {
	if v, ok := t[key]; ok {
		return v
	}
	return def
}

// Clone returns a copy safe to mutate.
func (t Thresholds) Clone() Thresholds {
	out := make(Thresholds, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}

// Merge overlays other on top of t, returning a new map.
func (t Thresholds) Merge(other map[string]float64) Thresholds {
	out := t.Clone()
	for k, v := range other {
		out[k] = v
	}
	return out
}

// Profile is a named threshold preset.
type Profile struct {
	Name        string     `yaml:"name" json:"name"`
	DisplayName string     `yaml:"display_name" json:"display_name"`
	Description string     `yaml:"description" json:"description"`
	Thresholds  Thresholds `yaml:"thresholds" json:"thresholds"`
}

func defaultThresholds() Thresholds {
	return Thresholds{
		KeyBlurThreshold:        100,
		KeyBrightnessMin:        20,
		KeyBrightnessMax:        235,
		KeyContrastMin:          30,
		KeySaturationMin:        10,
		KeyColorCastThreshold:   30,
		KeyNoiseThreshold:       15,
		KeyStripeThreshold:      0.3,
		KeyBlackScreenThreshold: 10,
		KeyOcclusionThreshold:   0.3,
	}
}

func builtinProfiles() map[string]Profile {
	return map[string]Profile{
		"strict": {
			Name:        "strict",
			DisplayName: "Strict",
			Description: "High-fidelity scenes where small defects matter",
			Thresholds: defaultThresholds().Merge(map[string]float64{
				KeyBlurThreshold:        50,
				KeyBrightnessMin:        30,
				KeyBrightnessMax:        220,
				KeyContrastMin:          40,
				KeySaturationMin:        15,
				KeyColorCastThreshold:   20,
				KeyNoiseThreshold:       10,
				KeyStripeThreshold:      0.2,
				KeyBlackScreenThreshold: 15,
				KeyOcclusionThreshold:   0.2,
			}),
		},
		"normal": {
			Name:        "normal",
			DisplayName: "Normal",
			Description: "General purpose monitoring",
			Thresholds: defaultThresholds().Merge(map[string]float64{
				// Raised to avoid false positives on richly textured scenes.
				KeyNoiseThreshold: 30,
			}),
		},
		"loose": {
			Name:        "loose",
			DisplayName: "Loose",
			Description: "Outdoor and otherwise hostile capture conditions",
			Thresholds: defaultThresholds().Merge(map[string]float64{
				KeyBlurThreshold:        150,
				KeyBrightnessMin:        10,
				KeyBrightnessMax:        245,
				KeyContrastMin:          20,
				KeySaturationMin:        5,
				KeyColorCastThreshold:   40,
				KeyNoiseThreshold:       25,
				KeyStripeThreshold:      0.4,
				KeyBlackScreenThreshold: 5,
				KeyOcclusionThreshold:   0.4,
			}),
		},
	}
}

// ProfileStore holds the active profile set. Reads see an immutable
// snapshot; file reloads swap the snapshot atomically.
type ProfileStore struct {
	snapshot atomic.Value // map[string]Profile
	log      logger.Logger
}

// NewProfileStore starts with the built-in strict/normal/loose presets.
func NewProfileStore(log logger.Logger) *ProfileStore {
	s := &ProfileStore{log: log}
	s.snapshot.Store(builtinProfiles())
	return s
}

func (s *ProfileStore) profiles() map[string]Profile {
	return s.snapshot.Load().(map[string]Profile)
}

// Get returns the named profile.
func (s *ProfileStore) Get(name string) (Profile, error) {
	if name == "" {
		name = "normal"
	}
	p, ok := s.profiles()[name]
	if !ok {
		return Profile{}, models.E(models.KindConfig, "config.ProfileStore.Get", "unknown profile "+name)
	}
	return p, nil
}

// List returns all profiles sorted by name.
func (s *ProfileStore) List() []Profile {
	m := s.profiles()
	out := make([]Profile, 0, len(m))
	for _, p := range m {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Resolve returns the profile's thresholds with custom overrides applied.
// Unknown override keys are rejected.
func (s *ProfileStore) Resolve(name string, custom map[string]float64) (Thresholds, error) {
	p, err := s.Get(name)
	if err != nil {
		return nil, err
	}
	base := defaultThresholds()
	for k := range custom {
		if _, ok := base[k]; !ok {
			return nil, models.E(models.KindConfig, "config.ProfileStore.Resolve", "unknown threshold key "+k)
		}
	}
	return p.Thresholds.Merge(custom), nil
}

type profilesFile struct {
	Profiles []Profile `yaml:"profiles"`
}

// LoadFile overlays profiles from a YAML file on top of the built-ins and
// swaps the active snapshot.
func (s *ProfileStore) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.E(models.KindConfig, "config.ProfileStore.LoadFile", err)
	}
	var pf profilesFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return models.E(models.KindConfig, "config.ProfileStore.LoadFile", err)
	}
	next := builtinProfiles()
	for _, p := range pf.Profiles {
		if p.Name == "" {
			return models.E(models.KindConfig, "config.ProfileStore.LoadFile", "profile without a name")
		}
		base := defaultThresholds()
		if existing, ok := next[p.Name]; ok {
			base = existing.Thresholds
		}
		p.Thresholds = base.Merge(p.Thresholds)
		next[p.Name] = p
	}
	s.snapshot.Store(next)
	return nil
}

// Watch reloads the profiles file whenever it changes, until the watcher is
// closed. Returns the watcher so the caller owns its lifetime.
func (s *ProfileStore) Watch(path string) (*fswatcher.Watcher, error) {
	w, err := fswatcher.New()
	if err != nil {
		return nil, err
	}
	if err := w.Add(path); err != nil {
		w.Close()
		return nil, err
	}
	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Op&(fswatcher.Write|fswatcher.Create) == 0 {
					continue
				}
				if err := s.LoadFile(path); err != nil {
					s.log.Warn("profile reload failed", "path", path, "error", err)
					continue
				}
				s.log.Info("profiles reloaded", "path", path)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				s.log.Warn("profile watcher error", "error", err)
			}
		}
	}()
	return w, nil
}
