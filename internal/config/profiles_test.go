package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/framepulse/framepulse-core/internal/models"
	"github.com/framepulse/framepulse-core/pkg/logger"
)

func TestProfileStore_Builtins(t *testing.T) {
	s := NewProfileStore(logger.NewNop())
	names := []string{}
	for _, p := range s.List() {
		names = append(names, p.Name)
	}
	if len(names) != 3 || names[0] != "loose" || names[1] != "normal" || names[2] != "strict" {
		t.Fatalf("profiles = %v", names)
	}

	strict, err := s.Resolve("strict", nil)
	if err != nil {
		t.Fatalf("resolve strict: %v", err)
	}
	if got := strict.Get(KeyNoiseThreshold, 0); got != 10 {
		t.Fatalf("strict noise threshold = %v", got)
	}
	normal, err := s.Resolve("normal", nil)
	if err != nil {
		t.Fatalf("resolve normal: %v", err)
	}
	if got := normal.Get(KeyNoiseThreshold, 0); got != 30 {
		t.Fatalf("normal noise threshold = %v", got)
	}
	if got := normal.Get(KeyBlurThreshold, 0); got != 100 {
		t.Fatalf("normal blur threshold = %v", got)
	}
}

func TestProfileStore_EmptyNameDefaultsToNormal(t *testing.T) {
	s := NewProfileStore(logger.NewNop())
	p, err := s.Get("")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if p.Name != "normal" {
		t.Fatalf("default profile = %s", p.Name)
	}
}

func TestProfileStore_ResolveOverrides(t *testing.T) {
	s := NewProfileStore(logger.NewNop())
	th, err := s.Resolve("normal", map[string]float64{KeyBlurThreshold: 80})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got := th.Get(KeyBlurThreshold, 0); got != 80 {
		t.Fatalf("override not applied: %v", got)
	}
	// the base profile must stay untouched
	again, _ := s.Resolve("normal", nil)
	if got := again.Get(KeyBlurThreshold, 0); got != 100 {
		t.Fatalf("base profile mutated: %v", got)
	}
}

func TestProfileStore_UnknownOverrideKey(t *testing.T) {
	s := NewProfileStore(logger.NewNop())
	_, err := s.Resolve("normal", map[string]float64{"sharpness_level": 1})
	if !models.IsKind(err, models.KindConfig) {
		t.Fatalf("err = %v, want Config", err)
	}
}

func TestProfileStore_UnknownProfile(t *testing.T) {
	s := NewProfileStore(logger.NewNop())
	_, err := s.Resolve("paranoid", nil)
	if !models.IsKind(err, models.KindConfig) {
		t.Fatalf("err = %v, want Config", err)
	}
}

func TestProfileStore_LoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "profiles.yaml")
	content := `profiles:
  - name: lobby
    display_name: Lobby cameras
    thresholds:
      blur_threshold: 60
  - name: strict
    thresholds:
      noise_threshold: 8
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	s := NewProfileStore(logger.NewNop())
	if err := s.LoadFile(path); err != nil {
		t.Fatalf("load: %v", err)
	}

	lobby, err := s.Resolve("lobby", nil)
	if err != nil {
		t.Fatalf("resolve lobby: %v", err)
	}
	if got := lobby.Get(KeyBlurThreshold, 0); got != 60 {
		t.Fatalf("lobby blur threshold = %v", got)
	}
	// unnamed keys inherit defaults
	if got := lobby.Get(KeyNoiseThreshold, 0); got != 15 {
		t.Fatalf("lobby noise threshold = %v", got)
	}
	// overlays refine built-ins rather than replacing them
	strict, _ := s.Resolve("strict", nil)
	if got := strict.Get(KeyNoiseThreshold, 0); got != 8 {
		t.Fatalf("strict noise threshold = %v", got)
	}
	if got := strict.Get(KeyBlurThreshold, 0); got != 50 {
		t.Fatalf("strict blur threshold = %v", got)
	}
}
