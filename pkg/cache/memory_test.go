package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/framepulse/framepulse-core/internal/models"
	"github.com/framepulse/framepulse-core/pkg/logger"
)

func TestMemoryStore_SetGetDelete(t *testing.T) {
	s := NewMemory(logger.NewNop())
	ctx := context.Background()

	if _, err := s.Get(ctx, "absent"); !errors.Is(err, ErrMiss) {
		t.Fatalf("err = %v, want ErrMiss", err)
	}

	if err := s.Set(ctx, "k", []byte("value"), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := s.Get(ctx, "k")
	if err != nil || string(got) != "value" {
		t.Fatalf("get = %q, %v", got, err)
	}

	// strings and structs are encoded transparently
	if err := s.Set(ctx, "s", "text", time.Minute); err != nil {
		t.Fatalf("set string: %v", err)
	}
	got, _ = s.Get(ctx, "s")
	if string(got) != "text" {
		t.Fatalf("string round trip = %q", got)
	}

	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Get(ctx, "k"); !errors.Is(err, ErrMiss) {
		t.Fatalf("deleted key still present: %v", err)
	}
}

func TestMemoryStore_TTLExpiry(t *testing.T) {
	s := NewMemory(logger.NewNop())
	ctx := context.Background()

	if err := s.Set(ctx, "k", []byte("v"), 30*time.Millisecond); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, err := s.Get(ctx, "k"); err != nil {
		t.Fatalf("fresh entry missed: %v", err)
	}
	time.Sleep(60 * time.Millisecond)
	if _, err := s.Get(ctx, "k"); !errors.Is(err, ErrMiss) {
		t.Fatalf("expired entry served: %v", err)
	}
}

func TestMemoryStore_VerdictRoundTrip(t *testing.T) {
	s := NewMemory(logger.NewNop())
	ctx := context.Background()

	verdict := &models.ImageVerdict{
		IsAbnormal:   true,
		PrimaryIssue: "blur",
		Severity:     models.SeverityWarning,
		Findings: []models.Finding{
			{Detector: "blur", IssueType: "blur", IsAbnormal: true, Score: 42.5},
		},
	}
	if err := s.SetVerdict(ctx, "verdict:image:abc", verdict, time.Minute); err != nil {
		t.Fatalf("set verdict: %v", err)
	}
	got, err := s.GetVerdict(ctx, "verdict:image:abc")
	if err != nil {
		t.Fatalf("get verdict: %v", err)
	}
	if !got.IsAbnormal || got.PrimaryIssue != "blur" || len(got.Findings) != 1 {
		t.Fatalf("verdict round trip = %+v", got)
	}
	if got.Findings[0].Score != 42.5 {
		t.Fatalf("finding score = %v", got.Findings[0].Score)
	}

	if _, err := s.GetVerdict(ctx, "verdict:image:missing"); !errors.Is(err, ErrMiss) {
		t.Fatalf("err = %v, want ErrMiss", err)
	}
}

func TestNew_FallsBackWithoutRedis(t *testing.T) {
	// no address configured: the memory store must come back, not an error
	s := New("", "", 0, time.Minute, logger.NewNop())
	if _, ok := s.(*memoryStore); !ok {
		t.Fatalf("store = %T, want memory fallback", s)
	}
	// an unreachable address also degrades to memory
	s = New("127.0.0.1:1", "", 0, time.Minute, logger.NewNop())
	if _, ok := s.(*memoryStore); !ok {
		t.Fatalf("store = %T, want memory fallback for dead redis", s)
	}
}
