package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/framepulse/framepulse-core/internal/metrics"
	"github.com/framepulse/framepulse-core/internal/models"
	"github.com/framepulse/framepulse-core/pkg/logger"
)

// Store is the result cache used by the diagnosis services. Keys are
// content hashes combined with the effective detection configuration, so a
// repeated diagnosis of the same bytes under the same settings is a hit.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error

	GetVerdict(ctx context.Context, key string) (*models.ImageVerdict, error)
	SetVerdict(ctx context.Context, key string, verdict *models.ImageVerdict, ttl time.Duration) error
}

// ErrMiss marks a cache lookup for an absent key.
var ErrMiss = fmt.Errorf("cache miss")

func encode(value interface{}) ([]byte, error) {
	switch x := value.(type) {
	case []byte:
		return x, nil
	case string:
		return []byte(x), nil
	default:
		return json.Marshal(x)
	}
}

func getVerdict(ctx context.Context, s Store, key string) (*models.ImageVerdict, error) {
	data, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	var v models.ImageVerdict
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// New connects to Redis when an address is configured, otherwise falls back
// to the in-memory store. A dead Redis also falls back rather than failing
// startup; caching is an optimization, not a dependency.
func New(addr, password string, db int, defaultTTL time.Duration, log logger.Logger) Store {
	if addr == "" {
		return NewMemory(log)
	}
	s, err := NewRedis(addr, password, db, defaultTTL, log)
	if err != nil {
		log.Warn("redis unavailable, using in-memory cache", "addr", addr, "error", err)
		return NewMemory(log)
	}
	return s
}

func recordCacheOp(op, result string) {
	metrics.CacheRequestsTotal.WithLabelValues(op, result).Inc()
}
