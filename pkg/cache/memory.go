package cache

import (
	"context"
	"sync"
	"time"

	"github.com/framepulse/framepulse-core/internal/models"
	"github.com/framepulse/framepulse-core/pkg/logger"
)

// memoryStore is the process-local fallback used when Redis is not
// configured or not reachable. Best effort only: entries are lost on
// restart and not shared across replicas.
type memoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	log     logger.Logger
	ttl     time.Duration
}

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

func NewMemory(log logger.Logger) Store {
	log.Warn("using in-memory result cache")
	return &memoryStore{
		entries: map[string]memoryEntry{},
		log:     log,
		ttl:     time.Hour,
	}
}

func (m *memoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok || time.Now().After(e.expiresAt) {
		if ok {
			m.mu.Lock()
			delete(m.entries, key)
			m.mu.Unlock()
		}
		recordCacheOp("get", "miss")
		return nil, ErrMiss
	}
	recordCacheOp("get", "hit")
	return e.data, nil
}

func (m *memoryStore) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := encode(value)
	if err != nil {
		recordCacheOp("set", "error")
		return err
	}
	if ttl <= 0 {
		ttl = m.ttl
	}
	m.mu.Lock()
	m.entries[key] = memoryEntry{data: data, expiresAt: time.Now().Add(ttl)}
	m.mu.Unlock()
	recordCacheOp("set", "success")
	return nil
}

func (m *memoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
	recordCacheOp("delete", "success")
	return nil
}

func (m *memoryStore) GetVerdict(ctx context.Context, key string) (*models.ImageVerdict, error) {
	return getVerdict(ctx, m, key)
}

func (m *memoryStore) SetVerdict(ctx context.Context, key string, verdict *models.ImageVerdict, ttl time.Duration) error {
	return m.Set(ctx, key, verdict, ttl)
}
