package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/framepulse/framepulse-core/internal/models"
	"github.com/framepulse/framepulse-core/pkg/logger"
)

type redisStore struct {
	client *redis.Client
	log    logger.Logger
	ttl    time.Duration
}

// NewRedis builds a Store backed by a single Redis node. The connection is
// verified with a ping before the store is returned.
func NewRedis(addr, password string, db int, defaultTTL time.Duration, log logger.Logger) (Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis %s: %w", addr, err)
	}
	log.Info("redis cache connected", "addr", addr, "db", db)
	return &redisStore{client: client, log: log, ttl: defaultTTL}, nil
}

func (r *redisStore) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := r.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		recordCacheOp("get", "miss")
		return nil, ErrMiss
	}
	if err != nil {
		recordCacheOp("get", "error")
		return nil, err
	}
	recordCacheOp("get", "hit")
	return b, nil
}

func (r *redisStore) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := encode(value)
	if err != nil {
		recordCacheOp("set", "error")
		return fmt.Errorf("marshal value for key %s: %w", key, err)
	}
	if ttl <= 0 {
		ttl = r.ttl
	}
	if err := r.client.Set(ctx, key, data, ttl).Err(); err != nil {
		recordCacheOp("set", "error")
		return err
	}
	recordCacheOp("set", "success")
	return nil
}

func (r *redisStore) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		recordCacheOp("delete", "error")
		return err
	}
	recordCacheOp("delete", "success")
	return nil
}

func (r *redisStore) GetVerdict(ctx context.Context, key string) (*models.ImageVerdict, error) {
	return getVerdict(ctx, r, key)
}

func (r *redisStore) SetVerdict(ctx context.Context, key string, verdict *models.ImageVerdict, ttl time.Duration) error {
	return r.Set(ctx, key, verdict, ttl)
}
