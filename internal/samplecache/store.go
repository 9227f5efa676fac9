package samplecache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"

	"github.com/geosense/landtraj/internal/observability"
)

// Store is the memoization surface the raster sampler talks to. Get and
// Put must be safe for concurrent use; duplicate concurrent misses for the
// same key may both compute and overwrite harmlessly since the sampled
// value is pure in the key.
type Store interface {
	Get(ctx context.Context, key string) (int32, bool)
	Put(ctx context.Context, key string, value int32)
}

// LRU is the in-process tier, sized at construction and kept for the
// process lifetime.
type LRU struct {
	c *lru.Cache[string, int32]
}

func NewLRU(size int) (*LRU, error) {
	if size <= 0 {
		size = 4096
	}
	c, err := lru.New[string, int32](size)
	if err != nil {
		return nil, fmt.Errorf("sample cache: %w", err)
	}
	return &LRU{c: c}, nil
}

func (l *LRU) Get(_ context.Context, key string) (int32, bool) {
	v, ok := l.c.Get(key)
	if ok {
		observability.IncSampleCacheHit()
	} else {
		observability.IncSampleCacheMiss()
	}
	return v, ok
}

func (l *LRU) Put(_ context.Context, key string, value int32) {
	l.c.Add(key, value)
}

// Tiered backs the in-process LRU with a shared Redis tier so parallel
// service instances reuse each other's samples. Redis failures degrade to
// misses; a cache outage must never fail a trajectory query.
type Tiered struct {
	logger  *slog.Logger
	local   *LRU
	rdb     *redis.Client
	timeout time.Duration
}

func NewTiered(ctx context.Context, logger *slog.Logger, local *LRU, addr string) (*Tiered, error) {
	if addr == "" {
		return nil, errors.New("redis address is required")
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		PoolSize:     64,
		MinIdleConns: 4,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Tiered{logger: logger, local: local, rdb: rdb, timeout: time.Second}, nil
}

func (t *Tiered) Get(ctx context.Context, key string) (int32, bool) {
	if v, ok := t.local.Get(ctx, key); ok {
		return v, true
	}

	opCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	raw, err := t.rdb.Get(opCtx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			t.logger.LogAttrs(ctx, slog.LevelWarn, "sample cache redis get failed",
				slog.String("key", key), slog.String("err", err.Error()))
		}
		return 0, false
	}
	v, err := strconv.ParseInt(raw, 10, 32)
	if err != nil {
		return 0, false
	}
	t.local.Put(ctx, key, int32(v))
	return int32(v), true
}

func (t *Tiered) Put(ctx context.Context, key string, value int32) {
	t.local.Put(ctx, key, value)

	opCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	// Samples are immutable in their key, so entries carry no TTL.
	if err := t.rdb.Set(opCtx, key, strconv.FormatInt(int64(value), 10), 0).Err(); err != nil {
		t.logger.LogAttrs(ctx, slog.LevelWarn, "sample cache redis set failed",
			slog.String("key", key), slog.String("err", err.Error()))
	}
}

func (t *Tiered) Close() error {
	if err := t.rdb.Close(); err != nil {
		return fmt.Errorf("redis close: %w", err)
	}
	return nil
}
