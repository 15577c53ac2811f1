package agent

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"

	"github.com/kairon-labs/kairon-backend/internal/platform/logger"
)

// Cache lazily loads and retains Agents per bot. get misses fall through to
// the engine via LatestModelPath; reload and evict are the invalidation
// hooks (post-training, password reset, ownership transfer).
type Cache interface {
	Get(ctx context.Context, bot uuid.UUID) (Agent, error)
	Reload(ctx context.Context, bot uuid.UUID) (Agent, error)
	IsExists(bot uuid.UUID) bool
	Evict(bot uuid.UUID)
}

type lruCache struct {
	engine TrainingEngine
	cache  *lru.Cache[uuid.UUID, Agent]
	mu     sync.Mutex
	log    *logger.Logger
}

// NewLRUCache builds the in-process backend. size bounds the number of
// concurrently loaded models.
func NewLRUCache(engine TrainingEngine, size int, log *logger.Logger) (Cache, error) {
	if size <= 0 {
		size = 16
	}
	c, err := lru.New[uuid.UUID, Agent](size)
	if err != nil {
		return nil, err
	}
	return &lruCache{engine: engine, cache: c, log: log.With("component", "agent_cache")}, nil
}

func (c *lruCache) Get(ctx context.Context, bot uuid.UUID) (Agent, error) {
	if agent, ok := c.cache.Get(bot); ok {
		return agent, nil
	}
	return c.load(ctx, bot)
}

func (c *lruCache) Reload(ctx context.Context, bot uuid.UUID) (Agent, error) {
	c.cache.Remove(bot)
	return c.load(ctx, bot)
}

func (c *lruCache) IsExists(bot uuid.UUID) bool {
	return c.cache.Contains(bot)
}

func (c *lruCache) Evict(bot uuid.UUID) {
	c.cache.Remove(bot)
}

// load serializes concurrent misses for the same bot; loading a model twice
// wastes memory, not correctness.
func (c *lruCache) load(ctx context.Context, bot uuid.UUID) (Agent, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if agent, ok := c.cache.Get(bot); ok {
		return agent, nil
	}
	path, err := c.engine.LatestModelPath(bot)
	if err != nil {
		return nil, err
	}
	agent, err := c.engine.Load(ctx, path)
	if err != nil {
		return nil, err
	}
	c.cache.Add(bot, agent)
	c.log.Info("Agent loaded", "bot", bot.String(), "model", path)
	return agent, nil
}

// redisCache layers cross-process invalidation over the in-process LRU: a
// per-bot version counter in Redis bumps on evict/reload, and a stale local
// entry is dropped when its version lags.
type redisCache struct {
	inner    *lruCache
	rdb      *redis.Client
	versions sync.Map
	log      *logger.Logger
}

func NewRedisCache(engine TrainingEngine, size int, rdb *redis.Client, log *logger.Logger) (Cache, error) {
	inner, err := NewLRUCache(engine, size, log)
	if err != nil {
		return nil, err
	}
	return &redisCache{inner: inner.(*lruCache), rdb: rdb, log: log.With("component", "agent_cache_redis")}, nil
}

func versionKey(bot uuid.UUID) string {
	return fmt.Sprintf("agent:version:%s", bot)
}

func (c *redisCache) Get(ctx context.Context, bot uuid.UUID) (Agent, error) {
	remote, err := c.rdb.Get(ctx, versionKey(bot)).Int64()
	if err != nil && err != redis.Nil {
		c.log.Warn("Agent version lookup failed, serving local copy", "bot", bot.String(), "error", err)
		return c.inner.Get(ctx, bot)
	}
	if local, ok := c.versions.Load(bot); ok && local.(int64) < remote {
		c.inner.Evict(bot)
	}
	agent, err := c.inner.Get(ctx, bot)
	if err != nil {
		return nil, err
	}
	c.versions.Store(bot, remote)
	return agent, nil
}

func (c *redisCache) Reload(ctx context.Context, bot uuid.UUID) (Agent, error) {
	version, err := c.rdb.Incr(ctx, versionKey(bot)).Result()
	if err != nil {
		c.log.Warn("Agent version bump failed", "bot", bot.String(), "error", err)
	} else {
		c.versions.Store(bot, version)
	}
	return c.inner.Reload(ctx, bot)
}

func (c *redisCache) IsExists(bot uuid.UUID) bool {
	return c.inner.IsExists(bot)
}

func (c *redisCache) Evict(bot uuid.UUID) {
	if _, err := c.rdb.Incr(context.Background(), versionKey(bot)).Result(); err != nil {
		c.log.Warn("Agent version bump failed on evict", "bot", bot.String(), "error", err)
	}
	c.inner.Evict(bot)
}
