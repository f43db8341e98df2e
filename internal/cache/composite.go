package cache

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/shortlinkd/shortlinkd/internal/domain"
	"github.com/shortlinkd/shortlinkd/internal/store"
)

// Config sizes and tunes every tier of the Composite cache.
type Config struct {
	BloomExpectedItems int
	BloomFalsePositive float64
	NegativeTTL        time.Duration
	ObjectCapacity     int
	ObjectTTL          time.Duration
}

// DefaultConfig returns reasonable defaults for a small-to-medium link
// table; callers typically override from runtime configuration.
func DefaultConfig() Config {
	return Config{
		BloomExpectedItems: 100_000,
		BloomFalsePositive: 0.01,
		NegativeTTL:        30 * time.Second,
		ObjectCapacity:     10_000,
		ObjectTTL:          5 * time.Minute,
	}
}

// Composite implements the Bloom -> Negative -> Object(local) ->
// Object(redis) -> Store read pipeline, plus write-through and bulk
// reconfiguration. The redis tier is optional; a nil Redis pointer simply
// skips that step.
type Composite struct {
	mu     sync.RWMutex
	bloom  *Bloom
	neg    *Negative
	local  *Object
	redis  *Redis // may be nil
	store  store.Store
	logger *slog.Logger
	stats  *Metrics
}

// New builds a Composite cache backed by st, sized per cfg. redisTier may
// be nil to run local-only.
func New(st store.Store, cfg Config, redisTier *Redis, logger *slog.Logger) *Composite {
	if logger == nil {
		logger = slog.Default()
	}
	return &Composite{
		bloom:  NewBloom(cfg.BloomExpectedItems, cfg.BloomFalsePositive),
		neg:    NewNegative(cfg.NegativeTTL),
		local:  NewObject(cfg.ObjectCapacity, cfg.ObjectTTL),
		redis:  redisTier,
		store:  st,
		logger: logger,
		stats:  NewMetrics(),
	}
}

// WarmFromStore loads every known code into the Bloom filter. It should
// run once at startup and again on every Data reload.
func (c *Composite) WarmFromStore(ctx context.Context) error {
	codes, err := c.store.LoadAllCodes(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.bloom.Reset()
	for _, code := range codes {
		c.bloom.Add(code)
	}
	c.mu.Unlock()
	c.logger.Info("cache bloom filter warmed", "codes", len(codes))
	return nil
}

// Resolve runs the full read pipeline for code. A nil, nil return means
// the code is definitively absent; a non-nil error means the Store lookup
// failed, and the resolver surfaces it as an internal error.
func (c *Composite) Resolve(ctx context.Context, code string) (*domain.ShortLink, error) {
	c.mu.RLock()
	bloom := c.bloom
	c.mu.RUnlock()

	if !bloom.MightContain(code) {
		c.stats.hit("bloom_negative")
		return nil, nil
	}

	if c.neg.IsAbsent(code) {
		c.stats.hit("negative")
		return nil, nil
	}

	if link, ok := c.local.Get(code); ok {
		c.stats.hit("object_local")
		return link, nil
	}
	c.stats.miss("object_local")

	if c.redis != nil {
		link, err := c.redis.Get(ctx, code)
		switch {
		case err == nil:
			c.stats.hit("object_redis")
			c.local.Set(code, link)
			return link, nil
		case errors.Is(err, ErrRedisMiss):
			c.stats.miss("object_redis")
		default:
			c.logger.Warn("distributed cache tier unavailable, falling through to store", "error", err)
		}
	}

	link, err := c.store.Get(ctx, code)
	if err != nil {
		if domain.IsNotFound(err) {
			c.stats.miss("store")
			c.neg.MarkAbsent(code)
			return nil, nil
		}
		return nil, err
	}

	c.stats.miss("store")
	c.local.Set(code, link)
	if c.redis != nil {
		if setErr := c.redis.Set(ctx, code, link); setErr != nil {
			c.logger.Warn("distributed cache tier write failed", "error", setErr)
		}
	}
	return link, nil
}

// Invalidate drops code from every tier after a Delete. Unlike Observe, it
// marks the code absent in the Negative cache rather than forgetting it,
// since the Bloom filter still reports a possible match until the next
// Reconfigure/WarmFromStore and would otherwise send every subsequent
// lookup back to the Store.
func (c *Composite) Invalidate(ctx context.Context, code string) {
	c.neg.MarkAbsent(code)
	c.local.Remove(code)
	if c.redis != nil {
		if err := c.redis.Delete(ctx, code); err != nil {
			c.logger.Warn("distributed cache tier invalidate failed", "code", code, "error", err)
		}
	}
}

// Observe records a freshly-written link directly into the fast tiers and
// adds it to the Bloom filter, skipping a round trip to the Store on the
// next read.
func (c *Composite) Observe(ctx context.Context, link *domain.ShortLink) {
	c.mu.Lock()
	c.bloom.Add(link.Code)
	c.mu.Unlock()
	c.neg.Forget(link.Code)
	c.local.Set(link.Code, link)
	if c.redis != nil {
		if err := c.redis.Set(ctx, link.Code, link); err != nil {
			c.logger.Warn("distributed cache tier write failed", "code", link.Code, "error", err)
		}
	}
}

// Reconfigure atomically replaces the Bloom filter and purges the local
// and negative tiers, used after a bulk data reload where many codes may
// have changed underneath the cache.
func (c *Composite) Reconfigure(ctx context.Context) error {
	codes, err := c.store.LoadAllCodes(ctx)
	if err != nil {
		return err
	}

	fresh := NewBloom(len(codes), 0.01)
	for _, code := range codes {
		fresh.Add(code)
	}

	c.mu.Lock()
	c.bloom = fresh
	c.mu.Unlock()

	c.local.Purge()
	c.neg.mu.Lock()
	c.neg.entries = make(map[string]time.Time)
	c.neg.mu.Unlock()
	c.logger.Info("cache reconfigured", "codes", len(codes))
	return nil
}

// Close releases the distributed tier connection, if any.
func (c *Composite) Close() error {
	if c.redis != nil {
		return c.redis.Close()
	}
	return nil
}
