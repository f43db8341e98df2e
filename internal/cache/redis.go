package cache

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shortlinkd/shortlinkd/internal/domain"
)

// ErrRedisMiss indicates the key is absent from the distributed tier. It
// is distinguished from a connection failure so the composite cache can
// fall through to the Store on a miss but skip the tier entirely on an
// outage (treated as "tier unavailable", never as "code absent").
var ErrRedisMiss = errors.New("cache: redis miss")

// Redis is the optional distributed object-cache tier. It is additive:
// every caller treats a Redis error as "tier unavailable" and continues
// down the pipeline to the Store rather than surfacing the error.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedis connects to addr and verifies reachability with a bounded ping.
func NewRedis(ctx context.Context, addr, password string, db int, ttl time.Duration, logger *slog.Logger) (*Redis, error) {
	if logger == nil {
		logger = slog.Default()
	}
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		MaxRetries:   3,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("cache: redis connect: %w", err)
	}

	logger.Info("distributed object cache connected", "addr", addr, "db", db, "ttl", ttl)
	return &Redis{client: client, ttl: ttl, logger: logger}, nil
}

func cacheKey(code string) string {
	return "shortlinkd:link:v1:" + code
}

// Get fetches code from Redis. ErrRedisMiss means the key is absent;
// any other error means the tier itself is unreachable.
func (r *Redis) Get(ctx context.Context, code string) (*domain.ShortLink, error) {
	raw, err := r.client.Get(ctx, cacheKey(code)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrRedisMiss
	}
	if err != nil {
		return nil, fmt.Errorf("cache: redis get: %w", err)
	}

	decompressed, err := gunzip(raw)
	if err != nil {
		return nil, fmt.Errorf("cache: redis decompress: %w", err)
	}

	var link domain.ShortLink
	if err := json.Unmarshal(decompressed, &link); err != nil {
		return nil, fmt.Errorf("cache: redis unmarshal: %w", err)
	}
	return &link, nil
}

// Set stores link under code with the configured TTL.
func (r *Redis) Set(ctx context.Context, code string, link *domain.ShortLink) error {
	raw, err := json.Marshal(link)
	if err != nil {
		return fmt.Errorf("cache: redis marshal: %w", err)
	}
	compressed, err := gzipBytes(raw)
	if err != nil {
		return fmt.Errorf("cache: redis compress: %w", err)
	}
	if err := r.client.Set(ctx, cacheKey(code), compressed, r.ttl).Err(); err != nil {
		return fmt.Errorf("cache: redis set: %w", err)
	}
	return nil
}

// Delete removes code from the distributed tier.
func (r *Redis) Delete(ctx context.Context, code string) error {
	if err := r.client.Del(ctx, cacheKey(code)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("cache: redis delete: %w", err)
	}
	return nil
}

// Ping reports whether the distributed tier is currently reachable.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close releases the underlying connection pool.
func (r *Redis) Close() error {
	return r.client.Close()
}

func gzipBytes(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func gunzip(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
