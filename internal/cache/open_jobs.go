package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"leadmarket/internal/models"

	"github.com/go-redis/redis/v8"
)

const (
	generationKey = "leadmarket:open_jobs:gen"
	entryPrefix   = "leadmarket:open_jobs:"
)

// Client is the subset of *redis.Client the cache uses.
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Incr(ctx context.Context, key string) *redis.IntCmd
}

func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// OpenJobs caches the public open-jobs list. Entries are keyed by a
// generation counter; Invalidate bumps the counter so every request that
// starts afterwards misses and reads the store. Old generations expire on
// their own.
type OpenJobs struct {
	client Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewOpenJobs(client Client, ttl time.Duration, logger *slog.Logger) *OpenJobs {
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenJobs{client: client, ttl: ttl, logger: logger}
}

// Fetch returns the cached list for key or calls load and stores its result.
// Redis failures fall through to load.
func (c *OpenJobs) Fetch(ctx context.Context, key string, load func(context.Context) ([]models.PublicJob, error)) ([]models.PublicJob, error) {
	generation, err := c.generation(ctx)
	if err != nil {
		c.logger.Warn("open jobs cache unavailable", "error", err)
		return load(ctx)
	}
	entryKey := entryPrefix + generation + ":" + key

	raw, err := c.client.Get(ctx, entryKey).Bytes()
	switch {
	case err == nil:
		var jobs []models.PublicJob
		if err := json.Unmarshal(raw, &jobs); err == nil {
			return jobs, nil
		}
		c.logger.Warn("discarding corrupt open jobs entry", "key", entryKey)
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("open jobs cache read failed", "key", entryKey, "error", err)
	}

	jobs, err := load(ctx)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(jobs)
	if err != nil {
		return jobs, nil
	}
	if err := c.client.Set(ctx, entryKey, payload, c.ttl).Err(); err != nil {
		c.logger.Warn("open jobs cache write failed", "key", entryKey, "error", err)
	}
	return jobs, nil
}

func (c *OpenJobs) Invalidate(ctx context.Context) error {
	return c.client.Incr(ctx, generationKey).Err()
}

func (c *OpenJobs) generation(ctx context.Context) (string, error) {
	generation, err := c.client.Get(ctx, generationKey).Result()
	if errors.Is(err, redis.Nil) {
		return "0", nil
	}
	return generation, err
}
