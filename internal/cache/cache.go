package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/contentpilot/pkg/models"
	"github.com/redis/go-redis/v9"
)

// DefaultGenerationStateTTL bounds how long an advisory generation state outlives its last update.
const DefaultGenerationStateTTL = 30 * time.Minute

// Cache is the caching interface. All cache operations go through here.
// Implementations must be safe for concurrent use.
type Cache interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	SetGenerationState(ctx context.Context, state models.GenerationState, ttl time.Duration) error
	GetGenerationState(ctx context.Context, planID uuid.UUID, itemID string) (*models.GenerationState, bool, error)
	IncrWithExpiry(ctx context.Context, key string, expiry time.Duration) (int64, error)
}

// RedisCache implements the Cache interface using go-redis/v9.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a new RedisCache from a Redis URL.
func NewRedisCache(redisURL string) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return &RedisCache{client: redis.NewClient(opts)}, nil
}

// Close releases the underlying connection pool.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

// SetGenerationState stores the state under its plan/item key. A zero UpdatedAt is stamped with now.
func (c *RedisCache) SetGenerationState(ctx context.Context, state models.GenerationState, ttl time.Duration) error {
	planID, err := uuid.Parse(state.PlanID)
	if err != nil {
		return fmt.Errorf("generation state plan id: %w", err)
	}
	if state.UpdatedAt.IsZero() {
		state.UpdatedAt = time.Now().UTC()
	}
	if ttl <= 0 {
		ttl = DefaultGenerationStateTTL
	}
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal generation state: %w", err)
	}
	return c.client.Set(ctx, GenerationStateKey(planID, state.ItemID), data, ttl).Err()
}

func (c *RedisCache) GetGenerationState(ctx context.Context, planID uuid.UUID, itemID string) (*models.GenerationState, bool, error) {
	data, found, err := c.Get(ctx, GenerationStateKey(planID, itemID))
	if err != nil || !found {
		return nil, false, err
	}
	var state models.GenerationState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, false, fmt.Errorf("decode generation state: %w", err)
	}
	return &state, true, nil
}

func (c *RedisCache) IncrWithExpiry(ctx context.Context, key string, expiry time.Duration) (int64, error) {
	pipe := c.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, expiry)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}
