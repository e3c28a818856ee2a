package redis

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"learnearn/internal/domain"
)

// CategoryLoader fetches question tables from a backing store (embedded content, Postgres).
type CategoryLoader interface {
	LoadCategory(ctx context.Context, key string) (domain.Category, error)
}

// CategoryRepository caches question tables in Redis as JSON and falls back to
// a loader on cache miss. Tables are stored as: SET learnearn:category:{key} {json}
type CategoryRepository struct {
	client *redis.Client
	loader CategoryLoader
	ttl    time.Duration
	logger *slog.Logger
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewCategoryRepository(client *redis.Client, loader CategoryLoader, ttl time.Duration, logger *slog.Logger) *CategoryRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &CategoryRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		logger: logger,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *CategoryRepository) GetCategory(ctx context.Context, key string) (domain.Category, error) {
	if c, ok := r.cached(ctx, key); ok {
		return c, nil
	}

	result, err, _ := r.sf.Do(key, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if c, ok := r.cached(ctx, key); ok {
			return c, nil
		}

		c, err := r.loader.LoadCategory(ctx, key)
		if err != nil {
			return domain.Category{}, err
		}

		data, err := json.Marshal(c)
		if err != nil {
			return domain.Category{}, err
		}
		if err := r.client.Set(ctx, r.key(key), data, r.ttlWithJitter()).Err(); err != nil {
			r.logger.Warn("category cache write failed", "category", key, "error", err)
		}
		return c, nil
	})
	if err != nil {
		return domain.Category{}, err
	}
	return result.(domain.Category), nil
}

func (r *CategoryRepository) cached(ctx context.Context, key string) (domain.Category, bool) {
	data, err := r.client.Get(ctx, r.key(key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.Warn("category cache read failed", "category", key, "error", err)
		}
		return domain.Category{}, false
	}
	var c domain.Category
	if err := json.Unmarshal(data, &c); err != nil {
		r.logger.Warn("category cache entry corrupt", "category", key, "error", err)
		return domain.Category{}, false
	}
	return c, true
}

func (r *CategoryRepository) key(key string) string {
	return "learnearn:category:" + key
}

// ttlWithJitter returns 0 (no expiry) for a non-positive TTL.
func (r *CategoryRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
