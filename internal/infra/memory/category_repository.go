package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"learnearn/internal/content"
	"learnearn/internal/domain"
)

// CategoryLoader fetches question tables from a backing store (embedded content, Postgres).
type CategoryLoader interface {
	LoadCategory(ctx context.Context, key string) (domain.Category, error)
}

// CategoryRepository caches question tables with TTL to avoid repeated loads.
// A non-positive TTL caches forever.
type CategoryRepository struct {
	loader CategoryLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex

	mu    sync.RWMutex
	cache map[string]cachedCategory
}

type cachedCategory struct {
	category  domain.Category
	expiresAt time.Time
}

func NewCategoryRepository(loader CategoryLoader, ttl time.Duration) *CategoryRepository {
	return &CategoryRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedCategory),
	}
}

// GetCategory returns a copy of the cached table, loading it on a miss.
func (r *CategoryRepository) GetCategory(ctx context.Context, key string) (domain.Category, error) {
	if c, ok := r.lookup(key, r.clock()); ok {
		return content.Clone(c), nil
	}

	result, err, _ := r.sf.Do(key, func() (interface{}, error) {
		now := r.clock()
		if c, ok := r.lookup(key, now); ok {
			return c, nil
		}

		c, err := r.loader.LoadCategory(ctx, key)
		if err != nil {
			return domain.Category{}, err
		}

		r.mu.Lock()
		r.cache[key] = cachedCategory{category: c, expiresAt: r.expiry(now)}
		r.mu.Unlock()
		return c, nil
	})
	if err != nil {
		return domain.Category{}, err
	}
	return content.Clone(result.(domain.Category)), nil
}

func (r *CategoryRepository) lookup(key string, now time.Time) (domain.Category, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.cache[key]
	if !ok || (!entry.expiresAt.IsZero() && !entry.expiresAt.After(now)) {
		return domain.Category{}, false
	}
	return entry.category, true
}

func (r *CategoryRepository) expiry(now time.Time) time.Time {
	if r.ttl <= 0 {
		return time.Time{}
	}
	return now.Add(r.ttlWithJitter())
}

func (r *CategoryRepository) ttlWithJitter() time.Duration {
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
