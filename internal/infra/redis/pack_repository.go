package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"pushluck-trivia-service/internal/domain"
	"pushluck-trivia-service/internal/infra/memory"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const catalogKey = "trivia:packs:catalog"

// PackRepository caches the pack catalog in Redis as one JSON blob and falls
// back to a loader on cache miss, so every instance behind a load balancer
// sees the same catalog without hammering the backing store.
type PackRepository struct {
	client *redis.Client
	loader memory.PackLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewPackRepository(client *redis.Client, loader memory.PackLoader, ttl time.Duration) *PackRepository {
	return &PackRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *PackRepository) GetPacks(ctx context.Context) ([]domain.Pack, error) {
	if packs, ok := r.cached(ctx); ok {
		return packs, nil
	}

	result, err, _ := r.sf.Do(catalogKey, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if packs, ok := r.cached(ctx); ok {
			return packs, nil
		}

		packs, err := r.loader.LoadPacks(ctx)
		if err != nil {
			return nil, err
		}

		if data, err := json.Marshal(packs); err == nil {
			// best-effort cache fill
			_ = r.client.Set(ctx, catalogKey, data, r.ttlWithJitter()).Err()
		}
		return packs, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Pack), nil
}

func (r *PackRepository) cached(ctx context.Context) ([]domain.Pack, bool) {
	data, err := r.client.Get(ctx, catalogKey).Bytes()
	if err != nil || len(data) == 0 {
		return nil, false
	}
	var packs []domain.Pack
	if err := json.Unmarshal(data, &packs); err != nil {
		return nil, false
	}
	return packs, true
}

func (r *PackRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
