package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"pushluck-trivia-service/internal/domain"
	"golang.org/x/sync/singleflight"
)

// PackLoader fetches the pack catalog from a backing store (bundled files,
// Postgres, etc).
type PackLoader interface {
	LoadPacks(ctx context.Context) ([]domain.Pack, error)
}

// PackRepository caches the catalog with a TTL to avoid repeated loads.
type PackRepository struct {
	loader PackLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu        sync.RWMutex
	packs     []domain.Pack
	expiresAt time.Time
}

func NewPackRepository(loader PackLoader, ttl time.Duration) *PackRepository {
	return &PackRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *PackRepository) GetPacks(ctx context.Context) ([]domain.Pack, error) {
	now := r.clock()

	r.mu.RLock()
	if r.packs != nil && r.expiresAt.After(now) {
		packs := r.packs
		r.mu.RUnlock()
		return packs, nil
	}
	r.mu.RUnlock()

	result, err, _ := r.sf.Do("catalog", func() (interface{}, error) {
		now := r.clock()
		r.mu.RLock()
		if r.packs != nil && r.expiresAt.After(now) {
			packs := r.packs
			r.mu.RUnlock()
			return packs, nil
		}
		r.mu.RUnlock()

		packs, err := r.loader.LoadPacks(ctx)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.packs = packs
		r.expiresAt = now.Add(r.ttlWithJitter())
		r.mu.Unlock()
		return packs, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Pack), nil
}

func (r *PackRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// StaticPackLoader serves a fixed catalog (bundled content, tests).
type StaticPackLoader struct {
	packs []domain.Pack
}

func NewStaticPackLoader(packs []domain.Pack) *StaticPackLoader {
	return &StaticPackLoader{packs: packs}
}

func (l *StaticPackLoader) LoadPacks(_ context.Context) ([]domain.Pack, error) {
	return l.packs, nil
}

// FallbackPackLoader prefers the remote catalog and falls back to the local
// one when the remote errors or is empty. A non-empty remote catalog replaces
// the local one wholesale; the two are never merged.
type FallbackPackLoader struct {
	remote PackLoader
	local  PackLoader
}

func NewFallbackPackLoader(remote, local PackLoader) *FallbackPackLoader {
	return &FallbackPackLoader{remote: remote, local: local}
}

func (l *FallbackPackLoader) LoadPacks(ctx context.Context) ([]domain.Pack, error) {
	packs, err := l.remote.LoadPacks(ctx)
	if err == nil && len(packs) > 0 {
		return packs, nil
	}
	return l.local.LoadPacks(ctx)
}
