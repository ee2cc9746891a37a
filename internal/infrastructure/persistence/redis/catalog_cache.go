package redis

import (
	"context"
	"errors"
	"time"

	"github.com/MercifulSamurai142/yellow-diamond-learn-sub000/internal/domain/achievement"
	"github.com/MercifulSamurai142/yellow-diamond-learn-sub000/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// CACHED CATALOG REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// CacheStore is the slice of Cache the catalog decorator depends on.
// Get reports ErrCacheMiss for absent keys.
type CacheStore interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// CachedCatalogRepository is a read-through cache over the achievement
// catalog. The catalog itself and the per-user earned listings are
// cached with their own TTLs; ListEarnedIDs always passes through to
// the underlying store, because the evaluation path must see the
// current earned set when building candidates.
//
// Cache failures are never surfaced to callers: on any Redis error the
// repository falls back to the underlying store and logs the failure.
type CachedCatalogRepository struct {
	inner      achievement.CatalogRepository
	cache      CacheStore
	log        *logger.Logger
	catalogTTL time.Duration
	earnedTTL  time.Duration
}

// NewCachedCatalogRepository wraps a catalog repository with Redis caching.
// Zero TTLs fall back to the package defaults.
func NewCachedCatalogRepository(
	inner achievement.CatalogRepository,
	cache CacheStore,
	log *logger.Logger,
	catalogTTL, earnedTTL time.Duration,
) *CachedCatalogRepository {
	if log == nil {
		log = logger.Default()
	}
	if catalogTTL <= 0 {
		catalogTTL = TTLCatalogCache
	}
	if earnedTTL <= 0 {
		earnedTTL = TTLEarnedCache
	}
	return &CachedCatalogRepository{
		inner:      inner,
		cache:      cache,
		log:        log,
		catalogTTL: catalogTTL,
		earnedTTL:  earnedTTL,
	}
}

// cachedAchievement is the wire form of a catalog row. Criteria is kept
// as its raw JSON document and re-parsed on read, because the parsed
// representation does not survive a JSON round trip.
type cachedAchievement struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Criteria    []byte    `json:"criteria"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ListAchievements returns the catalog, from cache when possible.
func (r *CachedCatalogRepository) ListAchievements(ctx context.Context) ([]achievement.Achievement, error) {
	var cached []cachedAchievement
	err := r.cache.Get(ctx, CatalogKey(), &cached)
	if err == nil {
		return decodeCatalog(cached), nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		r.log.Warn("catalog cache read failed", logger.Err(err))
	}

	achievements, err := r.inner.ListAchievements(ctx)
	if err != nil {
		return nil, err
	}

	if encoded, ok := encodeCatalog(achievements); ok {
		if err := r.cache.Set(ctx, CatalogKey(), encoded, r.catalogTTL); err != nil {
			r.log.Warn("catalog cache write failed", logger.Err(err))
		}
	}

	return achievements, nil
}

// ListEarnedIDs always reads the underlying store.
func (r *CachedCatalogRepository) ListEarnedIDs(ctx context.Context, userID string) ([]string, error) {
	return r.inner.ListEarnedIDs(ctx, userID)
}

// ListEarned returns the user's earned listing, from cache when possible.
func (r *CachedCatalogRepository) ListEarned(ctx context.Context, userID string) ([]achievement.EarnedAchievement, error) {
	var earned []achievement.EarnedAchievement
	err := r.cache.Get(ctx, EarnedKey(userID), &earned)
	if err == nil {
		return earned, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		r.log.Warn("earned cache read failed", logger.UserID(userID), logger.Err(err))
	}

	earned, err = r.inner.ListEarned(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := r.cache.Set(ctx, EarnedKey(userID), earned, r.earnedTTL); err != nil {
		r.log.Warn("earned cache write failed", logger.UserID(userID), logger.Err(err))
	}

	return earned, nil
}

// InvalidateEarned drops the cached earned listing for a user. Called
// after an award so the listing endpoint reflects it immediately.
func (r *CachedCatalogRepository) InvalidateEarned(ctx context.Context, userID string) error {
	return r.cache.Delete(ctx, EarnedKey(userID))
}

// InvalidateCatalog drops the cached catalog, forcing the next load to
// read the store. Intended for admin tooling after catalog edits.
func (r *CachedCatalogRepository) InvalidateCatalog(ctx context.Context) error {
	return r.cache.Delete(ctx, CatalogKey())
}

// ─────────────────────────────────────────────────────────────────────────────
// Encoding
// ─────────────────────────────────────────────────────────────────────────────

// encodeCatalog converts catalog rows to their cacheable form. Rows
// whose criteria failed to parse have no recoverable raw document, so
// a catalog containing any such row is not cached at all; it keeps
// flowing from the store until the row is fixed.
func encodeCatalog(achievements []achievement.Achievement) ([]cachedAchievement, bool) {
	encoded := make([]cachedAchievement, 0, len(achievements))
	for _, a := range achievements {
		if a.CriteriaErr != nil || a.Criteria == nil {
			return nil, false
		}
		raw, err := achievement.EncodeCriteria(a.Criteria)
		if err != nil {
			return nil, false
		}
		encoded = append(encoded, cachedAchievement{
			ID:          a.ID,
			Name:        a.Name,
			Description: a.Description,
			Criteria:    raw,
			CreatedAt:   a.CreatedAt,
			UpdatedAt:   a.UpdatedAt,
		})
	}
	return encoded, true
}

// decodeCatalog re-parses cached rows into catalog rows.
func decodeCatalog(cached []cachedAchievement) []achievement.Achievement {
	achievements := make([]achievement.Achievement, 0, len(cached))
	for _, c := range cached {
		a := achievement.Achievement{
			ID:          c.ID,
			Name:        c.Name,
			Description: c.Description,
			CreatedAt:   c.CreatedAt,
			UpdatedAt:   c.UpdatedAt,
		}
		a.Criteria, a.CriteriaErr = achievement.ParseCriteria(c.Criteria)
		achievements = append(achievements, a)
	}
	return achievements
}
