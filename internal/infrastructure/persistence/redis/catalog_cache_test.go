package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MercifulSamurai142/yellow-diamond-learn-sub000/internal/domain/achievement"
)

// fakeCacheStore is an in-memory CacheStore that mirrors Cache's JSON
// round trip and miss sentinel.
type fakeCacheStore struct {
	data     map[string][]byte
	getErr   error
	setCalls int
	deleted  []string
	wrapMiss bool
}

func newFakeCacheStore() *fakeCacheStore {
	return &fakeCacheStore{data: map[string][]byte{}}
}

func (f *fakeCacheStore) Get(ctx context.Context, key string, dest interface{}) error {
	if f.getErr != nil {
		return f.getErr
	}
	raw, ok := f.data[key]
	if !ok {
		if f.wrapMiss {
			return fmt.Errorf("lookup %q: %w", key, ErrCacheMiss)
		}
		return ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (f *fakeCacheStore) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	f.setCalls++
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.data[key] = raw
	return nil
}

func (f *fakeCacheStore) Delete(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.data, key)
		f.deleted = append(f.deleted, key)
	}
	return nil
}

// fakeCatalogStore counts calls so tests can tell cache hits from
// store reads.
type fakeCatalogStore struct {
	catalog       []achievement.Achievement
	earnedIDs     []string
	earned        []achievement.EarnedAchievement
	catalogCalls  int
	earnedIDCalls int
	earnedCalls   int
}

func (f *fakeCatalogStore) ListAchievements(ctx context.Context) ([]achievement.Achievement, error) {
	f.catalogCalls++
	return f.catalog, nil
}

func (f *fakeCatalogStore) ListEarnedIDs(ctx context.Context, userID string) ([]string, error) {
	f.earnedIDCalls++
	return f.earnedIDs, nil
}

func (f *fakeCatalogStore) ListEarned(ctx context.Context, userID string) ([]achievement.EarnedAchievement, error) {
	f.earnedCalls++
	return f.earned, nil
}

func parsedAchievement(t *testing.T, id string, criteria string) achievement.Achievement {
	t.Helper()

	a := achievement.Achievement{ID: id, Name: "Achievement " + id}
	a.Criteria, a.CriteriaErr = achievement.ParseCriteria([]byte(criteria))
	require.NoError(t, a.CriteriaErr)
	return a
}

func TestCachedCatalog_MissPopulatesThenHits(t *testing.T) {
	cache := newFakeCacheStore()
	store := &fakeCatalogStore{catalog: []achievement.Achievement{
		parsedAchievement(t, "a1", `{"type":"complete_module","module_ref":"m1"}`),
	}}
	repo := NewCachedCatalogRepository(store, cache, nil, 0, 0)

	first, err := repo.ListAchievements(context.Background())
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, 1, store.catalogCalls)
	assert.Equal(t, 1, cache.setCalls)

	second, err := repo.ListAchievements(context.Background())
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, 1, store.catalogCalls, "second read should come from cache")

	// Criteria survives the cache round trip as a parsed value.
	require.NoError(t, second[0].CriteriaErr)
	require.NotNil(t, second[0].Criteria)
	assert.Equal(t, achievement.KindCompleteModule, second[0].Criteria.Kind())
}

func TestCachedCatalog_ReadErrorFallsThrough(t *testing.T) {
	cache := newFakeCacheStore()
	cache.getErr = errors.New("connection refused")
	store := &fakeCatalogStore{catalog: []achievement.Achievement{
		parsedAchievement(t, "a1", `{"type":"complete_lesson"}`),
	}}
	repo := NewCachedCatalogRepository(store, cache, nil, 0, 0)

	got, err := repo.ListAchievements(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 1, store.catalogCalls)
}

func TestCachedCatalog_WrappedMissIsStillAMiss(t *testing.T) {
	cache := newFakeCacheStore()
	cache.wrapMiss = true
	store := &fakeCatalogStore{catalog: []achievement.Achievement{
		parsedAchievement(t, "a1", `{"type":"complete_lesson"}`),
	}}
	repo := NewCachedCatalogRepository(store, cache, nil, 0, 0)

	got, err := repo.ListAchievements(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 1, cache.setCalls)
}

func TestCachedCatalog_EarnedIDsBypassCache(t *testing.T) {
	cache := newFakeCacheStore()
	store := &fakeCatalogStore{earnedIDs: []string{"a1", "a2"}}
	repo := NewCachedCatalogRepository(store, cache, nil, 0, 0)

	for i := 0; i < 3; i++ {
		ids, err := repo.ListEarnedIDs(context.Background(), "u1")
		require.NoError(t, err)
		assert.Equal(t, []string{"a1", "a2"}, ids)
	}
	assert.Equal(t, 3, store.earnedIDCalls, "every earned-IDs read must hit the store")
	assert.Equal(t, 0, cache.setCalls)
}

func TestCachedCatalog_UnparseableRowNotCached(t *testing.T) {
	bad := achievement.Achievement{ID: "a2", Name: "Broken"}
	bad.Criteria, bad.CriteriaErr = achievement.ParseCriteria([]byte(`{"type":"mystery"}`))
	require.Error(t, bad.CriteriaErr)

	cache := newFakeCacheStore()
	store := &fakeCatalogStore{catalog: []achievement.Achievement{
		parsedAchievement(t, "a1", `{"type":"complete_lesson"}`),
		bad,
	}}
	repo := NewCachedCatalogRepository(store, cache, nil, 0, 0)

	for i := 0; i < 2; i++ {
		got, err := repo.ListAchievements(context.Background())
		require.NoError(t, err)
		require.Len(t, got, 2)
	}
	assert.Equal(t, 2, store.catalogCalls, "catalog with a broken row keeps flowing from the store")
	assert.Equal(t, 0, cache.setCalls)
}

func TestCachedCatalog_EarnedListingCachesAndInvalidates(t *testing.T) {
	cache := newFakeCacheStore()
	store := &fakeCatalogStore{earned: []achievement.EarnedAchievement{
		{AchievementID: "a1", Name: "First Steps", EarnedAt: time.Now().UTC()},
	}}
	repo := NewCachedCatalogRepository(store, cache, nil, 0, 0)

	_, err := repo.ListEarned(context.Background(), "u1")
	require.NoError(t, err)
	_, err = repo.ListEarned(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, store.earnedCalls, "second listing should come from cache")

	require.NoError(t, repo.InvalidateEarned(context.Background(), "u1"))
	assert.Contains(t, cache.deleted, EarnedKey("u1"))

	_, err = repo.ListEarned(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, store.earnedCalls, "invalidation must force a store read")
}
