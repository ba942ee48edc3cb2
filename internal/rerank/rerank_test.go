package rerank

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentscout/internal/storage"
)

var rerankNow = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func intPtr(n int) *int { return &n }

type fakeCache struct {
	entries map[string]*storage.ScoreCacheEntry
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]*storage.ScoreCacheEntry)}
}

func (f *fakeCache) GetScoreCache(_ context.Context, key string, now time.Time) (*storage.ScoreCacheEntry, error) {
	e, ok := f.entries[key]
	if !ok || now.After(e.ExpiresAt) {
		return nil, storage.ErrNotFound
	}
	return e, nil
}

func (f *fakeCache) PutScoreCache(_ context.Context, e *storage.ScoreCacheEntry) error {
	f.entries[e.Key] = e
	return nil
}

type fakeProvider struct {
	calls  int
	err    error
	scores []storage.ListingScore
}

func (f *fakeProvider) ScoreBatch(_ context.Context, _ *storage.SearchCriteria, candidates []*storage.Listing, _ map[string]int) ([]storage.ListingScore, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.scores != nil {
		return f.scores, nil
	}
	out := make([]storage.ListingScore, len(candidates))
	for i, l := range candidates {
		out[i] = storage.ListingScore{ListingID: l.ID, Score: 90 - i, Reasoning: "good fit"}
	}
	return out, nil
}

func candidates(ids ...string) []*storage.Listing {
	out := make([]*storage.Listing, len(ids))
	for i, id := range ids {
		out[i] = &storage.Listing{ID: id, Rent: 1800, Bedrooms: 1, Bathrooms: 1}
	}
	return out
}

func testCriteria() *storage.SearchCriteria {
	return &storage.SearchCriteria{
		City:     "Philadelphia",
		Budget:   2000,
		Bedrooms: intPtr(1),
	}
}

func newTestReranker(store Store, p Provider) *Reranker {
	r := New(store, p, 24*time.Hour, time.Second, 20)
	r.now = func() time.Time { return rerankNow }
	return r
}

func TestCacheKeyOrderIndependent(t *testing.T) {
	c := testCriteria()
	a := CacheKey(c, []string{"l1", "l2", "l3"})
	b := CacheKey(c, []string{"l3", "l1", "l2"})
	assert.Equal(t, a, b)
}

func TestCacheKeySensitivity(t *testing.T) {
	c := testCriteria()
	base := CacheKey(c, []string{"l1", "l2"})

	assert.NotEqual(t, base, CacheKey(c, []string{"l1", "l3"}), "different candidates")

	higher := testCriteria()
	higher.Budget = 2500
	assert.NotEqual(t, base, CacheKey(higher, []string{"l1", "l2"}), "different budget")

	prefs := testCriteria()
	prefs.Preferences = "needs parking"
	assert.NotEqual(t, base, CacheKey(prefs, []string{"l1", "l2"}), "different preferences")

	studio := testCriteria()
	studio.Bedrooms = intPtr(0)
	assert.NotEqual(t, base, CacheKey(studio, []string{"l1", "l2"}), "studio is not unspecified")
}

// A second identical request within the TTL is served from cache; after
// expiry the provider is called again.
func TestRerankCacheRoundTrip(t *testing.T) {
	cache := newFakeCache()
	provider := &fakeProvider{}
	r := newTestReranker(cache, provider)
	ctx := context.Background()

	first, err := r.Rerank(ctx, testCriteria(), candidates("l1", "l2"), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, provider.calls)

	second, err := r.Rerank(ctx, testCriteria(), candidates("l2", "l1"), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, provider.calls, "cache hit must not call the provider")
	assert.Equal(t, first, second)

	r.now = func() time.Time { return rerankNow.Add(25 * time.Hour) }
	_, err = r.Rerank(ctx, testCriteria(), candidates("l1", "l2"), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, provider.calls, "expired entry triggers a fresh call")
}

func TestRerankProviderFailure(t *testing.T) {
	cache := newFakeCache()
	provider := &fakeProvider{err: errors.New("upstream 500")}
	r := newTestReranker(cache, provider)

	scores, err := r.Rerank(context.Background(), testCriteria(), candidates("l1"), nil)
	assert.Nil(t, scores)
	require.Error(t, err)
	assert.True(t, errors.Is(err, storage.ErrScoringUnavailable))
	assert.Empty(t, cache.entries, "failures are never cached")
}

func TestRerankTruncatesToTopK(t *testing.T) {
	cache := newFakeCache()
	provider := &fakeProvider{}
	r := New(cache, provider, 24*time.Hour, time.Second, 2)
	r.now = func() time.Time { return rerankNow }

	scores, err := r.Rerank(context.Background(), testCriteria(), candidates("l1", "l2", "l3"), nil)
	require.NoError(t, err)
	assert.Len(t, scores, 2)
}

func TestRerankEmptyCandidates(t *testing.T) {
	provider := &fakeProvider{}
	r := newTestReranker(newFakeCache(), provider)

	scores, err := r.Rerank(context.Background(), testCriteria(), nil, nil)
	require.NoError(t, err)
	assert.Nil(t, scores)
	assert.Equal(t, 0, provider.calls)
}
