package dedup

import (
	"context"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentscout/internal/storage"
)

// fakeStore is an in-memory Store for exercising reconciliation paths.
type fakeStore struct {
	listings map[string]*storage.Listing // by id
	inserts  int

	// failNextInsert simulates losing a concurrent-insert race: the first
	// insert hits a unique violation and raceRow appears in the store.
	failNextInsert bool
	raceRow        *storage.Listing
}

func newFakeStore() *fakeStore {
	return &fakeStore{listings: make(map[string]*storage.Listing)}
}

func (f *fakeStore) InsertListing(_ context.Context, l *storage.Listing) error {
	if f.failNextInsert {
		f.failNextInsert = false
		if f.raceRow != nil {
			f.listings[f.raceRow.ID] = f.raceRow
		}
		return &pq.Error{Code: "23505"}
	}
	// The unique index on content_hash spans every row, active or not.
	for _, existing := range f.listings {
		if existing.ContentHash == l.ContentHash {
			return &pq.Error{Code: "23505"}
		}
	}
	f.inserts++
	cp := *l
	f.listings[l.ID] = &cp
	return nil
}

func (f *fakeStore) UpdateListing(_ context.Context, l *storage.Listing) error {
	if _, ok := f.listings[l.ID]; !ok {
		return storage.ErrNotFound
	}
	cp := *l
	f.listings[l.ID] = &cp
	return nil
}

func (f *fakeStore) FindByContentHash(_ context.Context, hash string, since time.Time) (*storage.Listing, error) {
	for _, l := range f.listings {
		if l.ContentHash != hash || l.MergedInto != "" {
			continue
		}
		if !l.IsActive && l.LastSeenAt.Before(since) {
			continue
		}
		cp := *l
		return &cp, nil
	}
	return nil, storage.ErrNotFound
}

func (f *fakeStore) FuzzyCandidates(_ context.Context, city string, bedrooms int) ([]*storage.Listing, error) {
	var out []*storage.Listing
	for _, l := range f.listings {
		if l.IsActive && l.City == city && l.Bedrooms == bedrooms && l.MergedInto == "" {
			cp := *l
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeStore) RetireListing(_ context.Context, loserID, survivorID string) error {
	l, ok := f.listings[loserID]
	if !ok {
		return storage.ErrNotFound
	}
	l.IsActive = false
	l.MergedInto = survivorID
	return nil
}

func draftListing() *storage.Listing {
	return &storage.Listing{
		Source:            "apartments_com",
		Address:           "123 Market St, Philadelphia, PA 19103",
		AddressNormalized: "123 market street",
		City:              "Philadelphia",
		State:             "PA",
		Rent:              1850,
		Bedrooms:          2,
		Bathrooms:         1.5,
		DataQualityScore:  70,
	}
}

func newTestReconciler(store Store) *Reconciler {
	r := NewReconciler(store)
	r.now = func() time.Time { return time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC) }
	return r
}

func TestReconcileCreated(t *testing.T) {
	store := newFakeStore()
	r := newTestReconciler(store)

	res, err := r.Reconcile(context.Background(), draftListing())
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, res.Outcome)
	require.NotEmpty(t, res.ListingID)

	stored := store.listings[res.ListingID]
	require.NotNil(t, stored)
	assert.True(t, stored.IsActive)
	assert.Equal(t, 1, stored.TimesSeen)
	assert.Equal(t, 100, stored.FreshnessConfidence)
	assert.NotEmpty(t, stored.ContentHash)
}

// Reconciling the same raw sighting twice resolves to the same id with
// times-seen bumped, never a second row.
func TestReconcileIdempotent(t *testing.T) {
	store := newFakeStore()
	r := newTestReconciler(store)
	ctx := context.Background()

	first, err := r.Reconcile(ctx, draftListing())
	require.NoError(t, err)
	second, err := r.Reconcile(ctx, draftListing())
	require.NoError(t, err)

	assert.Equal(t, OutcomeCreated, first.Outcome)
	assert.Equal(t, OutcomeUpdated, second.Outcome)
	assert.Equal(t, first.ListingID, second.ListingID)
	assert.Len(t, store.listings, 1)
	assert.Equal(t, 2, store.listings[first.ListingID].TimesSeen)
}

func TestReconcileResightMergesOptionalFields(t *testing.T) {
	store := newFakeStore()
	r := newTestReconciler(store)
	ctx := context.Background()

	first, err := r.Reconcile(ctx, draftListing())
	require.NoError(t, err)

	richer := draftListing()
	richer.Sqft = 950
	richer.Description = "Bright corner unit with hardwood floors."
	richer.Amenities = []string{"Gym"}
	_, err = r.Reconcile(ctx, richer)
	require.NoError(t, err)

	stored := store.listings[first.ListingID]
	assert.Equal(t, 950, stored.Sqft)
	assert.Equal(t, "Bright corner unit with hardwood floors.", stored.Description)
	assert.Equal(t, []string{"Gym"}, stored.Amenities)
}

func TestReconcileFuzzyMergeKeepsHigherQuality(t *testing.T) {
	store := newFakeStore()
	r := newTestReconciler(store)
	ctx := context.Background()

	existing := draftListing()
	existing.DataQualityScore = 85
	existing.Description = "Original detailed description of the unit."
	first, err := r.Reconcile(ctx, existing)
	require.NoError(t, err)

	// Same unit from another source: similar address, rent 5% higher,
	// same bedrooms. Different hash bucket, so it reaches fuzzy matching.
	dup := draftListing()
	dup.Source = "zillow"
	dup.Address = "123 Market Street, Philadelphia, PA 19103"
	dup.AddressNormalized = "123 market streets"
	dup.Rent = 1943
	dup.DataQualityScore = 60
	dup.Images = []string{"z1.jpg"}

	res, err := r.Reconcile(ctx, dup)
	require.NoError(t, err)
	assert.Equal(t, OutcomeMergedDuplicate, res.Outcome)
	assert.Equal(t, first.ListingID, res.ListingID)
	assert.Len(t, store.listings, 1)

	survivor := store.listings[first.ListingID]
	assert.Equal(t, 1850, survivor.Rent, "survivor keeps its own rent")
	assert.Equal(t, []string{"z1.jpg"}, survivor.Images, "loser images folded in")
	assert.Equal(t, 85, survivor.DataQualityScore)
}

func TestReconcileFuzzyMergeDraftWins(t *testing.T) {
	store := newFakeStore()
	r := newTestReconciler(store)
	ctx := context.Background()

	existing := draftListing()
	existing.DataQualityScore = 50
	first, err := r.Reconcile(ctx, existing)
	require.NoError(t, err)

	dup := draftListing()
	dup.Address = "123 Market Street, Philadelphia, PA 19103"
	dup.AddressNormalized = "123 market streets"
	dup.Rent = 1943
	dup.DataQualityScore = 90

	res, err := r.Reconcile(ctx, dup)
	require.NoError(t, err)
	assert.Equal(t, OutcomeMergedDuplicate, res.Outcome)
	assert.NotEqual(t, first.ListingID, res.ListingID)

	retired := store.listings[first.ListingID]
	assert.False(t, retired.IsActive)
	assert.Equal(t, res.ListingID, retired.MergedInto)

	survivor := store.listings[res.ListingID]
	assert.Equal(t, 1943, survivor.Rent)
	assert.Equal(t, 2, survivor.TimesSeen)
	assert.Equal(t, existing.FirstSeenAt, survivor.FirstSeenAt, "merged record keeps earliest first-seen")
}

func TestReconcileAmbiguousFuzzyInsertsNew(t *testing.T) {
	store := newFakeStore()
	r := newTestReconciler(store)
	ctx := context.Background()

	// Two stored rows with identical normalized addresses but different
	// hash buckets, both clearing the threshold at the same similarity.
	a := draftListing()
	_, err := r.Reconcile(ctx, a)
	require.NoError(t, err)
	b := draftListing()
	b.Rent = 1943
	b.ContentHash = ""
	_, err = r.Reconcile(ctx, b)
	// b fuzzy-matches a uniquely, so force the second row in directly.
	require.NoError(t, err)
	forced := draftListing()
	forced.ID = "forced-row"
	forced.Rent = 1900
	forced.IsActive = true
	forced.ContentHash = "forced-hash"
	store.listings[forced.ID] = forced

	probe := draftListing()
	probe.Rent = 1950
	res, err := r.Reconcile(ctx, probe)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, res.Outcome)
}

// A unit relisted long after deactivation still collides with its old row
// on the hash index; reconciliation must reactivate that row, not conflict.
func TestReconcileRelistedAfterLookbackReactivates(t *testing.T) {
	store := newFakeStore()
	r := newTestReconciler(store)
	ctx := context.Background()

	old := draftListing()
	old.ID = "old-row"
	old.ContentHash = ContentHash(old.AddressNormalized, old.Rent, old.Bedrooms, old.Bathrooms)
	old.IsActive = false
	old.TimesSeen = 4
	// Last seen 61 days before the pinned now, well past the lookback.
	old.LastSeenAt = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	store.listings[old.ID] = old

	res, err := r.Reconcile(ctx, draftListing())
	require.NoError(t, err)
	assert.Equal(t, OutcomeUpdated, res.Outcome)
	assert.Equal(t, "old-row", res.ListingID)

	row := store.listings["old-row"]
	assert.True(t, row.IsActive, "old row reactivates")
	assert.Equal(t, 5, row.TimesSeen)
	assert.Equal(t, 100, row.FreshnessConfidence)
	assert.Len(t, store.listings, 1)
	assert.Equal(t, 0, store.inserts, "no second row for the same unit")
}

func TestReconcileConcurrentInsertFallsBackToUpdate(t *testing.T) {
	store := newFakeStore()
	r := newTestReconciler(store)
	ctx := context.Background()

	winner := draftListing()
	winner.ID = "winner-id"
	winner.ContentHash = ContentHash(winner.AddressNormalized, winner.Rent, winner.Bedrooms, winner.Bathrooms)
	winner.IsActive = true
	winner.TimesSeen = 1

	loser := draftListing()
	// Make the winner's row appear only after the loser's insert fails,
	// and keep it invisible to the pre-insert hash lookup.
	store.failNextInsert = true
	store.raceRow = winner

	res, err := r.Reconcile(ctx, loser)
	require.NoError(t, err)
	assert.Equal(t, OutcomeUpdated, res.Outcome)
	assert.Equal(t, "winner-id", res.ListingID)
	assert.Equal(t, 2, store.listings["winner-id"].TimesSeen)
	assert.Equal(t, 0, store.inserts, "loser must not create a second row")
}
