package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"rentscout/internal/storage"
)

var scoreNow = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func intPtr(n int) *int { return &n }

func baseListing() *storage.Listing {
	return &storage.Listing{
		ID:                  "l1",
		Rent:                1800,
		Bedrooms:            1,
		Bathrooms:           1,
		Sqft:                700,
		DataQualityScore:    80,
		FreshnessConfidence: 100,
		LastSeenAt:          scoreNow.Add(-2 * time.Hour),
		Amenities:           []string{"In-unit laundry", "Garage parking", "Dog park"},
	}
}

func baseCriteria() *storage.SearchCriteria {
	return &storage.SearchCriteria{
		City:      "Philadelphia",
		Budget:    2000,
		Bedrooms:  intPtr(1),
		Bathrooms: 1,
	}
}

func TestBudgetFitCurve(t *testing.T) {
	tests := []struct {
		name string
		rent int
		want float64
	}{
		{"well under budget", 1500, 100},
		{"exactly at budget", 2000, 100},
		{"five percent over", 2100, 95},
		{"seven and a half percent over", 2150, 92.5},
		{"ten percent over", 2200, 0},
		{"far over", 2400, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, budgetFit(tc.rent, 2000), 0.001)
		})
	}
}

func TestScoreOverBudgetRanksLower(t *testing.T) {
	under := baseListing()
	over := baseListing()
	over.Rent = 2150

	c := baseCriteria()
	assert.Greater(t, Score(under, c, scoreNow), Score(over, c, scoreNow))
}

func TestFreshnessComponent(t *testing.T) {
	l := baseListing()
	assert.InDelta(t, 100, freshnessComponent(l, scoreNow), 0.001)

	l.FreshnessConfidence = 50
	assert.InDelta(t, 65, freshnessComponent(l, scoreNow), 0.001)

	l.FreshnessConfidence = 0
	l.LastSeenAt = scoreNow.Add(-15 * 24 * time.Hour)
	assert.InDelta(t, 0, freshnessComponent(l, scoreNow), 0.001)
}

func TestAmenityMatch(t *testing.T) {
	amenities := []string{"In-unit laundry", "Garage parking"}

	tests := []struct {
		name        string
		preferences string
		want        float64
	}{
		{"no preferences is neutral", "", 100},
		{"all requested present", "need laundry and parking", 100},
		{"half present", "laundry and a pool", 50},
		{"none present", "gym and pool", 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, amenityMatch(tc.preferences, amenities), 0.001)
		})
	}
}

func TestExtractCategories(t *testing.T) {
	cats := extractCategories("dog friendly place near the subway with a washer")
	assert.ElementsMatch(t, []string{"pet", "transit", "laundry"}, cats)

	assert.Nil(t, extractCategories("   "))
	assert.Nil(t, extractCategories("quiet street please"))
}

func TestSpaceFit(t *testing.T) {
	l := baseListing()
	c := baseCriteria()
	assert.InDelta(t, 100, spaceFit(l, c), 0.001)

	l.Sqft = 0
	assert.InDelta(t, 60, spaceFit(l, c), 0.001)

	l.Bedrooms = 2
	assert.InDelta(t, 30, spaceFit(l, c), 0.001)

	l.Bathrooms = 0.5
	assert.InDelta(t, 0, spaceFit(l, c), 0.001)

	// Unconstrained criteria count as satisfied.
	loose := &storage.SearchCriteria{Budget: 2000}
	assert.InDelta(t, 60, spaceFit(l, loose), 0.001)
}

func TestScoreBoundsAndDeterminism(t *testing.T) {
	l := baseListing()
	c := baseCriteria()

	s := Score(l, c, scoreNow)
	assert.GreaterOrEqual(t, s, 0)
	assert.LessOrEqual(t, s, 100)
	assert.Equal(t, s, Score(l, c, scoreNow), "same inputs, same score")

	// Everything perfect scores 100.
	assert.Equal(t, 100, perfectScore(t))
}

func perfectScore(t *testing.T) int {
	t.Helper()
	l := baseListing()
	l.DataQualityScore = 100
	c := baseCriteria()
	c.Preferences = "laundry and parking, dog friendly"
	return Score(l, c, scoreNow)
}

func TestLabel(t *testing.T) {
	tests := []struct {
		score int
		want  string
	}{
		{95, "Excellent"},
		{90, "Excellent"},
		{80, "Great"},
		{64, "Good"},
		{40, "Fair"},
		{39, ""},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, Label(tc.score), "score %d", tc.score)
	}
}
