// Package scoring ranks listings against search criteria with a weighted
// heuristic. Pure and deterministic: the clock is an explicit argument.
package scoring

import (
	"math"
	"strings"
	"time"

	"rentscout/internal/storage"
)

// Component weights, summing to 100.
const (
	weightBudget    = 30
	weightFreshness = 20
	weightQuality   = 15
	weightAmenity   = 20
	weightSpace     = 15
)

// budgetCeiling is the relative overshoot beyond which a listing scores
// zero on budget fit. The search filter excludes anything past it upstream.
const budgetCeiling = 0.10

// amenityCategories maps each requestable category to the keywords that
// signal it, both in free-text preferences and in listing amenity entries.
var amenityCategories = map[string][]string{
	"pet":       {"pet", "dog", "cat"},
	"parking":   {"parking", "garage", "carport"},
	"laundry":   {"laundry", "washer", "dryer"},
	"gym":       {"gym", "fitness"},
	"pool":      {"pool"},
	"transit":   {"transit", "subway", "metro", "bus", "train"},
	"outdoor":   {"balcony", "patio", "yard", "deck", "outdoor", "roof"},
	"security":  {"security", "doorman", "gated", "secure"},
	"storage":   {"storage"},
	"utilities": {"utilities", "heat included", "water included"},
}

// Score rates one listing against the criteria on a 0..100 scale.
func Score(l *storage.Listing, c *storage.SearchCriteria, now time.Time) int {
	total := float64(weightBudget)*budgetFit(l.Rent, c.Budget) +
		float64(weightFreshness)*freshnessComponent(l, now) +
		float64(weightQuality)*float64(l.DataQualityScore) +
		float64(weightAmenity)*amenityMatch(c.Preferences, l.Amenities) +
		float64(weightSpace)*spaceFit(l, c)

	score := int(math.Round(total / 100))
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// budgetFit is 100 at or under budget, drops a point per percent of
// overshoot, and is zero at or past the 10% ceiling.
func budgetFit(rent, budget int) float64 {
	if budget <= 0 || rent <= budget {
		return 100
	}
	overshoot := float64(rent-budget) / float64(budget)
	if overshoot >= budgetCeiling {
		return 0
	}
	return 100 - overshoot*100
}

// freshnessComponent blends stored confidence (70%) with recency of the
// last sighting (30%). Recency is full within a day and fades to nothing
// at two weeks.
func freshnessComponent(l *storage.Listing, now time.Time) float64 {
	conf := float64(l.FreshnessConfidence)

	hours := now.Sub(l.LastSeenAt).Hours()
	var recency float64
	switch {
	case hours <= 24:
		recency = 100
	case hours >= 14*24:
		recency = 0
	default:
		recency = 100 * (14*24 - hours) / (14*24 - 24)
	}
	return 0.7*conf + 0.3*recency
}

// amenityMatch extracts requested categories from free-text preferences and
// scores the fraction the listing satisfies. No requested categories means
// the component is neutral at 100.
func amenityMatch(preferences string, amenities []string) float64 {
	requested := extractCategories(preferences)
	if len(requested) == 0 {
		return 100
	}

	haystack := strings.ToLower(strings.Join(amenities, " "))
	matched := 0
	for _, cat := range requested {
		for _, kw := range amenityCategories[cat] {
			if strings.Contains(haystack, kw) {
				matched++
				break
			}
		}
	}
	return float64(matched) / float64(len(requested)) * 100
}

func extractCategories(preferences string) []string {
	text := strings.ToLower(preferences)
	if strings.TrimSpace(text) == "" {
		return nil
	}
	var out []string
	for cat, keywords := range amenityCategories {
		for _, kw := range keywords {
			if strings.Contains(text, kw) {
				out = append(out, cat)
				break
			}
		}
	}
	return out
}

// spaceFit awards 40 for known square footage, 30 for an exact bedroom
// match and 30 for bathrooms meeting the request. Unconstrained criteria
// score as satisfied.
func spaceFit(l *storage.Listing, c *storage.SearchCriteria) float64 {
	score := 0.0
	if l.Sqft > 0 {
		score += 40
	}
	if c.Bedrooms == nil || l.Bedrooms == *c.Bedrooms {
		score += 30
	}
	if c.Bathrooms <= 0 || l.Bathrooms >= c.Bathrooms {
		score += 30
	}
	return score
}

// Label maps a heuristic score to the qualitative label shown to callers
// outside the AI-reranked tier. Scores under 40 get no label.
func Label(score int) string {
	switch {
	case score >= 90:
		return "Excellent"
	case score >= 75:
		return "Great"
	case score >= 60:
		return "Good"
	case score >= 40:
		return "Fair"
	default:
		return ""
	}
}
