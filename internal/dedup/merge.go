package dedup

import (
	"strings"

	"rentscout/internal/storage"
)

// Merge folds a losing duplicate into the surviving record, field by field.
// The survivor keeps its identity fields (id, address, rent, content hash);
// the loser only ever fills gaps or adds unique images, amenities and the
// longer description. Pure: mutates survivor in place, never touches the
// store.
func Merge(survivor, loser *storage.Listing) *storage.Listing {
	survivor.Images = unionStrings(survivor.Images, loser.Images)
	survivor.Amenities = unionStrings(survivor.Amenities, loser.Amenities)

	if len(loser.Description) > len(survivor.Description) {
		survivor.Description = loser.Description
	}
	if survivor.City == "" {
		survivor.City = loser.City
	}
	if survivor.State == "" {
		survivor.State = loser.State
	}
	if survivor.ZipCode == "" {
		survivor.ZipCode = loser.ZipCode
	}
	if survivor.Neighborhood == "" {
		survivor.Neighborhood = loser.Neighborhood
	}
	if survivor.Sqft == 0 {
		survivor.Sqft = loser.Sqft
	}
	if survivor.AvailableDate == "" {
		survivor.AvailableDate = loser.AvailableDate
	}
	if survivor.SourceURL == "" {
		survivor.SourceURL = loser.SourceURL
	}
	if survivor.Latitude == nil {
		survivor.Latitude = loser.Latitude
		survivor.Longitude = loser.Longitude
	}
	if survivor.PropertyType == storage.PropertyOther && loser.PropertyType != storage.PropertyOther {
		survivor.PropertyType = loser.PropertyType
	}
	if loser.DataQualityScore > survivor.DataQualityScore {
		survivor.DataQualityScore = loser.DataQualityScore
	}
	return survivor
}

func unionStrings(a, b []string) []string {
	seen := make(map[string]bool, len(a))
	out := make([]string, 0, len(a)+len(b))
	for _, v := range a {
		key := normKey(v)
		if !seen[key] {
			seen[key] = true
			out = append(out, v)
		}
	}
	for _, v := range b {
		key := normKey(v)
		if !seen[key] {
			seen[key] = true
			out = append(out, v)
		}
	}
	return out
}

func normKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
