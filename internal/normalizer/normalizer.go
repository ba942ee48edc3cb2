// Package normalizer turns raw adapter output into canonical listings.
// Everything here is pure: no I/O, no clock, no store access.
package normalizer

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"rentscout/internal/storage"
)

var (
	rentRe      = regexp.MustCompile(`\$?\s*([\d,]+)(?:\.\d+)?`)
	bedroomsRe  = regexp.MustCompile(`(?i)(\d+)\s*(?:bed|bd|br|bedroom)`)
	bathroomsRe = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(?:bath|ba|bathroom)?`)
	sqftRe      = regexp.MustCompile(`([\d,]+)\s*(?:sq\.?\s*ft|sqft|ft2)?`)
	studioRe    = regexp.MustCompile(`(?i)studio`)
	wsRe        = regexp.MustCompile(`\s+`)
	digitsRe    = regexp.MustCompile(`\d`)

	// "123 Market St, Philadelphia, PA 19103" and close variants.
	addressRe = regexp.MustCompile(`^(.+?),\s*([^,]+?),\s*([A-Za-z]{2})\.?\s*(\d{5})?(?:-\d{4})?$`)
)

// Street-suffix abbreviations expanded during standardization. Keys are
// matched case-insensitively against whole tokens.
var streetAbbrevs = map[string]string{
	"st":   "Street",
	"ave":  "Avenue",
	"av":   "Avenue",
	"blvd": "Boulevard",
	"rd":   "Road",
	"dr":   "Drive",
	"ln":   "Lane",
	"ct":   "Court",
	"pl":   "Place",
	"pkwy": "Parkway",
	"hwy":  "Highway",
	"ter":  "Terrace",
	"cir":  "Circle",
	"sq":   "Square",
	"n":    "North",
	"s":    "South",
	"e":    "East",
	"w":    "West",
}

var propertyTypes = map[string]storage.PropertyType{
	"apartment":     storage.PropertyApartment,
	"apt":           storage.PropertyApartment,
	"flat":          storage.PropertyApartment,
	"condo":         storage.PropertyCondo,
	"condominium":   storage.PropertyCondo,
	"house":         storage.PropertyHouse,
	"home":          storage.PropertyHouse,
	"single family": storage.PropertyHouse,
	"townhouse":     storage.PropertyTownhouse,
	"townhome":      storage.PropertyTownhouse,
	"rowhome":       storage.PropertyTownhouse,
	"row house":     storage.PropertyTownhouse,
	"studio":        storage.PropertyStudio,
	"loft":          storage.PropertyStudio,
}

var dateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"Jan 2 2006",
}

// Normalize validates a raw listing and standardizes it into a canonical
// draft. The draft has no id, content hash or freshness state; the
// deduplicator owns those. A missing or unparseable required field returns
// a ValidationError and nothing else.
func Normalize(raw storage.RawListing) (*storage.Listing, error) {
	address := collapseWhitespace(raw.Address)
	if address == "" {
		return nil, &storage.ValidationError{Field: "address", Reason: "empty"}
	}
	rent, ok := parseRent(raw.Rent)
	if !ok {
		return nil, &storage.ValidationError{Field: "rent", Reason: "not a positive dollar amount: " + raw.Rent}
	}
	bedrooms, ok := parseBedrooms(raw.Bedrooms)
	if !ok {
		return nil, &storage.ValidationError{Field: "bedrooms", Reason: "unparseable: " + raw.Bedrooms}
	}
	bathrooms, ok := parseBathrooms(raw.Bathrooms)
	if !ok {
		return nil, &storage.ValidationError{Field: "bathrooms", Reason: "unparseable: " + raw.Bathrooms}
	}

	street, city, state, zip := parseAddress(address)

	l := &storage.Listing{
		ExternalID:   raw.ExternalID,
		Source:       raw.Source,
		SourceURL:    strings.TrimSpace(raw.SourceURL),
		Address:      address,
		City:         city,
		State:        state,
		ZipCode:      zip,
		Neighborhood: collapseWhitespace(raw.Neighborhood),
		Rent:         rent,
		Bedrooms:     bedrooms,
		Bathrooms:    bathrooms,
		PropertyType: normalizePropertyType(raw.PropertyType),
		Description:  strings.TrimSpace(raw.Description),
		Amenities:    dedupeStrings(raw.Amenities),
		Images:       dedupeStrings(raw.Images),
	}

	// The normalized address is the hash input, so it is lowercased with
	// suffixes expanded. Street may be empty for unparseable addresses;
	// fall back to the full cleaned address so the hash stays stable.
	if street != "" {
		l.AddressNormalized = strings.ToLower(expandAbbrevs(street))
	} else {
		l.AddressNormalized = strings.ToLower(expandAbbrevs(address))
	}

	if sqft, ok := parseSqft(raw.Sqft); ok {
		l.Sqft = sqft
	}
	if d, ok := parseDate(raw.AvailableDate); ok {
		l.AvailableDate = d
	}
	if lat, lng, ok := parseCoords(raw.Latitude, raw.Longitude); ok {
		l.Latitude = &lat
		l.Longitude = &lng
	}

	l.DataQualityScore = qualityScore(l)
	return l, nil
}

// qualityScore is additive out of 100: 40 for the required fields (always
// earned once validation passes), 40 shared across nine optional fields,
// and four 5-point richness bonuses.
func qualityScore(l *storage.Listing) int {
	score := 40

	if l.City != "" {
		score += 5
	}
	if l.State != "" {
		score += 5
	}
	if l.ZipCode != "" {
		score += 4
	}
	if l.Neighborhood != "" {
		score += 4
	}
	if l.Sqft > 0 {
		score += 4
	}
	if l.AvailableDate != "" {
		score += 4
	}
	if l.Description != "" {
		score += 5
	}
	if len(l.Amenities) > 0 {
		score += 5
	}
	if len(l.Images) > 0 {
		score += 4
	}

	if len(l.Images) >= 3 {
		score += 5
	}
	if len(l.Amenities) >= 5 {
		score += 5
	}
	if l.Latitude != nil && l.Longitude != nil {
		score += 5
	}
	if l.SourceURL != "" {
		score += 5
	}
	return score
}

func parseRent(s string) (int, bool) {
	m := rentRe.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func parseBedrooms(s string) (int, bool) {
	if studioRe.MatchString(s) {
		return 0, true
	}
	if m := bedroomsRe.FindStringSubmatch(s); m != nil {
		n, err := strconv.Atoi(m[1])
		return n, err == nil
	}
	// Bare number, e.g. "2".
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func parseBathrooms(s string) (float64, bool) {
	m := bathroomsRe.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	f, err := strconv.ParseFloat(m[1], 64)
	if err != nil || f <= 0 {
		return 0, false
	}
	return f, true
}

func parseSqft(s string) (int, bool) {
	if !digitsRe.MatchString(s) {
		return 0, false
	}
	m := sqftRe.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func parseDate(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	if strings.EqualFold(s, "now") || strings.EqualFold(s, "available now") {
		return "", false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02"), true
		}
	}
	return "", false
}

func parseCoords(latS, lngS string) (float64, float64, bool) {
	lat, err := strconv.ParseFloat(strings.TrimSpace(latS), 64)
	if err != nil {
		return 0, 0, false
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(lngS), 64)
	if err != nil {
		return 0, 0, false
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return 0, 0, false
	}
	return lat, lng, true
}

// parseAddress splits "street, city, ST zip". Unparseable input returns
// only empty components; the caller keeps the raw address either way.
func parseAddress(address string) (street, city, state, zip string) {
	m := addressRe.FindStringSubmatch(address)
	if m == nil {
		return "", "", "", ""
	}
	street = titleCase(m[1])
	city = titleCase(m[2])
	state = strings.ToUpper(m[3])
	zip = m[4]
	return street, city, state, zip
}

func normalizePropertyType(s string) storage.PropertyType {
	key := strings.ToLower(collapseWhitespace(s))
	if pt, ok := propertyTypes[key]; ok {
		return pt
	}
	return storage.PropertyOther
}

func expandAbbrevs(s string) string {
	tokens := strings.Fields(s)
	for i, tok := range tokens {
		key := strings.ToLower(strings.TrimRight(tok, "."))
		if full, ok := streetAbbrevs[key]; ok {
			tokens[i] = full
		}
	}
	return strings.Join(tokens, " ")
}

func titleCase(s string) string {
	tokens := strings.Fields(strings.ToLower(s))
	for i, tok := range tokens {
		if len(tok) > 0 {
			tokens[i] = strings.ToUpper(tok[:1]) + tok[1:]
		}
	}
	return strings.Join(tokens, " ")
}

func collapseWhitespace(s string) string {
	return strings.TrimSpace(wsRe.ReplaceAllString(s, " "))
}

func dedupeStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		key := strings.ToLower(v)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, v)
	}
	return out
}
