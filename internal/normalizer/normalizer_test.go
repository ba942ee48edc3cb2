package normalizer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentscout/internal/storage"
)

func fullRaw() storage.RawListing {
	return storage.RawListing{
		Source:        "apartments_com",
		ExternalID:    "apt-123",
		SourceURL:     "https://example.com/apt-123",
		Address:       "123 Market St, Philadelphia, PA 19103",
		Rent:          "$1,850/mo",
		Bedrooms:      "2 bd",
		Bathrooms:     "1.5 ba",
		Sqft:          "950 sqft",
		PropertyType:  "apartment",
		AvailableDate: "2026-10-01",
		Neighborhood:  "Center City",
		Latitude:      "39.9526",
		Longitude:     "-75.1652",
		Description:   "Bright corner unit with hardwood floors.",
		Amenities:     []string{"Dishwasher", "In-unit laundry", "Gym", "Roof deck", "Pet friendly"},
		Images:        []string{"a.jpg", "b.jpg", "c.jpg"},
	}
}

func TestNormalizeFullListing(t *testing.T) {
	l, err := Normalize(fullRaw())
	require.NoError(t, err)

	assert.Equal(t, "123 Market St, Philadelphia, PA 19103", l.Address)
	assert.Equal(t, "123 market street", l.AddressNormalized)
	assert.Equal(t, "Philadelphia", l.City)
	assert.Equal(t, "PA", l.State)
	assert.Equal(t, "19103", l.ZipCode)
	assert.Equal(t, 1850, l.Rent)
	assert.Equal(t, 2, l.Bedrooms)
	assert.Equal(t, 1.5, l.Bathrooms)
	assert.Equal(t, 950, l.Sqft)
	assert.Equal(t, storage.PropertyApartment, l.PropertyType)
	assert.Equal(t, "2026-10-01", l.AvailableDate)
	require.NotNil(t, l.Latitude)
	assert.InDelta(t, 39.9526, *l.Latitude, 0.0001)
}

func TestNormalizeMissingRequiredFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*storage.RawListing)
		field  string
	}{
		{"no address", func(r *storage.RawListing) { r.Address = "  " }, "address"},
		{"no rent", func(r *storage.RawListing) { r.Rent = "" }, "rent"},
		{"garbage rent", func(r *storage.RawListing) { r.Rent = "call for price" }, "rent"},
		{"no bedrooms", func(r *storage.RawListing) { r.Bedrooms = "" }, "bedrooms"},
		{"no bathrooms", func(r *storage.RawListing) { r.Bathrooms = "n/a" }, "bathrooms"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			raw := fullRaw()
			tc.mutate(&raw)

			l, err := Normalize(raw)
			assert.Nil(t, l)
			require.Error(t, err)
			assert.True(t, errors.Is(err, storage.ErrMissingRequiredField))

			var verr *storage.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tc.field, verr.Field)
		})
	}
}

func TestNormalizeStudio(t *testing.T) {
	raw := fullRaw()
	raw.Bedrooms = "Studio"
	raw.PropertyType = "studio"

	l, err := Normalize(raw)
	require.NoError(t, err)
	assert.Equal(t, 0, l.Bedrooms)
	assert.Equal(t, storage.PropertyStudio, l.PropertyType)
}

func TestNormalizeUnparseableAddressStillPasses(t *testing.T) {
	raw := fullRaw()
	raw.Address = "Corner of 5th and Main"

	l, err := Normalize(raw)
	require.NoError(t, err)
	assert.Empty(t, l.City)
	assert.Empty(t, l.State)
	assert.Empty(t, l.ZipCode)
	assert.Equal(t, "corner of 5th and main", l.AddressNormalized)
}

func TestNormalizeUnknownPropertyType(t *testing.T) {
	raw := fullRaw()
	raw.PropertyType = "yurt"

	l, err := Normalize(raw)
	require.NoError(t, err)
	assert.Equal(t, storage.PropertyOther, l.PropertyType)
}

func TestQualityScoreFullListingIsExactly100(t *testing.T) {
	l, err := Normalize(fullRaw())
	require.NoError(t, err)
	assert.Equal(t, 100, l.DataQualityScore)
}

func TestQualityScoreMinimalListing(t *testing.T) {
	raw := storage.RawListing{
		Address:   "Corner of 5th and Main",
		Rent:      "1200",
		Bedrooms:  "1",
		Bathrooms: "1",
	}
	l, err := Normalize(raw)
	require.NoError(t, err)
	assert.Equal(t, 40, l.DataQualityScore)
}

// The first image earns the optional share on its own; the 3-image
// richness bonus stacks on top of it.
func TestQualityScoreImagePresenceCounts(t *testing.T) {
	raw := storage.RawListing{
		Address:   "Corner of 5th and Main",
		Rent:      "1200",
		Bedrooms:  "1",
		Bathrooms: "1",
	}
	base, err := Normalize(raw)
	require.NoError(t, err)

	raw.Images = []string{"a.jpg"}
	one, err := Normalize(raw)
	require.NoError(t, err)
	assert.Equal(t, base.DataQualityScore+4, one.DataQualityScore)

	raw.Images = []string{"a.jpg", "b.jpg", "c.jpg"}
	three, err := Normalize(raw)
	require.NoError(t, err)
	assert.Equal(t, base.DataQualityScore+9, three.DataQualityScore)
}

// Adding data never lowers the score.
func TestQualityScoreMonotonic(t *testing.T) {
	raw := storage.RawListing{
		Address:   "Corner of 5th and Main",
		Rent:      "1200",
		Bedrooms:  "1",
		Bathrooms: "1",
	}
	base, err := Normalize(raw)
	require.NoError(t, err)
	prev := base.DataQualityScore

	additions := []func(*storage.RawListing){
		func(r *storage.RawListing) { r.Address = "500 Main St, Austin, TX 78701" },
		func(r *storage.RawListing) { r.Neighborhood = "Downtown" },
		func(r *storage.RawListing) { r.Sqft = "800" },
		func(r *storage.RawListing) { r.AvailableDate = "2026-09-15" },
		func(r *storage.RawListing) { r.Description = "Nice place" },
		func(r *storage.RawListing) { r.Amenities = []string{"parking"} },
		func(r *storage.RawListing) {
			r.Amenities = append(r.Amenities, "gym", "pool", "laundry", "dishwasher")
		},
		func(r *storage.RawListing) { r.Images = []string{"a.jpg", "b.jpg", "c.jpg"} },
		func(r *storage.RawListing) { r.Latitude, r.Longitude = "30.27", "-97.74" },
		func(r *storage.RawListing) { r.SourceURL = "https://example.com/x" },
	}
	for _, add := range additions {
		add(&raw)
		l, err := Normalize(raw)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, l.DataQualityScore, prev)
		prev = l.DataQualityScore
	}
	assert.Equal(t, 100, prev)
}

func TestDedupeStrings(t *testing.T) {
	got := dedupeStrings([]string{" Gym ", "gym", "", "Pool", "GYM"})
	assert.Equal(t, []string{"Gym", "Pool"}, got)
}

func TestParseRentVariants(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"$2,150", 2150, true},
		{"1800", 1800, true},
		{"$1,995.00 / month", 1995, true},
		{"free", 0, false},
		{"", 0, false},
	}
	for _, tc := range tests {
		got, ok := parseRent(tc.in)
		assert.Equal(t, tc.ok, ok, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}
