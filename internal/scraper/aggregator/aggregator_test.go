package aggregator

import (
	"context"
	"testing"
	"time"

	"github.com/h2non/gock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentscout/internal/storage"
)

func testMarket() *storage.MarketConfig {
	return &storage.MarketConfig{
		ID:     "philadelphia-pa",
		City:   "Philadelphia",
		State:  "PA",
		Source: "zillow",
	}
}

func TestScrapeMapsListings(t *testing.T) {
	defer gock.Off()

	gock.New("https://api.vendor.test").
		Get("/v1/listings").
		MatchParam("city", "Philadelphia").
		MatchParam("state", "PA").
		MatchParam("limit", "10").
		MatchHeader("Authorization", "Bearer tok").
		Reply(200).
		JSON(map[string]interface{}{
			"listings": []map[string]interface{}{
				{
					"id":        "z-1",
					"url":       "https://example.com/z-1",
					"address":   "123 Market St, Philadelphia, PA 19103",
					"rent":      1850,
					"bedrooms":  2,
					"bathrooms": 1.5,
					"sqft":      950,
					"latitude":  39.9526,
					"longitude": -75.1652,
					"amenities": []string{"Gym"},
				},
				{
					"id":       "z-2",
					"address":  "45 Pine St, Philadelphia, PA 19106",
					"rent":     1200,
					"bedrooms": 0,
				},
			},
		})

	a := New("zillow", "https://api.vendor.test", "tok", 5*time.Second)
	gock.InterceptClient(a.Client().Underlying())
	defer gock.RestoreClient(a.Client().Underlying())

	raws, err := a.Scrape(context.Background(), testMarket(), 10)
	require.NoError(t, err)
	require.Len(t, raws, 2)

	assert.Equal(t, "zillow", raws[0].Source)
	assert.Equal(t, "z-1", raws[0].ExternalID)
	assert.Equal(t, "1850", raws[0].Rent)
	assert.Equal(t, "2", raws[0].Bedrooms)
	assert.Equal(t, "1.5", raws[0].Bathrooms)
	assert.Equal(t, "950", raws[0].Sqft)
	assert.Equal(t, "39.9526", raws[0].Latitude)

	assert.Equal(t, "0", raws[1].Bedrooms, "studio survives as explicit zero")
	assert.Empty(t, raws[1].Bathrooms)
	assert.Empty(t, raws[1].Latitude)
}

func TestScrapeUpstreamError(t *testing.T) {
	defer gock.Off()

	gock.New("https://api.vendor.test").
		Get("/v1/listings").
		Reply(503)

	a := New("zillow", "https://api.vendor.test", "tok", 5*time.Second)
	gock.InterceptClient(a.Client().Underlying())
	defer gock.RestoreClient(a.Client().Underlying())

	_, err := a.Scrape(context.Background(), testMarket(), 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestScrapeHonorsMaxListings(t *testing.T) {
	defer gock.Off()

	gock.New("https://api.vendor.test").
		Get("/v1/listings").
		Reply(200).
		JSON(map[string]interface{}{
			"listings": []map[string]interface{}{
				{"id": "z-1", "address": "a", "rent": 1000, "bedrooms": 1},
				{"id": "z-2", "address": "b", "rent": 1100, "bedrooms": 1},
				{"id": "z-3", "address": "c", "rent": 1200, "bedrooms": 1},
			},
		})

	a := New("zillow", "https://api.vendor.test", "tok", 5*time.Second)
	gock.InterceptClient(a.Client().Underlying())
	defer gock.RestoreClient(a.Client().Underlying())

	raws, err := a.Scrape(context.Background(), testMarket(), 2)
	require.NoError(t, err)
	assert.Len(t, raws, 2)
}
