// Package aggregator implements the API-backed source adapter: listings
// come from a scraping-API vendor as JSON rather than a rendered page.
package aggregator

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"rentscout/internal/storage"
	pkghttp "rentscout/pkg/http"
)

// Adapter fetches listings for a market from an aggregator endpoint.
type Adapter struct {
	source  string
	baseURL string
	token   string
	client  *pkghttp.Client
}

func New(source, baseURL, token string, timeout time.Duration) *Adapter {
	return &Adapter{
		source:  source,
		baseURL: baseURL,
		token:   token,
		client:  pkghttp.NewClient(timeout),
	}
}

func (a *Adapter) Source() string { return a.source }

// Client exposes the HTTP client for test transports.
func (a *Adapter) Client() *pkghttp.Client { return a.client }

// apiListing is the vendor's wire format for one listing.
type apiListing struct {
	ID            string   `json:"id"`
	URL           string   `json:"url"`
	Address       string   `json:"address"`
	Rent          int      `json:"rent"`
	Bedrooms      int      `json:"bedrooms"`
	Bathrooms     float64  `json:"bathrooms"`
	Sqft          int      `json:"sqft"`
	PropertyType  string   `json:"property_type"`
	AvailableDate string   `json:"available_date"`
	Neighborhood  string   `json:"neighborhood"`
	Latitude      float64  `json:"latitude"`
	Longitude     float64  `json:"longitude"`
	Description   string   `json:"description"`
	Amenities     []string `json:"amenities"`
	Images        []string `json:"images"`
}

// Scrape calls the vendor and maps its records to raw listings. The raw
// record keeps everything as source text; the normalizer owns parsing.
func (a *Adapter) Scrape(ctx context.Context, market *storage.MarketConfig, maxListings int) ([]storage.RawListing, error) {
	q := url.Values{}
	q.Set("city", market.City)
	q.Set("state", market.State)
	if maxListings > 0 {
		q.Set("limit", strconv.Itoa(maxListings))
	}
	endpoint := fmt.Sprintf("%s/v1/listings?%s", a.baseURL, q.Encode())

	resp, err := a.client.Get(ctx, endpoint, map[string]string{
		"Authorization": "Bearer " + a.token,
		"Accept":        "application/json",
	})
	if err != nil {
		return nil, fmt.Errorf("aggregator request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("aggregator returned %d", resp.StatusCode)
	}

	var payload struct {
		Listings []apiListing `json:"listings"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode aggregator response: %w", err)
	}

	raws := make([]storage.RawListing, 0, len(payload.Listings))
	for _, l := range payload.Listings {
		if maxListings > 0 && len(raws) >= maxListings {
			break
		}
		raws = append(raws, toRaw(a.source, l))
	}
	return raws, nil
}

func toRaw(source string, l apiListing) storage.RawListing {
	raw := storage.RawListing{
		Source:        source,
		ExternalID:    l.ID,
		SourceURL:     l.URL,
		Address:       l.Address,
		PropertyType:  l.PropertyType,
		AvailableDate: l.AvailableDate,
		Neighborhood:  l.Neighborhood,
		Description:   l.Description,
		Amenities:     l.Amenities,
		Images:        l.Images,
	}
	if l.Rent > 0 {
		raw.Rent = strconv.Itoa(l.Rent)
	}
	raw.Bedrooms = strconv.Itoa(l.Bedrooms)
	if l.Bathrooms > 0 {
		raw.Bathrooms = strconv.FormatFloat(l.Bathrooms, 'f', -1, 64)
	}
	if l.Sqft > 0 {
		raw.Sqft = strconv.Itoa(l.Sqft)
	}
	if l.Latitude != 0 || l.Longitude != 0 {
		raw.Latitude = strconv.FormatFloat(l.Latitude, 'f', -1, 64)
		raw.Longitude = strconv.FormatFloat(l.Longitude, 'f', -1, 64)
	}
	return raw
}
