// Package browser implements the rendered-page source adapter. Some
// sources only expose listings through a JavaScript-heavy search page, so
// this adapter drives a headless browser and extracts the listing cards
// from the DOM.
package browser

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"rentscout/internal/storage"
)

const pageTimeout = 90 * time.Second

// Adapter scrapes one source's search pages through headless Chrome.
type Adapter struct {
	source    string
	baseURL   string
	chromeBin string
}

func New(source, baseURL, chromeBin string) *Adapter {
	return &Adapter{
		source:    source,
		baseURL:   strings.TrimRight(baseURL, "/"),
		chromeBin: chromeBin,
	}
}

func (a *Adapter) Source() string { return a.source }

// card is what the in-page extraction script returns per listing.
type card struct {
	URL       string   `json:"url"`
	Address   string   `json:"address"`
	Rent      string   `json:"rent"`
	Beds      string   `json:"beds"`
	Baths     string   `json:"baths"`
	Sqft      string   `json:"sqft"`
	Amenities []string `json:"amenities"`
	Images    []string `json:"images"`
}

// Scrape loads the market's search page and extracts up to maxListings
// listing cards.
func (a *Adapter) Scrape(ctx context.Context, market *storage.MarketConfig, maxListings int) ([]storage.RawListing, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent("Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 "+
			"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
	)
	if a.chromeBin != "" {
		opts = append(opts, chromedp.ExecPath(a.chromeBin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(string, ...interface{}) {}))
	defer cancelBrowser()

	runCtx, cancelTimeout := context.WithTimeout(browserCtx, pageTimeout)
	defer cancelTimeout()

	pageURL := a.searchURL(market)
	log.Printf("[Browser] Scraping %s", pageURL)

	var cards []card
	err := chromedp.Run(runCtx,
		chromedp.Navigate(pageURL),
		chromedp.Sleep(5*time.Second),

		// Scroll so lazy-loaded cards render.
		chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight / 2)`, nil),
		chromedp.Sleep(2*time.Second),
		chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil),
		chromedp.Sleep(2*time.Second),

		chromedp.Evaluate(extractScript(maxListings), &cards),
	)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", pageURL, err)
	}
	if len(cards) == 0 {
		return nil, fmt.Errorf("no listing cards found at %s", pageURL)
	}

	raws := make([]storage.RawListing, 0, len(cards))
	for _, c := range cards {
		raws = append(raws, a.cardToRaw(c))
	}
	log.Printf("[Browser] Extracted %d cards from %s", len(raws), pageURL)
	return raws, nil
}

// searchURL builds the market's search page, e.g.
// https://www.apartments.com/philadelphia-pa/.
func (a *Adapter) searchURL(market *storage.MarketConfig) string {
	slug := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(market.City), " ", "-"))
	state := strings.ToLower(strings.TrimSpace(market.State))
	return fmt.Sprintf("%s/%s-%s/", a.baseURL, slug, state)
}

func (a *Adapter) cardToRaw(c card) storage.RawListing {
	return storage.RawListing{
		Source:    a.source,
		SourceURL: c.URL,
		Address:   c.Address,
		Rent:      c.Rent,
		Bedrooms:  c.Beds,
		Bathrooms: c.Baths,
		Sqft:      c.Sqft,
		Amenities: c.Amenities,
		Images:    c.Images,
	}
}

// extractScript pulls listing cards out of the rendered DOM. Selectors are
// tried from most to least specific because the target sites rotate their
// markup.
func extractScript(limit int) string {
	return fmt.Sprintf(`
		(function() {
			var results = [];
			var limit = %d;
			if (limit <= 0) limit = 100;

			var cardSelectors = [
				'article[data-listingid]',
				'li.mortar-wrapper article',
				'div[data-testid="property-card"]',
				'article.placard'
			];
			var cards = [];
			for (var si = 0; si < cardSelectors.length; si++) {
				cards = document.querySelectorAll(cardSelectors[si]);
				if (cards.length > 0) break;
			}

			var seen = {};
			for (var i = 0; i < cards.length && results.length < limit; i++) {
				var el = cards[i];

				var linkEl = el.querySelector('a[href]');
				var url = linkEl ? linkEl.href : '';
				if (!url || seen[url]) continue;
				seen[url] = true;

				var addrEl = el.querySelector('.property-address') ||
				             el.querySelector('[data-testid="property-address"]') ||
				             el.querySelector('.property-title');
				var address = addrEl ? (addrEl.title || addrEl.innerText).trim() : '';

				var rentEl = el.querySelector('.property-pricing') ||
				             el.querySelector('.price-range') ||
				             el.querySelector('[data-testid="price"]');
				var rent = rentEl ? rentEl.innerText.trim() : '';

				var bedsEl = el.querySelector('.property-beds') ||
				             el.querySelector('.bed-range') ||
				             el.querySelector('[data-testid="beds"]');
				var bedsText = bedsEl ? bedsEl.innerText.trim() : '';

				var beds = '', baths = '', sqft = '';
				var parts = bedsText.split(/[,|]/);
				for (var p = 0; p < parts.length; p++) {
					var part = parts[p].trim();
					if (/bed|studio/i.test(part)) beds = part;
					else if (/bath/i.test(part)) baths = part;
					else if (/sq\s*\.?\s*ft/i.test(part)) sqft = part;
				}

				var amenities = [];
				el.querySelectorAll('.property-amenities span, [data-testid="amenity"]').forEach(function(am) {
					var text = am.innerText.trim();
					if (text) amenities.push(text);
				});

				var images = [];
				el.querySelectorAll('img[src]').forEach(function(img) {
					if (img.src && img.src.indexOf('http') === 0) images.push(img.src);
				});

				results.push({
					url: url,
					address: address,
					rent: rent,
					beds: beds,
					baths: baths,
					sqft: sqft,
					amenities: amenities,
					images: images
				});
			}
			return results;
		})()
	`, limit)
}
