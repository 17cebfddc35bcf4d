package extract

import (
	"github.com/PuerkitoBio/goquery"

	"github.com/jobsignal/engine/internal/jobs"
)

// Selectors for the Freshersworld search results page. Verify against
// the live page source when extraction starts returning zero cards.
const (
	fwCard     = ".job-container"
	fwTitle    = "h3.latest-jobs-title a"
	fwCompany  = ".company-name"
	fwLocation = ".job-location, .location, .jobs-location"
	// Data attribute on the card element carrying the listing URL.
	fwURLAttr = "job_display_url"
)

// Freshersworld extracts listing cards from Freshersworld result pages.
type Freshersworld struct{}

// Extract implements jobs.Extractor. Incomplete cards are skipped
// rather than failing the page; zero cards is a valid result.
func (f *Freshersworld) Extract(doc []byte, baseURL string) ([]jobs.ListingCard, error) {
	d, err := parseDocument(doc)
	if err != nil {
		return nil, err
	}

	var cards []jobs.ListingCard
	d.Find(fwCard).Each(func(_ int, card *goquery.Selection) {
		title := text(card.Find(fwTitle))
		company := text(card.Find(fwCompany))
		location := text(card.Find(fwLocation))

		listingURL, _ := card.Attr(fwURLAttr)
		if listingURL == "" {
			href, _ := card.Find(fwTitle).First().Attr("href")
			listingURL = href
		}
		listingURL = absoluteURL(baseURL, listingURL)

		if location == "" {
			location = "India"
		}
		if title == "" || company == "" || listingURL == "" {
			return
		}

		cards = append(cards, jobs.ListingCard{
			RawTitle:    title,
			RawCompany:  company,
			RawLocation: location,
			ListingURL:  listingURL,
		})
	})
	return cards, nil
}
