package extract

import (
	"github.com/PuerkitoBio/goquery"

	"github.com/jobsignal/engine/internal/jobs"
)

// Selectors for the TimesJobs search results page. The title has a
// primary and an alternate selector because the site serves both
// markups.
const (
	tjCard     = "li.clearfix.job-bx"
	tjTitle    = "h2 a.jobTitle"
	tjTitleAlt = "h2.job-tittle a"
	tjCompany  = "h3.joblist-comp-name"
	// First span in the detail list is the location.
	tjLocation = "ul.top-jd-dtl li span"
)

// TimesJobs extracts listing cards from TimesJobs result pages.
type TimesJobs struct{}

// Extract implements jobs.Extractor.
func (t *TimesJobs) Extract(doc []byte, baseURL string) ([]jobs.ListingCard, error) {
	d, err := parseDocument(doc)
	if err != nil {
		return nil, err
	}

	var cards []jobs.ListingCard
	d.Find(tjCard).Each(func(_ int, card *goquery.Selection) {
		titleSel := card.Find(tjTitle)
		if titleSel.Length() == 0 {
			titleSel = card.Find(tjTitleAlt)
		}
		title := text(titleSel)
		company := text(card.Find(tjCompany))
		location := text(card.Find(tjLocation))
		if location == "" {
			location = "India"
		}

		href, _ := titleSel.First().Attr("href")
		listingURL := absoluteURL(baseURL, href)

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
