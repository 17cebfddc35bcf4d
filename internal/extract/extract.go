// Package extract turns fetched HTML into raw listing cards. Each site
// gets its own extractor; one generic parser with fallback selectors
// across sites would be fragile, so adding a site means adding one
// extractor and one registry entry.
package extract

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jobsignal/engine/internal/jobs"
)

// ErrStructure marks structural parse breakage, as opposed to a page
// that simply holds no matching content. Callers map it to a
// PARSE_FAIL attempt; an empty card list is not an error.
var ErrStructure = errors.New("document structure not understood")

// ErrUnknownSite is returned when no extractor is registered for a
// site name.
var ErrUnknownSite = errors.New("no extractor for site")

// Registry maps site names to their extractors.
type Registry struct {
	bySite map[string]jobs.Extractor
}

// NewRegistry builds the registry of all known site extractors.
func NewRegistry() *Registry {
	r := &Registry{bySite: make(map[string]jobs.Extractor)}
	r.Register("freshersworld", &Freshersworld{})
	r.Register("timesjobs", &TimesJobs{})
	return r
}

// Register adds or replaces the extractor for a site name.
func (r *Registry) Register(name string, e jobs.Extractor) {
	r.bySite[strings.ToLower(name)] = e
}

// ForSite returns the extractor for a site name, case-insensitively.
func (r *Registry) ForSite(name string) (jobs.Extractor, error) {
	e, ok := r.bySite[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSite, name)
	}
	return e, nil
}

// parseDocument wraps goquery parsing, tagging failures as structural.
func parseDocument(doc []byte) (*goquery.Document, error) {
	d, err := goquery.NewDocumentFromReader(strings.NewReader(string(doc)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStructure, err)
	}
	return d, nil
}

// absoluteURL resolves href against base. A href that is already
// absolute passes through unchanged.
func absoluteURL(baseURL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if ref.IsAbs() {
		return ref.String()
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}

func text(sel *goquery.Selection) string {
	return strings.TrimSpace(sel.First().Text())
}
