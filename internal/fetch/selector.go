package fetch

import (
	"fmt"

	"github.com/jobsignal/engine/internal/jobs"
)

// Selector picks the fetcher matching a site's configured fetch mode.
type Selector struct {
	http     jobs.Fetcher
	headless jobs.Fetcher
}

// NewSelector builds a Selector. headless may be nil when no browser is
// available; selecting it then returns an error instead of a crash.
func NewSelector(httpFetcher, headlessFetcher jobs.Fetcher) *Selector {
	return &Selector{http: httpFetcher, headless: headlessFetcher}
}

// ForMode returns the fetcher for a site's fetch mode. An empty mode
// defaults to plain HTTP.
func (s *Selector) ForMode(mode jobs.FetchMode) (jobs.Fetcher, error) {
	switch mode {
	case jobs.FetchModeHTTP, "":
		return s.http, nil
	case jobs.FetchModeHeadless:
		if s.headless == nil {
			return nil, fmt.Errorf("headless fetch requested but no browser configured")
		}
		return s.headless, nil
	default:
		return nil, fmt.Errorf("unknown fetch mode %q", mode)
	}
}
