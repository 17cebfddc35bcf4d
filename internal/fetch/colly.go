// Package fetch retrieves listing pages. Two strategies exist: a plain
// HTTP fetcher for server-rendered sites and a headless browser for
// sites that only render cards client-side.
package fetch

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/jobsignal/engine/internal/jobs"
)

// defaultUserAgent is a realistic browser string; job boards answer
// differently to obvious bots.
const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

const defaultTimeout = 15 * time.Second

// HTTPConfig controls the plain HTTP fetcher.
type HTTPConfig struct {
	UserAgent string
	Timeout   time.Duration
}

// HTTPFetcher implements jobs.Fetcher with a Colly collector.
type HTTPFetcher struct {
	cfg           HTTPConfig
	baseCollector *colly.Collector
}

// NewHTTP builds an HTTPFetcher.
func NewHTTP(cfg HTTPConfig) *HTTPFetcher {
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	c := colly.NewCollector(colly.Async(false))
	c.WithTransport(newHTTPTransport())
	c.IgnoreRobotsTxt = false

	return &HTTPFetcher{cfg: cfg, baseCollector: c}
}

// Fetch executes a single GET and returns the response body. A non-2xx
// status surfaces as an error so retry handling stays in the caller.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (jobs.FetchResult, error) {
	var (
		result   jobs.FetchResult
		fetchErr error
	)
	start := time.Now()

	collector := f.baseCollector.Clone()
	collector.UserAgent = f.cfg.UserAgent
	collector.SetRequestTimeout(f.cfg.Timeout)

	collector.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		r.Headers.Set("Accept-Language", "en-US,en;q=0.9")
	})
	collector.OnResponse(func(r *colly.Response) {
		result = jobs.FetchResult{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
		}
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil {
			result.StatusCode = r.StatusCode
		}
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return jobs.FetchResult{}, fmt.Errorf("fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return result, fmt.Errorf("visit %s: %w", url, err)
		}
		if fetchErr != nil {
			return result, fmt.Errorf("fetch %s: %w", url, fetchErr)
		}
		return result, nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
