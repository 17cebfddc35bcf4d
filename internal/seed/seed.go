// Package seed installs the minimum data the engine needs to crawl.
package seed

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/jobsignal/engine/internal/jobs"
)

type siteSeed struct {
	site      jobs.SourceSite
	targetURL string
}

// seeds lists the launch sites. Both serve static HTML the plain HTTP
// fetcher can read; two sites means multi-source confirmation and the
// conservative cross-site thresholds are exercised with real data.
var seeds = []siteSeed{
	{
		site: jobs.SourceSite{
			Name:                  "freshersworld",
			InactiveThresholdDays: 7,
			RepostThresholdDays:   30,
			ReliabilityWeight:     0.70,
			CrawlDelaySeconds:     3,
			MaxRetries:            2,
			CrawlEnabled:          true,
			FetchMode:             jobs.FetchModeHTTP,
		},
		targetURL: "https://www.freshersworld.com/jobs/jobsearch/java-developer-jobs-for-freshers",
	},
	{
		site: jobs.SourceSite{
			Name:                  "timesjobs",
			InactiveThresholdDays: 7,
			RepostThresholdDays:   30,
			ReliabilityWeight:     0.72,
			CrawlDelaySeconds:     4,
			MaxRetries:            2,
			CrawlEnabled:          true,
			FetchMode:             jobs.FetchModeHTTP,
		},
		targetURL: "https://www.timesjobs.com/candidate/job-search.html?searchType=personalizedSearch&from=submit&txtKeywords=java+backend+developer&txtLocation=",
	},
}

// Run seeds source sites and their crawl targets. It is idempotent:
// a site that already exists is left untouched, so restarts are safe.
func Run(ctx context.Context, store jobs.Store, clock jobs.Clock, logger *zap.Logger) error {
	for _, s := range seeds {
		if err := seedSite(ctx, store, clock, logger, s); err != nil {
			return err
		}
	}
	logger.Info("seeding complete, system ready to crawl")
	return nil
}

func seedSite(ctx context.Context, store jobs.Store, clock jobs.Clock, logger *zap.Logger, s siteSeed) error {
	_, err := store.SourceSiteByName(ctx, s.site.Name)
	if err == nil {
		logger.Debug("site already seeded", zap.String("site", s.site.Name))
		return nil
	}
	if !errors.Is(err, jobs.ErrNotFound) {
		return fmt.Errorf("lookup site %q: %w", s.site.Name, err)
	}

	return store.RunInTx(ctx, func(tx jobs.Store) error {
		site := s.site
		site.CreatedAt = clock.Now()
		created, err := tx.CreateSourceSite(ctx, site)
		if err != nil {
			return fmt.Errorf("create site %q: %w", site.Name, err)
		}
		if _, err := tx.CreateCrawlTarget(ctx, jobs.CrawlTarget{
			SourceSiteID: created.ID,
			URL:          s.targetURL,
			Active:       true,
		}); err != nil {
			return fmt.Errorf("create target for %q: %w", site.Name, err)
		}
		logger.Info("site seeded",
			zap.String("site", site.Name),
			zap.String("target", s.targetURL),
		)
		return nil
	})
}
