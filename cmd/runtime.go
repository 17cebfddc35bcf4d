package cmd

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jobsignal/engine/internal/clock/system"
	"github.com/jobsignal/engine/internal/config"
	"github.com/jobsignal/engine/internal/crawl"
	"github.com/jobsignal/engine/internal/evidence"
	"github.com/jobsignal/engine/internal/extract"
	"github.com/jobsignal/engine/internal/fetch"
	"github.com/jobsignal/engine/internal/jobs"
	"github.com/jobsignal/engine/internal/lifecycle"
	"github.com/jobsignal/engine/internal/logging"
	"github.com/jobsignal/engine/internal/metrics"
	"github.com/jobsignal/engine/internal/resolve"
	"github.com/jobsignal/engine/internal/seed"
	"github.com/jobsignal/engine/internal/skills"
	memorystore "github.com/jobsignal/engine/internal/store/memory"
	postgresstore "github.com/jobsignal/engine/internal/store/postgres"
)

// runtime holds the fully wired engine services shared by the serve
// and crawl commands.
type runtime struct {
	cfg       config.Config
	logger    *zap.Logger
	store     jobs.Store
	lifecycle *lifecycle.Engine
	worker    *crawl.Worker
	scheduler *crawl.Scheduler

	pg       *postgresstore.Store
	headless *fetch.HeadlessFetcher
}

// newRuntime loads config, connects storage, and wires the crawl
// pipeline. Callers must invoke close when finished.
func newRuntime(ctx context.Context) (*runtime, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	zap.ReplaceGlobals(logger)

	metrics.Init()

	rt := &runtime{cfg: cfg, logger: logger}

	clock := system.New()

	if cfg.DB.DSN != "" {
		pg, err := postgresstore.New(ctx, postgresstore.Config{
			DSN:             cfg.DB.DSN,
			MaxConns:        int32(cfg.DB.MaxConns),
			MinConns:        int32(cfg.DB.MinConns),
			MaxConnLifetime: cfg.ConnLifetime(),
		})
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			pg.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		rt.pg = pg
		rt.store = pg
		logger.Info("using postgres store")
	} else {
		rt.store = memorystore.New()
		logger.Warn("db.dsn not set, using in-memory store")
	}

	if err := seed.Run(ctx, rt.store, clock, logger); err != nil {
		rt.close()
		return nil, fmt.Errorf("seed sites: %w", err)
	}

	httpFetcher := fetch.NewHTTP(fetch.HTTPConfig{
		UserAgent: cfg.Crawler.UserAgent,
		Timeout:   cfg.HTTPTimeout(),
	})
	var headlessFetcher jobs.Fetcher
	if cfg.Headless.Enabled {
		hf, err := fetch.NewHeadless(fetch.HeadlessConfig{
			MaxParallel:       cfg.Headless.MaxParallel,
			UserAgent:         cfg.Crawler.UserAgent,
			NavigationTimeout: time.Duration(cfg.Headless.NavTimeoutSec) * time.Second,
		})
		if err != nil {
			logger.Warn("headless fetcher init failed", zap.Error(err))
		} else {
			rt.headless = hf
			headlessFetcher = hf
		}
	}

	resolver := resolve.New(rt.store, clock, logger)
	recorder := evidence.New(rt.store, clock, logger)
	skillExtractor := skills.New(rt.store, logger)

	rt.lifecycle = lifecycle.New(rt.store, clock, logger)
	rt.worker = crawl.NewWorker(
		rt.store,
		resolver,
		recorder,
		skillExtractor,
		extract.NewRegistry(),
		fetch.NewSelector(httpFetcher, headlessFetcher),
		clock,
		nil,
		logger,
	)
	rt.scheduler = crawl.NewScheduler(rt.store, rt.worker, cfg.SchedulerInterval(), logger)

	return rt, nil
}

func (rt *runtime) close() {
	if rt.headless != nil {
		rt.headless.Close()
	}
	if rt.pg != nil {
		rt.pg.Close()
	}
	if rt.logger != nil {
		_ = rt.logger.Sync()
	}
}
