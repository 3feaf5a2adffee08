package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/ternarybob/arbor"

	"PredictionRadar/pkg/collector"
	"PredictionRadar/pkg/config"
	"PredictionRadar/pkg/database"
	"PredictionRadar/pkg/engine"
	"PredictionRadar/pkg/extractor"
	"PredictionRadar/pkg/logging"
	"PredictionRadar/pkg/market"
	"PredictionRadar/pkg/messaging"
	"PredictionRadar/pkg/monitor"
)

// app wired components for one CLI invocation
type app struct {
	cfg        *config.Config
	logger     arbor.ILogger
	clock      *market.Clock
	db         *database.DB
	store      *database.PredictionDB
	oracle     *collector.EODHDOracle
	sources    *collector.Sources
	publisher  *messaging.EventPublisher
	monitor    *monitor.Monitor
	ingestor   *engine.Ingestor
	refresher  *engine.Refresher
	summarizer *engine.Summarizer
}

func loadConfig() (*config.Config, error) {
	path := flagConfig
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = config.GetDefaultConfigPath()
	}
	return config.LoadOrDefault(path)
}

// newApp builds everything; withSources controls whether news sources are connected
func newApp(ctx context.Context, withSources bool) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger := logging.New(cfg.Logging)

	clock, err := market.NewClock(cfg.Market)
	if err != nil {
		return nil, err
	}

	db, err := database.Open(cfg.Database)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:     cfg,
		logger:  logger,
		clock:   clock,
		db:      db,
		store:   db.Predictions(),
		monitor: monitor.NewMonitor(monitor.LogAlerts(logger)),
	}

	client := collector.NewEODHDClient(cfg.Price.APIKey,
		collector.WithBaseURL(cfg.Price.BaseURL),
		collector.WithHTTPClient(&http.Client{Timeout: cfg.Price.Timeout}),
		collector.WithRateLimit(cfg.Price.RequestsPerSecond),
		collector.WithRetry(cfg.Price.MaxRetries, cfg.Price.RetryBackoff),
		collector.WithLogger(logger),
	)
	a.oracle = collector.NewEODHDOracle(client, clock, cfg.Price.Exchange, logger)
	a.monitor.RegisterComponent("price-oracle")

	if cfg.NATS.EventsEnabled {
		pub, err := messaging.NewEventPublisher(ctx, cfg.NATS.URL, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("Event publisher unavailable, events disabled")
		} else {
			a.publisher = pub
		}
	}

	var sources []collector.Source
	if withSources {
		built, err := collector.BuildSources(cfg, extractor.New(cfg.Tracker.MinimumPercentage), clock, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.sources = built
		sources = built.List
		for _, src := range sources {
			a.monitor.RegisterComponent("source:" + src.Name())
		}
	}

	ingestOpts := []engine.IngestorOption{engine.WithIngestHealth(a.monitor)}
	refreshOpts := []engine.RefresherOption{engine.WithRefreshHealth(a.monitor)}
	if a.publisher != nil {
		ingestOpts = append(ingestOpts, engine.WithIngestPublisher(a.publisher))
		refreshOpts = append(refreshOpts, engine.WithRefreshPublisher(a.publisher))
	}

	a.ingestor = engine.NewIngestor(sources, a.oracle, a.store, clock, cfg.Tracker, logger, ingestOpts...)
	a.refresher = engine.NewRefresher(a.oracle, a.store, clock, engine.ThresholdsFrom(cfg.Tracker),
		cfg.Tracker.MaxTrackedPerCycle, logger, refreshOpts...)
	a.summarizer = engine.NewSummarizer(a.store, logger)
	return a, nil
}

func (a *app) Close() {
	if a.sources != nil {
		a.sources.Close()
	}
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("Close event publisher")
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("Close database")
		}
	}
}
