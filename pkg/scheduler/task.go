package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"PredictionRadar/pkg/config"
	"PredictionRadar/pkg/engine"
	"PredictionRadar/pkg/market"
	"PredictionRadar/pkg/model"
)

const maxSettlePasses = 50

type Collector interface {
	Collect(ctx context.Context) (engine.IngestResult, error)
}

type Refresher interface {
	Refresh(ctx context.Context) (engine.RefreshResult, error)
}

type Summarizer interface {
	Summarize(ctx context.Context, date string) (*model.DailySummary, []model.SourceAccuracy, error)
}

// Scheduler drives the collection, refresh and summary jobs in market time
type Scheduler struct {
	cron       *cron.Cron
	cfg        config.SchedulerConfig
	clock      *market.Clock
	collector  Collector
	refresher  Refresher
	summarizer Summarizer
	logger     arbor.ILogger
	jobTimeout time.Duration
}

// NewScheduler creates the scheduler; a nil summarizer skips the summary job
func NewScheduler(
	cfg config.SchedulerConfig,
	clock *market.Clock,
	collector Collector,
	refresher Refresher,
	summarizer Summarizer,
	logger arbor.ILogger,
) *Scheduler {
	cl := cronLogger{logger: logger}
	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLocation(clock.Location()),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		cfg:        cfg,
		clock:      clock,
		collector:  collector,
		refresher:  refresher,
		summarizer: summarizer,
		logger:     logger,
		jobTimeout: 20 * time.Minute,
	}
}

// Start registers the jobs and starts the cron loop
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(every(s.cfg.CollectInterval), s.RunCollect); err != nil {
		return fmt.Errorf("schedule collection: %w", err)
	}
	if _, err := s.cron.AddFunc(every(s.cfg.RefreshInterval), s.RunRefresh); err != nil {
		return fmt.Errorf("schedule refresh: %w", err)
	}
	if s.summarizer != nil && s.cfg.SummaryCron != "" {
		if _, err := s.cron.AddFunc(s.cfg.SummaryCron, s.RunSummary); err != nil {
			return fmt.Errorf("schedule summary %q: %w", s.cfg.SummaryCron, err)
		}
	}

	s.cron.Start()
	s.logger.Info().
		Str("collect", s.cfg.CollectInterval.String()).
		Str("refresh", s.cfg.RefreshInterval.String()).
		Str("summary", s.cfg.SummaryCron).
		Msg("Scheduler started")
	return nil
}

// Stop halts new runs and waits for running jobs
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info().Msg("Scheduler stopped")
}

// InOperatingHours reports whether t falls within the configured collection hours
func (s *Scheduler) InOperatingHours(t time.Time) bool {
	hour := t.In(s.clock.Location()).Hour()
	return hour >= s.cfg.OperatingStartHour && hour <= s.cfg.OperatingEndHour
}

// RunCollect one collection cycle, skipped outside operating hours
func (s *Scheduler) RunCollect() {
	if !s.InOperatingHours(s.clock.Now()) {
		s.logger.Debug().Msg("Outside operating hours, collection skipped")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.jobTimeout)
	defer cancel()

	if _, err := s.collector.Collect(ctx); err != nil {
		s.logger.Error().Err(err).Msg("Collection cycle failed")
	}
}

func (s *Scheduler) RunRefresh() {
	ctx, cancel := context.WithTimeout(context.Background(), s.jobTimeout)
	defer cancel()

	if _, err := s.refresher.Refresh(ctx); err != nil {
		s.logger.Error().Err(err).Msg("Refresh cycle failed")
	}
}

// RunSummary settles pending predictions, then summarises today's collection date
func (s *Scheduler) RunSummary() {
	ctx, cancel := context.WithTimeout(context.Background(), s.jobTimeout)
	defer cancel()

	s.settle(ctx)

	date := s.clock.CollectionDate(s.clock.Now())
	if _, _, err := s.summarizer.Summarize(ctx, date); err != nil {
		s.logger.Error().Err(err).Str("date", date).Msg("Daily summary failed")
	}
}

// settle refreshes until a pass resolves nothing, so the summary sees post-close statuses
func (s *Scheduler) settle(ctx context.Context) {
	for pass := 1; pass <= maxSettlePasses; pass++ {
		res, err := s.refresher.Refresh(ctx)
		if err != nil {
			s.logger.Error().Err(err).Msg("Refresh before summary failed")
			return
		}
		if res.Checked == 0 || res.Resolved == 0 {
			s.logger.Debug().Int("passes", pass).Msg("Pending predictions settled")
			return
		}
	}
	s.logger.Warn().Int("passes", maxSettlePasses).Msg("Pending predictions still resolving, summarising anyway")
}

func every(d time.Duration) string {
	return "@every " + d.String()
}

// cronLogger adapts arbor to cron.Logger
type cronLogger struct {
	logger arbor.ILogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Msgf("cron: %s %v", msg, keysAndValues)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Msgf("cron: %s %v", msg, keysAndValues)
}
