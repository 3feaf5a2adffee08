package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/ternarybob/arbor"

	"PredictionRadar/pkg/collector"
	"PredictionRadar/pkg/config"
	"PredictionRadar/pkg/market"
	"PredictionRadar/pkg/model"
)

// IngestResult counters for one collection cycle
type IngestResult struct {
	Fetched        int
	Added          int
	Duplicates     int
	Invalid        int
	SourceFailures int
}

// Ingestor turns source candidates into stored predictions
type Ingestor struct {
	sources []collector.Source
	oracle  collector.PriceOracle
	store   Store
	clock   *market.Clock
	cfg     config.TrackerConfig
	logger  arbor.ILogger

	publisher Publisher
	health    HealthReporter
}

// IngestorOption optional collaborators
type IngestorOption func(*Ingestor)

// WithIngestPublisher emits prediction.created events
func WithIngestPublisher(p Publisher) IngestorOption {
	return func(i *Ingestor) {
		i.publisher = p
	}
}

// WithIngestHealth reports per-source health
func WithIngestHealth(h HealthReporter) IngestorOption {
	return func(i *Ingestor) {
		i.health = h
	}
}

// NewIngestor creates the collection cycle driver
func NewIngestor(
	sources []collector.Source,
	oracle collector.PriceOracle,
	store Store,
	clock *market.Clock,
	cfg config.TrackerConfig,
	logger arbor.ILogger,
	opts ...IngestorOption,
) *Ingestor {
	i := &Ingestor{
		sources: sources,
		oracle:  oracle,
		store:   store,
		clock:   clock,
		cfg:     cfg,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Collect runs one collection cycle over every source.
// A failing source is logged and skipped; a store failure aborts the cycle.
func (i *Ingestor) Collect(ctx context.Context) (IngestResult, error) {
	var result IngestResult

	for _, src := range i.sources {
		candidates, err := src.FetchCandidates(ctx)
		if err != nil {
			result.SourceFailures++
			i.logger.Warn().Err(err).Str("source", src.Name()).Msg("Source fetch failed")
			i.reportHealth(src.Name(), HealthUnhealthy, err.Error())
			continue
		}
		i.reportHealth(src.Name(), HealthHealthy, "")
		result.Fetched += len(candidates)

		if err := i.ingest(ctx, candidates, &result); err != nil {
			return result, err
		}
	}

	i.logger.Info().
		Int("fetched", result.Fetched).
		Int("added", result.Added).
		Int("duplicates", result.Duplicates).
		Int("invalid", result.Invalid).
		Int("source_failures", result.SourceFailures).
		Msg("Collection cycle complete")

	return result, nil
}

// Ingest runs the candidate pipeline without fetching
func (i *Ingestor) Ingest(ctx context.Context, candidates []model.Candidate) (IngestResult, error) {
	result := IngestResult{Fetched: len(candidates)}
	err := i.ingest(ctx, candidates, &result)
	return result, err
}

func (i *Ingestor) ingest(ctx context.Context, candidates []model.Candidate, result *IngestResult) error {
	collectionDate := i.clock.CollectionDate(i.clock.Now())

	for _, c := range candidates {
		if err := c.Validate(i.cfg.MinimumPercentage); err != nil {
			result.Invalid++
			i.logger.Debug().Err(err).Str("url", c.ArticleURL).Msg("Candidate rejected")
			continue
		}

		exists, err := i.store.ExistsByURL(ctx, c.ArticleURL)
		if err != nil {
			return fmt.Errorf("check article url: %w", err)
		}
		if exists {
			result.Duplicates++
			continue
		}

		if !i.oracle.Validate(ctx, c.Ticker) {
			result.Invalid++
			i.logger.Debug().Str("ticker", c.Ticker).Msg("Ticker failed validation")
			continue
		}

		duplicates, err := i.store.CheckForDuplicates(ctx, model.DuplicateQuery{
			Ticker:              c.Ticker,
			ClaimedPercentage:   c.ClaimedPercentage,
			ArticleTimestamp:    c.ArticleTimestamp,
			CollectionDate:      collectionDate,
			PercentageTolerance: i.cfg.DuplicatePercentageTolerance,
			TimeWindow:          i.cfg.DuplicateTimeWindow,
		})
		if err != nil {
			return fmt.Errorf("check duplicates: %w", err)
		}

		prediction := model.NewPrediction(c, collectionDate)
		if err := i.store.Insert(ctx, prediction); err != nil {
			if errors.Is(err, model.ErrAlreadyExists) {
				result.Duplicates++
				continue
			}
			return fmt.Errorf("insert prediction: %w", err)
		}
		result.Added++

		if len(duplicates) > 0 {
			if err := i.store.MarkDuplicate(ctx, prediction.ID); err != nil {
				return fmt.Errorf("mark duplicate: %w", err)
			}
			prediction.IsDuplicate = true
			result.Duplicates++
		}

		i.logger.Info().
			Str("ticker", prediction.Ticker).
			Str("claimed", fmt.Sprintf("%.2f", prediction.ClaimedPercentage)).
			Str("source", prediction.SourceName).
			Bool("duplicate", prediction.IsDuplicate).
			Msg("Prediction recorded")

		if i.publisher != nil {
			if err := i.publisher.PublishCreated(ctx, prediction); err != nil {
				i.logger.Warn().Err(err).Str("id", prediction.ID).Msg("Publish created event failed")
			}
		}
	}
	return nil
}

func (i *Ingestor) reportHealth(component, status, message string) {
	if i.health != nil {
		i.health.UpdateStatus("source:"+component, status, message)
	}
}
