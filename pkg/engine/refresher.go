package engine

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"PredictionRadar/pkg/collector"
	"PredictionRadar/pkg/market"
	"PredictionRadar/pkg/model"
)

// RefreshResult counters for one refresh cycle
type RefreshResult struct {
	Checked      int
	Updated      int
	Skipped      int
	Resolved     int
	MarketClosed bool
}

// Refresher re-prices pending predictions and advances their status
type Refresher struct {
	oracle     collector.PriceOracle
	store      Store
	clock      *market.Clock
	thresholds Thresholds
	batchSize  int
	logger     arbor.ILogger

	publisher Publisher
	health    HealthReporter
}

// RefresherOption optional collaborators
type RefresherOption func(*Refresher)

// WithRefreshPublisher emits prediction.status events on resolution
func WithRefreshPublisher(p Publisher) RefresherOption {
	return func(r *Refresher) {
		r.publisher = p
	}
}

// WithRefreshHealth reports oracle health
func WithRefreshHealth(h HealthReporter) RefresherOption {
	return func(r *Refresher) {
		r.health = h
	}
}

// NewRefresher creates the refresh cycle driver; batchSize bounds each cycle
func NewRefresher(
	oracle collector.PriceOracle,
	store Store,
	clock *market.Clock,
	thresholds Thresholds,
	batchSize int,
	logger arbor.ILogger,
	opts ...RefresherOption,
) *Refresher {
	r := &Refresher{
		oracle:     oracle,
		store:      store,
		clock:      clock,
		thresholds: thresholds,
		batchSize:  batchSize,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type lookupResult struct {
	data collector.PriceData
	ok   bool
}

// Refresh runs one refresh cycle.
// Price lookups that fail skip the prediction until the next cycle; store failures abort.
func (r *Refresher) Refresh(ctx context.Context) (RefreshResult, error) {
	var result RefreshResult

	pending, err := r.store.PendingPredictions(ctx, r.batchSize)
	if err != nil {
		return result, fmt.Errorf("load pending predictions: %w", err)
	}

	now := r.clock.Now()
	result.MarketClosed = r.clock.IsMarketClosed(now)
	prices := make(map[string]lookupResult)

	for idx := range pending {
		p := &pending[idx]
		result.Checked++

		lookup, seen := prices[p.Ticker]
		if !seen {
			lookup.data, lookup.ok = collector.Lookup(ctx, r.oracle, p.Ticker)
			prices[p.Ticker] = lookup
		}
		if !lookup.ok {
			result.Skipped++
			if err := r.store.TouchChecked(ctx, p.ID, now); err != nil {
				return result, fmt.Errorf("touch %s: %w", p.ID, err)
			}
			r.logger.Debug().Str("ticker", p.Ticker).Msg("No price data, skipping this cycle")
			continue
		}

		snapshot := &model.PriceSnapshot{
			PredictionID:      p.ID,
			CheckTimestamp:    now,
			PreviousClose:     lookup.data.PreviousClose,
			CurrentPrice:      lookup.data.CurrentPrice,
			ActualMovementPct: lookup.data.ActualMovementPct,
			Gap:               p.ClaimedPercentage - lookup.data.ActualMovementPct,
		}
		status := Classify(p.ClaimedPercentage, lookup.data.ActualMovementPct, p.Direction, result.MarketClosed, r.thresholds)

		applied, err := r.store.RecordCheck(ctx, p.ID, snapshot, status)
		if err != nil {
			return result, fmt.Errorf("record check for %s: %w", p.ID, err)
		}
		result.Updated++

		if !applied || status == model.StatusPending {
			continue
		}
		p.Status = status
		result.Resolved++

		r.logger.Info().
			Str("ticker", p.Ticker).
			Str("claimed", fmt.Sprintf("%.2f", p.ClaimedPercentage)).
			Str("actual", fmt.Sprintf("%.2f", snapshot.ActualMovementPct)).
			Str("status", string(status)).
			Msg("Prediction resolved")

		if r.publisher != nil {
			if err := r.publisher.PublishStatus(ctx, p, snapshot); err != nil {
				r.logger.Warn().Err(err).Str("id", p.ID).Msg("Publish status event failed")
			}
		}
	}

	r.reportHealth(result)

	r.logger.Info().
		Int("checked", result.Checked).
		Int("updated", result.Updated).
		Int("skipped", result.Skipped).
		Int("resolved", result.Resolved).
		Bool("market_closed", result.MarketClosed).
		Msg("Refresh cycle complete")

	return result, nil
}

func (r *Refresher) reportHealth(result RefreshResult) {
	if r.health == nil || result.Checked == 0 {
		return
	}
	switch {
	case result.Skipped == 0:
		r.health.UpdateStatus("price-oracle", HealthHealthy, "")
	case result.Skipped == result.Checked:
		r.health.UpdateStatus("price-oracle", HealthUnhealthy, "no price data for any pending prediction")
	default:
		r.health.UpdateStatus("price-oracle", HealthDegraded, fmt.Sprintf("%d of %d lookups failed", result.Skipped, result.Checked))
	}
}
