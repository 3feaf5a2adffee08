package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/ternarybob/arbor"

	"PredictionRadar/pkg/model"
)

// Summarizer persists the end-of-day accuracy report for a collection date
type Summarizer struct {
	store  Store
	logger arbor.ILogger
}

func NewSummarizer(store Store, logger arbor.ILogger) *Summarizer {
	return &Summarizer{store: store, logger: logger}
}

type sourceTally struct {
	count        int64
	hits         int64
	sumPredicted float64
	sumActual    float64
	sumAbsGap    float64
	checked      int64
}

// Summarize computes and stores the daily summary and per-source scorecards.
// Duplicate rows are left out so a story syndicated by many outlets counts once.
func (s *Summarizer) Summarize(ctx context.Context, date string) (*model.DailySummary, []model.SourceAccuracy, error) {
	stats, err := s.store.DailyStats(ctx, date, model.DailyStatsOptions{ExcludeDuplicates: true})
	if err != nil {
		return nil, nil, fmt.Errorf("daily stats: %w", err)
	}

	predictions, err := s.store.ByCollectionDate(ctx, date)
	if err != nil {
		return nil, nil, fmt.Errorf("load predictions: %w", err)
	}

	var (
		sumActual float64
		sumAbsGap float64
		checked   int64
	)
	tallies := make(map[string]*sourceTally)

	for _, p := range predictions {
		if p.IsDuplicate {
			continue
		}
		t, ok := tallies[p.SourceName]
		if !ok {
			t = &sourceTally{}
			tallies[p.SourceName] = t
		}
		t.count++
		t.sumPredicted += p.ClaimedPercentage
		if p.Status == model.StatusHit {
			t.hits++
		}

		snap, err := s.store.LatestSnapshot(ctx, p.ID)
		if err != nil {
			if errors.Is(err, model.ErrNotFound) {
				continue
			}
			return nil, nil, fmt.Errorf("latest snapshot for %s: %w", p.ID, err)
		}
		absGap := math.Abs(snap.Gap)
		sumActual += snap.ActualMovementPct
		sumAbsGap += absGap
		checked++
		t.sumActual += snap.ActualMovementPct
		t.sumAbsGap += absGap
		t.checked++
	}

	summary := &model.DailySummary{
		Date:                 date,
		TotalPredictions:     stats.Total,
		Hits:                 stats.Hits,
		Misses:               stats.Misses,
		Partials:             stats.Partials,
		Pending:              stats.Pending,
		HitRate:              round2(stats.HitRate),
		AvgPredictedMovement: round2(stats.AvgPredicted),
	}
	if checked > 0 {
		summary.AvgActualMovement = round2(sumActual / float64(checked))
		summary.MovementAccuracy = round2(model.MagnitudeAccuracy(sumAbsGap / float64(checked)))
	}

	if err := s.store.SaveDailySummary(ctx, summary); err != nil {
		return nil, nil, fmt.Errorf("save daily summary: %w", err)
	}

	rows := make([]model.SourceAccuracy, 0, len(tallies))
	for name, t := range tallies {
		row := model.SourceAccuracy{
			SourceName:       name,
			Date:             date,
			PredictionsCount: t.count,
			Hits:             t.hits,
			HitRate:          round2(model.HitRateOf(t.hits, t.count)),
			AvgPredicted:     round2(t.sumPredicted / float64(t.count)),
		}
		if t.checked > 0 {
			row.AvgActual = round2(t.sumActual / float64(t.checked))
			row.MagnitudeAccuracy = round2(model.MagnitudeAccuracy(t.sumAbsGap / float64(t.checked)))
		}
		row.WeightedScore = round2(model.WeightedScore(row.HitRate, row.MagnitudeAccuracy))
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].SourceName < rows[j].SourceName
	})

	if len(rows) > 0 {
		if err := s.store.SaveSourceAccuracy(ctx, rows); err != nil {
			return nil, nil, fmt.Errorf("save source accuracy: %w", err)
		}
	}

	s.logger.Info().
		Str("date", date).
		Int("total", int(summary.TotalPredictions)).
		Str("hit_rate", fmt.Sprintf("%.2f", summary.HitRate)).
		Str("movement_accuracy", fmt.Sprintf("%.2f", summary.MovementAccuracy)).
		Int("sources", len(rows)).
		Msg("Daily summary saved")

	return summary, rows, nil
}

func round2(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}
