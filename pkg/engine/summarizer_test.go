package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PredictionRadar/pkg/model"
	"PredictionRadar/pkg/repository"
)

func TestSummarize(t *testing.T) {
	ctx := context.Background()
	clock := clockAt(t, 17)
	store := repository.NewRepository()

	a1 := seed(t, store, clock, "NVDA", 25, "https://news.test/a1")
	a2 := seed(t, store, clock, "TSLA", 30, "https://news.test/a2")
	b1 := seed(t, store, clock, "AMD", 20, "https://news.test/b1")
	dup := seed(t, store, clock, "AMD", 21, "https://news.test/b2")
	require.NoError(t, store.MarkDuplicate(ctx, dup.ID))
	seed(t, store, clock, "META", 40, "https://news.test/b3")

	record := func(p *model.Prediction, actual float64, status model.Status) {
		_, err := store.RecordCheck(ctx, p.ID, &model.PriceSnapshot{
			CheckTimestamp:    clock.Now(),
			ActualMovementPct: actual,
			Gap:               p.ClaimedPercentage - actual,
		}, status)
		require.NoError(t, err)
	}
	record(a1, 23, model.StatusHit)
	record(a2, 10, model.StatusMiss)
	record(b1, 18, model.StatusHit)
	record(dup, 0, model.StatusMiss)

	summary, rows, err := NewSummarizer(store, testLogger()).Summarize(ctx, clock.CollectionDate(clock.Now()))
	require.NoError(t, err)

	assert.Equal(t, int64(4), summary.TotalPredictions)
	assert.Equal(t, int64(2), summary.Hits)
	assert.Equal(t, int64(1), summary.Misses)
	assert.Equal(t, int64(1), summary.Pending)
	assert.Equal(t, 50.0, summary.HitRate)
	assert.Equal(t, 28.75, summary.AvgPredictedMovement)
	// latest snapshots: gaps 2, 20, 2 -> mean 8
	assert.Equal(t, 17.0, summary.AvgActualMovement)
	assert.Equal(t, 92.0, summary.MovementAccuracy)

	require.Len(t, rows, 1)
	assert.Equal(t, "wire", rows[0].SourceName)
	assert.Equal(t, int64(4), rows[0].PredictionsCount)
	assert.Equal(t, 50.0, rows[0].HitRate)
	assert.Equal(t, 92.0, rows[0].MagnitudeAccuracy)
	assert.Equal(t, 66.8, rows[0].WeightedScore)

	saved, err := store.DailySummary(ctx, summary.Date)
	require.NoError(t, err)
	assert.Equal(t, summary.HitRate, saved.HitRate)

	stored, err := store.SourceAccuracy(ctx, summary.Date)
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestSummarizeEmptyDay(t *testing.T) {
	store := repository.NewRepository()
	summary, rows, err := NewSummarizer(store, testLogger()).Summarize(context.Background(), "2024-03-09")
	require.NoError(t, err)
	assert.Equal(t, int64(0), summary.TotalPredictions)
	assert.Equal(t, 0.0, summary.MovementAccuracy)
	assert.Empty(t, rows)
}
