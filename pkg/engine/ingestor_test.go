package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PredictionRadar/pkg/collector"
	"PredictionRadar/pkg/config"
	"PredictionRadar/pkg/model"
	"PredictionRadar/pkg/repository"
)

func TestCollect(t *testing.T) {
	ctx := context.Background()
	clock := clockAt(t, 11)
	at := func(h, m int) time.Time {
		return time.Date(2024, 3, 11, h, m, 0, 0, clock.Location())
	}

	good := &stubSource{name: "wire", candidates: []model.Candidate{
		candidate("NVDA", 25, "https://news.test/nvda-1", at(10, 0)),
		candidate("NVDA", 26, "https://news.test/nvda-2", at(10, 30)),
		candidate("AAPL", 5, "https://news.test/aapl", at(10, 0)),
		candidate("XYZ", 30, "https://news.test/xyz", at(10, 0)),
		candidate("NVDA", 25, "https://news.test/nvda-1", at(10, 0)),
	}}
	broken := &stubSource{name: "down", err: errBoom}

	oracle := newStubOracle(nil)
	oracle.invalid["XYZ"] = true
	store := repository.NewRepository()
	publisher := &recordingPublisher{}
	health := &recordingHealth{}

	ingestor := NewIngestor(
		[]collector.Source{broken, good},
		oracle, store, clock, config.Default().Tracker, testLogger(),
		WithIngestPublisher(publisher),
		WithIngestHealth(health),
	)

	result, err := ingestor.Collect(ctx)
	require.NoError(t, err)
	assert.Equal(t, IngestResult{Fetched: 5, Added: 2, Duplicates: 2, Invalid: 2, SourceFailures: 1}, result)

	assert.Len(t, publisher.created, 2)
	assert.Equal(t, HealthHealthy, health.status["source:wire"])
	assert.Equal(t, HealthUnhealthy, health.status["source:down"])

	stored, err := store.ByCollectionDate(ctx, "2024-03-11")
	require.NoError(t, err)
	require.Len(t, stored, 2)

	byURL := map[string]model.Prediction{}
	for _, p := range stored {
		byURL[p.ArticleURL] = p
	}
	assert.False(t, byURL["https://news.test/nvda-1"].IsDuplicate)
	assert.True(t, byURL["https://news.test/nvda-2"].IsDuplicate)
	assert.Equal(t, model.StatusPending, byURL["https://news.test/nvda-1"].Status)
}

func TestCollectUnknownTimestampNeverDuplicates(t *testing.T) {
	ctx := context.Background()
	clock := clockAt(t, 11)
	store := repository.NewRepository()

	ingestor := NewIngestor(nil, newStubOracle(nil), store, clock, config.Default().Tracker, testLogger())
	result, err := ingestor.Ingest(ctx, []model.Candidate{
		candidate("TSLA", -30, "https://news.test/t1", time.Time{}),
		candidate("TSLA", -30, "https://news.test/t2", time.Time{}),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Added)
	assert.Equal(t, 0, result.Duplicates)
}

func TestCollectPublishFailureIsNotFatal(t *testing.T) {
	clock := clockAt(t, 11)
	publisher := &recordingPublisher{err: errBoom}

	ingestor := NewIngestor(nil, newStubOracle(nil), repository.NewRepository(), clock,
		config.Default().Tracker, testLogger(), WithIngestPublisher(publisher))
	result, err := ingestor.Ingest(context.Background(), []model.Candidate{
		candidate("AMD", 21, "https://news.test/amd", clock.Now()),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Added)
	assert.Len(t, publisher.created, 1)
}

type failingStore struct {
	*repository.Repository
}

func (failingStore) Insert(context.Context, *model.Prediction) error {
	return errBoom
}

func TestCollectStoreFailureAborts(t *testing.T) {
	clock := clockAt(t, 11)
	src := &stubSource{name: "wire", candidates: []model.Candidate{
		candidate("AMD", 21, "https://news.test/amd", clock.Now()),
	}}

	ingestor := NewIngestor([]collector.Source{src}, newStubOracle(nil),
		failingStore{repository.NewRepository()}, clock, config.Default().Tracker, testLogger())
	_, err := ingestor.Collect(context.Background())
	assert.ErrorIs(t, err, errBoom)
}
