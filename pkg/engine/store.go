package engine

import (
	"context"
	"time"

	"PredictionRadar/pkg/model"
)

// Store persistence contract shared by the SQL and in-memory stores.
// Insert returns model.ErrAlreadyExists on an article URL collision.
// RecordCheck appends the snapshot and moves a PENDING row to status atomically;
// it reports false when the row had already left PENDING.
// PendingPredictions returns never-checked rows first, then the least recently
// checked, so a batch rotates through the backlog. TouchChecked stamps an
// attempt that produced no snapshot.
type Store interface {
	Insert(ctx context.Context, p *model.Prediction) error
	ExistsByURL(ctx context.Context, url string) (bool, error)
	CheckForDuplicates(ctx context.Context, q model.DuplicateQuery) ([]string, error)
	MarkDuplicate(ctx context.Context, id string) error
	PendingPredictions(ctx context.Context, limit int) ([]model.Prediction, error)
	RecordCheck(ctx context.Context, id string, snapshot *model.PriceSnapshot, status model.Status) (bool, error)
	TouchChecked(ctx context.Context, id string, at time.Time) error
	LatestSnapshot(ctx context.Context, id string) (*model.PriceSnapshot, error)
	ByCollectionDate(ctx context.Context, date string) ([]model.Prediction, error)
	DailyStats(ctx context.Context, date string, opts model.DailyStatsOptions) (model.DailyStats, error)
	SaveDailySummary(ctx context.Context, summary *model.DailySummary) error
	SaveSourceAccuracy(ctx context.Context, rows []model.SourceAccuracy) error
	SourceAccuracy(ctx context.Context, date string) ([]model.SourceAccuracy, error)
}

// Publisher receives prediction lifecycle events
type Publisher interface {
	PublishCreated(ctx context.Context, p *model.Prediction) error
	PublishStatus(ctx context.Context, p *model.Prediction, snapshot *model.PriceSnapshot) error
}

// HealthReporter records component health
type HealthReporter interface {
	UpdateStatus(component, status, message string)
}

// Health states
const (
	HealthHealthy   = "healthy"
	HealthDegraded  = "degraded"
	HealthUnhealthy = "unhealthy"
)
