package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"PredictionRadar/pkg/model"
)

type PredictionDB struct {
	db *gorm.DB
}

func (d *DB) Predictions() *PredictionDB {
	return &PredictionDB{db: d.db}
}

func (p *PredictionDB) Insert(ctx context.Context, prediction *model.Prediction) error {
	exists, err := p.ExistsByURL(ctx, prediction.ArticleURL)
	if err != nil {
		return err
	}
	if exists {
		return model.ErrAlreadyExists
	}
	if err := p.db.WithContext(ctx).Omit(clause.Associations).Create(prediction).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return model.ErrAlreadyExists
		}
		return fmt.Errorf("insert prediction: %w", err)
	}
	return nil
}

// ExistsByURL dedup on the article link
func (p *PredictionDB) ExistsByURL(ctx context.Context, url string) (bool, error) {
	var count int64
	err := p.db.WithContext(ctx).Model(&model.Prediction{}).Where("article_url = ?", url).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check article url: %w", err)
	}
	return count > 0, nil
}

// CheckForDuplicates narrows in SQL on ticker, date and percentage, then applies the time window
func (p *PredictionDB) CheckForDuplicates(ctx context.Context, q model.DuplicateQuery) ([]string, error) {
	var candidates []model.Prediction
	err := p.db.WithContext(ctx).
		Where("ticker = ? AND collection_date = ?", q.Ticker, q.CollectionDate).
		Where("ABS(claimed_percentage - ?) <= ?", q.ClaimedPercentage, q.PercentageTolerance).
		Order("created_at ASC").
		Find(&candidates).Error
	if err != nil {
		return nil, fmt.Errorf("query duplicates: %w", err)
	}

	var ids []string
	for _, c := range candidates {
		if q.Matches(c) {
			ids = append(ids, c.ID)
		}
	}
	return ids, nil
}

func (p *PredictionDB) MarkDuplicate(ctx context.Context, id string) error {
	res := p.db.WithContext(ctx).Model(&model.Prediction{}).Where("id = ?", id).Update("is_duplicate", true)
	if res.Error != nil {
		return fmt.Errorf("mark duplicate: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return model.ErrNotFound
	}
	return nil
}

// PendingPredictions never-checked rows first, then least recently checked; limit <= 0 returns all
func (p *PredictionDB) PendingPredictions(ctx context.Context, limit int) ([]model.Prediction, error) {
	query := p.db.WithContext(ctx).
		Where("status = ?", model.StatusPending).
		Order("last_checked_at IS NOT NULL, last_checked_at ASC, created_at ASC, id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var predictions []model.Prediction
	if err := query.Find(&predictions).Error; err != nil {
		return nil, fmt.Errorf("query pending predictions: %w", err)
	}
	return predictions, nil
}

// RecordCheck stores the snapshot and advances a PENDING row in one transaction.
// Returns false when the row was already terminal; the snapshot is kept either way.
func (p *PredictionDB) RecordCheck(ctx context.Context, id string, snapshot *model.PriceSnapshot, status model.Status) (bool, error) {
	applied := false
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked := tx
		if tx.Dialector.Name() == "postgres" {
			locked = tx.Clauses(clause.Locking{Strength: "UPDATE"})
		}

		var current model.Prediction
		if err := locked.Select("id", "status").First(&current, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return model.ErrNotFound
			}
			return fmt.Errorf("lock prediction: %w", err)
		}

		snapshot.PredictionID = id
		if err := tx.Create(snapshot).Error; err != nil {
			return fmt.Errorf("save snapshot: %w", err)
		}

		if current.Status != model.StatusPending {
			return nil
		}
		res := tx.Model(&model.Prediction{}).
			Where("id = ? AND status = ?", id, model.StatusPending).
			Updates(map[string]interface{}{
				"status":          status,
				"last_checked_at": snapshot.CheckTimestamp,
			})
		if res.Error != nil {
			return fmt.Errorf("update status: %w", res.Error)
		}
		applied = res.RowsAffected > 0
		return nil
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}

// TouchChecked records a check attempt that produced no snapshot
func (p *PredictionDB) TouchChecked(ctx context.Context, id string, at time.Time) error {
	res := p.db.WithContext(ctx).Model(&model.Prediction{}).
		Where("id = ?", id).
		Update("last_checked_at", at)
	if res.Error != nil {
		return fmt.Errorf("touch prediction %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (p *PredictionDB) LatestSnapshot(ctx context.Context, id string) (*model.PriceSnapshot, error) {
	var snapshot model.PriceSnapshot
	err := p.db.WithContext(ctx).
		Where("prediction_id = ?", id).
		Order("check_timestamp DESC").
		First(&snapshot).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("query latest snapshot: %w", err)
	}
	return &snapshot, nil
}

// Get loads a prediction with its snapshots in check order
func (p *PredictionDB) Get(ctx context.Context, id string) (*model.Prediction, error) {
	var prediction model.Prediction
	err := p.db.WithContext(ctx).
		Preload("Snapshots", func(db *gorm.DB) *gorm.DB {
			return db.Order("check_timestamp ASC")
		}).
		First(&prediction, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("get prediction: %w", err)
	}
	return &prediction, nil
}

func (p *PredictionDB) ByCollectionDate(ctx context.Context, date string) ([]model.Prediction, error) {
	var predictions []model.Prediction
	err := p.db.WithContext(ctx).
		Where("collection_date = ?", date).
		Order("article_timestamp DESC").
		Find(&predictions).Error
	if err != nil {
		return nil, fmt.Errorf("query predictions by date: %w", err)
	}
	return predictions, nil
}

type statsRow struct {
	Total        int64
	Hits         int64
	Misses       int64
	Partials     int64
	Pending      int64
	AvgPredicted float64
}

// DailyStats one aggregate scan over the date
func (p *PredictionDB) DailyStats(ctx context.Context, date string, opts model.DailyStatsOptions) (model.DailyStats, error) {
	query := p.db.WithContext(ctx).Model(&model.Prediction{}).
		Select(`COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS hits,
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS misses,
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS partials,
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS pending,
			COALESCE(AVG(claimed_percentage), 0) AS avg_predicted`,
			model.StatusHit, model.StatusMiss, model.StatusPartial, model.StatusPending).
		Where("collection_date = ?", date)
	if opts.ExcludeDuplicates {
		query = query.Where("is_duplicate = ?", false)
	}

	var row statsRow
	if err := query.Scan(&row).Error; err != nil {
		return model.DailyStats{}, fmt.Errorf("daily stats: %w", err)
	}

	return model.DailyStats{
		Date:         date,
		Total:        row.Total,
		Hits:         row.Hits,
		Misses:       row.Misses,
		Partials:     row.Partials,
		Pending:      row.Pending,
		HitRate:      model.HitRateOf(row.Hits, row.Total),
		AvgPredicted: row.AvgPredicted,
	}, nil
}

func (p *PredictionDB) SaveDailySummary(ctx context.Context, summary *model.DailySummary) error {
	return p.summaries().Save(ctx, summary)
}

func (p *PredictionDB) SaveSourceAccuracy(ctx context.Context, rows []model.SourceAccuracy) error {
	return p.summaries().SaveSourceAccuracy(ctx, rows)
}

func (p *PredictionDB) SourceAccuracy(ctx context.Context, date string) ([]model.SourceAccuracy, error) {
	return p.summaries().SourceAccuracy(ctx, date)
}

func (p *PredictionDB) summaries() *SummaryDB {
	return &SummaryDB{db: p.db}
}
