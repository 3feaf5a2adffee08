package database

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"PredictionRadar/pkg/model"
)

// SummaryDB end-of-day reports
type SummaryDB struct {
	db *gorm.DB
}

func (d *DB) Summaries() *SummaryDB {
	return &SummaryDB{db: d.db}
}

// Save upserts the summary row for its date
func (s *SummaryDB) Save(ctx context.Context, summary *model.DailySummary) error {
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "date"}},
			UpdateAll: true,
		}).
		Create(summary).Error
	if err != nil {
		return fmt.Errorf("save daily summary: %w", err)
	}
	return nil
}

func (s *SummaryDB) Get(ctx context.Context, date string) (*model.DailySummary, error) {
	var summary model.DailySummary
	if err := s.db.WithContext(ctx).First(&summary, "date = ?", date).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("get daily summary: %w", err)
	}
	return &summary, nil
}

// Recent newest summaries first
func (s *SummaryDB) Recent(ctx context.Context, limit int) ([]model.DailySummary, error) {
	var summaries []model.DailySummary
	err := s.db.WithContext(ctx).Order("date DESC").Limit(limit).Find(&summaries).Error
	if err != nil {
		return nil, fmt.Errorf("query recent summaries: %w", err)
	}
	return summaries, nil
}

// SaveSourceAccuracy upserts on (source_name, date)
func (s *SummaryDB) SaveSourceAccuracy(ctx context.Context, rows []model.SourceAccuracy) error {
	if len(rows) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "source_name"}, {Name: "date"}},
			UpdateAll: true,
		}).
		Create(&rows).Error
	if err != nil {
		return fmt.Errorf("save source accuracy: %w", err)
	}
	return nil
}

// SourceAccuracy best weighted score first
func (s *SummaryDB) SourceAccuracy(ctx context.Context, date string) ([]model.SourceAccuracy, error) {
	var rows []model.SourceAccuracy
	err := s.db.WithContext(ctx).
		Where("date = ?", date).
		Order("weighted_score DESC, source_name ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query source accuracy: %w", err)
	}
	return rows, nil
}
