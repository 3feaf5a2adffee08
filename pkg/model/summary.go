package model

import "time"

// DailyStats aggregates over all predictions of one collection date
type DailyStats struct {
	Date         string  `json:"date"`
	Total        int64   `json:"total_predictions"`
	Hits         int64   `json:"hits"`
	Misses       int64   `json:"misses"`
	Partials     int64   `json:"partials"`
	Pending      int64   `json:"pending"`
	HitRate      float64 `json:"hit_rate"`
	AvgPredicted float64 `json:"avg_predicted"`
}

// HitRateOf hits as a percentage of total, 0 for an empty day
func HitRateOf(hits, total int64) float64 {
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total) * 100
}

// DailySummary persisted end-of-day copy of the stats
type DailySummary struct {
	Date                 string    `gorm:"type:varchar(10);primaryKey" json:"date"`
	TotalPredictions     int64     `json:"total_predictions"`
	Hits                 int64     `json:"hits"`
	Misses               int64     `json:"misses"`
	Partials             int64     `json:"partials"`
	Pending              int64     `json:"pending"`
	HitRate              float64   `json:"hit_rate"`
	AvgPredictedMovement float64   `json:"avg_predicted_movement"`
	AvgActualMovement    float64   `json:"avg_actual_movement"`
	MovementAccuracy     float64   `json:"movement_accuracy"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

func (DailySummary) TableName() string {
	return "daily_summaries"
}

// SourceAccuracy per-source scorecard for one date
type SourceAccuracy struct {
	SourceName        string    `gorm:"type:varchar(64);primaryKey" json:"source_name"`
	Date              string    `gorm:"type:varchar(10);primaryKey" json:"date"`
	PredictionsCount  int64     `json:"predictions_count"`
	Hits              int64     `json:"hits"`
	HitRate           float64   `json:"hit_rate"`
	AvgPredicted      float64   `json:"avg_predicted"`
	AvgActual         float64   `json:"avg_actual"`
	MagnitudeAccuracy float64   `json:"magnitude_accuracy"`
	WeightedScore     float64   `json:"weighted_score"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func (SourceAccuracy) TableName() string {
	return "source_accuracy"
}

// MagnitudeAccuracy 100 minus the mean absolute gap, floored at 0
func MagnitudeAccuracy(meanAbsGap float64) float64 {
	acc := 100 - meanAbsGap
	if acc < 0 {
		return 0
	}
	return acc
}

// WeightedScore blends hit rate and magnitude accuracy 60/40
func WeightedScore(hitRate, magnitudeAccuracy float64) float64 {
	return hitRate*0.6 + magnitudeAccuracy*0.4
}
