package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Direction claimed or observed direction of a move
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// DirectionOf returns up for positive values and down otherwise
func DirectionOf(pct float64) Direction {
	if pct > 0 {
		return DirectionUp
	}
	return DirectionDown
}

// Status verification outcome of a prediction
type Status string

const (
	StatusPending Status = "PENDING"
	StatusHit     Status = "HIT"
	StatusPartial Status = "PARTIAL"
	StatusMiss    Status = "MISS"
)

// IsTerminal reports whether the status can no longer change
func (s Status) IsTerminal() bool {
	return s == StatusHit || s == StatusPartial || s == StatusMiss
}

// Prediction a movement claim extracted from one article
type Prediction struct {
	ID                string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	Ticker            string     `gorm:"type:varchar(10);not null;index" json:"ticker"`
	ClaimedPercentage float64    `gorm:"not null" json:"claimed_percentage"`
	Direction         Direction  `gorm:"type:varchar(4);not null" json:"direction"`
	ArticleTimestamp  time.Time  `gorm:"index" json:"article_timestamp"`
	SourceName        string     `gorm:"type:varchar(64);not null" json:"source_name"`
	ArticleURL        string     `gorm:"type:varchar(2048);not null;uniqueIndex" json:"article_url"`
	Headline          string     `gorm:"type:text" json:"headline"`
	Status            Status     `gorm:"type:varchar(10);not null;default:PENDING;index" json:"status"`
	IsDuplicate       bool       `gorm:"not null;default:false" json:"is_duplicate"`
	CollectionDate    string     `gorm:"type:varchar(10);not null;index" json:"collection_date"`
	LastCheckedAt     *time.Time `gorm:"index" json:"last_checked_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`

	Snapshots []PriceSnapshot `gorm:"foreignKey:PredictionID;constraint:OnDelete:CASCADE" json:"snapshots,omitempty"`
}

func (p *Prediction) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.Status == "" {
		p.Status = StatusPending
	}
	return nil
}

func (Prediction) TableName() string {
	return "predictions"
}

// NewPrediction builds a pending prediction from a validated candidate
func NewPrediction(c Candidate, collectionDate string) *Prediction {
	return &Prediction{
		Ticker:            c.Ticker,
		ClaimedPercentage: c.ClaimedPercentage,
		Direction:         c.Direction,
		ArticleTimestamp:  c.ArticleTimestamp,
		SourceName:        c.SourceName,
		ArticleURL:        c.ArticleURL,
		Headline:          c.Headline,
		Status:            StatusPending,
		CollectionDate:    collectionDate,
	}
}

// PriceSnapshot one observation of actual movement against a prediction
type PriceSnapshot struct {
	ID                string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	PredictionID      string    `gorm:"type:varchar(36);not null;index" json:"prediction_id"`
	CheckTimestamp    time.Time `gorm:"not null" json:"check_timestamp"`
	PreviousClose     float64   `json:"previous_close"`
	CurrentPrice      float64   `json:"current_price"`
	ActualMovementPct float64   `json:"actual_movement_pct"`
	Gap               float64   `json:"gap"` // claimed minus actual, signed
}

func (s *PriceSnapshot) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	return nil
}

func (PriceSnapshot) TableName() string {
	return "price_snapshots"
}
