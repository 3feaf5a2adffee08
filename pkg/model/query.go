package model

import (
	"errors"
	"time"
)

var (
	// ErrAlreadyExists a prediction with the same article URL is stored
	ErrAlreadyExists = errors.New("prediction already exists")
	// ErrNotFound no prediction with the given id
	ErrNotFound = errors.New("prediction not found")
)

// DuplicateQuery near-identical claim lookup within one collection date
type DuplicateQuery struct {
	Ticker              string
	ClaimedPercentage   float64
	ArticleTimestamp    time.Time
	CollectionDate      string
	PercentageTolerance float64
	TimeWindow          time.Duration
}

// Matches reports whether an existing prediction is a duplicate by this query.
// A zero timestamp on either side never matches.
func (q DuplicateQuery) Matches(existing Prediction) bool {
	if existing.Ticker != q.Ticker || existing.CollectionDate != q.CollectionDate {
		return false
	}
	diff := existing.ClaimedPercentage - q.ClaimedPercentage
	if diff < 0 {
		diff = -diff
	}
	if diff > q.PercentageTolerance {
		return false
	}
	return WithinWindow(existing.ArticleTimestamp, q.ArticleTimestamp, q.TimeWindow)
}

// WithinWindow |a-b| <= window, false when either instant is unknown
func WithinWindow(a, b time.Time, window time.Duration) bool {
	if a.IsZero() || b.IsZero() {
		return false
	}
	delta := a.Sub(b)
	if delta < 0 {
		delta = -delta
	}
	return delta <= window
}

// DailyStatsOptions scope of the daily aggregate
type DailyStatsOptions struct {
	ExcludeDuplicates bool
}
