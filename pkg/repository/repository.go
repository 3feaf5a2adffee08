package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"PredictionRadar/pkg/model"
)

// Repository in-memory prediction store for in-process use.
// The engine and scheduler tests run their cycles against it.
type Repository struct {
	predictions map[string]*model.Prediction
	order       []string // insertion order, oldest first
	byURL       map[string]string
	snapshots   map[string][]model.PriceSnapshot
	summaries   map[string]model.DailySummary
	accuracy    map[string]map[string]model.SourceAccuracy // date -> source -> row
	now         func() time.Time
	mutex       sync.RWMutex
}

// NewRepository creates an empty store
func NewRepository() *Repository {
	return &Repository{
		predictions: make(map[string]*model.Prediction),
		byURL:       make(map[string]string),
		snapshots:   make(map[string][]model.PriceSnapshot),
		summaries:   make(map[string]model.DailySummary),
		accuracy:    make(map[string]map[string]model.SourceAccuracy),
		now:         time.Now,
	}
}

// Insert stores a new prediction, assigning its id when empty
func (r *Repository) Insert(_ context.Context, p *model.Prediction) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, ok := r.byURL[p.ArticleURL]; ok {
		return model.ErrAlreadyExists
	}
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.Status == "" {
		p.Status = model.StatusPending
	}
	now := r.now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	stored := *p
	stored.Snapshots = nil
	r.predictions[p.ID] = &stored
	r.byURL[p.ArticleURL] = p.ID
	r.order = append(r.order, p.ID)
	return nil
}

// ExistsByURL reports whether an article has already been recorded
func (r *Repository) ExistsByURL(_ context.Context, url string) (bool, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	_, ok := r.byURL[url]
	return ok, nil
}

// CheckForDuplicates ids of stored predictions matching the query
func (r *Repository) CheckForDuplicates(_ context.Context, q model.DuplicateQuery) ([]string, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var ids []string
	for _, id := range r.order {
		if q.Matches(*r.predictions[id]) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// MarkDuplicate flags a prediction as a duplicate
func (r *Repository) MarkDuplicate(_ context.Context, id string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	p, ok := r.predictions[id]
	if !ok {
		return model.ErrNotFound
	}
	p.IsDuplicate = true
	p.UpdatedAt = r.now()
	return nil
}

// PendingPredictions never-checked first, then least recently checked, at most limit (0 means all)
func (r *Repository) PendingPredictions(_ context.Context, limit int) ([]model.Prediction, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var out []model.Prediction
	for _, id := range r.order {
		if p := r.predictions[id]; p.Status == model.StatusPending {
			out = append(out, *p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].LastCheckedAt, out[j].LastCheckedAt
		if a == nil || b == nil {
			return a == nil && b != nil
		}
		return a.Before(*b)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// RecordCheck appends the snapshot and moves a pending prediction to status
func (r *Repository) RecordCheck(_ context.Context, id string, snapshot *model.PriceSnapshot, status model.Status) (bool, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	p, ok := r.predictions[id]
	if !ok {
		return false, model.ErrNotFound
	}
	if snapshot.ID == "" {
		snapshot.ID = uuid.New().String()
	}
	snapshot.PredictionID = id
	r.snapshots[id] = append(r.snapshots[id], *snapshot)

	if p.Status != model.StatusPending {
		return false, nil
	}
	checked := snapshot.CheckTimestamp
	p.LastCheckedAt = &checked
	p.Status = status
	p.UpdatedAt = r.now()
	return true, nil
}

// TouchChecked records a check attempt that produced no snapshot
func (r *Repository) TouchChecked(_ context.Context, id string, at time.Time) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	p, ok := r.predictions[id]
	if !ok {
		return model.ErrNotFound
	}
	p.LastCheckedAt = &at
	return nil
}

// LatestSnapshot most recent check of a prediction
func (r *Repository) LatestSnapshot(_ context.Context, id string) (*model.PriceSnapshot, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	snaps := r.snapshots[id]
	if len(snaps) == 0 {
		return nil, model.ErrNotFound
	}
	latest := snaps[0]
	for _, s := range snaps[1:] {
		if !s.CheckTimestamp.Before(latest.CheckTimestamp) {
			latest = s
		}
	}
	return &latest, nil
}

// Get a prediction with its snapshots
func (r *Repository) Get(_ context.Context, id string) (*model.Prediction, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	p, ok := r.predictions[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	out := *p
	out.Snapshots = append([]model.PriceSnapshot(nil), r.snapshots[id]...)
	return &out, nil
}

// ByCollectionDate predictions of one date, newest article first
func (r *Repository) ByCollectionDate(_ context.Context, date string) ([]model.Prediction, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var out []model.Prediction
	for _, id := range r.order {
		if p := r.predictions[id]; p.CollectionDate == date {
			out = append(out, *p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ArticleTimestamp.After(out[j].ArticleTimestamp)
	})
	return out, nil
}

// DailyStats counts and averages for one date
func (r *Repository) DailyStats(_ context.Context, date string, opts model.DailyStatsOptions) (model.DailyStats, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	stats := model.DailyStats{Date: date}
	var sum float64
	for _, id := range r.order {
		p := r.predictions[id]
		if p.CollectionDate != date || (opts.ExcludeDuplicates && p.IsDuplicate) {
			continue
		}
		stats.Total++
		sum += p.ClaimedPercentage
		switch p.Status {
		case model.StatusHit:
			stats.Hits++
		case model.StatusMiss:
			stats.Misses++
		case model.StatusPartial:
			stats.Partials++
		case model.StatusPending:
			stats.Pending++
		}
	}
	if stats.Total > 0 {
		stats.AvgPredicted = sum / float64(stats.Total)
	}
	stats.HitRate = model.HitRateOf(stats.Hits, stats.Total)
	return stats, nil
}

// SaveDailySummary upserts the summary for its date
func (r *Repository) SaveDailySummary(_ context.Context, summary *model.DailySummary) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	now := r.now()
	if prev, ok := r.summaries[summary.Date]; ok {
		summary.CreatedAt = prev.CreatedAt
	} else if summary.CreatedAt.IsZero() {
		summary.CreatedAt = now
	}
	summary.UpdatedAt = now
	r.summaries[summary.Date] = *summary
	return nil
}

// DailySummary stored summary for a date
func (r *Repository) DailySummary(_ context.Context, date string) (*model.DailySummary, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	s, ok := r.summaries[date]
	if !ok {
		return nil, model.ErrNotFound
	}
	return &s, nil
}

// SaveSourceAccuracy upserts per-source rows keyed by (source, date)
func (r *Repository) SaveSourceAccuracy(_ context.Context, rows []model.SourceAccuracy) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	now := r.now()
	for _, row := range rows {
		day, ok := r.accuracy[row.Date]
		if !ok {
			day = make(map[string]model.SourceAccuracy)
			r.accuracy[row.Date] = day
		}
		row.UpdatedAt = now
		day[row.SourceName] = row
	}
	return nil
}

// SourceAccuracy rows for a date, best weighted score first
func (r *Repository) SourceAccuracy(_ context.Context, date string) ([]model.SourceAccuracy, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	out := make([]model.SourceAccuracy, 0, len(r.accuracy[date]))
	for _, row := range r.accuracy[date] {
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].WeightedScore != out[j].WeightedScore {
			return out[i].WeightedScore > out[j].WeightedScore
		}
		return out[i].SourceName < out[j].SourceName
	})
	return out, nil
}
