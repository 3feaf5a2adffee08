package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"PredictionRadar/pkg/config"
	"PredictionRadar/pkg/market"
	"PredictionRadar/pkg/model"
)

type quote struct {
	prev, cur float64
}

// stubOracle serves fixed quotes; tickers without a quote have no data
type stubOracle struct {
	quotes  map[string]quote
	invalid map[string]bool

	mu    sync.Mutex
	calls map[string]int
}

func newStubOracle(quotes map[string]quote) *stubOracle {
	return &stubOracle{quotes: quotes, invalid: map[string]bool{}, calls: map[string]int{}}
}

func (o *stubOracle) Validate(_ context.Context, ticker string) bool {
	return !o.invalid[ticker]
}

func (o *stubOracle) PreviousClose(_ context.Context, ticker string) (float64, bool) {
	o.mu.Lock()
	o.calls[ticker]++
	o.mu.Unlock()
	q, ok := o.quotes[ticker]
	return q.prev, ok
}

func (o *stubOracle) CurrentPrice(_ context.Context, ticker string) (float64, bool) {
	q, ok := o.quotes[ticker]
	return q.cur, ok
}

type stubSource struct {
	name       string
	candidates []model.Candidate
	err        error
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) FetchCandidates(context.Context) ([]model.Candidate, error) {
	return s.candidates, s.err
}

type recordingPublisher struct {
	created []string
	status  []model.Status
	err     error
}

func (p *recordingPublisher) PublishCreated(_ context.Context, pred *model.Prediction) error {
	p.created = append(p.created, pred.ID)
	return p.err
}

func (p *recordingPublisher) PublishStatus(_ context.Context, pred *model.Prediction, _ *model.PriceSnapshot) error {
	p.status = append(p.status, pred.Status)
	return p.err
}

type recordingHealth struct {
	status map[string]string
}

func (h *recordingHealth) UpdateStatus(component, status, _ string) {
	if h.status == nil {
		h.status = map[string]string{}
	}
	h.status[component] = status
}

var errBoom = errors.New("boom")

// monday 2024-03-11; open at 11:00 ET, closed at 17:00 ET
func clockAt(t *testing.T, hour int) *market.Clock {
	t.Helper()
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	now := time.Date(2024, 3, 11, hour, 0, 0, 0, ny)
	clock, err := market.NewClock(config.Default().Market, market.WithNow(func() time.Time { return now }))
	require.NoError(t, err)
	return clock
}

func candidate(ticker string, pct float64, url string, published time.Time) model.Candidate {
	return model.Candidate{
		Ticker:            ticker,
		ClaimedPercentage: pct,
		Direction:         model.DirectionOf(pct),
		ArticleTimestamp:  published,
		SourceName:        "wire",
		ArticleURL:        url,
		Headline:          ticker + " moves",
	}
}

func testLogger() arbor.ILogger {
	return arbor.NewNoOpLogger()
}
