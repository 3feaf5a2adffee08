package collector

import (
	"context"

	"github.com/shopspring/decimal"

	"PredictionRadar/pkg/model"
)

// PriceOracle market data boundary. A false result means no data; callers skip the ticker.
type PriceOracle interface {
	Validate(ctx context.Context, ticker string) bool
	PreviousClose(ctx context.Context, ticker string) (float64, bool)
	CurrentPrice(ctx context.Context, ticker string) (float64, bool)
}

// Source news collaborator producing raw candidates
type Source interface {
	Name() string
	FetchCandidates(ctx context.Context) ([]model.Candidate, error)
}

// PriceData baseline, latest price and the movement between them
type PriceData struct {
	PreviousClose     float64
	CurrentPrice      float64
	ActualMovementPct float64
}

var hundred = decimal.NewFromInt(100)

// Movement percentage change rounded to two decimals, 0 when previousClose is 0
func Movement(previousClose, currentPrice float64) float64 {
	if previousClose == 0 {
		return 0
	}
	prev := decimal.NewFromFloat(previousClose)
	pct := decimal.NewFromFloat(currentPrice).Sub(prev).Div(prev).Mul(hundred).Round(2)
	f, _ := pct.Float64()
	return f
}

// Lookup fetches both prices and computes the movement
func Lookup(ctx context.Context, oracle PriceOracle, ticker string) (PriceData, bool) {
	prev, ok := oracle.PreviousClose(ctx, ticker)
	if !ok {
		return PriceData{}, false
	}
	cur, ok := oracle.CurrentPrice(ctx, ticker)
	if !ok {
		return PriceData{}, false
	}
	return PriceData{
		PreviousClose:     prev,
		CurrentPrice:      cur,
		ActualMovementPct: Movement(prev, cur),
	}, true
}
